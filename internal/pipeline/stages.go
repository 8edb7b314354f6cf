package pipeline

import "github.com/northbridge/tenderops/internal/models"

// Stages in pipeline order. The order is informational only: any canonical
// stage is reachable from any other, so operators can correct mistakes.
var Stages = []string{
	models.StageRenewalWatch,
	models.StageNewOpportunity,
	models.StageReview,
	models.StageBidding,
	models.StageInternalApproval,
	models.StageSubmitted,
	models.StageAwarded,
	models.StageLost,
}

var stageSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Stages))
	for _, s := range Stages {
		set[s] = struct{}{}
	}
	return set
}()

// ValidStage reports whether s is one of the 8 canonical stages.
func ValidStage(s string) bool {
	_, ok := stageSet[s]
	return ok
}

// TerminalStage reports whether a card in this stage has left the pipeline.
func TerminalStage(s string) bool {
	return s == models.StageAwarded || s == models.StageLost
}

// ValidDecision reports whether d is go, no-go or maybe.
func ValidDecision(d string) bool {
	switch d {
	case models.DecisionGo, models.DecisionNoGo, models.DecisionMaybe:
		return true
	}
	return false
}
