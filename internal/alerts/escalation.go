package alerts

import (
	"context"
	"log"
	"time"
)

// Escalator re-notifies the escalation chain for alerts that sat
// unacknowledged past their rule's escalation window.
type Escalator struct {
	store      Store
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewEscalator(store Store, dispatcher *Dispatcher) *Escalator {
	return &Escalator{store: store, dispatcher: dispatcher, now: time.Now}
}

// Sweep escalates every due alert at most once. The escalated flag is claimed
// with a conditional update before any delivery, so a concurrent sweep or a
// crash between claim and delivery can drop an escalation but never duplicate
// one. Returns the number of alerts escalated.
func (e *Escalator) Sweep(ctx context.Context) (int, error) {
	due, err := e.store.DueEscalations(ctx, e.now())
	if err != nil {
		return 0, err
	}

	escalated := 0
	for _, d := range due {
		if len(d.Rule.EscalationRecipients) == 0 {
			continue
		}
		claimed, err := e.store.ClaimEscalation(ctx, d.Alert.ID, e.now())
		if err != nil {
			log.Printf("claim escalation for alert %s: %v", d.Alert.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		alert := d.Alert
		e.dispatcher.DispatchEscalation(ctx, d.Rule, &alert)
		escalated++
	}
	return escalated, nil
}
