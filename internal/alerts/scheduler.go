package alerts

import (
	"context"
	"log"
	"time"
)

// Scheduler runs the periodic background passes: escalation sweeps, digest
// flushes and the time-based rule sweep. Each loop runs in its own goroutine
// and stops when ctx is cancelled.
type Scheduler struct {
	engine    *Engine
	escalator *Escalator
	flusher   *DigestFlusher
	cfg       Config
}

func NewScheduler(engine *Engine, escalator *Escalator, flusher *DigestFlusher, cfg Config) *Scheduler {
	return &Scheduler{engine: engine, escalator: escalator, flusher: flusher, cfg: cfg}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, time.Duration(s.cfg.EscalationSweepSeconds)*time.Second, "escalation sweep", func(ctx context.Context) (int, error) {
		return s.escalator.Sweep(ctx)
	})
	go s.loop(ctx, time.Duration(s.cfg.DigestFlushSeconds)*time.Second, "digest flush", func(ctx context.Context) (int, error) {
		return s.flusher.Flush(ctx)
	})
	go s.loop(ctx, time.Duration(s.cfg.RuleSweepMinutes)*time.Minute, "rule sweep", func(ctx context.Context) (int, error) {
		return s.engine.SweepTimeRules(ctx)
	})
}

func (s *Scheduler) loop(ctx context.Context, every time.Duration, name string, run func(context.Context) (int, error)) {
	if every <= 0 {
		log.Printf("%s disabled (interval %s)", name, every)
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := run(ctx)
			if err != nil {
				log.Printf("%s: %v", name, err)
				continue
			}
			if n > 0 {
				log.Printf("%s: processed %d", name, n)
			}
		}
	}
}
