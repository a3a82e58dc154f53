package schedule

import (
	"context"
	"time"
)

// Poller re-runs the evaluator on a fixed interval
type Poller struct {
	evaluator *Evaluator
	interval  time.Duration
}

// NewPoller creates a poller over ev
func NewPoller(ev *Evaluator, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{evaluator: ev, interval: interval}
}

// Run evaluates immediately and then on every tick until ctx is done.
// Evaluation errors are logged and do not stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if _, err := p.evaluator.Evaluate(ctx); err != nil && ctx.Err() == nil {
		p.evaluator.log.Printf("schedule: evaluation failed: %v", err)
	}
}
