package schedule

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tgienger/shiush/internal/models"
)

// Session is the working store the evaluator migrates. *tasks.Engine
// implements it.
type Session interface {
	LastOpened() (time.Time, bool, error)
	Apply(opened time.Time, fn func(s *models.Store, now time.Time) bool) error
}

// Evaluator decides which bucket transitions are due and applies them.
// Startup and the periodic poller share one Evaluator.
type Evaluator struct {
	mu      sync.Mutex
	session Session
	loc     *time.Location
	now     func() time.Time
	log     *log.Logger
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithLocation sets the time zone calendar boundaries are computed in
func WithLocation(loc *time.Location) Option {
	return func(ev *Evaluator) { ev.loc = loc }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(ev *Evaluator) { ev.now = now }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(ev *Evaluator) { ev.log = l }
}

// NewEvaluator creates an evaluator over session
func NewEvaluator(session Session, opts ...Option) *Evaluator {
	ev := &Evaluator{
		session: session,
		loc:     time.Local,
		now:     time.Now,
		log:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Evaluate runs one evaluation. On first run it only records the stamp.
// The store and the new stamp are committed together, so running again
// before any time passes moves nothing.
func (ev *Evaluator) Evaluate(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()

	now := ev.now()
	last, ok, err := ev.session.LastOpened()
	if err != nil {
		return Report{}, err
	}

	if !ok {
		report := newReport()
		report.FirstRun = true
		if err := ev.session.Apply(now, nil); err != nil {
			return report, err
		}
		ev.log.Printf("schedule: %s", report)
		return report, nil
	}

	var report Report
	err = ev.session.Apply(now, func(s *models.Store, now time.Time) bool {
		report = Rollover(s, last, now, ev.loc)
		return report.Changed()
	})
	if err != nil {
		return report, err
	}
	if report.Changed() {
		ev.log.Printf("schedule: %s", report)
	}
	return report, nil
}
