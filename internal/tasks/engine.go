package tasks

import (
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tgienger/shiush/internal/db"
	"github.com/tgienger/shiush/internal/models"
)

// ErrUnknownBucket is returned when an operation names a bucket that does not exist
var ErrUnknownBucket = errors.New("unknown bucket")

// Repository persists the whole task record and the last-opened stamp
type Repository interface {
	LoadStore() (*models.Store, error)
	SaveStore(s *models.Store) error
	LastOpened() (time.Time, bool, error)
	SetLastOpened(t time.Time) error
	Commit(s *models.Store, opened time.Time) error
}

// Renderer is asked to refresh a bucket after every mutation
type Renderer interface {
	Render(bucket models.Bucket)
}

// RenderFunc adapts a function to Renderer
type RenderFunc func(bucket models.Bucket)

func (f RenderFunc) Render(bucket models.Bucket) { f(bucket) }

// Engine owns the in-memory working copy of the store for one session
type Engine struct {
	mu     sync.Mutex
	repo   Repository
	state  *models.Store
	render Renderer
	now    func() time.Time
	newID  func() string
	log    *log.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs sets the id generator
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithRenderer sets the view refresh target
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.render = r }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine over repo. Call Load before use.
func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		state:  models.NewStore(),
		render: RenderFunc(func(models.Bucket) {}),
		now:    time.Now,
		newID:  uuid.NewString,
		log:    log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load reads the working copy from the repository. A corrupt record is
// logged and reinitialized as an empty store; read errors are returned.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.repo.LoadStore()
	switch {
	case errors.Is(err, db.ErrCorruptRecord):
		e.log.Printf("task record unreadable, starting empty: %v", err)
		e.state = models.NewStore()
		return e.repo.SaveStore(e.state)
	case err != nil:
		return err
	}
	e.state = s
	return nil
}

// reload replaces the working copy with the persisted record, so writes made
// by another session on the same store survive the next commit. A corrupt
// record keeps the working copy, which the next write replaces it with.
func (e *Engine) reload() error {
	s, err := e.repo.LoadStore()
	switch {
	case errors.Is(err, db.ErrCorruptRecord):
		e.log.Printf("task record unreadable, keeping working copy: %v", err)
		return nil
	case err != nil:
		return err
	}
	e.state = s
	return nil
}

// SetRenderer replaces the renderer. The TUI installs its own once the
// program exists.
func (e *Engine) SetRenderer(r Renderer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.render = r
}

// Tasks returns a sorted copy of the bucket
func (e *Engine) Tasks(bucket models.Bucket) []models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	tasks := e.state.Bucket(bucket)
	if tasks == nil {
		return nil
	}
	out := make([]models.Task, len(*tasks))
	for i, t := range *tasks {
		out[i] = t.Clone()
	}
	Sort(out)
	return out
}

// Snapshot returns a deep copy of the working store
func (e *Engine) Snapshot() *models.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Find returns a copy of the task with id and the bucket holding it
func (e *Engine) Find(taskID string) (models.Task, models.Bucket, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, b := e.find(taskID)
	if t == nil {
		return models.Task{}, "", false
	}
	return t.Clone(), b, true
}

// LastOpened returns the persisted last-opened stamp
func (e *Engine) LastOpened() (time.Time, bool, error) {
	return e.repo.LastOpened()
}

// Apply re-reads the store, runs fn against it and commits the store together
// with the opened stamp. When fn reports no change only the stamp is written.
// Every bucket is re-rendered after a change.
func (e *Engine) Apply(opened time.Time, fn func(s *models.Store, now time.Time) bool) error {
	e.mu.Lock()
	if err := e.reload(); err != nil {
		e.mu.Unlock()
		return err
	}
	changed := false
	if fn != nil {
		changed = fn(e.state, opened)
	}
	var err error
	if changed {
		err = e.repo.Commit(e.state, opened)
	} else {
		err = e.repo.SetLastOpened(opened)
	}
	render := e.render
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		for _, b := range models.Buckets {
			render.Render(b)
		}
	}
	return nil
}

// mutate re-reads the store, runs fn under the lock, flushes the store when
// fn reports a change and then asks for a refresh of bucket
func (e *Engine) mutate(bucket models.Bucket, fn func() (models.Bucket, bool)) error {
	e.mu.Lock()
	if err := e.reload(); err != nil {
		e.mu.Unlock()
		return err
	}
	target, changed := fn()
	if target != "" {
		bucket = target
	}
	if !changed {
		e.mu.Unlock()
		return nil
	}
	err := e.repo.SaveStore(e.state)
	render := e.render
	e.mu.Unlock()

	if err != nil {
		return err
	}
	render.Render(bucket)
	return nil
}

func (e *Engine) find(taskID string) (*models.Task, models.Bucket) {
	for _, b := range models.Buckets {
		tasks := *e.state.Bucket(b)
		for i := range tasks {
			if tasks[i].ID == taskID {
				return &tasks[i], b
			}
		}
	}
	return nil, ""
}

func (e *Engine) findIn(bucket models.Bucket, taskID string) *models.Task {
	tasks := e.state.Bucket(bucket)
	if tasks == nil {
		return nil
	}
	for i := range *tasks {
		if (*tasks)[i].ID == taskID {
			return &(*tasks)[i]
		}
	}
	return nil
}

func (e *Engine) stamp() models.Timestamp {
	return models.NewTimestamp(e.now())
}

func normalizeText(text string) (string, bool) {
	t := strings.TrimSpace(text)
	return t, t != ""
}
