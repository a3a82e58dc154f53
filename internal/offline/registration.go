package offline

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"
)

// ErrNoWaiting is returned by SkipWaiting when no version is waiting
var ErrNoWaiting = errors.New("offline: no waiting worker")

// Config describes the app shell the registration serves
type Config struct {
	Origin      *url.URL
	Manifest    Manifest
	Policy      Policy
	SkipWaiting bool
}

// Reconciler runs when a background sync fires
type Reconciler func(ctx context.Context) error

// Registration owns the active and waiting workers for one origin
type Registration struct {
	mu        sync.Mutex
	cfg       Config
	storage   Storage
	fetcher   Fetcher
	clients   *Clients
	net       *Connectivity
	reconcile Reconciler
	active    *Worker
	waiting   *Worker
	now       func() time.Time
	log       *log.Logger
}

// Option configures a Registration
type Option func(*Registration)

// WithFetcher sets the network client. Defaults to http.DefaultClient.
func WithFetcher(f Fetcher) Option {
	return func(r *Registration) { r.fetcher = f }
}

// WithReconciler sets what a sync-tasks sync runs
func WithReconciler(fn Reconciler) Option {
	return func(r *Registration) { r.reconcile = fn }
}

// WithClock sets the time source for stored responses
func WithClock(now func() time.Time) Option {
	return func(r *Registration) { r.now = now }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(r *Registration) { r.log = l }
}

// NewRegistration creates a registration with no workers
func NewRegistration(storage Storage, cfg Config, opts ...Option) *Registration {
	if cfg.Policy == "" {
		cfg.Policy = PolicyNetworkFirst
	}
	clients := NewClients()
	r := &Registration{
		cfg:     cfg,
		storage: storage,
		fetcher: http.DefaultClient,
		clients: clients,
		net:     NewConnectivity(clients),
		now:     time.Now,
		log:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registration) Clients() *Clients { return r.clients }

func (r *Registration) Connectivity() *Connectivity { return r.net }

// Active returns the worker in control, or nil
func (r *Registration) Active() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Waiting returns the installed worker waiting to take over, or nil
func (r *Registration) Waiting() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// Update installs version. Installing the active or waiting version again
// is a no-op. A failed install leaves the current worker in control.
func (r *Registration) Update(ctx context.Context, version string) error {
	r.mu.Lock()
	if (r.active != nil && r.active.version == version) || (r.waiting != nil && r.waiting.version == version) {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	w := newWorker(r, version)
	if err := w.Install(ctx); err != nil {
		r.log.Printf("offline: %v", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting != nil {
		r.waiting.retire()
	}
	r.waiting = w

	if r.cfg.SkipWaiting || r.active == nil {
		return r.activateWaiting(ctx)
	}
	r.log.Printf("offline: %s waiting for %d client(s)", version, r.clients.Len())
	return nil
}

// SkipWaiting activates the waiting worker now
func (r *Registration) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting == nil {
		return ErrNoWaiting
	}
	return r.activateWaiting(ctx)
}

// Reload activates the waiting worker once no page is left on the old one
func (r *Registration) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting == nil || r.clients.Len() > 0 {
		return nil
	}
	return r.activateWaiting(ctx)
}

// activateWaiting promotes the waiting worker and claims every client, then
// drops the old caches. A failed cleanup leaves them for the next activation.
// r.mu must be held.
func (r *Registration) activateWaiting(ctx context.Context) error {
	w := r.waiting
	r.waiting = nil
	if err := w.Activate(ctx); err != nil {
		r.log.Printf("offline: activate %s: %v", w.version, err)
		return err
	}

	if r.active != nil {
		r.active.retire()
	}
	r.active = w
	r.clients.Claim(w.version)
	r.log.Printf("offline: %s active", w.version)

	if err := w.DeleteStaleCaches(ctx); err != nil {
		r.log.Printf("offline: cleanup after %s: %v", w.version, err)
	}
	return nil
}

// HandleMessage processes a control message from a page
func (r *Registration) HandleMessage(ctx context.Context, msg Message) error {
	switch msg.Type {
	case MessageSkipWaiting:
		err := r.SkipWaiting(ctx)
		if errors.Is(err, ErrNoWaiting) {
			return nil
		}
		return err
	}
	return ErrUnknownMessage
}

// WorkerStatus describes one worker
type WorkerStatus struct {
	Version string `json:"version"`
	State   State  `json:"state"`
}

// Status is a snapshot of the registration
type Status struct {
	Active  *WorkerStatus `json:"active,omitempty"`
	Waiting *WorkerStatus `json:"waiting,omitempty"`
	Clients int           `json:"clients"`
	Online  bool          `json:"online"`
}

func (r *Registration) Status() Status {
	r.mu.Lock()
	active, waiting := r.active, r.waiting
	r.mu.Unlock()

	st := Status{Clients: r.clients.Len(), Online: r.net.Online()}
	if active != nil {
		st.Active = &WorkerStatus{Version: active.version, State: active.State()}
	}
	if waiting != nil {
		st.Waiting = &WorkerStatus{Version: waiting.version, State: waiting.State()}
	}
	return st
}

// CacheInfo lists the entries of one stored cache
type CacheInfo struct {
	Name string   `json:"name"`
	Keys []string `json:"keys"`
}

// CacheStatus reports every stored cache and its entries
func (r *Registration) CacheStatus(ctx context.Context) ([]CacheInfo, error) {
	names, err := r.storage.CacheNames(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	infos := make([]CacheInfo, 0, len(names))
	for _, name := range names {
		keys, err := r.storage.CacheKeys(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, CacheInfo{Name: name, Keys: keys})
	}
	return infos, nil
}
