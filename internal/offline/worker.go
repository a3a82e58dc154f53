package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tgienger/shiush/internal/models"
)

// ErrInstallFailed is returned when a manifest asset cannot be precached
var ErrInstallFailed = errors.New("offline: install failed")

// Fetcher performs network requests. *http.Client implements it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Manifest is the app shell precached on install
type Manifest struct {
	Assets      []string
	OfflinePage string
	ShellPage   string
}

// Worker is one version of the offline cache: a named cache plus the
// policy that answers requests from it
type Worker struct {
	mu       sync.Mutex
	version  string
	state    State
	origin   *url.URL
	manifest Manifest
	policy   Policy
	storage  Storage
	fetcher  Fetcher
	cache    *Cache
	observe  func(online bool)
	now      func() time.Time
	log      *log.Logger
}

func newWorker(r *Registration, version string) *Worker {
	return &Worker{
		version:  version,
		state:    StateInstalling,
		origin:   r.cfg.Origin,
		manifest: r.cfg.Manifest,
		policy:   r.cfg.Policy,
		storage:  r.storage,
		fetcher:  r.fetcher,
		observe:  r.net.Observe,
		now:      r.now,
		log:      r.log,
	}
}

// Version returns the cache name this worker owns
func (w *Worker) Version() string { return w.version }

// State returns the current lifecycle state
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) transition(to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !canTransition(w.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.state, to)
	}
	w.state = to
	return nil
}

func (w *Worker) retire() {
	w.mu.Lock()
	w.state = StateRedundant
	w.mu.Unlock()
}

// Install precaches every manifest asset. Nothing is written unless every
// asset was fetched with a 2xx status.
func (w *Worker) Install(ctx context.Context) error {
	if w.State() != StateInstalling {
		return fmt.Errorf("%w: install from %s", ErrInvalidTransition, w.State())
	}

	entries := make(map[string]*models.CachedResponse, len(w.manifest.Assets))
	for _, path := range w.manifest.Assets {
		resp, err := w.fetchAsset(ctx, path)
		if err != nil {
			w.retire()
			return fmt.Errorf("%w: %s: %v", ErrInstallFailed, path, err)
		}
		entries[path] = resp
	}

	cache, err := OpenCache(ctx, w.storage, w.version)
	if err != nil {
		w.retire()
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	if err := cache.AddAll(ctx, entries); err != nil {
		w.retire()
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	w.cache = cache

	w.log.Printf("offline: installed %s (%d assets)", w.version, len(entries))
	return w.transition(StateInstalled)
}

func (w *Worker) fetchAsset(ctx context.Context, path string) (*models.CachedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.resolve(path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.fetcher.Do(req)
	if err != nil {
		return nil, err
	}
	cached, err := w.capture(resp)
	if err != nil {
		return nil, err
	}
	if !cached.OK() {
		return nil, fmt.Errorf("status %d", cached.Status)
	}
	return cached, nil
}

// Activate moves an installed worker to activated
func (w *Worker) Activate(ctx context.Context) error {
	if err := w.transition(StateActivating); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		w.retire()
		return err
	}
	return w.transition(StateActivated)
}

// DeleteStaleCaches deletes every cache that does not belong to this
// version. Call it only once the worker is in control.
func (w *Worker) DeleteStaleCaches(ctx context.Context) error {
	names, err := w.storage.CacheNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == w.version {
			continue
		}
		if _, err := w.storage.DeleteCache(ctx, name); err != nil {
			return fmt.Errorf("delete cache %s: %w", name, err)
		}
		w.log.Printf("offline: deleted old cache %s", name)
	}
	return nil
}

func (w *Worker) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return w.origin.String() + path
	}
	return w.origin.ResolveReference(ref).String()
}

// capture reads a network response into a storable form
func (w *Worker) capture(resp *http.Response) (*models.CachedResponse, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	typ := models.ResponseBasic
	if resp.Request != nil && resp.Request.URL != nil && !sameOrigin(resp.Request.URL, w.origin) {
		typ = models.ResponseCORS
	}
	return &models.CachedResponse{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		Type:     typ,
		StoredAt: w.now().UTC(),
	}, nil
}
