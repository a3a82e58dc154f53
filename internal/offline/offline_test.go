package offline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tgienger/shiush/internal/db"
)

// origin serves a tiny app shell and counts hits per path
type origin struct {
	mu      sync.Mutex
	hits    map[string]int
	failApp atomic.Bool
}

func (o *origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	o.mu.Unlock()

	switch r.URL.Path {
	case "/", "/index.html":
		w.Write([]byte("shell"))
	case "/offline.html":
		w.Write([]byte("offline"))
	case "/app.js":
		if o.failApp.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("app"))
	case "/data.json":
		w.Write([]byte(`{"n":1}`))
	case "/teapot":
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("teapot"))
	default:
		http.NotFound(w, r)
	}
}

func (o *origin) count(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// switchFetcher fails every request while down is set
type switchFetcher struct {
	down atomic.Bool
}

func (f *switchFetcher) Do(req *http.Request) (*http.Response, error) {
	if f.down.Load() {
		return nil, errors.New("network down")
	}
	return http.DefaultClient.Do(req)
}

type fixture struct {
	reg     *Registration
	origin  *origin
	fetcher *switchFetcher
	storage *db.DB
}

func newFixture(t *testing.T, policy Policy, skipWaiting bool, opts ...Option) *fixture {
	t.Helper()

	o := &origin{hits: make(map[string]int)}
	srv := httptest.NewServer(o)
	t.Cleanup(srv.Close)

	storage, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	f := &switchFetcher{}
	cfg := Config{
		Origin: u,
		Manifest: Manifest{
			Assets:      []string{"/", "/index.html", "/offline.html", "/app.js"},
			OfflinePage: "/offline.html",
			ShellPage:   "/index.html",
		},
		Policy:      policy,
		SkipWaiting: skipWaiting,
	}
	reg := NewRegistration(storage, cfg, append([]Option{WithFetcher(f)}, opts...)...)
	return &fixture{reg: reg, origin: o, fetcher: f, storage: storage}
}

func (f *fixture) get(t *testing.T, path string, navigate bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if navigate {
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	}
	rec := httptest.NewRecorder()
	f.reg.ServeHTTP(rec, req)
	return rec
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateInstalling, StateInstalled, true},
		{StateInstalled, StateActivating, true},
		{StateActivating, StateActivated, true},
		{StateActivated, StateRedundant, true},
		{StateInstalling, StateActivated, false},
		{StateActivated, StateInstalling, false},
		{StateRedundant, StateActivated, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if StateActivated.String() != "activated" {
		t.Errorf("String() = %q", StateActivated.String())
	}
}

func TestUpdateInstallsAndActivates(t *testing.T) {
	f := newFixture(t, PolicyNetworkFirst, true)
	ctx := context.Background()

	if err := f.reg.Update(ctx, "v1"); err != nil {
		t.Fatalf("Update v1: %v", err)
	}
	v1 := f.reg.Active()
	if v1 == nil || v1.Version() != "v1" || v1.State() != StateActivated {
		t.Fatalf("active = %+v, want activated v1", v1)
	}

	caches, err := f.reg.CacheStatus(ctx)
	if err != nil {
		t.Fatalf("CacheStatus: %v", err)
	}
	if len(caches) != 1 || caches[0].Name != "v1" || len(caches[0].Keys) != 4 {
		t.Fatalf("caches = %+v, want v1 with 4 keys", caches)
	}

	if err := f.reg.Update(ctx, "v2"); err != nil {
		t.Fatalf("Update v2: %v", err)
	}
	if got := f.reg.Active().Version(); got != "v2" {
		t.Errorf("active = %s, want v2", got)
	}
	if v1.State() != StateRedundant {
		t.Errorf("v1 state = %s, want redundant", v1.State())
	}
	names, err := f.storage.CacheNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "v2" {
		t.Errorf("cache names = %v, want [v2]", names)
	}

	// Same version again is a no-op
	hits := f.origin.count("/app.js")
	if err := f.reg.Update(ctx, "v2"); err != nil {
		t.Fatal(err)
	}
	if f.origin.count("/app.js") != hits {
		t.Error("reinstalling the active version refetched the manifest")
	}
}

func TestFailedInstallKeepsPreviousActive(t *testing.T) {
	f := newFixture(t, PolicyNetworkFirst, true)
	ctx := context.Background()

	if err := f.reg.Update(ctx, "v1"); err != nil {
		t.Fatal(err)
	}

	f.origin.failApp.Store(true)
	err := f.reg.Update(ctx, "v2")
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("Update v2 err = %v, want ErrInstallFailed", err)
	}
	if got := f.reg.Active().Version(); got != "v1" {
		t.Errorf("active = %s, want v1", got)
	}
	if f.reg.Waiting() != nil {
		t.Error("failed worker left waiting")
	}

	names, err := f.storage.CacheNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "v1" {
		t.Errorf("cache names = %v, want [v1]", names)
	}
}

func TestWaitingWorkerAndSkipWaiting(t *testing.T) {
	f := newFixture(t, PolicyNetworkFirst, false)
	ctx := context.Background()

	if err := f.reg.Update(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	client := f.reg.Clients().Add("v1")

	if err := f.reg.Update(ctx, "v2"); err != nil {
		t.Fatal(err)
	}
	st := f.reg.Status()
	if st.Active == nil || st.Active.Version != "v1" {
		t.Fatalf("active = %+v, want v1", st.Active)
	}
	if st.Waiting == nil || st.Waiting.Version != "v2" || st.Waiting.State != StateInstalled {
		t.Fatalf("waiting = %+v, want installed v2", st.Waiting)
	}

	// Reload does nothing while a page is still open
	if err := f.reg.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if f.reg.Active().Version() != "v1" {
		t.Fatal("reload activated with clients connected")
	}

	if err := f.reg.HandleMessage(ctx, Message{Type: "NOPE"}); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("unknown message err = %v", err)
	}
	if err := f.reg.HandleMessage(ctx, Message{Type: MessageSkipWaiting}); err != nil {
		t.Fatalf("SKIP_WAITING: %v", err)
	}
	if f.reg.Active().Version() != "v2" {
		t.Error("SKIP_WAITING did not activate v2")
	}
	if c, _ := f.reg.Clients().Controller(client.ID); c != "v2" {
		t.Errorf("client controller = %s, want v2", c)
	}
	if err := f.reg.SkipWaiting(ctx); !errors.Is(err, ErrNoWaiting) {
		t.Errorf("SkipWaiting with nothing waiting = %v", err)
	}
}

func TestReloadActivatesWithoutClients(t *testing.T) {
	f := newFixture(t, PolicyNetworkFirst, false)
	ctx := context.Background()

	if err := f.reg.Update(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	client := f.reg.Clients().Add("v1")
	if err := f.reg.Update(ctx, "v2"); err != nil {
		t.Fatal(err)
	}

	if n := f.reg.Clients().Remove(client.ID); n != 0 {
		t.Fatalf("Remove left %d clients", n)
	}
	if err := f.reg.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if f.reg.Active().Version() != "v2" {
		t.Error("reload with no clients did not activate v2")
	}
}

func TestNetworkFirst(t *testing.T) {
	f := newFixture(t, PolicyNetworkFirst, true)
	if err := f.reg.Update(context.Background(), "v1"); err != nil {
		t.Fatal(err)
	}

	rec := f.get(t, "/data.json", false)
	if rec.Code != http.StatusOK || rec.Header().Get(SourceHeader) != sourceNetwork {
		t.Fatalf("online fetch = %d from %s", rec.Code, rec.Header().Get(SourceHeader))
	}
	if rec := f.get(t, "/teapot", false); rec.Code != http.StatusTeapot {
		t.Fatalf("teapot = %d", rec.Code)
	}

	f.fetcher.down.Store(true)

	tests := []struct {
		name     string
		path     string
		navigate bool
		code     int
		body     string
		source   string
	}{
		{"cached after fetch", "/data.json", false, http.StatusOK, `{"n":1}`, sourceCache},
		{"precached shell", "/", true, http.StatusOK, "shell", sourceCache},
		{"navigation falls back to offline page", "/somewhere", true, http.StatusOK, "offline", sourceOffline},
		{"non-200 never cached", "/teapot", false, http.StatusNotFound, "Not found", sourceMissing},
		{"unknown asset", "/missing.png", false, http.StatusNotFound, "Not found", sourceMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, tt.path, tt.navigate)
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			if rec.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
			if got := rec.Header().Get(SourceHeader); got != tt.source {
				t.Errorf("source = %q, want %q", got, tt.source)
			}
		})
	}
}

func TestNonGetPassesThrough(t *testing.T) {
	f := newFixture(t, PolicyNetworkFirst, true)
	if err := f.reg.Update(context.Background(), "v1"); err != nil {
		t.Fatal(err)
	}
	f.fetcher.down.Store(true)

	rec := httptest.NewRecorder()
	f.reg.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/index.html", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("POST while offline = %d, want 502", rec.Code)
	}
}

func TestCrossOriginRequestsAreRefused(t *testing.T) {
	f := newFixture(t, PolicyNetworkFirst, true)
	ctx := context.Background()
	if err := f.reg.Update(ctx, "v1"); err != nil {
		t.Fatal(err)
	}

	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
		w.Write([]byte("private"))
	}))
	defer foreign.Close()

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		f.reg.ServeHTTP(rec, httptest.NewRequest(method, foreign.URL+"/x", nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s absolute-form = %d, want 403", method, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "private") {
			t.Errorf("%s relayed the foreign body", method)
		}
	}
	if n := foreignHits.Load(); n != 0 {
		t.Errorf("foreign host received %d request(s)", n)
	}

	keys, err := f.storage.CacheKeys(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range keys {
		if k == "/x" {
			t.Error("cross-origin response was cached")
		}
	}
}

// flakyStorage fails cache deletion while failDelete is set
type flakyStorage struct {
	*db.DB
	failDelete atomic.Bool
}

func (s *flakyStorage) DeleteCache(ctx context.Context, name string) (bool, error) {
	if s.failDelete.Load() {
		return false, errors.New("disk full")
	}
	return s.DB.DeleteCache(ctx, name)
}

func TestFailedCleanupKeepsNewWorkerInControl(t *testing.T) {
	f := newFixture(t, PolicyNetworkFirst, true)
	ctx := context.Background()
	storage := &flakyStorage{DB: f.storage}
	reg := NewRegistration(storage, f.reg.cfg, WithFetcher(f.fetcher))

	if err := reg.Update(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	storage.failDelete.Store(true)
	if err := reg.Update(ctx, "v2"); err != nil {
		t.Fatalf("Update v2: %v", err)
	}
	active := reg.Active()
	if active == nil || active.Version() != "v2" || active.State() != StateActivated {
		t.Fatalf("active = %+v, want activated v2", active)
	}

	// the new worker serves from its own cache while the old one lingers
	f.fetcher.down.Store(true)
	rec := httptest.NewRecorder()
	reg.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "app" {
		t.Errorf("offline app.js = %d %q", rec.Code, rec.Body.String())
	}
	names, _ := storage.CacheNames(ctx)
	if len(names) != 2 {
		t.Fatalf("cache names = %v, want v1 and v2", names)
	}

	// the next activation removes what the failed one left behind
	f.fetcher.down.Store(false)
	storage.failDelete.Store(false)
	if err := reg.Update(ctx, "v3"); err != nil {
		t.Fatal(err)
	}
	names, _ = storage.CacheNames(ctx)
	if len(names) != 1 || names[0] != "v3" {
		t.Errorf("cache names = %v, want [v3]", names)
	}
}

func TestCacheFirst(t *testing.T) {
	f := newFixture(t, PolicyCacheFirst, true)
	if err := f.reg.Update(context.Background(), "v1"); err != nil {
		t.Fatal(err)
	}
	hits := f.origin.count("/app.js")

	rec := f.get(t, "/app.js", false)
	if rec.Body.String() != "app" || rec.Header().Get(SourceHeader) != sourceCache {
		t.Fatalf("app.js = %q from %s", rec.Body.String(), rec.Header().Get(SourceHeader))
	}
	if f.origin.count("/app.js") != hits {
		t.Error("cache-first asset hit the network")
	}

	// Navigations still go to the network first
	navHits := f.origin.count("/index.html")
	if rec := f.get(t, "/index.html", true); rec.Header().Get(SourceHeader) != sourceNetwork {
		t.Errorf("navigation source = %s, want network", rec.Header().Get(SourceHeader))
	}
	if f.origin.count("/index.html") != navHits+1 {
		t.Error("navigation did not reach the network")
	}

	f.fetcher.down.Store(true)
	rec = f.get(t, "/elsewhere", true)
	if rec.Body.String() != "shell" || rec.Header().Get(SourceHeader) != sourceOffline {
		t.Errorf("offline navigation = %q from %s, want shell", rec.Body.String(), rec.Header().Get(SourceHeader))
	}
}

func TestConnectivityBroadcast(t *testing.T) {
	f := newFixture(t, PolicyNetworkFirst, true)
	if err := f.reg.Update(context.Background(), "v1"); err != nil {
		t.Fatal(err)
	}
	client := f.reg.Clients().Add("v1")

	f.fetcher.down.Store(true)
	f.get(t, "/data.json", false)
	f.get(t, "/data.json", false)

	select {
	case msg := <-client.Messages():
		if msg.Type != MessageOnlineStatusChange || msg.Payload == nil || msg.Payload.IsOnline {
			t.Errorf("message = %+v, want offline status", msg)
		}
	default:
		t.Fatal("no status message after going offline")
	}
	select {
	case msg := <-client.Messages():
		t.Errorf("unexpected second message %+v", msg)
	default:
	}
	if f.reg.Status().Online {
		t.Error("status still online")
	}

	f.fetcher.down.Store(false)
	f.get(t, "/data.json", false)
	msg := <-client.Messages()
	if msg.Payload == nil || !msg.Payload.IsOnline {
		t.Errorf("message = %+v, want online status", msg)
	}
}

func TestSync(t *testing.T) {
	var calls int
	var fail error
	f := newFixture(t, PolicyNetworkFirst, true, WithReconciler(func(ctx context.Context) error {
		calls++
		return fail
	}))
	ctx := context.Background()
	client := f.reg.Clients().Add("")

	if err := f.reg.Sync(ctx, "other"); !errors.Is(err, ErrUnknownSyncTag) {
		t.Errorf("unknown tag err = %v", err)
	}
	if calls != 0 {
		t.Error("reconciler ran for an unknown tag")
	}

	if err := f.reg.Sync(ctx, SyncTag); err != nil {
		t.Fatal(err)
	}
	msg := <-client.Messages()
	if msg.Payload == nil || !msg.Payload.IsOnline || msg.Payload.Error != "" {
		t.Errorf("success message = %+v", msg)
	}

	fail = errors.New("reconcile broke")
	if err := f.reg.Sync(ctx, SyncTag); err != nil {
		t.Fatalf("sync failure surfaced: %v", err)
	}
	msg = <-client.Messages()
	if msg.Payload == nil || msg.Payload.Error != "reconcile broke" {
		t.Errorf("failure message = %+v", msg)
	}
	if calls != 2 {
		t.Errorf("reconciler calls = %d, want 2", calls)
	}
}

func TestSlowClientDropsMessages(t *testing.T) {
	hub := NewClients()
	slow := hub.Add("v1")

	for i := 0; i < clientBuffer; i++ {
		if n := hub.Broadcast(onlineStatus(true, nil)); n != 1 {
			t.Fatalf("broadcast %d reached %d clients", i, n)
		}
	}
	if n := hub.Broadcast(onlineStatus(true, nil)); n != 0 {
		t.Errorf("full client received a message")
	}
	if len(slow.Messages()) != clientBuffer {
		t.Errorf("buffered = %d", len(slow.Messages()))
	}

	hub.Remove(slow.ID)
	if _, ok := <-drain(slow.Messages()); ok {
		t.Error("channel not closed after Remove")
	}
}

func drain(ch <-chan Message) <-chan Message {
	for n := len(ch); n > 0; n-- {
		<-ch
	}
	return ch
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyNetworkFirst {
		t.Errorf("empty = %s, %v", p, err)
	}
	if p, err := ParsePolicy("Cache-First"); err != nil || p != PolicyCacheFirst {
		t.Errorf("Cache-First = %s, %v", p, err)
	}
	if _, err := ParsePolicy("stale-while-revalidate"); err == nil {
		t.Error("expected error")
	}
}
