package db

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/tgienger/shiush/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func sampleStore() *models.Store {
	created := models.NewTimestamp(time.Date(2026, 3, 2, 10, 0, 0, 123456789, time.UTC))
	done := models.NewTimestamp(time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC))
	s := models.NewStore()
	s.Today = append(s.Today, models.Task{
		ID:        "a",
		Text:      "write report",
		Priority:  models.PriorityMain,
		CreatedAt: created,
		Subtasks: []models.Subtask{
			{ID: "a1", Text: "outline", Completed: true},
			{ID: "a2", Text: "draft"},
		},
	})
	s.Due = append(s.Due, models.Task{
		ID:            "b",
		Text:          "call bank",
		Completed:     true,
		Priority:      models.PriorityMinor,
		CreatedAt:     created,
		CompletedAt:   done.Ptr(),
		Subtasks:      []models.Subtask{},
		SourceSection: models.BucketToday,
		MovedToDueAt:  done.Ptr(),
	})
	return s
}

func TestSettingsRoundTrip(t *testing.T) {
	database := newTestDB(t)

	if _, ok, err := database.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want false, nil", ok, err)
	}
	if err := database.Set("k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := database.Set("k", "v2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := database.Get("k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Get(k) = %q, %v, %v; want v2", v, ok, err)
	}
}

func TestRecordsRoundTripIsByteIdentical(t *testing.T) {
	database := newTestDB(t)
	records := NewRecords(database)

	if err := records.SaveStore(sampleStore()); err != nil {
		t.Fatalf("save: %v", err)
	}
	first, _, err := database.Get(StoreKey)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}

	loaded, err := records.LoadStore()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := records.SaveStore(loaded); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	second, _, err := database.Get(StoreKey)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}

	if first != second {
		t.Fatalf("record changed across round trip:\n%s\n%s", first, second)
	}
}

func TestRecordsEmptyBucketsSerializeAsArrays(t *testing.T) {
	kv := NewMemory()
	records := NewRecords(kv)
	if err := records.SaveStore(&models.Store{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, _, _ := kv.Get(StoreKey)
	want := `{"today":[],"tomorrow":[],"week":[],"month":[],"year":[],"due":[]}`
	if raw != want {
		t.Fatalf("record = %s, want %s", raw, want)
	}
}

func TestRecordsMissingAndCorrupt(t *testing.T) {
	kv := NewMemory()
	records := NewRecords(kv)

	s, err := records.LoadStore()
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if s.Len() != 0 || s.Today == nil {
		t.Fatalf("expected empty initialized store, got %+v", s)
	}

	_ = kv.Set(StoreKey, "{not json")
	s, err = records.LoadStore()
	if !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
	if s == nil || s.Len() != 0 {
		t.Fatalf("expected empty store on corrupt record, got %+v", s)
	}
}

func TestRecordsLastOpened(t *testing.T) {
	database := newTestDB(t)
	records := NewRecords(database)

	if _, ok, err := records.LastOpened(); err != nil || ok {
		t.Fatalf("first run LastOpened ok=%v err=%v", ok, err)
	}

	opened := time.Date(2026, 5, 4, 8, 15, 0, 0, time.UTC)
	if err := records.Commit(sampleStore(), opened); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, ok, err := records.LastOpened()
	if err != nil || !ok {
		t.Fatalf("LastOpened ok=%v err=%v", ok, err)
	}
	if !got.Equal(opened) {
		t.Fatalf("LastOpened = %v, want %v", got, opened)
	}
	s, err := records.LoadStore()
	if err != nil || len(s.Today) != 1 || len(s.Due) != 1 {
		t.Fatalf("committed store not readable: %+v, %v", s, err)
	}

	_ = database.Set(LastOpenedKey, "garbage")
	if _, ok, err := records.LastOpened(); err != nil || ok {
		t.Fatalf("garbage stamp should read as first run, ok=%v err=%v", ok, err)
	}
}

func TestCopyKeys(t *testing.T) {
	database := newTestDB(t)
	_ = database.Set(StoreKey, "{}")

	m, err := CopyKeys(database, StoreKey, LastOpenedKey)
	if err != nil {
		t.Fatalf("CopyKeys: %v", err)
	}
	if v, ok, _ := m.Get(StoreKey); !ok || v != "{}" {
		t.Fatalf("copied value = %q, %v", v, ok)
	}
	if _, ok, _ := m.Get(LastOpenedKey); ok {
		t.Fatal("absent key should stay absent")
	}
	_ = m.Set(StoreKey, "changed")
	if v, _, _ := database.Get(StoreKey); v != "{}" {
		t.Fatalf("memory write leaked to source: %q", v)
	}
}

func TestCaches(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	if err := database.OpenCache(ctx, "v1"); err != nil {
		t.Fatalf("open v1: %v", err)
	}
	entries := map[string]*models.CachedResponse{
		"/index.html": {
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": {"text/html"}},
			Body:   []byte("<h1>hi</h1>"),
			Type:   models.ResponseBasic,
		},
		"/style.css": {Status: http.StatusOK, Header: http.Header{}, Body: []byte("body{}"), Type: models.ResponseBasic},
	}
	if err := database.PutCacheEntries(ctx, "v2", entries); err != nil {
		t.Fatalf("put v2: %v", err)
	}

	names, err := database.CacheNames(ctx)
	if err != nil || len(names) != 2 {
		t.Fatalf("CacheNames = %v, %v", names, err)
	}

	resp, ok, err := database.MatchCache(ctx, "v2", "/index.html")
	if err != nil || !ok {
		t.Fatalf("match: ok=%v err=%v", ok, err)
	}
	if string(resp.Body) != "<h1>hi</h1>" || resp.Header.Get("Content-Type") != "text/html" || resp.Type != models.ResponseBasic {
		t.Fatalf("unexpected cached response %+v", resp)
	}
	if _, ok, _ := database.MatchCache(ctx, "v1", "/index.html"); ok {
		t.Fatal("entry leaked into another cache")
	}

	keys, err := database.CacheKeys(ctx, "v2")
	if err != nil || len(keys) != 2 || keys[0] != "/index.html" {
		t.Fatalf("CacheKeys = %v, %v", keys, err)
	}

	deleted, err := database.DeleteCache(ctx, "v2")
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	if _, ok, _ := database.MatchCache(ctx, "v2", "/index.html"); ok {
		t.Fatal("entries survived cache deletion")
	}
	if deleted, _ := database.DeleteCache(ctx, "v2"); deleted {
		t.Fatal("second delete should report false")
	}
}
