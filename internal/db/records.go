package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tgienger/shiush/internal/models"
)

// Fixed keys of the persisted state
const (
	StoreKey      = "tasks"
	LastOpenedKey = "lastOpened"
)

// ErrCorruptRecord is returned when the stored task record cannot be decoded
var ErrCorruptRecord = errors.New("corrupt task record")

// Records reads and writes the whole task record and the last-opened stamp
type Records struct {
	kv KV
}

// NewRecords wraps a KV
func NewRecords(kv KV) *Records {
	return &Records{kv: kv}
}

// LoadStore returns the persisted store. A missing record yields an empty
// store; a corrupt one yields an empty store and ErrCorruptRecord.
func (r *Records) LoadStore() (*models.Store, error) {
	raw, ok, err := r.kv.Get(StoreKey)
	if err != nil {
		return models.NewStore(), err
	}
	if !ok {
		return models.NewStore(), nil
	}

	var s models.Store
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return models.NewStore(), fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	s.Normalize()
	return &s, nil
}

// SaveStore writes the whole store record
func (r *Records) SaveStore(s *models.Store) error {
	raw, err := encodeStore(s)
	if err != nil {
		return err
	}
	return r.kv.Set(StoreKey, raw)
}

// LastOpened returns the last-opened stamp; ok is false on first run or when
// the stored value is unreadable
func (r *Records) LastOpened() (time.Time, bool, error) {
	raw, ok, err := r.kv.Get(LastOpenedKey)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// SetLastOpened writes the last-opened stamp
func (r *Records) SetLastOpened(t time.Time) error {
	return r.kv.Set(LastOpenedKey, formatStamp(t))
}

// Commit writes the store record and then the stamp in one atomic write
func (r *Records) Commit(s *models.Store, opened time.Time) error {
	raw, err := encodeStore(s)
	if err != nil {
		return err
	}
	return r.kv.SetMany(
		Pair{Key: StoreKey, Value: raw},
		Pair{Key: LastOpenedKey, Value: formatStamp(opened)},
	)
}

func encodeStore(s *models.Store) (string, error) {
	s.Normalize()
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode task record: %w", err)
	}
	return string(raw), nil
}

func formatStamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
