package db

import "sync"

// Memory is a map-backed KV. Dry runs copy the persisted record into one so
// nothing is written back.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory returns an empty in-memory KV
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// CopyKeys returns a Memory holding the given keys copied from src
func CopyKeys(src KV, keys ...string) (*Memory, error) {
	m := NewMemory()
	for _, k := range keys {
		v, ok, err := src.Get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			m.values[k] = v
		}
	}
	return m, nil
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	return m.SetMany(Pair{Key: key, Value: value})
}

func (m *Memory) SetMany(pairs ...Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pairs {
		m.values[p.Key] = p.Value
	}
	return nil
}
