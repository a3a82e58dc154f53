package models

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Bucket is a named time-scoped task collection
type Bucket string

const (
	BucketToday    Bucket = "today"
	BucketTomorrow Bucket = "tomorrow"
	BucketWeek     Bucket = "week"
	BucketMonth    Bucket = "month"
	BucketYear     Bucket = "year"
	BucketDue      Bucket = "due"
)

// Buckets lists every bucket in display order
var Buckets = []Bucket{BucketToday, BucketTomorrow, BucketWeek, BucketMonth, BucketYear, BucketDue}

// Valid reports whether b names a known bucket
func (b Bucket) Valid() bool {
	switch b {
	case BucketToday, BucketTomorrow, BucketWeek, BucketMonth, BucketYear, BucketDue:
		return true
	}
	return false
}

// Title returns the display label of the bucket
func (b Bucket) Title() string {
	switch b {
	case BucketWeek:
		return "This Week"
	case BucketMonth:
		return "This Month"
	case BucketYear:
		return "This Year"
	}
	s := string(b)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseBucket parses a bucket name (case-insensitive)
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", fmt.Errorf("unknown bucket %q", s)
	}
	return b, nil
}

// Priority is fixed at task creation
type Priority string

const (
	PriorityMain  Priority = "main"
	PrioritySub   Priority = "sub"
	PriorityMinor Priority = "minor"
)

// Priorities lists priorities from most to least important
var Priorities = []Priority{PriorityMain, PrioritySub, PriorityMinor}

// Rank orders priorities for sorting; unknown values sort last
func (p Priority) Rank() int {
	switch p {
	case PriorityMain:
		return 0
	case PrioritySub:
		return 1
	case PriorityMinor:
		return 2
	}
	return 3
}

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	return p.Rank() < 3
}

// ParsePriority parses a priority name (case-insensitive)
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Subtask is a single checklist item under a task. No further nesting.
type Subtask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Task represents a single task living in exactly one bucket
type Task struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	Completed     bool       `json:"completed"`
	Priority      Priority   `json:"priority"`
	CreatedAt     Timestamp  `json:"createdAt"`
	CompletedAt   *Timestamp `json:"completedAt,omitempty"`
	Subtasks      []Subtask  `json:"subtasks"`
	SourceSection Bucket     `json:"sourceSection,omitempty"`
	MovedToDueAt  *Timestamp `json:"movedToDueAt,omitempty"`
}

// Clone returns a deep copy of the task
func (t Task) Clone() Task {
	c := t
	c.Subtasks = append(make([]Subtask, 0, len(t.Subtasks)), t.Subtasks...)
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.MovedToDueAt != nil {
		v := *t.MovedToDueAt
		c.MovedToDueAt = &v
	}
	return c
}

// Store holds every bucket. Field order is the serialized key order.
type Store struct {
	Today    []Task `json:"today"`
	Tomorrow []Task `json:"tomorrow"`
	Week     []Task `json:"week"`
	Month    []Task `json:"month"`
	Year     []Task `json:"year"`
	Due      []Task `json:"due"`
}

// NewStore returns a store with every bucket empty
func NewStore() *Store {
	s := &Store{}
	s.Normalize()
	return s
}

// Bucket returns a pointer to the task slice for b, or nil for an unknown bucket
func (s *Store) Bucket(b Bucket) *[]Task {
	switch b {
	case BucketToday:
		return &s.Today
	case BucketTomorrow:
		return &s.Tomorrow
	case BucketWeek:
		return &s.Week
	case BucketMonth:
		return &s.Month
	case BucketYear:
		return &s.Year
	case BucketDue:
		return &s.Due
	}
	return nil
}

// Normalize replaces nil slices with empty ones so buckets and subtasks
// always serialize as arrays
func (s *Store) Normalize() {
	for _, b := range Buckets {
		tasks := s.Bucket(b)
		if *tasks == nil {
			*tasks = []Task{}
		}
		for i := range *tasks {
			if (*tasks)[i].Subtasks == nil {
				(*tasks)[i].Subtasks = []Subtask{}
			}
		}
	}
}

// Clone returns a deep copy of the store
func (s *Store) Clone() *Store {
	c := &Store{}
	for _, b := range Buckets {
		src := *s.Bucket(b)
		dst := make([]Task, len(src))
		for i := range src {
			dst[i] = src[i].Clone()
		}
		*c.Bucket(b) = dst
	}
	return c
}

// Len returns the total number of tasks across buckets
func (s *Store) Len() int {
	n := 0
	for _, b := range Buckets {
		n += len(*s.Bucket(b))
	}
	return n
}

// TimestampLayout is an ISO instant with millisecond precision
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is a UTC instant serialized with millisecond precision
type Timestamp struct {
	time.Time
}

// NewTimestamp returns t truncated to milliseconds in UTC
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

// Ptr returns a pointer to a copy of ts
func (ts Timestamp) Ptr() *Timestamp {
	return &ts
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.UTC().Format(TimestampLayout) + `"`), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		ts.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	ts.Time = t.UTC()
	return nil
}

// ResponseType mirrors the fetch response type of a cached entry
type ResponseType string

const (
	ResponseBasic  ResponseType = "basic"
	ResponseCORS   ResponseType = "cors"
	ResponseOpaque ResponseType = "opaque"
)

// CachedResponse is an HTTP response stored in an offline cache
type CachedResponse struct {
	Status   int
	Header   http.Header
	Body     []byte
	Type     ResponseType
	StoredAt time.Time
}

// OK reports whether the response status is 2xx
func (r *CachedResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}
