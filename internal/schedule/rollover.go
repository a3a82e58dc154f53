package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/tgienger/shiush/internal/models"
)

// Retention returns how long a completed task survives in bucket before
// expiry removes it
func Retention(b models.Bucket) time.Duration {
	switch b {
	case models.BucketWeek:
		return 7 * day
	case models.BucketMonth:
		return 30 * day
	case models.BucketYear:
		return 365 * day
	}
	return day
}

// Report describes what one evaluation did
type Report struct {
	FirstRun   bool
	DaysPassed int
	Week       bool
	Month      bool
	Year       bool
	Moved      map[models.Bucket]int
	Expired    map[models.Bucket]int
}

func newReport() Report {
	return Report{
		Moved:   make(map[models.Bucket]int),
		Expired: make(map[models.Bucket]int),
	}
}

// Changed reports whether any bucket was touched
func (r Report) Changed() bool {
	return r.DaysPassed > 0 || r.Week || r.Month || r.Year
}

// MovedTotal is the number of tasks relocated into due
func (r Report) MovedTotal() int {
	n := 0
	for _, v := range r.Moved {
		n += v
	}
	return n
}

// ExpiredTotal is the number of completed tasks removed
func (r Report) ExpiredTotal() int {
	n := 0
	for _, v := range r.Expired {
		n += v
	}
	return n
}

func (r Report) String() string {
	if r.FirstRun {
		return "first run, nothing to migrate"
	}
	if !r.Changed() {
		return "no boundary crossed"
	}
	var crossed []string
	if r.DaysPassed > 0 {
		crossed = append(crossed, fmt.Sprintf("%d day(s)", r.DaysPassed))
	}
	if r.Week {
		crossed = append(crossed, "week")
	}
	if r.Month {
		crossed = append(crossed, "month")
	}
	if r.Year {
		crossed = append(crossed, "year")
	}
	return fmt.Sprintf("crossed %s: moved %d to due, expired %d",
		strings.Join(crossed, ", "), r.MovedTotal(), r.ExpiredTotal())
}

// Rollover applies every transition due between last and now to s
func Rollover(s *models.Store, last, now time.Time, loc *time.Location) Report {
	r := newReport()
	r.DaysPassed = DaysPassed(last, now, loc)

	if r.DaysPassed >= 1 {
		for _, b := range []models.Bucket{models.BucketDue, models.BucketTomorrow, models.BucketToday} {
			r.Expired[b] += expire(s, b, now)
		}
		r.Moved[models.BucketToday] += moveToDue(s, models.BucketToday, now)

		if r.DaysPassed == 1 {
			s.Today = s.Tomorrow
			s.Tomorrow = []models.Task{}
		} else {
			// a multi-day absence missed both plans
			r.Moved[models.BucketTomorrow] += moveToDue(s, models.BucketTomorrow, now)
			s.Today = []models.Task{}
			s.Tomorrow = []models.Task{}
		}
	}

	if CrossedMonday(last, now, loc) {
		r.Week = true
		r.Expired[models.BucketWeek] += expire(s, models.BucketWeek, now)
		r.Moved[models.BucketWeek] += moveToDue(s, models.BucketWeek, now)
	}
	if CrossedMonth(last, now, loc) {
		r.Month = true
		r.Expired[models.BucketMonth] += expire(s, models.BucketMonth, now)
		r.Moved[models.BucketMonth] += moveToDue(s, models.BucketMonth, now)
	}
	if CrossedYear(last, now, loc) {
		r.Year = true
		r.Expired[models.BucketYear] += expire(s, models.BucketYear, now)
		r.Moved[models.BucketYear] += moveToDue(s, models.BucketYear, now)
	}
	return r
}

// expire drops completed tasks whose completedAt is older than the bucket's
// retention window. Tasks without a completedAt are kept.
func expire(s *models.Store, b models.Bucket, now time.Time) int {
	tasks := s.Bucket(b)
	window := Retention(b)
	kept := make([]models.Task, 0, len(*tasks))
	for _, t := range *tasks {
		if t.Completed && t.CompletedAt != nil && now.Sub(t.CompletedAt.Time) > window {
			continue
		}
		kept = append(kept, t)
	}
	removed := len(*tasks) - len(kept)
	*tasks = kept
	return removed
}

// moveToDue relocates every incomplete task of b into due, leaving only
// completed tasks behind
func moveToDue(s *models.Store, b models.Bucket, now time.Time) int {
	tasks := s.Bucket(b)
	stamp := models.NewTimestamp(now)
	kept := make([]models.Task, 0, len(*tasks))
	moved := 0
	for _, t := range *tasks {
		if t.Completed {
			kept = append(kept, t)
			continue
		}
		t.SourceSection = b
		t.MovedToDueAt = stamp.Ptr()
		s.Due = append(s.Due, t)
		moved++
	}
	*tasks = kept
	return moved
}
