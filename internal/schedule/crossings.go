package schedule

import "time"

const day = 24 * time.Hour

// calendarDay maps t to midnight UTC of its calendar date in loc, so date
// arithmetic is exact across DST shifts
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysPassed counts calendar-day boundaries between last and now in loc
func DaysPassed(last, now time.Time, loc *time.Location) int {
	diff := calendarDay(now, loc).Sub(calendarDay(last, loc))
	if diff < 0 {
		diff = -diff
	}
	return int(diff / day)
}

// CrossedMonday walks every calendar date from last's date through now's
// date and reports whether one of them is a Monday. Last's own date counts
// when the two dates differ.
func CrossedMonday(last, now time.Time, loc *time.Location) bool {
	start, end := calendarDay(last, loc), calendarDay(now, loc)
	if !end.After(start) {
		return false
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Monday {
			return true
		}
	}
	return false
}

// CrossedMonth reports whether last and now fall in different calendar months
func CrossedMonth(last, now time.Time, loc *time.Location) bool {
	ly, lm, _ := last.In(loc).Date()
	ny, nm, _ := now.In(loc).Date()
	return ly != ny || lm != nm
}

// CrossedYear reports whether last and now fall in different calendar years
func CrossedYear(last, now time.Time, loc *time.Location) bool {
	return last.In(loc).Year() != now.In(loc).Year()
}
