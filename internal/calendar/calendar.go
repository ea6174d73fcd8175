// Package calendar does weekend-skipping business-day arithmetic.
//
// Holidays are not considered; callers that need closures (newspaper
// schedules, for example) check them separately.
package calendar

import "time"

// IsBusinessDay reports whether t falls Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// AddBusinessDays advances start one calendar day at a time, counting only
// weekdays, until n business days have passed. n <= 0 returns start.
func AddBusinessDays(start time.Time, n int) time.Time {
	cur := start
	remaining := n
	for remaining > 0 {
		cur = cur.AddDate(0, 0, 1)
		if IsBusinessDay(cur) {
			remaining--
		}
	}
	return cur
}

// CountBusinessDays counts the weekdays stepped onto while walking from
// from (exclusive) towards to, one day at a time. It returns 0 when from is
// not before to.
func CountBusinessDays(from, to time.Time) int {
	count := 0
	cur := from
	for cur.Before(to) {
		cur = cur.AddDate(0, 0, 1)
		if IsBusinessDay(cur) {
			count++
		}
	}
	return count
}
