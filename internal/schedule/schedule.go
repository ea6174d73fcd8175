// Package schedule resolves concrete publication dates and submission
// deadlines against a newspaper's printing cadence.
package schedule

import (
	"log/slog"
	"time"

	"townbox/internal/domain"
)

const (
	// MaxScanDays bounds the search for a printing day in either direction.
	MaxScanDays = 60
	// FallbackDays is added to (or subtracted from) the start date when no
	// printing day is found within MaxScanDays.
	FallbackDays = 7
	// DefaultSubmissionHour is the local cutoff when no weekday override exists.
	DefaultSubmissionHour = 17
)

type Resolver struct {
	Logger *slog.Logger
}

func New(logger *slog.Logger) Resolver {
	return Resolver{Logger: logger}
}

func (r Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func isPublicationDate(s domain.NewspaperSchedule, t time.Time) bool {
	return s.PublishesOn(t.Weekday()) && !s.IsClosed(t)
}

// FindNextPublicationDate returns the first printing day on or after
// onOrAfter. When the schedule yields nothing within MaxScanDays it falls
// back to onOrAfter+7 days and reports degraded=true.
func (r Resolver) FindNextPublicationDate(s domain.NewspaperSchedule, onOrAfter time.Time) (date time.Time, degraded bool) {
	cur := onOrAfter
	for i := 0; i < MaxScanDays; i++ {
		if isPublicationDate(s, cur) {
			return cur, false
		}
		cur = cur.AddDate(0, 0, 1)
	}
	fallback := onOrAfter.AddDate(0, 0, FallbackDays)
	r.logger().Warn("no publication date within scan window; using fallback",
		slog.String("newspaper", s.Name),
		slog.String("on_or_after", onOrAfter.Format(time.DateOnly)),
		slog.String("fallback", fallback.Format(time.DateOnly)),
	)
	return fallback, true
}

// FindPublicationDateOnOrBefore is the backward counterpart of
// FindNextPublicationDate, used to snap a latest-allowed date to an actual
// printing day.
func (r Resolver) FindPublicationDateOnOrBefore(s domain.NewspaperSchedule, onOrBefore time.Time) (date time.Time, degraded bool) {
	cur := onOrBefore
	for i := 0; i < MaxScanDays; i++ {
		if isPublicationDate(s, cur) {
			return cur, false
		}
		cur = cur.AddDate(0, 0, -1)
	}
	fallback := onOrBefore.AddDate(0, 0, -FallbackDays)
	r.logger().Warn("no publication date within backward scan window; using fallback",
		slog.String("newspaper", s.Name),
		slog.String("on_or_before", onOrBefore.Format(time.DateOnly)),
		slog.String("fallback", fallback.Format(time.DateOnly)),
	)
	return fallback, true
}

// SubmissionDeadline returns the latest moment copy can reach the paper for
// the given publication date. A per-weekday window wins over the schedule's
// SubmissionLeadDays, which is applied at 17:00 in the date's location.
func SubmissionDeadline(s domain.NewspaperSchedule, publicationDate time.Time) time.Time {
	if w, ok := s.SubmissionDeadlines[publicationDate.Weekday()]; ok {
		return atTime(publicationDate.AddDate(0, 0, -w.DaysBeforePublication), w.Hour, w.Minute)
	}
	return atTime(publicationDate.AddDate(0, 0, -s.SubmissionLeadDays), DefaultSubmissionHour, 0)
}

func atTime(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}
