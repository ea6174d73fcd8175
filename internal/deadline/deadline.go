// Package deadline computes the publication schedule a hearing notice must
// meet and classifies how much room is left to meet it.
package deadline

import (
	"log/slog"
	"sort"
	"time"

	"townbox/internal/calendar"
	"townbox/internal/domain"
	"townbox/internal/rules"
	"townbox/internal/schedule"
)

const (
	// DefaultSubmissionLeadDays applies when no newspaper schedule is supplied.
	DefaultSubmissionLeadDays = 3
	// NoDeadlineHorizon is how far ahead the sentinel deadline sits when a
	// rule requires no publication at all.
	NoDeadlineHorizon = 365 * 24 * time.Hour
)

const (
	MessageMedium     = "Submission deadline is approaching; send the notice to the newspaper this week."
	MessageHigh       = "Submission deadline is imminent; send the notice to the newspaper today."
	MessageImpossible = "The statutory publication deadline cannot be met; consult the town attorney before holding the hearing."
)

type Calculator struct {
	Rules    rules.Lookup
	Resolver schedule.Resolver
	Now      func() time.Time
}

func New(lookup rules.Lookup, logger *slog.Logger) Calculator {
	return Calculator{
		Rules:    lookup,
		Resolver: schedule.New(logger),
		Now:      time.Now,
	}
}

func (c Calculator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Calculate produces the required publications for a hearing. A nil schedule
// means dates are not snapped to a printing cadence and submission deadlines
// use DefaultSubmissionLeadDays.
func (c Calculator) Calculate(hearingDate time.Time, reason domain.NoticeReason, sched *domain.NewspaperSchedule) (domain.DeadlineCalculation, error) {
	rule, err := c.Rules.Lookup(reason)
	if err != nil {
		return domain.DeadlineCalculation{}, err
	}
	now := c.now()
	calc := domain.DeadlineCalculation{
		HearingDate:          hearingDate,
		NoticeReason:         reason,
		Rule:                 rule,
		RequiredPublications: []domain.RequiredPublication{},
		CalculatedAt:         now,
	}
	if rule.RequiredPublications == 0 {
		calc.EarliestSubmissionDeadline = now.Add(NoDeadlineHorizon)
		calc.RiskLevel = domain.RiskLow
		return calc, nil
	}

	latest := dateOnly(hearingDate).AddDate(0, 0, -rule.RequiredLeadDays)
	pubs := c.publications(rule, latest, sched)

	effective := domain.NewspaperSchedule{SubmissionLeadDays: DefaultSubmissionLeadDays}
	if sched != nil {
		effective = *sched
	}
	for i := range pubs {
		pubs[i].SubmissionDeadline = schedule.SubmissionDeadline(effective, pubs[i].LatestPublicationDate)
		if i == 0 || pubs[i].SubmissionDeadline.Before(calc.EarliestSubmissionDeadline) {
			calc.EarliestSubmissionDeadline = pubs[i].SubmissionDeadline
		}
	}
	calc.RequiredPublications = pubs
	calc.HasDeadline = true
	calc.RiskLevel, calc.RiskMessage = AssessRisk(calc.EarliestSubmissionDeadline, now)
	return calc, nil
}

func (c Calculator) publications(rule domain.PublicationRule, latest time.Time, sched *domain.NewspaperSchedule) []domain.RequiredPublication {
	n := rule.RequiredPublications
	pubs := make([]domain.RequiredPublication, 0, n)
	if rule.MustBeConsecutive && n > 1 {
		var later time.Time
		for k := 0; k < n; k++ {
			target := latest.AddDate(0, 0, -7*k)
			date := c.snap(sched, target)
			// two targets can snap onto the same printing day around a closure
			if k > 0 && !date.Before(later) {
				date = c.snap(sched, later.AddDate(0, 0, -1))
			}
			later = date
			pubs = append(pubs, domain.RequiredPublication{
				Number:                n - k,
				TargetDate:            target,
				LatestPublicationDate: date,
			})
		}
		sort.Slice(pubs, func(i, j int) bool { return pubs[i].Number < pubs[j].Number })
		return pubs
	}
	for k := 1; k <= n; k++ {
		pubs = append(pubs, domain.RequiredPublication{
			Number:                k,
			TargetDate:            latest,
			LatestPublicationDate: c.snap(sched, latest),
		})
	}
	return pubs
}

func (c Calculator) snap(sched *domain.NewspaperSchedule, target time.Time) time.Time {
	if sched == nil {
		return target
	}
	date, _ := c.Resolver.FindPublicationDateOnOrBefore(*sched, target)
	return date
}

// AssessRisk classifies the time left before deadline in business days.
func AssessRisk(deadline, now time.Time) (domain.RiskLevel, string) {
	if now.After(deadline) {
		return domain.RiskImpossible, MessageImpossible
	}
	days := calendar.CountBusinessDays(now, deadline)
	switch {
	case days > 5:
		return domain.RiskLow, ""
	case days >= 2:
		return domain.RiskMedium, MessageMedium
	default:
		return domain.RiskHigh, MessageHigh
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
