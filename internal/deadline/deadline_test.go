package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townbox/internal/calendar"
	"townbox/internal/domain"
	"townbox/internal/rules"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newCalculator(t *testing.T, now time.Time) Calculator {
	t.Helper()
	reg, err := rules.Default()
	require.NoError(t, err)
	set, err := reg.Jurisdiction("IN")
	require.NoError(t, err)
	c := New(set, nil)
	c.Now = func() time.Time { return now }
	return c
}

func thursdayPaper() *domain.NewspaperSchedule {
	return &domain.NewspaperSchedule{
		Name:               "Gazette",
		PublicationDays:    []time.Weekday{time.Thursday},
		SubmissionLeadDays: 3,
	}
}

func TestBondHearingConsecutivePublications(t *testing.T) {
	c := newCalculator(t, date(2025, 1, 2))
	calc, err := c.Calculate(date(2025, 2, 15), domain.ReasonBondHearing, nil)
	require.NoError(t, err)

	require.Len(t, calc.RequiredPublications, 2)
	first, second := calc.RequiredPublications[0], calc.RequiredPublications[1]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, date(2025, 1, 29), first.LatestPublicationDate)
	assert.Equal(t, date(2025, 2, 5), second.LatestPublicationDate)
	assert.Equal(t, 7*24*time.Hour, second.LatestPublicationDate.Sub(first.LatestPublicationDate))
	assert.False(t, second.LatestPublicationDate.After(date(2025, 2, 5)))

	assert.Equal(t, time.Date(2025, 1, 26, 17, 0, 0, 0, time.UTC), calc.EarliestSubmissionDeadline)
	assert.True(t, calc.HasDeadline)
	assert.Equal(t, domain.RiskLow, calc.RiskLevel)
	assert.Empty(t, calc.RiskMessage)
}

func TestBondHearingSnapsToPrintingDays(t *testing.T) {
	c := newCalculator(t, date(2025, 1, 2))
	calc, err := c.Calculate(date(2025, 2, 15), domain.ReasonBondHearing, thursdayPaper())
	require.NoError(t, err)

	require.Len(t, calc.RequiredPublications, 2)
	assert.Equal(t, date(2025, 1, 23), calc.RequiredPublications[0].LatestPublicationDate)
	assert.Equal(t, date(2025, 1, 30), calc.RequiredPublications[1].LatestPublicationDate)
	assert.Equal(t, date(2025, 2, 5), calc.RequiredPublications[1].TargetDate)
	assert.Equal(t, time.Date(2025, 1, 20, 17, 0, 0, 0, time.UTC), calc.EarliestSubmissionDeadline)
}

func TestConsecutivePublicationsStayDistinctAroundClosure(t *testing.T) {
	c := newCalculator(t, date(2025, 1, 2))
	paper := thursdayPaper()
	paper.HolidayClosures = []time.Time{date(2025, 1, 30)}

	calc, err := c.Calculate(date(2025, 2, 15), domain.ReasonBondHearing, paper)
	require.NoError(t, err)
	require.Len(t, calc.RequiredPublications, 2)
	assert.Equal(t, date(2025, 1, 16), calc.RequiredPublications[0].LatestPublicationDate)
	assert.Equal(t, date(2025, 1, 23), calc.RequiredPublications[1].LatestPublicationDate)
}

func TestNoPublicationRequired(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := newCalculator(t, now)
	calc, err := c.Calculate(date(2025, 3, 10), domain.ReasonOpenDoorMeeting, thursdayPaper())
	require.NoError(t, err)

	assert.Empty(t, calc.RequiredPublications)
	assert.False(t, calc.HasDeadline)
	assert.Equal(t, now.Add(NoDeadlineHorizon), calc.EarliestSubmissionDeadline)
	assert.Equal(t, domain.RiskLow, calc.RiskLevel)
}

func TestNonConsecutivePublicationsShareLatestDate(t *testing.T) {
	reg, err := rules.Parse([]byte(`
jurisdictions:
  XX:
    GENERAL_PUBLIC_HEARING:
      required_publications: 2
      required_lead_days: 15
      must_be_consecutive: false
`))
	require.NoError(t, err)
	set, err := reg.Jurisdiction("XX")
	require.NoError(t, err)
	c := New(set, nil)
	c.Now = func() time.Time { return date(2025, 1, 2) }

	calc, err := c.Calculate(date(2025, 2, 20), domain.ReasonGeneralPublicHearing, thursdayPaper())
	require.NoError(t, err)
	require.Len(t, calc.RequiredPublications, 2)
	for _, p := range calc.RequiredPublications {
		assert.Equal(t, date(2025, 2, 5), p.TargetDate)
		assert.Equal(t, date(2025, 1, 30), p.LatestPublicationDate)
	}

	_, err = c.Calculate(date(2025, 2, 20), domain.ReasonBondHearing, nil)
	assert.ErrorIs(t, err, rules.ErrRuleNotFound)
}

func TestMissedDeadlineIsImpossible(t *testing.T) {
	c := newCalculator(t, date(2025, 2, 10))
	calc, err := c.Calculate(date(2025, 2, 15), domain.ReasonBondHearing, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RiskImpossible, calc.RiskLevel)
	assert.Equal(t, MessageImpossible, calc.RiskMessage)
}

func TestAssessRisk(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		deadline time.Time
		want     domain.RiskLevel
	}{
		{"past deadline", now.Add(-time.Minute), domain.RiskImpossible},
		{"six business days", calendar.AddBusinessDays(now, 6), domain.RiskLow},
		{"five business days", calendar.AddBusinessDays(now, 5), domain.RiskMedium},
		{"three business days", calendar.AddBusinessDays(now, 3), domain.RiskMedium},
		{"two business days", calendar.AddBusinessDays(now, 2), domain.RiskMedium},
		{"one business day", calendar.AddBusinessDays(now, 1), domain.RiskHigh},
		{"deadline is now", now, domain.RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := AssessRisk(tt.deadline, now)
			assert.Equal(t, tt.want, got)
			if tt.want == domain.RiskLow {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}
