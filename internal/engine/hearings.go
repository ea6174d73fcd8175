package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"townbox/internal/deadline"
	"townbox/internal/domain"
	"townbox/internal/events"
	"townbox/internal/repo"
	"townbox/internal/tenant"
)

// CalculateDeadlines computes the publication schedule for a hearing using
// the tenant's rules and newspaper. Nothing is persisted.
func (e Engine) CalculateDeadlines(ctx context.Context, hearingDate time.Time, reason domain.NoticeReason) (domain.DeadlineCalculation, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.DeadlineCalculation{}, err
	}
	return e.calculate(ctx, tc.TenantID, hearingDate, reason)
}

// calculator builds a deadline calculator from the tenant's rules and
// newspaper schedule, and returns the tenant's timezone.
func (e Engine) calculator(ctx context.Context, tenantID string) (deadline.Calculator, *domain.NewspaperSchedule, *time.Location, error) {
	cfg, err := e.ConfigFor(ctx, tenantID)
	if err != nil {
		return deadline.Calculator{}, nil, nil, err
	}
	set, err := cfg.Rules(e.Rules)
	if err != nil {
		return deadline.Calculator{}, nil, nil, err
	}
	sched, err := cfg.Schedule()
	if err != nil {
		return deadline.Calculator{}, nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return deadline.Calculator{}, nil, nil, err
	}
	calc := deadline.New(set, e.logger())
	calc.Now = e.now
	return calc, sched, loc, nil
}

// tenantDate rebuilds the calendar date of t at midnight in loc. Stored
// hearing dates come back with a fixed offset; cutoffs must follow the
// tenant's zone across DST changes.
func tenantDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func (e Engine) calculate(ctx context.Context, tenantID string, hearingDate time.Time, reason domain.NoticeReason) (domain.DeadlineCalculation, error) {
	calc, sched, loc, err := e.calculator(ctx, tenantID)
	if err != nil {
		return domain.DeadlineCalculation{}, err
	}
	out, err := calc.Calculate(tenantDate(hearingDate, loc), reason, sched)
	if err != nil {
		return out, err
	}
	e.Metrics.Deadline(string(reason), string(out.RiskLevel))
	return out, nil
}

type HearingScheduleOptions struct {
	ID           string
	MeetingID    string
	Title        string
	NoticeReason domain.NoticeReason
	HearingDate  time.Time
}

// ScheduleHearing persists a hearing together with its deadline calculation.
// A hearing whose deadline is already missed is still recorded, flagged
// IMPOSSIBLE.
func (e Engine) ScheduleHearing(ctx context.Context, opts HearingScheduleOptions) (domain.Hearing, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Hearing{}, err
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Hearing{}, errors.New("title is required")
	}
	if opts.HearingDate.IsZero() {
		return domain.Hearing{}, errors.New("hearing_date is required")
	}
	calc, err := e.calculate(ctx, tc.TenantID, opts.HearingDate, opts.NoticeReason)
	if err != nil {
		return domain.Hearing{}, err
	}
	now := e.now()
	h := domain.Hearing{
		ID:           newID(opts.ID),
		TenantID:     tc.TenantID,
		MeetingID:    opts.MeetingID,
		Title:        opts.Title,
		NoticeReason: opts.NoticeReason,
		HearingDate:  calc.HearingDate,
		Deadlines:    calc,
		RiskLevel:    calc.RiskLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if opts.MeetingID != "" {
			if _, err := repo.Meetings.FindByID(ctx, tx, tc.TenantID, opts.MeetingID); err != nil {
				return err
			}
		}
		if _, err := repo.Hearings.Create(ctx, tx, tc.TenantID, h); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "hearing.scheduled", "hearing", h.ID, events.EventPayload{
			"reason":                       h.NoticeReason,
			"hearing_date":                 h.HearingDate.Format(time.DateOnly),
			"risk_level":                   h.RiskLevel,
			"earliest_submission_deadline": calc.EarliestSubmissionDeadline.Format(time.RFC3339),
		})
	})
	return h, err
}

func (e Engine) GetHearing(ctx context.Context, id string) (domain.Hearing, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Hearing{}, err
	}
	v, err := repo.Hearings.FindByID(ctx, e.DB, tc.TenantID, id)
	return v.Value, err
}

// ListHearings lists hearings, optionally only those at the given risk.
func (e Engine) ListHearings(ctx context.Context, risk domain.RiskLevel) ([]domain.Hearing, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Hearings.List(ctx, e.DB, tc.TenantID, repo.Filter{Status: string(risk)})
}

// RefreshRisk recalculates every stored hearing of the tenant and persists
// the ones whose risk level moved. It returns the changed hearings.
func (e Engine) RefreshRisk(ctx context.Context) ([]domain.Hearing, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, err
	}
	calc, sched, loc, err := e.calculator(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}
	changed := []domain.Hearing{}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		all, err := repo.Hearings.List(ctx, tx, tc.TenantID, repo.Filter{})
		if err != nil {
			return err
		}
		for _, h := range all {
			if h.RiskLevel == domain.RiskImpossible {
				continue
			}
			next, err := calc.Calculate(tenantDate(h.HearingDate, loc), h.NoticeReason, sched)
			if err != nil {
				return err
			}
			e.Metrics.Deadline(string(h.NoticeReason), string(next.RiskLevel))
			if next.RiskLevel == h.RiskLevel {
				continue
			}
			cur, err := repo.Hearings.FindByID(ctx, tx, tc.TenantID, h.ID)
			if err != nil {
				return err
			}
			prev := h.RiskLevel
			h.Deadlines = next
			h.RiskLevel = next.RiskLevel
			h.UpdatedAt = e.now()
			if _, err := repo.Hearings.Update(ctx, tx, tc.TenantID, h, cur.Version); err != nil {
				return err
			}
			if err := e.Events.Append(ctx, tx, tc, "hearing.risk_changed", "hearing", h.ID, events.EventPayload{
				"from": prev, "to": h.RiskLevel, "message": next.RiskMessage,
			}); err != nil {
				return err
			}
			changed = append(changed, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, h := range changed {
		if h.RiskLevel == domain.RiskHigh || h.RiskLevel == domain.RiskImpossible {
			e.logger().WarnContext(ctx, "hearing notice at risk",
				"hearing_id", h.ID, "risk_level", h.RiskLevel, "reason", h.NoticeReason)
		}
	}
	return changed, nil
}
