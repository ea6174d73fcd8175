package engine

import (
	"context"
	"database/sql"

	"townbox/internal/compliance"
	"townbox/internal/domain"
	"townbox/internal/events"
	"townbox/internal/repo"
	"townbox/internal/tenant"
)

// CreateExecutiveSession schedules a closed session for a meeting. The
// reason must be one of compliance.SessionReasons.
func (e Engine) CreateExecutiveSession(ctx context.Context, meetingID, reason string) (domain.ExecutiveSession, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.ExecutiveSession{}, err
	}
	s := domain.ExecutiveSession{
		ID:            newID(""),
		MeetingID:     meetingID,
		Reason:        reason,
		StatutoryCite: compliance.SessionReasons[reason],
		Status:        domain.SessionPending,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := compliance.AssertCompliance(compliance.CheckSessionReason(reason)); err != nil {
			return err
		}
		if _, err := repo.Meetings.FindByID(ctx, tx, tc.TenantID, meetingID); err != nil {
			return err
		}
		if _, err := repo.Sessions.Create(ctx, tx, tc.TenantID, s); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "executive_session.created", "executive_session", s.ID, events.EventPayload{
			"meeting_id": meetingID, "reason": reason, "statutory_cite": s.StatutoryCite,
		})
	})
	return s, err
}

func (e Engine) ListExecutiveSessions(ctx context.Context, meetingID string) ([]domain.ExecutiveSession, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Sessions.FindByParentID(ctx, e.DB, tc.TenantID, meetingID)
}

// TransitionExecutiveSession convenes, ends, certifies or cancels a session.
// Certification is attributed to the calling user.
func (e Engine) TransitionExecutiveSession(ctx context.Context, id string, to domain.ExecutiveSessionStatus) (domain.ExecutiveSession, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.ExecutiveSession{}, err
	}
	var out domain.ExecutiveSession
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := repo.Sessions.FindByID(ctx, tx, tc.TenantID, id)
		if err != nil {
			return err
		}
		m, err := repo.Meetings.FindByID(ctx, tx, tc.TenantID, cur.Value.MeetingID)
		if err != nil {
			return err
		}
		next, err := compliance.ValidateExecutiveSessionTransition(m.Value, cur.Value, to, tc.Actor(), e.now())
		if err != nil {
			return err
		}
		if _, err := repo.Sessions.Update(ctx, tx, tc.TenantID, next, cur.Version); err != nil {
			return err
		}
		out = next
		return e.Events.Append(ctx, tx, tc, "executive_session.transitioned", "executive_session", id, events.EventPayload{
			"from": cur.Value.Status, "to": to, "meeting_id": next.MeetingID,
		})
	})
	if err == nil {
		e.Metrics.Transition("executive_session", string(to))
	}
	return out, err
}
