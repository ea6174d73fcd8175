package engine

import (
	"context"
	"database/sql"
	"errors"

	"townbox/internal/compliance"
	"townbox/internal/domain"
	"townbox/internal/events"
	"townbox/internal/repo"
	"townbox/internal/tenant"
)

func (e Engine) CreateMinutes(ctx context.Context, meetingID, body string) (domain.Minutes, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Minutes{}, err
	}
	m := domain.Minutes{
		ID:        newID(""),
		MeetingID: meetingID,
		Status:    domain.MinutesDraft,
		Body:      body,
		UpdatedAt: e.now(),
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := repo.Meetings.FindByID(ctx, tx, tc.TenantID, meetingID); err != nil {
			return err
		}
		if _, err := repo.Minutes.Create(ctx, tx, tc.TenantID, m); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "minutes.created", "minutes", m.ID, events.EventPayload{"meeting_id": meetingID})
	})
	return m, err
}

func (e Engine) GetMinutes(ctx context.Context, id string) (domain.Minutes, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Minutes{}, err
	}
	v, err := repo.Minutes.FindByID(ctx, e.DB, tc.TenantID, id)
	return v.Value, err
}

// UpdateMinutesBody replaces the text of draft minutes.
func (e Engine) UpdateMinutesBody(ctx context.Context, id, body string) (domain.Minutes, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Minutes{}, err
	}
	var out domain.Minutes
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := repo.Minutes.FindByID(ctx, tx, tc.TenantID, id)
		if err != nil {
			return err
		}
		if cur.Value.Status != domain.MinutesDraft {
			return errors.New("only DRAFT minutes can be edited")
		}
		next := cur.Value
		next.Body = body
		next.UpdatedAt = e.now()
		if _, err := repo.Minutes.Update(ctx, tx, tc.TenantID, next, cur.Version); err != nil {
			return err
		}
		out = next
		return e.Events.Append(ctx, tx, tc, "minutes.edited", "minutes", id, events.EventPayload{"length": len(body)})
	})
	return out, err
}

// TransitionMinutes moves minutes through review. Approval is refused while
// any executive session of the meeting is uncertified.
func (e Engine) TransitionMinutes(ctx context.Context, id string, to domain.MinutesStatus) (domain.Minutes, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Minutes{}, err
	}
	var out domain.Minutes
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := repo.Minutes.FindByID(ctx, tx, tc.TenantID, id)
		if err != nil {
			return err
		}
		sessions, err := repo.Sessions.FindByParentID(ctx, tx, tc.TenantID, cur.Value.MeetingID)
		if err != nil {
			return err
		}
		next, err := compliance.ValidateMinutesTransition(cur.Value, to, sessions, e.now())
		if err != nil {
			return err
		}
		if _, err := repo.Minutes.Update(ctx, tx, tc.TenantID, next, cur.Version); err != nil {
			return err
		}
		out = next
		return e.Events.Append(ctx, tx, tc, "minutes.transitioned", "minutes", id, events.EventPayload{
			"from": cur.Value.Status, "to": to,
		})
	})
	if err == nil {
		e.Metrics.Transition("minutes", string(to))
	}
	return out, err
}
