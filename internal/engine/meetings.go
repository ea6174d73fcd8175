package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"townbox/internal/compliance"
	"townbox/internal/domain"
	"townbox/internal/events"
	"townbox/internal/quorum"
	"townbox/internal/repo"
	"townbox/internal/tenant"
)

func (e Engine) CreateBody(ctx context.Context, b domain.GoverningBody) (domain.GoverningBody, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return b, err
	}
	if strings.TrimSpace(b.Name) == "" {
		return b, errors.New("body name is required")
	}
	if b.TotalSeats <= 0 {
		return b, errors.New("total_seats must be positive")
	}
	switch b.QuorumType {
	case "":
		b.QuorumType = domain.QuorumMajority
	case domain.QuorumMajority, domain.QuorumTwoThirds:
	case domain.QuorumSpecific:
		if b.QuorumNumber <= 0 || b.QuorumNumber > b.TotalSeats {
			return b, errors.New("quorum_number must be between 1 and total_seats for SPECIFIC quorum")
		}
	default:
		return b, errors.New("invalid quorum_type")
	}
	b.ID = newID(b.ID)
	b.TenantID = tc.TenantID
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := repo.Bodies.Create(ctx, tx, tc.TenantID, b); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "body.created", "governing_body", b.ID, events.EventPayload{
			"name": b.Name, "total_seats": b.TotalSeats, "quorum_type": b.QuorumType,
		})
	})
	return b, err
}

func (e Engine) GetBody(ctx context.Context, id string) (domain.GoverningBody, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.GoverningBody{}, err
	}
	v, err := repo.Bodies.FindByID(ctx, e.DB, tc.TenantID, id)
	return v.Value, err
}

type MeetingCreateOptions struct {
	ID             string
	BodyID         string
	Title          string
	Location       string
	ScheduledStart time.Time
	IsEmergency    bool
}

func (e Engine) CreateMeeting(ctx context.Context, opts MeetingCreateOptions) (domain.Meeting, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Meeting{}, err
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Meeting{}, errors.New("title is required")
	}
	if opts.ScheduledStart.IsZero() {
		return domain.Meeting{}, errors.New("scheduled_start is required")
	}
	now := e.now()
	m := domain.Meeting{
		ID:             newID(opts.ID),
		TenantID:       tc.TenantID,
		BodyID:         opts.BodyID,
		Title:          opts.Title,
		Location:       opts.Location,
		Status:         domain.MeetingDraft,
		ScheduledStart: opts.ScheduledStart,
		IsEmergency:    opts.IsEmergency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := repo.Bodies.FindByID(ctx, tx, tc.TenantID, opts.BodyID); err != nil {
			return err
		}
		if _, err := repo.Meetings.Create(ctx, tx, tc.TenantID, m); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "meeting.created", "meeting", m.ID, events.EventPayload{
			"title":           m.Title,
			"scheduled_start": m.ScheduledStart.Format(time.RFC3339),
			"emergency":       m.IsEmergency,
		})
	})
	return m, err
}

func (e Engine) GetMeeting(ctx context.Context, id string) (domain.Meeting, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Meeting{}, err
	}
	v, err := repo.Meetings.FindByID(ctx, e.DB, tc.TenantID, id)
	return v.Value, err
}

// ListMeetings lists meetings of a body (all bodies when bodyID is empty),
// optionally narrowed by status.
func (e Engine) ListMeetings(ctx context.Context, bodyID string, status domain.MeetingStatus) ([]domain.Meeting, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Meetings.List(ctx, e.DB, tc.TenantID, repo.Filter{ParentID: bodyID, Status: string(status)})
}

type MeetingTransitionOptions struct {
	ID string
	To domain.MeetingStatus
	// NoticePostedAt records when notice actually went up; defaults to now.
	NoticePostedAt *time.Time
}

// TransitionMeeting moves a meeting through its lifecycle. Noticing checks
// the posting lead time and adjourning requires every executive session to
// be certified or cancelled.
func (e Engine) TransitionMeeting(ctx context.Context, opts MeetingTransitionOptions) (domain.Meeting, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Meeting{}, err
	}
	cfg, err := e.ConfigFor(ctx, tc.TenantID)
	if err != nil {
		return domain.Meeting{}, err
	}
	var out domain.Meeting
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := repo.Meetings.FindByID(ctx, tx, tc.TenantID, opts.ID)
		if err != nil {
			return err
		}
		sessions, err := repo.Sessions.FindByParentID(ctx, tx, tc.TenantID, opts.ID)
		if err != nil {
			return err
		}
		next, err := compliance.ValidateMeetingTransition(cur.Value, compliance.MeetingTransition{
			To:             opts.To,
			Now:            e.now(),
			NoticeHours:    cfg.Meetings.NoticeHours,
			NoticePostedAt: opts.NoticePostedAt,
			Sessions:       sessions,
		})
		if err != nil {
			return err
		}
		if _, err := repo.Meetings.Update(ctx, tx, tc.TenantID, next, cur.Version); err != nil {
			return err
		}
		out = next
		return e.Events.Append(ctx, tx, tc, "meeting.transitioned", "meeting", next.ID, events.EventPayload{
			"from": cur.Value.Status, "to": next.Status,
		})
	})
	if err == nil {
		e.Metrics.Transition("meeting", string(out.Status))
	}
	return out, err
}

// RecordAttendance sets a member's attendance, replacing any earlier entry.
func (e Engine) RecordAttendance(ctx context.Context, meetingID, memberID string, status domain.AttendanceStatus) (domain.MeetingAttendance, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.MeetingAttendance{}, err
	}
	switch status {
	case domain.AttendancePresent, domain.AttendanceLate, domain.AttendanceAbsent, domain.AttendanceExcused:
	default:
		return domain.MeetingAttendance{}, errors.New("invalid attendance status")
	}
	if memberID == "" {
		return domain.MeetingAttendance{}, errors.New("member_id is required")
	}
	a := domain.MeetingAttendance{
		ID:        meetingID + ":" + memberID,
		MeetingID: meetingID,
		MemberID:  memberID,
		Status:    status,
	}
	if status.CountsTowardQuorum() {
		now := e.now()
		a.ArrivedAt = &now
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := repo.Meetings.FindByID(ctx, tx, tc.TenantID, meetingID); err != nil {
			return err
		}
		prev, err := repo.Attendance.FindByID(ctx, tx, tc.TenantID, a.ID)
		switch {
		case err == nil:
			if prev.Value.ArrivedAt != nil && a.ArrivedAt != nil {
				a.ArrivedAt = prev.Value.ArrivedAt
			}
			_, err = repo.Attendance.Update(ctx, tx, tc.TenantID, a, prev.Version)
		case errors.Is(err, repo.ErrNotFound):
			_, err = repo.Attendance.Create(ctx, tx, tc.TenantID, a)
		}
		if err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "attendance.recorded", "meeting", meetingID, events.EventPayload{
			"member_id": memberID, "status": status,
		})
	})
	return a, err
}

// RecordRecusal records a conflict of interest. An empty agendaItemID
// recuses the member from the whole meeting.
func (e Engine) RecordRecusal(ctx context.Context, meetingID, memberID, agendaItemID, reason string) (domain.MemberRecusal, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.MemberRecusal{}, err
	}
	if memberID == "" {
		return domain.MemberRecusal{}, errors.New("member_id is required")
	}
	r := domain.MemberRecusal{
		ID:           newID(""),
		MeetingID:    meetingID,
		MemberID:     memberID,
		AgendaItemID: agendaItemID,
		Reason:       reason,
		RecordedAt:   e.now(),
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := repo.Meetings.FindByID(ctx, tx, tc.TenantID, meetingID); err != nil {
			return err
		}
		if agendaItemID != "" {
			if err := ensureItemInMeeting(ctx, tx, tc.TenantID, meetingID, agendaItemID); err != nil {
				return err
			}
		}
		if _, err := repo.Recusals.Create(ctx, tx, tc.TenantID, r); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "recusal.recorded", "meeting", meetingID, events.EventPayload{
			"member_id": memberID, "agenda_item_id": agendaItemID, "reason": reason,
		})
	})
	return r, err
}

// Quorum evaluates quorum for a meeting, or for one agenda item.
func (e Engine) Quorum(ctx context.Context, meetingID, agendaItemID string) (quorum.Result, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return quorum.Result{}, err
	}
	return e.quorum(ctx, e.DB, tc.TenantID, meetingID, agendaItemID)
}

func (e Engine) quorum(ctx context.Context, q repo.DBTX, tenantID, meetingID, agendaItemID string) (quorum.Result, error) {
	m, err := repo.Meetings.FindByID(ctx, q, tenantID, meetingID)
	if err != nil {
		return quorum.Result{}, err
	}
	body, err := repo.Bodies.FindByID(ctx, q, tenantID, m.Value.BodyID)
	if err != nil {
		return quorum.Result{}, err
	}
	attendance, err := repo.Attendance.FindByParentID(ctx, q, tenantID, meetingID)
	if err != nil {
		return quorum.Result{}, err
	}
	recusals, err := repo.Recusals.FindByParentID(ctx, q, tenantID, meetingID)
	if err != nil {
		return quorum.Result{}, err
	}
	return quorum.Calculate(body.Value, attendance, recusals, agendaItemID), nil
}
