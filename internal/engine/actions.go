package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"townbox/internal/compliance"
	"townbox/internal/domain"
	"townbox/internal/events"
	"townbox/internal/repo"
	"townbox/internal/statemachine"
	"townbox/internal/tenant"
)

type ActionCreateOptions struct {
	ID           string
	MeetingID    string
	AgendaItemID string
	Type         domain.ActionType
	Description  string
	MovedBy      string
}

func (e Engine) CreateAction(ctx context.Context, opts ActionCreateOptions) (domain.Action, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Action{}, err
	}
	switch opts.Type {
	case "":
		opts.Type = domain.ActionMotion
	case domain.ActionMotion, domain.ActionResolution, domain.ActionOrdinance, domain.ActionConsent:
	default:
		return domain.Action{}, errors.New("invalid action type")
	}
	if strings.TrimSpace(opts.Description) == "" {
		return domain.Action{}, errors.New("description is required")
	}
	now := e.now()
	a := domain.Action{
		ID:           newID(opts.ID),
		MeetingID:    opts.MeetingID,
		AgendaItemID: opts.AgendaItemID,
		Type:         opts.Type,
		Description:  opts.Description,
		MovedBy:      opts.MovedBy,
		Status:       domain.ActionPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := repo.Meetings.FindByID(ctx, tx, tc.TenantID, opts.MeetingID); err != nil {
			return err
		}
		if opts.AgendaItemID != "" {
			if err := ensureItemInMeeting(ctx, tx, tc.TenantID, opts.MeetingID, opts.AgendaItemID); err != nil {
				return err
			}
		}
		if _, err := repo.Actions.Create(ctx, tx, tc.TenantID, a); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "action.created", "action", a.ID, events.EventPayload{
			"meeting_id": a.MeetingID, "type": a.Type, "moved_by": a.MovedBy,
		})
	})
	return a, err
}

func (e Engine) GetAction(ctx context.Context, id string) (domain.Action, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Action{}, err
	}
	v, err := repo.Actions.FindByID(ctx, e.DB, tc.TenantID, id)
	return v.Value, err
}

// updateAction loads the action, lets fn produce the next value and
// persists it with an audit event of type evtType.
func (e Engine) updateAction(ctx context.Context, id, evtType string, fn func(tx *sql.Tx, tc tenant.Context, cur domain.Action) (domain.Action, events.EventPayload, error)) (domain.Action, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Action{}, err
	}
	var out domain.Action
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := repo.Actions.FindByID(ctx, tx, tc.TenantID, id)
		if err != nil {
			return err
		}
		next, payload, err := fn(tx, tc, cur.Value)
		if err != nil {
			return err
		}
		if _, err := repo.Actions.Update(ctx, tx, tc.TenantID, next, cur.Version); err != nil {
			return err
		}
		out = next
		if payload == nil {
			payload = events.EventPayload{}
		}
		payload["status"] = next.Status
		return e.Events.Append(ctx, tx, tc, evtType, "action", id, payload)
	})
	if err == nil && out.Status != "" {
		e.Metrics.Transition("action", string(out.Status))
	}
	return out, err
}

// SecondAction records the seconding member on a pending action.
func (e Engine) SecondAction(ctx context.Context, id, memberID string) (domain.Action, error) {
	if memberID == "" {
		return domain.Action{}, errors.New("member_id is required")
	}
	return e.updateAction(ctx, id, "action.seconded", func(_ *sql.Tx, _ tenant.Context, a domain.Action) (domain.Action, events.EventPayload, error) {
		if a.Status != domain.ActionPending {
			return a, nil, errors.New("only a PENDING action can be seconded")
		}
		if memberID == a.MovedBy {
			return a, nil, errors.New("the mover cannot second their own motion")
		}
		a.SecondedBy = memberID
		a.UpdatedAt = e.now()
		return a, events.EventPayload{"seconded_by": memberID}, nil
	})
}

// OpenVoting moves an action to VOTING after the second, executive session
// and quorum gates pass.
func (e Engine) OpenVoting(ctx context.Context, id string) (domain.Action, error) {
	return e.updateAction(ctx, id, "action.voting_opened", func(tx *sql.Tx, tc tenant.Context, a domain.Action) (domain.Action, events.EventPayload, error) {
		sessions, err := repo.Sessions.FindByParentID(ctx, tx, tc.TenantID, a.MeetingID)
		if err != nil {
			return a, nil, err
		}
		q, err := e.quorum(ctx, tx, tc.TenantID, a.MeetingID, a.AgendaItemID)
		if err != nil {
			return a, nil, err
		}
		next, err := compliance.ValidateOpenVoting(a, sessions, q, e.now())
		if err != nil {
			return a, nil, err
		}
		return next, events.EventPayload{"eligible_voters": q.EligibleVoters, "present": q.PresentMembers}, nil
	})
}

// CastVote records one member's vote. A member recused for the meeting or
// the action's agenda item is recorded as RECUSED.
func (e Engine) CastVote(ctx context.Context, actionID, memberID string, vote domain.VoteValue) (domain.VoteRecord, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.VoteRecord{}, err
	}
	switch vote {
	case domain.VoteYea, domain.VoteNay, domain.VoteAbstain, domain.VoteAbsent, domain.VoteRecused:
	default:
		return domain.VoteRecord{}, errors.New("invalid vote")
	}
	if memberID == "" {
		return domain.VoteRecord{}, errors.New("member_id is required")
	}
	var out domain.VoteRecord
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := repo.Actions.FindByID(ctx, tx, tc.TenantID, actionID)
		if err != nil {
			return err
		}
		sessions, err := repo.Sessions.FindByParentID(ctx, tx, tc.TenantID, a.Value.MeetingID)
		if err != nil {
			return err
		}
		recusals, err := repo.Recusals.FindByParentID(ctx, tx, tc.TenantID, a.Value.MeetingID)
		if err != nil {
			return err
		}
		rec, err := compliance.PrepareVote(a.Value, domain.VoteRecord{
			ID:         actionID + ":" + memberID,
			MemberID:   memberID,
			Vote:       vote,
			RecordedAt: e.now(),
		}, sessions, recusals)
		if err != nil {
			return err
		}
		if _, err := repo.Votes.Create(ctx, tx, tc.TenantID, rec); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return errors.New("member has already voted on this action: " + memberID)
			}
			return err
		}
		out = rec
		return e.Events.Append(ctx, tx, tc, "vote.recorded", "action", actionID, events.EventPayload{
			"member_id": memberID, "vote": rec.Vote, "requested_vote": rec.RequestedVote,
		})
	})
	if err == nil {
		e.Metrics.Vote(string(out.Vote))
	}
	return out, err
}

func (e Engine) ListVotes(ctx context.Context, actionID string) ([]domain.VoteRecord, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Votes.FindByParentID(ctx, e.DB, tc.TenantID, actionID)
}

// CloseVoting tallies the votes cast and settles the action as PASSED or
// FAILED against the tenant's pass threshold.
func (e Engine) CloseVoting(ctx context.Context, id string) (domain.Action, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Action{}, err
	}
	cfg, err := e.ConfigFor(ctx, tc.TenantID)
	if err != nil {
		return domain.Action{}, err
	}
	return e.updateAction(ctx, id, "action.voting_closed", func(tx *sql.Tx, tc tenant.Context, a domain.Action) (domain.Action, events.EventPayload, error) {
		votes, err := repo.Votes.FindByParentID(ctx, tx, tc.TenantID, a.ID)
		if err != nil {
			return a, nil, err
		}
		sessions, err := repo.Sessions.FindByParentID(ctx, tx, tc.TenantID, a.MeetingID)
		if err != nil {
			return a, nil, err
		}
		recusals, err := repo.Recusals.FindByParentID(ctx, tx, tc.TenantID, a.MeetingID)
		if err != nil {
			return a, nil, err
		}
		next, err := compliance.CloseVoting(a, votes, sessions, recusals, cfg.Voting.PassThreshold, e.now())
		if err != nil {
			return a, nil, err
		}
		return next, events.EventPayload{"tally": next.Tally}, nil
	})
}

func (e Engine) WithdrawAction(ctx context.Context, id string) (domain.Action, error) {
	return e.updateAction(ctx, id, "action.withdrawn", func(_ *sql.Tx, _ tenant.Context, a domain.Action) (domain.Action, events.EventPayload, error) {
		if err := statemachine.Action.Validate(a.Status, domain.ActionWithdrawn); err != nil {
			return a, nil, err
		}
		a.Status = domain.ActionWithdrawn
		a.UpdatedAt = e.now()
		return a, nil, nil
	})
}
