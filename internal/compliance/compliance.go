// Package compliance checks public-meeting actions against Open Door Law
// requirements. Checks return a Result and never fail on their own;
// AssertCompliance turns a failing Result into a *ComplianceError.
package compliance

import (
	"fmt"
	"time"

	"townbox/internal/domain"
	"townbox/internal/quorum"
)

// DefaultNoticeHours is the minimum lead between posting notice and the
// scheduled start of a non-emergency meeting.
const DefaultNoticeHours = 48

type Code string

const (
	CodeInsufficientNotice           Code = "INSUFFICIENT_NOTICE"
	CodeVoteDuringExecutiveSession   Code = "VOTE_DURING_EXECUTIVE_SESSION"
	CodeExecutiveSessionNotCertified Code = "EXECUTIVE_SESSION_NOT_CERTIFIED"
	CodeQuorumNotMet                 Code = "QUORUM_NOT_MET"
	CodeMotionNotSeconded            Code = "MOTION_NOT_SECONDED"
	CodeMeetingNotInProgress         Code = "MEETING_NOT_IN_PROGRESS"
	CodeInvalidSessionReason         Code = "INVALID_EXECUTIVE_SESSION_REASON"
	CodeVotingNotOpen                Code = "VOTING_NOT_OPEN"
)

const (
	CiteNotice           = "IC 5-14-1.5-5"
	CiteExecutiveSession = "IC 5-14-1.5-6.1"
	CiteFinalAction      = "IC 5-14-1.5-6.1(c)"
	CiteCertification    = "IC 5-14-1.5-6.1(d)"
	CiteQuorum           = "IC 5-14-1.5-2(c)"
)

type Result struct {
	Valid         bool           `json:"valid"`
	ErrorCode     Code           `json:"error_code,omitempty"`
	StatutoryCite string         `json:"statutory_cite,omitempty"`
	Message       string         `json:"message,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

func pass(details map[string]any) Result {
	return Result{Valid: true, Details: details}
}

func fail(code Code, cite, msg string, details map[string]any) Result {
	return Result{Valid: false, ErrorCode: code, StatutoryCite: cite, Message: msg, Details: details}
}

type ComplianceError struct {
	Code          Code
	StatutoryCite string
	Message       string
	Details       map[string]any
}

func (e *ComplianceError) Error() string {
	if e.StatutoryCite != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.StatutoryCite)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AssertCompliance returns nil for a valid result.
func AssertCompliance(r Result) error {
	if r.Valid {
		return nil
	}
	return &ComplianceError{Code: r.ErrorCode, StatutoryCite: r.StatutoryCite, Message: r.Message, Details: r.Details}
}

// CheckNoticeTiming compares the raw elapsed hours between posting and the
// scheduled start against requiredHours (DefaultNoticeHours when <= 0).
// Weekends and holidays are not excluded. Emergency meetings are exempt.
func CheckNoticeTiming(meeting domain.Meeting, noticePostedAt time.Time, requiredHours float64) Result {
	if requiredHours <= 0 {
		requiredHours = DefaultNoticeHours
	}
	if meeting.IsEmergency {
		return pass(map[string]any{"emergency": true})
	}
	elapsed := meeting.ScheduledStart.Sub(noticePostedAt).Hours()
	details := map[string]any{
		"elapsed_hours":  elapsed,
		"required_hours": requiredHours,
	}
	if elapsed < requiredHours {
		return fail(CodeInsufficientNotice, CiteNotice,
			fmt.Sprintf("notice must be posted at least %.0f hours before the meeting; %.1f hours given", requiredHours, elapsed),
			details)
	}
	return pass(details)
}

// CheckVoteAllowed fails while any executive session of the meeting is in
// progress.
func CheckVoteAllowed(sessions []domain.ExecutiveSession) Result {
	for _, s := range sessions {
		if s.Status == domain.SessionInSession {
			return fail(CodeVoteDuringExecutiveSession, CiteFinalAction,
				"final action may not be taken during an executive session",
				map[string]any{"session_id": s.ID})
		}
	}
	return pass(nil)
}

// CheckAllSessionsCertified passes only when every session is CERTIFIED or
// CANCELLED. A session still PENDING must be cancelled first.
func CheckAllSessionsCertified(sessions []domain.ExecutiveSession) Result {
	var open []map[string]any
	for _, s := range sessions {
		switch s.Status {
		case domain.SessionCertified, domain.SessionCancelled:
		default:
			open = append(open, map[string]any{"session_id": s.ID, "status": string(s.Status)})
		}
	}
	if len(open) > 0 {
		return fail(CodeExecutiveSessionNotCertified, CiteCertification,
			"every executive session must be certified or cancelled",
			map[string]any{"uncertified": open})
	}
	return pass(nil)
}

// ApplyRecusal returns the vote with its value forced to RECUSED when the
// member has a recusal for agendaItemID or the whole meeting. The requested
// value is kept in RequestedVote. The input is not modified.
func ApplyRecusal(vote domain.VoteRecord, recusals []domain.MemberRecusal, agendaItemID string) domain.VoteRecord {
	out := vote
	if !quorum.IsRecused(recusals, vote.MemberID, agendaItemID) {
		return out
	}
	if out.RequestedVote == "" {
		out.RequestedVote = vote.Vote
	}
	out.Vote = domain.VoteRecused
	return out
}

func CheckQuorum(q quorum.Result) Result {
	details := map[string]any{
		"total_seats":         q.TotalSeats,
		"present_members":     q.PresentMembers,
		"recused_members":     q.RecusedMembers,
		"required_for_quorum": q.RequiredForQuorum,
		"eligible_voters":     q.EligibleVoters,
	}
	if !q.IsQuorumMet {
		return fail(CodeQuorumNotMet, CiteQuorum,
			fmt.Sprintf("%d eligible voters present; %d required", q.EligibleVoters, q.RequiredForQuorum),
			details)
	}
	return pass(details)
}

// CheckActionSeconded requires a seconder for motions. Other action types
// pass unconditionally.
func CheckActionSeconded(action domain.Action) Result {
	if action.Type == domain.ActionMotion && action.SecondedBy == "" {
		return fail(CodeMotionNotSeconded, "", "a motion requires a second before it can be voted on",
			map[string]any{"action_id": action.ID})
	}
	return pass(nil)
}
