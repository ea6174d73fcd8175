package compliance

import (
	"sort"
	"time"

	"townbox/internal/domain"
	"townbox/internal/quorum"
	"townbox/internal/statemachine"
)

// SessionReasons maps the statutory bases for an executive session to their
// citations.
var SessionReasons = map[string]string{
	"COLLECTIVE_BARGAINING": "IC 5-14-1.5-6.1(b)(2)(A)",
	"LITIGATION":            "IC 5-14-1.5-6.1(b)(2)(B)",
	"SECURITY":              "IC 5-14-1.5-6.1(b)(2)(C)",
	"REAL_PROPERTY":         "IC 5-14-1.5-6.1(b)(2)(D)",
	"ECONOMIC_DEVELOPMENT":  "IC 5-14-1.5-6.1(b)(2)(E)",
	"JOB_INTERVIEWS":        "IC 5-14-1.5-6.1(b)(5)",
	"CONFIDENTIAL_RECORDS":  "IC 5-14-1.5-6.1(b)(7)",
	"PERSONNEL_EVALUATION":  "IC 5-14-1.5-6.1(b)(9)",
}

// SessionReasonCodes lists the keys of SessionReasons, sorted.
func SessionReasonCodes() []string {
	out := make([]string, 0, len(SessionReasons))
	for k := range SessionReasons {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CheckSessionReason fails for a reason outside SessionReasons.
func CheckSessionReason(reason string) Result {
	if _, ok := SessionReasons[reason]; !ok {
		return fail(CodeInvalidSessionReason, CiteExecutiveSession,
			"executive sessions may only be held for an enumerated statutory reason",
			map[string]any{"reason": reason, "allowed": SessionReasonCodes()})
	}
	return pass(nil)
}

// MeetingTransition carries everything needed to move a meeting.
// NoticePostedAt defaults to Now when moving to NOTICED.
type MeetingTransition struct {
	To             domain.MeetingStatus
	Now            time.Time
	NoticeHours    float64
	NoticePostedAt *time.Time
	Sessions       []domain.ExecutiveSession
}

// ValidateMeetingTransition applies the table and the statutory gates and
// returns the updated meeting.
func ValidateMeetingTransition(m domain.Meeting, in MeetingTransition) (domain.Meeting, error) {
	if err := statemachine.Meeting.Validate(m.Status, in.To); err != nil {
		return m, err
	}
	out := m
	switch in.To {
	case domain.MeetingNoticed:
		posted := in.Now
		if in.NoticePostedAt != nil {
			posted = *in.NoticePostedAt
		}
		if err := AssertCompliance(CheckNoticeTiming(m, posted, in.NoticeHours)); err != nil {
			return m, err
		}
		out.NoticePostedAt = &posted
	case domain.MeetingInProgress:
		if out.StartedAt == nil {
			now := in.Now
			out.StartedAt = &now
		}
	case domain.MeetingAdjourned:
		if err := AssertCompliance(CheckAllSessionsCertified(in.Sessions)); err != nil {
			return m, err
		}
		now := in.Now
		out.AdjournedAt = &now
	case domain.MeetingDraft:
		out.NoticePostedAt = nil
	}
	out.Status = in.To
	out.UpdatedAt = in.Now
	return out, nil
}

// ValidateMinutesTransition gates approval on every executive session of the
// meeting being certified or cancelled.
func ValidateMinutesTransition(mins domain.Minutes, to domain.MinutesStatus, sessions []domain.ExecutiveSession, now time.Time) (domain.Minutes, error) {
	if err := statemachine.Minutes.Validate(mins.Status, to); err != nil {
		return mins, err
	}
	out := mins
	if to == domain.MinutesApproved {
		if err := AssertCompliance(CheckAllSessionsCertified(sessions)); err != nil {
			return mins, err
		}
		out.ApprovedAt = &now
	}
	out.Status = to
	out.UpdatedAt = now
	return out, nil
}

// ValidateExecutiveSessionStart convenes a pending session. The meeting
// itself must be in progress.
func ValidateExecutiveSessionStart(meeting domain.Meeting, s domain.ExecutiveSession, now time.Time) (domain.ExecutiveSession, error) {
	if err := statemachine.ExecutiveSession.Validate(s.Status, domain.SessionInSession); err != nil {
		return s, err
	}
	if meeting.Status != domain.MeetingInProgress {
		return s, &ComplianceError{
			Code:          CodeMeetingNotInProgress,
			StatutoryCite: CiteExecutiveSession,
			Message:       "an executive session can only convene during a meeting in progress",
			Details:       map[string]any{"meeting_id": meeting.ID, "meeting_status": string(meeting.Status)},
		}
	}
	if err := AssertCompliance(CheckSessionReason(s.Reason)); err != nil {
		return s, err
	}
	out := s
	out.Status = domain.SessionInSession
	out.StartedAt = &now
	return out, nil
}

// ValidateExecutiveSessionTransition moves a session to any state other
// than IN_SESSION, stamping end and certification details.
func ValidateExecutiveSessionTransition(meeting domain.Meeting, s domain.ExecutiveSession, to domain.ExecutiveSessionStatus, by string, now time.Time) (domain.ExecutiveSession, error) {
	if to == domain.SessionInSession {
		return ValidateExecutiveSessionStart(meeting, s, now)
	}
	if err := statemachine.ExecutiveSession.Validate(s.Status, to); err != nil {
		return s, err
	}
	out := s
	switch to {
	case domain.SessionEnded:
		out.EndedAt = &now
	case domain.SessionCertified:
		out.CertifiedAt = &now
		out.CertifiedBy = by
	}
	out.Status = to
	return out, nil
}

// ValidateOpenVoting opens the floor on an action: the motion must be
// seconded, no executive session may be in progress and quorum must hold.
func ValidateOpenVoting(a domain.Action, sessions []domain.ExecutiveSession, q quorum.Result, now time.Time) (domain.Action, error) {
	if err := statemachine.Action.Validate(a.Status, domain.ActionVoting); err != nil {
		return a, err
	}
	for _, r := range []Result{CheckActionSeconded(a), CheckVoteAllowed(sessions), CheckQuorum(q)} {
		if err := AssertCompliance(r); err != nil {
			return a, err
		}
	}
	out := a
	out.Status = domain.ActionVoting
	out.UpdatedAt = now
	return out, nil
}

// PrepareVote checks a vote can be cast on the action and applies any
// recusal. The returned record is what gets persisted.
func PrepareVote(a domain.Action, vote domain.VoteRecord, sessions []domain.ExecutiveSession, recusals []domain.MemberRecusal) (domain.VoteRecord, error) {
	if a.Status != domain.ActionVoting {
		return vote, &ComplianceError{
			Code:    CodeVotingNotOpen,
			Message: "votes can only be recorded while the action is open for voting",
			Details: map[string]any{"action_id": a.ID, "action_status": string(a.Status)},
		}
	}
	if err := AssertCompliance(CheckVoteAllowed(sessions)); err != nil {
		return vote, err
	}
	out := ApplyRecusal(vote, recusals, a.AgendaItemID)
	out.ActionID = a.ID
	return out, nil
}

// CloseVoting tallies the recorded votes and moves the action to PASSED or
// FAILED. A threshold <= 0 uses quorum.DefaultPassThreshold.
func CloseVoting(a domain.Action, votes []domain.VoteRecord, sessions []domain.ExecutiveSession, recusals []domain.MemberRecusal, threshold float64, now time.Time) (domain.Action, error) {
	if threshold <= 0 {
		threshold = quorum.DefaultPassThreshold
	}
	if err := AssertCompliance(CheckVoteAllowed(sessions)); err != nil {
		return a, err
	}
	tally := quorum.TallyWithThreshold(votes, quorum.MatchingRecusals(recusals, a.AgendaItemID), threshold)
	to := domain.ActionFailed
	if tally.Passed {
		to = domain.ActionPassed
	}
	if err := statemachine.Action.Validate(a.Status, to); err != nil {
		return a, err
	}
	out := a
	out.Status = to
	out.Tally = &tally
	out.UpdatedAt = now
	return out, nil
}
