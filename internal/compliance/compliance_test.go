package compliance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townbox/internal/domain"
	"townbox/internal/quorum"
	"townbox/internal/statemachine"
)

var start = time.Date(2025, 3, 10, 19, 0, 0, 0, time.UTC)

func TestCheckNoticeTiming(t *testing.T) {
	m := domain.Meeting{ID: "m1", ScheduledStart: start}
	tests := []struct {
		name   string
		meet   domain.Meeting
		posted time.Time
		hours  float64
		valid  bool
	}{
		{"exactly 48 hours", m, start.Add(-48 * time.Hour), 0, true},
		{"one minute short", m, start.Add(-48*time.Hour + time.Minute), 0, false},
		{"over a weekend counts raw hours", m, time.Date(2025, 3, 8, 19, 0, 0, 0, time.UTC), 48, true},
		{"custom threshold", m, start.Add(-50 * time.Hour), 72, false},
		{"emergency exempt", domain.Meeting{ScheduledStart: start, IsEmergency: true}, start.Add(-time.Hour), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckNoticeTiming(tt.meet, tt.posted, tt.hours)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.Equal(t, CodeInsufficientNotice, res.ErrorCode)
				assert.Equal(t, CiteNotice, res.StatutoryCite)
				assert.Contains(t, res.Details, "elapsed_hours")
			}
		})
	}
}

func TestCheckVoteAllowed(t *testing.T) {
	assert.True(t, CheckVoteAllowed(nil).Valid)
	assert.True(t, CheckVoteAllowed([]domain.ExecutiveSession{{ID: "s1", Status: domain.SessionEnded}}).Valid)

	res := CheckVoteAllowed([]domain.ExecutiveSession{
		{ID: "s1", Status: domain.SessionCertified},
		{ID: "s2", Status: domain.SessionInSession},
	})
	assert.False(t, res.Valid)
	assert.Equal(t, CodeVoteDuringExecutiveSession, res.ErrorCode)
	assert.Equal(t, "s2", res.Details["session_id"])
}

func TestCheckAllSessionsCertified(t *testing.T) {
	tests := []struct {
		status domain.ExecutiveSessionStatus
		valid  bool
	}{
		{domain.SessionCertified, true},
		{domain.SessionCancelled, true},
		{domain.SessionEnded, false},
		{domain.SessionInSession, false},
		{domain.SessionPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			res := CheckAllSessionsCertified([]domain.ExecutiveSession{
				{ID: "ok", Status: domain.SessionCertified},
				{ID: "s", Status: tt.status},
			})
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.Equal(t, CodeExecutiveSessionNotCertified, res.ErrorCode)
			}
		})
	}
	assert.True(t, CheckAllSessionsCertified(nil).Valid)
}

func TestApplyRecusal(t *testing.T) {
	recusals := []domain.MemberRecusal{
		{MemberID: "wide"},
		{MemberID: "item", AgendaItemID: "item-1"},
	}
	for _, requested := range []domain.VoteValue{domain.VoteYea, domain.VoteNay, domain.VoteAbstain} {
		vote := domain.VoteRecord{MemberID: "wide", Vote: requested}
		got := ApplyRecusal(vote, recusals, "item-1")
		assert.Equal(t, domain.VoteRecused, got.Vote)
		assert.Equal(t, requested, got.RequestedVote)
		assert.Equal(t, requested, vote.Vote, "input must not change")

		got = ApplyRecusal(domain.VoteRecord{MemberID: "item", Vote: requested}, recusals, "item-1")
		assert.Equal(t, domain.VoteRecused, got.Vote)
	}

	got := ApplyRecusal(domain.VoteRecord{MemberID: "item", Vote: domain.VoteYea}, recusals, "item-2")
	assert.Equal(t, domain.VoteYea, got.Vote)
	assert.Empty(t, got.RequestedVote)
}

func TestCheckQuorumAndSecond(t *testing.T) {
	res := CheckQuorum(quorum.Result{RequiredForQuorum: 4, EligibleVoters: 3})
	assert.False(t, res.Valid)
	assert.Equal(t, CodeQuorumNotMet, res.ErrorCode)
	assert.Equal(t, 3, res.Details["eligible_voters"])
	assert.True(t, CheckQuorum(quorum.Result{RequiredForQuorum: 4, EligibleVoters: 4, IsQuorumMet: true}).Valid)

	assert.False(t, CheckActionSeconded(domain.Action{Type: domain.ActionMotion}).Valid)
	assert.True(t, CheckActionSeconded(domain.Action{Type: domain.ActionMotion, SecondedBy: "m2"}).Valid)
	assert.True(t, CheckActionSeconded(domain.Action{Type: domain.ActionResolution}).Valid)
}

func TestAssertCompliance(t *testing.T) {
	assert.NoError(t, AssertCompliance(Result{Valid: true}))

	err := AssertCompliance(CheckVoteAllowed([]domain.ExecutiveSession{{ID: "s", Status: domain.SessionInSession}}))
	var ce *ComplianceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CodeVoteDuringExecutiveSession, ce.Code)
	assert.Equal(t, CiteFinalAction, ce.StatutoryCite)
	assert.Contains(t, err.Error(), "VOTE_DURING_EXECUTIVE_SESSION")
}

func TestValidateMeetingTransition(t *testing.T) {
	now := start.Add(-72 * time.Hour)
	m := domain.Meeting{ID: "m1", Status: domain.MeetingScheduled, ScheduledStart: start}

	t.Run("notice posted with enough lead", func(t *testing.T) {
		out, err := ValidateMeetingTransition(m, MeetingTransition{To: domain.MeetingNoticed, Now: now})
		require.NoError(t, err)
		assert.Equal(t, domain.MeetingNoticed, out.Status)
		require.NotNil(t, out.NoticePostedAt)
		assert.Equal(t, now, *out.NoticePostedAt)
		assert.Equal(t, domain.MeetingScheduled, m.Status)
	})

	t.Run("late notice rejected", func(t *testing.T) {
		_, err := ValidateMeetingTransition(m, MeetingTransition{To: domain.MeetingNoticed, Now: start.Add(-24 * time.Hour)})
		var ce *ComplianceError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, CodeInsufficientNotice, ce.Code)
	})

	t.Run("table enforced", func(t *testing.T) {
		_, err := ValidateMeetingTransition(m, MeetingTransition{To: domain.MeetingAdjourned, Now: now})
		var ite *statemachine.InvalidTransitionError
		require.True(t, errors.As(err, &ite))
		assert.Equal(t, []string{"NOTICED", "CANCELLED"}, ite.Allowed)
	})

	t.Run("adjourn requires certification", func(t *testing.T) {
		live := domain.Meeting{ID: "m1", Status: domain.MeetingInProgress, ScheduledStart: start}
		sessions := []domain.ExecutiveSession{{ID: "s1", Status: domain.SessionEnded}}
		_, err := ValidateMeetingTransition(live, MeetingTransition{To: domain.MeetingAdjourned, Now: start, Sessions: sessions})
		var ce *ComplianceError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, CodeExecutiveSessionNotCertified, ce.Code)

		sessions[0].Status = domain.SessionCertified
		out, err := ValidateMeetingTransition(live, MeetingTransition{To: domain.MeetingAdjourned, Now: start, Sessions: sessions})
		require.NoError(t, err)
		assert.Equal(t, domain.MeetingAdjourned, out.Status)
		require.NotNil(t, out.AdjournedAt)
	})
}

func TestValidateMinutesTransition(t *testing.T) {
	pending := domain.Minutes{ID: "min1", Status: domain.MinutesPendingApproval}
	now := start.Add(24 * time.Hour)

	for _, blocking := range []domain.ExecutiveSessionStatus{domain.SessionEnded, domain.SessionInSession} {
		_, err := ValidateMinutesTransition(pending, domain.MinutesApproved,
			[]domain.ExecutiveSession{{ID: "s1", Status: blocking}}, now)
		var ce *ComplianceError
		require.True(t, errors.As(err, &ce), string(blocking))
		assert.Equal(t, CodeExecutiveSessionNotCertified, ce.Code)
	}

	out, err := ValidateMinutesTransition(pending, domain.MinutesApproved, []domain.ExecutiveSession{
		{ID: "s1", Status: domain.SessionCertified},
		{ID: "s2", Status: domain.SessionCancelled},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.MinutesApproved, out.Status)
	require.NotNil(t, out.ApprovedAt)
	assert.Equal(t, now, *out.ApprovedAt)

	_, err = ValidateMinutesTransition(domain.Minutes{Status: domain.MinutesDraft}, domain.MinutesApproved, nil, now)
	var ite *statemachine.InvalidTransitionError
	assert.True(t, errors.As(err, &ite))
}

func TestExecutiveSessionGates(t *testing.T) {
	live := domain.Meeting{ID: "m1", Status: domain.MeetingInProgress}
	s := domain.ExecutiveSession{ID: "s1", MeetingID: "m1", Reason: "LITIGATION", Status: domain.SessionPending}

	t.Run("meeting must be in progress", func(t *testing.T) {
		_, err := ValidateExecutiveSessionStart(domain.Meeting{Status: domain.MeetingRecessed}, s, start)
		var ce *ComplianceError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, CodeMeetingNotInProgress, ce.Code)
	})

	t.Run("reason must be enumerated", func(t *testing.T) {
		bad := s
		bad.Reason = "BUDGET_CHAT"
		_, err := ValidateExecutiveSessionStart(live, bad, start)
		var ce *ComplianceError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, CodeInvalidSessionReason, ce.Code)
	})

	t.Run("full lifecycle", func(t *testing.T) {
		got, err := ValidateExecutiveSessionTransition(live, s, domain.SessionInSession, "clerk", start)
		require.NoError(t, err)
		require.NotNil(t, got.StartedAt)
		assert.Equal(t, domain.SessionInSession, got.Status)

		got, err = ValidateExecutiveSessionTransition(live, got, domain.SessionEnded, "clerk", start.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, domain.SessionEnded, got.Status)
		require.NotNil(t, got.EndedAt)

		got, err = ValidateExecutiveSessionTransition(live, got, domain.SessionCertified, "chair", start.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "chair", got.CertifiedBy)
		require.NotNil(t, got.CertifiedAt)
	})
}

func TestVotingGates(t *testing.T) {
	met := quorum.Result{RequiredForQuorum: 3, EligibleVoters: 4, IsQuorumMet: true}
	motion := domain.Action{ID: "a1", AgendaItemID: "item-1", Type: domain.ActionMotion, MovedBy: "m1", Status: domain.ActionPending}

	_, err := ValidateOpenVoting(motion, nil, met, start)
	var ce *ComplianceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CodeMotionNotSeconded, ce.Code)

	motion.SecondedBy = "m2"
	_, err = ValidateOpenVoting(motion, []domain.ExecutiveSession{{Status: domain.SessionInSession}}, met, start)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CodeVoteDuringExecutiveSession, ce.Code)

	_, err = ValidateOpenVoting(motion, nil, quorum.Result{RequiredForQuorum: 3, EligibleVoters: 2}, start)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CodeQuorumNotMet, ce.Code)

	open, err := ValidateOpenVoting(motion, nil, met, start)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionVoting, open.Status)

	_, err = PrepareVote(motion, domain.VoteRecord{MemberID: "m1", Vote: domain.VoteYea}, nil, nil)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CodeVotingNotOpen, ce.Code)

	recusals := []domain.MemberRecusal{{MemberID: "m3", AgendaItemID: "item-1"}}
	var votes []domain.VoteRecord
	for _, v := range []domain.VoteRecord{
		{MemberID: "m1", Vote: domain.VoteYea},
		{MemberID: "m2", Vote: domain.VoteYea},
		{MemberID: "m3", Vote: domain.VoteYea},
		{MemberID: "m4", Vote: domain.VoteNay},
	} {
		rec, err := PrepareVote(open, v, nil, recusals)
		require.NoError(t, err)
		assert.Equal(t, "a1", rec.ActionID)
		votes = append(votes, rec)
	}
	assert.Equal(t, domain.VoteRecused, votes[2].Vote)
	assert.Equal(t, domain.VoteYea, votes[2].RequestedVote)

	closed, err := CloseVoting(open, votes, nil, recusals, 0, start)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPassed, closed.Status)
	require.NotNil(t, closed.Tally)
	assert.Equal(t, 2, closed.Tally.Yea)
	assert.Equal(t, 1, closed.Tally.Recused)

	failed, err := CloseVoting(open, votes, nil, recusals, 0.75, start)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionFailed, failed.Status)
}

func TestSessionReasonCodesSorted(t *testing.T) {
	codes := SessionReasonCodes()
	require.Len(t, codes, len(SessionReasons))
	assert.IsIncreasing(t, codes)
}
