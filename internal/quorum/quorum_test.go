package quorum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townbox/internal/domain"
)

func attendance(statuses ...domain.AttendanceStatus) []domain.MeetingAttendance {
	out := make([]domain.MeetingAttendance, len(statuses))
	for i, s := range statuses {
		out[i] = domain.MeetingAttendance{MeetingID: "m1", MemberID: string(rune('a' + i)), Status: s}
	}
	return out
}

func TestRequired(t *testing.T) {
	tests := []struct {
		name string
		body domain.GoverningBody
		want int
	}{
		{"majority of seven", domain.GoverningBody{TotalSeats: 7, QuorumType: domain.QuorumMajority}, 4},
		{"majority of six", domain.GoverningBody{TotalSeats: 6, QuorumType: domain.QuorumMajority}, 4},
		{"two thirds of seven", domain.GoverningBody{TotalSeats: 7, QuorumType: domain.QuorumTwoThirds}, 5},
		{"two thirds of six", domain.GoverningBody{TotalSeats: 6, QuorumType: domain.QuorumTwoThirds}, 4},
		{"two thirds of five", domain.GoverningBody{TotalSeats: 5, QuorumType: domain.QuorumTwoThirds}, 4},
		{"specific", domain.GoverningBody{TotalSeats: 9, QuorumType: domain.QuorumSpecific, QuorumNumber: 3}, 3},
		{"specific without number", domain.GoverningBody{TotalSeats: 9, QuorumType: domain.QuorumSpecific}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Required(tt.body))
		})
	}
}

func TestCalculate(t *testing.T) {
	body := domain.GoverningBody{ID: "b1", TotalSeats: 7, QuorumType: domain.QuorumMajority}
	att := attendance(
		domain.AttendancePresent, domain.AttendancePresent, domain.AttendanceLate,
		domain.AttendancePresent, domain.AttendanceAbsent, domain.AttendanceExcused,
		domain.AttendancePresent,
	)

	t.Run("meeting wide", func(t *testing.T) {
		res := Calculate(body, att, nil, "")
		assert.Equal(t, Result{
			TotalSeats: 7, PresentMembers: 5, RecusedMembers: 0,
			RequiredForQuorum: 4, EligibleVoters: 5, IsQuorumMet: true,
		}, res)
	})

	t.Run("item recusals drop below quorum", func(t *testing.T) {
		recusals := []domain.MemberRecusal{
			{MemberID: "a", AgendaItemID: "item-1"},
			{MemberID: "b", AgendaItemID: "item-1"},
			{MemberID: "c", AgendaItemID: "item-2"},
		}
		res := Calculate(body, att, recusals, "item-1")
		assert.Equal(t, 2, res.RecusedMembers)
		assert.Equal(t, 3, res.EligibleVoters)
		assert.False(t, res.IsQuorumMet)

		res = Calculate(body, att, recusals, "")
		assert.Equal(t, 0, res.RecusedMembers)
		assert.True(t, res.IsQuorumMet)
	})

	t.Run("meeting wide recusal applies to every item", func(t *testing.T) {
		recusals := []domain.MemberRecusal{
			{MemberID: "a"},
			{MemberID: "a", AgendaItemID: "item-1"},
		}
		res := Calculate(body, att, recusals, "item-1")
		assert.Equal(t, 1, res.RecusedMembers)
		assert.Equal(t, 4, res.EligibleVoters)
		assert.True(t, res.IsQuorumMet)
	})

	t.Run("eligible voters never negative", func(t *testing.T) {
		recusals := []domain.MemberRecusal{{MemberID: "x"}, {MemberID: "y"}}
		res := Calculate(body, attendance(domain.AttendancePresent), recusals, "")
		assert.Equal(t, 0, res.EligibleVoters)
	})
}

func TestMatchingRecusals(t *testing.T) {
	recusals := []domain.MemberRecusal{
		{ID: "r1", MemberID: "a"},
		{ID: "r2", MemberID: "b", AgendaItemID: "item-1"},
		{ID: "r3", MemberID: "c", AgendaItemID: "item-2"},
	}
	got := MatchingRecusals(recusals, "item-1")
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ID)
	assert.Equal(t, "r2", got[1].ID)

	got = MatchingRecusals(recusals, "")
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)

	assert.True(t, IsRecused(recusals, "c", "item-2"))
	assert.False(t, IsRecused(recusals, "c", "item-1"))
}

func TestTally(t *testing.T) {
	votes := []domain.VoteRecord{
		{MemberID: "a", Vote: domain.VoteYea},
		{MemberID: "b", Vote: domain.VoteYea},
		{MemberID: "c", Vote: domain.VoteNay},
		{MemberID: "d", Vote: domain.VoteAbstain},
		{MemberID: "e", Vote: domain.VoteAbsent},
		{MemberID: "f", Vote: domain.VoteYea},
	}

	t.Run("recused member forced out of the count", func(t *testing.T) {
		got := Tally(votes, []domain.MemberRecusal{{MemberID: "f", AgendaItemID: "item-1"}})
		assert.Equal(t, domain.VoteTally{
			Yea: 2, Nay: 1, Abstain: 1, Absent: 1, Recused: 1,
			VotingMembers: 3, Passed: true, Margin: 1,
		}, got)
	})

	t.Run("tie fails", func(t *testing.T) {
		got := Tally(votes[:3], []domain.MemberRecusal{{MemberID: "a"}})
		assert.Equal(t, 1, got.Yea)
		assert.Equal(t, 1, got.Nay)
		assert.False(t, got.Passed)
		assert.Equal(t, 0, got.Margin)
	})

	t.Run("no voting members fails", func(t *testing.T) {
		got := Tally([]domain.VoteRecord{{MemberID: "a", Vote: domain.VoteAbstain}}, nil)
		assert.Equal(t, 0, got.VotingMembers)
		assert.False(t, got.Passed)
	})

	t.Run("stored recused value counts as recused", func(t *testing.T) {
		got := Tally([]domain.VoteRecord{{MemberID: "a", Vote: domain.VoteRecused}}, nil)
		assert.Equal(t, 1, got.Recused)
	})

	t.Run("supermajority threshold", func(t *testing.T) {
		got := TallyWithThreshold(votes, nil, 2.0/3.0)
		assert.Equal(t, 3, got.Yea)
		assert.Equal(t, 1, got.Nay)
		assert.True(t, got.Passed)

		got = TallyWithThreshold(votes[1:], nil, 2.0/3.0)
		assert.False(t, got.Passed)
	})
}
