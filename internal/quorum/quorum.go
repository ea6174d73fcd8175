// Package quorum computes whether a governing body can act and how a vote
// came out, with recused members excluded.
package quorum

import "townbox/internal/domain"

// DefaultPassThreshold is the share of yea votes among voting members that
// must be exceeded for an action to pass.
const DefaultPassThreshold = 0.5

type Result struct {
	TotalSeats        int  `json:"total_seats"`
	PresentMembers    int  `json:"present_members"`
	RecusedMembers    int  `json:"recused_members"`
	RequiredForQuorum int  `json:"required_for_quorum"`
	EligibleVoters    int  `json:"eligible_voters"`
	IsQuorumMet       bool `json:"is_quorum_met"`
}

// Required returns the number of seats that must be filled for the body to
// transact business.
func Required(body domain.GoverningBody) int {
	n := body.TotalSeats
	switch body.QuorumType {
	case domain.QuorumTwoThirds:
		return (2*n + 2) / 3
	case domain.QuorumSpecific:
		if body.QuorumNumber > 0 {
			return body.QuorumNumber
		}
	}
	return n/2 + 1
}

// MatchingRecusals keeps the recusals that apply to agendaItemID: those
// recorded against that item plus every meeting-wide recusal. An empty
// agendaItemID selects meeting-wide recusals only.
func MatchingRecusals(recusals []domain.MemberRecusal, agendaItemID string) []domain.MemberRecusal {
	var out []domain.MemberRecusal
	for _, r := range recusals {
		if r.IsMeetingWide() || (agendaItemID != "" && r.AgendaItemID == agendaItemID) {
			out = append(out, r)
		}
	}
	return out
}

// IsRecused reports whether memberID has a recusal applying to agendaItemID.
func IsRecused(recusals []domain.MemberRecusal, memberID, agendaItemID string) bool {
	for _, r := range MatchingRecusals(recusals, agendaItemID) {
		if r.MemberID == memberID {
			return true
		}
	}
	return false
}

// Calculate evaluates quorum for the meeting as a whole (agendaItemID empty)
// or for a single agenda item.
func Calculate(body domain.GoverningBody, attendance []domain.MeetingAttendance, recusals []domain.MemberRecusal, agendaItemID string) Result {
	present := 0
	for _, a := range attendance {
		if a.Status.CountsTowardQuorum() {
			present++
		}
	}
	recused := len(memberSet(MatchingRecusals(recusals, agendaItemID)))
	eligible := present - recused
	if eligible < 0 {
		eligible = 0
	}
	required := Required(body)
	return Result{
		TotalSeats:        body.TotalSeats,
		PresentMembers:    present,
		RecusedMembers:    recused,
		RequiredForQuorum: required,
		EligibleVoters:    eligible,
		IsQuorumMet:       eligible >= required,
	}
}

// Tally counts votes with the default pass threshold.
func Tally(votes []domain.VoteRecord, recusals []domain.MemberRecusal) domain.VoteTally {
	return TallyWithThreshold(votes, recusals, DefaultPassThreshold)
}

// TallyWithThreshold counts votes. Any vote cast by a member listed in
// recusals is counted as recused whatever value was stored; callers pass the
// recusals already filtered to the item being voted on.
func TallyWithThreshold(votes []domain.VoteRecord, recusals []domain.MemberRecusal, threshold float64) domain.VoteTally {
	recused := memberSet(recusals)
	var t domain.VoteTally
	for _, v := range votes {
		if _, ok := recused[v.MemberID]; ok {
			t.Recused++
			continue
		}
		switch v.Vote {
		case domain.VoteYea:
			t.Yea++
		case domain.VoteNay:
			t.Nay++
		case domain.VoteAbstain:
			t.Abstain++
		case domain.VoteAbsent:
			t.Absent++
		case domain.VoteRecused:
			t.Recused++
		}
	}
	t.VotingMembers = t.Yea + t.Nay
	t.Passed = t.VotingMembers > 0 && float64(t.Yea)/float64(t.VotingMembers) > threshold
	t.Margin = t.Yea - t.Nay
	return t
}

func memberSet(recusals []domain.MemberRecusal) map[string]struct{} {
	out := make(map[string]struct{}, len(recusals))
	for _, r := range recusals {
		out[r.MemberID] = struct{}{}
	}
	return out
}
