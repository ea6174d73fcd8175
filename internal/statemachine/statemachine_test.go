package statemachine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townbox/internal/domain"
)

// exhaustive checks every (from, to) pair of a machine against its own table.
func exhaustive[S ~string](t *testing.T, m Machine[S], states []S) {
	t.Helper()
	require.ElementsMatch(t, states, m.States(), "table must cover every status")
	for _, from := range states {
		allowed := m.Allowed(from)
		for _, to := range states {
			legal := false
			for _, a := range allowed {
				if a == to {
					legal = true
				}
			}
			err := m.Validate(from, to)
			assert.Equal(t, legal, m.CanTransition(from, to), "%s -> %s", from, to)
			if legal {
				assert.NoError(t, err, "%s -> %s", from, to)
				continue
			}
			var ite *InvalidTransitionError
			if assert.True(t, errors.As(err, &ite), "%s -> %s", from, to) {
				assert.Equal(t, m.Entity(), ite.Entity)
				assert.Equal(t, string(from), ite.From)
				assert.Equal(t, string(to), ite.To)
				want := make([]string, len(allowed))
				for i, a := range allowed {
					want[i] = string(a)
				}
				assert.Equal(t, want, ite.Allowed)
			}
		}
	}
}

func TestTablesExhaustive(t *testing.T) {
	t.Run("meeting", func(t *testing.T) {
		exhaustive(t, Meeting, []domain.MeetingStatus{
			domain.MeetingDraft, domain.MeetingScheduled, domain.MeetingNoticed, domain.MeetingInProgress,
			domain.MeetingRecessed, domain.MeetingAdjourned, domain.MeetingCancelled,
		})
	})
	t.Run("agenda", func(t *testing.T) {
		exhaustive(t, Agenda, []domain.AgendaStatus{
			domain.AgendaDraft, domain.AgendaPendingReview, domain.AgendaApproved,
			domain.AgendaPublished, domain.AgendaAmended, domain.AgendaArchived,
		})
	})
	t.Run("agenda item", func(t *testing.T) {
		exhaustive(t, AgendaItem, []domain.AgendaItemStatus{
			domain.AgendaItemPending, domain.AgendaItemInDiscussion, domain.AgendaItemTabled,
			domain.AgendaItemDeferred, domain.AgendaItemActedOn, domain.AgendaItemWithdrawn,
		})
	})
	t.Run("executive session", func(t *testing.T) {
		exhaustive(t, ExecutiveSession, []domain.ExecutiveSessionStatus{
			domain.SessionPending, domain.SessionInSession, domain.SessionEnded,
			domain.SessionCertified, domain.SessionCancelled,
		})
	})
	t.Run("minutes", func(t *testing.T) {
		exhaustive(t, Minutes, []domain.MinutesStatus{
			domain.MinutesDraft, domain.MinutesPendingApproval, domain.MinutesApproved, domain.MinutesAmended,
		})
	})
	t.Run("action", func(t *testing.T) {
		exhaustive(t, Action, []domain.ActionStatus{
			domain.ActionPending, domain.ActionVoting, domain.ActionPassed,
			domain.ActionFailed, domain.ActionWithdrawn,
		})
	})
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, Meeting.IsTerminal(domain.MeetingAdjourned))
	assert.False(t, Meeting.IsTerminal(domain.MeetingCancelled))
	assert.True(t, Minutes.IsTerminal(domain.MinutesAmended))
	assert.True(t, ExecutiveSession.IsTerminal(domain.SessionCertified))
	assert.True(t, ExecutiveSession.IsTerminal(domain.SessionCancelled))
	assert.True(t, Action.IsTerminal(domain.ActionPassed))
	assert.False(t, Action.IsTerminal("BOGUS"))
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := Meeting.Validate(domain.MeetingAdjourned, domain.MeetingDraft)
	require.Error(t, err)
	assert.Equal(t, "invalid meeting transition ADJOURNED -> DRAFT (allowed: none)", err.Error())

	err = Minutes.Validate(domain.MinutesDraft, domain.MinutesApproved)
	assert.Equal(t, "invalid minutes transition DRAFT -> APPROVED (allowed: PENDING_APPROVAL)", err.Error())
}

func TestAllowedReturnsCopy(t *testing.T) {
	got := Meeting.Allowed(domain.MeetingDraft)
	got[0] = domain.MeetingAdjourned
	assert.True(t, Meeting.CanTransition(domain.MeetingDraft, domain.MeetingScheduled))
}
