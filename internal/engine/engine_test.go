package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townbox/internal/compliance"
	"townbox/internal/db"
	"townbox/internal/domain"
	"townbox/internal/engine"
	"townbox/internal/findings"
	"townbox/internal/metrics"
	"townbox/internal/migrate"
	"townbox/internal/repo"
	"townbox/internal/statemachine"
	"townbox/internal/tenant"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Clock  *time.Time
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	eng, err := engine.New(conn, nil)
	require.NoError(t, err)
	clock := time.Date(2025, 1, 2, 14, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return clock }
	eng.Metrics = metrics.New()
	ctx := tenant.With(context.Background(), tenant.Context{TenantID: "town-1", UserID: "clerk"})
	_, err = eng.InitTenant(ctx, "town-1", "Town of Testing", nil)
	require.NoError(t, err)
	return testEnv{Engine: eng, Ctx: ctx, Clock: &clock}
}

func complianceCode(t *testing.T, err error) compliance.Code {
	t.Helper()
	var ce *compliance.ComplianceError
	require.ErrorAs(t, err, &ce)
	return ce.Code
}

// seedMeeting creates a seven-seat body and a meeting one week out, moved
// to IN_PROGRESS with members m1..m5 present.
func seedMeeting(t *testing.T, env testEnv) domain.Meeting {
	t.Helper()
	body, err := env.Engine.CreateBody(env.Ctx, domain.GoverningBody{Name: "Town Council", TotalSeats: 7})
	require.NoError(t, err)
	m, err := env.Engine.CreateMeeting(env.Ctx, engine.MeetingCreateOptions{
		BodyID:         body.ID,
		Title:          "Regular meeting",
		ScheduledStart: time.Date(2025, 1, 9, 19, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	for _, to := range []domain.MeetingStatus{domain.MeetingScheduled, domain.MeetingNoticed, domain.MeetingInProgress} {
		m, err = env.Engine.TransitionMeeting(env.Ctx, engine.MeetingTransitionOptions{ID: m.ID, To: to})
		require.NoError(t, err, "to %s", to)
	}
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		_, err := env.Engine.RecordAttendance(env.Ctx, m.ID, id, domain.AttendancePresent)
		require.NoError(t, err)
	}
	_, err = env.Engine.RecordAttendance(env.Ctx, m.ID, "m6", domain.AttendanceAbsent)
	require.NoError(t, err)
	return m
}

func TestMeetingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	m := seedMeeting(t, env)
	assert.Equal(t, domain.MeetingInProgress, m.Status)
	require.NotNil(t, m.NoticePostedAt)
	require.NotNil(t, m.StartedAt)

	_, err := env.Engine.TransitionMeeting(env.Ctx, engine.MeetingTransitionOptions{ID: m.ID, To: domain.MeetingNoticed})
	var te *statemachine.InvalidTransitionError
	require.ErrorAs(t, err, &te)

	m, err = env.Engine.TransitionMeeting(env.Ctx, engine.MeetingTransitionOptions{ID: m.ID, To: domain.MeetingAdjourned})
	require.NoError(t, err)
	require.NotNil(t, m.AdjournedAt)

	stored, err := env.Engine.GetMeeting(env.Ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingAdjourned, stored.Status)
}

func TestNoticeTooShortIsRefused(t *testing.T) {
	env := newTestEnv(t)
	body, err := env.Engine.CreateBody(env.Ctx, domain.GoverningBody{Name: "Plan Commission", TotalSeats: 5})
	require.NoError(t, err)
	create := func(emergency bool) domain.Meeting {
		m, err := env.Engine.CreateMeeting(env.Ctx, engine.MeetingCreateOptions{
			BodyID:         body.ID,
			Title:          "Special meeting",
			ScheduledStart: env.Clock.Add(20 * time.Hour),
			IsEmergency:    emergency,
		})
		require.NoError(t, err)
		m, err = env.Engine.TransitionMeeting(env.Ctx, engine.MeetingTransitionOptions{ID: m.ID, To: domain.MeetingScheduled})
		require.NoError(t, err)
		return m
	}

	regular := create(false)
	_, err = env.Engine.TransitionMeeting(env.Ctx, engine.MeetingTransitionOptions{ID: regular.ID, To: domain.MeetingNoticed})
	assert.Equal(t, compliance.CodeInsufficientNotice, complianceCode(t, err))
	stored, err := env.Engine.GetMeeting(env.Ctx, regular.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingScheduled, stored.Status)

	emergency := create(true)
	noticed, err := env.Engine.TransitionMeeting(env.Ctx, engine.MeetingTransitionOptions{ID: emergency.ID, To: domain.MeetingNoticed})
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingNoticed, noticed.Status)
}

func TestQuorumWithRecusal(t *testing.T) {
	env := newTestEnv(t)
	m := seedMeeting(t, env)
	agenda, err := env.Engine.CreateAgenda(env.Ctx, m.ID)
	require.NoError(t, err)
	item, err := env.Engine.AddAgendaItem(env.Ctx, agenda.ID, "Rezoning petition")
	require.NoError(t, err)
	_, err = env.Engine.RecordRecusal(env.Ctx, m.ID, "m4", item.ID, "owns adjoining parcel")
	require.NoError(t, err)

	q, err := env.Engine.Quorum(env.Ctx, m.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 4, q.RequiredForQuorum)
	assert.Equal(t, 5, q.EligibleVoters)
	assert.True(t, q.IsQuorumMet)

	q, err = env.Engine.Quorum(env.Ctx, m.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, q.RecusedMembers)
	assert.Equal(t, 4, q.EligibleVoters)
	assert.True(t, q.IsQuorumMet)

	_, err = env.Engine.RecordAttendance(env.Ctx, m.ID, "m5", domain.AttendanceExcused)
	require.NoError(t, err)
	q, err = env.Engine.Quorum(env.Ctx, m.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, q.EligibleVoters)
	assert.False(t, q.IsQuorumMet)
}

func TestVotingFlow(t *testing.T) {
	env := newTestEnv(t)
	m := seedMeeting(t, env)
	agenda, err := env.Engine.CreateAgenda(env.Ctx, m.ID)
	require.NoError(t, err)
	item, err := env.Engine.AddAgendaItem(env.Ctx, agenda.ID, "Paving contract")
	require.NoError(t, err)
	_, err = env.Engine.RecordRecusal(env.Ctx, m.ID, "m4", item.ID, "bidder is a relative")
	require.NoError(t, err)

	a, err := env.Engine.CreateAction(env.Ctx, engine.ActionCreateOptions{
		MeetingID:    m.ID,
		AgendaItemID: item.ID,
		Description:  "Award the paving contract",
		MovedBy:      "m1",
	})
	require.NoError(t, err)

	_, err = env.Engine.OpenVoting(env.Ctx, a.ID)
	assert.Equal(t, compliance.CodeMotionNotSeconded, complianceCode(t, err))

	_, err = env.Engine.CastVote(env.Ctx, a.ID, "m1", domain.VoteYea)
	assert.Equal(t, compliance.CodeVotingNotOpen, complianceCode(t, err))

	_, err = env.Engine.SecondAction(env.Ctx, a.ID, "m1")
	require.Error(t, err)
	a, err = env.Engine.SecondAction(env.Ctx, a.ID, "m2")
	require.NoError(t, err)
	a, err = env.Engine.OpenVoting(env.Ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionVoting, a.Status)

	cast := map[string]domain.VoteValue{"m1": domain.VoteYea, "m2": domain.VoteYea, "m3": domain.VoteNay, "m4": domain.VoteYea, "m5": domain.VoteYea}
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		rec, err := env.Engine.CastVote(env.Ctx, a.ID, id, cast[id])
		require.NoError(t, err)
		if id == "m4" {
			assert.Equal(t, domain.VoteRecused, rec.Vote)
			assert.Equal(t, domain.VoteYea, rec.RequestedVote)
		}
	}
	_, err = env.Engine.CastVote(env.Ctx, a.ID, "m1", domain.VoteNay)
	require.Error(t, err, "second vote from the same member")

	a, err = env.Engine.CloseVoting(env.Ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPassed, a.Status)
	require.NotNil(t, a.Tally)
	assert.Equal(t, 3, a.Tally.Yea)
	assert.Equal(t, 1, a.Tally.Nay)
	assert.Equal(t, 1, a.Tally.Recused)
	assert.Equal(t, 2, a.Tally.Margin)

	votes, err := env.Engine.ListVotes(env.Ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 5)

	_, err = env.Engine.WithdrawAction(env.Ctx, a.ID)
	var te *statemachine.InvalidTransitionError
	require.ErrorAs(t, err, &te)
}

func TestExecutiveSessionGates(t *testing.T) {
	env := newTestEnv(t)
	m := seedMeeting(t, env)

	_, err := env.Engine.CreateExecutiveSession(env.Ctx, m.ID, "GOSSIP")
	assert.Equal(t, compliance.CodeInvalidSessionReason, complianceCode(t, err))

	s, err := env.Engine.CreateExecutiveSession(env.Ctx, m.ID, "LITIGATION")
	require.NoError(t, err)
	assert.Equal(t, compliance.SessionReasons["LITIGATION"], s.StatutoryCite)

	a, err := env.Engine.CreateAction(env.Ctx, engine.ActionCreateOptions{
		MeetingID: m.ID, Type: domain.ActionResolution, Description: "Adopt resolution 2025-1",
	})
	require.NoError(t, err)
	a, err = env.Engine.OpenVoting(env.Ctx, a.ID)
	require.NoError(t, err)

	s, err = env.Engine.TransitionExecutiveSession(env.Ctx, s.ID, domain.SessionInSession)
	require.NoError(t, err)
	require.NotNil(t, s.StartedAt)

	_, err = env.Engine.CastVote(env.Ctx, a.ID, "m1", domain.VoteYea)
	assert.Equal(t, compliance.CodeVoteDuringExecutiveSession, complianceCode(t, err))

	s, err = env.Engine.TransitionExecutiveSession(env.Ctx, s.ID, domain.SessionEnded)
	require.NoError(t, err)

	_, err = env.Engine.TransitionMeeting(env.Ctx, engine.MeetingTransitionOptions{ID: m.ID, To: domain.MeetingAdjourned})
	assert.Equal(t, compliance.CodeExecutiveSessionNotCertified, complianceCode(t, err))

	mins, err := env.Engine.CreateMinutes(env.Ctx, m.ID, "Called to order at 7:00 pm.")
	require.NoError(t, err)
	mins, err = env.Engine.TransitionMinutes(env.Ctx, mins.ID, domain.MinutesPendingApproval)
	require.NoError(t, err)
	_, err = env.Engine.UpdateMinutesBody(env.Ctx, mins.ID, "edited")
	require.Error(t, err)
	_, err = env.Engine.TransitionMinutes(env.Ctx, mins.ID, domain.MinutesApproved)
	assert.Equal(t, compliance.CodeExecutiveSessionNotCertified, complianceCode(t, err))

	s, err = env.Engine.TransitionExecutiveSession(env.Ctx, s.ID, domain.SessionCertified)
	require.NoError(t, err)
	assert.Equal(t, "clerk", s.CertifiedBy)

	mins, err = env.Engine.TransitionMinutes(env.Ctx, mins.ID, domain.MinutesApproved)
	require.NoError(t, err)
	require.NotNil(t, mins.ApprovedAt)

	_, err = env.Engine.TransitionMeeting(env.Ctx, engine.MeetingTransitionOptions{ID: m.ID, To: domain.MeetingAdjourned})
	require.NoError(t, err)
}

func TestExecutiveSessionRequiresMeetingInProgress(t *testing.T) {
	env := newTestEnv(t)
	body, err := env.Engine.CreateBody(env.Ctx, domain.GoverningBody{Name: "Board of Zoning Appeals", TotalSeats: 5})
	require.NoError(t, err)
	m, err := env.Engine.CreateMeeting(env.Ctx, engine.MeetingCreateOptions{
		BodyID: body.ID, Title: "BZA", ScheduledStart: env.Clock.AddDate(0, 0, 10),
	})
	require.NoError(t, err)
	s, err := env.Engine.CreateExecutiveSession(env.Ctx, m.ID, "REAL_PROPERTY")
	require.NoError(t, err)
	_, err = env.Engine.TransitionExecutiveSession(env.Ctx, s.ID, domain.SessionInSession)
	assert.Equal(t, compliance.CodeMeetingNotInProgress, complianceCode(t, err))
}

func TestAgendaPublish(t *testing.T) {
	env := newTestEnv(t)
	m := seedMeeting(t, env)
	agenda, err := env.Engine.CreateAgenda(env.Ctx, m.ID)
	require.NoError(t, err)
	_, err = env.Engine.CreateAgenda(env.Ctx, m.ID)
	require.Error(t, err, "second active agenda")

	first, err := env.Engine.AddAgendaItem(env.Ctx, agenda.ID, "Call to order")
	require.NoError(t, err)
	second, err := env.Engine.AddAgendaItem(env.Ctx, agenda.ID, "Public comment")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, 2, second.Order)

	for _, to := range []domain.AgendaStatus{domain.AgendaPendingReview, domain.AgendaApproved, domain.AgendaPublished} {
		agenda, err = env.Engine.TransitionAgenda(env.Ctx, agenda.ID, to)
		require.NoError(t, err)
	}
	require.NotNil(t, agenda.PublishedAt)
	_, err = env.Engine.AddAgendaItem(env.Ctx, agenda.ID, "Late item")
	require.Error(t, err)

	_, err = env.Engine.TransitionAgendaItem(env.Ctx, first.ID, domain.AgendaItemActedOn)
	var te *statemachine.InvalidTransitionError
	require.ErrorAs(t, err, &te)
	it, err := env.Engine.TransitionAgendaItem(env.Ctx, first.ID, domain.AgendaItemInDiscussion)
	require.NoError(t, err)
	assert.Equal(t, domain.AgendaItemInDiscussion, it.Status)

	view, err := env.Engine.GetAgenda(env.Ctx, agenda.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Call to order", view.Items[0].Title)
}

func TestHearingDeadlinesAndRiskRefresh(t *testing.T) {
	env := newTestEnv(t)
	hearingDate := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

	calc, err := env.Engine.CalculateDeadlines(env.Ctx, hearingDate, domain.ReasonBondHearing)
	require.NoError(t, err)
	require.Len(t, calc.RequiredPublications, 2)
	assert.True(t, calc.HasDeadline)
	assert.Equal(t, domain.RiskLow, calc.RiskLevel)

	h, err := env.Engine.ScheduleHearing(env.Ctx, engine.HearingScheduleOptions{
		Title:        "Fire station bonds",
		NoticeReason: domain.ReasonBondHearing,
		HearingDate:  hearingDate,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLow, h.RiskLevel)

	changed, err := env.Engine.RefreshRisk(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, changed)

	*env.Clock = time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	changed, err = env.Engine.RefreshRisk(env.Ctx)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.RiskImpossible, changed[0].RiskLevel)

	impossible, err := env.Engine.ListHearings(env.Ctx, domain.RiskImpossible)
	require.NoError(t, err)
	require.Len(t, impossible, 1)
	assert.Equal(t, h.ID, impossible[0].ID)

	_, err = env.Engine.CalculateDeadlines(env.Ctx, hearingDate, domain.NoticeReason("NOT_A_REASON"))
	require.Error(t, err)
}

func TestFindingsAdoption(t *testing.T) {
	env := newTestEnv(t)
	f, err := env.Engine.CreateFindings(env.Ctx, "BZA-2025-01", domain.CaseDevelopmentStandardsVariance)
	require.NoError(t, err)
	require.Len(t, f.Criteria, 3)

	_, err = env.Engine.AdoptFindings(env.Ctx, f.ID, domain.DecisionApprove)
	var fe *findings.FindingsError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, findings.CodeIncomplete, fe.Code)

	met := domain.DeterminationMet
	for _, c := range f.Criteria {
		rationale := "supported by staff report for " + c.ID
		_, err := env.Engine.UpdateCriterion(env.Ctx, f.ID, c.ID, findings.CriterionUpdate{
			BoardDetermination: &met,
			Rationale:          &rationale,
		})
		require.NoError(t, err)
	}
	eval, err := env.Engine.EvaluateFindings(env.Ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, eval.CanApprove)
	assert.False(t, eval.CanDeny)

	_, err = env.Engine.AdoptFindings(env.Ctx, f.ID, domain.DecisionDeny)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, findings.CodeDoNotSupportDenial, fe.Code)

	f, err = env.Engine.AddCondition(env.Ctx, f.ID, "Landscape buffer along the north line")
	require.NoError(t, err)
	f, err = env.Engine.AdoptFindings(env.Ctx, f.ID, domain.DecisionApprove)
	require.NoError(t, err)
	assert.True(t, f.IsLocked)
	assert.Equal(t, "clerk", f.LockedBy)
	assert.Len(t, f.Conditions, 1)

	_, err = env.Engine.AddCondition(env.Ctx, f.ID, "Too late")
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, findings.CodeLocked, fe.Code)

	_, err = env.Engine.CreateFindings(env.Ctx, "BZA-2025-02", domain.CaseType("REZONING"))
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, findings.CodeUnsupportedCaseType, fe.Code)
}

func TestTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	m := seedMeeting(t, env)

	other := tenant.With(context.Background(), tenant.Context{TenantID: "town-2"})
	_, err := env.Engine.InitTenant(other, "town-2", "Other Town", nil)
	require.NoError(t, err)
	_, err = env.Engine.GetMeeting(other, m.ID)
	assert.True(t, errors.Is(err, repo.ErrNotFound))

	_, err = env.Engine.GetMeeting(context.Background(), m.ID)
	assert.True(t, errors.Is(err, tenant.ErrMissing))
}

func TestEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	m := seedMeeting(t, env)
	evs, err := env.Engine.ListEvents(env.Ctx, repo.EventFilter{EntityKind: "meeting", EntityID: m.ID, Type: "meeting.transitioned"})
	require.NoError(t, err)
	require.Len(t, evs, 3)
	for _, ev := range evs {
		assert.Equal(t, "clerk", ev.ActorID)
		assert.Equal(t, "town-1", ev.TenantID)
	}
}

func TestViolationsCounted(t *testing.T) {
	env := newTestEnv(t)
	m := seedMeeting(t, env)
	_, err := env.Engine.CreateExecutiveSession(env.Ctx, m.ID, "GOSSIP")
	require.Error(t, err)

	families, err := env.Engine.Metrics.Registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, fam := range families {
		if fam.GetName() != "townbox_compliance_violations_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "code" && l.GetValue() == string(compliance.CodeInvalidSessionReason) {
					found = true
					assert.Equal(t, 1.0, metric.GetCounter().GetValue())
				}
			}
		}
	}
	assert.True(t, found)
}

func TestRiskRefreshUsesTenantZoneAcrossDST(t *testing.T) {
	env := newTestEnv(t)
	*env.Clock = time.Date(2025, 10, 28, 20, 0, 0, 0, time.UTC)
	hearingDate := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)

	// Submit by 2025-10-28 17:00 EDT; the hearing itself falls after the
	// switch back to EST.
	cutoff := time.Date(2025, 10, 28, 21, 0, 0, 0, time.UTC)
	h, err := env.Engine.ScheduleHearing(env.Ctx, engine.HearingScheduleOptions{
		Title:        "Sidewalk plan",
		NoticeReason: domain.ReasonGeneralPublicHearing,
		HearingDate:  hearingDate,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, h.RiskLevel)
	assert.True(t, h.Deadlines.EarliestSubmissionDeadline.Equal(cutoff), "got %s", h.Deadlines.EarliestSubmissionDeadline)

	*env.Clock = time.Date(2025, 10, 28, 21, 30, 0, 0, time.UTC)
	calc, err := env.Engine.CalculateDeadlines(env.Ctx, hearingDate, domain.ReasonGeneralPublicHearing)
	require.NoError(t, err)
	assert.Equal(t, domain.RiskImpossible, calc.RiskLevel)

	changed, err := env.Engine.RefreshRisk(env.Ctx)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.RiskImpossible, changed[0].RiskLevel)
	assert.True(t, changed[0].Deadlines.EarliestSubmissionDeadline.Equal(cutoff), "got %s", changed[0].Deadlines.EarliestSubmissionDeadline)

	stored, err := env.Engine.GetHearing(env.Ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RiskImpossible, stored.RiskLevel)
}

func TestAgendaItemMustBelongToMeeting(t *testing.T) {
	env := newTestEnv(t)
	m := seedMeeting(t, env)
	other := seedMeeting(t, env)
	agenda, err := env.Engine.CreateAgenda(env.Ctx, other.ID)
	require.NoError(t, err)
	item, err := env.Engine.AddAgendaItem(env.Ctx, agenda.ID, "Budget transfer")
	require.NoError(t, err)

	_, err = env.Engine.RecordRecusal(env.Ctx, m.ID, "m2", item.ID, "employer is the vendor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must belong to meeting")

	_, err = env.Engine.CreateAction(env.Ctx, engine.ActionCreateOptions{
		MeetingID:    m.ID,
		AgendaItemID: item.ID,
		Description:  "Approve the transfer",
		MovedBy:      "m1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must belong to meeting")

	_, err = env.Engine.RecordRecusal(env.Ctx, other.ID, "m2", item.ID, "employer is the vendor")
	require.NoError(t, err)
}
