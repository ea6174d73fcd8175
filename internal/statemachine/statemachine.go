// Package statemachine holds the legal-transition tables of every governed
// entity. A status change anywhere in townbox goes through one of these.
package statemachine

import (
	"fmt"
	"sort"
	"strings"

	"townbox/internal/domain"
)

// InvalidTransitionError reports a transition missing from the table.
// Allowed is exactly the table entry for From.
type InvalidTransitionError struct {
	Entity  string
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("invalid %s transition %s -> %s (allowed: %s)", e.Entity, e.From, e.To, allowed)
}

type Machine[S ~string] struct {
	entity string
	table  map[S][]S
}

func New[S ~string](entity string, table map[S][]S) Machine[S] {
	return Machine[S]{entity: entity, table: table}
}

func (m Machine[S]) Entity() string { return m.entity }

func (m Machine[S]) CanTransition(from, to S) bool {
	for _, s := range m.table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Validate returns *InvalidTransitionError unless from -> to is in the table.
func (m Machine[S]) Validate(from, to S) error {
	if m.CanTransition(from, to) {
		return nil
	}
	next := m.table[from]
	allowed := make([]string, len(next))
	for i, s := range next {
		allowed[i] = string(s)
	}
	return &InvalidTransitionError{Entity: m.entity, From: string(from), To: string(to), Allowed: allowed}
}

// Allowed returns a copy of the legal targets from a state.
func (m Machine[S]) Allowed(from S) []S {
	return append([]S(nil), m.table[from]...)
}

// States lists every state in the table, sorted.
func (m Machine[S]) States() []S {
	out := make([]S, 0, len(m.table))
	for s := range m.table {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m Machine[S]) IsTerminal(s S) bool {
	next, ok := m.table[s]
	return ok && len(next) == 0
}

var Meeting = New("meeting", map[domain.MeetingStatus][]domain.MeetingStatus{
	domain.MeetingDraft:      {domain.MeetingScheduled, domain.MeetingCancelled},
	domain.MeetingScheduled:  {domain.MeetingNoticed, domain.MeetingCancelled},
	domain.MeetingNoticed:    {domain.MeetingInProgress, domain.MeetingCancelled},
	domain.MeetingInProgress: {domain.MeetingRecessed, domain.MeetingAdjourned},
	domain.MeetingRecessed:   {domain.MeetingInProgress, domain.MeetingAdjourned},
	domain.MeetingAdjourned:  {},
	domain.MeetingCancelled:  {domain.MeetingDraft},
})

var Agenda = New("agenda", map[domain.AgendaStatus][]domain.AgendaStatus{
	domain.AgendaDraft:         {domain.AgendaPendingReview},
	domain.AgendaPendingReview: {domain.AgendaDraft, domain.AgendaApproved},
	domain.AgendaApproved:      {domain.AgendaPublished, domain.AgendaDraft},
	domain.AgendaPublished:     {domain.AgendaAmended, domain.AgendaArchived},
	domain.AgendaAmended:       {domain.AgendaPublished, domain.AgendaArchived},
	domain.AgendaArchived:      {},
})

var AgendaItem = New("agenda item", map[domain.AgendaItemStatus][]domain.AgendaItemStatus{
	domain.AgendaItemPending:      {domain.AgendaItemInDiscussion, domain.AgendaItemTabled, domain.AgendaItemWithdrawn},
	domain.AgendaItemInDiscussion: {domain.AgendaItemActedOn, domain.AgendaItemTabled, domain.AgendaItemDeferred},
	domain.AgendaItemTabled:       {domain.AgendaItemInDiscussion},
	domain.AgendaItemDeferred:     {domain.AgendaItemPending},
	domain.AgendaItemActedOn:      {},
	domain.AgendaItemWithdrawn:    {},
})

var ExecutiveSession = New("executive session", map[domain.ExecutiveSessionStatus][]domain.ExecutiveSessionStatus{
	domain.SessionPending:   {domain.SessionInSession, domain.SessionCancelled},
	domain.SessionInSession: {domain.SessionEnded},
	domain.SessionEnded:     {domain.SessionCertified},
	domain.SessionCertified: {},
	domain.SessionCancelled: {},
})

var Minutes = New("minutes", map[domain.MinutesStatus][]domain.MinutesStatus{
	domain.MinutesDraft:           {domain.MinutesPendingApproval},
	domain.MinutesPendingApproval: {domain.MinutesApproved, domain.MinutesDraft},
	domain.MinutesApproved:        {domain.MinutesAmended},
	domain.MinutesAmended:         {},
})

var Action = New("action", map[domain.ActionStatus][]domain.ActionStatus{
	domain.ActionPending:   {domain.ActionVoting, domain.ActionWithdrawn},
	domain.ActionVoting:    {domain.ActionPassed, domain.ActionFailed},
	domain.ActionPassed:    {},
	domain.ActionFailed:    {},
	domain.ActionWithdrawn: {},
})
