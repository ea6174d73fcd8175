package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"townbox/internal/domain"
	"townbox/internal/events"
	"townbox/internal/repo"
	"townbox/internal/statemachine"
	"townbox/internal/tenant"
)

// AgendaView is an agenda with its items in order.
type AgendaView struct {
	Agenda domain.Agenda       `json:"agenda"`
	Items  []domain.AgendaItem `json:"items"`
}

func (e Engine) CreateAgenda(ctx context.Context, meetingID string) (domain.Agenda, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Agenda{}, err
	}
	a := domain.Agenda{
		ID:        newID(""),
		MeetingID: meetingID,
		Status:    domain.AgendaDraft,
		UpdatedAt: e.now(),
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := repo.Meetings.FindByID(ctx, tx, tc.TenantID, meetingID); err != nil {
			return err
		}
		existing, err := repo.Agendas.FindByParentID(ctx, tx, tc.TenantID, meetingID)
		if err != nil {
			return err
		}
		for _, ex := range existing {
			if ex.Status != domain.AgendaArchived {
				return errors.New("meeting already has an active agenda")
			}
		}
		if _, err := repo.Agendas.Create(ctx, tx, tc.TenantID, a); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "agenda.created", "agenda", a.ID, events.EventPayload{"meeting_id": meetingID})
	})
	return a, err
}

// ensureItemInMeeting checks that an agenda item sits on an agenda of the
// given meeting.
func ensureItemInMeeting(ctx context.Context, tx *sql.Tx, tenantID, meetingID, itemID string) error {
	item, err := repo.AgendaItems.FindByID(ctx, tx, tenantID, itemID)
	if err != nil {
		return err
	}
	agenda, err := repo.Agendas.FindByID(ctx, tx, tenantID, item.Value.AgendaID)
	if err != nil {
		return err
	}
	if agenda.Value.MeetingID != meetingID {
		return fmt.Errorf("agenda item %s must belong to meeting %s", itemID, meetingID)
	}
	return nil
}

func (e Engine) GetAgenda(ctx context.Context, id string) (AgendaView, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return AgendaView{}, err
	}
	a, err := repo.Agendas.FindByID(ctx, e.DB, tc.TenantID, id)
	if err != nil {
		return AgendaView{}, err
	}
	items, err := repo.AgendaItems.FindByParentID(ctx, e.DB, tc.TenantID, id)
	if err != nil {
		return AgendaView{}, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	return AgendaView{Agenda: a.Value, Items: items}, nil
}

// AddAgendaItem appends an item. Items can only be added while the agenda
// is a draft or being amended.
func (e Engine) AddAgendaItem(ctx context.Context, agendaID, title string) (domain.AgendaItem, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.AgendaItem{}, err
	}
	if strings.TrimSpace(title) == "" {
		return domain.AgendaItem{}, errors.New("title is required")
	}
	item := domain.AgendaItem{ID: newID(""), AgendaID: agendaID, Title: title, Status: domain.AgendaItemPending}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := repo.Agendas.FindByID(ctx, tx, tc.TenantID, agendaID)
		if err != nil {
			return err
		}
		if a.Value.Status != domain.AgendaDraft && a.Value.Status != domain.AgendaAmended {
			return errors.New("agenda items can only be added to a DRAFT or AMENDED agenda")
		}
		items, err := repo.AgendaItems.FindByParentID(ctx, tx, tc.TenantID, agendaID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if it.Order > item.Order {
				item.Order = it.Order
			}
		}
		item.Order++
		if _, err := repo.AgendaItems.Create(ctx, tx, tc.TenantID, item); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "agenda.item_added", "agenda", agendaID, events.EventPayload{
			"item_id": item.ID, "order": item.Order, "title": title,
		})
	})
	return item, err
}

func (e Engine) TransitionAgenda(ctx context.Context, id string, to domain.AgendaStatus) (domain.Agenda, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.Agenda{}, err
	}
	var out domain.Agenda
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := repo.Agendas.FindByID(ctx, tx, tc.TenantID, id)
		if err != nil {
			return err
		}
		if err := statemachine.Agenda.Validate(cur.Value.Status, to); err != nil {
			return err
		}
		next := cur.Value
		next.Status = to
		next.UpdatedAt = e.now()
		if to == domain.AgendaPublished {
			now := e.now()
			next.PublishedAt = &now
		}
		if _, err := repo.Agendas.Update(ctx, tx, tc.TenantID, next, cur.Version); err != nil {
			return err
		}
		out = next
		return e.Events.Append(ctx, tx, tc, "agenda.transitioned", "agenda", id, events.EventPayload{
			"from": cur.Value.Status, "to": to,
		})
	})
	if err == nil {
		e.Metrics.Transition("agenda", string(to))
	}
	return out, err
}

func (e Engine) TransitionAgendaItem(ctx context.Context, id string, to domain.AgendaItemStatus) (domain.AgendaItem, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.AgendaItem{}, err
	}
	var out domain.AgendaItem
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := repo.AgendaItems.FindByID(ctx, tx, tc.TenantID, id)
		if err != nil {
			return err
		}
		if err := statemachine.AgendaItem.Validate(cur.Value.Status, to); err != nil {
			return err
		}
		next := cur.Value
		next.Status = to
		if _, err := repo.AgendaItems.Update(ctx, tx, tc.TenantID, next, cur.Version); err != nil {
			return err
		}
		out = next
		return e.Events.Append(ctx, tx, tc, "agenda_item.transitioned", "agenda_item", id, events.EventPayload{
			"from": cur.Value.Status, "to": to,
		})
	})
	if err == nil {
		e.Metrics.Transition("agenda_item", string(to))
	}
	return out, err
}
