package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"townbox/internal/domain"
)

// Versioned pairs a stored value with its optimistic-concurrency version.
type Versioned[T any] struct {
	Value   T
	Version int
}

// Store persists one entity kind in the records table. Every call is scoped
// to a tenant; a row of another tenant is reported as ErrNotFound.
type Store[T any] struct {
	Kind   string
	id     func(T) string
	parent func(T) string
	status func(T) string
}

func NewStore[T any](kind string, id, parent, status func(T) string) Store[T] {
	return Store[T]{Kind: kind, id: id, parent: parent, status: status}
}

func (s Store[T]) parentOf(v T) any {
	if s.parent == nil {
		return nil
	}
	return nullable(s.parent(v))
}

func (s Store[T]) statusOf(v T) any {
	if s.status == nil {
		return nil
	}
	return nullable(s.status(v))
}

func (s Store[T]) FindByID(ctx context.Context, q DBTX, tenantID, id string) (Versioned[T], error) {
	var (
		out  Versioned[T]
		data string
	)
	err := q.QueryRowContext(ctx, `SELECT version,data_json FROM records WHERE tenant_id=? AND kind=? AND id=?`,
		tenantID, s.Kind, id).Scan(&out.Version, &data)
	if err == sql.ErrNoRows {
		return out, fmt.Errorf("%s %s: %w", s.Kind, id, ErrNotFound)
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(data), &out.Value); err != nil {
		return out, fmt.Errorf("decode %s %s: %w", s.Kind, id, err)
	}
	return out, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	ParentID string
	Status   string
	Limit    int
}

func (s Store[T]) List(ctx context.Context, q DBTX, tenantID string, f Filter) ([]T, error) {
	clauses := []string{"tenant_id=?", "kind=?"}
	args := []any{tenantID, s.Kind}
	if f.ParentID != "" {
		clauses = append(clauses, "parent_id=?")
		args = append(args, f.ParentID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT data_json FROM records WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.Kind, err)
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (s Store[T]) FindByParentID(ctx context.Context, q DBTX, tenantID, parentID string) ([]T, error) {
	return s.List(ctx, q, tenantID, Filter{ParentID: parentID})
}

// Create inserts v at version 1. A duplicate id yields ErrConflict.
func (s Store[T]) Create(ctx context.Context, q DBTX, tenantID string, v T) (Versioned[T], error) {
	id := s.id(v)
	if strings.TrimSpace(id) == "" {
		return Versioned[T]{}, fmt.Errorf("%s id required", s.Kind)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Versioned[T]{}, err
	}
	now := stamp(time.Now())
	_, err = q.ExecContext(ctx, `INSERT INTO records(tenant_id,kind,id,parent_id,status,version,data_json,created_at,updated_at) VALUES (?,?,?,?,?,1,?,?,?)`,
		tenantID, s.Kind, id, s.parentOf(v), s.statusOf(v), string(data), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return Versioned[T]{}, fmt.Errorf("%s %s already exists: %w", s.Kind, id, ErrConflict)
		}
		return Versioned[T]{}, err
	}
	return Versioned[T]{Value: v, Version: 1}, nil
}

// Update replaces v if the stored version still equals version and returns
// the incremented version. A stale version yields ErrConflict.
func (s Store[T]) Update(ctx context.Context, q DBTX, tenantID string, v T, version int) (Versioned[T], error) {
	id := s.id(v)
	data, err := json.Marshal(v)
	if err != nil {
		return Versioned[T]{}, err
	}
	now := stamp(time.Now())
	res, err := q.ExecContext(ctx, `UPDATE records SET parent_id=?, status=?, data_json=?, version=version+1, updated_at=?
WHERE tenant_id=? AND kind=? AND id=? AND version=?`,
		s.parentOf(v), s.statusOf(v), string(data), now, tenantID, s.Kind, id, version)
	if err != nil {
		return Versioned[T]{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current int
		err := q.QueryRowContext(ctx, `SELECT version FROM records WHERE tenant_id=? AND kind=? AND id=?`, tenantID, s.Kind, id).Scan(&current)
		if err == sql.ErrNoRows {
			return Versioned[T]{}, fmt.Errorf("%s %s: %w", s.Kind, id, ErrNotFound)
		}
		if err != nil {
			return Versioned[T]{}, err
		}
		return Versioned[T]{}, &ConflictError{Kind: s.Kind, ID: id, Expected: version, Current: current}
	}
	return Versioned[T]{Value: v, Version: version + 1}, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed: primary key")
}

var (
	Bodies = NewStore("governing_body",
		func(v domain.GoverningBody) string { return v.ID }, nil, nil)
	Meetings = NewStore("meeting",
		func(v domain.Meeting) string { return v.ID },
		func(v domain.Meeting) string { return v.BodyID },
		func(v domain.Meeting) string { return string(v.Status) })
	Attendance = NewStore("attendance",
		func(v domain.MeetingAttendance) string { return v.ID },
		func(v domain.MeetingAttendance) string { return v.MeetingID },
		func(v domain.MeetingAttendance) string { return string(v.Status) })
	Recusals = NewStore("recusal",
		func(v domain.MemberRecusal) string { return v.ID },
		func(v domain.MemberRecusal) string { return v.MeetingID }, nil)
	Actions = NewStore("action",
		func(v domain.Action) string { return v.ID },
		func(v domain.Action) string { return v.MeetingID },
		func(v domain.Action) string { return string(v.Status) })
	Votes = NewStore("vote",
		func(v domain.VoteRecord) string { return v.ID },
		func(v domain.VoteRecord) string { return v.ActionID },
		func(v domain.VoteRecord) string { return string(v.Vote) })
	Sessions = NewStore("executive_session",
		func(v domain.ExecutiveSession) string { return v.ID },
		func(v domain.ExecutiveSession) string { return v.MeetingID },
		func(v domain.ExecutiveSession) string { return string(v.Status) })
	Minutes = NewStore("minutes",
		func(v domain.Minutes) string { return v.ID },
		func(v domain.Minutes) string { return v.MeetingID },
		func(v domain.Minutes) string { return string(v.Status) })
	Agendas = NewStore("agenda",
		func(v domain.Agenda) string { return v.ID },
		func(v domain.Agenda) string { return v.MeetingID },
		func(v domain.Agenda) string { return string(v.Status) })
	AgendaItems = NewStore("agenda_item",
		func(v domain.AgendaItem) string { return v.ID },
		func(v domain.AgendaItem) string { return v.AgendaID },
		func(v domain.AgendaItem) string { return string(v.Status) })
	Hearings = NewStore("hearing",
		func(v domain.Hearing) string { return v.ID },
		func(v domain.Hearing) string { return v.MeetingID },
		func(v domain.Hearing) string { return string(v.RiskLevel) })
	Findings = NewStore("findings",
		func(v domain.FindingsOfFact) string { return v.ID },
		func(v domain.FindingsOfFact) string { return v.CaseID },
		func(v domain.FindingsOfFact) string { return string(v.Status) })
)
