// Package findings validates a board's criterion-by-criterion findings of
// fact and locks them once the board acts. Every function returns a new
// value; inputs are never modified.
package findings

import (
	"fmt"
	"strings"
	"time"

	"townbox/internal/domain"
)

type Code string

const (
	CodeLocked               Code = "FINDINGS_LOCKED"
	CodeIncomplete           Code = "FINDINGS_INCOMPLETE"
	CodeDoNotSupportApproval Code = "FINDINGS_DO_NOT_SUPPORT_APPROVAL"
	CodeDoNotSupportDenial   Code = "FINDINGS_DO_NOT_SUPPORT_DENIAL"
	CodeCriterionNotFound    Code = "CRITERION_NOT_FOUND"
	CodeInvalidDecision      Code = "INVALID_DECISION"
	CodeUnsupportedCaseType  Code = "UNSUPPORTED_CASE_TYPE"
	CodeInvalidDetermination Code = "INVALID_DETERMINATION"
)

type FindingsError struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unsupported reports whether the error means the findings do not support
// the requested decision.
func (e *FindingsError) Unsupported() bool {
	return e.Code == CodeDoNotSupportApproval || e.Code == CodeDoNotSupportDenial
}

// IsComplete reports whether the board has made a determination and given a
// rationale.
func IsComplete(c domain.Criterion) bool {
	return c.BoardDetermination != domain.DeterminationNone && strings.TrimSpace(c.Rationale) != ""
}

type Evaluation struct {
	Complete   bool     `json:"complete"`
	Incomplete []string `json:"incomplete,omitempty"`
	Met        int      `json:"met"`
	NotMet     int      `json:"not_met"`
	Undecided  int      `json:"undecided"`
	CanApprove bool     `json:"can_approve"`
	CanDeny    bool     `json:"can_deny"`
}

func Evaluate(f domain.FindingsOfFact) Evaluation {
	ev := Evaluation{Complete: true}
	for _, c := range f.Criteria {
		if !IsComplete(c) {
			ev.Complete = false
			ev.Incomplete = append(ev.Incomplete, c.ID)
		}
		switch c.BoardDetermination {
		case domain.DeterminationMet:
			ev.Met++
		case domain.DeterminationNotMet:
			ev.NotMet++
		default:
			ev.Undecided++
		}
	}
	ev.CanApprove = CanApprove(f)
	ev.CanDeny = CanDeny(f)
	return ev
}

// CanApprove is true when every required criterion is MET.
func CanApprove(f domain.FindingsOfFact) bool {
	for _, c := range f.Criteria {
		if c.IsRequired && c.BoardDetermination != domain.DeterminationMet {
			return false
		}
	}
	return true
}

// CanDeny is true when at least one required criterion is NOT_MET.
func CanDeny(f domain.FindingsOfFact) bool {
	for _, c := range f.Criteria {
		if c.IsRequired && c.BoardDetermination == domain.DeterminationNotMet {
			return true
		}
	}
	return false
}

func lockedError(f domain.FindingsOfFact) error {
	return &FindingsError{
		Code:    CodeLocked,
		Message: "findings are locked and can no longer be edited",
		Details: map[string]any{"findings_id": f.ID, "status": string(f.Status)},
	}
}

func checkComplete(f domain.FindingsOfFact) error {
	ev := Evaluate(f)
	if !ev.Complete {
		return &FindingsError{
			Code:    CodeIncomplete,
			Message: "every criterion needs a board determination and a rationale",
			Details: map[string]any{"incomplete": ev.Incomplete},
		}
	}
	return nil
}

func lock(f domain.FindingsOfFact, status domain.FindingsStatus, by string, now time.Time) domain.FindingsOfFact {
	out := clone(f)
	out.Status = status
	out.IsLocked = true
	out.LockedAt = &now
	out.LockedBy = by
	out.UpdatedAt = now
	return out
}

// Adopt adopts the findings in support of decision and locks them.
func Adopt(f domain.FindingsOfFact, decision domain.Decision, by string, now time.Time) (domain.FindingsOfFact, error) {
	if f.IsLocked {
		return f, lockedError(f)
	}
	if err := checkComplete(f); err != nil {
		return f, err
	}
	switch decision {
	case domain.DecisionApprove:
		if !CanApprove(f) {
			return f, &FindingsError{
				Code:    CodeDoNotSupportApproval,
				Message: "approval requires every required criterion to be met",
				Details: map[string]any{"not_met": requiredNotMet(f)},
			}
		}
	case domain.DecisionDeny:
		if !CanDeny(f) {
			return f, &FindingsError{
				Code:    CodeDoNotSupportDenial,
				Message: "denial requires at least one required criterion not met",
			}
		}
	default:
		return f, &FindingsError{Code: CodeInvalidDecision, Message: fmt.Sprintf("unknown decision %q", decision)}
	}
	out := lock(f, domain.FindingsAdopted, by, now)
	out.Decision = decision
	return out, nil
}

// Reject records that the board declined to adopt the findings as drafted.
func Reject(f domain.FindingsOfFact, by string, now time.Time) (domain.FindingsOfFact, error) {
	if f.IsLocked {
		return f, lockedError(f)
	}
	if err := checkComplete(f); err != nil {
		return f, err
	}
	return lock(f, domain.FindingsRejected, by, now), nil
}

// CriterionUpdate changes the non-nil fields of one criterion.
type CriterionUpdate struct {
	StaffDetermination *domain.Determination `json:"staff_determination,omitempty"`
	BoardDetermination *domain.Determination `json:"board_determination,omitempty"`
	Rationale          *string               `json:"rationale,omitempty"`
}

func validDetermination(d domain.Determination) bool {
	switch d {
	case domain.DeterminationNone, domain.DeterminationMet, domain.DeterminationNotMet, domain.DeterminationUnableToDetermine:
		return true
	}
	return false
}

func UpdateCriterion(f domain.FindingsOfFact, criterionID string, upd CriterionUpdate, now time.Time) (domain.FindingsOfFact, error) {
	if f.IsLocked {
		return f, lockedError(f)
	}
	for _, d := range []*domain.Determination{upd.StaffDetermination, upd.BoardDetermination} {
		if d != nil && !validDetermination(*d) {
			return f, &FindingsError{Code: CodeInvalidDetermination, Message: fmt.Sprintf("unknown determination %q", *d)}
		}
	}
	out := clone(f)
	for i := range out.Criteria {
		c := &out.Criteria[i]
		if c.ID != criterionID {
			continue
		}
		if upd.StaffDetermination != nil {
			c.StaffDetermination = *upd.StaffDetermination
		}
		if upd.BoardDetermination != nil {
			c.BoardDetermination = *upd.BoardDetermination
		}
		if upd.Rationale != nil {
			c.Rationale = *upd.Rationale
		}
		out.UpdatedAt = now
		return out, nil
	}
	return f, &FindingsError{
		Code:    CodeCriterionNotFound,
		Message: fmt.Sprintf("criterion %s not found", criterionID),
		Details: map[string]any{"criterion_id": criterionID},
	}
}

// AddCondition appends a condition of approval, numbered after the existing ones.
func AddCondition(f domain.FindingsOfFact, id, text string, now time.Time) (domain.FindingsOfFact, error) {
	if f.IsLocked {
		return f, lockedError(f)
	}
	out := clone(f)
	out.Conditions = append(out.Conditions, domain.ConditionOfApproval{
		ID:    id,
		Order: len(f.Conditions) + 1,
		Text:  strings.TrimSpace(text),
	})
	out.UpdatedAt = now
	return out, nil
}

func requiredNotMet(f domain.FindingsOfFact) []string {
	var ids []string
	for _, c := range f.Criteria {
		if c.IsRequired && c.BoardDetermination != domain.DeterminationMet {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func clone(f domain.FindingsOfFact) domain.FindingsOfFact {
	out := f
	out.Criteria = append([]domain.Criterion(nil), f.Criteria...)
	out.Conditions = append([]domain.ConditionOfApproval(nil), f.Conditions...)
	return out
}
