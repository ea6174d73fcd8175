package engine

import (
	"context"
	"database/sql"

	"townbox/internal/domain"
	"townbox/internal/events"
	"townbox/internal/findings"
	"townbox/internal/repo"
	"townbox/internal/tenant"
)

// CreateFindings starts draft findings for a case from its criteria template.
func (e Engine) CreateFindings(ctx context.Context, caseID string, caseType domain.CaseType) (domain.FindingsOfFact, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.FindingsOfFact{}, err
	}
	f, err := findings.New(newID(""), tc.TenantID, caseID, caseType, e.now())
	if err != nil {
		return domain.FindingsOfFact{}, e.observe(ctx, err)
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := repo.Findings.Create(ctx, tx, tc.TenantID, f); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "findings.created", "findings", f.ID, events.EventPayload{
			"case_id": caseID, "case_type": caseType, "criteria": len(f.Criteria),
		})
	})
	return f, err
}

func (e Engine) GetFindings(ctx context.Context, id string) (domain.FindingsOfFact, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.FindingsOfFact{}, err
	}
	v, err := repo.Findings.FindByID(ctx, e.DB, tc.TenantID, id)
	return v.Value, err
}

func (e Engine) EvaluateFindings(ctx context.Context, id string) (findings.Evaluation, error) {
	f, err := e.GetFindings(ctx, id)
	if err != nil {
		return findings.Evaluation{}, err
	}
	return findings.Evaluate(f), nil
}

// updateFindings applies a pure findings operation to the stored document.
func (e Engine) updateFindings(ctx context.Context, id, evtType string, payload events.EventPayload, fn func(domain.FindingsOfFact) (domain.FindingsOfFact, error)) (domain.FindingsOfFact, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.FindingsOfFact{}, err
	}
	var out domain.FindingsOfFact
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := repo.Findings.FindByID(ctx, tx, tc.TenantID, id)
		if err != nil {
			return err
		}
		next, err := fn(cur.Value)
		if err != nil {
			return err
		}
		if _, err := repo.Findings.Update(ctx, tx, tc.TenantID, next, cur.Version); err != nil {
			return err
		}
		out = next
		if payload == nil {
			payload = events.EventPayload{}
		}
		payload["status"] = next.Status
		return e.Events.Append(ctx, tx, tc, evtType, "findings", id, payload)
	})
	return out, err
}

func (e Engine) UpdateCriterion(ctx context.Context, id, criterionID string, upd findings.CriterionUpdate) (domain.FindingsOfFact, error) {
	return e.updateFindings(ctx, id, "findings.criterion_updated", events.EventPayload{"criterion_id": criterionID},
		func(f domain.FindingsOfFact) (domain.FindingsOfFact, error) {
			return findings.UpdateCriterion(f, criterionID, upd, e.now())
		})
}

func (e Engine) AddCondition(ctx context.Context, id, text string) (domain.FindingsOfFact, error) {
	return e.updateFindings(ctx, id, "findings.condition_added", nil,
		func(f domain.FindingsOfFact) (domain.FindingsOfFact, error) {
			return findings.AddCondition(f, newID(""), text, e.now())
		})
}

// AdoptFindings locks the findings with the board's decision. The decision
// must be supported by the board determinations.
func (e Engine) AdoptFindings(ctx context.Context, id string, decision domain.Decision) (domain.FindingsOfFact, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.FindingsOfFact{}, err
	}
	return e.updateFindings(ctx, id, "findings.adopted", events.EventPayload{"decision": decision},
		func(f domain.FindingsOfFact) (domain.FindingsOfFact, error) {
			return findings.Adopt(f, decision, tc.Actor(), e.now())
		})
}

func (e Engine) RejectFindings(ctx context.Context, id string) (domain.FindingsOfFact, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.FindingsOfFact{}, err
	}
	return e.updateFindings(ctx, id, "findings.rejected", nil,
		func(f domain.FindingsOfFact) (domain.FindingsOfFact, error) {
			return findings.Reject(f, tc.Actor(), e.now())
		})
}
