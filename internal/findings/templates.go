package findings

import (
	"fmt"
	"time"

	"townbox/internal/domain"
)

type criterionTemplate struct {
	text string
	cite string
}

var templates = map[domain.CaseType][]criterionTemplate{
	domain.CaseDevelopmentStandardsVariance: {
		{"The approval will not be injurious to the public health, safety, morals, and general welfare of the community.", "IC 36-7-4-918.5(a)(1)"},
		{"The use and value of the area adjacent to the property included in the variance will not be affected in a substantially adverse manner.", "IC 36-7-4-918.5(a)(2)"},
		{"The strict application of the terms of the zoning ordinance will result in practical difficulties in the use of the property.", "IC 36-7-4-918.5(a)(3)"},
	},
	domain.CaseUseVariance: {
		{"The approval will not be injurious to the public health, safety, morals, and general welfare of the community.", "IC 36-7-4-918.4(1)"},
		{"The use and value of the area adjacent to the property included in the variance will not be affected in a substantially adverse manner.", "IC 36-7-4-918.4(2)"},
		{"The need for the variance arises from some condition peculiar to the property involved.", "IC 36-7-4-918.4(3)"},
		{"The strict application of the terms of the zoning ordinance will constitute an unnecessary hardship if applied to the property for which the variance is sought.", "IC 36-7-4-918.4(4)"},
		{"The approval does not interfere substantially with the comprehensive plan.", "IC 36-7-4-918.4(5)"},
	},
	domain.CaseSpecialException: {
		{"The special exception is permitted in the zoning district under the zoning ordinance.", "IC 36-7-4-918.2"},
		{"The proposed use is consistent with the comprehensive plan.", "IC 36-7-4-918.2"},
		{"The proposed use is compatible with surrounding uses and will not be injurious to the neighborhood.", "IC 36-7-4-918.2"},
		{"The proposed use satisfies the specific standards the ordinance sets for the exception.", "IC 36-7-4-918.2"},
	},
}

// Template returns the statutory criteria for a case type, all required and
// undecided.
func Template(caseType domain.CaseType) ([]domain.Criterion, error) {
	tpl, ok := templates[caseType]
	if !ok {
		return nil, &FindingsError{
			Code:    CodeUnsupportedCaseType,
			Message: fmt.Sprintf("no criteria template for case type %q", caseType),
		}
	}
	out := make([]domain.Criterion, len(tpl))
	for i, c := range tpl {
		out[i] = domain.Criterion{
			ID:            fmt.Sprintf("c%d", i+1),
			Order:         i + 1,
			Text:          c.text,
			StatutoryCite: c.cite,
			IsRequired:    true,
		}
	}
	return out, nil
}

// New starts draft findings for a case from its template.
func New(id, tenantID, caseID string, caseType domain.CaseType, now time.Time) (domain.FindingsOfFact, error) {
	criteria, err := Template(caseType)
	if err != nil {
		return domain.FindingsOfFact{}, err
	}
	return domain.FindingsOfFact{
		ID:        id,
		TenantID:  tenantID,
		CaseID:    caseID,
		CaseType:  caseType,
		Criteria:  criteria,
		Status:    domain.FindingsDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
