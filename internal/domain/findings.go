package domain

import "time"

type CaseType string

const (
	CaseDevelopmentStandardsVariance CaseType = "DEVELOPMENT_STANDARDS_VARIANCE"
	CaseUseVariance                  CaseType = "USE_VARIANCE"
	CaseSpecialException             CaseType = "SPECIAL_EXCEPTION"
)

type Determination string

const (
	DeterminationNone              Determination = ""
	DeterminationMet               Determination = "MET"
	DeterminationNotMet            Determination = "NOT_MET"
	DeterminationUnableToDetermine Determination = "UNABLE_TO_DETERMINE"
)

type FindingsStatus string

const (
	FindingsDraft    FindingsStatus = "DRAFT"
	FindingsAdopted  FindingsStatus = "ADOPTED"
	FindingsRejected FindingsStatus = "REJECTED"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionDeny    Decision = "DENY"
)

type Criterion struct {
	ID                 string        `json:"id"`
	Order              int           `json:"order"`
	Text               string        `json:"text"`
	StatutoryCite      string        `json:"statutory_cite,omitempty"`
	IsRequired         bool          `json:"is_required"`
	StaffDetermination Determination `json:"staff_determination,omitempty" enum:"MET,NOT_MET,UNABLE_TO_DETERMINE"`
	BoardDetermination Determination `json:"board_determination,omitempty" enum:"MET,NOT_MET,UNABLE_TO_DETERMINE"`
	Rationale          string        `json:"rationale,omitempty"`
}

type ConditionOfApproval struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
	Text  string `json:"text"`
}

// FindingsOfFact is frozen, with every criterion and condition, once IsLocked is set.
type FindingsOfFact struct {
	ID         string                `json:"id"`
	TenantID   string                `json:"tenant_id"`
	CaseID     string                `json:"case_id"`
	CaseType   CaseType              `json:"case_type" enum:"DEVELOPMENT_STANDARDS_VARIANCE,USE_VARIANCE,SPECIAL_EXCEPTION"`
	Criteria   []Criterion           `json:"criteria"`
	Conditions []ConditionOfApproval `json:"conditions,omitempty"`
	Status     FindingsStatus        `json:"status" enum:"DRAFT,ADOPTED,REJECTED"`
	Decision   Decision              `json:"decision,omitempty"`
	IsLocked   bool                  `json:"is_locked"`
	LockedAt   *time.Time            `json:"locked_at,omitempty"`
	LockedBy   string                `json:"locked_by,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}
