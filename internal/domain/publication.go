package domain

import "time"

type NoticeReason string

const (
	ReasonOpenDoorMeeting         NoticeReason = "OPEN_DOOR_MEETING"
	ReasonGeneralPublicHearing    NoticeReason = "GENERAL_PUBLIC_HEARING"
	ReasonBondHearing             NoticeReason = "BOND_HEARING"
	ReasonBudgetHearing           NoticeReason = "BUDGET_HEARING"
	ReasonAdditionalAppropriation NoticeReason = "ADDITIONAL_APPROPRIATION"
	ReasonZoningAmendment         NoticeReason = "ZONING_AMENDMENT"
	ReasonZoningVariance          NoticeReason = "ZONING_VARIANCE"
	ReasonAnnexation              NoticeReason = "ANNEXATION"
	ReasonOrdinanceAdoption       NoticeReason = "ORDINANCE_ADOPTION"
	ReasonTaxAbatement            NoticeReason = "TAX_ABATEMENT"
)

type NoticeChannel string

const (
	ChannelNewspaper NoticeChannel = "NEWSPAPER"
	ChannelWebsite   NoticeChannel = "WEBSITE"
	ChannelPosting   NoticeChannel = "POSTING"
	ChannelMail      NoticeChannel = "MAIL"
)

// PublicationRule is the statutory template for one notice reason.
type PublicationRule struct {
	Reason               NoticeReason    `json:"reason" yaml:"-"`
	Description          string          `json:"description,omitempty" yaml:"description"`
	RequiredPublications int             `json:"required_publications" yaml:"required_publications"`
	RequiredLeadDays     int             `json:"required_lead_days" yaml:"required_lead_days"`
	MustBeConsecutive    bool            `json:"must_be_consecutive" yaml:"must_be_consecutive"`
	RequiredChannels     []NoticeChannel `json:"required_channels,omitempty" yaml:"required_channels"`
	StatutoryCite        string          `json:"statutory_cite,omitempty" yaml:"statutory_cite"`
}

// SubmissionWindow overrides the submission lead for one publication weekday.
type SubmissionWindow struct {
	DaysBeforePublication int `json:"days_before_publication"`
	Hour                  int `json:"hour"`
	Minute                int `json:"minute"`
}

type NewspaperSchedule struct {
	Name                string                            `json:"name"`
	PublicationDays     []time.Weekday                    `json:"publication_days"`
	HolidayClosures     []time.Time                       `json:"holiday_closures,omitempty"`
	SubmissionLeadDays  int                               `json:"submission_lead_days"`
	SubmissionDeadlines map[time.Weekday]SubmissionWindow `json:"submission_deadlines,omitempty"`
}

// PublishesOn reports whether the paper prints on the given weekday.
func (s NewspaperSchedule) PublishesOn(d time.Weekday) bool {
	for _, pd := range s.PublicationDays {
		if pd == d {
			return true
		}
	}
	return false
}

// IsClosed reports whether t falls on a listed holiday closure.
func (s NewspaperSchedule) IsClosed(t time.Time) bool {
	for _, h := range s.HolidayClosures {
		if SameDate(h, t) {
			return true
		}
	}
	return false
}

// SameDate compares calendar dates, ignoring time of day and location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

type RiskLevel string

const (
	RiskLow        RiskLevel = "LOW"
	RiskMedium     RiskLevel = "MEDIUM"
	RiskHigh       RiskLevel = "HIGH"
	RiskImpossible RiskLevel = "IMPOSSIBLE"
)

type RequiredPublication struct {
	Number                int       `json:"number"`
	TargetDate            time.Time `json:"target_date"`
	LatestPublicationDate time.Time `json:"latest_publication_date"`
	SubmissionDeadline    time.Time `json:"submission_deadline"`
}

// DeadlineCalculation is derived on demand and never persisted on its own.
// HasDeadline is false when the rule requires no publication; the
// EarliestSubmissionDeadline then holds a far-future sentinel.
type DeadlineCalculation struct {
	HearingDate                time.Time             `json:"hearing_date"`
	NoticeReason               NoticeReason          `json:"notice_reason"`
	Rule                       PublicationRule       `json:"rule"`
	RequiredPublications       []RequiredPublication `json:"required_publications"`
	EarliestSubmissionDeadline time.Time             `json:"earliest_submission_deadline"`
	HasDeadline                bool                  `json:"has_deadline"`
	RiskLevel                  RiskLevel             `json:"risk_level" enum:"LOW,MEDIUM,HIGH,IMPOSSIBLE"`
	RiskMessage                string                `json:"risk_message,omitempty"`
	CalculatedAt               time.Time             `json:"calculated_at"`
}

// Hearing ties a noticed public hearing to its most recent deadline calculation.
type Hearing struct {
	ID           string              `json:"id"`
	TenantID     string              `json:"tenant_id"`
	MeetingID    string              `json:"meeting_id,omitempty"`
	Title        string              `json:"title"`
	NoticeReason NoticeReason        `json:"notice_reason"`
	HearingDate  time.Time           `json:"hearing_date"`
	Deadlines    DeadlineCalculation `json:"deadlines"`
	RiskLevel    RiskLevel           `json:"risk_level" enum:"LOW,MEDIUM,HIGH,IMPOSSIBLE"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}
