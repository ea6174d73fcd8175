package server

import (
	"encoding/json"

	"townbox/internal/config"
	"townbox/internal/domain"
)

// Request payloads

type CreateBodyRequest struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name"`
	TotalSeats   int               `json:"total_seats" minimum:"1"`
	QuorumType   domain.QuorumType `json:"quorum_type,omitempty" enum:"MAJORITY,TWO_THIRDS,SPECIFIC"`
	QuorumNumber int               `json:"quorum_number,omitempty"`
}

type CreateMeetingRequest struct {
	ID             string `json:"id,omitempty"`
	BodyID         string `json:"body_id"`
	Title          string `json:"title"`
	Location       string `json:"location,omitempty"`
	ScheduledStart string `json:"scheduled_start" format:"date-time"`
	IsEmergency    bool   `json:"is_emergency,omitempty"`
}

type MeetingTransitionRequest struct {
	To             domain.MeetingStatus `json:"to" enum:"DRAFT,SCHEDULED,NOTICED,IN_PROGRESS,RECESSED,ADJOURNED,CANCELLED"`
	NoticePostedAt string               `json:"notice_posted_at,omitempty" format:"date-time"`
}

type AttendanceRequest struct {
	Status domain.AttendanceStatus `json:"status" enum:"PRESENT,LATE,ABSENT,EXCUSED"`
}

type RecusalRequest struct {
	MemberID     string `json:"member_id"`
	AgendaItemID string `json:"agenda_item_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type AgendaItemRequest struct {
	Title string `json:"title"`
}

type AgendaTransitionRequest struct {
	To domain.AgendaStatus `json:"to" enum:"DRAFT,PENDING_REVIEW,APPROVED,PUBLISHED,AMENDED,ARCHIVED"`
}

type AgendaItemTransitionRequest struct {
	To domain.AgendaItemStatus `json:"to" enum:"PENDING,IN_DISCUSSION,TABLED,DEFERRED,ACTED_ON,WITHDRAWN"`
}

type CreateActionRequest struct {
	ID           string            `json:"id,omitempty"`
	AgendaItemID string            `json:"agenda_item_id,omitempty"`
	Type         domain.ActionType `json:"type,omitempty" enum:"MOTION,RESOLUTION,ORDINANCE,CONSENT"`
	Description  string            `json:"description"`
	MovedBy      string            `json:"moved_by,omitempty"`
}

type SecondRequest struct {
	MemberID string `json:"member_id"`
}

type CastVoteRequest struct {
	MemberID string           `json:"member_id"`
	Vote     domain.VoteValue `json:"vote" enum:"YEA,NAY,ABSTAIN,ABSENT,RECUSED"`
}

type CreateSessionRequest struct {
	Reason string `json:"reason" example:"LITIGATION"`
}

type SessionTransitionRequest struct {
	To domain.ExecutiveSessionStatus `json:"to" enum:"PENDING,IN_SESSION,ENDED,CERTIFIED,CANCELLED"`
}

type MinutesRequest struct {
	Body string `json:"body,omitempty"`
}

type MinutesTransitionRequest struct {
	To domain.MinutesStatus `json:"to" enum:"DRAFT,PENDING_APPROVAL,APPROVED,AMENDED"`
}

type DeadlineRequest struct {
	HearingDate  string              `json:"hearing_date" format:"date" example:"2025-02-15"`
	NoticeReason domain.NoticeReason `json:"notice_reason" example:"BOND_HEARING"`
}

type CreateHearingRequest struct {
	ID           string              `json:"id,omitempty"`
	MeetingID    string              `json:"meeting_id,omitempty"`
	Title        string              `json:"title"`
	HearingDate  string              `json:"hearing_date" format:"date"`
	NoticeReason domain.NoticeReason `json:"notice_reason"`
}

type CreateFindingsRequest struct {
	CaseID   string          `json:"case_id"`
	CaseType domain.CaseType `json:"case_type" enum:"DEVELOPMENT_STANDARDS_VARIANCE,USE_VARIANCE,SPECIAL_EXCEPTION"`
}

type UpdateCriterionRequest struct {
	StaffDetermination *domain.Determination `json:"staff_determination,omitempty" enum:"MET,NOT_MET,UNABLE_TO_DETERMINE"`
	BoardDetermination *domain.Determination `json:"board_determination,omitempty" enum:"MET,NOT_MET,UNABLE_TO_DETERMINE"`
	Rationale          *string               `json:"rationale,omitempty"`
}

type ConditionRequest struct {
	Text string `json:"text"`
}

type AdoptRequest struct {
	Decision domain.Decision `json:"decision" enum:"APPROVE,DENY"`
}

type TenantConfigRequest struct {
	YAML string `json:"yaml"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID  string `json:"actor_id"`
	TenantID string `json:"tenant_id"`
}

// Response payloads

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type TenantConfigResponse struct {
	TenantID      string                `json:"tenant_id"`
	Jurisdiction  string                `json:"jurisdiction"`
	Timezone      string                `json:"timezone,omitempty"`
	NoticeHours   float64               `json:"notice_hours"`
	PassThreshold float64               `json:"pass_threshold"`
	Newspaper     string                `json:"newspaper,omitempty"`
	Overrides     []domain.NoticeReason `json:"overrides"`
	Webhooks      int                   `json:"webhooks"`
	YAML          string                `json:"yaml"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	Secret    string `json:"secret,omitempty"`
}

type WhoAmIResponse struct {
	ActorID  string `json:"actor_id"`
	TenantID string `json:"tenant_id"`
	Source   string `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Conversion helpers

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		TenantID:   e.TenantID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func configResponse(cfg *config.Config) (TenantConfigResponse, error) {
	raw, err := cfg.ToYAML()
	if err != nil {
		return TenantConfigResponse{}, err
	}
	res := TenantConfigResponse{
		TenantID:      cfg.Tenant.ID,
		Jurisdiction:  cfg.Tenant.Jurisdiction,
		Timezone:      cfg.Tenant.Timezone,
		NoticeHours:   cfg.Meetings.NoticeHours,
		PassThreshold: cfg.Voting.PassThreshold,
		Overrides:     cfg.OverriddenReasons(),
		Webhooks:      len(cfg.Webhooks),
		YAML:          string(raw),
	}
	if cfg.Newspaper != nil {
		res.Newspaper = cfg.Newspaper.Name
	}
	return res, nil
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
