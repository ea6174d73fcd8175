package domain

import "time"

type MeetingStatus string

const (
	MeetingDraft      MeetingStatus = "DRAFT"
	MeetingScheduled  MeetingStatus = "SCHEDULED"
	MeetingNoticed    MeetingStatus = "NOTICED"
	MeetingInProgress MeetingStatus = "IN_PROGRESS"
	MeetingRecessed   MeetingStatus = "RECESSED"
	MeetingAdjourned  MeetingStatus = "ADJOURNED"
	MeetingCancelled  MeetingStatus = "CANCELLED"
)

type AgendaStatus string

const (
	AgendaDraft         AgendaStatus = "DRAFT"
	AgendaPendingReview AgendaStatus = "PENDING_REVIEW"
	AgendaApproved      AgendaStatus = "APPROVED"
	AgendaPublished     AgendaStatus = "PUBLISHED"
	AgendaAmended       AgendaStatus = "AMENDED"
	AgendaArchived      AgendaStatus = "ARCHIVED"
)

type AgendaItemStatus string

const (
	AgendaItemPending      AgendaItemStatus = "PENDING"
	AgendaItemInDiscussion AgendaItemStatus = "IN_DISCUSSION"
	AgendaItemTabled       AgendaItemStatus = "TABLED"
	AgendaItemDeferred     AgendaItemStatus = "DEFERRED"
	AgendaItemActedOn      AgendaItemStatus = "ACTED_ON"
	AgendaItemWithdrawn    AgendaItemStatus = "WITHDRAWN"
)

type ExecutiveSessionStatus string

const (
	SessionPending   ExecutiveSessionStatus = "PENDING"
	SessionInSession ExecutiveSessionStatus = "IN_SESSION"
	SessionEnded     ExecutiveSessionStatus = "ENDED"
	SessionCertified ExecutiveSessionStatus = "CERTIFIED"
	SessionCancelled ExecutiveSessionStatus = "CANCELLED"
)

type MinutesStatus string

const (
	MinutesDraft           MinutesStatus = "DRAFT"
	MinutesPendingApproval MinutesStatus = "PENDING_APPROVAL"
	MinutesApproved        MinutesStatus = "APPROVED"
	MinutesAmended         MinutesStatus = "AMENDED"
)

type ActionStatus string

const (
	ActionPending   ActionStatus = "PENDING"
	ActionVoting    ActionStatus = "VOTING"
	ActionPassed    ActionStatus = "PASSED"
	ActionFailed    ActionStatus = "FAILED"
	ActionWithdrawn ActionStatus = "WITHDRAWN"
)

type ActionType string

const (
	ActionMotion     ActionType = "MOTION"
	ActionResolution ActionType = "RESOLUTION"
	ActionOrdinance  ActionType = "ORDINANCE"
	ActionConsent    ActionType = "CONSENT"
)

type QuorumType string

const (
	QuorumMajority  QuorumType = "MAJORITY"
	QuorumTwoThirds QuorumType = "TWO_THIRDS"
	QuorumSpecific  QuorumType = "SPECIFIC"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// CountsTowardQuorum reports whether the member is physically seated.
func (s AttendanceStatus) CountsTowardQuorum() bool {
	return s == AttendancePresent || s == AttendanceLate
}

type VoteValue string

const (
	VoteYea     VoteValue = "YEA"
	VoteNay     VoteValue = "NAY"
	VoteAbstain VoteValue = "ABSTAIN"
	VoteAbsent  VoteValue = "ABSENT"
	VoteRecused VoteValue = "RECUSED"
)

type GoverningBody struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Name         string     `json:"name"`
	TotalSeats   int        `json:"total_seats"`
	QuorumType   QuorumType `json:"quorum_type" enum:"MAJORITY,TWO_THIRDS,SPECIFIC"`
	QuorumNumber int        `json:"quorum_number,omitempty"`
}

type Meeting struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"tenant_id"`
	BodyID         string        `json:"body_id"`
	Title          string        `json:"title"`
	Location       string        `json:"location,omitempty"`
	Status         MeetingStatus `json:"status" enum:"DRAFT,SCHEDULED,NOTICED,IN_PROGRESS,RECESSED,ADJOURNED,CANCELLED"`
	ScheduledStart time.Time     `json:"scheduled_start"`
	IsEmergency    bool          `json:"is_emergency"`
	NoticePostedAt *time.Time    `json:"notice_posted_at,omitempty"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	AdjournedAt    *time.Time    `json:"adjourned_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type MeetingAttendance struct {
	ID        string           `json:"id"`
	MeetingID string           `json:"meeting_id"`
	MemberID  string           `json:"member_id"`
	Status    AttendanceStatus `json:"status" enum:"PRESENT,LATE,ABSENT,EXCUSED"`
	ArrivedAt *time.Time       `json:"arrived_at,omitempty"`
}

// MemberRecusal with an empty AgendaItemID applies to the whole meeting.
type MemberRecusal struct {
	ID           string    `json:"id"`
	MeetingID    string    `json:"meeting_id"`
	MemberID     string    `json:"member_id"`
	AgendaItemID string    `json:"agenda_item_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// IsMeetingWide reports whether the recusal covers every item on the agenda.
func (r MemberRecusal) IsMeetingWide() bool {
	return r.AgendaItemID == ""
}

type Action struct {
	ID           string       `json:"id"`
	MeetingID    string       `json:"meeting_id"`
	AgendaItemID string       `json:"agenda_item_id,omitempty"`
	Type         ActionType   `json:"type" enum:"MOTION,RESOLUTION,ORDINANCE,CONSENT"`
	Description  string       `json:"description"`
	MovedBy      string       `json:"moved_by,omitempty"`
	SecondedBy   string       `json:"seconded_by,omitempty"`
	Status       ActionStatus `json:"status" enum:"PENDING,VOTING,PASSED,FAILED,WITHDRAWN"`
	Tally        *VoteTally   `json:"tally,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// VoteTally is the persisted outcome of a closed vote.
type VoteTally struct {
	Yea           int  `json:"yea"`
	Nay           int  `json:"nay"`
	Abstain       int  `json:"abstain"`
	Absent        int  `json:"absent"`
	Recused       int  `json:"recused"`
	VotingMembers int  `json:"voting_members"`
	Passed        bool `json:"passed"`
	Margin        int  `json:"margin"`
}

// VoteRecord is immutable once created. RequestedVote keeps the value the
// member asked for when Vote was forced to RECUSED.
type VoteRecord struct {
	ID            string    `json:"id"`
	ActionID      string    `json:"action_id"`
	MemberID      string    `json:"member_id"`
	Vote          VoteValue `json:"vote" enum:"YEA,NAY,ABSTAIN,ABSENT,RECUSED"`
	RequestedVote VoteValue `json:"requested_vote,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

type ExecutiveSession struct {
	ID            string                 `json:"id"`
	MeetingID     string                 `json:"meeting_id"`
	Reason        string                 `json:"reason"`
	StatutoryCite string                 `json:"statutory_cite,omitempty"`
	Status        ExecutiveSessionStatus `json:"status" enum:"PENDING,IN_SESSION,ENDED,CERTIFIED,CANCELLED"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	EndedAt       *time.Time             `json:"ended_at,omitempty"`
	CertifiedAt   *time.Time             `json:"certified_at,omitempty"`
	CertifiedBy   string                 `json:"certified_by,omitempty"`
}

type Minutes struct {
	ID         string        `json:"id"`
	MeetingID  string        `json:"meeting_id"`
	Status     MinutesStatus `json:"status" enum:"DRAFT,PENDING_APPROVAL,APPROVED,AMENDED"`
	Body       string        `json:"body,omitempty"`
	ApprovedAt *time.Time    `json:"approved_at,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type Agenda struct {
	ID          string       `json:"id"`
	MeetingID   string       `json:"meeting_id"`
	Status      AgendaStatus `json:"status" enum:"DRAFT,PENDING_REVIEW,APPROVED,PUBLISHED,AMENDED,ARCHIVED"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type AgendaItem struct {
	ID       string           `json:"id"`
	AgendaID string           `json:"agenda_id"`
	Order    int              `json:"order"`
	Title    string           `json:"title"`
	Status   AgendaItemStatus `json:"status" enum:"PENDING,IN_DISCUSSION,TABLED,DEFERRED,ACTED_ON,WITHDRAWN"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	TenantID   string `json:"tenant_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
