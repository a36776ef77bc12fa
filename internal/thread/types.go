package thread

import "time"

// Status is the lifecycle state of a conversation thread.
type Status string

const (
	StatusUnread     Status = "unread"
	StatusNeedsReply Status = "needs-reply"
	StatusWaiting    Status = "waiting"
	StatusQualified  Status = "qualified"
	StatusSnoozed    Status = "snoozed"
	StatusArchived   Status = "archived"
)

// Category is the classified intent of a thread.
type Category string

const (
	CategorySalesInquiry   Category = "sales_inquiry"
	CategoryNetworking     Category = "networking"
	CategoryJobOpportunity Category = "job_opportunity"
	CategoryPartnership    Category = "partnership"
	CategoryRecruiter      Category = "recruiter"
	CategorySpam           Category = "spam"
	CategorySupport        Category = "support"
	CategoryPersonal       Category = "personal"
	CategoryOther          Category = "other"
)

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategorySalesInquiry, CategoryNetworking, CategoryJobOpportunity,
		CategoryPartnership, CategoryRecruiter, CategorySpam,
		CategorySupport, CategoryPersonal, CategoryOther:
		return true
	}
	return false
}

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Enrichment holds person/organization facts fetched from the enrichment provider.
type Enrichment struct {
	Title         string    `json:"title,omitempty"`
	Company       string    `json:"company,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	Location      string    `json:"location,omitempty"`
	EmployeeCount int       `json:"employee_count,omitempty"`
	RevenueMM     float64   `json:"revenue_mm,omitempty"`
	Website       string    `json:"website,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Post is a cached historical post authored by the thread participant.
type Post struct {
	Content  string    `json:"content"`
	PostedAt time.Time `json:"posted_at,omitempty"`
}

// ScoreBreakdown is the full three-layer warmth score returned by the scoring
// engine, persisted as the thread's qualification data and in score history.
type ScoreBreakdown struct {
	Total             int        `json:"total"`
	Band              string     `json:"band"`
	SuggestedBusiness string     `json:"suggested_business,omitempty"`
	Layer1            ScoreLayer `json:"layer1"`
	Layer2            ScoreLayer `json:"layer2"`
	Layer3            ScoreLayer `json:"layer3"`
	Summary           string     `json:"summary,omitempty"`
	MessagingGuidance string     `json:"messaging_guidance,omitempty"`
}

// ScoreLayer is one additive layer of the warmth model.
type ScoreLayer struct {
	Subtotal int            `json:"subtotal"`
	Signals  map[string]int `json:"signals,omitempty"`
}

// Thread is one conversation with one external participant.
type Thread struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`

	ParticipantID       string `json:"participant_id"`
	ParticipantName     string `json:"participant_name"`
	ParticipantHeadline string `json:"participant_headline,omitempty"`
	ProfileURL          string `json:"profile_url,omitempty"`
	AvatarURL           string `json:"avatar_url,omitempty"`

	LastMessage          string    `json:"last_message,omitempty"`
	LastMessageAt        time.Time `json:"last_message_at,omitempty"`
	LastMessageDirection Direction `json:"last_message_direction,omitempty"`
	UnreadCount          int       `json:"unread_count"`

	Status Status `json:"status"`

	Category             Category   `json:"category,omitempty"`
	IsSelling            bool       `json:"is_selling"`
	IsPartner            bool       `json:"is_partner"`
	Intent               string     `json:"intent,omitempty"`
	ClassifiedAt         *time.Time `json:"classified_at,omitempty"`
	ManualClassification bool       `json:"manual_classification"`
	ClassificationNote   string     `json:"classification_note,omitempty"`

	WampScore         *int            `json:"wamp_score,omitempty"`
	QualificationData *ScoreBreakdown `json:"qualification_data,omitempty"`
	IsQualified       bool            `json:"is_qualified"`

	EnrichmentData *Enrichment `json:"enrichment_data,omitempty"`
	PostData       []Post      `json:"post_data,omitempty"`

	IsSnoozed   bool       `json:"is_snoozed"`
	SnoozeUntil *time.Time `json:"snooze_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one message in a thread. Immutable once stored.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Direction Direction `json:"direction"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	SentAt    time.Time `json:"sent_at"`
}

// ScoreHistoryEntry is one append-only scoring audit record.
type ScoreHistoryEntry struct {
	ID        string         `json:"id"`
	ThreadID  string         `json:"thread_id"`
	Total     int            `json:"total"`
	Band      string         `json:"band"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	CreatedAt time.Time      `json:"created_at"`
}

// DraftHistoryEntry is one append-only draft-generation record.
type DraftHistoryEntry struct {
	ID               string    `json:"id"`
	ThreadID         string    `json:"thread_id"`
	Instruction      string    `json:"instruction,omitempty"`
	Variants         []string  `json:"variants"`
	UsedVariantIndex *int      `json:"used_variant_index,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type ActionType string

const (
	ActionSendMessage ActionType = "send_message"
	ActionSendInvite  ActionType = "send_invite"
	ActionCreatePost  ActionType = "create_post"
	ActionReact       ActionType = "react"
	ActionComment     ActionType = "comment"
)

type ActionStatus string

const (
	ActionPending  ActionStatus = "pending"
	ActionApproved ActionStatus = "approved"
	ActionExecuted ActionStatus = "executed"
	ActionRejected ActionStatus = "rejected"
	ActionFailed   ActionStatus = "failed"
)

// Action is a proposed or executed outbound side effect. Actions reference a
// thread by id but are lifecycled independently of it.
type Action struct {
	ID         string       `json:"id"`
	ThreadID   string       `json:"thread_id,omitempty"`
	Type       ActionType   `json:"action_type"`
	TargetID   string       `json:"target_id"`
	TargetName string       `json:"target_name,omitempty"`
	Payload    string       `json:"payload"`
	Status     ActionStatus `json:"status"`
	ApprovalID string       `json:"approval_id,omitempty"`
	Error      string       `json:"error,omitempty"`
	ExecutedAt *time.Time   `json:"executed_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
