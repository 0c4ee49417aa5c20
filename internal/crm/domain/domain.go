// Package domain holds the CRM records shared by ingestion and follow-up:
// conversations, messages and prospects, plus their enumerations.
package domain

import "time"

// Direction of a message relative to the business.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ConversationStatusActive is the status assigned to new conversations.
const ConversationStatusActive = "active"

// FunnelStage is the prospect's position in the sales pipeline.
type FunnelStage string

const (
	StageLead       FunnelStage = "lead"
	StageContacted  FunnelStage = "contacted"
	StageInterested FunnelStage = "interested"
	StageEvaluating FunnelStage = "evaluating"
	StageEnrolled   FunnelStage = "enrolled"
	StageCallLater  FunnelStage = "call_later"
)

// Urgency detected from the latest inbound message.
type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyMedia  Urgency = "media"
	UrgencyAlta   Urgency = "alta"
)

// PestType is the pest the contact wants eradicated.
type PestType string

const (
	PestCockroaches PestType = "cockroaches"
	PestAnts        PestType = "ants"
	PestRodents     PestType = "rodents"
	PestTermites    PestType = "termites"
	PestBedbugs     PestType = "bedbugs"
	PestFlies       PestType = "flies"
	PestWaspsBees   PestType = "wasps_bees"
	PestSpiders     PestType = "spiders"
	PestFleas       PestType = "fleas"
	PestTicks       PestType = "ticks"
)

const (
	// IntentInitialInquiry is the intent recorded on a freshly created prospect.
	IntentInitialInquiry = "initial_inquiry"
	// SentimentNeutral is the sentiment recorded on a freshly created prospect.
	SentimentNeutral = "neutral"
	// MaxComplexity caps the prospect complexity score.
	MaxComplexity = 100
	// ComplexityStep is added to the score for every follow-up inbound message.
	ComplexityStep = 5
	// FollowupDelay is how long after an inbound message the contact becomes
	// eligible for an automated follow-up.
	FollowupDelay = 4 * time.Hour
)

// Conversation is the per-phone-number thread.
type Conversation struct {
	ID                   int64
	Phone                string
	ContactName          *string
	Status               string
	TotalMessages        int
	InboundMessages      int
	OutboundMessages     int
	LastMessageAt        *time.Time
	LastMessageDirection *Direction
	LastInboundAt        *time.Time
	HasUnread            bool
	UnreadCount          int
	NeedsFollowup4h      bool
	NextFollowupAt       *time.Time
	ReactivationAttempts int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Message is one WhatsApp message stored against a conversation.
type Message struct {
	ID                int64
	ConversationID    *int64
	Direction         Direction
	Phone             string
	Body              string
	Kind              string
	SentAt            time.Time
	MediaRef          *string
	ProviderMessageID *string
	IsRead            bool
}

// Prospect is the sales-side view of a contact, one per conversation.
type Prospect struct {
	ID               int64
	ConversationID   int64
	Phone            string
	Name             *string
	FunnelStage      FunnelStage
	PestType         *PestType
	Urgency          Urgency
	ComplexityScore  int
	AutoTags         []string
	AISummary        *string
	LastIntent       *string
	Sentiment        *string
	IsInitialized    bool
	RequiresFollowup bool
	LastContactAt    *time.Time
	LastMessageAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DueFollowup is a conversation eligible for a follow-up. Prospect is nil
// when the conversation has no prospect row yet.
type DueFollowup struct {
	Conversation Conversation
	Prospect     *Prospect
}
