package repository

import (
	"context"
	"time"

	"exterminador_backend/internal/crm/domain"
	"exterminador_backend/platform/apperr"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = apperr.NotFound("record not found")

// NewConversation contains data for the first inbound message of a phone number.
type NewConversation struct {
	Phone          string
	ContactName    string
	MessageAt      time.Time
	NextFollowupAt time.Time
	Now            time.Time
}

// InboundActivity records one more inbound message on an existing conversation.
type InboundActivity struct {
	ConversationID int64
	MessageAt      time.Time
	NextFollowupAt time.Time
	Now            time.Time
}

// NewMessage contains data for storing one message.
type NewMessage struct {
	ConversationID    int64
	Direction         domain.Direction
	Phone             string
	Body              string
	Kind              string
	SentAt            time.Time
	MediaRef          *string
	ProviderMessageID *string
}

// NewProspect contains classifier outputs for a contact seen for the first time.
type NewProspect struct {
	ConversationID int64
	Phone          string
	Name           *string
	FunnelStage    domain.FunnelStage
	PestType       *domain.PestType
	Urgency        domain.Urgency
	Complexity     int
	Tags           []string
	AISummary      string
	LastIntent     string
	Sentiment      string
	MessageAt      time.Time
	Now            time.Time
}

// ProspectActivity merges a subsequent inbound message into a prospect.
type ProspectActivity struct {
	Phone          string
	Urgency        domain.Urgency
	Tags           []string
	ComplexityStep int
	MessageAt      time.Time
	Now            time.Time
}

// ConversationStore covers the conversation table.
type ConversationStore interface {
	FindConversationByPhone(ctx context.Context, phone string) (domain.Conversation, error)
	// InsertConversation reports created=false when another writer inserted
	// the same phone first; the caller then records activity instead.
	InsertConversation(ctx context.Context, params NewConversation) (conv domain.Conversation, created bool, err error)
	RecordInboundMessage(ctx context.Context, params InboundActivity) (domain.Conversation, error)
}

// MessageStore covers the messages table.
type MessageStore interface {
	InsertMessage(ctx context.Context, params NewMessage) (domain.Message, error)
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error)
	UpdateMessageReadStatus(ctx context.Context, phone string, read bool) (int64, error)
}

// ProspectStore covers the prospects table.
type ProspectStore interface {
	FindProspectByPhone(ctx context.Context, phone string) (domain.Prospect, error)
	FindProspectByConversationID(ctx context.Context, conversationID int64) (domain.Prospect, error)
	InsertProspect(ctx context.Context, params NewProspect) (p domain.Prospect, created bool, err error)
	MergeProspectActivity(ctx context.Context, params ProspectActivity) (domain.Prospect, error)
}

// FollowupStore covers the follow-up scheduler's reads and writes.
type FollowupStore interface {
	QueryDueFollowups(ctx context.Context, now time.Time, limit int) ([]domain.DueFollowup, error)
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error)
	MarkFollowupSent(ctx context.Context, conversationID int64, next, now time.Time) error
	TouchProspectAfterFollowup(ctx context.Context, conversationID int64, now time.Time) error
}

// Store is the full persistence surface.
type Store interface {
	ConversationStore
	MessageStore
	ProspectStore
	FollowupStore
}
