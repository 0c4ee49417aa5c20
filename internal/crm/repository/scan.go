package repository

import (
	"time"

	"exterminador_backend/internal/crm/domain"

	"github.com/jackc/pgx/v5"
)

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var (
		conv      domain.Conversation
		direction *string
	)
	err := row.Scan(conversationDest(&conv, &direction)...)
	if err != nil {
		return domain.Conversation{}, err
	}
	conv.LastMessageDirection = directionPtr(direction)
	return conv, nil
}

func conversationDest(conv *domain.Conversation, direction **string) []any {
	return []any{
		&conv.ID, &conv.Phone, &conv.ContactName, &conv.Status, &conv.TotalMessages,
		&conv.InboundMessages, &conv.OutboundMessages, &conv.LastMessageAt, direction,
		&conv.LastInboundAt, &conv.HasUnread, &conv.UnreadCount, &conv.NeedsFollowup4h,
		&conv.NextFollowupAt, &conv.ReactivationAttempts, &conv.CreatedAt, &conv.UpdatedAt,
	}
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var (
		msg       domain.Message
		direction string
	)
	if err := row.Scan(
		&msg.ID, &msg.ConversationID, &direction, &msg.Phone, &msg.Body, &msg.Kind,
		&msg.SentAt, &msg.MediaRef, &msg.ProviderMessageID, &msg.IsRead,
	); err != nil {
		return domain.Message{}, err
	}
	msg.Direction = domain.Direction(direction)
	return msg, nil
}

func scanProspect(row pgx.Row) (domain.Prospect, error) {
	var (
		p              domain.Prospect
		stage, urgency string
		pest           *string
	)
	if err := row.Scan(
		&p.ID, &p.ConversationID, &p.Phone, &p.Name, &stage, &pest, &urgency,
		&p.ComplexityScore, &p.AutoTags, &p.AISummary, &p.LastIntent, &p.Sentiment,
		&p.IsInitialized, &p.RequiresFollowup, &p.LastContactAt, &p.LastMessageAt,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return domain.Prospect{}, err
	}
	p.FunnelStage = domain.FunnelStage(stage)
	p.Urgency = domain.Urgency(urgency)
	p.PestType = pestPtr(pest)
	return p, nil
}

// nullableProspect mirrors the prospect columns of a LEFT JOIN, where every
// column may be NULL.
type nullableProspect struct {
	ID               *int64
	ConversationID   *int64
	Phone            *string
	Name             *string
	FunnelStage      *string
	PestType         *string
	Urgency          *string
	ComplexityScore  *int
	AutoTags         []string
	AISummary        *string
	LastIntent       *string
	Sentiment        *string
	IsInitialized    *bool
	RequiresFollowup *bool
	LastContactAt    *time.Time
	LastMessageAt    *time.Time
	CreatedAt        *time.Time
	UpdatedAt        *time.Time
}

func scanDueFollowup(row pgx.Row) (domain.DueFollowup, error) {
	var (
		item      domain.DueFollowup
		direction *string
		np        nullableProspect
	)
	dest := conversationDest(&item.Conversation, &direction)
	dest = append(dest,
		&np.ID, &np.ConversationID, &np.Phone, &np.Name, &np.FunnelStage, &np.PestType,
		&np.Urgency, &np.ComplexityScore, &np.AutoTags, &np.AISummary, &np.LastIntent,
		&np.Sentiment, &np.IsInitialized, &np.RequiresFollowup, &np.LastContactAt,
		&np.LastMessageAt, &np.CreatedAt, &np.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return domain.DueFollowup{}, err
	}
	item.Conversation.LastMessageDirection = directionPtr(direction)

	if np.ID != nil {
		item.Prospect = &domain.Prospect{
			ID:               *np.ID,
			ConversationID:   deref(np.ConversationID),
			Phone:            deref(np.Phone),
			Name:             np.Name,
			FunnelStage:      domain.FunnelStage(deref(np.FunnelStage)),
			PestType:         pestPtr(np.PestType),
			Urgency:          domain.Urgency(deref(np.Urgency)),
			ComplexityScore:  deref(np.ComplexityScore),
			AutoTags:         np.AutoTags,
			AISummary:        np.AISummary,
			LastIntent:       np.LastIntent,
			Sentiment:        np.Sentiment,
			IsInitialized:    deref(np.IsInitialized),
			RequiresFollowup: deref(np.RequiresFollowup),
			LastContactAt:    np.LastContactAt,
			LastMessageAt:    np.LastMessageAt,
			CreatedAt:        deref(np.CreatedAt),
			UpdatedAt:        deref(np.UpdatedAt),
		}
	}
	return item, nil
}

func directionPtr(s *string) *domain.Direction {
	if s == nil {
		return nil
	}
	d := domain.Direction(*s)
	return &d
}

func pestPtr(s *string) *domain.PestType {
	if s == nil {
		return nil
	}
	p := domain.PestType(*s)
	return &p
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
