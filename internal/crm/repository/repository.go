package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exterminador_backend/internal/crm/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements Store on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new CRM repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Store.
var _ Store = (*Repo)(nil)

const conversationColumns = `
	c.id, c.phone, c.contact_name, c.status, c.total_messages, c.inbound_messages,
	c.outbound_messages, c.last_message_at, c.last_message_direction, c.last_inbound_at,
	c.has_unread, c.unread_count, c.needs_followup_4h, c.next_followup_at,
	c.reactivation_attempts, c.created_at, c.updated_at`

const prospectColumns = `
	p.id, p.conversation_id, p.phone, p.name, p.funnel_stage, p.pest_type, p.urgency,
	p.complexity_score, p.auto_tags, p.ai_summary, p.last_intent, p.sentiment,
	p.is_initialized, p.requires_followup, p.last_contact_at, p.last_message_at,
	p.created_at, p.updated_at`

const messageColumns = `
	m.id, m.conversation_id, m.direction, m.phone, m.body, m.kind, m.sent_at,
	m.media_ref, m.provider_message_id, m.is_read`

func (r *Repo) FindConversationByPhone(ctx context.Context, phone string) (domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.phone = $1`

	conv, err := scanConversation(r.pool.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, ErrNotFound
		}
		return domain.Conversation{}, fmt.Errorf("find conversation by phone: %w", err)
	}
	return conv, nil
}

func (r *Repo) InsertConversation(ctx context.Context, params NewConversation) (domain.Conversation, bool, error) {
	query := `
		INSERT INTO conversations AS c (
			phone, contact_name, status, total_messages, inbound_messages,
			last_message_at, last_message_direction, last_inbound_at,
			has_unread, unread_count, needs_followup_4h, next_followup_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, 1, 1, $4, $5, $4, true, 1, true, $6, $7, $7)
		ON CONFLICT (phone) DO NOTHING
		RETURNING ` + conversationColumns

	conv, err := scanConversation(r.pool.QueryRow(ctx, query,
		params.Phone, params.ContactName, domain.ConversationStatusActive,
		params.MessageAt, string(domain.DirectionInbound), params.NextFollowupAt, params.Now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, true, nil
}

func (r *Repo) RecordInboundMessage(ctx context.Context, params InboundActivity) (domain.Conversation, error) {
	query := `
		UPDATE conversations AS c
		SET total_messages = c.total_messages + 1,
			inbound_messages = c.inbound_messages + 1,
			unread_count = c.unread_count + 1,
			has_unread = true,
			last_message_at = $2,
			last_message_direction = $3,
			last_inbound_at = $2,
			needs_followup_4h = true,
			next_followup_at = $4,
			updated_at = $5
		WHERE c.id = $1
		RETURNING ` + conversationColumns

	conv, err := scanConversation(r.pool.QueryRow(ctx, query,
		params.ConversationID, params.MessageAt, string(domain.DirectionInbound),
		params.NextFollowupAt, params.Now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, ErrNotFound
		}
		return domain.Conversation{}, fmt.Errorf("record inbound message: %w", err)
	}
	return conv, nil
}

func (r *Repo) InsertMessage(ctx context.Context, params NewMessage) (domain.Message, error) {
	query := `
		INSERT INTO messages AS m (
			conversation_id, direction, phone, body, kind, sent_at, media_ref, provider_message_id, is_read
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
		RETURNING ` + messageColumns

	msg, err := scanMessage(r.pool.QueryRow(ctx, query,
		params.ConversationID, string(params.Direction), params.Phone, params.Body,
		params.Kind, params.SentAt, params.MediaRef, params.ProviderMessageID,
	))
	if err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (r *Repo) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		WHERE m.conversation_id = $1
		ORDER BY m.sent_at DESC, m.id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return messages, nil
}

// UpdateMessageReadStatus sets the read flag on every message stored for phone.
func (r *Repo) UpdateMessageReadStatus(ctx context.Context, phone string, read bool) (int64, error) {
	result, err := r.pool.Exec(ctx, `UPDATE messages SET is_read = $2 WHERE phone = $1`, phone, read)
	if err != nil {
		return 0, fmt.Errorf("update message read status: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *Repo) FindProspectByPhone(ctx context.Context, phone string) (domain.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects p WHERE p.phone = $1`

	p, err := scanProspect(r.pool.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Prospect{}, ErrNotFound
		}
		return domain.Prospect{}, fmt.Errorf("find prospect by phone: %w", err)
	}
	return p, nil
}

func (r *Repo) FindProspectByConversationID(ctx context.Context, conversationID int64) (domain.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects p WHERE p.conversation_id = $1`

	p, err := scanProspect(r.pool.QueryRow(ctx, query, conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Prospect{}, ErrNotFound
		}
		return domain.Prospect{}, fmt.Errorf("find prospect by conversation: %w", err)
	}
	return p, nil
}

func (r *Repo) InsertProspect(ctx context.Context, params NewProspect) (domain.Prospect, bool, error) {
	query := `
		INSERT INTO prospects AS p (
			conversation_id, phone, name, funnel_stage, pest_type, urgency, complexity_score,
			auto_tags, ai_summary, last_intent, sentiment, is_initialized,
			last_contact_at, last_message_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12, $12, $13, $13)
		ON CONFLICT DO NOTHING
		RETURNING ` + prospectColumns

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	p, err := scanProspect(r.pool.QueryRow(ctx, query,
		params.ConversationID, params.Phone, params.Name, string(params.FunnelStage),
		pestTypeArg(params.PestType), string(params.Urgency), params.Complexity, tags,
		params.AISummary, params.LastIntent, params.Sentiment, params.MessageAt, params.Now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Prospect{}, false, nil
		}
		return domain.Prospect{}, false, fmt.Errorf("insert prospect: %w", err)
	}
	return p, true, nil
}

// MergeProspectActivity unions tags (never removing one), overwrites urgency,
// raises complexity by the step capped at 100 and refreshes the contact
// timestamps. Pest type and funnel stage keep their first-contact values.
func (r *Repo) MergeProspectActivity(ctx context.Context, params ProspectActivity) (domain.Prospect, error) {
	query := `
		UPDATE prospects AS p
		SET auto_tags = p.auto_tags || ARRAY(
				SELECT t FROM unnest($2::text[]) WITH ORDINALITY AS u(t, ord)
				WHERE NOT (t = ANY(p.auto_tags))
				ORDER BY ord
			),
			urgency = $3,
			complexity_score = LEAST(p.complexity_score + $4, $5),
			last_contact_at = $6,
			last_message_at = $6,
			updated_at = $7
		WHERE p.phone = $1
		RETURNING ` + prospectColumns

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	p, err := scanProspect(r.pool.QueryRow(ctx, query,
		params.Phone, tags, string(params.Urgency), params.ComplexityStep, domain.MaxComplexity,
		params.MessageAt, params.Now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Prospect{}, ErrNotFound
		}
		return domain.Prospect{}, fmt.Errorf("merge prospect activity: %w", err)
	}
	return p, nil
}

// QueryDueFollowups returns conversations whose follow-up timer has expired,
// oldest first.
func (r *Repo) QueryDueFollowups(ctx context.Context, now time.Time, limit int) ([]domain.DueFollowup, error) {
	query := `
		SELECT ` + conversationColumns + `,` + prospectColumns + `
		FROM conversations c
		LEFT JOIN prospects p ON p.conversation_id = c.id
		WHERE c.needs_followup_4h = true
			AND c.next_followup_at < $1
		ORDER BY c.next_followup_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due followups: %w", err)
	}
	defer rows.Close()

	var due []domain.DueFollowup
	for rows.Next() {
		item, err := scanDueFollowup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due followup: %w", err)
		}
		due = append(due, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query due followups: %w", err)
	}
	return due, nil
}

func (r *Repo) MarkFollowupSent(ctx context.Context, conversationID int64, next, now time.Time) error {
	query := `
		UPDATE conversations
		SET needs_followup_4h = false,
			reactivation_attempts = reactivation_attempts + 1,
			next_followup_at = $2,
			updated_at = $3
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, conversationID, next, now)
	if err != nil {
		return fmt.Errorf("mark followup sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) TouchProspectAfterFollowup(ctx context.Context, conversationID int64, now time.Time) error {
	query := `
		UPDATE prospects
		SET last_contact_at = $2,
			requires_followup = true,
			updated_at = $2
		WHERE conversation_id = $1`

	if _, err := r.pool.Exec(ctx, query, conversationID, now); err != nil {
		return fmt.Errorf("touch prospect after followup: %w", err)
	}
	return nil
}

func pestTypeArg(p *domain.PestType) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}
