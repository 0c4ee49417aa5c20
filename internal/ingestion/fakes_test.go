package ingestion

import (
	"context"
	"sync"
	"time"

	"exterminador_backend/internal/crm/classifier"
	"exterminador_backend/internal/crm/domain"
	"exterminador_backend/internal/crm/repository"
	"exterminador_backend/internal/dispatch"
)

// memStore mimics the SQL semantics of repository.Repo in memory.
type memStore struct {
	mu            sync.Mutex
	nextID        int64
	conversations map[string]*domain.Conversation
	prospects     map[string]*domain.Prospect
	messages      []domain.Message
	readUpdates   map[string]bool

	failConversationFor map[string]error
	failInsertMessage   error
	insertConflictOnce  bool
}

func newMemStore() *memStore {
	return &memStore{
		conversations:       map[string]*domain.Conversation{},
		prospects:           map[string]*domain.Prospect{},
		readUpdates:         map[string]bool{},
		failConversationFor: map[string]error{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) FindConversationByPhone(_ context.Context, phone string) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failConversationFor[phone]; err != nil {
		return domain.Conversation{}, err
	}
	conv, ok := m.conversations[phone]
	if !ok {
		return domain.Conversation{}, repository.ErrNotFound
	}
	return *conv, nil
}

func (m *memStore) InsertConversation(_ context.Context, p repository.NewConversation) (domain.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertConflictOnce {
		// Another writer won the race for this phone.
		m.insertConflictOnce = false
		m.conversations[p.Phone] = &domain.Conversation{
			ID: m.id(), Phone: p.Phone, Status: domain.ConversationStatusActive,
			TotalMessages: 1, InboundMessages: 1, HasUnread: true, UnreadCount: 1,
			NeedsFollowup4h: true, NextFollowupAt: ptr(p.NextFollowupAt),
		}
		return domain.Conversation{}, false, nil
	}
	if _, ok := m.conversations[p.Phone]; ok {
		return domain.Conversation{}, false, nil
	}

	dir := domain.DirectionInbound
	name := p.ContactName
	conv := &domain.Conversation{
		ID:                   m.id(),
		Phone:                p.Phone,
		ContactName:          &name,
		Status:               domain.ConversationStatusActive,
		TotalMessages:        1,
		InboundMessages:      1,
		LastMessageAt:        ptr(p.MessageAt),
		LastMessageDirection: &dir,
		LastInboundAt:        ptr(p.MessageAt),
		HasUnread:            true,
		UnreadCount:          1,
		NeedsFollowup4h:      true,
		NextFollowupAt:       ptr(p.NextFollowupAt),
		CreatedAt:            p.Now,
		UpdatedAt:            p.Now,
	}
	m.conversations[p.Phone] = conv
	return *conv, true, nil
}

func (m *memStore) RecordInboundMessage(_ context.Context, p repository.InboundActivity) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.conversations {
		if conv.ID != p.ConversationID {
			continue
		}
		dir := domain.DirectionInbound
		conv.TotalMessages++
		conv.InboundMessages++
		conv.UnreadCount++
		conv.HasUnread = true
		conv.LastMessageAt = ptr(p.MessageAt)
		conv.LastMessageDirection = &dir
		conv.LastInboundAt = ptr(p.MessageAt)
		conv.NeedsFollowup4h = true
		conv.NextFollowupAt = ptr(p.NextFollowupAt)
		conv.UpdatedAt = p.Now
		return *conv, nil
	}
	return domain.Conversation{}, repository.ErrNotFound
}

func (m *memStore) InsertMessage(_ context.Context, p repository.NewMessage) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertMessage != nil {
		return domain.Message{}, m.failInsertMessage
	}
	convID := p.ConversationID
	msg := domain.Message{
		ID:                m.id(),
		ConversationID:    &convID,
		Direction:         p.Direction,
		Phone:             p.Phone,
		Body:              p.Body,
		Kind:              p.Kind,
		SentAt:            p.SentAt,
		MediaRef:          p.MediaRef,
		ProviderMessageID: p.ProviderMessageID,
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) UpdateMessageReadStatus(_ context.Context, phone string, read bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readUpdates[phone] = read
	var n int64
	for i := range m.messages {
		if m.messages[i].Phone == phone {
			m.messages[i].IsRead = read
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindProspectByPhone(_ context.Context, phone string) (domain.Prospect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prospects[phone]
	if !ok {
		return domain.Prospect{}, repository.ErrNotFound
	}
	return *p, nil
}

func (m *memStore) FindProspectByConversationID(_ context.Context, conversationID int64) (domain.Prospect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prospects {
		if p.ConversationID == conversationID {
			return *p, nil
		}
	}
	return domain.Prospect{}, repository.ErrNotFound
}

func (m *memStore) InsertProspect(_ context.Context, p repository.NewProspect) (domain.Prospect, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prospects[p.Phone]; ok {
		return domain.Prospect{}, false, nil
	}
	summary, intent, sentiment := p.AISummary, p.LastIntent, p.Sentiment
	prospect := &domain.Prospect{
		ID:              m.id(),
		ConversationID:  p.ConversationID,
		Phone:           p.Phone,
		Name:            p.Name,
		FunnelStage:     p.FunnelStage,
		PestType:        p.PestType,
		Urgency:         p.Urgency,
		ComplexityScore: p.Complexity,
		AutoTags:        append([]string(nil), p.Tags...),
		AISummary:       &summary,
		LastIntent:      &intent,
		Sentiment:       &sentiment,
		LastContactAt:   ptr(p.MessageAt),
		LastMessageAt:   ptr(p.MessageAt),
		CreatedAt:       p.Now,
		UpdatedAt:       p.Now,
	}
	m.prospects[p.Phone] = prospect
	return *prospect, true, nil
}

func (m *memStore) MergeProspectActivity(_ context.Context, p repository.ProspectActivity) (domain.Prospect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prospect, ok := m.prospects[p.Phone]
	if !ok {
		return domain.Prospect{}, repository.ErrNotFound
	}
	prospect.AutoTags = classifier.MergeTags(prospect.AutoTags, p.Tags)
	prospect.Urgency = p.Urgency
	prospect.ComplexityScore = classifier.RaiseComplexity(prospect.ComplexityScore, p.ComplexityStep)
	prospect.LastContactAt = ptr(p.MessageAt)
	prospect.LastMessageAt = ptr(p.MessageAt)
	prospect.UpdatedAt = p.Now
	return *prospect, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []dispatch.InboundMessage
	err  error
}

func (d *recordingDispatcher) DispatchInbound(_ context.Context, msg dispatch.InboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return d.err
}

type recordingAlerter struct {
	leads []UrgentLead
}

func (a *recordingAlerter) AlertUrgentLead(_ context.Context, lead UrgentLead) error {
	a.leads = append(a.leads, lead)
	return nil
}

type recordingArchiver struct {
	payloads [][]byte
}

func (a *recordingArchiver) Archive(_ context.Context, raw []byte, _ time.Time) (string, error) {
	a.payloads = append(a.payloads, raw)
	return "key", nil
}

func ptr[T any](v T) *T {
	return &v
}
