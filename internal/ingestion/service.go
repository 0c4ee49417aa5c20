// Package ingestion receives WhatsApp Cloud API webhook events, keeps the
// conversation and prospect records current and forwards each inbound
// message to the AI automation endpoint.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"exterminador_backend/internal/crm/classifier"
	"exterminador_backend/internal/crm/domain"
	"exterminador_backend/internal/crm/repository"
	"exterminador_backend/internal/dispatch"
	"exterminador_backend/platform/apperr"
	"exterminador_backend/platform/logger"
	"exterminador_backend/platform/phone"
	"exterminador_backend/platform/sanitize"
)

const defaultSummaryTopic = "control de plagas"

// Store is the persistence surface ingestion needs.
type Store interface {
	repository.ConversationStore
	repository.ProspectStore
	InsertMessage(ctx context.Context, params repository.NewMessage) (domain.Message, error)
	UpdateMessageReadStatus(ctx context.Context, phone string, read bool) (int64, error)
}

// InboundDispatcher forwards stored messages to the AI endpoint.
type InboundDispatcher interface {
	DispatchInbound(ctx context.Context, msg dispatch.InboundMessage) error
}

// Deduper guards against provider redeliveries.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Archiver keeps a copy of every raw webhook body.
type Archiver interface {
	Archive(ctx context.Context, raw []byte, receivedAt time.Time) (string, error)
}

// UrgentLead describes a first-contact prospect classified as alta urgency.
type UrgentLead struct {
	ConversationID int64
	Phone          string
	Name           string
	Message        string
	PestType       *domain.PestType
	ReceivedAt     time.Time
}

// LeadAlerter notifies staff about urgent new prospects.
type LeadAlerter interface {
	AlertUrgentLead(ctx context.Context, lead UrgentLead) error
}

// Result summarizes one webhook delivery.
type Result struct {
	Processed       int `json:"processed"`
	Skipped         int `json:"skipped"`
	Duplicates      int `json:"duplicates"`
	StatusesApplied int `json:"statuses_applied"`
}

// Service runs the ingestion pipeline.
type Service struct {
	store      Store
	classifier *classifier.Classifier
	dispatcher InboundDispatcher
	deduper    Deduper
	archiver   Archiver
	alerter    LeadAlerter
	region     string
	log        *logger.Logger
	now        func() time.Time
}

// NewService creates the pipeline. Optional collaborators are attached with
// the Set* methods.
func NewService(store Store, cls *classifier.Classifier, dispatcher InboundDispatcher, region string, log *logger.Logger) *Service {
	if cls == nil {
		cls = classifier.Default()
	}
	return &Service{
		store:      store,
		classifier: cls,
		dispatcher: dispatcher,
		region:     region,
		log:        log,
		now:        time.Now,
	}
}

// SetDeduper enables the provider message id guard.
func (s *Service) SetDeduper(d Deduper) {
	s.deduper = d
}

// SetArchiver enables raw payload archiving.
func (s *Service) SetArchiver(a Archiver) {
	s.archiver = a
}

// SetLeadAlerter enables urgent lead alerts.
func (s *Service) SetLeadAlerter(a LeadAlerter) {
	s.alerter = a
}

// ProcessPayload handles one raw webhook body. It only fails when the body
// is not a webhook envelope; per-message failures are logged and skipped.
func (s *Service) ProcessPayload(ctx context.Context, raw []byte) (Result, error) {
	env, ok := parseEnvelope(raw)
	if !ok {
		return Result{}, apperr.BadRequest("invalid webhook format")
	}

	log := s.log.WithContext(ctx)
	s.archive(ctx, raw)

	var result Result
	for i, rawEntry := range env.Entry {
		var e entry
		if err := json.Unmarshal(rawEntry, &e); err != nil {
			log.Warn("skipping malformed webhook entry", "index", i, "error", err)
			continue
		}
		for j, rawChange := range e.Changes {
			var ch change
			if err := json.Unmarshal(rawChange, &ch); err != nil {
				log.Warn("skipping malformed webhook change", "entry", i, "index", j, "error", err)
				continue
			}
			if ch.Field != changeFieldMessages {
				continue
			}
			s.processChange(ctx, ch.Value, &result)
		}
	}

	log.Info("whatsapp webhook processed",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"duplicates", result.Duplicates,
		"statuses", result.StatusesApplied,
	)
	return result, nil
}

func (s *Service) processChange(ctx context.Context, value changeValue, result *Result) {
	names := contactNames(value.Contacts)

	for _, rawMsg := range value.Messages {
		var msg InboundMessage
		if err := json.Unmarshal(rawMsg, &msg); err != nil {
			s.log.WithContext(ctx).Warn("skipping malformed message", "error", err)
			result.Skipped++
			continue
		}
		outcome := s.handleMessage(ctx, msg, names[msg.From])
		switch outcome {
		case outcomeProcessed:
			result.Processed++
		case outcomeDuplicate:
			result.Duplicates++
		default:
			result.Skipped++
		}
	}

	if len(value.Statuses) > 0 {
		result.StatusesApplied += s.applyStatuses(ctx, value.Statuses)
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeProcessed
	outcomeDuplicate
)

func (s *Service) handleMessage(ctx context.Context, msg InboundMessage, profileName string) outcome {
	log := s.log.WithContext(ctx)

	from := strings.TrimSpace(msg.From)
	if from == "" {
		log.Warn("skipping message without sender", "message_id", msg.ID)
		return outcomeSkipped
	}

	claimed := false
	if s.deduper != nil && msg.ID != "" {
		ok, err := s.deduper.Claim(ctx, msg.ID)
		switch {
		case err != nil:
			log.Warn("duplicate guard unavailable", "message_id", msg.ID, "error", err)
		case !ok:
			log.Info("skipping duplicate message", "message_id", msg.ID, "phone", from)
			return outcomeDuplicate
		default:
			claimed = true
		}
	}

	if written, err := s.ingestMessage(ctx, msg, from, profileName); err != nil {
		log.Error("failed to ingest message", "phone", from, "message_id", msg.ID, "error", err)
		// Once the conversation counters moved, a redelivery would count the
		// message twice, so the claim is only released when nothing was written.
		if claimed && !written {
			if relErr := s.deduper.Release(ctx, msg.ID); relErr != nil {
				log.Warn("failed to release message id", "message_id", msg.ID, "error", relErr)
			}
		}
		return outcomeSkipped
	}
	return outcomeProcessed
}

// ingestMessage reports written=true as soon as the conversation row was
// changed, including when a later step fails.
func (s *Service) ingestMessage(ctx context.Context, msg InboundMessage, from, profileName string) (written bool, err error) {
	now := s.now().UTC()
	sentAt := parseUnixTimestamp(msg.Timestamp, now)
	text := msg.BestEffortText()
	nextFollowup := now.Add(domain.FollowupDelay)

	conv, err := s.upsertConversation(ctx, from, profileName, sentAt, nextFollowup, now)
	if err != nil {
		return false, err
	}
	log := s.log.WithContext(ctx).WithConversation(conv.ID, from)

	var providerID *string
	if msg.ID != "" {
		id := msg.ID
		providerID = &id
	}
	if _, err := s.store.InsertMessage(ctx, repository.NewMessage{
		ConversationID:    conv.ID,
		Direction:         domain.DirectionInbound,
		Phone:             from,
		Body:              text,
		Kind:              msg.Kind(),
		SentAt:            sentAt,
		MediaRef:          msg.MediaRef(),
		ProviderMessageID: providerID,
	}); err != nil {
		return true, fmt.Errorf("store message: %w", err)
	}

	cls := s.classifier.Classify(text)
	prospect, created, err := s.upsertProspect(ctx, conv.ID, from, profileName, cls, sentAt, now)
	if err != nil {
		return true, err
	}

	if created && prospect.Urgency == domain.UrgencyAlta {
		s.alertUrgent(ctx, log, UrgentLead{
			ConversationID: conv.ID,
			Phone:          from,
			Name:           s.displayName(from, profileName),
			Message:        text,
			PestType:       prospect.PestType,
			ReceivedAt:     sentAt,
		})
	}

	if s.dispatcher != nil {
		err := s.dispatcher.DispatchInbound(ctx, dispatch.InboundMessage{
			Phone:          from,
			Text:           text,
			ConversationID: conv.ID,
			Timestamp:      sentAt.Format(time.RFC3339),
			Type:           dispatch.InboundEventType,
		})
		if err != nil {
			log.DispatchFailed(dispatch.TargetAI, dispatch.StatusCode(err), err)
		}
	}

	log.Debug("inbound message stored", "prospect_created", created, "urgency", prospect.Urgency)
	return true, nil
}

// upsertConversation creates the conversation on first contact or records
// one more inbound message. A lost insert race falls back to the update path.
func (s *Service) upsertConversation(ctx context.Context, from, profileName string, sentAt, next, now time.Time) (domain.Conversation, error) {
	existing, err := s.store.FindConversationByPhone(ctx, from)
	switch {
	case err == nil:
		return s.recordActivity(ctx, existing.ID, sentAt, next, now)
	case !errors.Is(err, repository.ErrNotFound):
		return domain.Conversation{}, fmt.Errorf("find conversation: %w", err)
	}

	conv, created, err := s.store.InsertConversation(ctx, repository.NewConversation{
		Phone:          from,
		ContactName:    s.displayName(from, profileName),
		MessageAt:      sentAt,
		NextFollowupAt: next,
		Now:            now,
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	if created {
		return conv, nil
	}

	existing, err = s.store.FindConversationByPhone(ctx, from)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("find conversation after conflict: %w", err)
	}
	return s.recordActivity(ctx, existing.ID, sentAt, next, now)
}

func (s *Service) recordActivity(ctx context.Context, conversationID int64, sentAt, next, now time.Time) (domain.Conversation, error) {
	conv, err := s.store.RecordInboundMessage(ctx, repository.InboundActivity{
		ConversationID: conversationID,
		MessageAt:      sentAt,
		NextFollowupAt: next,
		Now:            now,
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("update conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) upsertProspect(
	ctx context.Context,
	conversationID int64,
	from, profileName string,
	cls classifier.Result,
	sentAt, now time.Time,
) (domain.Prospect, bool, error) {
	activity := repository.ProspectActivity{
		Phone:          from,
		Urgency:        cls.Urgency,
		Tags:           cls.Tags,
		ComplexityStep: domain.ComplexityStep,
		MessageAt:      sentAt,
		Now:            now,
	}

	_, err := s.store.FindProspectByPhone(ctx, from)
	switch {
	case err == nil:
		p, err := s.store.MergeProspectActivity(ctx, activity)
		if err != nil {
			return domain.Prospect{}, false, fmt.Errorf("merge prospect: %w", err)
		}
		return p, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return domain.Prospect{}, false, fmt.Errorf("find prospect: %w", err)
	}

	var name *string
	if profileName != "" {
		n := profileName
		name = &n
	}
	p, created, err := s.store.InsertProspect(ctx, repository.NewProspect{
		ConversationID: conversationID,
		Phone:          from,
		Name:           name,
		FunnelStage:    cls.FunnelStage,
		PestType:       cls.PestType,
		Urgency:        cls.Urgency,
		Complexity:     cls.Complexity,
		Tags:           cls.Tags,
		AISummary:      initialSummary(cls.PestType),
		LastIntent:     domain.IntentInitialInquiry,
		Sentiment:      domain.SentimentNeutral,
		MessageAt:      sentAt,
		Now:            now,
	})
	if err != nil {
		return domain.Prospect{}, false, fmt.Errorf("create prospect: %w", err)
	}
	if created {
		return p, true, nil
	}

	p, err = s.store.MergeProspectActivity(ctx, activity)
	if err != nil {
		return domain.Prospect{}, false, fmt.Errorf("merge prospect after conflict: %w", err)
	}
	return p, false, nil
}

func (s *Service) alertUrgent(ctx context.Context, log *logger.Logger, lead UrgentLead) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.AlertUrgentLead(ctx, lead); err != nil {
		log.Warn("urgent lead alert failed", "error", err)
	}
}

func (s *Service) archive(ctx context.Context, raw []byte) {
	if s.archiver == nil {
		return
	}
	key, err := s.archiver.Archive(ctx, raw, s.now().UTC())
	if err != nil {
		s.log.WithContext(ctx).Warn("failed to archive webhook payload", "error", err)
		return
	}
	s.log.WithContext(ctx).Debug("webhook payload archived", "key", key)
}

func (s *Service) displayName(from, profileName string) string {
	if name := sanitize.Name(profileName); name != "" {
		return name
	}
	return phone.DisplayName(from, s.region)
}

func initialSummary(pest *domain.PestType) string {
	topic := defaultSummaryTopic
	if pest != nil {
		topic = string(*pest)
	}
	return "Cliente consulta sobre " + topic
}

// parseUnixTimestamp reads a unix-seconds string, falling back to fallback.
func parseUnixTimestamp(value string, fallback time.Time) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Unix(secs, 0).UTC()
}
