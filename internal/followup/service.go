// Package followup finds conversations whose follow-up timer expired,
// decides how to re-engage each contact and dispatches the follow-up.
package followup

import (
	"context"
	"fmt"
	"math"
	"time"

	"exterminador_backend/internal/crm/domain"
	"exterminador_backend/internal/crm/repository"
	"exterminador_backend/internal/dispatch"
	"exterminador_backend/platform/config"
	"exterminador_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	recentMessageLimit = 10
	systemName         = "exterminador"
	runSystemName      = "exterminador_seguimiento"
	noDueMessage       = "No hay conversaciones que requieran seguimiento"

	defaultProspectName = "Cliente"
	defaultPestTopic    = "control de plagas"
	defaultSummary      = "Cliente interesado en productos de exterminio"

	messageDirectionIn  = "entrada"
	messageDirectionOut = "salida"
)

// Dispatcher delivers follow-up payloads.
type Dispatcher interface {
	DispatchFollowup(ctx context.Context, payload any) (int, error)
}

// Payload is the body posted to the follow-up endpoint.
type Payload struct {
	ConversationID       int64            `json:"conversation_id"`
	Phone                string           `json:"numero"`
	ProspectName         string           `json:"nombre_prospecto"`
	FunnelStage          string           `json:"estado_embudo"`
	PestType             string           `json:"plaga_a_erradicar"`
	AISummary            string           `json:"resumen_ia"`
	Urgency              string           `json:"urgencia_detectada"`
	ReactivationAttempts int              `json:"reactivacion_intentos"`
	HoursElapsed         float64          `json:"horas_transcurridas"`
	FollowupType         Type             `json:"tipo_seguimiento"`
	Messages             []PayloadMessage `json:"mensajes"`
	TotalMessages        int              `json:"total_mensajes"`
	Timestamp            string           `json:"timestamp"`
	System               string           `json:"sistema"`
}

// PayloadMessage is one of the latest messages, newest first.
type PayloadMessage struct {
	Direction string `json:"tipo"`
	Text      string `json:"mensaje"`
	SentAt    string `json:"fecha"`
}

// ItemResult reports what happened to one due conversation.
type ItemResult struct {
	Phone          string   `json:"numero"`
	ConversationID int64    `json:"conversation_id"`
	FollowupType   Type     `json:"tipo_seguimiento,omitempty"`
	Sent           bool     `json:"webhook_enviado"`
	Status         int      `json:"webhook_status,omitempty"`
	HoursElapsed   *float64 `json:"horas_transcurridas,omitempty"`
	PestType       *string  `json:"plaga_detectada,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Summary is the outcome of one run.
type Summary struct {
	Success   bool         `json:"success"`
	System    string       `json:"sistema"`
	Total     int          `json:"total_procesadas"`
	Results   []ItemResult `json:"resultados"`
	Message   string       `json:"message,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// Service runs follow-up scans.
type Service struct {
	store      repository.FollowupStore
	dispatcher Dispatcher
	batchSize  int
	interval   time.Duration
	loc        *time.Location
	log        *logger.Logger
	now        func() time.Time
}

func NewService(store repository.FollowupStore, dispatcher Dispatcher, cfg config.FollowupConfig, log *logger.Logger) *Service {
	batch := cfg.GetFollowupBatchSize()
	if batch < 1 {
		batch = 10
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		batchSize:  batch,
		interval:   cfg.GetFollowupDispatchInterval(),
		loc:        cfg.GetBusinessLocation(),
		log:        log,
		now:        time.Now,
	}
}

// Run processes up to one batch of due conversations. Items are handled
// sequentially and a failure on one never stops the others. Only a failing
// due-set query is returned as an error.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	log := s.log.WithContext(ctx)
	now := s.now()

	due, err := s.store.QueryDueFollowups(ctx, now, s.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("query due followups: %w", err)
	}

	summary := Summary{
		Success: true,
		System:  runSystemName,
		Results: make([]ItemResult, 0, len(due)),
	}

	if len(due) == 0 {
		summary.Message = noDueMessage
		summary.Timestamp = now.UTC().Format(time.RFC3339)
		log.Info("no conversations due for followup")
		return summary, nil
	}

	log.Info("followup run started", "due", len(due))
	limiter := s.newLimiter()

	for _, item := range due {
		if err := limiter.Wait(ctx); err != nil {
			log.Warn("followup run interrupted", "error", err)
			break
		}
		summary.Results = append(summary.Results, s.processItem(ctx, item))
	}

	summary.Total = len(summary.Results)
	summary.Timestamp = s.now().UTC().Format(time.RFC3339)
	log.Info("followup run finished", "processed", summary.Total)
	return summary, nil
}

func (s *Service) newLimiter() *rate.Limiter {
	if s.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(s.interval), 1)
}

func (s *Service) processItem(ctx context.Context, item domain.DueFollowup) ItemResult {
	conv := item.Conversation
	log := s.log.WithContext(ctx).WithConversation(conv.ID, conv.Phone)

	failed := func(err error) ItemResult {
		log.Error("followup failed", "error", err)
		return ItemResult{Phone: conv.Phone, ConversationID: conv.ID, Sent: false, Error: err.Error()}
	}

	messages, err := s.store.RecentMessages(ctx, conv.ID, recentMessageLimit)
	if err != nil {
		return failed(fmt.Errorf("load recent messages: %w", err))
	}

	now := s.now()
	hours := hoursSince(conv.LastInboundAt, now)

	decision := Context{
		Urgency:              domain.UrgencyNormal,
		Stage:                domain.StageLead,
		ReactivationAttempts: conv.ReactivationAttempts,
		HoursElapsed:         hours,
	}
	if p := item.Prospect; p != nil {
		if p.Urgency != "" {
			decision.Urgency = p.Urgency
		}
		if p.FunnelStage != "" {
			decision.Stage = p.FunnelStage
		}
		decision.PestType = p.PestType
	}
	followupType := DecideType(decision)

	payload := buildPayload(conv, item.Prospect, decision, followupType, messages, now)
	status, err := s.dispatcher.DispatchFollowup(ctx, payload)
	result := ItemResult{
		Phone:          conv.Phone,
		ConversationID: conv.ID,
		FollowupType:   followupType,
		Status:         status,
		HoursElapsed:   &payload.HoursElapsed,
	}
	if decision.PestType != nil {
		pest := string(*decision.PestType)
		result.PestType = &pest
	}
	if err != nil {
		log.DispatchFailed(dispatch.TargetFollowup, status, err)
		result.Error = err.Error()
		return result
	}
	result.Sent = true

	next := NextFollowupAt(followupType, conv.ReactivationAttempts, decision.Urgency, now, s.loc)
	if err := s.store.MarkFollowupSent(ctx, conv.ID, next, now); err != nil {
		log.DatabaseError("mark followup sent", err)
		result.Error = err.Error()
		return result
	}
	if err := s.store.TouchProspectAfterFollowup(ctx, conv.ID, now); err != nil {
		log.DatabaseError("touch prospect after followup", err)
		result.Error = err.Error()
	}

	log.Info("followup sent", "type", followupType, "status", status, "next_followup_at", next)
	return result
}

func buildPayload(
	conv domain.Conversation,
	p *domain.Prospect,
	decision Context,
	followupType Type,
	messages []domain.Message,
	now time.Time,
) Payload {
	payload := Payload{
		ConversationID:       conv.ID,
		Phone:                conv.Phone,
		ProspectName:         defaultProspectName,
		FunnelStage:          string(decision.Stage),
		PestType:             defaultPestTopic,
		AISummary:            defaultSummary,
		Urgency:              string(decision.Urgency),
		ReactivationAttempts: conv.ReactivationAttempts,
		HoursElapsed:         roundHours(decision.HoursElapsed),
		FollowupType:         followupType,
		Messages:             make([]PayloadMessage, 0, len(messages)),
		TotalMessages:        len(messages),
		Timestamp:            now.UTC().Format(time.RFC3339),
		System:               systemName,
	}

	if p != nil {
		if p.Name != nil && *p.Name != "" {
			payload.ProspectName = *p.Name
		}
		if p.PestType != nil && *p.PestType != "" {
			payload.PestType = string(*p.PestType)
		}
		if p.AISummary != nil && *p.AISummary != "" {
			payload.AISummary = *p.AISummary
		}
	}

	for _, m := range messages {
		direction := messageDirectionIn
		if m.Direction == domain.DirectionOutbound {
			direction = messageDirectionOut
		}
		payload.Messages = append(payload.Messages, PayloadMessage{
			Direction: direction,
			Text:      m.Body,
			SentAt:    m.SentAt.UTC().Format(time.RFC3339),
		})
	}
	return payload
}

func hoursSince(t *time.Time, now time.Time) float64 {
	if t == nil {
		return 0
	}
	return now.Sub(*t).Hours()
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
