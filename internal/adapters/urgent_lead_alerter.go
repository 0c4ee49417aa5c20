package adapters

import (
	"context"
	"time"

	"exterminador_backend/internal/ingestion"
	"exterminador_backend/internal/notify"
	"exterminador_backend/platform/logger"
)

const urgentLeadAlertTimeout = 30 * time.Second

// UrgentLeadNotifier is implemented by notify.Notifier.
type UrgentLeadNotifier interface {
	NotifyUrgentLead(ctx context.Context, lead notify.UrgentLead) error
}

// UrgentLeadAlerter adapts the notify module for use by ingestion.
// It implements ingestion.LeadAlerter and sends off the request path.
type UrgentLeadAlerter struct {
	notifier UrgentLeadNotifier
	log      *logger.Logger
}

// NewUrgentLeadAlerter returns nil when notifier is nil (alerts disabled).
func NewUrgentLeadAlerter(notifier UrgentLeadNotifier, log *logger.Logger) *UrgentLeadAlerter {
	if notifier == nil {
		return nil
	}
	return &UrgentLeadAlerter{notifier: notifier, log: log}
}

// AlertUrgentLead queues the email and returns immediately.
func (a *UrgentLeadAlerter) AlertUrgentLead(ctx context.Context, lead ingestion.UrgentLead) error {
	if a == nil || a.notifier == nil {
		return nil
	}

	pest := ""
	if lead.PestType != nil {
		pest = string(*lead.PestType)
	}
	msg := notify.UrgentLead{
		ConversationID: lead.ConversationID,
		Phone:          lead.Phone,
		Name:           lead.Name,
		Pest:           pest,
		Message:        lead.Message,
		ReceivedAt:     lead.ReceivedAt,
	}

	log := a.log.WithContext(ctx).WithConversation(lead.ConversationID, lead.Phone)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), urgentLeadAlertTimeout)
	go func() {
		defer cancel()
		if err := a.notifier.NotifyUrgentLead(sendCtx, msg); err != nil {
			log.Warn("urgent lead email failed", "error", err)
			return
		}
		log.Info("urgent lead email sent")
	}()
	return nil
}

var _ ingestion.LeadAlerter = (*UrgentLeadAlerter)(nil)
