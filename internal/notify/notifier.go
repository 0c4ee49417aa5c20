// Package notify alerts the sales team about leads that need a human fast.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	subjectUrgentLeadFmt = "Prospecto urgente: %s"
	defaultLeadName      = "Cliente"
	defaultPest          = "sin identificar"
	receivedAtLayout     = "02/01/2006 15:04"
)

// Sender delivers an HTML email.
type Sender interface {
	Send(ctx context.Context, to []string, subject, htmlContent string) error
}

// UrgentLead describes a newly created high-urgency prospect.
type UrgentLead struct {
	ConversationID int64
	Phone          string
	Name           string
	Pest           string
	Message        string
	ReceivedAt     time.Time
}

// Notifier renders and sends urgent lead alerts.
type Notifier struct {
	sender     Sender
	recipients []string
	loc        *time.Location
}

func New(sender Sender, recipients []string, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{sender: sender, recipients: recipients, loc: loc}
}

// NotifyUrgentLead emails every configured recipient.
func (n *Notifier) NotifyUrgentLead(ctx context.Context, lead UrgentLead) error {
	if len(n.recipients) == 0 {
		return errors.New("no alert recipients configured")
	}

	name := strings.TrimSpace(lead.Name)
	if name == "" {
		name = defaultLeadName
	}
	pest := lead.Pest
	if pest == "" {
		pest = defaultPest
	}

	content, err := renderEmailTemplate("urgent_lead.html", urgentLeadEmailData{
		baseEmailData: baseEmailData{
			Title:   "Prospecto urgente",
			Heading: "Prospecto urgente",
		},
		ConversationID: lead.ConversationID,
		Name:           name,
		Phone:          lead.Phone,
		Pest:           pest,
		Message:        lead.Message,
		ReceivedAt:     lead.ReceivedAt.In(n.loc).Format(receivedAtLayout),
	})
	if err != nil {
		return err
	}

	return n.sender.Send(ctx, n.recipients, fmt.Sprintf(subjectUrgentLeadFmt, name), content)
}
