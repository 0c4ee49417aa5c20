package followup

import (
	"time"

	"exterminador_backend/internal/crm/domain"
)

// Type names the kind of follow-up sent to the automation endpoint.
type Type string

const (
	TypeUrgent        Type = "urgent_followup"
	TypePrice         Type = "price_followup"
	TypeEffectiveness Type = "effectiveness_followup"
	TypeReactivation  Type = "reactivation"
	TypeStandard      Type = "standard_followup"

	pestTypePrefix = "followup_"
)

// PestType returns the specialised follow-up type for a pest.
func PestType(pest domain.PestType) Type {
	return Type(pestTypePrefix + string(pest))
}

// Business hours for scheduled follow-ups: [06:00, 20:00) local time.
const (
	businessOpenHour  = 6
	businessCloseHour = 20
)

// Context is what the decision rules look at for one conversation.
type Context struct {
	Urgency              domain.Urgency
	Stage                domain.FunnelStage
	PestType             *domain.PestType
	ReactivationAttempts int
	HoursElapsed         float64
}

type rule struct {
	matches func(Context) bool
	typeFor func(Context) Type
}

func constant(t Type) func(Context) Type {
	return func(Context) Type { return t }
}

// decisionRules are evaluated in order; the first match wins.
var decisionRules = []rule{
	{
		matches: func(c Context) bool { return c.Urgency == domain.UrgencyAlta && c.HoursElapsed >= 2 },
		typeFor: constant(TypeUrgent),
	},
	{
		matches: func(c Context) bool { return c.Stage == domain.StageInterested && c.HoursElapsed >= 4 },
		typeFor: constant(TypePrice),
	},
	{
		matches: func(c Context) bool { return c.Stage == domain.StageEvaluating && c.HoursElapsed >= 6 },
		typeFor: constant(TypeEffectiveness),
	},
	{
		matches: func(c Context) bool { return c.PestType != nil && *c.PestType != "" && c.HoursElapsed >= 8 },
		typeFor: func(c Context) Type { return PestType(*c.PestType) },
	},
	{
		matches: func(c Context) bool { return c.ReactivationAttempts > 0 && c.HoursElapsed >= 24 },
		typeFor: constant(TypeReactivation),
	},
}

// DecideType picks the follow-up type for a conversation.
func DecideType(c Context) Type {
	for _, r := range decisionRules {
		if r.matches(c) {
			return r.typeFor(c)
		}
	}
	return TypeStandard
}

// baseDelay is how long to wait before the next follow-up of type t.
// attempts is the reactivation counter before this follow-up was sent.
func baseDelay(t Type, attempts int, urgency domain.Urgency) time.Duration {
	switch t {
	case TypeUrgent:
		if urgency == domain.UrgencyAlta {
			return 2 * time.Hour
		}
		return 4 * time.Hour
	case TypePrice:
		return 8 * time.Hour
	case TypeEffectiveness:
		return 12 * time.Hour
	case TypeReactivation:
		return time.Duration(48+attempts*24) * time.Hour
	default:
		return 24 * time.Hour
	}
}

// NextFollowupAt schedules the next follow-up and moves it into business
// hours in loc: before 06:00 becomes 06:00 the same day, 20:00 or later
// becomes 06:00 the next day.
func NextFollowupAt(t Type, attempts int, urgency domain.Urgency, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	next := now.Add(baseDelay(t, attempts, urgency)).In(loc)
	return clampToBusinessHours(next)
}

func clampToBusinessHours(t time.Time) time.Time {
	y, m, d := t.Date()
	switch hour := t.Hour(); {
	case hour < businessOpenHour:
		return time.Date(y, m, d, businessOpenHour, 0, 0, 0, t.Location())
	case hour >= businessCloseHour:
		return time.Date(y, m, d+1, businessOpenHour, 0, 0, 0, t.Location())
	default:
		return t
	}
}
