package followup

import (
	"testing"
	"time"

	"exterminador_backend/internal/crm/domain"

	"github.com/stretchr/testify/assert"
)

func TestDecideType(t *testing.T) {
	termites := domain.PestTermites

	cases := []struct {
		name string
		ctx  Context
		want Type
	}{
		{"alta after two hours", Context{Urgency: domain.UrgencyAlta, Stage: domain.StageLead, HoursElapsed: 2}, TypeUrgent},
		{"alta after three hours", Context{Urgency: domain.UrgencyAlta, Stage: domain.StageLead, HoursElapsed: 3}, TypeUrgent},
		{"no signal at zero hours", Context{Urgency: domain.UrgencyNormal, Stage: domain.StageLead, HoursElapsed: 0}, TypeStandard},
		{"zero value context", Context{}, TypeStandard},
		{"alta too early falls through", Context{Urgency: domain.UrgencyAlta, Stage: domain.StageLead, HoursElapsed: 1.5}, TypeStandard},
		{"interested after five hours", Context{Urgency: domain.UrgencyNormal, Stage: domain.StageInterested, HoursElapsed: 5}, TypePrice},
		{"evaluating after six hours", Context{Urgency: domain.UrgencyNormal, Stage: domain.StageEvaluating, HoursElapsed: 6}, TypeEffectiveness},
		{"known pest after ten hours", Context{Urgency: domain.UrgencyNormal, Stage: domain.StageLead, PestType: &termites, HoursElapsed: 10}, Type("followup_termites")},
		{"known pest too early", Context{Urgency: domain.UrgencyNormal, Stage: domain.StageLead, PestType: &termites, HoursElapsed: 7}, TypeStandard},
		{"reactivation after a day", Context{Urgency: domain.UrgencyNormal, Stage: domain.StageLead, ReactivationAttempts: 1, HoursElapsed: 30}, TypeReactivation},
		{"first attempt is never reactivation", Context{Urgency: domain.UrgencyNormal, Stage: domain.StageLead, HoursElapsed: 30}, TypeStandard},
		{"urgency wins over stage", Context{Urgency: domain.UrgencyAlta, Stage: domain.StageInterested, HoursElapsed: 5}, TypeUrgent},
		{"stage wins over pest", Context{Urgency: domain.UrgencyNormal, Stage: domain.StageInterested, PestType: &termites, HoursElapsed: 9}, TypePrice},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecideType(tc.ctx))
		})
	}
}

func TestNextFollowupAtDelays(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		typ      Type
		attempts int
		urgency  domain.Urgency
		want     time.Time
	}{
		{"urgent alta", TypeUrgent, 0, domain.UrgencyAlta, now.Add(2 * time.Hour)},
		{"urgent otherwise", TypeUrgent, 0, domain.UrgencyMedia, now.Add(4 * time.Hour)},
		{"price", TypePrice, 0, domain.UrgencyNormal, now.Add(8 * time.Hour)},
		{"effectiveness", TypeEffectiveness, 0, domain.UrgencyNormal, time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)},
		{"reactivation grows with attempts", TypeReactivation, 2, domain.UrgencyNormal, now.Add(96 * time.Hour)},
		{"pest followup uses default", PestType(domain.PestAnts), 0, domain.UrgencyNormal, now.Add(24 * time.Hour)},
		{"standard", TypeStandard, 3, domain.UrgencyNormal, now.Add(24 * time.Hour)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextFollowupAt(tc.typ, tc.attempts, tc.urgency, now, time.UTC)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestClampToBusinessHours(t *testing.T) {
	loc := time.FixedZone("CST", -6*60*60)

	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"early morning moves to opening", time.Date(2026, 3, 10, 3, 0, 0, 0, loc), time.Date(2026, 3, 10, 6, 0, 0, 0, loc)},
		{"late evening moves to next morning", time.Date(2026, 3, 10, 21, 30, 0, 0, loc), time.Date(2026, 3, 11, 6, 0, 0, 0, loc)},
		{"closing hour is outside", time.Date(2026, 3, 10, 20, 0, 0, 0, loc), time.Date(2026, 3, 11, 6, 0, 0, 0, loc)},
		{"opening hour is inside", time.Date(2026, 3, 10, 6, 0, 0, 0, loc), time.Date(2026, 3, 10, 6, 0, 0, 0, loc)},
		{"just before closing", time.Date(2026, 3, 10, 19, 59, 0, 0, loc), time.Date(2026, 3, 10, 19, 59, 0, 0, loc)},
		{"month rollover", time.Date(2026, 3, 31, 23, 0, 0, 0, loc), time.Date(2026, 4, 1, 6, 0, 0, 0, loc)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := clampToBusinessHours(tc.in)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestNextFollowupAtUsesBusinessLocation(t *testing.T) {
	loc := time.FixedZone("CST", -6*60*60)
	// 20:00 local; the standard 24h delay lands at 20:00 local the next day.
	now := time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC)

	got := NextFollowupAt(TypeStandard, 0, domain.UrgencyNormal, now, loc)

	assert.True(t, time.Date(2026, 3, 12, 6, 0, 0, 0, loc).Equal(got), "got %s", got)
}
