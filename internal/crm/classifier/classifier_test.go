package classifier

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"exterminador_backend/internal/crm/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPestType(t *testing.T) {
	cases := []struct {
		text string
		want domain.PestType
	}{
		{"Tengo cucarachas en la cocina", domain.PestCockroaches},
		{"hay HORMIGAS por todo lado", domain.PestAnts},
		{"vi un ratón en el garaje", domain.PestRodents},
		{"creo que son termitas", domain.PestTermites},
		{"chinches en la cama", domain.PestBedbugs},
		{"muchas moscas", domain.PestFlies},
		{"un panal de abejas", domain.PestWaspsBees},
		{"arañas en el techo", domain.PestSpiders},
		{"el perro tiene pulgas", domain.PestFleas},
		{"garrapatas en el patio", domain.PestTicks},
		// First table entry wins when several pests are mentioned.
		{"hormigas y cucarachas", domain.PestCockroaches},
	}

	for _, tc := range cases {
		got := DetectPestType(tc.text)
		require.NotNil(t, got, tc.text)
		assert.Equal(t, tc.want, *got, tc.text)
	}

	assert.Nil(t, DetectPestType("hola, buenas tardes"))
	assert.Nil(t, DetectPestType(""))
}

func TestDetectUrgency(t *testing.T) {
	cases := []struct {
		text string
		want domain.Urgency
	}{
		{"Necesito ayuda URGENTE", domain.UrgencyAlta},
		{"lo más rápido posible", domain.UrgencyAlta},
		{"¿cuándo pueden venir?", domain.UrgencyMedia},
		{"pronto por favor", domain.UrgencyMedia},
		{"buenas tardes", domain.UrgencyNormal},
		{"", domain.UrgencyNormal},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectUrgency(tc.text), tc.text)
	}
}

func TestDetectUrgencyAltaImpliesHighKeyword(t *testing.T) {
	samples := []string{
		"urgente", "buenas", "cuando vienen", "necesito hoy", "rapido", "casa", "pronto",
		"precio?", "tengo ratas", "ya", "hola",
	}
	for _, text := range samples {
		urgency := DetectUrgency(text)
		assert.Contains(t, []domain.Urgency{domain.UrgencyNormal, domain.UrgencyMedia, domain.UrgencyAlta}, urgency)
		if urgency == domain.UrgencyAlta {
			lower := strings.ToLower(text)
			hit := strings.Contains(lower, "urgente") || strings.Contains(lower, "ya") || strings.Contains(lower, "rapido")
			assert.True(t, hit, "alta without trigger keyword: %q", text)
		}
	}
}

func TestInitialFunnelStage(t *testing.T) {
	assert.Equal(t, domain.StageInterested, InitialFunnelStage("¿Cuánto cuesta?"))
	assert.Equal(t, domain.StageInterested, InitialFunnelStage("precio urgente"))
	assert.Equal(t, domain.StageEvaluating, InitialFunnelStage("urgente por favor"))
	assert.Equal(t, domain.StageLead, InitialFunnelStage("hola"))
}

func TestInitialComplexity(t *testing.T) {
	assert.Equal(t, 30, InitialComplexity("hola"))
	assert.Equal(t, 35, InitialComplexity("hola?"))
	assert.Equal(t, 40, InitialComplexity("tengo pulgas"))

	long := strings.Repeat("a", 101)
	assert.Equal(t, 40, InitialComplexity(long))
	assert.Equal(t, 30, InitialComplexity(strings.Repeat("a", 100)))
}

func TestInitialComplexityAllBonuses(t *testing.T) {
	text := "Es urgente, tengo cucarachas en toda la casa y no sé qué hacer, ¿pueden venir hoy mismo a revisar todo el lugar por favor?"
	require.Greater(t, len([]rune(text)), 100)

	got := InitialComplexity(text)
	assert.Equal(t, 70, got)

	score := got
	for i := 0; i < 10; i++ {
		score = RaiseComplexity(score, domain.ComplexityStep)
		assert.LessOrEqual(t, score, domain.MaxComplexity)
	}
	assert.Equal(t, domain.MaxComplexity, score)
}

func TestInitialTags(t *testing.T) {
	text := "Cuál es el precio para fumigar mi casa? Es urgente, hay cucarachas"
	pest := DetectPestType(text)

	tags := InitialTags(text, pest)
	assert.Equal(t, []string{"cockroaches", "price", "urgent", "residential"}, tags)

	assert.Equal(t, []string{"commercial", "product_inquiry", "effectiveness"},
		InitialTags("para mi empresa, ese producto funciona?", nil))
	assert.Empty(t, InitialTags("hola", nil))
}

func TestMergeTagsIsMonotonicAndIdempotent(t *testing.T) {
	existing := []string{"ants", "price"}
	incoming := []string{"price", "urgent"}

	merged := MergeTags(existing, incoming)
	assert.Equal(t, []string{"ants", "price", "urgent"}, merged)
	assert.Subset(t, merged, existing)
	assert.Subset(t, merged, incoming)

	assert.Equal(t, merged, MergeTags(merged, incoming))
	assert.Equal(t, merged, MergeTags(merged, nil))
}

func TestRaiseComplexityClamps(t *testing.T) {
	assert.Equal(t, 35, RaiseComplexity(30, 5))
	assert.Equal(t, 100, RaiseComplexity(98, 5))
	assert.Equal(t, 100, RaiseComplexity(100, 5))
	assert.Equal(t, 0, RaiseComplexity(-20, 5))
}

func TestClassifyBundlesDetectors(t *testing.T) {
	res := Classify("Urgente! ratas en el negocio")
	require.NotNil(t, res.PestType)
	assert.Equal(t, domain.PestRodents, *res.PestType)
	assert.Equal(t, domain.UrgencyAlta, res.Urgency)
	assert.Equal(t, domain.StageEvaluating, res.FunnelStage)
	assert.Equal(t, 55, res.Complexity)
	assert.Equal(t, []string{"rodents", "urgent", "commercial"}, res.Tags)
}

func TestLoadRulesOverridesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	body := `
urgency_high: ["emergencia"]
tags:
  - tag: garden
    keywords: ["jardín"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := LoadRules(path)
	require.NoError(t, err)

	assert.Equal(t, domain.UrgencyAlta, c.DetectUrgency("es una emergencia"))
	assert.Equal(t, domain.UrgencyNormal, c.DetectUrgency("urgente"))
	assert.Equal(t, []string{"garden"}, c.InitialTags("en el jardin", nil))

	// Pest table was not overridden.
	pest := c.DetectPestType("pulgas")
	require.NotNil(t, pest)
	assert.Equal(t, domain.PestFleas, *pest)
}

func TestLoadRulesEmptyPathUsesDefaults(t *testing.T) {
	c, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, domain.UrgencyAlta, c.DetectUrgency("urgente"))
}

func TestLoadRulesRejectsIncompleteRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pests:\n  - pest: moths\n"), 0o600))

	_, err := LoadRules(path)
	assert.Error(t, err)
}
