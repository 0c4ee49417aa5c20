package classifier

import (
	"fmt"
	"os"
	"strings"

	"exterminador_backend/internal/crm/domain"

	"gopkg.in/yaml.v3"
)

// PestRule maps a pest to the keywords that identify it.
type PestRule struct {
	Pest     domain.PestType `yaml:"pest"`
	Keywords []string        `yaml:"keywords"`
}

// TagRule attaches Tag when any keyword appears in the text.
type TagRule struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// Rules are the keyword tables driving classification. Order matters:
// the first matching pest wins and tags are emitted in table order.
type Rules struct {
	Pests         []PestRule `yaml:"pests"`
	UrgencyHigh   []string   `yaml:"urgency_high"`
	UrgencyMedium []string   `yaml:"urgency_medium"`
	Price         []string   `yaml:"price"`
	Tags          []TagRule  `yaml:"tags"`
}

// DefaultRules returns the compiled-in keyword tables.
func DefaultRules() Rules {
	return Rules{
		Pests: []PestRule{
			{Pest: domain.PestCockroaches, Keywords: []string{"cucaracha"}},
			{Pest: domain.PestAnts, Keywords: []string{"hormiga"}},
			{Pest: domain.PestRodents, Keywords: []string{"rata", "raton"}},
			{Pest: domain.PestTermites, Keywords: []string{"termita"}},
			{Pest: domain.PestBedbugs, Keywords: []string{"chinche"}},
			{Pest: domain.PestFlies, Keywords: []string{"mosca"}},
			{Pest: domain.PestWaspsBees, Keywords: []string{"avispa", "abeja"}},
			{Pest: domain.PestSpiders, Keywords: []string{"araña"}},
			{Pest: domain.PestFleas, Keywords: []string{"pulga"}},
			{Pest: domain.PestTicks, Keywords: []string{"garrapata"}},
		},
		UrgencyHigh:   []string{"urgente", "ya", "rapido"},
		UrgencyMedium: []string{"cuando", "pronto"},
		Price:         []string{"precio", "costo", "cuanto"},
		Tags: []TagRule{
			{Tag: "price", Keywords: []string{"precio", "costo"}},
			{Tag: "urgent", Keywords: []string{"urgente"}},
			{Tag: "residential", Keywords: []string{"casa", "hogar"}},
			{Tag: "commercial", Keywords: []string{"negocio", "empresa"}},
			{Tag: "product_inquiry", Keywords: []string{"producto"}},
			{Tag: "effectiveness", Keywords: []string{"efectivo", "funciona"}},
		},
	}
}

// LoadRules reads keyword tables from a YAML file. An empty path yields
// the default classifier. Sections missing from the file keep their
// defaults.
func LoadRules(path string) (*Classifier, error) {
	if strings.TrimSpace(path) == "" {
		return New(DefaultRules()), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier rules: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse classifier rules: %w", err)
	}

	rules := DefaultRules()
	if len(override.Pests) > 0 {
		rules.Pests = override.Pests
	}
	if len(override.UrgencyHigh) > 0 {
		rules.UrgencyHigh = override.UrgencyHigh
	}
	if len(override.UrgencyMedium) > 0 {
		rules.UrgencyMedium = override.UrgencyMedium
	}
	if len(override.Price) > 0 {
		rules.Price = override.Price
	}
	if len(override.Tags) > 0 {
		rules.Tags = override.Tags
	}

	for i, rule := range rules.Pests {
		if rule.Pest == "" || len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("pest rule %d: pest and keywords are required", i)
		}
	}
	for i, rule := range rules.Tags {
		if rule.Tag == "" || len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("tag rule %d: tag and keywords are required", i)
		}
	}

	return New(rules), nil
}
