// Package classifier derives pest type, urgency, funnel stage, complexity
// and tags from the text of an inbound WhatsApp message.
//
// Matching is case-insensitive substring membership after diacritics are
// stripped from both the text and the keywords, so "rápido" matches
// "rapido" and "ratón" matches "raton".
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"exterminador_backend/internal/crm/domain"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	baseComplexity      = 30
	longMessageRunes    = 100
	longMessageBonus    = 10
	questionBonus       = 5
	urgentKeywordBonus  = 15
	pestDetectedBonus   = 10
	urgentComplexityKey = "urgente"
)

// Result bundles every classifier output for one message.
type Result struct {
	PestType    *domain.PestType
	Urgency     domain.Urgency
	FunnelStage domain.FunnelStage
	Complexity  int
	Tags        []string
}

type pestMatcher struct {
	pest     domain.PestType
	keywords []string
}

type tagMatcher struct {
	tag      string
	keywords []string
}

// Classifier applies a fixed set of keyword tables. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	pests         []pestMatcher
	urgencyHigh   []string
	urgencyMedium []string
	price         []string
	tags          []tagMatcher
}

// New folds the keywords of rules once so classification only folds the text.
func New(rules Rules) *Classifier {
	c := &Classifier{
		urgencyHigh:   foldAll(rules.UrgencyHigh),
		urgencyMedium: foldAll(rules.UrgencyMedium),
		price:         foldAll(rules.Price),
	}
	for _, rule := range rules.Pests {
		c.pests = append(c.pests, pestMatcher{pest: rule.Pest, keywords: foldAll(rule.Keywords)})
	}
	for _, rule := range rules.Tags {
		c.tags = append(c.tags, tagMatcher{tag: rule.Tag, keywords: foldAll(rule.Keywords)})
	}
	return c
}

var defaultClassifier = New(DefaultRules())

// Default returns the classifier built from the compiled-in tables.
func Default() *Classifier { return defaultClassifier }

// Classify runs every detector over text.
func (c *Classifier) Classify(text string) Result {
	folded := fold(text)
	pest := c.detectPest(folded)
	return Result{
		PestType:    pest,
		Urgency:     c.detectUrgency(folded),
		FunnelStage: c.initialStage(folded),
		Complexity:  initialComplexity(text, folded, pest),
		Tags:        c.initialTags(folded, pest),
	}
}

// DetectPestType returns the first pest whose keywords appear in text.
func (c *Classifier) DetectPestType(text string) *domain.PestType {
	return c.detectPest(fold(text))
}

// DetectUrgency never fails; text without keywords is normal urgency.
func (c *Classifier) DetectUrgency(text string) domain.Urgency {
	return c.detectUrgency(fold(text))
}

func (c *Classifier) InitialFunnelStage(text string) domain.FunnelStage {
	return c.initialStage(fold(text))
}

func (c *Classifier) InitialComplexity(text string) int {
	folded := fold(text)
	return initialComplexity(text, folded, c.detectPest(folded))
}

func (c *Classifier) InitialTags(text string, pest *domain.PestType) []string {
	return c.initialTags(fold(text), pest)
}

func (c *Classifier) detectPest(folded string) *domain.PestType {
	for _, m := range c.pests {
		if containsAny(folded, m.keywords) {
			pest := m.pest
			return &pest
		}
	}
	return nil
}

func (c *Classifier) detectUrgency(folded string) domain.Urgency {
	switch {
	case containsAny(folded, c.urgencyHigh):
		return domain.UrgencyAlta
	case containsAny(folded, c.urgencyMedium):
		return domain.UrgencyMedia
	default:
		return domain.UrgencyNormal
	}
}

func (c *Classifier) initialStage(folded string) domain.FunnelStage {
	switch {
	case containsAny(folded, c.price):
		return domain.StageInterested
	case containsAny(folded, c.urgencyHigh):
		return domain.StageEvaluating
	default:
		return domain.StageLead
	}
}

func (c *Classifier) initialTags(folded string, pest *domain.PestType) []string {
	tags := make([]string, 0, len(c.tags)+1)
	if pest != nil {
		tags = append(tags, string(*pest))
	}
	for _, m := range c.tags {
		if containsAny(folded, m.keywords) {
			tags = append(tags, m.tag)
		}
	}
	return MergeTags(nil, tags)
}

func initialComplexity(raw, folded string, pest *domain.PestType) int {
	score := baseComplexity
	if utf8.RuneCountInString(raw) > longMessageRunes {
		score += longMessageBonus
	}
	if strings.Contains(raw, "?") {
		score += questionBonus
	}
	if strings.Contains(folded, urgentComplexityKey) {
		score += urgentKeywordBonus
	}
	if pest != nil {
		score += pestDetectedBonus
	}
	return clamp(score)
}

// DetectPestType classifies text with the default tables.
func DetectPestType(text string) *domain.PestType {
	return defaultClassifier.DetectPestType(text)
}

// DetectUrgency classifies text with the default tables.
func DetectUrgency(text string) domain.Urgency {
	return defaultClassifier.DetectUrgency(text)
}

func InitialFunnelStage(text string) domain.FunnelStage {
	return defaultClassifier.InitialFunnelStage(text)
}

func InitialComplexity(text string) int {
	return defaultClassifier.InitialComplexity(text)
}

func InitialTags(text string, pest *domain.PestType) []string {
	return defaultClassifier.InitialTags(text, pest)
}

// Classify classifies text with the default tables.
func Classify(text string) Result {
	return defaultClassifier.Classify(text)
}

// MergeTags returns the ordered union of existing and incoming. Existing
// tags keep their position; new ones are appended in order. Empty tags
// are dropped.
func MergeTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, tag := range list {
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// RaiseComplexity adds step to current, capped at domain.MaxComplexity.
func RaiseComplexity(current, step int) int {
	return clamp(current + step)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > domain.MaxComplexity {
		return domain.MaxComplexity
	}
	return score
}

func containsAny(folded string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

func foldAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if f := fold(kw); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// fold lower-cases s and removes combining marks.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
