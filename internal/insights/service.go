// Package insights answers free-form business questions about the
// conversation data with a generative model.
package insights

import (
	"context"
	"encoding/json"

	"exterminador_backend/platform/apperr"
)

const (
	businessContext      = "control_de_plagas"
	errorBusinessContext = "exterminador"
	productFocus         = "kit_exterminador_cucarachas"
	analysisTypePrefix   = "exterminador_"
	defaultAnalysisType  = "general"
)

// Generator turns prompts into analysis text.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type AnalysisInfo struct {
	Type   string `json:"type"`
	Intent string `json:"intent"`
}

// Request is the insights request body.
type Request struct {
	UserQuery           string          `json:"user_query" validate:"required"`
	ConversationHistory string          `json:"conversation_history"`
	DataContext         json.RawMessage `json:"data_context"`
	AnalysisInfo        *AnalysisInfo   `json:"analysis_info"`
	RecordsFound        int             `json:"records_found" validate:"gte=0"`
}

type Response struct {
	Content         string `json:"content"`
	AnalysisType    string `json:"analysis_type"`
	RecordsAnalyzed int    `json:"records_analyzed"`
	BusinessContext string `json:"business_context"`
	ProductFocus    string `json:"product_focus"`
	Success         bool   `json:"success"`
}

// ErrDisabled is returned when no model is configured.
var ErrDisabled = apperr.Unavailable("insights are not configured")

type Service struct {
	generator Generator
}

// NewService accepts a nil generator; Analyze then returns ErrDisabled.
func NewService(generator Generator) *Service {
	return &Service{generator: generator}
}

func (s *Service) Analyze(ctx context.Context, req Request) (Response, error) {
	if s.generator == nil {
		return Response{}, ErrDisabled
	}

	content, err := s.generator.Generate(ctx, buildSystemPrompt(req), buildUserPrompt(req))
	if err != nil {
		return Response{}, err
	}

	analysisType := defaultAnalysisType
	if req.AnalysisInfo != nil && req.AnalysisInfo.Type != "" {
		analysisType = req.AnalysisInfo.Type
	}

	return Response{
		Content:         content + recordsFooter(req.RecordsFound),
		AnalysisType:    analysisTypePrefix + analysisType,
		RecordsAnalyzed: req.RecordsFound,
		BusinessContext: businessContext,
		ProductFocus:    productFocus,
		Success:         true,
	}, nil
}
