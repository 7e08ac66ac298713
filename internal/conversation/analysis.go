package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wolfman30/bme-companion/pkg/logging"
)

// InputAnalysis is the classifier's reading of the latest user turn.
type InputAnalysis struct {
	Sentiment              float64 `json:"sentiment"`
	EmotionalState         string  `json:"emotionalState"`
	Intent                 string  `json:"intent"`
	NeedsReflectionContext bool    `json:"needsReflectionContext"`
}

// NeutralAnalysis is substituted whenever classification fails.
func NeutralAnalysis() InputAnalysis {
	return InputAnalysis{
		Sentiment:      0,
		EmotionalState: "neutral",
		Intent:         "reflecting",
	}
}

// Classifier reads the emotional state and intent of the latest user turn.
type Classifier interface {
	Classify(ctx context.Context, history []ChatMessage) (InputAnalysis, error)
}

// ClassifierConfig configures the LLM classifier.
type ClassifierConfig struct {
	Model     string
	Timeout   time.Duration
	MaxTokens int32
}

// LLMClassifier classifies turns with one JSON-mode completion.
type LLMClassifier struct {
	client    LLMClient
	model     string
	timeout   time.Duration
	maxTokens int32
	logger    *logging.Logger
}

const classifierPrompt = `Analyze the user's emotional state and intent, focusing on the most recent user message.

Return ONLY JSON in this exact format:
{"sentiment":0.0,"emotionalState":"","intent":"","needsReflectionContext":false}

Fields:
- sentiment: -1.0 (very negative) to 1.0 (very positive)
- emotionalState: one word such as frustrated, confused, positive, neutral, overwhelmed, anxious, hopeful, sad, proud
- intent: one of venting, seeking_advice, celebrating, reflecting, uncertain
- needsReflectionContext: true only when the user refers to their past reflections, journal entries, recurring patterns or earlier weeks`

func NewLLMClassifier(client LLMClient, cfg ClassifierConfig, logger *logging.Logger) *LLMClassifier {
	if client == nil {
		panic("conversation: classifier llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &LLMClassifier{
		client:    client,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Classify returns an error wrapping ErrClassification on any failure.
func (c *LLMClassifier) Classify(ctx context.Context, history []ChatMessage) (InputAnalysis, error) {
	if len(history) == 0 {
		return InputAnalysis{}, fmt.Errorf("%w: empty history", ErrClassification)
	}
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Complete(callCtx, LLMRequest{
		Model:        c.model,
		System:       []string{classifierPrompt},
		Messages:     history,
		MaxTokens:    c.maxTokens,
		Temperature:  0,
		JSONResponse: true,
	})
	if err != nil {
		return InputAnalysis{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	analysis, err := parseInputAnalysis(resp.Text)
	if err != nil {
		return InputAnalysis{}, err
	}
	c.logger.Debug("turn classified",
		"sentiment", analysis.Sentiment,
		"emotional_state", analysis.EmotionalState,
		"intent", analysis.Intent,
		"needs_reflection_context", analysis.NeedsReflectionContext,
	)
	return analysis, nil
}

func parseInputAnalysis(raw string) (InputAnalysis, error) {
	text := sanitizeModelJSON(raw)
	if text == "" {
		return InputAnalysis{}, fmt.Errorf("%w: empty response", ErrClassification)
	}
	var payload struct {
		Sentiment              *float64 `json:"sentiment"`
		EmotionalState         string   `json:"emotionalState"`
		Intent                 string   `json:"intent"`
		NeedsReflectionContext bool     `json:"needsReflectionContext"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return InputAnalysis{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	if payload.Sentiment == nil || math.IsNaN(*payload.Sentiment) {
		return InputAnalysis{}, fmt.Errorf("%w: missing sentiment", ErrClassification)
	}

	analysis := InputAnalysis{
		Sentiment:              math.Max(-1, math.Min(1, *payload.Sentiment)),
		EmotionalState:         strings.ToLower(strings.TrimSpace(payload.EmotionalState)),
		Intent:                 strings.ToLower(strings.TrimSpace(payload.Intent)),
		NeedsReflectionContext: payload.NeedsReflectionContext,
	}
	if analysis.EmotionalState == "" {
		analysis.EmotionalState = "neutral"
	}
	if analysis.Intent == "" {
		analysis.Intent = "reflecting"
	}
	return analysis, nil
}
