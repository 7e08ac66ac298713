package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/bme-companion/pkg/logging"
)

// SemanticCheckRequest carries one reply to grade.
type SemanticCheckRequest struct {
	UserMessage   string
	AgentResponse string
	Frame         Frame
	Metrics       MetricsSnapshot
}

type ValidationCheck struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

type ToxicPositivityCheck struct {
	Detected   bool     `json:"detected"`
	Confidence int      `json:"confidence"`
	Examples   []string `json:"examples"`
}

type AdviceCheck struct {
	Detected  bool `json:"detected"`
	Validated bool `json:"validated"`
}

// SemanticVerdict is the combined result of the model-graded checks.
type SemanticVerdict struct {
	Validation      ValidationCheck      `json:"validationCheck"`
	ToxicPositivity ToxicPositivityCheck `json:"toxicPositivityCheck"`
	Advice          AdviceCheck          `json:"adviceCheck"`
}

// PermissiveVerdict is used whenever the semantic check is unavailable, so a
// grader outage never blocks a reply.
func PermissiveVerdict() SemanticVerdict {
	return SemanticVerdict{
		Validation:      ValidationCheck{Passed: true, Reason: "Unable to evaluate"},
		ToxicPositivity: ToxicPositivityCheck{Examples: []string{}},
		Advice:          AdviceCheck{Detected: false, Validated: true},
	}
}

// SemanticChecker grades validation, toxic positivity and advice in one call.
type SemanticChecker interface {
	Check(ctx context.Context, req SemanticCheckRequest) (SemanticVerdict, error)
}

type SemanticCheckerConfig struct {
	Model     string
	Timeout   time.Duration
	MaxTokens int32
}

// LLMSemanticChecker asks a model for a JSON verdict.
type LLMSemanticChecker struct {
	client    LLMClient
	model     string
	timeout   time.Duration
	maxTokens int32
	logger    *logging.Logger
}

func NewLLMSemanticChecker(client LLMClient, cfg SemanticCheckerConfig, logger *logging.Logger) *LLMSemanticChecker {
	if client == nil {
		panic("conversation: semantic checker llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &LLMSemanticChecker{
		client:    client,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Check returns ErrSemanticCheck when the call fails and
// ErrMalformedCheckerOutput when the reply cannot be decoded.
func (c *LLMSemanticChecker) Check(ctx context.Context, req SemanticCheckRequest) (SemanticVerdict, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Complete(callCtx, LLMRequest{
		Model:        c.model,
		Messages:     []ChatMessage{{Role: ChatRoleUser, Content: buildSemanticCheckPrompt(req)}},
		MaxTokens:    c.maxTokens,
		Temperature:  0,
		JSONResponse: true,
	})
	if err != nil {
		return SemanticVerdict{}, fmt.Errorf("%w: %v", ErrSemanticCheck, err)
	}
	return parseSemanticVerdict(resp.Text)
}

func buildSemanticCheckPrompt(req SemanticCheckRequest) string {
	metricsJSON, _ := json.Marshal(req.Metrics)
	adviceQuestion := "Skip this check and return detected=false, validated=true."
	if req.Metrics.SentimentAuthenticity < authenticityThreshold {
		adviceQuestion = "Does the response include advice without proper validation first?"
	}

	var b strings.Builder
	b.WriteString("You are evaluating a mental wellness companion's reply for quality and safety.\n\n")
	fmt.Fprintf(&b, "User message: %q\n", req.UserMessage)
	fmt.Fprintf(&b, "Companion reply: %q\n", req.AgentResponse)
	fmt.Fprintf(&b, "Selected frame: %s\n", req.Frame)
	fmt.Fprintf(&b, "Current metrics: %s\n\n", metricsJSON)
	b.WriteString("Perform these checks:\n\n")
	b.WriteString("1. VALIDATION: Does the reply acknowledge and validate the user's emotional state before offering advice or reframing?\n\n")
	b.WriteString("2. TOXIC POSITIVITY: Look for dismissing or minimizing emotions, forcing positivity when validation is needed, ")
	b.WriteString("suggesting emotions are a choice, comparing suffering (\"it could be worse\") and spiritual bypassing.\n\n")
	fmt.Fprintf(&b, "3. UNSOLICITED ADVICE: %s\n\n", adviceQuestion)
	b.WriteString(`Return ONLY JSON in this exact format:
{"validationCheck":{"passed":true,"reason":""},"toxicPositivityCheck":{"detected":false,"confidence":0,"examples":[]},"adviceCheck":{"detected":false,"validated":true}}`)
	return b.String()
}

// parseSemanticVerdict decodes checker output. Fields the model leaves out
// take their permissive value.
func parseSemanticVerdict(raw string) (SemanticVerdict, error) {
	text := sanitizeModelJSON(raw)
	if text == "" {
		return SemanticVerdict{}, fmt.Errorf("%w: empty response", ErrMalformedCheckerOutput)
	}

	var payload struct {
		ValidationCheck *struct {
			Passed *bool  `json:"passed"`
			Reason string `json:"reason"`
		} `json:"validationCheck"`
		ToxicPositivityCheck *struct {
			Detected   *bool    `json:"detected"`
			Confidence float64  `json:"confidence"`
			Examples   []string `json:"examples"`
		} `json:"toxicPositivityCheck"`
		AdviceCheck *struct {
			Detected  *bool `json:"detected"`
			Validated *bool `json:"validated"`
		} `json:"adviceCheck"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return SemanticVerdict{}, fmt.Errorf("%w: %v", ErrMalformedCheckerOutput, err)
	}
	if payload.ValidationCheck == nil && payload.ToxicPositivityCheck == nil && payload.AdviceCheck == nil {
		return SemanticVerdict{}, fmt.Errorf("%w: no checks in response", ErrMalformedCheckerOutput)
	}

	verdict := PermissiveVerdict()
	verdict.Validation.Reason = ""
	if v := payload.ValidationCheck; v != nil {
		if v.Passed != nil {
			verdict.Validation.Passed = *v.Passed
		}
		verdict.Validation.Reason = strings.TrimSpace(v.Reason)
	}
	if v := payload.ToxicPositivityCheck; v != nil {
		if v.Detected != nil {
			verdict.ToxicPositivity.Detected = *v.Detected
		}
		verdict.ToxicPositivity.Confidence = int(v.Confidence)
		for _, example := range v.Examples {
			if example = strings.TrimSpace(example); example != "" {
				verdict.ToxicPositivity.Examples = append(verdict.ToxicPositivity.Examples, example)
			}
		}
	}
	if v := payload.AdviceCheck; v != nil {
		if v.Detected != nil {
			verdict.Advice.Detected = *v.Detected
		}
		if v.Validated != nil {
			verdict.Advice.Validated = *v.Validated
		}
	}
	return verdict, nil
}
