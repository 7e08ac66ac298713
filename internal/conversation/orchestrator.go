package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	observemetrics "github.com/wolfman30/bme-companion/internal/observability/metrics"
	"github.com/wolfman30/bme-companion/pkg/logging"
)

var orchestratorTracer = otel.Tracer("bme/orchestrator")

// ExhaustionPolicy decides what happens when every attempt is rejected.
type ExhaustionPolicy string

const (
	// ExhaustionReturnLast returns the last rejected attempt with Accepted=false.
	ExhaustionReturnLast ExhaustionPolicy = "return_last"
	// ExhaustionForceFallback runs one more attempt as the reflective listener.
	ExhaustionForceFallback ExhaustionPolicy = "force_fallback"
)

const defaultMaxAttempts = 3

// ParseExhaustionPolicy accepts the policy names used in configuration. Empty
// input selects ExhaustionReturnLast.
func ParseExhaustionPolicy(raw string) (ExhaustionPolicy, error) {
	switch policy := ExhaustionPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return ExhaustionReturnLast, nil
	case ExhaustionReturnLast, ExhaustionForceFallback:
		return policy, nil
	default:
		return "", fmt.Errorf("conversation: unknown exhaustion policy %q", raw)
	}
}

// fallbackModulations steer the forced reflective-listener attempt.
var fallbackModulations = NewModulationSet(ModAddValidationFirst, ModIncreaseEmpathy, ModFocusOnListening)

type OrchestrateRequest struct {
	Conversation      []ChatMessage
	Metrics           MetricsSnapshot
	Frame             Frame
	ReflectionSummary string
}

type OrchestrateResult struct {
	AssistantMessage string
	Frame            Frame
	Evaluation       Evaluation
	// Attempts counts generation calls, including a forced fallback.
	Attempts     int
	Modulations  ModulationSet
	FallbackUsed bool
	Exhausted    bool
}

type orchestratorConfig struct {
	maxAttempts int
	policy      ExhaustionPolicy
}

// OrchestratorOption configures the generation loop.
type OrchestratorOption func(*orchestratorConfig)

// WithMaxAttempts bounds the number of regular generation attempts.
func WithMaxAttempts(n int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if n > 0 {
			cfg.maxAttempts = n
		}
	}
}

// WithExhaustionPolicy selects the behavior once every attempt is rejected.
func WithExhaustionPolicy(policy ExhaustionPolicy) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if policy == ExhaustionReturnLast || policy == ExhaustionForceFallback {
			cfg.policy = policy
		}
	}
}

// Orchestrator drives generate, evaluate and retry for one turn.
type Orchestrator struct {
	generator Generator
	evaluator ResponseEvaluator
	logger    *logging.Logger
	metrics   *observemetrics.CompanionMetrics
	cfg       orchestratorConfig
}

func NewOrchestrator(generator Generator, evaluator ResponseEvaluator, logger *logging.Logger, metrics *observemetrics.CompanionMetrics, opts ...OrchestratorOption) *Orchestrator {
	if generator == nil {
		panic("conversation: generator cannot be nil")
	}
	if evaluator == nil {
		panic("conversation: evaluator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := orchestratorConfig{
		maxAttempts: defaultMaxAttempts,
		policy:      ExhaustionReturnLast,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Orchestrator{
		generator: generator,
		evaluator: evaluator,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Run generates until a reply is accepted or the attempt budget is spent.
// Only generation failures are returned as errors, always as *GenerationError.
func (o *Orchestrator) Run(ctx context.Context, req OrchestrateRequest) (OrchestrateResult, error) {
	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.run")
	defer span.End()
	span.SetAttributes(attribute.String("bme.frame", string(req.Frame)))

	userMessage := lastUserMessage(req.Conversation)
	mods := MetricModulations(req.Metrics, req.Frame)
	conv := cloneHistory(req.Conversation)

	var result OrchestrateResult
	for attempt := 1; attempt <= o.cfg.maxAttempts; attempt++ {
		text, evaluation, err := o.attempt(ctx, attempt, req.Frame, conv, mods, req.ReflectionSummary, userMessage, req.Metrics)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
			return OrchestrateResult{}, err
		}
		result = OrchestrateResult{
			AssistantMessage: text,
			Frame:            req.Frame,
			Evaluation:       evaluation,
			Attempts:         attempt,
			Modulations:      mods,
		}
		if evaluation.Accepted {
			break
		}

		o.logger.Info("reply rejected",
			"frame", req.Frame,
			"attempt", attempt,
			"score", evaluation.Score,
			"issues", len(evaluation.Issues),
		)
		if attempt == o.cfg.maxAttempts {
			break
		}
		conv = withRejectionFeedback(req.Conversation, text, evaluation.Issues)
		mods = mods.Union(ModulationsFromIssues(evaluation.Issues))
	}

	if !result.Evaluation.Accepted {
		result.Exhausted = true
		o.metrics.ObserveExhausted(string(o.cfg.policy))
		if o.cfg.policy == ExhaustionForceFallback {
			result = o.forceFallback(ctx, req, userMessage, result)
		}
	}

	span.SetAttributes(
		attribute.Int("bme.attempts", result.Attempts),
		attribute.Bool("bme.accepted", result.Evaluation.Accepted),
		attribute.Bool("bme.fallback_used", result.FallbackUsed),
	)
	o.metrics.ObserveAttempts(string(result.Frame), result.Attempts)
	return result, nil
}

func (o *Orchestrator) attempt(ctx context.Context, attempt int, frame Frame, conv []ChatMessage, mods ModulationSet, summary, userMessage string, metrics MetricsSnapshot) (string, Evaluation, error) {
	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.attempt")
	defer span.End()
	span.SetAttributes(
		attribute.Int("bme.attempt", attempt),
		attribute.String("bme.frame", string(frame)),
		attribute.StringSlice("bme.modulations", mods.Strings()),
	)

	text, err := o.generator.Generate(ctx, GenerateRequest{
		Frame:             frame,
		Conversation:      conv,
		Modulations:       mods,
		ReflectionSummary: summary,
	})
	if err != nil {
		o.metrics.ObserveGenerationError()
		span.RecordError(err)
		return "", Evaluation{}, &GenerationError{Frame: frame, Attempt: attempt, Err: err}
	}

	evaluation := o.evaluator.Evaluate(ctx, EvaluateRequest{
		Response:    text,
		UserMessage: userMessage,
		Metrics:     metrics,
		Frame:       frame,
	})
	return text, evaluation, nil
}

// forceFallback regenerates once as the reflective listener from the original
// conversation. If that call fails the last rejected attempt is kept.
func (o *Orchestrator) forceFallback(ctx context.Context, req OrchestrateRequest, userMessage string, last OrchestrateResult) OrchestrateResult {
	attempt := last.Attempts + 1
	text, evaluation, err := o.attempt(ctx, attempt, FrameReflectiveListener, cloneHistory(req.Conversation), fallbackModulations, req.ReflectionSummary, userMessage, req.Metrics)
	if err != nil {
		o.logger.Error("fallback generation failed, keeping last attempt", "error", err)
		last.Attempts = attempt
		return last
	}
	o.logger.Info("forced fallback to reflective listener",
		"previous_frame", req.Frame,
		"accepted", evaluation.Accepted,
		"score", evaluation.Score,
	)
	return OrchestrateResult{
		AssistantMessage: text,
		Frame:            FrameReflectiveListener,
		Evaluation:       evaluation,
		Attempts:         attempt,
		Modulations:      fallbackModulations,
		FallbackUsed:     true,
		Exhausted:        true,
	}
}

// withRejectionFeedback returns base plus the rejected reply and a synthetic
// user turn listing what to fix. base is not modified.
func withRejectionFeedback(base []ChatMessage, rejected string, issues []Issue) []ChatMessage {
	out := make([]ChatMessage, 0, len(base)+2)
	out = append(out, base...)
	out = append(out,
		ChatMessage{Role: ChatRoleAssistant, Content: rejected},
		ChatMessage{Role: ChatRoleUser, Content: rejectionFeedback(issues)},
	)
	return out
}

func rejectionFeedback(issues []Issue) string {
	var b strings.Builder
	b.WriteString("Your previous response had these issues:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s: %s\n", issue.Type, issue.Fix)
	}
	b.WriteString("Please rewrite your response to my last message and address them.")
	return b.String()
}
