package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/bme-companion/internal/config"
	"github.com/wolfman30/bme-companion/internal/conversation"
	observemetrics "github.com/wolfman30/bme-companion/internal/observability/metrics"
	"github.com/wolfman30/bme-companion/pkg/logging"
)

const (
	ProviderStub          = "stub"
	ProviderBedrock       = "bedrock"
	ProviderGemini        = "gemini"
	ProviderBedrockGemini = "bedrock+gemini"
)

// Deps are the runtime clients built by the binary. Nil fields disable the
// features that need them.
type Deps struct {
	AWS     *aws.Config
	Redis   *redis.Client
	Metrics *observemetrics.CompanionMetrics
}

// Companion is the wired conversation service plus its teardown.
type Companion struct {
	Service  conversation.Service
	Provider string
	closers  []func() error
}

// Close releases provider clients.
func (c *Companion) Close() error {
	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildCompanionService wires the turn pipeline from config. With no usable
// provider it returns the stub service.
func BuildCompanionService(ctx context.Context, cfg *appconfig.Config, deps Deps, logger *logging.Logger) (*Companion, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	policy, err := conversation.ParseExhaustionPolicy(cfg.ExhaustionPolicy)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	client, companion, err := buildLLMClient(ctx, cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	if client == nil {
		logger.Warn("no LLM provider configured; using stub companion service")
		companion.Service = conversation.NewStubService()
		return companion, nil
	}

	evaluatorModel := cfg.EvaluatorModelID()
	classifier := conversation.NewLLMClassifier(client, conversation.ClassifierConfig{
		Model:   evaluatorModel,
		Timeout: cfg.ClassifierTimeout,
	}, logger)
	checker := conversation.NewLLMSemanticChecker(client, conversation.SemanticCheckerConfig{
		Model:   evaluatorModel,
		Timeout: cfg.SemanticCheckTimeout,
	}, logger)
	summarizer := conversation.NewLLMSummarizer(client, conversation.SummarizerConfig{
		Model: evaluatorModel,
	}, logger)
	generator := conversation.NewLLMGenerator(client, nil, conversation.GeneratorConfig{
		Model: cfg.BedrockModelID,
	}, logger)

	orchestrator := conversation.NewOrchestrator(
		generator,
		conversation.NewEvaluator(checker, logger, deps.Metrics),
		logger,
		deps.Metrics,
		conversation.WithMaxAttempts(cfg.MaxAttempts),
		conversation.WithExhaustionPolicy(policy),
	)

	mode := conversation.ParseMetricsMode(cfg.MetricsMode)
	opts := []conversation.TurnServiceOption{
		conversation.WithSummarizer(summarizer),
		conversation.WithMetricsMode(mode),
	}
	if mode == conversation.MetricsModeIncremental && deps.Redis != nil {
		opts = append(opts, conversation.WithMetricsStateStore(
			conversation.NewRedisMetricsStateStore(deps.Redis, cfg.MetricsStateTTL, nil),
		))
		logger.Info("metrics state cached in redis", "ttl", cfg.MetricsStateTTL.String())
	}

	companion.Service = conversation.NewTurnService(classifier, orchestrator, logger, deps.Metrics, opts...)
	logger.Info("companion service ready",
		"provider", companion.Provider,
		"model", cfg.BedrockModelID,
		"evaluator_model", evaluatorModel,
		"metrics_mode", mode,
		"max_attempts", cfg.MaxAttempts,
		"exhaustion_policy", policy,
	)
	return companion, nil
}

// buildLLMClient selects Bedrock, Gemini or both per LLM_PROVIDER. A nil
// client means no provider is usable.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, deps Deps, logger *logging.Logger) (conversation.LLMClient, *Companion, error) {
	companion := &Companion{Provider: ProviderStub}
	retry := conversation.RetryConfig{
		Retries:   cfg.LLMRetryAttempts,
		BaseDelay: cfg.LLMRetryBaseDelay,
	}
	if cfg.LLMRetryAttempts <= 0 {
		retry.Retries = -1
	}

	bedrockReady := strings.TrimSpace(cfg.BedrockModelID) != "" && deps.AWS != nil
	geminiReady := strings.TrimSpace(cfg.GeminiAPIKey) != ""

	var bedrock conversation.LLMClient
	var gemini conversation.LLMClient
	switch cfg.LLMProvider {
	case ProviderBedrock:
		if !bedrockReady {
			return nil, nil, fmt.Errorf("bootstrap: bedrock provider requires BEDROCK_MODEL_ID and aws config")
		}
	case ProviderGemini:
		if !geminiReady {
			return nil, nil, fmt.Errorf("bootstrap: gemini provider requires GEMINI_API_KEY")
		}
		bedrockReady = false
	case "", "auto":
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	if bedrockReady {
		bedrock = conversation.NewRetryLLMClient(
			conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*deps.AWS)),
			retry, logger,
		)
		companion.Provider = ProviderBedrock
	}
	if geminiReady {
		geminiClient, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		companion.closers = append(companion.closers, geminiClient.Close)
		gemini = conversation.NewRetryLLMClient(geminiClient, retry, logger)
	}

	switch {
	case bedrock != nil && gemini != nil:
		companion.Provider = ProviderBedrockGemini
		return conversation.NewFallbackLLMClient(bedrock, gemini, logger), companion, nil
	case bedrock != nil:
		return bedrock, companion, nil
	case gemini != nil:
		companion.Provider = ProviderGemini
		return gemini, companion, nil
	default:
		return nil, companion, nil
	}
}
