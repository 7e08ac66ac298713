package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	observemetrics "github.com/wolfman30/bme-companion/internal/observability/metrics"
	"github.com/wolfman30/bme-companion/pkg/logging"
)

var serviceTracer = otel.Tracer("bme/conversation")

// Service handles one conversational turn.
type Service interface {
	HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error)
}

// TurnRequest carries the full client-held history plus optional state.
type TurnRequest struct {
	ConversationID string
	History        []ChatMessage
	// PriorMetrics seeds incremental metrics when no running state is available.
	PriorMetrics *MetricsSnapshot
	MetricsState *MetricsState
	Reflection   *ReflectionContext
}

type TurnResponse struct {
	ConversationID           string          `json:"conversationId,omitempty"`
	AssistantMessage         string          `json:"assistantMessage"`
	Frame                    Frame           `json:"frame"`
	Reason                   string          `json:"reason"`
	Metrics                  MetricsSnapshot `json:"metrics"`
	MetricsState             *MetricsState   `json:"metricsState,omitempty"`
	InputAnalysis            InputAnalysis   `json:"inputAnalysis"`
	Evaluation               Evaluation      `json:"evaluation"`
	Attempts                 int             `json:"attempts"`
	Modulations              ModulationSet   `json:"modulations"`
	FallbackUsed             bool            `json:"fallbackUsed,omitempty"`
	UpdatedReflectionSummary *string         `json:"updatedReflectionSummary,omitempty"`
	ReflectionSummarizedAt   *time.Time      `json:"reflectionSummarizedAt,omitempty"`
}

// ValidateHistory normalizes roles and rejects histories the pipeline cannot
// answer: empty ones, unknown roles, and histories that do not end on a user
// turn. Errors wrap ErrInvalidHistory.
func ValidateHistory(history []ChatMessage) ([]ChatMessage, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: history is empty", ErrInvalidHistory)
	}
	out := make([]ChatMessage, 0, len(history))
	hasUser := false
	for i, msg := range history {
		role, ok := NormalizeRole(msg.Role)
		if !ok {
			return nil, fmt.Errorf("%w: turn %d has unsupported role %q", ErrInvalidHistory, i, msg.Role)
		}
		if role == ChatRoleUser {
			hasUser = true
		}
		out = append(out, ChatMessage{Role: role, Content: msg.Content})
	}
	if !hasUser {
		return nil, fmt.Errorf("%w: no user turn", ErrInvalidHistory)
	}
	if out[len(out)-1].Role != ChatRoleUser {
		return nil, fmt.Errorf("%w: last turn must be a user turn", ErrInvalidHistory)
	}
	return out, nil
}

// TurnService is the production Service.
type TurnService struct {
	classifier   Classifier
	summarizer   Summarizer
	orchestrator *Orchestrator
	stateStore   MetricsStateStore
	mode         MetricsMode
	logger       *logging.Logger
	metrics      *observemetrics.CompanionMetrics
	now          func() time.Time
}

var _ Service = (*TurnService)(nil)

// TurnServiceOption configures optional collaborators.
type TurnServiceOption func(*TurnService)

// WithSummarizer enables lazy reflection summarization.
func WithSummarizer(summarizer Summarizer) TurnServiceOption {
	return func(s *TurnService) {
		s.summarizer = summarizer
	}
}

// WithMetricsMode selects recompute or incremental metrics.
func WithMetricsMode(mode MetricsMode) TurnServiceOption {
	return func(s *TurnService) {
		s.mode = mode
	}
}

// WithMetricsStateStore caches incremental state per conversation ID.
func WithMetricsStateStore(store MetricsStateStore) TurnServiceOption {
	return func(s *TurnService) {
		s.stateStore = store
	}
}

// WithClock overrides the time source used to stamp summaries.
func WithClock(now func() time.Time) TurnServiceOption {
	return func(s *TurnService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTurnService wires the turn pipeline. A nil classifier always yields the
// neutral analysis.
func NewTurnService(classifier Classifier, orchestrator *Orchestrator, logger *logging.Logger, metrics *observemetrics.CompanionMetrics, opts ...TurnServiceOption) *TurnService {
	if orchestrator == nil {
		panic("conversation: orchestrator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &TurnService{
		classifier:   classifier,
		orchestrator: orchestrator,
		mode:         MetricsModeRecompute,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleTurn classifies the latest turn, refreshes the reflection summary if
// needed, routes to a frame and runs the generation loop. Only invalid history
// and generation failures are returned as errors.
func (s *TurnService) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	started := time.Now()
	ctx, span := serviceTracer.Start(ctx, "conversation.handle_turn")
	defer span.End()

	history, err := ValidateHistory(req.History)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveTurnLatency("invalid", time.Since(started).Seconds())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("bme.history_turns", len(history)),
		attribute.String("bme.metrics_mode", string(s.mode)),
	)

	analysis := s.classify(ctx, history)
	summary, update := s.reflectionSummary(ctx, analysis, req.Reflection)
	tracker, metrics := s.currentMetrics(ctx, req, history)

	frame := SelectFrame(analysis, metrics)
	reason := FrameReason(analysis, metrics)
	s.metrics.ObserveFrame(string(frame))
	span.SetAttributes(attribute.String("bme.frame", string(frame)))

	result, err := s.orchestrator.Run(ctx, OrchestrateRequest{
		Conversation:      history,
		Metrics:           metrics,
		Frame:             frame,
		ReflectionSummary: summary,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		s.metrics.ObserveTurnLatency("error", time.Since(started).Seconds())
		s.logger.Error("turn failed", "conversation_id", req.ConversationID, "frame", frame, "error", err)
		return nil, err
	}

	resp := &TurnResponse{
		ConversationID:   req.ConversationID,
		AssistantMessage: result.AssistantMessage,
		Frame:            result.Frame,
		Reason:           reason,
		InputAnalysis:    analysis,
		Evaluation:       result.Evaluation,
		Attempts:         result.Attempts,
		Modulations:      result.Modulations,
		FallbackUsed:     result.FallbackUsed,
	}
	if result.FallbackUsed {
		resp.Reason = fmt.Sprintf("%s; fell back to %s after %d rejected attempts", reason, FrameReflectiveListener, result.Attempts-1)
	}
	if resp.Modulations == nil {
		resp.Modulations = ModulationSet{}
	}
	if update != nil {
		resp.UpdatedReflectionSummary = &update.summary
		resp.ReflectionSummarizedAt = &update.at
	}

	if tracker != nil {
		resp.Metrics = tracker.ObserveReply(result.AssistantMessage)
		state := tracker.State()
		resp.MetricsState = &state
		s.saveState(ctx, req.ConversationID, state)
	} else {
		final := append(cloneHistory(history), ChatMessage{Role: ChatRoleAssistant, Content: result.AssistantMessage})
		resp.Metrics = ComputeMetrics(final)
	}

	s.metrics.ObserveTurnLatency("ok", time.Since(started).Seconds())
	s.logger.Info("turn handled",
		"conversation_id", req.ConversationID,
		"frame", resp.Frame,
		"attempts", resp.Attempts,
		"accepted", resp.Evaluation.Accepted,
		"score", resp.Evaluation.Score,
	)
	return resp, nil
}

func (s *TurnService) classify(ctx context.Context, history []ChatMessage) InputAnalysis {
	if s.classifier == nil {
		return NeutralAnalysis()
	}
	analysis, err := s.classifier.Classify(ctx, history)
	if err != nil {
		if !errors.Is(err, ErrClassification) {
			err = fmt.Errorf("%w: %v", ErrClassification, err)
		}
		s.logger.Warn("classification failed, using neutral analysis", "error", err)
		s.metrics.ObserveDegraded("classifier")
		return NeutralAnalysis()
	}
	return analysis
}

type reflectionUpdate struct {
	summary string
	at      time.Time
}

// reflectionSummary returns the summary to give the generator and, when a new
// summary was written, the update to hand back to the client.
func (s *TurnService) reflectionSummary(ctx context.Context, analysis InputAnalysis, reflection *ReflectionContext) (string, *reflectionUpdate) {
	if !analysis.NeedsReflectionContext || reflection == nil || len(reflection.Items) == 0 {
		return "", nil
	}
	existing := strings.TrimSpace(reflection.Summary)
	pending := reflection.PendingItems()
	if len(pending) == 0 {
		s.metrics.ObserveSummary("reused")
		return existing, nil
	}
	if s.summarizer == nil {
		s.metrics.ObserveSummary("skipped")
		return existing, nil
	}

	summary, err := s.summarizer.Summarize(ctx, SummarizeRequest{PreviousSummary: existing, Items: pending})
	if err != nil {
		s.logger.Warn("reflection summarization failed, using previous summary", "error", err, "pending_items", len(pending))
		s.metrics.ObserveSummary("failed")
		s.metrics.ObserveDegraded("summarizer")
		return existing, nil
	}
	s.metrics.ObserveSummary("updated")
	return summary, &reflectionUpdate{summary: summary, at: s.now().UTC()}
}

// currentMetrics returns the snapshot used for routing, which already counts
// the user turn being answered. In incremental mode it also returns the
// tracker that will absorb the reply.
func (s *TurnService) currentMetrics(ctx context.Context, req TurnRequest, history []ChatMessage) (*MetricsTracker, MetricsSnapshot) {
	if s.mode != MetricsModeIncremental {
		return nil, ComputeMetrics(history)
	}
	tracker := s.resumeTracker(ctx, req, countUserTurns(history))
	return tracker, tracker.CatchUp(history)
}

// resumeTracker picks the first running state that predates the turn being
// answered: client state, then the cache, then a seeded snapshot. A state that
// already counts every user turn (a replayed request) is skipped and the
// history is replayed from scratch.
func (s *TurnService) resumeTracker(ctx context.Context, req TurnRequest, userTurns int) *MetricsTracker {
	if req.MetricsState != nil {
		if req.MetricsState.ExchangeCount < userTurns {
			return NewMetricsTracker(req.MetricsState)
		}
		s.logger.Warn("client metrics state is not behind history, ignoring",
			"conversation_id", req.ConversationID,
			"state_exchanges", req.MetricsState.ExchangeCount,
			"user_turns", userTurns,
		)
	}
	if state := s.loadState(ctx, req.ConversationID); state != nil {
		if state.ExchangeCount < userTurns {
			return NewMetricsTracker(state)
		}
		s.logger.Debug("cached metrics state already covers this turn, replaying",
			"conversation_id", req.ConversationID,
			"state_exchanges", state.ExchangeCount,
		)
	}
	if req.PriorMetrics != nil {
		seeded := SeedMetricsState(*req.PriorMetrics)
		if seeded.ExchangeCount < userTurns {
			return NewMetricsTracker(&seeded)
		}
	}
	return NewMetricsTracker(nil)
}

func countUserTurns(history []ChatMessage) int {
	n := 0
	for _, msg := range history {
		if msg.Role == ChatRoleUser {
			n++
		}
	}
	return n
}

func (s *TurnService) loadState(ctx context.Context, conversationID string) *MetricsState {
	if s.stateStore == nil || strings.TrimSpace(conversationID) == "" {
		return nil
	}
	state, err := s.stateStore.Load(ctx, conversationID)
	if err != nil {
		s.logger.Warn("metrics state unavailable, rebuilding", "conversation_id", conversationID, "error", err)
		s.metrics.ObserveDegraded("state_store")
		return nil
	}
	return state
}

func (s *TurnService) saveState(ctx context.Context, conversationID string, state MetricsState) {
	if s.stateStore == nil || strings.TrimSpace(conversationID) == "" {
		return
	}
	if err := s.stateStore.Save(ctx, conversationID, state); err != nil {
		s.logger.Warn("failed to cache metrics state", "conversation_id", conversationID, "error", err)
		s.metrics.ObserveDegraded("state_store")
	}
}

// StubService answers without any model: real routing and metrics, canned
// reply. Used when no LLM provider is configured.
type StubService struct {
	evaluator *Evaluator
}

var _ Service = (*StubService)(nil)

// NewStubService returns the stub implementation.
func NewStubService() *StubService {
	return &StubService{evaluator: NewEvaluator(nil, nil, nil)}
}

var stubReplies = map[Frame]string{
	FrameReflectiveListener: "It sounds like a lot is sitting with you right now. What feels heaviest?",
	FrameClarityCoach:       "I hear you. What would feel like a clear next step from here?",
	FrameMomentumPartner:    "That's worth noticing. What made it work for you?",
}

func (s *StubService) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	history, err := ValidateHistory(req.History)
	if err != nil {
		return nil, err
	}
	analysis := NeutralAnalysis()
	metrics := ComputeMetrics(history)
	frame := SelectFrame(analysis, metrics)
	reply := stubReplies[frame]

	evaluation := s.evaluator.Evaluate(ctx, EvaluateRequest{
		Response:    reply,
		UserMessage: lastUserMessage(history),
		Metrics:     metrics,
		Frame:       frame,
	})
	final := append(cloneHistory(history), ChatMessage{Role: ChatRoleAssistant, Content: reply})
	return &TurnResponse{
		ConversationID:   req.ConversationID,
		AssistantMessage: reply,
		Frame:            frame,
		Reason:           FrameReason(analysis, metrics),
		Metrics:          ComputeMetrics(final),
		InputAnalysis:    analysis,
		Evaluation:       evaluation,
		Modulations:      ModulationSet{},
	}, nil
}
