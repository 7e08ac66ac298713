package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	observemetrics "github.com/wolfman30/bme-companion/internal/observability/metrics"
	"github.com/wolfman30/bme-companion/pkg/logging"
)

var evaluatorTracer = otel.Tracer("bme/evaluator")

// IssueType names a quality problem found in a reply.
type IssueType string

const (
	IssueMissingValidation IssueType = "MISSING_VALIDATION"
	IssueTooDirective      IssueType = "TOO_DIRECTIVE"
	IssueToxicPositivity   IssueType = "TOXIC_POSITIVITY"
	IssueTooLong           IssueType = "TOO_LONG"
	IssueUnsolicitedAdvice IssueType = "UNSOLICITED_ADVICE"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

var severityPenalty = map[Severity]int{
	SeverityHigh:   30,
	SeverityMedium: 15,
	SeverityLow:    5,
}

const (
	maxSentences          = 6
	minCoachQuestionRatio = 0.5
)

type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Fix      string    `json:"fix"`
	Details  string    `json:"details"`
}

// EvaluationMetrics are the local measurements taken while evaluating.
type EvaluationMetrics struct {
	ValidationPresent       bool    `json:"validationPresent"`
	QuestionRatio           float64 `json:"questionRatio"`
	ToxicPositivityDetected bool    `json:"toxicPositivityDetected"`
	SentenceCount           int     `json:"sentenceCount"`
	SemanticCheckDegraded   bool    `json:"semanticCheckDegraded,omitempty"`
}

type Evaluation struct {
	Accepted bool              `json:"accepted"`
	Issues   []Issue           `json:"issues"`
	Score    int               `json:"score"`
	Metrics  EvaluationMetrics `json:"metrics"`
}

type EvaluateRequest struct {
	Response    string
	UserMessage string
	Metrics     MetricsSnapshot
	Frame       Frame
}

// ResponseEvaluator grades a generated reply.
type ResponseEvaluator interface {
	Evaluate(ctx context.Context, req EvaluateRequest) Evaluation
}

// Evaluator combines the local rule engine with an optional semantic checker.
type Evaluator struct {
	checker SemanticChecker
	logger  *logging.Logger
	metrics *observemetrics.CompanionMetrics
}

// NewEvaluator builds an evaluator. A nil checker runs local rules only, as if
// the semantic check were unavailable.
func NewEvaluator(checker SemanticChecker, logger *logging.Logger, metrics *observemetrics.CompanionMetrics) *Evaluator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Evaluator{checker: checker, logger: logger, metrics: metrics}
}

// Evaluate never fails; semantic check errors degrade to a permissive verdict.
func (e *Evaluator) Evaluate(ctx context.Context, req EvaluateRequest) Evaluation {
	ctx, span := evaluatorTracer.Start(ctx, "evaluator.evaluate")
	defer span.End()

	questionRatio := QuestionRatio(req.Response)
	sentenceCount := CountSentences(req.Response)
	localToxic := MatchToxicPhrases(req.Response)

	verdict, degraded := e.semanticVerdict(ctx, req)

	var issues []Issue
	if !verdict.Validation.Passed {
		issues = append(issues, Issue{
			Type:     IssueMissingValidation,
			Severity: SeverityHigh,
			Fix:      "Add emotional validation before suggestions or reframing",
			Details:  verdict.Validation.Reason,
		})
	}
	if req.Frame == FrameClarityCoach && questionRatio < minCoachQuestionRatio {
		issues = append(issues, Issue{
			Type:     IssueTooDirective,
			Severity: SeverityMedium,
			Fix:      "Convert statements to questions. The Clarity Coach should mostly ask questions.",
			Details:  fmt.Sprintf("Current ratio: %.0f%%", questionRatio*100),
		})
	}
	toxic := verdict.ToxicPositivity.Detected || len(localToxic) > 0
	if toxic {
		details := append(append([]string{}, localToxic...), verdict.ToxicPositivity.Examples...)
		issues = append(issues, Issue{
			Type:     IssueToxicPositivity,
			Severity: SeverityHigh,
			Fix:      "Remove dismissive or overly positive phrases that invalidate emotions",
			Details:  strings.Join(details, ", "),
		})
	}
	if sentenceCount > maxSentences {
		issues = append(issues, Issue{
			Type:     IssueTooLong,
			Severity: SeverityLow,
			Fix:      "Keep responses concise (3-5 sentences max)",
			Details:  fmt.Sprintf("Current: %d sentences", sentenceCount),
		})
	}
	if req.Metrics.SentimentAuthenticity < authenticityThreshold && verdict.Advice.Detected && !verdict.Advice.Validated {
		issues = append(issues, Issue{
			Type:     IssueUnsolicitedAdvice,
			Severity: SeverityMedium,
			Fix:      "Focus on validation and listening before offering solutions",
			Details:  "User showing low sentiment authenticity - prioritize emotional support",
		})
	}

	evaluation := Evaluation{
		Accepted: !HasHighSeverity(issues),
		Issues:   issues,
		Score:    ScoreIssues(issues),
		Metrics: EvaluationMetrics{
			ValidationPresent:       verdict.Validation.Passed,
			QuestionRatio:           questionRatio,
			ToxicPositivityDetected: toxic,
			SentenceCount:           sentenceCount,
			SemanticCheckDegraded:   degraded,
		},
	}
	if evaluation.Issues == nil {
		evaluation.Issues = []Issue{}
	}

	span.SetAttributes(
		attribute.String("bme.frame", string(req.Frame)),
		attribute.Bool("bme.accepted", evaluation.Accepted),
		attribute.Int("bme.score", evaluation.Score),
		attribute.Int("bme.issues", len(issues)),
	)
	e.metrics.ObserveEvaluation(evaluation.Score, evaluation.Accepted)
	for _, issue := range issues {
		e.metrics.ObserveIssue(string(issue.Type), string(issue.Severity))
	}
	return evaluation
}

func (e *Evaluator) semanticVerdict(ctx context.Context, req EvaluateRequest) (SemanticVerdict, bool) {
	if e.checker == nil {
		return PermissiveVerdict(), true
	}
	verdict, err := e.checker.Check(ctx, SemanticCheckRequest{
		UserMessage:   req.UserMessage,
		AgentResponse: req.Response,
		Frame:         req.Frame,
		Metrics:       req.Metrics,
	})
	if err != nil {
		e.logger.Warn("semantic check unavailable, using permissive verdict", "error", err, "frame", req.Frame)
		e.metrics.ObserveDegraded("semantic_checker")
		return PermissiveVerdict(), true
	}
	return verdict, false
}

// ScoreIssues returns 100 minus the severity penalties, floored at 0.
func ScoreIssues(issues []Issue) int {
	score := 100
	for _, issue := range issues {
		score -= severityPenalty[issue.Severity]
	}
	if score < 0 {
		return 0
	}
	return score
}

// HasHighSeverity reports whether any issue blocks acceptance.
func HasHighSeverity(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
