package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/bme-companion/pkg/logging"
)

const maxSummaryWords = 200

// ReflectionItem is one user-authored journal entry.
type ReflectionItem struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReflectionContext is owned by the client; the service only reads it and may
// return a refreshed summary.
type ReflectionContext struct {
	Summary          string           `json:"summary"`
	Items            []ReflectionItem `json:"items"`
	LastSummarizedAt *time.Time       `json:"lastSummarizedAt,omitempty"`
}

// PendingItems returns the items written after the last summary, oldest first.
// Every item is pending when the context has never been summarized.
func (r ReflectionContext) PendingItems() []ReflectionItem {
	var pending []ReflectionItem
	for _, item := range r.Items {
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		if r.LastSummarizedAt != nil && !item.CreatedAt.After(*r.LastSummarizedAt) {
			continue
		}
		pending = append(pending, item)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// SummarizeRequest asks for the running summary to absorb new items.
type SummarizeRequest struct {
	PreviousSummary string
	Items           []ReflectionItem
}

// Summarizer maintains the bounded reflection summary.
type Summarizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (string, error)
}

type SummarizerConfig struct {
	Model       string
	Timeout     time.Duration
	MaxTokens   int32
	Temperature float32
}

// LLMSummarizer folds reflections into the summary with one completion.
type LLMSummarizer struct {
	client      LLMClient
	model       string
	timeout     time.Duration
	maxTokens   int32
	temperature float32
	logger      *logging.Logger
}

const summarizerPrompt = `You maintain a private running summary of a user's journal reflections for a wellness companion.

Merge the new reflections into the existing summary:
- Write in the third person ("The user...")
- Prioritize recurring patterns, emotional triggers and coping strategies that worked
- Drop stale or one-off details when newer entries supersede them
- Stay under 200 words
- Return only the summary text`

func NewLLMSummarizer(client LLMClient, cfg SummarizerConfig, logger *logging.Logger) *LLMSummarizer {
	if client == nil {
		panic("conversation: summarizer llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 400
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.3
	}
	return &LLMSummarizer{
		client:      client,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	if len(req.Items) == 0 {
		return req.PreviousSummary, nil
	}
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.Complete(callCtx, LLMRequest{
		Model:       s.model,
		System:      []string{summarizerPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: buildSummaryInput(req)}},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarization, err)
	}
	summary := truncateWords(strings.TrimSpace(resp.Text), maxSummaryWords)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", ErrSummarization)
	}
	s.logger.Debug("reflection summary refreshed", "items", len(req.Items), "words", len(strings.Fields(summary)))
	return summary, nil
}

func buildSummaryInput(req SummarizeRequest) string {
	var b strings.Builder
	b.WriteString("Existing summary:\n")
	if prev := strings.TrimSpace(req.PreviousSummary); prev != "" {
		b.WriteString(prev)
	} else {
		b.WriteString("(none yet)")
	}
	b.WriteString("\n\nNew reflections:\n")
	for _, item := range req.Items {
		b.WriteString("- ")
		if !item.CreatedAt.IsZero() {
			b.WriteString(item.CreatedAt.UTC().Format("2006-01-02"))
			b.WriteString(" ")
		}
		if item.Mood != "" {
			fmt.Fprintf(&b, "[mood: %s] ", item.Mood)
		}
		b.WriteString(strings.TrimSpace(item.Content))
		b.WriteString("\n")
	}
	return b.String()
}

func truncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[:limit], " ")
}
