package conversation

import (
	"context"
	"strings"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one conversation turn. Turns are immutable once appended.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NormalizeRole maps client role names onto user/assistant. The second
// return is false for roles the pipeline does not accept.
func NormalizeRole(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ChatRoleUser:
		return ChatRoleUser, true
	case ChatRoleAssistant, "model":
		return ChatRoleAssistant, true
	default:
		return "", false
	}
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
	// JSONResponse asks providers that support it for application/json output.
	JSONResponse bool
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// lastUserMessage returns the content of the most recent user turn.
func lastUserMessage(history []ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == ChatRoleUser {
			return history[i].Content
		}
	}
	return ""
}

func cloneHistory(history []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(history))
	copy(out, history)
	return out
}
