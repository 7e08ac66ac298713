package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMSemanticCheckerParsesVerdict(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{{Text: `Sure! {"validationCheck":{"passed":false,"reason":"jumps to advice"},"toxicPositivityCheck":{"detected":true,"confidence":80,"examples":["look at the upside"," "]},"adviceCheck":{"detected":true,"validated":false}}`}}}
	checker := NewLLMSemanticChecker(llm, SemanticCheckerConfig{Model: "grader"}, nil)

	verdict, err := checker.Check(context.Background(), SemanticCheckRequest{
		UserMessage:   "I'm so tired",
		AgentResponse: "Try going to bed earlier.",
		Frame:         FrameClarityCoach,
		Metrics:       MetricsSnapshot{SentimentAuthenticity: 30},
	})
	require.NoError(t, err)
	assert.False(t, verdict.Validation.Passed)
	assert.Equal(t, "jumps to advice", verdict.Validation.Reason)
	assert.True(t, verdict.ToxicPositivity.Detected)
	assert.Equal(t, 80, verdict.ToxicPositivity.Confidence)
	assert.Equal(t, []string{"look at the upside"}, verdict.ToxicPositivity.Examples)
	assert.Equal(t, AdviceCheck{Detected: true, Validated: false}, verdict.Advice)

	require.Len(t, llm.requests, 1)
	prompt := llm.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "Does the response include advice without proper validation first?")
	assert.Contains(t, prompt, `"Try going to bed earlier."`)
	assert.Equal(t, "grader", llm.requests[0].Model)
}

func TestSemanticCheckPromptSkipsAdviceWhenAuthentic(t *testing.T) {
	prompt := buildSemanticCheckPrompt(SemanticCheckRequest{Metrics: MetricsSnapshot{SentimentAuthenticity: 70}})
	assert.True(t, strings.Contains(prompt, "Skip this check"))
}

func TestParseSemanticVerdictFillsMissingFieldsPermissively(t *testing.T) {
	verdict, err := parseSemanticVerdict(`{"toxicPositivityCheck":{"detected":false}}`)
	require.NoError(t, err)
	assert.True(t, verdict.Validation.Passed)
	assert.True(t, verdict.Advice.Validated)
	assert.False(t, verdict.Advice.Detected)
}

func TestLLMSemanticCheckerErrors(t *testing.T) {
	checker := NewLLMSemanticChecker(&stubLLMClient{err: errors.New("timeout")}, SemanticCheckerConfig{}, nil)
	_, err := checker.Check(context.Background(), SemanticCheckRequest{})
	assert.ErrorIs(t, err, ErrSemanticCheck)

	for _, raw := range []string{"", "not json", `{"unrelated":true}`, `{"validationCheck":{"passed":"yes"}}`} {
		checker = NewLLMSemanticChecker(&stubLLMClient{response: LLMResponse{Text: raw}}, SemanticCheckerConfig{}, nil)
		_, err = checker.Check(context.Background(), SemanticCheckRequest{})
		assert.ErrorIs(t, err, ErrMalformedCheckerOutput, raw)
	}
}
