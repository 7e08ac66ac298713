package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSystemPromptPersonaOnly(t *testing.T) {
	blocks, err := BuildSystemPrompt(NewStaticPersonaLibrary(nil), FrameReflectiveListener, nil, "  ")
	require.NoError(t, err)
	assert.Equal(t, []string{reflectiveListenerPrompt}, blocks)
}

func TestBuildSystemPromptWithModulationsAndSummary(t *testing.T) {
	mods := NewModulationSet(ModAddValidationFirst, ModReduceLength)
	blocks, err := BuildSystemPrompt(NewStaticPersonaLibrary(nil), FrameClarityCoach, mods, "The user journals on Sundays.")
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, clarityCoachPrompt, blocks[0])
	assert.Contains(t, blocks[1], ModAddValidationFirst.Instruction())
	assert.Contains(t, blocks[1], ModReduceLength.Instruction())
	assert.Less(t, strings.Index(blocks[1], ModAddValidationFirst.Instruction()), strings.Index(blocks[1], ModReduceLength.Instruction()))
	assert.Contains(t, blocks[2], "The user journals on Sundays.")
}

func TestBuildSystemPromptRejectsUnknownModulation(t *testing.T) {
	_, err := BuildSystemPrompt(NewStaticPersonaLibrary(nil), FrameClarityCoach, ModulationSet{"be_nicer"}, "")
	require.Error(t, err)
}

func TestLLMGeneratorSendsConversation(t *testing.T) {
	llm := &stubLLMClient{response: LLMResponse{Text: " It sounds heavy. What happened? "}}
	gen := NewLLMGenerator(llm, nil, GeneratorConfig{Model: "gen-model"}, nil)
	conv := []ChatMessage{{Role: ChatRoleUser, Content: "I feel like a failure today"}}

	text, err := gen.Generate(context.Background(), GenerateRequest{Frame: FrameReflectiveListener, Conversation: conv})
	require.NoError(t, err)
	assert.Equal(t, "It sounds heavy. What happened?", text)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, "gen-model", req.Model)
	assert.Equal(t, conv, req.Messages)
	assert.Equal(t, float32(0.7), req.Temperature)
	assert.Equal(t, int32(512), req.MaxTokens)
}

func TestLLMGeneratorErrors(t *testing.T) {
	gen := NewLLMGenerator(&stubLLMClient{err: errors.New("denied")}, nil, GeneratorConfig{}, nil)
	_, err := gen.Generate(context.Background(), GenerateRequest{Frame: FrameClarityCoach})
	require.Error(t, err)

	gen = NewLLMGenerator(&stubLLMClient{response: LLMResponse{Text: "  "}}, nil, GeneratorConfig{}, nil)
	_, err = gen.Generate(context.Background(), GenerateRequest{Frame: FrameClarityCoach})
	require.Error(t, err)

	gen = NewLLMGenerator(&stubLLMClient{}, nil, GeneratorConfig{}, nil)
	_, err = gen.Generate(context.Background(), GenerateRequest{Frame: Frame("unknown")})
	require.Error(t, err)
}
