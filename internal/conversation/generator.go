package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/bme-companion/pkg/logging"
)

// GenerateRequest is one persona generation attempt.
type GenerateRequest struct {
	Frame             Frame
	Conversation      []ChatMessage
	Modulations       ModulationSet
	ReflectionSummary string
}

// Generator produces the assistant reply for a frame.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type GeneratorConfig struct {
	Model       string
	MaxTokens   int32
	Temperature float32
}

// LLMGenerator renders the persona prompt plus modulations and calls the model.
type LLMGenerator struct {
	client      LLMClient
	personas    PersonaLibrary
	model       string
	maxTokens   int32
	temperature float32
	logger      *logging.Logger
}

func NewLLMGenerator(client LLMClient, personas PersonaLibrary, cfg GeneratorConfig, logger *logging.Logger) *LLMGenerator {
	if client == nil {
		panic("conversation: generator llm client cannot be nil")
	}
	if personas == nil {
		personas = NewStaticPersonaLibrary(nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	return &LLMGenerator{
		client:      client,
		personas:    personas,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	system, err := BuildSystemPrompt(g.personas, req.Frame, req.Modulations, req.ReflectionSummary)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Complete(ctx, LLMRequest{
		Model:       g.model,
		System:      system,
		Messages:    req.Conversation,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.New("conversation: model returned an empty reply")
	}
	g.logger.Debug("reply generated",
		"frame", req.Frame,
		"modulations", req.Modulations.Strings(),
		"output_tokens", resp.Usage.OutputTokens,
	)
	return text, nil
}

// BuildSystemPrompt returns the system blocks for one attempt: the persona
// prompt, then the modulation instructions, then the reflection summary.
func BuildSystemPrompt(personas PersonaLibrary, frame Frame, mods ModulationSet, reflectionSummary string) ([]string, error) {
	base, err := personas.SystemPrompt(frame)
	if err != nil {
		return nil, err
	}
	blocks := []string{base}

	if len(mods) > 0 {
		var b strings.Builder
		b.WriteString("ADJUSTMENTS FOR THIS REPLY:\n")
		for _, mod := range mods {
			instruction := mod.Instruction()
			if instruction == "" {
				return nil, fmt.Errorf("conversation: modulation %q has no instruction", mod)
			}
			b.WriteString("- ")
			b.WriteString(instruction)
			b.WriteString("\n")
		}
		blocks = append(blocks, strings.TrimSpace(b.String()))
	}

	if summary := strings.TrimSpace(reflectionSummary); summary != "" {
		blocks = append(blocks, "WHAT THE USER HAS SHARED IN THEIR REFLECTIONS:\n"+summary+
			"\nUse this only when it is relevant to what they are saying now.")
	}
	return blocks, nil
}
