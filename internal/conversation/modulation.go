package conversation

import (
	"fmt"
	"strings"
)

// Modulation is an additive instruction tag applied to one generation attempt.
type Modulation string

const (
	ModAddValidationFirst    Modulation = "add_validation_first"
	ModIncreaseEmpathy       Modulation = "increase_empathy"
	ModIncreaseQuestions     Modulation = "increase_questions"
	ModReduceImperatives     Modulation = "reduce_imperatives"
	ModReduceOptimism        Modulation = "reduce_optimism"
	ModIncreaseRealism       Modulation = "increase_realism"
	ModReduceLength          Modulation = "reduce_length"
	ModFocusOnListening      Modulation = "focus_on_listening"
	ModDelaySolutions        Modulation = "delay_solutions"
	ModIncreaseDirectiveness Modulation = "increase_directiveness"
	ModProvideScaffolding    Modulation = "provide_scaffolding"
	ModSoftenLanguage        Modulation = "soften_language"
)

var modulationInstructions = map[Modulation]string{
	ModAddValidationFirst:    "Open by naming and validating what the user is feeling before anything else.",
	ModIncreaseEmpathy:       "Use warmer, more empathetic language that mirrors the user's emotional intensity.",
	ModIncreaseQuestions:     "Phrase most of the reply as open questions rather than statements.",
	ModReduceImperatives:     "Avoid telling the user what to do; no commands or \"you should\" phrasing.",
	ModReduceOptimism:        "Do not reframe the situation as positive or minimize the difficulty.",
	ModIncreaseRealism:       "Acknowledge that the situation is genuinely hard and stay grounded in what the user said.",
	ModReduceLength:          "Keep the reply to two or three short sentences.",
	ModFocusOnListening:      "Reflect back what you heard; do not introduce new ideas.",
	ModDelaySolutions:        "Do not offer suggestions or solutions in this reply.",
	ModIncreaseDirectiveness: "Offer one concrete, small option the user could consider, framed as a choice.",
	ModProvideScaffolding:    "Break the next step into a simple structure the user can react to, such as two options to choose between.",
	ModSoftenLanguage:        "Use tentative, gentle wording such as \"I wonder\" or \"it might be\".",
}

// ParseModulation maps a tag onto the closed vocabulary. Unknown tags are an error.
func ParseModulation(raw string) (Modulation, error) {
	mod := Modulation(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := modulationInstructions[mod]; !ok {
		return "", fmt.Errorf("conversation: unknown modulation %q", raw)
	}
	return mod, nil
}

// Instruction returns the prompt text for the modulation.
func (m Modulation) Instruction() string {
	return modulationInstructions[m]
}

// ModulationSet is an insertion-ordered set of modulations.
type ModulationSet []Modulation

// NewModulationSet builds a set from mods, dropping duplicates.
func NewModulationSet(mods ...Modulation) ModulationSet {
	return ModulationSet(nil).With(mods...)
}

// With returns a copy of s with mods appended when not already present.
func (s ModulationSet) With(mods ...Modulation) ModulationSet {
	out := make(ModulationSet, 0, len(s)+len(mods))
	out = append(out, s...)
	for _, mod := range mods {
		if !out.Has(mod) {
			out = append(out, mod)
		}
	}
	return out
}

// Union returns every modulation in s or other, keeping the order of s first.
func (s ModulationSet) Union(other ModulationSet) ModulationSet {
	return s.With(other...)
}

func (s ModulationSet) Has(mod Modulation) bool {
	for _, existing := range s {
		if existing == mod {
			return true
		}
	}
	return false
}

func (s ModulationSet) Strings() []string {
	out := make([]string, len(s))
	for i, mod := range s {
		out[i] = string(mod)
	}
	return out
}

// MetricModulations derives the modulations the conversation metrics call for,
// independent of any evaluation.
func MetricModulations(metrics MetricsSnapshot, frame Frame) ModulationSet {
	var set ModulationSet
	if metrics.NeedsScaffolding && frame == FrameClarityCoach {
		set = set.With(ModIncreaseDirectiveness, ModProvideScaffolding)
	}
	if metrics.UserPushback > pushbackThreshold {
		set = set.With(ModIncreaseQuestions, ModSoftenLanguage, ModReduceImperatives)
	}
	if metrics.QuestionRatio < 30 {
		set = set.With(ModIncreaseQuestions)
	}
	if metrics.SentimentAuthenticity < authenticityThreshold {
		set = set.With(ModIncreaseEmpathy, ModAddValidationFirst)
	}
	return set
}

// ModulationsFromIssues maps evaluator issues onto corrective modulations.
func ModulationsFromIssues(issues []Issue) ModulationSet {
	var set ModulationSet
	for _, issue := range issues {
		switch issue.Type {
		case IssueMissingValidation:
			set = set.With(ModAddValidationFirst, ModIncreaseEmpathy)
		case IssueTooDirective:
			set = set.With(ModIncreaseQuestions, ModReduceImperatives)
		case IssueToxicPositivity:
			set = set.With(ModReduceOptimism, ModIncreaseRealism)
		case IssueTooLong:
			set = set.With(ModReduceLength)
		case IssueUnsolicitedAdvice:
			set = set.With(ModFocusOnListening, ModDelaySolutions)
		}
	}
	return set
}
