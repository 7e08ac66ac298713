package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModulationsFromIssuesDeduplicates(t *testing.T) {
	issues := []Issue{
		{Type: IssueMissingValidation, Severity: SeverityHigh},
		{Type: IssueTooDirective, Severity: SeverityMedium},
		{Type: IssueMissingValidation, Severity: SeverityHigh},
		{Type: IssueTooLong, Severity: SeverityLow},
	}
	got := ModulationsFromIssues(issues)
	assert.Equal(t, ModulationSet{
		ModAddValidationFirst,
		ModIncreaseEmpathy,
		ModIncreaseQuestions,
		ModReduceImperatives,
		ModReduceLength,
	}, got)
}

func TestModulationsFromIssuesIsIdempotent(t *testing.T) {
	issues := []Issue{
		{Type: IssueToxicPositivity, Severity: SeverityHigh},
		{Type: IssueUnsolicitedAdvice, Severity: SeverityMedium},
	}
	once := ModulationsFromIssues(issues)
	twice := once.Union(ModulationsFromIssues(issues))
	assert.Equal(t, once, twice)
	assert.Equal(t, once, NewModulationSet(once...))
}

func TestModulationsFromNoIssues(t *testing.T) {
	assert.Empty(t, ModulationsFromIssues(nil))
}

func TestMetricModulations(t *testing.T) {
	metrics := MetricsSnapshot{
		SentimentAuthenticity: 30,
		QuestionRatio:         20,
		ValidationCompliance:  100,
		UserPushback:          10,
		ExchangeCount:         12,
		NeedsScaffolding:      true,
	}
	got := MetricModulations(metrics, FrameClarityCoach)
	assert.Equal(t, ModulationSet{
		ModIncreaseDirectiveness,
		ModProvideScaffolding,
		ModIncreaseQuestions,
		ModSoftenLanguage,
		ModReduceImperatives,
		ModIncreaseEmpathy,
		ModAddValidationFirst,
	}, got)

	// Scaffolding only applies to the clarity coach.
	got = MetricModulations(metrics, FrameReflectiveListener)
	assert.False(t, got.Has(ModProvideScaffolding))
}

func TestMetricModulationsHealthyConversation(t *testing.T) {
	assert.Empty(t, MetricModulations(EmptyMetrics(), FrameClarityCoach))
}

func TestParseModulation(t *testing.T) {
	mod, err := ParseModulation(" Reduce_Length ")
	require.NoError(t, err)
	assert.Equal(t, ModReduceLength, mod)

	_, err = ParseModulation("be_nicer")
	require.Error(t, err)
}

func TestEveryModulationHasInstruction(t *testing.T) {
	for mod := range modulationInstructions {
		assert.NotEmpty(t, mod.Instruction(), string(mod))
	}
}
