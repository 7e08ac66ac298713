package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestionRatio(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"", 0},
		{"   ", 0},
		{"...!?", 0},
		{"How are you?", 1},
		{"That sounds hard. What happened?", 0.5},
		{"I hear you. That makes sense. What stood out?", 1.0 / 3},
		{"Really?! Wow.", 0.5},
		{"No terminator at all", 0},
	}
	for _, tc := range cases {
		got := QuestionRatio(tc.text)
		assert.InDelta(t, tc.want, got, 1e-9, tc.text)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestCountSentences(t *testing.T) {
	assert.Equal(t, 0, CountSentences(""))
	assert.Equal(t, 2, CountSentences("It could be worse. Stay positive!"))
	assert.Equal(t, 3, CountSentences("One... two!! three"))
	assert.Equal(t, 7, CountSentences(strings.Repeat("Short one. ", 7)))
}

func TestMatchToxicPhrases(t *testing.T) {
	assert.Equal(t, []string{"it could be worse", "stay positive"}, MatchToxicPhrases("It could be worse. Stay positive!"))
	assert.Equal(t, []string{"don't worry"}, MatchToxicPhrases("Don’t worry about it."))
	assert.Empty(t, MatchToxicPhrases("That sounds really heavy. What stood out to you?"))
}
