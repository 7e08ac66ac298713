package conversation

import (
	"regexp"
	"strings"
)

var sentenceTerminator = regexp.MustCompile(`[.!?]+`)

var toxicPositivityPhrases = []string{
	"just think positive",
	"look on the bright side",
	"it could be worse",
	"everything happens for a reason",
	"just be grateful",
	"don't worry",
	"stay positive",
	"good vibes only",
	"choose happiness",
	"just let it go",
	"don't be negative",
}

var apostropheReplacer = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// normalizeText lowercases text and folds typographic apostrophes so phrase
// lists written with ' match model output.
func normalizeText(text string) string {
	return strings.ToLower(apostropheReplacer.Replace(text))
}

func containsAny(normalized string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

type sentence struct {
	text     string
	question bool
}

// splitSentences splits on runs of . ! ? and drops blank pieces. A sentence is
// a question when its terminating run contains '?'.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	add := func(body, terminator string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		out = append(out, sentence{text: strings.TrimSpace(body), question: strings.Contains(terminator, "?")})
	}
	for _, loc := range sentenceTerminator.FindAllStringIndex(text, -1) {
		add(text[start:loc[0]], text[loc[0]:loc[1]])
		start = loc[1]
	}
	add(text[start:], "")
	return out
}

// CountSentences returns the number of non-blank sentences in text.
func CountSentences(text string) int {
	return len(splitSentences(text))
}

// QuestionRatio returns the fraction of sentences that are questions, in [0,1].
// Text without sentences yields 0.
func QuestionRatio(text string) float64 {
	questions, total := questionCounts(text)
	if total == 0 {
		return 0
	}
	return float64(questions) / float64(total)
}

func questionCounts(text string) (questions, total int) {
	for _, s := range splitSentences(text) {
		total++
		if s.question {
			questions++
		}
	}
	return questions, total
}

// MatchToxicPhrases returns every toxic-positivity phrase found in text, in
// dictionary order.
func MatchToxicPhrases(text string) []string {
	normalized := normalizeText(text)
	var hits []string
	for _, phrase := range toxicPositivityPhrases {
		if strings.Contains(normalized, phrase) {
			hits = append(hits, phrase)
		}
	}
	return hits
}
