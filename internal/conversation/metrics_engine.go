package conversation

import (
	"math"
	"strings"
)

// MetricsSnapshot is the conversation health summary that gates routing.
// Percentages are integers in [0,100].
type MetricsSnapshot struct {
	SentimentAuthenticity int  `json:"sentimentAuthenticity"`
	QuestionRatio         int  `json:"questionRatio"`
	ValidationCompliance  int  `json:"validationCompliance"`
	UserPushback          int  `json:"userPushback"`
	UserSolutionsCount    int  `json:"userSolutionsCount"`
	ExchangeCount         int  `json:"exchangeCount"`
	NeedsScaffolding      bool `json:"needsScaffolding"`
}

const (
	authenticityWindow     = 5
	validationPrefixRunes  = 100
	scaffoldingExchangeMin = 10
	shortTurnWords         = 5
)

var (
	emotionWords = []string{
		"frustrated", "overwhelmed", "anxious", "excited", "grateful",
		"confused", "worried", "hopeful", "scared", "proud", "disappointed",
		"angry", "sad", "happy", "stressed", "relieved",
	}
	vulnerabilityPhrases = []string{
		"i feel", "i'm feeling", "i've been", "i don't know",
		"i'm not sure", "i'm struggling", "it's hard", "i can't",
	}
	performativePhrases = []string{
		"i'm fine", "everything's fine", "it's all good",
		"no worries", "i'm okay", "it's whatever",
	}
	adviceIndicators = []string{
		"try", "could", "might", "consider", "what if", "maybe",
		"have you thought", "one way", "instead", "perhaps",
	}
	validationIndicators = []string{
		"that makes sense", "i hear", "it sounds like", "that's",
		"i understand", "it's understandable", "that must",
		"i can see", "feeling", "makes sense that",
	}
	pushbackIndicators = []string{
		"but ", "i can't", "that won't work", "you don't understand",
		"i tried that", "that's not", "no,", "yeah but", "i know but",
		"it's not that simple", "easier said than done", "that doesn't help",
	}
	selfInsightPhrases = []string{
		"i think i'll", "i could", "maybe i", "i should", "i'll try",
		"i'm going to", "i want to", "i need to", "what if i",
		"i realized", "i noticed", "i learned", "makes me think",
	}
)

// EmptyMetrics is the snapshot of a conversation with no turns.
func EmptyMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		SentimentAuthenticity: 50,
		QuestionRatio:         50,
		ValidationCompliance:  100,
	}
}

// Normalize clamps percentages and re-derives NeedsScaffolding, for snapshots
// that arrive from clients.
func (m MetricsSnapshot) Normalize() MetricsSnapshot {
	m.SentimentAuthenticity = clampPercent(m.SentimentAuthenticity)
	m.QuestionRatio = clampPercent(m.QuestionRatio)
	m.ValidationCompliance = clampPercent(m.ValidationCompliance)
	m.UserPushback = clampPercent(m.UserPushback)
	if m.UserSolutionsCount < 0 {
		m.UserSolutionsCount = 0
	}
	if m.ExchangeCount < 0 {
		m.ExchangeCount = 0
	}
	m.NeedsScaffolding = needsScaffolding(m.UserSolutionsCount, m.ExchangeCount)
	return m
}

// ComputeMetrics recomputes the snapshot from the full history.
func ComputeMetrics(conversation []ChatMessage) MetricsSnapshot {
	if len(conversation) == 0 {
		return EmptyMetrics()
	}

	var userTurns []string
	for _, msg := range conversation {
		if msg.Role == ChatRoleUser {
			userTurns = append(userTurns, msg.Content)
		}
	}

	exchanges := len(conversation) / 2
	solutions := countUserSolutions(userTurns)
	return MetricsSnapshot{
		SentimentAuthenticity: sentimentAuthenticity(userTurns),
		QuestionRatio:         aggregateQuestionRatio(conversation),
		ValidationCompliance:  validationCompliance(conversation),
		UserPushback:          userPushback(userTurns),
		UserSolutionsCount:    solutions,
		ExchangeCount:         exchanges,
		NeedsScaffolding:      needsScaffolding(solutions, exchanges),
	}
}

// TurnAuthenticity scores how genuine one user turn reads, in [0,100].
func TurnAuthenticity(text string) int {
	normalized := normalizeText(text)
	polarity := SentimentPolarity(text)

	score := 50
	if containsAny(normalized, emotionWords) {
		score += 20
	}
	if containsAny(normalized, vulnerabilityPhrases) {
		score += 15
	}
	if containsAny(normalized, performativePhrases) && polarity >= 0 {
		score -= 25
	}
	if len(strings.Fields(text)) < shortTurnWords {
		score -= 10
	}
	if polarity > 2 || polarity < -2 {
		score += 10
	}
	return clampPercent(score)
}

func sentimentAuthenticity(userTurns []string) int {
	if len(userTurns) == 0 {
		return 50
	}
	recent := userTurns
	if len(recent) > authenticityWindow {
		recent = recent[len(recent)-authenticityWindow:]
	}
	total := 0
	for _, turn := range recent {
		total += TurnAuthenticity(turn)
	}
	return roundPercent(float64(total) / float64(len(recent)))
}

func aggregateQuestionRatio(conversation []ChatMessage) int {
	questions, total := 0, 0
	for _, msg := range conversation {
		if msg.Role != ChatRoleAssistant {
			continue
		}
		q, n := questionCounts(msg.Content)
		questions += q
		total += n
	}
	if total == 0 {
		return 50
	}
	return roundPercent(float64(questions) / float64(total) * 100)
}

// validationCompliance looks at every user turn answered by the assistant and,
// among replies carrying advice, counts those that open with validation.
func validationCompliance(conversation []ChatMessage) int {
	reframes, compliant := 0, 0
	for i := 1; i < len(conversation); i++ {
		if conversation[i].Role != ChatRoleAssistant || conversation[i-1].Role != ChatRoleUser {
			continue
		}
		advice, validated := classifyReframe(conversation[i].Content)
		if !advice {
			continue
		}
		reframes++
		if validated {
			compliant++
		}
	}
	if reframes == 0 {
		return 100
	}
	return roundPercent(float64(compliant) / float64(reframes) * 100)
}

// classifyReframe reports whether a reply carries advice and, if so, whether
// a validation phrase appears within its opening characters.
func classifyReframe(reply string) (advice, validatedFirst bool) {
	normalized := normalizeText(reply)
	if !containsAny(normalized, adviceIndicators) {
		return false, false
	}
	opening := []rune(normalized)
	if len(opening) > validationPrefixRunes {
		opening = opening[:validationPrefixRunes]
	}
	return true, containsAny(string(opening), validationIndicators)
}

func userPushback(userTurns []string) int {
	if len(userTurns) == 0 {
		return 0
	}
	count := 0
	for _, turn := range userTurns {
		if isPushback(turn) {
			count++
		}
	}
	return roundPercent(float64(count) / float64(len(userTurns)) * 100)
}

func isPushback(turn string) bool {
	return containsAny(normalizeText(turn), pushbackIndicators)
}

func isSelfInsight(turn string) bool {
	return containsAny(normalizeText(turn), selfInsightPhrases)
}

func countUserSolutions(userTurns []string) int {
	count := 0
	for _, turn := range userTurns {
		if isSelfInsight(turn) {
			count++
		}
	}
	return count
}

func needsScaffolding(solutions, exchanges int) bool {
	return solutions == 0 && exchanges >= scaffoldingExchangeMin
}

func roundPercent(v float64) int {
	return clampPercent(int(math.Round(v)))
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
