package conversation

import "math"

const authenticityEMAWeight = 0.3

// MetricsMode selects how a turn's metrics are derived.
type MetricsMode string

const (
	// MetricsModeRecompute rebuilds the snapshot from the full history.
	MetricsModeRecompute MetricsMode = "recompute"
	// MetricsModeIncremental carries a MetricsState forward between turns.
	MetricsModeIncremental MetricsMode = "incremental"
)

// ParseMetricsMode defaults unknown values to recompute.
func ParseMetricsMode(raw string) MetricsMode {
	if MetricsMode(raw) == MetricsModeIncremental {
		return MetricsModeIncremental
	}
	return MetricsModeRecompute
}

type ValidationStats struct {
	TotalReframes     int `json:"totalReframes"`
	CompliantReframes int `json:"compliantReframes"`
}

type QuestionStats struct {
	TotalSentences int `json:"totalSentences"`
	QuestionCount  int `json:"questionCount"`
}

// MetricsState is the running state needed to update metrics one exchange at
// a time. Clients or the state store carry it between requests.
type MetricsState struct {
	SentimentAuthenticity float64         `json:"sentimentAuthenticity"`
	QuestionRatio         float64         `json:"questionRatio"`
	ValidationCompliance  float64         `json:"validationCompliance"`
	UserSolutionsCount    int             `json:"userSolutionsCount"`
	ExchangeCount         int             `json:"exchangeCount"`
	PushbackCount         int             `json:"pushbackCount"`
	RecentUserMessages    []string        `json:"recentUserMessages"`
	ValidationStats       ValidationStats `json:"validationStats"`
	QuestionStats         QuestionStats   `json:"questionStats"`
}

// NewMetricsState returns the state of an empty conversation.
func NewMetricsState() MetricsState {
	return MetricsState{
		SentimentAuthenticity: 50,
		QuestionRatio:         50,
		ValidationCompliance:  100,
	}
}

// SeedMetricsState starts a state from a client-held snapshot. Running counters
// are unknown, so ratios restart from the next exchange.
func SeedMetricsState(snapshot MetricsSnapshot) MetricsState {
	snapshot = snapshot.Normalize()
	return MetricsState{
		SentimentAuthenticity: float64(snapshot.SentimentAuthenticity),
		QuestionRatio:         float64(snapshot.QuestionRatio),
		ValidationCompliance:  float64(snapshot.ValidationCompliance),
		UserSolutionsCount:    snapshot.UserSolutionsCount,
		ExchangeCount:         snapshot.ExchangeCount,
		PushbackCount:         int(math.Round(float64(snapshot.UserPushback) / 100 * float64(snapshot.ExchangeCount))),
	}
}

// MetricsTracker updates metrics from new exchanges only.
type MetricsTracker struct {
	state MetricsState
}

// NewMetricsTracker resumes from state, or starts fresh when state is nil.
func NewMetricsTracker(state *MetricsState) *MetricsTracker {
	t := &MetricsTracker{state: NewMetricsState()}
	if state != nil {
		t.state = state.clone()
	}
	return t
}

// ReplayMetrics feeds every user turn of history, paired with the assistant
// reply that follows it, through a fresh tracker.
func ReplayMetrics(history []ChatMessage) *MetricsTracker {
	t := NewMetricsTracker(nil)
	for i, msg := range history {
		if msg.Role != ChatRoleUser {
			continue
		}
		reply := ""
		if i+1 < len(history) && history[i+1].Role == ChatRoleAssistant {
			reply = history[i+1].Content
		}
		t.Update(msg.Content, reply)
	}
	return t
}

// Update folds one user turn and its reply (which may be empty) into the state.
func (t *MetricsTracker) Update(userMessage, assistantMessage string) MetricsSnapshot {
	t.ObserveUser(userMessage)
	return t.ObserveReply(assistantMessage)
}

// ObserveUser folds a user turn before it is answered, so routing sees its
// pushback and authenticity.
func (t *MetricsTracker) ObserveUser(userMessage string) MetricsSnapshot {
	s := &t.state
	s.ExchangeCount++

	score := float64(TurnAuthenticity(userMessage))
	s.SentimentAuthenticity = s.SentimentAuthenticity*(1-authenticityEMAWeight) + score*authenticityEMAWeight
	s.RecentUserMessages = append(s.RecentUserMessages, userMessage)
	if len(s.RecentUserMessages) > authenticityWindow {
		s.RecentUserMessages = s.RecentUserMessages[len(s.RecentUserMessages)-authenticityWindow:]
	}

	if isPushback(userMessage) {
		s.PushbackCount++
	}
	if isSelfInsight(userMessage) {
		s.UserSolutionsCount++
	}
	return t.Snapshot()
}

// ObserveReply folds the assistant reply to the latest observed user turn.
// An empty reply leaves the state unchanged.
func (t *MetricsTracker) ObserveReply(assistantMessage string) MetricsSnapshot {
	if assistantMessage == "" {
		return t.Snapshot()
	}
	s := &t.state
	if advice, validated := classifyReframe(assistantMessage); advice {
		s.ValidationStats.TotalReframes++
		if validated {
			s.ValidationStats.CompliantReframes++
		}
	}
	if s.ValidationStats.TotalReframes > 0 {
		s.ValidationCompliance = float64(s.ValidationStats.CompliantReframes) / float64(s.ValidationStats.TotalReframes) * 100
	}

	questions, total := questionCounts(assistantMessage)
	s.QuestionStats.TotalSentences += total
	s.QuestionStats.QuestionCount += questions
	if s.QuestionStats.TotalSentences > 0 {
		s.QuestionRatio = float64(s.QuestionStats.QuestionCount) / float64(s.QuestionStats.TotalSentences) * 100
	}
	return t.Snapshot()
}

// CatchUp folds the user turns of history the state has not counted yet,
// each paired with the reply that follows it. A trailing user turn is the
// one being answered and is folded without a reply.
func (t *MetricsTracker) CatchUp(history []ChatMessage) MetricsSnapshot {
	seen := t.state.ExchangeCount
	ordinal := 0
	for i, msg := range history {
		if msg.Role != ChatRoleUser {
			continue
		}
		ordinal++
		if ordinal <= seen {
			continue
		}
		if i == len(history)-1 {
			t.ObserveUser(msg.Content)
			continue
		}
		reply := ""
		if history[i+1].Role == ChatRoleAssistant {
			reply = history[i+1].Content
		}
		t.Update(msg.Content, reply)
	}
	return t.Snapshot()
}

// Snapshot rounds the running state into a MetricsSnapshot.
func (t *MetricsTracker) Snapshot() MetricsSnapshot {
	s := t.state
	pushback := 0
	if s.ExchangeCount > 0 {
		pushback = roundPercent(float64(s.PushbackCount) / float64(s.ExchangeCount) * 100)
	}
	return MetricsSnapshot{
		SentimentAuthenticity: roundPercent(s.SentimentAuthenticity),
		QuestionRatio:         roundPercent(s.QuestionRatio),
		ValidationCompliance:  roundPercent(s.ValidationCompliance),
		UserPushback:          pushback,
		UserSolutionsCount:    s.UserSolutionsCount,
		ExchangeCount:         s.ExchangeCount,
		NeedsScaffolding:      needsScaffolding(s.UserSolutionsCount, s.ExchangeCount),
	}
}

// State returns a copy of the running state.
func (t *MetricsTracker) State() MetricsState {
	return t.state.clone()
}

func (s MetricsState) clone() MetricsState {
	out := s
	out.RecentUserMessages = append([]string(nil), s.RecentUserMessages...)
	return out
}
