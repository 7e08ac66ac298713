package conversation

import (
	"fmt"
	"strings"
)

// Frame identifies the persona that answers a turn.
type Frame string

const (
	FrameReflectiveListener Frame = "reflective-listener"
	FrameClarityCoach       Frame = "clarity-coach"
	FrameMomentumPartner    Frame = "momentum-partner"
)

// Metric thresholds that override single-turn sentiment routing.
const (
	validationComplianceThreshold = 80
	pushbackThreshold             = 5
	authenticityThreshold         = 40
	positiveSentimentThreshold    = 0.3
)

var (
	distressStates = map[string]bool{
		"frustrated": true, "overwhelmed": true, "anxious": true, "sad": true, "angry": true,
	}
	uncertainStates = map[string]bool{
		"confused": true, "ambivalent": true, "uncertain": true,
	}
	positiveStates = map[string]bool{
		"positive": true, "hopeful": true, "motivated": true, "proud": true,
	}
)

const (
	intentSeekingAdvice = "seeking_advice"
	intentCelebrating   = "celebrating"
)

// Frames lists every frame in routing priority order.
func Frames() []Frame {
	return []Frame{FrameReflectiveListener, FrameClarityCoach, FrameMomentumPartner}
}

// ParseFrame normalizes a frame identifier.
func ParseFrame(raw string) (Frame, error) {
	frame := Frame(strings.ToLower(strings.TrimSpace(raw)))
	switch frame {
	case FrameReflectiveListener, FrameClarityCoach, FrameMomentumPartner:
		return frame, nil
	default:
		return "", fmt.Errorf("conversation: unknown frame %q", raw)
	}
}

// SelectFrame picks the persona for a turn. Metric overrides are checked
// before the turn's own sentiment; the first matching rule wins.
func SelectFrame(analysis InputAnalysis, metrics MetricsSnapshot) Frame {
	frame, _ := route(analysis, metrics)
	return frame
}

// FrameReason explains why SelectFrame chose its frame.
func FrameReason(analysis InputAnalysis, metrics MetricsSnapshot) string {
	_, reason := route(analysis, metrics)
	return reason
}

func route(analysis InputAnalysis, metrics MetricsSnapshot) (Frame, string) {
	state := strings.ToLower(strings.TrimSpace(analysis.EmotionalState))
	intent := strings.ToLower(strings.TrimSpace(analysis.Intent))

	switch {
	case metrics.ValidationCompliance < validationComplianceThreshold:
		return FrameReflectiveListener, fmt.Sprintf("Low validation compliance (%d%%): prioritizing validation", metrics.ValidationCompliance)
	case metrics.UserPushback > pushbackThreshold:
		return FrameReflectiveListener, fmt.Sprintf("User pushback detected (%d%%): returning to listening", metrics.UserPushback)
	case metrics.SentimentAuthenticity < authenticityThreshold:
		return FrameReflectiveListener, fmt.Sprintf("Low sentiment authenticity (%d): building safety", metrics.SentimentAuthenticity)
	case analysis.Sentiment < 0 || distressStates[state]:
		return FrameReflectiveListener, "Negative emotions detected: " + displayState(state)
	case uncertainStates[state] || intent == intentSeekingAdvice:
		return FrameClarityCoach, "User needs clarity: " + displayState(state)
	case analysis.Sentiment > positiveSentimentThreshold || positiveStates[state] || intent == intentCelebrating:
		return FrameMomentumPartner, "Positive state: " + displayState(state)
	default:
		return FrameClarityCoach, "Default routing: " + displayState(state)
	}
}

func displayState(state string) string {
	if state == "" {
		return "unspecified"
	}
	return state
}
