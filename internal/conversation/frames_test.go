package conversation

import (
	"strings"
	"testing"
)

func healthyMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		SentimentAuthenticity: 60,
		QuestionRatio:         50,
		ValidationCompliance:  100,
	}
}

func TestSelectFrameRules(t *testing.T) {
	cases := []struct {
		name     string
		analysis InputAnalysis
		mutate   func(*MetricsSnapshot)
		want     Frame
	}{
		{
			name:     "low validation compliance beats positive sentiment",
			analysis: InputAnalysis{Sentiment: 0.9, EmotionalState: "proud", Intent: "celebrating"},
			mutate:   func(m *MetricsSnapshot) { m.ValidationCompliance = 70 },
			want:     FrameReflectiveListener,
		},
		{
			name:     "pushback above threshold",
			analysis: InputAnalysis{Sentiment: 0.5, EmotionalState: "hopeful"},
			mutate:   func(m *MetricsSnapshot) { m.UserPushback = 6 },
			want:     FrameReflectiveListener,
		},
		{
			name:     "pushback at threshold does not override",
			analysis: InputAnalysis{Sentiment: 0.5, EmotionalState: "hopeful"},
			mutate:   func(m *MetricsSnapshot) { m.UserPushback = 5 },
			want:     FrameMomentumPartner,
		},
		{
			name:     "low authenticity",
			analysis: InputAnalysis{Intent: "seeking_advice"},
			mutate:   func(m *MetricsSnapshot) { m.SentimentAuthenticity = 39 },
			want:     FrameReflectiveListener,
		},
		{
			name:     "negative sentiment",
			analysis: InputAnalysis{Sentiment: -0.1, EmotionalState: "neutral"},
			want:     FrameReflectiveListener,
		},
		{
			name:     "distress state with neutral sentiment",
			analysis: InputAnalysis{EmotionalState: "Overwhelmed"},
			want:     FrameReflectiveListener,
		},
		{
			name:     "confused",
			analysis: InputAnalysis{Sentiment: 0.5, EmotionalState: "confused"},
			want:     FrameClarityCoach,
		},
		{
			name:     "seeking advice beats positive sentiment",
			analysis: InputAnalysis{Sentiment: 0.8, EmotionalState: "neutral", Intent: "seeking_advice"},
			want:     FrameClarityCoach,
		},
		{
			name:     "positive sentiment",
			analysis: InputAnalysis{Sentiment: 0.31, EmotionalState: "neutral"},
			want:     FrameMomentumPartner,
		},
		{
			name:     "celebrating intent",
			analysis: InputAnalysis{EmotionalState: "neutral", Intent: "celebrating"},
			want:     FrameMomentumPartner,
		},
		{
			name:     "default",
			analysis: NeutralAnalysis(),
			want:     FrameClarityCoach,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metrics := healthyMetrics()
			if tc.mutate != nil {
				tc.mutate(&metrics)
			}
			if got := SelectFrame(tc.analysis, metrics); got != tc.want {
				t.Fatalf("SelectFrame() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFrameReasonNamesTheTrigger(t *testing.T) {
	metrics := healthyMetrics()
	metrics.ValidationCompliance = 70
	reason := FrameReason(InputAnalysis{Sentiment: 0.9}, metrics)
	if !strings.Contains(reason, "70%") {
		t.Fatalf("expected compliance value in reason, got %q", reason)
	}

	reason = FrameReason(InputAnalysis{Sentiment: -0.8, EmotionalState: "sad"}, healthyMetrics())
	if reason != "Negative emotions detected: sad" {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestParseFrame(t *testing.T) {
	for _, frame := range Frames() {
		got, err := ParseFrame(" " + strings.ToUpper(string(frame)) + " ")
		if err != nil || got != frame {
			t.Fatalf("ParseFrame(%q) = %q, %v", frame, got, err)
		}
	}
	if _, err := ParseFrame("cheerleader"); err == nil {
		t.Fatalf("expected error for unknown frame")
	}
}
