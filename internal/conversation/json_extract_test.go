package conversation

import "testing"

func TestSanitizeModelJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                       `{"a":1}`,
		"```json\n{\"a\":1}\n```":       `{"a":1}`,
		"```\n{\"a\":1}\n```":           `{"a":1}`,
		`Here you go: {"a":1} thanks`:   `{"a":1}`,
		`{"a":{"b":2}} trailing`:        `{"a":{"b":2}}`,
		"no json here":                  "no json here",
		"   ":                           "",
	}
	for raw, want := range cases {
		if got := sanitizeModelJSON(raw); got != want {
			t.Fatalf("sanitizeModelJSON(%q) = %q, want %q", raw, got, want)
		}
	}
}
