package conversation

import "strings"

// stripCodeFence removes a surrounding markdown code fence, which models add
// even when asked for bare JSON.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractJSONObject returns the outermost {...} span of text, or text itself
// when no object is found.
func extractJSONObject(text string) string {
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func sanitizeModelJSON(raw string) string {
	return strings.TrimSpace(extractJSONObject(stripCodeFence(raw)))
}
