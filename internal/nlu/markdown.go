package nlu

import (
	"regexp"
	"strings"
)

var markdownRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},
	{regexp.MustCompile(`__([^_]+)__`), "$1"},
	{regexp.MustCompile(`_([^_]+)_`), "$1"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`(?m)^#{1,6}\s*`), ""},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// CleanMarkdown renders model output as plain text that reads well on every
// channel. List structure is kept.
func CleanMarkdown(text string) string {
	for _, rule := range markdownRules {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}
	return strings.TrimSpace(text)
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// stripCodeFence extracts the JSON object from a reply that wraps it in a
// markdown code block.
func stripCodeFence(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.Contains(text, "```") {
		parts := strings.Split(text, "```")
		if len(parts) >= 3 {
			inner := strings.TrimSpace(parts[1])
			return strings.TrimSpace(strings.TrimPrefix(inner, "json"))
		}
	}
	return strings.TrimSpace(text)
}
