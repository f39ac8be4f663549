package prompt

import "strings"

var classifierKeywords = []struct {
	qtype    QuestionType
	keywords []string
}{
	{TypeFactual, []string{"what", "who", "when", "where", "which", "how many", "how much"}},
	{TypeOpinion, []string{"think", "opinion", "feel", "believe", "should", "better", "best", "prefer"}},
	{TypeInstruction, []string{"how to", "how do", "how can", "steps", "explain", "guide", "teach me", "show me"}},
}

// Classify returns the first category whose keywords occur in the question,
// matched case-insensitively as substrings.
func Classify(question string) QuestionType {
	q := strings.ToLower(question)
	for _, c := range classifierKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				return c.qtype
			}
		}
	}
	return TypeNone
}
