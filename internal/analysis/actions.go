package analysis

import "strings"

var actionPhrases = []string{"should", "need to"}

// IsActionItem reports whether the (already lowercased) text reads like an
// action item.
func IsActionItem(text string) bool {
	for _, phrase := range actionPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// ActionItems collects matching utterance texts verbatim, in order.
func ActionItems(utts []Utterance) []string {
	items := make([]string, 0)
	for _, u := range utts {
		if IsActionItem(u.Text) {
			items = append(items, u.Text)
		}
	}
	return items
}
