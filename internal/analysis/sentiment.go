package analysis

import (
	"strings"
)

// SentimentClassifier labels text by plain substring keyword matches.
type SentimentClassifier struct {
	positiveKeywords []string
	negativeKeywords []string
}

// NewSentimentClassifier creates a classifier with the default vocabulary
func NewSentimentClassifier() *SentimentClassifier {
	return &SentimentClassifier{
		positiveKeywords: []string{"good", "great"},
		negativeKeywords: []string{"bad", "poor"},
	}
}

var defaultSentimentClassifier = NewSentimentClassifier()

// Classify checks the positive keywords first and the negative keywords
// second; a negative match overwrites a positive one.
func (sc *SentimentClassifier) Classify(text string) Sentiment {
	label := SentimentNeutral

	if containsAny(text, sc.positiveKeywords) {
		label = SentimentPositive
	}
	if containsAny(text, sc.negativeKeywords) {
		label = SentimentNegative
	}

	return label
}

// ClassifySentiment classifies text with the default vocabulary.
func ClassifySentiment(text string) Sentiment {
	return defaultSentimentClassifier.Classify(text)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
