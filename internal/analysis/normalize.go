package analysis

import (
	"fmt"
	"strings"
	"unicode"
)

// Normalize cleans every utterance text in place: characters other than
// ASCII letters, digits and whitespace are dropped, the rest is lowercased
// and trimmed. Speaker and timestamps are left untouched.
func Normalize(t *Transcript) error {
	if t == nil {
		return fmt.Errorf("%w: nil transcript", ErrInvalidFormat)
	}
	if t.Utterances == nil {
		return fmt.Errorf("%w: utterances missing", ErrInvalidFormat)
	}
	for i := range t.Utterances {
		t.Utterances[i].Text = NormalizeText(t.Utterances[i].Text)
	}
	return nil
}

// NormalizeText applies the per-utterance normalization rule to one string.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
