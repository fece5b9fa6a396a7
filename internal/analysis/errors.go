package analysis

import "errors"

var (
	// ErrInvalidFormat marks a transcript whose utterances are missing or
	// have the wrong shape. It aborts the whole analysis.
	ErrInvalidFormat = errors.New("invalid transcript format")
	// ErrUnknownCategory is returned for a category name outside the fixed set.
	ErrUnknownCategory = errors.New("unknown analysis category")
	// ErrMalformedTimestamps is returned by the duration pass only; the
	// assembler recovers from it by omitting meetingPerformance.
	ErrMalformedTimestamps = errors.New("malformed utterance timestamps")
)
