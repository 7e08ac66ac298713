package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHistory is returned when a turn request carries no usable history.
	ErrInvalidHistory = errors.New("conversation: invalid history")
	// ErrClassification marks a failed turn classification. Callers never see it;
	// neutral defaults are substituted.
	ErrClassification = errors.New("conversation: classification failed")
	// ErrSemanticCheck marks a failed semantic quality check.
	ErrSemanticCheck = errors.New("conversation: semantic check failed")
	// ErrMalformedCheckerOutput marks checker output that could not be parsed.
	// It is handled exactly like ErrSemanticCheck.
	ErrMalformedCheckerOutput = errors.New("conversation: malformed checker output")
	// ErrSummarization marks a failed reflection summary refresh.
	ErrSummarization = errors.New("conversation: reflection summarization failed")
)

// GenerationError reports that no reply text could be produced. It is the only
// collaborator failure that fails a turn.
type GenerationError struct {
	Frame   Frame
	Attempt int
	Err     error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("conversation: generation failed (frame=%s attempt=%d): %v", e.Frame, e.Attempt, e.Err)
}

func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsGenerationError reports whether err carries a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}
