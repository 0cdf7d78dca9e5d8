package learning

import (
	"errors"

	"github.com/Soochol/superclaude-auto-flags/internal/rules"
	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

var (
	// ErrUnknownCategory is returned when the category is not in the rule table.
	ErrUnknownCategory = rules.ErrUnknownCategory

	// ErrStorageUnavailable is returned when the learning store cannot be used.
	ErrStorageUnavailable = storage.ErrUnavailable

	// ErrInvalidFeedback is the parent of every feedback rejection.
	ErrInvalidFeedback = errors.New("invalid feedback")

	// ErrUnknownInteraction is returned for a feedback id that does not exist.
	ErrUnknownInteraction = errors.New("unknown interaction")

	// ErrDuplicateFeedback is returned when feedback was already applied.
	ErrDuplicateFeedback = errors.New("feedback already submitted")

	// ErrRatingOutOfRange is returned for a rating outside 1..5.
	ErrRatingOutOfRange = errors.New("rating must be between 1 and 5")
)

// FeedbackError wraps a specific rejection so both it and
// ErrInvalidFeedback match with errors.Is.
type FeedbackError struct {
	InteractionID int64
	Err           error
}

func (e *FeedbackError) Error() string {
	return "invalid feedback: " + e.Err.Error()
}

func (e *FeedbackError) Unwrap() []error {
	return []error{ErrInvalidFeedback, e.Err}
}

func invalidFeedback(id int64, err error) error {
	return &FeedbackError{InteractionID: id, Err: err}
}
