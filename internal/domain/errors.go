package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrQuizNotActive is returned when answers arrive outside the Active state.
	ErrQuizNotActive = errors.New("quiz is not active")
	// ErrQuizSubmitted is returned for any mutation after the terminal state.
	ErrQuizSubmitted = errors.New("quiz already submitted")
	// ErrSubmitInFlight is returned when a submission attempt overlaps one
	// that is still outstanding.
	ErrSubmitInFlight = errors.New("quiz submission already in flight")
	// ErrFetchInFlight is returned when a feed request is dropped because
	// another fetch for the same feed is still outstanding.
	ErrFetchInFlight = errors.New("feed fetch already in flight")
)
