package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for unknown, expired or foreign sessions.
	ErrSessionNotFound = errors.New("quiz session not found or unauthorized")
	// ErrSessionExists is returned when a session id is already in use.
	ErrSessionExists = errors.New("quiz session already exists")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrResultNotFound indicates a quiz result is unknown or belongs to someone else.
	ErrResultNotFound = errors.New("quiz result not found")
	// ErrResultExists is returned when a session already has a saved result.
	ErrResultExists = errors.New("quiz result already saved for session")
	// ErrNoQuestionsAvailable is returned when a quiz cannot be started for the criteria.
	ErrNoQuestionsAvailable = errors.New("no questions available for the selected criteria")
	// ErrUnexpectedQuestion is returned when the answer is not for the question last issued.
	ErrUnexpectedQuestion = errors.New("answer does not match the current question")
	// ErrQuestionAlreadyAnswered is returned for duplicate submissions.
	ErrQuestionAlreadyAnswered = errors.New("question already answered")
	// ErrInvalidToken is returned when a bearer token cannot be verified.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Kind tags an error for callers that need to branch on the failure class.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindNoQuestions  Kind = "no_questions_available"
	KindStore        Kind = "store"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StoreError wraps a failed call to an external collaborator.
type StoreError struct {
	Op  string
	Err error
	// Result is set when a quiz was finalized but the result could not be saved.
	Result *QuizResult
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// StoreFailure wraps err as a StoreError unless it already carries a kind
// of its own (not found, validation) that the caller should see instead.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	switch KindOf(err) {
	case KindInternal:
		return &StoreError{Op: op, Err: err}
	default:
		return err
	}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	var validation *ValidationError
	var store *StoreError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation),
		errors.Is(err, ErrUnexpectedQuestion),
		errors.Is(err, ErrQuestionAlreadyAnswered):
		return KindValidation
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrResultNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoQuestionsAvailable):
		return KindNoQuestions
	case errors.Is(err, ErrInvalidToken):
		return KindUnauthorized
	case errors.As(err, &store):
		return KindStore
	default:
		return KindInternal
	}
}
