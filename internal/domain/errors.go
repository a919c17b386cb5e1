package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live attempt exists for a key.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizUnavailable is returned by operations on an attempt whose topic has no questions.
	ErrQuizUnavailable = errors.New("no questions available for this topic")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option is not one of the question's options.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAttemptSubmitted rejects mutations on a frozen attempt.
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	// ErrQuestionUnanswered blocks advancing past an unanswered question.
	ErrQuestionUnanswered = errors.New("current question is not answered")
	// ErrAttemptIncomplete blocks submission until every question is answered.
	ErrAttemptIncomplete = errors.New("not all questions are answered")
	// ErrMalformedCheckpoint marks a stored checkpoint that cannot be decoded or applied.
	ErrMalformedCheckpoint = errors.New("malformed checkpoint")
	// ErrInvalidQuiz wraps authoring validation failures.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrUserNotFound is returned when a login lookup fails.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUser wraps registration validation failures.
	ErrInvalidUser = errors.New("invalid user")
)
