package domain

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrAccountExists        = errors.New("username or email already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrAuthService          = errors.New("auth service error")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrProgressUpdateFailed = errors.New("failed to update lesson progress")
	ErrNoActiveExercise     = errors.New("no active exercise")
	ErrInvalidLessonData    = errors.New("invalid lesson data received")
	ErrNotFound             = errors.New("not found")
)
