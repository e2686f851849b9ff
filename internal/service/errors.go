package service

import "errors"

// Domain errors returned by the services. Handlers map them to HTTP responses.
var (
	ErrInvalidEventType  = errors.New("invalid event type")
	ErrMetadataTooLarge  = errors.New("metadata has too many fields")
	ErrEvidenceTooLarge  = errors.New("evidence image is too large")
	ErrNoActiveSession   = errors.New("no active exam session")
	ErrNoActiveAttempt   = errors.New("no active exam attempt found")
	ErrTimeLimitExceeded = errors.New("submission rejected: time limit exceeded")
	ErrExamNotFound      = errors.New("exam not found")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrNotExamOwner      = errors.New("not authorized to view this exam")
	ErrAttemptFinalized  = errors.New("attempt is already submitted")
)
