package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotExamOwner    ErrCode = "NOT_EXAM_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrExamNotFound    ErrCode = "EXAM_NOT_FOUND"
	ErrAttemptNotFound ErrCode = "ATTEMPT_NOT_FOUND"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrNoActiveAttempt   ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrTimeLimitExceeded ErrCode = "TIME_LIMIT_EXCEEDED"
	ErrAttemptFinalized  ErrCode = "ATTEMPT_FINALIZED"

	// ─── Proctoring ────────────────────────────────────────────────────
	ErrInvalidEventType ErrCode = "INVALID_EVENT_TYPE"
	ErrNoActiveSession  ErrCode = "NO_ACTIVE_SESSION"
	ErrMetadataTooLarge ErrCode = "METADATA_TOO_LARGE"
	ErrEvidenceTooLarge ErrCode = "EVIDENCE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrNotExamOwner:
		return "Only the creator of this exam can access it."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrExamNotFound:
		return "Exam not found."
	case ErrAttemptNotFound:
		return "Attempt not found."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrNoActiveAttempt:
		return "No active exam attempt found."
	case ErrTimeLimitExceeded:
		return "Submission rejected: time limit exceeded."
	case ErrAttemptFinalized:
		return "This attempt has already been submitted."

	// ─── Proctoring ────────────────────────────────────────────────────
	case ErrInvalidEventType:
		return "Invalid proctoring event type."
	case ErrNoActiveSession:
		return "No active exam session."
	case ErrMetadataTooLarge:
		return "Event metadata has too many fields."
	case ErrEvidenceTooLarge:
		return "Evidence image exceeds the size limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
