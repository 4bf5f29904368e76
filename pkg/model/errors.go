package model

// ErrorKind distinguishes user-correctable rejections from internal
// failures when surfacing errors to clients.
type ErrorKind string

const (
	ErrKindInvalidBoostValue    ErrorKind = "invalidBoostValue"
	ErrKindCardNotAvailable     ErrorKind = "cardNotAvailable"
	ErrKindDuplicateSubmission  ErrorKind = "duplicateSubmission"
	ErrKindParticipantNotActive ErrorKind = "participantNotActive"
	ErrKindCarValidationFailed  ErrorKind = "carValidationFailed"
	ErrKindLapTimeout           ErrorKind = "lapTimeout"
	ErrKindInternal             ErrorKind = "internal"
)

// ErrorPayload is the semantic error shape for boost-related
// rejections. The hand context lets the caller retry correctly.
type ErrorPayload struct {
	Kind           ErrorKind `json:"errorKind"`
	Message        string    `json:"message"`
	AvailableCards []int     `json:"availableCards,omitempty"`
	CurrentCycle   int       `json:"currentCycle,omitempty"`
	CardsRemaining int       `json:"cardsRemaining,omitempty"`
}
