package chat

import "errors"

// Errors shared by the chat services, the session and the REST handlers.
// Their messages are the text clients see in error frames.
var (
	ErrRoomNotFound        = errors.New("room does not exist")
	ErrMissingParticipants = errors.New("user and visitor email are required")
	ErrMissingContent      = errors.New("user and message text are required")
	ErrMessagesNotFound    = errors.New("room_id is invalid")
	ErrPersistence         = errors.New("failed to save message")
	ErrDeliveryFailure     = errors.New("failed to send message")
	ErrInvalidFrame        = errors.New("invalid message format")
	ErrUnavailable         = errors.New("chat is shutting down")
)

// Error codes carried in service responses.
const (
	CodeRoomNotFound        = "room_not_found"
	CodeMissingParticipants = "missing_participants"
	CodeMissingContent      = "missing_content"
	CodeMessagesNotFound    = "messages_not_found"
	CodePersistence         = "persistence"
)

var codeToErr = map[string]error{
	CodeRoomNotFound:        ErrRoomNotFound,
	CodeMissingParticipants: ErrMissingParticipants,
	CodeMissingContent:      ErrMissingContent,
	CodeMessagesNotFound:    ErrMessagesNotFound,
	CodePersistence:         ErrPersistence,
}

// CodeOf returns the response code for a known error, or "" when err is
// nil or not one of the shared errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	for code, target := range codeToErr {
		if errors.Is(err, target) {
			return code
		}
	}
	return ""
}

// ErrFromCode maps a response code back to its error. Unknown codes yield nil.
func ErrFromCode(code string) error {
	return codeToErr[code]
}

// IsValidation reports whether err is a recoverable input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingParticipants) || errors.Is(err, ErrMissingContent)
}
