package chat

import (
	"errors"

	domain "github.com/example/shop-chat/domain/chat"
)

// Service names registered by the chat module. The framework prefixes them
// with "services.chat.".
const (
	ServiceGetOrCreateRoom = "get-or-create-room"
	ServiceRoomExists      = "room-exists"
	ServiceSaveMessage     = "save-message"
	ServiceLatestMessage   = "latest-message"
	ServiceListMessages    = "list-messages"
	ServiceListRooms       = "list-rooms"
)

// Status carries a domain error across the service boundary.
type Status struct {
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Err converts the status back into an error. Known codes map to the
// shared sentinel errors so callers can use errors.Is.
func (s Status) Err() error {
	if s.Code == "" {
		return nil
	}
	if err := domain.ErrFromCode(s.Code); err != nil {
		return err
	}
	return errors.New(s.Detail)
}

// statusOf splits err into a reply status for known domain errors and a
// plain error for everything else.
func statusOf(err error) (Status, error) {
	if code := domain.CodeOf(err); code != "" {
		return Status{Code: code, Detail: err.Error()}, nil
	}
	return Status{}, err
}

// GetOrCreateRoomRequest resolves a room for a participant pair.
type GetOrCreateRoomRequest struct {
	ShopUserEmail    string `json:"shop_user_email"`
	VisitorUserEmail string `json:"visitor_user_email"`
}

// GetOrCreateRoomResponse is the tagged room result.
type GetOrCreateRoomResponse struct {
	Status
	Result domain.RoomResult `json:"result"`
}

// RoomExistsRequest checks a room id.
type RoomExistsRequest struct {
	RoomID string `json:"room_id"`
}

// RoomExistsResponse reports whether the room is stored.
type RoomExistsResponse struct {
	Status
	Exists bool `json:"exists"`
}

// SaveMessageRequest appends a message to a room.
type SaveMessageRequest struct {
	RoomID      string `json:"room_id"`
	SenderEmail string `json:"sender_email"`
	Text        string `json:"text"`
}

// SaveMessageResponse returns the stored message.
type SaveMessageResponse struct {
	Status
	Message *domain.Message `json:"message,omitempty"`
}

// LatestMessageRequest asks for the newest message of a room.
type LatestMessageRequest struct {
	RoomID string `json:"room_id"`
}

// LatestMessageResponse holds the newest message, if any.
type LatestMessageResponse struct {
	Status
	Found   bool            `json:"found"`
	Message *domain.Message `json:"message,omitempty"`
}

// ListMessagesRequest asks for the history of a room.
type ListMessagesRequest struct {
	RoomID string `json:"room_id"`
}

// ListMessagesResponse holds the ordered history.
type ListMessagesResponse struct {
	Status
	Messages []domain.Message `json:"messages"`
}

// ListRoomsRequest asks for every room an email participates in.
type ListRoomsRequest struct {
	Email string `json:"email"`
}

// ListRoomsResponse holds the rooms with their history.
type ListRoomsResponse struct {
	Status
	Rooms []domain.RoomDetail `json:"rooms"`
}
