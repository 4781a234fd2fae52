package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted after a message has been persisted.
type MessageSentEvent struct {
	MessageID   uint      `json:"message_id"`
	RoomID      string    `json:"room_id"`
	SenderEmail string    `json:"sender_email"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// RoomCreatedEvent is emitted when get-or-create inserts a new room.
type RoomCreatedEvent struct {
	RoomID           string    `json:"room_id"`
	ShopUserEmail    string    `json:"shop_user_email"`
	VisitorUserEmail string    `json:"visitor_user_email"`
	Timestamp        time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"chat",
		"RoomCreated",
		"v1",
	)
)
