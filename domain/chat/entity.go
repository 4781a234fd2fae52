package chat

import (
	"strings"
	"time"
)

// NormalizeEmail is the canonical form participants are stored and looked
// up by.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Room is a conversation between one shop user and one visitor.
type Room struct {
	ID               string    `json:"id"`
	ShopUserEmail    string    `json:"shop_user_email"`
	VisitorUserEmail string    `json:"visitor_user_email"`
	CreatedAt        time.Time `json:"created_at"`
}

// OpponentEmail returns the other participant as seen from email.
// Anyone who is not the shop user is answered with the shop user.
func (r *Room) OpponentEmail(email string) string {
	if email == r.ShopUserEmail {
		return r.VisitorUserEmail
	}
	return r.ShopUserEmail
}

// Message is an immutable chat line stored under a room.
type Message struct {
	ID          uint      `json:"id"`
	RoomID      string    `json:"room"`
	SenderEmail string    `json:"sender_email"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// RoomDetail is a room together with its history, as listed for a user.
type RoomDetail struct {
	Room
	LatestMessage *string   `json:"latest_messages"`
	Messages      []Message `json:"messages"`
}

// RoomOutcome tells whether get-or-create found or inserted the room.
type RoomOutcome string

const (
	OutcomeCreated  RoomOutcome = "created"
	OutcomeExisting RoomOutcome = "existing"
)

// RoomResult is the tagged result of a get-or-create call.
type RoomResult struct {
	Room    Room        `json:"room"`
	Outcome RoomOutcome `json:"outcome"`
}

// Created reports whether the room was inserted by this call.
func (r RoomResult) Created() bool {
	return r.Outcome == OutcomeCreated
}
