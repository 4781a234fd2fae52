package api

import (
	"time"

	domain "github.com/example/shop-chat/domain/chat"
)

// InboundFrame is a chat frame sent by a client over the socket.
type InboundFrame struct {
	ShopUserEmail    string `json:"shop_user_email"`
	VisitorUserEmail string `json:"visitor_user_email"`
	SenderEmail      string `json:"sender_email"`
	Message          string `json:"message"`
}

// Normalize puts every email in the form the store uses.
func (f *InboundFrame) Normalize() {
	f.ShopUserEmail = domain.NormalizeEmail(f.ShopUserEmail)
	f.VisitorUserEmail = domain.NormalizeEmail(f.VisitorUserEmail)
	f.SenderEmail = domain.NormalizeEmail(f.SenderEmail)
}

// Validate checks the participants first, then the sender and text.
func (f InboundFrame) Validate() error {
	if domain.NormalizeEmail(f.ShopUserEmail) == "" || domain.NormalizeEmail(f.VisitorUserEmail) == "" {
		return domain.ErrMissingParticipants
	}
	if domain.NormalizeEmail(f.SenderEmail) == "" || f.Message == "" {
		return domain.ErrMissingContent
	}
	return nil
}

// OutboundMessage is the frame every group member receives for a chat line.
type OutboundMessage struct {
	Message     string `json:"message"`
	SenderEmail string `json:"sender_email"`
}

// ErrorFrame is sent to a single client when its request fails.
type ErrorFrame struct {
	Error string `json:"error"`
}

// CreateRoomRequest is the API request to get or create a room.
type CreateRoomRequest struct {
	ShopUserEmail    string `json:"shop_user_email"`
	VisitorUserEmail string `json:"visitor_user_email"`
}

// RoomResponse is the API response for a room.
type RoomResponse struct {
	ID               string            `json:"id"`
	ShopUserEmail    string            `json:"shop_user_email"`
	VisitorUserEmail string            `json:"visitor_user_email"`
	OpponentEmail    string            `json:"opponent_email"`
	LatestMessage    *string           `json:"latest_messages"`
	Messages         []MessageResponse `json:"messages"`
	CreatedAt        time.Time         `json:"created_at"`
}

// MessageResponse is the API response for a message.
type MessageResponse struct {
	ID          uint      `json:"id"`
	RoomID      string    `json:"room"`
	SenderEmail string    `json:"sender_email"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// StatsResponse is the API response for runtime statistics.
type StatsResponse struct {
	Broadcast any `json:"broadcast"`
	Activity  any `json:"activity,omitempty"`
	Cache     any `json:"cache,omitempty"`
}

func toMessageResponse(m domain.Message) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderEmail: m.SenderEmail,
		Text:        m.Text,
		Timestamp:   m.Timestamp,
	}
}

func toMessageResponses(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toRoomResponse(room domain.Room, viewer string, latest *string, msgs []domain.Message) RoomResponse {
	return RoomResponse{
		ID:               room.ID,
		ShopUserEmail:    room.ShopUserEmail,
		VisitorUserEmail: room.VisitorUserEmail,
		OpponentEmail:    room.OpponentEmail(viewer),
		LatestMessage:    latest,
		Messages:         toMessageResponses(msgs),
		CreatedAt:        room.CreatedAt,
	}
}
