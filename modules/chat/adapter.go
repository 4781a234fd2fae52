package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/shop-chat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort defines the chat operations available to other modules.
type ChatPort interface {
	GetOrCreateRoom(ctx context.Context, shopEmail, visitorEmail string) (domain.RoomResult, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
	SaveMessage(ctx context.Context, roomID, senderEmail, text string) (*domain.Message, error)
	LatestMessage(ctx context.Context, roomID string) (*domain.Message, bool, error)
	ListMessages(ctx context.Context, roomID string) ([]domain.Message, error)
	ListRooms(ctx context.Context, email string) ([]domain.RoomDetail, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

func (a *ChatAdapter) call(ctx context.Context, service string, req, resp any) error {
	return helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	)
}

// GetOrCreateRoom resolves or creates the room for a participant pair.
func (a *ChatAdapter) GetOrCreateRoom(ctx context.Context, shopEmail, visitorEmail string) (domain.RoomResult, error) {
	req := GetOrCreateRoomRequest{ShopUserEmail: shopEmail, VisitorUserEmail: visitorEmail}
	var resp GetOrCreateRoomResponse
	if err := a.call(ctx, ServiceGetOrCreateRoom, &req, &resp); err != nil {
		return domain.RoomResult{}, fmt.Errorf("failed to get or create room: %w", err)
	}
	if err := resp.Err(); err != nil {
		return domain.RoomResult{}, err
	}
	return resp.Result, nil
}

// RoomExists checks whether a room is stored.
func (a *ChatAdapter) RoomExists(ctx context.Context, roomID string) (bool, error) {
	req := RoomExistsRequest{RoomID: roomID}
	var resp RoomExistsResponse
	if err := a.call(ctx, ServiceRoomExists, &req, &resp); err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	if err := resp.Err(); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// SaveMessage persists a message. Transport failures are reported as
// persistence errors.
func (a *ChatAdapter) SaveMessage(ctx context.Context, roomID, senderEmail, text string) (*domain.Message, error) {
	req := SaveMessageRequest{RoomID: roomID, SenderEmail: senderEmail, Text: text}
	var resp SaveMessageResponse
	if err := a.call(ctx, ServiceSaveMessage, &req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// LatestMessage returns the newest message of a room and whether one exists.
func (a *ChatAdapter) LatestMessage(ctx context.Context, roomID string) (*domain.Message, bool, error) {
	req := LatestMessageRequest{RoomID: roomID}
	var resp LatestMessageResponse
	if err := a.call(ctx, ServiceLatestMessage, &req, &resp); err != nil {
		return nil, false, fmt.Errorf("failed to get latest message: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, false, err
	}
	return resp.Message, resp.Found, nil
}

// ListMessages returns the history of a room.
func (a *ChatAdapter) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	req := ListMessagesRequest{RoomID: roomID}
	var resp ListMessagesResponse
	if err := a.call(ctx, ServiceListMessages, &req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ListRooms returns every room the email participates in.
func (a *ChatAdapter) ListRooms(ctx context.Context, email string) ([]domain.RoomDetail, error) {
	req := ListRoomsRequest{Email: email}
	var resp ListRoomsResponse
	if err := a.call(ctx, ServiceListRooms, &req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}
