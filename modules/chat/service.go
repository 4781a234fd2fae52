package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/shop-chat/domain/chat"
	"github.com/example/shop-chat/events"
	"github.com/go-monolith/mono"
)

// getOrCreateRoom handles the chat.get-or-create-room service request.
func (m *Module) getOrCreateRoom(ctx context.Context, req GetOrCreateRoomRequest, _ *mono.Msg) (GetOrCreateRoomResponse, error) {
	result, err := m.repo.GetOrCreateRoom(ctx, req.ShopUserEmail, req.VisitorUserEmail)
	if err != nil {
		status, err := statusOf(err)
		return GetOrCreateRoomResponse{Status: status}, err
	}

	if result.Created() {
		m.logger.Info("Room created",
			"roomID", result.Room.ID,
			"shop", result.Room.ShopUserEmail,
			"visitor", result.Room.VisitorUserEmail)
		m.publishRoomCreated(result.Room)
	}

	return GetOrCreateRoomResponse{Result: result}, nil
}

// roomExists handles the chat.room-exists service request.
func (m *Module) roomExists(ctx context.Context, req RoomExistsRequest, _ *mono.Msg) (RoomExistsResponse, error) {
	exists, err := m.repo.RoomExists(ctx, req.RoomID)
	if err != nil {
		return RoomExistsResponse{}, err
	}
	return RoomExistsResponse{Exists: exists}, nil
}

// saveMessage handles the chat.save-message service request.
func (m *Module) saveMessage(ctx context.Context, req SaveMessageRequest, _ *mono.Msg) (SaveMessageResponse, error) {
	msg, err := m.repo.SaveMessage(ctx, req.RoomID, req.SenderEmail, req.Text)
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			m.logger.Error("Failed to save message", "roomID", req.RoomID, "error", err)
		}
		status, err := statusOf(err)
		return SaveMessageResponse{Status: status}, err
	}

	if m.cache != nil {
		if err := m.cache.StoreLatest(ctx, *msg); err != nil {
			m.logger.Warn("Failed to cache latest message", "roomID", msg.RoomID, "error", err)
			// A cached predecessor would now be stale.
			if err := m.cache.Invalidate(ctx, msg.RoomID); err != nil {
				m.logger.Warn("Failed to invalidate latest message", "roomID", msg.RoomID, "error", err)
			}
		}
	}

	m.publishMessageSent(msg)
	return SaveMessageResponse{Message: msg}, nil
}

// latestQueryTimeout bounds the shared latest-message query, which is
// detached from any single caller's context.
const latestQueryTimeout = 5 * time.Second

// latestMessage handles the chat.latest-message service request.
// Lookups go through the cache first; concurrent misses for the same room
// share one database query. A caller that gives up does not fail the
// others waiting on that query.
func (m *Module) latestMessage(ctx context.Context, req LatestMessageRequest, _ *mono.Msg) (LatestMessageResponse, error) {
	if m.cache != nil {
		cached, found, err := m.cache.Latest(ctx, req.RoomID)
		if err != nil {
			m.logger.Warn("Cache lookup failed", "roomID", req.RoomID, "error", err)
		}
		if found {
			return LatestMessageResponse{Found: true, Message: cached}, nil
		}
	}

	val, err, _ := m.sfGroup.Do(req.RoomID, func() (any, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), latestQueryTimeout)
		defer cancel()
		return m.repo.LatestMessage(qctx, req.RoomID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrMessagesNotFound) {
			return LatestMessageResponse{Found: false}, nil
		}
		return LatestMessageResponse{}, err
	}

	msg, ok := val.(*domain.Message)
	if !ok || msg == nil {
		return LatestMessageResponse{Found: false}, nil
	}

	if m.cache != nil {
		if err := m.cache.StoreLatest(ctx, *msg); err != nil {
			m.logger.Warn("Failed to cache latest message", "roomID", req.RoomID, "error", err)
		}
	}

	return LatestMessageResponse{Found: true, Message: msg}, nil
}

// listMessages handles the chat.list-messages service request.
func (m *Module) listMessages(ctx context.Context, req ListMessagesRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	msgs, err := m.repo.MessagesForRoom(ctx, req.RoomID)
	if err != nil {
		status, err := statusOf(err)
		return ListMessagesResponse{Status: status}, err
	}
	return ListMessagesResponse{Messages: msgs}, nil
}

// listRooms handles the chat.list-rooms service request.
func (m *Module) listRooms(ctx context.Context, req ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	if req.Email == "" {
		return ListRoomsResponse{}, fmt.Errorf("email is required")
	}
	rooms, err := m.repo.RoomsForEmail(ctx, req.Email)
	if err != nil {
		return ListRoomsResponse{}, err
	}
	return ListRoomsResponse{Rooms: rooms}, nil
}

func (m *Module) publishMessageSent(msg *domain.Message) {
	if m.eventBus == nil {
		return
	}
	event := events.MessageSentEvent{
		MessageID:   msg.ID,
		RoomID:      msg.RoomID,
		SenderEmail: msg.SenderEmail,
		Text:        msg.Text,
		Timestamp:   msg.Timestamp,
	}
	if err := events.MessageSentV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish MessageSent event", "roomID", msg.RoomID, "error", err)
	}
}

func (m *Module) publishRoomCreated(room domain.Room) {
	if m.eventBus == nil {
		return
	}
	event := events.RoomCreatedEvent{
		RoomID:           room.ID,
		ShopUserEmail:    room.ShopUserEmail,
		VisitorUserEmail: room.VisitorUserEmail,
		Timestamp:        time.Now(),
	}
	if err := events.RoomCreatedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish RoomCreated event", "roomID", room.ID, "error", err)
	}
}
