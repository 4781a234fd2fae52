package api

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	domain "github.com/example/shop-chat/domain/chat"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws/chat/:room_id", websocket.New(m.handleWebSocket))

	api := m.app.Group("/api/v1")

	api.Get("/rooms", m.listRooms)
	api.Post("/rooms", m.createRoom)
	api.Get("/rooms/:room_id/messages", m.listMessages)
	api.Get("/stats", m.stats)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{
		"module":             "api",
		"connected_sessions": m.hub.ReceiverCount(),
		"active_rooms":       m.hub.GroupCount(),
	}
	if m.activity != nil {
		snap := m.activity.Snapshot()
		details["messages_sent"] = snap.MessagesSent
		details["rooms_created"] = snap.RoomsCreated
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// listRooms handles GET /api/v1/rooms?email=.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	email := domain.NormalizeEmail(c.Query("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:  "validation_error",
			Detail: "email query parameter is required",
		})
	}

	rooms, err := m.chat.ListRooms(c.UserContext(), email)
	if err != nil {
		m.logger.Error("List rooms failed", "email", email, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:  "list_failed",
			Detail: "failed to list rooms",
		})
	}

	resp := make([]RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		resp = append(resp, toRoomResponse(r.Room, email, r.LatestMessage, r.Messages))
	}
	return c.JSON(resp)
}

// createRoom handles POST /api/v1/rooms. It answers 201 for a new room and
// 200 with the stored history for an existing one.
func (m *APIModule) createRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:  "invalid_request",
			Detail: "invalid request body",
		})
	}

	ctx := c.UserContext()
	shop, visitor := domain.NormalizeEmail(req.ShopUserEmail), domain.NormalizeEmail(req.VisitorUserEmail)
	result, err := m.chat.GetOrCreateRoom(ctx, shop, visitor)
	if err != nil {
		if domain.IsValidation(err) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:  "validation_error",
				Detail: err.Error(),
			})
		}
		m.logger.Error("Get or create room failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:  "create_failed",
			Detail: "failed to create room",
		})
	}

	viewer := domain.NormalizeEmail(c.Query("email"))
	if result.Created() {
		return c.Status(fiber.StatusCreated).JSON(toRoomResponse(result.Room, viewer, nil, nil))
	}

	var latest *string
	if msg, found, err := m.chat.LatestMessage(ctx, result.Room.ID); err != nil {
		m.logger.Warn("Latest message lookup failed", "roomID", result.Room.ID, "error", err)
	} else if found {
		latest = &msg.Text
	}

	msgs, err := m.chat.ListMessages(ctx, result.Room.ID)
	if err != nil && !errors.Is(err, domain.ErrMessagesNotFound) {
		m.logger.Warn("Message history lookup failed", "roomID", result.Room.ID, "error", err)
	}

	return c.Status(fiber.StatusOK).JSON(toRoomResponse(result.Room, viewer, latest, msgs))
}

// listMessages handles GET /api/v1/rooms/:room_id/messages.
func (m *APIModule) listMessages(c *fiber.Ctx) error {
	roomID := c.Params("room_id")

	msgs, err := m.chat.ListMessages(c.UserContext(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrMessagesNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:  "not_found",
				Detail: domain.ErrMessagesNotFound.Error(),
			})
		}
		m.logger.Error("List messages failed", "roomID", roomID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:  "list_failed",
			Detail: "failed to list messages",
		})
	}

	return c.JSON(toMessageResponses(msgs))
}

// stats handles GET /api/v1/stats.
func (m *APIModule) stats(c *fiber.Ctx) error {
	resp := StatsResponse{Broadcast: m.hub.Stats()}
	if m.activity != nil {
		resp.Activity = m.activity.Snapshot()
	}
	if m.cache != nil {
		resp.Cache = m.cache.GetStats()
	}
	return c.JSON(resp)
}
