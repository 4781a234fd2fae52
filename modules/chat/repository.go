package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/shop-chat/domain/chat"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// minTick is the smallest step used to keep message timestamps strictly
// increasing within a room.
const minTick = time.Microsecond

// Repository provides access to rooms, participants and messages.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new chat repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Migrate creates or updates the chat tables.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(models()...); err != nil {
		return fmt.Errorf("failed to migrate chat tables: %w", err)
	}
	return nil
}

// GetOrCreateRoom resolves both participants by email and returns the room
// for the pair, inserting whatever is missing.
func (r *Repository) GetOrCreateRoom(ctx context.Context, shopEmail, visitorEmail string) (domain.RoomResult, error) {
	shopEmail, visitorEmail = domain.NormalizeEmail(shopEmail), domain.NormalizeEmail(visitorEmail)
	if shopEmail == "" || visitorEmail == "" {
		return domain.RoomResult{}, domain.ErrMissingParticipants
	}

	var (
		room    Room
		outcome = domain.OutcomeExisting
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shop := ShopUser{Email: shopEmail}
		if err := tx.Where(ShopUser{Email: shopEmail}).FirstOrCreate(&shop).Error; err != nil {
			return fmt.Errorf("failed to resolve shop user: %w", err)
		}
		visitor := VisitorUser{Email: visitorEmail}
		if err := tx.Where(VisitorUser{Email: visitorEmail}).FirstOrCreate(&visitor).Error; err != nil {
			return fmt.Errorf("failed to resolve visitor user: %w", err)
		}

		err := tx.Where("shop_user_id = ? AND visitor_user_id = ?", shop.ID, visitor.ID).First(&room).Error
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			room = Room{
				ID:            uuid.New().String(),
				ShopUserID:    shop.ID,
				VisitorUserID: visitor.ID,
			}
			if err := tx.Omit(clause.Associations).Create(&room).Error; err != nil {
				return fmt.Errorf("failed to create room: %w", err)
			}
			outcome = domain.OutcomeCreated
		default:
			return fmt.Errorf("failed to find room: %w", err)
		}

		room.ShopUser = shop
		room.VisitorUser = visitor
		return nil
	})
	if err != nil {
		return domain.RoomResult{}, err
	}

	return domain.RoomResult{Room: toDomainRoom(&room), Outcome: outcome}, nil
}

// RoomExists reports whether a room with the given id is stored.
func (r *Repository) RoomExists(ctx context.Context, roomID string) (bool, error) {
	if roomID == "" {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return count > 0, nil
}

// FindRoom retrieves a room with both participants.
func (r *Repository) FindRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var room Room
	err := r.db.WithContext(ctx).
		Preload("ShopUser").
		Preload("VisitorUser").
		First(&room, "id = ?", roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	out := toDomainRoom(&room)
	return &out, nil
}

// SaveMessage appends a message to a room. The stored timestamp is
// strictly later than every earlier message in the same room.
func (r *Repository) SaveMessage(ctx context.Context, roomID, senderEmail, text string) (*domain.Message, error) {
	senderEmail = domain.NormalizeEmail(senderEmail)
	if senderEmail == "" || text == "" {
		return nil, domain.ErrMissingContent
	}

	var msg Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
			return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		if count == 0 {
			return domain.ErrRoomNotFound
		}

		var last Message
		if err := tx.Where("room_id = ?", roomID).
			Order("created_at DESC, id DESC").
			Limit(1).
			Find(&last).Error; err != nil {
			return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}

		ts := r.now().UTC()
		if last.ID != 0 && !ts.After(last.CreatedAt) {
			ts = last.CreatedAt.Add(minTick)
		}

		msg = Message{
			RoomID:      roomID,
			SenderEmail: senderEmail,
			Text:        text,
			CreatedAt:   ts,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	out := toDomainMessage(&msg)
	return &out, nil
}

// LatestMessage returns the newest message of a room, or
// domain.ErrMessagesNotFound when the room has none.
func (r *Repository) LatestMessage(ctx context.Context, roomID string) (*domain.Message, error) {
	var msg Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessagesNotFound
		}
		return nil, fmt.Errorf("failed to find latest message: %w", err)
	}
	out := toDomainMessage(&msg)
	return &out, nil
}

// MessagesForRoom returns the full history of a room, oldest first.
func (r *Repository) MessagesForRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	var msgs []Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, domain.ErrMessagesNotFound
	}
	return toDomainMessages(msgs), nil
}

// RoomsForEmail returns every room where email is the shop user or the
// visitor, newest first, each with its ordered history.
func (r *Repository) RoomsForEmail(ctx context.Context, email string) ([]domain.RoomDetail, error) {
	email = domain.NormalizeEmail(email)
	db := r.db.WithContext(ctx)
	shopIDs := db.Model(&ShopUser{}).Select("id").Where("email = ?", email)
	visitorIDs := db.Model(&VisitorUser{}).Select("id").Where("email = ?", email)

	var rooms []Room
	err := db.
		Preload("ShopUser").
		Preload("VisitorUser").
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Where("shop_user_id IN (?) OR visitor_user_id IN (?)", shopIDs, visitorIDs).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}

	out := make([]domain.RoomDetail, 0, len(rooms))
	for i := range rooms {
		detail := domain.RoomDetail{
			Room:     toDomainRoom(&rooms[i]),
			Messages: toDomainMessages(rooms[i].Messages),
		}
		if n := len(detail.Messages); n > 0 {
			latest := detail.Messages[n-1].Text
			detail.LatestMessage = &latest
		}
		out = append(out, detail)
	}
	return out, nil
}
