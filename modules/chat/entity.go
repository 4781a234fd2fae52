package chat

import (
	"time"

	domain "github.com/example/shop-chat/domain/chat"
)

// ShopUser is a shop operator identified by email.
type ShopUser struct {
	ID        uint      `gorm:"primarykey"`
	Email     string    `gorm:"size:254;not null;uniqueIndex"`
	CreatedAt time.Time
}

// TableName returns the table name for ShopUser model.
func (ShopUser) TableName() string {
	return "shop_users"
}

// VisitorUser is a shop visitor identified by email.
type VisitorUser struct {
	ID        uint      `gorm:"primarykey"`
	Email     string    `gorm:"size:254;not null;uniqueIndex"`
	CreatedAt time.Time
}

// TableName returns the table name for VisitorUser model.
func (VisitorUser) TableName() string {
	return "visitor_users"
}

// Room binds one shop user and one visitor. The pair is unique.
type Room struct {
	ID            string `gorm:"primarykey;size:36"`
	ShopUserID    uint   `gorm:"not null;uniqueIndex:idx_room_pair,priority:1"`
	ShopUser      ShopUser
	VisitorUserID uint `gorm:"not null;uniqueIndex:idx_room_pair,priority:2"`
	VisitorUser   VisitorUser
	Messages      []Message `gorm:"foreignKey:RoomID"`
	CreatedAt     time.Time
}

// TableName returns the table name for Room model.
func (Room) TableName() string {
	return "rooms"
}

// Message is an append-only chat line.
type Message struct {
	ID          uint      `gorm:"primarykey"`
	RoomID      string    `gorm:"size:36;not null;index:idx_message_room_created,priority:1"`
	SenderEmail string    `gorm:"size:254;not null"`
	Text        string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"index:idx_message_room_created,priority:2"`
}

// TableName returns the table name for Message model.
func (Message) TableName() string {
	return "messages"
}

// models lists every table migrated on start.
func models() []any {
	return []any{&ShopUser{}, &VisitorUser{}, &Room{}, &Message{}}
}

func toDomainRoom(r *Room) domain.Room {
	return domain.Room{
		ID:               r.ID,
		ShopUserEmail:    r.ShopUser.Email,
		VisitorUserEmail: r.VisitorUser.Email,
		CreatedAt:        r.CreatedAt,
	}
}

func toDomainMessage(m *Message) domain.Message {
	return domain.Message{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderEmail: m.SenderEmail,
		Text:        m.Text,
		Timestamp:   m.CreatedAt,
	}
}

func toDomainMessages(msgs []Message) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, toDomainMessage(&msgs[i]))
	}
	return out
}
