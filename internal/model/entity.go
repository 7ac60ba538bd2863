package model

import "time"

type TicketStatus string

const (
	TicketStatusPending TicketStatus = "pending"
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusClosed  TicketStatus = "closed"
)

// Ticket — диалог поддержки, единица выдачи в ленте оператора.
type Ticket struct {
	ID             uint64       `gorm:"primaryKey" json:"id"`
	Status         TicketStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	UserID         *uint64      `gorm:"index" json:"user_id,omitempty"`
	QueueID        *uint64      `gorm:"index" json:"queue_id,omitempty"`
	ContactID      uint64       `gorm:"index;not null" json:"contact_id"`
	Contact        *Contact     `json:"contact,omitempty"`
	LastMessage    string       `gorm:"type:text" json:"last_message,omitempty"`
	UnreadMessages int          `gorm:"not null;default:0" json:"unread_messages"`
	Tags           []Tag        `gorm:"many2many:ticket_tags" json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contact — собеседник тикета; имя и номер участвуют в текстовом поиске.
type Contact struct {
	ID     uint64 `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"type:varchar(255);index;not null" json:"name"`
	Number string `gorm:"type:varchar(64);index" json:"number,omitempty"`
}

type Queue struct {
	ID    uint64 `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"type:varchar(128);not null" json:"name"`
	Color string `gorm:"type:varchar(16)" json:"color,omitempty"`
}

type Tag struct {
	ID    uint64 `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"type:varchar(128);not null" json:"name"`
	Color string `gorm:"type:varchar(16)" json:"color,omitempty"`
}

// TicketTag — связка тикет-тег для фильтра по тегам.
type TicketTag struct {
	TicketID uint64 `gorm:"primaryKey" json:"ticket_id"`
	TagID    uint64 `gorm:"primaryKey" json:"tag_id"`
}

// UserQueue — очереди, закреплённые за оператором.
type UserQueue struct {
	UserID  uint64 `gorm:"primaryKey" json:"user_id"`
	QueueID uint64 `gorm:"primaryKey" json:"queue_id"`
}

// Message — сообщение тикета; тело участвует в текстовом поиске.
type Message struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	TicketID  uint64    `gorm:"index;not null" json:"ticket_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	FromMe    bool      `gorm:"not null;default:false" json:"from_me"`
	CreatedAt time.Time `json:"created_at"`
}
