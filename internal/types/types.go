package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// MessageStatus is the delivery-state of a message. Statuses are ordered
// sent < delivered < read and a message never moves backward.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Rank returns the position of the status in the delivery lifecycle.
// Unknown statuses rank below sent.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeAudio MessageType = "audio"
	TypeImage MessageType = "image"
)

type Message struct {
	Id         int           `json:"id"`
	SenderId   int           `json:"sender_id"`
	ReceiverId int           `json:"receiver_id"`
	Body       string        `json:"body"`
	Type       MessageType   `json:"type"`
	Status     MessageStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Contact is one entry in a user's contact list: the counterpart user,
// the most recent message exchanged with them and the number of messages
// from them the requesting user has not read yet.
type Contact struct {
	User        User    `json:"user"`
	LastMessage Message `json:"last_message"`
	UnreadCount int     `json:"unread_count"`
}
