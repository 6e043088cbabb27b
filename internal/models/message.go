package models

import "time"

// Message is a direct message between two users.
type Message struct {
	ID          int64      `db:"id" json:"id"`
	SenderID    int64      `db:"sender_id" json:"sender_id"`
	RecipientID int64      `db:"recipient_id" json:"recipient_id"`
	Content     string     `db:"content" json:"content"`
	Read        bool       `db:"read" json:"read"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// MessageDetail adds sender/recipient names to a message row.
type MessageDetail struct {
	Message
	SenderName    string `db:"sender_name" json:"sender_name"`
	RecipientName string `db:"recipient_name" json:"recipient_name"`
}

// MessageFilter selects messages visible to a user.
type MessageFilter struct {
	UserID   int64
	PeerID   int64
	Unread   *bool
	Page     int
	PageSize int
}

// Conversation summarises the latest exchange with a peer.
type Conversation struct {
	PeerID      int64     `db:"peer_id" json:"peer_id"`
	PeerName    string    `db:"peer_name" json:"peer_name"`
	LastContent string    `db:"last_content" json:"last_content"`
	LastAt      time.Time `db:"last_at" json:"last_at"`
	UnreadCount int       `db:"unread_count" json:"unread_count"`
}
