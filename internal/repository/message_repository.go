package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
)

// MessageRepository provides persistence for direct messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message and fills in the generated identifier.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (sender_id, recipient_id, content, read, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &message.ID, query, message.SenderID, message.RecipientID, message.Content, message.Read, message.CreatedAt); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// FindByID returns a message by identifier.
func (r *MessageRepository) FindByID(ctx context.Context, id int64) (*models.Message, error) {
	const query = `SELECT id, sender_id, recipient_id, content, read, read_at, created_at FROM messages WHERE id = $1 LIMIT 1`
	var message models.Message
	if err := r.db.GetContext(ctx, &message, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find message by id: %w", err)
	}
	return &message, nil
}

// ListBetween returns the messages exchanged between two users, newest first.
func (r *MessageRepository) ListBetween(ctx context.Context, userID, peerID int64, page, pageSize int) ([]models.MessageDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT m.id, m.sender_id, m.recipient_id, m.content, m.read, m.read_at, m.created_at,
su.full_name AS sender_name, ru.full_name AS recipient_name
FROM messages m
JOIN users su ON su.id = m.sender_id
JOIN users ru ON ru.id = m.recipient_id
WHERE (m.sender_id = $1 AND m.recipient_id = $2) OR (m.sender_id = $2 AND m.recipient_id = $1)
ORDER BY m.created_at DESC, m.id DESC LIMIT %d OFFSET %d`, pageSize, offset)

	var messages []models.MessageDetail
	if err := r.db.SelectContext(ctx, &messages, listQuery, userID, peerID); err != nil {
		return nil, 0, fmt.Errorf("list messages between users: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM messages m WHERE (m.sender_id = $1 AND m.recipient_id = $2) OR (m.sender_id = $2 AND m.recipient_id = $1)`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, userID, peerID); err != nil {
		return nil, 0, fmt.Errorf("count messages between users: %w", err)
	}

	return messages, total, nil
}

// Conversations returns one row per peer the user has exchanged messages
// with, carrying the latest message and the unread count from that peer.
func (r *MessageRepository) Conversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	const query = `WITH peers AS (
  SELECT DISTINCT CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS peer_id
  FROM messages WHERE sender_id = $1 OR recipient_id = $1
)
SELECT p.peer_id,
  u.full_name AS peer_name,
  latest.content AS last_content,
  latest.created_at AS last_at,
  COALESCE(unread.cnt, 0) AS unread_count
FROM peers p
JOIN users u ON u.id = p.peer_id
JOIN LATERAL (
  SELECT m.content, m.created_at FROM messages m
  WHERE (m.sender_id = $1 AND m.recipient_id = p.peer_id) OR (m.sender_id = p.peer_id AND m.recipient_id = $1)
  ORDER BY m.created_at DESC, m.id DESC LIMIT 1
) latest ON TRUE
LEFT JOIN LATERAL (
  SELECT COUNT(*) AS cnt FROM messages m
  WHERE m.sender_id = p.peer_id AND m.recipient_id = $1 AND m.read = FALSE
) unread ON TRUE
ORDER BY latest.created_at DESC`

	var conversations []models.Conversation
	if err := r.db.SelectContext(ctx, &conversations, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// MarkRead flags every unread message from peer to user as read.
func (r *MessageRepository) MarkRead(ctx context.Context, userID, peerID int64) (int64, error) {
	const query = `UPDATE messages SET read = TRUE, read_at = $3 WHERE recipient_id = $1 AND sender_id = $2 AND read = FALSE`
	result, err := r.db.ExecContext(ctx, query, userID, peerID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark messages read rows: %w", err)
	}
	return affected, nil
}

// UnreadCount returns the number of unread messages addressed to the user.
func (r *MessageRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND read = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
