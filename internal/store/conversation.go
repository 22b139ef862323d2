package store

import (
	"database/sql"
	"time"

	"github.com/recado-app/recado/internal/model"
)

// UpsertConversation inserts or updates a conversation summary by id.
func (db *DB) UpsertConversation(c *model.Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, name, profile_picture_url, last_message, timestamp, pinned_message_id, is_group, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			profile_picture_url = excluded.profile_picture_url,
			last_message = excluded.last_message,
			timestamp = excluded.timestamp,
			pinned_message_id = excluded.pinned_message_id,
			is_group = excluded.is_group,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.ProfilePictureURL, c.LastMessage, c.Timestamp, c.PinnedMessageID, c.IsGroup, now)
	return err
}

// ListConversations returns conversations ordered by recency.
func (db *DB) ListConversations() ([]model.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, name, profile_picture_url, last_message, timestamp, pinned_message_id, is_group
		FROM conversations
		ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var conversations []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.Name, &c.ProfilePictureURL, &c.LastMessage, &c.Timestamp, &c.PinnedMessageID, &c.IsGroup); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// GetConversation returns a single conversation by id, or nil when absent.
func (db *DB) GetConversation(id string) (*model.Conversation, error) {
	var c model.Conversation
	err := db.QueryRow(`
		SELECT id, name, profile_picture_url, last_message, timestamp, pinned_message_id, is_group
		FROM conversations
		WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.ProfilePictureURL, &c.LastMessage, &c.Timestamp, &c.PinnedMessageID, &c.IsGroup)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
