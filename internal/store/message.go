package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/recado-app/recado/internal/model"
)

// UpsertMessage inserts or updates a message by id. Delivery and read
// timestamps are folded with MAX so a stale snapshot can never reset a
// receipt that was already recorded.
func (db *DB) UpsertMessage(m *model.Message) error {
	reactions, err := encodeReactions(m.Reactions)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, content, type, thumbnail_url, timestamp, status, delivered_at, read_at, reactions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sender_id = excluded.sender_id,
			content = excluded.content,
			type = excluded.type,
			thumbnail_url = excluded.thumbnail_url,
			timestamp = excluded.timestamp,
			status = excluded.status,
			delivered_at = MAX(messages.delivered_at, excluded.delivered_at),
			read_at = MAX(messages.read_at, excluded.read_at),
			reactions = excluded.reactions,
			updated_at = excluded.updated_at`,
		m.ID, m.ConversationID, m.SenderID, m.Content, string(m.Type), m.ThumbnailURL,
		m.Timestamp, string(m.Status), m.DeliveredTimestamp, m.ReadTimestamp, reactions, now)
	return err
}

// ListMessages returns a conversation's messages in send order.
func (db *DB) ListMessages(conversationID string) ([]model.Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, sender_id, content, type, thumbnail_url, timestamp, status, delivered_at, read_at, reactions
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// GetMessage returns a single message by id, or nil when absent.
func (db *DB) GetMessage(id string) (*model.Message, error) {
	row := db.QueryRow(`
		SELECT id, conversation_id, sender_id, content, type, thumbnail_url, timestamp, status, delivered_at, read_at, reactions
		FROM messages
		WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ClearMessages drops all cached messages. Used on logout.
func (db *DB) ClearMessages() error {
	_, err := db.Exec(`DELETE FROM messages`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var m model.Message
	var msgType, status, reactions string
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &msgType, &m.ThumbnailURL,
		&m.Timestamp, &status, &m.DeliveredTimestamp, &m.ReadTimestamp, &reactions); err != nil {
		return nil, err
	}
	m.Type = model.MessageType(msgType)
	m.Status = model.MessageStatus(status)
	if err := json.Unmarshal([]byte(reactions), &m.Reactions); err != nil {
		return nil, fmt.Errorf("decode reactions for %s: %w", m.ID, err)
	}
	if len(m.Reactions) == 0 {
		m.Reactions = nil
	}
	return &m, nil
}

func encodeReactions(reactions map[string]string) (string, error) {
	if len(reactions) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(reactions)
	if err != nil {
		return "", fmt.Errorf("encode reactions: %w", err)
	}
	return string(data), nil
}
