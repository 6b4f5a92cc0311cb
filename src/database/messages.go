package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderCharacter Sender = "character"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageAudioLog MessageType = "audio_log"
)

type Message struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chat_id"`
	Sender      Sender      `json:"sender"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AppendMessage stores one message in a chat.
func (s *Store) AppendMessage(ctx context.Context, chatID string, sender Sender, content string, kind MessageType) (*Message, error) {
	if sender != SenderUser && sender != SenderCharacter {
		return nil, &kerrors.ValidationError{Field: "sender", Value: sender, Message: "must be user or character"}
	}
	if kind == "" {
		kind = MessageText
	}
	if kind != MessageText && kind != MessageAudioLog {
		return nil, &kerrors.ValidationError{Field: "message_type", Value: kind, Message: "must be text or audio_log"}
	}

	msg := &Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Sender:      sender,
		Content:     content,
		MessageType: kind,
		CreatedAt:   s.now().UTC(),
	}
	err := s.tx.WithRetry(ctx, nil, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM chats WHERE id = ?`, chatID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return kerrors.ErrRecordNotFound
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender, content, message_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, msg.ID, chatID, string(sender), content, string(kind), toMillis(msg.CreatedAt))
		return err
	})
	if err != nil {
		return nil, kerrors.NewDatabaseError("insert", "messages", err)
	}
	return msg, nil
}

// RecentMessages returns up to limit of the chat's latest messages, oldest
// first.
func (s *Store) RecentMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, chat_id, sender, content, message_type, created_at
	FROM messages
	WHERE chat_id = ?
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, kerrors.NewDatabaseError("select", "messages", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var sender, kind string
		var created int64
		if err := rows.Scan(&m.ID, &m.ChatID, &sender, &m.Content, &kind, &created); err != nil {
			return nil, kerrors.NewDatabaseError("scan", "messages", fmt.Errorf("failed to scan row: %w", err))
		}
		m.Sender = Sender(sender)
		m.MessageType = MessageType(kind)
		m.CreatedAt = fromMillis(created)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, kerrors.NewDatabaseError("select", "messages", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Turns converts text messages into conversation turns; audio logs are
// skipped.
func Turns(messages []Message) []personality.Turn {
	turns := make([]personality.Turn, 0, len(messages))
	for _, m := range messages {
		if m.MessageType != MessageText {
			continue
		}
		role := personality.RoleUser
		if m.Sender == SenderCharacter {
			role = personality.RoleAssistant
		}
		turns = append(turns, personality.Turn{Role: role, Content: m.Content})
	}
	return turns
}
