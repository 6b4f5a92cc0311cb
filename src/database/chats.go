package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	kerrors "kokoro/src/errors"
)

// MaxLoveMeter caps the affection score.
const MaxLoveMeter = 100

type Chat struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	CharacterID string    `json:"character_id"`
	LoveMeter   int       `json:"love_meter"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateChat opens a chat with an existing character.
func (s *Store) CreateChat(ctx context.Context, userID, characterID string) (*Chat, error) {
	if _, err := s.GetCharacter(ctx, characterID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	chat := &Chat{ID: uuid.NewString(), UserID: userID, CharacterID: characterID, CreatedAt: now, UpdatedAt: now}
	err := s.tx.WithRetry(ctx, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO chats (id, user_id, character_id, love_meter, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)`, chat.ID, userID, characterID, toMillis(now), toMillis(now))
		return err
	})
	if err != nil {
		return nil, kerrors.NewDatabaseError("insert", "chats", err)
	}
	return chat, nil
}

func (s *Store) GetChat(ctx context.Context, id string) (*Chat, error) {
	var chat Chat
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
	SELECT id, user_id, character_id, love_meter, created_at, updated_at
	FROM chats WHERE id = ?`, id).Scan(&chat.ID, &chat.UserID, &chat.CharacterID, &chat.LoveMeter, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kerrors.NewDatabaseError("select", "chats", kerrors.ErrRecordNotFound)
	}
	if err != nil {
		return nil, kerrors.NewDatabaseError("select", "chats", err)
	}
	chat.CreatedAt = fromMillis(created)
	chat.UpdatedAt = fromMillis(updated)
	return &chat, nil
}

// UpdateLoveMeter sets the score, clamped to [0, MaxLoveMeter].
func (s *Store) UpdateLoveMeter(ctx context.Context, chatID string, value int) (int, error) {
	value = clamp(value, 0, MaxLoveMeter)
	err := s.tx.WithRetry(ctx, nil, func(tx *sql.Tx) error {
		return setLoveMeter(ctx, tx, chatID, value, s.now())
	})
	if err != nil {
		return 0, kerrors.NewDatabaseError("update", "chats", err)
	}
	return value, nil
}

// Rand decides whether a turn raises the love meter.
type Rand interface {
	Float64() float64
}

// LoveMeterPolicy raises the score by one with probability Chance, never
// beyond Max.
type LoveMeterPolicy struct {
	Chance float64
	Max    int
	Rand   Rand
}

// BumpLoveMeter applies policy to the chat and returns the resulting score
// and whether it changed.
func (s *Store) BumpLoveMeter(ctx context.Context, chatID string, policy LoveMeterPolicy) (int, bool, error) {
	max := policy.Max
	if max <= 0 || max > MaxLoveMeter {
		max = MaxLoveMeter
	}

	var value int
	var changed bool
	err := s.tx.WithRetry(ctx, nil, func(tx *sql.Tx) error {
		changed = false
		err := tx.QueryRowContext(ctx, `SELECT love_meter FROM chats WHERE id = ?`, chatID).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return kerrors.ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		if value >= max || policy.Rand == nil || policy.Rand.Float64() >= policy.Chance {
			return nil
		}
		value++
		changed = true
		return setLoveMeter(ctx, tx, chatID, value, s.now())
	})
	if err != nil {
		return 0, false, kerrors.NewDatabaseError("update", "chats", err)
	}
	return value, changed, nil
}

func setLoveMeter(ctx context.Context, tx *sql.Tx, chatID string, value int, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE chats SET love_meter = ?, updated_at = ? WHERE id = ?`,
		value, toMillis(now), chatID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return kerrors.ErrRecordNotFound
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
