package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
)

// CharacterRecord is a stored character and its owner.
type CharacterRecord struct {
	personality.Character
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCharacter stores c, assigning an id when it has none.
func (s *Store) CreateCharacter(ctx context.Context, userID string, c personality.Character) (*CharacterRecord, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, &kerrors.ValidationError{Field: "name", Message: "character name is required"}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	traits, err := json.Marshal(personality.NormalizeTraits(c.PersonalityTraits))
	if err != nil {
		return nil, err
	}

	rec := &CharacterRecord{Character: c, UserID: userID, CreatedAt: s.now().UTC()}
	err = s.tx.WithRetry(ctx, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO characters (id, user_id, name, gender, personality_traits, backstory, meet_cute,
			height, build, eye_color, hair_color, skin_tone, art_style, image_url, voice_id, voice_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, userID, c.Name, c.Gender, string(traits), c.Backstory, c.MeetCute,
			c.Height, c.Build, c.EyeColor, c.HairColor, c.SkinTone, c.ArtStyle, c.ImageURL, c.VoiceID, c.VoiceName,
			toMillis(rec.CreatedAt))
		return err
	})
	if err != nil {
		return nil, kerrors.NewDatabaseError("insert", "characters", err)
	}
	rec.PersonalityTraits = personality.NormalizeTraits(c.PersonalityTraits)
	return rec, nil
}

// GetCharacter returns the character with id, or an error wrapping
// ErrRecordNotFound.
func (s *Store) GetCharacter(ctx context.Context, id string) (*CharacterRecord, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, user_id, name, gender, personality_traits, backstory, meet_cute,
		height, build, eye_color, hair_color, skin_tone, art_style, image_url, voice_id, voice_name, created_at
	FROM characters WHERE id = ?`, id)

	var rec CharacterRecord
	var traits string
	var created int64
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Name, &rec.Gender, &traits, &rec.Backstory, &rec.MeetCute,
		&rec.Height, &rec.Build, &rec.EyeColor, &rec.HairColor, &rec.SkinTone, &rec.ArtStyle,
		&rec.ImageURL, &rec.VoiceID, &rec.VoiceName, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kerrors.NewDatabaseError("select", "characters", kerrors.ErrRecordNotFound)
	}
	if err != nil {
		return nil, kerrors.NewDatabaseError("select", "characters", err)
	}

	if err := json.Unmarshal([]byte(traits), &rec.PersonalityTraits); err != nil {
		return nil, kerrors.NewDatabaseError("decode", "characters", err)
	}
	rec.CreatedAt = fromMillis(created)
	return &rec, nil
}

// UpdateCharacterImage sets the portrait url after image generation.
func (s *Store) UpdateCharacterImage(ctx context.Context, id, imageURL string) error {
	var affected int64
	err := s.tx.WithRetry(ctx, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE characters SET image_url = ? WHERE id = ?`, imageURL, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return kerrors.NewDatabaseError("update", "characters", err)
	}
	if affected == 0 {
		return kerrors.NewDatabaseError("update", "characters", kerrors.ErrRecordNotFound)
	}
	return nil
}
