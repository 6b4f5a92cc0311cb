package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"kokoro/src/chain"
	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
)

const (
	// DefaultHistoryLimit bounds the turns kept in a session.
	DefaultHistoryLimit = 20
	// DefaultHistoryWindow bounds the turns sent to the generator.
	DefaultHistoryWindow = 10
)

// Generator produces replies; *chain.Chain satisfies it.
type Generator interface {
	Generate(ctx context.Context, req chain.Request) chain.Envelope
}

type Service struct {
	store         Store
	generator     Generator
	logger        *slog.Logger
	historyLimit  int
	historyWindow int
	now           func() time.Time
}

func NewService(store Store, generator Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:         store,
		generator:     generator,
		logger:        logger,
		historyLimit:  DefaultHistoryLimit,
		historyWindow: DefaultHistoryWindow,
		now:           time.Now,
	}
}

// Started is returned when a call begins.
type Started struct {
	SessionID      string `json:"session_id"`
	InitialMessage string `json:"initial_message"`
}

// Ended summarises a finished call.
type Ended struct {
	SessionID       string `json:"session_id"`
	DurationSeconds int64  `json:"duration_seconds"`
	TotalMessages   int    `json:"total_messages"`
}

func (s *Service) Start(ctx context.Context, c personality.Character) (*Started, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, &kerrors.ValidationError{Field: "character.name", Message: "character context is required"}
	}

	now := s.now()
	sess := &Session{
		ID:        "session_" + uuid.NewString(),
		Character: c,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("video session started", "session_id", sess.ID, "character", c.Name)

	return &Started{
		SessionID:      sess.ID,
		InitialMessage: fmt.Sprintf("Hi there! I'm %s, and I'm so excited to video chat with you!", c.Name),
	}, nil
}

// Send runs one turn through the generator and records both sides.
func (s *Service) Send(ctx context.Context, sessionID, message string) (chain.Envelope, error) {
	if strings.TrimSpace(message) == "" {
		return chain.Envelope{}, &kerrors.ValidationError{Field: "message", Message: "message is required"}
	}
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return chain.Envelope{}, err
	}

	env := s.generator.Generate(ctx, chain.Request{
		Character: sess.Character,
		Message:   message,
		History:   personality.LastTurns(sess.History, s.historyWindow),
	})

	sess.History = append(sess.History,
		personality.Turn{Role: personality.RoleUser, Content: message},
		personality.Turn{Role: personality.RoleAssistant, Content: env.Response},
	)
	sess.History = personality.LastTurns(sess.History, s.historyLimit)
	sess.TotalMessages += 2
	sess.UpdatedAt = s.now()

	if err := s.store.Update(ctx, sess); err != nil {
		return chain.Envelope{}, err
	}
	return env, nil
}

func (s *Service) End(ctx context.Context, sessionID string) (*Ended, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return nil, err
	}

	ended := &Ended{
		SessionID:       sessionID,
		DurationSeconds: int64(s.now().Sub(sess.StartedAt).Seconds()),
		TotalMessages:   sess.TotalMessages,
	}
	s.logger.Info("video session ended", "session_id", sessionID,
		"duration_seconds", ended.DurationSeconds, "total_messages", ended.TotalMessages)
	return ended, nil
}
