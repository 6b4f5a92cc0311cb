package daemon

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kokoro/src/app"
	"kokoro/src/database"
	kerrors "kokoro/src/errors"
	"kokoro/src/image"
	"kokoro/src/personality"
)

const maxBodyBytes = 1 << 20

// SpeechRequest asks for one synthesized clip.
type SpeechRequest struct {
	VoiceID string `json:"voice_id" jsonschema:"required"`
	Text    string `json:"text" jsonschema:"required"`
	// ChatID, when set, records the spoken line as an audio log message.
	ChatID string `json:"chat_id,omitempty"`
}

// CreateCharacterRequest stores a character for a user.
type CreateCharacterRequest struct {
	UserID string `json:"user_id"`
	personality.Character
}

// CreateChatRequest opens a persisted chat.
type CreateChatRequest struct {
	UserID      string `json:"user_id" jsonschema:"required"`
	CharacterID string `json:"character_id" jsonschema:"required"`
}

// StartSessionRequest begins a video chat with a stored or inline character.
type StartSessionRequest struct {
	CharacterID string                 `json:"character_id,omitempty"`
	Character   *personality.Character `json:"character,omitempty"`
}

// SessionMessageRequest is one user turn inside a video chat.
type SessionMessageRequest struct {
	Message string `json:"message" jsonschema:"required"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case kerrors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, kerrors.ErrInvalidInput), errors.Is(err, kerrors.ErrInvalidSessionID):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	database := "ok"
	if err := s.app.Store.Ping(r.Context()); err != nil {
		status, database = "degraded", err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"database":       database,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"speech":         s.app.Speech.Configured(),
		"requests":       s.snapshotStats(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req app.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	env, err := s.app.Chat(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	var req image.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.app.Images.Generate(r.Context(), req))
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	audio, err := s.app.Speech.Synthesize(r.Context(), req.VoiceID, req.Text)
	if err != nil {
		var se *kerrors.SpeechError
		if !errors.As(err, &se) {
			se = &kerrors.SpeechError{Category: kerrors.SpeechUnavailable, Message: err.Error()}
		}
		s.logger.Warn("speech synthesis failed", "voice_id", req.VoiceID, "category", se.Category, "detail", se.Detail)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        false,
			"error":          se.Message,
			"error_category": se.Category,
			"fallback":       true,
		})
		return
	}
	defer audio.Release()

	if req.ChatID != "" {
		if _, err := s.app.Store.AppendMessage(r.Context(), req.ChatID, database.SenderCharacter, req.Text, database.MessageAudioLog); err != nil {
			s.logger.Warn("failed to store audio log", "chat_id", req.ChatID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"audio_data":       base64.StdEncoding.EncodeToString(audio.Data),
		"content_type":     audio.ContentType,
		"audio_size_bytes": len(audio.Data),
		"model_used":       audio.ModelUsed,
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, fallback := s.app.Speech.Voices(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"voices":   voices,
		"fallback": fallback,
	})
}

func (s *Server) handleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	var req CreateCharacterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, portrait, err := s.app.CreateCharacter(r.Context(), req.UserID, req.Character)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body := map[string]any{"success": true, "character": rec}
	if portrait != nil {
		body["image"] = portrait
	}
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	rec, err := s.app.Store.GetCharacter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "character": rec})
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	chat, err := s.app.Store.CreateChat(r.Context(), req.UserID, req.CharacterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "chat": chat})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var character personality.Character
	switch {
	case req.CharacterID != "":
		rec, err := s.app.Store.GetCharacter(r.Context(), req.CharacterID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		character = rec.Character
	case req.Character != nil:
		character = *req.Character
	}

	started, err := s.app.Sessions.Start(r.Context(), character)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":         true,
		"session_id":      started.SessionID,
		"initial_message": started.InitialMessage,
	})
}

func (s *Server) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	var req SessionMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	env, err := s.app.Sessions.Send(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	ended, err := s.app.Sessions.End(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"session_id":       ended.SessionID,
		"duration_seconds": ended.DurationSeconds,
		"total_messages":   ended.TotalMessages,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := Schema(strings.ToLower(chi.URLParam(r, "name")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}
