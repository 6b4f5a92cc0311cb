package app

import (
	"context"
	"strings"

	"kokoro/src/chain"
	"kokoro/src/database"
	kerrors "kokoro/src/errors"
	"kokoro/src/image"
	"kokoro/src/personality"
)

// HistoryWindow is the most turns a chat request carries into generation.
const HistoryWindow = 10

// CharacterContext describes a character inline when it is not stored.
type CharacterContext struct {
	Name      string `json:"name"`
	Gender    string `json:"gender,omitempty"`
	Backstory string `json:"backstory,omitempty"`
	MeetCute  string `json:"meet_cute,omitempty"`
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message          string             `json:"message" jsonschema:"required"`
	CharacterID      string             `json:"character_id,omitempty"`
	ChatID           string             `json:"chat_id,omitempty"`
	ChatHistory      []personality.Turn `json:"chat_history,omitempty"`
	CharacterTraits  []string           `json:"character_traits,omitempty"`
	CharacterContext *CharacterContext  `json:"character_context,omitempty"`
}

// ResolveCharacter prefers the stored character and falls back to the
// inline context.
func (a *App) ResolveCharacter(ctx context.Context, req ChatRequest) (personality.Character, error) {
	if req.CharacterID != "" {
		rec, err := a.Store.GetCharacter(ctx, req.CharacterID)
		if err == nil {
			return rec.Character, nil
		}
		if !kerrors.IsNotFound(err) || req.CharacterContext == nil {
			return personality.Character{}, err
		}
	}
	if req.CharacterContext == nil || strings.TrimSpace(req.CharacterContext.Name) == "" {
		return personality.Character{}, &kerrors.ValidationError{Field: "character_id", Message: "character_id or character_context is required"}
	}
	return personality.Character{
		ID:                req.CharacterID,
		Name:              req.CharacterContext.Name,
		Gender:            req.CharacterContext.Gender,
		Backstory:         req.CharacterContext.Backstory,
		MeetCute:          req.CharacterContext.MeetCute,
		PersonalityTraits: req.CharacterTraits,
	}, nil
}

// Chat generates a reply. With a chat id the turn is persisted and the
// love meter may rise; persistence failures are logged and do not cost the
// user the reply.
func (a *App) Chat(ctx context.Context, req ChatRequest) (chain.Envelope, error) {
	if strings.TrimSpace(req.Message) == "" {
		return chain.Envelope{}, &kerrors.ValidationError{Field: "message", Message: "message is required"}
	}

	character, err := a.ResolveCharacter(ctx, req)
	if err != nil {
		return chain.Envelope{}, err
	}

	history := req.ChatHistory
	if req.ChatID != "" {
		if _, err := a.Store.GetChat(ctx, req.ChatID); err != nil {
			return chain.Envelope{}, err
		}
		if len(history) == 0 {
			recent, err := a.Store.RecentMessages(ctx, req.ChatID, HistoryWindow)
			if err != nil {
				a.Logger.Warn("failed to load chat history", "chat_id", req.ChatID, "error", err)
			}
			history = database.Turns(recent)
		}
	}

	env := a.Text.Generate(ctx, chain.Request{
		Character: character,
		Message:   req.Message,
		History:   personality.LastTurns(history, HistoryWindow),
	})

	if req.ChatID != "" {
		a.persistTurn(ctx, req.ChatID, req.Message, &env)
	}
	return env, nil
}

func (a *App) persistTurn(ctx context.Context, chatID, message string, env *chain.Envelope) {
	ctx = context.WithoutCancel(ctx)
	if _, err := a.Store.AppendMessage(ctx, chatID, database.SenderUser, message, database.MessageText); err != nil {
		a.Logger.Warn("failed to store user message", "chat_id", chatID, "error", err)
		return
	}
	if _, err := a.Store.AppendMessage(ctx, chatID, database.SenderCharacter, env.Response, database.MessageText); err != nil {
		a.Logger.Warn("failed to store character message", "chat_id", chatID, "error", err)
		return
	}

	value, changed, err := a.Store.BumpLoveMeter(ctx, chatID, a.loveMeter)
	if err != nil {
		a.Logger.Warn("failed to update love meter", "chat_id", chatID, "error", err)
		return
	}
	if changed {
		a.Logger.Debug("love meter increased", "chat_id", chatID, "love_meter", value)
	}
	env.LoveMeter = &value
}

// CreateCharacter stores a character, generating a portrait first when no
// image url is given.
func (a *App) CreateCharacter(ctx context.Context, userID string, c personality.Character) (*database.CharacterRecord, *image.Response, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, nil, &kerrors.ValidationError{Field: "name", Message: "character name is required"}
	}

	var portrait *image.Response
	if c.ImageURL == "" {
		resp := a.Images.Generate(ctx, image.Request{
			Name:              c.Name,
			Gender:            c.Gender,
			Height:            c.Height,
			Build:             c.Build,
			EyeColor:          c.EyeColor,
			HairColor:         c.HairColor,
			SkinTone:          c.SkinTone,
			PersonalityTraits: c.PersonalityTraits,
			ArtStyle:          c.ArtStyle,
		})
		c.ImageURL = resp.ImageURL
		portrait = &resp
	}

	rec, err := a.Store.CreateCharacter(ctx, userID, c)
	if err != nil {
		return nil, nil, err
	}
	return rec, portrait, nil
}
