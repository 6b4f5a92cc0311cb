package daemon

import (
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"

	"kokoro/src/app"
	kerrors "kokoro/src/errors"
	"kokoro/src/image"
)

var schemaTypes = map[string]any{
	"chat":            app.ChatRequest{},
	"image":           image.Request{},
	"speech":          SpeechRequest{},
	"character":       CreateCharacterRequest{},
	"chat_create":     CreateChatRequest{},
	"session_start":   StartSessionRequest{},
	"session_message": SessionMessageRequest{},
}

// SchemaNames lists the request types Schema can describe.
func SchemaNames() []string {
	names := make([]string, 0, len(schemaTypes))
	for name := range schemaTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema reflects the JSON Schema of a request body by name.
func Schema(name string) (*jsonschema.Schema, error) {
	v, ok := schemaTypes[name]
	if !ok {
		return nil, fmt.Errorf("schema %q: %w", name, kerrors.ErrRecordNotFound)
	}
	reflector := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	return reflector.Reflect(v), nil
}
