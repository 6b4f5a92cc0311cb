package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios
var (
	// Provider errors
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrProviderTimeout       = errors.New("operation timeout")
	ErrTransientProvider     = errors.New("provider request failed")
	ErrContentPolicy         = errors.New("content policy refusal")
	ErrMalformedOutput       = errors.New("malformed provider output")

	// Database errors
	ErrDatabaseConnection = errors.New("database connection failed")
	ErrDatabaseQuery      = errors.New("database query failed")
	ErrRecordNotFound     = errors.New("record not found")

	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session has expired")
	ErrInvalidSessionID = errors.New("invalid session ID")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
	ErrOutOfRange      = errors.New("value out of acceptable range")
)

// ProviderError is a failed call to an external generation backend.
type ProviderError struct {
	Provider   string // Provider id (e.g. "openai", "stability-ai")
	Op         string // "generate", "image", "speech"
	StatusCode int
	Message    string
	Err        error // One of the provider sentinels
}

func (e *ProviderError) Error() string {
	switch {
	case errors.Is(e.Err, ErrProviderNotConfigured):
		return fmt.Sprintf("%s %s", e.Provider, e.Message)
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s %s failed (status %d): %s", e.Provider, e.Op, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Op, e.Message)
	default:
		return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError around one of the provider sentinels.
func NewProviderError(provider, op string, kind error, format string, args ...interface{}) error {
	return &ProviderError{
		Provider: provider,
		Op:       op,
		Message:  fmt.Sprintf(format, args...),
		Err:      kind,
	}
}

// HTTPProviderError classifies a non-2xx vendor response.
func HTTPProviderError(provider, op string, status int, body string) error {
	kind := ErrTransientProvider
	if status == 400 && looksLikePolicyRefusal(body) {
		kind = ErrContentPolicy
	}
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: status,
		Message:    truncate(body, 200),
		Err:        kind,
	}
}

// SpeechCategory is a user-actionable speech failure class.
type SpeechCategory string

const (
	SpeechNotConfigured   SpeechCategory = "not_configured"
	SpeechUnavailable     SpeechCategory = "unavailable"
	SpeechUnauthenticated SpeechCategory = "unauthenticated"
	SpeechQuotaExhausted  SpeechCategory = "quota_exhausted"
	SpeechRateLimited     SpeechCategory = "rate_limited"
	SpeechInvalidVoice    SpeechCategory = "invalid_voice"
	SpeechInvalidInput    SpeechCategory = "invalid_input"
	SpeechEmptyAudio      SpeechCategory = "empty_audio"
	SpeechInvalidAudio    SpeechCategory = "invalid_audio"
)

// SpeechError carries the category, a message safe to show users and a
// debugging detail that is not.
type SpeechError struct {
	Category   SpeechCategory
	StatusCode int
	Message    string
	Detail     string
}

func (e *SpeechError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("speech %s: %s (%s)", e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("speech %s: %s", e.Category, e.Message)
}

// DatabaseError represents a database operation error with context
type DatabaseError struct {
	Op    string // Operation that failed (e.g., "insert", "update", "query")
	Table string // Table involved
	Err   error  // Underlying error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s operation on %s: %v", e.Op, e.Table, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// NewDatabaseError creates a new database error
func NewDatabaseError(op, table string, err error) error {
	return &DatabaseError{
		Op:    op,
		Table: table,
		Err:   err,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s (value: %v): %s",
			e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// IsRetryable reports whether another attempt against the same provider
// could succeed. Missing configuration and policy refusals never can.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderNotConfigured) || errors.Is(err, ErrContentPolicy) {
		return false
	}
	return errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, ErrTransientProvider) ||
		errors.Is(err, ErrMalformedOutput) ||
		errors.Is(err, ErrDatabaseConnection) ||
		!isClassified(err)
}

// IsNotFound checks if error indicates a missing resource
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsContentPolicy checks if a provider refused the prompt
func IsContentPolicy(err error) bool {
	return errors.Is(err, ErrContentPolicy)
}

// IsNotConfigured checks if a provider was skipped for missing credentials
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrProviderNotConfigured)
}

// WrapWithContext adds context to an error
func WrapWithContext(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// isClassified reports whether err maps to any known sentinel. Unclassified
// errors (network resets, DNS failures) are treated as transient.
func isClassified(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return true
	}
	for _, s := range []error{ErrRecordNotFound, ErrSessionNotFound, ErrInvalidInput, ErrMissingRequired, ErrOutOfRange, ErrDatabaseQuery} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

func looksLikePolicyRefusal(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range []string{"content_policy", "content policy", "safety system", "flagged"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// truncate keeps at most max runes so multi-byte text is never split.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
