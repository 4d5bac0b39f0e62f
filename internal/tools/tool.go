// Package tools defines the tool invocation contract and the concrete
// tools the model may call: file I/O, shell, search, web fetch, project
// structure and log reading. Every tool validates its arguments into a
// typed parameter value, binds them into an Invocation, and executes it
// to a ToolResult that can always be appended to the conversation.
package tools

import (
	"context"
	"fmt"

	"termagent/internal/classify"
	"termagent/internal/logging"

	"google.golang.org/genai"
)

// Tool is a named, schema-validated capability the model may invoke.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Declaration returns the function declaration advertised to the model.
	Declaration() *genai.FunctionDeclaration

	// ValidateParams checks raw arguments and returns a tool-specific
	// validated parameter value, or an error describing what is invalid.
	ValidateParams(args map[string]any) (ValidatedParams, error)

	// CreateInvocation binds validated parameters into a ready-to-run
	// invocation. Pure and cheap; all failing work happens in Execute.
	CreateInvocation(params ValidatedParams) Invocation
}

// ValidatedParams is the tool-specific value produced by ValidateParams
// and consumed by CreateInvocation of the same tool.
type ValidatedParams any

// Invocation is a bound, ready-to-run unit of tool work. Execute never
// returns an error to its caller: failures are folded into the ToolResult.
type Invocation interface {
	Execute(ctx context.Context) ToolResult
}

// ToolResult is the outcome of one tool execution. LLMContent is always
// populated, even on failure, so the result can be appended directly to
// the conversation as a function response.
type ToolResult struct {
	LLMContent string
	Error      *ToolError
}

// ToolError carries a failure message and its classified type.
type ToolError struct {
	Message string
	Type    classify.ErrorType
}

// Failed reports whether the result carries an error.
func (r ToolResult) Failed() bool {
	return r.Error != nil
}

// NewResult creates a successful tool result.
func NewResult(content string) ToolResult {
	return ToolResult{LLMContent: content}
}

// NewErrorResult creates a failed result. The message doubles as the
// model-readable content.
func NewErrorResult(message string, errType classify.ErrorType) ToolResult {
	return ToolResult{
		LLMContent: message,
		Error:      &ToolError{Message: message, Type: errType},
	}
}

// ToMap converts the result to a function-response payload.
func (r ToolResult) ToMap() map[string]any {
	m := map[string]any{
		"content": r.LLMContent,
	}
	if r.Error != nil {
		m["error"] = r.Error.Message
		m["error_type"] = string(r.Error.Type)
	}
	return m
}

// SafeExecute runs an invocation, converting any panic into an error
// result so a misbehaving tool can never take down the orchestration loop.
func SafeExecute(ctx context.Context, inv Invocation) (result ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("tool panicked", "panic", rec)
			result = NewErrorResult(fmt.Sprintf("tool panicked: %v", rec), classify.ErrorTypeUnknown)
		}
	}()
	return inv.Execute(ctx)
}

// ValidationError is a tool argument validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// GetString extracts a string argument from the args map.
func GetString(args map[string]any, key string) (string, bool) {
	val, ok := args[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetStringDefault extracts a string argument with a default value.
func GetStringDefault(args map[string]any, key, defaultVal string) string {
	if val, ok := GetString(args, key); ok {
		return val
	}
	return defaultVal
}

// GetInt extracts an integer argument from the args map.
func GetInt(args map[string]any, key string) (int, bool) {
	val, ok := args[key]
	if !ok {
		return 0, false
	}
	// The wire format may deliver numbers as float64
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// GetIntDefault extracts an integer argument with a default value.
func GetIntDefault(args map[string]any, key string, defaultVal int) int {
	if val, ok := GetInt(args, key); ok {
		return val
	}
	return defaultVal
}

// GetBool extracts a boolean argument from the args map.
func GetBool(args map[string]any, key string) (bool, bool) {
	val, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// GetBoolDefault extracts a boolean argument with a default value.
func GetBoolDefault(args map[string]any, key string, defaultVal bool) bool {
	if val, ok := GetBool(args, key); ok {
		return val
	}
	return defaultVal
}

// GetStringSlice extracts a string list argument from the args map.
func GetStringSlice(args map[string]any, key string) ([]string, bool) {
	val, ok := args[key]
	if !ok {
		return nil, false
	}
	raw, ok := val.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
