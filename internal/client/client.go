// Package client provides backend connections to the model providers:
// the Gemini API, a local Ollama server, and a scripted backend driven
// by canned responses. All backends speak the same streaming interface
// so the orchestration loop never knows which one it is talking to.
package client

import (
	"context"

	"google.golang.org/genai"
)

// BackendKind names a model backend.
type BackendKind string

const (
	BackendGemini   BackendKind = "gemini"
	BackendOllama   BackendKind = "ollama"
	BackendScripted BackendKind = "scripted"
)

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string // Model identifier (e.g., "gemini-3-flash-preview")
	Name        string // Human-readable name
	Description string // Short description
	Backend     BackendKind
}

// AvailableModels is the list of known models across backends. Ollama
// accepts any model name from 'ollama list'; this only lists the tested ones.
var AvailableModels = []ModelInfo{
	{
		ID:          "gemini-3-flash-preview",
		Name:        "Gemini 3 Flash",
		Description: "Fast and cheap",
		Backend:     BackendGemini,
	},
	{
		ID:          "gemini-3-pro-preview",
		Name:        "Gemini 3 Pro",
		Description: "Most capable",
		Backend:     BackendGemini,
	},
	{
		ID:          "gemini-2.5-flash",
		Name:        "Gemini 2.5 Flash",
		Description: "Previous generation, fast",
		Backend:     BackendGemini,
	},
	{
		ID:          "qwen2.5-coder:7b",
		Name:        "Qwen 2.5 Coder",
		Description: "Local coding model via Ollama",
		Backend:     BackendOllama,
	},
	{
		ID:          "llama3.1",
		Name:        "Llama 3.1",
		Description: "Local general model via Ollama",
		Backend:     BackendOllama,
	},
}

// GetModelInfo returns information about a specific model.
func GetModelInfo(modelID string) (ModelInfo, bool) {
	for _, m := range AvailableModels {
		if m.ID == modelID {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// Client defines the interface for model interactions.
type Client interface {
	// SendMessage sends a user message and returns a streaming response.
	SendMessage(ctx context.Context, message string) (*StreamingResponse, error)

	// SendMessageWithHistory sends a message with conversation history.
	SendMessageWithHistory(ctx context.Context, history []*genai.Content, message string) (*StreamingResponse, error)

	// SendFunctionResponse sends function call results back to the model.
	SendFunctionResponse(ctx context.Context, history []*genai.Content, results []*genai.FunctionResponse) (*StreamingResponse, error)

	// SetTools sets the tools available for the model to use.
	SetTools(tools []*genai.Tool)

	// SetSystemInstruction sets the system-level instruction for the model.
	// Passed via the API's native system parameter, never injected as a
	// user message.
	SetSystemInstruction(instruction string)

	// CountTokens counts (or estimates) tokens for the given contents.
	CountTokens(ctx context.Context, contents []*genai.Content) (*genai.CountTokensResponse, error)

	// GetModel returns the model name.
	GetModel() string

	// SetModel changes the model for this client.
	SetModel(modelName string)

	// Close closes the client connection.
	Close() error
}

// StreamingResponse represents a streaming response from the model.
type StreamingResponse struct {
	// Chunks is a channel that receives response chunks.
	Chunks <-chan ResponseChunk

	// Done is closed when the response is complete.
	Done <-chan struct{}
}

// ResponseChunk is a single chunk in a streaming response.
type ResponseChunk struct {
	// Text contains any text content in this chunk.
	Text string

	// Thinking contains reasoning content, for models that emit it.
	Thinking string

	// FunctionCalls contains any function calls in this chunk.
	FunctionCalls []*genai.FunctionCall

	// Parts contains the original parts from the response.
	Parts []*genai.Part

	// Error contains any error that occurred.
	Error error

	// Done indicates if this is the final chunk.
	Done bool

	// FinishReason indicates why the response finished.
	FinishReason genai.FinishReason

	// InputTokens from API usage metadata (if available).
	InputTokens int

	// OutputTokens from API usage metadata (if available).
	OutputTokens int
}

// Response is a complete, collected model response.
type Response struct {
	// Text is the accumulated text response.
	Text string

	// Thinking is the accumulated reasoning content.
	Thinking string

	// FunctionCalls contains all function calls from the response.
	FunctionCalls []*genai.FunctionCall

	// Parts contains all original parts from the response.
	Parts []*genai.Part

	// FinishReason indicates why the response finished.
	FinishReason genai.FinishReason

	// InputTokens from API usage metadata (if available).
	InputTokens int

	// OutputTokens from API usage metadata (if available).
	OutputTokens int
}

// Collect drains all chunks from a streaming response into one Response.
func (sr *StreamingResponse) Collect() (*Response, error) {
	resp := &Response{}

	for chunk := range sr.Chunks {
		if chunk.Error != nil {
			return nil, chunk.Error
		}

		resp.Text += chunk.Text
		resp.Thinking += chunk.Thinking
		resp.FunctionCalls = append(resp.FunctionCalls, chunk.FunctionCalls...)
		resp.Parts = append(resp.Parts, chunk.Parts...)

		if chunk.Done {
			resp.FinishReason = chunk.FinishReason
		}

		// Keep the latest non-zero usage metadata (typically the final chunk).
		if chunk.InputTokens > 0 {
			resp.InputTokens = chunk.InputTokens
		}
		if chunk.OutputTokens > 0 {
			resp.OutputTokens += chunk.OutputTokens
		}
	}

	return resp, nil
}
