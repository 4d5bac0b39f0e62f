package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"termagent/internal/logging"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"
)

// OllamaConfig holds configuration for the Ollama API client.
type OllamaConfig struct {
	BaseURL     string        // Default: "http://localhost:11434"
	APIKey      string        // Optional, for remote Ollama servers with auth
	Model       string        // e.g., "llama3.1", "qwen2.5-coder:7b"
	Temperature float32       // Temperature for generation
	MaxTokens   int32         // Max output tokens
	HTTPTimeout time.Duration // HTTP request timeout (default: 120s)
	MaxRetries  int           // Maximum retry attempts (default: 3)
	RetryDelay  time.Duration // Initial delay between retries (default: 1s)
}

// OllamaClient implements Client for a local or remote Ollama server.
type OllamaClient struct {
	client            *api.Client
	config            OllamaConfig
	tools             []*genai.Tool
	systemInstruction string
	mu                sync.RWMutex
}

// authTransport adds an Authorization header to requests.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(reqClone)
}

// NewOllamaClient creates a new Ollama API client.
func NewOllamaClient(config OllamaConfig) (*OllamaClient, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 8192
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 120 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 1 * time.Second
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}

	if baseURL.Scheme == "http" {
		host := baseURL.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			logging.Warn("Ollama connection uses unencrypted HTTP to remote host",
				"host", host,
				"recommendation", "use HTTPS for remote Ollama servers")
		}
	}

	var httpClient *http.Client
	if config.APIKey != "" {
		httpClient = &http.Client{
			Timeout: config.HTTPTimeout,
			Transport: &authTransport{
				base:   http.DefaultTransport,
				apiKey: config.APIKey,
			},
		}
	} else {
		httpClient = &http.Client{
			Timeout: config.HTTPTimeout,
		}
	}

	return &OllamaClient{
		client: api.NewClient(baseURL, httpClient),
		config: config,
		tools:  make([]*genai.Tool, 0),
	}, nil
}

// SendMessage sends a message and returns a streaming response.
func (c *OllamaClient) SendMessage(ctx context.Context, message string) (*StreamingResponse, error) {
	return c.SendMessageWithHistory(ctx, nil, message)
}

// SendMessageWithHistory sends a message with conversation history.
func (c *OllamaClient) SendMessageWithHistory(ctx context.Context, history []*genai.Content, message string) (*StreamingResponse, error) {
	var messages []api.Message

	// Models without native tool support get the conversation flattened
	// to text, including any prior tool calls and results.
	if c.NeedsToolCallFallback() {
		messages = c.convertHistoryForFallback(history, nil)
		if message != "" {
			messages = append(messages, api.Message{Role: "user", Content: message})
		}
	} else {
		messages = c.convertHistoryToMessages(history, message)
	}

	return c.streamChat(ctx, c.buildChatRequest(messages))
}

// SendFunctionResponse sends function call results back to the model.
func (c *OllamaClient) SendFunctionResponse(ctx context.Context, history []*genai.Content, results []*genai.FunctionResponse) (*StreamingResponse, error) {
	var messages []api.Message

	if c.NeedsToolCallFallback() {
		messages = c.convertHistoryForFallback(history, results)
	} else {
		messages = c.convertHistoryWithResults(history, results)
	}

	return c.streamChat(ctx, c.buildChatRequest(messages))
}

// buildChatRequest assembles a streaming chat request with the current
// model options and, for capable models, the native tool declarations.
func (c *OllamaClient) buildChatRequest(messages []api.Message) *api.ChatRequest {
	req := &api.ChatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   Ptr(true),
		Options: map[string]interface{}{
			"num_predict": c.config.MaxTokens,
		},
	}
	if c.config.Temperature > 0 {
		req.Options["temperature"] = c.config.Temperature
	}

	if !c.NeedsToolCallFallback() {
		c.mu.RLock()
		if len(c.tools) > 0 {
			req.Tools = c.convertToolsToOllama()
		}
		c.mu.RUnlock()
	}
	return req
}

// streamChat performs a streaming chat request with retry logic.
func (c *OllamaClient) streamChat(ctx context.Context, req *api.ChatRequest) (*StreamingResponse, error) {
	var lastErr error
	maxDelay := DefaultRetryConfig().MaxDelay

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(c.config.RetryDelay, attempt-1, maxDelay)
			logging.Info("retrying Ollama request", "attempt", attempt, "delay", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		response, err := c.doStreamChat(ctx, req)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return nil, c.wrapOllamaError(err)
		}

		logging.Warn("Ollama request failed, will retry", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.config.MaxRetries, c.wrapOllamaError(lastErr))
}

// doStreamChat performs a single streaming chat request.
func (c *OllamaClient) doStreamChat(ctx context.Context, req *api.ChatRequest) (*StreamingResponse, error) {
	chunks := make(chan ResponseChunk, 10)
	done := make(chan struct{})
	fallback := c.NeedsToolCallFallback()

	go func() {
		defer close(chunks)
		defer close(done)

		var inputTokens, outputTokens int
		var fallbackText strings.Builder

		err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			chunk := ResponseChunk{}

			// Parts mirror the text and tool calls so history
			// reconstruction keeps every FunctionCall part.
			if resp.Message.Content != "" {
				chunk.Text = resp.Message.Content
				chunk.Parts = append(chunk.Parts, genai.NewPartFromText(resp.Message.Content))
				if fallback {
					fallbackText.WriteString(resp.Message.Content)
				}
			}

			for i, tc := range resp.Message.ToolCalls {
				fc := c.convertOllamaToolCallToGenai(tc, i)
				chunk.FunctionCalls = append(chunk.FunctionCalls, fc)
				chunk.Parts = append(chunk.Parts, &genai.Part{FunctionCall: fc})
			}

			if resp.Done {
				chunk.Done = true
				chunk.FinishReason = genai.FinishReasonStop

				if resp.PromptEvalCount > 0 {
					inputTokens = resp.PromptEvalCount
				}
				if resp.EvalCount > 0 {
					outputTokens = resp.EvalCount
				}

				chunk.InputTokens = inputTokens
				chunk.OutputTokens = outputTokens

				// Models without native tool support emit calls as
				// JSON in their reply text.
				if fallback {
					for _, fc := range ParseToolCallsFromText(fallbackText.String()) {
						chunk.FunctionCalls = append(chunk.FunctionCalls, fc)
						chunk.Parts = append(chunk.Parts, &genai.Part{FunctionCall: fc})
					}
				}
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil {
			select {
			case chunks <- ResponseChunk{Error: c.wrapOllamaError(err), Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return &StreamingResponse{
		Chunks: chunks,
		Done:   done,
	}, nil
}

// SetSystemInstruction sets the system-level instruction for the model.
func (c *OllamaClient) SetSystemInstruction(instruction string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systemInstruction = instruction
}

// SetTools sets the tools available for function calling.
func (c *OllamaClient) SetTools(tools []*genai.Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = tools
}

// CountTokens estimates tokens for the given contents. Ollama reports
// counts in responses but has no counting endpoint, so this estimates
// by character count (roughly 4 characters per token).
func (c *OllamaClient) CountTokens(ctx context.Context, contents []*genai.Content) (*genai.CountTokensResponse, error) {
	totalChars := 0
	for _, content := range contents {
		totalChars += 4 * 4 // role overhead
		for _, part := range content.Parts {
			if part.Text != "" {
				totalChars += len(part.Text)
			}
			if part.FunctionCall != nil {
				totalChars += len(part.FunctionCall.Name) + 40
				if argsJSON, err := json.Marshal(part.FunctionCall.Args); err == nil {
					totalChars += len(argsJSON)
				}
			}
			if part.FunctionResponse != nil {
				totalChars += len(part.FunctionResponse.Name) + 40
				if respJSON, err := json.Marshal(part.FunctionResponse.Response); err == nil {
					totalChars += len(respJSON)
				}
			}
		}
	}

	return &genai.CountTokensResponse{
		TotalTokens: int32(totalChars / 4),
	}, nil
}

// GetModel returns the model name.
func (c *OllamaClient) GetModel() string {
	return c.config.Model
}

// SetModel changes the model for this client.
func (c *OllamaClient) SetModel(modelName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.Model = modelName
}

// NeedsToolCallFallback reports whether this model needs text-based tool
// call parsing instead of native function calling.
func (c *OllamaClient) NeedsToolCallFallback() bool {
	profile := GetModelProfile(c.config.Model)
	return !profile.SupportsTools
}

// Close closes the client connection.
func (c *OllamaClient) Close() error {
	return nil
}

// ListModels returns the models available on the Ollama server.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, c.wrapOllamaError(err)
	}

	models := make([]string, 0, len(resp.Models))
	for _, model := range resp.Models {
		models = append(models, model.Name)
	}
	return models, nil
}

// Healthcheck verifies that the Ollama server is reachable.
func (c *OllamaClient) Healthcheck(ctx context.Context) error {
	// No explicit ping in the SDK; List doubles as a healthcheck.
	if _, err := c.client.List(ctx); err != nil {
		return c.wrapOllamaError(err)
	}
	return nil
}

// IsModelAvailable checks if a model is installed locally.
func (c *OllamaClient) IsModelAvailable(ctx context.Context, modelName string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}

	for _, m := range models {
		if m == modelName || m == modelName+":latest" ||
			strings.HasPrefix(m, modelName+":") {
			return true, nil
		}
	}
	return false, nil
}

// convertHistoryToMessages converts genai history to Ollama messages.
func (c *OllamaClient) convertHistoryToMessages(history []*genai.Content, newMessage string) []api.Message {
	messages := make([]api.Message, 0, len(history)+2)

	c.mu.RLock()
	sysInstruction := c.systemInstruction
	c.mu.RUnlock()
	if sysInstruction != "" {
		messages = append(messages, api.Message{Role: "system", Content: sysInstruction})
	}

	for _, content := range history {
		msg := c.convertContentToMessage(content)
		if msg.Role != "" {
			messages = append(messages, msg)
		}
	}

	if newMessage != "" {
		messages = append(messages, api.Message{
			Role:    "user",
			Content: newMessage,
		})
	}

	return messages
}

// convertContentToMessage converts a single genai.Content to api.Message.
func (c *OllamaClient) convertContentToMessage(content *genai.Content) api.Message {
	msg := api.Message{}

	switch content.Role {
	case genai.RoleUser:
		msg.Role = "user"
	case genai.RoleModel:
		msg.Role = "assistant"
	default:
		msg.Role = string(content.Role)
	}

	var textParts []string
	var toolCalls []api.ToolCall

	for _, part := range content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
		if part.FunctionCall != nil {
			toolCalls = append(toolCalls, c.convertGenaiToolCallToOllama(part.FunctionCall))
		}
	}

	msg.Content = strings.Join(textParts, "\n")
	msg.ToolCalls = toolCalls

	return msg
}

// convertHistoryForFallback converts history for models using text-based
// tool calling: FunctionCall parts in model messages become plain text,
// and tool results become user messages.
func (c *OllamaClient) convertHistoryForFallback(history []*genai.Content, results []*genai.FunctionResponse) []api.Message {
	messages := make([]api.Message, 0, len(history)+len(results)+1)

	if sysInstruction := c.fallbackSystemInstruction(); sysInstruction != "" {
		messages = append(messages, api.Message{Role: "system", Content: sysInstruction})
	}

	for _, content := range history {
		msg := api.Message{}

		switch content.Role {
		case genai.RoleUser:
			msg.Role = "user"
		case genai.RoleModel:
			msg.Role = "assistant"
		default:
			msg.Role = string(content.Role)
		}

		var textParts []string
		for _, part := range content.Parts {
			if part.Text != "" {
				textParts = append(textParts, part.Text)
			}
			if part.FunctionCall != nil {
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				textParts = append(textParts, fmt.Sprintf(
					"```json\n{\"tool\": \"%s\", \"args\": %s}\n```",
					part.FunctionCall.Name, string(argsJSON)))
			}
			if part.FunctionResponse != nil {
				textParts = append(textParts, fmt.Sprintf(
					"Tool result for %s:\n%s",
					part.FunctionResponse.Name, functionResponseText(part.FunctionResponse)))
			}
		}

		msg.Content = strings.Join(textParts, "\n")
		if msg.Content != "" {
			messages = append(messages, msg)
		}
	}

	for _, result := range results {
		messages = append(messages, api.Message{
			Role:    "user",
			Content: fmt.Sprintf("Tool result for %s:\n%s", result.Name, functionResponseText(result)),
		})
	}

	return messages
}

// fallbackSystemInstruction extends the system instruction with the JSON
// tool-calling protocol for models without native function calling.
func (c *OllamaClient) fallbackSystemInstruction() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var decls []*genai.FunctionDeclaration
	for _, tool := range c.tools {
		decls = append(decls, tool.FunctionDeclarations...)
	}
	return c.systemInstruction + ToolCallFallbackPrompt(decls)
}

// convertHistoryWithResults converts history plus tool results for models
// with native tool support.
func (c *OllamaClient) convertHistoryWithResults(history []*genai.Content, results []*genai.FunctionResponse) []api.Message {
	messages := make([]api.Message, 0, len(history)+len(results))

	for _, content := range history {
		msg := c.convertContentToMessage(content)
		if msg.Role != "" {
			messages = append(messages, msg)
		}
	}

	for _, result := range results {
		messages = append(messages, api.Message{
			Role:       "tool",
			Content:    functionResponseText(result),
			ToolName:   result.Name,
			ToolCallID: result.ID,
		})
	}

	return messages
}

// functionResponseText extracts the model-readable content of a function
// response payload.
func functionResponseText(result *genai.FunctionResponse) string {
	var contentStr string
	if result.Response != nil {
		if val, ok := result.Response["content"].(string); ok {
			contentStr = val
		} else if jsonBytes, err := json.Marshal(result.Response); err == nil {
			contentStr = string(jsonBytes)
		}
		if errStr, ok := result.Response["error"].(string); ok && errStr != "" {
			contentStr = "Error: " + errStr
		}
	}
	if contentStr == "" {
		contentStr = "Operation completed"
	}
	return contentStr
}

// convertToolsToOllama converts genai.Tool declarations to Ollama format.
func (c *OllamaClient) convertToolsToOllama() []api.Tool {
	tools := make([]api.Tool, 0)

	for _, tool := range c.tools {
		for _, decl := range tool.FunctionDeclarations {
			params := api.ToolFunctionParameters{
				Type:       "object",
				Properties: api.NewToolPropertiesMap(),
			}

			if decl.Parameters != nil {
				if len(decl.Parameters.Required) > 0 {
					params.Required = decl.Parameters.Required
				}

				for name, propSchema := range decl.Parameters.Properties {
					prop := api.ToolProperty{
						Description: propSchema.Description,
					}
					if propSchema.Type != "" {
						prop.Type = api.PropertyType{strings.ToLower(string(propSchema.Type))}
					}
					if len(propSchema.Enum) > 0 {
						enumVals := make([]any, len(propSchema.Enum))
						for i, v := range propSchema.Enum {
							enumVals[i] = v
						}
						prop.Enum = enumVals
					}
					params.Properties.Set(name, prop)
				}
			}

			tools = append(tools, api.Tool{
				Type: "function",
				Function: api.ToolFunction{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}

	return tools
}

// convertOllamaToolCallToGenai converts an Ollama tool call to genai form.
func (c *OllamaClient) convertOllamaToolCallToGenai(tc api.ToolCall, index int) *genai.FunctionCall {
	id := tc.ID
	if id == "" {
		id = fmt.Sprintf("call_%d", index)
		if tc.Function.Index > 0 {
			id = fmt.Sprintf("call_%d", tc.Function.Index)
		}
	}
	return &genai.FunctionCall{
		ID:   id,
		Name: tc.Function.Name,
		Args: tc.Function.Arguments.ToMap(),
	}
}

// convertGenaiToolCallToOllama converts a genai.FunctionCall to Ollama form.
func (c *OllamaClient) convertGenaiToolCallToOllama(fc *genai.FunctionCall) api.ToolCall {
	args := api.NewToolCallFunctionArguments()
	for k, v := range fc.Args {
		args.Set(k, v)
	}
	return api.ToolCall{
		ID: fc.ID,
		Function: api.ToolCallFunction{
			Name:      fc.Name,
			Arguments: args,
		},
	}
}

// IsModelNotFoundError checks if the error indicates a missing model.
func IsModelNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()

	if strings.Contains(errStr, "is not installed") ||
		(strings.Contains(errStr, "model") && strings.Contains(errStr, "not found")) {
		return true
	}

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
		return true
	}

	return false
}

// wrapOllamaError wraps Ollama errors with actionable messages.
func (c *OllamaClient) wrapOllamaError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") {
		return fmt.Errorf("Ollama server is not running (start it with 'ollama serve'): %w", err)
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return fmt.Errorf("Ollama request timed out (the first request loads the model and is slow): %w", err)
	}

	if IsModelNotFoundError(err) {
		return fmt.Errorf("model %q is not installed (run 'ollama pull %s'): %w", c.config.Model, c.config.Model, err)
	}

	return err
}
