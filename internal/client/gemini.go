package client

import (
	"context"
	"fmt"
	"time"

	"termagent/internal/config"
	"termagent/internal/logging"
	"termagent/internal/security"

	"google.golang.org/genai"
)

// GeminiClient wraps the Google Gemini API.
type GeminiClient struct {
	client            *genai.Client
	model             string
	config            *genai.GenerateContentConfig
	tools             []*genai.Tool
	retry             RetryConfig
	systemInstruction string
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (Client, error) {
	loadedKey := security.GetGeminiKey(cfg.API.GeminiKey)
	if !loadedKey.IsSet() {
		return nil, fmt.Errorf("Gemini API key required: set TERMAGENT_GEMINI_KEY or GEMINI_API_KEY, or add api.gemini_key to the config file")
	}

	logging.Debug("loaded Gemini API key",
		"source", loadedKey.Source,
		"model", cfg.Model.Name)

	if err := security.ValidateKeyFormat(loadedKey.Value); err != nil {
		return nil, fmt.Errorf("invalid Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  loadedKey.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:     Ptr(cfg.Model.Temperature),
		MaxOutputTokens: cfg.Model.MaxOutputTokens,
	}

	retry := DefaultRetryConfig()
	if cfg.API.Retry.MaxRetries > 0 {
		retry.MaxRetries = cfg.API.Retry.MaxRetries
	}
	if cfg.API.Retry.RetryDelay > 0 {
		retry.RetryDelay = cfg.API.Retry.RetryDelay
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model.Name,
		config: genConfig,
		retry:  retry,
	}, nil
}

// SetSystemInstruction sets the system-level instruction for the model.
func (c *GeminiClient) SetSystemInstruction(instruction string) {
	c.systemInstruction = instruction
}

// SetTools sets the tools available for function calling.
func (c *GeminiClient) SetTools(tools []*genai.Tool) {
	c.tools = tools
}

// SendMessage sends a user message and returns a streaming response.
func (c *GeminiClient) SendMessage(ctx context.Context, message string) (*StreamingResponse, error) {
	return c.SendMessageWithHistory(ctx, nil, message)
}

// SendMessageWithHistory sends a message with conversation history.
func (c *GeminiClient) SendMessageWithHistory(ctx context.Context, history []*genai.Content, message string) (*StreamingResponse, error) {
	contents := make([]*genai.Content, len(history)+1)
	copy(contents, history)
	contents[len(contents)-1] = genai.NewContentFromText(message, genai.RoleUser)

	return c.generateContentStream(ctx, contents)
}

// SendFunctionResponse sends function call results back to the model.
func (c *GeminiClient) SendFunctionResponse(ctx context.Context, history []*genai.Content, results []*genai.FunctionResponse) (*StreamingResponse, error) {
	var parts []*genai.Part
	for _, result := range results {
		part := genai.NewPartFromFunctionResponse(result.Name, result.Response)
		part.FunctionResponse.ID = result.ID
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		parts = append(parts, genai.NewPartFromText(" "))
	}

	funcContent := &genai.Content{
		Role:  genai.RoleUser,
		Parts: parts,
	}

	contents := make([]*genai.Content, len(history)+1)
	copy(contents, history)
	contents[len(contents)-1] = funcContent

	return c.generateContentStream(ctx, contents)
}

// sanitizeContents validates and fixes all Contents before sending to the
// API: each Part must carry exactly one of Text, FunctionCall or
// FunctionResponse, and each Content must have at least one part.
func sanitizeContents(contents []*genai.Content) []*genai.Content {
	var result []*genai.Content

	for _, content := range contents {
		if content == nil {
			continue
		}

		var validParts []*genai.Part
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil || part.FunctionResponse != nil || part.Text != "" || part.InlineData != nil {
				validParts = append(validParts, part)
			}
		}

		if len(validParts) == 0 {
			validParts = []*genai.Part{genai.NewPartFromText(" ")}
		}

		result = append(result, &genai.Content{
			Role:  content.Role,
			Parts: validParts,
		})
	}

	if len(result) == 0 {
		result = []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(" ")},
		}}
	}

	return result
}

// generateContentStream handles streaming content generation with retries.
func (c *GeminiClient) generateContentStream(ctx context.Context, contents []*genai.Content) (*StreamingResponse, error) {
	contents = sanitizeContents(contents)

	var lastErr error

	maxDelay := c.retry.MaxDelay
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(c.retry.RetryDelay, attempt-1, maxDelay)
			logging.Info("retrying Gemini request", "attempt", attempt, "delay", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		response, err := c.doGenerateContentStream(ctx, contents)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return nil, err
		}

		logging.Warn("Gemini request failed, will retry", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.retry.MaxRetries, lastErr)
}

// resetTimer safely resets a timer to a new duration.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// doGenerateContentStream performs a single streaming request attempt.
func (c *GeminiClient) doGenerateContentStream(ctx context.Context, contents []*genai.Content) (*StreamingResponse, error) {
	genConfig := *c.config
	if c.systemInstruction != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(c.systemInstruction, genai.RoleUser)
	}
	if len(c.tools) > 0 {
		genConfig.Tools = c.tools
	}

	iter := c.client.Models.GenerateContentStream(ctx, c.model, contents, &genConfig)

	chunks := make(chan ResponseChunk, 10)
	done := make(chan struct{})

	// The stream is considered dead if no data arrives for this long.
	const streamIdleTimeout = 30 * time.Second

	go func() {
		defer close(chunks)
		defer close(done)

		type iterResult struct {
			resp *genai.GenerateContentResponse
			err  error
		}
		iterCh := make(chan iterResult)

		go func() {
			defer close(iterCh)
			for resp, err := range iter {
				iterCh <- iterResult{resp, err}
			}
		}()

		idleTimer := time.NewTimer(streamIdleTimeout)
		defer idleTimer.Stop()

	streamLoop:
		for {
			select {
			case <-ctx.Done():
				select {
				case chunks <- ResponseChunk{Error: ctx.Err(), Done: true}:
				default:
				}
				return

			case <-idleTimer.C:
				logging.Warn("stream idle timeout exceeded", "timeout", streamIdleTimeout)
				chunks <- ResponseChunk{
					Error: fmt.Errorf("stream idle timeout: no data received for %v", streamIdleTimeout),
					Done:  true,
				}
				return

			case result, ok := <-iterCh:
				resetTimer(idleTimer, streamIdleTimeout)

				if !ok {
					break streamLoop
				}
				if result.err != nil {
					select {
					case chunks <- ResponseChunk{Error: result.err, Done: true}:
					case <-ctx.Done():
					}
					break streamLoop
				}
				if result.resp == nil {
					break streamLoop
				}

				chunk := processResponse(result.resp)

				select {
				case chunks <- chunk:
				case <-ctx.Done():
					select {
					case chunks <- ResponseChunk{Error: ctx.Err(), Done: true}:
					default:
					}
					return
				}

				if chunk.Done {
					break streamLoop
				}
			}
		}
	}()

	return &StreamingResponse{
		Chunks: chunks,
		Done:   done,
	}, nil
}

// processResponse converts a Gemini response to a ResponseChunk.
func processResponse(resp *genai.GenerateContentResponse) ResponseChunk {
	chunk := ResponseChunk{}

	if resp.UsageMetadata != nil {
		chunk.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		chunk.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 {
		chunk.Done = true
		return chunk
	}

	candidate := resp.Candidates[0]
	chunk.FinishReason = candidate.FinishReason

	if candidate.Content != nil {
		// Keep original parts intact (preserves ThoughtSignature).
		chunk.Parts = candidate.Content.Parts

		for _, part := range candidate.Content.Parts {
			if part.Thought {
				chunk.Thinking += part.Text
				continue
			}
			if part.Text != "" {
				chunk.Text += part.Text
			}
			if part.FunctionCall != nil {
				chunk.FunctionCalls = append(chunk.FunctionCalls, part.FunctionCall)
			}
		}
	}

	if candidate.FinishReason != "" {
		chunk.Done = true
	}

	return chunk
}

// Close closes the client connection.
func (c *GeminiClient) Close() error {
	// The genai client has no explicit close.
	return nil
}

// CountTokens counts tokens for the given contents with retry logic.
func (c *GeminiClient) CountTokens(ctx context.Context, contents []*genai.Content) (*genai.CountTokensResponse, error) {
	var lastErr error

	maxDelay := c.retry.MaxDelay
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(c.retry.RetryDelay, attempt-1, maxDelay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.client.Models.CountTokens(ctx, c.model, contents, nil)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return nil, err
		}

		logging.Warn("CountTokens failed, will retry", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.retry.MaxRetries, lastErr)
}

// GetModel returns the model name.
func (c *GeminiClient) GetModel() string {
	return c.model
}

// SetModel changes the model for this client.
func (c *GeminiClient) SetModel(modelName string) {
	c.model = modelName
}

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}
