package client

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"termagent/internal/logging"

	"google.golang.org/genai"
)

// turnSeparator splits a script file into model turns.
const turnSeparator = "\n---\n"

// ScriptedClient replays a fixed sequence of model turns. Each call to
// the client consumes the next turn; tool calls embedded in the turn
// text as JSON blocks are parsed the same way fallback Ollama models
// are. Useful for deterministic runs and for testing the orchestration
// loop without a live backend.
type ScriptedClient struct {
	turns             []string
	next              int
	model             string
	tools             []*genai.Tool
	systemInstruction string
	mu                sync.Mutex
}

// NewScriptedClient loads a script file. Turns are separated by a line
// containing only "---".
func NewScriptedClient(scriptPath string) (*ScriptedClient, error) {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	turns := splitScript(string(data))
	if len(turns) == 0 {
		return nil, fmt.Errorf("script %s contains no turns", scriptPath)
	}

	logging.Debug("loaded scripted backend", "path", scriptPath, "turns", len(turns))

	return &ScriptedClient{
		turns: turns,
		model: "scripted",
	}, nil
}

// NewScriptedClientFromTurns builds a scripted client from in-memory turns.
func NewScriptedClientFromTurns(turns []string) *ScriptedClient {
	return &ScriptedClient{
		turns: turns,
		model: "scripted",
	}
}

func splitScript(data string) []string {
	normalized := strings.ReplaceAll(data, "\r\n", "\n")
	var turns []string
	for _, raw := range strings.Split(normalized, turnSeparator) {
		turn := strings.TrimSpace(raw)
		if turn != "" {
			turns = append(turns, turn)
		}
	}
	return turns
}

// SendMessage consumes the next scripted turn.
func (c *ScriptedClient) SendMessage(ctx context.Context, message string) (*StreamingResponse, error) {
	return c.nextTurn(ctx)
}

// SendMessageWithHistory consumes the next scripted turn; history is ignored.
func (c *ScriptedClient) SendMessageWithHistory(ctx context.Context, history []*genai.Content, message string) (*StreamingResponse, error) {
	return c.nextTurn(ctx)
}

// SendFunctionResponse consumes the next scripted turn; results are ignored.
func (c *ScriptedClient) SendFunctionResponse(ctx context.Context, history []*genai.Content, results []*genai.FunctionResponse) (*StreamingResponse, error) {
	return c.nextTurn(ctx)
}

func (c *ScriptedClient) nextTurn(ctx context.Context) (*StreamingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.next >= len(c.turns) {
		c.mu.Unlock()
		return nil, fmt.Errorf("script exhausted after %d turns", len(c.turns))
	}
	turn := c.turns[c.next]
	c.next++
	c.mu.Unlock()

	chunk := ResponseChunk{
		Done:         true,
		FinishReason: genai.FinishReasonStop,
	}

	calls := ParseToolCallsFromText(turn)
	if len(calls) > 0 {
		chunk.FunctionCalls = calls
		for _, fc := range calls {
			chunk.Parts = append(chunk.Parts, &genai.Part{FunctionCall: fc})
		}
	} else {
		chunk.Text = turn
		chunk.Parts = []*genai.Part{genai.NewPartFromText(turn)}
	}

	chunks := make(chan ResponseChunk, 1)
	done := make(chan struct{})
	chunks <- chunk
	close(chunks)
	close(done)

	return &StreamingResponse{
		Chunks: chunks,
		Done:   done,
	}, nil
}

// SetTools records the tool declarations; the script decides what to call.
func (c *ScriptedClient) SetTools(tools []*genai.Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = tools
}

// SetSystemInstruction records the instruction; scripted turns ignore it.
func (c *ScriptedClient) SetSystemInstruction(instruction string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systemInstruction = instruction
}

// CountTokens estimates by character count.
func (c *ScriptedClient) CountTokens(ctx context.Context, contents []*genai.Content) (*genai.CountTokensResponse, error) {
	totalChars := 0
	for _, content := range contents {
		for _, part := range content.Parts {
			totalChars += len(part.Text)
		}
	}
	return &genai.CountTokensResponse{TotalTokens: int32(totalChars / 4)}, nil
}

// GetModel returns the model name.
func (c *ScriptedClient) GetModel() string {
	return c.model
}

// SetModel changes the reported model name.
func (c *ScriptedClient) SetModel(modelName string) {
	c.model = modelName
}

// Remaining returns the number of unconsumed turns.
func (c *ScriptedClient) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns) - c.next
}

// Close is a no-op.
func (c *ScriptedClient) Close() error {
	return nil
}
