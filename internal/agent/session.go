// Package agent runs the orchestration loop: it feeds user prompts to a
// model backend, dispatches the function calls the model emits through the
// tool registry, and returns tool results to the model until it produces a
// final text answer or hits the iteration cap.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"termagent/internal/classify"
	"termagent/internal/client"
	"termagent/internal/config"
	"termagent/internal/logging"
	"termagent/internal/security"
	"termagent/internal/tools"
)

// State describes what a session is currently doing.
type State int

const (
	// StateIdle means no turn is in progress.
	StateIdle State = iota

	// StateAwaitingModel means a request is in flight to the backend.
	StateAwaitingModel

	// StateToolDispatch means the session is executing tool calls.
	StateToolDispatch
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateToolDispatch:
		return "tool_dispatch"
	default:
		return "unknown"
	}
}

const defaultMaxIterations = 25

// maxTurnsNotice is appended to the result when the loop hits the cap.
const maxTurnsNotice = "\n\n[Stopped: reached the maximum number of tool iterations for this turn.]"

// Session drives one conversation against a model backend.
//
// A session owns its history. Tool calls run sequentially in the order the
// model requested them, and every call produces a FunctionResponse even when
// the tool is unknown or its arguments fail validation, so the model always
// sees one result per call it made.
type Session struct {
	ID string

	client        client.Client
	registry      *tools.Registry
	workDir       string
	maxIterations int

	redactor *security.SecretRedactor

	// Optional turn callbacks. Set before Run; not safe to change mid-turn.
	OnText      func(text string)
	OnToolStart func(name string, args map[string]any)
	OnToolEnd   func(name string, result tools.ToolResult)

	mu      sync.RWMutex
	state   State
	history []*genai.Content
	started time.Time
}

// Result summarizes one completed turn.
type Result struct {
	// Text is the model's final text answer, including any text it emitted
	// on intermediate iterations.
	Text string

	// Iterations is the number of model round-trips the turn took.
	Iterations int

	// ToolCalls is the total number of tool invocations dispatched.
	ToolCalls int

	// HitIterationCap reports whether the turn was cut off at the limit.
	HitIterationCap bool

	// InputTokens and OutputTokens accumulate the usage metadata the
	// backend reported across all iterations of the turn.
	InputTokens  int
	OutputTokens int
}

// NewSession creates a session bound to a client and a tool registry.
// The client is configured with the registry's tool declarations and the
// session system prompt before the first message is sent.
func NewSession(c client.Client, reg *tools.Registry, workDir string, cfg *config.Config) *Session {
	s := &Session{
		ID:            uuid.NewString(),
		client:        c,
		registry:      reg,
		workDir:       workDir,
		maxIterations: defaultMaxIterations,
		redactor:      security.NewSecretRedactor(),
		state:         StateIdle,
		started:       time.Now(),
	}
	if cfg != nil && cfg.Agent.MaxIterations > 0 {
		s.maxIterations = cfg.Agent.MaxIterations
	}

	c.SetTools(reg.GenaiTools())
	c.SetSystemInstruction(buildSystemPrompt(workDir, c.GetModel(), projectContext(cfg, workDir)))

	return s
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// History returns a copy of the conversation history.
func (s *Session) History() []*genai.Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*genai.Content, len(s.history))
	copy(out, s.history)
	return out
}

// CountHistoryTokens reports the token footprint of the current history
// as counted (or estimated) by the backend. An empty history costs zero
// without a backend round-trip.
func (s *Session) CountHistoryTokens(ctx context.Context) (int32, error) {
	history := s.History()
	if len(history) == 0 {
		return 0, nil
	}
	resp, err := s.client.CountTokens(ctx, history)
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return resp.TotalTokens, nil
}

// Reset clears the conversation history. The system instruction and tool
// declarations on the client are left in place.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.state = StateIdle
	s.mu.Unlock()
}

// Run executes one full turn: it sends the prompt, dispatches any tool calls
// the model makes, and loops until the model answers with text only or the
// iteration cap is reached. Backend errors abort the turn and are returned
// to the caller; tool failures do not, they are reported back to the model.
func (s *Session) Run(ctx context.Context, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("empty prompt")
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, fmt.Errorf("session busy: %s", s.state)
	}
	s.state = StateAwaitingModel
	s.history = append(s.history, genai.NewContentFromText(prompt, genai.RoleUser))
	s.mu.Unlock()

	defer s.setState(StateIdle)

	result := &Result{}
	var text strings.Builder

	for i := 0; i < s.maxIterations; i++ {
		result.Iterations = i + 1

		s.setState(StateAwaitingModel)
		resp, err := s.getModelResponse(ctx)
		if err != nil {
			return nil, fmt.Errorf("model request failed: %w", err)
		}

		s.appendHistory(&genai.Content{
			Role:  genai.RoleModel,
			Parts: responseParts(resp),
		})

		result.InputTokens += resp.InputTokens
		result.OutputTokens += resp.OutputTokens

		if resp.Text != "" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(resp.Text)
			if s.OnText != nil {
				s.OnText(resp.Text)
			}
		}

		if len(resp.FunctionCalls) == 0 {
			result.Text = text.String()
			return result, nil
		}

		s.setState(StateToolDispatch)
		responses := s.dispatchCalls(ctx, resp.FunctionCalls)
		result.ToolCalls += len(responses)

		parts := make([]*genai.Part, 0, len(responses))
		for _, fr := range responses {
			parts = append(parts, genai.NewPartFromFunctionResponse(fr.Name, fr.Response))
		}
		s.appendHistory(&genai.Content{Role: genai.RoleUser, Parts: parts})
	}

	logging.Warn("session hit iteration cap", "session", s.ID, "max", s.maxIterations)
	result.Text = text.String() + maxTurnsNotice
	result.HitIterationCap = true
	return result, nil
}

// getModelResponse sends the pending history to the backend. When the last
// content carries function responses, they are routed through
// SendFunctionResponse; otherwise the last user message goes through
// SendMessageWithHistory.
func (s *Session) getModelResponse(ctx context.Context) (*client.Response, error) {
	s.mu.RLock()
	history := make([]*genai.Content, len(s.history))
	copy(history, s.history)
	s.mu.RUnlock()

	if len(history) == 0 {
		return nil, fmt.Errorf("no pending message")
	}

	last := history[len(history)-1]
	prior := history[:len(history)-1]

	var funcResponses []*genai.FunctionResponse
	for _, part := range last.Parts {
		if part.FunctionResponse != nil {
			funcResponses = append(funcResponses, part.FunctionResponse)
		}
	}

	var stream *client.StreamingResponse
	var err error
	if len(funcResponses) > 0 {
		stream, err = s.client.SendFunctionResponse(ctx, prior, funcResponses)
	} else {
		message := textOf(last)
		if message == "" {
			message = "Continue."
		}
		stream, err = s.client.SendMessageWithHistory(ctx, prior, message)
	}
	if err != nil {
		return nil, err
	}
	return stream.Collect()
}

// dispatchCalls executes the model's function calls in order. Every call
// yields exactly one FunctionResponse; unknown tools and bad arguments
// become error results rather than aborting the turn.
func (s *Session) dispatchCalls(ctx context.Context, calls []*genai.FunctionCall) []*genai.FunctionResponse {
	responses := make([]*genai.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		if s.OnToolStart != nil {
			s.OnToolStart(call.Name, call.Args)
		}
		result := s.executeCall(ctx, call)
		if s.OnToolEnd != nil {
			s.OnToolEnd(call.Name, result)
		}
		responses = append(responses, &genai.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: s.responsePayload(result),
		})
	}
	return responses
}

func (s *Session) executeCall(ctx context.Context, call *genai.FunctionCall) tools.ToolResult {
	tool, ok := s.registry.Get(call.Name)
	if !ok {
		logging.Warn("model called unknown tool", "session", s.ID, "tool", call.Name)
		return tools.NewErrorResult(
			fmt.Sprintf("unknown tool %q, available tools: %s", call.Name, strings.Join(s.registry.Names(), ", ")),
			classify.ErrorTypeConfigurationError,
		)
	}

	params, err := tool.ValidateParams(call.Args)
	if err != nil {
		return tools.NewErrorResult(
			fmt.Sprintf("invalid arguments for %s: %v", call.Name, err),
			classify.ErrorTypeConfigurationError,
		)
	}

	start := time.Now()
	result := tools.SafeExecute(ctx, tool.CreateInvocation(params))
	logging.Debug("tool executed",
		"session", s.ID,
		"tool", call.Name,
		"duration", time.Since(start),
		"failed", result.Failed(),
	)
	return result
}

// responsePayload converts a tool result into the FunctionResponse body.
// Secrets are masked before the output enters the conversation. Failed
// results, and successful ones whose output still reads like a failure,
// carry a guidance hint for the model.
func (s *Session) responsePayload(result tools.ToolResult) map[string]any {
	result.LLMContent = s.redactor.Redact(result.LLMContent)
	payload := result.ToMap()

	errType := classify.ErrorTypeUnknown
	failed := result.Failed()
	if failed {
		errType = result.Error.Type
	} else if classify.DetectFailureKeywords(result.LLMContent) {
		failed = true
		errType = classify.ClassifyErrorType(result.LLMContent, "", "")
	}

	if failed {
		if hint := classify.Guidance(errType); hint != "" {
			payload["guidance"] = hint
		}
	}
	return payload
}

// responseParts builds the history parts for a model response. Backends
// that do not populate Parts still get their text and function calls
// reconstructed, so a tool-calling model turn is never recorded without
// its FunctionCall parts. Always returns at least one part so the backend
// never rejects the history.
func responseParts(resp *client.Response) []*genai.Part {
	if len(resp.Parts) > 0 {
		return resp.Parts
	}
	var parts []*genai.Part
	if resp.Text != "" {
		parts = append(parts, genai.NewPartFromText(resp.Text))
	}
	for _, fc := range resp.FunctionCalls {
		parts = append(parts, &genai.Part{FunctionCall: fc})
	}
	if len(parts) == 0 {
		parts = append(parts, genai.NewPartFromText(" "))
	}
	return parts
}

func (s *Session) appendHistory(content *genai.Content) {
	s.mu.Lock()
	s.history = append(s.history, content)
	s.mu.Unlock()
}

func textOf(content *genai.Content) string {
	var b strings.Builder
	for _, part := range content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
