package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newOllamaForTest(t *testing.T, model string) *OllamaClient {
	t.Helper()
	c, err := NewOllamaClient(OllamaConfig{Model: model})
	require.NoError(t, err)
	return c
}

func readFileTool() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        "read_file",
			Description: "Reads a file from the workspace.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"file_path": {Type: genai.TypeString, Description: "Path to read"},
				},
				Required: []string{"file_path"},
			},
		}},
	}}
}

func TestFallbackModelsGetToolProtocolInSystemMessage(t *testing.T) {
	c := newOllamaForTest(t, "gemma2")
	require.True(t, c.NeedsToolCallFallback())

	c.SetSystemInstruction("You are a coding agent.")
	c.SetTools(readFileTool())

	messages := c.convertHistoryForFallback(nil, nil)
	require.NotEmpty(t, messages)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "You are a coding agent.")
	assert.Contains(t, messages[0].Content, "Tool Calling Instructions")
	assert.Contains(t, messages[0].Content, "read_file")
	assert.Contains(t, messages[0].Content, "`file_path` (required)")
}

func TestNativeToolModelsSkipFallbackProtocol(t *testing.T) {
	c := newOllamaForTest(t, "llama3.1")
	require.False(t, c.NeedsToolCallFallback())

	c.SetSystemInstruction("You are a coding agent.")
	c.SetTools(readFileTool())

	messages := c.convertHistoryToMessages(nil, "hello")
	require.NotEmpty(t, messages)
	assert.Equal(t, "system", messages[0].Role)
	assert.NotContains(t, messages[0].Content, "Tool Calling Instructions")

	req := c.buildChatRequest(messages)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "read_file", req.Tools[0].Function.Name)
}

func TestFallbackRequestCarriesNoNativeTools(t *testing.T) {
	c := newOllamaForTest(t, "gemma2")
	c.SetTools(readFileTool())

	req := c.buildChatRequest(c.convertHistoryForFallback(nil, nil))
	assert.Empty(t, req.Tools)
}

func TestFallbackHistoryFlattensToolTraffic(t *testing.T) {
	c := newOllamaForTest(t, "gemma2")

	history := []*genai.Content{
		genai.NewContentFromText("list the files", genai.RoleUser),
		{Role: genai.RoleModel, Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{Name: "list_dir", Args: map[string]any{"path": "."}}},
		}},
		{Role: genai.RoleUser, Parts: []*genai.Part{
			{FunctionResponse: &genai.FunctionResponse{
				Name:     "list_dir",
				Response: map[string]any{"content": "main.go"},
			}},
		}},
	}

	messages := c.convertHistoryForFallback(history, nil)
	require.Len(t, messages, 3)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Contains(t, messages[1].Content, `"tool": "list_dir"`)
	assert.Empty(t, messages[1].ToolCalls)
	assert.Contains(t, messages[2].Content, "Tool result for list_dir")
	assert.Contains(t, messages[2].Content, "main.go")
}

func TestConvertContentKeepsNativeToolCalls(t *testing.T) {
	c := newOllamaForTest(t, "llama3.1")

	msg := c.convertContentToMessage(&genai.Content{
		Role: genai.RoleModel,
		Parts: []*genai.Part{
			genai.NewPartFromText("checking"),
			{FunctionCall: &genai.FunctionCall{ID: "call_0", Name: "read_file", Args: map[string]any{"file_path": "go.mod"}}},
		},
	})

	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "checking", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "read_file", msg.ToolCalls[0].Function.Name)
}

func TestIsModelNotFoundError(t *testing.T) {
	assert.False(t, IsModelNotFoundError(nil))
	assert.True(t, IsModelNotFoundError(assertErr(`model "gemma2" not found`)))
	assert.True(t, IsModelNotFoundError(assertErr("gemma2 is not installed")))
	assert.False(t, IsModelNotFoundError(assertErr("connection refused")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
