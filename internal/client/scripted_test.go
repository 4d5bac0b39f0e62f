package client

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedClientReplaysTurns(t *testing.T) {
	c := NewScriptedClientFromTurns([]string{
		"```json\n{\"tool\": \"read_file\", \"args\": {\"file_path\": \"main.go\"}}\n```",
		"The file looks fine.",
	})

	sr, err := c.SendMessage(context.Background(), "check main.go")
	require.NoError(t, err)
	resp, err := sr.Collect()
	require.NoError(t, err)
	require.Len(t, resp.FunctionCalls, 1)
	assert.Equal(t, "read_file", resp.FunctionCalls[0].Name)
	assert.Equal(t, "main.go", resp.FunctionCalls[0].Args["file_path"])
	assert.Empty(t, resp.Text)

	sr, err = c.SendFunctionResponse(context.Background(), nil, nil)
	require.NoError(t, err)
	resp, err = sr.Collect()
	require.NoError(t, err)
	assert.Equal(t, "The file looks fine.", resp.Text)
	assert.Empty(t, resp.FunctionCalls)

	assert.Equal(t, 0, c.Remaining())

	_, err = c.SendMessage(context.Background(), "one more")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script exhausted")
}

func TestScriptedClientLoadsScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.txt")
	script := "first turn\n---\nsecond turn\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	c, err := NewScriptedClient(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Remaining())

	sr, err := c.SendMessage(context.Background(), "go")
	require.NoError(t, err)
	resp, err := sr.Collect()
	require.NoError(t, err)
	assert.Equal(t, "first turn", resp.Text)
}

func TestScriptedClientRejectsEmptyScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n---\n"), 0644))

	_, err := NewScriptedClient(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no turns")
}

func TestParseToolCallsFromText(t *testing.T) {
	t.Run("code block", func(t *testing.T) {
		calls := ParseToolCallsFromText("```json\n{\"tool\": \"run_command\", \"args\": {\"command\": \"ls\"}}\n```")
		require.Len(t, calls, 1)
		assert.Equal(t, "run_command", calls[0].Name)
		assert.Equal(t, "ls", calls[0].Args["command"])
	})

	t.Run("bare json with name alias", func(t *testing.T) {
		calls := ParseToolCallsFromText(`I'll check: {"name": "list_dir", "args": {}}`)
		require.Len(t, calls, 1)
		assert.Equal(t, "list_dir", calls[0].Name)
		assert.NotNil(t, calls[0].Args)
	})

	t.Run("plain text yields nothing", func(t *testing.T) {
		assert.Nil(t, ParseToolCallsFromText("just an ordinary answer"))
		assert.Nil(t, ParseToolCallsFromText(""))
	})

	t.Run("invalid json ignored", func(t *testing.T) {
		assert.Nil(t, ParseToolCallsFromText(`{"tool": broken}`))
	})
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.True(t, IsRetryableError(&APIError{StatusCode: 429, Message: "rate limited"}))
	assert.False(t, IsRetryableError(&APIError{StatusCode: 401, Message: "unauthorized"}))
	assert.True(t, IsRetryableError(&net.DNSError{Err: "lookup failed"}))
	assert.False(t, IsRetryableError(assert.AnError))
}

func TestCalculateBackoffGrowsAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	maxDelay := 1 * time.Second

	d0 := CalculateBackoff(base, 0, maxDelay)
	assert.GreaterOrEqual(t, d0, base)
	assert.Less(t, d0, 2*base)

	// High attempt numbers must respect the cap plus jitter headroom.
	d10 := CalculateBackoff(base, 10, maxDelay)
	assert.LessOrEqual(t, d10, maxDelay+maxDelay/4)
}

func TestGetModelProfile(t *testing.T) {
	p := GetModelProfile("qwen2.5-coder:7b")
	assert.True(t, p.SupportsTools)
	assert.True(t, p.IsCoding)
	assert.True(t, p.IsSmall)

	p = GetModelProfile("llama2:13b")
	assert.False(t, p.SupportsTools)

	p = GetModelProfile("some-unknown-model")
	assert.Equal(t, "unknown", p.Family)
	assert.False(t, p.SupportsTools)
}
