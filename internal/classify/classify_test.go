package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFailureKeywordsEmpty(t *testing.T) {
	assert.False(t, DetectFailureKeywords(""))
}

func TestDetectFailureKeywords(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   bool
	}{
		{"permission denied lower", "bash: /etc/shadow: permission denied", true},
		{"permission denied mixed case", "Permission Denied", true},
		{"generic error", "Error: something broke", true},
		{"os code", "open config.yaml: ENOENT", true},
		{"python traceback", "Traceback (most recent call last):", true},
		{"test failure", "--- FAIL: TestThing (0.00s)", true},
		{"clean output", "all 42 files formatted", false},
		{"plain listing", "main.go\nREADME.md", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectFailureKeywords(tc.output))
		})
	}
}

func TestClassifyErrorTypePrecedence(t *testing.T) {
	// COMMAND_NOT_FOUND wins over CODE_ERROR when both signals are present.
	got := ClassifyErrorType("zsh: foo: command not found\nsyntax error near token", "", "foo")
	assert.Equal(t, ErrorTypeCommandNotFound, got)
}

func TestClassifyErrorType(t *testing.T) {
	cases := []struct {
		name    string
		output  string
		errMsg  string
		command string
		want    ErrorType
	}{
		{
			name:    "bash command not found",
			output:  "bash: foo: command not found",
			command: "foo",
			want:    ErrorTypeCommandNotFound,
		},
		{
			name:    "python missing module",
			output:  "ModuleNotFoundError: No module named 'requests'",
			command: "python app.py",
			want:    ErrorTypeDependencyMissing,
		},
		{
			name:    "node missing module",
			output:  "Error: Cannot find module 'express'",
			command: "node server.js",
			want:    ErrorTypeDependencyMissing,
		},
		{
			name:    "go syntax error",
			output:  "main.go:10:5: syntax error: unexpected }",
			command: "go build ./...",
			want:    ErrorTypeCodeError,
		},
		{
			name:    "nil deref",
			output:  "panic: runtime error: invalid memory address or nil pointer dereference",
			command: "go run .",
			want:    ErrorTypeCodeError,
		},
		{
			name:    "permission",
			output:  "touch: cannot touch '/etc/x': Permission denied",
			command: "touch /etc/x",
			want:    ErrorTypePermissionError,
		},
		{
			name:    "network",
			output:  "dial tcp 10.0.0.1:443: connection refused",
			command: "curl https://internal",
			want:    ErrorTypeNetworkError,
		},
		{
			name:    "configuration",
			output:  "",
			errMsg:  "missing environment variable GEMINI_API_KEY",
			command: "",
			want:    ErrorTypeConfigurationError,
		},
		{
			name:    "unknown",
			output:  "something odd happened",
			command: "true",
			want:    ErrorTypeUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyErrorType(tc.output, tc.errMsg, tc.command))
		})
	}
}

func TestGuidanceNonEmpty(t *testing.T) {
	for _, typ := range []ErrorType{
		ErrorTypeCommandNotFound, ErrorTypeCodeError, ErrorTypeDependencyMissing,
		ErrorTypePermissionError, ErrorTypeNetworkError, ErrorTypeConfigurationError,
		ErrorTypeUnknown,
	} {
		assert.NotEmpty(t, Guidance(typ))
	}
}
