// Package classify turns raw command and tool output into a small, closed
// error taxonomy. The model reads the classified type back from the
// conversation and adjusts its next action, so classification must be
// deterministic and the precedence order must stay stable.
package classify

import "strings"

// ErrorType is the closed classification of a tool or command failure.
type ErrorType string

const (
	ErrorTypeCommandNotFound    ErrorType = "COMMAND_NOT_FOUND"
	ErrorTypeCodeError          ErrorType = "CODE_ERROR"
	ErrorTypeDependencyMissing  ErrorType = "DEPENDENCY_MISSING"
	ErrorTypePermissionError    ErrorType = "PERMISSION_ERROR"
	ErrorTypeNetworkError       ErrorType = "NETWORK_ERROR"
	ErrorTypeConfigurationError ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeUnknown            ErrorType = "UNKNOWN"
)

// failureKeywords is the table DetectFailureKeywords matches against.
// Grouped loosely: generic terms, OS error codes, runtime exception names,
// shell/toolchain messages, test failure phrases. All lowercase.
var failureKeywords = []string{
	// Generic
	"error",
	"failed",
	"failure",
	"fatal",
	"panic:",
	"cannot",
	"can't",
	"unable to",
	"not found",
	"no such file",
	"permission denied",
	"access denied",
	"denied",
	"invalid",
	"unexpected",
	"aborted",
	"rejected",
	"refused",
	// OS error codes
	"enoent",
	"eacces",
	"eperm",
	"econnrefused",
	"econnreset",
	"etimedout",
	"eaddrinuse",
	"enospc",
	// Language runtimes
	"exception",
	"traceback",
	"stack trace",
	"segmentation fault",
	"nullpointerexception",
	"typeerror",
	"valueerror",
	"syntaxerror",
	"referenceerror",
	"modulenotfounderror",
	"importerror",
	"classnotfoundexception",
	"undefined reference",
	"unresolved import",
	// Shell / toolchain
	"command not found",
	"not recognized as an internal or external command",
	"no command",
	"exit status",
	"exit code",
	"non-zero exit",
	"compilation failed",
	"build failed",
	"syntax error",
	"parse error",
	// Tests
	"test failed",
	"tests failed",
	"assertion failed",
	"assertionerror",
	"expected but was",
	"fail:",
}

// DetectFailureKeywords reports whether output looks like a failure signal.
// It is a coarse filter run before fine-grained classification; empty input
// is never a failure.
func DetectFailureKeywords(output string) bool {
	if output == "" {
		return false
	}
	lower := strings.ToLower(output)
	for _, kw := range failureKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// commandRunners are tokens whose presence makes a "not found" message a
// missing-command rather than a missing-dependency signal.
var commandRunners = []string{
	"bash", "sh", "zsh", "node", "npm", "npx", "yarn", "pnpm",
	"python", "python3", "pip", "pip3", "go", "cargo", "rustc",
	"java", "javac", "mvn", "gradle", "ruby", "gem", "php", "composer",
	"make", "cmake", "gcc", "clang",
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isCommandNotFound(combined, command string) bool {
	if containsAny(combined,
		"command not found",
		"not recognized as an internal or external command",
		"no command",
		"executable file not found",
	) {
		return true
	}
	// A bare "not found" is a missing command only when a known runner token
	// co-occurs; otherwise later categories get their chance.
	if strings.Contains(combined, "not found") {
		for _, runner := range commandRunners {
			if strings.Contains(combined, runner+":") ||
				strings.HasPrefix(strings.TrimSpace(command), runner) {
				return true
			}
		}
	}
	return false
}

func isCodeError(combined string) bool {
	return containsAny(combined,
		"syntax error",
		"syntaxerror",
		"parse error",
		"compilation failed",
		"compile error",
		"compilation error",
		"typeerror",
		"type error",
		"referenceerror",
		"nullpointerexception",
		"nil pointer dereference",
		"index out of range",
		"indexerror",
		"segmentation fault",
		"undefined reference",
		"undeclared",
		"assertion failed",
		"assertionerror",
		"panic:",
		"traceback (most recent call last)",
	)
}

func isDependencyMissing(combined string) bool {
	return containsAny(combined,
		"modulenotfounderror",
		"no module named",
		"importerror",
		"cannot find module",
		"cannot find package",
		"module not found",
		"package not found",
		"unresolved import",
		"classnotfoundexception",
		"could not resolve dependencies",
		"missing dependency",
		"no matching distribution",
		"unknown import path",
	)
}

func isPermissionError(combined string) bool {
	return containsAny(combined,
		"permission denied",
		"access denied",
		"access is denied",
		"operation not permitted",
		"eacces",
		"eperm",
		"read-only file system",
		"insufficient permissions",
	)
}

func isNetworkError(combined string) bool {
	return containsAny(combined,
		"connection refused",
		"connection reset",
		"connection timed out",
		"network is unreachable",
		"no such host",
		"could not resolve host",
		"name resolution",
		"econnrefused",
		"econnreset",
		"etimedout",
		"tls handshake",
		"certificate",
		"proxy",
		"dial tcp",
	)
}

func isConfigurationError(combined string) bool {
	return containsAny(combined,
		"config",
		"configuration",
		"missing environment variable",
		"env var",
		"api key",
		"apikey",
		"credential",
		"unauthorized",
		"invalid option",
		"unknown flag",
		"usage:",
		"missing required",
	)
}

// ClassifyErrorType maps raw output, an error message, and the command that
// produced them to an ErrorType. The predicates run in a fixed order and the
// first match wins; downstream guidance text is keyed off that order.
func ClassifyErrorType(output, errMessage, command string) ErrorType {
	combined := strings.ToLower(output + " " + errMessage + " " + command)

	switch {
	case isCommandNotFound(combined, strings.ToLower(command)):
		return ErrorTypeCommandNotFound
	case isCodeError(combined):
		return ErrorTypeCodeError
	case isDependencyMissing(combined):
		return ErrorTypeDependencyMissing
	case isPermissionError(combined):
		return ErrorTypePermissionError
	case isNetworkError(combined):
		return ErrorTypeNetworkError
	case isConfigurationError(combined):
		return ErrorTypeConfigurationError
	default:
		return ErrorTypeUnknown
	}
}

// Guidance returns a short recovery hint for the model, keyed by type.
func Guidance(t ErrorType) string {
	switch t {
	case ErrorTypeCommandNotFound:
		return "The command does not exist in this environment. Check the spelling or install the tool first."
	case ErrorTypeCodeError:
		return "The code itself has an error. Read the file around the reported location and fix the source."
	case ErrorTypeDependencyMissing:
		return "A dependency is missing. Install it with the project's package manager before retrying."
	case ErrorTypePermissionError:
		return "Permission was denied. Operate only on paths inside the workspace."
	case ErrorTypeNetworkError:
		return "A network operation failed. Retry, or continue without the remote resource."
	case ErrorTypeConfigurationError:
		return "Configuration looks wrong. Check flags, environment variables and config files."
	default:
		return "The cause is unclear. Inspect the output and try a different approach."
	}
}
