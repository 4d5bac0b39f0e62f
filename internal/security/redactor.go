package security

import (
	"regexp"
	"strings"
)

// SecretRedactor masks credentials in tool output before it is fed back to
// the model, so leaked keys never enter the conversation history.
type SecretRedactor struct {
	patterns  []*regexp.Regexp
	whitelist map[string]bool
}

// NewSecretRedactor creates a redactor with patterns for common secrets.
func NewSecretRedactor() *SecretRedactor {
	whitelist := map[string]bool{
		"true": true, "false": true, "null": true,
		"example": true, "test": true, "xxx": true,
		"localhost": true, "127.0.0.1": true,
		"development": true, "staging": true, "production": true,
	}

	return &SecretRedactor{
		whitelist: whitelist,
		patterns: []*regexp.Regexp{
			// key=value assignments with secret-looking key names
			regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token|auth[_-]?token|secret|password|passwd|pwd)[:=]\s*["']?([a-zA-Z0-9_\-\.]{8,})["']?`),
			// Bearer tokens
			regexp.MustCompile(`(?i)Bearer\s+([a-zA-Z0-9_\-\.]{10,256})(?:\s|"|'|\r|\n|$)`),
			// AWS access key IDs
			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
			// GitHub tokens
			regexp.MustCompile(`gh[pous]_[a-zA-Z0-9]{36}`),
			// Google API keys
			regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
			// JWTs
			regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.(?:eyJ[a-zA-Z0-9_-]+)?\.[a-zA-Z0-9_-]{20,}`),
			// PEM private keys
			regexp.MustCompile(`-----BEGIN [A-Z ]+PRIVATE KEY-----[\s\S]+?-----END [A-Z ]+PRIVATE KEY-----`),
			// Database URLs with inline credentials
			regexp.MustCompile(`(postgres|mysql|mongodb)://[^@\s]+:[^@\s]+@`),
			regexp.MustCompile(`redis://:[^@\s]+@`),
			// Slack webhooks and bot tokens
			regexp.MustCompile(`https?://hooks\.slack\.com/services/[A-Z0-9/]{30,}`),
			regexp.MustCompile(`xox[baprs]-[0-9]{10,}-[0-9]{10,}-[a-zA-Z0-9]{24}`),
			// Basic auth headers
			regexp.MustCompile(`(?i)Authorization:\s*Basic\s+[A-Za-z0-9+/]{20,}={0,2}`),
		},
	}
}

// Redact masks all detected secrets in the input.
func (r *SecretRedactor) Redact(text string) string {
	if text == "" {
		return ""
	}

	result := text
	for _, pattern := range r.patterns {
		if !pattern.MatchString(result) {
			continue
		}
		if pattern.NumSubexp() >= 1 {
			result = r.redactSubmatches(result, pattern)
		} else {
			result = pattern.ReplaceAllString(result, "[REDACTED]")
		}
	}
	return result
}

// redactSubmatches keeps the key name of a key=value match and masks only
// the value captured by the last non-empty group.
func (r *SecretRedactor) redactSubmatches(text string, pattern *regexp.Regexp) string {
	numGroups := pattern.NumSubexp()

	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		subs := pattern.FindStringSubmatch(match)

		var secret string
		for i := numGroups; i >= 1; i-- {
			if i < len(subs) && subs[i] != "" {
				secret = subs[i]
				break
			}
		}
		if secret == "" {
			return "[REDACTED]"
		}
		if len(secret) < 8 || r.isWhitelisted(secret) {
			return match
		}

		idx := strings.LastIndex(match, secret)
		if idx < 0 {
			return "[REDACTED]"
		}
		return match[:idx] + "[REDACTED]" + match[idx+len(secret):]
	})
}

func (r *SecretRedactor) isWhitelisted(value string) bool {
	lower := strings.Trim(strings.ToLower(value), "\"'")
	if r.whitelist[lower] {
		return true
	}
	if len(lower) <= 4 {
		return true
	}
	for _, safe := range []string{"example", "test", "demo", "sample", "mock", "placeholder"} {
		if strings.Contains(lower, safe) {
			return true
		}
	}
	return false
}

// AddPattern adds a custom regex pattern to the redactor.
func (r *SecretRedactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}
