package security

import (
	"fmt"
	"regexp"
	"strings"
)

// CommandValidator screens shell commands before the run_command tool
// executes them. The model proposes commands; this is the last stop before
// they hit the workspace shell.
type CommandValidator struct {
	blockedPatterns   []*regexp.Regexp
	blockedCommands   []string
	blockedSubstrings []string
}

// NewCommandValidator creates a validator with the default blocklist.
func NewCommandValidator() *CommandValidator {
	cv := &CommandValidator{
		blockedCommands: []string{
			":(){:|:&};:",
			":(){ :|:& };:",
		},
		blockedSubstrings: []string{
			// Destructive filesystem operations
			"rm -rf /",
			"rm -rf /*",
			"rm -rf ~",
			"rm -rf $HOME",
			"rm -fr /",
			// Disk operations
			"mkfs.",
			"mkfs ",
			"> /dev/sda",
			"> /dev/nvme",
			"dd if=/dev/zero of=/dev/sd",
			"dd if=/dev/zero of=/dev/nvme",
			"dd if=/dev/urandom of=/dev/sd",
			// Permission attacks
			"chmod -R 777 /",
			"chmod 777 /",
			"chown -R root /",
			// Reverse shells
			"nc -e",
			"nc -c",
			"ncat -e",
			"bash -i >& /dev/tcp",
			"/dev/tcp/",
			"/dev/udp/",
			// Sensitive file access
			"/etc/shadow",
			".ssh/id_rsa",
			".ssh/id_ed25519",
			".aws/credentials",
			".kube/config",
			".gnupg/",
		},
	}

	cv.blockedPatterns = []*regexp.Regexp{
		// Fork bombs
		regexp.MustCompile(`:\s*\(\s*\)\s*\{`),
		regexp.MustCompile(`\$\{?0\}?\s*[&|]\s*\$\{?0\}?`),
		// Recursive deletion of the root or of variable expansions
		regexp.MustCompile(`rm\s+(-[rRf]+\s+)+/\s*$`),
		regexp.MustCompile(`rm\s+(-[rRf]+\s+)+\$`),
		// dd straight to block devices
		regexp.MustCompile(`dd\s+.*of=/dev/[snhv]d`),
		regexp.MustCompile(`dd\s+.*of=/dev/nvme`),
		// Download piped to shell
		regexp.MustCompile(`(?i)(wget|curl)\s+.*\|\s*(ba)?sh`),
		regexp.MustCompile(`base64\s+-d.*\|\s*(ba)?sh`),
		// SSH key injection and cron persistence
		regexp.MustCompile(`echo\s+.*>>\s*.*authorized_keys`),
		regexp.MustCompile(`echo\s+.*>>\s*/etc/cron`),
	}

	return cv
}

// ValidationResult reports whether a command passed and which rule it hit.
type ValidationResult struct {
	Valid   bool
	Reason  string
	Pattern string
}

// Validate checks whether a command is safe to execute.
func (cv *CommandValidator) Validate(command string) ValidationResult {
	if strings.TrimSpace(command) == "" {
		return ValidationResult{Valid: false, Reason: "empty command"}
	}

	normalized := strings.ToLower(command)

	for _, blocked := range cv.blockedCommands {
		if command == blocked || normalized == strings.ToLower(blocked) {
			return ValidationResult{Valid: false, Reason: "blocked command", Pattern: blocked}
		}
	}

	for _, substr := range cv.blockedSubstrings {
		if strings.Contains(normalized, strings.ToLower(substr)) {
			return ValidationResult{
				Valid:   false,
				Reason:  fmt.Sprintf("contains blocked pattern: %s", substr),
				Pattern: substr,
			}
		}
	}

	for _, pattern := range cv.blockedPatterns {
		if pattern.MatchString(command) {
			return ValidationResult{
				Valid:   false,
				Reason:  "matches dangerous pattern",
				Pattern: pattern.String(),
			}
		}
	}

	return ValidationResult{Valid: true, Reason: "command passed validation"}
}

// AddBlockedSubstring adds a substring rule to the blocklist.
func (cv *CommandValidator) AddBlockedSubstring(substr string) {
	cv.blockedSubstrings = append(cv.blockedSubstrings, substr)
}

// DefaultCommandValidator is the shared validator with default rules.
var DefaultCommandValidator = NewCommandValidator()

// ValidateCommand checks a command against the default validator.
func ValidateCommand(command string) ValidationResult {
	return DefaultCommandValidator.Validate(command)
}
