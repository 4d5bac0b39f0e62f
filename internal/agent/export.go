package agent

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ExportMarkdown renders the session transcript as markdown. Secrets that
// leaked into the history (API keys, tokens, connection strings) are
// redacted before the transcript leaves the process.
func (s *Session) ExportMarkdown() string {
	history := s.History()
	redactor := s.redactor

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Session %s\n\n", s.ID))
	b.WriteString(fmt.Sprintf("Started: %s\n\n", s.started.Format(time.RFC3339)))

	for _, content := range history {
		switch content.Role {
		case genai.RoleUser:
			if calls := functionResponseNames(content); len(calls) > 0 {
				b.WriteString(fmt.Sprintf("**Tool results:** %s\n\n", strings.Join(calls, ", ")))
				continue
			}
			b.WriteString("## User\n\n")
		case genai.RoleModel:
			b.WriteString("## Assistant\n\n")
		default:
			continue
		}

		for _, part := range content.Parts {
			if part.Text != "" {
				b.WriteString(redactor.Redact(part.Text))
				b.WriteString("\n\n")
			}
			if part.FunctionCall != nil {
				b.WriteString(fmt.Sprintf("*Called tool `%s`*\n\n", part.FunctionCall.Name))
			}
		}
	}

	return b.String()
}

func functionResponseNames(content *genai.Content) []string {
	var names []string
	for _, part := range content.Parts {
		if part.FunctionResponse != nil {
			names = append(names, part.FunctionResponse.Name)
		}
	}
	return names
}
