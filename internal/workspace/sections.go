package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// functionWindow is the trailing context included after a matched
// function declaration.
const functionWindow = 30

// LineRange is an inclusive 1-based range of source lines.
type LineRange struct {
	Start int
	End   int
}

// ExtractCodeSections returns concatenated excerpts from content: for each
// named function, the declaration line plus a fixed trailing window, and
// each explicit line range verbatim. Used to pull targeted context into
// the conversation without injecting whole files.
func ExtractCodeSections(content, filePath string, functionNames []string, lineRanges []LineRange) string {
	lines := strings.Split(content, "\n")
	var sb strings.Builder

	family := familyByExt[filepath.Ext(filePath)]

	for _, name := range functionNames {
		idx := findFunctionLine(lines, name, family)
		if idx < 0 {
			continue
		}
		end := idx + functionWindow
		if end > len(lines) {
			end = len(lines)
		}
		sb.WriteString(fmt.Sprintf("// %s: %s (lines %d-%d)\n", filePath, name, idx+1, end))
		sb.WriteString(strings.Join(lines[idx:end], "\n"))
		sb.WriteString("\n\n")
	}

	for _, r := range lineRanges {
		start, end := r.Start, r.End
		if start < 1 {
			start = 1
		}
		if end > len(lines) {
			end = len(lines)
		}
		if start > end {
			continue
		}
		sb.WriteString(fmt.Sprintf("// %s: lines %d-%d\n", filePath, start, end))
		sb.WriteString(strings.Join(lines[start-1:end], "\n"))
		sb.WriteString("\n\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// findFunctionLine locates the declaration line of the named function,
// preferring the language family's declaration regex and falling back to
// a plain substring match on "name(".
func findFunctionLine(lines []string, name string, family *langFamily) int {
	if family != nil {
		for i, line := range lines {
			if m := family.functionRe.FindStringSubmatch(line); m != nil && firstGroup(m) == name {
				return i
			}
		}
	}
	for i, line := range lines {
		if strings.Contains(line, name+"(") {
			return i
		}
	}
	return -1
}
