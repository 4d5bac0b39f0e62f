// Package workspace builds textual summaries of a project directory that
// seed the model's context: a depth-bounded file tree, per-file structure
// extracted with regex heuristics, and targeted code excerpts.
package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ProjectType is the detected project kind.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypeRust    ProjectType = "rust"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeJava    ProjectType = "java"
	ProjectTypeUnknown ProjectType = "unknown"
)

// ProjectInfo holds detected project metadata.
type ProjectInfo struct {
	Type           ProjectType
	Name           string
	RootDir        string
	PackageManager string
	BuildTool      string
	TestFramework  string
}

var projectMarkers = []struct {
	projectType ProjectType
	markers     []string
}{
	{ProjectTypeGo, []string{"go.mod", "go.sum"}},
	{ProjectTypeNode, []string{"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml"}},
	{ProjectTypeRust, []string{"Cargo.toml", "Cargo.lock"}},
	{ProjectTypePython, []string{"pyproject.toml", "requirements.txt", "setup.py", "Pipfile"}},
	{ProjectTypeJava, []string{"pom.xml", "build.gradle", "build.gradle.kts"}},
}

// DetectProject detects the project type from marker files in the root.
func DetectProject(root string) *ProjectInfo {
	info := &ProjectInfo{
		Type:    ProjectTypeUnknown,
		RootDir: root,
	}

	for _, entry := range projectMarkers {
		for _, marker := range entry.markers {
			if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
				info.Type = entry.projectType
				info.extractDetails(root)
				return info
			}
		}
	}

	return info
}

func (p *ProjectInfo) extractDetails(root string) {
	switch p.Type {
	case ProjectTypeGo:
		p.BuildTool = "go"
		p.TestFramework = "go test"
		p.Name = goModuleName(root)
	case ProjectTypeNode:
		p.PackageManager = nodePackageManager(root)
		p.BuildTool = p.PackageManager
		p.Name = nodePackageName(root)
	case ProjectTypeRust:
		p.BuildTool = "cargo"
		p.TestFramework = "cargo test"
		p.Name = tomlName(filepath.Join(root, "Cargo.toml"), "[package]")
	case ProjectTypePython:
		p.PackageManager = pythonPackageManager(root)
		p.BuildTool = p.PackageManager
		p.TestFramework = "pytest"
		p.Name = tomlName(filepath.Join(root, "pyproject.toml"), "[project]")
	case ProjectTypeJava:
		if _, err := os.Stat(filepath.Join(root, "pom.xml")); err == nil {
			p.BuildTool = "maven"
		} else {
			p.BuildTool = "gradle"
		}
	}
}

func goModuleName(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module "))
		}
	}
	return ""
}

func nodePackageManager(root string) string {
	switch {
	case fileExists(filepath.Join(root, "pnpm-lock.yaml")):
		return "pnpm"
	case fileExists(filepath.Join(root, "yarn.lock")):
		return "yarn"
	default:
		return "npm"
	}
}

func nodePackageName(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Name
}

func pythonPackageManager(root string) string {
	switch {
	case fileExists(filepath.Join(root, "poetry.lock")):
		return "poetry"
	case fileExists(filepath.Join(root, "uv.lock")):
		return "uv"
	case fileExists(filepath.Join(root, "Pipfile")):
		return "pipenv"
	default:
		return "pip"
	}
}

// tomlName pulls the name field from the given TOML section. Line-based,
// good enough for manifest files.
func tomlName(path, section string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	inSection := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == section {
			inSection = true
			continue
		}
		if strings.HasPrefix(line, "[") {
			inSection = false
		}
		if inSection && strings.HasPrefix(line, "name") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return strings.Trim(strings.TrimSpace(parts[1]), "\"")
			}
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// String returns a human-readable name for the project type.
func (t ProjectType) String() string {
	switch t {
	case ProjectTypeGo:
		return "Go"
	case ProjectTypeNode:
		return "Node.js"
	case ProjectTypeRust:
		return "Rust"
	case ProjectTypePython:
		return "Python"
	case ProjectTypeJava:
		return "Java"
	default:
		return "Unknown"
	}
}
