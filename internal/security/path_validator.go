// Package security holds the trust-boundary checks shared by the tools:
// workspace-relative path validation, shell command screening, secret
// redaction and API key loading.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines file operations to the workspace root (plus any
// explicitly allowed directories). This is a trust boundary, not a kernel
// sandbox: every filesystem-touching tool must route its paths through it.
type PathValidator struct {
	allowedDirs []string
}

// NewPathValidator creates a validator for the given workspace root.
func NewPathValidator(workspaceRoot string, extraDirs ...string) *PathValidator {
	dirs := make([]string, 0, 1+len(extraDirs))
	dirs = append(dirs, filepath.Clean(workspaceRoot))
	for _, d := range extraDirs {
		dirs = append(dirs, filepath.Clean(d))
	}
	return &PathValidator{allowedDirs: dirs}
}

// Resolve validates that path is safe and inside an allowed directory.
// Relative paths are resolved against the workspace root. Symlinks are
// resolved before the containment check so a link cannot escape the root.
func (v *PathValidator) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(path, "\x00") {
		return "", fmt.Errorf("null byte in path")
	}

	abs := filepath.Clean(path)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(v.allowedDirs[0], abs)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		// Path does not exist yet; resolve the parent so a symlinked
		// directory still cannot point outside the root.
		parent, parentErr := filepath.EvalSymlinks(filepath.Dir(abs))
		switch {
		case parentErr == nil:
			resolved = filepath.Join(parent, filepath.Base(abs))
		case os.IsNotExist(parentErr):
			resolved = abs
		default:
			return "", fmt.Errorf("failed to resolve parent: %w", parentErr)
		}
	}

	if !v.isAllowed(resolved) {
		return "", fmt.Errorf("path %q is outside the workspace", path)
	}
	return resolved, nil
}

// ResolveFile validates a path for file read/write: the parent directory
// must already exist.
func (v *PathValidator) ResolveFile(path string) (string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Dir(abs)); os.IsNotExist(err) {
		return "", fmt.Errorf("parent directory does not exist: %s", filepath.Dir(abs))
	}
	return abs, nil
}

// ResolveDir validates that path is an existing directory inside the root.
func (v *PathValidator) ResolveDir(path string) (string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", path)
	}
	return abs, nil
}

// Root returns the primary workspace root.
func (v *PathValidator) Root() string {
	return v.allowedDirs[0]
}

func (v *PathValidator) isAllowed(abs string) bool {
	for _, dir := range v.allowedDirs {
		if isPathWithin(abs, dir) {
			return true
		}
	}
	return false
}

// isPathWithin reports whether target is base or a descendant of base.
func isPathWithin(target, base string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
