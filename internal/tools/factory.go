package tools

import (
	"termagent/internal/config"
	"termagent/internal/security"
)

// BuildRegistry constructs the standard tool set for a workspace.
// Every tool shares one path validator rooted at workDir plus any
// extra directories the config allows.
func BuildRegistry(workDir string, cfg *config.Config) (*Registry, error) {
	validator := security.NewPathValidator(workDir, cfg.Tools.AllowedDirs...)

	bash := NewBashTool(workDir)
	if cfg.Tools.Timeout > 0 {
		bash.SetTimeout(cfg.Tools.Timeout)
	}
	for _, blocked := range cfg.Tools.Bash.BlockedCommands {
		security.DefaultCommandValidator.AddBlockedSubstring(blocked)
	}

	reg := NewRegistry()
	all := []Tool{
		NewReadTool(validator),
		NewWriteTool(validator),
		NewEditTool(validator),
		NewListDirTool(validator),
		NewGlobTool(workDir, validator),
		NewGrepTool(workDir, validator),
		bash,
		NewWebFetchTool(),
		NewStructureTool(workDir),
		NewReadLogsTool(),
	}
	for _, t := range all {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
