package config

// ModelPreset is a predefined model configuration.
type ModelPreset struct {
	Backend         string
	Name            string
	Temperature     float32
	MaxOutputTokens int32
}

// ModelPresets maps preset names to model configurations.
var ModelPresets = map[string]ModelPreset{
	"fast": {
		Backend:         "gemini",
		Name:            "gemini-3-flash-preview",
		Temperature:     1.0,
		MaxOutputTokens: 8192,
	},
	"balanced": {
		Backend:         "gemini",
		Name:            "gemini-3-pro-preview",
		Temperature:     1.0,
		MaxOutputTokens: 8192,
	},
	"local": {
		Backend:         "ollama",
		Name:            "qwen2.5-coder:7b",
		Temperature:     0.7,
		MaxOutputTokens: 8192,
	},
}

// ApplyPreset applies a named preset. Returns false if the preset is unknown.
func (c *Config) ApplyPreset(preset string) bool {
	p, ok := ModelPresets[preset]
	if !ok {
		return false
	}
	c.API.ActiveBackend = p.Backend
	c.Model.Preset = preset
	c.Model.Name = p.Name
	c.Model.Temperature = p.Temperature
	c.Model.MaxOutputTokens = p.MaxOutputTokens
	return true
}

// ListPresets returns all available preset names.
func ListPresets() []string {
	presets := make([]string, 0, len(ModelPresets))
	for name := range ModelPresets {
		presets = append(presets, name)
	}
	return presets
}
