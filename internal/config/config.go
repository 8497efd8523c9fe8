package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// Fixed generation settings. These are not negotiated at runtime.
const (
	Model = "gemini-3-flash-preview"

	Persona = `You are "Gemini Unfiltered".
Your personality is blunt, direct, and brutally honest.
Do not use pleasantries like "Hello", "How can I help?", or "I'm happy to assist".
Get straight to the point. If a user asks something stupid, tell them, but still provide the most helpful answer possible.
Prioritize efficiency and raw facts over social niceties. Be tough but extremely competent.`

	Temperature float32 = 1
	TopK        float32 = 64
	TopP        float32 = 0.95
)

// Environment variables read once at startup.
const (
	EnvAPIKey       = "API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvLogDir       = "UNFILTERED_LOG_DIR"
)

// Config holds application configuration
type Config struct {
	LogDir    string `toml:"log_dir"`
	Debug     bool   `toml:"debug"`
	Plain     bool   `toml:"plain"`     // Line REPL instead of the terminal UI
	Telemetry bool   `toml:"telemetry"` // Export traces/metrics to the log directory
	BaseURL   string `toml:"base_url"`  // Override for the generation endpoint (proxies, tests)

	// APIKey is never read from the config file.
	APIKey string `toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogDir:    "logs",
		Telemetry: true,
	}
}

// LoadFile overlays the TOML file at path onto cfg. A missing file is not an error.
func LoadFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. The credential is
// captured here and never validated.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if key := getenv(EnvAPIKey); key != "" {
		cfg.APIKey = key
	} else {
		cfg.APIKey = getenv(EnvGeminiAPIKey)
	}
	if dir := getenv(EnvLogDir); dir != "" {
		cfg.LogDir = dir
	}
}
