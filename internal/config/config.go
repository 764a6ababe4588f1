package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the merged entrada configuration
type Config struct {
	Telegram    TelegramConfig `json:"telegram"`
	Browser     BrowserConfig  `json:"browser"`
	OCR         OCRConfig      `json:"ocr"`
	ProfilePath string         `json:"profilePath"`     // Portal profile YAML; empty uses built-in defaults
	CredsPath   string         `json:"credentialsPath"` // Credential store JSON
	InputWait   Duration       `json:"inputWait"`       // How long to wait for human input
}

type TelegramConfig struct {
	BotToken     string  `json:"botToken"`
	AllowedUsers []int64 `json:"allowedUsers"` // Empty means any chat may use the bot
}

type BrowserConfig struct {
	Headless  bool   `json:"headless"`
	NoSandbox bool   `json:"noSandbox"`
	Stealth   bool   `json:"stealth"`
	Window    string `json:"window"` // "width,height"
	Bin       string `json:"bin"`    // Optional explicit chromium binary
}

type OCRConfig struct {
	Provider string `json:"provider"` // "tesseract" or "disabled"
	Bin      string `json:"bin"`      // Tesseract binary, default "tesseract"
}

// Duration wraps time.Duration with JSON string encoding ("60s", "2m").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Dir returns the entrada config directory (~/.entrada)
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".entrada"
	}
	return filepath.Join(home, ".entrada")
}

// Load reads configuration from ~/.entrada/entrada.json.
// A missing file yields defaults; ENTRADA_BOT_TOKEN and ENTRADA_URL
// override for container deployments.
func Load() (*Config, error) {
	cfg := defaults()

	path := filepath.Join(Dir(), "entrada.json")
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if token := os.Getenv("ENTRADA_BOT_TOKEN"); token != "" {
		cfg.Telegram.BotToken = token
	}

	if cfg.InputWait <= 0 {
		cfg.InputWait = Duration(60 * time.Second)
	}

	return cfg, nil
}

// Save writes the configuration atomically.
func Save(cfg *Config) error {
	return AtomicWriteJSON(filepath.Join(Dir(), "entrada.json"), cfg, 0600)
}

func defaults() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:  true,
			NoSandbox: true,
			Window:    "1920,1080",
		},
		OCR: OCRConfig{
			Provider: "tesseract",
		},
		CredsPath: filepath.Join(Dir(), "credentials.json"),
		InputWait: Duration(60 * time.Second),
	}
}
