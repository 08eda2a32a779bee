package config

import (
	"os"
	"strconv"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel        = openai.GPT3Dot5Turbo
	DefaultMaxTokens    = 150
	DefaultTemperature  = 0.7
	DefaultSystemPrompt = "You are a helpful assistant."
	DefaultLogDir       = "logs"
)

// Environment variables read by Load
const (
	EnvAPIKey  = "OPENAI_API_KEY"
	EnvBaseURL = "OPENAI_BASE_URL"
	EnvLogDir  = "OPENAI_CHAT_LOG_DIR"
	EnvJournal = "OPENAI_CHAT_JOURNAL"
	EnvDebug   = "OPENAI_CHAT_DEBUG"
)

// Config holds application configuration
type Config struct {
	APIKey  string
	BaseURL string // Empty means the OpenAI default endpoint

	// Generation parameters, fixed for the lifetime of the process
	Model        string
	MaxTokens    int
	Temperature  float32
	SystemPrompt string

	LogDir      string
	JournalPath string // sqlite completion journal; empty disables it
	Debug       bool
}

// Default returns the configuration used when no environment overrides are set.
func Default() Config {
	return Config{
		Model:        DefaultModel,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
		SystemPrompt: DefaultSystemPrompt,
		LogDir:       DefaultLogDir,
	}
}

// Load builds a Config from the defaults and the process environment.
// The API key is passed through as-is.
func Load() Config {
	cfg := Default()
	cfg.APIKey = os.Getenv(EnvAPIKey)
	cfg.BaseURL = os.Getenv(EnvBaseURL)
	if dir := os.Getenv(EnvLogDir); dir != "" {
		cfg.LogDir = dir
	}
	cfg.JournalPath = os.Getenv(EnvJournal)
	if v, err := strconv.ParseBool(os.Getenv(EnvDebug)); err == nil {
		cfg.Debug = v
	}
	return cfg
}
