// Package config loads layered configuration for the extraction and
// generation pipeline: built-in defaults, an optional TOML file, then
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/axAilotl/companion-keeper/pkg/models"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// contextBudgetPreset mirrors the reference tool's per-window budget table.
type contextBudgetPreset struct {
	MaxMessagesPerConversation int
	MaxCharsPerConversation    int
	MaxTotalChars              int
	RequestTimeoutSeconds      int
}

// ContextBudgetPresets maps a context-window bucket name to its default
// packet-construction budgets (§4.6.8).
var ContextBudgetPresets = map[string]contextBudgetPreset{
	"64k":  {MaxMessagesPerConversation: 50, MaxCharsPerConversation: 9_000, MaxTotalChars: 90_000, RequestTimeoutSeconds: 180},
	"128k": {MaxMessagesPerConversation: 70, MaxCharsPerConversation: 14_000, MaxTotalChars: 160_000, RequestTimeoutSeconds: 240},
	"200k": {MaxMessagesPerConversation: 90, MaxCharsPerConversation: 18_000, MaxTotalChars: 240_000, RequestTimeoutSeconds: 300},
	"1m":   {MaxMessagesPerConversation: 120, MaxCharsPerConversation: 26_000, MaxTotalChars: 420_000, RequestTimeoutSeconds: 480},
}

// ContextProfileWindows maps a bucket name to its nominal token window.
var ContextProfileWindows = map[string]int{
	"64k":  64_000,
	"128k": 128_000,
	"200k": 200_000,
	"1m":   1_000_000,
}

// BucketForWindow classifies a raw context window size into a budget bucket.
func BucketForWindow(windowTokens int) string {
	switch {
	case windowTokens >= 500_000:
		return "1m"
	case windowTokens >= 180_000:
		return "200k"
	case windowTokens >= 100_000:
		return "128k"
	default:
		return "64k"
	}
}

// Config is the fully resolved application configuration.
type Config struct {
	General struct {
		ModelDir      string `koanf:"model_dir"`
		RunDir        string `koanf:"run_dir"`
		CacheDir      string `koanf:"cache_dir"`
		CompanionName string `koanf:"companion_name"`
	} `koanf:"general"`

	Sampling struct {
		Mode                       string `koanf:"mode"`
		Seed                       int64  `koanf:"seed"`
		SampleSize                 int    `koanf:"sample_size"`
		MaxMessagesPerConversation int    `koanf:"max_messages_per_conversation"`
		MaxCharsPerConversation    int    `koanf:"max_chars_per_conversation"`
		MaxTotalChars              int    `koanf:"max_total_chars"`
	} `koanf:"sampling"`

	LLM struct {
		Provider         string  `koanf:"provider"`
		BaseURL          string  `koanf:"base_url"`
		Model            string  `koanf:"model"`
		APIKey           string  `koanf:"api_key"`
		Temperature      float64 `koanf:"temperature"`
		TimeoutSeconds   int     `koanf:"timeout_seconds"`
		MaxParallelCalls int     `koanf:"max_parallel_calls"`
		ContextWindow    int     `koanf:"context_window"`
		ContextProfile   string  `koanf:"context_profile"`
	} `koanf:"llm"`

	Prompts struct {
		OverridesDir string `koanf:"overrides_dir"`
	} `koanf:"prompts"`

	Memory struct {
		MaxMemories int `koanf:"max_memories"`
	} `koanf:"memory"`
}

const envPrefix = "COMPANIONKEEPER_"

// Load builds the layered configuration: defaults, then an optional TOML
// file (explicit path, or one of the conventional default locations), then
// COMPANIONKEEPER_-prefixed environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"general.model_dir":                    "",
		"general.run_dir":                      "./runs",
		"general.cache_dir":                     "./extractionCache",
		"general.companion_name":                "",
		"sampling.mode":                         string(models.PolicyWeightedRandom),
		"sampling.seed":                         int64(-1),
		"sampling.sample_size":                  24,
		"sampling.max_messages_per_conversation": 70,
		"sampling.max_chars_per_conversation":    14_000,
		"sampling.max_total_chars":              160_000,
		"llm.provider":                          string(models.ProviderOpenAICompatible),
		"llm.base_url":                          "",
		"llm.model":                             "",
		"llm.api_key":                           "",
		"llm.temperature":                       0.2,
		"llm.timeout_seconds":                   240,
		"llm.max_parallel_calls":                4,
		"llm.context_window":                    0,
		"llm.context_profile":                   "auto",
		"prompts.overrides_dir":                 "",
		"memory.max_memories":                   200,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("loading config defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	} else {
		for _, candidate := range []string{"./companion-keeper.toml", "$HOME/.companion-keeper.toml"} {
			expanded := os.ExpandEnv(candidate)
			if _, err := os.Stat(expanded); err == nil {
				if err := k.Load(file.Provider(expanded), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = resolveAPIKeyFromEnv(cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = DefaultBaseURL(cfg.LLM.Provider)
	}

	clampParallelCalls(&cfg)

	return &cfg, nil
}

// clampParallelCalls enforces the P = clamp(maxParallelCalls, 1, 16)
// invariant from §5 at load time.
func clampParallelCalls(cfg *Config) {
	switch {
	case cfg.LLM.MaxParallelCalls < 1:
		cfg.LLM.MaxParallelCalls = 1
	case cfg.LLM.MaxParallelCalls > 16:
		cfg.LLM.MaxParallelCalls = 16
	}
}

// resolveAPIKeyFromEnv falls back to the provider's conventional
// environment variable when no key was supplied through config.
func resolveAPIKeyFromEnv(provider string) string {
	switch provider {
	case string(models.ProviderProxy):
		return os.Getenv("OPENROUTER_API_KEY")
	case string(models.ProviderOpenAICompatible):
		return os.Getenv("OPENAI_API_KEY")
	case string(models.ProviderAnthropic):
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// DefaultBaseURL returns the conventional base URL for a provider kind.
func DefaultBaseURL(provider string) string {
	switch provider {
	case string(models.ProviderLocal):
		return "http://127.0.0.1:11434"
	case string(models.ProviderOpenAICompatible):
		return "https://api.openai.com"
	case string(models.ProviderProxy):
		return "https://openrouter.ai/api/v1"
	case string(models.ProviderAnthropic):
		return "https://api.anthropic.com"
	default:
		return ""
	}
}

// Validate rejects configurations that cannot possibly run a pipeline stage.
func Validate(cfg *Config) error {
	if cfg.General.ModelDir == "" {
		return fmt.Errorf("general.model_dir is required")
	}
	if cfg.General.CompanionName == "" {
		return fmt.Errorf("general.companion_name is required")
	}
	switch cfg.LLM.Provider {
	case string(models.ProviderOpenAICompatible), string(models.ProviderLocal),
		string(models.ProviderProxy), string(models.ProviderAnthropic):
	default:
		return fmt.Errorf("llm.provider %q is not one of the supported provider kinds", cfg.LLM.Provider)
	}
	return nil
}

// InitConfig writes a sample configuration file, refusing to overwrite an
// existing one.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sample := `# companion-keeper configuration

[general]
model_dir = "./extractionCache/<fingerprint>/model_exports/<model>"
run_dir = "./runs"
cache_dir = "./extractionCache"
companion_name = "Ava"

[sampling]
mode = "weighted-random"
seed = -1
sample_size = 24
max_messages_per_conversation = 70
max_chars_per_conversation = 14000
max_total_chars = 160000

[llm]
provider = "openrouter"
model = "anthropic/claude-3.5-sonnet"
temperature = 0.2
timeout_seconds = 240
max_parallel_calls = 4
context_profile = "auto"

[memory]
max_memories = 200
`
	return os.WriteFile(configPath, []byte(sample), 0644)
}

// DeriveContextBudget resolves the effective packet-construction budgets for
// a run, given a context window (0 meaning "unknown, use default bucket").
func DeriveContextBudget(contextWindow int, profile string) (bucket string, budget contextBudgetPreset) {
	p := strings.ToLower(strings.TrimSpace(profile))
	if p != "" && p != "auto" {
		if preset, ok := ContextBudgetPresets[p]; ok {
			return p, preset
		}
	}
	if contextWindow <= 0 {
		contextWindow = ContextProfileWindows["128k"]
	}
	b := BucketForWindow(contextWindow)
	return b, ContextBudgetPresets[b]
}
