// Package config loads the operator-facing workspace configuration from
// .sovereign/config.yaml: integration branch, release identity, generation
// provider, per-artifact gate rules, and the smoke gate command.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sovereignlab/sovereign/pkg/gate"
	"github.com/sovereignlab/sovereign/pkg/storage"
	"github.com/sovereignlab/sovereign/pkg/vcs"
)

// ProviderConfig selects the generation service. The API key is read from
// the named environment variable, never stored in the file.
type ProviderConfig struct {
	Name      string `yaml:"name"` // "gemini" or "openai"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// SynthesisConfig bounds candidate generation.
type SynthesisConfig struct {
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// SmokeConfig is the external smoke gate invocation. An empty command means
// forward runs skip the gate; rollback runs refuse to start without one.
type SmokeConfig struct {
	Command        []string `yaml:"command"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// LockConfig tunes the run-lock stale threshold.
type LockConfig struct {
	StaleAfterMinutes int `yaml:"stale_after_minutes"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the full workspace configuration.
type Config struct {
	Branch    string                `yaml:"branch"`
	Identity  vcs.Identity          `yaml:"identity"`
	Provider  ProviderConfig        `yaml:"provider"`
	Synthesis SynthesisConfig       `yaml:"synthesis"`
	Gate      gate.Rules            `yaml:"gate"`           // defaults for every artifact
	Artifacts map[string]gate.Rules `yaml:"artifact_rules"` // per-path overrides
	Smoke     SmokeConfig           `yaml:"smoke"`
	Lock      LockConfig            `yaml:"lock"`
	Log       LogConfig             `yaml:"log"`
}

// Default returns the configuration template workspace init writes.
func Default() *Config {
	return &Config{
		Branch: "main",
		Identity: vcs.Identity{
			Name:  "sovereign-release",
			Email: "release@sovereign.invalid",
		},
		Provider: ProviderConfig{
			Name:      "gemini",
			Model:     "gemini-2.0-flash",
			APIKeyEnv: "SOVEREIGN_API_KEY",
		},
		Synthesis: SynthesisConfig{
			Temperature:    0.2,
			MaxTokens:      8192,
			TimeoutSeconds: 300,
		},
		Gate: gate.Rules{
			Size: gate.DefaultSizeBand,
		},
		Smoke: SmokeConfig{TimeoutSeconds: 300},
		Lock:  LockConfig{StaleAfterMinutes: 30},
		Log:   LogConfig{Level: "info", JSON: false},
	}
}

// RulesFor returns the gate rules for one artifact: the per-path override
// when present, otherwise the workspace defaults. A zero size band falls
// back to the built-in default so the size check never silently disables.
func (c *Config) RulesFor(artifactPath string) gate.Rules {
	rules := c.Gate
	if override, ok := c.Artifacts[artifactPath]; ok {
		rules = override
	}
	if rules.Size.MinRatio == 0 && rules.Size.MaxRatio == 0 {
		rules.Size = gate.DefaultSizeBand
	}
	return rules
}

// APIKey resolves the provider key from the environment.
func (c *Config) APIKey() (string, error) {
	envName := c.Provider.APIKeyEnv
	if envName == "" {
		envName = "SOVEREIGN_API_KEY"
	}
	key := os.Getenv(envName)
	if key == "" {
		return "", fmt.Errorf("environment variable %s is not set", envName)
	}
	return key, nil
}

// SynthesisTimeout returns the bounded generation timeout.
func (c *Config) SynthesisTimeout() time.Duration {
	if c.Synthesis.TimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Synthesis.TimeoutSeconds) * time.Second
}

// SmokeTimeout returns the bounded smoke gate timeout.
func (c *Config) SmokeTimeout() time.Duration {
	if c.Smoke.TimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Smoke.TimeoutSeconds) * time.Second
}

// LockStaleAfter returns the stale-lock threshold.
func (c *Config) LockStaleAfter() time.Duration {
	if c.Lock.StaleAfterMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Lock.StaleAfterMinutes) * time.Minute
}

// Load reads the workspace configuration. A missing file yields the
// defaults rather than an error so read-only commands work pre-init.
func Load(root string) (*Config, error) {
	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(storage.ConfigFile)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Branch == "" {
		return nil, fmt.Errorf("config: branch cannot be empty")
	}
	return cfg, nil
}

// Save writes the configuration, used by workspace init.
func Save(root string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(storage.ConfigFile)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}
