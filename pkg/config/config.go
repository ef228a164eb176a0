// Package config loads groqchat settings from a TOML file, the environment and
// a TOML secrets file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/groqchat/pkg/completion"
	"github.com/papercomputeco/groqchat/pkg/llm"
)

// Environment variables consulted by Load.
const (
	EnvAPIKey  = "GROQ_API_KEY"
	EnvBaseURL = "GROQ_BASE_URL"
)

// DefaultSecretsFile is where the hosting platform keeps secrets for the app.
const DefaultSecretsFile = ".streamlit/secrets.toml"

// Config is the groqchat configuration.
type Config struct {
	// APIKey is the Groq credential. "${VAR}" and "$VAR" are expanded.
	APIKey string `toml:"api_key"`

	// BaseURL of the OpenAI-compatible completion API.
	BaseURL string `toml:"base_url"`

	// Timeout bounds every completion request, including the streamed body.
	Timeout time.Duration `toml:"timeout"`

	// Model and MaxTokens seed new sessions.
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`

	// SecretsFile is a TOML file with a GROQ_API_KEY entry, consulted when
	// neither the environment nor api_key provide a credential.
	SecretsFile string `toml:"secrets_file"`

	Debug bool `toml:"debug"`

	Server ServerConfig `toml:"server"`
}

// ServerConfig configures the web UI.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Listen string `toml:"listen"`

	// SessionIdle is how long an untouched session is kept.
	SessionIdle time.Duration `toml:"session_idle"`

	// SweepInterval is how often idle sessions are evicted.
	SweepInterval time.Duration `toml:"sweep_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:     completion.DefaultBaseURL,
		Timeout:     completion.DefaultTimeout,
		Model:       llm.DefaultModelID,
		MaxTokens:   llm.DefaultTokenBudget,
		SecretsFile: DefaultSecretsFile,
		Server: ServerConfig{
			Listen:        ":8080",
			SessionIdle:   30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/groqchat/config.toml (or the platform
// equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve config dir: %w", err)
	}
	return filepath.Join(dir, "groqchat", "config.toml"), nil
}

// Load reads the configuration at path. An empty path means DefaultPath, and
// a missing default file means built-in defaults; an explicit path must exist.
// Environment overrides and credential resolution are applied before the
// result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	} else if explicit {
		return nil, fmt.Errorf("could not read config %s: %w", path, err)
	}

	cfg.applyEnv()

	key, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, err
	}
	cfg.APIKey = key

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("could not decode config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}

	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	c.APIKey = expandEnv(c.APIKey)
}

// ResolveAPIKey returns the credential: the GROQ_API_KEY environment variable,
// then api_key, then GROQ_API_KEY from the secrets file. An empty result is not
// an error; completion requests then fail with an authentication error.
func (c *Config) ResolveAPIKey() (string, error) {
	if v := os.Getenv(EnvAPIKey); v != "" {
		return v, nil
	}
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	if c.SecretsFile == "" {
		return "", nil
	}
	return LoadSecret(c.SecretsFile, EnvAPIKey)
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	m, ok := llm.LookupModel(c.Model)
	if !ok {
		return fmt.Errorf("unknown model %q", c.Model)
	}
	if err := llm.CheckBudget(m, c.MaxTokens); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base_url must not be empty")
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		return errors.New("server.listen must not be empty")
	}
	if c.Server.SessionIdle <= 0 || c.Server.SweepInterval <= 0 {
		return errors.New("server.session_idle and server.sweep_interval must be positive")
	}
	return nil
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}
