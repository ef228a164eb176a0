// Package settings resolves the configuration shared by the groqchat commands
// and builds the completion client from it.
package settings

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/completion"
	"github.com/papercomputeco/groqchat/pkg/config"
	"github.com/papercomputeco/groqchat/pkg/llm"
)

// Overrides are command-line values that win over the config file. Zero
// values leave the file's setting alone.
type Overrides struct {
	Model     string
	MaxTokens int
	Listen    string
	Debug     bool
}

// Resolve loads the config at path (the default location when empty) and
// applies overrides. Overriding only the model keeps the configured budget,
// clamped to the new model's ceiling.
func Resolve(path string, o Overrides) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if o.Model != "" && o.Model != cfg.Model {
		m, ok := llm.LookupModel(o.Model)
		if !ok {
			return nil, fmt.Errorf("unknown model %q (run \"groqchat models\" for the list)", o.Model)
		}
		cfg.Model = m.ID
		cfg.MaxTokens = llm.ClampBudget(m, cfg.MaxTokens)
	}
	if o.MaxTokens != 0 {
		cfg.MaxTokens = o.MaxTokens
	}
	if o.Listen != "" {
		cfg.Server.Listen = o.Listen
	}
	if o.Debug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewClient builds the Groq completion client for cfg.
func NewClient(cfg *config.Config, logger *zap.Logger) *completion.GroqClient {
	return completion.NewGroqClient(completion.Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}, logger)
}
