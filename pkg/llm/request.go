package llm

import "strings"

// RequestConfig holds the per-submission completion parameters. It is rebuilt
// from the session state on every submit.
type RequestConfig struct {
	Model     string `json:"model"`      // Catalog model id
	MaxTokens int    `json:"max_tokens"` // Generation budget for one reply
}

// Validate checks the config against the bundled catalog. An empty or unknown
// model id is a *CompletionError of kind KindModel; a budget outside the
// model's range is a *ValidationError.
func (c RequestConfig) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return &CompletionError{Kind: KindModel, Message: "empty model id"}
	}

	m, ok := LookupModel(c.Model)
	if !ok {
		return &CompletionError{Kind: KindModel, Message: "unsupported model id " + c.Model}
	}

	return CheckBudget(m, c.MaxTokens)
}
