package llm

// Token budget bounds. The budget moves in steps of TokenBudgetStep between
// MinTokenBudget and the selected model's MaxContextTokens.
const (
	MinTokenBudget     = 512
	TokenBudgetStep    = 512
	DefaultTokenBudget = 4096
)

// DefaultBudget is the budget a session starts with after selecting m.
func DefaultBudget(m Model) int {
	return min(DefaultTokenBudget, m.MaxContextTokens)
}

// ClampBudget snaps n down to the step grid and bounds it to the range m allows.
func ClampBudget(m Model, n int) int {
	n -= n % TokenBudgetStep
	if n < MinTokenBudget {
		n = MinTokenBudget
	}
	if n > m.MaxContextTokens {
		n = m.MaxContextTokens
	}
	return n
}

// CheckBudget returns a *ValidationError when n is outside the range m allows.
func CheckBudget(m Model, n int) error {
	if n < MinTokenBudget || n > m.MaxContextTokens {
		return &ValidationError{
			Field: "max_tokens",
			Value: n,
			Min:   MinTokenBudget,
			Max:   m.MaxContextTokens,
		}
	}
	return nil
}
