package llm

import "time"

// Reply is the result of a successfully completed streaming request.
type Reply struct {
	Model     string        `json:"model"`     // Model that generated the reply
	Content   string        `json:"content"`   // Concatenation of every fragment
	Fragments int           `json:"fragments"` // Number of fragments received
	Duration  time.Duration `json:"duration"`  // Time from request to end of stream
}
