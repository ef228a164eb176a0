package server

import "time"

// Config is the chat server configuration.
type Config struct {
	// Model and MaxTokens seed every new session.
	Model     string
	MaxTokens int

	// SessionIdle is how long an untouched session is kept.
	SessionIdle time.Duration

	// SweepInterval is how often idle sessions are evicted.
	SweepInterval time.Duration
}
