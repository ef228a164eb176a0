// Package storage defines where live chat sessions are kept between requests.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/groqchat/pkg/conversation"
)

// Driver defines the interface for keeping and retrieving live sessions.
// Sessions are held only for the lifetime of the process; drivers never write
// transcripts anywhere durable.
type Driver interface {
	// Put stores a session under its ID, replacing any previous entry.
	Put(ctx context.Context, session *conversation.Session) error

	// Get retrieves a session by ID. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*conversation.Session, error)

	// Has checks if a session exists by ID.
	Has(ctx context.Context, id string) (bool, error)

	// Delete removes a session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, id string) error

	// List returns all live sessions.
	List(ctx context.Context) ([]*conversation.Session, error)

	// Sweep removes sessions idle for longer than maxIdle that are not
	// streaming, and returns how many were removed.
	Sweep(ctx context.Context, maxIdle time.Duration) (int, error)

	// Close releases any resources and drops every session.
	Close() error
}

// ErrNotFound is returned when a session doesn't exist in the driver.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "session not found"
	}

	return "session not found: " + e.ID
}
