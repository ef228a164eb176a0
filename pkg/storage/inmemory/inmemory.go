// Package inmemory is a storage.Driver that keeps sessions in a map.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/groqchat/pkg/conversation"
	"github.com/papercomputeco/groqchat/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	mu       sync.RWMutex
	sessions map[string]*conversation.Session
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		sessions: make(map[string]*conversation.Session),
	}
}

// Put implements storage.Driver.
func (d *Driver) Put(_ context.Context, session *conversation.Session) error {
	if session == nil {
		return errors.New("cannot store nil session")
	}
	if session.ID == "" {
		return errors.New("cannot store session without an ID")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[session.ID] = session
	return nil
}

// Get implements storage.Driver.
func (d *Driver) Get(_ context.Context, id string) (*conversation.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	session, ok := d.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound{ID: id}
	}
	return session, nil
}

// Has implements storage.Driver.
func (d *Driver) Has(_ context.Context, id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.sessions[id]
	return ok, nil
}

// Delete implements storage.Driver.
func (d *Driver) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.sessions, id)
	return nil
}

// List implements storage.Driver. Sessions are ordered by ID.
func (d *Driver) List(_ context.Context) ([]*conversation.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*conversation.Session, 0, len(d.sessions))
	for _, session := range d.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Sweep implements storage.Driver.
func (d *Driver) Sweep(_ context.Context, maxIdle time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxIdle)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, session := range d.sessions {
		if session.Streaming() || !session.LastActive().Before(cutoff) {
			continue
		}
		delete(d.sessions, id)
		removed++
	}
	return removed, nil
}

// Close implements storage.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions = make(map[string]*conversation.Session)
	return nil
}
