// Package conversation holds the per-session chat state: the ordered
// transcript, the selected model and token budget, and the submit cycle that
// turns a prompt into a committed assistant turn.
package conversation

import (
	"errors"
	"sync"

	"github.com/papercomputeco/groqchat/pkg/llm"
)

// ErrBusy is returned when a submission arrives while a reply is streaming.
var ErrBusy = errors.New("a reply is still streaming")

// State is the submit state of a Store.
type State int

const (
	StateIdle State = iota
	StateStreaming
)

func (s State) String() string {
	if s == StateStreaming {
		return "streaming"
	}
	return "idle"
}

// Store is the ordered transcript of one session. Turns are appended in
// chronological order and never modified; the whole transcript is cleared on
// Reset. Only one submission may be in flight at a time.
type Store struct {
	mu    sync.Mutex
	turns []llm.Turn
	state State
}

// NewStore creates an empty, idle store.
func NewStore() *Store {
	return &Store{}
}

// AppendUser appends a user turn.
func (s *Store) AppendUser(content string) {
	s.append(llm.UserTurn(content))
}

// AppendAssistant appends a completed assistant reply.
func (s *Store) AppendAssistant(content string) {
	s.append(llm.AssistantTurn(content))
}

func (s *Store) append(turn llm.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

// Reset clears every turn.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// Snapshot returns a copy of the transcript, oldest turn first. It is sent
// verbatim as the prompt context; nothing is truncated.
func (s *Store) Snapshot() []llm.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// State returns the current submit state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin moves the store from Idle to Streaming. It returns ErrBusy when a
// reply is already streaming.
func (s *Store) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStreaming {
		return ErrBusy
	}
	s.state = StateStreaming
	return nil
}

// End moves the store back to Idle.
func (s *Store) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
}
