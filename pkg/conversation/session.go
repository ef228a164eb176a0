package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/completion"
	"github.com/papercomputeco/groqchat/pkg/llm"
)

// ErrUnknownModel is returned when selecting a model that is not in the catalog.
type ErrUnknownModel struct {
	ID string
}

func (e ErrUnknownModel) Error() string {
	return "unknown model: " + e.ID
}

// Session is the explicit state of one chat: its transcript, the selected
// model and the token budget. Sessions share nothing with each other.
type Session struct {
	ID string

	store  *Store
	logger *zap.Logger

	mu         sync.Mutex
	model      llm.Model
	selected   string
	budget     int
	lastActive time.Time
}

// NewSession creates a session with the default model selected.
func NewSession(id string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		ID:     id,
		store:  NewStore(),
		logger: logger,
	}
	// The first selection always counts as a change.
	_, _ = s.SelectModel(llm.DefaultModelID)
	return s
}

// Store returns the session's transcript store.
func (s *Session) Store() *Store {
	return s.store
}

// Model returns the selected catalog entry.
func (s *Session) Model() llm.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Budget returns the current token budget.
func (s *Session) Budget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// LastActive returns when the session was last touched.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch marks the session as active now.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// Streaming reports whether a reply is in flight.
func (s *Session) Streaming() bool {
	return s.store.State() == StateStreaming
}

// SelectModel switches to the catalog model id. When id differs from the
// previously selected model the transcript is cleared and the budget goes back
// to the model's default; selecting the current model again keeps both. It
// reports whether a reset happened. Switching is refused while streaming.
func (s *Session) SelectModel(id string) (bool, error) {
	m, ok := llm.LookupModel(id)
	if !ok {
		return false, ErrUnknownModel{ID: id}
	}
	if err := s.store.Begin(); err != nil {
		return false, err
	}
	defer s.store.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	if s.selected == id {
		return false, nil
	}

	s.store.Reset()
	s.selected = id
	s.model = m
	s.budget = llm.DefaultBudget(m)

	s.logger.Debug("model selected, conversation reset",
		zap.String("session", s.ID),
		zap.String("model", id),
		zap.Int("max_tokens", s.budget),
	)
	return true, nil
}

// SetBudget clamps n to the selected model's range and stores it. It returns
// the value actually stored. Changing the budget is refused while streaming.
func (s *Session) SetBudget(n int) (int, error) {
	if err := s.store.Begin(); err != nil {
		return s.Budget(), err
	}
	defer s.store.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = llm.ClampBudget(s.model, n)
	s.lastActive = time.Now()
	return s.budget, nil
}

// Reset clears the transcript without changing the model. It is refused while
// streaming.
func (s *Session) Reset() error {
	if err := s.store.Begin(); err != nil {
		return err
	}
	defer s.store.End()
	s.store.Reset()
	return nil
}

// RequestConfig builds the completion parameters from the current state.
func (s *Session) RequestConfig() llm.RequestConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return llm.RequestConfig{Model: s.selected, MaxTokens: s.budget}
}

// Submit runs one submit cycle: it records the prompt as a user turn, streams
// the reply for the whole transcript, forwards every fragment to onFragment as
// it arrives, and commits the concatenated reply as an assistant turn only
// when the stream completes. On failure no assistant turn is committed and the
// typed error is returned. Submit returns ErrBusy without touching the
// transcript if another submission is in flight.
func (s *Session) Submit(ctx context.Context, client completion.Client, prompt string, onFragment func(string)) (*llm.Reply, error) {
	if err := s.store.Begin(); err != nil {
		return nil, err
	}
	defer s.store.End()

	s.Touch()
	start := time.Now()

	s.store.AppendUser(prompt)
	cfg := s.RequestConfig()
	transcript := s.store.Snapshot()

	stream, err := client.Stream(ctx, cfg, transcript)
	if err != nil {
		s.logFailure(cfg, err)
		return nil, err
	}

	fragments := 0
	content, err := completion.Collect(stream, func(fragment string) {
		fragments++
		if onFragment != nil {
			onFragment(fragment)
		}
	})
	if err != nil {
		s.logFailure(cfg, err)
		return nil, err
	}

	s.store.AppendAssistant(content)
	s.Touch()

	reply := &llm.Reply{
		Model:     cfg.Model,
		Content:   content,
		Fragments: fragments,
		Duration:  time.Since(start),
	}

	s.logger.Debug("reply committed",
		zap.String("session", s.ID),
		zap.String("model", cfg.Model),
		zap.Int("fragments", fragments),
		zap.Int("turns", s.store.Len()),
		zap.Duration("duration", reply.Duration),
	)

	return reply, nil
}

func (s *Session) logFailure(cfg llm.RequestConfig, err error) {
	s.logger.Warn("completion failed",
		zap.String("session", s.ID),
		zap.String("model", cfg.Model),
		zap.String("kind", string(llm.KindOf(err))),
		zap.Error(err),
	)
}

// String implements fmt.Stringer for log output.
func (s *Session) String() string {
	m := s.Model()
	return fmt.Sprintf("session %s (%s, %d turns)", s.ID, m.ID, s.store.Len())
}
