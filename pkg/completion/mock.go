package completion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/groqchat/pkg/llm"
)

// MockReply scripts a single response from the MockClient.
type MockReply struct {
	Fragments []string        // Fragments to yield, in order
	Err       error           // Ends the stream with this error after Fragments
	StartErr  error           // Returned from Stream itself; nothing is yielded
	Delay     time.Duration   // Pause before each fragment (for timeout tests)
	Hold      <-chan struct{} // Blocks the first fragment until closed
}

// MockRequest records one call to MockClient.Stream.
type MockRequest struct {
	Config     llm.RequestConfig
	Transcript []llm.Turn
}

// MockClient is a scripted Client for tests. It validates the request the
// same way GroqClient does and records every request it accepts.
type MockClient struct {
	replies  []MockReply
	index    int
	Requests []MockRequest
	mu       sync.Mutex
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// AddReply queues a reply and returns the client for chaining.
func (m *MockClient) AddReply(r MockReply) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, r)
	return m
}

// AddFragments queues a successful reply made of the given fragments.
func (m *MockClient) AddFragments(fragments ...string) *MockClient {
	return m.AddReply(MockReply{Fragments: fragments})
}

// AddError queues a reply that fails before yielding anything.
func (m *MockClient) AddError(err error) *MockClient {
	return m.AddReply(MockReply{Err: err})
}

// RequestCount returns the number of accepted requests.
func (m *MockClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent accepted request.
func (m *MockClient) LastRequest() MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return MockRequest{}
	}
	return m.Requests[len(m.Requests)-1]
}

// Stream implements Client.
func (m *MockClient) Stream(ctx context.Context, cfg llm.RequestConfig, transcript []llm.Turn) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.index >= len(m.replies) {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock client: no more replies configured (expected reply %d, have %d)", m.index, len(m.replies))
	}
	reply := m.replies[m.index]
	m.index++
	if reply.StartErr != nil {
		m.mu.Unlock()
		return nil, reply.StartErr
	}
	snapshot := make([]llm.Turn, len(transcript))
	copy(snapshot, transcript)
	m.Requests = append(m.Requests, MockRequest{Config: cfg, Transcript: snapshot})
	m.mu.Unlock()

	return &mockStream{ctx: ctx, reply: reply}, nil
}

type mockStream struct {
	ctx     context.Context
	reply   MockReply
	pos     int
	current string
	err     error
	done    bool
}

func (s *mockStream) Next() bool {
	if s.done {
		return false
	}

	if s.pos == 0 && s.reply.Hold != nil {
		select {
		case <-s.reply.Hold:
		case <-s.ctx.Done():
			return s.fail(s.ctx.Err())
		}
	}

	for s.pos < len(s.reply.Fragments) {
		fragment := s.reply.Fragments[s.pos]
		s.pos++
		if s.reply.Delay > 0 {
			select {
			case <-time.After(s.reply.Delay):
			case <-s.ctx.Done():
				return s.fail(s.ctx.Err())
			}
		}
		if fragment == "" {
			continue
		}
		s.current = fragment
		return true
	}

	s.done = true
	s.current = ""
	s.err = s.reply.Err
	return false
}

func (s *mockStream) fail(err error) bool {
	s.done = true
	s.current = ""
	s.err = classify(s.ctx, err)
	return false
}

func (s *mockStream) Fragment() string {
	return s.current
}

func (s *mockStream) Err() error {
	return s.err
}

func (s *mockStream) Close() error {
	s.done = true
	return nil
}
