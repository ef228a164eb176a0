// Package completion streams chat completions from a hosted LLM API.
//
// A Client issues one request per call and hands back a Stream: a finite,
// forward-only, single-use sequence of reply fragments. Collect drains a
// Stream exactly once, forwarding every fragment as it arrives and returning
// the separator-free concatenation.
package completion

import (
	"context"
	"strings"

	"github.com/papercomputeco/groqchat/pkg/llm"
)

// Client starts streaming completions.
type Client interface {
	// Stream issues one request for the given transcript. Errors detected
	// before the request is sent are returned directly; errors raised while
	// the reply streams are reported by Stream.Err.
	Stream(ctx context.Context, cfg llm.RequestConfig, transcript []llm.Turn) (Stream, error)
}

// Stream is a pull iterator over the fragments of one reply.
type Stream interface {
	// Next advances to the next non-empty fragment. It returns false once
	// the reply is complete or the request failed, and keeps returning false
	// afterwards.
	Next() bool

	// Fragment returns the fragment Next advanced to.
	Fragment() string

	// Err returns the typed failure that ended the stream, or nil when the
	// reply completed.
	Err() error

	// Close releases the underlying connection. It is safe to call more
	// than once.
	Close() error
}

// Collect consumes stream to the end, calling onFragment for each fragment in
// order, and returns the concatenated reply. On failure the partial text is
// discarded and the stream's error is returned.
func Collect(stream Stream, onFragment func(string)) (string, error) {
	defer stream.Close()

	var reply strings.Builder
	for stream.Next() {
		fragment := stream.Fragment()
		reply.WriteString(fragment)
		if onFragment != nil {
			onFragment(fragment)
		}
	}

	if err := stream.Err(); err != nil {
		return "", err
	}

	return reply.String(), nil
}
