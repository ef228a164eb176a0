package llm

// Chunk types written to the browser as newline-delimited JSON.
const (
	ChunkFragment = "fragment"
	ChunkDone     = "done"
	ChunkError    = "error"
)

// StreamChunk represents a single line of a streaming chat response.
type StreamChunk struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"` // Fragment text, or the full reply when done

	// Error details (only present when type=error)
	Error string    `json:"error,omitempty"`
	Kind  ErrorKind `json:"kind,omitempty"`

	// Transcript length after the chunk was produced
	Turns int `json:"turns"`
}
