package model

import "context"

// DeltaStream is a finite, non-restartable sequence of content deltas.
//
// Usage mirrors the openai-go stream type:
//
//	for stream.Next() {
//	    text += stream.Current()
//	}
//	if err := stream.Err(); err != nil { ... }
//
// Close releases the underlying connection and may be called at any point,
// including before the sequence is exhausted.
type DeltaStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// Provider produces delta streams for a chat history.
//
// This interface lives in the model package (not provider) so that the chat
// package and test doubles can depend on it without importing the transport.
type Provider interface {
	// Stream issues a completion request for history. Request-level failures
	// (bad status, unreachable host) are returned directly; failures while
	// reading are reported by the stream's Err.
	Stream(ctx context.Context, cfg APIConfig, history []Message) (DeltaStream, error)

	// TestConnection reports whether the endpoint answers its model listing
	// with a success status. It never returns an error.
	TestConnection(ctx context.Context, cfg APIConfig) bool
}
