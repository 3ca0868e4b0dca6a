// Package provider implements model.Provider against OpenAI-compatible chat
// completion endpoints such as a local Ollama server.
//
// Two transports are available:
//   - StreamingProvider reads the server-sent event stream as it arrives and
//     yields each content fragment separately.
//   - BufferedProvider issues one non-streaming request through the openai-go
//     SDK and yields the whole reply as a single fragment.
//
// Both report a non-success HTTP status as *RequestError and network failures
// as *TransportError. Cancelling the request context ends the stream with the
// context's error.
//
// Usage:
//
//	p, err := provider.NewProvider(provider.ModeStream, provider.WithLogger(log))
//	if err != nil {
//	    // handle error
//	}
//	stream, err := p.Stream(ctx, cfg, history)
//	if err != nil {
//	    // handle error
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    fmt.Print(stream.Current())
//	}
//	if err := stream.Err(); err != nil {
//	    // handle error
//	}
package provider

// Note: The Provider and DeltaStream interfaces are defined in the model
// package (model/provider.go) to avoid import cycles. This package implements
// model.Provider.

// Mode selects the completion transport.
type Mode string

const (
	ModeStream   Mode = "stream"
	ModeBuffered Mode = "buffered"
)
