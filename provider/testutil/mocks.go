// Package testutil provides test doubles for code that consumes
// model.Provider.
package testutil

import (
	"context"
	"errors"
	"sync"

	"mychat/model"
)

// MockProvider implements model.Provider for testing
type MockProvider struct {
	StreamFunc         func(ctx context.Context, cfg model.APIConfig, history []model.Message) (model.DeltaStream, error)
	TestConnectionFunc func(ctx context.Context, cfg model.APIConfig) bool

	mu    sync.Mutex
	calls [][]model.Message
}

// NewMockProvider returns a provider that replies with deltas.
func NewMockProvider(deltas ...string) *MockProvider {
	return &MockProvider{
		StreamFunc: func(ctx context.Context, cfg model.APIConfig, history []model.Message) (model.DeltaStream, error) {
			return NewSliceStream(deltas...), nil
		},
		TestConnectionFunc: func(ctx context.Context, cfg model.APIConfig) bool {
			return true
		},
	}
}

func (m *MockProvider) Stream(ctx context.Context, cfg model.APIConfig, history []model.Message) (model.DeltaStream, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]model.Message(nil), history...))
	m.mu.Unlock()
	return m.StreamFunc(ctx, cfg, history)
}

func (m *MockProvider) TestConnection(ctx context.Context, cfg model.APIConfig) bool {
	return m.TestConnectionFunc(ctx, cfg)
}

// Calls returns the history passed to each Stream call.
func (m *MockProvider) Calls() [][]model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.Message(nil), m.calls...)
}

// SliceStream yields a fixed list of deltas, then Err.
type SliceStream struct {
	Deltas []string
	Error  error

	pos    int
	closed bool
}

func NewSliceStream(deltas ...string) *SliceStream {
	return &SliceStream{Deltas: deltas, pos: -1}
}

// FailingStream yields deltas and then fails with err.
func FailingStream(err error, deltas ...string) *SliceStream {
	s := NewSliceStream(deltas...)
	s.Error = err
	return s
}

func (s *SliceStream) Next() bool {
	if s.closed || s.pos+1 >= len(s.Deltas) {
		return false
	}
	s.pos++
	return true
}

func (s *SliceStream) Current() string {
	if s.pos < 0 || s.pos >= len(s.Deltas) {
		return ""
	}
	return s.Deltas[s.pos]
}

func (s *SliceStream) Err() error {
	if s.pos+1 < len(s.Deltas) && !s.closed {
		return nil
	}
	return s.Error
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceStream) Closed() bool {
	return s.closed
}

// BlockingStream yields Deltas, then blocks until ctx is cancelled and
// reports the context error. Ready is closed once every delta was consumed.
type BlockingStream struct {
	ctx    context.Context
	inner  *SliceStream
	Ready  chan struct{}
	once   sync.Once
	err    error
	closed bool
}

func NewBlockingStream(ctx context.Context, deltas ...string) *BlockingStream {
	return &BlockingStream{ctx: ctx, inner: NewSliceStream(deltas...), Ready: make(chan struct{})}
}

func (s *BlockingStream) Next() bool {
	if s.inner.Next() {
		return true
	}
	s.once.Do(func() { close(s.Ready) })
	<-s.ctx.Done()
	s.err = s.ctx.Err()
	return false
}

func (s *BlockingStream) Current() string { return s.inner.Current() }
func (s *BlockingStream) Err() error      { return s.err }
func (s *BlockingStream) Close() error    { s.closed = true; return nil }

// ErrMock is a generic failure for tests.
var ErrMock = errors.New("mock failure")
