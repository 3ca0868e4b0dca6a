package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	"mychat/model"
)

const readBufferSize = 4096

// StreamingProvider implements model.Provider over a true incremental SSE
// response. It is the preferred transport.
type StreamingProvider struct {
	base
}

// NewStreamingProvider creates the incremental transport.
func NewStreamingProvider(opts ...Option) *StreamingProvider {
	return &StreamingProvider{base: newBase(opts)}
}

// Stream implements model.Provider.Stream.
//
// The response body is read as it arrives. If the server answers with a plain
// JSON completion instead of an event stream, the whole message is yielded as
// a single delta.
func (p *StreamingProvider) Stream(ctx context.Context, cfg model.APIConfig, history []model.Message) (model.DeltaStream, error) {
	cfg = cfg.Normalize()

	req, err := p.newCompletionRequest(ctx, cfg, history, true)
	if err != nil {
		return nil, err
	}

	p.log.Debug().
		Str("url", req.URL.String()).
		Str("model", cfg.Model).
		Int("messages", len(history)).
		Msg("opening completion stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransport(ctx, "POST "+req.URL.Path, err)
	}

	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if isJSONResponse(resp) {
		p.log.Debug().Msg("server answered without streaming, using whole response")
		return readWholeCompletion(ctx, resp)
	}

	return newSSEStream(ctx, resp.Body), nil
}

func isJSONResponse(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func readWholeCompletion(ctx context.Context, resp *http.Response) (model.DeltaStream, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransport(ctx, "read response", err)
	}
	content, ok := parseMessageRecord(string(body))
	if !ok {
		return nil, &TransportError{
			Op:  "decode response",
			Err: fmt.Errorf("invalid completion body: %.200s", body),
		}
	}
	return NewStaticStream(content), nil
}

// wrapTransport classifies a network error. Cancellation by the caller is
// returned as the context error so it can be told apart from a failure.
func wrapTransport(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	return &TransportError{Op: op, Err: err}
}

// sseStream yields deltas from an event-stream body as it is read.
type sseStream struct {
	ctx    context.Context
	body   io.ReadCloser
	text   io.Reader
	parser FrameParser
	buf    []byte

	queue    []string
	current  string
	err      error
	finished bool

	closeOnce sync.Once
	closeErr  error
}

func newSSEStream(ctx context.Context, body io.ReadCloser) *sseStream {
	return &sseStream{
		ctx:  ctx,
		body: body,
		text: newTextReader(body),
		buf:  make([]byte, readBufferSize),
	}
}

func (s *sseStream) Next() bool {
	for len(s.queue) == 0 {
		if s.finished {
			return false
		}
		s.fill()
	}
	s.current, s.queue = s.queue[0], s.queue[1:]
	return true
}

// fill performs one read from the network and queues any deltas it completes.
func (s *sseStream) fill() {
	n, err := s.text.Read(s.buf)
	if n > 0 {
		deltas, done := s.parser.Feed(string(s.buf[:n]))
		s.queue = append(s.queue, deltas...)
		if done {
			s.finish(nil)
			return
		}
	}

	switch {
	case err == io.EOF:
		deltas, _ := s.parser.Flush()
		s.queue = append(s.queue, deltas...)
		s.finish(nil)
	case err != nil:
		s.finish(wrapTransport(s.ctx, "read stream", err))
	}
}

func (s *sseStream) finish(err error) {
	s.finished = true
	s.err = err
	_ = s.closeBody()
}

func (s *sseStream) Current() string {
	return s.current
}

func (s *sseStream) Err() error {
	return s.err
}

// Close discards the stream. Later calls to Next report false and Err stays
// as it was.
func (s *sseStream) Close() error {
	s.finished = true
	s.queue = nil
	return s.closeBody()
}

func (s *sseStream) closeBody() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// staticStream yields a fixed list of deltas.
type staticStream struct {
	deltas []string
	pos    int
}

// NewStaticStream returns a stream over deltas. Used by the buffered
// transport and by tests.
func NewStaticStream(deltas ...string) model.DeltaStream {
	return &staticStream{deltas: deltas, pos: -1}
}

func (s *staticStream) Next() bool {
	if s.pos+1 >= len(s.deltas) {
		s.pos = len(s.deltas)
		return false
	}
	s.pos++
	return true
}

func (s *staticStream) Current() string {
	if s.pos < 0 || s.pos >= len(s.deltas) {
		return ""
	}
	return s.deltas[s.pos]
}

func (s *staticStream) Err() error   { return nil }
func (s *staticStream) Close() error { s.pos = len(s.deltas); return nil }
