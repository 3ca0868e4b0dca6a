package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mychat/model"
	"mychat/provider"
	"mychat/provider/testutil"
)

var t0 = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

type memPersistence struct {
	mu        sync.Mutex
	cfg       model.APIConfig
	convs     []model.Conversation
	currentID string

	configSaves int
	convSaves   int
	idSaves     int
	saveErr     error
}

func newMemPersistence() *memPersistence {
	return &memPersistence{cfg: model.DefaultAPIConfig()}
}

func (m *memPersistence) LoadConfig(ctx context.Context) model.APIConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *memPersistence) SaveConfig(ctx context.Context, cfg model.APIConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configSaves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cfg = cfg
	return nil
}

func (m *memPersistence) LoadConversations(ctx context.Context) []model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.convs
}

func (m *memPersistence) SaveConversations(ctx context.Context, convs []model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convSaves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.convs = convs
	return nil
}

func (m *memPersistence) LoadCurrentID(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

func (m *memPersistence) SaveCurrentID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idSaves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.currentID = id
	return nil
}

func (m *memPersistence) counts() (cfg, convs, ids int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configSaves, m.convSaves, m.idSaves
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestOrchestrator(p model.Provider, persist model.Persistence) (*Orchestrator, *Store) {
	store := NewStore(model.InitialState())
	o := NewOrchestrator(store, p, persist,
		WithClock(func() time.Time { return t0 }),
		WithIDGenerator(sequentialIDs()),
		WithLogger(zerolog.Nop()),
	)
	return o, store
}

func lastMessage(t *testing.T, s model.State) model.Message {
	t.Helper()
	c, ok := s.Current()
	require.True(t, ok)
	require.NotEmpty(t, c.Messages)
	return c.Messages[len(c.Messages)-1]
}

func TestSendMessageStreamsIntoAssistantMessage(t *testing.T) {
	mock := testutil.NewMockProvider("He", "llo")
	o, store := newTestOrchestrator(mock, newMemPersistence())
	convID := o.CreateConversation()

	var seen []model.Message
	var loading []bool
	cancel := store.Subscribe(func(s model.State) {
		loading = append(loading, s.IsLoading)
		if c, ok := s.Current(); ok && len(c.Messages) == 2 {
			seen = append(seen, c.Messages[1])
		}
	})
	defer cancel()

	require.NoError(t, o.SendMessage(context.Background(), "  hi there  "))

	state := o.State()
	conv, ok := state.Current()
	require.True(t, ok)
	assert.Equal(t, convID, conv.ID)
	require.Len(t, conv.Messages, 2)

	user := conv.Messages[0]
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, "hi there", user.Content)
	assert.Equal(t, t0, user.Timestamp)
	assert.Equal(t, "hi there", conv.Title)

	reply := conv.Messages[1]
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "Hello", reply.Content)
	assert.False(t, reply.IsStreaming)
	assert.False(t, state.IsLoading)
	assert.NotEqual(t, user.ID, reply.ID)

	var contents []string
	for _, m := range seen {
		contents = append(contents, fmt.Sprintf("%s/%v", m.Content, m.IsStreaming))
	}
	assert.Equal(t, []string{"/true", "He/true", "Hello/true", "Hello/false"}, contents)
	assert.Equal(t, []bool{true, true, true, true, false}, loading)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1, "history excludes the placeholder")
	assert.Equal(t, user, calls[0][0])
}

func TestSendMessageIncludesEarlierMessages(t *testing.T) {
	mock := testutil.NewMockProvider("ok")
	o, _ := newTestOrchestrator(mock, newMemPersistence())
	o.CreateConversation()

	require.NoError(t, o.SendMessage(context.Background(), "one"))
	require.NoError(t, o.SendMessage(context.Background(), "two"))

	calls := mock.Calls()
	require.Len(t, calls, 2)
	require.Len(t, calls[1], 3)
	assert.Equal(t, "one", calls[1][0].Content)
	assert.Equal(t, "ok", calls[1][1].Content)
	assert.Equal(t, "two", calls[1][2].Content)

	c, _ := o.State().Current()
	assert.Equal(t, "one", c.Title)
	assert.Len(t, c.Messages, 4)
}

func TestSendMessageRequestError(t *testing.T) {
	mock := testutil.NewMockProvider()
	mock.StreamFunc = func(ctx context.Context, cfg model.APIConfig, history []model.Message) (model.DeltaStream, error) {
		return nil, &provider.RequestError{StatusCode: 500, Body: "boom"}
	}
	o, _ := newTestOrchestrator(mock, newMemPersistence())
	o.CreateConversation()

	err := o.SendMessage(context.Background(), "hi")
	var reqErr *provider.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 500, reqErr.StatusCode)

	state := o.State()
	msg := lastMessage(t, state)
	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.Equal(t, "错误: API request failed: 500 - boom", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.False(t, state.IsLoading)
}

func TestSendMessageStreamFailureAfterDeltas(t *testing.T) {
	mock := testutil.NewMockProvider()
	mock.StreamFunc = func(ctx context.Context, cfg model.APIConfig, history []model.Message) (model.DeltaStream, error) {
		return testutil.FailingStream(&provider.TransportError{Op: "read stream", Err: io.ErrUnexpectedEOF}, "par"), nil
	}
	store := NewStore(model.InitialState())
	o := NewOrchestrator(store, mock, newMemPersistence(), WithText(TextEnglish))
	o.CreateConversation()

	err := o.SendMessage(context.Background(), "hi")
	assert.True(t, provider.IsTransportError(err))

	msg := lastMessage(t, o.State())
	assert.Equal(t, "Error: network request failed (read stream): unexpected EOF", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.False(t, o.State().IsLoading)

	c, _ := o.State().Current()
	assert.Equal(t, "hi", c.Title)
}

func TestSendMessageRejected(t *testing.T) {
	mock := testutil.NewMockProvider("x")
	o, store := newTestOrchestrator(mock, newMemPersistence())

	err := o.SendMessage(context.Background(), "hello")
	assert.True(t, IsValidationError(err), "no conversation selected")
	assert.Equal(t, model.InitialState(), store.Snapshot())

	o.CreateConversation()
	before := store.Snapshot()
	for _, input := range []string{"", "   ", "\n\t"} {
		err := o.SendMessage(context.Background(), input)
		assert.True(t, IsValidationError(err), "input %q", input)
	}
	assert.Equal(t, before, store.Snapshot())
	assert.Empty(t, mock.Calls())
}

func TestSendMessageCancelledMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stream *testutil.BlockingStream
	ready := make(chan struct{})
	mock := testutil.NewMockProvider()
	mock.StreamFunc = func(sctx context.Context, cfg model.APIConfig, history []model.Message) (model.DeltaStream, error) {
		stream = testutil.NewBlockingStream(sctx, "par", "tial")
		close(ready)
		return stream, nil
	}
	o, _ := newTestOrchestrator(mock, newMemPersistence())
	convID := o.CreateConversation()

	done := make(chan error, 1)
	go func() { done <- o.SendMessage(ctx, "hi") }()

	<-ready
	<-stream.Ready
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("send did not return after cancel")
	}

	state := o.State()
	msg := lastMessage(t, state)
	assert.Equal(t, "partial", msg.Content)
	assert.True(t, msg.IsStreaming)
	assert.False(t, state.IsLoading)

	o.FinalizeMessage(convID, msg.ID)
	msg = lastMessage(t, o.State())
	assert.Equal(t, "partial", msg.Content)
	assert.False(t, msg.IsStreaming)
}

// cancelAtEnd cancels the send context once its deltas are used up, while
// still ending cleanly.
type cancelAtEnd struct {
	*testutil.SliceStream
	cancel context.CancelFunc
}

func (s cancelAtEnd) Next() bool {
	if s.SliceStream.Next() {
		return true
	}
	s.cancel()
	return false
}

func TestSendMessageFinalizesCompleteStreamDespiteLateCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := testutil.NewMockProvider()
	mock.StreamFunc = func(context.Context, model.APIConfig, []model.Message) (model.DeltaStream, error) {
		return cancelAtEnd{SliceStream: testutil.NewSliceStream("all ", "done"), cancel: cancel}, nil
	}
	o, _ := newTestOrchestrator(mock, newMemPersistence())
	o.CreateConversation()

	require.NoError(t, o.SendMessage(ctx, "hi"))
	require.Error(t, ctx.Err())

	state := o.State()
	msg := lastMessage(t, state)
	assert.Equal(t, "all done", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.False(t, state.IsLoading)
}

func TestSendMessageEndToEndOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"He", "llo"} {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
			w.(http.Flusher).Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	persist := newMemPersistence()
	persist.cfg.BaseURL = srv.URL + "/v1"
	o, _ := newTestOrchestrator(provider.NewStreamingProvider(), persist)
	require.NoError(t, o.Load(context.Background()))
	o.CreateConversation()

	require.NoError(t, o.SendMessage(context.Background(), "hi"))
	msg := lastMessage(t, o.State())
	assert.Equal(t, "Hello", msg.Content)
	assert.False(t, msg.IsStreaming)
}

func TestLoad(t *testing.T) {
	convs := []model.Conversation{
		{ID: "a", Title: "A", Messages: []model.Message{}},
		{ID: "b", Title: "B", Messages: []model.Message{}},
	}

	tests := []struct {
		name        string
		convs       []model.Conversation
		current     string
		wantCurrent string
	}{
		{"stored selection kept", convs, "b", "b"},
		{"unknown selection falls back to first", convs, "zzz", "a"},
		{"missing selection falls back to first", convs, "", "a"},
		{"cold start", nil, "", ""},
		{"selection without conversations", nil, "a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persist := newMemPersistence()
			persist.convs = tt.convs
			persist.currentID = tt.current
			persist.cfg.Temperature = 5

			o, _ := newTestOrchestrator(testutil.NewMockProvider(), persist)
			require.NoError(t, o.Load(context.Background()))

			state := o.State()
			assert.Equal(t, tt.wantCurrent, state.CurrentConversationID)
			assert.NotNil(t, state.Conversations)
			assert.Len(t, state.Conversations, len(tt.convs))
			assert.Equal(t, model.MaxTemperature, state.APIConfig.Temperature)
		})
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, store := newTestOrchestrator(testutil.NewMockProvider(), newMemPersistence())
	assert.ErrorIs(t, o.Load(ctx), context.Canceled)
	assert.Equal(t, model.InitialState(), store.Snapshot())
}

func TestUpdateConfigPersistsNormalized(t *testing.T) {
	persist := newMemPersistence()
	o, _ := newTestOrchestrator(testutil.NewMockProvider(), persist)

	cfg := model.DefaultAPIConfig()
	cfg.Model = " llama3.1:8b "
	cfg.MaxTokens = -1
	require.NoError(t, o.UpdateConfig(context.Background(), cfg))

	assert.Equal(t, "llama3.1:8b", o.State().APIConfig.Model)
	assert.Equal(t, model.DefaultMaxTokens, o.State().APIConfig.MaxTokens)
	assert.Equal(t, o.State().APIConfig, persist.LoadConfig(context.Background()))

	persist.saveErr = errors.New("disk full")
	err := o.UpdateConfig(context.Background(), cfg)
	assert.ErrorContains(t, err, "disk full")
}

func TestConversationManagement(t *testing.T) {
	o, _ := newTestOrchestrator(testutil.NewMockProvider(), newMemPersistence())

	assert.Equal(t, "id-1", o.EnsureConversation())
	assert.Equal(t, "id-1", o.EnsureConversation())

	second := o.CreateConversation()
	assert.Equal(t, second, o.State().CurrentConversationID)
	c, _ := o.State().Current()
	assert.Equal(t, "新对话", c.Title)

	o.SelectConversation("id-1")
	assert.Equal(t, "id-1", o.State().CurrentConversationID)

	o.RenameConversation("id-1", "  Plans  ")
	o.RenameConversation("id-1", "   ")
	c, _ = o.State().Current()
	assert.Equal(t, "Plans", c.Title)

	o.DeleteConversation("id-1")
	assert.Equal(t, second, o.State().CurrentConversationID)
	assert.Len(t, o.State().Conversations, 1)
}

func TestTestConnectionUsesCurrentConfig(t *testing.T) {
	mock := testutil.NewMockProvider()
	var got model.APIConfig
	mock.TestConnectionFunc = func(ctx context.Context, cfg model.APIConfig) bool {
		got = cfg
		return false
	}
	o, _ := newTestOrchestrator(mock, newMemPersistence())
	cfg := model.DefaultAPIConfig()
	cfg.Model = "probe"
	require.NoError(t, o.UpdateConfig(context.Background(), cfg))

	assert.False(t, o.TestConnection(context.Background()))
	assert.Equal(t, "probe", got.Model)
}

func TestTextFormatError(t *testing.T) {
	assert.Equal(t, "错误: boom", TextChinese.FormatError(errors.New("boom")))
	assert.Equal(t, "错误: 发生未知错误", TextChinese.FormatError(errors.New("")))
	assert.Equal(t, "Error: an unknown error occurred", TextEnglish.FormatError(nil))
	assert.Equal(t, TextEnglish, TextFor("EN"))
	assert.Equal(t, TextChinese, TextFor("fr"))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "streaming", PhaseStreaming.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
}
