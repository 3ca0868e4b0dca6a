package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mychat/model"
)

// Phase is a step of the send cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUserMessageAppended
	PhaseAssistantPlaceholderAppended
	PhaseStreaming
	PhaseFinalized
	PhaseErrored
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUserMessageAppended:
		return "user_message_appended"
	case PhaseAssistantPlaceholderAppended:
		return "assistant_placeholder_appended"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalized:
		return "finalized"
	case PhaseErrored:
		return "errored"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithText(t Text) Option {
	return func(o *Orchestrator) { o.text = t }
}

// WithClock replaces time.Now for message and conversation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the uuid generator for new ids.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// Orchestrator is the chat API the UI and CLI call. It turns user actions into
// store events and drives the provider during a send cycle.
type Orchestrator struct {
	store    *Store
	provider model.Provider
	persist  model.Persistence

	text  Text
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

func NewOrchestrator(store *Store, provider model.Provider, persist model.Persistence, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		provider: provider,
		persist:  persist,
		text:     TextChinese,
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With().Str("component", "chat").Logger()
	return o
}

// Load replaces the state with what persistence holds. A stored selection that
// no longer names a conversation falls back to the first one.
func (o *Orchestrator) Load(ctx context.Context) error {
	var (
		cfg     model.APIConfig
		convs   []model.Conversation
		current string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg = o.persist.LoadConfig(gctx)
		return nil
	})
	g.Go(func() error {
		convs = o.persist.LoadConversations(gctx)
		return nil
	})
	g.Go(func() error {
		current = o.persist.LoadCurrentID(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if convs == nil {
		convs = []model.Conversation{}
	}
	if !hasConversation(convs, current) {
		current = ""
		if len(convs) > 0 {
			current = convs[0].ID
		}
	}

	o.store.Dispatch(model.ReplaceState{
		Conversations:         convs,
		CurrentConversationID: current,
		APIConfig:             cfg.Normalize(),
	})
	o.log.Debug().Int("conversations", len(convs)).Str("current", current).Msg("state loaded")
	return nil
}

func hasConversation(convs []model.Conversation, id string) bool {
	if id == "" {
		return false
	}
	for _, c := range convs {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (o *Orchestrator) State() model.State {
	return o.store.Snapshot()
}

func (o *Orchestrator) Subscribe(fn func(model.State)) (cancel func()) {
	return o.store.Subscribe(fn)
}

// CreateConversation adds an empty conversation, selects it and returns its id.
func (o *Orchestrator) CreateConversation() string {
	id := o.newID()
	o.store.Dispatch(model.CreateConversation{ID: id, Title: o.text.NewConversationTitle, At: o.now()})
	return id
}

// EnsureConversation selects the current conversation, creating one if none
// exists, and returns its id.
func (o *Orchestrator) EnsureConversation() string {
	if c, ok := o.store.Snapshot().Current(); ok {
		return c.ID
	}
	return o.CreateConversation()
}

func (o *Orchestrator) SelectConversation(id string) {
	o.store.Dispatch(model.SelectConversation{ID: id})
}

func (o *Orchestrator) DeleteConversation(id string) {
	o.store.Dispatch(model.DeleteConversation{ID: id})
}

func (o *Orchestrator) RenameConversation(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	o.store.Dispatch(model.RenameConversation{ID: id, Title: title})
}

// UpdateConfig normalizes cfg, makes it current and writes it to persistence.
func (o *Orchestrator) UpdateConfig(ctx context.Context, cfg model.APIConfig) error {
	cfg = cfg.Normalize()
	o.store.Dispatch(model.SetConfig{Config: cfg})
	if err := o.persist.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// TestConnection probes the configured endpoint.
func (o *Orchestrator) TestConnection(ctx context.Context) bool {
	return o.provider.TestConnection(ctx, o.store.Snapshot().APIConfig)
}

// FinalizeMessage clears the streaming flag of a message left behind by a
// cancelled send, keeping its content.
func (o *Orchestrator) FinalizeMessage(conversationID, messageID string) {
	conv, ok := o.store.Snapshot().Conversation(conversationID)
	if !ok {
		return
	}
	idx := conv.FindMessage(messageID)
	if idx < 0 || !conv.Messages[idx].IsStreaming {
		return
	}
	o.store.Dispatch(model.UpdateMessage{
		ConversationID: conversationID,
		MessageID:      messageID,
		Content:        conv.Messages[idx].Content,
		IsStreaming:    false,
		At:             o.now(),
	})
}

// SendMessage runs one send cycle for the current conversation.
//
// Blank input or a missing conversation returns a *ValidationError and
// changes nothing. Otherwise the user message and an empty assistant message
// are appended and the reply is written into the assistant message delta by
// delta. A provider failure is written into the assistant message as an
// error text and also returned. If ctx is cancelled the partial reply is left
// as it is, still marked streaming, and ctx.Err() is returned.
//
// IsLoading is true for the duration of the cycle. The caller must not start
// a second cycle while it is set.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) error {
	content := strings.TrimSpace(text)
	state := o.store.Snapshot()
	conv, ok := state.Current()
	if !ok {
		return &ValidationError{Reason: "no conversation selected"}
	}
	if content == "" {
		return &ValidationError{Reason: "message is empty"}
	}

	log := o.log.With().Str("conversation", conv.ID).Logger()

	now := o.now()
	userMsg := model.Message{
		ID:        o.newID(),
		Role:      model.RoleUser,
		Content:   content,
		Timestamp: now,
	}
	o.store.Dispatch(
		model.AppendMessage{ConversationID: conv.ID, Message: userMsg, At: now},
		model.SetLoading{Loading: true},
	)
	log.Debug().Stringer("phase", PhaseUserMessageAppended).Msg("send cycle")

	history := make([]model.Message, 0, len(conv.Messages)+1)
	history = append(history, conv.Messages...)
	history = append(history, userMsg)

	assistantID := o.newID()
	now = o.now()
	o.store.Dispatch(model.AppendMessage{
		ConversationID: conv.ID,
		Message: model.Message{
			ID:          assistantID,
			Role:        model.RoleAssistant,
			Timestamp:   now,
			IsStreaming: true,
		},
		At: now,
	})
	log.Debug().Stringer("phase", PhaseAssistantPlaceholderAppended).Str("message", assistantID).Msg("send cycle")

	cfg := o.store.Snapshot().APIConfig.Normalize()
	stream, err := o.provider.Stream(ctx, cfg, history)
	if err != nil {
		return o.abort(ctx, log, conv.ID, assistantID, err)
	}
	defer stream.Close()

	log.Debug().Stringer("phase", PhaseStreaming).Msg("send cycle")

	var reply strings.Builder
	deltas := 0
	for stream.Next() {
		reply.WriteString(stream.Current())
		deltas++
		o.store.Dispatch(model.UpdateMessage{
			ConversationID: conv.ID,
			MessageID:      assistantID,
			Content:        reply.String(),
			IsStreaming:    true,
			At:             o.now(),
		})
	}
	// A stream that ended cleanly is finalized even if ctx was cancelled
	// after its last delta.
	if err := stream.Err(); err != nil {
		return o.abort(ctx, log, conv.ID, assistantID, err)
	}

	o.store.Dispatch(
		model.UpdateMessage{
			ConversationID: conv.ID,
			MessageID:      assistantID,
			Content:        reply.String(),
			IsStreaming:    false,
			At:             o.now(),
		},
		model.SetLoading{Loading: false},
	)
	log.Debug().Stringer("phase", PhaseFinalized).Int("deltas", deltas).Int("bytes", reply.Len()).Msg("send cycle")
	return nil
}

// abort ends a send cycle that did not finish. Cancellation by the caller
// leaves the message as it is; anything else replaces it with an error text.
func (o *Orchestrator) abort(ctx context.Context, log zerolog.Logger, convID, msgID string, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) && errors.Is(err, context.Canceled) {
		o.store.Dispatch(model.SetLoading{Loading: false})
		log.Debug().Stringer("phase", PhaseCancelled).Str("message", msgID).Msg("send cycle")
		return ctxErr
	}

	o.store.Dispatch(
		model.UpdateMessage{
			ConversationID: convID,
			MessageID:      msgID,
			Content:        o.text.FormatError(err),
			IsStreaming:    false,
			At:             o.now(),
		},
		model.SetLoading{Loading: false},
	)
	log.Error().Err(err).Stringer("phase", PhaseErrored).Msg("send cycle failed")
	return err
}
