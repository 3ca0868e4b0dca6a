package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mychat/model"
)

const saveTimeout = 10 * time.Second

// Autosaver writes store changes back to persistence. With a positive delay,
// bursts of changes (such as streamed deltas) are coalesced into one save per
// delay window; with zero delay every change is saved before Dispatch
// returns. Only the parts of the state that changed since the last save are
// written. Failures are logged and retried with the next change.
type Autosaver struct {
	store   *Store
	persist model.Persistence
	delay   time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	closed  bool
	cancel  func()

	saveMu    sync.Mutex
	saved     bool
	lastConvs []model.Conversation
	lastCfg   model.APIConfig
	lastID    string
}

// NewAutosaver starts saving changes from store. The state present at the
// time of the call counts as already persisted.
func NewAutosaver(store *Store, persist model.Persistence, delay time.Duration, log zerolog.Logger) *Autosaver {
	a := &Autosaver{
		store:   store,
		persist: persist,
		delay:   delay,
		log:     log.With().Str("component", "autosave").Logger(),
	}
	a.markSaved(store.Snapshot())
	a.cancel = store.Subscribe(a.onChange)
	return a
}

func (a *Autosaver) markSaved(s model.State) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	a.saved = true
	a.lastConvs = s.Conversations
	a.lastCfg = s.APIConfig
	a.lastID = s.CurrentConversationID
}

func (a *Autosaver) onChange(model.State) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.delay <= 0 {
		a.mu.Unlock()
		a.save()
		return
	}
	if !a.pending {
		a.pending = true
		a.timer = time.AfterFunc(a.delay, a.fire)
	}
	a.mu.Unlock()
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	if !a.pending {
		a.mu.Unlock()
		return
	}
	a.pending = false
	a.mu.Unlock()
	a.save()
}

// Flush writes any pending change immediately.
func (a *Autosaver) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.pending = false
	a.mu.Unlock()
	a.save()
}

// Close stops watching the store and flushes what is pending.
func (a *Autosaver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.Flush()
}

func (a *Autosaver) save() {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	s := a.store.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if !a.saved || !sameConversations(a.lastConvs, s.Conversations) {
		if err := a.persist.SaveConversations(ctx, s.Conversations); err != nil {
			a.log.Error().Err(err).Msg("failed to save conversations")
		} else {
			a.lastConvs = s.Conversations
		}
	}
	if !a.saved || a.lastCfg != s.APIConfig {
		if err := a.persist.SaveConfig(ctx, s.APIConfig); err != nil {
			a.log.Error().Err(err).Msg("failed to save config")
		} else {
			a.lastCfg = s.APIConfig
		}
	}
	if !a.saved || a.lastID != s.CurrentConversationID {
		if err := a.persist.SaveCurrentID(ctx, s.CurrentConversationID); err != nil {
			a.log.Error().Err(err).Msg("failed to save current conversation")
		} else {
			a.lastID = s.CurrentConversationID
		}
	}
	a.saved = true
}

// sameConversations reports whether two snapshots share the same backing
// array. The reducer reallocates the slice on every change, so identity is
// enough.
func sameConversations(a, b []model.Conversation) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return (a == nil) == (b == nil)
	}
	return &a[0] == &b[0]
}
