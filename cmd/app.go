package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mychat/chat"
	"mychat/config"
	"mychat/model"
	"mychat/provider"
	"mychat/storage"
)

// app wires the configured components together for one command run.
type app struct {
	cfg          *config.Config
	log          zerolog.Logger
	text         chat.Text
	storage      *storage.Store
	chat         *chat.Orchestrator
	saver        *chat.Autosaver
	providerOpts []provider.Option
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if transportFlag != "" {
		cfg.Transport = transportFlag
	}
	if langFlag != "" {
		cfg.Language = langFlag
	}

	log := config.InitDebugLog(cfg.DataDir())

	mode, err := provider.ParseMode(cfg.Transport)
	if err != nil {
		return nil, err
	}
	opts := []provider.Option{provider.WithLogger(log)}
	p, err := provider.NewProvider(mode, opts...)
	if err != nil {
		return nil, err
	}

	st, err := storage.Open(cfg.DataDir(), log)
	if err != nil {
		return nil, err
	}
	if err := config.CreateDefaultUserConfig(cfg.DataDir()); err != nil {
		log.Warn().Err(err).Msg("failed to write api config template")
	}

	text := chat.TextFor(cfg.Language)
	store := chat.NewStore(model.InitialState())
	orch := chat.NewOrchestrator(store, p, st, chat.WithLogger(log), chat.WithText(text))
	if err := orch.Load(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	log.Debug().
		Str("transport", string(mode)).
		Str("language", cfg.Language).
		Str("data_dir", cfg.DataDir()).
		Msg("application started")

	return &app{
		cfg:          cfg,
		log:          log,
		text:         text,
		storage:      st,
		chat:         orch,
		saver:        chat.NewAutosaver(store, st, cfg.SaveDebounce, log),
		providerOpts: opts,
	}, nil
}

// Close flushes pending saves and closes the database.
func (a *app) Close() {
	a.saver.Close()
	if err := a.storage.Close(); err != nil {
		a.log.Error().Err(err).Msg("failed to close database")
	}
}

// findConversation resolves an id or unique id prefix.
func findConversation(s model.State, ref string) (model.Conversation, error) {
	if c, ok := s.Conversation(ref); ok {
		return c, nil
	}
	var match []model.Conversation
	for _, c := range s.Conversations {
		if len(ref) >= 4 && len(c.ID) > len(ref) && c.ID[:len(ref)] == ref {
			match = append(match, c)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return model.Conversation{}, fmt.Errorf("no conversation %q", ref)
	default:
		return model.Conversation{}, fmt.Errorf("conversation id %q is ambiguous", ref)
	}
}
