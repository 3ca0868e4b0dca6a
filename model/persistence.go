package model

import "context"

// Persistence is the storage collaborator the chat core reads its startup
// state from and writes changes back to.
//
// Loads do not fail: implementations log the problem and return a default
// (DefaultAPIConfig, no conversations, no current id). Saves report errors so
// callers can log them; the in-memory state stays authoritative either way.
type Persistence interface {
	LoadConfig(ctx context.Context) APIConfig
	SaveConfig(ctx context.Context, cfg APIConfig) error
	LoadConversations(ctx context.Context) []Conversation
	SaveConversations(ctx context.Context, convs []Conversation) error
	LoadCurrentID(ctx context.Context) string
	SaveCurrentID(ctx context.Context, id string) error
}
