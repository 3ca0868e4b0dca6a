package model

import "time"

// Event is a state transition understood by Apply. Events carry every id and
// instant the transition needs so that Apply stays a pure function.
type Event interface {
	event()
}

// ReplaceState swaps in persisted state on startup. IsLoading is kept.
type ReplaceState struct {
	Conversations         []Conversation
	CurrentConversationID string
	APIConfig             APIConfig
}

// SetConfig replaces the API configuration.
type SetConfig struct {
	Config APIConfig
}

// SetLoading toggles the in-flight indicator.
type SetLoading struct {
	Loading bool
}

// CreateConversation prepends an empty conversation and selects it.
type CreateConversation struct {
	ID    string
	Title string
	At    time.Time
}

// SelectConversation makes an existing conversation current.
type SelectConversation struct {
	ID string
}

// DeleteConversation removes a conversation.
type DeleteConversation struct {
	ID string
}

// AppendMessage adds a message to the end of a conversation.
type AppendMessage struct {
	ConversationID string
	Message        Message
	At             time.Time
}

// UpdateMessage rewrites the content and streaming flag of one message.
type UpdateMessage struct {
	ConversationID string
	MessageID      string
	Content        string
	IsStreaming    bool
	At             time.Time
}

// RenameConversation sets an explicit title.
type RenameConversation struct {
	ID    string
	Title string
}

func (ReplaceState) event()       {}
func (SetConfig) event()          {}
func (SetLoading) event()         {}
func (CreateConversation) event() {}
func (SelectConversation) event() {}
func (DeleteConversation) event() {}
func (AppendMessage) event()      {}
func (UpdateMessage) event()      {}
func (RenameConversation) event() {}
