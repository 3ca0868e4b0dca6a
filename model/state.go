package model

// State is the whole application state. Values handed out by the reducer are
// snapshots: callers must treat their slices as read-only.
type State struct {
	// Conversations are ordered most-recently-created first.
	Conversations []Conversation
	// CurrentConversationID is empty when no conversation is selected.
	CurrentConversationID string
	APIConfig             APIConfig
	IsLoading             bool
}

// InitialState is the state before anything has been loaded.
func InitialState() State {
	return State{APIConfig: DefaultAPIConfig()}
}

// FindConversation returns the index of the conversation with the given id, or -1.
func (s State) FindConversation(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.Conversations {
		if s.Conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// Conversation looks up a conversation by id.
func (s State) Conversation(id string) (Conversation, bool) {
	idx := s.FindConversation(id)
	if idx < 0 {
		return Conversation{}, false
	}
	return s.Conversations[idx], true
}

// Current returns the selected conversation, if any.
func (s State) Current() (Conversation, bool) {
	return s.Conversation(s.CurrentConversationID)
}
