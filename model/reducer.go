package model

// Apply returns the state that results from applying ev to s.
//
// s is never modified: every slice that changes is reallocated, and slices
// that do not change are shared with the previous snapshot. Events that
// address a conversation or message that does not exist leave the state
// unchanged.
func Apply(s State, ev Event) State {
	switch ev := ev.(type) {
	case ReplaceState:
		s.Conversations = ev.Conversations
		s.CurrentConversationID = ev.CurrentConversationID
		s.APIConfig = ev.APIConfig
		return s

	case SetConfig:
		s.APIConfig = ev.Config
		return s

	case SetLoading:
		s.IsLoading = ev.Loading
		return s

	case CreateConversation:
		conv := Conversation{
			ID:        ev.ID,
			Title:     ev.Title,
			Messages:  []Message{},
			CreatedAt: ev.At,
			UpdatedAt: ev.At,
		}
		convs := make([]Conversation, 0, len(s.Conversations)+1)
		convs = append(convs, conv)
		convs = append(convs, s.Conversations...)
		s.Conversations = convs
		s.CurrentConversationID = ev.ID
		return s

	case SelectConversation:
		if s.FindConversation(ev.ID) < 0 {
			return s
		}
		s.CurrentConversationID = ev.ID
		return s

	case DeleteConversation:
		idx := s.FindConversation(ev.ID)
		if idx < 0 {
			return s
		}
		convs := make([]Conversation, 0, len(s.Conversations)-1)
		convs = append(convs, s.Conversations[:idx]...)
		convs = append(convs, s.Conversations[idx+1:]...)
		s.Conversations = convs
		if s.CurrentConversationID == ev.ID {
			s.CurrentConversationID = ""
			if len(convs) > 0 {
				s.CurrentConversationID = convs[0].ID
			}
		}
		return s

	case AppendMessage:
		return s.withConversation(ev.ConversationID, func(c Conversation) (Conversation, bool) {
			if len(c.Messages) == 0 && ev.Message.Role == RoleUser {
				c.Title = DeriveTitle(ev.Message.Content)
			}
			msgs := make([]Message, len(c.Messages), len(c.Messages)+1)
			copy(msgs, c.Messages)
			c.Messages = append(msgs, ev.Message)
			c.UpdatedAt = ev.At
			return c, true
		})

	case UpdateMessage:
		return s.withConversation(ev.ConversationID, func(c Conversation) (Conversation, bool) {
			idx := c.FindMessage(ev.MessageID)
			if idx < 0 {
				return c, false
			}
			msgs := make([]Message, len(c.Messages))
			copy(msgs, c.Messages)
			msgs[idx].Content = ev.Content
			msgs[idx].IsStreaming = ev.IsStreaming
			c.Messages = msgs
			c.UpdatedAt = ev.At
			return c, true
		})

	case RenameConversation:
		return s.withConversation(ev.ID, func(c Conversation) (Conversation, bool) {
			c.Title = ev.Title
			return c, true
		})
	}

	return s
}

// withConversation replaces one conversation with the result of fn. When the
// conversation is missing or fn reports no change, s is returned untouched.
func (s State) withConversation(id string, fn func(Conversation) (Conversation, bool)) State {
	idx := s.FindConversation(id)
	if idx < 0 {
		return s
	}
	updated, changed := fn(s.Conversations[idx])
	if !changed {
		return s
	}
	convs := make([]Conversation, len(s.Conversations))
	copy(convs, s.Conversations)
	convs[idx] = updated
	s.Conversations = convs
	return s
}

// ApplyAll folds a sequence of events over s.
func ApplyAll(s State, events ...Event) State {
	for _, ev := range events {
		s = Apply(s, ev)
	}
	return s
}
