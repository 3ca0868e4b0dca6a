package model

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents a chat message in a conversation.
//
// A message with IsStreaming set belongs to the assistant and is owned by the
// send cycle that created it; nothing else writes to it until the flag clears.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"isStreaming,omitempty"`
}

// Conversation is an ordered chat history. Insertion order is chronological.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FindMessage returns the index of the message with the given id, or -1.
func (c Conversation) FindMessage(id string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// TitleMaxRunes is the number of characters kept when deriving a title.
const TitleMaxRunes = 30

// DeriveTitle builds a conversation title from the first user message:
// the first 30 characters, with "..." appended when the content was longer.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= TitleMaxRunes {
		return content
	}
	return string(runes[:TitleMaxRunes]) + "..."
}
