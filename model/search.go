package model

import "github.com/sahilm/fuzzy"

// FilterConversations returns the conversations whose titles fuzzy-match
// query, best match first. An empty query returns convs unchanged.
func FilterConversations(convs []Conversation, query string) []Conversation {
	if query == "" {
		return convs
	}

	targets := make([]string, len(convs))
	for i, c := range convs {
		targets[i] = c.Title
	}

	matches := fuzzy.Find(query, targets)
	filtered := make([]Conversation, len(matches))
	for i, match := range matches {
		filtered[i] = convs[match.Index]
	}
	return filtered
}
