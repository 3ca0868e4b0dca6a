package provider

import (
	"fmt"
	"strings"

	"mychat/model"
)

// NewProvider creates the transport for mode.
//
// Returns an error for an unknown mode.
func NewProvider(mode Mode, opts ...Option) (model.Provider, error) {
	switch mode {
	case ModeStream, "":
		return NewStreamingProvider(opts...), nil
	case ModeBuffered:
		return NewBufferedProvider(opts...), nil
	default:
		return nil, fmt.Errorf("unknown transport mode: %s", mode)
	}
}

// ParseMode converts a user-facing setting to a Mode. Matching is case
// insensitive; an empty string selects ModeStream.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStream, "":
		return ModeStream, nil
	case ModeBuffered:
		return ModeBuffered, nil
	default:
		return "", fmt.Errorf("unknown transport mode: %q (want %q or %q)", s, ModeStream, ModeBuffered)
	}
}
