package chat

import (
	"strings"

	"mychat/config"
)

// Text holds the user-visible strings the orchestrator writes into state.
type Text struct {
	NewConversationTitle string
	ErrorPrefix          string
	UnknownError         string
}

var (
	TextChinese = Text{
		NewConversationTitle: "新对话",
		ErrorPrefix:          "错误: ",
		UnknownError:         "发生未知错误",
	}
	TextEnglish = Text{
		NewConversationTitle: "New chat",
		ErrorPrefix:          "Error: ",
		UnknownError:         "an unknown error occurred",
	}
)

// TextFor returns the strings for a language code; Chinese is the default.
func TextFor(lang string) Text {
	if strings.EqualFold(strings.TrimSpace(lang), config.LanguageEnglish) {
		return TextEnglish
	}
	return TextChinese
}

// FormatError renders err as the content of a failed assistant message.
func (t Text) FormatError(err error) string {
	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = t.UnknownError
	}
	return t.ErrorPrefix + msg
}
