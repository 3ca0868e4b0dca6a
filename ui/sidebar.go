package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"mychat/model"
)

const sidebarWidth = 28

// truncateTitle shortens title to fit width terminal cells.
func truncateTitle(title string, width int) string {
	title = strings.ReplaceAll(title, "\n", " ")
	if runewidth.StringWidth(title) <= width {
		return title
	}
	return runewidth.Truncate(title, width, "…")
}

func (a AppView) visibleConversations() []model.Conversation {
	return model.FilterConversations(a.state.Conversations, a.filter.Value())
}

// neighbour returns the id of the conversation offset places away from the
// current one in the visible list.
func (a AppView) neighbour(offset int) string {
	convs := a.visibleConversations()
	if len(convs) == 0 {
		return ""
	}
	idx := 0
	for i, c := range convs {
		if c.ID == a.state.CurrentConversationID {
			idx = i
			break
		}
	}
	idx = (idx + offset + len(convs)) % len(convs)
	return convs[idx].ID
}

func (a AppView) renderSidebar(height int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Conversations"))
	b.WriteString("\n")
	if a.filtering || a.filter.Value() != "" {
		b.WriteString(a.filter.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	lines := 0
	for _, c := range a.visibleConversations() {
		if lines >= height-4 {
			break
		}
		title := truncateTitle(c.Title, sidebarWidth-2)
		if c.ID == a.state.CurrentConversationID {
			b.WriteString(SelectedStyle.Render("> " + title))
		} else {
			b.WriteString("  " + title)
		}
		b.WriteString("\n")
		lines++
	}

	return SidebarStyle.Width(sidebarWidth).Height(height).Render(b.String())
}
