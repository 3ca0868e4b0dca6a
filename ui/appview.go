package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"mychat/chat"
	"mychat/model"
)

type (
	// stateMsg carries a new store snapshot.
	stateMsg model.State

	sendDoneMsg struct {
		conversationID string
		err            error
	}

	connectionMsg struct {
		ok bool
	}
)

type renderedMessage struct {
	content string
	width   int
	out     string
}

// AppView is the interactive chat screen.
type AppView struct {
	chat *chat.Orchestrator
	text chat.Text
	log  zerolog.Logger

	state    model.State
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	filter   textinput.Model

	filtering     bool
	confirmDelete bool
	width      int
	height     int
	status     string
	cancelSend context.CancelFunc
	rendered   map[string]renderedMessage
}

func NewAppView(orch *chat.Orchestrator, text chat.Text, log zerolog.Logger) AppView {
	ta := textarea.New()
	ta.Placeholder = "Type a message, Enter to send, Alt+Enter for a new line"
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.CharLimit = 64

	return AppView{
		chat:     orch,
		text:     text,
		log:      log,
		state:    orch.State(),
		textarea: ta,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		filter:   filter,
		rendered: map[string]renderedMessage{},
	}
}

func (a AppView) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, a.spinner.Tick)
}

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.layout()
		a.refreshViewport(true)
		return a, nil

	case stateMsg:
		atBottom := a.viewport.AtBottom()
		a.state = model.State(msg)
		a.refreshViewport(atBottom)
		return a, nil

	case sendDoneMsg:
		a.cancelSend = nil
		a.state = a.chat.State()
		switch {
		case msg.err == nil:
			a.status = ""
		case errors.Is(msg.err, context.Canceled):
			a.finalizeStreaming(msg.conversationID)
			a.status = "stopped"
		case chat.IsValidationError(msg.err):
		default:
			a.status = ErrorStyle.Render(truncateTitle(msg.err.Error(), max(a.width-4, 10)))
		}
		a.refreshViewport(true)
		return a, nil

	case connectionMsg:
		if msg.ok {
			a.status = "connection ok"
		} else {
			a.status = ErrorStyle.Render("connection failed")
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		if a.state.IsLoading {
			a.refreshViewport(a.viewport.AtBottom())
		}
		return a, cmd

	case tea.KeyMsg:
		if a.confirmDelete {
			return a.updateConfirmDelete(msg)
		}
		if a.filtering {
			return a.updateFilter(msg)
		}
		return a.handleKey(msg)
	}

	return a, nil
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if a.cancelSend != nil {
			a.cancelSend()
		}
		return a, tea.Quit

	case "esc":
		if a.cancelSend != nil {
			a.cancelSend()
		}
		return a, nil

	case "enter":
		if a.state.IsLoading || a.cancelSend != nil {
			return a, nil
		}
		input := a.textarea.Value()
		if strings.TrimSpace(input) == "" {
			return a, nil
		}
		a.textarea.Reset()
		a.status = ""
		return a, a.send(input)

	case "ctrl+n":
		if a.state.IsLoading {
			return a, nil
		}
		a.chat.CreateConversation()
		a.state = a.chat.State()
		a.refreshViewport(true)
		return a, nil

	case "ctrl+d":
		if a.state.IsLoading || a.state.CurrentConversationID == "" {
			return a, nil
		}
		a.confirmDelete = true
		a.status = ErrorStyle.Render(fmt.Sprintf("Delete %q? (y/n)", truncateTitle(a.currentTitle(), 30)))
		return a, nil

	case "ctrl+up", "alt+up", "ctrl+k":
		return a.selectConversation(-1), nil

	case "ctrl+down", "alt+down", "ctrl+j":
		return a.selectConversation(1), nil

	case "ctrl+f":
		a.filtering = true
		a.textarea.Blur()
		return a, a.filter.Focus()

	case "ctrl+y":
		if reply, ok := a.lastReply(); ok {
			if err := clipboard.WriteAll(reply); err != nil {
				a.log.Error().Err(err).Msg("failed to copy reply")
				a.status = ErrorStyle.Render("copy failed")
			} else {
				a.status = "reply copied"
			}
		}
		return a, nil

	case "ctrl+t":
		return a, a.testConnection()

	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

// updateConfirmDelete answers the delete prompt. Only y deletes.
func (a AppView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.confirmDelete = false
	a.status = ""
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "y", "Y":
		if a.state.IsLoading {
			return a, nil
		}
		a.chat.DeleteConversation(a.state.CurrentConversationID)
		a.chat.EnsureConversation()
		a.state = a.chat.State()
		a.refreshViewport(true)
	}
	return a, nil
}

func (a AppView) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.filter.Reset()
		fallthrough
	case "enter":
		a.filtering = false
		a.filter.Blur()
		if a.filter.Value() != "" {
			if convs := a.visibleConversations(); len(convs) > 0 && !a.state.IsLoading {
				a.chat.SelectConversation(convs[0].ID)
				a.state = a.chat.State()
				a.refreshViewport(true)
			}
		}
		return a, a.textarea.Focus()
	case "ctrl+c":
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(msg)
	return a, cmd
}

func (a AppView) selectConversation(offset int) AppView {
	if a.state.IsLoading {
		return a
	}
	if id := a.neighbour(offset); id != "" {
		a.chat.SelectConversation(id)
		a.state = a.chat.State()
		a.refreshViewport(true)
	}
	return a
}

// send starts a send cycle in the background. Esc cancels it.
func (a *AppView) send(input string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelSend = cancel
	convID := a.state.CurrentConversationID
	orch := a.chat

	return func() tea.Msg {
		defer cancel()
		return sendDoneMsg{conversationID: convID, err: orch.SendMessage(ctx, input)}
	}
}

func (a AppView) testConnection() tea.Cmd {
	orch := a.chat
	return func() tea.Msg {
		return connectionMsg{ok: orch.TestConnection(context.Background())}
	}
}

// finalizeStreaming ends any message a cancelled send left streaming.
func (a *AppView) finalizeStreaming(conversationID string) {
	conv, ok := a.state.Conversation(conversationID)
	if !ok {
		return
	}
	for _, m := range conv.Messages {
		if m.IsStreaming {
			a.chat.FinalizeMessage(conversationID, m.ID)
		}
	}
	a.state = a.chat.State()
}

func (a AppView) lastReply() (string, bool) {
	conv, ok := a.state.Current()
	if !ok {
		return "", false
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if m := conv.Messages[i]; m.Role == model.RoleAssistant && !m.IsStreaming && m.Content != "" {
			return m.Content, true
		}
	}
	return "", false
}

func (a *AppView) layout() {
	mainWidth := max(a.width-sidebarWidth-3, 20)
	a.textarea.SetWidth(mainWidth)
	a.viewport.Width = mainWidth
	a.viewport.Height = max(a.height-a.textarea.Height()-3, 3)
}

func (a *AppView) refreshViewport(gotoBottom bool) {
	conv, ok := a.state.Current()
	if !ok || len(conv.Messages) == 0 {
		a.viewport.SetContent(DimStyle.Render("No messages yet. Start chatting!"))
		return
	}

	var b strings.Builder
	for _, m := range conv.Messages {
		b.WriteString(a.renderMessage(m))
		b.WriteString("\n\n")
	}
	a.viewport.SetContent(b.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a *AppView) renderMessage(m model.Message) string {
	timestamp := DimStyle.Render(m.Timestamp.Format("[15:04]"))

	switch m.Role {
	case model.RoleUser:
		return fmt.Sprintf("%s %s\n%s", timestamp, UserStyle.Render("You"), wrap(m.Content, a.viewport.Width))
	case model.RoleAssistant:
		header := fmt.Sprintf("%s %s", timestamp, AssistantStyle.Render("Assistant"))
		if m.IsStreaming {
			if m.Content == "" {
				return header + "\n" + a.spinner.View()
			}
			return header + "\n" + wrap(m.Content, a.viewport.Width) + " " + a.spinner.View()
		}
		if strings.HasPrefix(m.Content, a.text.ErrorPrefix) {
			return header + "\n" + ErrorStyle.Render(wrap(m.Content, a.viewport.Width))
		}
		return header + "\n" + a.renderedContent(m)
	default:
		return DimStyle.Render(m.Content)
	}
}

// renderedContent returns the Markdown rendering of a finished message,
// reusing the previous result while content and width are unchanged.
func (a *AppView) renderedContent(m model.Message) string {
	width := a.viewport.Width
	if r, ok := a.rendered[m.ID]; ok && r.content == m.Content && r.width == width {
		return r.out
	}
	out := strings.TrimRight(renderMarkdown(m.Content, width), "\n")
	a.rendered[m.ID] = renderedMessage{content: m.Content, width: width, out: out}
	return out
}

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func (a AppView) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := TitleStyle.Render(a.currentTitle())
	if a.state.IsLoading {
		header += " " + a.spinner.View()
	}
	main := lipgloss.JoinVertical(lipgloss.Left,
		header,
		a.viewport.View(),
		a.textarea.View(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, a.renderSidebar(a.height-1), main)

	footer := FormatFooter("Enter", "Send", "Esc", "Stop", "^N", "New", "^D", "Delete", "^K/^J", "Switch", "^F", "Find", "^Y", "Copy", "^T", "Test")
	if a.status != "" {
		footer = a.status + "  " + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, truncateTitle(footer, a.width))
}

func (a AppView) currentTitle() string {
	if c, ok := a.state.Current(); ok {
		return truncateTitle(c.Title, max(a.width-sidebarWidth-6, 10))
	}
	return a.text.NewConversationTitle
}

// Run starts the interface and blocks until the user quits.
func Run(orch *chat.Orchestrator, text chat.Text, log zerolog.Logger) error {
	p := tea.NewProgram(NewAppView(orch, text, log), tea.WithAltScreen())

	fwd := newStateForwarder(p.Send)
	stop := orch.Subscribe(fwd.publish)
	defer stop()
	go fwd.run()
	defer fwd.close()

	_, err := p.Run()
	return err
}

// stateForwarder hands store snapshots to the program without blocking the
// dispatching goroutine. Only the latest pending snapshot is delivered.
type stateForwarder struct {
	send   func(tea.Msg)
	mu     sync.Mutex
	latest *model.State
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newStateForwarder(send func(tea.Msg)) *stateForwarder {
	return &stateForwarder{
		send: send,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (f *stateForwarder) publish(s model.State) {
	f.mu.Lock()
	f.latest = &s
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *stateForwarder) run() {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
			f.mu.Lock()
			s := f.latest
			f.latest = nil
			f.mu.Unlock()
			if s != nil {
				f.send(stateMsg(*s))
			}
		}
	}
}

func (f *stateForwarder) close() {
	f.once.Do(func() { close(f.done) })
}
