// Package tui is the terminal chat front end: a Bubble Tea program over a
// conversation session, plus a line-oriented REPL for pipes.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/completion"
	"github.com/papercomputeco/groqchat/pkg/conversation"
	"github.com/papercomputeco/groqchat/pkg/llm"
)

const (
	composerHeight = 3
	// title, status bar and error line
	chromeHeight = 3
)

// Options configures the terminal UI.
type Options struct {
	// MarkdownStyle is a glamour standard style name. Empty picks dark or
	// light from the terminal background.
	MarkdownStyle string
	Logger        *zap.Logger
}

type fragmentMsg struct {
	text string
}

type replyMsg struct {
	reply *llm.Reply
	err   error
}

// Model is the Bubble Tea model for one chat session.
type Model struct {
	ctx     context.Context
	session *conversation.Session
	client  completion.Client
	logger  *zap.Logger

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	markdown *markdown

	width  int
	height int
	ready  bool

	streaming    bool
	pending      string
	events       chan tea.Msg
	cancelStream context.CancelFunc
	lastErr      error
	notice       string
	quitting     bool
}

// NewModel creates the chat model. Blocking completion calls run under ctx.
func NewModel(ctx context.Context, session *conversation.Session, client completion.Client, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ta := textarea.New()
	ta.Placeholder = "Type your message here..."
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(composerHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return &Model{
		ctx:      ctx,
		session:  session,
		client:   client,
		logger:   logger,
		viewport: viewport.New(80, 20),
		textarea: ta,
		spinner:  sp,
		markdown: newMarkdown(opts.MarkdownStyle),
		width:    80,
		height:   20 + composerHeight + chromeHeight,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case fragmentMsg:
		m.pending += msg.text
		m.refresh()
		return m, waitFor(m.events)

	case replyMsg:
		m.finishStream(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		if m.cancelStream != nil {
			m.cancelStream()
		}
		return m, tea.Quit

	case "enter":
		return m.submit()

	case "ctrl+n":
		return m, m.cycleModel(1)

	case "ctrl+p":
		return m, m.cycleModel(-1)

	case "ctrl+u":
		m.adjustBudget(llm.TokenBudgetStep)
		return m, nil

	case "ctrl+d":
		m.adjustBudget(-llm.TokenBudgetStep)
		return m, nil

	case "ctrl+l":
		if err := m.session.Reset(); err != nil {
			m.notice = "cannot clear while a reply is streaming"
			return m, nil
		}
		m.lastErr = nil
		m.pending = ""
		m.notice = "transcript cleared"
		m.refresh()
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit starts a reply for the composer text. Fragments are delivered to
// Update through m.events.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	if m.streaming {
		return m, nil
	}
	prompt := strings.TrimSpace(m.textarea.Value())
	if prompt == "" {
		return m, nil
	}
	m.textarea.Reset()

	ctx, cancel := context.WithCancel(m.ctx)
	events := make(chan tea.Msg, 64)

	m.streaming = true
	m.pending = ""
	m.lastErr = nil
	m.notice = ""
	m.events = events
	m.cancelStream = cancel

	session, client := m.session, m.client
	go func() {
		defer close(events)
		defer cancel()

		send := func(msg tea.Msg) {
			select {
			case events <- msg:
			case <-ctx.Done():
			}
		}

		reply, err := session.Submit(ctx, client, prompt, func(fragment string) {
			send(fragmentMsg{text: fragment})
		})
		send(replyMsg{reply: reply, err: err})
	}()

	m.refreshPending(prompt)

	return m, tea.Batch(waitFor(events), m.spinner.Tick)
}

func (m *Model) finishStream(msg replyMsg) {
	m.streaming = false
	m.events = nil
	m.cancelStream = nil

	if msg.err != nil {
		m.lastErr = msg.err
		m.logger.Debug("reply failed", zap.Error(msg.err))
	} else {
		m.pending = ""
	}
	m.refresh()
}

func (m *Model) cycleModel(step int) tea.Cmd {
	if m.streaming {
		m.notice = "cannot switch models while a reply is streaming"
		return nil
	}

	catalog := llm.Catalog()
	i := llm.ModelIndex(m.session.Model().ID)
	next := catalog[(i+step+len(catalog))%len(catalog)]

	if _, err := m.session.SelectModel(next.ID); err != nil {
		m.notice = err.Error()
		return nil
	}
	m.lastErr = nil
	m.pending = ""
	m.notice = fmt.Sprintf("switched to %s, transcript cleared", next.DisplayName)
	m.refresh()
	return nil
}

func (m *Model) adjustBudget(delta int) {
	const busy = "cannot change the token budget while a reply is streaming"
	if m.streaming {
		m.notice = busy
		return
	}
	budget, err := m.session.SetBudget(m.session.Budget() + delta)
	if err != nil {
		m.notice = busy
		return
	}
	m.notice = fmt.Sprintf("max tokens %d", budget)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	vpHeight := max(height-composerHeight-chromeHeight, 1)
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(width)
	m.ready = true
	m.refresh()
}

// refreshPending redraws with prompt as the newest user turn; the submit
// goroutine may not have recorded it yet.
func (m *Model) refreshPending(prompt string) {
	turns := m.session.Store().Snapshot()
	if len(turns) == 0 || turns[len(turns)-1] != llm.UserTurn(prompt) {
		turns = append(turns, llm.UserTurn(prompt))
	}
	m.viewport.SetContent(m.renderTranscript(turns))
	m.viewport.GotoBottom()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript(m.session.Store().Snapshot()))
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript(turns []llm.Turn) string {
	width := max(m.width-2, 10)

	var b strings.Builder
	for _, turn := range turns {
		if turn.Role == llm.RoleUser {
			b.WriteString(userLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(ansi.Wrap(turn.Content, width, ""))
		} else {
			b.WriteString(assistantLabelStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(m.markdown.render(turn.Content, width))
		}
		b.WriteString("\n\n")
	}

	if m.pending != "" {
		b.WriteString(assistantLabelStyle.Render("Assistant"))
		b.WriteString("\n")
		b.WriteString(pendingStyle.Render(ansi.Wrap(m.pending, width, "")))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) statusLine() string {
	model := m.session.Model()
	state := conversation.StateIdle.String()
	if m.streaming {
		state = m.spinner.View() + " " + conversation.StateStreaming.String()
	}
	line := fmt.Sprintf("%s · %d tokens · %s", model.DisplayName, m.session.Budget(), state)
	return statusStyle.Render(ansi.Truncate(line, max(m.width-2, 1), "…"))
}

func (m *Model) errorLine() string {
	switch {
	case m.lastErr != nil:
		return errorStyle.Render(ansi.Truncate(describeError(m.lastErr), m.width, "…"))
	case m.notice != "":
		return hintStyle.Render(ansi.Truncate(m.notice, m.width, "…"))
	}
	return hintStyle.Render("enter send · ctrl+n/p model · ctrl+u/d tokens · ctrl+l clear · esc quit")
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Groq Chat"),
		m.viewport.View(),
		m.statusLine(),
		m.errorLine(),
		m.textarea.View(),
	)
}

// waitFor delivers the next message from ch, or nothing once ch is closed.
func waitFor(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func describeError(err error) string {
	var authErr *llm.AuthError
	if errors.As(err, &authErr) {
		return "authentication failed: set GROQ_API_KEY or api_key in the config file"
	}
	return fmt.Sprintf("error [%s]: %v", llm.KindOf(err), err)
}

// Run starts the full-screen chat program and blocks until the user quits.
func Run(ctx context.Context, session *conversation.Session, client completion.Client, opts Options) error {
	program := tea.NewProgram(
		NewModel(ctx, session, client, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat ui: %w", err)
	}
	return nil
}
