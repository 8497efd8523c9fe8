// Package ui is the terminal front end: a session sidebar, the message
// viewport and a composer. It never holds chat state of its own; every
// frame is derived from a snapshot of the session store.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"UnfilteredChat/internal/cache"
	"UnfilteredChat/internal/chatbot"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var suggestions = []string{
	"Fix my broken Python code",
	"Why is my business failing?",
	"Roast my landing page design",
	"Give me a brutal workout routine",
}

// storeChangedMsg is sent after every session store mutation.
type storeChangedMsg struct{}

// submitDoneMsg reports the end of a submit, successful or not. text is the
// composer content that was sent.
type submitDoneMsg struct {
	text string
	err  error
}

// commandDoneMsg carries the outcome of a slash command.
type commandDoneMsg struct {
	res chatbot.CommandResult
	err error
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctx    context.Context
	bot    *chatbot.ChatBot
	logger *slog.Logger
	keys   keyMap

	width, height int
	showSidebar   bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	renderer   *glamour.TermRenderer
	renderWrap int
	renders    *cache.RenderCache

	suggestion int // -1 until tab is pressed
	status     string
	statusErr  bool

	// waiting is set from Enter until submitDoneMsg, covering the gap
	// before the bot reports busy.
	waiting bool
}

// New creates the chat screen model.
func New(ctx context.Context, bot *chatbot.ChatBot, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask me something, if you dare."
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = modelLabelStyle

	return Model{
		ctx:         ctx,
		bot:         bot,
		logger:      logger,
		keys:        defaultKeyMap(),
		showSidebar: true,
		viewport:    viewport.New(0, 0),
		input:       ta,
		spinner:     sp,
		suggestion:  -1,
		renders:     cache.New(cache.DefaultCapacity),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case storeChangedMsg:
		m.refresh()
		return m, nil

	case submitDoneMsg:
		m.waiting = false
		if msg.err != nil {
			if errors.Is(msg.err, chatbot.ErrBusy) && m.input.Value() == "" {
				m.input.SetValue(msg.text)
			}
			m.setStatus(msg.err.Error(), true)
		}
		m.refresh()
		return m, nil

	case commandDoneMsg:
		m.status, m.statusErr = msg.res.Output, false
		if msg.err != nil {
			m.setStatus(strings.TrimSpace(msg.res.Output+"\n"+msg.err.Error()), true)
		}
		m.layout()
		m.refresh()
		if msg.res.Quit {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting && !m.bot.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.NewChat):
		m.bot.Store().CreateSession()
		m.suggestion = -1
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PrevSession):
		m.stepSession(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextSession):
		m.stepSession(1)
		return m, nil

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		m.layout()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Suggest) && m.emptySession():
		m.suggestion = (m.suggestion + 1) % len(suggestions)
		m.input.SetValue(suggestions[m.suggestion])
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "/") {
		m.input.Reset()
		return m, m.commandCmd(trimmed)
	}

	if trimmed == "" && len(m.bot.Attachments()) == 0 {
		return m, nil
	}
	if m.waiting || m.bot.Busy() {
		m.setStatus(chatbot.ErrBusy.Error(), true)
		return m, nil
	}

	m.input.Reset()
	m.waiting = true
	m.status = ""
	m.suggestion = -1
	m.layout()
	return m, tea.Batch(m.submitCmd(trimmed), m.spinner.Tick)
}

func (m Model) submitCmd(text string) tea.Cmd {
	ctx, bot := m.ctx, m.bot
	return func() tea.Msg {
		err := bot.Submit(ctx, text, nil)
		if err != nil && !errors.Is(err, chatbot.ErrEmptyInput) {
			return submitDoneMsg{text: text, err: err}
		}
		return submitDoneMsg{text: text}
	}
}

func (m Model) commandCmd(line string) tea.Cmd {
	ctx, bot := m.ctx, m.bot
	return func() tea.Msg {
		res, err := bot.HandleCommand(ctx, line)
		return commandDoneMsg{res: res, err: err}
	}
}

// stepSession moves the selection through the sidebar order.
func (m *Model) stepSession(delta int) {
	store := m.bot.Store()
	sessions := store.Sessions()
	if len(sessions) == 0 {
		return
	}
	current := store.CurrentID()
	idx := 0
	for i, s := range sessions {
		if s.ID == current {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(sessions)) % len(sessions)
	store.SelectSession(sessions[idx].ID)
	m.refresh()
}

func (m Model) emptySession() bool {
	sess, ok := m.bot.Store().Current()
	return !ok || len(sess.Messages) == 0
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status, m.statusErr = s, isErr
	if isErr {
		m.logger.Warn("ui error", "error", s)
	}
	m.layout()
}

// layout sizes the viewport and composer to the window.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	w := m.mainWidth()
	m.input.SetWidth(w - 2)

	// header badge, composer border, attachment line, status, footer
	status := 1
	if m.status != "" {
		status = lipgloss.Height(m.statusView(w))
	}
	chrome := 3 + m.input.Height() + 2 + 1 + status + 1
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h

	if m.renderer == nil || m.renderWrap != w-4 {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(w-4),
		)
		if err != nil {
			m.logger.Warn("failed to create markdown renderer", "error", err)
			return
		}
		m.renderer, m.renderWrap = r, w-4
	}
}

func (m Model) mainWidth() int {
	w := m.width
	if m.showSidebar {
		w -= sidebarWidth + 2
	}
	if w < 20 {
		w = 20
	}
	return w
}

// refresh re-derives the viewport content from the store.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if atBottom || m.bot.Busy() {
		m.viewport.GotoBottom()
	}
}

func pluralImages(n int) string {
	if n == 1 {
		return "1 image"
	}
	return fmt.Sprintf("%d images", n)
}
