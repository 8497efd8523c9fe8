package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	"UnfilteredChat/internal/chatbot"
	"UnfilteredChat/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func (g *echoGenerator) GenerateStream(_ context.Context, prompt string, _ []session.Message, _ []string) <-chan string {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	out := make(chan string, 1)
	out <- "echo " + prompt
	close(out)
	return out
}

// gatedGenerator holds every reply open until release is closed.
type gatedGenerator struct {
	release chan struct{}
}

func (g *gatedGenerator) GenerateStream(ctx context.Context, _ string, _ []session.Message, _ []string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		select {
		case <-g.release:
		case <-ctx.Done():
		}
	}()
	return out
}

func newTestModel(t *testing.T) (Model, *chatbot.ChatBot, *echoGenerator) {
	t.Helper()
	gen := &echoGenerator{}
	bot := chatbot.NewChatBot(session.NewStore(), gen, nil)
	m := New(context.Background(), bot, nil)
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40}), bot, gen
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

// run executes cmd and feeds every resulting message back into the model,
// following any commands the model returns.
func run(t *testing.T, m Model, cmd tea.Cmd) (Model, []tea.Msg) {
	t.Helper()
	var msgs []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			msgs = append(msgs, msg)
			next, more := m.Update(msg)
			out, ok := next.(Model)
			require.True(t, ok)
			m = out
			queue = append(queue, more)
		}
	}
	return m, msgs
}

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

// =============================================================================
// RENDERING
// =============================================================================

func TestViewBeforeResize(t *testing.T) {
	bot := chatbot.NewChatBot(session.NewStore(), &echoGenerator{}, nil)
	assert.Equal(t, "Loading...", New(context.Background(), bot, nil).View())
}

func TestViewWelcome(t *testing.T) {
	m, _, _ := newTestModel(t)

	view := m.View()
	assert.Contains(t, view, appTitle)
	assert.Contains(t, view, badgeText)
	assert.Contains(t, view, emptySidebar)
	assert.Contains(t, view, heroTitle)
	assert.Contains(t, view, heroSubtitle)
}

func TestViewSidebarListsSessions(t *testing.T) {
	m, bot, _ := newTestModel(t)

	_, err := bot.Store().AppendUserMessage("", "what is a monad", nil)
	require.NoError(t, err)
	m = update(t, m, storeChangedMsg{})

	view := m.View()
	assert.NotContains(t, view, emptySidebar)
	assert.Contains(t, view, "what is a monad")
}

func TestViewWorkingPlaceholder(t *testing.T) {
	m, bot, _ := newTestModel(t)
	store := bot.Store()

	id, err := store.AppendUserMessage("", "think hard", nil)
	require.NoError(t, err)
	ref, err := store.AppendModelPlaceholder(id)
	require.NoError(t, err)
	m = update(t, m, storeChangedMsg{})
	assert.Contains(t, m.View(), workingText)

	require.NoError(t, store.UpdateMessageContent(ref, "done"))
	store.FinishMessage(ref)
	m = update(t, m, storeChangedMsg{})
	view := m.View()
	assert.NotContains(t, view, workingText)
	assert.Contains(t, view, "done")
	assert.Equal(t, 1, m.renders.Len(), "sealed reply is cached")
}

func TestViewImageOnlyMessage(t *testing.T) {
	m, bot, _ := newTestModel(t)

	_, err := bot.Store().AppendUserMessage("", "", []string{"data:image/png;base64,AAAA", "data:image/png;base64,BBBB"})
	require.NoError(t, err)
	m = update(t, m, storeChangedMsg{})
	assert.Contains(t, m.View(), "[2 images]")
}

// =============================================================================
// KEYS
// =============================================================================

func TestNewChatKey(t *testing.T) {
	m, bot, _ := newTestModel(t)

	_, _ = press(t, m, tea.KeyCtrlN)
	sessions := bot.Store().Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, session.TitleNew, sessions[0].Title)
	assert.Equal(t, sessions[0].ID, bot.Store().CurrentID())
}

func TestSessionNavigationKeys(t *testing.T) {
	m, bot, _ := newTestModel(t)
	store := bot.Store()

	older := store.CreateSession()
	newer := store.CreateSession()
	require.Equal(t, newer.ID, store.CurrentID())

	m, _ = press(t, m, tea.KeyCtrlDown)
	assert.Equal(t, older.ID, store.CurrentID())

	m, _ = press(t, m, tea.KeyCtrlDown)
	assert.Equal(t, newer.ID, store.CurrentID(), "wraps around")

	_, _ = press(t, m, tea.KeyCtrlUp)
	assert.Equal(t, older.ID, store.CurrentID())
}

func TestToggleSidebar(t *testing.T) {
	m, _, _ := newTestModel(t)
	require.Contains(t, m.View(), emptySidebar)

	m, _ = press(t, m, tea.KeyCtrlB)
	assert.False(t, m.showSidebar)
	assert.NotContains(t, m.View(), emptySidebar)
	assert.Equal(t, 120, m.viewport.Width)

	m, _ = press(t, m, tea.KeyCtrlB)
	assert.True(t, m.showSidebar)
}

func TestSuggestionCycling(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, _ = press(t, m, tea.KeyTab)
	assert.Equal(t, suggestions[0], m.input.Value())
	assert.Equal(t, 0, m.suggestion)

	m, _ = press(t, m, tea.KeyTab)
	assert.Equal(t, suggestions[1], m.input.Value())

	for range len(suggestions) - 1 {
		m, _ = press(t, m, tea.KeyTab)
	}
	assert.Equal(t, suggestions[0], m.input.Value(), "cycles back to the first card")
}

func TestQuitKey(t *testing.T) {
	m, _, _ := newTestModel(t)

	_, cmd := press(t, m, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestEnterSubmitsPrompt(t *testing.T) {
	m, bot, gen := newTestModel(t)

	m.input.SetValue("roast me")
	m, cmd := press(t, m, tea.KeyEnter)
	assert.Empty(t, m.input.Value(), "composer is cleared on submit")
	require.NotNil(t, cmd)

	m, _ = run(t, m, cmd)

	assert.Equal(t, []string{"roast me"}, gen.prompts)
	sess, ok := bot.Store().Current()
	require.True(t, ok)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "echo roast me", sess.Messages[1].Content)
	assert.Contains(t, m.View(), "roast me")
	assert.Empty(t, m.status)
}

func TestEnterOnBlankInputDoesNothing(t *testing.T) {
	m, bot, gen := newTestModel(t)

	m.input.SetValue("   ")
	_, cmd := press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Empty(t, gen.prompts)
	assert.Empty(t, bot.Store().Sessions())
}

func TestSlashCommands(t *testing.T) {
	m, bot, gen := newTestModel(t)

	m.input.SetValue("/new")
	m, cmd := press(t, m, tea.KeyEnter)
	m, _ = run(t, m, cmd)
	assert.Len(t, bot.Store().Sessions(), 1)
	assert.Contains(t, m.status, "Started new session")
	assert.False(t, m.statusErr)

	m.input.SetValue("/bogus")
	m, cmd = press(t, m, tea.KeyEnter)
	m, _ = run(t, m, cmd)
	assert.True(t, m.statusErr)

	assert.Empty(t, gen.prompts, "commands never reach the model")

	m.input.SetValue("/quit")
	m, cmd = press(t, m, tea.KeyEnter)
	_, msgs := run(t, m, cmd)
	assert.Contains(t, msgs, tea.Msg(tea.QuitMsg{}))
}

func TestSpinnerTicksBeforeBotIsBusy(t *testing.T) {
	m, bot, _ := newTestModel(t)

	m.input.SetValue("slow one")
	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	require.Len(t, batch, 2)
	submit, tick := batch[0], batch[1]

	// The first tick lands before the submit has started.
	require.False(t, bot.Busy())
	next, follow := m.Update(tick())
	m = next.(Model)
	assert.NotNil(t, follow, "spinner keeps ticking while the submit is pending")

	m = update(t, m, submit())
	assert.False(t, m.waiting)
	_, follow = m.Update(tick())
	assert.Nil(t, follow, "spinner stops once the reply is done")
}

func TestSecondEnterWhileWaitingIsRejected(t *testing.T) {
	m, _, gen := newTestModel(t)

	m.input.SetValue("first")
	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)

	m.input.SetValue("second")
	m, cmd = press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, "second", m.input.Value(), "rejected text stays in the composer")
	assert.True(t, m.statusErr)
	assert.Empty(t, gen.prompts)
}

func TestBusyRaceRestoresComposer(t *testing.T) {
	gen := &gatedGenerator{release: make(chan struct{})}
	bot := chatbot.NewChatBot(session.NewStore(), gen, nil)
	m := update(t, New(context.Background(), bot, nil), tea.WindowSizeMsg{Width: 120, Height: 40})

	m.input.SetValue("do not lose me")
	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	assert.Empty(t, m.input.Value())

	// Another submit claims the bot before this one runs.
	done := make(chan error)
	go func() { done <- bot.Submit(context.Background(), "other", nil) }()
	require.Eventually(t, bot.Busy, time.Second, 5*time.Millisecond)

	msg := batch[0]()
	require.IsType(t, submitDoneMsg{}, msg)
	m = update(t, m, msg)
	assert.Equal(t, "do not lose me", m.input.Value())
	assert.True(t, m.statusErr)
	assert.False(t, m.waiting)

	close(gen.release)
	require.NoError(t, <-done)
}
