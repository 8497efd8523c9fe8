package ui

import (
	"context"
	"errors"
	"log/slog"

	"UnfilteredChat/internal/chatbot"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the full-screen chat until the user quits or ctx ends.
func Start(ctx context.Context, bot *chatbot.ChatBot, logger *slog.Logger) error {
	p := tea.NewProgram(
		New(ctx, bot, logger),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	// Store notifications fire on the submitting goroutine and sometimes
	// from inside Update, so Send must not block the notifier.
	unsubscribe := bot.Store().Subscribe(func() {
		go p.Send(storeChangedMsg{})
	})
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
