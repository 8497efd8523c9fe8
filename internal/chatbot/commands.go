package chatbot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// CommandResult is what a slash command produced.
type CommandResult struct {
	Output string
	Quit   bool
}

const helpText = `Available commands:
  /new                - Start a new chat session
  /sessions           - List sessions (newest first)
  /select <n|id>      - Switch to a session by list number or id
  /attach <path...>   - Attach image files to the next message
  /detach <n>         - Remove a pending attachment
  /help               - Show this help message
  /quit, /exit        - Exit`

// HandleCommand handles slash commands
func (cb *ChatBot) HandleCommand(ctx context.Context, line string) (CommandResult, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return CommandResult{}, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return CommandResult{Quit: true}, nil

	case "/new", "/new-session":
		sess := cb.store.CreateSession()
		cb.logger.Info("created new session", "session_id", sess.ID)
		return CommandResult{Output: "Started new session: " + sess.ID}, nil

	case "/sessions":
		return CommandResult{Output: cb.listSessions()}, nil

	case "/select":
		if len(parts) < 2 {
			return CommandResult{}, fmt.Errorf("usage: /select <n|id>")
		}
		cb.selectSession(parts[1])
		return CommandResult{}, nil

	case "/attach":
		if len(parts) < 2 {
			return CommandResult{}, fmt.Errorf("usage: /attach <path...>")
		}
		n, err := cb.Attach(ctx, parts[1:]...)
		return CommandResult{Output: fmt.Sprintf("Attached %d image(s), %d pending", n, len(cb.Attachments()))}, err

	case "/detach":
		if len(parts) < 2 {
			return CommandResult{}, fmt.Errorf("usage: /detach <n>")
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return CommandResult{}, fmt.Errorf("usage: /detach <n>")
		}
		if err := cb.Detach(n - 1); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Output: fmt.Sprintf("%d pending", len(cb.Attachments()))}, nil

	case "/help":
		return CommandResult{Output: helpText}, nil

	default:
		return CommandResult{}, fmt.Errorf("unknown command: %s", parts[0])
	}
}

func (cb *ChatBot) listSessions() string {
	sessions := cb.store.Sessions()
	if len(sessions) == 0 {
		return "No recent chats"
	}

	current := cb.store.CurrentID()
	var b strings.Builder
	b.WriteString("Recent:")
	for i, s := range sessions {
		marker := " "
		if s.ID == current {
			marker = "*"
		}
		fmt.Fprintf(&b, "\n%s %d. %s (%d messages)", marker, i+1, s.Title, len(s.Messages))
	}
	return b.String()
}

// selectSession accepts a 1-based list position or a raw id. Anything that
// matches neither is ignored.
func (cb *ChatBot) selectSession(arg string) {
	if n, err := strconv.Atoi(arg); err == nil {
		sessions := cb.store.Sessions()
		if n >= 1 && n <= len(sessions) {
			cb.store.SelectSession(sessions[n-1].ID)
		}
		return
	}
	cb.store.SelectSession(arg)
}
