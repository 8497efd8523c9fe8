package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"UnfilteredChat/internal/attachment"
	"UnfilteredChat/internal/session"
)

var (
	ErrBusy       = errors.New("a reply is still streaming")
	ErrEmptyInput = errors.New("nothing to send")
)

// Generator streams a model reply.
type Generator interface {
	GenerateStream(ctx context.Context, prompt string, history []session.Message, images []string) <-chan string
}

// ChatBot wires user input to the session store and the generator. It
// allows one reply in flight at a time.
type ChatBot struct {
	store     *session.Store
	generator Generator
	logger    *slog.Logger

	busy atomic.Bool

	mu      sync.Mutex
	pending []string // data URLs waiting for the next submit
}

// NewChatBot creates a new ChatBot instance
func NewChatBot(store *session.Store, generator Generator, logger *slog.Logger) *ChatBot {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatBot{
		store:     store,
		generator: generator,
		logger:    logger,
	}
}

// Store returns the session store the bot writes to.
func (cb *ChatBot) Store() *session.Store {
	return cb.store
}

// Busy reports whether a reply is streaming.
func (cb *ChatBot) Busy() bool {
	return cb.busy.Load()
}

// Submit sends input plus any pending attachments as a user message into the
// current session (creating one if none is selected) and streams the reply
// into a placeholder model message. The reply always lands in the session
// that was current when Submit was called. onFragment, if set, sees each
// fragment as it arrives.
func (cb *ChatBot) Submit(ctx context.Context, input string, onFragment func(string)) error {
	cb.mu.Lock()
	empty := strings.TrimSpace(input) == "" && len(cb.pending) == 0
	cb.mu.Unlock()
	if empty {
		return ErrEmptyInput
	}
	if !cb.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer cb.busy.Store(false)

	images := cb.takeAttachments()

	sessionID := cb.store.CurrentID()
	var history []session.Message
	if current, ok := cb.store.Session(sessionID); ok {
		history = current.Messages
	}

	sessionID, err := cb.store.AppendUserMessage(sessionID, input, images)
	if err != nil {
		return fmt.Errorf("failed to add user message: %w", err)
	}
	ref, err := cb.store.AppendModelPlaceholder(sessionID)
	if err != nil {
		return fmt.Errorf("failed to reserve reply: %w", err)
	}
	defer cb.store.FinishMessage(ref)

	start := time.Now()
	var full strings.Builder
	var fragments int
	for fragment := range cb.generator.GenerateStream(ctx, input, history, images) {
		fragments++
		full.WriteString(fragment)
		if err := cb.store.UpdateMessageContent(ref, full.String()); err != nil {
			cb.logger.Warn("failed to update reply", "session_id", sessionID, "error", err)
		}
		if onFragment != nil {
			onFragment(fragment)
		}
	}

	cb.logger.Info("reply complete",
		"session_id", sessionID,
		"fragments", fragments,
		"chars", full.Len(),
		"images", len(images),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Attach converts files to data URLs and queues them for the next submit.
// Files are read concurrently and queued in completion order. It returns how
// many were queued; failures for individual files are reported in err.
func (cb *ChatBot) Attach(ctx context.Context, paths ...string) (int, error) {
	images, err := attachment.ReadFiles(ctx, paths)
	if err != nil {
		cb.logger.Warn("failed to attach some files", "error", err)
	}

	cb.mu.Lock()
	cb.pending = append(cb.pending, images...)
	cb.mu.Unlock()
	return len(images), err
}

// Detach removes the pending attachment at index i.
func (cb *ChatBot) Detach(i int) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if i < 0 || i >= len(cb.pending) {
		return fmt.Errorf("no attachment #%d", i+1)
	}
	cb.pending = append(cb.pending[:i], cb.pending[i+1:]...)
	return nil
}

// Attachments returns a copy of the pending attachments.
func (cb *ChatBot) Attachments() []string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return append([]string(nil), cb.pending...)
}

func (cb *ChatBot) takeAttachments() []string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	images := cb.pending
	cb.pending = nil
	return images
}

// Run starts the plain line-mode chat loop
func (cb *ChatBot) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "=== GEMINI UNFILTERED ===")
	fmt.Fprintln(out, "Ready to work? Quit wasting time and ask.")
	fmt.Fprintln(out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(input, "/") {
			res, err := cb.HandleCommand(ctx, input)
			if res.Output != "" {
				fmt.Fprintln(out, res.Output)
			}
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				cb.logger.Error("command error", "error", err)
			}
			if res.Quit {
				break
			}
			continue
		}

		if input == "" && len(cb.Attachments()) == 0 {
			continue
		}

		fmt.Fprint(out, "Bot: ")
		err := cb.Submit(ctx, input, func(fragment string) {
			fmt.Fprint(out, fragment)
		})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			cb.logger.Error("failed to send message", "error", err)
			continue
		}
		fmt.Fprint(out, "\n\n")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(out, "Goodbye!")
	return nil
}
