package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStreamOpen      = errors.New("session already has a reply in progress")
	ErrMessageSealed   = errors.New("message is not in progress")
)

// Store holds the ordered session list (newest first) and the current
// selection. Every mutation is atomic and is followed by a notification to
// subscribers, who are expected to re-read the full state.
type Store struct {
	mu        sync.Mutex
	sessions  []*Session
	current   string
	listeners map[int]func()
	nextSub   int

	now   func() time.Time
	newID func() string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		listeners: make(map[int]func()),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Subscribe registers fn to run after every mutation. Listeners run outside
// the store lock and may read from the store.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// CreateSession prepends a new empty session and makes it current.
func (s *Store) CreateSession() Session {
	s.mu.Lock()
	sess := s.createLocked()
	out := sess.clone()
	s.mu.Unlock()

	s.notify()
	return out
}

func (s *Store) createLocked() *Session {
	sess := &Session{
		ID:        s.newID(),
		Title:     TitleNew,
		Messages:  []Message{},
		CreatedAt: s.now(),
	}
	s.sessions = append([]*Session{sess}, s.sessions...)
	s.current = sess.ID
	return sess
}

// SelectSession makes id current. Unknown ids are ignored.
func (s *Store) SelectSession(id string) bool {
	s.mu.Lock()
	if s.findLocked(id) == nil {
		s.mu.Unlock()
		return false
	}
	s.current = id
	s.mu.Unlock()

	s.notify()
	return true
}

// AppendUserMessage appends a user message to sessionID. An empty sessionID
// creates a new current session first. The session id actually used is
// returned.
func (s *Store) AppendUserMessage(sessionID, content string, images []string) (string, error) {
	s.mu.Lock()
	var sess *Session
	if sessionID == "" {
		sess = s.createLocked()
	} else if sess = s.findLocked(sessionID); sess == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("append user message to %s: %w", sessionID, ErrSessionNotFound)
	}

	if len(sess.Messages) == 0 {
		sess.Title = deriveTitle(content, TitleWork)
	}

	msg := Message{
		ID:        s.newID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: s.now(),
	}
	if len(images) > 0 {
		msg.Images = append([]string(nil), images...)
	}
	sess.Messages = append(sess.Messages, msg)
	id := sess.ID
	s.mu.Unlock()

	s.notify()
	return id, nil
}

// AppendModelPlaceholder appends an empty model message and opens it for
// streaming updates.
func (s *Store) AppendModelPlaceholder(sessionID string) (MessageRef, error) {
	s.mu.Lock()
	sess := s.findLocked(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return MessageRef{}, fmt.Errorf("append placeholder to %s: %w", sessionID, ErrSessionNotFound)
	}
	if sess.Streaming != "" {
		s.mu.Unlock()
		return MessageRef{}, ErrStreamOpen
	}

	msg := Message{
		ID:        s.newID(),
		Role:      RoleModel,
		Timestamp: s.now(),
	}
	sess.Messages = append(sess.Messages, msg)
	sess.Streaming = msg.ID
	s.mu.Unlock()

	s.notify()
	return MessageRef{SessionID: sessionID, MessageID: msg.ID}, nil
}

// UpdateMessageContent replaces the content of the in-progress message ref.
func (s *Store) UpdateMessageContent(ref MessageRef, content string) error {
	s.mu.Lock()
	err := s.updateLocked(ref.SessionID, ref.MessageID, content)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify()
	return nil
}

// UpdateLastMessageContent replaces the content of the last message of
// sessionID, which must be the in-progress reply.
func (s *Store) UpdateLastMessageContent(sessionID, content string) error {
	s.mu.Lock()
	var err error
	if sess := s.findLocked(sessionID); sess == nil {
		err = fmt.Errorf("update %s: %w", sessionID, ErrSessionNotFound)
	} else if last, ok := sess.LastMessage(); !ok {
		err = ErrMessageSealed
	} else {
		err = s.updateLocked(sessionID, last.ID, content)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify()
	return nil
}

func (s *Store) updateLocked(sessionID, messageID, content string) error {
	sess := s.findLocked(sessionID)
	if sess == nil {
		return fmt.Errorf("update %s: %w", sessionID, ErrSessionNotFound)
	}
	if sess.Streaming == "" || sess.Streaming != messageID {
		return ErrMessageSealed
	}
	// The in-progress message is the most recent one, but it is addressed by
	// id so edits elsewhere in the session cannot misdirect it.
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].ID == messageID {
			sess.Messages[i].Content = content
			return nil
		}
	}
	return ErrMessageSealed
}

// FinishMessage seals the in-progress message ref.
func (s *Store) FinishMessage(ref MessageRef) {
	s.mu.Lock()
	sess := s.findLocked(ref.SessionID)
	if sess == nil || sess.Streaming != ref.MessageID {
		s.mu.Unlock()
		return
	}
	sess.Streaming = ""
	s.mu.Unlock()

	s.notify()
}

// Sessions returns a copy of all sessions, newest first.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.clone()
	}
	return out
}

// Session returns a copy of the session with the given id.
func (s *Store) Session(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil {
		return Session{}, false
	}
	return sess.clone(), true
}

// Current returns a copy of the current session, if one is selected.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	id := s.current
	s.mu.Unlock()
	return s.Session(id)
}

// CurrentID returns the id of the current session, or "".
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) findLocked(id string) *Session {
	if id == "" {
		return nil
	}
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
