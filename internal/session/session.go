package session

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Default titles.
const (
	TitleNew  = "New Session"
	TitleWork = "Work"

	titleLimit = 30
)

// Message represents a single chat message
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Images    []string  `json:"images,omitempty"` // data URLs
	Timestamp time.Time `json:"timestamp"`
}

// Session represents a chat session
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`

	// Streaming is the ID of the message whose content is still growing.
	Streaming string `json:"-"`
}

// MessageRef addresses one message of one session.
type MessageRef struct {
	SessionID string
	MessageID string
}

// LastMessage returns the most recent message, if any.
func (s Session) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

func (s Session) clone() Session {
	c := s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m.clone()
	}
	return c
}

func (m Message) clone() Message {
	if m.Images != nil {
		m.Images = append([]string(nil), m.Images...)
	}
	return m
}

// deriveTitle truncates content to the title limit, falling back to
// fallback when there is no text.
func deriveTitle(content, fallback string) string {
	if isBlank(content) {
		return fallback
	}
	r := []rune(content)
	if len(r) > titleLimit {
		r = r[:titleLimit]
	}
	return string(r)
}
