package backend

import (
	"context"
	"iter"
)

// Role tags a turn sent to the generation service.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Request represents one generation call
type Request struct {
	Model    string
	Persona  string
	Sampling Sampling
	Turns    []Turn
}

// Sampling holds the fixed sampling parameters attached to every request.
type Sampling struct {
	Temperature float32
	TopK        float32
	TopP        float32
}

// Turn represents one role-tagged unit of conversation content
type Turn struct {
	Role  Role
	Parts []Part
}

// Part is either text or inline binary data.
type Part struct {
	Text   string
	Inline *Inline
}

// Inline carries a base64 payload and its MIME type.
type Inline struct {
	MIMEType string
	Data     string // base64, as found in the data URL
}

// Transport sends requests to the hosted generation service.
type Transport interface {
	// Generate returns the complete reply text.
	Generate(ctx context.Context, req Request) (string, error)
	// Stream yields reply fragments in order. A non-nil error ends the
	// sequence.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}
