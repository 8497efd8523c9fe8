package generation

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"

	"UnfilteredChat/internal/backend"
	"UnfilteredChat/internal/config"
	"UnfilteredChat/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTransport replays canned fragments and records the last request.
type fakeTransport struct {
	mu        sync.Mutex
	reply     string
	fragments []string
	err       error
	failAfter int // fail after this many fragments when err != nil
	last      backend.Request
}

func (f *fakeTransport) Generate(_ context.Context, req backend.Request) (string, error) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeTransport) Stream(ctx context.Context, req backend.Request) iter.Seq2[string, error] {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	return func(yield func(string, error) bool) {
		for i, frag := range f.fragments {
			if f.err != nil && i == f.failAfter {
				break
			}
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func (f *fakeTransport) request() backend.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func collect(ch <-chan string) []string {
	var out []string
	for s := range ch {
		out = append(out, s)
	}
	return out
}

func TestBuildRequest(t *testing.T) {
	history := []session.Message{
		{Role: session.RoleUser, Content: "first", Images: []string{"data:image/jpeg;base64,OLD="}},
		{Role: session.RoleModel, Content: "reply"},
	}
	req := BuildRequest("now this", history, []string{
		"data:image/png;base64,AAAA",
		"broken-header,BBBB",
	})

	assert.Equal(t, config.Model, req.Model)
	assert.Equal(t, config.Persona, req.Persona)
	assert.Equal(t, backend.Sampling{Temperature: 1, TopK: 64, TopP: 0.95}, req.Sampling)

	require.Len(t, req.Turns, 3)
	assert.Equal(t, backend.Turn{Role: backend.RoleUser, Parts: []backend.Part{{Text: "first"}}}, req.Turns[0],
		"historical images are not resent")
	assert.Equal(t, backend.Turn{Role: backend.RoleModel, Parts: []backend.Part{{Text: "reply"}}}, req.Turns[1])

	last := req.Turns[2]
	assert.Equal(t, backend.RoleUser, last.Role)
	require.Len(t, last.Parts, 3)
	assert.Equal(t, "now this", last.Parts[0].Text)
	assert.Equal(t, &backend.Inline{MIMEType: "image/png", Data: "AAAA"}, last.Parts[1].Inline)
	assert.Equal(t, &backend.Inline{MIMEType: "image/png", Data: "BBBB"}, last.Parts[2].Inline)
}

func TestBuildRequestImageOnly(t *testing.T) {
	history := []session.Message{
		{Role: session.RoleUser, Images: []string{"data:image/png;base64,OLD="}},
		{Role: session.RoleModel, Content: "That's a cat."},
		{Role: session.RoleUser, Content: "and this?"},
		{Role: session.RoleModel},
	}
	req := BuildRequest("", history, []string{"data:image/png;base64,AAAA"})

	require.Len(t, req.Turns, 3, "text-less history messages are left out")
	assert.Equal(t, backend.Turn{Role: backend.RoleModel, Parts: []backend.Part{{Text: "That's a cat."}}}, req.Turns[0])
	assert.Equal(t, backend.Turn{Role: backend.RoleUser, Parts: []backend.Part{{Text: "and this?"}}}, req.Turns[1])

	last := req.Turns[2]
	require.Len(t, last.Parts, 1, "an empty prompt adds no text part")
	assert.Equal(t, &backend.Inline{MIMEType: "image/png", Data: "AAAA"}, last.Parts[0].Inline)
	for _, turn := range req.Turns {
		for _, part := range turn.Parts {
			assert.True(t, part.Text != "" || part.Inline != nil, "empty part in %+v", turn)
		}
	}
}

func TestGenerate(t *testing.T) {
	ft := &fakeTransport{reply: "Do it yourself."}
	c := NewClient(ft)

	got := c.Generate(context.Background(), "help", nil, nil)
	assert.Equal(t, "Do it yourself.", got)
	assert.Len(t, ft.request().Turns, 1)
}

func TestGenerateEmpty(t *testing.T) {
	c := NewClient(&fakeTransport{})
	assert.Equal(t, EmptyReply, c.Generate(context.Background(), "help", nil, nil))
}

func TestGenerateFailure(t *testing.T) {
	c := NewClient(&fakeTransport{err: errors.New("quota exceeded")})

	got := c.Generate(context.Background(), "help", nil, nil)
	assert.True(t, strings.HasPrefix(got, ErrorPrefix), got)
	assert.Contains(t, got, "quota exceeded")
}

func TestGenerateStream(t *testing.T) {
	ft := &fakeTransport{fragments: []string{"Hel", "", "lo, ", "world"}}
	c := NewClient(ft)

	got := collect(c.GenerateStream(context.Background(), "greet", nil, nil))
	assert.Equal(t, []string{"Hel", "lo, ", "world"}, got, "empty fragments are dropped")
	assert.Equal(t, "Hello, world", strings.Join(got, ""))
}

func TestGenerateStreamFailureBeforeData(t *testing.T) {
	c := NewClient(&fakeTransport{err: errors.New("dial tcp: refused")})

	got := collect(c.GenerateStream(context.Background(), "greet", nil, nil))
	require.Len(t, got, 1)
	assert.Equal(t, StreamFailure, got[0])
}

func TestGenerateStreamFailureMidway(t *testing.T) {
	ft := &fakeTransport{
		fragments: []string{"one ", "two ", "three"},
		err:       errors.New("connection reset"),
		failAfter: 2,
	}
	c := NewClient(ft)

	got := collect(c.GenerateStream(context.Background(), "count", nil, nil))
	assert.Equal(t, []string{"one ", "two ", StreamFailure}, got)
}

func TestGenerateStreamConsumerCancels(t *testing.T) {
	ft := &fakeTransport{fragments: []string{"a", "b", "c", "d"}}
	c := NewClient(ft)

	ctx, cancel := context.WithCancel(context.Background())
	ch := c.GenerateStream(ctx, "go", nil, nil)
	assert.Equal(t, "a", <-ch)
	cancel()

	// Drain whatever was in flight; the channel must close.
	for range ch {
	}
}
