// Package generation turns a prompt, a conversation history and optional
// images into a reply from the hosted model. Failures never cross this
// package boundary: they are converted into reply text.
package generation

import (
	"context"
	"log/slog"
	"time"

	"UnfilteredChat/internal/attachment"
	"UnfilteredChat/internal/backend"
	"UnfilteredChat/internal/config"
	"UnfilteredChat/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Fallback replies.
const (
	ErrorPrefix   = "Error: "
	EmptyReply    = "I've got nothing for you."
	StreamFailure = "[Connection failed. Don't blame me.]"
)

const instrumentationName = "UnfilteredChat/internal/generation"

// Client produces model replies through a Transport.
type Client struct {
	transport backend.Transport
	logger    *slog.Logger
	tracer    trace.Tracer

	duration  metric.Float64Histogram
	fragments metric.Int64Counter
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracer sets the tracer. The default comes from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a Client. Metrics use the global meter provider.
func NewClient(transport backend.Transport, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		logger:    slog.Default(),
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	c.duration, err = meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Generation request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		c.logger.Warn("failed to create histogram", "error", err)
	}
	c.fragments, err = meter.Int64Counter(
		"llm.stream.fragments",
		metric.WithDescription("Reply fragments received from the stream"),
	)
	if err != nil {
		c.logger.Warn("failed to create counter", "error", err)
	}
	return c
}

// BuildRequest assembles the outbound request. History contributes only the
// role and text of each message; images ride along with the new prompt only.
// Messages without text (image-only prompts, empty replies) are left out of
// the history, and an empty prompt adds no text part.
func BuildRequest(prompt string, history []session.Message, images []string) backend.Request {
	turns := make([]backend.Turn, 0, len(history)+1)
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		role := backend.RoleModel
		if msg.Role == session.RoleUser {
			role = backend.RoleUser
		}
		turns = append(turns, backend.Turn{
			Role:  role,
			Parts: []backend.Part{{Text: msg.Content}},
		})
	}

	parts := make([]backend.Part, 0, len(images)+1)
	if prompt != "" {
		parts = append(parts, backend.Part{Text: prompt})
	}
	for _, img := range images {
		mimeType, data := attachment.Split(img)
		parts = append(parts, backend.Part{Inline: &backend.Inline{MIMEType: mimeType, Data: data}})
	}
	turns = append(turns, backend.Turn{Role: backend.RoleUser, Parts: parts})

	return backend.Request{
		Model:   config.Model,
		Persona: config.Persona,
		Sampling: backend.Sampling{
			Temperature: config.Temperature,
			TopK:        config.TopK,
			TopP:        config.TopP,
		},
		Turns: turns,
	}
}

// Generate returns the complete reply. Transport failures come back as text
// starting with ErrorPrefix.
func (c *Client) Generate(ctx context.Context, prompt string, history []session.Message, images []string) string {
	ctx, span := c.tracer.Start(ctx, "gemini_generate", trace.WithAttributes(
		attribute.Int("history.length", len(history)),
		attribute.Int("images.count", len(images)),
	))
	defer span.End()

	start := time.Now()
	text, err := c.transport.Generate(ctx, BuildRequest(prompt, history, images))
	c.recordDuration(ctx, start, "generate")
	if err != nil {
		c.logger.Error("Gemini API error", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ErrorPrefix + err.Error()
	}
	if text == "" {
		return EmptyReply
	}
	return text
}

// GenerateStream starts a streaming reply. The returned channel yields
// non-empty fragments in order and is closed when the reply ends. On failure
// it yields StreamFailure as its final fragment. The channel has a single
// reader; cancelling ctx releases the producer if the reader stops early.
func (c *Client) GenerateStream(ctx context.Context, prompt string, history []session.Message, images []string) <-chan string {
	out := make(chan string)
	req := BuildRequest(prompt, history, images)

	go func() {
		defer close(out)

		ctx, span := c.tracer.Start(ctx, "gemini_stream", trace.WithAttributes(
			attribute.Int("history.length", len(history)),
			attribute.Int("images.count", len(images)),
		))
		defer span.End()

		start := time.Now()
		defer c.recordDuration(ctx, start, "stream")

		send := func(s string) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var n int64
		for text, err := range c.transport.Stream(ctx, req) {
			if err != nil {
				c.logger.Error("Gemini streaming error", "error", err, "fragments", n)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				send(StreamFailure)
				return
			}
			if text == "" {
				continue
			}
			n++
			if c.fragments != nil {
				c.fragments.Add(ctx, 1)
			}
			if !send(text) {
				c.logger.Debug("stream consumer gone", "fragments", n)
				return
			}
		}
		span.SetAttributes(attribute.Int64("fragments", n))
	}()

	return out
}

func (c *Client) recordDuration(ctx context.Context, start time.Time, mode string) {
	if c.duration == nil {
		return
	}
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("mode", mode)))
}
