package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"net/http"
	"sync"

	"google.golang.org/genai"
)

// GenAI implements Transport on top of the Google Gen AI SDK.
type GenAI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	client *genai.Client
}

// NewGenAI creates a transport for the Gemini API. The SDK client is built on
// first use, so a missing or bad credential only surfaces when a call is made.
func NewGenAI(apiKey, baseURL string, httpClient *http.Client) *GenAI {
	return &GenAI{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (g *GenAI) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     g.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.client = client
	return client, nil
}

// Generate sends req and returns the full reply text.
func (g *GenAI) Generate(ctx context.Context, req Request) (string, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return "", err
	}
	contents, cfg, err := toGenAI(req)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// Stream sends req and yields each chunk's text as it arrives.
func (g *GenAI) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		client, err := g.sdk(ctx)
		if err != nil {
			yield("", err)
			return
		}
		contents, cfg, err := toGenAI(req)
		if err != nil {
			yield("", err)
			return
		}

		for resp, err := range client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
			if err != nil {
				yield("", fmt.Errorf("GenAI stream failed: %w", err))
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}

// toGenAI converts a Request into SDK contents and config. Inline payloads
// are decoded here; the SDK re-encodes them on the wire. The API rejects a
// part with no data, so empty text parts are skipped and turns left with no
// parts are dropped.
func toGenAI(req Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		parts := make([]*genai.Part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			if p.Inline == nil {
				if p.Text != "" {
					parts = append(parts, genai.NewPartFromText(p.Text))
				}
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.Inline.Data)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid %s payload: %w", p.Inline.MIMEType, err)
			}
			parts = append(parts, genai.NewPartFromBytes(data, p.Inline.MIMEType))
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.Role(turn.Role)))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Sampling.Temperature),
		TopK:        genai.Ptr(req.Sampling.TopK),
		TopP:        genai.Ptr(req.Sampling.TopP),
	}
	if req.Persona != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Persona, genai.RoleUser)
	}
	return contents, cfg, nil
}
