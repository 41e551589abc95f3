package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/soyeahso/agentdesk/internal/config"
)

// GeminiClient calls Gemini models through the Gemini API or Vertex AI.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
	backend      string
}

// NewGeminiClient builds a client for the google provider. Vertex is used
// when cfg.UseVertex is set, otherwise the Gemini API with cfg.APIKey.
func NewGeminiClient(ctx context.Context, cfg config.GoogleProvider, defaultModel, baseURL string) (*GeminiClient, error) {
	cc := &genai.ClientConfig{}
	backend := "gemini-api"
	if cfg.UseVertex {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		backend = "vertex"
	} else {
		if cfg.APIKey == "" {
			return nil, &ProviderError{Provider: "google", Message: "GOOGLE_API_KEY is required unless GOOGLE_GENAI_USE_VERTEXAI=TRUE"}
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiClient{client: client, defaultModel: defaultModel, backend: backend}, nil
}

func (g *GeminiClient) Name() string { return "google" }

// Backend reports "vertex" or "gemini-api".
func (g *GeminiClient) Backend() string { return g.backend }

func (g *GeminiClient) model(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return g.defaultModel
}

func (g *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	model := g.model(req)

	resp, err := g.client.Models.GenerateContent(ctx, model, geminiContents(req.Messages), geminiConfig(req))
	if err != nil {
		return nil, geminiError(err)
	}

	out := &CompletionResponse{
		Content:  resp.Text(),
		Model:    model,
		Provider: g.Name(),
		Duration: time.Since(start),
	}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{InputTokens: int(u.PromptTokenCount), OutputTokens: int(u.CandidatesTokenCount)}
	}
	return out, nil
}

func (g *GeminiClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 16)
	model := g.model(req)

	go func() {
		defer close(ch)
		start := time.Now()
		out := &CompletionResponse{Model: model, Provider: g.Name()}
		var text []byte

		for chunk, err := range g.client.Models.GenerateContentStream(ctx, model, geminiContents(req.Messages), geminiConfig(req)) {
			if err != nil {
				send(ctx, ch, StreamEvent{Type: EventError, Error: geminiError(err).Error()})
				return
			}
			if delta := chunk.Text(); delta != "" {
				text = append(text, delta...)
				if !send(ctx, ch, StreamEvent{Type: EventDelta, Content: delta}) {
					return
				}
			}
			if u := chunk.UsageMetadata; u != nil {
				out.Usage = Usage{InputTokens: int(u.PromptTokenCount), OutputTokens: int(u.CandidatesTokenCount)}
			}
		}

		out.Content = string(text)
		out.Duration = time.Since(start)
		send(ctx, ch, StreamEvent{Type: EventDone, Response: out})
	}()
	return ch, nil
}

func geminiContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func geminiConfig(req CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "google", Code: apiErr.Code, Type: apiErr.Status, Message: apiErr.Message, Err: err}
	}
	return &ProviderError{Provider: "google", Message: err.Error(), Err: err}
}
