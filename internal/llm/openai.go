package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient calls any OpenAI-compatible chat completions endpoint.
// Pointing BaseURL at a local server (Ollama, vLLM) works the same way.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIClient builds a client for the openai provider. An empty key is
// allowed when baseURL points at a server that does not check it.
func NewOpenAIClient(apiKey, baseURL, defaultModel string, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" && baseURL == "" {
		return nil, &ProviderError{Provider: "openai", Message: "OPENAI_API_KEY is required"}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), defaultModel: defaultModel}, nil
}

func (o *OpenAIClient) Name() string { return "openai" }

func (o *OpenAIClient) request(req CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = o.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	out := openai.ChatCompletionRequest{Model: model, Messages: msgs, MaxTokens: req.MaxTokens}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if req.JSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return out
}

func (o *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	oreq := o.request(req)

	resp, err := o.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, openaiError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Message: "no choices returned"}
	}

	return &CompletionResponse{
		Content:    resp.Choices[0].Message.Content,
		StopReason: string(resp.Choices[0].FinishReason),
		Model:      resp.Model,
		Provider:   o.Name(),
		Usage:      Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
		Duration:   time.Since(start),
	}, nil
}

func (o *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	oreq := o.request(req)
	oreq.Stream = true

	stream, err := o.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		return nil, openaiError(err)
	}

	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)
		defer stream.Close()
		start := time.Now()
		var text strings.Builder
		var stop string

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				send(ctx, ch, StreamEvent{Type: EventError, Error: openaiError(err).Error()})
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if fr := chunk.Choices[0].FinishReason; fr != "" {
				stop = string(fr)
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				text.WriteString(delta)
				if !send(ctx, ch, StreamEvent{Type: EventDelta, Content: delta}) {
					return
				}
			}
		}

		send(ctx, ch, StreamEvent{Type: EventDone, Response: &CompletionResponse{
			Content:    text.String(),
			StopReason: stop,
			Model:      oreq.Model,
			Provider:   o.Name(),
			Duration:   time.Since(start),
		}})
	}()
	return ch, nil
}

func openaiError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "openai", Code: apiErr.HTTPStatusCode, Type: apiErr.Type, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: "openai", Code: reqErr.HTTPStatusCode, Message: err.Error(), Err: err}
	}
	return &ProviderError{Provider: "openai", Message: err.Error(), Err: err}
}
