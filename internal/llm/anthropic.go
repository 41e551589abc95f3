package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicClient calls Claude models through the Messages API.
type AnthropicClient struct {
	client       *anthropic.Client
	defaultModel string
}

// NewAnthropicClient builds a client for the anthropic provider.
func NewAnthropicClient(apiKey, baseURL, defaultModel string, timeout time.Duration) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, &ProviderError{Provider: "anthropic", Message: "ANTHROPIC_API_KEY is required"}
	}
	opts := []anthropic.ClientOption{}
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, anthropic.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	return &AnthropicClient{
		client:       anthropic.NewClient(apiKey, opts...),
		defaultModel: defaultModel,
	}, nil
}

func (a *AnthropicClient) Name() string { return "anthropic" }

func (a *AnthropicClient) request(req CompletionRequest) anthropic.MessagesRequest {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}

	system := req.System
	msgs := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantTextMessage(m.Content))
		default:
			msgs = append(msgs, anthropic.NewUserTextMessage(m.Content))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	out := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		Messages:  msgs,
		System:    system,
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		out.Temperature = &t
	}
	return out
}

func (a *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	areq := a.request(req)

	resp, err := a.client.CreateMessages(ctx, areq)
	if err != nil {
		return nil, anthropicError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	return &CompletionResponse{
		Content:    text.String(),
		StopReason: string(resp.StopReason),
		Model:      string(areq.Model),
		Provider:   a.Name(),
		Usage:      Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
		Duration:   time.Since(start),
	}, nil
}

func (a *AnthropicClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 16)
	areq := a.request(req)

	go func() {
		defer close(ch)
		start := time.Now()
		var text strings.Builder

		resp, err := a.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
			MessagesRequest: areq,
			OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
				if data.Delta.Text == nil || *data.Delta.Text == "" {
					return
				}
				text.WriteString(*data.Delta.Text)
				send(ctx, ch, StreamEvent{Type: EventDelta, Content: *data.Delta.Text})
			},
		})
		if err != nil {
			send(ctx, ch, StreamEvent{Type: EventError, Error: anthropicError(err).Error()})
			return
		}

		send(ctx, ch, StreamEvent{Type: EventDone, Response: &CompletionResponse{
			Content:    text.String(),
			StopReason: string(resp.StopReason),
			Model:      string(areq.Model),
			Provider:   a.Name(),
			Usage:      Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
			Duration:   time.Since(start),
		}})
	}()
	return ch, nil
}

var anthropicTypeCodes = map[string]int{
	"invalid_request_error": 400,
	"authentication_error":  401,
	"permission_error":      403,
	"not_found_error":       404,
	"rate_limit_error":      429,
	"api_error":             500,
	"overloaded_error":      529,
}

func anthropicError(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		t := string(apiErr.Type)
		return &ProviderError{Provider: "anthropic", Code: anthropicTypeCodes[t], Type: t, Message: apiErr.Message, Err: err}
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: "anthropic", Code: reqErr.StatusCode, Message: err.Error(), Err: err}
	}
	return &ProviderError{Provider: "anthropic", Message: err.Error(), Err: err}
}
