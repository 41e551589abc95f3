package llm

import "context"

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	StreamFunc   func(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

func (m *MockClient) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response", Model: req.Model, Provider: m.Name()}, nil
}

// Stream falls back to splitting the Complete result into one delta and a
// done event when StreamFunc is nil.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamEvent, 2)
	ch <- StreamEvent{Type: EventDelta, Content: resp.Content}
	ch <- StreamEvent{Type: EventDone, Response: resp}
	close(ch)
	return ch, nil
}

// Reply returns a MockClient that always answers with text.
func Reply(text string) *MockClient {
	return &MockClient{CompleteFunc: func(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
		return &CompletionResponse{Content: text, Model: req.Model, Provider: "mock"}, nil
	}}
}
