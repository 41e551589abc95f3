package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"github.com/soyeahso/agentdesk/internal/logging"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// VertexOptions configures the Vertex AI Agent Engine memory bank.
type VertexOptions struct {
	Project  string
	Location string
	// BaseURL overrides https://{location}-aiplatform.googleapis.com/v1beta1.
	BaseURL string
	// TokenSource, when set, authorizes requests instead of application
	// default credentials.
	TokenSource oauth2.TokenSource
	// HTTPClient, when set, is used as is.
	HTTPClient *http.Client
}

// VertexBank talks to the Agent Engine Memory Bank REST API.
type VertexBank struct {
	project  string
	location string
	baseURL  string
	http     *http.Client
	log      *logging.Logger
}

// APIError is a non-2xx reply from the Vertex API.
type APIError struct {
	HTTPStatus int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vertex memory bank: %d %s: %s", e.HTTPStatus, e.Status, e.Message)
}

// ErrorCode lets retry classifiers match on the API status.
func (e *APIError) ErrorCode() string { return e.Status }

// NewVertexBank builds a bank client. Without a TokenSource or HTTPClient
// it authenticates with application default credentials.
func NewVertexBank(ctx context.Context, opts VertexOptions, log *logging.Logger) (*VertexBank, error) {
	if opts.Project == "" {
		return nil, errors.New("vertex memory bank needs GOOGLE_CLOUD_PROJECT")
	}
	if opts.Location == "" {
		opts.Location = "us-central1"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1beta1", opts.Location)
	}

	client := opts.HTTPClient
	switch {
	case client != nil:
	case opts.TokenSource != nil:
		client = oauth2.NewClient(ctx, opts.TokenSource)
	default:
		c, _, err := htransport.NewClient(ctx, option.WithScopes(cloudPlatformScope))
		if err != nil {
			return nil, fmt.Errorf("google credentials: %w", err)
		}
		client = c
	}

	return &VertexBank{
		project:  opts.Project,
		location: opts.Location,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     client,
		log:      log.Sub("memory.vertex"),
	}, nil
}

// EngineName expands a bare engine id into its full resource name.
func (b *VertexBank) EngineName(id string) string {
	if strings.HasPrefix(id, "projects/") {
		return id
	}
	return fmt.Sprintf("projects/%s/locations/%s/reasoningEngines/%s", b.project, b.location, id)
}

type vertexOperation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Response json.RawMessage `json:"response,omitempty"`
}

// resourceName is the operation's target: everything before /operations/.
func (op vertexOperation) resourceName() string {
	name, _, _ := strings.Cut(op.Name, "/operations/")
	return name
}

type vertexMemory struct {
	Name       string            `json:"name"`
	Fact       string            `json:"fact"`
	Scope      map[string]string `json:"scope"`
	CreateTime time.Time         `json:"createTime"`
}

func (m vertexMemory) toMemory() Memory {
	return Memory{Name: m.Name, Fact: m.Fact, UserID: m.Scope["user_id"], CreateTime: m.CreateTime}
}

func (b *VertexBank) CreateEngine(ctx context.Context, displayName string) (string, error) {
	var op vertexOperation
	path := fmt.Sprintf("projects/%s/locations/%s/reasoningEngines", b.project, b.location)
	if err := b.post(ctx, path, map[string]any{"displayName": displayName}, &op); err != nil {
		return "", err
	}
	name := op.resourceName()
	b.log.Info().Str("engine", name).Msg("created agent engine")
	return name, nil
}

func (b *VertexBank) Create(ctx context.Context, engineID, userID, fact string) (Memory, error) {
	if engineID == "" {
		return Memory{}, ErrEngineRequired
	}
	body := map[string]any{"fact": fact, "scope": map[string]string{"user_id": userID}}
	var op vertexOperation
	if err := b.post(ctx, b.EngineName(engineID)+"/memories", body, &op); err != nil {
		return Memory{}, err
	}

	m := Memory{Name: op.resourceName(), Fact: fact, UserID: userID, CreateTime: time.Now().UTC()}
	if op.Done && len(op.Response) > 0 {
		var vm vertexMemory
		if err := json.Unmarshal(op.Response, &vm); err == nil && vm.Name != "" {
			m = vm.toMemory()
		}
	}
	b.log.Info().Str("user", userID).Str("memory", m.Name).Msg("created memory")
	return m, nil
}

type retrieveResponse struct {
	RetrievedMemories []struct {
		Memory   vertexMemory `json:"memory"`
		Distance float64      `json:"distance"`
	} `json:"retrievedMemories"`
}

func (b *VertexBank) retrieve(ctx context.Context, engineID string, body map[string]any) ([]Memory, error) {
	if engineID == "" {
		return nil, ErrEngineRequired
	}
	var resp retrieveResponse
	if err := b.post(ctx, b.EngineName(engineID)+"/memories:retrieve", body, &resp); err != nil {
		return nil, err
	}
	out := make([]Memory, 0, len(resp.RetrievedMemories))
	for _, r := range resp.RetrievedMemories {
		m := r.Memory.toMemory()
		m.Score = 1 / (1 + r.Distance)
		out = append(out, m)
	}
	return out, nil
}

func (b *VertexBank) List(ctx context.Context, engineID, userID string) ([]Memory, error) {
	return b.retrieve(ctx, engineID, map[string]any{
		"scope":                 map[string]string{"user_id": userID},
		"simpleRetrievalParams": map[string]any{},
	})
}

func (b *VertexBank) Search(ctx context.Context, engineID, userID, query string, topK int) ([]Memory, error) {
	return b.retrieve(ctx, engineID, map[string]any{
		"scope": map[string]string{"user_id": userID},
		"similaritySearchParams": map[string]any{
			"searchQuery": query,
			"topK":        topKOrDefault(topK),
		},
	})
}

func (b *VertexBank) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/"+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("vertex memory bank: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error.Message == "" {
			e.Error.Message = strings.TrimSpace(string(raw))
		}
		return &APIError{HTTPStatus: resp.StatusCode, Status: e.Error.Status, Message: e.Error.Message}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
