package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/store"
)

func silentLog() *logging.Logger { return logging.New(nil, "silent") }

func sqliteBank(t *testing.T) *SQLiteBank {
	t.Helper()
	db, err := store.Open(store.MemoryPath, silentLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteBank(store.NewMemoryStore(db))
}

// bankContract exercises behavior every local backend shares.
func bankContract(t *testing.T, b Bank) {
	ctx := context.Background()

	engine, err := b.CreateEngine(ctx, "support memories")
	require.NoError(t, err)
	require.NotEmpty(t, engine)

	_, err = b.Create(ctx, engine, "user1", "User lives in New York")
	require.NoError(t, err)
	m, err := b.Create(ctx, engine, "user1", "User likes pizza")
	require.NoError(t, err)
	assert.Equal(t, "User likes pizza", m.Fact)
	assert.Equal(t, "user1", m.UserID)
	assert.NotEmpty(t, m.Name)
	_, err = b.Create(ctx, engine, "user2", "User lives in Paris")
	require.NoError(t, err)

	all, err := b.List(ctx, engine, "user1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "User likes pizza", all[0].Fact)

	found, err := b.Search(ctx, engine, "user1", "New York?", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "User lives in New York", found[0].Fact)
	assert.Greater(t, found[0].Score, 0.0)

	found, err = b.Search(ctx, engine, "user1", "paris", 5)
	require.NoError(t, err)
	assert.Empty(t, found)

	other, err := b.CreateEngine(ctx, "other")
	require.NoError(t, err)
	none, err := b.List(ctx, other, "user1")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = b.Create(ctx, "", "user1", "x")
	assert.ErrorIs(t, err, ErrEngineRequired)
	_, err = b.List(ctx, "", "user1")
	assert.ErrorIs(t, err, ErrEngineRequired)
}

func TestMemoryBankContract(t *testing.T) { bankContract(t, NewMemoryBank()) }

func TestSQLiteBankContract(t *testing.T) { bankContract(t, sqliteBank(t)) }

func TestRedisBankContract(t *testing.T) {
	url := os.Getenv("AGENTDESK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("AGENTDESK_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	prefix := "agentdesk-test-" + t.Name()
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	bankContract(t, NewRedisBank(client, prefix))
}

func TestRedisBankFromURL(t *testing.T) {
	_, err := NewRedisBankFromURL("", "p")
	assert.Error(t, err)
	_, err = NewRedisBankFromURL("not a url", "p")
	assert.Error(t, err)

	b, err := NewRedisBankFromURL("redis://localhost:6379/2", "p")
	require.NoError(t, err)
	assert.Equal(t, "p:memories:e:u", b.key("memories", "e", "u"))
	require.NoError(t, b.Close())
}

func TestRank(t *testing.T) {
	mems := []Memory{
		{Fact: "Likes green tea"},
		{Fact: "Drinks tea every morning in Kyoto"},
		{Fact: "Owns a bike"},
	}
	out := rank(mems, "green tea", 10)
	require.Len(t, out, 2)
	assert.Equal(t, "Likes green tea", out[0].Fact)
	assert.Equal(t, 1.0, out[0].Score)
	assert.Equal(t, 0.5, out[1].Score)

	assert.Len(t, rank(mems, "tea", 1), 1)
	assert.Empty(t, rank(mems, "", 10))
}

func TestFormatFactsAndRecall(t *testing.T) {
	assert.Equal(t, "- a\n- b", FormatFacts([]Memory{{Fact: "a"}, {Fact: ""}, {Fact: "b"}}))
	assert.Equal(t, "", FormatFacts(nil))

	ctx := context.Background()
	b := NewMemoryBank()
	engine, _ := b.CreateEngine(ctx, "e")
	_, _ = b.Create(ctx, engine, "u", "Vegetarian")
	_, _ = b.Create(ctx, engine, "u", "Allergic to peanuts")

	out, err := Recall(ctx, b, engine, "u", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "- Allergic to peanuts\n- Vegetarian", out)

	out, err = Recall(ctx, b, engine, "u", "peanuts", 0)
	require.NoError(t, err)
	assert.Equal(t, "- Allergic to peanuts", out)

	out, err = Recall(ctx, b, engine, "nobody", "", 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()

	cfg.Memory.Backend = "memory"
	b, err := Open(ctx, &cfg, nil, silentLog())
	require.NoError(t, err)
	assert.IsType(t, &MemoryBank{}, b)

	cfg.Memory.Backend = "sqlite"
	_, err = Open(ctx, &cfg, nil, silentLog())
	assert.Error(t, err)

	cfg.Memory.Backend = "redis"
	cfg.Memory.RedisURL = ""
	_, err = Open(ctx, &cfg, nil, silentLog())
	assert.Error(t, err)

	cfg.Memory.Backend = "vertex"
	cfg.Providers.Google.Project = ""
	_, err = Open(ctx, &cfg, nil, silentLog())
	assert.Error(t, err)

	cfg.Memory.Backend = "floppy"
	_, err = Open(ctx, &cfg, nil, silentLog())
	assert.ErrorContains(t, err, "floppy")
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"no action", Request{}, "exactly one"},
		{"two actions", Request{CreateEngine: true, Search: true}, "exactly one"},
		{"create engine", Request{CreateEngine: true}, ""},
		{"create missing user", Request{CreateMemory: true, EngineID: "e", Fact: "f"}, "❌ Error: --user-id is required for --create-memory"},
		{"create missing engine", Request{CreateMemory: true, UserID: "u", Fact: "f"}, "No agent engine ID provided"},
		{"create missing fact", Request{CreateMemory: true, UserID: "u", EngineID: "e"}, "--fact is required"},
		{"get ok", Request{GetMemory: true, UserID: "u", EngineID: "e"}, ""},
		{"get missing user", Request{GetMemory: true, EngineID: "e"}, "--user-id is required for --get-memory"},
		{"search missing query", Request{Search: true, UserID: "u", EngineID: "e"}, "--query is required for --search"},
		{"search ok", Request{Search: true, UserID: "u", EngineID: "e", Query: "q"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

// --- Vertex ---

func vertexServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]any)) *VertexBank {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, r, body)
	}))
	t.Cleanup(srv.Close)

	b, err := NewVertexBank(context.Background(), VertexOptions{
		Project:     "proj",
		Location:    "us-central1",
		BaseURL:     srv.URL + "/v1beta1",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
	}, silentLog())
	require.NoError(t, err)
	return b
}

const enginePath = "/v1beta1/projects/proj/locations/us-central1/reasoningEngines/42"

func TestVertexCreateEngine(t *testing.T) {
	b := vertexServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, "/v1beta1/projects/proj/locations/us-central1/reasoningEngines", r.URL.Path)
		assert.Equal(t, "desk", body["displayName"])
		w.Write([]byte(`{"name":"projects/proj/locations/us-central1/reasoningEngines/42/operations/7"}`))
	})
	id, err := b.CreateEngine(context.Background(), "desk")
	require.NoError(t, err)
	assert.Equal(t, "projects/proj/locations/us-central1/reasoningEngines/42", id)
}

func TestVertexCreateMemory(t *testing.T) {
	b := vertexServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, enginePath+"/memories", r.URL.Path)
		assert.Equal(t, "Likes jazz", body["fact"])
		assert.Equal(t, map[string]any{"user_id": "u1"}, body["scope"])
		w.Write([]byte(`{"name":"projects/proj/locations/us-central1/reasoningEngines/42/memories/9/operations/1","done":true,
			"response":{"name":"projects/proj/locations/us-central1/reasoningEngines/42/memories/9","fact":"Likes jazz","scope":{"user_id":"u1"},"createTime":"2025-06-01T10:00:00Z"}}`))
	})
	m, err := b.Create(context.Background(), "42", "u1", "Likes jazz")
	require.NoError(t, err)
	assert.Equal(t, "projects/proj/locations/us-central1/reasoningEngines/42/memories/9", m.Name)
	assert.Equal(t, "u1", m.UserID)
	assert.Equal(t, 2025, m.CreateTime.Year())
}

func TestVertexSearch(t *testing.T) {
	b := vertexServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, enginePath+"/memories:retrieve", r.URL.Path)
		params := body["similaritySearchParams"].(map[string]any)
		assert.Equal(t, "music?", params["searchQuery"])
		assert.Equal(t, 10.0, params["topK"])
		w.Write([]byte(`{"retrievedMemories":[{"memory":{"name":"m1","fact":"Likes jazz","scope":{"user_id":"u1"}},"distance":0}]}`))
	})
	mems, err := b.Search(context.Background(), "projects/proj/locations/us-central1/reasoningEngines/42", "u1", "music?", 0)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "Likes jazz", mems[0].Fact)
	assert.Equal(t, 1.0, mems[0].Score)
}

func TestVertexListAndError(t *testing.T) {
	b := vertexServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Contains(t, body, "simpleRetrievalParams")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`))
	})
	_, err := b.List(context.Background(), "42", "u1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.HTTPStatus)
	assert.Equal(t, "PERMISSION_DENIED", apiErr.ErrorCode())
	assert.Contains(t, err.Error(), "denied")
}

func TestVertexEngineName(t *testing.T) {
	b := &VertexBank{project: "p", location: "europe-west4"}
	assert.Equal(t, "projects/p/locations/europe-west4/reasoningEngines/1", b.EngineName("1"))
	assert.Equal(t, "projects/x/locations/y/reasoningEngines/2", b.EngineName("projects/x/locations/y/reasoningEngines/2"))
}
