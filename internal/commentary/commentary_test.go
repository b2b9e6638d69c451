package commentary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCriticizePostsTodo(t *testing.T) {
	var gotKey, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte("  you call that work?\n"))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithAPIKey("secret"), WithLogger(zaptest.NewLogger(t)))
	reply := c.Criticize(context.Background(), "nap")

	assert.Equal(t, "you call that work?", reply)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "/criticism/todo", gotPath)
	assert.Equal(t, map[string]string{"todo": "nap"}, gotBody)
}

func TestInciteFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/incite", r.URL.Path)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	assert.Equal(t, DefaultInciteFallback, c.Incite(context.Background(), "walked 100 steps"))
}

func TestUnconfiguredClientUsesFallbacks(t *testing.T) {
	c := New("", WithFallbacks("custom", ""))
	assert.False(t, c.Enabled())
	assert.Equal(t, "custom", c.Criticize(context.Background(), "x"))
	assert.Equal(t, DefaultInciteFallback, c.Incite(context.Background(), "x"))
}

func TestEmptyReplyFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	assert.Equal(t, DefaultCriticismFallback, New(srv.URL).Criticize(context.Background(), "x"))
}

func TestCriticizeBatchSendsOtherTodos(t *testing.T) {
	var got struct {
		TargetTodo TodoLite   `json:"targetTodo"`
		OtherTodos []TodoLite `json:"otherTodos"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/criticism/todo", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("pick one"))
	}))
	defer srv.Close()

	desc := "scales"
	c := New(srv.URL)
	reply := c.CriticizeBatch(context.Background(), TodoLite{Title: "piano", Description: &desc}, []TodoLite{{Title: "laundry"}, {Title: "taxes"}})

	assert.Equal(t, "pick one", reply)
	assert.Equal(t, "piano", got.TargetTodo.Title)
	require.NotNil(t, got.TargetTodo.Description)
	assert.Equal(t, "scales", *got.TargetTodo.Description)
	assert.Equal(t, []TodoLite{{Title: "laundry"}, {Title: "taxes"}}, got.OtherTodos)
}

func TestCriticizeBatchWithoutOthersSendsSingleTodo(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("lazy"))
	}))
	defer srv.Close()

	assert.Equal(t, "lazy", New(srv.URL).CriticizeBatch(context.Background(), TodoLite{Title: "nap"}, nil))
	assert.Equal(t, map[string]any{"todo": "nap"}, got)
}
