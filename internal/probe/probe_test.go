package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/agentstation/gatesync/pkg/catalog"
)

func TestTestModelsSeparatesWorkingFromBroken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-key", r.Header.Get("Authorization"))

		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Model {
		case "broken-http":
			w.WriteHeader(http.StatusNotFound)
		case "broken-body":
			w.Write([]byte(`{"error": {"message": "model offline"}}`))
		default:
			w.Write([]byte(`{"choices": [{"message": {"content": "hi"}}]}`))
		}
	}))
	defer srv.Close()

	tester := &Tester{}
	res, err := tester.TestModels(context.Background(), srv.URL, "sk-key",
		[]string{"gpt-4o", "broken-http", "broken-body", "gpt-4o-mini"},
		catalog.ChannelTypeOpenAI, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, res.WorkingModels)
	assert.Greater(t, res.AvgResponseTime.Nanoseconds(), int64(0))
}

func TestTestModelsBatchWidth(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	models := make([]string, 20)
	for i := range models {
		models[i] = "m"
	}
	tester := &Tester{}
	_, err := tester.TestModels(context.Background(), srv.URL, "k", models,
		catalog.ChannelTypeOpenAI, &Options{Concurrency: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3), "batch width bounds in-flight probes")
}

func TestTestModelsOnProbeCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var mu sync.Mutex
	seen := map[string]bool{}
	tester := &Tester{}
	_, err := tester.TestModels(context.Background(), srv.URL, "k",
		[]string{"good", "bad"}, catalog.ChannelTypeOpenAI, &Options{
			OnProbe: func(model string, ok bool, _ time.Duration) {
				mu.Lock()
				seen[model] = ok
				mu.Unlock()
			},
		})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"good": true, "bad": false}, seen)
}

func TestTestModelsOnProbeSerialized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// The counter is deliberately unsynchronized: the tester serializes
	// OnProbe calls, so callbacks need no locking of their own.
	count := 0
	models := make([]string, 12)
	for i := range models {
		models[i] = "m"
	}
	tester := &Tester{}
	_, err := tester.TestModels(context.Background(), srv.URL, "k", models,
		catalog.ChannelTypeOpenAI, &Options{
			Concurrency: 4,
			OnProbe:     func(string, bool, time.Duration) { count++ },
		})
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestTestModelsEmptyInput(t *testing.T) {
	tester := &Tester{}
	res, err := tester.TestModels(context.Background(), "http://unused", "k", nil,
		catalog.ChannelTypeOpenAI, nil)
	require.NoError(t, err)
	assert.Empty(t, res.WorkingModels)
	assert.Zero(t, res.AvgResponseTime)
}

func TestProbeRequestDialects(t *testing.T) {
	t.Run("anthropic", func(t *testing.T) {
		url, body := probeRequest("http://h/", "k", "claude-3", catalog.ChannelTypeAnthropic)
		assert.Equal(t, "http://h/v1/messages", url)
		assert.Equal(t, int64(1), gjson.GetBytes(body, "max_tokens").Int())
	})
	t.Run("gemini carries key in query", func(t *testing.T) {
		url, body := probeRequest("http://h", "k", "gemini-2.0-flash", catalog.ChannelTypeGemini)
		assert.Equal(t, "http://h/v1beta/models/gemini-2.0-flash:generateContent?key=k", url)
		assert.Equal(t, int64(1), gjson.GetBytes(body, "generationConfig.maxOutputTokens").Int())
	})
	t.Run("responses", func(t *testing.T) {
		url, body := probeRequest("http://h", "k", "gpt-4o", catalog.ChannelTypeOpenAIResponses)
		assert.Equal(t, "http://h/v1/responses", url)
		assert.Equal(t, int64(16), gjson.GetBytes(body, "max_output_tokens").Int())
	})
	t.Run("default chat completions", func(t *testing.T) {
		url, body := probeRequest("http://h", "k", "gpt-4o", catalog.ChannelTypeOpenAI)
		assert.Equal(t, "http://h/v1/chat/completions", url)
		assert.Equal(t, "gpt-4o", gjson.GetBytes(body, "model").String())
	})
}

func TestHasDialectError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		channel catalog.ChannelType
		want    bool
	}{
		{"openai clean", `{"choices": []}`, catalog.ChannelTypeOpenAI, false},
		{"openai error", `{"error": {"message": "x"}}`, catalog.ChannelTypeOpenAI, true},
		{"anthropic clean", `{"type": "message"}`, catalog.ChannelTypeAnthropic, false},
		{"anthropic typed error", `{"type": "error", "error": {}}`, catalog.ChannelTypeAnthropic, true},
		{"gemini clean", `{"candidates": []}`, catalog.ChannelTypeGemini, false},
		{"gemini error", `{"error": {"code": 400}}`, catalog.ChannelTypeGemini, true},
		{"gemini blocked", `{"promptFeedback": {"blockReason": "SAFETY"}}`, catalog.ChannelTypeGemini, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasDialectError([]byte(tt.body), tt.channel))
		})
	}
}
