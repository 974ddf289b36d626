// Package probe implements model health testing: one minimal-cost request
// per model through a group's credential, batched at a fixed width to bound
// upstream load.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/constants"
	"github.com/agentstation/gatesync/pkg/logging"
)

// Result reports the outcome of testing one model set.
type Result struct {
	// WorkingModels are the models whose probe succeeded, sorted.
	WorkingModels []string
	// AvgResponseTime is the mean latency over successful probes only;
	// zero when none succeeded.
	AvgResponseTime time.Duration
}

// Options tunes a test run.
type Options struct {
	// Concurrency is the probe batch width; defaults to
	// constants.ProbeConcurrency.
	Concurrency int
	// Timeout is the per-probe hard timeout; defaults to
	// constants.ProbeTimeout.
	Timeout time.Duration
	// OnProbe, when set, is invoked after each probe completes. Callers use
	// it to sample cost deltas without the tester knowing about billing.
	// Calls are serialized, so the callback needs no locking of its own.
	OnProbe func(model string, ok bool, latency time.Duration)
	// Client substitutes the HTTP client, for tests.
	Client *http.Client
}

// Tester issues health probes. The zero value is usable.
type Tester struct{}

// TestModels probes every model through the given credential and returns the
// working subset with the average response time. Probes run in fixed-width
// batches; batches are sequential, each internally parallel. A model is
// working when the HTTP call succeeds and the decoded body carries no error
// indicator for the channel's dialect.
func (t *Tester) TestModels(ctx context.Context, baseURL, apiKey string, models []string, channelType catalog.ChannelType, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	width := opts.Concurrency
	if width <= 0 {
		width = constants.ProbeConcurrency
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.ProbeTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	type outcome struct {
		model   string
		ok      bool
		latency time.Duration
	}

	var (
		mu       sync.Mutex
		outcomes []outcome
	)

	for start := 0; start < len(models); start += width {
		end := start + width
		if end > len(models) {
			end = len(models)
		}

		var wg sync.WaitGroup
		for _, model := range models[start:end] {
			wg.Add(1)
			go func(model string) {
				defer wg.Done()

				probeCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				started := time.Now()
				ok := t.probe(probeCtx, client, baseURL, apiKey, model, channelType)
				latency := time.Since(started)

				mu.Lock()
				outcomes = append(outcomes, outcome{model, ok, latency})
				if opts.OnProbe != nil {
					opts.OnProbe(model, ok, latency)
				}
				mu.Unlock()
			}(model)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	result := &Result{}
	var total time.Duration
	for _, o := range outcomes {
		if !o.ok {
			logging.Ctx(ctx).Debug().Str("model", o.model).Msg("probe failed")
			continue
		}
		result.WorkingModels = append(result.WorkingModels, o.model)
		total += o.latency
	}
	sort.Strings(result.WorkingModels)
	if n := len(result.WorkingModels); n > 0 {
		result.AvgResponseTime = total / time.Duration(n)
	}
	return result, nil
}

func (t *Tester) probe(ctx context.Context, client *http.Client, baseURL, apiKey, model string, channelType catalog.ChannelType) bool {
	url, body := probeRequest(baseURL, apiKey, model, channelType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	applyAuth(req, apiKey, channelType)

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	return !hasDialectError(raw, channelType)
}

// probeRequest builds the minimal-cost probe for one dialect: a one-word
// prompt with a one-token completion cap.
func probeRequest(baseURL, apiKey, model string, channelType catalog.ChannelType) (string, []byte) {
	base := strings.TrimSuffix(baseURL, "/")

	switch channelType {
	case catalog.ChannelTypeAnthropic:
		body, _ := json.Marshal(map[string]any{
			"model":      model,
			"max_tokens": constants.MaxProbeTokens,
			"messages": []map[string]string{
				{"role": "user", "content": "hi"},
			},
		})
		return base + "/v1/messages", body

	case catalog.ChannelTypeGemini:
		body, _ := json.Marshal(map[string]any{
			"contents": []map[string]any{
				{"parts": []map[string]string{{"text": "hi"}}},
			},
			"generationConfig": map[string]any{
				"maxOutputTokens": constants.MaxProbeTokens,
			},
		})
		return base + "/v1beta/models/" + model + ":generateContent?key=" + apiKey, body

	case catalog.ChannelTypeOpenAIResponses:
		body, _ := json.Marshal(map[string]any{
			"model":             model,
			"input":             "hi",
			"max_output_tokens": 16,
		})
		return base + "/v1/responses", body

	default:
		body, _ := json.Marshal(map[string]any{
			"model":      model,
			"max_tokens": constants.MaxProbeTokens,
			"messages": []map[string]string{
				{"role": "user", "content": "hi"},
			},
		})
		return base + "/v1/chat/completions", body
	}
}

func applyAuth(req *http.Request, apiKey string, channelType catalog.ChannelType) {
	switch channelType {
	case catalog.ChannelTypeAnthropic:
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	case catalog.ChannelTypeGemini:
		// Key rides in the query string.
	default:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// hasDialectError checks the decoded body for the error indicator
// appropriate to the dialect.
func hasDialectError(body []byte, channelType catalog.ChannelType) bool {
	switch channelType {
	case catalog.ChannelTypeAnthropic:
		if gjson.GetBytes(body, "type").String() == "error" {
			return true
		}
		return gjson.GetBytes(body, "error").Exists()

	case catalog.ChannelTypeGemini:
		if gjson.GetBytes(body, "error").Exists() {
			return true
		}
		return gjson.GetBytes(body, "promptFeedback.blockReason").Exists()

	default:
		return gjson.GetBytes(body, "error").Exists()
	}
}
