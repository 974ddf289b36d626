// Package target implements the client for the target gateway's
// administrative REST API: channel, model, vendor, and option resources,
// plus the orphan-model purge and the pre-run health check.
package target

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentstation/gatesync/internal/transport"
	"github.com/agentstation/gatesync/pkg/catalog"
	"github.com/agentstation/gatesync/pkg/constants"
	"github.com/agentstation/gatesync/pkg/errors"
)

// Client talks to one target gateway instance.
type Client struct {
	baseURL string
	client  *transport.Client
}

// New creates a target client authenticated with an admin access token.
func New(baseURL, accessToken string, opts ...transport.Option) *Client {
	return &Client{
		baseURL: baseURL,
		client:  transport.New("target", &transport.BearerAuth{Token: accessToken}, opts...),
	}
}

// apiResponse is the target's uniform response envelope.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	var resp apiResponse
	if err := c.client.Get(ctx, c.baseURL+path, &resp); err != nil {
		return err
	}
	return unwrap(&resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any) error {
	var resp apiResponse
	if err := c.client.Do(ctx, method, c.baseURL+path, body, &resp); err != nil {
		return err
	}
	return unwrap(&resp, nil)
}

func unwrap(resp *apiResponse, out any) error {
	if !resp.Success {
		return &errors.APIError{Provider: "target", Message: resp.Message}
	}
	if out == nil || resp.Data == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return errors.WrapParse("json", "target response", err)
	}
	return nil
}

// listPage decodes a paginated data payload that is either a bare array or
// an items/total wrapper, depending on the target's version.
func listPage[T any](data json.RawMessage) ([]T, error) {
	var wrapped struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Items != nil {
		return wrapped.Items, nil
	}
	var plain []T
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, errors.WrapParse("json", "list page", err)
	}
	return plain, nil
}

func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s%s?p=%d&page_size=%d", c.baseURL, path, page, constants.DefaultPageSize)
		var resp apiResponse
		if err := c.client.Get(ctx, url, &resp); err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, &errors.APIError{Provider: "target", Message: resp.Message}
		}
		batch, err := listPage[T](resp.Data)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < constants.DefaultPageSize {
			return all, nil
		}
	}
}

// HealthCheck verifies the target is reachable and our credential is valid.
// A failure here is fatal to the run.
func (c *Client) HealthCheck(ctx context.Context) error {
	var resp apiResponse
	if err := c.client.Get(ctx, c.baseURL+"/api/status", &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &errors.APIError{Provider: "target", Message: resp.Message}
	}
	return nil
}

// ListChannels returns every channel on the target.
func (c *Client) ListChannels(ctx context.Context) ([]catalog.Channel, error) {
	return listAll[catalog.Channel](ctx, c, "/api/channel/")
}

// CreateChannel creates a channel.
func (c *Client) CreateChannel(ctx context.Context, ch *catalog.Channel) error {
	return c.send(ctx, "POST", "/api/channel/", ch)
}

// UpdateChannel updates a channel; ch.ID must be set.
func (c *Client) UpdateChannel(ctx context.Context, ch *catalog.Channel) error {
	return c.send(ctx, "PUT", "/api/channel/", ch)
}

// DeleteChannel deletes a channel by id.
func (c *Client) DeleteChannel(ctx context.Context, id int) error {
	return c.send(ctx, "DELETE", fmt.Sprintf("/api/channel/%d", id), nil)
}

// ListModels returns every model catalog record on the target.
func (c *Client) ListModels(ctx context.Context) ([]catalog.ModelMeta, error) {
	return listAll[catalog.ModelMeta](ctx, c, "/api/models/")
}

// CreateModel creates a model catalog record.
func (c *Client) CreateModel(ctx context.Context, m *catalog.ModelMeta) error {
	return c.send(ctx, "POST", "/api/models/", m)
}

// UpdateModel updates a model catalog record; m.ID must be set.
func (c *Client) UpdateModel(ctx context.Context, m *catalog.ModelMeta) error {
	return c.send(ctx, "PUT", "/api/models/", m)
}

// DeleteModel deletes a model catalog record by id.
func (c *Client) DeleteModel(ctx context.Context, id int) error {
	return c.send(ctx, "DELETE", fmt.Sprintf("/api/models/%d", id), nil)
}

// ListVendors returns the target's vendor records.
func (c *Client) ListVendors(ctx context.Context) ([]catalog.Vendor, error) {
	return listAll[catalog.Vendor](ctx, c, "/api/vendors/")
}

// GetOptions returns the target's option store as raw key→value strings.
func (c *Client) GetOptions(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := c.get(ctx, "/api/option/", &rows); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// UpdateOption writes one option key.
func (c *Client) UpdateOption(ctx context.Context, key, value string) error {
	body := map[string]string{"key": key, "value": value}
	return c.send(ctx, "PUT", "/api/option/", body)
}

// CleanupOrphanModels asks the target to purge model records bound to no
// channel and returns the number removed. The target computes the orphan set
// itself.
func (c *Client) CleanupOrphanModels(ctx context.Context) (int, error) {
	var resp apiResponse
	if err := c.client.Post(ctx, c.baseURL+"/api/models/cleanup", nil, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, &errors.APIError{Provider: "target", Message: resp.Message}
	}
	var deleted int
	if resp.Data != nil {
		_ = json.Unmarshal(resp.Data, &deleted)
	}
	return deleted, nil
}
