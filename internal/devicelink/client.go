package devicelink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openfabric/pipeliner/internal/models"
)

// Client is a thin adapter to the device agent. Flow batches complete
// asynchronously through the batch callback; group creation is
// fire-and-forget with confirmation arriving over the event topic.
type Client struct {
	client  *http.Client
	baseURL string
}

func NewClient(addr string, timeout time.Duration) (*Client, error) {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	base := url.URL{
		Scheme: "http",
		Host:   addr,
	}
	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DisableKeepAlives: true,
			},
		},
		baseURL: base.String(),
	}, nil
}

type flowBatchDto struct {
	BatchID string              `json:"batch_id"`
	Ops     []models.FlowRuleOp `json:"ops"`
}

// Apply submits the batch and drives its Done callback from a background
// goroutine once the agent answers. The returned error only covers
// request construction; transport and agent failures are reported through
// Done.
func (c *Client) Apply(ctx context.Context, batch models.FlowRuleBatch) error {
	body, err := json.Marshal(flowBatchDto{
		BatchID: batch.ID,
		Ops:     batch.Ops,
	})
	if err != nil {
		return fmt.Errorf("failed to encode flow batch %s: %w", batch.ID, err)
	}
	// The batch outlives the submitting call, detach it from the caller's
	// cancellation.
	ctx = context.WithoutCancel(ctx)
	go func() {
		err := c.post(ctx, "/v1/flows", body)
		if batch.Done == nil {
			if err != nil {
				log.Error().Err(err).Msgf("flow batch %s failed", batch.ID)
			}
			return
		}
		batch.Done(err)
	}()
	return nil
}

func (c *Client) CreateGroup(ctx context.Context, key models.GroupKey, buckets []models.GroupBucket) error {
	body, err := json.Marshal(models.GroupRecord{
		Key:     key,
		Buckets: buckets,
	})
	if err != nil {
		return fmt.Errorf("failed to encode group %s: %w", key, err)
	}
	return c.post(ctx, "/v1/groups", body)
}

func (c *Client) GetGroup(ctx context.Context, key models.GroupKey) (*models.GroupRecord, error) {
	target := c.baseURL + path.Join("/v1/groups", url.PathEscape(string(key)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to form group get request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("group get request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("group get returned status %d", resp.StatusCode)
	}
	record := models.GroupRecord{}
	err = json.NewDecoder(resp.Body).Decode(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode group record: %w", err)
	}
	return &record, nil
}

func (c *Client) post(ctx context.Context, route string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to form request to %s: %w", route, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", route, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s returned status %d", route, resp.StatusCode)
	}
	return nil
}
