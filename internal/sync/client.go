package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fixline/bodyshop/internal/errors"
	"github.com/fixline/bodyshop/internal/models"
)

// Client is the HTTP client a store node uses to reach central. All
// calls take a context; a cancelled call leaves the store's sync state
// untouched and safe to resume.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the central base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Login exchanges the machine key for a session token.
func (c *Client) Login(ctx context.Context, machineKey string) (*models.LoginResponse, error) {
	body, err := json.Marshal(models.LoginRequest{MachineKey: machineKey})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out models.LoginResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a change batch to central.
func (c *Client) Upload(ctx context.Context, token string, batch models.SyncBatch) (*models.SyncBatchResult, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync/upload", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var out models.SyncBatchResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download fetches the next page of central-side changes after the
// given cursor.
func (c *Client) Download(ctx context.Context, token string, since int64, pageSize int) (*models.SyncDiffResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sync/changes", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("lastSyncTime", strconv.FormatInt(since, 10))
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)

	var out models.SyncDiffResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executes the request and decodes a JSON response. Non-2xx
// statuses map onto the sync error taxonomy so the scheduler can tell
// an expired credential from a transport failure.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrSyncTransport, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.New(errors.ErrSyncAuth, "credential rejected")
	case resp.StatusCode == http.StatusForbidden:
		return errors.New(errors.ErrIdentityMismatch, "identity rejected")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.Wrap(errors.ErrSyncTransport,
			fmt.Sprintf("unexpected status %d", resp.StatusCode),
			fmt.Errorf("%s", snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrSyncTransport, "failed to decode response", err)
	}
	return nil
}
