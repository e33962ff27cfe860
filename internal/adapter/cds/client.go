// Package cds retrieves ERA5-Land archives from the Copernicus Climate Data
// Store. Requests are asynchronous on the CDS side: submit, poll until the
// job completes, then download the result.
package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dontloseyourheadsu/WeatherService/internal/adapter/netcdf"
)

const (
	maxAttempts  = 3
	retryBase    = 5 * time.Second
	pollInterval = 2 * time.Second
)

// Request is one dataset retrieval job.
type Request struct {
	Dataset string
	Params  map[string]any
}

// Client talks to the CDS retrieval API.
type Client struct {
	baseURL    string
	key        string // "UID:APIKEY"
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewClient creates a CDS client authenticated with key.
func NewClient(baseURL, key string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
}

// SetClock replaces the clock used for retry and poll sleeps. Test hook.
func (c *Client) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

// Retrieve downloads one dataset to dest. The downloaded payload is verified
// against the grid signatures before it is accepted; an HTML error page saved
// by a proxy or an expired login does not survive as a .nc file. After three
// failed attempts the last payload, if any, is quarantined as dest+".invalid".
func (c *Client) Retrieve(ctx context.Context, req Request, dest string) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.retrieveOnce(ctx, req, dest)
		if err == nil {
			if err = netcdf.Validate(dest); err == nil {
				return nil
			}
			c.logger.Warn("downloaded payload is not grid data",
				"dest", dest, "attempt", attempt, "error", err)
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < maxAttempts {
			if !c.sleep(ctx, time.Duration(attempt)*retryBase) {
				return ctx.Err()
			}
		}
	}

	if _, err := os.Stat(dest); err == nil {
		bad := dest + ".invalid"
		if err := os.Rename(dest, bad); err == nil {
			c.logger.Warn("quarantined invalid payload", "dest", bad)
		}
	}
	return fmt.Errorf("retrieve %s after %d attempts: %w", req.Dataset, maxAttempts, lastErr)
}

// retrieveOnce runs one submit-poll-download cycle.
func (c *Client) retrieveOnce(ctx context.Context, req Request, dest string) error {
	task, err := c.submit(ctx, req)
	if err != nil {
		return err
	}

	for task.State != "completed" {
		if task.State == "failed" {
			return fmt.Errorf("job %s failed: %s", task.RequestID, task.Error.Message)
		}
		if !c.sleep(ctx, pollInterval) {
			return ctx.Err()
		}
		if task, err = c.poll(ctx, task.RequestID); err != nil {
			return err
		}
	}

	return c.download(ctx, task.Location, dest)
}

type taskReply struct {
	State     string `json:"state"`
	RequestID string `json:"request_id"`
	Location  string `json:"location"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) submit(ctx context.Context, req Request) (taskReply, error) {
	body, err := json.Marshal(req.Params)
	if err != nil {
		return taskReply{}, fmt.Errorf("encode request: %w", err)
	}

	u := fmt.Sprintf("%s/resources/%s", c.baseURL, req.Dataset)
	c.logger.Info("submitting retrieval job", "dataset", req.Dataset)
	return c.doJSON(ctx, http.MethodPost, u, bytes.NewReader(body))
}

func (c *Client) poll(ctx context.Context, requestID string) (taskReply, error) {
	u := fmt.Sprintf("%s/tasks/%s", c.baseURL, requestID)
	return c.doJSON(ctx, http.MethodGet, u, nil)
}

func (c *Client) doJSON(ctx context.Context, method, url string, body io.Reader) (taskReply, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return taskReply{}, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return taskReply{}, fmt.Errorf("cds request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(resp.Body)
		return taskReply{}, fmt.Errorf("cds API error: status %d: %s", resp.StatusCode, msg)
	}

	var task taskReply
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return taskReply{}, fmt.Errorf("decode reply: %w", err)
	}
	return task, nil
}

// download streams the result to a temp file and renames it into place, so a
// partial download never shadows dest.
func (c *Client) download(ctx context.Context, location, dest string) error {
	if strings.HasPrefix(location, "/") {
		location = c.baseURL + location
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func (c *Client) authorize(req *http.Request) {
	if uid, key, ok := strings.Cut(c.key, ":"); ok {
		req.SetBasicAuth(uid, key)
	}
}

// sleep waits for d on the client clock. Returns false on context cancellation.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}
