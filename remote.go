package imagetruth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultRemoteTimeout = 30 * time.Second
	maxRemoteResponse    = 64 * 1024
)

// RemoteClassifier sends the RGB buffer to an inference endpoint that hosts
// the model. The endpoint receives the raw pixels as application/octet-stream
// with X-Image-Width / X-Image-Height headers and answers {"score": 0.87},
// where score is the sigmoid probability of "AI".
type RemoteClassifier struct {
	URL        string
	HTTPClient *http.Client  // nil = http.DefaultClient
	Timeout    time.Duration // default: 30s
}

type remoteResponse struct {
	Score *float64 `json:"score"`
}

// Classify posts the buffer and converts the returned score.
func (r *RemoteClassifier) Classify(ctx context.Context, buf *PixelBuffer) (*ClassifierResult, error) {
	if r.URL == "" {
		return nil, errors.New("remote classifier: no URL configured")
	}
	if buf == nil {
		return nil, nil
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(buf.Pix))
	if err != nil {
		return nil, fmt.Errorf("remote classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Image-Width", strconv.Itoa(buf.Width))
	req.Header.Set("X-Image-Height", strconv.Itoa(buf.Height))

	resp, err := client.Do(req) //nolint:gosec // G704: endpoint is operator-configured
	if err != nil {
		return nil, fmt.Errorf("remote classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote classifier: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponse))
	if err != nil {
		return nil, fmt.Errorf("remote classifier: read response: %w", err)
	}

	var out remoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("remote classifier: decode response: %w", err)
	}
	if out.Score == nil {
		return nil, errors.New("remote classifier: response has no score")
	}

	res := ResultFromRawScore(*out.Score)
	return &res, nil
}
