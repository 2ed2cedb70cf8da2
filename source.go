package imagetruth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrSourceUnavailable is returned when an image reference cannot be read.
var ErrSourceUnavailable = errors.New("imagetruth: image source unavailable")

// Full images are needed: EXIF lives in the header but decoding needs every byte.
const (
	defaultMaxBytes = 20 << 20 // 20MB
	defaultTimeout  = 15 * time.Second
)

// ImageSource is a loaded image plus where it came from.
type ImageSource struct {
	Ref      string // path, URL or data URI as given by the caller
	Name     string // display name (file or URL base name)
	MIMEType string // may be empty for local files
	Data     []byte
}

// FetchOpts configures a remote image fetch.
type FetchOpts struct {
	MaxBytes  int64         // max response body size (default: 20MB)
	Timeout   time.Duration // per-request timeout (default: 15s)
	UserAgent string        // override config user agent
}

// LoadImage reads an image from an http(s) URL, a base64 data: URI, or a
// local file path. Every failure wraps ErrSourceUnavailable.
func (cfg *Config) LoadImage(ctx context.Context, ref string) (*ImageSource, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrSourceUnavailable)
	}

	switch {
	case strings.HasPrefix(ref, "data:"):
		data, mimeType, err := DecodeDataURL(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return &ImageSource{Ref: ref, Name: "inline", MIMEType: mimeType, Data: data}, nil

	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return cfg.Fetch(ctx, ref, FetchOpts{})

	default:
		return readLocalImage(ref)
	}
}

// Fetch downloads an image. Tries cfg.StealthClient first (if set), falls
// back to cfg.HTTPClient.
func (cfg *Config) Fetch(ctx context.Context, rawURL string, opts FetchOpts) (*ImageSource, error) {
	c := cfg.withDefaults()

	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = c.UserAgent
	}

	if c.StealthClient != nil {
		src, err := fetchRemote(ctx, c.StealthClient, rawURL, opts)
		if err == nil {
			return src, nil
		}
		slog.Debug("imagetruth: stealth fetch failed, falling back", "url", rawURL, "error", err.Error())
	}

	src, err := fetchRemote(ctx, c.HTTPClient, rawURL, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return src, nil
}

func fetchRemote(ctx context.Context, client *http.Client, rawURL string, opts FetchOpts) (*ImageSource, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	resp, err := client.Do(req) //nolint:gosec // G704: URL is caller-supplied
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// "image/jpeg; charset=utf-8" → "image/jpeg"
	ct, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	ct = strings.TrimSpace(ct)
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image: content type %q", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}

	return &ImageSource{Ref: rawURL, Name: urlBaseName(rawURL), MIMEType: ct, Data: data}, nil
}

func readLocalImage(p string) (*ImageSource, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, p)
	}
	if info.Size() > defaultMaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrSourceUnavailable, p, defaultMaxBytes)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return &ImageSource{Ref: p, Name: filepath.Base(p), Data: data}, nil
}

func urlBaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return rawURL
	}
	return path.Base(u.Path)
}
