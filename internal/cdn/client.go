// Package cdn fetches signed extension packages and the extension index
// from the content delivery network. One download may be in flight per
// extension id at a time; a second request for the same id is rejected
// immediately rather than queued.
package cdn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrDownloadInFlight is returned when a download for the same extension id
// is already running.
var ErrDownloadInFlight = errors.New("download already in flight")

const userAgent = "mezzo-webext"

// Client talks to the extension CDN.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	inflight map[string]bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// New creates a Client for the given CDN base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		inflight:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PackageURL returns the default download URL for an extension package.
func (c *Client) PackageURL(id, version string) string {
	return fmt.Sprintf("%s/packages/%s/%s.crx", c.baseURL, id, version)
}

// InFlight reports whether a download for id is currently running.
func (c *Client) InFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[id]
}

func (c *Client) begin(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[id] {
		return fmt.Errorf("extension %s: %w", id, ErrDownloadInFlight)
	}
	c.inflight[id] = true
	return nil
}

func (c *Client) end(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
}

// Download fetches the package for an index entry into destDir and returns
// the downloaded file path. If the entry carries a checksum, the file is
// verified before it is returned.
func (c *Client) Download(ctx context.Context, entry *Entry, destDir string) (string, error) {
	if err := c.begin(entry.ID); err != nil {
		return "", err
	}
	defer c.end(entry.ID)

	url := entry.URL
	if url == "" {
		url = c.PackageURL(entry.ID, entry.Version)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	destPath := filepath.Join(destDir, entry.ID+"-"+entry.Version+".crx")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", entry.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download of %s returned status %d", entry.ID, resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("writing download: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing download file: %w", err)
	}

	if entry.SHA256 != "" {
		actual := hex.EncodeToString(h.Sum(nil))
		if actual != entry.SHA256 {
			os.Remove(destPath)
			return "", fmt.Errorf("checksum mismatch for %s: expected %s, got %s", entry.ID, entry.SHA256, actual)
		}
	}

	return destPath, nil
}
