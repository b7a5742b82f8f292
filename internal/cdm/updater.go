// Package cdm registers the content decryption module with the platform
// component-updater service, checks its feed for newer versions, and
// installs component archives under the components directory. Update
// scheduling stays with the service; this package only registers, checks
// on demand, and installs.
package cdm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Component is one entry in the component-updater feed.
type Component struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version"`
	URL     string `json:"url"`
	SHA256  string `json:"sha256,omitempty"`
}

// Feed is the component-updater service feed.
type Feed struct {
	Components []Component `json:"components"`
}

// Status summarizes a version check for the component.
type Status struct {
	ComponentID     string `json:"component_id"`
	Installed       string `json:"installed"` // empty when not installed
	Latest          string `json:"latest"`
	UpdateAvailable bool   `json:"update_available"`
}

// Updater is the client for one registered component.
type Updater struct {
	componentID    string
	serviceURL     string
	componentsRoot string
	httpClient     *http.Client
}

// Option configures an Updater.
type Option func(*Updater)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(u *Updater) {
		u.httpClient = c
	}
}

// New creates an Updater for componentID against the component-updater
// service at serviceURL, installing under componentsRoot.
func New(componentID, serviceURL, componentsRoot string, opts ...Option) *Updater {
	u := &Updater{
		componentID:    componentID,
		serviceURL:     strings.TrimRight(serviceURL, "/"),
		componentsRoot: componentsRoot,
		httpClient:     &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ComponentID returns the component this updater manages.
func (u *Updater) ComponentID() string { return u.componentID }

// Register announces the component and its installed version to the
// updater service so the service can schedule updates for it.
func (u *Updater) Register(ctx context.Context) error {
	installed, err := u.InstalledVersion()
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"id":      u.componentID,
		"version": installed,
	})
	if err != nil {
		return fmt.Errorf("marshaling registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.serviceURL+"/v1/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "mezzo-webext")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registering component %s: %w", u.componentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("component registration returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchFeed downloads the component feed from the updater service.
func (u *Updater) FetchFeed(ctx context.Context) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.serviceURL+"/v1/feed.json", nil)
	if err != nil {
		return nil, fmt.Errorf("creating feed request: %w", err)
	}
	req.Header.Set("User-Agent", "mezzo-webext")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching component feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}

	var feed Feed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parsing feed JSON: %w", err)
	}
	return &feed, nil
}

// find returns this updater's component from the feed.
func (u *Updater) find(feed *Feed) (*Component, error) {
	for i := range feed.Components {
		if feed.Components[i].ID == u.componentID {
			return &feed.Components[i], nil
		}
	}
	return nil, fmt.Errorf("component %s not present in feed", u.componentID)
}

// InstalledVersion returns the highest installed version of the component,
// or empty string if the component is not installed.
func (u *Updater) InstalledVersion() (string, error) {
	dir := filepath.Join(u.componentsRoot, u.componentID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading component directory %s: %w", dir, err)
	}

	best := ""
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if best == "" {
			best = entry.Name()
			continue
		}
		newer, err := IsUpdateAvailable(best, entry.Name())
		if err == nil && newer {
			best = entry.Name()
		}
	}
	return best, nil
}

// Check fetches the feed and compares it against the installed version.
// Results are cached in the component directory; a cache younger than
// maxAge short-circuits the network fetch.
func (u *Updater) Check(ctx context.Context, maxAge time.Duration) (*Status, error) {
	cacheDir := filepath.Join(u.componentsRoot, u.componentID)

	if cache, err := LoadCache(cacheDir); err == nil && !IsCacheStale(cache, maxAge) && cache.ComponentID == u.componentID {
		return &Status{
			ComponentID:     u.componentID,
			Installed:       cache.InstalledVersion,
			Latest:          cache.LatestVersion,
			UpdateAvailable: cache.UpdateAvailable,
		}, nil
	}

	installed, err := u.InstalledVersion()
	if err != nil {
		return nil, err
	}

	feed, err := u.FetchFeed(ctx)
	if err != nil {
		return nil, err
	}
	comp, err := u.find(feed)
	if err != nil {
		return nil, err
	}

	available := installed == ""
	if !available {
		available, err = IsUpdateAvailable(installed, comp.Version)
		if err != nil {
			return nil, err
		}
	}

	status := &Status{
		ComponentID:     u.componentID,
		Installed:       installed,
		Latest:          comp.Version,
		UpdateAvailable: available,
	}

	// Best effort: a failed cache write never fails the check.
	_ = SaveCache(cacheDir, &VersionCache{
		ComponentID:      u.componentID,
		LatestVersion:    status.Latest,
		InstalledVersion: status.Installed,
		CheckedAt:        time.Now().UTC(),
		UpdateAvailable:  status.UpdateAvailable,
	})

	return status, nil
}

// Update checks the feed and installs the latest version when it is newer
// than the installed one. Returns the resulting status.
func (u *Updater) Update(ctx context.Context) (*Status, error) {
	status, err := u.Check(ctx, 0)
	if err != nil {
		return nil, err
	}
	if !status.UpdateAvailable {
		return status, nil
	}

	feed, err := u.FetchFeed(ctx)
	if err != nil {
		return nil, err
	}
	comp, err := u.find(feed)
	if err != nil {
		return nil, err
	}

	if _, err := u.Install(ctx, comp); err != nil {
		return nil, err
	}

	status.Installed = comp.Version
	status.UpdateAvailable = false
	return status, nil
}
