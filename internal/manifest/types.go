package manifest

// Manifest models the subset of a browser extension manifest.json this
// module reads. Schema enforcement is owned by the host runtime; these
// fields exist for display, routing, and the key re-serialization step.
type Manifest struct {
	Name            string         `json:"name"`
	Version         string         `json:"version"`
	ManifestVersion int            `json:"manifest_version"`
	Description     string         `json:"description,omitempty"`
	Key             string         `json:"key,omitempty"`
	UpdateURL       string         `json:"update_url,omitempty"`
	DefaultLocale   string         `json:"default_locale,omitempty"`
	Permissions     []string       `json:"permissions,omitempty"`
	Background      *Background    `json:"background,omitempty"`
	BrowserAction   *BrowserAction `json:"browser_action,omitempty"`
}

// Background declares the extension's background page or scripts.
type Background struct {
	Page    string   `json:"page,omitempty"`
	Scripts []string `json:"scripts,omitempty"`
}

// BrowserAction declares the extension's toolbar button and popup.
type BrowserAction struct {
	DefaultTitle string `json:"default_title,omitempty"`
	DefaultPopup string `json:"default_popup,omitempty"`
	DefaultIcon  string `json:"default_icon,omitempty"`
}
