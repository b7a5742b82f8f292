// Package manifest reads and rewrites browser extension manifest.json files.
// Validation beyond "is parseable JSON with a name and version" is delegated
// to the host runtime.
package manifest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the manifest file expected in every extension version directory.
const FileName = "manifest.json"

// Parse reads and decodes a manifest.json file.
func Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s missing required 'name' field", path)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("manifest %s missing required 'version' field", path)
	}

	return &m, nil
}

// ParseDir reads the manifest.json inside an extension version directory.
func ParseDir(dir string) (*Manifest, error) {
	return Parse(filepath.Join(dir, FileName))
}

// InjectKey rewrites the manifest.json in dir with the DER-encoded public
// key inserted as the base64 "key" field. The host runtime derives a stable
// extension id from this field when it loads an unpacked directory, so the
// rewrite keeps the unpacked extension's id identical to the packed one.
// All fields other than "key" are preserved as decoded.
func InjectKey(dir string, publicKey []byte) error {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest %s: %w", path, err)
	}

	// Decode into a generic map so unknown fields survive the round trip.
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	raw["key"] = base64.StdEncoding.EncodeToString(publicKey)

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing manifest: %w", err)
	}
	out = append(out, '\n')

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}
