// Package discovery scans the extension roots on disk. Each root holds
// directories keyed by extension id, each containing one subdirectory per
// installed version with a manifest.json inside. Roots are scanned in
// priority order; an id found in an earlier root shadows the same id in a
// later one.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mezzo-player/webext/internal/manifest"
	"github.com/mezzo-player/webext/internal/paths"
)

// SourceKind identifies where an extension root comes from.
type SourceKind string

const (
	KindVendor SourceKind = "vendor" // shipped by the platform vendor
	KindApp    SourceKind = "app"    // bundled with the application
	KindUser   SourceKind = "user"   // installed by the user from the CDN
)

// Source is one extension root to scan.
type Source struct {
	Kind SourceKind
	Root string
}

// Extension is an extension version directory found on disk, enriched with
// its parsed manifest.
type Extension struct {
	ID       string
	Version  string
	Dir      string // absolute path to the version directory
	Kind     SourceKind
	Manifest *manifest.Manifest
}

// Name returns the display name from the manifest, falling back to the id.
func (e *Extension) Name() string {
	if e.Manifest != nil && e.Manifest.Name != "" {
		return e.Manifest.Name
	}
	return e.ID
}

// DefaultSources resolves the standard vendor, app, and user roots in
// priority order. Roots that cannot be resolved (no executable path, no
// home) are omitted rather than failing the scan.
func DefaultSources() []Source {
	var sources []Source
	if root, err := paths.VendorExtensionsRoot(); err == nil {
		sources = append(sources, Source{Kind: KindVendor, Root: root})
	}
	if root, err := paths.AppExtensionsRoot(); err == nil {
		sources = append(sources, Source{Kind: KindApp, Root: root})
	}
	if root, err := paths.UserExtensionsRoot(); err == nil {
		sources = append(sources, Source{Kind: KindUser, Root: root})
	}
	return sources
}

// Scan walks all sources and returns one Extension per id: the newest
// version found in the highest-priority source that has the id. Sources
// that do not exist or cannot be read are skipped.
func Scan(sources []Source) ([]*Extension, error) {
	seen := make(map[string]bool)
	var result []*Extension

	for _, src := range sources {
		exts, err := scanRoot(src)
		if err != nil {
			continue // skip inaccessible roots
		}
		for _, e := range exts {
			if !seen[e.ID] {
				seen[e.ID] = true
				result = append(result, e)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// scanRoot reads one root and returns the newest version of every
// extension directory that has a parseable manifest.
func scanRoot(src Source) ([]*Extension, error) {
	entries, err := os.ReadDir(src.Root)
	if err != nil {
		return nil, fmt.Errorf("reading root %s: %w", src.Root, err)
	}

	var result []*Extension
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := newestVersion(src, entry.Name())
		if ext != nil {
			result = append(result, ext)
		}
	}
	return result, nil
}

// newestVersion picks the highest version directory under <root>/<id> that
// contains a parseable manifest. Returns nil if there is none.
func newestVersion(src Source, id string) *Extension {
	idDir := filepath.Join(src.Root, id)
	entries, err := os.ReadDir(idDir)
	if err != nil {
		return nil
	}

	var best *Extension
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(idDir, entry.Name())
		m, err := manifest.ParseDir(dir)
		if err != nil {
			continue
		}
		candidate := &Extension{
			ID:       id,
			Version:  entry.Name(),
			Dir:      dir,
			Kind:     src.Kind,
			Manifest: m,
		}
		if best == nil || CompareVersions(candidate.Version, best.Version) > 0 {
			best = candidate
		}
	}
	return best
}
