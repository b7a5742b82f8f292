// Package manager orchestrates the extension lifecycle: it discovers
// extension directories, loads them into the dedicated browsing session,
// installs packages downloaded from the CDN, and publishes lifecycle events
// for the player UI. Its in-memory maps (active id set, metadata by id)
// mirror host-runtime state; the filesystem is the only persistent store.
package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mezzo-player/webext/internal/cdm"
	"github.com/mezzo-player/webext/internal/cdn"
	"github.com/mezzo-player/webext/internal/crx"
	"github.com/mezzo-player/webext/internal/discovery"
	"github.com/mezzo-player/webext/internal/events"
	"github.com/mezzo-player/webext/internal/host"
	"github.com/mezzo-player/webext/internal/manifest"
)

// Config carries the collaborators a Manager needs.
type Config struct {
	Sources     []discovery.Source
	UserRoot    string
	StagingRoot string
	Session     string // defaults to host.DefaultSession
	Runtime     host.Runtime
	Broker      *events.Broker
	CDN         *cdn.Client
	Log         zerolog.Logger
}

// ExtensionStatus is the UI-facing view of one extension.
type ExtensionStatus struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Version     string               `json:"version"`
	Kind        discovery.SourceKind `json:"kind"`
	Enabled     bool                 `json:"enabled"`
	Downloading bool                 `json:"downloading"`
}

// Manager owns the extension set of one browsing session.
type Manager struct {
	mu      sync.Mutex
	session string
	cfg     Config
	log     zerolog.Logger

	active map[string]bool                 // id -> enabled, mirrors host state
	meta   map[string]*discovery.Extension // id -> newest discovered metadata
}

// New creates a Manager. The runtime, broker, and CDN client in cfg must be
// non-nil.
func New(cfg Config) *Manager {
	session := cfg.Session
	if session == "" {
		session = host.DefaultSession
	}
	return &Manager{
		session: session,
		cfg:     cfg,
		log:     cfg.Log.With().Str("session", session).Logger(),
		active:  make(map[string]bool),
		meta:    make(map[string]*discovery.Extension),
	}
}

// Session returns the browsing session this manager drives.
func (m *Manager) Session() string { return m.session }

// Sync scans all extension roots and reconciles the session against them:
// newly found extensions are loaded, extensions whose directories are gone
// are unloaded. Per-extension failures are logged and forwarded as error
// events; Sync itself only fails on a scan error.
func (m *Manager) Sync(ctx context.Context) error {
	found, err := discovery.Scan(m.cfg.Sources)
	if err != nil {
		return fmt.Errorf("scanning extension roots: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	onDisk := make(map[string]*discovery.Extension, len(found))
	for _, ext := range found {
		onDisk[ext.ID] = ext
	}

	// Unload extensions that disappeared from disk.
	for id := range m.active {
		if _, ok := onDisk[id]; ok {
			continue
		}
		if err := m.cfg.Runtime.UnloadExtension(ctx, m.session, id); err != nil {
			m.fail("unload", id, err)
			continue
		}
		delete(m.active, id)
		delete(m.meta, id)
		m.publish(events.New(events.TypeRemoved, id).WithSession(m.session))
	}

	// Load extensions that are new, reload changed versions.
	for _, ext := range found {
		prev, loaded := m.meta[ext.ID]
		if loaded && prev.Version == ext.Version {
			continue
		}
		if loaded {
			if err := m.cfg.Runtime.UnloadExtension(ctx, m.session, ext.ID); err != nil {
				m.fail("unload", ext.ID, err)
				continue
			}
			delete(m.active, ext.ID)
		}
		if err := m.loadLocked(ctx, ext); err != nil {
			continue
		}
		m.publish(m.statusEvent(ext.ID))
	}

	return nil
}

// loadLocked loads ext into the session and updates the mirrored state.
// Callers hold m.mu.
func (m *Manager) loadLocked(ctx context.Context, ext *discovery.Extension) error {
	id, err := m.cfg.Runtime.LoadExtension(ctx, m.session, ext.Dir)
	if err != nil {
		return m.fail("load", ext.ID, err)
	}
	if id != ext.ID {
		m.log.Warn().Str("dir_id", ext.ID).Str("runtime_id", id).
			Msg("runtime assigned a different extension id")
	}
	m.active[ext.ID] = true
	m.meta[ext.ID] = ext
	m.log.Info().Str("id", ext.ID).Str("version", ext.Version).
		Str("kind", string(ext.Kind)).Msg("extension loaded")
	return nil
}

// Install downloads the extension from the CDN, unpacks it into the user
// root, and loads it into the session. The CDN client enforces the one
// in-flight download per id rule.
func (m *Manager) Install(ctx context.Context, id string) error {
	if !crx.ValidID(id) {
		return m.fail("install", id, fmt.Errorf("malformed extension id %q", id))
	}

	index, err := m.cfg.CDN.FetchIndex(ctx)
	if err != nil {
		return m.fail("install", id, err)
	}
	entry := index.Find(id)
	if entry == nil {
		return m.fail("install", id, fmt.Errorf("extension %s not offered by CDN", id))
	}

	packagePath, err := m.cfg.CDN.Download(ctx, entry, m.cfg.StagingRoot)
	if err != nil {
		return m.fail("install", id, err)
	}
	defer os.Remove(packagePath)

	return m.InstallPackage(ctx, packagePath)
}

// InstallPackage verifies and unpacks a local package file, then loads the
// resulting extension. Used by Install and by the development workflow.
func (m *Manager) InstallPackage(ctx context.Context, packagePath string) error {
	unpacked, err := crx.Unpack(packagePath, m.cfg.UserRoot)
	if err != nil {
		return m.fail("install", "", err)
	}

	ext := &discovery.Extension{
		ID:      unpacked.ID,
		Version: unpacked.Version,
		Dir:     unpacked.Dir,
		Kind:    discovery.KindUser,
	}
	if man, err := manifest.ParseDir(unpacked.Dir); err == nil {
		ext.Manifest = man
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Replace a previously loaded copy of the same id.
	if _, loaded := m.active[ext.ID]; loaded {
		if err := m.cfg.Runtime.UnloadExtension(ctx, m.session, ext.ID); err != nil {
			return m.fail("install", ext.ID, err)
		}
		delete(m.active, ext.ID)
	}

	if err := m.loadLocked(ctx, ext); err != nil {
		return err
	}

	m.publish(events.New(events.TypeInstalled, ext.ID).
		WithSession(m.session).
		WithData("version", ext.Version).
		WithData("name", ext.Name()))
	return nil
}

// Remove unloads a user-installed extension and deletes its directory.
// Vendor- and app-bundled extensions cannot be removed.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ext, ok := m.meta[id]
	if !ok {
		return m.fail("remove", id, fmt.Errorf("extension %s is not loaded", id))
	}
	if ext.Kind != discovery.KindUser {
		return m.fail("remove", id, fmt.Errorf("extension %s is %s-bundled and cannot be removed", id, ext.Kind))
	}

	if err := m.cfg.Runtime.UnloadExtension(ctx, m.session, id); err != nil {
		return m.fail("remove", id, err)
	}
	delete(m.active, id)
	delete(m.meta, id)

	if err := os.RemoveAll(filepath.Join(m.cfg.UserRoot, id)); err != nil {
		return m.fail("remove", id, fmt.Errorf("deleting extension directory: %w", err))
	}

	m.log.Info().Str("id", id).Msg("extension removed")
	m.publish(events.New(events.TypeRemoved, id).WithSession(m.session))
	return nil
}

// SetEnabled toggles a loaded extension.
func (m *Manager) SetEnabled(ctx context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[id]; !ok {
		return m.fail("set_enabled", id, fmt.Errorf("extension %s is not loaded", id))
	}
	if err := m.cfg.Runtime.SetExtensionEnabled(ctx, m.session, id, enabled); err != nil {
		return m.fail("set_enabled", id, err)
	}
	m.active[id] = enabled
	m.publish(m.statusEvent(id))
	return nil
}

// List returns the status of every loaded extension, sorted by id.
func (m *Manager) List() []ExtensionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ExtensionStatus, 0, len(m.meta))
	for id := range m.meta {
		result = append(result, m.statusLocked(id))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Status returns the status of one extension.
func (m *Manager) Status(id string) (ExtensionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.meta[id]; !ok {
		return ExtensionStatus{}, fmt.Errorf("extension %s is not loaded", id)
	}
	return m.statusLocked(id), nil
}

// NotifyPopupShown forwards a popup-shown notification from the browsing
// surface to the UI.
func (m *Manager) NotifyPopupShown(id string) {
	m.publish(events.New(events.TypePopupShown, id).WithSession(m.session))
}

// NotifyCDMStatus forwards a component version check result to the UI. The
// event carries no extension id; the component is named in the data.
func (m *Manager) NotifyCDMStatus(st *cdm.Status) {
	m.publish(events.New(events.TypeCDMStatus, "").
		WithSession(m.session).
		WithData("component_id", st.ComponentID).
		WithData("installed", st.Installed).
		WithData("latest", st.Latest).
		WithData("update_available", st.UpdateAvailable))
}

// statusLocked builds the status view for id. Callers hold m.mu.
func (m *Manager) statusLocked(id string) ExtensionStatus {
	ext := m.meta[id]
	return ExtensionStatus{
		ID:          id,
		Name:        ext.Name(),
		Version:     ext.Version,
		Kind:        ext.Kind,
		Enabled:     m.active[id],
		Downloading: m.cfg.CDN.InFlight(id),
	}
}

// statusEvent builds an extension_status event for id. Callers hold m.mu.
func (m *Manager) statusEvent(id string) events.Event {
	st := m.statusLocked(id)
	return events.New(events.TypeStatus, id).
		WithSession(m.session).
		WithData("name", st.Name).
		WithData("version", st.Version).
		WithData("kind", string(st.Kind)).
		WithData("enabled", st.Enabled)
}

// fail logs an operation failure and forwards it to the UI as an error
// event, returning the wrapped error.
func (m *Manager) fail(op, id string, err error) error {
	m.log.Error().Err(err).Str("op", op).Str("id", id).Msg("extension operation failed")
	ev := events.New(events.TypeError, id).
		WithSession(m.session).
		WithData("op", op).
		WithData("error", err.Error())
	m.publish(ev)
	return fmt.Errorf("%s %s: %w", op, id, err)
}

func (m *Manager) publish(ev events.Event) {
	if m.cfg.Broker != nil {
		m.cfg.Broker.Publish(ev)
	}
}
