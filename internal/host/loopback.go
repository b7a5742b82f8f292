package host

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// Loopback is an in-process Runtime used when no browser control socket is
// configured (development mode) and by the test suites. It mirrors the
// state a real runtime would hold: which extensions are loaded into which
// session, and whether each is enabled.
type Loopback struct {
	mu      sync.Mutex
	loaded  map[string]map[string]bool // session -> id -> enabled
	nextErr error
}

// NewLoopback creates an empty loopback runtime.
func NewLoopback() *Loopback {
	return &Loopback{loaded: make(map[string]map[string]bool)}
}

// FailNext makes the next call return err, then clears it. Test hook.
func (l *Loopback) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextErr = err
}

func (l *Loopback) takeErr() error {
	err := l.nextErr
	l.nextErr = nil
	return err
}

// LoadExtension implements Runtime. The returned id is the extension's id
// directory name (<root>/<id>/<version>).
func (l *Loopback) LoadExtension(_ context.Context, session, dir string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeErr(); err != nil {
		return "", err
	}

	id := filepath.Base(filepath.Dir(dir))
	if l.loaded[session] == nil {
		l.loaded[session] = make(map[string]bool)
	}
	l.loaded[session][id] = true
	return id, nil
}

// UnloadExtension implements Runtime.
func (l *Loopback) UnloadExtension(_ context.Context, session, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeErr(); err != nil {
		return err
	}

	if _, ok := l.loaded[session][id]; !ok {
		return fmt.Errorf("extension %s not loaded in session %s", id, session)
	}
	delete(l.loaded[session], id)
	return nil
}

// SetExtensionEnabled implements Runtime.
func (l *Loopback) SetExtensionEnabled(_ context.Context, session, id string, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.takeErr(); err != nil {
		return err
	}

	if _, ok := l.loaded[session][id]; !ok {
		return fmt.Errorf("extension %s not loaded in session %s", id, session)
	}
	l.loaded[session][id] = enabled
	return nil
}

// Close implements Runtime.
func (l *Loopback) Close() error { return nil }

// IsLoaded reports whether id is loaded in session.
func (l *Loopback) IsLoaded(session, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[session][id]
	return ok
}

// IsEnabled reports whether id is loaded and enabled in session.
func (l *Loopback) IsEnabled(session, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[session][id]
}
