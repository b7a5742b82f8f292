// Package host abstracts the embedded browser runtime that actually
// executes extensions. Sandboxing, permission enforcement, and manifest
// validation all live on the other side of this interface; the extension
// manager only asks the runtime to load, unload, or toggle extensions
// inside a named browsing session and mirrors the resulting state.
package host

import "context"

// Runtime is the host-provided extension runtime.
type Runtime interface {
	// LoadExtension loads the unpacked extension at dir into the session
	// and returns the id the runtime assigned to it.
	LoadExtension(ctx context.Context, session, dir string) (string, error)

	// UnloadExtension removes the extension from the session.
	UnloadExtension(ctx context.Context, session, id string) error

	// SetExtensionEnabled toggles the extension without unloading it.
	SetExtensionEnabled(ctx context.Context, session, id string, enabled bool) error

	// Close releases the connection to the runtime.
	Close() error
}

// DefaultSession is the dedicated browsing session extensions run in.
const DefaultSession = "webext"
