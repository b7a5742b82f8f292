// Package paths resolves the on-disk layout used by the extension manager:
// the vendor-bundled, app-bundled, and user-installed extension roots, the
// download staging area, and the component directory for auto-updating
// components. Every root can be overridden through MEZZO_* environment
// variables, which the test suites and packaging scripts rely on.
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mezzo-player/webext/internal/branding"
)

// Directory name constants for the extension layout.
const (
	ExtensionsDir = "extensions"
	VendorDir     = "vendor-extensions"
	AppDir        = "bundled-extensions"
	StagingDir    = "staging"
	ComponentsDir = "components"
)

// Permission constants.
const (
	DirPermNormal  os.FileMode = 0755
	FilePermNormal os.FileMode = 0644
)

func homeRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, branding.HomeDir()), nil
}

// UserExtensionsRoot returns the root of user-installed extensions.
// Checks MEZZO_EXTENSIONS first, then falls back to ~/.mezzo/extensions.
func UserExtensionsRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("EXTENSIONS")); v != "" {
		return v, nil
	}
	root, err := homeRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ExtensionsDir), nil
}

// VendorExtensionsRoot returns the root of vendor-bundled extensions shipped
// alongside the player binary. Checks MEZZO_VENDOR_EXTENSIONS first, then
// falls back to a vendor-extensions directory next to the executable.
func VendorExtensionsRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("VENDOR_EXTENSIONS")); v != "" {
		return v, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), VendorDir), nil
}

// AppExtensionsRoot returns the root of app-bundled extensions installed with
// the application resources. Checks MEZZO_APP_EXTENSIONS first, then falls
// back to a bundled-extensions directory next to the executable.
func AppExtensionsRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("APP_EXTENSIONS")); v != "" {
		return v, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), AppDir), nil
}

// StagingRoot returns the directory where CDN downloads land before
// unpacking. Checks MEZZO_STAGING first, then ~/.mezzo/staging.
func StagingRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("STAGING")); v != "" {
		return v, nil
	}
	root, err := homeRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, StagingDir), nil
}

// ComponentsRoot returns the directory holding auto-updating components
// (the CDM). Checks MEZZO_COMPONENTS first, then ~/.mezzo/components.
func ComponentsRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("COMPONENTS")); v != "" {
		return v, nil
	}
	root, err := homeRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ComponentsDir), nil
}

// ExtensionDir returns the install directory for a given extension id and
// version under the user root: <user-root>/<id>/<version>.
func ExtensionDir(userRoot, id, version string) string {
	return filepath.Join(userRoot, id, version)
}

// EnsureLayout creates the writable directories (user extensions, staging,
// components) if they do not exist. Bundled roots are read-only and are
// never created here.
func EnsureLayout() error {
	for _, resolve := range []func() (string, error){
		UserExtensionsRoot, StagingRoot, ComponentsRoot,
	} {
		dir, err := resolve()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, DirPermNormal); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
