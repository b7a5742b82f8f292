package crx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mezzo-player/webext/internal/manifest"
	"github.com/mezzo-player/webext/internal/paths"
)

// Unpacked describes an extension installed from a package.
type Unpacked struct {
	ID      string
	Version string
	Dir     string // final install directory: <userRoot>/<id>/<version>
}

// Unpack verifies a downloaded package and installs it under userRoot as
// <id>/<version>/. The zip payload is extracted to a scratch directory
// first; the manifest is rewritten with the package public key before the
// directory is moved into place, so a crash never leaves a half-written
// version directory behind.
func Unpack(packagePath, userRoot string) (*Unpacked, error) {
	h, err := ParseFile(packagePath)
	if err != nil {
		return nil, err
	}
	if err := h.Verify(); err != nil {
		return nil, err
	}

	id := ID(h.PublicKey)

	if err := os.MkdirAll(userRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating extensions root: %w", err)
	}
	// Scratch dir on the same filesystem as the destination so the final
	// rename is atomic.
	scratch, err := os.MkdirTemp(userRoot, ".unpack-"+id+"-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := extractZip(h.Payload, scratch); err != nil {
		return nil, fmt.Errorf("extracting package payload: %w", err)
	}

	m, err := manifest.ParseDir(scratch)
	if err != nil {
		return nil, err
	}

	if err := manifest.InjectKey(scratch, h.PublicKey); err != nil {
		return nil, err
	}

	dest := paths.ExtensionDir(userRoot, id, m.Version)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("creating extension directory: %w", err)
	}
	// Replace any existing copy of the same version.
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("removing previous install at %s: %w", dest, err)
	}
	if err := os.Rename(scratch, dest); err != nil {
		return nil, fmt.Errorf("moving extension into place: %w", err)
	}

	return &Unpacked{ID: id, Version: m.Version, Dir: dest}, nil
}

// extractZip writes the zip payload into destDir, rejecting entries that
// would escape it.
func extractZip(payload []byte, destDir string) error {
	r, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return fmt.Errorf("opening zip payload: %w", err)
	}

	for _, f := range r.File {
		target, err := sanitizePath(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", target, err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening zip entry %s: %w", f.Name, err)
		}

		mode := f.Mode() & 0777
		if mode == 0 {
			mode = 0644
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			rc.Close()
			return fmt.Errorf("creating file %s: %w", target, err)
		}

		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		out.Close()
		rc.Close()
	}

	return nil
}

// sanitizePath joins a zip entry name onto destDir and rejects traversal.
func sanitizePath(destDir, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("zip entry %q escapes destination", name)
	}
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("zip entry %q escapes destination", name)
	}
	return target, nil
}
