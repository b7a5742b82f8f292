package cdm

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Install downloads and unpacks a component archive into
// <componentsRoot>/<id>/<version>/. Returns the install directory. The
// archive is fetched to a scratch file, checksum-verified when the feed
// provides a digest, and extracted before the directory is moved into
// place.
func (u *Updater) Install(ctx context.Context, comp *Component) (string, error) {
	if comp.ID != u.componentID {
		return "", fmt.Errorf("component %s does not match updater for %s", comp.ID, u.componentID)
	}

	componentDir := filepath.Join(u.componentsRoot, comp.ID)
	if err := os.MkdirAll(componentDir, 0755); err != nil {
		return "", fmt.Errorf("creating component directory: %w", err)
	}

	archivePath, err := u.download(ctx, comp, componentDir)
	if err != nil {
		return "", err
	}
	defer os.Remove(archivePath)

	scratch, err := os.MkdirTemp(componentDir, ".install-")
	if err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := extractZip(archivePath, scratch); err != nil {
		return "", fmt.Errorf("extracting component archive: %w", err)
	}

	dest := filepath.Join(componentDir, comp.Version)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("removing previous install at %s: %w", dest, err)
	}
	if err := os.Rename(scratch, dest); err != nil {
		return "", fmt.Errorf("moving component into place: %w", err)
	}

	return dest, nil
}

// download fetches the component archive into destDir and verifies the
// feed checksum when present.
func (u *Updater) download(ctx context.Context, comp *Component, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, comp.URL, nil)
	if err != nil {
		return "", fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("User-Agent", "mezzo-webext")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading component %s: %w", comp.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("component download returned status %d", resp.StatusCode)
	}

	destPath := filepath.Join(destDir, "."+comp.ID+"-"+comp.Version+".zip")
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

	if comp.SHA256 != "" {
		actual := hex.EncodeToString(h.Sum(nil))
		if actual != comp.SHA256 {
			os.Remove(destPath)
			return "", fmt.Errorf("checksum mismatch for component %s: expected %s, got %s", comp.ID, comp.SHA256, actual)
		}
	}

	return destPath, nil
}

// extractZip unpacks a zip archive file into destDir, rejecting entries
// that would escape it.
func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if strings.Contains(f.Name, "..") {
			return fmt.Errorf("zip entry %q escapes destination", f.Name)
		}
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("zip entry %q escapes destination", f.Name)
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
