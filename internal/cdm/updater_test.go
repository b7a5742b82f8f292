package cdm

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testComponentID = "mezzo-cdm"

// makeArchive builds an in-memory zip with the given files.
func makeArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// serveComponent starts a service exposing a feed with one component and the
// matching archive download.
func serveComponent(t *testing.T, version string, archive []byte) *httptest.Server {
	t.Helper()
	sum := sha256.Sum256(archive)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/feed.json", func(w http.ResponseWriter, r *http.Request) {
		feed := Feed{Components: []Component{{
			ID:      testComponentID,
			Name:    "Content Decryption Module",
			Version: version,
			URL:     "http://" + r.Host + "/archives/cdm.zip",
			SHA256:  hex.EncodeToString(sum[:]),
		}}}
		json.NewEncoder(w).Encode(feed)
	})
	mux.HandleFunc("/archives/cdm.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})
	mux.HandleFunc("/v1/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegister(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, testComponentID, "1.0.0"), 0755); err != nil {
		t.Fatal(err)
	}

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/register" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	u := New(testComponentID, srv.URL, root)
	if err := u.Register(context.Background()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got["id"] != testComponentID {
		t.Errorf("registered id = %q, want %q", got["id"], testComponentID)
	}
	if got["version"] != "1.0.0" {
		t.Errorf("registered version = %q, want 1.0.0", got["version"])
	}
}

func TestRegister_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	u := New(testComponentID, srv.URL, t.TempDir())
	if err := u.Register(context.Background()); err == nil {
		t.Error("expected error for rejected registration")
	}
}

func TestInstalledVersion(t *testing.T) {
	root := t.TempDir()
	u := New(testComponentID, "http://updates.invalid", root)

	// Nothing installed yet.
	v, err := u.InstalledVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("InstalledVersion = %q, want empty", v)
	}

	for _, version := range []string{"1.0.0", "1.2.0", "1.1.0"} {
		if err := os.MkdirAll(filepath.Join(root, testComponentID, version), 0755); err != nil {
			t.Fatal(err)
		}
	}
	// Scratch dirs are ignored.
	os.MkdirAll(filepath.Join(root, testComponentID, ".install-abc"), 0755)

	v, err = u.InstalledVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != "1.2.0" {
		t.Errorf("InstalledVersion = %q, want 1.2.0", v)
	}
}

func TestCheck(t *testing.T) {
	archive := makeArchive(t, map[string]string{"cdm.so": "binary"})
	srv := serveComponent(t, "2.0.0", archive)

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, testComponentID, "1.0.0"), 0755); err != nil {
		t.Fatal(err)
	}

	u := New(testComponentID, srv.URL, root)
	status, err := u.Check(context.Background(), 0)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if status.Installed != "1.0.0" {
		t.Errorf("Installed = %q, want 1.0.0", status.Installed)
	}
	if status.Latest != "2.0.0" {
		t.Errorf("Latest = %q, want 2.0.0", status.Latest)
	}
	if !status.UpdateAvailable {
		t.Error("UpdateAvailable = false, want true")
	}

	// The check result is cached alongside the component.
	cache, err := LoadCache(filepath.Join(root, testComponentID))
	if err != nil || cache == nil {
		t.Fatalf("expected cache after check, got %v / %v", cache, err)
	}
	if cache.LatestVersion != "2.0.0" {
		t.Errorf("cached latest = %q, want 2.0.0", cache.LatestVersion)
	}
	if cache.ComponentID != testComponentID {
		t.Errorf("cached component id = %q, want %q", cache.ComponentID, testComponentID)
	}
}

func TestCheck_DottedQuadVersions(t *testing.T) {
	archive := makeArchive(t, map[string]string{"cdm.so": "binary"})
	srv := serveComponent(t, "4.10.2710.0", archive)

	root := t.TempDir()
	for _, version := range []string{"4.10.2709.0", "4.10.2708.0"} {
		if err := os.MkdirAll(filepath.Join(root, testComponentID, version), 0755); err != nil {
			t.Fatal(err)
		}
	}

	u := New(testComponentID, srv.URL, root)
	status, err := u.Check(context.Background(), 0)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if status.Installed != "4.10.2709.0" {
		t.Errorf("Installed = %q, want 4.10.2709.0", status.Installed)
	}
	if status.Latest != "4.10.2710.0" || !status.UpdateAvailable {
		t.Errorf("status = %+v, want update to 4.10.2710.0 available", status)
	}
}

func TestCheck_UsesFreshCache(t *testing.T) {
	// No server at all: a fresh cache must short-circuit the fetch.
	root := t.TempDir()
	dir := filepath.Join(root, testComponentID)
	if err := SaveCache(dir, &VersionCache{
		ComponentID:      testComponentID,
		LatestVersion:    "3.0.0",
		InstalledVersion: "2.0.0",
		CheckedAt:        time.Now().UTC(),
		UpdateAvailable:  true,
	}); err != nil {
		t.Fatal(err)
	}

	u := New(testComponentID, "http://updates.invalid", root)
	status, err := u.Check(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if status.Latest != "3.0.0" || !status.UpdateAvailable {
		t.Errorf("cached status = %+v, want latest 3.0.0 with update available", status)
	}
}

func TestCheck_IgnoresForeignCache(t *testing.T) {
	archive := makeArchive(t, map[string]string{"cdm.so": "binary"})
	srv := serveComponent(t, "2.0.0", archive)

	// A fresh cache written for another component must not be trusted.
	root := t.TempDir()
	dir := filepath.Join(root, testComponentID)
	if err := SaveCache(dir, &VersionCache{
		ComponentID:     "other-component",
		LatestVersion:   "9.9.9",
		CheckedAt:       time.Now().UTC(),
		UpdateAvailable: true,
	}); err != nil {
		t.Fatal(err)
	}

	u := New(testComponentID, srv.URL, root)
	status, err := u.Check(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if status.Latest != "2.0.0" {
		t.Errorf("Latest = %q, want 2.0.0 from the feed, not the foreign cache", status.Latest)
	}
}

func TestUpdate(t *testing.T) {
	archive := makeArchive(t, map[string]string{
		"cdm.so":        "binary",
		"LICENSE":       "text",
		"meta/info.txt": "nested",
	})
	srv := serveComponent(t, "2.0.0", archive)

	root := t.TempDir()
	u := New(testComponentID, srv.URL, root)

	status, err := u.Update(context.Background())
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if status.Installed != "2.0.0" || status.UpdateAvailable {
		t.Errorf("status after update = %+v, want installed 2.0.0", status)
	}

	installDir := filepath.Join(root, testComponentID, "2.0.0")
	for _, name := range []string{"cdm.so", "LICENSE", filepath.Join("meta", "info.txt")} {
		if _, err := os.Stat(filepath.Join(installDir, name)); err != nil {
			t.Errorf("file %s not installed: %v", name, err)
		}
	}

	v, err := u.InstalledVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != "2.0.0" {
		t.Errorf("InstalledVersion = %q, want 2.0.0", v)
	}
}

func TestUpdate_AlreadyCurrent(t *testing.T) {
	archive := makeArchive(t, map[string]string{"cdm.so": "binary"})
	srv := serveComponent(t, "1.0.0", archive)

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, testComponentID, "1.0.0"), 0755); err != nil {
		t.Fatal(err)
	}

	u := New(testComponentID, srv.URL, root)
	status, err := u.Update(context.Background())
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if status.UpdateAvailable {
		t.Error("UpdateAvailable = true for current install")
	}
}

func TestInstall_RejectsForeignComponent(t *testing.T) {
	u := New(testComponentID, "http://updates.invalid", t.TempDir())
	_, err := u.Install(context.Background(), &Component{ID: "other-component", Version: "1.0.0"})
	if err == nil {
		t.Error("expected error for mismatched component id")
	}
}

func TestExtractZip_RejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../escape.txt")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("x"))
	zw.Close()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bad.zip")
	if err := os.WriteFile(archivePath, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	if err := extractZip(archivePath, filepath.Join(dir, "out")); err == nil {
		t.Error("expected error for traversal entry")
	}
}
