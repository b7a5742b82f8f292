package cdn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testID = "abcdefghijklmnopabcdefghijklmnop"

func TestDownload(t *testing.T) {
	payload := []byte("fake crx payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/packages/"+testID+"/1.0.0.crx" {
			t.Errorf("unexpected request path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	c := New(srv.URL)
	dest := t.TempDir()

	sum := sha256.Sum256(payload)
	entry := &Entry{ID: testID, Version: "1.0.0", SHA256: hex.EncodeToString(sum[:])}

	path, err := c.Download(context.Background(), entry, dest)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Error("downloaded content does not match served payload")
	}
	if filepath.Dir(path) != dest {
		t.Errorf("download landed in %s, want %s", filepath.Dir(path), dest)
	}
	if c.InFlight(testID) {
		t.Error("download still marked in flight after completion")
	}
}

func TestDownload_ChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	entry := &Entry{
		ID:      testID,
		Version: "1.0.0",
		SHA256:  "0000000000000000000000000000000000000000000000000000000000000000",
	}

	path, err := c.Download(context.Background(), entry, t.TempDir())
	if err == nil {
		t.Fatal("expected checksum error")
	}
	if path != "" {
		t.Errorf("got path %s on failure, want empty", path)
	}
}

func TestDownload_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL)
	entry := &Entry{ID: testID, Version: "9.9.9"}
	if _, err := c.Download(context.Background(), entry, t.TempDir()); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestDownload_SecondRequestRejected(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("payload"))
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL)
	entry := &Entry{ID: testID, Version: "1.0.0"}

	done := make(chan error, 1)
	go func() {
		_, err := c.Download(context.Background(), entry, t.TempDir())
		done <- err
	}()

	// Wait for the first download to register as in flight.
	deadline := time.After(2 * time.Second)
	for !c.InFlight(testID) {
		select {
		case <-deadline:
			t.Fatal("first download never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, err := c.Download(context.Background(), entry, t.TempDir())
	if !errors.Is(err, ErrDownloadInFlight) {
		t.Fatalf("second download error = %v, want ErrDownloadInFlight", err)
	}
}

func TestDownload_ExplicitURLOverridesLayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mirror/pkg.crx" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("mirrored"))
	}))
	defer srv.Close()

	c := New("http://cdn.invalid")
	entry := &Entry{ID: testID, Version: "1.0.0", URL: srv.URL + "/mirror/pkg.crx"}

	path, err := c.Download(context.Background(), entry, t.TempDir())
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "mirrored" {
		t.Error("download did not use the explicit entry URL")
	}
}

func TestPackageURL(t *testing.T) {
	c := New("https://extensions.example.com")
	got := c.PackageURL(testID, "2.1.0")
	want := "https://extensions.example.com/packages/" + testID + "/2.1.0.crx"
	if got != want {
		t.Errorf("PackageURL = %s, want %s", got, want)
	}
}
