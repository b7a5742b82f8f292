package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// addExtension creates <root>/<id>/<version>/manifest.json.
func addExtension(t *testing.T, root, id, version, name string) {
	t.Helper()
	dir := filepath.Join(root, id, version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := fmt.Sprintf(`{"name": %q, "version": %q, "manifest_version": 2}`, name, version)
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
}

const (
	idA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	idB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestScan(t *testing.T) {
	vendor := t.TempDir()
	user := t.TempDir()
	addExtension(t, vendor, idA, "1.0.0", "Vendor A")
	addExtension(t, user, idB, "2.1.0", "User B")

	exts, err := Scan([]Source{
		{Kind: KindVendor, Root: vendor},
		{Kind: KindUser, Root: user},
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(exts) != 2 {
		t.Fatalf("Scan returned %d extensions, want 2", len(exts))
	}
	if exts[0].ID != idA || exts[0].Kind != KindVendor {
		t.Errorf("exts[0] = %s/%s, want %s/vendor", exts[0].ID, exts[0].Kind, idA)
	}
	if exts[1].ID != idB || exts[1].Kind != KindUser {
		t.Errorf("exts[1] = %s/%s, want %s/user", exts[1].ID, exts[1].Kind, idB)
	}
	if exts[1].Name() != "User B" {
		t.Errorf("Name() = %q, want %q", exts[1].Name(), "User B")
	}
}

func TestScan_EarlierSourceWins(t *testing.T) {
	vendor := t.TempDir()
	user := t.TempDir()
	addExtension(t, vendor, idA, "1.0.0", "Vendor Copy")
	addExtension(t, user, idA, "9.0.0", "User Copy")

	exts, err := Scan([]Source{
		{Kind: KindVendor, Root: vendor},
		{Kind: KindUser, Root: user},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(exts) != 1 {
		t.Fatalf("Scan returned %d extensions, want 1", len(exts))
	}
	if exts[0].Kind != KindVendor {
		t.Errorf("duplicate id resolved to %s, want vendor", exts[0].Kind)
	}
}

func TestScan_NewestVersionWins(t *testing.T) {
	root := t.TempDir()
	addExtension(t, root, idA, "1.9.0", "Old")
	addExtension(t, root, idA, "1.10.0", "New")

	exts, err := Scan([]Source{{Kind: KindUser, Root: root}})
	if err != nil {
		t.Fatal(err)
	}

	if len(exts) != 1 {
		t.Fatalf("Scan returned %d extensions, want 1", len(exts))
	}
	// Semver ordering, not lexical: 1.10.0 > 1.9.0.
	if exts[0].Version != "1.10.0" {
		t.Errorf("Version = %s, want 1.10.0", exts[0].Version)
	}
}

func TestScan_DottedQuadVersions(t *testing.T) {
	root := t.TempDir()
	addExtension(t, root, idA, "4.2.0.1023", "Old")
	addExtension(t, root, idA, "4.2.0.1100", "New")

	exts, err := Scan([]Source{{Kind: KindUser, Root: root}})
	if err != nil {
		t.Fatal(err)
	}
	if len(exts) != 1 || exts[0].Version != "4.2.0.1100" {
		t.Fatalf("got %+v, want single extension at 4.2.0.1100", exts)
	}
}

func TestScan_SkipsBrokenEntries(t *testing.T) {
	root := t.TempDir()
	addExtension(t, root, idA, "1.0.0", "Good")

	// Version dir without a manifest.
	if err := os.MkdirAll(filepath.Join(root, idB, "1.0.0"), 0755); err != nil {
		t.Fatal(err)
	}
	// Unparseable manifest.
	badDir := filepath.Join(root, idB, "2.0.0")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(badDir, "manifest.json"), []byte("{{{"), 0644)
	// Scratch dir left by an interrupted unpack.
	if err := os.MkdirAll(filepath.Join(root, ".unpack-xyz"), 0755); err != nil {
		t.Fatal(err)
	}
	// Stray file at the root.
	os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0644)

	exts, err := Scan([]Source{{Kind: KindUser, Root: root}})
	if err != nil {
		t.Fatal(err)
	}
	if len(exts) != 1 || exts[0].ID != idA {
		t.Fatalf("got %d extensions, want only %s", len(exts), idA)
	}
}

func TestScan_MissingRootSkipped(t *testing.T) {
	user := t.TempDir()
	addExtension(t, user, idA, "1.0.0", "A")

	exts, err := Scan([]Source{
		{Kind: KindVendor, Root: filepath.Join(user, "does-not-exist")},
		{Kind: KindUser, Root: user},
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(exts) != 1 {
		t.Fatalf("got %d extensions, want 1", len(exts))
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"2.0.0", "1.9.9", 1},
		{"v1.2.0", "1.2.0", 0},
		{"1.9.0", "1.10.0", -1},
		{"4.2.0.1023", "4.2.0.1100", -1},
		{"4.2.0.1100", "4.2.0.1100", 0},
		{"4.2.1.0", "4.2.0.9999", 1},
		{"1.2", "1.2.4", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := CompareVersions(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
