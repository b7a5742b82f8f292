package cdn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const validIndex = `{
	"extensions": [
		{
			"id": "abcdefghijklmnopabcdefghijklmnop",
			"version": "1.2.0",
			"name": "Lyrics Panel"
		},
		{
			"id": "ppppoooonnnnmmmmllllkkkkjjjjiiii",
			"version": "4.2.0.1023",
			"url": "https://mirror.example.com/pkg.crx",
			"sha256": "ab5df625bc76dbd4e163bed2dd888df828f90159bb93556525c31821b6541d46"
		}
	]
}`

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex([]byte(validIndex))
	if err != nil {
		t.Fatalf("ParseIndex failed: %v", err)
	}

	if len(idx.Extensions) != 2 {
		t.Fatalf("got %d extensions, want 2", len(idx.Extensions))
	}
	if idx.Extensions[0].Name != "Lyrics Panel" {
		t.Errorf("Name = %q, want Lyrics Panel", idx.Extensions[0].Name)
	}
	if idx.Extensions[1].SHA256 == "" {
		t.Error("sha256 not decoded")
	}
}

func TestParseIndex_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"missing extensions", `{}`},
		{"bad id alphabet", `{"extensions": [{"id": "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", "version": "1.0"}]}`},
		{"short id", `{"extensions": [{"id": "abc", "version": "1.0"}]}`},
		{"missing version", `{"extensions": [{"id": "abcdefghijklmnopabcdefghijklmnop"}]}`},
		{"bad sha256", `{"extensions": [{"id": "abcdefghijklmnopabcdefghijklmnop", "version": "1.0", "sha256": "xyz"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseIndex([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseIndex_ReportsLocation(t *testing.T) {
	_, err := ParseIndex([]byte(`{"extensions": [{"id": "bad", "version": "1.0"}]}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "extensions/0") {
		t.Errorf("error %q does not point at the failing entry", err)
	}
}

func TestFetchIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(validIndex))
	}))
	defer srv.Close()

	c := New(srv.URL)
	idx, err := c.FetchIndex(context.Background())
	if err != nil {
		t.Fatalf("FetchIndex failed: %v", err)
	}
	if got := idx.Find("abcdefghijklmnopabcdefghijklmnop"); got == nil || got.Version != "1.2.0" {
		t.Errorf("Find returned %+v, want version 1.2.0", got)
	}
	if idx.Find("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa") != nil {
		t.Error("Find returned entry for unknown id")
	}
}

func TestFetchIndex_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.FetchIndex(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
