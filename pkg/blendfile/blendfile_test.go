package blendfile

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeptofine/blrs-cli/pkg/build"
)

func writeBlend(t *testing.T, header string, gzipped bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.blend")
	data := append([]byte(header), []byte("rest of file")...)
	if gzipped {
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		gz := gzip.NewWriter(f)
		if _, err := gz.Write(data); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := gz.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		return path
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestReadHeader(t *testing.T) {
	cases := []struct {
		header  string
		ptrSize int
		big     bool
		version build.Version
	}{
		{"BLENDER-v402", 8, false, build.Version{Major: 4, Minor: 2}},
		{"BLENDER_v293", 4, false, build.Version{Major: 2, Minor: 93}},
		{"BLENDER-V305", 8, true, build.Version{Major: 3, Minor: 5}},
	}
	for _, c := range cases {
		path := writeBlend(t, c.header, false)
		h, err := ReadHeader(path)
		if err != nil {
			t.Fatalf("%s: %v", c.header, err)
		}
		if h.PointerSize != c.ptrSize || h.BigEndian != c.big || h.Version != c.version {
			t.Fatalf("%s: got %+v", c.header, h)
		}
	}
}

func TestReadHeaderGzipped(t *testing.T) {
	path := writeBlend(t, "BLENDER-v402", true)
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Version != (build.Version{Major: 4, Minor: 2}) {
		t.Fatalf("expected 4.2, got %v", h.Version)
	}
}

func TestReadHeaderUnrecognized(t *testing.T) {
	cases := []string{
		"NOTBLEND-v40",
		"BLENDERxv402",
		"BLENDER-x402",
		"BLENDER-v4a2",
		"BL",
	}
	for _, header := range cases {
		path := writeBlend(t, header, false)
		if _, err := ReadHeader(path); !errors.Is(err, ErrUnrecognizedFormat) {
			t.Fatalf("%q: expected ErrUnrecognizedFormat, got %v", header, err)
		}
	}
}

func TestHeaderQuery(t *testing.T) {
	h := Header{Version: build.Version{Major: 4, Minor: 2}}
	q := h.Query()
	if got := q.String(); got != "4.2.*" {
		t.Fatalf("expected query 4.2.*, got %q", got)
	}
}

func TestIdentify(t *testing.T) {
	candidates := []build.Record{
		{
			Repo:       "daily",
			Version:    build.Version{Major: 4, Minor: 2, Patch: 0},
			Hash:       "old",
			CommitTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Repo:       "daily",
			Version:    build.Version{Major: 4, Minor: 2, Patch: 3},
			Hash:       "new",
			CommitTime: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Repo:       "daily",
			Version:    build.Version{Major: 4, Minor: 5, Patch: 0},
			Hash:       "other",
			CommitTime: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	path := writeBlend(t, "BLENDER-v402", false)
	rec, err := Identify(path, candidates)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if rec.Hash != "new" {
		t.Fatalf("expected newest 4.2 build, got %s", rec.Hash)
	}

	// A version nobody has built resolves to ErrNoMatchingBuild, not a
	// format error.
	path = writeBlend(t, "BLENDER-v999", false)
	if _, err := Identify(path, candidates); !errors.Is(err, ErrNoMatchingBuild) {
		t.Fatalf("expected ErrNoMatchingBuild, got %v", err)
	}
}
