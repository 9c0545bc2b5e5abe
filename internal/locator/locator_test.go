package locator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/heimdallr-client/internal/artifact"
	"github.com/danmuck/heimdallr-client/internal/testutil/testlog"
)

func writeArtifact(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
}

func TestLocateHashTableIsTrusted(t *testing.T) {
	testlog.Start(t)
	userDir := t.TempDir()
	writeJSON(t, filepath.Join(userDir, IndexFile), map[string]any{
		"files":      []string{},
		"hash_table": map[string]string{"/nowhere/db.i64": "abcd"},
	})

	loc := New(Options{UserDir: userDir})
	got, err := loc.Locate(context.Background(), artifact.Reference{Name: "db.i64", Hash: "ABCD"})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != "/nowhere/db.i64" {
		t.Fatalf("unexpected path: %q", got)
	}
}

func TestLocateHashTableRequiresName(t *testing.T) {
	testlog.Start(t)
	userDir := t.TempDir()
	writeJSON(t, filepath.Join(userDir, IndexFile), map[string]any{
		"files":      []string{},
		"hash_table": map[string]string{"/nowhere/other.i64": "abcd"},
	})

	_, err := New(Options{UserDir: userDir}).Locate(context.Background(), artifact.Reference{Name: "db.i64", Hash: "abcd"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocateLegacyAdoptsExtension(t *testing.T) {
	testlog.Start(t)
	userDir := t.TempDir()
	dataDir := t.TempDir()
	hash := writeArtifact(t, filepath.Join(dataDir, "foo.idb"), "foo-db")
	writeJSON(t, filepath.Join(userDir, LegacyIndexFile), []string{filepath.Join(dataDir, "foo")})

	got, err := New(Options{UserDir: userDir}).Locate(context.Background(), artifact.Reference{Name: "foo.idb", Hash: hash})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != filepath.Join(dataDir, "foo.idb") {
		t.Fatalf("unexpected path: %q", got)
	}
}

func TestLocateMalformedIndexFallsBackToLegacy(t *testing.T) {
	testlog.Start(t)
	userDir := t.TempDir()
	dataDir := t.TempDir()
	hash := writeArtifact(t, filepath.Join(dataDir, "bar.i64"), "bar-db")
	if err := os.WriteFile(filepath.Join(userDir, IndexFile), []byte(`{"files": [`), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	writeJSON(t, filepath.Join(userDir, LegacyIndexFile), []string{filepath.Join(dataDir, "bar.i64")})

	got, err := New(Options{UserDir: userDir}).Locate(context.Background(), artifact.Reference{Name: "bar.i64", Hash: hash})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != filepath.Join(dataDir, "bar.i64") {
		t.Fatalf("unexpected path: %q", got)
	}
}

func TestLocateIndexFilesAreVerified(t *testing.T) {
	testlog.Start(t)
	userDir := t.TempDir()
	dataDir := t.TempDir()
	writeArtifact(t, filepath.Join(dataDir, "a", "same.i64"), "wrong content")
	hash := writeArtifact(t, filepath.Join(dataDir, "b", "same.i64"), "right content")
	writeJSON(t, filepath.Join(userDir, IndexFile), map[string]any{
		"files": []string{
			filepath.Join(dataDir, "a", "same.i64"),
			filepath.Join(dataDir, "b", "same.i64"),
		},
		"hash_table": map[string]string{},
	})

	got, err := New(Options{UserDir: userDir}).Locate(context.Background(), artifact.Reference{Name: "same.i64", Hash: hash})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != filepath.Join(dataDir, "b", "same.i64") {
		t.Fatalf("unexpected path: %q", got)
	}
}

func TestLocateSearchRoots(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	writeArtifact(t, filepath.Join(root, "aa", "target.i64"), "decoy")
	hash := writeArtifact(t, filepath.Join(root, "zz", "deep", "target.i64"), "the one")
	writeArtifact(t, filepath.Join(root, "zz", "target.txt"), "the one")

	loc := New(Options{UserDir: t.TempDir(), SearchRoots: []string{filepath.Join(root, "missing"), root}})
	got, err := loc.Locate(context.Background(), artifact.Reference{Name: "target.i64", Hash: hash})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != filepath.Join(root, "zz", "deep", "target.i64") {
		t.Fatalf("unexpected path: %q", got)
	}
}

func TestLocateSearchRootsCompatMode(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	writeArtifact(t, filepath.Join(root, "notes.txt"), "payload")
	hash := writeArtifact(t, filepath.Join(root, "sub", "anything.idb"), "payload")

	got, err := New(Options{UserDir: t.TempDir(), SearchRoots: []string{root}}).Locate(context.Background(), artifact.Reference{Hash: hash})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != filepath.Join(root, "sub", "anything.idb") {
		t.Fatalf("unexpected path: %q", got)
	}
}

func TestLocateNeverReturnsUnverifiedPath(t *testing.T) {
	testlog.Start(t)
	userDir := t.TempDir()
	root := t.TempDir()
	var files []string
	for _, dir := range []string{"one", "two", "three"} {
		path := filepath.Join(root, dir, "db.i64")
		writeArtifact(t, path, "content-"+dir)
		files = append(files, path)
	}
	writeJSON(t, filepath.Join(userDir, LegacyIndexFile), files)

	loc := New(Options{UserDir: userDir, SearchRoots: []string{root}})
	for _, dir := range []string{"one", "two", "three"} {
		sum := md5.Sum([]byte("content-" + dir))
		want := hex.EncodeToString(sum[:])
		got, err := loc.Locate(context.Background(), artifact.Reference{Name: "db.i64", Hash: want})
		if err != nil {
			t.Fatalf("locate %s: %v", dir, err)
		}
		have, err := FileMD5{}.Hash(context.Background(), got)
		if err != nil {
			t.Fatalf("hash %s: %v", got, err)
		}
		if have != want {
			t.Fatalf("returned %s with hash %s, want %s", got, have, want)
		}
	}

	_, err := loc.Locate(context.Background(), artifact.Reference{Name: "db.i64", Hash: "00000000000000000000000000000000"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocateHonoursCancel(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	writeArtifact(t, filepath.Join(root, "x.i64"), "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{UserDir: t.TempDir(), SearchRoots: []string{root}}).Locate(ctx, artifact.Reference{Name: "x.i64", Hash: "00"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
