// Package testutil provides shared test helpers for setting up claims
// folders, pipelines and catalogs.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/starford/claimline/internal/claims"
	"github.com/starford/claimline/internal/index"
	"github.com/starford/claimline/internal/render"
	"github.com/starford/claimline/internal/storage"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "claimline-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInput creates a temporary claims folder on the OS filesystem.
func TestInput(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(afero.NewOsFs(), dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestPipeline returns a normalizer with default configuration and the HTML
// renderer.
func TestPipeline(t *testing.T) (*claims.Normalizer, *render.HTML) {
	t.Helper()
	n, err := claims.NewNormalizer(claims.Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := render.New()
	if err != nil {
		t.Fatal(err)
	}
	return n, r
}

// WriteFile writes body to the slash-separated rel under root, creating
// parent directories.
func WriteFile(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
