package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/starford/claimline/internal/claims"
	"github.com/starford/claimline/internal/index"
	"github.com/starford/claimline/internal/render"
	"github.com/starford/claimline/internal/storage"
	"github.com/starford/claimline/internal/timelines"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewTimelineService wires storage, normalizer, renderer and (when enabled)
// the SQLite catalog from cfg. The returned closer releases the catalog.
func NewTimelineService(cfg *Config, logger *slog.Logger) (*timelines.Service, io.Closer, error) {
	fs := afero.NewOsFs()

	input, err := storage.NewFS(fs, cfg.Input.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init input: %w", err)
	}

	claimsCfg, err := cfg.Claims.Resolve()
	if err != nil {
		return nil, nil, fmt.Errorf("load claims config: %w", err)
	}
	normalizer, err := claims.NewNormalizer(claimsCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	renderer, err := render.New()
	if err != nil {
		return nil, nil, fmt.Errorf("init renderer: %w", err)
	}

	var (
		catalog index.Catalog
		closer  io.Closer = nopCloser{}
	)
	if cfg.Catalog.Enabled {
		db, err := index.Open(cfg.Catalog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init catalog: %w", err)
		}
		catalog, closer = db, db
	}

	svc, err := timelines.NewService(fs, input, normalizer, renderer, catalog, timelines.Options{
		OutputDir: cfg.Output.Dir,
		Suffix:    cfg.Output.Suffix,
		Scan:      cfg.Input.ScanOptions(),
		Render:    cfg.Render,
	}, logger)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return svc, closer, nil
}

// EnsureInputDir creates the input folder when it does not exist yet.
func EnsureInputDir(cfg *Config) error {
	if err := os.MkdirAll(cfg.Input.Path, 0o755); err != nil {
		return fmt.Errorf("create input dir: %w", err)
	}
	return nil
}
