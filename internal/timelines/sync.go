package timelines

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/claimline/internal/batch"
	"github.com/starford/claimline/internal/storage"
)

// SyncStats counts what a Sync pass changed.
type SyncStats struct {
	Rendered int `json:"rendered"`
	Removed  int `json:"removed"`
	Failed   int `json:"failed"`
}

// Sync walks the input folder and brings artifacts and catalog up to date:
//   - new or changed valid files are re-rendered
//   - cataloged sources that are gone or no longer valid are removed
func (s *Service) Sync(ctx context.Context) (SyncStats, error) {
	var stats SyncStats
	entries, err := s.Scan(ctx)
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.Valid {
			continue
		}
		disk[e.RelPath] = struct{}{}
		changed, err := s.RefreshFile(ctx, e.RelPath)
		if err != nil {
			stats.Failed++
			s.logger.Warn("sync: render failed", slog.String("path", e.RelPath), slog.String("error", err.Error()))
			continue
		}
		if changed {
			stats.Rendered++
			s.logger.Debug("sync: rendered", slog.String("path", e.RelPath))
		}
	}

	if s.catalog == nil {
		return stats, nil
	}
	checksums, err := s.catalog.AllChecksums()
	if err != nil {
		return stats, err
	}
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := s.RemoveFile(ctx, p); err != nil {
			s.logger.Warn("sync: remove failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		s.logger.Debug("sync: removed stale", slog.String("path", p))
	}
	return stats, nil
}

// tracked reports whether the root-relative path rel is an input the
// service renders under the current scan options.
func (s *Service) tracked(rel string) bool {
	rel = strings.TrimPrefix(rel, "./")
	if !storage.IsClaimsFile(rel) {
		return false
	}
	if !s.opts.Scan.Recursive && strings.Contains(rel, "/") {
		return false
	}
	return !batch.Excluded(s.opts.Scan.Exclude, rel)
}
