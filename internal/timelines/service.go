// Package timelines coordinates normalization, rendering, the run catalog
// and live events for one input folder.
package timelines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/starford/claimline/internal/apperr"
	"github.com/starford/claimline/internal/batch"
	"github.com/starford/claimline/internal/checksum"
	"github.com/starford/claimline/internal/claims"
	"github.com/starford/claimline/internal/export"
	"github.com/starford/claimline/internal/index"
	"github.com/starford/claimline/internal/render"
	"github.com/starford/claimline/internal/sse"
	"github.com/starford/claimline/internal/storage"
)

// Options configure where artifacts go and how they look.
type Options struct {
	OutputDir string
	Suffix    string
	Scan      batch.ScanOptions
	Render    render.Options
}

// EventFunc receives timeline changes, typically sse.Broker.PublishTimelineEvent.
type EventFunc func(sse.TimelineEvent)

// TimelineItem is a catalog entry as returned to API and MCP callers.
type TimelineItem struct {
	Source     string    `json:"source"`
	Output     string    `json:"output"`
	ViewURL    string    `json:"view_url"`
	Checksum   string    `json:"checksum"`
	ItemCount  int       `json:"item_count"`
	Kinds      []string  `json:"kinds"`
	SpanStart  time.Time `json:"span_start"`
	SpanEnd    time.Time `json:"span_end"`
	RenderedAt time.Time `json:"rendered_at"`
}

// ExportResult summarizes a Parquet export.
type ExportResult struct {
	Path   string            `json:"path"`
	Files  int               `json:"files"`
	Rows   int               `json:"rows"`
	Errors []batch.FileError `json:"errors"`
}

// Service ties the input folder to its rendered artifacts. The catalog is
// optional; without it listing and history are unavailable and every refresh
// re-renders.
type Service struct {
	fs         afero.Fs
	input      storage.Provider
	outputDir  string
	normalizer *claims.Normalizer
	renderer   render.Renderer
	agg        *batch.Aggregator
	catalog    index.Catalog
	opts       Options
	logger     *slog.Logger
	onEvent    EventFunc
	now        func() time.Time
	// settings fingerprints everything besides the input bytes that shapes
	// an artifact; it is folded into every cataloged checksum.
	settings string
}

// NewService creates a timeline service rooted at input.
func NewService(fs afero.Fs, input storage.Provider, normalizer *claims.Normalizer, renderer render.Renderer,
	catalog index.Catalog, opts Options, logger *slog.Logger,
) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = input.Root()
	}
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("timelines: resolve output dir: %w", err)
	}
	if err := fs.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("timelines: create output dir: %w", err)
	}
	opts.OutputDir = abs
	if opts.Suffix == "" {
		opts.Suffix = batch.DefaultSuffix
	}
	settings, err := settingsFingerprint(normalizer.Config(), opts)
	if err != nil {
		return nil, err
	}
	return &Service{
		fs:         fs,
		input:      input,
		outputDir:  abs,
		normalizer: normalizer,
		renderer:   renderer,
		agg:        batch.NewAggregator(fs, normalizer, renderer, logger),
		catalog:    catalog,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		settings:   settings,
	}, nil
}

// settingsFingerprint digests the claims configuration, render options and
// output naming. encoding/json sorts map keys, so equal settings always
// produce the same digest.
func settingsFingerprint(cfg claims.Config, opts Options) (string, error) {
	data, err := json.Marshal(struct {
		Claims claims.Config  `json:"claims"`
		Render render.Options `json:"render"`
		Suffix string         `json:"suffix"`
	}{cfg, opts.Render, opts.Suffix})
	if err != nil {
		return "", fmt.Errorf("timelines: fingerprint settings: %w", err)
	}
	return checksum.Sum(data), nil
}

// stamp is the cataloged checksum of an input rendered with the current
// settings.
func (s *Service) stamp(inputSum string) string {
	return checksum.Combine(inputSum, s.settings)
}

// OnEvent registers the receiver of timeline events.
func (s *Service) OnEvent(fn EventFunc) { s.onEvent = fn }

// InputRoot returns the absolute input directory.
func (s *Service) InputRoot() string { return s.input.Root() }

// HasInput reports whether the root-relative input file exists.
func (s *Service) HasInput(rel string) bool {
	abs, err := s.input.Resolve(rel)
	if err != nil {
		return false
	}
	_, err = s.fs.Stat(abs)
	return err == nil
}

// OutputDir returns the absolute artifact directory.
func (s *Service) OutputDir() string { return s.outputDir }

// Suffix returns the artifact name suffix.
func (s *Service) Suffix() string { return s.opts.Suffix }

// ResolveOutput maps an output-relative artifact path to an absolute one,
// rejecting escapes.
func (s *Service) ResolveOutput(rel string) (string, error) {
	return s.resolveOutput(rel)
}

// RenderOptions returns the configured presentation settings.
func (s *Service) RenderOptions() render.Options { return s.opts.Render }

// Normalize converts a raw claims document.
func (s *Service) Normalize(_ context.Context, data []byte) (*claims.TimelineDocument, error) {
	return s.normalizer.NormalizeBytes(data)
}

// RenderDocument normalizes data and renders it without touching disk.
// opts overrides the configured render options when non-nil.
func (s *Service) RenderDocument(ctx context.Context, data []byte, opts *render.Options) ([]byte, *claims.TimelineDocument, error) {
	doc, err := s.Normalize(ctx, data)
	if err != nil {
		return nil, nil, err
	}
	ro := s.opts.Render
	if opts != nil {
		ro = *opts
	}
	html, err := s.renderer.Render(doc, ro)
	if err != nil {
		return nil, nil, err
	}
	return html, doc, nil
}

// RenderFile is single-file mode: src (any path) is rendered to dst.
func (s *Service) RenderFile(_ context.Context, src, dst string) (*claims.TimelineDocument, error) {
	return s.agg.RenderFile(src, dst, s.opts.Render)
}

// Scan classifies the files of the input folder.
func (s *Service) Scan(_ context.Context) ([]batch.ScanEntry, error) {
	return s.agg.Scan(s.input.Root(), s.opts.Scan)
}

// RunBatch renders every valid file of the input folder, catalogs each
// success and records the run.
func (s *Service) RunBatch(_ context.Context) (*batch.Result, error) {
	started := s.now()
	res, err := s.agg.Process(s.input.Root(), batch.ProcessOptions{
		ScanOptions: s.opts.Scan,
		OutputDir:   s.outputDir,
		Suffix:      s.opts.Suffix,
		Render:      s.opts.Render,
		Observer:    s.observe,
	})
	if err != nil {
		return nil, err
	}
	if s.catalog != nil {
		if _, err := s.catalog.RecordRun(runRow(s.input.Root(), started, s.now(), res)); err != nil {
			s.logger.Warn("timelines: record run failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// RefreshFile re-renders one root-relative input file. Inputs whose bytes
// and render settings match the catalog, and whose artifact still exists,
// are skipped and reported as not refreshed.
func (s *Service) RefreshFile(_ context.Context, rel string) (bool, error) {
	rel = filepath.ToSlash(rel)
	data, err := s.input.Read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, apperr.ErrNotFound
		}
		return false, fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
	}
	if s.upToDate(rel, data) {
		return false, nil
	}

	oc := s.agg.ProcessFile(s.input.Root(), rel, batch.ProcessOptions{
		OutputDir: s.outputDir,
		Suffix:    s.opts.Suffix,
		Render:    s.opts.Render,
		Observer:  s.observe,
	})
	if oc.Err != nil {
		return false, oc.Err
	}
	return true, nil
}

func (s *Service) upToDate(rel string, data []byte) bool {
	if s.catalog == nil {
		return false
	}
	row, err := s.catalog.GetTimeline(rel)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("timelines: catalog lookup failed", slog.String("source", rel), slog.String("error", err.Error()))
		}
		return false
	}
	cs := s.stamp(checksum.Sum(data))
	if row.Checksum != cs {
		return false
	}
	abs, err := s.resolveOutput(row.Output)
	if err != nil {
		return false
	}
	if ok, _ := afero.Exists(s.fs, abs); !ok {
		s.logger.Info("timelines: artifact missing", slog.String("source", rel), slog.String("output", row.Output))
		return false
	}
	s.logger.Debug("timelines: unchanged", slog.String("source", rel), slog.String("checksum", checksum.Short(cs)))
	return true
}

// Import stores an uploaded claims file at the input root and renders it.
// name must be a plain .json file name; data must normalize.
func (s *Service) Import(ctx context.Context, name string, data []byte) (*claims.TimelineDocument, error) {
	clean := filepath.Clean(name)
	if name == "" || clean != filepath.Base(clean) || strings.Contains(clean, "..") {
		return nil, fmt.Errorf("%w: invalid file name %q", apperr.ErrInvalidInput, name)
	}
	if !storage.IsClaimsFile(clean) {
		return nil, fmt.Errorf("%w: %q is not a .json file", apperr.ErrInvalidInput, name)
	}
	doc, err := s.Normalize(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := s.input.Write(clean, data); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
	}
	if _, err := s.RefreshFile(ctx, clean); err != nil {
		return nil, err
	}
	return doc, nil
}

// RemoveFile drops the artifact and catalog entry of a deleted input.
func (s *Service) RemoveFile(_ context.Context, rel string) error {
	rel = filepath.ToSlash(rel)
	output := batch.OutputName(rel, s.opts.Suffix)
	if s.catalog != nil {
		if row, err := s.catalog.GetTimeline(rel); err == nil {
			output = row.Output
		}
	}
	if abs, err := s.resolveOutput(output); err == nil {
		if err := s.fs.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("timelines: remove artifact failed", slog.String("output", abs), slog.String("error", err.Error()))
		}
	}
	if s.catalog != nil {
		if err := s.catalog.DeleteTimeline(rel); err != nil {
			return err
		}
	}
	s.emit(sse.TimelineEvent{Kind: sse.KindRemoved, Source: rel})
	return nil
}

// Timeline returns one catalog entry.
func (s *Service) Timeline(_ context.Context, source string) (*TimelineItem, error) {
	if s.catalog == nil {
		return nil, apperr.ErrNotFound
	}
	row, err := s.catalog.GetTimeline(source)
	if err != nil {
		return nil, err
	}
	item := toItem(*row)
	return &item, nil
}

// List returns a page of cataloged timelines.
func (s *Service) List(_ context.Context, limit, offset int, kind, sort string) ([]TimelineItem, int, error) {
	if s.catalog == nil {
		return []TimelineItem{}, 0, nil
	}
	rows, total, err := s.catalog.ListTimelines(limit, offset, kind, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]TimelineItem, len(rows))
	for i, r := range rows {
		items[i] = toItem(r)
	}
	return items, total, nil
}

// Search finds timelines by item label.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.catalog == nil {
		return []index.SearchResult{}, nil
	}
	res, err := s.catalog.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// Runs returns recent batch runs, newest first.
func (s *Service) Runs(_ context.Context, limit int) ([]index.RunRow, error) {
	if s.catalog == nil {
		return []index.RunRow{}, nil
	}
	runs, err := s.catalog.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(runs), nil
}

// Export writes the items of every valid input file to a Parquet file.
func (s *Service) Export(ctx context.Context, dst string) (*ExportResult, error) {
	entries, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Valid {
			paths = append(paths, e.Path)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: nothing to export under %s", apperr.ErrNoValidFiles, s.input.Root())
	}
	return s.ExportFiles(ctx, dst, paths)
}

// ExportFiles writes the items of the given files to a Parquet file. Files
// that fail to normalize are reported and skipped.
func (s *Service) ExportFiles(_ context.Context, dst string, paths []string) (*ExportResult, error) {
	if dir := filepath.Dir(dst); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
		}
	}
	w, err := export.NewWriter(s.fs, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
	}

	res := &ExportResult{Path: dst, Errors: []batch.FileError{}}
	for _, p := range paths {
		doc, err := s.normalizeFile(p)
		if err != nil {
			res.Errors = append(res.Errors, batch.FileError{Name: filepath.Base(p), Path: p, Message: err.Error(), Err: err})
			continue
		}
		if _, err := w.Write(export.Rows(s.sourceName(p), doc)); err != nil {
			_ = w.Close()
			return nil, err
		}
		res.Files++
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	res.Rows = w.Count()
	return res, nil
}

func (s *Service) normalizeFile(path string) (*claims.TimelineDocument, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
	}
	return s.normalizer.NormalizeBytes(data)
}

// sourceName is the root-relative name of path, or path itself when it
// lies outside the input root.
func (s *Service) sourceName(path string) string {
	rel, err := filepath.Rel(s.input.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// observe catalogs each batch outcome and forwards it as an event.
func (s *Service) observe(oc batch.Outcome) {
	source := oc.Entry.RelPath
	if oc.Err != nil {
		s.emit(sse.TimelineEvent{Kind: sse.KindFailed, Source: source, Error: oc.Err.Error()})
		return
	}
	output := s.relOutput(oc.Output)
	if s.catalog != nil {
		row := timelineRow(source, output, s.stamp(oc.Checksum), oc.Document, s.now())
		if err := s.catalog.UpsertTimeline(row); err != nil {
			s.logger.Warn("timelines: catalog upsert failed", slog.String("source", source), slog.String("error", err.Error()))
		}
	}
	s.emit(sse.TimelineEvent{
		Kind:   sse.KindRendered,
		Source: source,
		Output: output,
		Items:  oc.Document.Summary.TotalItems,
	})
}

func (s *Service) emit(ev sse.TimelineEvent) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

func (s *Service) relOutput(abs string) string {
	rel, err := filepath.Rel(s.outputDir, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func (s *Service) resolveOutput(rel string) (string, error) {
	out, err := storage.NewFS(s.fs, s.outputDir)
	if err != nil {
		return "", err
	}
	return out.Resolve(rel)
}

func timelineRow(source, output, cs string, doc *claims.TimelineDocument, now time.Time) index.TimelineRow {
	kinds := make([]string, len(doc.Summary.Kinds))
	for i, k := range doc.Summary.Kinds {
		kinds[i] = string(k)
	}
	labels := make([]string, len(doc.Items))
	for i, it := range doc.Items {
		labels[i] = it.Label
	}
	return index.TimelineRow{
		Source:     source,
		Output:     output,
		Checksum:   cs,
		ItemCount:  doc.Summary.TotalItems,
		Kinds:      kinds,
		SpanStart:  doc.Span.Start,
		SpanEnd:    doc.Span.End,
		Labels:     strings.Join(labels, "\n"),
		RenderedAt: now,
	}
}

func runRow(root string, started, finished time.Time, res *batch.Result) index.RunRow {
	row := index.RunRow{
		Root:           root,
		StartedAt:      started,
		FinishedAt:     finished,
		FilesScanned:   res.FilesScanned,
		FilesSucceeded: res.FilesSucceeded,
		FilesFailed:    res.FilesFailed,
		TotalItems:     res.Aggregate.TotalItems,
	}
	for _, k := range res.Aggregate.Kinds {
		row.Kinds = append(row.Kinds, string(k))
	}
	if span := res.Aggregate.Span; span != nil {
		start, end := span.Start, span.End
		row.SpanStart, row.SpanEnd = &start, &end
	}
	for _, e := range res.Errors {
		row.Errors = append(row.Errors, index.RunError{Name: e.Name, Path: e.Path, Message: e.Message})
	}
	return row
}

func toItem(r index.TimelineRow) TimelineItem {
	return TimelineItem{
		Source:     r.Source,
		Output:     r.Output,
		ViewURL:    "/view/" + r.Output,
		Checksum:   r.Checksum,
		ItemCount:  r.ItemCount,
		Kinds:      nonNilSlice(r.Kinds),
		SpanStart:  r.SpanStart,
		SpanEnd:    r.SpanEnd,
		RenderedAt: r.RenderedAt,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
