// Package batch applies the claims normalizer to whole folders and folds the
// per-file results into one aggregate.
package batch

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/starford/claimline/internal/apperr"
	"github.com/starford/claimline/internal/checksum"
	"github.com/starford/claimline/internal/claims"
	"github.com/starford/claimline/internal/models"
	"github.com/starford/claimline/internal/render"
	"github.com/starford/claimline/internal/storage"
)

// DefaultSuffix replaces the input extension in batch output names.
const DefaultSuffix = "_timeline.html"

// ScanOptions control which files a scan enumerates.
type ScanOptions struct {
	Recursive bool
	Exclude   []string // doublestar patterns matched against root-relative paths
}

// ScanEntry is the classification of one candidate file.
type ScanEntry struct {
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	RelPath   string        `json:"relPath"`
	Size      int64         `json:"size"`
	Valid     bool          `json:"valid"`
	ItemCount int           `json:"itemCount,omitempty"`
	Kinds     []claims.Kind `json:"kinds,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ProcessOptions control a batch run.
type ProcessOptions struct {
	ScanOptions
	OutputDir string // defaults to the scanned root
	Suffix    string // defaults to DefaultSuffix
	Render    render.Options
	Observer  Observer
}

// Outcome reports the result for one attempted file.
type Outcome struct {
	Entry    ScanEntry
	Checksum string
	Output   string
	Document *claims.TimelineDocument
	Err      error
}

// Observer is notified once per attempted file, in scan order.
type Observer func(Outcome)

// FileError is a per-file failure recorded by Process.
type FileError struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e FileError) Error() string { return e.Name + ": " + e.Message }

func (e FileError) Unwrap() error { return e.Err }

// Aggregate is the cross-file summary. Span stays nil until the first file
// succeeds.
type Aggregate struct {
	TotalItems int              `json:"totalItems"`
	Kinds      []claims.Kind    `json:"kinds"`
	Span       *claims.Interval `json:"span,omitempty"`
}

func (a *Aggregate) add(doc *claims.TimelineDocument) {
	a.TotalItems += doc.Summary.TotalItems
	for _, k := range doc.Summary.Kinds {
		if !slices.Contains(a.Kinds, k) {
			a.Kinds = append(a.Kinds, k)
		}
	}
	if a.Span == nil {
		span := doc.Span
		a.Span = &span
		return
	}
	*a.Span = a.Span.Union(doc.Span)
}

// Result is the outcome of Process. FilesScanned counts every JSON file
// seen, so FilesScanned >= FilesSucceeded+FilesFailed.
type Result struct {
	FilesScanned   int               `json:"filesScanned"`
	FilesSucceeded int               `json:"filesSucceeded"`
	FilesFailed    int               `json:"filesFailed"`
	Outputs        []models.Artifact `json:"outputs"`
	Errors         []FileError       `json:"errors"`
	Aggregate      Aggregate         `json:"aggregate"`
}

// Aggregator drives the normalizer over folders. Calls are sequential and
// share no state, so one Aggregator may serve several callers.
type Aggregator struct {
	fs         afero.Fs
	normalizer *claims.Normalizer
	renderer   render.Renderer
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(fs afero.Fs, normalizer *claims.Normalizer, renderer render.Renderer, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{fs: fs, normalizer: normalizer, renderer: renderer, logger: logger}
}

// Scan enumerates .json files under root and classifies each one. Results
// are ordered by file name, then path.
func (a *Aggregator) Scan(root string, opts ScanOptions) ([]ScanEntry, error) {
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("batch: invalid exclude pattern %q", p)
		}
	}

	store, err := storage.NewFS(a.fs, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFolderScan, err)
	}
	files, err := store.List("", opts.Recursive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFolderScan, err)
	}

	cfg := a.normalizer.Config()
	entries := make([]ScanEntry, 0, len(files))
	for _, f := range files {
		if Excluded(opts.Exclude, f.Path) {
			continue
		}
		abs, err := store.Resolve(f.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrFolderScan, err)
		}
		entry := ScanEntry{Name: f.Name, Path: abs, RelPath: f.Path, Size: f.Size}

		data, err := store.Read(f.Path)
		if err != nil {
			entry.Error = err.Error()
			entries = append(entries, entry)
			continue
		}
		sh, err := probe(data, cfg)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Valid = true
			entry.ItemCount = sh.items
			entry.Kinds = sh.kinds
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// Process scans root and renders every valid file. A failing file is
// recorded and skipped; only scan failures and an empty valid set fail the
// whole run.
func (a *Aggregator) Process(root string, opts ProcessOptions) (*Result, error) {
	entries, err := a.Scan(root, opts.ScanOptions)
	if err != nil {
		return nil, err
	}

	var valid []ScanEntry
	for _, e := range entries {
		if e.Valid {
			valid = append(valid, e)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: %d json file(s) under %s", apperr.ErrNoValidFiles, len(entries), root)
	}

	out, suffix, err := a.output(root, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{FilesScanned: len(entries), Outputs: []models.Artifact{}, Errors: []FileError{}}
	for _, e := range valid {
		oc := a.processFile(e, out, suffix, opts.Render)
		if oc.Err != nil {
			res.FilesFailed++
			res.Errors = append(res.Errors, FileError{
				Name:    e.Name,
				Path:    e.Path,
				Message: oc.Err.Error(),
				Err:     oc.Err,
			})
			a.logger.Warn("batch: file failed",
				slog.String("path", e.Path),
				slog.String("error", oc.Err.Error()))
		} else {
			res.FilesSucceeded++
			res.Outputs = append(res.Outputs, models.Artifact{Source: e.Path, Output: oc.Output})
			res.Aggregate.add(oc.Document)
			a.logger.Info("batch: file rendered",
				slog.String("path", e.Path),
				slog.String("output", oc.Output),
				slog.Int("items", oc.Document.Summary.TotalItems))
		}
		a.notify(oc, opts.Observer)
	}
	return res, nil
}

// ProcessFile renders a single root-relative file with the same output
// layout as Process. The observer, if any, is notified.
func (a *Aggregator) ProcessFile(root, rel string, opts ProcessOptions) Outcome {
	oc := Outcome{Entry: ScanEntry{Name: path.Base(rel), RelPath: rel}}
	in, err := storage.NewFS(a.fs, root)
	if err == nil {
		oc.Entry.Path, err = in.Resolve(rel)
	}
	if err != nil {
		oc.Err = fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
		return a.notify(oc, opts.Observer)
	}
	if info, err := a.fs.Stat(oc.Entry.Path); err == nil {
		oc.Entry.Size = info.Size()
	}

	out, suffix, err := a.output(root, opts)
	if err != nil {
		oc.Err = err
		return a.notify(oc, opts.Observer)
	}
	oc = a.processFile(oc.Entry, out, suffix, opts.Render)
	if oc.Err == nil {
		oc.Entry.Valid = true
		oc.Entry.ItemCount = oc.Document.Summary.TotalItems
		oc.Entry.Kinds = oc.Document.Summary.Kinds
	}
	return a.notify(oc, opts.Observer)
}

func (a *Aggregator) notify(oc Outcome, obs Observer) Outcome {
	if obs != nil {
		obs(oc)
	}
	return oc
}

// output prepares the artifact directory and suffix for a run.
func (a *Aggregator) output(root string, opts ProcessOptions) (*storage.FS, string, error) {
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = root
	}
	if err := a.fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("%w: create output dir: %v", apperr.ErrFileIO, err)
	}
	out, err := storage.NewFS(a.fs, outDir)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
	}
	suffix := opts.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return out, suffix, nil
}

func (a *Aggregator) processFile(e ScanEntry, out *storage.FS, suffix string, opts render.Options) Outcome {
	oc := Outcome{Entry: e}
	data, err := afero.ReadFile(a.fs, e.Path)
	if err != nil {
		oc.Err = fmt.Errorf("%w: read: %v", apperr.ErrFileIO, err)
		return oc
	}
	oc.Checksum = checksum.Sum(data)

	doc, err := a.normalizer.NormalizeBytes(data)
	if err != nil {
		oc.Err = err
		return oc
	}
	html, err := a.renderer.Render(doc, opts)
	if err != nil {
		oc.Err = err
		return oc
	}
	name := OutputName(e.RelPath, suffix)
	if err := out.Write(name, html); err != nil {
		oc.Err = fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
		return oc
	}
	oc.Output, _ = out.Resolve(name)
	oc.Document = doc
	return oc
}

// RenderFile is single-file mode: normalize src and write the artifact to
// dst, creating its directory.
func (a *Aggregator) RenderFile(src, dst string, opts render.Options) (*claims.TimelineDocument, error) {
	data, err := afero.ReadFile(a.fs, src)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", apperr.ErrFileIO, src, err)
	}
	doc, err := a.normalizer.NormalizeBytes(data)
	if err != nil {
		return nil, err
	}
	html, err := a.renderer.Render(doc, opts)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(dst)
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", apperr.ErrFileIO, dir, err)
	}
	out, err := storage.NewFS(a.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
	}
	if err := out.Write(filepath.Base(dst), html); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
	}
	return doc, nil
}

// OutputName replaces the extension of a slash-separated relative path with
// suffix.
func OutputName(rel, suffix string) string {
	return strings.TrimSuffix(rel, path.Ext(rel)) + suffix
}

// Excluded reports whether rel matches any of the doublestar patterns.
func Excluded(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
