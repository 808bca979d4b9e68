package batch

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/claimline/internal/apperr"
	"github.com/starford/claimline/internal/claims"
	"github.com/starford/claimline/internal/render"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type stubRenderer struct {
	fail map[string]bool // by first item label
}

func (s stubRenderer) Render(doc *claims.TimelineDocument, _ render.Options) ([]byte, error) {
	if s.fail[doc.Items[0].Label] {
		return nil, errors.New("render exploded")
	}
	return []byte("<html>" + doc.Items[0].Label + "</html>"), nil
}

func newAggregator(t *testing.T, fs afero.Fs, r render.Renderer) *Aggregator {
	t.Helper()
	n, err := claims.NewNormalizer(claims.Config{}, nil)
	require.NoError(t, err)
	if r == nil {
		r = stubRenderer{}
	}
	return NewAggregator(fs, n, r, nil)
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
}

// fiveFiles holds two structurally invalid files and one file that passes
// the probe but fails normalization.
var fiveFiles = map[string]string{
	"/in/a.json":     `{"rxTba": [{"dos": "2024-01-01", "medication": "Alpha", "daysSupply": 9}]}`,
	"/in/b.json":     `{"medHistory": {"claims": [{"claimId": "B", "lines": [{"serviceStart": "2024-01-05", "serviceEnd": "2024-01-20", "description": "Bravo"}]}]}}`,
	"/in/c.json":     `{"rxHistory": [{"dos": "not a date"}]}`,
	"/in/d.json":     `{"rxTba": [`,
	"/in/e.JSON":     `[1, 2, 3]`,
	"/in/notes.txt":  `ignored`,
	"/in/sub/f.json": `{"rxTba": [{"dos": "2025-01-01"}]}`,
}

func TestScan_ClassifiesFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, fiveFiles)
	agg := newAggregator(t, fs, nil)

	entries, err := agg.Scan("/in", ScanOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 5)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"a.json", "b.json", "c.json", "d.json", "e.JSON"}, names)

	a := entries[0]
	assert.True(t, a.Valid)
	assert.Equal(t, "/in/a.json", a.Path)
	assert.Equal(t, 1, a.ItemCount)
	assert.Equal(t, []claims.Kind{claims.KindPrescriptionPending}, a.Kinds)
	assert.Equal(t, int64(len(fiveFiles["/in/a.json"])), a.Size)

	assert.Equal(t, []claims.Kind{claims.KindMedicalService}, entries[1].Kinds)
	assert.True(t, entries[2].Valid, "shape is fine even though dates are not")

	assert.False(t, entries[3].Valid)
	assert.Equal(t, errNotJSON.Error(), entries[3].Error)
	assert.False(t, entries[4].Valid)
	assert.Equal(t, errNotObject.Error(), entries[4].Error)
}

func TestScan_RecursiveAndExclude(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, fiveFiles)
	agg := newAggregator(t, fs, nil)

	entries, err := agg.Scan("/in", ScanOptions{Recursive: true})
	require.NoError(t, err)
	require.Len(t, entries, 6)
	assert.Equal(t, "f.json", entries[5].Name)
	assert.Equal(t, "sub/f.json", entries[5].RelPath)

	entries, err = agg.Scan("/in", ScanOptions{Recursive: true, Exclude: []string{"sub/**", "?.JSON"}})
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	_, err = agg.Scan("/in", ScanOptions{Exclude: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestScan_SameNameOrderedByPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/in/z/claims.json": `{"rxTba": []}`,
		"/in/a/claims.json": `{"rxTba": []}`,
	})
	entries, err := newAggregator(t, fs, nil).Scan("/in", ScanOptions{Recursive: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a/claims.json", entries[0].RelPath)
	assert.True(t, entries[0].Valid)
	assert.Zero(t, entries[0].ItemCount)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := newAggregator(t, afero.NewMemMapFs(), nil).Scan("/nope", ScanOptions{})
	assert.True(t, errors.Is(err, apperr.ErrFolderScan), "%v", err)
}

func TestProcess_CountsAndAggregate(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, fiveFiles)
	agg := newAggregator(t, fs, nil)

	var seen []Outcome
	res, err := agg.Process("/in", ProcessOptions{
		OutputDir: "/out",
		Observer:  func(o Outcome) { seen = append(seen, o) },
	})
	require.NoError(t, err)

	assert.Equal(t, 5, res.FilesScanned)
	assert.Equal(t, 2, res.FilesSucceeded)
	assert.Equal(t, 1, res.FilesFailed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "c.json", res.Errors[0].Name)
	assert.True(t, errors.Is(res.Errors[0], apperr.ErrNoClaimsFound))

	assert.Equal(t, 2, res.Aggregate.TotalItems)
	assert.Equal(t, []claims.Kind{claims.KindPrescriptionPending, claims.KindMedicalService}, res.Aggregate.Kinds)
	require.NotNil(t, res.Aggregate.Span)
	assert.Equal(t, claims.Interval{Start: day(2024, time.January, 1), End: day(2024, time.January, 20)}, *res.Aggregate.Span)

	require.Len(t, res.Outputs, 2)
	assert.Equal(t, "/in/a.json", res.Outputs[0].Source)
	assert.Equal(t, "/out/a_timeline.html", res.Outputs[0].Output)
	html, err := afero.ReadFile(fs, "/out/b_timeline.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>Bravo</html>", string(html))

	require.Len(t, seen, 3)
	assert.NotEmpty(t, seen[0].Checksum)
	assert.Error(t, seen[2].Err)
}

func TestProcess_RenderFailureIsolated(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, fiveFiles)
	agg := newAggregator(t, fs, stubRenderer{fail: map[string]bool{"Alpha": true}})

	res, err := agg.Process("/in", ProcessOptions{Recursive: true, Suffix: ".html"})
	require.NoError(t, err)
	assert.Equal(t, 6, res.FilesScanned)
	assert.Equal(t, 2, res.FilesSucceeded)
	assert.Equal(t, 2, res.FilesFailed)
	assert.Equal(t, res.FilesSucceeded+res.FilesFailed, 4)

	exists, err := afero.Exists(fs, "/in/sub/f.html")
	require.NoError(t, err)
	assert.True(t, exists, "outputs mirror the input tree")
	exists, _ = afero.Exists(fs, "/in/a.html")
	assert.False(t, exists)
}

func TestProcess_NoValidFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/in/x.json": `{"other": 1}`})
	_, err := newAggregator(t, fs, nil).Process("/in", ProcessOptions{})
	assert.True(t, errors.Is(err, apperr.ErrNoValidFiles), "%v", err)

	require.NoError(t, fs.MkdirAll("/empty", 0o755))
	_, err = newAggregator(t, fs, nil).Process("/empty", ProcessOptions{})
	assert.True(t, errors.Is(err, apperr.ErrNoValidFiles), "%v", err)
}

func TestProcess_WithHTMLRenderer(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/in/a.json": fiveFiles["/in/a.json"]})
	r, err := render.New()
	require.NoError(t, err)

	res, err := newAggregator(t, fs, r).Process("/in", ProcessOptions{Render: render.Options{Title: "Batch"}})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)
	html, err := afero.ReadFile(fs, res.Outputs[0].Output)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>Batch</title>")
}

func TestRenderFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, fiveFiles)
	agg := newAggregator(t, fs, nil)

	doc, err := agg.RenderFile("/in/a.json", "/reports/member/a.html", render.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Summary.TotalItems)
	html, err := afero.ReadFile(fs, "/reports/member/a.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>Alpha</html>", string(html))

	_, err = agg.RenderFile("/in/missing.json", "/reports/x.html", render.Options{})
	assert.True(t, errors.Is(err, apperr.ErrFileIO))

	_, err = agg.RenderFile("/in/e.JSON", "/reports/x.html", render.Options{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidDocument))
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "a_timeline.html", OutputName("a.json", DefaultSuffix))
	assert.Equal(t, "sub/b_timeline.html", OutputName("sub/b.JSON", DefaultSuffix))
	assert.Equal(t, "c.v2.html", OutputName("c.v2.json", ".html"))
}

func TestProcessFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, fiveFiles)
	agg := newAggregator(t, fs, nil)

	var notified int
	oc := agg.ProcessFile("/in", "sub/f.json", ProcessOptions{
		OutputDir: "/out",
		Observer:  func(Outcome) { notified++ },
	})
	require.NoError(t, oc.Err)
	assert.Equal(t, 1, notified)
	assert.Equal(t, "/out/sub/f_timeline.html", oc.Output)
	assert.Equal(t, "/in/sub/f.json", oc.Entry.Path)
	assert.True(t, oc.Entry.Valid)
	assert.Equal(t, 1, oc.Entry.ItemCount)

	oc = agg.ProcessFile("/in", "c.json", ProcessOptions{OutputDir: "/out"})
	assert.True(t, errors.Is(oc.Err, apperr.ErrNoClaimsFound))
	assert.False(t, oc.Entry.Valid)

	oc = agg.ProcessFile("/in", "../etc/passwd", ProcessOptions{})
	assert.True(t, errors.Is(oc.Err, apperr.ErrFileIO))
}
