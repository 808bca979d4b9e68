package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/claimline/internal/batch"
	"github.com/starford/claimline/internal/claims"
	"github.com/starford/claimline/internal/index"
	"github.com/starford/claimline/internal/models"
	"github.com/starford/claimline/internal/timelines"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRenderSummary(t *testing.T) {
	doc := &claims.TimelineDocument{
		Span:    claims.Interval{Start: day(2024, time.January, 1), End: day(2024, time.January, 31)},
		Summary: claims.Summary{TotalItems: 3, Kinds: []claims.Kind{claims.KindPrescriptionPending, claims.KindMedicalService}},
		Warnings: []claims.Warning{
			{Section: "rxTba", Position: "2", Message: "unparseable date"},
		},
	}
	out := renderSummary("in/a.json", "in/a_timeline.html", doc)
	for _, want := range []string{
		"in/a.json -> in/a_timeline.html",
		"2024-01-01 .. 2024-01-31",
		"prescription-pending, medical-service",
		"1 warning(s)",
		"rxTba #2: unparseable date",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestBatchSummary(t *testing.T) {
	span := claims.Interval{Start: day(2024, time.January, 1), End: day(2024, time.January, 20)}
	res := &batch.Result{
		FilesScanned:   5,
		FilesSucceeded: 2,
		FilesFailed:    1,
		Outputs:        []models.Artifact{{Source: "/claims/a.json", Output: "/out/a_timeline.html"}},
		Errors:         []batch.FileError{{Name: "c.json", Path: "/claims/c.json", Message: "no claims found"}},
		Aggregate:      batch.Aggregate{TotalItems: 2, Kinds: []claims.Kind{claims.KindMedicalService}, Span: &span},
	}
	out := batchSummary("/claims", res)
	for _, want := range []string{
		"Batch /claims",
		"2 succeeded",
		"1 failed",
		"a.json -> /out/a_timeline.html",
		"c.json: no claims found",
		"2024-01-01 .. 2024-01-20",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestScanSummary(t *testing.T) {
	if out := scanSummary("/empty", nil); !strings.Contains(out, "no json files under /empty") {
		t.Errorf("empty scan = %q", out)
	}
	out := scanSummary("/claims", []batch.ScanEntry{
		{RelPath: "a.json", Valid: true, ItemCount: 4, Kinds: []claims.Kind{claims.KindPrescriptionHistory}},
		{RelPath: "b.json", Error: "not a JSON object"},
	})
	for _, want := range []string{"a.json", "4 item(s), prescription-history", "b.json", "not a JSON object"} {
		if !strings.Contains(out, want) {
			t.Errorf("scan summary missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryAndExportSummary(t *testing.T) {
	if out := historySummary(nil); !strings.Contains(out, "no runs recorded") {
		t.Errorf("empty history = %q", out)
	}
	out := historySummary([]index.RunRow{{
		ID: 7, Root: "/claims", StartedAt: day(2024, time.May, 1),
		FilesScanned: 3, FilesSucceeded: 3,
		Errors: []index.RunError{{Name: "x.json", Message: "boom"}},
	}})
	if !strings.Contains(out, "#7") || !strings.Contains(out, "/claims") || !strings.Contains(out, ": boom") {
		t.Errorf("history = %s", out)
	}

	out = exportSummary(&timelines.ExportResult{
		Path: "claims.parquet", Files: 2, Rows: 9,
		Errors: []batch.FileError{{Name: "c.json", Message: "no claims found"}},
	})
	if !strings.Contains(out, "claims.parquet") || !strings.Contains(out, "c.json: no claims found") {
		t.Errorf("export = %s", out)
	}
}

func TestDefaultOutput(t *testing.T) {
	got := defaultOutput(filepath.Join("data", "member.json"), batch.DefaultSuffix)
	want := filepath.Join("data", "member_timeline.html")
	if got != want {
		t.Errorf("defaultOutput = %q, want %q", got, want)
	}
}

func TestValidateInput(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.json")
	if err := os.WriteFile(file, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		mode, path string
		ok         bool
	}{
		{modeFile, file, true},
		{modeFile, dir, false},
		{modeFolder, dir, true},
		{modeFolder, file, false},
		{modeServe, dir, true},
		{modeFile, "", false},
		{modeFile, filepath.Join(dir, "missing.json"), false},
	}
	for _, tc := range cases {
		err := validateInput(tc.mode)(tc.path)
		if (err == nil) != tc.ok {
			t.Errorf("validateInput(%s)(%q) = %v, want ok=%v", tc.mode, tc.path, err, tc.ok)
		}
	}
}
