package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/claimline/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "claimline-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRow(source, checksum string) TimelineRow {
	return TimelineRow{
		Source:     source,
		Output:     source + ".html",
		Checksum:   checksum,
		ItemCount:  2,
		Kinds:      []string{"prescription-pending", "medical-service"},
		SpanStart:  date(2024, time.January, 1),
		SpanEnd:    date(2024, time.February, 1),
		Labels:     "Lisinopril\nOffice visit",
		RenderedAt: date(2024, time.March, 1),
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"timelines", "runs", "run_errors"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAndGetTimeline(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertTimeline(sampleRow("a.json", "abc123")); err != nil {
		t.Fatalf("UpsertTimeline: %v", err)
	}
	cs, err := db.GetChecksum("a.json")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}

	got, err := db.GetTimeline("a.json")
	if err != nil {
		t.Fatalf("GetTimeline: %v", err)
	}
	if got.ItemCount != 2 || len(got.Kinds) != 2 || got.Kinds[1] != "medical-service" {
		t.Errorf("row = %+v", got)
	}
	if !got.SpanEnd.Equal(date(2024, time.February, 1)) {
		t.Errorf("span end = %v", got.SpanEnd)
	}
}

func TestGetTimeline_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetTimeline("missing.json")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	cs, err := db.GetChecksum("missing.json")
	if err != nil || cs != "" {
		t.Errorf("GetChecksum = %q, %v; want empty, nil", cs, err)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertTimeline(sampleRow("up.json", "1"))
	row := sampleRow("up.json", "2")
	row.ItemCount = 7
	_ = db.UpsertTimeline(row)

	got, err := db.GetTimeline("up.json")
	if err != nil {
		t.Fatalf("GetTimeline: %v", err)
	}
	if got.Checksum != "2" || got.ItemCount != 7 {
		t.Errorf("row = %+v", got)
	}
}

func TestDeleteTimeline(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertTimeline(sampleRow("del.json", "x"))
	if err := db.DeleteTimeline("del.json"); err != nil {
		t.Fatalf("DeleteTimeline: %v", err)
	}
	all, _ := db.AllChecksums()
	if len(all) != 0 {
		t.Errorf("checksums after delete = %v", all)
	}
}

func TestListTimelines(t *testing.T) {
	db := testDB(t)
	a := sampleRow("a.json", "1")
	b := sampleRow("b.json", "2")
	b.Kinds = []string{"prescription-history"}
	b.ItemCount = 9
	c := sampleRow("c.json", "3")
	for _, r := range []TimelineRow{c, a, b} {
		if err := db.UpsertTimeline(r); err != nil {
			t.Fatal(err)
		}
	}

	rows, total, err := db.ListTimelines(2, 0, "", "")
	if err != nil {
		t.Fatalf("ListTimelines: %v", err)
	}
	if total != 3 || len(rows) != 2 || rows[0].Source != "a.json" {
		t.Errorf("page = %d rows, total %d, first %q", len(rows), total, rows[0].Source)
	}

	rows, total, _ = db.ListTimelines(10, 0, "medical-service", "source")
	if total != 2 || len(rows) != 2 {
		t.Errorf("kind filter: total = %d, rows = %d", total, len(rows))
	}

	rows, _, _ = db.ListTimelines(10, 0, "", "items")
	if rows[0].Source != "b.json" {
		t.Errorf("items sort first = %q, want b.json", rows[0].Source)
	}

	if _, _, err := db.ListTimelines(10, 0, "", "bogus"); err == nil {
		t.Error("expected error for unknown sort")
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertTimeline(sampleRow("s.json", "1"))

	results, err := db.Search("Lisinopril", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Source != "s.json" || results[0].Output != "s.json.html" {
		t.Errorf("search results = %+v, want 1 hit for s.json", results)
	}
}

func TestRecordAndListRuns(t *testing.T) {
	db := testDB(t)
	start := date(2024, time.January, 1)
	end := date(2024, time.January, 20)

	first := RunRow{
		Root: "/claims", StartedAt: date(2024, time.May, 1), FinishedAt: date(2024, time.May, 1),
		FilesScanned: 5, FilesSucceeded: 2, FilesFailed: 1, TotalItems: 3,
		Kinds: []string{"medical-service"}, SpanStart: &start, SpanEnd: &end,
		Errors: []RunError{{Name: "c.json", Path: "/claims/c.json", Message: "no claims found"}},
	}
	id, err := db.RecordRun(first)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if id <= 0 {
		t.Errorf("id = %d", id)
	}
	if _, err := db.RecordRun(RunRow{Root: "/other", StartedAt: start, FinishedAt: start}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].Root != "/other" || runs[0].SpanStart != nil || len(runs[0].Errors) != 0 {
		t.Errorf("latest run = %+v", runs[0])
	}
	got := runs[1]
	if got.FilesScanned != 5 || got.FilesFailed != 1 || len(got.Errors) != 1 {
		t.Errorf("run = %+v", got)
	}
	if got.SpanEnd == nil || !got.SpanEnd.Equal(end) {
		t.Errorf("span end = %v", got.SpanEnd)
	}
	if got.Errors[0].Message != "no claims found" {
		t.Errorf("error message = %q", got.Errors[0].Message)
	}
}
