package index

// Catalog defines the catalog operations used by the timeline service.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Catalog interface {
	UpsertTimeline(t TimelineRow) error
	DeleteTimeline(source string) error
	GetChecksum(source string) (string, error)
	GetTimeline(source string) (*TimelineRow, error)
	ListTimelines(limit, offset int, kind, sort string) ([]TimelineRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	RecordRun(r RunRow) (int64, error)
	ListRuns(limit int) ([]RunRow, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
