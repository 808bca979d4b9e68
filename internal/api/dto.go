package api

import (
	"github.com/starford/claimline/internal/batch"
	"github.com/starford/claimline/internal/claims"
	"github.com/starford/claimline/internal/index"
	"github.com/starford/claimline/internal/timelines"
)

// TimelineItem is a catalog entry (aliased from the domain layer).
type TimelineItem = timelines.TimelineItem

// TimelineDocument is the normalized form of one claims document.
type TimelineDocument = claims.TimelineDocument

// BatchResult is the outcome of a folder run.
type BatchResult = batch.Result

// SyncStats counts what a sync pass changed.
type SyncStats = timelines.SyncStats

// TimelineListResponse wraps paginated timeline listings.
type TimelineListResponse struct {
	Timelines []TimelineItem `json:"timelines" validate:"required"`
	Total     int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// RunsResponse wraps the run history.
type RunsResponse struct {
	Runs []index.RunRow `json:"runs" validate:"required"`
}

// ScanResponse lists the classified files of the input folder.
type ScanResponse struct {
	Root  string            `json:"root" example:"/data/claims" validate:"required"`
	Files []batch.ScanEntry `json:"files" validate:"required"`
	Valid int               `json:"valid" example:"3" validate:"required"`
}

// UploadResponse is returned after a successful claims upload.
type UploadResponse struct {
	Filename string `json:"filename" example:"member.json" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	Items    int    `json:"items" example:"17" validate:"required"`
	URL      string `json:"url" example:"/view/member_timeline.html" validate:"required"`
}
