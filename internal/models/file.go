// Package models defines the file-level types shared by storage and the
// batch driver.
package models

import "time"

// FileMeta describes one candidate claims file under a storage root.
type FileMeta struct {
	Path      string    `json:"path"` // relative to the root, slash separated
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Artifact is one rendered output produced from a claims file.
type Artifact struct {
	Source string `json:"source"`
	Output string `json:"output"`
}
