// Package apperr defines the sentinel errors shared across claimline.
//
// Concrete errors wrap one of these with %w; callers test with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput: a request parameter was rejected before any work ran.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDocument: the top-level input is not a JSON object.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrNoClaimsFound: normalization finished with zero items.
	ErrNoClaimsFound = errors.New("no claims found")
	// ErrUnparseableDate: a date value matched none of the accepted formats.
	ErrUnparseableDate = errors.New("unparseable date")
	// ErrMalformedSection: a medical claim is missing its lines list.
	ErrMalformedSection = errors.New("malformed section")

	// ErrFolderScan: the input directory could not be enumerated.
	ErrFolderScan = errors.New("folder scan failed")
	// ErrNoValidFiles: a scan succeeded but no file holds claims data.
	ErrNoValidFiles = errors.New("no valid files")
	// ErrFileIO: a read or write attributable to a single file failed.
	ErrFileIO = errors.New("file i/o")
)
