// Package filereader declares the FileReader capability the merge engine
// consumes. It is an external collaborator: single-file ALN parsing,
// header text parsing, and on-disk block indexes are implemented by
// whatever satisfies this interface, not by the merge engine itself.
package filereader

import (
	"fmt"

	"github.com/aln-tools/multireader/header"
	"github.com/aln-tools/multireader/record"
	"github.com/aln-tools/multireader/reference"
)

// Region is a half-open interval over the (refID, position) lexicographic
// space: everything from (LeftRefID, LeftPos) up to, but not including,
// (RightRefID, RightPos).
type Region struct {
	LeftRefID, RightRefID int32
	LeftPos, RightPos     int32
}

// String renders the region for diagnostic messages.
func (r Region) String() string {
	return fmt.Sprintf("%d:%d..%d:%d", r.LeftRefID, r.LeftPos, r.RightRefID, r.RightPos)
}

// IndexType identifies an on-disk block-index format a source may have or
// build. The core never interprets the value; it is opaque plumbing to the
// FileReader implementation.
type IndexType int

// IndexCacheMode controls how aggressively a FileReader keeps index data
// resident in memory. Forwarded verbatim from MultiReader to every source.
type IndexCacheMode int

const (
	// FullIndexCaching keeps the entire index resident.
	FullIndexCaching IndexCacheMode = iota
	// LimitedIndexCaching evicts index data outside the active window.
	LimitedIndexCaching
	// NoIndexCaching re-reads index data from storage on every use.
	NoIndexCaching
)

// FileReader is one source's view onto a single ALN file: header, reference
// table, lazy sequential reads, and random-access repositioning.
//
// Implementations need not be safe for concurrent use; the core never calls
// a FileReader from more than one goroutine at a time.
type FileReader interface {
	// Open opens the ALN file at path and reads its header.
	Open(path string) error
	// Close releases any resources held by the reader.
	Close() error
	// IsOpen reports whether the underlying stream is still open.
	IsOpen() bool
	// Filename returns the path this reader was opened with.
	Filename() string

	// Header returns the reader's parsed header.
	Header() *header.Header
	// ReferenceData returns the reader's reference table.
	ReferenceData() reference.Table
	// ReferenceCount returns len(ReferenceData()).
	ReferenceCount() int
	// ReferenceID returns the id of the named reference, or
	// reference.Unmapped if absent.
	ReferenceID(name string) int32

	// NextCore loads the next record into handle, eagerly decoding only
	// the fields needed for merge-ordering comparisons. It returns false
	// on EOF or error; it never materializes text fields.
	NextCore(handle *record.Handle) bool

	// Rewind repositions to the first record.
	Rewind() error
	// Jump seeks to the first record at or after (refID, pos). A false
	// return means "no records there" and is not necessarily fatal to the
	// caller.
	Jump(refID int32, pos int32) bool
	// SetRegion restricts iteration to region, with the same best-effort
	// semantics as Jump.
	SetRegion(region Region) bool

	// HasIndex reports whether an index is currently loaded.
	HasIndex() bool
	// LocateIndex attempts to find and load an index of the preferred type.
	LocateIndex(preferred IndexType) bool
	// CreateIndex builds an index of the given type for this source.
	CreateIndex(kind IndexType) bool
	// OpenIndex loads an index from the given path.
	OpenIndex(path string) bool

	// SetIndexCacheMode configures index residency for this reader.
	SetIndexCacheMode(mode IndexCacheMode)
}
