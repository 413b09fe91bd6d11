// Package ordering defines the three total orders a MergeCache can be
// parameterized over, generalized from Algorithms::Sort::ByPosition/ByName/
// Unsorted referenced in BamMultiReaderPrivate::CreateAlignmentCache.
//
// Comparisons operate only on fields record.Handle decodes eagerly
// (RefID, Position, QueryName, plus the source's insertion-order id); they
// must never require text materialization, so MergeCache never triggers a
// BuildText call.
package ordering

import "github.com/aln-tools/multireader/reference"

// Item is the minimal view an Ordering compares: a source's insertion-order
// id alongside its current record's decoded positional fields. mergeItem
// (in package multireader) satisfies this by reading its handle's fields.
type Item interface {
	SourceID() int
	RefID() int32
	Position() int32
	QueryName() string
}

// Ordering is a total order over Items. Implementations must be consistent:
// Less(a, b) and Less(b, a) are never both true, and ties are broken by
// SourceID so that records with equal keys emerge in source-insertion order.
type Ordering interface {
	// Less reports whether a sorts strictly before b.
	Less(a, b Item) bool
	// Name identifies the ordering, matching the header's exact sort-order
	// spelling it was derived from.
	Name() string
}

// ByCoordinate orders by (RefID, Position), with reference.Unmapped (-1)
// sorting after every non-negative reference id ("unmapped sorts last"),
// then by Position ascending, then by SourceID as a stable tiebreak.
type ByCoordinate struct{}

// Less implements Ordering.
func (ByCoordinate) Less(a, b Item) bool {
	ra, rb := a.RefID(), b.RefID()
	if ra != rb {
		return refLess(ra, rb)
	}
	if a.Position() != b.Position() {
		return a.Position() < b.Position()
	}
	return a.SourceID() < b.SourceID()
}

// Name implements Ordering.
func (ByCoordinate) Name() string { return "coordinate" }

func refLess(a, b int32) bool {
	if a == reference.Unmapped {
		return false
	}
	if b == reference.Unmapped {
		return true
	}
	return a < b
}

// ByName orders by byte-wise lexicographic query name, then by SourceID.
type ByName struct{}

// Less implements Ordering.
func (ByName) Less(a, b Item) bool {
	if a.QueryName() != b.QueryName() {
		return a.QueryName() < b.QueryName()
	}
	return a.SourceID() < b.SourceID()
}

// Name implements Ordering.
func (ByName) Name() string { return "queryname" }

// Unsorted orders purely by SourceID, draining each source's backlog in its
// native order: a refilled source keeps its SourceID, so the lowest-id
// source with records left is drained completely before the next one,
// matching BamMultiReaderPrivate's insertion-order draw for unsorted data.
type Unsorted struct{}

// Less implements Ordering.
func (Unsorted) Less(a, b Item) bool {
	return a.SourceID() < b.SourceID()
}

// Name implements Ordering.
func (Unsorted) Name() string { return "unsorted" }

// ForSortOrder selects the ordering that corresponds to a header's declared
// sort order: coordinate -> ByCoordinate, queryname -> ByName, anything
// else -> Unsorted.
func ForSortOrder(sortOrder string) Ordering {
	switch sortOrder {
	case "coordinate":
		return ByCoordinate{}
	case "queryname":
		return ByName{}
	default:
		return Unsorted{}
	}
}
