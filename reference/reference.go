// Package reference holds the reference-sequence table that every source in
// a merged ALN stream is validated against.
package reference

// Entry describes one reference sequence: its name and length in bases.
type Entry struct {
	Name   string
	Length uint32
}

// Equal reports whether two entries describe the same reference sequence.
func (e Entry) Equal(other Entry) bool {
	return e.Name == other.Name && e.Length == other.Length
}

// Unmapped is the reference id used for records with no known reference.
const Unmapped = int32(-1)

// Table is an ordered list of reference sequences. A reference id is an
// index into the table; Unmapped denotes "no reference".
type Table []Entry

// ID returns the index of the entry named name, or Unmapped if absent.
func (t Table) ID(name string) int32 {
	for i, entry := range t {
		if entry.Name == name {
			return int32(i)
		}
	}
	return Unmapped
}

// Equal reports whether two tables contain the same entries, in the same
// order.
func (t Table) Equal(other Table) bool {
	if len(t) != len(other) {
		return false
	}
	for i, entry := range t {
		if !entry.Equal(other[i]) {
			return false
		}
	}
	return true
}
