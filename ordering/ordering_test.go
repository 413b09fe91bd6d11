package ordering

import "testing"

type item struct {
	id    int
	ref   int32
	pos   int32
	qname string
}

func (i item) SourceID() int     { return i.id }
func (i item) RefID() int32      { return i.ref }
func (i item) Position() int32   { return i.pos }
func (i item) QueryName() string { return i.qname }

func TestByCoordinateUnmappedSortsLast(t *testing.T) {
	var o ByCoordinate
	mapped := item{id: 0, ref: 5, pos: 100}
	unmapped := item{id: 1, ref: -1, pos: 0}
	if !o.Less(mapped, unmapped) {
		t.Fatal("mapped record should sort before unmapped")
	}
	if o.Less(unmapped, mapped) {
		t.Fatal("unmapped record must never sort before a mapped one")
	}
}

func TestByCoordinateTiebreakIsSourceID(t *testing.T) {
	var o ByCoordinate
	a := item{id: 0, ref: 1, pos: 10}
	b := item{id: 1, ref: 1, pos: 10}
	if !o.Less(a, b) || o.Less(b, a) {
		t.Fatal("equal (ref,pos) keys must break ties by source id")
	}
}

func TestByNameLexicographic(t *testing.T) {
	var o ByName
	a := item{id: 0, qname: "alpha"}
	b := item{id: 1, qname: "beta"}
	if !o.Less(a, b) || o.Less(b, a) {
		t.Fatal("expected lexicographic order alpha < beta")
	}
}

func TestUnsortedIsSourceOrder(t *testing.T) {
	var o Unsorted
	a := item{id: 0}
	b := item{id: 1}
	if !o.Less(a, b) || o.Less(b, a) {
		t.Fatal("unsorted ordering must be source-id order")
	}
}

func TestForSortOrder(t *testing.T) {
	cases := map[string]Ordering{
		"coordinate": ByCoordinate{},
		"queryname":  ByName{},
		"unsorted":   Unsorted{},
		"unknown":    Unsorted{},
		"":           Unsorted{},
		"garbage":    Unsorted{},
	}
	for in, want := range cases {
		if got := ForSortOrder(in); got.Name() != want.Name() {
			t.Errorf("ForSortOrder(%q) = %v, want %v", in, got.Name(), want.Name())
		}
	}
}
