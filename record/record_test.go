package record

import "testing"

func TestBuildTextIsIdempotent(t *testing.T) {
	h := &Handle{}
	calls := 0
	h.SetDecoder(func(raw []byte) (string, string, map[string]string, error) {
		calls++
		return string(raw), "IIII", map[string]string{"NM": "0"}, nil
	})
	h.Reset(0, 10, "read1", []byte("ACGT"))

	if err := h.BuildText(); err != nil {
		t.Fatalf("BuildText: %v", err)
	}
	if err := h.BuildText(); err != nil {
		t.Fatalf("second BuildText: %v", err)
	}
	if calls != 1 {
		t.Fatalf("decoder called %d times, want 1 (idempotent)", calls)
	}
	if h.Sequence != "ACGT" || h.Quality != "IIII" {
		t.Fatalf("unexpected decoded fields: seq=%q qual=%q", h.Sequence, h.Quality)
	}
}

func TestResetInvalidatesMaterializedText(t *testing.T) {
	h := &Handle{}
	h.SetDecoder(func(raw []byte) (string, string, map[string]string, error) {
		return string(raw), "", nil, nil
	})
	h.Reset(0, 1, "a", []byte("AAA"))
	if err := h.BuildText(); err != nil {
		t.Fatalf("BuildText: %v", err)
	}

	h.Reset(0, 2, "b", []byte("TTT"))
	if h.Sequence == "AAA" {
		t.Fatal("Reset must clear previously materialized text")
	}
	if err := h.BuildText(); err != nil {
		t.Fatalf("BuildText: %v", err)
	}
	if h.Sequence != "TTT" {
		t.Fatalf("Sequence = %q, want TTT", h.Sequence)
	}
}

func TestCopyDeepCopiesRaw(t *testing.T) {
	h := &Handle{}
	h.Reset(0, 1, "a", []byte("AAA"))
	clone := h.Copy()
	h.Raw[0] = 'X'
	if clone.Raw[0] != 'A' {
		t.Fatal("Copy must deep-copy Raw so later NextCore calls cannot mutate it")
	}
}
