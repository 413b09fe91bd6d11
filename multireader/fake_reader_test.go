package multireader

import (
	"fmt"
	"sort"

	"github.com/aln-tools/multireader/filereader"
	"github.com/aln-tools/multireader/header"
	"github.com/aln-tools/multireader/record"
	"github.com/aln-tools/multireader/reference"
)

// fakeRecord is one record in a fakeReader's backing store, already in the
// order the fake file would emit them natively.
type fakeRecord struct {
	refID    int32
	position int32
	name     string
}

// fakeFileData is the content a fakeReader.Open(path) loads, keyed by path
// in a registry shared across every reader a test opens.
type fakeFileData struct {
	sortOrder  header.SortOrder
	refs       reference.Table
	records    []fakeRecord
	readGroups []header.ReadGroup
}

// fakeReader is a minimal filereader.FileReader used to exercise
// MultiReader without any real ALN bytes on disk. Its content is resolved
// from a shared registry at Open time, so one NewReaderFunc can serve
// every source in a test, each with different content, exactly as a real
// FileReader resolves its own content from the path it is given.
type fakeReader struct {
	registry map[string]*fakeFileData

	filename string
	open     bool
	data     *fakeFileData

	cursor int
	limit  int // exclusive upper bound on cursor, set by SetRegion/Jump

	hasIndex bool
}

func newFakeReaderFactory(registry map[string]*fakeFileData) func() filereader.FileReader {
	return func() filereader.FileReader {
		return &fakeReader{registry: registry}
	}
}

func (f *fakeReader) Open(path string) error {
	data, ok := f.registry[path]
	if !ok {
		return fmt.Errorf("no fake content registered for %q", path)
	}
	f.filename = path
	f.data = data
	f.open = true
	f.cursor = 0
	f.limit = len(data.records)
	return nil
}

func (f *fakeReader) Close() error      { f.open = false; return nil }
func (f *fakeReader) IsOpen() bool      { return f.open }
func (f *fakeReader) Filename() string  { return f.filename }

func (f *fakeReader) Header() *header.Header {
	rgs := header.NewReadGroupSet()
	for _, rg := range f.data.readGroups {
		rgs.Add(rg)
	}
	return &header.Header{SortOrder: f.data.sortOrder, ReadGroups: rgs}
}
func (f *fakeReader) ReferenceData() reference.Table { return f.data.refs }
func (f *fakeReader) ReferenceCount() int            { return len(f.data.refs) }
func (f *fakeReader) ReferenceID(name string) int32  { return f.data.refs.ID(name) }

func (f *fakeReader) NextCore(handle *record.Handle) bool {
	if f.cursor >= f.limit {
		return false
	}
	rec := f.data.records[f.cursor]
	f.cursor++
	handle.Reset(rec.refID, rec.position, rec.name, []byte(rec.name))
	handle.SetDecoder(func(raw []byte) (string, string, map[string]string, error) {
		return string(raw), "", nil, nil
	})
	return true
}

func (f *fakeReader) Rewind() error {
	f.cursor = 0
	f.limit = len(f.data.records)
	return nil
}

// lessCoord mirrors ByCoordinate ordering over two (refID, position) pairs.
func lessCoord(aRef, aPos, bRef, bPos int32) bool {
	if aRef != bRef {
		if aRef == reference.Unmapped {
			return false
		}
		if bRef == reference.Unmapped {
			return true
		}
		return aRef < bRef
	}
	return aPos < bPos
}

func (f *fakeReader) Jump(refID, pos int32) bool {
	records := f.data.records
	idx := sort.Search(len(records), func(i int) bool {
		r := records[i]
		return !lessCoord(r.refID, r.position, refID, pos)
	})
	if idx >= len(records) {
		f.cursor, f.limit = len(records), len(records)
		return false
	}
	f.cursor, f.limit = idx, len(records)
	return true
}

func (f *fakeReader) SetRegion(region filereader.Region) bool {
	records := f.data.records
	start := sort.Search(len(records), func(i int) bool {
		r := records[i]
		return !lessCoord(r.refID, r.position, region.LeftRefID, region.LeftPos)
	})
	end := sort.Search(len(records), func(i int) bool {
		r := records[i]
		return !lessCoord(r.refID, r.position, region.RightRefID, region.RightPos)
	})
	if start >= end {
		f.cursor, f.limit = len(records), len(records)
		return false
	}
	f.cursor, f.limit = start, end
	return true
}

func (f *fakeReader) HasIndex() bool                        { return f.hasIndex }
func (f *fakeReader) LocateIndex(filereader.IndexType) bool { f.hasIndex = true; return true }
func (f *fakeReader) CreateIndex(filereader.IndexType) bool { f.hasIndex = true; return true }
func (f *fakeReader) OpenIndex(path string) bool {
	if path == "" {
		return false
	}
	f.hasIndex = true
	return true
}
func (f *fakeReader) SetIndexCacheMode(filereader.IndexCacheMode) {}

// failingReader always fails to open, used for OpenFailed scenarios.
type failingReader struct{ filename string }

func newFailingReader() filereader.FileReader { return &failingReader{} }

func (f *failingReader) Open(path string) error { f.filename = path; return fmt.Errorf("boom") }
func (f *failingReader) Close() error           { return nil }
func (f *failingReader) IsOpen() bool           { return false }
func (f *failingReader) Filename() string       { return f.filename }
func (f *failingReader) Header() *header.Header { return nil }
func (f *failingReader) ReferenceData() reference.Table { return nil }
func (f *failingReader) ReferenceCount() int      { return 0 }
func (f *failingReader) ReferenceID(string) int32 { return reference.Unmapped }
func (f *failingReader) NextCore(*record.Handle) bool      { return false }
func (f *failingReader) Rewind() error                     { return nil }
func (f *failingReader) Jump(int32, int32) bool             { return false }
func (f *failingReader) SetRegion(filereader.Region) bool   { return false }
func (f *failingReader) HasIndex() bool                     { return false }
func (f *failingReader) LocateIndex(filereader.IndexType) bool { return false }
func (f *failingReader) CreateIndex(filereader.IndexType) bool { return false }
func (f *failingReader) OpenIndex(string) bool                 { return false }
func (f *failingReader) SetIndexCacheMode(filereader.IndexCacheMode) {}
