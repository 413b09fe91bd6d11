// Package multireader implements MultiReader, the orchestrator that reads
// many sorted ALN sources concurrently and exposes them as one logically
// merged stream.
//
// This is a Go translation of BamMultiReaderPrivate (BamTools'
// BamMultiReader), generalized from BAM-specific vocabulary (BamReader,
// BamAlignment, SamHeader) to this package's ALN vocabulary
// (filereader.FileReader, record.Handle, header.Header). Open rewinds the
// already-open sources once rather than twice, and OpenIndexes stops early
// when given fewer index paths than sources instead of rejecting the
// mismatch outright (see DESIGN.md).
package multireader

import (
	"fmt"

	"github.com/aln-tools/multireader/diagnostics"
	"github.com/aln-tools/multireader/filereader"
	"github.com/aln-tools/multireader/header"
	"github.com/aln-tools/multireader/mergecache"
	"github.com/aln-tools/multireader/ordering"
	"github.com/aln-tools/multireader/record"
	"github.com/aln-tools/multireader/reference"
)

// Record is the public, copied view of a merged record handed back by
// Next/NextCore.
type Record struct {
	RefID     int32
	Position  int32
	QueryName string
	Sequence  string
	Quality   string
	Tags      map[string]string
	Filename  string
}

// mergeItem is one source's slot: its FileReader, its owned RecordHandle,
// and the insertion-order id used as the stable merge tiebreak. It
// implements ordering.Item / mergecache.Entry directly against whatever
// record is currently loaded into handle.
type mergeItem struct {
	id     int
	reader filereader.FileReader
	handle *record.Handle
}

func (m *mergeItem) SourceID() int     { return m.id }
func (m *mergeItem) RefID() int32      { return m.handle.RefID }
func (m *mergeItem) Position() int32   { return m.handle.Position }
func (m *mergeItem) QueryName() string { return m.handle.QueryName }

// MultiReader coordinates N FileReaders under one merged, ordered stream.
// It is not safe for concurrent use: callers must provide their own mutual
// exclusion.
type MultiReader struct {
	sources []*mergeItem
	nextID  int
	cache   *mergecache.Cache

	diagnostics diagnostics.Sink
}

// New returns an empty MultiReader. Diagnostics, if nil, defaults to
// diagnostics.Default().
func New(sink diagnostics.Sink) *MultiReader {
	if sink == nil {
		sink = diagnostics.Default()
	}
	return &MultiReader{diagnostics: sink}
}

// NewReaderFunc constructs a fresh, unopened FileReader. Open uses it once
// per filename so MultiReader never needs to know a concrete FileReader
// type.
type NewReaderFunc func() filereader.FileReader

// Open opens each of filenames via newReader, appending a live source for
// every one that opens successfully. Partial success is reported in the
// returned error but does not tear down sources that did open. If two or
// more sources end up live, Open validates them before rebuilding the
// cache; a validation failure is a hard error and the caller must treat the
// MultiReader's subsequent behavior as undefined if it is ignored. Sources
// that were already open are rewound first, so the rebuilt cache starts
// every source at its first record.
func (m *MultiReader) Open(newReader NewReaderFunc, filenames []string) error {
	for _, item := range m.sources {
		if err := item.reader.Rewind(); err != nil {
			m.diagnostics.Printf("multireader: could not rewind %q: %v", item.reader.Filename(), err)
		}
	}

	var openErrs []error
	for _, filename := range filenames {
		if filename == "" {
			continue
		}
		reader := newReader()
		if err := reader.Open(filename); err != nil {
			openErrs = append(openErrs, fmt.Errorf("opening %q: %w", filename, err))
			continue
		}
		m.appendSource(reader)
	}

	if len(m.sources) > 1 {
		if err := m.validate(); err != nil {
			return err
		}
	}

	if err := m.updateCache(); err != nil {
		return err
	}

	if len(openErrs) > 0 {
		return fmt.Errorf("OpenFailed: %d of %d files failed to open: %w", len(openErrs), len(filenames), joinErrors(openErrs))
	}
	return nil
}

// OpenFile is sugar for Open with a single filename.
func (m *MultiReader) OpenFile(newReader NewReaderFunc, filename string) error {
	return m.Open(newReader, []string{filename})
}

func (m *MultiReader) appendSource(reader filereader.FileReader) {
	item := &mergeItem{id: m.nextID, reader: reader, handle: new(record.Handle)}
	m.nextID++
	m.sources = append(m.sources, item)
}

// Close closes every source, drops every handle, and drops the cache.
func (m *MultiReader) Close() error {
	return m.CloseFiles(m.Filenames())
}

// Filenames returns the filenames of every currently live source, in
// source-insertion order.
func (m *MultiReader) Filenames() []string {
	names := make([]string, 0, len(m.sources))
	for _, item := range m.sources {
		if name := item.reader.Filename(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// CloseFile closes the first source whose filename matches exactly,
// evicting its cache entry before releasing its reader and handle.
// Non-matching filenames are silently skipped.
func (m *MultiReader) CloseFile(filename string) error {
	return m.CloseFiles([]string{filename})
}

// CloseFiles closes each named file, one pass per filename, in order.
func (m *MultiReader) CloseFiles(filenames []string) error {
	var errs []error
	for _, filename := range filenames {
		if filename == "" {
			continue
		}
		m.closeOne(filename, &errs)
	}
	if len(m.sources) == 0 {
		m.cache = nil
	}
	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func (m *MultiReader) closeOne(filename string, errs *[]error) {
	for i, item := range m.sources {
		if item.reader.Filename() != filename {
			continue
		}

		// Evict the cache entry before closing, so the cache never holds a
		// dangling reference to a closed reader's handle.
		if m.cache != nil {
			m.cache.Remove(item.id)
		}
		if err := item.reader.Close(); err != nil {
			*errs = append(*errs, fmt.Errorf("closing %q: %w", filename, err))
		}

		m.sources = append(m.sources[:i], m.sources[i+1:]...)
		return
	}
}

// HasOpenReaders reports whether any source's underlying stream is open.
func (m *MultiReader) HasOpenReaders() bool {
	for _, item := range m.sources {
		if item.reader.IsOpen() {
			return true
		}
	}
	return false
}

// Rewind repositions every source to its first record, then rebuilds the
// cache.
func (m *MultiReader) Rewind() error {
	for _, item := range m.sources {
		if err := item.reader.Rewind(); err != nil {
			m.diagnostics.Printf("multireader: could not rewind %q: %v", item.reader.Filename(), err)
		}
	}
	return m.updateCache()
}

// Jump attempts to seek every source to (refID, pos). A source that
// refuses is treated as having no records in the requested window: it
// stays live but contributes nothing to the cache until the next
// reposition.
func (m *MultiReader) Jump(refID, pos int32) error {
	for _, item := range m.sources {
		if !item.reader.Jump(refID, pos) {
			m.diagnostics.Printf("multireader: could not jump %q to %d:%d", item.reader.Filename(), refID, pos)
		}
	}
	return m.updateCache()
}

// SetRegion restricts every source to region with the same best-effort
// semantics as Jump.
func (m *MultiReader) SetRegion(region filereader.Region) error {
	for _, item := range m.sources {
		if !item.reader.SetRegion(region) {
			m.diagnostics.Printf("multireader: could not set region %v on %q", region, item.reader.Filename())
		}
	}
	return m.updateCache()
}

// Next produces the merged-order next record with text fields
// materialized, or ok=false if the stream is exhausted.
func (m *MultiReader) Next() (rec Record, ok bool, err error) {
	return m.popNext(true)
}

// NextCore is Next without materializing text fields (Sequence, Quality,
// Tags are left zero).
func (m *MultiReader) NextCore() (rec Record, ok bool, err error) {
	return m.popNext(false)
}

func (m *MultiReader) popNext(needText bool) (Record, bool, error) {
	if m.cache == nil || m.cache.IsEmpty() {
		return Record{}, false, nil
	}

	item := m.cache.PopMin().(*mergeItem)
	handle := item.handle

	if needText {
		if err := handle.BuildText(); err != nil {
			return Record{}, false, fmt.Errorf("building text fields: %w", err)
		}
		handle.Filename = item.reader.Filename()
	}

	out := Record{
		RefID:     handle.RefID,
		Position:  handle.Position,
		QueryName: handle.QueryName,
		Filename:  handle.Filename,
	}
	if needText {
		out.Sequence = handle.Sequence
		out.Quality = handle.Quality
		out.Tags = handle.Tags
	}

	if item.reader.NextCore(handle) {
		m.cache.Insert(item)
	}
	return out, true, nil
}

// GetReferenceCount proxies to the first source (all are identical by the
// validation invariant).
func (m *MultiReader) GetReferenceCount() int {
	if len(m.sources) == 0 {
		return 0
	}
	return m.sources[0].reader.ReferenceCount()
}

// GetReferenceData proxies to the first source.
func (m *MultiReader) GetReferenceData() reference.Table {
	if len(m.sources) == 0 {
		return nil
	}
	return m.sources[0].reader.ReferenceData()
}

// GetReferenceID proxies to the first source.
func (m *MultiReader) GetReferenceID(name string) int32 {
	if len(m.sources) == 0 {
		return reference.Unmapped
	}
	return m.sources[0].reader.ReferenceID(name)
}

// GetHeader returns the synthesized header: the first source's header,
// with every subsequent source's read groups merged in (first-writer-wins
// on id collision). All other header sections come from the first source
// only.
func (m *MultiReader) GetHeader() *header.Header {
	if len(m.sources) == 0 {
		return nil
	}
	first := m.sources[0].reader.Header()
	if first == nil {
		return nil
	}
	merged := first.Clone()
	for _, item := range m.sources[1:] {
		if h := item.reader.Header(); h != nil {
			merged.ReadGroups.AddAll(h.ReadGroups)
		}
	}
	return merged
}

// GetHeaderText serializes GetHeader() back to text, or "" if no sources
// are open.
func (m *MultiReader) GetHeaderText() string {
	h := m.GetHeader()
	if h == nil {
		return ""
	}
	return h.String()
}

// HasIndexes reports whether every live source has an index loaded.
func (m *MultiReader) HasIndexes() bool {
	if len(m.sources) == 0 {
		return false
	}
	for _, item := range m.sources {
		if !item.reader.HasIndex() {
			return false
		}
	}
	return true
}

// LocateIndexes attempts to load an index of the preferred type for every
// source currently lacking one. Returns true only if every attempt
// succeeded.
func (m *MultiReader) LocateIndexes(preferred filereader.IndexType) bool {
	ok := true
	for _, item := range m.sources {
		if item.reader.HasIndex() {
			continue
		}
		if !item.reader.LocateIndex(preferred) {
			ok = false
		}
	}
	return ok
}

// CreateIndexes builds an index of the given type for every source
// currently lacking one. AND-fold, as LocateIndexes.
func (m *MultiReader) CreateIndexes(kind filereader.IndexType) bool {
	ok := true
	for _, item := range m.sources {
		if item.reader.HasIndex() {
			continue
		}
		if !item.reader.CreateIndex(kind) {
			ok = false
		}
	}
	return ok
}

// OpenIndexes pairs the i-th path with the i-th source in source-list
// order and attempts to load it. If there are fewer paths than sources,
// pairing stops early and the remaining sources' index state is left
// unchanged (not an error); if there are more paths than sources, it fails
// immediately without opening any of them. BamMultiReaderPrivate's
// OpenIndexes instead rejects any count mismatch outright (see DESIGN.md).
func (m *MultiReader) OpenIndexes(paths []string) bool {
	if len(paths) > len(m.sources) {
		return false
	}
	ok := true
	for i, path := range paths {
		if !m.sources[i].reader.OpenIndex(path) {
			m.diagnostics.Printf("multireader: could not open index %q for %q", path, m.sources[i].reader.Filename())
			ok = false
		}
	}
	return ok
}

// SetIndexCacheMode forwards mode to every source.
func (m *MultiReader) SetIndexCacheMode(mode filereader.IndexCacheMode) {
	for _, item := range m.sources {
		item.reader.SetIndexCacheMode(mode)
	}
}

// updateCache rebuilds the cache from each source's first post-reposition
// record. Every repositioning operation ends by calling this.
func (m *MultiReader) updateCache() error {
	if m.cache == nil {
		if len(m.sources) == 0 {
			// CacheBuildFailed: nothing to build an ordering from yet: this
			// is not an error, it simply leaves the cache absent until a
			// source is opened.
			return nil
		}
		hdr := m.sources[0].reader.Header()
		sortOrder := ""
		if hdr != nil {
			sortOrder = string(hdr.SortOrder)
		}
		m.cache = mergecache.New(ordering.ForSortOrder(sortOrder))
	}

	m.cache.Clear()
	for _, item := range m.sources {
		if item.reader.NextCore(item.handle) {
			m.cache.Insert(item)
		}
	}
	return nil
}

// validate checks that every live source shares the first source's sort
// order and reference table. A mismatch is a hard failure: the caller
// must discard the MultiReader if this returns an error.
func (m *MultiReader) validate() error {
	if len(m.sources) == 0 {
		return nil
	}

	first := m.sources[0].reader
	firstHeader := first.Header()
	firstSortOrder := header.Unknown
	if firstHeader != nil {
		firstSortOrder = firstHeader.SortOrder
	}
	firstRefs := first.ReferenceData()

	for _, item := range m.sources {
		reader := item.reader

		current := reader.Header()
		currentSortOrder := header.Unknown
		if current != nil {
			currentSortOrder = current.SortOrder
		}
		if currentSortOrder != firstSortOrder {
			return fmt.Errorf("Incompatible: %q has sort order %q, expected %q",
				reader.Filename(), currentSortOrder, firstSortOrder)
		}

		currentRefs := reader.ReferenceData()
		if !firstRefs.Equal(currentRefs) {
			return fmt.Errorf("Incompatible: %q has a mismatched reference table", reader.Filename())
		}
	}
	return nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
