// Package alnfile is a concrete FileReader (package filereader) backed by a
// BGZF-framed file on local disk, generalized from internal/bam.go and
// internal/csi.go: reference table parsing and index chunk resolution
// follow their shape, while record-level decode (record.Handle's core/text
// split) and the index's write side are new, since neither
// internal/bam.go nor internal/csi.go needs either one - they only ever
// proxy whole BGZF blocks to an htsget client and read indexes samtools
// already built.
//
// Reader decodes an entire file into memory at Open rather than streaming
// blocks on demand. FileReader is an external collaborator interface with
// no constraints on internal implementation, so the simplification is
// confined to this package: Jump and SetRegion still honor the same
// best-effort, index-optional contract the interface promises.
package alnfile

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/aln-tools/multireader/bgzf"
	"github.com/aln-tools/multireader/filereader"
	"github.com/aln-tools/multireader/header"
	"github.com/aln-tools/multireader/record"
	"github.com/aln-tools/multireader/reference"
)

// Reader implements filereader.FileReader over a single ALN file.
type Reader struct {
	filename string
	open     bool

	hdr     *header.Header
	refs    reference.Table
	records []decodedRecord
	cursor  int
	region  *filereader.Region

	hasIndex bool
	idx      *fileIndex

	cacheMode filereader.IndexCacheMode
}

// NewReader returns an unopened Reader. Its signature matches
// multireader.NewReaderFunc, so it can be passed directly to
// MultiReader.Open.
func NewReader() filereader.FileReader {
	return &Reader{}
}

// Open reads and fully decodes path's BGZF stream, parsing its header,
// reference table, and records.
func (r *Reader) Open(path string) error {
	buf, err := decodeAllBlocks(path)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	hdr, refs, records, err := decodeLogicalStream(buf)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	r.filename = path
	r.hdr = hdr
	r.refs = refs
	r.records = records
	r.cursor = 0
	r.region = nil
	r.hasIndex = false
	r.idx = nil
	r.open = true
	return nil
}

// Close implements filereader.FileReader.
func (r *Reader) Close() error {
	r.open = false
	return nil
}

// IsOpen implements filereader.FileReader.
func (r *Reader) IsOpen() bool { return r.open }

// Filename implements filereader.FileReader.
func (r *Reader) Filename() string { return r.filename }

// Header implements filereader.FileReader.
func (r *Reader) Header() *header.Header { return r.hdr }

// ReferenceData implements filereader.FileReader.
func (r *Reader) ReferenceData() reference.Table { return r.refs }

// ReferenceCount implements filereader.FileReader.
func (r *Reader) ReferenceCount() int { return len(r.refs) }

// ReferenceID implements filereader.FileReader.
func (r *Reader) ReferenceID(name string) int32 { return r.refs.ID(name) }

// NextCore implements filereader.FileReader.
func (r *Reader) NextCore(handle *record.Handle) bool {
	if !r.open || r.cursor >= len(r.records) {
		return false
	}
	rec := r.records[r.cursor]
	if r.region != nil && !beforeRegionEnd(rec, *r.region) {
		return false
	}
	r.cursor++
	handle.SetDecoder(decodePayload)
	handle.Reset(rec.refID, rec.position, rec.name, rec.payload)
	return true
}

// Rewind implements filereader.FileReader.
func (r *Reader) Rewind() error {
	r.cursor = 0
	r.region = nil
	return nil
}

// Jump implements filereader.FileReader.
func (r *Reader) Jump(refID int32, pos int32) bool {
	if !r.open {
		return false
	}
	r.region = nil
	idx := sort.Search(len(r.records), func(i int) bool {
		rec := r.records[i]
		return !lessCoord(rec.refID, rec.position, refID, pos)
	})
	r.cursor = idx
	return idx < len(r.records)
}

// SetRegion implements filereader.FileReader.
func (r *Reader) SetRegion(region filereader.Region) bool {
	if !r.open {
		return false
	}

	start := 0
	if r.hasIndex && r.idx != nil {
		if sp, ok := r.idx.recordSpan(region); ok {
			start = sp.Start
		}
	}
	offset := sort.Search(len(r.records)-start, func(i int) bool {
		rec := r.records[start+i]
		return !lessCoord(rec.refID, rec.position, region.LeftRefID, region.LeftPos)
	})
	idx := start + offset

	r.region = &region
	r.cursor = idx
	return idx < len(r.records) && beforeRegionEnd(r.records[idx], region)
}

// HasIndex implements filereader.FileReader.
func (r *Reader) HasIndex() bool { return r.hasIndex }

// LocateIndex implements filereader.FileReader. It looks for the
// conventional ".alx" sidecar next to the open file; preferred is ignored,
// since this package only ever produces one index format.
func (r *Reader) LocateIndex(preferred filereader.IndexType) bool {
	return r.OpenIndex(r.filename + ".alx")
}

// CreateIndex implements filereader.FileReader by building a binning index
// from the already-decoded records and writing it to the conventional
// ".alx" sidecar path. kind is ignored for the same reason as LocateIndex.
func (r *Reader) CreateIndex(kind filereader.IndexType) bool {
	if !r.open {
		return false
	}
	idx := buildIndex(len(r.refs), r.records)

	f, err := os.Create(r.filename + ".alx")
	if err != nil {
		return false
	}
	defer f.Close()
	if err := writeIndex(f, idx); err != nil {
		return false
	}

	r.idx = idx
	r.hasIndex = true
	return true
}

// OpenIndex implements filereader.FileReader.
func (r *Reader) OpenIndex(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	idx, err := readIndex(f)
	if err != nil {
		return false
	}
	r.idx = idx
	r.hasIndex = true
	return true
}

// SetIndexCacheMode implements filereader.FileReader. This reference
// implementation keeps its entire index resident regardless of mode; the
// setting is recorded only so callers can observe it was forwarded.
func (r *Reader) SetIndexCacheMode(mode filereader.IndexCacheMode) {
	r.cacheMode = mode
}

func lessCoord(refA, posA, refB, posB int32) bool {
	if refA != refB {
		return refA < refB
	}
	return posA < posB
}

func beforeRegionEnd(rec decodedRecord, region filereader.Region) bool {
	return lessCoord(rec.refID, rec.position, region.RightRefID, region.RightPos)
}

// decodeAllBlocks decodes every BGZF block in path, in order, into one
// buffer. Each block is decoded from a fresh io.SectionReader bounded to
// the remainder of the file rather than read incrementally off a shared
// cursor: DecodeBlock's gzip.Reader may consume bytes past the end of a
// block if its input does not implement io.ByteReader (as *os.File does
// not), so the only offset trusted between iterations is the compressed
// block length DecodeBlock itself reports - the same pattern block.go uses
// to chain multi-block reads.
func decodeAllBlocks(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	var out []byte
	var offset int64
	for offset < size {
		section := io.NewSectionReader(f, offset, size-offset)
		data, length, err := bgzf.DecodeBlock(section)
		if err != nil {
			return nil, fmt.Errorf("decoding block at offset %d: %w", offset, err)
		}
		out = append(out, data...)
		offset += int64(length)
	}
	return out, nil
}

// WriteFile serializes hdr, refs, and records as a BGZF-framed ALN file at
// path, splitting the logical byte stream into blocks no larger than
// bgzf.MaximumBlockSize. It exists to produce fixtures for this package's
// tests and any caller that needs to materialize an ALN file rather than
// just read one; the core and the FileReader interface have no write path.
func WriteFile(path string, hdr *header.Header, refs reference.Table, records []RecordInput) error {
	buf, err := encodeLogicalStream(hdr, refs, records)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for offset := 0; offset < len(buf); {
		end := offset + bgzf.MaximumBlockSize
		if end > len(buf) {
			end = len(buf)
		}
		block, err := bgzf.EncodeBlock(buf[offset:end])
		if err != nil {
			return fmt.Errorf("encoding block: %w", err)
		}
		if _, err := f.Write(block); err != nil {
			return err
		}
		offset = end
	}
	if len(buf) == 0 {
		block, err := bgzf.EncodeBlock(nil)
		if err != nil {
			return fmt.Errorf("encoding empty block: %w", err)
		}
		if _, err := f.Write(block); err != nil {
			return err
		}
	}
	return nil
}
