// Binning index support for ALN files.
//
// The bin-width math (binsForRange) is carried over unchanged from
// internal/index.go's generalized CSI-style scheme: a minimum bin width
// (minShift) and a fixed number of hierarchical levels (depth), the same
// parameterization internal/csi.Reader plugs into that engine. That package
// only ever reads an index samtools already built; this one also has to
// build one, so reg2bin (the write-side inverse of binsForRange) is new
// code following the same scheme, ported from the reg2bin pseudocode in the
// CSI index specification (http://samtools.github.io/hts-specs/CSIv1.pdf).
//
// One further simplification: Reader decodes an entire ALN file into memory
// at Open rather than streaming BGZF blocks on demand, so its index chunks
// address spans of the in-memory record slice rather than BGZF virtual file
// offsets. The bin hierarchy itself is unchanged; only what a "chunk" points
// at is simplified.
package alnfile

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/aln-tools/multireader/filereader"
)

const (
	alxMagic = "ALX\x01"

	indexMinShift = 14
	indexDepth    = 5
)

// span is a half-open range [Start, End) of indices into a Reader's
// in-memory record slice.
type span struct {
	Start, End int
}

type indexBin struct {
	ID     uint32
	Chunks []span
}

type referenceIndex struct {
	Bins []indexBin
}

// fileIndex is the parsed form of an .alx sidecar: one referenceIndex per
// reference sequence, in reference-table order.
type fileIndex struct {
	MinShift, Depth int32
	References      []referenceIndex
}

// buildIndex groups records by bin, assuming records is already ordered by
// (refID, position) - the same precondition the CSI format itself carries.
func buildIndex(refs int, records []decodedRecord) *fileIndex {
	idx := &fileIndex{MinShift: indexMinShift, Depth: indexDepth, References: make([]referenceIndex, refs)}

	type key struct {
		ref int32
		bin uint32
	}
	spans := make(map[key]*span)
	var order []key

	for i, r := range records {
		if r.refID < 0 || int(r.refID) >= refs {
			continue
		}
		bin := reg2bin(uint32(r.position), uint32(r.position)+1, indexMinShift, indexDepth)
		k := key{ref: r.refID, bin: bin}
		if s, ok := spans[k]; ok {
			s.End = i + 1
		} else {
			spans[k] = &span{Start: i, End: i + 1}
			order = append(order, k)
		}
	}

	byRef := make(map[int32][]indexBin)
	for _, k := range order {
		byRef[k.ref] = append(byRef[k.ref], indexBin{ID: k.bin, Chunks: []span{*spans[k]}})
	}
	for ref, bins := range byRef {
		idx.References[ref] = referenceIndex{Bins: bins}
	}
	return idx
}

// writeIndex serializes idx to w as a single gzip member, mirroring the way
// internal/csi.Read wraps its CSI payload in a plain gzip stream (as opposed
// to the multi-block BGZF framing used for data files).
func writeIndex(w io.Writer, idx *fileIndex) error {
	gz := gzip.NewWriter(w)
	if err := writeString(gz, alxMagic); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := writeInt32(gz, idx.MinShift); err != nil {
		return err
	}
	if err := writeInt32(gz, idx.Depth); err != nil {
		return err
	}
	if err := writeInt32(gz, 0); err != nil { // auxiliary length, unused
		return err
	}
	if err := writeInt32(gz, int32(len(idx.References))); err != nil {
		return err
	}
	for _, ref := range idx.References {
		if err := writeInt32(gz, int32(len(ref.Bins))); err != nil {
			return err
		}
		for _, bin := range ref.Bins {
			if err := writeUint32(gz, bin.ID); err != nil {
				return err
			}
			if err := writeInt32(gz, int32(len(bin.Chunks))); err != nil {
				return err
			}
			for _, c := range bin.Chunks {
				if err := writeUint64(gz, uint64(c.Start)); err != nil {
					return err
				}
				if err := writeUint64(gz, uint64(c.End)); err != nil {
					return err
				}
			}
		}
	}
	return gz.Close()
}

// readIndex parses an .alx sidecar previously produced by writeIndex.
func readIndex(r io.Reader) (*fileIndex, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening index gzip stream: %w", err)
	}
	defer gz.Close()

	if err := expectMagic(gz, alxMagic); err != nil {
		return nil, err
	}
	idx := &fileIndex{}
	if idx.MinShift, err = readInt32(gz); err != nil {
		return nil, fmt.Errorf("reading min shift: %w", err)
	}
	if idx.Depth, err = readInt32(gz); err != nil {
		return nil, fmt.Errorf("reading depth: %w", err)
	}
	auxLen, err := readInt32(gz)
	if err != nil {
		return nil, fmt.Errorf("reading auxiliary length: %w", err)
	}
	if _, err := io.CopyN(io.Discard, gz, int64(auxLen)); err != nil {
		return nil, fmt.Errorf("reading past auxiliary data: %w", err)
	}
	refCount, err := readInt32(gz)
	if err != nil {
		return nil, fmt.Errorf("reading reference count: %w", err)
	}
	idx.References = make([]referenceIndex, refCount)
	for i := range idx.References {
		binCount, err := readInt32(gz)
		if err != nil {
			return nil, fmt.Errorf("reading bin count: %w", err)
		}
		bins := make([]indexBin, binCount)
		for j := range bins {
			id, err := readUint32(gz)
			if err != nil {
				return nil, fmt.Errorf("reading bin id: %w", err)
			}
			chunkCount, err := readInt32(gz)
			if err != nil {
				return nil, fmt.Errorf("reading chunk count: %w", err)
			}
			chunks := make([]span, chunkCount)
			for k := range chunks {
				start, err := readUint64(gz)
				if err != nil {
					return nil, fmt.Errorf("reading chunk start: %w", err)
				}
				end, err := readUint64(gz)
				if err != nil {
					return nil, fmt.Errorf("reading chunk end: %w", err)
				}
				chunks[k] = span{Start: int(start), End: int(end)}
			}
			bins[j] = indexBin{ID: id, Chunks: chunks}
		}
		idx.References[i] = referenceIndex{Bins: bins}
	}
	return idx, nil
}

// recordSpan returns the union of chunk spans whose bins can possibly
// overlap region, narrowing the authoritative in-memory binary search in
// Reader.SetRegion. It is purely an optimization: Reader never trusts the
// index for correctness, only as a hint.
func (idx *fileIndex) recordSpan(region filereader.Region) (span, bool) {
	if region.LeftRefID != region.RightRefID || region.LeftRefID < 0 || int(region.LeftRefID) >= len(idx.References) {
		return span{}, false
	}
	bins := binsForRange(uint32(region.LeftPos), uint32(region.RightPos), idx.MinShift, idx.Depth)
	wanted := make(map[uint32]bool, len(bins))
	for _, b := range bins {
		wanted[uint32(b)] = true
	}

	found := false
	var out span
	for _, bin := range idx.References[region.LeftRefID].Bins {
		if !wanted[bin.ID] {
			continue
		}
		for _, c := range bin.Chunks {
			if !found {
				out = c
				found = true
				continue
			}
			if c.Start < out.Start {
				out.Start = c.Start
			}
			if c.End > out.End {
				out.End = c.End
			}
		}
	}
	return out, found
}

// binsForRange enumerates the candidate bin ids a region of [start, end)
// could fall into, across every level of the hierarchy. Ported directly
// from internal/index.go's generalized implementation (itself derived from
// the C examples in the CSI index specification), parameterized the same
// way by minShift/depth.
func binsForRange(start, end uint32, minShift, depth int32) []uint16 {
	maxWidth := uint32(1) << uint32(minShift+depth*3)
	if end == 0 || end > maxWidth {
		end = maxWidth
	}
	if end <= start || start > maxWidth {
		return nil
	}

	end--
	var bins []uint16
	for l, t, s := uint(0), uint(0), uint(minShift+depth*3); l <= uint(depth); l++ {
		b := t + (uint(start) >> s)
		e := t + (uint(end) >> s)
		for i := b; i <= e; i++ {
			bins = append(bins, uint16(i))
		}
		s -= 3
		t += 1 << (l * 3)
	}
	return bins
}

// reg2bin returns the smallest bin that fully contains [beg, end), the
// write-side counterpart to binsForRange. Ported from the reg2bin
// pseudocode in the CSI index specification.
func reg2bin(beg, end uint32, minShift, depth int32) uint32 {
	end--
	s := minShift
	t := ((int64(1) << uint(depth*3)) - 1) / 7
	for l := depth; l > 0; l-- {
		if beg>>uint(s) == end>>uint(s) {
			return uint32(t) + (beg >> uint(s))
		}
		s += 3
		t -= int64(1) << uint((l-1)*3)
	}
	return 0
}
