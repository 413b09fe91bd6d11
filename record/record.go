// Package record defines the RecordHandle: a reusable buffer owning one
// partially-decoded ALN record plus the metadata needed to build its text
// fields on demand.
//
// The core/text split generalizes the one BamAlignment performs in
// BamMultiReaderPrivate (GetNextAlignmentCore vs GetNextAlignment /
// BuildCharData). There is no equivalent granularity anywhere else in this
// corpus: htsget only ever ships whole bgzf blocks to clients, so this is
// new code, written in the same binary-decoding idiom as internal/bam.go.
package record

// Handle owns one record's raw bytes plus whatever of it has been decoded
// so far. It is reused across reads by a single source: FileReader.NextCore
// overwrites it in place rather than allocating a new Handle per record.
type Handle struct {
	// RefID, Position, QueryName are decoded eagerly by NextCore; they are
	// the only fields merge-ordering comparisons may touch.
	RefID     int32
	Position  int32
	QueryName string

	// Raw holds the record's encoded bytes, undecoded beyond the
	// positional fields above.
	Raw []byte

	// Sequence, Quality, Tags are populated lazily by BuildText.
	Sequence string
	Quality  string
	Tags     map[string]string

	// textBuilt is true once BuildText has run for the data currently in
	// Raw; it is cleared whenever NextCore loads new bytes.
	textBuilt bool

	// Filename is set by the multireader when a record is handed to a
	// text-materializing caller; never set by NextCore.
	Filename string

	// decodeText does the actual byte-level decode of Sequence/Quality/Tags
	// from Raw. It is supplied by the owning FileReader implementation
	// (different ALN formats decode their payload differently) and is nil
	// until the FileReader first loads a record into this handle.
	decodeText func(raw []byte) (sequence, quality string, tags map[string]string, err error)
}

// SetDecoder installs the payload decoder a FileReader implementation uses
// to materialize this handle's text fields. FileReader implementations call
// it from NextCore each time they load a record into the handle.
func (h *Handle) SetDecoder(decode func(raw []byte) (sequence, quality string, tags map[string]string, err error)) {
	h.decodeText = decode
}

// Reset prepares the handle to receive a freshly decoded record,
// invalidating any previously materialized text fields.
func (h *Handle) Reset(refID, position int32, queryName string, raw []byte) {
	h.RefID = refID
	h.Position = position
	h.QueryName = queryName
	h.Raw = raw
	h.Sequence = ""
	h.Quality = ""
	h.Tags = nil
	h.textBuilt = false
}

// BuildText materializes Sequence, Quality, and Tags from Raw if they have
// not already been materialized for the record currently loaded. It is
// idempotent and a no-op if no decoder has been installed or no record is
// loaded.
func (h *Handle) BuildText() error {
	if h.textBuilt || h.decodeText == nil || h.Raw == nil {
		return nil
	}
	sequence, quality, tags, err := h.decodeText(h.Raw)
	if err != nil {
		return err
	}
	h.Sequence = sequence
	h.Quality = quality
	h.Tags = tags
	h.textBuilt = true
	return nil
}

// Copy returns a snapshot of the handle suitable for handing to a caller
// that will hold onto it after the next NextCore call overwrites Raw;
// Tags is shared (read-only by convention) rather than deep-copied.
func (h *Handle) Copy() Handle {
	out := *h
	if h.Raw != nil {
		out.Raw = append([]byte(nil), h.Raw...)
	}
	return out
}
