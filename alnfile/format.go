// The ALN file wire format: a BGZF-framed stream (reusing the bgzf package
// for block decode/encode, same as internal/bam.go does for BAM) containing
// a text header, a reference table, and a sequence of records.
//
// Unlike BAM, ALN records carry their sequence/quality/tags as a small
// self-contained payload rather than packed 4-bit bases and binary cigar
// ops: this format covers any sorted alignment file in general, not
// specifically BAM, so there is no existing packed encoding to carry
// forward. This payload layout is new, written in the same
// length-prefixed-field style internal/bam.go and internal/index.go use
// throughout.
package alnfile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/aln-tools/multireader/header"
	"github.com/aln-tools/multireader/reference"
)

const alnMagic = "ALN\x01"

const maximumNameLength = 1024

type decodedRecord struct {
	refID    int32
	position int32
	name     string
	payload  []byte
}

// decodeLogicalStream parses the fully-decompressed contents of an ALN
// file: magic, header text, reference table, then records read until EOF.
func decodeLogicalStream(buf []byte) (*header.Header, reference.Table, []decodedRecord, error) {
	r := bytes.NewReader(buf)

	if err := expectMagic(r, alnMagic); err != nil {
		return nil, nil, nil, err
	}

	headerLength, err := readInt32(r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading header length: %w", err)
	}
	headerBytes, err := readBytes(r, int(headerLength))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading header text: %w", err)
	}
	hdr, err := header.Parse(string(headerBytes))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parsing header: %w", err)
	}

	refCount, err := readInt32(r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading reference count: %w", err)
	}
	refs := make(reference.Table, refCount)
	for i := range refs {
		nameLength, err := readInt32(r)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading reference name length: %w", err)
		}
		if nameLength < 0 || nameLength > maximumNameLength {
			return nil, nil, nil, fmt.Errorf("invalid reference name length (%d bytes)", nameLength)
		}
		name, err := readBytes(r, int(nameLength))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading reference name: %w", err)
		}
		length, err := readUint32(r)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading reference length: %w", err)
		}
		refs[i] = reference.Entry{Name: string(name), Length: length}
	}

	var records []decodedRecord
	for {
		rec, err := decodeRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, err
		}
		records = append(records, rec)
	}
	return hdr, refs, records, nil
}

func decodeRecord(r *bytes.Reader) (decodedRecord, error) {
	refID, err := readInt32(r)
	if err == io.EOF {
		return decodedRecord{}, io.EOF
	}
	if err != nil {
		return decodedRecord{}, fmt.Errorf("reading reference id: %w", err)
	}
	position, err := readInt32(r)
	if err != nil {
		return decodedRecord{}, fmt.Errorf("reading position: %w", err)
	}
	nameLength, err := readUint16(r)
	if err != nil {
		return decodedRecord{}, fmt.Errorf("reading name length: %w", err)
	}
	name, err := readBytes(r, int(nameLength))
	if err != nil {
		return decodedRecord{}, fmt.Errorf("reading name: %w", err)
	}
	payloadLength, err := readUint32(r)
	if err != nil {
		return decodedRecord{}, fmt.Errorf("reading payload length: %w", err)
	}
	payload, err := readBytes(r, int(payloadLength))
	if err != nil {
		return decodedRecord{}, fmt.Errorf("reading payload: %w", err)
	}
	return decodedRecord{refID: refID, position: position, name: string(name), payload: payload}, nil
}

// decodePayload is installed as every record.Handle's decoder: it unpacks a
// record's sequence, quality, and tags from its opaque payload bytes.
func decodePayload(raw []byte) (sequence, quality string, tags map[string]string, err error) {
	r := bytes.NewReader(raw)

	seqLength, err := readUint32(r)
	if err != nil {
		return "", "", nil, fmt.Errorf("reading sequence length: %w", err)
	}
	seq, err := readBytes(r, int(seqLength))
	if err != nil {
		return "", "", nil, fmt.Errorf("reading sequence: %w", err)
	}

	qualLength, err := readUint32(r)
	if err != nil {
		return "", "", nil, fmt.Errorf("reading quality length: %w", err)
	}
	qual, err := readBytes(r, int(qualLength))
	if err != nil {
		return "", "", nil, fmt.Errorf("reading quality: %w", err)
	}

	tagCount, err := readUint16(r)
	if err != nil {
		return "", "", nil, fmt.Errorf("reading tag count: %w", err)
	}
	tags = make(map[string]string, tagCount)
	for i := uint16(0); i < tagCount; i++ {
		keyLength, err := r.ReadByte()
		if err != nil {
			return "", "", nil, fmt.Errorf("reading tag key length: %w", err)
		}
		key, err := readBytes(r, int(keyLength))
		if err != nil {
			return "", "", nil, fmt.Errorf("reading tag key: %w", err)
		}
		valueLength, err := readUint32(r)
		if err != nil {
			return "", "", nil, fmt.Errorf("reading tag value length: %w", err)
		}
		value, err := readBytes(r, int(valueLength))
		if err != nil {
			return "", "", nil, fmt.Errorf("reading tag value: %w", err)
		}
		tags[string(key)] = string(value)
	}
	return string(seq), string(qual), tags, nil
}

func encodePayload(sequence, quality string, tags map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint32(&buf, uint32(len(sequence))); err != nil {
		return nil, err
	}
	if err := writeString(&buf, sequence); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, uint32(len(quality))); err != nil {
		return nil, err
	}
	if err := writeString(&buf, quality); err != nil {
		return nil, err
	}
	if err := writeUint16(&buf, uint16(len(tags))); err != nil {
		return nil, err
	}
	for key, value := range tags {
		if len(key) > 255 {
			return nil, fmt.Errorf("tag key %q exceeds 255 bytes", key)
		}
		buf.WriteByte(byte(len(key)))
		if err := writeString(&buf, key); err != nil {
			return nil, err
		}
		if err := writeUint32(&buf, uint32(len(value))); err != nil {
			return nil, err
		}
		if err := writeString(&buf, value); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// RecordInput describes one record to be written by WriteFile. It is the
// fixture-building counterpart to record.Handle: production ALN files are
// not produced by this package, same as samtools-level tooling sits outside
// BamMultiReader, but tests need a concrete writer to exercise the Reader
// against real bytes.
type RecordInput struct {
	RefID    int32
	Position int32
	Name     string
	Sequence string
	Quality  string
	Tags     map[string]string
}

func encodeLogicalStream(hdr *header.Header, refs reference.Table, records []RecordInput) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, alnMagic); err != nil {
		return nil, err
	}

	headerText := hdr.String()
	if err := writeInt32(&buf, int32(len(headerText))); err != nil {
		return nil, err
	}
	if err := writeString(&buf, headerText); err != nil {
		return nil, err
	}

	if err := writeInt32(&buf, int32(len(refs))); err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if err := writeInt32(&buf, int32(len(ref.Name))); err != nil {
			return nil, err
		}
		if err := writeString(&buf, ref.Name); err != nil {
			return nil, err
		}
		if err := writeUint32(&buf, ref.Length); err != nil {
			return nil, err
		}
	}

	for _, rec := range records {
		payload, err := encodePayload(rec.Sequence, rec.Quality, rec.Tags)
		if err != nil {
			return nil, fmt.Errorf("encoding payload for %q: %w", rec.Name, err)
		}
		if err := writeInt32(&buf, rec.RefID); err != nil {
			return nil, err
		}
		if err := writeInt32(&buf, rec.Position); err != nil {
			return nil, err
		}
		if len(rec.Name) > 0xffff {
			return nil, fmt.Errorf("record name %q exceeds 65535 bytes", rec.Name)
		}
		if err := writeUint16(&buf, uint16(len(rec.Name))); err != nil {
			return nil, err
		}
		if err := writeString(&buf, rec.Name); err != nil {
			return nil, err
		}
		if err := writeUint32(&buf, uint32(len(payload))); err != nil {
			return nil, err
		}
		if _, err := buf.Write(payload); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
