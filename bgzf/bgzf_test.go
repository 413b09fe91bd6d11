// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bgzf

import (
	"bytes"
	"io/ioutil"
	"testing"
)

func TestDecodeBlock(t *testing.T) {
	// Read test data to memory and use a ByteReader so that the gzip reader
	// doesn't read too many bytes (it does if the reader only implements Read).
	input, err := ioutil.ReadFile("testdata/tiny.bam")
	if err != nil {
		t.Fatalf("Failed to read test data: %v", err)
	}
	r := bytes.NewReader(input)

	blocks := []struct {
		bsize uint16
		isize uint16
	}{
		{223, 296}, /* Header */
		{420, 827}, /* Data */
		{28, 0},    /* EOF marker */
	}
	for i, block := range blocks {
		data, length, err := DecodeBlock(r)
		if err != nil {
			t.Fatalf("Failed to read block %d: %v", i, err)
		}

		if got, want := length, block.bsize; got != want {
			t.Errorf("Wrong compressed block length: got %d, want %d", got, want)
		}

		if got, want := uint16(len(data)), block.isize; got != want {
			t.Errorf("Wrong uncompressed data length: got %d, want %d", got, want)
		}
	}
}

func TestEncodeBlock_ValidInputs(t *testing.T) {
	testCases := []struct {
		name       string
		data, want []byte
	}{
		{"empty block (EOF marker, embedded zlib sync marker)", nil, []byte{
			0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
			0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
			0x1e, 0x00, 0x01, 0x00, 0x00, 0xff, 0xff, 0x00,
			0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		}},
		{"single byte block", []byte{0x42}, []byte{
			0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
			0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
			0x20, 0x00, 0x72, 0x02, 0x04, 0x00, 0x00, 0xff,
			0xff, 0x31, 0xcf, 0xd0, 0x4a, 0x01, 0x00, 0x00,
			0x00,
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeBlock(tc.data)
			if err != nil {
				t.Fatalf("Failed to write block: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("WriteBlock(): got %x, want %x", got, tc.want)
			}
		})
	}
}

func TestEncodeBlock_BlockSizes(t *testing.T) {
	if _, err := EncodeBlock(make([]byte, MaximumBlockSize+1)); err == nil {
		t.Fatal("EncodeBlock() should fail with block over size limit but didn't")
	}
	if _, err := EncodeBlock(make([]byte, MaximumBlockSize)); err != nil {
		t.Fatal("EncodeBlock() should succeed with block at size limit but didn't")
	}
}
