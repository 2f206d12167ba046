// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package blackbox

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Reader iterates over the records of a log stream.
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and validates the header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)

	var hdr Header
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("blackbox: read header: %w", err)
	}
	if hdr.Version != FormatVersion {
		return nil, fmt.Errorf("blackbox: unsupported log version %d", hdr.Version)
	}
	return &Reader{dec: dec, header: hdr}, nil
}

// Header returns the stream header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("blackbox: read record: %w", err)
	}
	return rec, nil
}
