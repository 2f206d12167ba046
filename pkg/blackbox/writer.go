// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package blackbox

import (
	"fmt"
	"io"
	"time"

	"github.com/deflucaseng/BiDShot/pkg/dshot"
	"github.com/fxamacker/cbor/v2"
)

// Writer appends telemetry records to a log stream.
type Writer struct {
	enc   *cbor.Encoder
	start time.Time
}

// NewWriter writes the header and returns a writer for the records.
// The header's Version and StartedAt are filled in here.
func NewWriter(w io.Writer, hdr Header) (*Writer, error) {
	hdr.Version = FormatVersion
	hdr.StartedAt = time.Now()

	enc := cbor.NewEncoder(w)
	if err := enc.Encode(hdr); err != nil {
		return nil, fmt.Errorf("blackbox: write header: %w", err)
	}
	return &Writer{enc: enc, start: hdr.StartedAt}, nil
}

// Append writes one record
func (w *Writer) Append(rec Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("blackbox: write record: %w", err)
	}
	return nil
}

// Log snapshots the telemetry record at the current throttle and
// appends it, stamped with the offset from the stream start.
func (w *Writer) Log(throttle uint16, telem dshot.Telemetry) error {
	return w.Append(Record{
		OffsetMs:     uint32(time.Since(w.start) / time.Millisecond),
		Throttle:     throttle,
		PeriodMicros: telem.PeriodMicros,
		ERPM:         telem.ERPM,
		RPM:          telem.RPM,
		FrameCount:   telem.FrameCount,
		SuccessCount: telem.SuccessCount,
		ErrorCount:   telem.ErrorCount,
		Valid:        telem.Valid,
	})
}
