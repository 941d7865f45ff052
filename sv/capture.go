// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sv

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Captured is one Sampled Values payload read from a capture file
type Captured struct {
	Index     int // 1-based frame number in the file
	Timestamp time.Time
	Frame     *Frame
	Payload   *Payload
}

// CaptureError reports a Sampled Values frame that failed to decode.
// Reading can continue after it.
type CaptureError struct {
	Index int
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Index, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// CaptureReader reads Sampled Values payloads from a pcap or pcapng stream
type CaptureReader struct {
	source  packetSource
	decoder *Decoder
	filter  *FilterOptions
	index   int
}

// NewCaptureReader opens a capture stream. The format is detected from the
// file magic; only Ethernet captures are supported.
func NewCaptureReader(r io.Reader, decoder *Decoder, filter *FilterOptions) (*CaptureReader, error) {
	if decoder == nil {
		decoder = NewDecoder()
	}

	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	var source packetSource
	if bytes.Equal(magic, pcapngMagic) {
		source, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		source, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	if lt := source.LinkType(); lt != layers.LinkTypeEthernet {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLink, lt)
	}

	return &CaptureReader{
		source:  source,
		decoder: decoder,
		filter:  filter,
	}, nil
}

// Next returns the next payload passing the filter. Frames that are not
// Sampled Values are skipped. A malformed payload is reported as a
// *CaptureError; io.EOF marks the end of the capture and ErrTruncatedCapture
// a final record cut short.
func (c *CaptureReader) Next() (*Captured, error) {
	for {
		data, ci, err := c.source.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: record %d: %v", ErrTruncatedCapture, c.index+1, err)
			}
			return nil, err
		}
		c.index++

		frame, p, err := c.decoder.DecodeFrame(data)
		if err != nil {
			if errors.Is(err, ErrNotSampledValues) || errors.Is(err, ErrInvalidFrame) {
				continue
			}
			return nil, &CaptureError{Index: c.index, Err: err}
		}
		if !c.filter.Match(p) {
			continue
		}

		return &Captured{
			Index:     c.index,
			Timestamp: ci.Timestamp,
			Frame:     frame,
			Payload:   p,
		}, nil
	}
}
