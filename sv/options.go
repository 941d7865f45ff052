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
	"log/slog"
	"time"
)

// decoderOptions holds configuration for the decoder and listener
type decoderOptions struct {
	// Decoding
	strictLength bool

	// Listener
	framed      bool
	readTimeout time.Duration
	bufferSize  int

	metrics *Metrics
	logger  *slog.Logger
}

// defaultOptions returns the default decoder options
func defaultOptions() *decoderOptions {
	return &decoderOptions{
		readTimeout: 100 * time.Millisecond,
		bufferSize:  1522, // VLAN tagged Ethernet MTU
		logger:      slog.Default(),
	}
}

// Option is a functional option for configuring a Decoder or Listener
type Option func(*decoderOptions)

// WithStrictLength rejects payloads whose TLV walk does not end exactly at
// the declared length
func WithStrictLength() Option {
	return func(o *decoderOptions) {
		o.strictLength = true
	}
}

// WithFramed makes the listener treat datagrams as complete Ethernet frames
// instead of bare payloads
func WithFramed(framed bool) Option {
	return func(o *decoderOptions) {
		o.framed = framed
	}
}

// WithReadTimeout sets the listener poll interval
func WithReadTimeout(d time.Duration) Option {
	return func(o *decoderOptions) {
		o.readTimeout = d
	}
}

// WithBufferSize sets the largest datagram the listener accepts
func WithBufferSize(n int) Option {
	return func(o *decoderOptions) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithMetrics shares a metrics instance between decoders
func WithMetrics(m *Metrics) Option {
	return func(o *decoderOptions) {
		o.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *decoderOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// FilterOptions selects payloads by stream identity
type FilterOptions struct {
	APPID *uint16
	SvID  string
}

// FilterOption is a functional option for payload filters
type FilterOption func(*FilterOptions)

// WithAPPID keeps only payloads with the given APPID
func WithAPPID(appID uint16) FilterOption {
	return func(o *FilterOptions) {
		o.APPID = &appID
	}
}

// WithSvID keeps only payloads carrying an ASDU with the given svID
func WithSvID(svID string) FilterOption {
	return func(o *FilterOptions) {
		o.SvID = svID
	}
}

// NewFilter builds a filter from options
func NewFilter(opts ...FilterOption) *FilterOptions {
	f := &FilterOptions{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Match reports whether the payload passes the filter. A nil filter matches everything.
func (f *FilterOptions) Match(p *Payload) bool {
	if f == nil {
		return true
	}
	if f.APPID != nil && p.APPID != *f.APPID {
		return false
	}
	if f.SvID == "" {
		return true
	}
	asdus := p.ASDUs()
	for i := range asdus {
		if asdus[i].SvID() == f.SvID {
			return true
		}
	}
	return false
}
