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

// Package sv decodes IEC 61850-9-2 Sampled Values application payloads.
//
// A payload starts with an 8-byte header (APPID, length, two reserved words)
// followed by a short-form TLV stream: the savPDU and seqASDU containers, the
// noASDU count and up to MaxASDU nested ASDU records. Only single-byte lengths
// are understood; a length byte is read as a plain count of 0-255 bytes, so
// BER long-form lengths are not supported and will misparse.
package sv

import (
	"encoding/binary"
	"fmt"
)

// EtherTypeSV is the EtherType assigned to IEC 61850-9-2 Sampled Values
const EtherTypeSV = 0x88BA

// HeaderSize is the APPID, length and reserved words preceding the savPDU
const HeaderSize = 8

// MaxASDU is the number of ASDU records a payload can hold
const MaxASDU = 8

// Capacities of the variable-length ASDU fields
const (
	MaxSvIDLength    = 34
	MaxDatSetLength  = 130
	MaxSeqDataLength = 64
)

// Payload level tags
const (
	TagSavPDU  byte = 0x60
	TagNoASDU  byte = 0x80
	TagSeqASDU byte = 0xA2
	TagASDU    byte = 0x30
)

// ASDU level tags
const (
	TagSvID     byte = 0x80
	TagDatSet   byte = 0x81
	TagSmpCnt   byte = 0x82
	TagConfRev  byte = 0x83
	TagRefrTm   byte = 0x84
	TagSmpSynch byte = 0x85
	TagSmpRate  byte = 0x86
	TagSeqData  byte = 0x87
	TagSmpMod   byte = 0x88
)

// Field identifies an ASDU field
type Field uint8

const (
	FieldSvID Field = iota
	FieldDatSet
	FieldSmpCnt
	FieldConfRev
	FieldRefrTm
	FieldSmpSynch
	FieldSmpRate
	FieldSeqData
	FieldSmpMod
)

func (f Field) String() string {
	names := map[Field]string{
		FieldSvID:     "svID",
		FieldDatSet:   "datSet",
		FieldSmpCnt:   "smpCnt",
		FieldConfRev:  "confRev",
		FieldRefrTm:   "refrTm",
		FieldSmpSynch: "smpSynch",
		FieldSmpRate:  "smpRate",
		FieldSeqData:  "seqData",
		FieldSmpMod:   "smpMod",
	}
	if name, ok := names[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", f)
}

// SmpSynch is the clock synchronisation source of the publisher
type SmpSynch uint8

const (
	SmpSynchNone   SmpSynch = 0
	SmpSynchLocal  SmpSynch = 1
	SmpSynchGlobal SmpSynch = 2
)

func (s SmpSynch) String() string {
	switch s {
	case SmpSynchNone:
		return "none"
	case SmpSynchLocal:
		return "local"
	case SmpSynchGlobal:
		return "global"
	default:
		return fmt.Sprintf("grandmaster(%d)", uint8(s))
	}
}

// SmpMod is the unit of the sample rate
type SmpMod uint8

const (
	SmpModSamplesPerPeriod SmpMod = 0
	SmpModSamplesPerSecond SmpMod = 1
	SmpModSecondsPerSample SmpMod = 2
)

func (m SmpMod) String() string {
	switch m {
	case SmpModSamplesPerPeriod:
		return "samples-per-period"
	case SmpModSamplesPerSecond:
		return "samples-per-second"
	case SmpModSecondsPerSample:
		return "seconds-per-sample"
	default:
		return fmt.Sprintf("smp-mod(%d)", uint8(m))
	}
}

// ASDU is one Sampled Values data unit.
//
// The variable-length fields live in fixed arrays sized to their wire
// capacity; an ASDU never allocates and is comparable with ==.
type ASDU struct {
	svID       [MaxSvIDLength]byte
	svIDLen    uint8
	datSet     [MaxDatSetLength]byte
	datSetLen  uint8
	seqData    [MaxSeqDataLength]byte
	seqDataLen uint8

	SmpCnt   uint16
	ConfRev  uint32
	RefrTm   uint64
	SmpSynch SmpSynch
	SmpRate  uint16
	SmpMod   SmpMod

	present uint16
}

// SvID returns the subscription identifier
func (a *ASDU) SvID() string {
	return string(a.svID[:a.svIDLen])
}

// DatSet returns the data set reference
func (a *ASDU) DatSet() string {
	return string(a.datSet[:a.datSetLen])
}

// SeqData returns the raw sample bytes. The slice aliases the ASDU.
func (a *ASDU) SeqData() []byte {
	return a.seqData[:a.seqDataLen]
}

// Has reports whether the field was present on the wire
func (a *ASDU) Has(f Field) bool {
	return a.present&(1<<f) != 0
}

// Fields returns the fields present on the wire in tag order
func (a *ASDU) Fields() []Field {
	var fields []Field
	for f := FieldSvID; f <= FieldSmpMod; f++ {
		if a.Has(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

func (a *ASDU) mark(f Field) {
	a.present |= 1 << f
}

// SampleSize is the encoded size of one 9-2LE measurement: INT32 value and quality
const SampleSize = 8

// Sample is one measured value with its quality word
type Sample struct {
	Value   int32
	Quality uint32
}

// Validity returns the two validity bits of the quality word
func (s Sample) Validity() uint8 {
	return uint8(s.Quality & 0x03)
}

// Samples splits the sequence data into value/quality pairs. A trailing
// partial pair is ignored.
func (a *ASDU) Samples() []Sample {
	data := a.SeqData()
	samples := make([]Sample, 0, len(data)/SampleSize)
	for off := 0; off+SampleSize <= len(data); off += SampleSize {
		samples = append(samples, Sample{
			Value:   int32(binary.BigEndian.Uint32(data[off : off+4])),
			Quality: binary.BigEndian.Uint32(data[off+4 : off+8]),
		})
	}
	return samples
}

// Payload is one decoded Sampled Values message
type Payload struct {
	APPID  uint16
	Length uint16
	NoASDU uint8

	asdus [MaxASDU]ASDU
	count int
}

// ASDUs returns the decoded records in wire order. The slice aliases the payload.
func (p *Payload) ASDUs() []ASDU {
	return p.asdus[:p.count]
}

// Count returns the number of ASDU records actually decoded, which may
// differ from the declared NoASDU
func (p *Payload) Count() int {
	return p.count
}

// Reset clears the payload so it can be reused as a decode destination
func (p *Payload) Reset() {
	*p = Payload{}
}

func (p *Payload) String() string {
	return fmt.Sprintf("APPID=0x%04X length=%d noASDU=%d asdus=%d", p.APPID, p.Length, p.NoASDU, p.count)
}
