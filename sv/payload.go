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

import "encoding/binary"

// DecodePayload decodes a Sampled Values application payload, starting at
// the APPID. Bytes past the declared length are ignored.
func DecodePayload(data []byte) (*Payload, error) {
	p := &Payload{}
	if err := decodePayload(data, p, false); err != nil {
		return nil, err
	}
	return p, nil
}

// DecodePayloadInto decodes into a caller-owned payload, resetting it first.
// On error the contents of p are undefined and must be discarded.
func DecodePayloadInto(data []byte, p *Payload) error {
	p.Reset()
	return decodePayload(data, p, false)
}

func decodePayload(data []byte, p *Payload, strict bool) error {
	if len(data) < HeaderSize {
		return badFormat(LevelPayload, ReasonShortHeader, 0, 0, len(data))
	}

	p.APPID = binary.BigEndian.Uint16(data[0:2])
	p.Length = binary.BigEndian.Uint16(data[2:4])

	end := int(p.Length)
	cursor := HeaderSize
	for cursor < end {
		tag, length, ok := readHeader(data, cursor)
		if !ok {
			return badFormat(LevelPayload, ReasonTruncated, 0, cursor, 0)
		}

		switch tag {
		case TagSavPDU, TagSeqASDU:
			// containers: step into the contents
			cursor += tlvHeaderSize

		case TagNoASDU:
			value, ok := readValue(data, cursor, length)
			if !ok {
				return badFormat(LevelPayload, ReasonTruncated, tag, cursor, length)
			}
			count, ok := readUint[uint8](value, 1)
			if !ok {
				return badFormat(LevelPayload, ReasonShortValue, tag, cursor, length)
			}
			p.NoASDU = count
			cursor += length + tlvHeaderSize

		case TagASDU:
			if p.count >= MaxASDU {
				return badFormat(LevelPayload, ReasonTooManyASDUs, tag, cursor, length)
			}
			value, ok := readValue(data, cursor, length)
			if !ok {
				return badFormat(LevelPayload, ReasonTruncated, tag, cursor, length)
			}
			if err := decodeASDU(value, cursor+tlvHeaderSize, &p.asdus[p.count]); err != nil {
				return err
			}
			p.count++
			cursor += length + tlvHeaderSize

		default:
			return badFormat(LevelPayload, ReasonUnknownTag, tag, cursor, length)
		}
	}

	if strict && cursor != end {
		return &FormatError{
			Level:  LevelPayload,
			Reason: ReasonLengthMismatch,
			Offset: cursor,
			Length: end,
		}
	}
	return nil
}
