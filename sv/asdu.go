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

// DecodeASDU decodes the TLV stream of exactly one ASDU into a.
//
// Fields that are absent keep whatever a already holds; pass a zeroed ASDU
// for a clean result. On error the contents of a are undefined.
func DecodeASDU(data []byte, a *ASDU) error {
	return decodeASDU(data, 0, a)
}

// decodeASDU walks data as a flat TLV sequence. base is the offset of data
// within the enclosing payload and only affects reported error offsets.
func decodeASDU(data []byte, base int, a *ASDU) error {
	cursor := 0
	for cursor < len(data) {
		tag, length, ok := readHeader(data, cursor)
		if !ok {
			return badFormat(LevelASDU, ReasonTruncated, data[cursor], base+cursor, 0)
		}
		value, ok := readValue(data, cursor, length)
		if !ok {
			return badFormat(LevelASDU, ReasonTruncated, tag, base+cursor, length)
		}

		fail := func(reason Reason) error {
			return badFormat(LevelASDU, reason, tag, base+cursor, length)
		}

		switch tag {
		case TagSvID:
			if length > MaxSvIDLength {
				return fail(ReasonCapacityExceeded)
			}
			a.svIDLen = uint8(copy(a.svID[:], value))
			a.mark(FieldSvID)

		case TagDatSet:
			if length > MaxDatSetLength {
				return fail(ReasonCapacityExceeded)
			}
			a.datSetLen = uint8(copy(a.datSet[:], value))
			a.mark(FieldDatSet)

		case TagSmpCnt:
			v, ok := readUint[uint16](value, 2)
			if !ok {
				return fail(ReasonShortValue)
			}
			a.SmpCnt = v
			a.mark(FieldSmpCnt)

		case TagConfRev:
			v, ok := readUint[uint32](value, 4)
			if !ok {
				return fail(ReasonShortValue)
			}
			a.ConfRev = v
			a.mark(FieldConfRev)

		case TagRefrTm:
			v, ok := readUint[uint64](value, 8)
			if !ok {
				return fail(ReasonShortValue)
			}
			a.RefrTm = v
			a.mark(FieldRefrTm)

		case TagSmpSynch:
			v, ok := readUint[uint8](value, 1)
			if !ok {
				return fail(ReasonShortValue)
			}
			a.SmpSynch = SmpSynch(v)
			a.mark(FieldSmpSynch)

		case TagSmpRate:
			v, ok := readUint[uint16](value, 2)
			if !ok {
				return fail(ReasonShortValue)
			}
			a.SmpRate = v
			a.mark(FieldSmpRate)

		case TagSeqData:
			if length > MaxSeqDataLength {
				return fail(ReasonCapacityExceeded)
			}
			a.seqDataLen = uint8(copy(a.seqData[:], value))
			a.mark(FieldSeqData)

		case TagSmpMod:
			v, ok := readUint[uint8](value, 1)
			if !ok {
				return fail(ReasonShortValue)
			}
			a.SmpMod = SmpMod(v)
			a.mark(FieldSmpMod)

		default:
			return fail(ReasonUnknownTag)
		}

		cursor += length + tlvHeaderSize
	}
	return nil
}
