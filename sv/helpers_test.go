package sv

import (
	"bytes"
	"encoding/binary"
)

func tlv(tag byte, value ...byte) []byte {
	return append([]byte{tag, byte(len(value))}, value...)
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func be16(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

func be32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func be64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

// testASDU encodes a typical 9-2LE style ASDU
func testASDU(svID string, smpCnt uint16) []byte {
	return concat(
		tlv(TagSvID, []byte(svID)...),
		tlv(TagSmpCnt, be16(smpCnt)...),
		tlv(TagConfRev, be32(1)...),
		tlv(TagSmpSynch, 2),
		tlv(TagSeqData, bytes.Repeat([]byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}, 2)...),
	)
}

// buildPayload wraps ASDU encodings in seqASDU and savPDU and prefixes the
// header. Container lengths are written modulo 256 since the decoder does
// not use them.
func buildPayload(appID uint16, noASDU uint8, asdus ...[]byte) []byte {
	var seq []byte
	for _, a := range asdus {
		seq = append(seq, TagASDU, byte(len(a)))
		seq = append(seq, a...)
	}
	apdu := concat(
		tlv(TagNoASDU, noASDU),
		[]byte{TagSeqASDU, byte(len(seq))},
		seq,
	)
	pdu := concat([]byte{TagSavPDU, byte(len(apdu))}, apdu)
	return concat(be16(appID), be16(uint16(HeaderSize+len(pdu))), []byte{0, 0, 0, 0}, pdu)
}

// buildFrame wraps a payload in an Ethernet header, optionally VLAN tagged
func buildFrame(payload []byte, vlanID uint16, priority uint8, tagged bool) []byte {
	frame := []byte{
		0x01, 0x0C, 0xCD, 0x04, 0x00, 0x01, // destination
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // source
	}
	if tagged {
		frame = append(frame, 0x81, 0x00)
		frame = append(frame, be16(uint16(priority)<<13|vlanID&0x0FFF)...)
	}
	frame = append(frame, be16(EtherTypeSV)...)
	return append(frame, payload...)
}
