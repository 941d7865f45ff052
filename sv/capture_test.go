package sv

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, linkType layers.LinkType, frames ...[]byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65535, linkType))

	ts := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * 250 * time.Microsecond),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return &buf
}

func TestCaptureReader(t *testing.T) {
	ipv4 := concat(make([]byte, 12), []byte{0x08, 0x00}, make([]byte, 20))
	capture := writeCapture(t, layers.LinkTypeEthernet,
		buildFrame(buildPayload(0x4000, 1, testASDU("MU01", 1)), 0, 0, false),
		ipv4,
		buildFrame(buildPayload(0x4000, 1, tlv(0x99)), 0, 0, false),
		buildFrame(buildPayload(0x4001, 1, testASDU("MU02", 2)), 5, 4, true),
	)

	d := NewDecoder()
	r, err := NewCaptureReader(capture, d, nil)
	require.NoError(t, err)

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "MU01", first.Payload.ASDUs()[0].SvID())
	assert.Equal(t, 2024, first.Timestamp.Year())

	_, err = r.Next()
	var ce *CaptureError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Index)
	assert.ErrorIs(t, err, ErrBadFormat)

	last, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 4, last.Index)
	assert.Equal(t, uint16(0x4001), last.Payload.APPID)
	assert.Equal(t, uint16(5), last.Frame.VLANID)

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))

	snap := d.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.PayloadsDecoded)
	assert.Equal(t, int64(1), snap.PayloadsFailed)
	assert.Equal(t, int64(1), snap.FramesSkipped)
}

func TestCaptureReaderFilter(t *testing.T) {
	frames := [][]byte{
		buildFrame(buildPayload(0x4000, 1, testASDU("MU01", 1)), 0, 0, false),
		buildFrame(buildPayload(0x4001, 1, testASDU("MU02", 1)), 0, 0, false),
		buildFrame(buildPayload(0x4000, 2, testASDU("MU03", 1), testASDU("MU02", 1)), 0, 0, false),
	}

	tt := []struct {
		desc    string
		filter  *FilterOptions
		indices []int
	}{
		{desc: "no filter", indices: []int{1, 2, 3}},
		{desc: "appid", filter: NewFilter(WithAPPID(0x4000)), indices: []int{1, 3}},
		{desc: "svid", filter: NewFilter(WithSvID("MU02")), indices: []int{2, 3}},
		{desc: "both", filter: NewFilter(WithAPPID(0x4001), WithSvID("MU02")), indices: []int{2}},
		{desc: "none", filter: NewFilter(WithSvID("nope"))},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			r, err := NewCaptureReader(writeCapture(t, layers.LinkTypeEthernet, frames...), nil, tc.filter)
			require.NoError(t, err)

			var got []int
			for {
				c, err := r.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				got = append(got, c.Index)
			}
			assert.Equal(t, tc.indices, got)
		})
	}
}

func TestCaptureReaderTruncated(t *testing.T) {
	capture := writeCapture(t, layers.LinkTypeEthernet,
		buildFrame(buildPayload(0x4000, 1, testASDU("MU01", 1)), 0, 0, false),
		buildFrame(buildPayload(0x4000, 1, testASDU("MU01", 2)), 0, 0, false),
	)
	data := capture.Bytes()

	tt := []struct {
		desc string
		cut  int
	}{
		{desc: "inside record data", cut: 5},
		// all of the second frame and half of its 16-byte record header
		{desc: "inside record header", cut: len(buildPayload(0x4000, 1, testASDU("MU01", 2))) + 14 + 8},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			r, err := NewCaptureReader(bytes.NewReader(data[:len(data)-tc.cut]), nil, nil)
			require.NoError(t, err)

			first, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, 1, first.Index)

			_, err = r.Next()
			require.ErrorIs(t, err, ErrTruncatedCapture)
			assert.False(t, errors.Is(err, io.EOF))
			assert.Contains(t, err.Error(), "record 2")
		})
	}
}

func TestCaptureReaderUnsupportedLink(t *testing.T) {
	_, err := NewCaptureReader(writeCapture(t, layers.LinkTypeRaw), nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedLink)
}

func TestCaptureReaderGarbage(t *testing.T) {
	_, err := NewCaptureReader(bytes.NewReader([]byte("not a capture file at all")), nil, nil)
	assert.Error(t, err)

	_, err = NewCaptureReader(bytes.NewReader(nil), nil, nil)
	assert.Error(t, err)
}
