package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo/drivers/sv/sv"
)

func TestParseHex(t *testing.T) {
	tt := []struct {
		desc    string
		input   string
		want    []byte
		wantErr bool
	}{
		{desc: "plain", input: "40000024", want: []byte{0x40, 0x00, 0x00, 0x24}},
		{desc: "lower case", input: "a2ff", want: []byte{0xA2, 0xFF}},
		{desc: "spaces and newlines", input: " 40 00\n00\t24 ", want: []byte{0x40, 0x00, 0x00, 0x24}},
		{desc: "separators", input: "40|00_00:24", want: []byte{0x40, 0x00, 0x00, 0x24}},
		{desc: "0x prefix", input: "0x4000", want: []byte{0x40, 0x00}},
		{desc: "0X prefix", input: "0X4000", want: []byte{0x40, 0x00}},
		{desc: "odd digits", input: "400", wantErr: true},
		{desc: "not hex", input: "zz", wantErr: true},
		{desc: "empty", input: "  ", wantErr: true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := parseHex(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeHexLine(t *testing.T) {
	setupTest(t, FormatJSON)

	var out bytes.Buffer
	f := NewFormatter(FormatJSON)
	f.SetWriter(&out)

	require.NoError(t, decodeHexLine(createDecoder(), f, testPayloadHex, false))

	var view PayloadView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "0x4000", view.APPID)
	assert.Equal(t, uint16(36), view.Length)
	assert.Equal(t, uint8(1), view.NoASDU)
	require.Len(t, view.ASDUs, 1)
	assert.Equal(t, "MU01", view.ASDUs[0].SvID)
	assert.Equal(t, uint16(1), view.ASDUs[0].SmpCnt)
	assert.Equal(t, uint32(1), view.ASDUs[0].ConfRev)
	assert.Equal(t, "global", view.ASDUs[0].SmpSynch)
	assert.Empty(t, view.Source)
}

func TestDecodeHexLineFrame(t *testing.T) {
	setupTest(t, FormatJSON)

	var out bytes.Buffer
	f := NewFormatter(FormatJSON)
	f.SetWriter(&out)

	require.NoError(t, decodeHexLine(createDecoder(), f, testFrameHeaderHex+testPayloadHex, true))

	var view PayloadView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "00:11:22:33:44:55", view.Source)
	assert.Nil(t, view.VLAN)
	require.Len(t, view.ASDUs, 1)
}

func TestDecodeHexLineErrors(t *testing.T) {
	setupTest(t, FormatJSON)
	f := NewFormatter(FormatJSON)
	f.SetWriter(&bytes.Buffer{})

	err := decodeHexLine(createDecoder(), f, badPayloadHex, false)
	require.ErrorIs(t, err, sv.ErrBadFormat)

	ipv4 := "010ccd040001" + "001122334455" + "0800" + testPayloadHex
	err = decodeHexLine(createDecoder(), f, ipv4, true)
	require.ErrorIs(t, err, sv.ErrNotSampledValues)

	err = decodeHexLine(createDecoder(), f, "4", false)
	require.Error(t, err)
}

func TestDecodeHexLineStrict(t *testing.T) {
	setupTest(t, FormatRaw)

	tt := []struct {
		desc     string
		input    string
		strict   bool
		mismatch bool
	}{
		{desc: "lenient padding", input: testPayloadHex + "0000"},
		{desc: "strict padding", input: testPayloadHex + "0000", strict: true},
		{desc: "lenient overrun", input: overrunPayloadHex},
		{desc: "strict overrun", input: overrunPayloadHex, strict: true, mismatch: true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			strict = tc.strict
			f := NewFormatter(FormatRaw)
			f.SetWriter(&bytes.Buffer{})

			err := decodeHexLine(createDecoder(), f, tc.input, false)
			if !tc.mismatch {
				require.NoError(t, err)
				return
			}
			reason, ok := sv.ReasonOf(err)
			require.True(t, ok)
			assert.Equal(t, sv.ReasonLengthMismatch, reason)
		})
	}
}

func TestDecodeLines(t *testing.T) {
	setupTest(t, FormatJSON)

	input := strings.Join([]string{
		"# captured from MU01",
		testPayloadHex,
		"",
		badPayloadHex,
		"0x" + testPayloadHex,
	}, "\n")

	var out bytes.Buffer
	f := NewFormatter(FormatJSON)
	f.SetWriter(&out)

	decoder := createDecoder()
	require.NoError(t, decodeLines(strings.NewReader(input), decoder, f, false))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, int64(2), decoder.Metrics().PayloadsDecoded.Value())
	assert.Equal(t, int64(1), decoder.Metrics().PayloadsFailed.Value())
}
