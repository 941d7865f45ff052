package main

import (
	"encoding/hex"
	"io"
	"log/slog"
	"testing"
)

// APPID 0x4000, one ASDU: svID MU01, smpCnt 1, confRev 1, smpSynch global
const testPayloadHex = "4000002400000000601a800101a215301380044d55303182020001830400000001850102"

// testPayloadHex with a declared length of 11, so the noASDU TLV runs past it
const overrunPayloadHex = "4000000b00000000601a800101a215301380044d55303182020001830400000001850102"

// Header followed by an unknown tag
const badPayloadHex = "4000000a000000009900"

const testFrameHeaderHex = "010ccd040001" + "001122334455" + "88ba"

func setupTest(t *testing.T, f OutputFormat) {
	t.Helper()
	prevLogger, prevFormat, prevStrict := logger, format, strict
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	format = f
	strict = false
	t.Cleanup(func() {
		logger, format, strict = prevLogger, prevFormat, prevStrict
	})
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex decode: %v", err)
	}
	return b
}
