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
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrBadFormat        = errors.New("sv: bad format")
	ErrNotSampledValues = errors.New("sv: frame does not carry sampled values")
	ErrInvalidFrame     = errors.New("sv: invalid ethernet frame")
	ErrUnsupportedLink  = errors.New("sv: unsupported capture link type")
	ErrTruncatedCapture = errors.New("sv: capture truncated")
	ErrListenerClosed   = errors.New("sv: listener closed")
	ErrAlreadyListening = errors.New("sv: already listening")
)

// Level tells which decoder rejected the input
type Level uint8

const (
	LevelPayload Level = iota
	LevelASDU
)

func (l Level) String() string {
	switch l {
	case LevelPayload:
		return "payload"
	case LevelASDU:
		return "asdu"
	default:
		return fmt.Sprintf("level(%d)", l)
	}
}

// Reason describes why a payload was rejected
type Reason uint8

const (
	ReasonShortHeader Reason = iota
	ReasonTruncated
	ReasonUnknownTag
	ReasonCapacityExceeded
	ReasonTooManyASDUs
	ReasonShortValue
	ReasonLengthMismatch

	numReasons
)

func (r Reason) String() string {
	names := map[Reason]string{
		ReasonShortHeader:      "short-header",
		ReasonTruncated:        "truncated",
		ReasonUnknownTag:       "unknown-tag",
		ReasonCapacityExceeded: "capacity-exceeded",
		ReasonTooManyASDUs:     "too-many-asdus",
		ReasonShortValue:       "short-value",
		ReasonLengthMismatch:   "length-mismatch",
	}
	if name, ok := names[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", r)
}

// FormatError is returned for every malformed payload. It wraps ErrBadFormat.
type FormatError struct {
	Level  Level
	Reason Reason
	Tag    byte
	Offset int // absolute offset of the offending TLV in the decoded buffer
	Length int // declared length of the offending TLV
}

func (e *FormatError) Error() string {
	switch e.Reason {
	case ReasonShortHeader:
		return fmt.Sprintf("sv: bad format: %s: %d bytes", e.Reason, e.Length)
	case ReasonLengthMismatch:
		return fmt.Sprintf("sv: bad format: %s: stopped at offset %d, declared %d", e.Reason, e.Offset, e.Length)
	}
	return fmt.Sprintf("sv: bad format: %s tag 0x%02X at offset %d (length %d): %s",
		e.Level, e.Tag, e.Offset, e.Length, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return ErrBadFormat
}

func badFormat(level Level, reason Reason, tag byte, offset, length int) *FormatError {
	return &FormatError{
		Level:  level,
		Reason: reason,
		Tag:    tag,
		Offset: offset,
		Length: length,
	}
}

// IsBadFormat returns true if the error is a decode failure
func IsBadFormat(err error) bool {
	return errors.Is(err, ErrBadFormat)
}

// ReasonOf extracts the rejection reason from a decode error
func ReasonOf(err error) (Reason, bool) {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Reason, true
	}
	return 0, false
}
