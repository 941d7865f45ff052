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
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/edgeo/drivers/sv/sv"
)

var decodeFrame bool

var decodeCmd = &cobra.Command{
	Use:   "decode [hex]",
	Short: "Decode a Sampled Values payload given as hex",
	Long: `Decode parses one Sampled Values payload (APPID onwards) given as hex.

Whitespace, '|' and '_' separators and a 0x prefix are ignored. Without an
argument, one hex string per line is read from stdin and lines that fail to
decode are reported on stderr.

Examples:
  # Decode a bare payload
  edgeo-sv decode "4000 0024 0000 0000 601a ..."

  # Decode a full Ethernet frame
  edgeo-sv decode --frame 010ccd040001001122334455 88ba4000...

  # Decode a file of hex dumps as JSON lines
  edgeo-sv decode -o json < payloads.txt`,

	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeFrame, "frame", false, "Input is an Ethernet frame rather than a bare payload")
}

func runDecode(cmd *cobra.Command, args []string) error {
	decoder := createDecoder()
	f := newFormatter(cmd)

	if len(args) == 1 {
		return decodeHexLine(decoder, f, args[0], decodeFrame)
	}
	return decodeLines(cmd.InOrStdin(), decoder, f, decodeFrame)
}

// decodeLines decodes one hex string per line, skipping blank lines and
// # comments. It returns an error only when reading the input fails.
func decodeLines(r io.Reader, decoder *sv.Decoder, f *Formatter, framed bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := decodeHexLine(decoder, f, text, framed); err != nil {
			logger.Error("decode failed",
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
		}
	}
	return scanner.Err()
}

func decodeHexLine(decoder *sv.Decoder, f *Formatter, input string, framed bool) error {
	data, err := parseHex(input)
	if err != nil {
		return err
	}

	if framed {
		frame, p, err := decoder.DecodeFrame(data)
		if err != nil {
			return err
		}
		return f.PrintPayload(NewPayloadView(p).WithFrame(frame))
	}

	p, err := decoder.Decode(data)
	if err != nil {
		return err
	}
	return f.PrintPayload(NewPayloadView(p))
}

// parseHex decodes a hex dump, tolerating separators and a 0x prefix
func parseHex(input string) ([]byte, error) {
	clean := strings.ToUpper(stripSeparators(input))
	clean = strings.TrimPrefix(clean, "0X")
	if clean == "" {
		return nil, fmt.Errorf("empty hex input")
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex input must contain an even number of digits, got %d", len(clean))
	}
	decoded := make([]byte, len(clean)/2)
	if _, err := hex.Decode(decoded, []byte(clean)); err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded, nil
}

func stripSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '|' || r == '_' || r == ':' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
