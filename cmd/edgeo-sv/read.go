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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edgeo/drivers/sv/sv"
)

var (
	readFile  string
	readAPPID string
	readSvID  string
	readLimit int
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Decode Sampled Values frames from a capture file",
	Long: `Read decodes every Sampled Values frame (EtherType 0x88BA) in a pcap or
pcapng capture. Other traffic is skipped. Frames that fail to decode are
reported on stderr and reading continues.

Examples:
  # Print every payload in a capture
  edgeo-sv read -f merging-unit.pcapng

  # Only one stream, first 100 payloads, as CSV
  edgeo-sv read -f capture.pcap --appid 0x4000 --svid MU01 --limit 100 -o csv`,

	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVarP(&readFile, "file", "f", "", "Capture file (pcap or pcapng)")
	readCmd.Flags().StringVar(&readAPPID, "appid", "", "Only payloads with this APPID (e.g., 0x4000)")
	readCmd.Flags().StringVar(&readSvID, "svid", "", "Only payloads carrying an ASDU with this svID")
	readCmd.Flags().IntVar(&readLimit, "limit", 0, "Stop after this many payloads (0 = no limit)")

	readCmd.MarkFlagRequired("file")
}

// readSummary counts what a capture run produced
type readSummary struct {
	Printed   int
	Failed    int
	Skipped   int64
	Truncated bool
}

func runRead(cmd *cobra.Command, args []string) error {
	filter, err := buildFilter(readAPPID, readSvID)
	if err != nil {
		return err
	}

	file, err := os.Open(readFile)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer file.Close()

	summary, err := readCapture(file, createDecoder(), filter, newFormatter(cmd), readLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\n%d payload(s) printed, %d failed, %d frame(s) skipped\n",
		summary.Printed, summary.Failed, summary.Skipped)
	if summary.Truncated {
		return fmt.Errorf("%s: %w", readFile, sv.ErrTruncatedCapture)
	}
	return nil
}

func readCapture(r io.Reader, decoder *sv.Decoder, filter *sv.FilterOptions, f *Formatter, limit int) (readSummary, error) {
	var summary readSummary

	reader, err := sv.NewCaptureReader(r, decoder, filter)
	if err != nil {
		return summary, fmt.Errorf("read capture: %w", err)
	}

	for limit <= 0 || summary.Printed < limit {
		captured, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, sv.ErrTruncatedCapture) {
			summary.Truncated = true
			logger.Warn("capture ends mid-record", slog.String("error", err.Error()))
			break
		}
		var captureErr *sv.CaptureError
		if errors.As(err, &captureErr) {
			summary.Failed++
			logger.Warn("frame rejected",
				slog.Int("frame", captureErr.Index),
				slog.String("error", captureErr.Err.Error()),
			)
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("read capture: %w", err)
		}

		view := NewPayloadView(captured.Payload).WithFrame(captured.Frame)
		view.Frame = captured.Index
		ts := captured.Timestamp
		view.Timestamp = &ts
		if err := f.PrintPayload(view); err != nil {
			return summary, err
		}
		summary.Printed++
	}

	summary.Skipped = decoder.Metrics().FramesSkipped.Value()
	return summary, nil
}

// buildFilter turns the --appid and --svid flags into a payload filter
func buildFilter(appID, svID string) (*sv.FilterOptions, error) {
	var opts []sv.FilterOption
	if appID != "" {
		v, err := strconv.ParseUint(appID, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid APPID %q: %w", appID, err)
		}
		opts = append(opts, sv.WithAPPID(uint16(v)))
	}
	if svID != "" {
		opts = append(opts, sv.WithSvID(svID))
	}
	if len(opts) == 0 {
		return nil, nil
	}
	return sv.NewFilter(opts...), nil
}
