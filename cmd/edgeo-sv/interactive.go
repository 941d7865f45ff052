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
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgeo/drivers/sv/sv"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start an interactive decoding session",
	Long: `Interactive mode provides a REPL for decoding Sampled Values by hand.

Commands:
  decode <hex>          - Decode a bare payload
  frame <hex>           - Decode an Ethernet frame
  strict [on|off]       - Show or toggle strict length checking
  metrics               - Show decoder metrics
  reset                 - Reset decoder metrics
  help                  - Show help
  exit                  - Exit interactive mode

Examples:
  sv> decode 4000 0024 0000 0000 601a 800101 ...
  sv> strict on
  sv[strict]> metrics`,

	RunE: runInteractive,
}

// session holds the REPL state
type session struct {
	out       io.Writer
	formatter *Formatter
	metrics   *sv.Metrics
	decoder   *sv.Decoder
}

func newSession(out io.Writer, strictLength bool) *session {
	s := &session{
		out:       out,
		formatter: NewFormatter(format),
		metrics:   sv.NewMetrics(),
	}
	s.formatter.SetWriter(out)
	s.setStrict(strictLength)
	return s
}

// setStrict rebuilds the decoder, keeping the metrics
func (s *session) setStrict(on bool) {
	opts := []sv.Option{sv.WithLogger(logger), sv.WithMetrics(s.metrics)}
	if on {
		opts = append(opts, sv.WithStrictLength())
	}
	s.decoder = sv.NewDecoder(opts...)
}

func (s *session) prompt() string {
	if s.decoder.Strict() {
		return "sv[strict]> "
	}
	return "sv> "
}

func runInteractive(cmd *cobra.Command, args []string) error {
	s := newSession(cmd.OutOrStdout(), strict)

	fmt.Fprintln(s.out, "Sampled Values Interactive Shell")
	fmt.Fprintln(s.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(s.out)

	return s.run(cmd.InOrStdin())
}

func (s *session) run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(s.out, s.prompt())

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !s.execute(line) {
			return nil
		}
	}

	return scanner.Err()
}

// execute runs one command line and reports whether the session continues
func (s *session) execute(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case "exit", "quit", "q":
		fmt.Fprintln(s.out, "Goodbye!")
		return false

	case "help", "?":
		printInteractiveHelp(s.out)

	case "decode", "d", "frame", "f":
		if len(parts) < 2 {
			fmt.Fprintf(s.out, "Usage: %s <hex>\n", command)
			return true
		}
		framed := command == "frame" || command == "f"
		if err := decodeHexLine(s.decoder, s.formatter, strings.Join(parts[1:], ""), framed); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}

	case "strict":
		if len(parts) < 2 {
			fmt.Fprintf(s.out, "Strict length checking is %s\n", onOff(s.decoder.Strict()))
			return true
		}
		switch strings.ToLower(parts[1]) {
		case "on", "true", "1":
			s.setStrict(true)
		case "off", "false", "0":
			s.setStrict(false)
		default:
			fmt.Fprintln(s.out, "Usage: strict [on|off]")
			return true
		}
		fmt.Fprintf(s.out, "Strict length checking %s\n", onOff(s.decoder.Strict()))

	case "metrics":
		s.formatter.PrintMetrics(s.metrics.Snapshot())

	case "reset":
		s.metrics.Reset()
		fmt.Fprintln(s.out, "Metrics reset")

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for available commands)\n", command)
	}
	return true
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printInteractiveHelp(w io.Writer) {
	fmt.Fprintln(w, `
Available commands:
  decode <hex>       Decode a bare Sampled Values payload (APPID onwards)
  frame <hex>        Decode an Ethernet frame carrying Sampled Values
  strict [on|off]    Show or toggle strict length checking
  metrics            Show decoder metrics
  reset              Reset decoder metrics
  help               Show this help message
  exit               Exit interactive mode

Hex input may contain spaces, '|', '_' or ':' separators and a 0x prefix.`)
}
