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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeo/drivers/sv/sv"
)

var (
	listenAddr        string
	listenFramed      bool
	listenMetricsAddr string
	listenTimeout     time.Duration
	listenBufferSize  int
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Decode Sampled Values received over UDP",
	Long: `Listen binds a UDP socket and decodes every datagram as a Sampled Values
payload, or as a full Ethernet frame with --framed. Multicast addresses are
joined automatically.

Examples:
  # Bare payloads on port 10200
  edgeo-sv listen --addr 0.0.0.0:10200

  # Tunnelled Ethernet frames with a Prometheus endpoint
  edgeo-sv listen --addr 239.192.0.1:10200 --framed --metrics-addr :9102`,

	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenAddr, "addr", "0.0.0.0:10200", "UDP address to listen on")
	listenCmd.Flags().BoolVar(&listenFramed, "framed", false, "Datagrams carry Ethernet frames")
	listenCmd.Flags().StringVar(&listenMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	listenCmd.Flags().DurationVar(&listenTimeout, "read-timeout", 100*time.Millisecond, "Socket read timeout")
	listenCmd.Flags().IntVar(&listenBufferSize, "buffer-size", 1522, "Receive buffer size")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nStopping listener...")
			cancel()
		case <-ctx.Done():
		}
	}()

	f := newFormatter(cmd)
	var mu sync.Mutex
	handler := func(msg *sv.Message) {
		view := NewPayloadView(msg.Payload).WithFrame(msg.Frame)
		if msg.Frame == nil && msg.From != nil {
			view.Source = msg.From.String()
		}
		now := time.Now()
		view.Timestamp = &now

		mu.Lock()
		defer mu.Unlock()
		if err := f.PrintPayload(view); err != nil {
			logger.Error("print failed", slog.String("error", err.Error()))
		}
	}

	listener := sv.NewListener(listenAddr, handler, decoderOptions(
		sv.WithFramed(listenFramed),
		sv.WithReadTimeout(listenTimeout),
		sv.WithBufferSize(listenBufferSize),
	)...)

	if err := listener.Start(ctx); err != nil {
		return fmt.Errorf("start listener: %w", err)
	}
	defer listener.Close()

	if listenMetricsAddr != "" {
		go func() {
			if err := serveMetrics(ctx, listenMetricsAddr, listener.Metrics()); err != nil {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	fmt.Fprintf(os.Stderr, "Listening on %s\n", listener.LocalAddr())
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop")

	if err := listener.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	snap := listener.Metrics().Snapshot()
	fmt.Fprintf(os.Stderr, "%d datagram(s) received, %d payload(s) decoded, %d rejected\n",
		snap.DatagramsReceived, snap.PayloadsDecoded, snap.PayloadsFailed)
	return nil
}
