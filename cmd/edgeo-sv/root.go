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
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo/drivers/sv/sv"
)

const version = "1.0.0"

var (
	cfgFile   string
	outputFmt string
	verbose   bool
	strict    bool

	format OutputFormat
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "edgeo-sv",
	Short: "An IEC 61850-9-2 Sampled Values decoder CLI",
	Long: `edgeo-sv decodes IEC 61850-9-2 Sampled Values payloads.

It decodes hex dumps, reads pcap/pcapng captures and listens for Sampled
Values tunnelled over UDP, printing every APDU and its ASDUs.

Examples:
  # Decode a payload given as hex
  edgeo-sv decode 4000002400000000601a800101a215301380044d55303182020001830400000001850102

  # Decode every SV frame in a capture
  edgeo-sv read -f merging-unit.pcapng --appid 0x4000

  # Listen for tunnelled frames and expose metrics
  edgeo-sv listen --addr 0.0.0.0:10200 --framed --metrics-addr :9102`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		outputFmt = viper.GetString("output")
		verbose = viper.GetBool("verbose")
		strict = viper.GetBool("strict")

		f, err := ParseOutputFormat(outputFmt)
		if err != nil {
			return err
		}
		format = f

		// Setup logger
		logLevel := slog.LevelInfo
		if verbose {
			logLevel = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))

		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.edgeo-sv.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format (table, json, csv, yaml, raw)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Reject payloads whose TLV walk overruns the declared length (trailing padding is still ignored)")

	// Bind flags to viper
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("strict", rootCmd.PersistentFlags().Lookup("strict"))

	// Add subcommands
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(interactiveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".edgeo-sv")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SV")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// decoderOptions returns the library options for the current configuration
func decoderOptions(extra ...sv.Option) []sv.Option {
	opts := []sv.Option{sv.WithLogger(logger)}
	if strict {
		opts = append(opts, sv.WithStrictLength())
	}
	return append(opts, extra...)
}

// createDecoder creates a decoder with current configuration
func createDecoder(extra ...sv.Option) *sv.Decoder {
	return sv.NewDecoder(decoderOptions(extra...)...)
}

// newFormatter returns a formatter writing to the command output
func newFormatter(cmd *cobra.Command) *Formatter {
	f := NewFormatter(format)
	f.SetWriter(cmd.OutOrStdout())
	return f
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "edgeo-sv version %s\n", version)
	},
}
