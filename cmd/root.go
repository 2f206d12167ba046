// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"fmt"

	"github.com/deflucaseng/BiDShot/pkg/dshot"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Protocol flags
	motorPoles int
	speedKbaud int
)

var rootCmd = &cobra.Command{
	Use:   "bidshot",
	Short: "Bidirectional DSHOT ESC workbench",
	Long: `BiDShot - A CLI tool for driving and analyzing bidirectional DSHOT ESC links.

Provides an interactive throttle console and a scripted bench test that run
the full bidirectional protocol cycle (frame encode, inverted-line transmit,
GCR telemetry decode) against a simulated ESC, plus commands for decoding
the KISS serial telemetry stream from real hardware.

Connection modes (serial telemetry commands):
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the BIDSHOT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Protocol flags
	rootCmd.PersistentFlags().IntVar(&motorPoles, "poles", dshot.DefaultMotorPoles, "Motor pole count for eRPM to RPM conversion")
	rootCmd.PersistentFlags().IntVar(&speedKbaud, "speed", int(dshot.DefaultSpeed), "DSHOT speed variant (150, 300, 600, 1200)")
}

// selectedSpeed validates the --speed flag.
func selectedSpeed() (dshot.Speed, error) {
	s := dshot.Speed(speedKbaud)
	if !s.Valid() {
		return 0, fmt.Errorf("unsupported DSHOT speed: %d (use 150, 300, 600 or 1200)", speedKbaud)
	}
	return s, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
