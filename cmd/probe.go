// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/deflucaseng/BiDShot/pkg/esctelem"
	"github.com/spf13/cobra"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a valid telemetry packet",
	Long: `Wait for a valid KISS telemetry packet on the connection until timeout.

This command connects to a serial port or WebSocket and waits for a
complete 10-byte telemetry packet passing its CRC check. Stray bytes
before the first packet boundary show up as CRC failures and are
counted, not fatal.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for checking ESC telemetry wiring or a WebSocket telemetry bridge.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runProbe(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("BiDShot - Telemetry Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for valid telemetry packet...\n\n")

	decoder := esctelem.NewDecoder()
	buf := make([]byte, 128)

	// Channel for packet reception
	readingChan := make(chan *esctelem.Reading, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		crcFailures := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				reading, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					// Unaligned stream bytes surface as CRC failures
					crcFailures++
					continue
				}
				if reading != nil {
					// Got a valid packet!
					if crcFailures > 0 {
						fmt.Printf("(discarded %d corrupt packets before sync)\n", crcFailures)
					}
					readingChan <- reading
					return
				}
			}
		}
	}()

	// Wait for packet or timeout
	select {
	case reading := <-readingChan:
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Temperature: %d C\n", reading.Temperature())
		fmt.Printf("  Voltage:     %.2f V\n", reading.Voltage())
		fmt.Printf("  Current:     %.2f A\n", reading.Current())
		fmt.Printf("  Consumption: %d mAh\n", reading.Consumption())
		fmt.Printf("  eRPM:        %d (%d RPM at %d poles)\n", reading.ERPM(), reading.RPM(motorPoles), motorPoles)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
