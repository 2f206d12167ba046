// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/deflucaseng/BiDShot/pkg/esctelem"
	"github.com/spf13/cobra"
)

var monitorStatsInterval int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display the ESC serial telemetry stream in human-readable format",
	Long: `Continuously decode and display KISS telemetry packets as they arrive.

Each packet prints with a timestamp, temperature, voltage, current,
consumption and RPM (derived from eRPM via --poles). A statistics
summary prints periodically and when the connection closes.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Seconds between statistics summaries (0 disables)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("BiDShot - Telemetry Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := esctelem.NewDecoder()
	stats := esctelem.NewStats()
	buf := make([]byte, 128)
	lastStats := time.Now()

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				fmt.Print(stats.String())
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			reading, err := decoder.DecodeByte(buf[i])
			if reading == nil && err == nil {
				continue // mid-packet byte
			}
			stats.Update(reading, err)

			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			fmt.Printf("[%s] %s  rpm=%d\n",
				reading.Timestamp().Format("15:04:05.000"),
				reading, reading.RPM(motorPoles))
		}

		if monitorStatsInterval > 0 && time.Since(lastStats) >= time.Duration(monitorStatsInterval)*time.Second {
			lastStats = time.Now()
			fmt.Print(stats.String())
		}
	}
}
