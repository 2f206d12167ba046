// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/deflucaseng/BiDShot/pkg/blackbox"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log <file>",
	Short: "Dump a blackbox run log in human-readable format",
	Long: `Decode a blackbox file written by the control or bench commands.

Prints the session header, one line per telemetry record, and a closing
summary with the link statistics from the end of the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := blackbox.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read log header: %v", err)
	}

	hdr := r.Header()
	fmt.Printf("BiDShot run log: %s\n", args[0])
	fmt.Printf("Started: %s\n", hdr.StartedAt.Format(time.RFC3339))
	fmt.Printf("Protocol: DSHOT%d, %d poles\n", hdr.Speed, hdr.MotorPoles)
	if hdr.Note != "" {
		fmt.Printf("Note: %s\n", hdr.Note)
	}
	fmt.Println()

	var (
		count int
		last  blackbox.Record
	)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed after %d records: %v", count, err)
		}
		count++
		last = rec

		marker := " "
		if !rec.Valid {
			marker = "!"
		}
		fmt.Printf("%8.3fs %s throttle=%-4d rpm=%-6d erpm=%-7d period=%dus\n",
			float64(rec.OffsetMs)/1000, marker, rec.Throttle, rec.RPM, rec.ERPM, rec.PeriodMicros)
	}

	fmt.Printf("\n%d records", count)
	if count > 0 {
		fmt.Printf(" over %.1fs", float64(last.OffsetMs)/1000)
		if last.FrameCount > 0 {
			fmt.Printf("; link: %d frames, %d ok, %d errors (%.1f%% success)",
				last.FrameCount, last.SuccessCount, last.ErrorCount,
				float64(last.SuccessCount)*100/float64(last.FrameCount))
		}
	}
	fmt.Println()
	return nil
}
