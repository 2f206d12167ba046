// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/deflucaseng/BiDShot/pkg/blackbox"
	"github.com/deflucaseng/BiDShot/pkg/dshot"
	"github.com/spf13/cobra"
)

var (
	benchMaxRPM     uint32
	benchDwell      int
	benchLogPath    string
	benchMinSuccess float64
)

// benchSteps are the throttle offsets above minimum the staircase
// visits, in order.
var benchSteps = []uint16{0, 100, 300, 500, 700, 1000}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a scripted throttle staircase and report link statistics",
	Long: `Drive the simulated ESC through an arm sequence and a throttle
staircase, printing decoded telemetry along the way.

The run arms the ESC (a second of zero-throttle frames, then beeps),
holds six rising throttle steps at a 50Hz frame rate, ramps back down
in small decrements, and prints frame statistics for the whole run.

Exit codes:
  0 - Run completed with an acceptable success rate
  1 - Success rate below --min-success
  2 - Setup error

With --log, every fresh telemetry sample is appended to a blackbox
file for later inspection with the log command.`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().Uint32Var(&benchMaxRPM, "max-rpm", 15000, "Simulated motor RPM at full throttle")
	benchCmd.Flags().IntVar(&benchDwell, "dwell", 1, "Seconds to hold each throttle step")
	benchCmd.Flags().StringVar(&benchLogPath, "log", "", "Write a blackbox run log to this file")
	benchCmd.Flags().Float64Var(&benchMinSuccess, "min-success", 90, "Minimum telemetry success rate in percent")
}

func runBench(cmd *cobra.Command, args []string) error {
	rig, rigInfo, err := openESCRig(benchMaxRPM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup error: %v\n", err)
		os.Exit(2)
	}

	var bb *blackbox.Writer
	if benchLogPath != "" {
		f, err := os.Create(benchLogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Setup error: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()

		bb, err = blackbox.NewWriter(f, blackbox.Header{
			Speed:      int(rig.speed),
			MotorPoles: rig.poles,
			Note:       "bench staircase",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Setup error: %v\n", err)
			os.Exit(2)
		}
	}

	fmt.Printf("BiDShot - Bench Test\n")
	fmt.Printf("Target: %s\n", rigInfo)
	fmt.Printf("Dwell: %d second(s) per step\n\n", benchDwell)

	fmt.Println("Arming ESC...")
	rig.armSequence()
	fmt.Println("Armed.")

	var bbErr error
	framesPerStep := benchDwell * 50

	for _, offset := range benchSteps {
		throttle := dshot.ThrottleMin + offset
		fmt.Printf("\nThrottle %d:\n", throttle)

		for i := 0; i < framesPerStep; i++ {
			rig.eng.SendThrottle(throttle)
			rig.pump(20 * time.Millisecond)

			if rig.eng.TelemetryAvailable() {
				telem := rig.eng.Telemetry()
				if bb != nil {
					if err := bb.Log(throttle, telem); err != nil && bbErr == nil {
						bbErr = err
					}
				}
				if i%10 == 9 {
					fmt.Printf("  rpm=%-6d erpm=%-7d period=%dus\n", telem.RPM, telem.ERPM, telem.PeriodMicros)
				}
			}
		}

		// Let the motor settle between steps
		rig.pump(500 * time.Millisecond)
	}

	// Ramp back down gently before stopping
	fmt.Printf("\nRamping down...\n")
	for throttle := dshot.ThrottleMin + benchSteps[len(benchSteps)-1]; throttle > dshot.ThrottleMin; throttle -= 50 {
		for i := 0; i < 10; i++ {
			rig.eng.SendThrottle(throttle)
			rig.pump(10 * time.Millisecond)
		}
	}

	// Stop the motor
	for i := 0; i < 20; i++ {
		rig.eng.SendThrottle(0)
		rig.pump(10 * time.Millisecond)
	}

	telem := rig.eng.Telemetry()
	fmt.Printf("\n--- DSHOT link statistics ---\n")
	fmt.Printf("Frames sent:  %d\n", telem.FrameCount)
	fmt.Printf("Successful:   %d\n", telem.SuccessCount)
	fmt.Printf("Errors:       %d\n", telem.ErrorCount)
	fmt.Printf("Success rate: %.1f%%\n", telem.SuccessRate())
	fmt.Printf("ESC frames:   %d received, %d rejected\n", rig.sim.FramesReceived(), rig.sim.BadFrames())

	if bbErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: blackbox log incomplete: %v\n", bbErr)
	}

	if telem.SuccessRate() < benchMinSuccess {
		fmt.Fprintf(os.Stderr, "\nFAIL: success rate %.1f%% below %.1f%%\n", telem.SuccessRate(), benchMinSuccess)
		os.Exit(1)
	}

	fmt.Println("\nOK")
	return nil
}
