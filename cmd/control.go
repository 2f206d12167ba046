// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deflucaseng/BiDShot/pkg/blackbox"
	"github.com/deflucaseng/BiDShot/pkg/dshot"
	"github.com/spf13/cobra"
)

var (
	controlMaxRPM  uint32
	controlLogPath string
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving an ESC over bidirectional DSHOT",
	Long: `Drive a simulated ESC from an interactive terminal UI.

The full protocol cycle runs continuously: throttle frames go out at
50Hz, the line turns around after each frame, and the GCR telemetry
response is captured and decoded. The TUI shows the decoded RPM next
to the simulator's actual motor speed, plus per-frame link statistics.

Keys:
  +/-  step the throttle by 50
  0    cut the throttle to minimum
  t    type an exact throttle value
  a    run the arm sequence (zero-throttle burst, then beeps)
  b    queue a burst of beep commands
  s    log a statistics snapshot
  q    quit

With --log, every fresh telemetry sample is appended to a blackbox
file for later inspection with the log command.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().Uint32Var(&controlMaxRPM, "max-rpm", 15000, "Simulated motor RPM at full throttle")
	controlCmd.Flags().StringVar(&controlLogPath, "log", "", "Write a blackbox run log to this file")
}

// escDriver owns the protocol loop. It services the engine state
// machine at millisecond cadence, keeps the command frame rate at
// 50Hz (100Hz while arming), and batches telemetry updates to the TUI.
type escDriver struct {
	rig *escRig

	mu       sync.Mutex
	throttle uint16 // commanded value; ThrottleMin means stopped
	beeps    int    // queued one-shot beep commands
	armZeros int    // remaining zero-throttle arm frames
	armBeeps int    // remaining arm beep frames
	settleMs int    // remaining idle time after the arm burst

	bb       *blackbox.Writer
	bbFailed bool

	p    *tea.Program
	done chan struct{}
}

func (d *escDriver) setThrottle(value uint16) uint16 {
	if value < dshot.ThrottleMin {
		value = dshot.ThrottleMin
	}
	if value > dshot.ThrottleMax {
		value = dshot.ThrottleMax
	}
	d.mu.Lock()
	d.throttle = value
	d.mu.Unlock()
	return value
}

func (d *escDriver) adjustThrottle(delta int) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := int(d.throttle) + delta
	if v < dshot.ThrottleMin {
		v = dshot.ThrottleMin
	}
	if v > dshot.ThrottleMax {
		v = dshot.ThrottleMax
	}
	d.throttle = uint16(v)
	return d.throttle
}

func (d *escDriver) queueBeeps(n int) {
	d.mu.Lock()
	d.beeps += n
	d.mu.Unlock()
}

// startArm resets the throttle and schedules the arm sequence: 100
// zero-throttle frames and 10 beeps at 10ms spacing, then 500ms idle.
func (d *escDriver) startArm() {
	d.mu.Lock()
	d.throttle = dshot.ThrottleMin
	d.armZeros = 100
	d.armBeeps = 10
	d.settleMs = 500
	d.mu.Unlock()
}

func (d *escDriver) run() {
	tickTicker := time.NewTicker(time.Millisecond)
	defer tickTicker.Stop()
	batchTicker := time.NewTicker(50 * time.Millisecond)
	defer batchTicker.Stop()

	sinceFrame := 0
	for {
		select {
		case <-d.done:
			return

		case <-tickTicker.C:
			d.rig.eng.Update()
			sinceFrame++
			if sinceFrame >= d.frameIntervalMs() {
				sinceFrame = 0
				d.sendNextFrame()
			}

		case <-batchTicker.C:
			d.p.Send(d.snapshot())
		}
	}
}

// frameIntervalMs is 10 during the arm burst, 20 otherwise.
func (d *escDriver) frameIntervalMs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.armZeros > 0 || d.armBeeps > 0 {
		return 10
	}
	return 20
}

// Frame kinds picked by sendNextFrame
const (
	frameNone = iota
	frameThrottle
	frameBeep
)

// sendNextFrame picks the next frame by priority: arm burst, settle
// pause, queued beeps, then the steady throttle command.
func (d *escDriver) sendNextFrame() {
	d.mu.Lock()
	kind := frameNone
	var value uint16
	notifyArmed := false

	switch {
	case d.armZeros > 0:
		d.armZeros--
		kind = frameThrottle
		value = 0

	case d.armBeeps > 0:
		d.armBeeps--
		kind = frameBeep

	case d.settleMs > 0:
		// Line idles while the ESC settles after the arm burst.
		d.settleMs -= 20
		if d.settleMs <= 0 {
			d.settleMs = 0
			notifyArmed = true
		}

	case d.beeps > 0:
		d.beeps--
		kind = frameBeep

	default:
		kind = frameThrottle
		value = d.throttle
	}
	d.mu.Unlock()

	if kind != frameNone && d.rig.eng.Ready() {
		if kind == frameBeep {
			d.rig.eng.SendCommand(dshot.CmdBeep1)
		} else {
			d.rig.eng.SendThrottle(value)
		}
	}
	if notifyArmed {
		d.p.Send(armCompleteMsg{})
	}
}

// snapshot gathers the engine and simulator state for one TUI update,
// appending to the blackbox log when a fresh sample arrived.
func (d *escDriver) snapshot() controlBatchMsg {
	d.mu.Lock()
	throttle := d.throttle
	arming := d.armZeros > 0 || d.armBeeps > 0 || d.settleMs > 0
	d.mu.Unlock()

	telem := d.rig.eng.Telemetry()
	fresh := d.rig.eng.TelemetryAvailable()

	if d.bb != nil && fresh && !d.bbFailed {
		if err := d.bb.Log(throttle, telem); err != nil {
			d.bbFailed = true
			d.p.Send(driverLogMsg{message: fmt.Sprintf("Blackbox write failed: %v", err), isError: true})
		}
	}

	return controlBatchMsg{
		telem:     telem,
		fresh:     fresh,
		throttle:  throttle,
		arming:    arming,
		simRPM:    d.rig.sim.RPM(),
		simFrames: d.rig.sim.FramesReceived(),
		simBad:    d.rig.sim.BadFrames(),
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	rig, rigInfo, err := openESCRig(controlMaxRPM)
	if err != nil {
		return err
	}

	drv := &escDriver{
		rig:      rig,
		throttle: dshot.ThrottleMin,
		done:     make(chan struct{}),
	}

	if controlLogPath != "" {
		f, err := os.Create(controlLogPath)
		if err != nil {
			return fmt.Errorf("failed to create log file: %v", err)
		}
		defer f.Close()

		drv.bb, err = blackbox.NewWriter(f, blackbox.Header{
			Speed:      int(rig.speed),
			MotorPoles: rig.poles,
			Note:       "control session",
		})
		if err != nil {
			return fmt.Errorf("failed to write log header: %v", err)
		}
	}

	m := initialControlModel(drv, rigInfo, float64(controlMaxRPM))

	p := tea.NewProgram(m, tea.WithAltScreen())
	drv.p = p

	go drv.run()

	if _, err := p.Run(); err != nil {
		close(drv.done)
		return fmt.Errorf("TUI error: %v", err)
	}

	close(drv.done)
	return nil
}
