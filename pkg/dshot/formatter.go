// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

import "fmt"

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSending:
		return "SENDING"
	case StateAwaitingResponse:
		return "AWAITING_RESPONSE"
	case StateReceiving:
		return "RECEIVING"
	case StateDecoding:
		return "DECODING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// FormatCommand returns the conventional name of a special command
func FormatCommand(cmd Command) string {
	switch cmd {
	case CmdMotorStop:
		return "MOTOR_STOP"
	case CmdBeep1:
		return "BEEP1"
	case CmdBeep2:
		return "BEEP2"
	case CmdBeep3:
		return "BEEP3"
	case CmdBeep4:
		return "BEEP4"
	case CmdBeep5:
		return "BEEP5"
	case CmdESCInfo:
		return "ESC_INFO"
	case CmdSpinDirection1:
		return "SPIN_DIRECTION_1"
	case CmdSpinDirection2:
		return "SPIN_DIRECTION_2"
	case Cmd3DModeOff:
		return "3D_MODE_OFF"
	case Cmd3DModeOn:
		return "3D_MODE_ON"
	case CmdSettingsRequest:
		return "SETTINGS_REQUEST"
	case CmdSaveSettings:
		return "SAVE_SETTINGS"
	case CmdExtendedTelemetryEnable:
		return "EXTENDED_TELEMETRY_ENABLE"
	case CmdExtendedTelemetryDisable:
		return "EXTENDED_TELEMETRY_DISABLE"
	}
	if cmd <= CommandMax {
		return fmt.Sprintf("RESERVED_%d", uint16(cmd))
	}
	return "UNKNOWN"
}
