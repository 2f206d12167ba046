// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng
//
// BiDShot - Bidirectional DSHOT ESC workbench
//
// A CLI tool for driving ESCs over bidirectional DSHOT and decoding
// the telemetry they send back, on the wire and over the KISS serial
// stream.

package main

import (
	"os"

	"github.com/deflucaseng/BiDShot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
