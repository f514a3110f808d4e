// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package ioreport

import (
	"golang.org/x/sys/unix"
)

// Chip returns the machine hardware name reported by uname
func Chip() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return unknownChip
	}
	machine := unix.ByteSliceToString(uts.Machine[:])
	if machine == "" {
		return unknownChip
	}
	return machine
}
