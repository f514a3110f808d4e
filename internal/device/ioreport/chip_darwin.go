// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin

package ioreport

import (
	"strings"

	"golang.org/x/sys/unix"
)

// Chip returns the marketing name of the SoC, e.g. "Apple M2 Pro"
func Chip() string {
	brand, err := unix.Sysctl("machdep.cpu.brand_string")
	if err != nil || strings.TrimSpace(brand) == "" {
		return unknownChip
	}
	return strings.TrimSpace(brand)
}
