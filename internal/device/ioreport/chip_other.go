// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !darwin && !linux

package ioreport

// Chip is not implemented on this platform
func Chip() string {
	return unknownChip
}
