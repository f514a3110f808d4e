// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

// powerMeter is a generic interface for power meters which read energy
// or power from hardware components
type powerMeter interface {
	// Name() returns a string identifying the power meter
	Name() string
}

// ANEMeter reports the power drawn by the Neural Engine
type ANEMeter interface {
	powerMeter

	// HasANE reports whether the Neural Engine energy channel was found
	HasANE() bool

	// Reading returns the most recent reading; zero until the first sample
	Reading() Reading

	// Path identifies the energy channel being read
	Path() string

	Close() error
}

var _ ANEMeter = (*ANESampler)(nil)
