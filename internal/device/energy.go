// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"time"
)

// Energy represents energy usage as an uint64 MicroJoule count.
// Use Joules, MilliJoules and MicroJoules to get the value in the
// respective unit.
type Energy uint64

const (
	MicroJoule Energy = 1
	MilliJoule        = 1000 * MicroJoule
	Joule             = 1000 * MilliJoule
)

// EnergyFromMilliJoules converts an IOReport energy reading (mJ) to Energy.
// Negative readings, seen when a counter resets, yield zero.
func EnergyFromMilliJoules(mj int64) Energy {
	if mj <= 0 {
		return 0
	}
	return Energy(mj) * MilliJoule
}

func (e Energy) MicroJoules() uint64 {
	return uint64(e)
}

func (e Energy) MilliJoules() float64 {
	return float64(e) / float64(MilliJoule)
}

func (e Energy) Joules() float64 {
	return float64(e) / float64(Joule)
}

func (e Energy) String() string {
	return fmt.Sprintf("%.2fJ", e.Joules())
}

// Power represents power usage as float64 Watts. The value published by a
// sampler is stored unscaled so Watts returns it bit for bit.
type Power float64

const (
	Watt      Power = 1.0
	MilliWatt       = Watt / 1000
	MicroWatt       = MilliWatt / 1000
)

// AveragePower returns the average power of mj millijoules consumed over
// interval: watts = (mj / 1000) / (interval_ms / 1000).
// A non-positive interval or a negative energy (counter reset) yields zero.
func AveragePower(mj int64, interval time.Duration) Power {
	ms := interval.Milliseconds()
	if ms <= 0 || mj < 0 {
		return 0
	}
	return Power((float64(mj) / 1000.0) / (float64(ms) / 1000.0))
}

func (p Power) MicroWatts() float64 {
	return float64(p) * 1e6
}

func (p Power) MilliWatts() float64 {
	return float64(p) * 1e3
}

func (p Power) Watts() float64 {
	return float64(p)
}

func (p Power) String() string {
	return fmt.Sprintf("%.2fW", p.Watts())
}
