// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"time"

	"github.com/sustainable-computing-io/anepower/internal/device"
)

type (
	Energy = device.Energy
	Power  = device.Power
)

const (
	Joule = device.Joule
	Watt  = device.Watt
)

// Snapshot is the state of the ANE zone at a point in time
type Snapshot struct {
	Timestamp time.Time // end of the last sampled interval; zero until the first sample

	Present bool   // ANE channel found on this machine
	Zone    string // zone name
	Path    string // logical source path of the zone

	Power   Power  // average power over the last interval
	Energy  Energy // cumulative energy since the monitor started
	Samples uint64 // number of sampled intervals

	Interval time.Duration // sampling interval
}

// NewSnapshot creates a new Snapshot instance
func NewSnapshot() *Snapshot {
	return &Snapshot{Zone: device.ZoneANE}
}

// Clone returns a copy of the snapshot. A nil snapshot clones to nil.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}
