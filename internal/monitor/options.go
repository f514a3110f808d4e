// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"log/slog"
	"time"

	"github.com/sustainable-computing-io/anepower/internal/device"
	"k8s.io/utils/clock"
)

type Opts struct {
	logger   *slog.Logger
	interval time.Duration
	clock    clock.WithTicker
	group    string
	channel  string
}

// DefaultOpts returns Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:   slog.Default(),
		interval: device.DefaultSamplingInterval,
		clock:    clock.RealClock{},
		group:    device.DefaultANEGroup,
		channel:  device.DefaultANEChannel,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithInterval sets the sampling interval for the PowerMonitor
func WithInterval(d time.Duration) OptionFn {
	return func(o *Opts) {
		o.interval = d
	}
}

// WithLogger sets the logger for the PowerMonitor
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithClock sets the clock the PowerMonitor
func WithClock(c clock.WithTicker) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

// WithChannel sets the IOReport group and channel sampled for the ANE
func WithChannel(group, channel string) OptionFn {
	return func(o *Opts) {
		o.group = group
		o.channel = channel
	}
}
