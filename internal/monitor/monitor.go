// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sustainable-computing-io/anepower/internal/device"
	"github.com/sustainable-computing-io/anepower/internal/device/ioreport"
	"github.com/sustainable-computing-io/anepower/internal/service"
	"k8s.io/utils/clock"
)

// ErrNotInitialized is returned by Snapshot before Init has completed
var ErrNotInitialized = errors.New("monitor not initialized")

type PowerDataProvider interface {
	// Snapshot returns the current power data
	Snapshot() (*Snapshot, error)

	// DataChannel returns a channel that signals when new data is available
	DataChannel() <-chan struct{}

	// ZoneNames returns the names of the zones being sampled
	ZoneNames() []string
}

// Service defines the interface for the power monitoring service
type Service interface {
	service.Service
	service.Initializer
	service.Runner
	service.Shutdowner
	PowerDataProvider
}

// PowerMonitor owns the ANE sampler and publishes its readings as snapshots
type PowerMonitor struct {
	logger *slog.Logger
	source ioreport.Source

	interval time.Duration
	clock    clock.WithTicker
	group    string
	channel  string

	sampler   device.ANEMeter
	zoneNames []string

	// signals when a snapshot has been updated
	dataCh   chan struct{}
	snapshot atomic.Pointer[Snapshot]

	shutdownOnce sync.Once
}

var _ Service = (*PowerMonitor)(nil)

// NewPowerMonitor creates a new PowerMonitor instance. Sampling starts in Init.
func NewPowerMonitor(src ioreport.Source, applyOpts ...OptionFn) *PowerMonitor {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &PowerMonitor{
		logger:   opts.logger.With("service", "monitor"),
		source:   src,
		clock:    opts.clock,
		interval: opts.interval,
		group:    opts.group,
		channel:  opts.channel,
		dataCh:   make(chan struct{}, 1),
	}
}

func (pm *PowerMonitor) Name() string {
	return "monitor"
}

// Init starts the sampler and blocks until the ANE is known to be present or
// absent. An absent ANE is not an error.
func (pm *PowerMonitor) Init() error {
	pm.sampler = device.NewANESampler(pm.source,
		device.WithSamplerLogger(pm.logger),
		device.WithSamplerClock(pm.clock),
		device.WithSamplerInterval(pm.interval),
		device.WithSamplerChannel(pm.group, pm.channel),
		device.WithSampleObserver(pm.onReading),
	)

	if pm.sampler.HasANE() {
		pm.zoneNames = []string{device.ZoneANE}
	} else {
		pm.logger.Warn("Neural Engine power channel not found; reporting zero power",
			"source", pm.source.Name(), "path", pm.sampler.Path())
	}

	// the sampler may already have published a reading
	pm.snapshot.CompareAndSwap(nil, pm.newSnapshot(pm.sampler.HasANE(), pm.sampler.Reading()))

	// signal now so that exporters can construct descriptors
	pm.signalNewData()
	return nil
}

func (pm *PowerMonitor) Run(ctx context.Context) error {
	pm.logger.Info("Monitor is running...", "interval", pm.interval)
	<-ctx.Done()
	pm.logger.Info("Monitor has terminated.")
	return nil
}

func (pm *PowerMonitor) Shutdown() error {
	pm.shutdownOnce.Do(func() {
		pm.logger.Info("shutting down monitor")
		if pm.sampler != nil {
			_ = pm.sampler.Close()
		}
	})
	return nil
}

func (pm *PowerMonitor) DataChannel() <-chan struct{} {
	return pm.dataCh
}

func (pm *PowerMonitor) ZoneNames() []string {
	// need not lock since it is written only by Init
	return pm.zoneNames
}

func (pm *PowerMonitor) Snapshot() (*Snapshot, error) {
	snapshot := pm.snapshot.Load()
	if snapshot == nil {
		return nil, ErrNotInitialized
	}
	return snapshot.Clone(), nil
}

// onReading runs on the sampling goroutine; readings are only published
// once the channel has been found
func (pm *PowerMonitor) onReading(r device.Reading) {
	pm.snapshot.Store(pm.newSnapshot(true, r))
	pm.signalNewData()
}

func (pm *PowerMonitor) newSnapshot(present bool, r device.Reading) *Snapshot {
	s := NewSnapshot()
	s.Timestamp = r.Timestamp
	s.Present = present
	s.Path = "ioreport:" + pm.group + "/" + pm.channel
	s.Power = r.Power
	s.Energy = r.Energy
	s.Samples = r.Samples
	s.Interval = pm.interval
	return s
}

func (pm *PowerMonitor) signalNewData() {
	select {
	case pm.dataCh <- struct{}{}: // send signal to any waiting goroutine
		pm.logger.Debug("Data channel updated")
	default:
		pm.logger.Debug("Data channel is full")
	}
}
