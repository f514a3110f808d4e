// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sustainable-computing-io/anepower/internal/device/ioreport"
	"k8s.io/utils/clock"
)

const (
	// DefaultSamplingInterval matches what asitop and powermetrics use; shorter
	// intervals do not give better readings
	DefaultSamplingInterval = 1000 * time.Millisecond

	// DefaultANEGroup and DefaultANEChannel identify the Neural Engine energy
	// channel in the power management processor group
	DefaultANEGroup   = "PMP"
	DefaultANEChannel = "ANE"

	// ZoneANE is the zone name used for the Neural Engine
	ZoneANE = "ane"
)

// SamplerState is the lifecycle state of an ANESampler
type SamplerState int32

const (
	// SamplerDetecting is the state until the first pass completes
	SamplerDetecting SamplerState = iota
	// SamplerActive means the ANE channel was found and is being sampled
	SamplerActive
	// SamplerAbsent means the first pass did not find the ANE channel; terminal
	SamplerAbsent
	// SamplerStopped means Close was called; terminal
	SamplerStopped
)

func (s SamplerState) String() string {
	switch s {
	case SamplerDetecting:
		return "detecting"
	case SamplerActive:
		return "active"
	case SamplerAbsent:
		return "absent"
	case SamplerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Reading is the latest result published by an ANESampler
type Reading struct {
	// Power is the average power over the last sampling interval
	Power Power
	// Energy is the energy accumulated over all sampled intervals
	Energy Energy
	// Timestamp is the time at which the interval ended
	Timestamp time.Time
	// Samples is the number of intervals in which the channel was seen
	Samples uint64
}

// ANESampler samples Apple Neural Engine power from IOReport in a background
// goroutine and publishes the latest value.
type ANESampler struct {
	logger   *slog.Logger
	source   ioreport.Source
	clock    clock.WithTicker
	interval time.Duration
	group    string
	channel  string
	observer func(Reading)

	state   atomic.Int32
	reading atomic.Pointer[Reading]

	// hasANE is written once by the sampling goroutine before detected is closed
	hasANE   bool
	detected chan struct{}

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type samplerOpts struct {
	logger   *slog.Logger
	clock    clock.WithTicker
	interval time.Duration
	group    string
	channel  string
	observer func(Reading)
}

// SamplerOptFn is a functional option for configuring an ANESampler
type SamplerOptFn func(*samplerOpts)

// WithSamplerLogger sets the logger of the sampler
func WithSamplerLogger(l *slog.Logger) SamplerOptFn {
	return func(o *samplerOpts) {
		o.logger = l
	}
}

// WithSamplerClock sets the clock used to wait between snapshots
func WithSamplerClock(c clock.WithTicker) SamplerOptFn {
	return func(o *samplerOpts) {
		o.clock = c
	}
}

// WithSamplerInterval sets the time between the two snapshots of a pass
func WithSamplerInterval(d time.Duration) SamplerOptFn {
	return func(o *samplerOpts) {
		o.interval = d
	}
}

// WithSamplerChannel sets the (group, channel) pair identifying the ANE
func WithSamplerChannel(group, channel string) SamplerOptFn {
	return func(o *samplerOpts) {
		o.group = group
		o.channel = channel
	}
}

// WithSampleObserver registers fn to be called from the sampling goroutine
// after every published reading. fn must not block.
func WithSampleObserver(fn func(Reading)) SamplerOptFn {
	return func(o *samplerOpts) {
		o.observer = fn
	}
}

// NewANESampler starts sampling src and blocks until it is known whether the
// ANE channel exists on this machine. It never fails: if src cannot be
// subscribed to, the sampler reports the ANE as absent.
func NewANESampler(src ioreport.Source, applyOpts ...SamplerOptFn) *ANESampler {
	s := newANESampler(src, applyOpts...)
	s.start()
	<-s.detected

	s.logger.Info("ANE detection completed",
		"present", s.hasANE,
		"source", src.Name(),
		"channel", s.group+"/"+s.channel)
	return s
}

func newANESampler(src ioreport.Source, applyOpts ...SamplerOptFn) *ANESampler {
	opts := samplerOpts{
		logger:   slog.Default(),
		clock:    clock.RealClock{},
		interval: DefaultSamplingInterval,
		group:    DefaultANEGroup,
		channel:  DefaultANEChannel,
	}
	for _, apply := range applyOpts {
		apply(&opts)
	}

	s := &ANESampler{
		source:   src,
		clock:    opts.clock,
		interval: opts.interval,
		group:    opts.group,
		channel:  opts.channel,
		observer: opts.observer,
		detected: make(chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.logger = opts.logger.With("meter", s.Name())
	s.reading.Store(&Reading{})
	s.state.Store(int32(SamplerDetecting))
	return s
}

func (s *ANESampler) start() {
	go s.run()
}

func (s *ANESampler) Name() string {
	return "ane-sampler"
}

// HasANE reports whether the ANE channel was detected. The value never
// changes once NewANESampler has returned.
func (s *ANESampler) HasANE() bool {
	<-s.detected
	return s.hasANE
}

// Power returns the most recently published power estimate. It is zero until
// the first interval has been sampled and is meaningless if HasANE is false.
func (s *ANESampler) Power() Power {
	return s.reading.Load().Power
}

// Reading returns the most recently published reading
func (s *ANESampler) Reading() Reading {
	return *s.reading.Load()
}

// State returns the current lifecycle state
func (s *ANESampler) State() SamplerState {
	return SamplerState(s.state.Load())
}

// Interval returns the sampling interval
func (s *ANESampler) Interval() time.Duration {
	return s.interval
}

// Path returns the logical path of the sampled channel
func (s *ANESampler) Path() string {
	return fmt.Sprintf("ioreport:%s/%s", s.group, s.channel)
}

// Close stops the sampling goroutine and waits for it to exit. A pass that is
// waiting between its two snapshots is abandoned. Close is idempotent.
func (s *ANESampler) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done

		// absent is terminal and is kept so that callers can still tell
		// why nothing was sampled
		s.state.CompareAndSwap(int32(SamplerActive), int32(SamplerStopped))
		s.state.CompareAndSwap(int32(SamplerDetecting), int32(SamplerStopped))
		s.logger.Debug("ANE sampler stopped")
	})
	return nil
}

// resolve publishes the detection result; only the first call has an effect
func (s *ANESampler) resolve(present bool) {
	if SamplerState(s.state.Load()) != SamplerDetecting {
		return
	}
	s.hasANE = present
	if present {
		s.state.Store(int32(SamplerActive))
	} else {
		s.state.Store(int32(SamplerAbsent))
	}
	close(s.detected)
}

func (s *ANESampler) stopRequested() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *ANESampler) run() {
	defer close(s.done)

	sub, err := s.source.Subscribe(s.group)
	if err != nil {
		s.logger.Debug("failed to subscribe to IOReport", "group", s.group, "error", err)
		s.resolve(false)
		return
	}
	defer func() {
		if err := sub.Close(); err != nil {
			s.logger.Warn("failed to close IOReport subscription", "error", err)
		}
	}()

	for !s.stopRequested() {
		found, interrupted := s.samplePass(sub)
		if interrupted {
			return
		}

		if !found && s.State() == SamplerDetecting {
			s.resolve(false)
			return
		}
	}
}

// samplePass takes two snapshots one interval apart and publishes the ANE
// power of their delta. It reports whether the ANE channel was seen and
// whether the pass was abandoned because Close was called.
func (s *ANESampler) samplePass(sub ioreport.Subscription) (found, interrupted bool) {
	a, err := sub.Sample()
	if err != nil {
		s.logger.Debug("failed to take first IOReport sample", "error", err)
	}

	select {
	case <-s.clock.After(s.interval):
	case <-s.stop:
		if a != nil {
			a.Release()
		}
		return false, true
	}

	b, err := sub.Sample()
	if err != nil {
		s.logger.Debug("failed to take second IOReport sample", "error", err)
	}

	if a == nil || b == nil {
		release(a, b)
		return false, false
	}

	delta, err := sub.Delta(a, b)
	release(a, b)
	if err != nil {
		s.logger.Debug("failed to compute IOReport delta", "error", err)
		return false, false
	}
	defer delta.Release()

	now := s.clock.Now()
	delta.Iterate(func(ch ioreport.Channel) ioreport.IterAction {
		if ch.Group != s.group || ch.Name != s.channel {
			return ioreport.IterContinue
		}

		var mj int64
		if ch.Format == ioreport.FormatSimple {
			mj = ch.Value
		}
		s.publish(mj, now)
		s.resolve(true)
		found = true
		return ioreport.IterContinue
	})

	return found, false
}

func (s *ANESampler) publish(mj int64, now time.Time) {
	prev := s.reading.Load()
	next := &Reading{
		Power:     AveragePower(mj, s.interval),
		Energy:    prev.Energy + EnergyFromMilliJoules(mj),
		Timestamp: now,
		Samples:   prev.Samples + 1,
	}
	s.reading.Store(next)

	s.logger.Debug("ANE power sampled", "millijoules", mj, "power", next.Power)
	if s.observer != nil {
		s.observer(*next)
	}
}

func release(samples ...ioreport.Samples) {
	for _, s := range samples {
		if s != nil {
			s.Release()
		}
	}
}
