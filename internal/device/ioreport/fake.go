// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package ioreport

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// NOTE: FakeSource is not intended to be used in production; it backs tests
// and the dev fake-ane-meter setting on machines without IOReport

// FakeChannel describes a channel produced by a FakeSource. Every call to
// Subscription.Sample advances the cumulative value of a simple channel by
// Increment.
type FakeChannel struct {
	Group     string
	SubGroup  string
	Name      string
	Unit      string
	Format    Format
	Increment int64
}

// FakeSource is a deterministic in-memory Source
type FakeSource struct {
	mu       sync.Mutex
	channels []FakeChannel

	subscribeErr error
	sampleErr    error
	deltaErr     error

	subscribes atomic.Int64
	samples    atomic.Int64
	deltas     atomic.Int64
	releases   atomic.Int64
	closes     atomic.Int64

	// sampleHook is invoked at the start of every Sample call
	sampleHook func(n int64)
}

var _ Source = (*FakeSource)(nil)

// FakeOptFn configures a FakeSource
type FakeOptFn func(*FakeSource)

// WithFakeChannels sets the channels reported by the source
func WithFakeChannels(channels ...FakeChannel) FakeOptFn {
	return func(s *FakeSource) {
		s.channels = append([]FakeChannel(nil), channels...)
	}
}

// WithFakeSubscribeError makes Subscribe fail with err
func WithFakeSubscribeError(err error) FakeOptFn {
	return func(s *FakeSource) {
		s.subscribeErr = err
	}
}

// WithFakeSampleError makes every Sample call fail with err
func WithFakeSampleError(err error) FakeOptFn {
	return func(s *FakeSource) {
		s.sampleErr = err
	}
}

// WithFakeDeltaError makes every Delta call fail with err
func WithFakeDeltaError(err error) FakeOptFn {
	return func(s *FakeSource) {
		s.deltaErr = err
	}
}

// WithFakeSampleHook registers fn to be called at the start of every Sample
// call with the 1-based number of that call
func WithFakeSampleHook(fn func(n int64)) FakeOptFn {
	return func(s *FakeSource) {
		s.sampleHook = fn
	}
}

// NewFakeSource returns a FakeSource configured by opts
func NewFakeSource(opts ...FakeOptFn) *FakeSource {
	s := &FakeSource{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SimpleChannel is a convenience constructor for a simple-format channel
func SimpleChannel(group, name string, increment int64) FakeChannel {
	return FakeChannel{
		Group:     group,
		Name:      name,
		Unit:      "mJ",
		Format:    FormatSimple,
		Increment: increment,
	}
}

func (s *FakeSource) Name() string {
	return "fake-ioreport"
}

func (s *FakeSource) Subscribe(group string) (Subscription, error) {
	s.subscribes.Add(1)
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subscribed := make([]FakeChannel, 0, len(s.channels))
	for _, ch := range s.channels {
		if ch.Group == group {
			subscribed = append(subscribed, ch)
		}
	}

	return &fakeSubscription{
		source:   s,
		channels: subscribed,
		counters: make([]int64, len(subscribed)),
	}, nil
}

// Subscribes returns the number of Subscribe calls
func (s *FakeSource) Subscribes() int64 { return s.subscribes.Load() }

// Samples returns the number of Subscription.Sample calls
func (s *FakeSource) Samples() int64 { return s.samples.Load() }

// Deltas returns the number of Subscription.Delta calls
func (s *FakeSource) Deltas() int64 { return s.deltas.Load() }

// Releases returns the number of Samples released
func (s *FakeSource) Releases() int64 { return s.releases.Load() }

// Closes returns the number of Subscription.Close calls
func (s *FakeSource) Closes() int64 { return s.closes.Load() }

type fakeSubscription struct {
	source   *FakeSource
	mu       sync.Mutex
	channels []FakeChannel
	counters []int64
}

func (f *fakeSubscription) Sample() (Samples, error) {
	n := f.source.samples.Add(1)
	if f.source.sampleHook != nil {
		f.source.sampleHook(n)
	}
	if f.source.sampleErr != nil {
		return nil, f.source.sampleErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	channels := make([]Channel, len(f.channels))
	for i, fc := range f.channels {
		f.counters[i] += fc.Increment
		channels[i] = Channel{
			Group:    fc.Group,
			SubGroup: fc.SubGroup,
			Name:     fc.Name,
			Unit:     fc.Unit,
			Format:   fc.Format,
		}
		if fc.Format == FormatSimple {
			channels[i].Value = f.counters[i]
		}
	}
	return &fakeSamples{source: f.source, channels: channels}, nil
}

func (f *fakeSubscription) Delta(prev, cur Samples) (Samples, error) {
	f.source.deltas.Add(1)
	if f.source.deltaErr != nil {
		return nil, f.source.deltaErr
	}

	p, ok := prev.(*fakeSamples)
	if !ok {
		return nil, fmt.Errorf("unexpected samples type %T", prev)
	}
	c, ok := cur.(*fakeSamples)
	if !ok {
		return nil, fmt.Errorf("unexpected samples type %T", cur)
	}
	if p.released || c.released {
		return nil, ErrReleased
	}

	previous := make(map[string]Channel, len(p.channels))
	for _, ch := range p.channels {
		previous[ch.Key()] = ch
	}

	delta := make([]Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		d := ch
		if ch.Format == FormatSimple {
			if old, exists := previous[ch.Key()]; exists {
				d.Value = ch.Value - old.Value
			}
		}
		delta = append(delta, d)
	}
	return &fakeSamples{source: f.source, channels: delta}, nil
}

func (f *fakeSubscription) Close() error {
	f.source.closes.Add(1)
	return nil
}

type fakeSamples struct {
	source   *FakeSource
	channels []Channel
	released bool
}

func (f *fakeSamples) Iterate(fn func(Channel) IterAction) {
	if f.released {
		return
	}
	for _, ch := range f.channels {
		if fn(ch) == IterStop {
			return
		}
	}
}

func (f *fakeSamples) Release() {
	if f.released {
		return
	}
	f.released = true
	f.source.releases.Add(1)
}
