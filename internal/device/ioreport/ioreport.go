// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package ioreport exposes the private macOS IOReport energy reporting
// subsystem as a plain synchronous API. Samples are visited through
// Samples.Iterate instead of the native block based callback so that
// callers never deal with the foreign calling convention.
package ioreport

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by Subscribe on platforms without IOReport
	ErrUnsupported = errors.New("ioreport: not supported on this platform")

	// ErrReleased is returned when a released Samples is used again
	ErrReleased = errors.New("ioreport: samples already released")
)

// Format is the value format of a reporting channel
type Format int

const (
	FormatInvalid     Format = 0
	FormatSimple      Format = 1
	FormatState       Format = 2
	FormatHistogram   Format = 3
	FormatSimpleArray Format = 4
)

func (f Format) String() string {
	switch f {
	case FormatSimple:
		return "simple"
	case FormatState:
		return "state"
	case FormatHistogram:
		return "histogram"
	case FormatSimpleArray:
		return "simple-array"
	default:
		return "invalid"
	}
}

// IterAction is returned by the visitor passed to Samples.Iterate
type IterAction int

const (
	// IterContinue moves on to the next channel
	IterContinue IterAction = iota
	// IterStop ends the iteration
	IterStop
	// IterSkip marks the channel as skipped; iteration continues
	IterSkip
)

// State is one entry of a state-format channel
type State struct {
	Name      string
	Residency uint64
}

// Channel is a single entry of a sample collection
type Channel struct {
	Group    string
	SubGroup string
	Name     string
	Unit     string
	Format   Format

	// Value is set for FormatSimple channels
	Value int64

	// States is set for FormatState channels
	States []State
}

// Key returns the identity of the channel within a sample collection
func (c Channel) Key() string {
	return fmt.Sprintf("%s/%s/%s", c.Group, c.SubGroup, c.Name)
}

// Samples is a point-in-time (or delta) collection of channel readings.
// Samples must be released once they are no longer needed.
type Samples interface {
	// Iterate invokes fn once per channel until fn returns IterStop
	Iterate(fn func(Channel) IterAction)

	// Release frees the underlying resources. Calling Release more than once is a no-op.
	Release()
}

// Subscription is a live subscription to the channels of one group
type Subscription interface {
	// Sample takes a snapshot of every subscribed channel
	Sample() (Samples, error)

	// Delta returns the difference between two snapshots of this subscription
	Delta(prev, cur Samples) (Samples, error)

	// Close releases the subscription
	Close() error
}

// Source creates subscriptions for a channel group
type Source interface {
	// Name identifies the source implementation
	Name() string

	// Subscribe enumerates the channels of group and subscribes to them
	Subscribe(group string) (Subscription, error)
}
