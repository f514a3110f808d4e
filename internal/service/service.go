// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package service holds the lifecycle that ties anepower's components
// together. A component implements Service plus any of Initializer, Runner
// and Shutdowner; Init and Run drive each stage only for the components that
// opt into it.
package service

import "context"

// Service is implemented by every lifecycle component
type Service interface {
	Name() string
}

// Initializer is a Service with setup that must finish before anything runs.
// The monitor blocks here until ANE detection has completed.
type Initializer interface {
	Service
	Init() error
}

// Runner is a Service that blocks in Run until ctx is done or it fails.
// Run is called from its own goroutine.
type Runner interface {
	Service
	Run(ctx context.Context) error
}

// Shutdowner is a Service holding resources that must be released, such as
// the sampling goroutine or an open listener
type Shutdowner interface {
	Service
	Shutdown() error
}
