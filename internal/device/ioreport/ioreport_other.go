// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !darwin || !cgo

package ioreport

type unsupportedSource struct{}

// NewSource returns a Source whose Subscribe always fails with ErrUnsupported
func NewSource() Source {
	return unsupportedSource{}
}

func (unsupportedSource) Name() string {
	return "ioreport-unsupported"
}

func (unsupportedSource) Subscribe(string) (Subscription, error) {
	return nil, ErrUnsupported
}
