// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnergyFromMilliJoules(t *testing.T) {
	tests := []struct {
		name string
		mj   int64
		want Energy
	}{
		{"Zero", 0, 0},
		{"One MilliJoule", 1, 1000 * MicroJoule},
		{"1.5 Joule", 1500, 1_500_000},
		{"Counter reset", -20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EnergyFromMilliJoules(tt.mj))
		})
	}
}

func TestEnergy_Units(t *testing.T) {
	e := Energy(2_500_000)
	assert.Equal(t, uint64(2_500_000), e.MicroJoules())
	assert.Equal(t, 2500.0, e.MilliJoules())
	assert.Equal(t, 2.5, e.Joules())
	assert.Equal(t, "2.50J", e.String())

	maxMilliJoules := Energy(math.MaxUint64).MilliJoules()
	assert.InDelta(t, math.MaxUint64/1_000, maxMilliJoules, 0.01)
}

func TestAveragePower(t *testing.T) {
	tests := []struct {
		name     string
		mj       int64
		interval time.Duration
		want     float64
	}{
		{"half a watt", 500, time.Second, 0.5},
		{"idle", 0, time.Second, 0},
		{"three watts", 3000, time.Second, 3},
		{"two second interval", 3000, 2 * time.Second, 1.5},
		{"short interval", 250, 500 * time.Millisecond, 0.5},
		{"zero interval", 500, 0, 0},
		{"sub millisecond interval", 500, time.Microsecond, 0},
		{"counter reset", -250, time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AveragePower(tt.mj, tt.interval)
			assert.Equal(t, tt.want, got.Watts())
		})
	}
}

func TestAveragePower_Formula(t *testing.T) {
	// watts = (mj / 1000) / (interval_ms / 1000)
	for mj := int64(1); mj <= 5000; mj += 7 {
		for _, ms := range []int64{250, 333, 700, 1000, 1500, 2000, 3000} {
			want := (float64(mj) / 1000.0) / (float64(ms) / 1000.0)
			got := AveragePower(mj, time.Duration(ms)*time.Millisecond).Watts()
			if !assert.Equal(t, want, got, "mj=%d ms=%d", mj, ms) {
				return
			}
		}
	}
}

func TestPower_Units(t *testing.T) {
	tests := []struct {
		name  string
		power Power
		watts float64
		milli float64
		micro float64
		str   string
	}{
		{"Zero", 0, 0, 0, 0, "0.00W"},
		{"One MicroWatt", MicroWatt, 0.000001, 0.001, 1, "0.00W"},
		{"1.5 Watts", 1.5 * Watt, 1.5, 1500, 1_500_000, "1.50W"},
		{"Fifty MilliWatts", 50 * MilliWatt, 0.05, 50, 50_000, "0.05W"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.watts, tt.power.Watts(), 1e-12)
			assert.InDelta(t, tt.milli, tt.power.MilliWatts(), 1e-9)
			assert.InDelta(t, tt.micro, tt.power.MicroWatts(), 1e-6)
			assert.Equal(t, tt.str, tt.power.String())
		})
	}
}
