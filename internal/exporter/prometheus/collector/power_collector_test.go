// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sustainable-computing-io/anepower/internal/device"
	"github.com/sustainable-computing-io/anepower/internal/monitor"
)

// MockPowerMonitor mocks the PowerMonitor for testing
type MockPowerMonitor struct {
	mock.Mock
	dataCh chan struct{}
}

func NewMockPowerMonitor() *MockPowerMonitor {
	return &MockPowerMonitor{
		dataCh: make(chan struct{}, 1),
	}
}

var _ PowerDataProvider = (*MockPowerMonitor)(nil)

func (m *MockPowerMonitor) Snapshot() (*monitor.Snapshot, error) {
	args := m.Called()
	if s := args.Get(0); s != nil {
		return s.(*monitor.Snapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPowerMonitor) DataChannel() <-chan struct{} {
	return m.dataCh
}

func (m *MockPowerMonitor) ZoneNames() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockPowerMonitor) TriggerUpdate() {
	select {
	case m.dataCh <- struct{}{}:
	default:
	}
}

func presentSnapshot() *monitor.Snapshot {
	return &monitor.Snapshot{
		Timestamp: time.Now(),
		Present:   true,
		Zone:      device.ZoneANE,
		Path:      "ioreport:PMP/ANE",
		Power:     1.25 * device.Watt,
		Energy:    42 * device.Joule,
		Samples:   42,
		Interval:  time.Second,
	}
}

func readyCollector(t *testing.T, pm *MockPowerMonitor) *PowerCollector {
	t.Helper()
	c := NewPowerCollector(pm, slog.Default())
	pm.TriggerUpdate()
	require.Eventually(t, c.isReady, time.Second, time.Millisecond)
	return c
}

func TestPowerCollector_Describe(t *testing.T) {
	pm := NewMockPowerMonitor()
	c := NewPowerCollector(pm, slog.Default())

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)

	var descs []string
	for d := range ch {
		descs = append(descs, d.String())
	}
	require.Len(t, descs, 3)
	assert.Contains(t, descs[0], "anepower_ane_joules_total")
	assert.Contains(t, descs[1], "anepower_ane_watts")
	assert.Contains(t, descs[2], "anepower_ane_present")
}

func TestPowerCollector_NotReady(t *testing.T) {
	pm := NewMockPowerMonitor()
	c := NewPowerCollector(pm, slog.Default())

	assert.Equal(t, 0, testutil.CollectAndCount(c))
	pm.AssertNotCalled(t, "Snapshot")
}

func TestPowerCollector_Present(t *testing.T) {
	pm := NewMockPowerMonitor()
	pm.On("Snapshot").Return(presentSnapshot(), nil)
	c := readyCollector(t, pm)

	expected := `
# HELP anepower_ane_joules_total Energy consumption of the Apple Neural Engine in joules
# TYPE anepower_ane_joules_total counter
anepower_ane_joules_total{path="ioreport:PMP/ANE",zone="ane"} 42
# HELP anepower_ane_present 1 if the Apple Neural Engine power channel was found, 0 otherwise
# TYPE anepower_ane_present gauge
anepower_ane_present 1
# HELP anepower_ane_watts Average power of the Apple Neural Engine over the last sampling interval in watts
# TYPE anepower_ane_watts gauge
anepower_ane_watts{path="ioreport:PMP/ANE",zone="ane"} 1.25
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected))
	assert.NoError(t, err)
	pm.AssertExpectations(t)
}

func TestPowerCollector_Absent(t *testing.T) {
	pm := NewMockPowerMonitor()
	pm.On("Snapshot").Return(&monitor.Snapshot{Zone: device.ZoneANE}, nil)
	c := readyCollector(t, pm)

	expected := `
# HELP anepower_ane_present 1 if the Apple Neural Engine power channel was found, 0 otherwise
# TYPE anepower_ane_present gauge
anepower_ane_present 0
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected))
	assert.NoError(t, err)
}

func TestPowerCollector_SnapshotError(t *testing.T) {
	pm := NewMockPowerMonitor()
	pm.On("Snapshot").Return(nil, assert.AnError)
	c := readyCollector(t, pm)

	assert.Equal(t, 0, testutil.CollectAndCount(c))
	pm.AssertExpectations(t)
}

func TestPowerCollector_Registry(t *testing.T) {
	pm := NewMockPowerMonitor()
	pm.On("Snapshot").Return(presentSnapshot(), nil)
	c := readyCollector(t, pm)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(c))

	count, err := testutil.GatherAndCount(registry, "anepower_ane_watts", "anepower_ane_joules_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPowerCollector_ParallelCollect(t *testing.T) {
	pm := NewMockPowerMonitor()
	pm.On("Snapshot").Return(presentSnapshot(), nil)
	c := readyCollector(t, pm)

	const parallelCalls = 10
	ch := make(chan prometheus.Metric, parallelCalls*3)

	var wg sync.WaitGroup
	wg.Add(parallelCalls)
	for range parallelCalls {
		go func() {
			defer wg.Done()
			c.Collect(ch)
		}()
	}
	wg.Wait()
	close(ch)

	assert.Len(t, ch, parallelCalls*3)
}
