// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package prometheus

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sustainable-computing-io/anepower/internal/device/ioreport"
	"github.com/sustainable-computing-io/anepower/internal/monitor"
)

// MockAPIRegistry mocks the APIRegistry interface and keeps the handler
// registered for /metrics
type MockAPIRegistry struct {
	mock.Mock
	handler http.Handler
}

func (m *MockAPIRegistry) Register(endpoint, summary, description string, handler http.Handler) error {
	args := m.Called(endpoint, summary, description, handler)
	m.handler = handler
	return args.Error(0)
}

// scrape returns the /metrics body, or "" if nothing could be served
func (m *MockAPIRegistry) scrape() string {
	if m.handler == nil {
		return ""
	}
	rec := httptest.NewRecorder()
	m.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		return ""
	}
	return rec.Body.String()
}

func expectMetrics(registry *MockAPIRegistry, err error) {
	registry.On("Register", "/metrics", "Metrics", "Prometheus metrics", mock.Anything).Return(err)
}

// startMonitor runs a monitor over a fake IOReport source until the test ends
func startMonitor(t *testing.T, channels ...ioreport.FakeChannel) *monitor.PowerMonitor {
	t.Helper()
	pm := monitor.NewPowerMonitor(
		ioreport.NewFakeSource(ioreport.WithFakeChannels(channels...)),
		monitor.WithInterval(10*time.Millisecond),
	)
	require.NoError(t, pm.Init())
	t.Cleanup(func() { assert.NoError(t, pm.Shutdown()) })
	return pm
}

func TestExporter_ScrapesANEPower(t *testing.T) {
	pm := startMonitor(t, ioreport.SimpleChannel("PMP", "ANE", 20))

	registry := &MockAPIRegistry{}
	expectMetrics(registry, nil)

	exporter := NewExporter(pm, registry,
		WithDebugCollectors(nil),
		WithCollectors(CreateCollectors(pm, WithPlatform("Apple M2", "fake-ioreport"))),
	)
	assert.Equal(t, "prometheus", exporter.Name())
	require.NoError(t, exporter.Init())
	registry.AssertExpectations(t)

	var body string
	require.Eventually(t, func() bool {
		body = registry.scrape()
		return strings.Contains(body, "anepower_ane_present")
	}, time.Second, 5*time.Millisecond, "the power collector waits for the first snapshot")

	assert.Contains(t, body, `anepower_ane_present 1`)
	assert.Contains(t, body, `anepower_ane_watts{path="ioreport:PMP/ANE",zone="ane"} 2`)
	assert.Contains(t, body, `anepower_ane_joules_total{path="ioreport:PMP/ANE",zone="ane"}`)
	assert.Contains(t, body, `anepower_platform_info{chip="Apple M2",source="fake-ioreport"} 1`)
	assert.Contains(t, body, `anepower_build_info{`)
	assert.NotContains(t, body, "go_goroutines", "debug collectors are disabled")
}

func TestExporter_ScrapesAbsentANE(t *testing.T) {
	pm := startMonitor(t, ioreport.SimpleChannel("PMP", "GPU", 200))

	coll := CreateCollectors(pm, WithPlatform("Apple M1", "fake-ioreport"))
	expected := `
# HELP anepower_ane_present 1 if the Apple Neural Engine power channel was found, 0 otherwise
# TYPE anepower_ane_present gauge
anepower_ane_present 0
`
	require.Eventually(t, func() bool {
		return testutil.CollectAndCompare(coll["power"], strings.NewReader(expected)) == nil
	}, time.Second, 5*time.Millisecond, "an absent ANE exports presence only")
}

func TestExporter_Init(t *testing.T) {
	t.Run("debug collectors", func(t *testing.T) {
		pm := startMonitor(t, ioreport.SimpleChannel("PMP", "ANE", 10))
		registry := &MockAPIRegistry{}
		expectMetrics(registry, nil)

		exporter := NewExporter(pm, registry, WithDebugCollectors([]string{"go", "process"}))
		require.NoError(t, exporter.Init())
		assert.Contains(t, registry.scrape(), "go_goroutines")
	})

	t.Run("unknown debug collector", func(t *testing.T) {
		registry := &MockAPIRegistry{}
		exporter := NewExporter(nil, registry, WithDebugCollectors([]string{"gpu"}))

		assert.ErrorContains(t, exporter.Init(), "unknown collector: gpu")
		registry.AssertNotCalled(t, "Register")
	})

	t.Run("registration error", func(t *testing.T) {
		registry := &MockAPIRegistry{}
		expectMetrics(registry, assert.AnError)

		exporter := NewExporter(nil, registry, WithDebugCollectors(nil))
		assert.ErrorIs(t, exporter.Init(), assert.AnError)
	})
}

func TestCollectorForName(t *testing.T) {
	for _, name := range []string{"go", "process"} {
		c, err := collectorForName(name)
		require.NoError(t, err, name)
		assert.NoError(t, prom.NewRegistry().Register(c), name)
	}

	c, err := collectorForName("ane")
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "unknown collector: ane")
}

func TestOptions(t *testing.T) {
	opts := DefaultOpts()
	assert.Equal(t, map[string]bool{"go": true}, opts.debugCollectors)
	assert.Empty(t, opts.collectors)

	WithDebugCollectors([]string{"process"})(&opts)
	WithPlatform("Apple M3 Max", "ioreport")(&opts)

	assert.Equal(t, map[string]bool{"process": true}, opts.debugCollectors)
	assert.Equal(t, "Apple M3 Max", opts.chip)
	assert.Equal(t, "ioreport", opts.source)
}

func TestCreateCollectors_DefaultChip(t *testing.T) {
	pm := startMonitor(t)
	coll := CreateCollectors(pm)
	require.Len(t, coll, 3)

	expected := fmt.Sprintf(`
# HELP anepower_platform_info A metric with a constant '1' value labeled with the chip and power source
# TYPE anepower_platform_info gauge
anepower_platform_info{chip=%q,source=""} 1
`, ioreport.Chip())
	assert.NoError(t, testutil.CollectAndCompare(coll["platform_info"], strings.NewReader(expected)))
}
