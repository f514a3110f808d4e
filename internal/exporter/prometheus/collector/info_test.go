// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sustainable-computing-io/anepower/internal/version"
)

func TestBuildInfoCollector(t *testing.T) {
	info := version.Info()
	expected := fmt.Sprintf(`
# HELP anepower_build_info A metric with a constant '1' value labeled with version information
# TYPE anepower_build_info gauge
anepower_build_info{arch=%q,branch=%q,goversion=%q,os=%q,revision=%q,version=%q} 1
`, info.GoArch, info.GitBranch, info.GoVersion, info.GoOS, info.GitCommit, info.Version)

	assert.NoError(t, testutil.CollectAndCompare(NewBuildInfoCollector(), strings.NewReader(expected)))
}

func TestPlatformInfoCollector(t *testing.T) {
	tt := []struct {
		chip, source string
	}{
		{"Apple M2 Pro", "ioreport"},
		{"Apple M1", "fake-ioreport"},
		{"", "unsupported"},
	}

	for _, tc := range tt {
		t.Run(tc.source, func(t *testing.T) {
			expected := fmt.Sprintf(`
# HELP anepower_platform_info A metric with a constant '1' value labeled with the chip and power source
# TYPE anepower_platform_info gauge
anepower_platform_info{chip=%q,source=%q} 1
`, tc.chip, tc.source)
			c := NewPlatformInfoCollector(tc.chip, tc.source)
			assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
		})
	}
}

func TestInfoCollectors_Register(t *testing.T) {
	registry := prom.NewRegistry()
	require.NoError(t, registry.Register(NewBuildInfoCollector()))
	require.NoError(t, registry.Register(NewPlatformInfoCollector("Apple M3", "ioreport")))

	// every scrape yields the same single series per collector
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := testutil.GatherAndCount(registry)
			assert.NoError(t, err)
			assert.Equal(t, 2, n)
		}()
	}
	wg.Wait()
}
