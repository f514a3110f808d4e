// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/anepower/internal/version"
)

const anepowerNS = "anepower"

// InfoCollector exposes a single constant '1' series whose labels carry
// static information about the exporter
type InfoCollector struct {
	desc   *prom.Desc
	values []string
}

func newInfoCollector(subsystem, help string, labels, values []string) *InfoCollector {
	return &InfoCollector{
		desc:   prom.NewDesc(prom.BuildFQName(anepowerNS, subsystem, "info"), help, labels, nil),
		values: values,
	}
}

// NewBuildInfoCollector creates anepower_build_info
func NewBuildInfoCollector() *InfoCollector {
	info := version.Info()
	return newInfoCollector("build",
		"A metric with a constant '1' value labeled with version information",
		[]string{"arch", "os", "branch", "revision", "version", "goversion"},
		[]string{info.GoArch, info.GoOS, info.GitBranch, info.GitCommit, info.Version, info.GoVersion},
	)
}

// NewPlatformInfoCollector creates anepower_platform_info labeled with the
// chip name and the IOReport source in use
func NewPlatformInfoCollector(chip, source string) *InfoCollector {
	return newInfoCollector("platform",
		"A metric with a constant '1' value labeled with the chip and power source",
		[]string{"chip", "source"},
		[]string{chip, source},
	)
}

func (c *InfoCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.desc
}

func (c *InfoCollector) Collect(ch chan<- prom.Metric) {
	ch <- prom.MustNewConstMetric(c.desc, prom.GaugeValue, 1, c.values...)
}
