// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/anepower/internal/monitor"
)

type PowerDataProvider = monitor.PowerDataProvider

// PowerCollector exposes the Neural Engine power and energy of the monitor's
// latest snapshot
type PowerCollector struct {
	pm     PowerDataProvider
	logger *slog.Logger

	mutex sync.RWMutex
	ready bool

	joulesDesc  *prometheus.Desc
	wattsDesc   *prometheus.Desc
	presentDesc *prometheus.Desc
}

// NewPowerCollector creates a collector that reads a single snapshot per scrape
func NewPowerCollector(monitor PowerDataProvider, logger *slog.Logger) *PowerCollector {
	// these labels should remain the same across all descriptors to ease querying
	labels := []string{"zone", "path"}

	c := &PowerCollector{
		pm:     monitor,
		logger: logger.With("collector", "power"),

		joulesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(anepowerNS, "ane", "joules_total"),
			"Energy consumption of the Apple Neural Engine in joules",
			labels, nil),
		wattsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(anepowerNS, "ane", "watts"),
			"Average power of the Apple Neural Engine over the last sampling interval in watts",
			labels, nil),
		presentDesc: prometheus.NewDesc(
			prometheus.BuildFQName(anepowerNS, "ane", "present"),
			"1 if the Apple Neural Engine power channel was found, 0 otherwise",
			nil, nil),
	}

	go c.waitForData()

	return c
}

func (c *PowerCollector) waitForData() {
	<-c.pm.DataChannel()
	c.mutex.Lock()
	c.ready = true
	c.mutex.Unlock()
}

// Describe implements the prometheus.Collector interface
func (c *PowerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.joulesDesc
	ch <- c.wattsDesc
	ch <- c.presentDesc
}

func (c *PowerCollector) isReady() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.ready
}

// Collect implements the prometheus.Collector interface
func (c *PowerCollector) Collect(ch chan<- prometheus.Metric) {
	if !c.isReady() {
		c.logger.Debug("Collect called before monitor is ready")
		return
	}

	started := time.Now()
	defer func() {
		c.logger.Debug("Collected ANE power data", "duration", time.Since(started))
	}()

	snapshot, err := c.pm.Snapshot()
	if err != nil {
		c.logger.Error("Failed to collect power data", "error", err)
		return
	}

	present := 0.0
	if snapshot.Present {
		present = 1
	}
	ch <- prometheus.MustNewConstMetric(c.presentDesc, prometheus.GaugeValue, present)

	// a zone that does not exist has no series
	if !snapshot.Present {
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.joulesDesc,
		prometheus.CounterValue,
		snapshot.Energy.Joules(),
		snapshot.Zone, snapshot.Path,
	)
	ch <- prometheus.MustNewConstMetric(
		c.wattsDesc,
		prometheus.GaugeValue,
		snapshot.Power.Watts(),
		snapshot.Zone, snapshot.Path,
	)
}
