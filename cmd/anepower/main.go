// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sustainable-computing-io/anepower/config"
	"github.com/sustainable-computing-io/anepower/internal/device/ioreport"
	"github.com/sustainable-computing-io/anepower/internal/exporter/mcp"
	"github.com/sustainable-computing-io/anepower/internal/exporter/prometheus"
	"github.com/sustainable-computing-io/anepower/internal/exporter/stdout"
	"github.com/sustainable-computing-io/anepower/internal/logger"
	"github.com/sustainable-computing-io/anepower/internal/monitor"
	"github.com/sustainable-computing-io/anepower/internal/server"
	"github.com/sustainable-computing-io/anepower/internal/service"
	"github.com/sustainable-computing-io/anepower/internal/version"
	"k8s.io/utils/ptr"
)

func main() {
	// parse args and config and exit with error if there is an error
	cfg, err := parseArgsAndConfig()
	if err != nil {
		os.Exit(1)
	}

	logger := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logVersionInfo(logger)
	printConfigInfo(logger, cfg)

	services := createServices(logger, cfg)
	if err := service.Init(logger, services); err != nil {
		logger.Error("Initialization failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting anepower")
	if err := service.Run(context.Background(), logger, services); err != nil {
		logger.Error("anepower terminated with an error", "error", err)
		os.Exit(1)
	}
	logger.Info("Graceful shutdown completed")
}

func logVersionInfo(logger *slog.Logger) {
	v := version.Info()
	logger.Info("anepower version information",
		"version", v.Version,
		"buildTime", v.BuildTime,
		"gitBranch", v.GitBranch,
		"gitCommit", v.GitCommit,
		"goVersion", v.GoVersion,
		"goOS", v.GoOS,
		"goArch", v.GoArch,
	)
}

func parseArgsAndConfig() (*config.Config, error) {
	const appName = "anepower"
	app := kingpin.New(appName, "Apple Neural Engine power exporter for Prometheus.")
	app.Version(version.Info().String())

	configFile := app.Flag(config.ConfigFileFlag, "Path to YAML configuration file").String()
	updateConfig := config.RegisterFlags(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := logger.New("info", "text", os.Stderr)
	cfg := config.DefaultConfig()
	if *configFile != "" {
		logger.Info("Loading configuration file", "path", *configFile)
		loadedCfg, err := config.FromFile(*configFile)
		if err != nil {
			logger.Error("Error loading config file", "error", err.Error())
			return nil, err
		}
		cfg = loadedCfg
		logger.Info("Completed loading of configuration file", "path", *configFile)
	}

	// Apply command line flags (these override config file settings)
	if err := updateConfig(cfg); err != nil {
		logger.Error("Error applying command line flags", "error", err.Error())
		return nil, err
	}

	return cfg, nil
}

func printConfigInfo(logger *slog.Logger, cfg *config.Config) {
	if !logger.Enabled(context.Background(), slog.LevelInfo) || cfg.Log.Format == "json" {
		return
	}
	// stdout carries the MCP protocol
	if ptr.Deref(cfg.Exporter.MCP.Enabled, false) && cfg.Exporter.MCP.Transport == mcp.TransportStdio {
		return
	}

	fmt.Printf(`
Configuration
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, cfg)
}

// createSource returns the IOReport source the sampler reads from; the
// fake meter stands in for hardware during development
func createSource(logger *slog.Logger, cfg *config.Config) ioreport.Source {
	if !ptr.Deref(cfg.Dev.FakeANEMeter.Enabled, false) {
		return ioreport.NewSource()
	}

	logger.Warn("Using fake ANE meter", "milliJoules", cfg.Dev.FakeANEMeter.MilliJoules)
	return ioreport.NewFakeSource(ioreport.WithFakeChannels(
		ioreport.SimpleChannel(cfg.Sampler.Group, cfg.Sampler.Channel, cfg.Dev.FakeANEMeter.MilliJoules),
	))
}

func createServices(logger *slog.Logger, cfg *config.Config) []service.Service {
	logger.Debug("Creating all services")

	src := createSource(logger, cfg)
	pm := monitor.NewPowerMonitor(src,
		monitor.WithLogger(logger),
		monitor.WithInterval(cfg.Sampler.Interval),
		monitor.WithChannel(cfg.Sampler.Group, cfg.Sampler.Channel),
	)

	apiServer := server.NewAPIServer(
		server.WithLogger(logger),
		server.WithListenAddress(cfg.Web.ListenAddresses),
		server.WithWebConfig(cfg.Web.Config),
	)

	services := []service.Service{
		apiServer,
		pm,
	}

	if ptr.Deref(cfg.Exporter.Prometheus.Enabled, false) {
		collectors := prometheus.CreateCollectors(pm,
			prometheus.WithLogger(logger),
			prometheus.WithPlatform(ioreport.Chip(), src.Name()),
		)
		promExporter := prometheus.NewExporter(pm, apiServer,
			prometheus.WithLogger(logger),
			prometheus.WithDebugCollectors(cfg.Exporter.Prometheus.DebugCollectors),
			prometheus.WithCollectors(collectors),
		)
		services = append(services, promExporter)
	}

	if ptr.Deref(cfg.Exporter.Stdout.Enabled, false) {
		stdoutExporter := stdout.NewExporter(pm,
			stdout.WithLogger(logger),
			stdout.WithInterval(cfg.Exporter.Stdout.Interval),
		)
		services = append(services, stdoutExporter)
	}

	if ptr.Deref(cfg.Exporter.MCP.Enabled, false) {
		opts := []mcp.Option{mcp.WithLogger(logger)}
		if cfg.Exporter.MCP.Transport != mcp.TransportStdio {
			opts = append(opts, mcp.WithHTTPTransport(apiServer, cfg.Exporter.MCP.Transport, cfg.Exporter.MCP.Path))
		}
		services = append(services, mcp.NewServer(pm, opts...))
	}

	if ptr.Deref(cfg.Debug.Pprof.Enabled, false) {
		services = append(services, server.NewPprof(apiServer, logger))
	}

	services = append(services,
		server.NewProbe(apiServer, pm),
		service.NewSignalHandler(logger, syscall.SIGINT, syscall.SIGTERM),
	)

	return services
}
