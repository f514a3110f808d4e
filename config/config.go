// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}

	// Sampler selects the IOReport channel carrying the ANE energy and how
	// often it is sampled
	Sampler struct {
		Interval time.Duration `yaml:"interval"`
		Group    string        `yaml:"group"`
		Channel  string        `yaml:"channel"`
	}

	// Development mode settings; disabled by default
	Dev struct {
		FakeANEMeter struct {
			Enabled *bool `yaml:"enabled"`
			// MilliJoules reported by the fake ANE channel on every sample
			MilliJoules int64 `yaml:"milliJoules"`
		} `yaml:"fake-ane-meter"`
	}

	Web struct {
		Config          string   `yaml:"configFile"`
		ListenAddresses []string `yaml:"listenAddresses"`
	}

	StdoutExporter struct {
		Enabled  *bool         `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
	}

	PrometheusExporter struct {
		Enabled         *bool    `yaml:"enabled"`
		DebugCollectors []string `yaml:"debugCollectors"`
	}

	// MCPExporter serves the latest reading as a Model Context Protocol tool
	MCPExporter struct {
		Enabled   *bool  `yaml:"enabled"`
		Transport string `yaml:"transport"` // stdio, sse or streamable
		Path      string `yaml:"path"`
	}

	Exporter struct {
		Stdout     StdoutExporter     `yaml:"stdout"`
		Prometheus PrometheusExporter `yaml:"prometheus"`
		MCP        MCPExporter        `yaml:"mcp"`
	}

	// Debug configuration
	PprofDebug struct {
		Enabled *bool `yaml:"enabled"`
	}

	Debug struct {
		Pprof PprofDebug `yaml:"pprof"`
	}

	Config struct {
		Log      Log      `yaml:"log"`
		Sampler  Sampler  `yaml:"sampler"`
		Exporter Exporter `yaml:"exporter"`
		Web      Web      `yaml:"web"`
		Debug    Debug    `yaml:"debug"`
		Dev      Dev      `yaml:"dev"` // WARN: do not expose dev settings as flags
	}
)

const (
	// Flags
	ConfigFileFlag = "config.file"

	LogLevelFlag  = "log.level"
	LogFormatFlag = "log.format"

	SamplerIntervalFlag = "sampler.interval"
	SamplerGroup        = "sampler.group"   // not a flag
	SamplerChannel      = "sampler.channel" // not a flag

	pprofEnabledFlag = "debug.pprof"

	WebConfigFlag        = "web.config-file"
	WebListenAddressFlag = "web.listen-address"

	// Exporters
	ExporterStdoutEnabledFlag = "exporter.stdout"
	ExporterStdoutInterval    = "exporter.stdout.interval" // not a flag

	ExporterPrometheusEnabledFlag = "exporter.prometheus"
	// NOTE: not a flag
	ExporterPrometheusDebugCollectors = "exporter.prometheus.debug-collectors"

	ExporterMCPEnabledFlag   = "exporter.mcp"
	ExporterMCPTransportFlag = "exporter.mcp.transport"
	ExporterMCPPath          = "exporter.mcp.path" // not a flag

	// WARN:  dev settings shouldn't be exposed as flags as flags are intended for end users
)

const (
	DefaultListenAddress   = ":28283"
	DefaultSamplerInterval = time.Second
	DefaultSamplerGroup    = "PMP"
	DefaultSamplerChannel  = "ANE"
	DefaultFakeMilliJoules = 1500
)

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	cfg := &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Sampler: Sampler{
			Interval: DefaultSamplerInterval,
			Group:    DefaultSamplerGroup,
			Channel:  DefaultSamplerChannel,
		},
		Exporter: Exporter{
			Stdout: StdoutExporter{
				Enabled:  ptr.To(false),
				Interval: 2 * time.Second,
			},
			Prometheus: PrometheusExporter{
				Enabled:         ptr.To(true),
				DebugCollectors: []string{"go"},
			},
			MCP: MCPExporter{
				Enabled:   ptr.To(false),
				Transport: "streamable",
				Path:      "/mcp",
			},
		},
		Debug: Debug{
			Pprof: PprofDebug{
				Enabled: ptr.To(false),
			},
		},
		Web: Web{
			ListenAddresses: []string{DefaultListenAddress},
		},
	}

	cfg.Dev.FakeANEMeter.Enabled = ptr.To(false)
	cfg.Dev.FakeANEMeter.MilliJoules = DefaultFakeMilliJoules
	return cfg
}

// Load loads configuration from an io.Reader, layering it over the defaults
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := (&Builder{}).Use(DefaultConfig()).Merge(string(data)).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string) (cfg *Config, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return Load(file)
}

type ConfigUpdaterFn func(*Config) error

// RegisterFlags registers command-line flags with kingpin app
// and returns ConfigUpdaterFn that updates the config from parsed flags
// as command line arguments override config file settings
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		// Clear the map in case this function is called multiple times
		flagsSet = map[string]bool{}

		for _, element := range ctx.Elements {
			if flag, ok := element.Clause.(*kingpin.FlagClause); ok && element.Value != nil {
				flagsSet[flag.Model().Name] = true
			}
		}
		return nil
	})

	// Logging
	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum("debug", "info", "warn", "error")
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum("text", "json")

	// sampler
	samplerInterval := app.Flag(SamplerIntervalFlag,
		"Interval between the two IOReport samples used to estimate ANE power").Default(DefaultSamplerInterval.String()).Duration()

	enablePprof := app.Flag(pprofEnabledFlag, "Enable pprof debug endpoints").Default("false").Bool()
	webConfig := app.Flag(WebConfigFlag, "Web config file path").Default("").String()
	webListenAddresses := app.Flag(WebListenAddressFlag, "Web server listen addresses").Default(DefaultListenAddress).Strings()

	// exporters
	stdoutExporterEnabled := app.Flag(ExporterStdoutEnabledFlag, "Enable stdout exporter").Default("false").Bool()
	prometheusExporterEnabled := app.Flag(ExporterPrometheusEnabledFlag, "Enable Prometheus exporter").Default("true").Bool()
	mcpExporterEnabled := app.Flag(ExporterMCPEnabledFlag, "Enable Model Context Protocol server").Default("false").Bool()
	mcpTransport := app.Flag(ExporterMCPTransportFlag, "MCP transport: stdio, sse or streamable").Default("streamable").Enum("stdio", "sse", "streamable")

	return func(cfg *Config) error {
		// Logging settings
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}

		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}

		if flagsSet[SamplerIntervalFlag] {
			cfg.Sampler.Interval = *samplerInterval
		}

		if flagsSet[pprofEnabledFlag] {
			cfg.Debug.Pprof.Enabled = enablePprof
		}

		if flagsSet[WebConfigFlag] {
			cfg.Web.Config = *webConfig
		}

		if flagsSet[WebListenAddressFlag] {
			cfg.Web.ListenAddresses = *webListenAddresses
		}

		if flagsSet[ExporterStdoutEnabledFlag] {
			cfg.Exporter.Stdout.Enabled = stdoutExporterEnabled
		}

		if flagsSet[ExporterPrometheusEnabledFlag] {
			cfg.Exporter.Prometheus.Enabled = prometheusExporterEnabled
		}

		if flagsSet[ExporterMCPEnabledFlag] {
			cfg.Exporter.MCP.Enabled = mcpExporterEnabled
		}

		if flagsSet[ExporterMCPTransportFlag] {
			cfg.Exporter.MCP.Transport = *mcpTransport
		}

		cfg.sanitize()
		return cfg.Validate()
	}
}

func (c *Config) sanitize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Sampler.Group = strings.TrimSpace(c.Sampler.Group)
	c.Sampler.Channel = strings.TrimSpace(c.Sampler.Channel)
	c.Web.Config = strings.TrimSpace(c.Web.Config)
	c.Exporter.MCP.Transport = strings.TrimSpace(c.Exporter.MCP.Transport)
	c.Exporter.MCP.Path = strings.TrimSpace(c.Exporter.MCP.Path)
	for i := range c.Web.ListenAddresses {
		c.Web.ListenAddresses[i] = strings.TrimSpace(c.Web.ListenAddresses[i])
	}

	for i := range c.Exporter.Prometheus.DebugCollectors {
		c.Exporter.Prometheus.DebugCollectors[i] = strings.TrimSpace(c.Exporter.Prometheus.DebugCollectors[i])
	}
}

// Validate checks for configuration errors
func (c *Config) Validate() error {
	var errs []string
	{ // log level
		validLogLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}

		if _, valid := validLogLevels[c.Log.Level]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
		}
	}
	{ // log format
		validFormats := map[string]bool{
			"text": true,
			"json": true,
		}
		if _, valid := validFormats[c.Log.Format]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
		}
	}
	{ // Sampler
		switch {
		case c.Sampler.Interval <= 0:
			errs = append(errs, fmt.Sprintf("invalid sampler interval: %s must be positive", c.Sampler.Interval))
		case c.Sampler.Interval%time.Millisecond != 0:
			// power is averaged over whole milliseconds
			errs = append(errs, fmt.Sprintf("invalid sampler interval: %s must be a whole number of milliseconds", c.Sampler.Interval))
		}
		if c.Sampler.Group == "" {
			errs = append(errs, "sampler group cannot be empty")
		}
		if c.Sampler.Channel == "" {
			errs = append(errs, "sampler channel cannot be empty")
		}
	}
	{ // Web config file
		if c.Web.Config != "" {
			if err := canReadFile(c.Web.Config); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web config file. path: %q: %s", c.Web.Config, err.Error()))
			}
		}
	}
	{ // Web listen addresses
		if len(c.Web.ListenAddresses) == 0 {
			errs = append(errs, "at least one web listen address must be specified")
		}
		for _, addr := range c.Web.ListenAddresses {
			if addr == "" {
				errs = append(errs, "web listen address cannot be empty")
				continue
			}
			if err := validateListenAddress(addr); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web listen address %q: %s", addr, err.Error()))
			}
		}
	}
	{ // Exporters
		if ptr.Deref(c.Exporter.Stdout.Enabled, false) && c.Exporter.Stdout.Interval <= 0 {
			errs = append(errs, fmt.Sprintf("invalid stdout exporter interval: %s must be positive", c.Exporter.Stdout.Interval))
		}

		if ptr.Deref(c.Exporter.MCP.Enabled, false) {
			switch c.Exporter.MCP.Transport {
			case "stdio":
				if ptr.Deref(c.Exporter.Stdout.Enabled, false) {
					errs = append(errs, "mcp stdio transport cannot be used with the stdout exporter")
				}
			case "sse", "streamable":
				if !strings.HasPrefix(c.Exporter.MCP.Path, "/") {
					errs = append(errs, fmt.Sprintf("invalid mcp path: %q must start with /", c.Exporter.MCP.Path))
				}
			default:
				errs = append(errs, fmt.Sprintf("invalid mcp transport: %s", c.Exporter.MCP.Transport))
			}
		}
	}
	{ // Dev
		if ptr.Deref(c.Dev.FakeANEMeter.Enabled, false) && c.Dev.FakeANEMeter.MilliJoules < 0 {
			errs = append(errs, fmt.Sprintf("invalid fake ane meter energy: %d mJ can't be negative", c.Dev.FakeANEMeter.MilliJoules))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}

	return nil
}

func canReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()
	buf := make([]byte, 8)
	_, err = f.Read(buf)
	if err != nil {
		return err
	}

	return nil
}

func validateListenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	// host can be empty for listening on all interfaces
	return validatePort(port)
}

func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric, got %s", port)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", portNum)
	}
	return nil
}

func (c *Config) String() string {
	bytes, err := yaml.Marshal(c)
	if err == nil {
		return string(bytes)
	}
	// NOTE:  this code path should not happen but if it does (i.e if yaml marshal) fails
	// for some reason, manually build the string
	return c.manualString()
}

func (c *Config) manualString() string {
	cfgs := []struct {
		Name  string
		Value string
	}{
		{LogLevelFlag, c.Log.Level},
		{LogFormatFlag, c.Log.Format},
		{SamplerIntervalFlag, c.Sampler.Interval.String()},
		{SamplerGroup, c.Sampler.Group},
		{SamplerChannel, c.Sampler.Channel},
		{ExporterStdoutEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Stdout.Enabled, false))},
		{ExporterStdoutInterval, c.Exporter.Stdout.Interval.String()},
		{ExporterPrometheusEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Prometheus.Enabled, false))},
		{ExporterPrometheusDebugCollectors, strings.Join(c.Exporter.Prometheus.DebugCollectors, ", ")},
		{ExporterMCPEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.MCP.Enabled, false))},
		{ExporterMCPTransportFlag, c.Exporter.MCP.Transport},
		{ExporterMCPPath, c.Exporter.MCP.Path},
		{pprofEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Debug.Pprof.Enabled, false))},
		{WebConfigFlag, c.Web.Config},
		{WebListenAddressFlag, strings.Join(c.Web.ListenAddresses, ", ")},
	}
	sb := strings.Builder{}

	for _, cfg := range cfgs {
		sb.WriteString(cfg.Name)
		sb.WriteString(": ")
		sb.WriteString(cfg.Value)
		sb.WriteString("\n")
	}

	return sb.String()
}
