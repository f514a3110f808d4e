// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sustainable-computing-io/anepower/internal/monitor"
)

// GetANEPowerParams defines parameters for the get_ane_power tool
type GetANEPowerParams struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: text or json (default: text)"`
}

// ANEPowerInfo is the json form of a reading
type ANEPowerInfo struct {
	Present   bool      `json:"present"`
	Zone      string    `json:"zone"`
	Path      string    `json:"path"`
	Watts     float64   `json:"watts"`
	Joules    float64   `json:"joules"`
	Samples   uint64    `json:"samples"`
	Interval  string    `json:"interval"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleGetANEPower(ctx context.Context, cc *mcp.ServerSession, params *mcp.CallToolParamsFor[GetANEPowerParams]) (*mcp.CallToolResultFor[any], error) {
	s.logger.Debug("Handling get_ane_power request", "format", params.Arguments.Format)

	snapshot, err := s.monitor.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	info := toANEPowerInfo(snapshot)

	var result string
	switch params.Arguments.Format {
	case "", "text":
		result = formatANEPower(info)
	case "json":
		data, err := json.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("failed to encode reading: %w", err)
		}
		result = string(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", params.Arguments.Format)
	}

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: result}},
	}, nil
}

func toANEPowerInfo(s *monitor.Snapshot) ANEPowerInfo {
	return ANEPowerInfo{
		Present:   s.Present,
		Zone:      s.Zone,
		Path:      s.Path,
		Watts:     s.Power.Watts(),
		Joules:    s.Energy.Joules(),
		Samples:   s.Samples,
		Interval:  s.Interval.String(),
		Timestamp: s.Timestamp,
	}
}

func formatANEPower(info ANEPowerInfo) string {
	if !info.Present {
		return fmt.Sprintf("No Neural Engine found at %s; power is reported as 0W.", info.Path)
	}

	sb := strings.Builder{}
	sb.WriteString("Neural Engine power:\n")
	sb.WriteString(fmt.Sprintf("Power: %.3fW\n", info.Watts))
	sb.WriteString(fmt.Sprintf("Energy: %.2fJ\n", info.Joules))
	sb.WriteString(fmt.Sprintf("Samples: %d (every %s)\n", info.Samples, info.Interval))
	sb.WriteString(fmt.Sprintf("Path: %s\n", info.Path))
	if !info.Timestamp.IsZero() {
		sb.WriteString(fmt.Sprintf("Updated: %s\n", info.Timestamp.Format(time.RFC3339)))
	}
	return sb.String()
}
