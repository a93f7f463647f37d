// Package export writes simulation results to external formats: the full
// log as JSON and per-vessel journey metrics as CSV. The core packages
// expose plain data; this package owns the formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/rkoopman/waterway-sim/internal/sim"
)

// WriteLogJSON writes the complete simulation log as indented JSON.
func WriteLogJSON(w io.Writer, log sim.SimulationLog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(log); err != nil {
		return fmt.Errorf("encoding simulation log: %w", err)
	}
	return nil
}

// agentMetricsHeader is the CSV column layout for per-vessel metrics.
var agentMetricsHeader = []string{
	"ship_id",
	"ship_type",
	"origin",
	"destination",
	"state",
	"distance_km",
	"travel_time_hours",
	"waiting_time_hours",
	"total_time_hours",
}

// WriteAgentMetricsCSV writes one row per vessel from the final log row,
// carrying each vessel's journey accumulators. An empty log yields just the
// header.
func WriteAgentMetricsCSV(w io.Writer, log sim.SimulationLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(agentMetricsHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	if len(log.Output) > 0 {
		final := log.Output[len(log.Output)-1]
		for _, a := range final.Agents {
			row := []string{
				a.ID,
				a.Type,
				a.Origin,
				a.Destination,
				a.State,
				formatFloat(a.JourneyDistance),
				formatFloat(a.JourneyTime),
				formatFloat(a.WaitingTime),
				formatFloat(a.JourneyTime + a.WaitingTime),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing row for %s: %w", a.ID, err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
