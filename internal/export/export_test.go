package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rkoopman/waterway-sim/internal/agent"
	"github.com/rkoopman/waterway-sim/internal/sim"
)

func sampleLog() sim.SimulationLog {
	return sim.SimulationLog{
		Meta: sim.SimulationMeta{SimulationID: "export-test", MaxSteps: 2, TickHours: 1},
		Output: []sim.SimulationLogRow{
			{Step: 0, Time: 0},
			{Step: 1, Time: 1, Agents: []agent.Data{
				{
					ID:              "ship_1",
					Type:            "cargo",
					CurrentNode:     "Basel",
					Origin:          "Rotterdam",
					Destination:     "Basel",
					State:           string(agent.StateAtDestination),
					JourneyDistance: 873,
					JourneyTime:     62.5,
					WaitingTime:     1.5,
				},
				{
					ID:          "ship_2",
					Type:        "tanker",
					CurrentNode: "Cologne",
					Origin:      "Rotterdam",
					State:       string(agent.StateTraveling),
				},
			}},
		},
		Metrics: sim.SimulationMetrics{CompletedJourneys: 1},
	}
}

func TestWriteLogJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLogJSON(&buf, sampleLog()); err != nil {
		t.Fatalf("WriteLogJSON: %v", err)
	}

	var back sim.SimulationLog
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if back.Meta.SimulationID != "export-test" {
		t.Errorf("SimulationID = %q", back.Meta.SimulationID)
	}
	if len(back.Output) != 2 {
		t.Errorf("rows = %d, want 2", len(back.Output))
	}
	if back.Metrics.CompletedJourneys != 1 {
		t.Errorf("CompletedJourneys = %d, want 1", back.Metrics.CompletedJourneys)
	}
}

func TestWriteAgentMetricsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAgentMetricsCSV(&buf, sampleLog()); err != nil {
		t.Fatalf("WriteAgentMetricsCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 vessels", len(rows))
	}
	if rows[0][0] != "ship_id" || rows[0][8] != "total_time_hours" {
		t.Errorf("header = %v", rows[0])
	}

	ship1 := rows[1]
	if ship1[0] != "ship_1" || ship1[3] != "Basel" || ship1[4] != "at_destination" {
		t.Errorf("ship_1 row = %v", ship1)
	}
	if ship1[5] != "873.000" {
		t.Errorf("distance = %q, want 873.000", ship1[5])
	}
	if ship1[8] != "64.000" {
		t.Errorf("total time = %q, want 64.000 (travel + waiting)", ship1[8])
	}
}

func TestWriteAgentMetricsCSVEmptyLog(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAgentMetricsCSV(&buf, sim.SimulationLog{}); err != nil {
		t.Fatalf("empty log: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	if got != strings.Join([]string{
		"ship_id", "ship_type", "origin", "destination", "state",
		"distance_km", "travel_time_hours", "waiting_time_hours", "total_time_hours",
	}, ",") {
		t.Errorf("empty log output = %q, want just the header", got)
	}
}
