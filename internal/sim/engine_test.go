package sim

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/rkoopman/waterway-sim/internal/agent"
	"github.com/rkoopman/waterway-sim/internal/network"
	"github.com/rkoopman/waterway-sim/internal/traffic"
)

// lineData is the undirected chain A-X-D with a 10 km and a 5 km segment.
func lineData() network.NetworkData {
	return network.NetworkData{
		Nodes: []network.Node{{ID: "A"}, {ID: "X"}, {ID: "D"}},
		Edges: []network.Edge{
			{Source: "A", Target: "X", Weight: 10},
			{Source: "X", Target: "D", Weight: 5},
		},
	}
}

// starData is an undirected star with 10 km spokes meeting at the
// crossroad X.
func starData() network.NetworkData {
	return network.NetworkData{
		Nodes: []network.Node{{ID: "X"}, {ID: "A"}, {ID: "B"}, {ID: "C"}},
		Edges: []network.Edge{
			{Source: "A", Target: "X", Weight: 10},
			{Source: "B", Target: "X", Weight: 10},
			{Source: "C", Target: "X", Weight: 10},
		},
	}
}

func findAgent(t *testing.T, row SimulationLogRow, id string) agent.Data {
	t.Helper()
	for _, a := range row.Agents {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("agent %q not in log row", id)
	return agent.Data{}
}

// freeFlow disables congestion so hop times are exactly distance over base
// speed.
func freeFlow() traffic.Config {
	cfg := traffic.DefaultConfig()
	cfg.CongestionImpactFactor = 0
	return cfg
}

func TestRunCompletesRoute(t *testing.T) {
	input := SimulationInput{
		Meta:    SimulationMeta{SimulationID: "line", MaxSteps: 10, TickHours: 0.5},
		Network: lineData(),
		Traffic: freeFlow(),
		Vessels: []VesselSpec{
			{ID: "ship_1", Type: "cargo", Start: "A", Destination: "D", SpeedKmh: 10},
		},
	}
	eng, err := NewEngine(input)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	log, err := eng.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	final := findAgent(t, log.Output[len(log.Output)-1], "ship_1")
	if final.State != string(agent.StateAtDestination) {
		t.Fatalf("final state = %q, want at_destination", final.State)
	}
	if final.CurrentNode != "D" {
		t.Errorf("final node = %q, want D", final.CurrentNode)
	}
	// 10 km + 5 km at 10 km/h on an empty network.
	if math.Abs(final.JourneyDistance-15) > 1e-9 {
		t.Errorf("distance = %v, want 15", final.JourneyDistance)
	}
	if math.Abs(final.JourneyTime-1.5) > 1e-9 {
		t.Errorf("travel time = %v, want 1.5", final.JourneyTime)
	}
	if final.WaitingTime != 0 {
		t.Errorf("waiting time = %v, want 0 on an empty network", final.WaitingTime)
	}

	if log.Metrics.CompletedJourneys != 1 {
		t.Errorf("CompletedJourneys = %d, want 1", log.Metrics.CompletedJourneys)
	}
	if math.Abs(log.Metrics.TotalDistanceKm-15) > 1e-9 {
		t.Errorf("TotalDistanceKm = %v, want 15", log.Metrics.TotalDistanceKm)
	}
}

func TestZeroLengthJourney(t *testing.T) {
	input := SimulationInput{
		Meta:    SimulationMeta{MaxSteps: 3, TickHours: 1},
		Network: lineData(),
		Vessels: []VesselSpec{
			{ID: "ship_1", Start: "A", Destination: "A", SpeedKmh: 10},
		},
	}
	eng, err := NewEngine(input)
	if err != nil {
		t.Fatal(err)
	}
	log, err := eng.Run()
	if err != nil {
		t.Fatal(err)
	}
	final := findAgent(t, log.Output[len(log.Output)-1], "ship_1")
	if final.State != string(agent.StateAtDestination) {
		t.Errorf("state = %q, want at_destination immediately", final.State)
	}
	if final.JourneyDistance != 0 || final.JourneyTime != 0 || final.WaitingTime != 0 {
		t.Error("zero-length journey must not accumulate anything")
	}
	if log.Metrics.CompletedJourneys != 1 {
		t.Errorf("CompletedJourneys = %d, want 1", log.Metrics.CompletedJourneys)
	}
}

func TestIdleVesselStaysPut(t *testing.T) {
	input := SimulationInput{
		Meta:    SimulationMeta{MaxSteps: 5, TickHours: 1},
		Network: lineData(),
		Vessels: []VesselSpec{{ID: "ship_1", Start: "X"}},
	}
	eng, err := NewEngine(input)
	if err != nil {
		t.Fatal(err)
	}
	log, err := eng.Run()
	if err != nil {
		t.Fatal(err)
	}
	final := findAgent(t, log.Output[len(log.Output)-1], "ship_1")
	if final.State != string(agent.StateIdle) || final.CurrentNode != "X" {
		t.Errorf("idle vessel moved: state %q at %q", final.State, final.CurrentNode)
	}
}

func TestAccumulatorsMonotonic(t *testing.T) {
	input := SimulationInput{
		Meta:    SimulationMeta{MaxSteps: 20, TickHours: 0.5},
		Network: starData(),
		Vessels: []VesselSpec{
			{ID: "ship_1", Start: "A", Destination: "B", SpeedKmh: 10},
			{ID: "ship_2", Start: "C", Destination: "B", SpeedKmh: 10},
		},
	}
	eng, err := NewEngine(input)
	if err != nil {
		t.Fatal(err)
	}
	log, err := eng.Run()
	if err != nil {
		t.Fatal(err)
	}

	prev := map[string]agent.Data{}
	for _, row := range log.Output {
		for _, a := range row.Agents {
			if p, ok := prev[a.ID]; ok {
				if a.JourneyDistance < p.JourneyDistance ||
					a.JourneyTime < p.JourneyTime ||
					a.WaitingTime < p.WaitingTime {
					t.Fatalf("step %d: accumulators decreased for %s", row.Step, a.ID)
				}
			}
			prev[a.ID] = a
		}
	}
}

func TestCrossroadSerializesTraffic(t *testing.T) {
	// Two vessels reach the crossroad X in the same tick; ship_1 is admitted
	// first by ID order, ship_2 queues and accrues waiting time.
	input := SimulationInput{
		Meta:    SimulationMeta{MaxSteps: 20, TickHours: 0.5},
		Network: starData(),
		Vessels: []VesselSpec{
			{ID: "ship_1", Start: "A", Destination: "B", SpeedKmh: 10},
			{ID: "ship_2", Start: "C", Destination: "B", SpeedKmh: 10},
		},
	}
	eng, err := NewEngine(input)
	if err != nil {
		t.Fatal(err)
	}
	log, err := eng.Run()
	if err != nil {
		t.Fatal(err)
	}

	final := log.Output[len(log.Output)-1]
	first := findAgent(t, final, "ship_1")
	second := findAgent(t, final, "ship_2")

	if first.State != string(agent.StateAtDestination) || second.State != string(agent.StateAtDestination) {
		t.Fatalf("both vessels must arrive: %q / %q", first.State, second.State)
	}
	if first.WaitingTime != 0 {
		t.Errorf("ship_1 waiting = %v, want 0 (admitted first)", first.WaitingTime)
	}
	if second.WaitingTime <= 0 {
		t.Errorf("ship_2 waiting = %v, want > 0 (queued behind ship_1)", second.WaitingTime)
	}

	// Conservation: nobody left on any edge, crossroad free.
	for key, stats := range final.Edges {
		if stats.Occupants != 0 {
			t.Errorf("edge %s still has %d occupants after all arrivals", key, stats.Occupants)
		}
	}
	if stats := final.Crossroads["X"]; stats.OccupiedBy != "" || stats.QueueLength != 0 {
		t.Errorf("crossroad not drained: %+v", stats)
	}
}

func TestNewEngineRejectsUnknownStart(t *testing.T) {
	input := SimulationInput{
		Meta:    SimulationMeta{MaxSteps: 1},
		Network: lineData(),
		Vessels: []VesselSpec{{ID: "ship_1", Start: "nowhere"}},
	}
	if _, err := NewEngine(input); err == nil {
		t.Fatal("unknown start node must fail construction")
	}
}

func TestNewEngineRejectsUnreachableDestination(t *testing.T) {
	data := lineData()
	data.Nodes = append(data.Nodes, network.Node{ID: "island"})
	input := SimulationInput{
		Meta:    SimulationMeta{MaxSteps: 1},
		Network: data,
		Vessels: []VesselSpec{{ID: "ship_1", Start: "A", Destination: "island"}},
	}
	if _, err := NewEngine(input); err == nil {
		t.Fatal("unreachable destination must fail construction")
	}
}

func TestCongestionSlowsTravel(t *testing.T) {
	// Capacity 2 on the 10 km edge: the first entrant sails at half density,
	// the second at full density, so the later entrant needs longer for the
	// same hop.
	cfg := traffic.Config{
		VesselsPerKmCapacity:      0.2,
		CongestionImpactFactor:    0.7,
		MinSpeedRatio:             0.3,
		CrossroadTransitTimeHours: 0.5,
	}
	input := SimulationInput{
		Meta:    SimulationMeta{MaxSteps: 40, TickHours: 0.5},
		Network: lineData(),
		Traffic: cfg,
		Vessels: []VesselSpec{
			{ID: "ship_1", Start: "A", Destination: "X", SpeedKmh: 10},
			{ID: "ship_2", Start: "A", Destination: "X", SpeedKmh: 10},
		},
	}
	eng, err := NewEngine(input)
	if err != nil {
		t.Fatal(err)
	}
	log, err := eng.Run()
	if err != nil {
		t.Fatal(err)
	}

	final := log.Output[len(log.Output)-1]
	first := findAgent(t, final, "ship_1")
	second := findAgent(t, final, "ship_2")
	if first.JourneyTime >= second.JourneyTime {
		t.Errorf("travel times %v vs %v: the later entrant must be slower", first.JourneyTime, second.JourneyTime)
	}
}

func TestRunJSONRoundTrip(t *testing.T) {
	input := SimulationInput{
		Meta:    SimulationMeta{SimulationID: "json", MaxSteps: 10, TickHours: 0.5},
		Network: lineData(),
		Vessels: []VesselSpec{
			{ID: "ship_1", Type: "cargo", Start: "A", Destination: "D", SpeedKmh: 10},
		},
	}
	raw, err := json.Marshal(input)
	if err != nil {
		t.Fatal(err)
	}

	out, err := RunJSON(string(raw))
	if err != nil {
		t.Fatalf("RunJSON: %v", err)
	}

	var log SimulationLog
	if err := json.Unmarshal([]byte(out), &log); err != nil {
		t.Fatalf("output is not valid SimulationLog JSON: %v", err)
	}
	if log.Meta.SimulationID != "json" {
		t.Errorf("SimulationID = %q, want json", log.Meta.SimulationID)
	}
	if len(log.Output) != 11 {
		t.Errorf("rows = %d, want 11 (initial state + 10 steps)", len(log.Output))
	}
	final := findAgent(t, log.Output[len(log.Output)-1], "ship_1")
	if final.State != string(agent.StateAtDestination) {
		t.Errorf("final state = %q, want at_destination", final.State)
	}
}

func TestRunJSONInvalidInput(t *testing.T) {
	if _, err := RunJSON("{not json"); err == nil {
		t.Fatal("invalid JSON must fail")
	}
}
