package sim

import (
	"github.com/rkoopman/waterway-sim/internal/agent"
	"github.com/rkoopman/waterway-sim/internal/network"
	"github.com/rkoopman/waterway-sim/internal/traffic"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id" yaml:"simulation_id"`
	MaxSteps     int     `json:"max_steps" yaml:"max_steps"`
	TickHours    float64 `json:"tick_hours" yaml:"tick_hours"` // defaults to 1.0 when zero
}

// VesselSpec is the static definition of one vessel entering the simulation.
type VesselSpec struct {
	ID          string         `json:"vessel_id" yaml:"vessel_id"`
	Type        string         `json:"vessel_type" yaml:"vessel_type"`
	Start       network.NodeID `json:"start" yaml:"start"`
	Destination network.NodeID `json:"destination,omitempty" yaml:"destination,omitempty"`
	SpeedKmh    float64        `json:"speed_kmh" yaml:"speed_kmh"`
	Properties  map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// SimulationInput is the serialisable input to the engine.
type SimulationInput struct {
	Meta    SimulationMeta      `json:"simulation_meta" yaml:"simulation_meta"`
	Network network.NetworkData `json:"network_data" yaml:"network_data"`
	Traffic traffic.Config      `json:"traffic_config" yaml:"traffic_config"`
	Vessels []VesselSpec        `json:"vessel_list" yaml:"vessel_list"`
}

// SimulationLogRow is the state of the whole simulation at a single step.
type SimulationLogRow struct {
	Step       int                               `json:"step"`
	Time       float64                           `json:"time"` // hours
	Agents     []agent.Data                      `json:"agent_logs"`
	Edges      map[string]traffic.EdgeStats      `json:"edge_stats"`
	Crossroads map[string]traffic.CrossroadStats `json:"crossroad_stats,omitempty"`
}

// SimulationMetrics are the aggregate journey figures for a completed run.
type SimulationMetrics struct {
	CompletedJourneys int     `json:"completed_journeys"`
	TotalDistanceKm   float64 `json:"total_distance_km"`
	TotalTravelHours  float64 `json:"total_travel_hours"`
	TotalWaitingHours float64 `json:"total_waiting_hours"`
	AvgTravelHours    float64 `json:"avg_travel_hours"`
	AvgWaitingHours   float64 `json:"avg_waiting_hours"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta    SimulationMeta     `json:"simulation_meta"`
	Output  []SimulationLogRow `json:"output"`
	Metrics SimulationMetrics  `json:"metrics"`
}

// hopState tracks one in-progress edge traversal. The agent occupies the
// edge from entry until the hop completes and any crossroad admission at the
// far node is granted.
type hopState struct {
	from      network.NodeID
	to        network.NodeID
	distance  float64 // km
	travel    float64 // hours at the speed granted on entry
	remaining float64 // hours left on the edge
	waiting   bool    // queued at the crossroad at `to`

	// Waiting accounting: when the queue was joined and how much waiting
	// has been credited so far. Reconciled against the actual grant time at
	// promotion.
	queuedAt    float64
	waitAccrued float64
}

// Engine drives the simulation: it owns the network, the traffic manager,
// and the agents, and advances them in fixed ticks.
type Engine struct {
	meta    SimulationMeta
	net     *network.Network
	mgr     *traffic.Manager
	agents  []*agent.Agent
	speeds  map[string]float64 // base speed per agent, km/h
	hops    map[string]*hopState
	holds   map[string]crossingHold
	curStep int
	curTime float64
}

// crossingHold records that the agent occupies a crossroad until the given
// time; it departs on the next node only after the hold expires.
type crossingHold struct {
	node  network.NodeID
	until float64
}
