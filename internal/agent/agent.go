// Package agent implements the mobile-entity state machine: position on the
// network, planned route, journey accounting, and a free-form property bag
// for domain attributes (cargo, automation level, RIS connectivity, ...).
//
// An agent holds no reference to the network; routing queries take it as a
// call parameter so each agent stays an independent unit owned by the
// driving loop.
package agent

import (
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/rkoopman/waterway-sim/internal/network"
)

// State describes the operational state of an agent.
type State string

const (
	StateIdle          State = "idle"
	StateTraveling     State = "traveling"
	StateAtDestination State = "at_destination"
	StateStopped       State = "stopped"
)

// Sentinel errors for agent operations.
var (
	// ErrNoRoute is returned by SetDestination when the destination is
	// unreachable. Recoverable: the caller may retry with another
	// destination or leave the agent idle.
	ErrNoRoute = errors.New("no route to destination")

	// ErrInvalidState is returned when an operation is not valid for the
	// agent's current state, e.g. advancing an agent that is not traveling.
	ErrInvalidState = errors.New("operation invalid for agent state")
)

// Agent is one mobile entity in the simulation.
type Agent struct {
	ID          string
	Type        string
	CurrentNode network.NodeID
	Origin      network.NodeID
	Destination network.NodeID // empty when no destination is set
	Route       []network.NodeID
	State       State
	PriorState  State // state before Stop; informational

	Properties map[string]any

	// Journey accumulators; non-decreasing between ResetJourney calls.
	JourneyDistance float64
	JourneyTime     float64
	WaitingTime     float64
	RouteIndex      int
}

// New creates an idle agent at the given node with an auto-assigned ID.
func New(agentType string, at network.NodeID) *Agent {
	return NewWithID(agentType+"_"+uuid.NewString()[:8], agentType, at)
}

// NewWithID creates an idle agent with an explicit ID.
func NewWithID(id, agentType string, at network.NodeID) *Agent {
	return &Agent{
		ID:          id,
		Type:        agentType,
		CurrentNode: at,
		Origin:      at,
		Route:       []network.NodeID{at},
		State:       StateIdle,
		Properties:  make(map[string]any),
	}
}

// SetDestination plans a shortest-path route from the current node and
// transitions to traveling. Setting the current node as destination is not
// an error: it yields an immediate at-destination state with a zero-length
// route. Returns ErrNoRoute when no path exists.
func (a *Agent) SetDestination(dest network.NodeID, net *network.Network) error {
	path, _, err := net.ShortestPath(a.CurrentNode, dest)
	if err != nil {
		return fmt.Errorf("agent %s: plan route: %w", a.ID, err)
	}
	if path == nil {
		return fmt.Errorf("agent %s: %s -> %s: %w", a.ID, a.CurrentNode, dest, ErrNoRoute)
	}
	a.Destination = dest
	a.Route = path
	a.RouteIndex = 0
	if a.CurrentNode == dest {
		a.State = StateAtDestination
	} else {
		a.State = StateTraveling
	}
	return nil
}

// NextNode returns the node after the current route position, or false when
// the agent is at the end of its route or has no route.
func (a *Agent) NextNode() (network.NodeID, bool) {
	if a.RouteIndex+1 < len(a.Route) {
		return a.Route[a.RouteIndex+1], true
	}
	return "", false
}

// AtDestination reports whether the agent has reached its destination.
func (a *Agent) AtDestination() bool {
	return a.Destination != "" && a.CurrentNode == a.Destination && a.State == StateAtDestination
}

// RemainingRoute returns the route from the current position onward,
// including the current node.
func (a *Agent) RemainingRoute() []network.NodeID {
	if a.RouteIndex >= len(a.Route) {
		return nil
	}
	return a.Route[a.RouteIndex:]
}

// AdvanceToNextNode moves the agent one hop along its route, accumulating
// the given distance and travel time. Requires the traveling state and a
// defined next node; fails with ErrInvalidState otherwise. Transitions to
// at-destination when the hop lands on the destination.
func (a *Agent) AdvanceToNextNode(distance, time float64) error {
	if a.State != StateTraveling {
		return fmt.Errorf("agent %s: advance in state %q: %w", a.ID, a.State, ErrInvalidState)
	}
	next, ok := a.NextNode()
	if !ok {
		return fmt.Errorf("agent %s: advance past end of route: %w", a.ID, ErrInvalidState)
	}
	a.RouteIndex++
	a.CurrentNode = next
	a.JourneyDistance += distance
	a.JourneyTime += time
	if a.CurrentNode == a.Destination {
		a.State = StateAtDestination
	}
	return nil
}

// AccrueWaiting adds time spent queued (at a crossroad) without moving the
// agent. The state is unchanged.
func (a *Agent) AccrueWaiting(time float64) {
	a.WaitingTime += time
}

// Stop pauses the agent, recording the prior state. Stopping an agent that
// is already stopped or at its destination is a no-op.
func (a *Agent) Stop() {
	if a.State == StateStopped || a.State == StateAtDestination {
		return
	}
	a.PriorState = a.State
	a.State = StateStopped
}

// Resume restores a stopped agent: traveling if route remains and the agent
// is not at its destination, at-destination if it is, idle when it has no
// destination. Calling Resume when not stopped is a no-op.
func (a *Agent) Resume() {
	if a.State != StateStopped {
		return
	}
	a.PriorState = ""
	switch {
	case a.Destination != "" && a.CurrentNode != a.Destination:
		a.State = StateTraveling
	case a.Destination != "":
		a.State = StateAtDestination
	default:
		a.State = StateIdle
	}
}

// ResetJourney zeroes the journey accumulators and route index to start a
// fresh leg from the current position. Current node, route, and state are
// left unchanged.
func (a *Agent) ResetJourney() {
	a.JourneyDistance = 0
	a.JourneyTime = 0
	a.WaitingTime = 0
	a.RouteIndex = 0
}

// Property returns the value stored under key, or def when absent.
func (a *Agent) Property(key string, def any) any {
	if v, ok := a.Properties[key]; ok {
		return v
	}
	return def
}

// SetProperty stores an arbitrary-typed value under key.
func (a *Agent) SetProperty(key string, value any) {
	if a.Properties == nil {
		a.Properties = make(map[string]any)
	}
	a.Properties[key] = value
}

// Data is the serialisable snapshot of an agent, losslessly round-trippable
// through ToData / FromData.
type Data struct {
	ID              string           `json:"agent_id" yaml:"agent_id"`
	Type            string           `json:"agent_type" yaml:"agent_type"`
	CurrentNode     network.NodeID   `json:"current_node" yaml:"current_node"`
	Origin          network.NodeID   `json:"origin" yaml:"origin"`
	Destination     network.NodeID   `json:"destination,omitempty" yaml:"destination,omitempty"`
	Route           []network.NodeID `json:"route" yaml:"route"`
	State           string           `json:"state" yaml:"state"`
	PriorState      string           `json:"prior_state,omitempty" yaml:"prior_state,omitempty"`
	Properties      map[string]any   `json:"properties" yaml:"properties"`
	JourneyDistance float64          `json:"journey_distance" yaml:"journey_distance"`
	JourneyTime     float64          `json:"journey_time" yaml:"journey_time"`
	WaitingTime     float64          `json:"waiting_time" yaml:"waiting_time"`
	RouteIndex      int              `json:"route_index" yaml:"route_index"`
}

// ToData exports the full agent state, including the property bag and the
// state as a string tag.
func (a *Agent) ToData() Data {
	return Data{
		ID:              a.ID,
		Type:            a.Type,
		CurrentNode:     a.CurrentNode,
		Origin:          a.Origin,
		Destination:     a.Destination,
		Route:           append([]network.NodeID(nil), a.Route...),
		State:           string(a.State),
		PriorState:      string(a.PriorState),
		Properties:      maps.Clone(a.Properties),
		JourneyDistance: a.JourneyDistance,
		JourneyTime:     a.JourneyTime,
		WaitingTime:     a.WaitingTime,
		RouteIndex:      a.RouteIndex,
	}
}

// FromData reconstructs an agent from a snapshot. Returns an error for an
// unknown state tag.
func FromData(d Data) (*Agent, error) {
	state := State(d.State)
	switch state {
	case StateIdle, StateTraveling, StateAtDestination, StateStopped:
	case "":
		state = StateIdle
	default:
		return nil, fmt.Errorf("agent %s: unknown state %q", d.ID, d.State)
	}
	props := d.Properties
	if props == nil {
		props = make(map[string]any)
	}
	route := d.Route
	if len(route) == 0 {
		route = []network.NodeID{d.CurrentNode}
	}
	return &Agent{
		ID:              d.ID,
		Type:            d.Type,
		CurrentNode:     d.CurrentNode,
		Origin:          d.Origin,
		Destination:     d.Destination,
		Route:           route,
		State:           state,
		PriorState:      State(d.PriorState),
		Properties:      props,
		JourneyDistance: d.JourneyDistance,
		JourneyTime:     d.JourneyTime,
		WaitingTime:     d.WaitingTime,
		RouteIndex:      d.RouteIndex,
	}, nil
}
