// Package sim implements the traffic-aware simulation loop.
//
// The simulation advances in fixed ticks. Each tick has two phases:
//
//  1. Clock pass - the traffic manager's clock moves to the tick time, which
//     promotes queued vessels at crossroads whose occupation has expired.
//
//  2. Movement pass - every traveling vessel, visited in ascending ID order,
//     spends the tick's time budget on its current hop: entering the next
//     edge at the congestion-degraded speed, burning down the remaining
//     travel time, and requesting crossroad admission when the hop completes.
//     A vessel denied admission keeps occupying its edge and accrues waiting
//     time until promoted.
//
// The fixed visiting order makes runs reproducible: two vessels arriving at
// a crossroad in the same tick are admitted in vessel-ID order.
package sim

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rkoopman/waterway-sim/internal/agent"
	"github.com/rkoopman/waterway-sim/internal/network"
	"github.com/rkoopman/waterway-sim/internal/traffic"
)

// DefaultSpeedKmh is used for vessels whose spec gives no base speed.
const DefaultSpeedKmh = 14.0

// NewEngine constructs an Engine from a SimulationInput, building the
// network and traffic manager and routing each vessel to its destination.
// A vessel with an unreachable destination fails construction; an empty
// destination leaves the vessel idle at its start node.
func NewEngine(input SimulationInput) (*Engine, error) {
	net, err := network.FromData(input.Network)
	if err != nil {
		return nil, fmt.Errorf("building network: %w", err)
	}

	meta := input.Meta
	if meta.TickHours <= 0 {
		meta.TickHours = 1.0
	}

	cfg := input.Traffic
	if cfg == (traffic.Config{}) {
		cfg = traffic.DefaultConfig()
	}

	e := &Engine{
		meta:   meta,
		net:    net,
		mgr:    traffic.NewManager(net, cfg),
		speeds: make(map[string]float64, len(input.Vessels)),
		hops:   make(map[string]*hopState),
		holds:  make(map[string]crossingHold),
	}

	for _, spec := range input.Vessels {
		if _, ok := net.GetNode(spec.Start); !ok {
			return nil, fmt.Errorf("vessel %q: start node %q: %w", spec.ID, spec.Start, network.ErrNotFound)
		}
		a := agent.NewWithID(spec.ID, spec.Type, spec.Start)
		for k, v := range spec.Properties {
			a.SetProperty(k, v)
		}
		if spec.Destination != "" {
			if err := a.SetDestination(spec.Destination, net); err != nil {
				return nil, err
			}
		}
		speed := spec.SpeedKmh
		if speed <= 0 {
			speed = DefaultSpeedKmh
		}
		e.speeds[a.ID] = speed
		e.agents = append(e.agents, a)
	}
	sort.Slice(e.agents, func(i, j int) bool { return e.agents[i].ID < e.agents[j].ID })

	return e, nil
}

// Network returns the engine's network.
func (e *Engine) Network() *network.Network { return e.net }

// Traffic returns the engine's traffic manager.
func (e *Engine) Traffic() *traffic.Manager { return e.mgr }

// Agents returns the engine's agents in visiting order.
func (e *Engine) Agents() []*agent.Agent { return e.agents }

// Run executes the full simulation and returns the log, one row per step
// including the initial state at step 0.
func (e *Engine) Run() (SimulationLog, error) {
	log := SimulationLog{Meta: e.meta}
	log.Output = append(log.Output, e.snapshot())
	for e.curStep < e.meta.MaxSteps {
		row, err := e.Step()
		if err != nil {
			return SimulationLog{}, fmt.Errorf("at step %d: %w", e.curStep, err)
		}
		log.Output = append(log.Output, row)
	}
	log.Metrics = e.Metrics()
	return log, nil
}

// Step advances the simulation by one tick and returns the resulting row.
func (e *Engine) Step() (SimulationLogRow, error) {
	e.curStep++
	e.curTime = float64(e.curStep) * e.meta.TickHours
	e.mgr.AdvanceTime(e.curTime)

	for _, a := range e.agents {
		if err := e.stepAgent(a, e.meta.TickHours); err != nil {
			return SimulationLogRow{}, err
		}
	}
	return e.snapshot(), nil
}

// stepAgent spends dt hours of simulation time on one agent's journey. Hop
// boundaries do not have to align with ticks: when a hop completes mid-tick
// the leftover budget flows into the next hop.
func (e *Engine) stepAgent(a *agent.Agent, dt float64) error {
	budget := dt
	for budget > 0 && a.State == agent.StateTraveling {
		st := e.hops[a.ID]
		switch {
		case st == nil:
			consumed, err := e.startHop(a, budget)
			if err != nil {
				return err
			}
			budget -= consumed
		case st.waiting:
			if p, ok := e.mgr.ClaimGrant(a.ID, st.to); ok {
				// Credit the wait up to the actual grant time, minus what
				// the per-tick accrual already covered.
				grantStart := p.EndsAt - e.mgr.Config().CrossroadTransitTimeHours
				if delta := grantStart - st.queuedAt - st.waitAccrued; delta > 0 {
					a.AccrueWaiting(delta)
				}
				if err := e.completeHop(a, st); err != nil {
					return err
				}
				if a.State == agent.StateTraveling {
					e.holds[a.ID] = crossingHold{node: st.to, until: p.EndsAt}
				}
				continue
			}
			a.AccrueWaiting(budget)
			st.waitAccrued += budget
			budget = 0
		case st.remaining > budget:
			st.remaining -= budget
			budget = 0
		default:
			budget -= st.remaining
			st.remaining = 0
			passage, err := e.mgr.RequestCrossroadPassage(a.ID, st.to, e.curTime)
			if err != nil {
				return err
			}
			if !passage.Granted {
				st.waiting = true
				st.queuedAt = e.curTime
				continue
			}
			if err := e.completeHop(a, st); err != nil {
				return err
			}
			if a.State == agent.StateTraveling && e.mgr.IsCrossroad(st.to) {
				e.holds[a.ID] = crossingHold{node: st.to, until: passage.EndsAt}
			}
		}
	}
	return nil
}

// startHop enters the agent onto the edge toward its next node and returns
// how much of the budget was consumed. A crossroad hold from the previous
// hop consumes the whole budget until the hold expires.
func (e *Engine) startHop(a *agent.Agent, budget float64) (float64, error) {
	if hold, ok := e.holds[a.ID]; ok {
		if e.curTime < hold.until {
			return budget, nil
		}
		e.mgr.ReleaseCrossroad(a.ID, hold.node)
		delete(e.holds, a.ID)
	}

	next, ok := a.NextNode()
	if !ok {
		return 0, fmt.Errorf("agent %s: traveling with no next node: %w", a.ID, agent.ErrInvalidState)
	}
	edge, ok := e.net.GetEdge(a.CurrentNode, next)
	if !ok {
		return 0, fmt.Errorf("agent %s: edge %s->%s: %w", a.ID, a.CurrentNode, next, network.ErrNotFound)
	}

	speed, err := e.mgr.RequestEdgeEntry(a.ID, a.CurrentNode, next, e.speeds[a.ID])
	if err != nil {
		return 0, err
	}
	dist := edge.DistanceKm()
	e.hops[a.ID] = &hopState{
		from:      a.CurrentNode,
		to:        next,
		distance:  dist,
		travel:    dist / speed,
		remaining: dist / speed,
	}
	return 0, nil
}

// completeHop takes the agent off the edge and onto the hop's far node,
// crediting the hop's distance and travel time to the journey accumulators.
func (e *Engine) completeHop(a *agent.Agent, st *hopState) error {
	if err := e.mgr.NotifyEdgeExit(a.ID, st.from, st.to); err != nil {
		return err
	}
	if err := a.AdvanceToNextNode(st.distance, st.travel); err != nil {
		return err
	}
	delete(e.hops, a.ID)
	if a.State != agent.StateTraveling {
		// Journey over; do not keep a crossroad held at the destination.
		e.mgr.ReleaseCrossroad(a.ID, st.to)
		if hold, ok := e.holds[a.ID]; ok {
			e.mgr.ReleaseCrossroad(a.ID, hold.node)
			delete(e.holds, a.ID)
		}
	}
	return nil
}

// snapshot records the full simulation state as one log row, agents in
// visiting order.
func (e *Engine) snapshot() SimulationLogRow {
	logs := make([]agent.Data, len(e.agents))
	for i, a := range e.agents {
		logs[i] = a.ToData()
	}
	return SimulationLogRow{
		Step:       e.curStep,
		Time:       e.curTime,
		Agents:     logs,
		Edges:      e.mgr.EdgeStatsAll(),
		Crossroads: e.mgr.CrossroadStatsAll(),
	}
}

// Metrics aggregates the journey accumulators across all agents.
func (e *Engine) Metrics() SimulationMetrics {
	var m SimulationMetrics
	for _, a := range e.agents {
		if a.AtDestination() {
			m.CompletedJourneys++
		}
		m.TotalDistanceKm += a.JourneyDistance
		m.TotalTravelHours += a.JourneyTime
		m.TotalWaitingHours += a.WaitingTime
	}
	if n := len(e.agents); n > 0 {
		m.AvgTravelHours = m.TotalTravelHours / float64(n)
		m.AvgWaitingHours = m.TotalWaitingHours / float64(n)
	}
	return m
}

// RunJSON is the primary entry point for the CLI and WASM targets. It
// accepts a JSON-encoded SimulationInput, runs the simulation, and returns
// a JSON-encoded SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	var input SimulationInput
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	eng, err := NewEngine(input)
	if err != nil {
		return "", err
	}

	simLog, err := eng.Run()
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
