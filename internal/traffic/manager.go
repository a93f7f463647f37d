package traffic

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rkoopman/waterway-sim/internal/network"
)

// ErrInvariant is returned when occupancy bookkeeping is violated: an edge
// exit without a matching entry, a double entry, or a duplicate crossroad
// request. Fatal to the run; it indicates a driver-loop bug, so it is never
// swallowed.
var ErrInvariant = errors.New("traffic occupancy invariant violated")

// Config carries the traffic model parameters. It is passed explicitly into
// NewManager rather than read from process-wide state, so simulations stay
// reproducible and testable in isolation.
type Config struct {
	// VesselsPerKmCapacity is the maximum number of vessels per kilometre of
	// waterway; edge capacity = distance_km x this value.
	VesselsPerKmCapacity float64 `json:"vessels_per_km_capacity" yaml:"vessels_per_km_capacity"`

	// CongestionImpactFactor is the maximum fractional speed reduction at or
	// above capacity (0..1).
	CongestionImpactFactor float64 `json:"congestion_impact_factor" yaml:"congestion_impact_factor"`

	// MinSpeedRatio is the floor on the speed multiplier (0..1); vessels keep
	// at least this fraction of base speed at any congestion level.
	MinSpeedRatio float64 `json:"min_speed_ratio" yaml:"min_speed_ratio"`

	// CrossroadTransitTimeHours is the fixed time an agent occupies a
	// crossroad while passing through it.
	CrossroadTransitTimeHours float64 `json:"crossroad_transit_time_hours" yaml:"crossroad_transit_time_hours"`

	// DistanceMeanderingFactor is recognised and carried but intentionally
	// never applied: network distances are used as-is. River distances run
	// 10-20% longer than the straight-line values the model uses.
	DistanceMeanderingFactor float64 `json:"distance_meandering_factor,omitempty" yaml:"distance_meandering_factor,omitempty"`
}

// DefaultConfig returns the calibrated Rhine-corridor defaults.
func DefaultConfig() Config {
	return Config{
		VesselsPerKmCapacity:      12,
		CongestionImpactFactor:    0.7,
		MinSpeedRatio:             0.3,
		CrossroadTransitTimeHours: 0.5,
		DistanceMeanderingFactor:  1.15,
	}
}

// Passage is the result of a crossroad admission request.
type Passage struct {
	// Granted reports immediate admission; the agent occupies the crossroad.
	Granted bool
	// Wait is the modeled wait in hours when not granted.
	Wait float64
	// EndsAt is the time the granted crossing completes; zero when queued.
	EndsAt float64
}

// Manager is the single authority agents consult before advancing: it
// composes per-edge occupancy tracking and per-crossroad admission across
// the whole network. All compound operations run under one lock so a feed
// goroutine may snapshot stats while the driving loop steps.
type Manager struct {
	mu         sync.Mutex
	cfg        Config
	edges      map[string]*EdgeTraffic
	crossroads map[string]*Crossroad
	grants     map[string]grant
	now        float64
}

// grant records a queue promotion not yet claimed by the agent. Kept
// separately from the live occupancy so a grant survives until the agent's
// next step even if the occupation itself has already expired.
type grant struct {
	node   network.NodeID
	endsAt float64
}

// EdgeKey returns the tracking key for a directed edge.
func EdgeKey(source, target network.NodeID) string { return source + "->" + target }

// NewManager builds trackers for every traversable directed edge of the
// network and a crossroad for every node with degree >= 3.
func NewManager(net *network.Network, cfg Config) *Manager {
	m := &Manager{
		cfg:        cfg,
		edges:      make(map[string]*EdgeTraffic),
		crossroads: make(map[string]*Crossroad),
		grants:     make(map[string]grant),
	}
	for _, e := range net.DirectedEdges() {
		key := EdgeKey(e.Source, e.Target)
		dist := e.DistanceKm()
		m.edges[key] = newEdgeTraffic(key, dist, dist*cfg.VesselsPerKmCapacity)
	}
	for _, node := range net.Data().Nodes {
		if deg, err := net.Degree(node.ID); err == nil && deg >= 3 {
			m.crossroads[node.ID] = newCrossroad(node.ID)
		}
	}
	return m
}

// Config returns the model parameters the manager was built with.
func (m *Manager) Config() Config { return m.cfg }

// Now returns the manager's current simulation time in hours.
func (m *Manager) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AdvanceTime moves the simulation clock forward and promotes queued agents
// at crossroads whose occupation has expired. Time never moves backward.
func (m *Manager) AdvanceTime(now float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now > m.now {
		m.now = now
	}
	for _, c := range m.crossroads {
		m.promote(c)
	}
}

// promote grants the crossroad to waiting agents in (arrival, id) order for
// as long as occupation slots have expired. Caller holds m.mu.
func (m *Manager) promote(c *Crossroad) {
	for c.available(m.now) {
		next, ok := c.dequeue()
		if !ok {
			if c.occupiedBy != "" && m.now >= c.occupationEnd {
				c.release()
			}
			return
		}
		start := m.now
		if c.occupiedBy != "" && c.occupationEnd > start {
			start = c.occupationEnd
		}
		ends := c.occupy(next, start, m.cfg.CrossroadTransitTimeHours)
		m.grants[next] = grant{node: c.NodeID, endsAt: ends}
	}
}

// ClaimGrant reports and consumes a pending queue promotion for the agent at
// the given crossroad. Returns false when no promotion has happened yet.
func (m *Manager) ClaimGrant(agentID string, node network.NodeID) (Passage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[agentID]
	if !ok || g.node != node {
		return Passage{}, false
	}
	delete(m.grants, agentID)
	return Passage{Granted: true, EndsAt: g.endsAt}, true
}

// RequestEdgeEntry registers the agent as occupying the directed edge and
// returns the effective speed for the given base speed under current
// congestion. A double entry violates the enter/exit pairing invariant.
func (m *Manager) RequestEdgeEntry(agentID string, source, target network.NodeID, baseSpeed float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	et, ok := m.edges[EdgeKey(source, target)]
	if !ok {
		return 0, fmt.Errorf("edge %s->%s: %w", source, target, network.ErrNotFound)
	}
	if !et.enter(agentID) {
		return 0, fmt.Errorf("agent %s: double entry on edge %s: %w", agentID, et.EdgeID, ErrInvariant)
	}
	return et.EffectiveSpeed(baseSpeed, m.cfg), nil
}

// NotifyEdgeExit removes the agent from the directed edge. An exit without a
// matching earlier entry is an invariant violation: letting it pass would
// silently corrupt every future density calculation on the edge.
func (m *Manager) NotifyEdgeExit(agentID string, source, target network.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	et, ok := m.edges[EdgeKey(source, target)]
	if !ok {
		return fmt.Errorf("agent %s: exit from unknown edge %s->%s: %w", agentID, source, target, ErrInvariant)
	}
	if !et.exit(agentID) {
		return fmt.Errorf("agent %s: exit without entry on edge %s: %w", agentID, et.EdgeID, ErrInvariant)
	}
	return nil
}

// EffectiveSpeed returns the current effective speed on the directed edge
// for the given base speed, without registering occupancy. Unknown edges
// report the base speed unchanged.
func (m *Manager) EffectiveSpeed(source, target network.NodeID, baseSpeed float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	et, ok := m.edges[EdgeKey(source, target)]
	if !ok {
		return baseSpeed
	}
	return et.EffectiveSpeed(baseSpeed, m.cfg)
}

// IsCrossroad reports whether the node requires serialized passage.
func (m *Manager) IsCrossroad(node network.NodeID) bool {
	_, ok := m.crossroads[node]
	return ok
}

// RequestCrossroadPassage asks to pass through node at arrivalTick. Call it
// once per crossroad visit, not per tick; a repeat request while occupying
// or queued is an invariant violation (double-queuing). Non-crossroad nodes
// grant immediately. When the crossroad is busy the agent joins the
// (arrival tick, agent id) queue and receives a wait estimate.
func (m *Manager) RequestCrossroadPassage(agentID string, node network.NodeID, arrivalTick float64) (Passage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.crossroads[node]
	if !ok {
		return Passage{Granted: true}, nil
	}
	if c.occupiedBy == agentID || c.queued(agentID) {
		return Passage{}, fmt.Errorf("agent %s: duplicate passage request at %s: %w", agentID, node, ErrInvariant)
	}
	if arrivalTick > m.now {
		m.now = arrivalTick
	}
	m.promote(c)
	if c.available(m.now) {
		ends := c.occupy(agentID, m.now, m.cfg.CrossroadTransitTimeHours)
		return Passage{Granted: true, EndsAt: ends}, nil
	}
	wait := c.waitEstimate(m.now, m.cfg.CrossroadTransitTimeHours)
	c.enqueue(agentID, arrivalTick)
	return Passage{Wait: wait}, nil
}

// Occupant returns the agent currently holding the crossroad, if any.
func (m *Manager) Occupant(node network.NodeID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.crossroads[node]
	if !ok || c.occupiedBy == "" {
		return "", false
	}
	return c.occupiedBy, true
}

// Crossing returns the current occupant of the crossroad and the time its
// crossing completes.
func (m *Manager) Crossing(node network.NodeID) (agentID string, endsAt float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, found := m.crossroads[node]
	if !found || c.occupiedBy == "" {
		return "", 0, false
	}
	return c.occupiedBy, c.occupationEnd, true
}

// ReleaseCrossroad frees the crossroad if agentID holds it and promotes the
// next queued agent. Releasing a crossroad the agent does not hold is a
// no-op, as is releasing a non-crossroad node; a queued (not yet admitted)
// agent is removed from the queue instead, which is how a cancelled agent
// leaves the system.
func (m *Manager) ReleaseCrossroad(agentID string, node network.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.crossroads[node]
	if !ok {
		return
	}
	delete(m.grants, agentID)
	if c.occupiedBy == agentID {
		c.release()
		m.promote(c)
		return
	}
	c.removeFromQueue(agentID)
}

// EdgeStats is a point-in-time snapshot of one edge's congestion state.
type EdgeStats struct {
	Occupants    int     `json:"occupants"`
	Capacity     float64 `json:"capacity"`
	DensityRatio float64 `json:"density_ratio"`
	Congested    bool    `json:"congested"`
}

// EdgeStatsAll snapshots every tracked edge, keyed "source->target".
func (m *Manager) EdgeStatsAll() map[string]EdgeStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[string]EdgeStats, len(m.edges))
	for key, et := range m.edges {
		stats[key] = EdgeStats{
			Occupants:    et.Count(),
			Capacity:     et.Capacity,
			DensityRatio: et.DensityRatio(),
			Congested:    et.Congested(),
		}
	}
	return stats
}

// CrossroadStats is a point-in-time snapshot of one crossroad's state.
type CrossroadStats struct {
	OccupiedBy  string `json:"occupied_by,omitempty"`
	QueueLength int    `json:"queue_length"`
}

// CrossroadStatsAll snapshots every crossroad, keyed by node ID.
func (m *Manager) CrossroadStatsAll() map[string]CrossroadStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[string]CrossroadStats, len(m.crossroads))
	for id, c := range m.crossroads {
		stats[id] = CrossroadStats{OccupiedBy: c.occupiedBy, QueueLength: c.queue.Len()}
	}
	return stats
}
