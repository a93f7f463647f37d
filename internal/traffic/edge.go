// Package traffic implements the congestion and crossroad model: per-edge
// occupancy with density-driven speed degradation, and serialized
// first-come-first-served passage through high-degree nodes.
package traffic

// EdgeTraffic tracks the live occupancy of one directed edge and derives the
// congestion ratio that degrades effective speed.
type EdgeTraffic struct {
	EdgeID     string // "source->target"
	DistanceKm float64
	Capacity   float64 // distance_km x vessels_per_km_capacity

	occupants map[string]struct{}
}

func newEdgeTraffic(edgeID string, distanceKm, capacity float64) *EdgeTraffic {
	return &EdgeTraffic{
		EdgeID:     edgeID,
		DistanceKm: distanceKm,
		Capacity:   capacity,
		occupants:  make(map[string]struct{}),
	}
}

// Count returns the number of agents currently on the edge.
func (et *EdgeTraffic) Count() int { return len(et.occupants) }

// DensityRatio returns occupants divided by capacity. Zero-capacity edges
// report zero density so degenerate edges never divide by zero.
func (et *EdgeTraffic) DensityRatio() float64 {
	if et.Capacity <= 0 {
		return 0
	}
	return float64(len(et.occupants)) / et.Capacity
}

// Congested reports whether the edge is at or above 80% of capacity.
func (et *EdgeTraffic) Congested() bool { return et.DensityRatio() >= 0.8 }

// EffectiveSpeed applies the linear degradation model to a base speed:
//
//	effective = base x max(minRatio, 1 - impact x min(1, density))
//
// The floor guarantees travel never stalls completely, whatever the
// occupancy count.
func (et *EdgeTraffic) EffectiveSpeed(baseSpeed float64, cfg Config) float64 {
	mult := 1.0 - cfg.CongestionImpactFactor*min(1.0, et.DensityRatio())
	if mult < cfg.MinSpeedRatio {
		mult = cfg.MinSpeedRatio
	}
	return baseSpeed * mult
}

func (et *EdgeTraffic) enter(agentID string) bool {
	if _, on := et.occupants[agentID]; on {
		return false
	}
	et.occupants[agentID] = struct{}{}
	return true
}

func (et *EdgeTraffic) exit(agentID string) bool {
	if _, on := et.occupants[agentID]; !on {
		return false
	}
	delete(et.occupants, agentID)
	return true
}
