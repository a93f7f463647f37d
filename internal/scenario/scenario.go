// Package scenario loads simulation scenarios from YAML and expands them
// into engine inputs. A scenario names the network, the traffic parameters,
// and either an explicit vessel list or a fleet block that generates one
// from a seed.
package scenario

import (
	"fmt"
	"math/rand"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rkoopman/waterway-sim/internal/network"
	"github.com/rkoopman/waterway-sim/internal/sim"
	"github.com/rkoopman/waterway-sim/internal/traffic"
)

// Fleet speed bounds in km/h, applied when a fleet block gives none.
const (
	DefaultSpeedMinKmh = 10.0
	DefaultSpeedMaxKmh = 18.0
)

// vesselTypeMix is the generated fleet composition, per hundred vessels.
var vesselTypeMix = []struct {
	vesselType string
	weight     int
}{
	{"cargo", 60},
	{"tanker", 20},
	{"container", 15},
	{"passenger", 5},
}

// Fleet describes a generated vessel population. Origins and destinations
// are drawn from the network's nodes; an explicit Ports list narrows the
// draw to those nodes.
type Fleet struct {
	Count       int              `yaml:"count" json:"count"`
	Seed        int64            `yaml:"seed" json:"seed"`
	SpeedMinKmh float64          `yaml:"speed_min_kmh,omitempty" json:"speed_min_kmh,omitempty"`
	SpeedMaxKmh float64          `yaml:"speed_max_kmh,omitempty" json:"speed_max_kmh,omitempty"`
	Ports       []network.NodeID `yaml:"ports,omitempty" json:"ports,omitempty"`
}

// Scenario is the on-disk shape of a simulation scenario.
type Scenario struct {
	Meta    sim.SimulationMeta  `yaml:"simulation_meta" json:"simulation_meta"`
	Network network.NetworkData `yaml:"network" json:"network"`
	Traffic traffic.Config      `yaml:"traffic,omitempty" json:"traffic,omitempty"`
	Fleet   *Fleet              `yaml:"fleet,omitempty" json:"fleet,omitempty"`
	Vessels []sim.VesselSpec    `yaml:"vessels,omitempty" json:"vessels,omitempty"`
}

// Load reads and parses a scenario YAML file and applies defaults.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes scenario YAML and applies defaults for absent fields.
func Parse(raw []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	sc.applyDefaults()
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) applyDefaults() {
	if sc.Meta.SimulationID == "" {
		sc.Meta.SimulationID = "scenario"
	}
	if sc.Meta.MaxSteps <= 0 {
		sc.Meta.MaxSteps = 100
	}
	if sc.Meta.TickHours <= 0 {
		sc.Meta.TickHours = 1.0
	}
	if sc.Traffic == (traffic.Config{}) {
		sc.Traffic = traffic.DefaultConfig()
	}
	if sc.Fleet != nil {
		if sc.Fleet.SpeedMinKmh <= 0 {
			sc.Fleet.SpeedMinKmh = DefaultSpeedMinKmh
		}
		if sc.Fleet.SpeedMaxKmh <= 0 {
			sc.Fleet.SpeedMaxKmh = DefaultSpeedMaxKmh
		}
	}
}

func (sc *Scenario) validate() error {
	if len(sc.Network.Nodes) == 0 {
		return fmt.Errorf("scenario %q: network has no nodes", sc.Meta.SimulationID)
	}
	if sc.Fleet != nil && sc.Fleet.Count < 0 {
		return fmt.Errorf("scenario %q: negative fleet count %d", sc.Meta.SimulationID, sc.Fleet.Count)
	}
	if sc.Fleet != nil && sc.Fleet.SpeedMaxKmh < sc.Fleet.SpeedMinKmh {
		return fmt.Errorf("scenario %q: fleet speed range inverted", sc.Meta.SimulationID)
	}
	return nil
}

// ToInput expands the scenario into an engine input, generating the fleet
// when a fleet block is present. Generation is deterministic for a given
// seed: the same scenario always produces the same vessel list.
func (sc *Scenario) ToInput() (sim.SimulationInput, error) {
	if err := sc.deriveMissingWeights(); err != nil {
		return sim.SimulationInput{}, err
	}
	input := sim.SimulationInput{
		Meta:    sc.Meta,
		Network: sc.Network,
		Traffic: sc.Traffic,
		Vessels: append([]sim.VesselSpec(nil), sc.Vessels...),
	}
	if sc.Fleet == nil {
		return input, nil
	}

	generated, err := sc.generateFleet()
	if err != nil {
		return sim.SimulationInput{}, err
	}
	input.Vessels = append(input.Vessels, generated...)
	return input, nil
}

// deriveMissingWeights fills in absent edge weights from the great-circle
// distance between the endpoint coordinates. River distances run longer
// than the straight line, so an explicit weight is always preferred.
func (sc *Scenario) deriveMissingWeights() error {
	needed := false
	for _, e := range sc.Network.Edges {
		if e.Weight <= 0 {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	n := network.New(true)
	for _, node := range sc.Network.Nodes {
		if err := n.AddNode(node); err != nil {
			return fmt.Errorf("scenario %q: %w", sc.Meta.SimulationID, err)
		}
	}
	for i, e := range sc.Network.Edges {
		if e.Weight > 0 {
			continue
		}
		km, err := n.GreatCircleKm(e.Source, e.Target)
		if err != nil {
			return fmt.Errorf("scenario %q: edge %s-%s: %w", sc.Meta.SimulationID, e.Source, e.Target, err)
		}
		if km <= 0 {
			return fmt.Errorf("scenario %q: edge %s-%s has no weight and no usable coordinates", sc.Meta.SimulationID, e.Source, e.Target)
		}
		sc.Network.Edges[i].Weight = km
	}
	return nil
}

// generateFleet draws vessels from the seeded source: type from the mix,
// origin and destination as distinct picks from the port pool, speed
// uniform over the configured range.
func (sc *Scenario) generateFleet() ([]sim.VesselSpec, error) {
	ports := sc.Fleet.Ports
	if len(ports) == 0 {
		for _, node := range sc.Network.Nodes {
			ports = append(ports, node.ID)
		}
		sort.Strings(ports)
	}
	if len(ports) < 2 {
		return nil, fmt.Errorf("scenario %q: fleet needs at least 2 ports, have %d", sc.Meta.SimulationID, len(ports))
	}

	rng := rand.New(rand.NewSource(sc.Fleet.Seed))
	vessels := make([]sim.VesselSpec, 0, sc.Fleet.Count)
	for i := 0; i < sc.Fleet.Count; i++ {
		origin := ports[rng.Intn(len(ports))]
		dest := origin
		for dest == origin {
			dest = ports[rng.Intn(len(ports))]
		}
		speed := sc.Fleet.SpeedMinKmh + rng.Float64()*(sc.Fleet.SpeedMaxKmh-sc.Fleet.SpeedMinKmh)
		vessels = append(vessels, sim.VesselSpec{
			ID:          fmt.Sprintf("ship_%03d", i),
			Type:        drawVesselType(rng),
			Start:       origin,
			Destination: dest,
			SpeedKmh:    speed,
		})
	}
	return vessels, nil
}

func drawVesselType(rng *rand.Rand) string {
	n := rng.Intn(100)
	for _, m := range vesselTypeMix {
		if n < m.weight {
			return m.vesselType
		}
		n -= m.weight
	}
	return vesselTypeMix[0].vesselType
}
