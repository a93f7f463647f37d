package scenario

import (
	"github.com/paulmach/orb"

	"github.com/rkoopman/waterway-sim/internal/network"
)

// rhinePort is one entry in the built-in Rhine corridor port list.
type rhinePort struct {
	name    string
	country string
	riverKm float64
	lat     float64
	lon     float64
	kind    string
}

// rhineSegment is one navigable stretch between adjacent ports, with the
// river distance in kilometres.
type rhineSegment struct {
	from, to string
	lengthKm float64
}

// Major ports from the North Sea delta up to Basel, river-km measured from
// Hoek van Holland.
var rhinePorts = []rhinePort{
	{"Rotterdam", "NL", 1025, 51.92, 4.48, "seaport"},
	{"Dordrecht", "NL", 982, 51.81, 4.67, "inland_port"},
	{"Nijmegen", "NL", 885, 51.85, 5.87, "inland_port"},
	{"Arnhem", "NL", 890, 51.98, 5.91, "inland_port"},
	{"Emmerich", "DE", 852, 51.83, 6.25, "inland_port"},
	{"Wesel", "DE", 814, 51.67, 6.62, "inland_port"},
	{"Duisburg", "DE", 774, 51.43, 6.76, "inland_port"},
	{"Dusseldorf", "DE", 744, 51.23, 6.77, "inland_port"},
	{"Cologne", "DE", 688, 50.94, 6.96, "inland_port"},
	{"Bonn", "DE", 655, 50.73, 7.10, "inland_port"},
	{"Koblenz", "DE", 593, 50.36, 7.60, "inland_port"},
	{"Mainz", "DE", 498, 50.00, 8.27, "inland_port"},
	{"Mannheim", "DE", 424, 49.49, 8.47, "inland_port"},
	{"Ludwigshafen", "DE", 420, 49.48, 8.43, "inland_port"},
	{"Karlsruhe", "DE", 360, 49.01, 8.40, "inland_port"},
	{"Kehl", "DE", 292, 48.57, 7.81, "inland_port"},
	{"Strasbourg", "FR", 296, 48.58, 7.75, "inland_port"},
	{"Basel", "CH", 170, 47.56, 7.59, "inland_port"},
}

var rhineSegments = []rhineSegment{
	{"Rotterdam", "Dordrecht", 43},
	{"Dordrecht", "Nijmegen", 97},
	{"Nijmegen", "Arnhem", 5},
	{"Arnhem", "Emmerich", 38},
	{"Emmerich", "Wesel", 38},
	{"Wesel", "Duisburg", 40},
	{"Duisburg", "Dusseldorf", 30},
	{"Dusseldorf", "Cologne", 56},
	{"Cologne", "Bonn", 33},
	{"Bonn", "Koblenz", 62},
	{"Koblenz", "Mainz", 95},
	{"Mainz", "Mannheim", 74},
	{"Mannheim", "Ludwigshafen", 4},
	{"Ludwigshafen", "Karlsruhe", 60},
	{"Karlsruhe", "Kehl", 68},
	{"Kehl", "Strasbourg", 4},
	{"Strasbourg", "Basel", 126},
}

// RhineNetworkData returns the built-in Rhine corridor as an undirected
// network: 18 ports from Rotterdam to Basel with river-km edge weights.
// Weights carry the river distance, which runs longer than the great-circle
// distance between the port coordinates.
func RhineNetworkData() network.NetworkData {
	data := network.NetworkData{Directed: false}
	for _, p := range rhinePorts {
		data.Nodes = append(data.Nodes, network.Node{
			ID:   p.name,
			Name: p.name,
			Type: p.kind,
			Loc:  orb.Point{p.lon, p.lat},
			Properties: map[string]any{
				"country":  p.country,
				"river_km": p.riverKm,
			},
		})
	}
	for _, s := range rhineSegments {
		data.Edges = append(data.Edges, network.Edge{
			Source: s.from,
			Target: s.to,
			Weight: s.lengthKm,
		})
	}
	return data
}

// Rhine returns a ready-to-run Rhine corridor scenario with a generated
// fleet. Deterministic for a given seed.
func Rhine(vessels int, steps int, seed int64) *Scenario {
	sc := &Scenario{
		Network: RhineNetworkData(),
		Fleet:   &Fleet{Count: vessels, Seed: seed},
	}
	sc.Meta.SimulationID = "rhine"
	sc.Meta.MaxSteps = steps
	sc.applyDefaults()
	return sc
}
