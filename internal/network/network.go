// Package network provides the static waterway topology for the simulation:
// nodes, weighted edges, and path queries. A Network is built once at
// scenario-load time and is read-only while agents are stepping.
package network

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// NodeID is a string alias used as a node identifier.
type NodeID = string

// Sentinel errors for network construction and queries.
var (
	// ErrDuplicateKey is returned when adding a node or edge that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned when a referenced node or edge does not exist.
	ErrNotFound = errors.New("not found")
)

// Node is a point in the waterway network (port, lock, confluence, waypoint).
type Node struct {
	ID         NodeID         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Type       string         `json:"type,omitempty" yaml:"type,omitempty"`
	Loc        orb.Point      `json:"loc,omitempty" yaml:"loc,flow,omitempty"` // (lon, lat)
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Edge is a directed connection between two nodes. Weight is the base
// distance in kilometres; a "distance_km" property overrides it when present.
type Edge struct {
	Source     NodeID         `json:"source" yaml:"source"`
	Target     NodeID         `json:"target" yaml:"target"`
	Weight     float64        `json:"weight" yaml:"weight"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// DistanceKm returns the physical length of the edge in kilometres: the
// "distance_km" property when set, otherwise the weight.
func (e Edge) DistanceKm() float64 {
	if v, ok := e.Properties["distance_km"]; ok {
		switch d := v.(type) {
		case float64:
			return d
		case int:
			return float64(d)
		}
	}
	return e.Weight
}

// NetworkData is the serialisable representation of a Network.
type NetworkData struct {
	Directed bool   `json:"directed" yaml:"directed"`
	Nodes    []Node `json:"nodes" yaml:"nodes"`
	Edges    []Edge `json:"edges" yaml:"edges"`
}

// Network owns the set of nodes and edges and answers adjacency and path
// queries. Directedness is fixed at construction; an undirected network
// materialises the reverse of every edge so both travel directions exist.
type Network struct {
	directed bool
	nodes    map[NodeID]Node
	edges    []Edge
	out      map[NodeID]map[NodeID]Edge // source -> target -> edge
	in       map[NodeID]map[NodeID]Edge // target -> source -> edge
}

// New returns an empty network. Pass directed=false to have AddEdge
// materialise reverse edges automatically.
func New(directed bool) *Network {
	return &Network{
		directed: directed,
		nodes:    make(map[NodeID]Node),
		out:      make(map[NodeID]map[NodeID]Edge),
		in:       make(map[NodeID]map[NodeID]Edge),
	}
}

// FromData builds a Network from its serialised representation, returning an
// error if any edge references a missing node or any key is duplicated.
func FromData(data NetworkData) (*Network, error) {
	n := New(data.Directed)
	for _, node := range data.Nodes {
		if err := n.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, e := range data.Edges {
		if err := n.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Data returns the serialisable representation of the network. For an
// undirected network only the forward edge of each materialised pair is
// emitted, so FromData(n.Data()) reproduces the same topology.
func (n *Network) Data() NetworkData {
	nodes := make([]Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return NetworkData{Directed: n.directed, Nodes: nodes, Edges: append([]Edge(nil), n.edges...)}
}

// Directed reports whether the network was built as a directed graph.
func (n *Network) Directed() bool { return n.directed }

// NodeCount returns the number of nodes.
func (n *Network) NodeCount() int { return len(n.nodes) }

// EdgeCount returns the number of stored forward edges. Reverse edges
// materialised for undirected networks are not counted separately.
func (n *Network) EdgeCount() int { return len(n.edges) }

// AddNode adds a node. Returns ErrDuplicateKey if the ID already exists.
func (n *Network) AddNode(node Node) error {
	if _, exists := n.nodes[node.ID]; exists {
		return fmt.Errorf("node %q: %w", node.ID, ErrDuplicateKey)
	}
	n.nodes[node.ID] = node
	return nil
}

// AddEdge adds an edge. Both endpoints must already exist. Returns
// ErrDuplicateKey if an edge for the same ordered pair exists; for an
// undirected network the reverse pair counts as the same edge.
func (n *Network) AddEdge(e Edge) error {
	if _, ok := n.nodes[e.Source]; !ok {
		return fmt.Errorf("edge %s->%s: source node: %w", e.Source, e.Target, ErrNotFound)
	}
	if _, ok := n.nodes[e.Target]; !ok {
		return fmt.Errorf("edge %s->%s: target node: %w", e.Source, e.Target, ErrNotFound)
	}
	if _, ok := n.out[e.Source][e.Target]; ok {
		return fmt.Errorf("edge %s->%s: %w", e.Source, e.Target, ErrDuplicateKey)
	}
	n.edges = append(n.edges, e)
	n.link(e)
	if !n.directed {
		rev := Edge{Source: e.Target, Target: e.Source, Weight: e.Weight, Properties: e.Properties}
		n.link(rev)
	}
	return nil
}

func (n *Network) link(e Edge) {
	if n.out[e.Source] == nil {
		n.out[e.Source] = make(map[NodeID]Edge)
	}
	n.out[e.Source][e.Target] = e
	if n.in[e.Target] == nil {
		n.in[e.Target] = make(map[NodeID]Edge)
	}
	n.in[e.Target][e.Source] = e
}

// GetNode looks up a node by ID.
func (n *Network) GetNode(id NodeID) (Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

// GetEdge returns the directed edge from source to target. For an undirected
// network both orientations resolve.
func (n *Network) GetEdge(source, target NodeID) (Edge, bool) {
	e, ok := n.out[source][target]
	return e, ok
}

// Edges returns the stored forward edges.
func (n *Network) Edges() []Edge {
	return append([]Edge(nil), n.edges...)
}

// DirectedEdges returns all traversable directed edges: the stored forward
// edges plus, for an undirected network, the materialised reverse edges.
// Traffic tracking is keyed on this set.
func (n *Network) DirectedEdges() []Edge {
	if n.directed {
		return append([]Edge(nil), n.edges...)
	}
	all := make([]Edge, 0, 2*len(n.edges))
	for _, e := range n.edges {
		all = append(all, e)
		all = append(all, Edge{Source: e.Target, Target: e.Source, Weight: e.Weight, Properties: e.Properties})
	}
	return all
}

// Neighbors returns the IDs of nodes reachable by one outgoing edge, in
// sorted order. Returns ErrNotFound for an unknown node.
func (n *Network) Neighbors(id NodeID) ([]NodeID, error) {
	if _, ok := n.nodes[id]; !ok {
		return nil, fmt.Errorf("node %q: %w", id, ErrNotFound)
	}
	ids := make([]NodeID, 0, len(n.out[id]))
	for target := range n.out[id] {
		ids = append(ids, target)
	}
	sort.Strings(ids)
	return ids, nil
}

// Degree returns the number of stored edges incident to a node, incoming
// plus outgoing. Reverse edges materialised for undirected networks are not
// counted, so an undirected segment contributes one to each endpoint. A node
// qualifying as a crossroad has degree >= 3 under this count.
func (n *Network) Degree(id NodeID) (int, error) {
	if _, ok := n.nodes[id]; !ok {
		return 0, fmt.Errorf("node %q: %w", id, ErrNotFound)
	}
	deg := 0
	for _, e := range n.edges {
		if e.Source == id {
			deg++
		}
		if e.Target == id {
			deg++
		}
	}
	return deg, nil
}

// IsConnected reports whether every node is reachable from every other when
// edge direction is ignored (weak connectivity). An empty network is
// considered connected.
func (n *Network) IsConnected() bool {
	if len(n.nodes) == 0 {
		return true
	}
	var start NodeID
	for id := range n.nodes {
		start = id
		break
	}
	seen := map[NodeID]bool{start: true}
	stack := []NodeID{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range n.out[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
		for prev := range n.in[cur] {
			if !seen[prev] {
				seen[prev] = true
				stack = append(stack, prev)
			}
		}
	}
	return len(seen) == len(n.nodes)
}

// Subgraph returns a new network containing only the given nodes and the
// edges whose both endpoints are in the set. Unknown IDs are ignored.
func (n *Network) Subgraph(ids []NodeID) *Network {
	keep := make(map[NodeID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	sub := New(n.directed)
	for id, node := range n.nodes {
		if keep[id] {
			sub.nodes[id] = node
		}
	}
	for _, e := range n.edges {
		if keep[e.Source] && keep[e.Target] {
			sub.edges = append(sub.edges, e)
			sub.link(e)
			if !sub.directed {
				sub.link(Edge{Source: e.Target, Target: e.Source, Weight: e.Weight, Properties: e.Properties})
			}
		}
	}
	return sub
}

// GreatCircleKm returns the great-circle distance in kilometres between two
// nodes' coordinates. Used by scenario builders to derive edge weights when
// a distance is not given explicitly.
func (n *Network) GreatCircleKm(a, b NodeID) (float64, error) {
	na, ok := n.nodes[a]
	if !ok {
		return 0, fmt.Errorf("node %q: %w", a, ErrNotFound)
	}
	nb, ok := n.nodes[b]
	if !ok {
		return 0, fmt.Errorf("node %q: %w", b, ErrNotFound)
	}
	return geo.Distance(na.Loc, nb.Loc) / 1000.0, nil
}
