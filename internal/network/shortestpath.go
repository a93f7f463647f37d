package network

import (
	"container/heap"
	"fmt"
	"iter"
	"math"
	"sort"
)

// ShortestPath returns the minimum-total-weight path from a to b as an
// ordered list of node IDs, along with its total weight. Unreachability is
// not an error: a nil path with a nil error means no path exists, so callers
// can distinguish "unreachable" from query misuse (ErrNotFound).
func (n *Network) ShortestPath(a, b NodeID) ([]NodeID, float64, error) {
	if _, ok := n.nodes[a]; !ok {
		return nil, 0, fmt.Errorf("node %q: %w", a, ErrNotFound)
	}
	if _, ok := n.nodes[b]; !ok {
		return nil, 0, fmt.Errorf("node %q: %w", b, ErrNotFound)
	}
	if a == b {
		return []NodeID{a}, 0, nil
	}

	dist := map[NodeID]float64{a: 0}
	prev := make(map[NodeID]NodeID)
	settled := make(map[NodeID]bool)

	pq := &pathQueue{{node: a, priority: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		u := heap.Pop(pq).(pathItem)
		if settled[u.node] {
			continue
		}
		settled[u.node] = true
		if u.node == b {
			break
		}
		for target, e := range n.out[u.node] {
			alt := dist[u.node] + e.Weight
			if d, seen := dist[target]; !seen || alt < d {
				dist[target] = alt
				prev[target] = u.node
				heap.Push(pq, pathItem{node: target, priority: alt})
			}
		}
	}

	d, reached := dist[b]
	if !reached || math.IsInf(d, 1) {
		return nil, 0, nil // unreachable
	}

	path := []NodeID{b}
	for cur := b; cur != a; {
		cur = prev[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, d, nil
}

// AllPaths returns a lazy sequence of all simple paths from a to b with at
// most maxHops edges. Laziness keeps dense graphs from blowing up: the DFS
// only advances as far as the consumer pulls. Neighbours are visited in
// sorted order so enumeration is deterministic.
func (n *Network) AllPaths(a, b NodeID, maxHops int) (iter.Seq[[]NodeID], error) {
	if _, ok := n.nodes[a]; !ok {
		return nil, fmt.Errorf("node %q: %w", a, ErrNotFound)
	}
	if _, ok := n.nodes[b]; !ok {
		return nil, fmt.Errorf("node %q: %w", b, ErrNotFound)
	}

	return func(yield func([]NodeID) bool) {
		onPath := map[NodeID]bool{a: true}
		path := []NodeID{a}

		var dfs func(cur NodeID) bool
		dfs = func(cur NodeID) bool {
			if cur == b {
				return yield(append([]NodeID(nil), path...))
			}
			if len(path)-1 >= maxHops {
				return true
			}
			targets := make([]NodeID, 0, len(n.out[cur]))
			for t := range n.out[cur] {
				targets = append(targets, t)
			}
			sort.Strings(targets)
			for _, t := range targets {
				if onPath[t] {
					continue
				}
				onPath[t] = true
				path = append(path, t)
				ok := dfs(t)
				path = path[:len(path)-1]
				delete(onPath, t)
				if !ok {
					return false
				}
			}
			return true
		}
		dfs(a)
	}, nil
}

// pathItem is a priority queue entry for Dijkstra's algorithm.
type pathItem struct {
	node     NodeID
	priority float64
}

type pathQueue []pathItem

func (pq pathQueue) Len() int           { return len(pq) }
func (pq pathQueue) Less(i, j int) bool { return pq[i].priority < pq[j].priority }
func (pq pathQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }
func (pq *pathQueue) Push(x any)        { *pq = append(*pq, x.(pathItem)) }
func (pq *pathQueue) Pop() any {
	old := *pq
	it := old[len(old)-1]
	*pq = old[:len(old)-1]
	return it
}
