package traffic

import "container/heap"

// Crossroad holds the occupancy and waiting queue of one node with degree
// >= 3. At most one agent occupies a crossroad at a time; waiters are
// admitted first-come-first-served with a stable (arrival tick, agent id)
// tie-break so simultaneous arrivals resolve deterministically.
type Crossroad struct {
	NodeID string

	occupiedBy    string
	occupationEnd float64
	queue         arrivalQueue
}

func newCrossroad(nodeID string) *Crossroad {
	return &Crossroad{NodeID: nodeID}
}

// available reports whether the crossroad can be occupied at time now.
func (c *Crossroad) available(now float64) bool {
	return c.occupiedBy == "" || now >= c.occupationEnd
}

// occupy grants the crossroad to agentID at time now for transit hours,
// returning the time the crossing completes.
func (c *Crossroad) occupy(agentID string, now, transit float64) float64 {
	c.occupiedBy = agentID
	c.occupationEnd = now + transit
	return c.occupationEnd
}

// release frees the crossroad without promoting the queue; the manager
// handles promotion so the clock is applied consistently.
func (c *Crossroad) release() {
	c.occupiedBy = ""
	c.occupationEnd = 0
}

func (c *Crossroad) enqueue(agentID string, arrivalTick float64) {
	heap.Push(&c.queue, arrival{agentID: agentID, tick: arrivalTick})
}

func (c *Crossroad) dequeue() (string, bool) {
	if c.queue.Len() == 0 {
		return "", false
	}
	return heap.Pop(&c.queue).(arrival).agentID, true
}

func (c *Crossroad) queued(agentID string) bool {
	for _, a := range c.queue {
		if a.agentID == agentID {
			return true
		}
	}
	return false
}

func (c *Crossroad) removeFromQueue(agentID string) {
	for i, a := range c.queue {
		if a.agentID == agentID {
			heap.Remove(&c.queue, i)
			return
		}
	}
}

// waitEstimate returns the modeled wait in hours for an agent joining the
// queue at time now, behind the current occupant and everyone already
// queued. Never negative.
func (c *Crossroad) waitEstimate(now, transit float64) float64 {
	wait := 0.0
	if c.occupiedBy != "" && c.occupationEnd > now {
		wait = c.occupationEnd - now
	}
	wait += float64(c.queue.Len()) * transit
	return wait
}

// arrival is one queued admission request.
type arrival struct {
	agentID string
	tick    float64
}

// arrivalQueue is a priority queue keyed by (arrival tick, agent id).
type arrivalQueue []arrival

func (q arrivalQueue) Len() int { return len(q) }
func (q arrivalQueue) Less(i, j int) bool {
	if q[i].tick != q[j].tick {
		return q[i].tick < q[j].tick
	}
	return q[i].agentID < q[j].agentID
}
func (q arrivalQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *arrivalQueue) Push(x any)   { *q = append(*q, x.(arrival)) }
func (q *arrivalQueue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}
