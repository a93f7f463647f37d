// Command simd runs a scenario on a wall-clock ticker and serves the live
// simulation state over WebSockets at /ws. Each simulation tick is
// broadcast to all connected clients as a JSON-encoded log row.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/rkoopman/waterway-sim/internal/feed"
	"github.com/rkoopman/waterway-sim/internal/scenario"
	"github.com/rkoopman/waterway-sim/internal/sim"
)

func main() {
	var (
		addr     = flag.String("addr", ":8080", "listen address")
		path     = flag.String("scenario", "", "scenario YAML file; built-in Rhine corridor when empty")
		vessels  = flag.Int("vessels", 50, "fleet size for the built-in scenario")
		steps    = flag.Int("steps", 500, "step count for the built-in scenario")
		seed     = flag.Int64("seed", 42, "fleet generation seed for the built-in scenario")
		interval = flag.Duration("interval", time.Second, "wall-clock time per simulation tick")
	)
	flag.Parse()

	var (
		sc  *scenario.Scenario
		err error
	)
	if *path != "" {
		sc, err = scenario.Load(*path)
	} else {
		sc = scenario.Rhine(*vessels, *steps, *seed)
	}
	if err != nil {
		log.Fatalf("loading scenario: %v", err)
	}

	input, err := sc.ToInput()
	if err != nil {
		log.Fatalf("expanding scenario: %v", err)
	}
	eng, err := sim.NewEngine(input)
	if err != nil {
		log.Fatalf("building engine: %v", err)
	}

	hub := feed.NewHub()
	go hub.Run()
	go drive(eng, hub, input.Meta.MaxSteps, *interval)

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		feed.ServeWs(hub, w, r)
	})

	log.Printf("simd: scenario %q, %d vessels, listening on %s", input.Meta.SimulationID, len(input.Vessels), *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

// drive advances the simulation one step per tick and broadcasts each
// resulting row. The feed stays up after the run ends so late clients can
// still connect, they just receive no further rows.
func drive(eng *sim.Engine, hub *feed.Hub, maxSteps int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if maxSteps <= 0 {
			break
		}
		maxSteps--

		row, err := eng.Step()
		if err != nil {
			log.Printf("simulation halted: %v", err)
			return
		}
		msg, err := json.Marshal(row)
		if err != nil {
			log.Printf("encoding row: %v", err)
			continue
		}
		hub.Broadcast <- msg
	}

	m := eng.Metrics()
	log.Printf("run complete: %d journeys, %.1f km, %.1f h travel, %.1f h waiting",
		m.CompletedJourneys, m.TotalDistanceKm, m.TotalTravelHours, m.TotalWaitingHours)
}
