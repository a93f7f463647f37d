// Command waterway-sim runs a simulation from a scenario YAML file (or a
// SimulationInput JSON on stdin) and writes the SimulationLog JSON to
// stdout. With -rhine the built-in Rhine corridor scenario is used instead
// of a file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rkoopman/waterway-sim/internal/export"
	"github.com/rkoopman/waterway-sim/internal/scenario"
	"github.com/rkoopman/waterway-sim/internal/sim"
)

func main() {
	var (
		rhine   = flag.Bool("rhine", false, "run the built-in Rhine corridor scenario")
		vessels = flag.Int("vessels", 50, "fleet size for the built-in scenario")
		steps   = flag.Int("steps", 100, "step count for the built-in scenario")
		seed    = flag.Int64("seed", 42, "fleet generation seed for the built-in scenario")
		csvPath = flag.String("csv", "", "also write per-vessel journey metrics to this CSV file")
	)
	flag.Parse()

	log, err := run(*rhine, *vessels, *steps, *seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := export.WriteLogJSON(os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *csvPath != "" {
		if err := writeCSV(*csvPath, log); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

func run(rhine bool, vessels, steps int, seed int64) (sim.SimulationLog, error) {
	var (
		sc  *scenario.Scenario
		err error
	)
	switch {
	case rhine:
		sc = scenario.Rhine(vessels, steps, seed)
	case flag.NArg() > 0:
		sc, err = scenario.Load(flag.Arg(0))
		if err != nil {
			return sim.SimulationLog{}, err
		}
	default:
		// No scenario given: read a raw SimulationInput JSON from stdin.
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return sim.SimulationLog{}, fmt.Errorf("reading stdin: %w", err)
		}
		return runRawJSON(data)
	}

	input, err := sc.ToInput()
	if err != nil {
		return sim.SimulationLog{}, err
	}
	eng, err := sim.NewEngine(input)
	if err != nil {
		return sim.SimulationLog{}, err
	}
	return eng.Run()
}

func runRawJSON(data []byte) (sim.SimulationLog, error) {
	out, err := sim.RunJSON(string(data))
	if err != nil {
		return sim.SimulationLog{}, err
	}
	var log sim.SimulationLog
	if err := json.Unmarshal([]byte(out), &log); err != nil {
		return sim.SimulationLog{}, fmt.Errorf("decoding simulation log: %w", err)
	}
	return log, nil
}

func writeCSV(path string, log sim.SimulationLog) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	return export.WriteAgentMetricsCSV(f, log)
}
