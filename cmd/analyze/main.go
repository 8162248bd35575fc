// Command analyze prints quick, human-readable heuristics about the match
// configurations in a directory: the travel distance each die roll yields at
// several pack loads, how many map events a starting purse survives, and
// warnings for configurations where most turns cannot move.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/gsp-board/game/config"
	"github.com/wricardo/gsp-board/game/engine"
)

// loadSteps are the pack loads analyzed, as percentages of the status bar capacity
var loadSteps = []int{0, 10, 25, 50, 75, 100}

// DistanceRow is the travel distance for each die face at one pack weight
type DistanceRow struct {
	Weight    int
	Distances []int
}

// distanceTable computes the travel distances for every die face at each load step
func distanceTable(cfg *engine.MatchConfig) []DistanceRow {
	rows := make([]DistanceRow, 0, len(loadSteps))
	for _, pct := range loadSteps {
		weight := cfg.StatusMaxWeight * pct / 100
		row := DistanceRow{Weight: weight}
		for roll := cfg.DieMin; roll <= cfg.DieMax; roll++ {
			row.Distances = append(row.Distances, engine.TravelDistance(cfg.DistanceFormula, roll, weight, cfg.StatusMaxWeight))
		}
		rows = append(rows, row)
	}
	return rows
}

// stuckShare returns the fraction of (load, roll) pairs that yield zero distance
func stuckShare(rows []DistanceRow) float64 {
	var zero, total int
	for _, row := range rows {
		for _, d := range row.Distances {
			total++
			if d == 0 {
				zero++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(zero) / float64(total)
}

// encountersSurvived is how many worst-case enemy encounters a starting purse covers
func encountersSurvived(cfg *engine.MatchConfig) int {
	worst := cfg.DieMax * cfg.MapEvents.EnemyToll
	if worst == 0 {
		return -1
	}
	return cfg.StartingCurrency / worst
}

func analyzeConfig(w io.Writer, id string, cfg *engine.MatchConfig) {
	fmt.Fprintf(w, "\n=== %s (%s) ===\n", cfg.Name, id)
	fmt.Fprintf(w, "Players: %d  Starting gold: %d  Carry limit: %d\n", cfg.NumPlayers, cfg.StartingCurrency, cfg.StartingMaxWeight)
	fmt.Fprintf(w, "Die: %d-%d  Formula: %s  Status capacity: %d  Default event: %s\n",
		cfg.DieMin, cfg.DieMax, cfg.DistanceFormula, cfg.StatusMaxWeight, cfg.DefaultAction)

	rows := distanceTable(cfg)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	header := []string{"load"}
	for roll := cfg.DieMin; roll <= cfg.DieMax; roll++ {
		header = append(header, fmt.Sprintf("roll %d", roll))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, row := range rows {
		cells := []string{fmt.Sprint(row.Weight)}
		for _, d := range row.Distances {
			cells = append(cells, fmt.Sprint(d))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	tw.Flush()

	kinds := make([]string, 0, len(cfg.MapEvents.Items))
	for kind := range cfg.MapEvents.Items {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		item := cfg.MapEvents.Items[kind]
		fmt.Fprintf(w, "Item %s: value %d, weight %d, %d fit in an empty pack\n",
			kind, item.Value, item.Weight, fitCount(item.Weight, cfg.StartingMaxWeight))
	}

	if n := encountersSurvived(cfg); n >= 0 {
		fmt.Fprintf(w, "Worst-case enemy encounters covered by starting gold: %d\n", n)
	}

	if share := stuckShare(rows); share >= 0.5 {
		fmt.Fprintf(w, "WARNING: %.0f%% of load/roll combinations travel 0 spaces", share*100)
		if cfg.DistanceFormula == engine.FormulaLiteral {
			fmt.Fprint(w, " (the literal formula ignores the roll and drops to 0 with any load)")
		}
		fmt.Fprintln(w)
	}
}

func fitCount(weight, capacity int) int {
	if weight <= 0 {
		return -1
	}
	return capacity / weight
}

// analyzeDir loads every configuration in dir through the config manager
func analyzeDir(w io.Writer, dir string) error {
	manager, err := config.NewManager(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	infos, err := manager.ListConfigs()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return fmt.Errorf("no configurations in %s", dir)
	}

	for _, info := range infos {
		cfg, err := manager.LoadConfig(info.Filename)
		if err != nil {
			fmt.Fprintf(w, "\n=== %s ===\nError: %v\n", info.Filename, err)
			continue
		}
		analyzeConfig(w, info.ConfigID, cfg)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Print travel and economy heuristics for match configurations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "configs", Usage: "Configuration directory"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return analyzeDir(os.Stdout, cmd.String("dir"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
