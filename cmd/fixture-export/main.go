package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-router/internal/logging"
	"github.com/danielpatrickdp/adaptive-router/internal/replay"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to a database with a decision_log table")
	last := flag.Int("last", 50, "number of most recent log rows to export")
	dim := flag.Int("dim", 32, "context dimension to record in the fixture config")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--last N] [--dim D]")
		os.Exit(2)
	}

	if err := run(*dbPath, *last, *dim, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath string, last, dim int, outPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	dlog, err := logging.NewDecisionLog(db)
	if err != nil {
		return err
	}

	// Recent returns newest first; reverse for chronological replay order.
	entries, err := dlog.Recent(last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no rows found in decision_log")
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	options, err := optionTable(entries)
	if err != nil {
		return err
	}

	steps, skipped := buildSteps(entries)
	if len(steps) == 0 {
		return fmt.Errorf("no exportable rows in last %d decision_log entries", last)
	}
	if skipped > 0 {
		fmt.Printf("Skipped %d rows (trace track or missing state payload)\n", skipped)
	}

	fixture := replay.Fixture{
		Description: fmt.Sprintf("Decision log export: %d steps from %s", len(steps), dbPath),
		Config: replay.FixtureConfig{
			Options:   options,
			Dim:       dim,
			ValueKey:  "value",
			Normalize: true,
		},
		Steps: steps,
	}
	return writeFixture(fixture, outPath)
}

// optionTable reconstructs the option list from logged arm indices. The log
// must cover a contiguous index range or the fixture config would lie.
func optionTable(entries []logging.Entry) ([]string, error) {
	byArm := make(map[int]string)
	maxArm := -1
	for _, e := range entries {
		if e.EventType != logging.EventDecide {
			continue
		}
		if prev, ok := byArm[e.Arm]; ok && prev != e.Option {
			return nil, fmt.Errorf("arm %d maps to both %q and %q", e.Arm, prev, e.Option)
		}
		byArm[e.Arm] = e.Option
		if e.Arm > maxArm {
			maxArm = e.Arm
		}
	}
	options := make([]string, maxArm+1)
	for i := range options {
		name, ok := byArm[i]
		if !ok {
			return nil, fmt.Errorf("arm %d never appears in the exported rows", i)
		}
		options[i] = name
	}
	return options, nil
}

// buildSteps converts log entries to fixture steps. Trace-track rows and
// decide rows without a recoverable string state are skipped: the fixture
// format replays values, and a trace completion cannot be reconstructed
// from its per-step credits.
func buildSteps(entries []logging.Entry) ([]replay.FixtureStep, int) {
	var steps []replay.FixtureStep
	skipped := 0
	for _, e := range entries {
		if e.Track == "trace" {
			skipped++
			continue
		}
		switch e.EventType {
		case logging.EventDecide:
			var value string
			if err := json.Unmarshal([]byte(e.StateJSON), &value); err != nil {
				skipped++
				continue
			}
			steps = append(steps, replay.FixtureStep{
				Kind:    replay.StepDecide,
				Value:   value,
				EventID: e.Identifier,
				Expect:  e.Option,
			})
		case logging.EventFeedback:
			steps = append(steps, replay.FixtureStep{
				Kind:    replay.StepFeedback,
				EventID: e.Identifier,
				Reward:  e.Reward,
			})
		default:
			skipped++
		}
	}
	return steps, skipped
}

// #endregion extract

// #region output

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Printf("Wrote fixture to %s (%d bytes, %d steps)\n", outPath, len(data), len(fixture.Steps))
	return nil
}

// #endregion output
