package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-router/internal/codec"
	"github.com/danielpatrickdp/adaptive-router/internal/memory"
	"github.com/danielpatrickdp/adaptive-router/internal/policy"
	"github.com/danielpatrickdp/adaptive-router/internal/replay"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	dbPath := flag.String("db", "", "path to an experiences database (DB mode)")
	alpha := flag.Float64("alpha", 1.0, "exploration coefficient for DB mode")
	ridge := flag.Float64("ridge", 1.0, "ridge lambda for DB mode")
	snapshotOut := flag.String("snapshot-out", "", "optional path to write the final policy snapshot")
	flag.Parse()

	if (*fixturePath == "" && *dbPath == "") || (*fixturePath != "" && *dbPath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--snapshot-out policy.json]")
		fmt.Fprintln(os.Stderr, "       replay --db path/to/experiences.db [--alpha A] [--ridge L] [--snapshot-out policy.json]")
		os.Exit(2)
	}

	var snap policy.Snapshot
	var exitCode int
	if *fixturePath != "" {
		snap, exitCode = runFixtureMode(*fixturePath)
	} else {
		snap, exitCode = runDBMode(*dbPath, *alpha, *ridge)
	}

	if exitCode != 2 && *snapshotOut != "" {
		if err := codec.Save(*snapshotOut, snap); err != nil {
			fmt.Fprintf(os.Stderr, "write snapshot: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("\nPolicy snapshot written to %s\n", *snapshotOut)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string) (policy.Snapshot, int) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return policy.Snapshot{}, 2
	}

	results, snap, err := replay.Replay(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return policy.Snapshot{}, 2
	}

	if f.Description != "" {
		fmt.Println(f.Description)
		fmt.Println()
	}
	return snap, printResults(results)
}

// printResults outputs a per-step table plus a summary and returns the exit
// code: 0 when every expectation held and no lifecycle error occurred.
func printResults(results []replay.StepResult) int {
	fmt.Printf("%-5s| %-15s| %-15s| %-15s| %s\n", "Step", "Kind", "Chosen", "Expected", "Status")
	fmt.Printf("%-5s+%-16s+%-16s+%-16s+%s\n",
		"-----", "----------------", "----------------", "----------------", "--------")

	for _, r := range results {
		status := "OK"
		switch {
		case r.Err != "":
			status = "ERR " + r.Err
		case !r.Match:
			status = "DIFF"
		}
		expect := r.Expect
		if expect == "" {
			expect = "—"
		}
		chosen := r.Option
		if chosen == "" {
			chosen = "—"
		}
		fmt.Printf("%-5d| %-15s| %-15s| %-15s| %s\n", r.Index, r.Kind, chosen, expect, status)
	}

	s := replay.Summarize(results)
	fmt.Printf("\nSummary: %d steps (%d decisions, %d feedbacks, %d trace completions), %d mismatch, %d errors\n",
		s.TotalSteps, s.Decisions, s.Feedbacks, s.TraceCompletions, s.Mismatches, s.Errors)

	if s.Mismatches > 0 || s.Errors > 0 {
		return 1
	}
	return 0
}

// #endregion fixture-mode

// #region db-mode

// runDBMode rebuilds a fresh policy from the experience records in the
// database and reports what it absorbed.
func runDBMode(path string, alpha, ridge float64) (policy.Snapshot, int) {
	store, err := memory.NewSQLiteStore(path, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return policy.Snapshot{}, 2
	}
	defer store.Close()

	records, err := store.All()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read experiences: %v\n", err)
		return policy.Snapshot{}, 2
	}

	numArms, dim, err := replay.InferShape(records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "infer shape: %v\n", err)
		return policy.Snapshot{}, 2
	}

	p, err := replay.FromRecords(records, policy.Config{
		NumArms:     numArms,
		Dim:         dim,
		Alpha:       alpha,
		RidgeLambda: ridge,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild policy: %v\n", err)
		return policy.Snapshot{}, 2
	}

	counts := make([]int, numArms)
	rewards := make([]float64, numArms)
	for _, rec := range records {
		counts[rec.Arm]++
		rewards[rec.Arm] += rec.Reward
	}

	fmt.Printf("Rebuilt policy from %d records (%d arms, dim %d)\n\n", len(records), numArms, dim)
	fmt.Printf("%-5s  %8s  %12s\n", "Arm", "Count", "Mean Reward")
	for arm := 0; arm < numArms; arm++ {
		mean := 0.0
		if counts[arm] > 0 {
			mean = rewards[arm] / float64(counts[arm])
		}
		fmt.Printf("%-5d  %8d  %12.4f\n", arm, counts[arm], mean)
	}
	return p.Export(), 0
}

// #endregion db-mode
