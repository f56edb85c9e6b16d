package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/danielpatrickdp/adaptive-router/internal/codec"
	"github.com/danielpatrickdp/adaptive-router/internal/memory"
	"github.com/danielpatrickdp/adaptive-router/internal/policy"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	policyPath := flag.String("policy", "", "path to a policy snapshot JSON")
	dbPath := flag.String("db", "", "path to an experiences database")
	last := flag.Int("last", 20, "show N most recent experience records")
	jsonOut := flag.Bool("json", false, "output as JSON instead of a table")
	flag.Parse()

	if *policyPath == "" && *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --policy policy.json [--json]")
		fmt.Fprintln(os.Stderr, "       inspect --db experiences.db [--last N] [--json]")
		os.Exit(2)
	}

	if *policyPath != "" {
		if err := runPolicyMode(*policyPath, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if *dbPath != "" {
		if err := runDBMode(*dbPath, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region policy-mode

type armRow struct {
	Arm          int     `json:"arm"`
	ThetaNorm    float64 `json:"theta_norm"`
	BNorm        float64 `json:"b_norm"`
	Trace        float64 `json:"trace"`
	Observations float64 `json:"observations"`
}

type policyOutput struct {
	FormatVersion int      `json:"format_version"`
	NumArms       int      `json:"num_arms"`
	Dim           int      `json:"dim"`
	Alpha         float64  `json:"alpha"`
	RidgeLambda   float64  `json:"ridge_lambda"`
	Arms          []armRow `json:"arms"`
}

func runPolicyMode(path string, jsonOut bool) error {
	snap, err := codec.Inspect(path)
	if err != nil {
		return err
	}

	// Rehydrate the policy so theta comes from the same solve Select uses.
	p, err := policy.NewLinUCB(policy.Config{
		NumArms:     snap.NumArms,
		Dim:         snap.Dim,
		Alpha:       snap.Alpha,
		RidgeLambda: snap.RidgeLambda,
	})
	if err != nil {
		return err
	}
	if err := p.Import(snap); err != nil {
		return err
	}

	out := policyOutput{
		FormatVersion: snap.FormatVersion,
		NumArms:       snap.NumArms,
		Dim:           snap.Dim,
		Alpha:         snap.Alpha,
		RidgeLambda:   snap.RidgeLambda,
	}
	for i, arm := range snap.Arms {
		theta, err := p.Theta(i)
		if err != nil {
			return err
		}
		out.Arms = append(out.Arms, armRow{
			Arm:          i,
			ThetaNorm:    vectorNorm(theta),
			BNorm:        vectorNorm(arm.B),
			Trace:        matrixTrace(arm.A, snap.Dim),
			Observations: observations(arm, snap),
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Format:  v%d\n", out.FormatVersion)
	fmt.Printf("Arms:    %d\n", out.NumArms)
	fmt.Printf("Dim:     %d\n", out.Dim)
	fmt.Printf("Alpha:   %.4f\n", out.Alpha)
	fmt.Printf("Lambda:  %.4f\n", out.RidgeLambda)

	fmt.Printf("\n%-5s  %10s  %10s  %10s  %12s\n", "Arm", "||theta||", "||b||", "tr(A)", "Observations")
	for _, r := range out.Arms {
		fmt.Printf("%-5d  %10.4f  %10.4f  %10.4f  %12.1f\n", r.Arm, r.ThetaNorm, r.BNorm, r.Trace, r.Observations)
	}
	return nil
}

// observations estimates how many updates an arm has absorbed. Each
// unit-norm context adds exactly 1 to tr(A), so with a normalizing encoder
// this is the exact update count.
func observations(arm policy.ArmState, snap policy.Snapshot) float64 {
	return matrixTrace(arm.A, snap.Dim) - snap.RidgeLambda*float64(snap.Dim)
}

// #endregion policy-mode

// #region db-mode

type dbOutput struct {
	Total   int             `json:"total"`
	PerArm  map[int]int     `json:"per_arm"`
	Rewards map[int]float64 `json:"mean_reward_per_arm"`
	Recent  []memory.Record `json:"recent"`
}

func runDBMode(path string, last int, jsonOut bool) error {
	store, err := memory.NewSQLiteStore(path, 0)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.All()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no experience records found")
		return nil
	}

	out := dbOutput{
		Total:   len(records),
		PerArm:  make(map[int]int),
		Rewards: make(map[int]float64),
	}
	for _, r := range records {
		out.PerArm[r.Arm]++
		out.Rewards[r.Arm] += r.Reward
	}
	for arm, sum := range out.Rewards {
		out.Rewards[arm] = sum / float64(out.PerArm[arm])
	}

	start := len(records) - last
	if start < 0 {
		start = 0
	}
	out.Recent = records[start:]

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Experience records: %d\n\n", out.Total)
	fmt.Printf("%-5s  %8s  %12s\n", "Arm", "Count", "Mean Reward")
	arms := make([]int, 0, len(out.PerArm))
	for arm := range out.PerArm {
		arms = append(arms, arm)
	}
	sort.Ints(arms)
	for _, arm := range arms {
		fmt.Printf("%-5d  %8d  %12.4f\n", arm, out.PerArm[arm], out.Rewards[arm])
	}

	fmt.Printf("\nRecent records:\n")
	fmt.Printf("%-6s  %-10s  %-5s  %8s  %s\n", "Seq", "ID", "Arm", "Reward", "Time")
	for _, r := range out.Recent {
		fmt.Printf("%-6d  %-10s  %-5d  %8.4f  %s\n",
			r.Seq, shortID(r.ID), r.Arm, r.Reward, r.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion db-mode

// #region output

func vectorNorm(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

func matrixTrace(a []float64, d int) float64 {
	var sum float64
	for i := 0; i < d; i++ {
		sum += a[i*d+i]
	}
	return sum
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
