package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	"github.com/danielpatrickdp/adaptive-router/internal/router"
)

// #region main

// simulate drives a two-option router through synthetic rounds. Each round
// draws one of two context clusters with Gaussian noise and rewards the
// router only when it picks that cluster's preferred option, so the final
// accuracy window shows whether the bandit separated the clusters.
func main() {
	rounds := flag.Int("rounds", 200, "number of decision rounds")
	dim := flag.Int("dim", 8, "context dimension")
	noise := flag.Float64("noise", 0.1, "per-coordinate Gaussian noise")
	alpha := flag.Float64("alpha", 1.0, "exploration coefficient")
	seed := flag.Int64("seed", 42, "RNG seed")
	flag.Parse()

	if *dim < 2 {
		fmt.Fprintln(os.Stderr, "dim must be at least 2")
		os.Exit(2)
	}

	cfg := router.DefaultConfig([]string{"fast_path", "careful_path"})
	cfg.Dim = *dim
	cfg.Alpha = *alpha
	r, err := router.New(cfg, router.Deps{})
	if err != nil {
		log.Fatalf("build router: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	options := r.Options()

	correct := 0
	window := make([]bool, 0, *rounds)
	for round := 1; round <= *rounds; round++ {
		cluster := rng.Intn(2)
		ctx := drawContext(rng, *dim, cluster, *noise)

		option, err := r.Decide(ctx)
		if err != nil {
			log.Fatalf("round %d: decide: %v", round, err)
		}

		hit := option == options[cluster]
		reward := 0.0
		if hit {
			reward = 1.0
			correct++
		}
		window = append(window, hit)
		if err := r.Feedback(router.Feedback{Reward: &reward}); err != nil {
			log.Fatalf("round %d: feedback: %v", round, err)
		}

		if round%50 == 0 {
			fmt.Printf("round %4d: cumulative accuracy %.1f%%, last 50 %.1f%%\n",
				round, 100*float64(correct)/float64(round), 100*windowAccuracy(window, 50))
		}
	}

	fmt.Printf("\nFinal: %d/%d correct (%.1f%%), last 50 rounds %.1f%%\n",
		correct, *rounds, 100*float64(correct)/float64(*rounds), 100*windowAccuracy(window, 50))

	snap := r.Snapshot()
	for i, arm := range snap.Arms {
		var bn float64
		for _, v := range arm.B {
			bn += v * v
		}
		fmt.Printf("arm %d (%s): ||b|| = %.3f\n", i, options[i], math.Sqrt(bn))
	}
}

// #endregion main

// #region synthetic-contexts

// drawContext samples a unit-norm context around the cluster's base
// direction. Numeric state passes through the encoder untouched, so the
// normalization happens here.
func drawContext(rng *rand.Rand, dim, cluster int, noise float64) []float64 {
	ctx := make([]float64, dim)
	ctx[cluster] = 1.0
	var sum float64
	for i := range ctx {
		ctx[i] += noise * rng.NormFloat64()
		sum += ctx[i] * ctx[i]
	}
	norm := math.Sqrt(sum)
	if norm > 0 {
		for i := range ctx {
			ctx[i] /= norm
		}
	}
	return ctx
}

func windowAccuracy(window []bool, n int) float64 {
	if len(window) < n {
		n = len(window)
	}
	if n == 0 {
		return 0
	}
	hits := 0
	for _, ok := range window[len(window)-n:] {
		if ok {
			hits++
		}
	}
	return float64(hits) / float64(n)
}

// #endregion synthetic-contexts
