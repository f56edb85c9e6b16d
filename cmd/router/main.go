package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/adaptive-router/internal/codec"
	"github.com/danielpatrickdp/adaptive-router/internal/logging"
	"github.com/danielpatrickdp/adaptive-router/internal/memory"
	"github.com/danielpatrickdp/adaptive-router/internal/router"
)

// #region main
func main() {
	optionsFlag := flag.String("options", "fast_path,careful_path", "comma-separated option names")
	dim := flag.Int("dim", 32, "context dimension")
	alpha := flag.Float64("alpha", 1.0, "exploration coefficient")
	flag.Parse()

	dbPath := envOr("ROUTER_DB", "router.db")
	policyPath := envOr("ROUTER_POLICY", "policy.json")

	store, err := memory.NewSQLiteStore(dbPath, *dim)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	dlog, err := logging.NewDecisionLog(store.DB())
	if err != nil {
		log.Fatalf("failed to init decision log: %v", err)
	}

	cfg := router.DefaultConfig(strings.Split(*optionsFlag, ","))
	cfg.Dim = *dim
	cfg.Alpha = *alpha
	r, err := router.New(cfg, router.Deps{Store: store, Log: dlog})
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	// Resume from the last snapshot when one exists.
	if err := r.LoadPolicy(policyPath); err != nil && !errors.Is(err, codec.ErrNotFound) {
		log.Fatalf("failed to load policy snapshot: %v", err)
	}

	fmt.Println("Adaptive router ready.")
	fmt.Printf("  DB: %s | Policy: %s | Options: %s\n", dbPath, policyPath, strings.Join(r.Options(), ", "))
	fmt.Println("Type a request (or 'quit' to exit). After each decision, enter a reward in [-1, 1] or press enter to skip:")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		request := strings.TrimSpace(scanner.Text())
		if request == "" {
			continue
		}
		if request == "quit" || request == "exit" {
			break
		}

		option, err := r.Decide(request)
		if err != nil {
			log.Printf("decide error: %v", err)
			continue
		}
		fmt.Printf("  -> %s\n", option)

		fmt.Print("reward> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			// Skipped: the pending decision is overwritten by the next one.
			continue
		}
		reward, err := strconv.ParseFloat(line, 64)
		if err != nil {
			log.Printf("bad reward %q: %v", line, err)
			continue
		}
		if err := r.Feedback(router.Feedback{Reward: &reward}); err != nil {
			log.Printf("feedback error: %v", err)
		}
	}

	if err := r.SavePolicy(policyPath); err != nil {
		log.Fatalf("failed to save policy snapshot: %v", err)
	}
	fmt.Printf("Policy snapshot saved to %s\n", policyPath)
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
