// liveq-bench exercises a liveq.Client against the in-memory backend:
// publisher goroutines push results, watcher goroutines run one-shot
// queries, and the tool reports wait-latency percentiles. While it runs,
// a chi server exposes the client's Prometheus metrics on /metrics.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/liveq-dev/liveq/pkg/backend"
	"github.com/liveq-dev/liveq/pkg/instrument"
	"github.com/liveq-dev/liveq/pkg/liveq"
)

// profile bundles a named load shape.
type profile struct {
	Name       string
	Queries    int
	Watchers   int
	Publishers int
	Duration   time.Duration
	PublishRPS float64
}

var profiles = map[string]profile{
	"fast": {
		Name:       "fast",
		Queries:    20,
		Watchers:   10,
		Publishers: 2,
		Duration:   10 * time.Second,
		PublishRPS: 20,
	},
	"standard": {
		Name:       "standard",
		Queries:    100,
		Watchers:   50,
		Publishers: 4,
		Duration:   30 * time.Second,
		PublishRPS: 50,
	},
	"stress": {
		Name:       "stress",
		Queries:    500,
		Watchers:   200,
		Publishers: 8,
		Duration:   60 * time.Second,
		PublishRPS: 200,
	},
}

func main() {
	var (
		profileName string
		metricsAddr string
		timeout     time.Duration
	)

	rootCmd := &cobra.Command{
		Use:   "liveq-bench",
		Short: "Load-test the LiveQ subscription registry and dispatcher",
		Long: `liveq-bench drives a liveq.Client against the in-memory backend.

Publishers push results for a rotating set of queries; watchers run
one-shot Query calls and record how long the first load took. The tool
prints wait-latency percentiles plus registry counters when done.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := profiles[profileName]
			if !ok {
				return fmt.Errorf("unknown profile %q (have: fast, standard, stress)", profileName)
			}
			return runBench(p, metricsAddr, timeout)
		},
	}

	rootCmd.Flags().StringVar(&profileName, "profile", "fast", "Load profile: fast, standard, stress")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9477", "Address for the /metrics endpoint (empty to disable)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-query wait timeout")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runBench(p profile, metricsAddr string, timeout time.Duration) error {
	reg := prometheus.NewRegistry()
	metrics := instrument.NewMetrics(instrument.WithRegistry(reg))

	local := backend.NewLocal()
	client := liveq.New(local,
		liveq.WithObserver(metrics),
		liveq.WithTimeout(timeout),
	)
	defer client.Close()

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, reg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.Duration)
	defer cancel()

	var (
		wg        sync.WaitGroup
		published atomic.Int64
		timeouts  atomic.Int64

		latMu     sync.Mutex
		latencies []time.Duration
	)

	// Publishers: rotate through the query space at the configured rate.
	for i := 0; i < p.Publishers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			interval := time.Duration(float64(time.Second) / (p.PublishRPS / float64(p.Publishers)))
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					q := rng.Intn(p.Queries)
					local.Publish("bench:item", map[string]any{"id": q}, map[string]any{
						"id":  q,
						"rev": published.Add(1),
					})
				}
			}
		}(int64(i) + 1)
	}

	// Watchers: one-shot queries against random items, timing first load.
	for i := 0; i < p.Watchers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for ctx.Err() == nil {
				q := rng.Intn(p.Queries)
				start := time.Now()
				_, err := client.Query(ctx, "bench:item", map[string]any{"id": q})
				switch {
				case err == nil:
					latMu.Lock()
					latencies = append(latencies, time.Since(start))
					latMu.Unlock()
				case ctx.Err() != nil:
					return
				default:
					timeouts.Add(1)
				}
			}
		}(int64(i) + 1000)
	}

	wg.Wait()

	report(p, latencies, published.Load(), timeouts.Load(), client.ActiveCells())
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if err := http.ListenAndServe(addr, r); err != nil {
		fmt.Fprintf(os.Stderr, "metrics server: %s\n", err)
	}
}

func report(p profile, latencies []time.Duration, published, timeouts int64, liveCells int) {
	fmt.Printf("\nprofile=%s queries=%d watchers=%d publishers=%d duration=%s\n",
		p.Name, p.Queries, p.Watchers, p.Publishers, p.Duration)
	fmt.Printf("published=%d completed=%d timeouts=%d live_cells=%d\n",
		published, len(latencies), timeouts, liveCells)

	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("first-load wait: p50=%s p90=%s p99=%s max=%s\n",
		percentile(latencies, 0.50),
		percentile(latencies, 0.90),
		percentile(latencies, 0.99),
		latencies[len(latencies)-1],
	)
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
