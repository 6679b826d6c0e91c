// Command bench drives a synthetic workload through the SRV client and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/srvclient/client"
	"github.com/IvanBrykalov/srvclient/internal/config"
	"github.com/IvanBrykalov/srvclient/internal/logger"
	pmet "github.com/IvanBrykalov/srvclient/metrics/prom"
	"github.com/IvanBrykalov/srvclient/policy/rfc2782"
)

var errSynthetic = errors.New("synthetic failure")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath   string
		pprofAddr string

		service     string
		policyName  string
		mode        string
		resolverKnd string
		nameservers []string
		targets     []string
		workers     int
		duration    time.Duration
		failRate    float64
		latency     time.Duration
		seed        int64
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic workload against the targets of an SRV name",
		Long: "bench resolves an SRV name, then has N workers execute a synthetic " +
			"operation against the discovered targets until the duration elapses.\n" +
			"Configuration: --config YAML, then SRVCLIENT_* environment (.env files " +
			"are loaded), then flags.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load(".env")       // base
			_ = godotenv.Load(".env.local") // local overrides

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			// ---- Flags win over file and environment ----
			f := cmd.Flags()
			if f.Changed("service") {
				cfg.Service.Name = service
			}
			if f.Changed("policy") {
				cfg.Service.Policy = policyName
			}
			if f.Changed("mode") {
				cfg.Service.Mode = mode
			}
			if f.Changed("resolver") {
				cfg.Resolver.Kind = resolverKnd
			}
			if f.Changed("nameserver") {
				cfg.Resolver.Nameservers = nameservers
			}
			if f.Changed("target") {
				cfg.Resolver.Targets = targets
			}
			if f.Changed("workers") {
				cfg.Bench.Workers = workers
			}
			if f.Changed("duration") {
				cfg.Bench.Duration = duration
			}
			if f.Changed("fail-rate") {
				cfg.Bench.FailRate = failRate
			}
			if f.Changed("latency") {
				cfg.Bench.Latency = latency
			}
			if f.Changed("seed") {
				cfg.Bench.Seed = seed
			}
			if f.Changed("http") {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, pprofAddr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", "", "YAML configuration file")
	f.StringVar(&pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	f.StringVar(&service, "service", "", "SRV name, e.g. _http._tcp.example.com")
	f.StringVar(&policyName, "policy", "", "target policy: affinity | rfc2782")
	f.StringVar(&mode, "mode", "", "execution mode: serial | concurrent")
	f.StringVar(&resolverKnd, "resolver", "", "SRV backend: system | dns | static")
	f.StringSliceVar(&nameservers, "nameserver", nil, "DNS server for --resolver=dns (repeatable)")
	f.StringSliceVar(&targets, "target", nil, "host:port[:priority[:weight]] for --resolver=static (repeatable)")
	f.IntVar(&workers, "workers", 0, "number of worker goroutines")
	f.DurationVar(&duration, "duration", 0, "benchmark duration")
	f.Float64Var(&failRate, "fail-rate", 0, "probability [0..1] that one attempt fails")
	f.DurationVar(&latency, "latency", 0, "synthetic latency of one attempt")
	f.Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	f.StringVar(&metricsAddr, "http", "", "serve Prometheus metrics at addr (e.g. :8080)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, pprofAddr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.New(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: "bench"})
	defer func() { _ = log.Sync() }()

	// ---- pprof server (on DefaultServeMux) ----
	if pprofAddr != "" {
		go func() {
			log.Info("pprof: serving", zap.String("addr", pprofAddr))
			log.Warn("pprof server stopped", zap.Error(http.ListenAndServe(pprofAddr, nil)))
		}()
	}

	// ---- Prometheus metrics ----
	reg := prometheus.NewRegistry()
	metrics := pmet.New(reg, cfg.Metrics.Namespace, "bench", prometheus.Labels{"service": cfg.Service.Name})
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Info("metrics: serving", zap.String("addr", cfg.Metrics.Addr))
			log.Warn("metrics server stopped", zap.Error(http.ListenAndServe(cfg.Metrics.Addr, mux)))
		}()
	}

	// ---- Build client ----
	res, err := buildResolver(cfg)
	if err != nil {
		return err
	}
	mode, err := client.ParseExecution(cfg.Service.Mode)
	if err != nil {
		return err
	}
	base := client.NewWithResolver(cfg.Service.Name, res).
		WithScheme(cfg.Service.Scheme).
		WithPathPrefix(cfg.Service.PathPrefix).
		WithLogger(log).
		WithMetrics(metrics)

	var rep report
	if cfg.Service.Policy == "rfc2782" {
		rep = drive(ctx, client.WithPolicy(base, rfc2782.New()), mode, cfg)
	} else {
		rep = drive(ctx, base, mode, cfg)
	}

	fmt.Printf("service=%s policy=%s mode=%s resolver=%s workers=%d dur=%v seed=%d\n",
		cfg.Service.Name, cfg.Service.Policy, mode, cfg.Resolver.Kind, cfg.Bench.Workers, rep.elapsed, rep.seed)
	fmt.Printf("executions=%d (%.0f exec/s)  ok=%d  all-failed=%d  no-targets=%d  refresh-errors=%d\n",
		rep.total, float64(rep.total)/rep.elapsed.Seconds(), rep.ok, rep.failed, rep.noTargets, rep.refreshErrs)
	fmt.Printf("attempts=%d  successes=%d  failures=%d  refreshes=%d\n",
		rep.stats.Attempts, rep.stats.Successes, rep.stats.Failures, rep.stats.Refreshes)
	return nil
}

type report struct {
	total, ok, failed, noTargets, refreshErrs uint64

	stats   client.Stats
	elapsed time.Duration
	seed    int64
}

// drive runs cfg.Bench.Workers goroutines executing a synthetic operation
// until the configured duration elapses.
func drive[I any](ctx context.Context, c *client.Client[I], mode client.Execution, cfg *config.Config) report {
	seedBase := cfg.Bench.Seed
	if seedBase == 0 {
		seedBase = time.Now().UnixNano()
	}
	failRate := cfg.Bench.FailRate
	latency := cfg.Bench.Latency

	var total, ok, failed, noTargets, refreshErrs atomic.Uint64
	ctx, cancel := context.WithTimeout(ctx, cfg.Bench.Duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Bench.Workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG; a *rand.Rand is not goroutine-safe,
			// and concurrent attempts of one execution share a mutex-guarded one.
			var mu sync.Mutex
			r := rand.New(rand.NewPCG(uint64(seedBase), uint64(id)*9973))
			fail := func() bool {
				mu.Lock()
				defer mu.Unlock()
				return r.Float64() < failRate
			}

			op := func(ctx context.Context, _ *url.URL) (struct{}, error) {
				if latency > 0 {
					t := time.NewTimer(latency)
					select {
					case <-t.C:
					case <-ctx.Done():
						t.Stop()
						return struct{}{}, ctx.Err()
					}
				}
				if fail() {
					return struct{}{}, errSynthetic
				}
				return struct{}{}, nil
			}

			for ctx.Err() == nil {
				_, err := client.Execute(ctx, c, mode, op)
				total.Add(1)
				var ae *client.AttemptError
				switch {
				case err == nil:
					ok.Add(1)
				case errors.As(err, &ae):
					failed.Add(1)
				case errors.Is(err, client.ErrNoTargets):
					noTargets.Add(1)
				default:
					refreshErrs.Add(1)
					// Back off so a dead resolver does not spin the worker.
					select {
					case <-time.After(100 * time.Millisecond):
					case <-ctx.Done():
					}
				}
			}
		}(w)
	}
	wg.Wait()

	return report{
		total:       total.Load(),
		ok:          ok.Load(),
		failed:      failed.Load(),
		noTargets:   noTargets.Load(),
		refreshErrs: refreshErrs.Load(),
		stats:       c.Stats(),
		elapsed:     time.Since(start),
		seed:        seedBase,
	}
}
