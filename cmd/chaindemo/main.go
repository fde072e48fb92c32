// Package main runs an action plan through the engine with every optional
// observer the configuration enables. Dependencies are wired with
// samber/do v2.
//
// The config file is taken from CHAINDEMO_CONFIG; all settings can also be
// given through ACTIONCHAIN_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"github.com/davidroman0O/actionchain"
	"github.com/davidroman0O/actionchain/internal/config"
	"github.com/davidroman0O/actionchain/internal/logging"
	"github.com/davidroman0O/actionchain/journal"
	"github.com/davidroman0O/actionchain/metrics"
	"github.com/davidroman0O/actionchain/tracing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts []config.Option
	if path := os.Getenv("CHAINDEMO_CONFIG"); path != "" {
		opts = append(opts, config.WithFile(path))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx := context.Background()

	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	registerDependencies(injector, cfg, logger)

	processor, err := do.Invoke[*actionchain.Processor](injector)
	if err != nil {
		return fmt.Errorf("resolving processor: %w", err)
	}
	registry := do.MustInvoke[*actionchain.Registry](injector)

	def, err := planFor(cfg)
	if err != nil {
		return err
	}

	root, err := registry.Build(def)
	if err != nil {
		return fmt.Errorf("building plan: %w", err)
	}

	ok, err := processor.Process(ctx, root)
	if err != nil {
		return fmt.Errorf("processing %s: %w", root, err)
	}
	logger.Info("plan finished", slog.String("root", root.String()), slog.Bool("success", ok))

	checksum := actionchain.NewTypedAction("checksum", checksumOf, []string{"alpha", "beta", "gamma"})
	sum, _, ok, err := checksum.Execute(ctx, processor)
	if err != nil {
		return fmt.Errorf("executing checksum: %w", err)
	}
	logger.Info("checksum computed", slog.Int("value", sum.Value), slog.Bool("success", ok))

	if cfg.Metrics.Enabled {
		printMetrics(do.MustInvoke[*prometheus.Registry](injector))
	}
	processor.Close()

	if cfg.Journal.Enabled {
		j := do.MustInvoke[*journal.Journal](injector)
		if err := printJournal(ctx, j); err != nil {
			logger.Error("reading journal", slog.Any("error", err))
		}
		if err := j.Close(); err != nil {
			logger.Error("closing journal", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if report := injector.ShutdownWithContext(shutdownCtx); report != nil && !report.Succeed {
		logger.Error("shutdown error", slog.String("error", report.Error()))
	}

	logger.Info("shutdown complete")
	return nil
}

func registerDependencies(injector *do.RootScope, cfg *config.Config, logger *slog.Logger) {
	do.Provide(injector, func(_ do.Injector) (*actionchain.Registry, error) {
		registry := actionchain.NewRegistry()
		if err := registerActions(registry, logger); err != nil {
			return nil, err
		}
		return registry, nil
	})

	do.Provide(injector, func(_ do.Injector) (*prometheus.Registry, error) {
		return prometheus.NewRegistry(), nil
	})

	do.Provide(injector, func(i do.Injector) (*metrics.Observer, error) {
		return metrics.NewObserver(do.MustInvoke[*prometheus.Registry](i), cfg.Metrics.Namespace)
	})

	// Shut down by the injector: Providers implements Shutdown(ctx) error.
	do.Provide(injector, func(_ do.Injector) (*tracing.Providers, error) {
		return tracing.NewStdoutProviders(cfg.Tracing.ServiceName, os.Stderr)
	})

	do.Provide(injector, func(i do.Injector) (*tracing.Observer, error) {
		providers := do.MustInvoke[*tracing.Providers](i)
		return tracing.NewObserver(providers.Tracer, providers.Meter)
	})

	do.Provide(injector, func(_ do.Injector) (*journal.Journal, error) {
		return journal.Open(context.Background(), cfg.Journal.DSN,
			journal.WithLogger(actionchain.NewSlogLogger(logger)),
		)
	})

	do.Provide(injector, func(i do.Injector) (*actionchain.Processor, error) {
		engineLogger := actionchain.NewSlogLogger(logger)
		opts := []actionchain.ProcessorOption{
			actionchain.WithLogger(engineLogger),
			actionchain.WithConfig(cfg.ProcessorSettings()),
			actionchain.WithMiddleware(actionchain.LoggingMiddleware(engineLogger)),
		}
		if cfg.Processor.Recover {
			opts = append(opts, actionchain.WithMiddleware(actionchain.RecoveryMiddleware(engineLogger)))
		}

		if cfg.Metrics.Enabled {
			observer, err := do.Invoke[*metrics.Observer](i)
			if err != nil {
				return nil, fmt.Errorf("metrics: %w", err)
			}
			opts = append(opts, actionchain.WithObserver(observer), actionchain.WithMiddleware(observer.Middleware()))
		}
		if cfg.Tracing.Enabled {
			observer, err := do.Invoke[*tracing.Observer](i)
			if err != nil {
				return nil, fmt.Errorf("tracing: %w", err)
			}
			opts = append(opts, actionchain.WithObserver(observer), actionchain.WithMiddleware(observer.Middleware()))
		}
		if cfg.Journal.Enabled {
			j, err := do.Invoke[*journal.Journal](i)
			if err != nil {
				return nil, fmt.Errorf("journal: %w", err)
			}
			opts = append(opts, actionchain.WithObserver(j))
		}

		return actionchain.NewProcessor(opts...), nil
	})
}

func planFor(cfg *config.Config) (actionchain.ActionDef, error) {
	if cfg.Plan.File == "" {
		return defaultPlan(), nil
	}
	def, err := config.LoadPlan(cfg.Plan.File)
	if err != nil {
		return def, fmt.Errorf("loading plan: %w", err)
	}
	return def, nil
}

// defaultPlan fetches records, runs a guard that blocks itself, then
// transforms and loads what was fetched and finally notifies.
func defaultPlan() actionchain.ActionDef {
	return actionchain.ActionDef{
		Action: "fetch",
		Params: map[string]any{"source": "orders"},
		Chains: map[string][]actionchain.ActionDef{
			"processing": {
				{Action: "guard", Params: map[string]any{"block": true}},
				{Action: "transform", Chains: map[string][]actionchain.ActionDef{
					"processing": {{Action: "load"}},
				}},
			},
			"post-processing": {{Action: "notify"}},
		},
	}
}

// Every demo action keeps its working set in the chain context so later
// actions of the same run can pick it up.
func registerActions(registry *actionchain.Registry, logger *slog.Logger) error {
	factories := map[string]actionchain.ActionFactory{
		"fetch": func() *actionchain.Action {
			return actionchain.NewAction("fetch", actionchain.WithMainHandler(func(_ context.Context, a *actionchain.Action) {
				source, _ := actionchain.GetDataByKey[string](a, "source", false)
				records := []string{source + "-1", source + "-2", source + "-3"}
				_ = a.SetData("records", records, true)
				logger.Info("fetched", slog.String("source", source), slog.Int("records", len(records)))
			}))
		},
		"guard": func() *actionchain.Action {
			return actionchain.NewAction("guard",
				actionchain.WithPreHandler(func(_ context.Context, a *actionchain.Action) {
					if block, _ := actionchain.GetDataByKey[bool](a, "block", false); block {
						_ = a.MarkAsCancelled()
					}
				}),
				actionchain.WithCancelHandler(func(_ context.Context, a *actionchain.Action) {
					logger.Warn("guard blocked its branch", slog.String("action", a.String()))
				}),
			)
		},
		"transform": func() *actionchain.Action {
			return actionchain.NewAction("transform", actionchain.WithMainHandler(func(_ context.Context, a *actionchain.Action) {
				records, err := actionchain.GetDataByKey[[]string](a, "records", true)
				if err != nil {
					logger.Error("no records to transform", slog.Any("error", err))
					return
				}
				out := make([]string, len(records))
				for i, r := range records {
					out[i] = strings.ToUpper(r)
				}
				_ = a.SetData("transformed", out, true)
			}))
		},
		"load": func() *actionchain.Action {
			return actionchain.NewAction("load", actionchain.WithMainHandler(func(_ context.Context, a *actionchain.Action) {
				rows, _ := actionchain.GetDataByKey[[]string](a, "transformed", true)
				logger.Info("loaded", slog.Any("rows", rows))
			}))
		},
		"notify": func() *actionchain.Action {
			return actionchain.NewAction("notify", actionchain.WithMainHandler(func(_ context.Context, a *actionchain.Action) {
				logger.Info("notified", slog.String("run", a.ChainContext().RunID()))
			}))
		},
	}

	var errs []error
	for name, factory := range factories {
		errs = append(errs, registry.Register(name, factory))
	}
	return errors.Join(errs...)
}

func checksumOf(_ context.Context, _ *actionchain.TypedAction[[]string, actionchain.Outcome[int]], words []string) actionchain.Outcome[int] {
	if len(words) == 0 {
		return actionchain.Failed(0)
	}
	sum := 0
	for _, w := range words {
		for _, r := range w {
			sum += int(r)
		}
	}
	return actionchain.Succeeded(sum)
}

func printMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gathering metrics: %v\n", err)
		return
	}

	fmt.Println("metrics:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			sort.Strings(labels)

			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprintf("%g", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				value = fmt.Sprintf("%g", m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				value = fmt.Sprintf("count=%d sum=%.6f", m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			}
			fmt.Printf("  %s{%s} %s\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
}

func printJournal(ctx context.Context, j *journal.Journal) error {
	runs, err := j.Runs(ctx)
	if err != nil {
		return err
	}

	fmt.Println("journal:")
	for _, r := range runs {
		fmt.Printf("  run %s root=%s finished=%t success=%t\n", r.RunID, r.RootName, r.Finished, r.Success)
		entries, err := j.Events(ctx, r.RunID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("    %4d %-16s %-12s %s\n", e.Seq, e.Kind, e.ActionName, e.Stage)
		}
	}
	return j.Err()
}
