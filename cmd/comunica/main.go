// Command comunica runs a demo dispatch pipeline: actions arrive over
// HTTP, an indexed bus routes them to the configured actors, a mediator
// picks a winner and returns its output. Registry snapshots, metrics and a
// live publish stream are served on a separate inspector port.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mandel59/comunica/pkg/actor"
	"github.com/mandel59/comunica/pkg/bus"
	"github.com/mandel59/comunica/pkg/config"
	"github.com/mandel59/comunica/pkg/core"
	"github.com/mandel59/comunica/pkg/ingress"
	"github.com/mandel59/comunica/pkg/inspector"
	"github.com/mandel59/comunica/pkg/mediator"
	obsprom "github.com/mandel59/comunica/pkg/observability/prometheus"
	"github.com/mandel59/comunica/pkg/observability/tracing"
)

func main() {
	var (
		configPath  = flag.String("config", "", "pipeline config file (YAML or JSON); built-in demo pipeline if empty")
		listenAddr  = flag.String("listen", ":8080", "ingress listen address")
		inspectAddr = flag.String("inspect", ":9090", "inspector listen address")
		traceFlag   = flag.Bool("trace", false, "emit OpenTelemetry spans to stdout")
	)
	flag.Parse()

	logger := core.NewDefaultLogger()
	if err := run(logger, *configPath, *listenAddr, *inspectAddr, *traceFlag); err != nil {
		logger.Errorf("comunica: %v", err)
		os.Exit(1)
	}
}

func run(logger core.Logger, configPath, listenAddr, inspectAddr string, trace bool) error {
	pipeline := defaultPipeline()
	if configPath != "" {
		loaded, err := config.LoadPipeline(configPath)
		if err != nil {
			return fmt.Errorf("load pipeline: %w", err)
		}
		pipeline = loaded
	}

	if trace {
		shutdown, err := tracing.Init(pipeline.Service)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	metrics := obsprom.GetMetrics()
	insp := inspector.New(obsprom.DefaultRegistry)
	insp.SetLogger(logger)

	var dispatch ingress.Dispatch[arithAction, float64]
	for i, busCfg := range pipeline.Buses {
		med, b, err := buildBus(busCfg, logger, metrics, insp)
		if err != nil {
			return fmt.Errorf("build bus %q: %w", busCfg.Name, err)
		}
		insp.Register(b)
		logger.Infof("comunica: bus %q ready with %d subscription(s)", busCfg.Name, b.Len())

		// The first configured bus is the pipeline's entry point.
		if i == 0 {
			fn := med.Mediate
			if trace {
				fn = tracing.Dispatch(busCfg.Name, fn)
			}
			dispatch = fn
		}
	}

	srv := ingress.New("comunica", dispatch)
	srv.SetLogger(logger)

	if err := insp.Start(inspectAddr); err != nil {
		return fmt.Errorf("start inspector: %w", err)
	}
	logger.Infof("comunica: inspector on %s", inspectAddr)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe(listenAddr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case s := <-sig:
		logger.Infof("comunica: received %v, shutting down", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(); err != nil {
		logger.Warnf("comunica: ingress shutdown: %v", err)
	}
	return insp.Close(ctx)
}

// buildBus wires one configured bus: actors, index, mediator, observers.
func buildBus(cfg config.BusConfig, logger core.Logger, metrics *obsprom.Metrics, insp *inspector.Inspector) (*mediator.Mediator[arithAction, arithEstimate, float64], *bus.IndexedBus[arithAction, arithEstimate, float64], error) {
	b, err := bus.NewIndexed[arithAction, arithEstimate, float64](cfg.Name,
		actor.IdentifiersOf[arithAction, arithEstimate, float64],
		actor.ActionIDOf[arithAction])
	if err != nil {
		return nil, nil, err
	}
	b.SetLogger(logger)
	b.SetObserver(multiObserver{metrics, insp})

	for _, actorCfg := range cfg.Actors {
		a, err := buildActor(actorCfg)
		if err != nil {
			return nil, nil, err
		}
		b.Subscribe(a)
	}

	strategy, err := buildStrategy(cfg.Mediator)
	if err != nil {
		return nil, nil, err
	}
	med := mediator.New[arithAction, arithEstimate, float64](b, strategy)
	med.SetLogger(logger)
	med.SetObserver(metrics)
	return med, b, nil
}

func buildStrategy(cfg config.MediatorConfig) (mediator.Strategy[arithEstimate], error) {
	field := func(e arithEstimate) float64 { return e.Cost }
	switch cfg.Field {
	case "", "cost":
	case "priority":
		field = func(e arithEstimate) float64 { return e.Priority }
	default:
		return nil, fmt.Errorf("unknown mediator field %q", cfg.Field)
	}

	switch cfg.Policy {
	case "first":
		return mediator.FirstFeasible[arithEstimate](), nil
	case "min":
		return mediator.Number(field, mediator.PickMin), nil
	case "max":
		return mediator.Number(field, mediator.PickMax), nil
	default:
		return nil, fmt.Errorf("unknown mediator policy %q", cfg.Policy)
	}
}

// multiObserver fans publish observations out to metrics and the
// inspector's event stream.
type multiObserver [2]bus.Observer

func (m multiObserver) ObservePublish(ctx context.Context, busName string, route bus.Route, candidates int, elapsed time.Duration) {
	for _, o := range m {
		if o != nil {
			o.ObservePublish(ctx, busName, route, candidates, elapsed)
		}
	}
}

func defaultPipeline() *config.Pipeline {
	return &config.Pipeline{
		Service: "comunica-demo",
		Buses: []config.BusConfig{
			{
				Name:     "aggregate",
				Mediator: config.MediatorConfig{Policy: "min", Field: "cost"},
				Actors: []config.ActorConfig{
					{Name: "sum", Kind: "arith", Identifiers: []string{"sum"}},
					{Name: "stats", Kind: "arith", Identifiers: []string{"avg", "count"}},
					{Name: "fallback", Kind: "scan"},
				},
			},
		},
	}
}
