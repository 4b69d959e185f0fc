package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"math/rand"
	"os/signal"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/net/context"

	"github.com/go-replica/replmap/capture"
	"github.com/go-replica/replmap/config"
	"github.com/go-replica/replmap/crdt"
	"github.com/go-replica/replmap/replica"
)

// Structs

// hostedReplica bundles one replica of this process with the
// capture adapter feeding its local write path.
type hostedReplica struct {
	service replica.Service
	adapter *capture.Adapter
}

// Functions

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

// initReplicas builds the replicas named in the config,
// each wrapped with logging and metrics middleware and
// fronted by a rate-limited capture adapter.
func initReplicas(ctx context.Context, logger log.Logger, conf *config.Config, metrics *ReplmapMetrics) []*hostedReplica {

	window := time.Duration(conf.Capture.WindowMS) * time.Millisecond

	hosted := make([]*hostedReplica, 0, len(conf.Replicas))

	for _, replicaConf := range conf.Replicas {

		svc := replica.InitService(replicaConf.Name)
		svc = replica.NewLoggingService(svc, log.With(logger, "replica", svc.Name()))
		svc = replica.NewMetricsService(svc, metrics.ForReplica(svc.Name()))

		// The adapter closure is the only path by that
		// simulated external events reach the write entry
		// point, so the configured cadence bound holds.
		applyLocal := func(s replica.Service) capture.ApplyFunc {
			return func(key string, value crdt.Value) {
				if _, err := s.ApplyLocal(ctx, key, value); err != nil {
					level.Error(logger).Log("msg", "failed to apply captured event", "err", err)
				}
			}
		}(svc)

		hosted = append(hosted, &hostedReplica{
			service: svc,
			adapter: capture.InitAdapter(log.With(logger, "replica", svc.Name()), window, applyLocal),
		})
	}

	// Deterministic iteration order for the exchange rounds.
	sort.Slice(hosted, func(i, j int) bool {
		return hosted[i].service.Name() < hosted[j].service.Name()
	})

	return hosted
}

// exchangeAll performs one all-to-all delta exchange round
// between the hosted replicas and returns the total number
// of delta bytes moved.
func exchangeAll(ctx context.Context, logger log.Logger, hosted []*hostedReplica) int {

	moved := 0

	for _, from := range hosted {

		for _, to := range hosted {

			if from == to {
				continue
			}

			raw := from.service.ExportDeltaFor(ctx, to.service.Name())
			moved += len(raw)

			if err := to.service.ImportDelta(ctx, raw); err != nil {
				level.Warn(logger).Log(
					"msg", "failed to import delta during exchange round",
					"from", from.service.Name(),
					"to", to.service.Name(),
					"err", err,
				)
			}
		}
	}

	return moved
}

func main() {

	// Set CPUs usable by replmap to all available.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Parse command-line flag that defines a config path.
	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	envFlag := flag.String("env", ".env", "Provide path to an optional .env file with host-specific overrides.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	// Read configuration from file.
	conf, err := config.LoadConfig(*configFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config", "err", err,
		)
		os.Exit(1)
	}

	// Apply host-specific overrides if an .env file exists.
	env, err := config.LoadEnv(*envFlag)
	if err != nil {
		level.Debug(logger).Log("msg", "no .env file applied", "err", err)
	} else if env.PrometheusAddr != "" {
		conf.PrometheusAddr = env.PrometheusAddr
	}

	metrics := NewReplmapMetrics(conf.PrometheusAddr)
	go runPromHTTP(logger, conf.PrometheusAddr)

	ctx := context.Background()
	hosted := initReplicas(ctx, logger, conf, metrics)

	level.Info(logger).Log(
		"msg", "replmap demo running",
		"replicas", len(hosted),
		"captureWindowMS", conf.Capture.WindowMS,
		"syncIntervalMS", conf.Sync.IntervalMS,
	)

	// Simulate collaborative cursor sharing: every replica
	// continuously reports its own drifting cursor position
	// through its capture adapter while delta exchange
	// rounds run at the configured sync cadence.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	moveT := time.NewTicker(time.Duration(conf.Capture.WindowMS) * time.Millisecond / 3)
	defer moveT.Stop()

	syncT := time.NewTicker(time.Duration(conf.Sync.IntervalMS) * time.Millisecond)
	defer syncT.Stop()

	for {

		select {

		case <-moveT.C:

			for _, h := range hosted {

				key := fmt.Sprintf("cursor/%s", h.service.Name())
				pos := fmt.Sprintf("%d:%d", rand.Intn(1920), rand.Intn(1080))

				h.adapter.Submit(key, crdt.StringValue(pos))
			}

		case <-syncT.C:

			moved := exchangeAll(ctx, logger, hosted)

			// All replicas have seen all deltas now, the
			// fully-acknowledged prefix can go.
			dropped := 0
			for _, h := range hosted {
				dropped += h.service.Compact(ctx)
			}

			level.Info(logger).Log(
				"msg", "exchange round finished",
				"deltaBytes", moved,
				"compacted", dropped,
				"keys", len(hosted[0].service.Snapshot(ctx)),
			)

		case <-stop:

			level.Info(logger).Log("msg", "shutting down")

			for _, h := range hosted {
				h.adapter.Close()
			}

			return
		}
	}
}
