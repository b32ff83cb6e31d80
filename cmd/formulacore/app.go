package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"formulacore/internal/blob"
	"formulacore/internal/config"
	"formulacore/internal/core"
	"formulacore/internal/logger"
	"formulacore/pkg/domain"
)

// errReported marks failures whose details were already written to stdout.
var errReported = errors.New("reported")

type rootFlags struct {
	configFile  string
	logLevel    string
	logJSON     bool
	storage     string
	sqlitePath  string
	blobDriver  string
	blobRoot    string
	concurrency int
	metrics     bool
	trace       bool
}

type app struct {
	stdout, stderr io.Writer
	flags          rootFlags

	cfg      config.Config
	log      *logger.Logger
	store    domain.PersistentStore
	svc      *core.Service
	blobs    blob.Store
	registry *prometheus.Registry
}

// overrides copies explicitly set flags over the loaded configuration.
func (a *app) overrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		a.cfg.Log.Level = a.flags.logLevel
	}
	if flags.Changed("log-json") {
		a.cfg.Log.JSON = a.flags.logJSON
	}
	if flags.Changed("storage") {
		a.cfg.Storage.Driver = a.flags.storage
	}
	if flags.Changed("sqlite-path") {
		a.cfg.Storage.SQLitePath = a.flags.sqlitePath
	}
	if flags.Changed("blob-driver") {
		a.cfg.Blob.Driver = a.flags.blobDriver
	}
	if flags.Changed("blob-root") {
		a.cfg.Blob.FSRoot = a.flags.blobRoot
	}
	if flags.Changed("concurrency") {
		a.cfg.Batch.Concurrency = a.flags.concurrency
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.WithFile(a.flags.configFile))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.overrides(cmd)
	if err := config.Validate(a.cfg); err != nil {
		return err
	}
	a.log = logger.New(logger.Config{Level: a.cfg.Log.Level, JSON: a.cfg.Log.JSON, Output: a.stderr}).With("command", cmd.CommandPath())

	opts := []core.Option{core.WithLogger(a.log)}
	if a.flags.metrics {
		a.registry = prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(a.registry, a.cfg.Metrics.Namespace)
		if err != nil {
			return err
		}
		opts = append(opts, core.WithMetricsRecorder(rec))
	}
	if a.flags.trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(a.stderr)))
	}
	store, err := core.OpenPersistentStore(cmd.Context(), a.cfg.Storage)
	if err != nil {
		return err
	}
	a.store = store
	a.svc = core.NewService(store, opts...)
	a.log.Debug("configured", "storage", a.cfg.Storage.Driver, "blob", a.cfg.Blob.Driver)
	return nil
}

func (a *app) blobStore(ctx context.Context) (blob.Store, error) {
	if a.blobs != nil {
		return a.blobs, nil
	}
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return nil, err
	}
	a.blobs = store
	return store, nil
}

func (a *app) close() error {
	if a.registry != nil {
		if err := a.dumpMetrics(); err != nil {
			return err
		}
	}
	if a.store != nil {
		return core.CloseStore(a.store)
	}
	return nil
}

func (a *app) dumpMetrics() error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(a.stderr, mf); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCommand(a *app) *cobra.Command {
	defaults := config.Default()
	root := &cobra.Command{
		Use:           "formulacore",
		Short:         "Normalize and store constituent and lipid measurements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "YAML configuration file")
	pf.StringVar(&a.flags.logLevel, "log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	pf.BoolVar(&a.flags.logJSON, "log-json", defaults.Log.JSON, "emit logs as JSON")
	pf.StringVar(&a.flags.storage, "storage", defaults.Storage.Driver, "storage driver (memory, sqlite, postgres)")
	pf.StringVar(&a.flags.sqlitePath, "sqlite-path", defaults.Storage.SQLitePath, "sqlite database file")
	pf.StringVar(&a.flags.blobDriver, "blob-driver", defaults.Blob.Driver, "report blob driver (fs, s3, memory)")
	pf.StringVar(&a.flags.blobRoot, "blob-root", defaults.Blob.FSRoot, "report directory for the fs blob driver")
	pf.IntVar(&a.flags.concurrency, "concurrency", defaults.Batch.Concurrency, "entries processed in parallel during ingest")
	pf.BoolVar(&a.flags.metrics, "metrics", false, "write Prometheus metrics to stderr on exit")
	pf.BoolVar(&a.flags.trace, "trace", false, "write operation spans to stderr as JSON lines")

	root.AddCommand(newNormalizeCommand(a), newListCommand(a), newGetCommand(a), newDeleteCommand(a), newIngestCommand(a), newReportsCommand(a))
	return root
}
