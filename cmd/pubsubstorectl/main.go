// Command pubsubstorectl is a small example CLI wired against the
// Provider and Store: it can host an in-memory Store for one or more
// schemas ("serve" mode, useful for local development without a NATS
// server), or issue a single CRUD call against a running Store and
// print the JSON result to stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	runtimeconfig "github.com/GeorgeSapkin/pubsub-store/internal/runtime/config"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/logging"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/metrics"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/model"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/provider"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/schema"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/store"
	"github.com/GeorgeSapkin/pubsub-store/transport"
	"github.com/GeorgeSapkin/pubsub-store/transport/memory"
	"github.com/GeorgeSapkin/pubsub-store/transport/nats"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	cfg        runtimeconfig.Config
	serve      bool

	op         string
	schemaName string
	conditions string
	object     string
	projection string
	id         string
}

func parseFlags(args []string) (options, error) {
	var o options

	flagSet := pflag.NewFlagSet("pubsubstorectl", pflag.ContinueOnError)
	flagSet.StringVar(&o.configPath, "config", "", "path to an optional pubsubstorectl.yaml config file")
	flagSet.StringVar(&o.cfg.NATSURL, "nats-url", "", "NATS server URL; \"memory\" or empty uses the in-process transport")
	flagSet.StringArrayVar(&o.cfg.Schemas, "schema", nil, "schema name to serve (repeatable); also used as the target schema for a single CRUD call")
	flagSet.DurationVar(&o.cfg.RequestTimeout, "timeout", 0, "request timeout for CRUD calls")
	flagSet.IntVar(&o.cfg.BatchSize, "batch-size", 0, "Provider find page size")
	flagSet.BoolVar(&o.cfg.NoAckStream, "no-ack-stream", false, "use fire-and-forget publishes for the Provider's stream writer")
	flagSet.IntVar(&o.cfg.HighWaterMark, "high-water-mark", 0, "buffered object count on the Provider's readable stream")
	flagSet.BoolVar(&o.cfg.MetricsEnabled, "metrics", false, "serve Dispatch Metrics over HTTP")
	flagSet.IntVar(&o.cfg.MetricsPort, "metrics-port", 0, "port for the Prometheus metrics handler, when --metrics is set")
	flagSet.BoolVar(&o.serve, "serve", false, "host an in-memory Store for every --schema instead of issuing one CRUD call")

	flagSet.StringVar(&o.op, "op", "", "CRUD operation to run: count, create, find, update, or delete")
	flagSet.StringVar(&o.conditions, "conditions", "{}", "JSON conditions object")
	flagSet.StringVar(&o.object, "object", "{}", "JSON object payload for create/update")
	flagSet.StringVar(&o.projection, "projection", "", "JSON projection object")
	flagSet.StringVar(&o.id, "id", "", "document id, for operations scoped by _id")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	o.schemaName = lastSchema(o.cfg.Schemas)
	return o, nil
}

func lastSchema(schemas []string) string {
	if len(schemas) == 0 {
		return ""
	}
	return schemas[len(schemas)-1]
}

func run(args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	fileCfg, err := loadFileConfig(o.configPath)
	if err != nil {
		return err
	}
	applyFileConfig(&o, fileCfg.toRuntimeConfig())

	if isRealNATSURL(o.cfg.NATSURL) {
		if err := o.cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	logger := logging.NewSlogServiceLogger(slog.Default())

	var dispatchMetrics *metrics.Dispatch
	if o.cfg.MetricsEnabled {
		dispatchMetrics = metrics.NewDispatch(nil)
		if err := dispatchMetrics.Register(); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		go serveMetrics(o.cfg.MetricsPort, logger)
	}

	tr, closeTransport, err := buildTransport(o.cfg.NATSURL)
	if err != nil {
		return err
	}
	defer closeTransport()

	if o.serve {
		return serve(tr, logger, dispatchMetrics, o.cfg.Schemas)
	}

	if o.schemaName == "" || o.op == "" {
		return fmt.Errorf("--op and --schema are required outside of --serve")
	}

	return runOp(context.Background(), tr, logger, dispatchMetrics, o)
}

func applyFileConfig(o *options, fileCfg runtimeconfig.Config) {
	if o.cfg.NATSURL == "" {
		o.cfg.NATSURL = fileCfg.NATSURL
	}
	if len(o.cfg.Schemas) == 0 {
		o.cfg.Schemas = fileCfg.Schemas
		o.schemaName = lastSchema(o.cfg.Schemas)
	}
	if o.cfg.RequestTimeout == 0 {
		o.cfg.RequestTimeout = fileCfg.RequestTimeout
	}
	if o.cfg.BatchSize == 0 {
		o.cfg.BatchSize = fileCfg.BatchSize
	}
	if !o.cfg.NoAckStream {
		o.cfg.NoAckStream = fileCfg.NoAckStream
	}
	if o.cfg.HighWaterMark == 0 {
		o.cfg.HighWaterMark = fileCfg.HighWaterMark
	}
	if !o.cfg.MetricsEnabled {
		o.cfg.MetricsEnabled = fileCfg.MetricsEnabled
	}
	if o.cfg.MetricsPort == 0 {
		o.cfg.MetricsPort = fileCfg.MetricsPort
	}
}

func isRealNATSURL(natsURL string) bool {
	return natsURL != "" && natsURL != "memory"
}

func buildTransport(natsURL string) (transport.Transport, func(), error) {
	if !isRealNATSURL(natsURL) {
		return memory.New(), func() {}, nil
	}

	tr, err := nats.Connect(natsURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", natsURL, err)
	}
	return tr, tr.Close, nil
}

func serveMetrics(port int, logger logging.ServiceLogger) {
	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening", logging.LogFields{"addr": addr})
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", err, logging.LogFields{"addr": addr})
	}
}

// serve hosts an in-memory Store for every named schema until the
// process is interrupted. It exists so the CLI can stand in for a real
// storage-backed service during local development.
func serve(tr transport.Transport, logger logging.ServiceLogger, dispatchMetrics *metrics.Dispatch, schemas []string) error {
	if len(schemas) == 0 {
		return fmt.Errorf("--serve requires at least one --schema")
	}

	var stores []*store.Store
	for _, name := range schemas {
		st, err := store.New(schema.Schema{Name: name}, tr, model.NewMemoryBuildModel(), store.Options{
			Logger:  logger,
			Metrics: dispatchMetrics,
		})
		if err != nil {
			return fmt.Errorf("building store for %s: %w", name, err)
		}
		if err := st.Open(); err != nil {
			return fmt.Errorf("opening store for %s: %w", name, err)
		}
		stores = append(stores, st)
		logger.Info("store open", logging.LogFields{"schema": name})
	}

	defer func() {
		for _, st := range stores {
			_ = st.Close()
		}
	}()

	select {}
}

func runOp(ctx context.Context, tr transport.Transport, logger logging.ServiceLogger, dispatchMetrics *metrics.Dispatch, o options) error {
	p, err := provider.New(schema.Schema{Name: o.schemaName}, tr, provider.Options{
		Logger:        logger,
		Metrics:       dispatchMetrics,
		Timeout:       o.cfg.RequestTimeoutOrDefault(),
		BatchSize:     o.cfg.BatchSizeOrDefault(),
		NoAckStream:   o.cfg.NoAckStream,
		HighWaterMark: o.cfg.HighWaterMarkOrDefault(),
	})
	if err != nil {
		return err
	}

	conditions, err := decodeJSONObject(o.conditions)
	if err != nil {
		return fmt.Errorf("--conditions: %w", err)
	}
	object, err := decodeJSONObject(o.object)
	if err != nil {
		return fmt.Errorf("--object: %w", err)
	}
	projection, err := decodeJSONObject(o.projection)
	if err != nil {
		return fmt.Errorf("--projection: %w", err)
	}

	var result any
	switch o.op {
	case "count":
		result, err = p.Count(ctx, conditions)
	case "create":
		result, err = p.Create(ctx, object, projection)
	case "find":
		result, err = p.Find(ctx, conditions, projection, provider.FindOptions{})
	case "update":
		if o.id == "" {
			return fmt.Errorf("--id is required for update")
		}
		result, err = p.UpdateById(ctx, o.id, object, projection)
	case "delete":
		if o.id == "" {
			return fmt.Errorf("--id is required for delete")
		}
		result, err = p.DeleteById(ctx, o.id, projection)
	default:
		return fmt.Errorf("unknown --op %q", o.op)
	}
	if err != nil {
		return err
	}

	return printResult(result)
}

func decodeJSONObject(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func printResult(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
