// Command repartition reads a JSON dataset lazily, re-partitions it under a
// job's sizing policy, and writes one file per partition, optionally
// compressed and restricted to a field selection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"lazycol"
	"lazycol/internal/config"
	"lazycol/internal/ctxlog"
	"lazycol/internal/metrics"
	"lazycol/internal/metrics/datadog"
	"lazycol/internal/metrics/prompush"
)

func main() {
	var (
		cfgPath      string
		selectFields string
		validate     bool
	)

	flag.StringVar(&cfgPath, "config", "job.json", "job config JSON path")
	flag.StringVar(&selectFields, "select", "", "comma-separated field paths to keep; empty keeps all")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable debug logs")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	job, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidateJob(job)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fatalf("configuration is invalid: %v", cfgPath)
	}
	if validate {
		logger.Info("configuration is valid", "path", cfgPath)
		return
	}

	setupMetrics(job, logger)
	defer func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics flush failed", "error", err)
		}
	}()

	start := time.Now()
	if err := run(ctx, job, selectFields); err != nil {
		logger.Error("job failed", "name", job.Name, "error", err)
		os.Exit(1)
	}
	logger.Info("job completed", "name", job.Name, "elapsed", time.Since(start).Truncate(time.Millisecond))
}

func run(ctx context.Context, job config.Job, sel string) error {
	opt := lazycol.ReadOptions{
		Blocksize:         job.Partitioning.Blocksize,
		LinesPerPartition: job.Partitioning.LinesPerPartition,
		OneObjPerFile:     job.Input.OneObjPerFile,
		ForceByLines:      job.Sampling.ForceByLines,
		SampleRows:        job.Sampling.SampleRows,
		SampleBytes:       job.Sampling.ByteChunks,
	}
	if job.Partitioning.Delimiter != "" {
		opt.Delimiter = []byte(job.Partitioning.Delimiter)
	}

	var (
		c   *lazycol.Collection
		err error
	)
	if job.Input.Pattern != "" {
		c, err = lazycol.FromJSON(ctx, job.Input.Pattern, opt)
	} else {
		c, err = lazycol.FromJSONPaths(ctx, job.Input.Paths, opt)
	}
	if err != nil {
		return err
	}
	if job.Output.Parallelism > 0 {
		c = c.WithParallelism(job.Output.Parallelism)
	}

	if sel != "" {
		c, err = c.SelectFields(strings.Split(sel, ",")...)
		if err != nil {
			return err
		}
	}

	ctxlog.FromContext(ctx).Info("writing partitions",
		"partitions", c.NPartitions(),
		"dir", job.Output.Dir,
		"compression", job.Output.Compression)

	return c.ToJSON(ctx, job.Output.Dir, lazycol.WriteOptions{
		Compression: job.Output.Compression,
	})
}

// setupMetrics installs the configured backend, leaving the nop backend in
// place on any failure.
func setupMetrics(job config.Job, logger *slog.Logger) {
	jobName := job.Name
	if jobName == "" {
		jobName = "repartition"
	}

	switch job.Metrics.Backend {
	case "prometheus":
		url := job.Metrics.Options.String("push_url", "http://localhost:9091")
		b, err := prompush.NewBackend(jobName, url)
		if err != nil {
			logger.Warn("prometheus backend init failed, metrics disabled", "error", err)
			return
		}
		metrics.SetBackend(b)
		logger.Info("metrics enabled", "backend", "prometheus", "url", url, "job", jobName)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       job.Metrics.Options.String("addr", "localhost:8125"),
			Namespace:  job.Metrics.Options.String("namespace", "lazycol"),
			GlobalTags: job.Metrics.Options.StringSlice("tags"),
		})
		if err != nil {
			logger.Warn("datadog backend init failed, metrics disabled", "error", err)
			return
		}
		metrics.SetBackend(b)
		logger.Info("metrics enabled", "backend", "datadog", "job", jobName)

	case "":
		// metrics disabled; nop backend remains
	default:
		logger.Warn("unknown metrics backend, metrics disabled", "backend", job.Metrics.Backend)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
