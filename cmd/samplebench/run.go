package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/samplebench/internal/config"
	"github.com/stellarlinkco/samplebench/internal/dataset"
	"github.com/stellarlinkco/samplebench/internal/driver"
	"github.com/stellarlinkco/samplebench/internal/metric"
	"github.com/stellarlinkco/samplebench/internal/qsl"
	"github.com/stellarlinkco/samplebench/internal/store"
	"github.com/stellarlinkco/samplebench/internal/sut"
)

type runOptions struct {
	dataset     string
	datasetPath string
	metricName  string
	backend     string
	perfCount   int
	concurrency int
	save        bool
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an accuracy verification cycle over a dataset",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccuracy(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "stored dataset name, or 'demo' (overrides config)")
	cmd.Flags().StringVar(&opts.datasetPath, "dataset-path", "", "path to a jsonl dataset file (overrides config)")
	cmd.Flags().StringVar(&opts.metricName, "metric", "", "accuracy metric: exact|numeric (overrides config)")
	cmd.Flags().StringVar(&opts.backend, "sut", "", "system under test: echo|openai|claude (overrides config)")
	cmd.Flags().IntVar(&opts.perfCount, "performance-sample-count", 0, "samples guaranteed to fit in RAM (0 = whole dataset)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "concurrent queries per working set (overrides config)")
	cmd.Flags().BoolVar(&opts.save, "save", true, "persist the run result")

	return cmd
}

func runAccuracy(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if st == nil || st.cfg == nil {
		return errors.New("run: missing config (internal error)")
	}
	if opts == nil {
		return errors.New("run: nil options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sqlStore, err := store.NewSQLiteStore(st.cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer sqlStore.Close()

	source, name, total, err := resolveSource(ctx, st.cfg, opts, sqlStore)
	if err != nil {
		return err
	}

	m, err := resolveMetric(st.cfg, opts.metricName)
	if err != nil {
		return err
	}

	backend, err := resolveBackend(st.cfg, opts.backend)
	if err != nil {
		return err
	}

	perf := opts.perfCount
	if perf <= 0 {
		perf = st.cfg.Library.PerformanceSampleCount
	}
	if perf <= 0 || perf > total {
		perf = total
	}

	lib, err := qsl.NewLibrary(name, source, m, total, perf)
	if err != nil {
		return err
	}

	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = st.cfg.Driver.Concurrency
	}

	d := &driver.Driver{
		Library:     lib,
		Backend:     backend,
		Concurrency: concurrency,
	}
	res, err := d.RunAccuracy(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "dataset=%s sut=%s metric=%s samples=%d failures=%d accuracy=%.4f (%s) time=%s\n",
		res.Library,
		res.Backend,
		m.Name(),
		res.Samples,
		res.Failures,
		res.Accuracy,
		res.Summary,
		res.Duration.Round(time.Millisecond),
	)

	if !opts.save {
		return nil
	}

	run := &store.Run{
		Dataset:  res.Library,
		SUT:      res.Backend,
		Metric:   m.Name(),
		Samples:  res.Samples,
		Failures: res.Failures,
		Accuracy: res.Accuracy,
		Summary:  res.Summary,
		Duration: res.Duration,
	}
	if err := sqlStore.SaveRun(ctx, run); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "saved run id=%d\n", run.ID)
	return nil
}

func resolveSource(ctx context.Context, cfg *config.Config, opts *runOptions, sqlStore *store.SQLiteStore) (qsl.Source, string, int, error) {
	path := strings.TrimSpace(opts.datasetPath)
	if path == "" {
		path = strings.TrimSpace(cfg.Library.DatasetPath)
	}
	if path != "" {
		ds, err := dataset.LoadJSONL(ctx, path, "")
		if err != nil {
			return nil, "", 0, err
		}
		return ds, ds.Name(), ds.Len(), nil
	}

	name := strings.TrimSpace(opts.dataset)
	if name == "" {
		name = strings.TrimSpace(cfg.Library.Dataset)
	}
	if name == "" || name == "demo" {
		ds := dataset.Demo()
		return ds, ds.Name(), ds.Len(), nil
	}

	total, err := sqlStore.SampleCount(ctx, name)
	if err != nil {
		return nil, "", 0, err
	}
	if total == 0 {
		return nil, "", 0, fmt.Errorf("run: dataset %q has no stored samples (import it first)", name)
	}
	src, err := sqlStore.Source(name)
	if err != nil {
		return nil, "", 0, err
	}
	return src, name, total, nil
}

func resolveMetric(cfg *config.Config, override string) (metric.Metric, error) {
	name := strings.TrimSpace(override)
	if name == "" {
		name = strings.TrimSpace(cfg.Library.Metric)
	}
	if name == "" {
		name = "exact"
	}

	m, ok := metric.DefaultRegistry().Get(name)
	if !ok {
		return nil, fmt.Errorf("run: unknown metric %q", name)
	}
	return m, nil
}

func resolveBackend(cfg *config.Config, override string) (sut.Backend, error) {
	name := strings.TrimSpace(override)
	if name == "" {
		name = strings.TrimSpace(cfg.SUT.Backend)
	}

	bc := cfg.SUT.Backends[strings.ToLower(name)]
	return sut.New(name, sut.Config{
		APIKey:  bc.APIKey,
		BaseURL: bc.BaseURL,
		Model:   bc.Model,
	})
}
