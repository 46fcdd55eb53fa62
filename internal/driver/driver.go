package driver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/samplebench/internal/qsl"
	"github.com/stellarlinkco/samplebench/internal/sut"
)

const defaultConcurrency = 4

// Driver is a reference harness for the sample library contract. It
// walks the dataset in performance-sized working sets: load, query the
// backend against resident indices, fold the responses into the
// accuracy session, drain, unload.
type Driver struct {
	Library     qsl.SampleLibrary
	Backend     sut.Backend
	Concurrency int
}

// Result summarizes one accuracy run.
type Result struct {
	Library   string
	Backend   string
	Samples   int
	Failures  int
	Accuracy  float64
	Summary   string
	Duration  time.Duration
}

// RunAccuracy performs one full accuracy verification cycle over the
// whole dataset. Backend errors on individual samples are counted as
// failures and skipped; library errors are fatal.
func (d *Driver) RunAccuracy(ctx context.Context) (*Result, error) {
	if d == nil {
		return nil, errors.New("driver: nil driver")
	}
	if ctx == nil {
		return nil, errors.New("driver: nil context")
	}
	if d.Library == nil {
		return nil, errors.New("driver: nil library")
	}
	if d.Backend == nil {
		return nil, errors.New("driver: nil backend")
	}

	total := d.Library.TotalSampleCount()
	perf := d.Library.PerformanceSampleCount()
	if total > 0 && perf <= 0 {
		return nil, errors.New("driver: performance sample count is zero")
	}

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	start := time.Now()
	var failures atomic.Int64

	d.Library.ResetAccuracyMetric()

	for lo := 0; lo < total; lo += perf {
		hi := lo + perf
		if hi > total {
			hi = total
		}
		indices := make([]int, 0, hi-lo)
		for i := lo; i < hi; i++ {
			indices = append(indices, i)
		}

		if err := d.Library.LoadSamplesToRam(ctx, indices); err != nil {
			return nil, err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, idx := range indices {
			idx := idx
			g.Go(func() error {
				data, err := d.Library.Sample(idx)
				if err != nil {
					return err
				}

				resp, err := d.Backend.Infer(gctx, data)
				if err != nil {
					if gctx.Err() != nil {
						return err
					}
					failures.Add(1)
					return nil
				}

				return d.Library.UpdateAccuracyMetric(idx, resp)
			})
		}
		// Drain all in-flight updates before unloading the set.
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if err := d.Library.UnloadSamplesFromRam(indices); err != nil {
			return nil, err
		}
	}

	accuracy := d.Library.GetAccuracyMetric()
	return &Result{
		Library:  d.Library.Name(),
		Backend:  d.Backend.Name(),
		Samples:  total,
		Failures: int(failures.Load()),
		Accuracy: accuracy,
		Summary:  d.Library.HumanReadableAccuracyMetric(accuracy),
		Duration: time.Since(start),
	}, nil
}
