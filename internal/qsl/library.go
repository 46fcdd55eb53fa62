package qsl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/samplebench/internal/metric"
)

// ErrProtocolViolation marks a call that breaks the driver/library
// contract: double-load, double-unload, out-of-range index, or an
// accuracy update with no active session. Any such error indicates a
// driver bug and is fatal to the run.
var ErrProtocolViolation = errors.New("qsl: protocol violation")

const defaultLoadConcurrency = 8

// SampleLibrary is the contract between a benchmark driver and a
// dataset provider. The driver loads a working set of samples, queries
// the system under test against resident indices, feeds the responses
// back for scoring, and reads the aggregate accuracy at the end of the
// cycle.
type SampleLibrary interface {
	// Name returns a stable, human-readable identifier for the
	// dataset/model pairing.
	Name() string

	// TotalSampleCount returns the immutable dataset size.
	TotalSampleCount() int

	// PerformanceSampleCount returns how many samples are guaranteed
	// to fit in RAM simultaneously.
	PerformanceSampleCount() int

	// LoadSamplesToRam reads backing data for every requested index
	// and makes it queryable. The driver never loads an index that is
	// already resident.
	LoadSamplesToRam(ctx context.Context, indices []int) error

	// UnloadSamplesFromRam releases the requested indices. The driver
	// never unloads an index that is not resident.
	UnloadSamplesFromRam(indices []int) error

	// Sample returns the resident payload for an index.
	Sample(index int) ([]byte, error)

	// ResetAccuracyMetric starts an accuracy verification cycle,
	// discarding any prior accumulator state.
	ResetAccuracyMetric()

	// UpdateAccuracyMetric folds one response into the active session.
	// The buffer is only read for the duration of the call.
	UpdateAccuracyMetric(index int, response []byte) error

	// GetAccuracyMetric returns the current aggregate value. Pure
	// read; repeated calls without intervening updates return the same
	// value.
	GetAccuracyMetric() float64

	// HumanReadableAccuracyMetric formats a raw metric value for
	// display.
	HumanReadableAccuracyMetric(value float64) string
}

// Source provides backing reads for sample payloads and ground truth.
// Implementations must be safe for concurrent ReadSample calls.
type Source interface {
	ReadSample(ctx context.Context, index int) ([]byte, error)
	Expected(index int) (any, error)
}

// Library implements SampleLibrary over a backing Source and a
// pluggable accuracy metric. Instantiate one per benchmark run.
type Library struct {
	name   string
	source Source
	metric metric.Metric
	total  int
	perf   int

	mu       sync.Mutex
	resident map[int][]byte

	accMu   sync.Mutex
	sum     float64
	updates int
	active  bool
}

var _ SampleLibrary = (*Library)(nil)

// NewLibrary builds a library for a dataset of total samples, of which
// performance are guaranteed to fit in RAM at once.
func NewLibrary(name string, src Source, m metric.Metric, total, performance int) (*Library, error) {
	if src == nil {
		return nil, errors.New("qsl: nil source")
	}
	if m == nil {
		return nil, errors.New("qsl: nil metric")
	}
	if total < 0 {
		return nil, fmt.Errorf("qsl: negative total sample count %d", total)
	}
	if performance < 0 || performance > total {
		return nil, fmt.Errorf("qsl: performance sample count %d out of range [0, %d]", performance, total)
	}

	return &Library{
		name:     name,
		source:   src,
		metric:   m,
		total:    total,
		perf:     performance,
		resident: make(map[int][]byte),
	}, nil
}

func (l *Library) Name() string { return l.name }

func (l *Library) TotalSampleCount() int { return l.total }

func (l *Library) PerformanceSampleCount() int { return l.perf }

func (l *Library) LoadSamplesToRam(ctx context.Context, indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("qsl: nil context")
	}

	l.mu.Lock()
	for _, idx := range indices {
		if idx < 0 || idx >= l.total {
			l.mu.Unlock()
			return fmt.Errorf("%w: load index %d out of range [0, %d)", ErrProtocolViolation, idx, l.total)
		}
		if _, ok := l.resident[idx]; ok {
			l.mu.Unlock()
			return fmt.Errorf("%w: index %d already resident", ErrProtocolViolation, idx)
		}
	}
	if len(l.resident)+len(indices) > l.perf {
		n := len(l.resident)
		l.mu.Unlock()
		return fmt.Errorf("%w: load of %d samples exceeds performance sample count %d (%d resident)",
			ErrProtocolViolation, len(indices), l.perf, n)
	}
	l.mu.Unlock()

	payloads := make([][]byte, len(indices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultLoadConcurrency)
	for i, idx := range indices {
		i, idx := i, idx
		g.Go(func() error {
			data, err := l.source.ReadSample(gctx, idx)
			if err != nil {
				return fmt.Errorf("qsl: load sample %d: %w", idx, err)
			}
			payloads[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	l.mu.Lock()
	for i, idx := range indices {
		l.resident[idx] = payloads[i]
	}
	l.mu.Unlock()
	return nil
}

func (l *Library) UnloadSamplesFromRam(indices []int) error {
	if len(indices) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, idx := range indices {
		if _, ok := l.resident[idx]; !ok {
			return fmt.Errorf("%w: unload of non-resident index %d", ErrProtocolViolation, idx)
		}
	}
	for _, idx := range indices {
		delete(l.resident, idx)
	}
	return nil
}

func (l *Library) Sample(index int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, ok := l.resident[index]
	if !ok {
		return nil, fmt.Errorf("%w: query of non-resident index %d", ErrProtocolViolation, index)
	}
	return data, nil
}

// IsResident reports whether an index is currently loaded.
func (l *Library) IsResident(index int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.resident[index]
	return ok
}

// ResidentCount returns the number of loaded samples.
func (l *Library) ResidentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.resident)
}

func (l *Library) ResetAccuracyMetric() {
	l.accMu.Lock()
	defer l.accMu.Unlock()
	l.sum = 0
	l.updates = 0
	l.active = true
}

// UpdateAccuracyMetric requires an active session: updating before the
// first ResetAccuracyMetric is a protocol violation, not an implicit
// session start.
func (l *Library) UpdateAccuracyMetric(index int, response []byte) error {
	if index < 0 || index >= l.total {
		return fmt.Errorf("%w: update index %d out of range [0, %d)", ErrProtocolViolation, index, l.total)
	}

	l.accMu.Lock()
	active := l.active
	l.accMu.Unlock()
	if !active {
		return fmt.Errorf("%w: accuracy update with no active session", ErrProtocolViolation)
	}

	expected, err := l.source.Expected(index)
	if err != nil {
		return fmt.Errorf("qsl: ground truth for sample %d: %w", index, err)
	}

	score, err := l.metric.Score(response, expected)
	if err != nil {
		return fmt.Errorf("qsl: score sample %d: %w", index, err)
	}

	l.accMu.Lock()
	l.sum += score
	l.updates++
	l.accMu.Unlock()
	return nil
}

func (l *Library) GetAccuracyMetric() float64 {
	l.accMu.Lock()
	defer l.accMu.Unlock()

	if l.updates == 0 {
		return l.metric.EmptyValue()
	}
	return l.sum / float64(l.updates)
}

func (l *Library) HumanReadableAccuracyMetric(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "accuracy n/a"
	}
	return l.metric.Format(value)
}
