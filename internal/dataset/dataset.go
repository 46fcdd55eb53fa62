package dataset

import (
	"context"
	"fmt"
	"strings"
)

// Sample pairs one input payload with its ground-truth label.
type Sample struct {
	Input    []byte
	Expected any
}

// Dataset is an ordered, immutable collection of samples. It satisfies
// the sample library's Source contract; sample indices are positions in
// the collection and never change for the dataset's lifetime.
type Dataset struct {
	name    string
	samples []Sample
}

// New builds a dataset from a slice of samples. The slice is retained;
// callers must not mutate it afterwards.
func New(name string, samples []Sample) (*Dataset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("dataset: empty name")
	}
	return &Dataset{name: name, samples: samples}, nil
}

func (d *Dataset) Name() string { return d.name }

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.samples)
}

func (d *Dataset) ReadSample(ctx context.Context, index int) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("dataset: nil context")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(d.samples) {
		return nil, fmt.Errorf("dataset: sample index %d out of range [0, %d)", index, len(d.samples))
	}
	return d.samples[index].Input, nil
}

func (d *Dataset) Expected(index int) (any, error) {
	if index < 0 || index >= len(d.samples) {
		return nil, fmt.Errorf("dataset: sample index %d out of range [0, %d)", index, len(d.samples))
	}
	return d.samples[index].Expected, nil
}

// Demo returns a small built-in dataset whose expected labels equal the
// inputs, so an echo backend scores perfectly. Used by the CLI when no
// dataset is configured.
func Demo() *Dataset {
	inputs := []string{
		"the quick brown fox",
		"jumps over",
		"the lazy dog",
		"pack my box",
		"with five dozen",
		"liquor jugs",
	}

	samples := make([]Sample, 0, len(inputs))
	for _, in := range inputs {
		samples = append(samples, Sample{
			Input:    []byte(in),
			Expected: in,
		})
	}
	return &Dataset{name: "demo", samples: samples}
}
