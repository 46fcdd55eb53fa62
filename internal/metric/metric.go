package metric

import (
	"strings"
)

// Metric defines a pluggable accuracy metric. Score grades a single
// response against its ground truth; the library averages scores across
// a session.
type Metric interface {
	Name() string
	Score(response []byte, expected any) (float64, error)
	EmptyValue() float64
	Format(value float64) string
}

// Registry stores metrics by name.
type Registry struct {
	metrics map[string]Metric
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]Metric),
	}
}

// DefaultRegistry returns a registry with the built-in metrics.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ExactMetric{})
	r.Register(NumericMetric{})
	return r
}

// Register adds a metric to the registry.
func (r *Registry) Register(m Metric) {
	if r == nil {
		panic("metric: register on nil registry")
	}
	if m == nil {
		panic("metric: register nil metric")
	}
	name := strings.TrimSpace(m.Name())
	if name == "" {
		panic("metric: metric has empty name")
	}
	if r.metrics == nil {
		r.metrics = make(map[string]Metric)
	}
	r.metrics[name] = m
}

// Get returns a named metric if present.
func (r *Registry) Get(name string) (Metric, bool) {
	if r == nil || r.metrics == nil {
		return nil, false
	}
	m, ok := r.metrics[strings.TrimSpace(name)]
	return m, ok
}

// Names lists registered metric names.
func (r *Registry) Names() []string {
	if r == nil || r.metrics == nil {
		return nil
	}
	out := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		out = append(out, name)
	}
	return out
}
