package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SampleSource is a per-dataset read view over the samples table,
// satisfying the sample library's Source contract. Reads are safe for
// concurrent use.
type SampleSource struct {
	store   *SQLiteStore
	dataset string
}

// Source returns a read view for the named dataset.
func (s *SQLiteStore) Source(dataset string) (*SampleSource, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil store")
	}
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return nil, errors.New("store: empty dataset name")
	}
	return &SampleSource{store: s, dataset: dataset}, nil
}

func (src *SampleSource) Name() string { return src.dataset }

func (src *SampleSource) ReadSample(ctx context.Context, index int) ([]byte, error) {
	if src == nil || src.store == nil || src.store.readSampleStmt == nil {
		return nil, errors.New("store: nil source")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	var payload []byte
	err := src.store.readSampleStmt.QueryRowContext(ctx, src.dataset, index).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: sample %d not found in dataset %q", index, src.dataset)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read sample %d: %w", index, err)
	}
	return payload, nil
}

func (src *SampleSource) Expected(index int) (any, error) {
	if src == nil || src.store == nil || src.store.readExpectedStmt == nil {
		return nil, errors.New("store: nil source")
	}

	var raw string
	err := src.store.readExpectedStmt.QueryRow(src.dataset, index).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: ground truth for sample %d not found in dataset %q", index, src.dataset)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read ground truth for sample %d: %w", index, err)
	}

	var expected any
	if err := json.Unmarshal([]byte(raw), &expected); err != nil {
		return nil, fmt.Errorf("store: decode ground truth for sample %d: %w", index, err)
	}
	return expected, nil
}
