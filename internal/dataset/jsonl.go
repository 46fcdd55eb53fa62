package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type jsonlRow struct {
	ID       string `json:"id,omitempty"`
	Input    string `json:"input"`
	Expected any    `json:"expected"`
}

// LoadJSONL reads a dataset from a JSONL file where each line carries
// an input string and its expected label. The dataset name defaults to
// the file's base name without extension.
func LoadJSONL(ctx context.Context, path string, name string) (*Dataset, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("dataset: empty jsonl path")
	}
	if ctx == nil {
		return nil, errors.New("dataset: nil context")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %q: %w", path, err)
	}
	defer f.Close()

	samples, err := decodeJSONLStream(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("dataset: load %q: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset: %q contains no samples", path)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return New(name, samples)
}

func decodeJSONLStream(ctx context.Context, r io.Reader) ([]Sample, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var out []Sample
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var row jsonlRow
		if err := json.Unmarshal(line, &row); err != nil {
			return out, fmt.Errorf("parse jsonl line %d: %w", len(out)+1, err)
		}
		if strings.TrimSpace(row.Input) == "" {
			continue
		}

		out = append(out, Sample{
			Input:    []byte(row.Input),
			Expected: row.Expected,
		})
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, nil
}
