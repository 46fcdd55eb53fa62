package store

import (
	"context"
	"testing"
	"time"

	"github.com/stellarlinkco/samplebench/internal/dataset"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore("  "); err == nil {
		t.Fatalf("NewSQLiteStore with empty path: expected error")
	}
}

func TestImportDatasetAndSource(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ds := dataset.Demo()
	if err := st.ImportDataset(ctx, ds); err != nil {
		t.Fatalf("ImportDataset: %v", err)
	}

	n, err := st.SampleCount(ctx, ds.Name())
	if err != nil {
		t.Fatalf("SampleCount: %v", err)
	}
	if n != ds.Len() {
		t.Fatalf("SampleCount: got %d want %d", n, ds.Len())
	}

	src, err := st.Source(ds.Name())
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	for i := 0; i < ds.Len(); i++ {
		want, err := ds.ReadSample(ctx, i)
		if err != nil {
			t.Fatalf("ReadSample(%d): %v", i, err)
		}
		got, err := src.ReadSample(ctx, i)
		if err != nil {
			t.Fatalf("store ReadSample(%d): %v", i, err)
		}
		if string(got) != string(want) {
			t.Fatalf("sample %d payload: got %q want %q", i, got, want)
		}

		expected, err := src.Expected(i)
		if err != nil {
			t.Fatalf("Expected(%d): %v", i, err)
		}
		if expected != string(want) {
			t.Fatalf("sample %d ground truth: got %v want %q", i, expected, want)
		}
	}

	if _, err := src.ReadSample(ctx, ds.Len()); err == nil {
		t.Fatalf("ReadSample past end: expected error")
	}
	if _, err := src.Expected(ds.Len()); err == nil {
		t.Fatalf("Expected past end: expected error")
	}
}

func TestImportDataset_Replaces(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.ImportDataset(ctx, dataset.Demo()); err != nil {
		t.Fatalf("ImportDataset: %v", err)
	}

	small, err := dataset.New("demo", []dataset.Sample{
		{Input: []byte("only one"), Expected: "only one"},
	})
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	if err := st.ImportDataset(ctx, small); err != nil {
		t.Fatalf("ImportDataset replace: %v", err)
	}

	n, err := st.SampleCount(ctx, "demo")
	if err != nil {
		t.Fatalf("SampleCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("SampleCount after replace: got %d want %d", n, 1)
	}
}

func TestListDatasets(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	got, err := st.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListDatasets on empty store: got %v", got)
	}

	if err := st.ImportDataset(ctx, dataset.Demo()); err != nil {
		t.Fatalf("ImportDataset: %v", err)
	}
	got, err = st.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if got["demo"] != dataset.Demo().Len() {
		t.Fatalf("ListDatasets: got %v", got)
	}
}

func TestSaveAndListRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run := &Run{
		Dataset:  "demo",
		SUT:      "echo",
		Metric:   "exact",
		Samples:  6,
		Failures: 0,
		Accuracy: 1.0,
		Summary:  "100.000% accuracy",
		Duration: 1500 * time.Millisecond,
	}
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if run.ID == 0 {
		t.Fatalf("SaveRun did not assign id")
	}
	if run.CreatedAt.IsZero() {
		t.Fatalf("SaveRun did not assign created_at")
	}

	runs, err := st.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns: got %d runs want %d", len(runs), 1)
	}
	if runs[0].Accuracy != 1.0 || runs[0].Dataset != "demo" {
		t.Fatalf("ListRuns: got %+v", runs[0])
	}
	if runs[0].Duration != 1500*time.Millisecond {
		t.Fatalf("ListRuns duration: got %v want %v", runs[0].Duration, 1500*time.Millisecond)
	}

	runs, err = st.ListRuns(ctx, "other", 0)
	if err != nil {
		t.Fatalf("ListRuns filtered: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("ListRuns filtered: got %d runs want 0", len(runs))
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Summary != run.Summary {
		t.Fatalf("GetRun summary: got %q want %q", got.Summary, run.Summary)
	}

	if _, err := st.GetRun(ctx, run.ID+100); err == nil {
		t.Fatalf("GetRun missing id: expected error")
	}
}

func TestSaveRun_Validation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.SaveRun(ctx, nil); err == nil {
		t.Fatalf("SaveRun nil run: expected error")
	}
	if err := st.SaveRun(ctx, &Run{SUT: "echo"}); err == nil {
		t.Fatalf("SaveRun missing dataset: expected error")
	}
}
