package qsl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stellarlinkco/samplebench/internal/metric"
)

type testSource struct {
	payloads [][]byte
	expected []any
	readErr  error
}

func (s *testSource) ReadSample(ctx context.Context, index int) ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	if index < 0 || index >= len(s.payloads) {
		return nil, fmt.Errorf("testsource: index %d out of range", index)
	}
	return s.payloads[index], nil
}

func (s *testSource) Expected(index int) (any, error) {
	if index < 0 || index >= len(s.expected) {
		return nil, fmt.Errorf("testsource: index %d out of range", index)
	}
	return s.expected[index], nil
}

func newTestSource(n int) *testSource {
	src := &testSource{
		payloads: make([][]byte, 0, n),
		expected: make([]any, 0, n),
	}
	for i := 0; i < n; i++ {
		src.payloads = append(src.payloads, []byte(fmt.Sprintf("input-%d", i)))
		src.expected = append(src.expected, fmt.Sprintf("label-%d", i))
	}
	return src
}

func newTestLibrary(t *testing.T, total, perf int) *Library {
	t.Helper()

	lib, err := NewLibrary("testlib", newTestSource(total), metric.ExactMetric{}, total, perf)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	return lib
}

func TestNewLibrary_Validation(t *testing.T) {
	src := newTestSource(10)

	if _, err := NewLibrary("x", nil, metric.ExactMetric{}, 10, 5); err == nil {
		t.Fatalf("NewLibrary with nil source: expected error")
	}
	if _, err := NewLibrary("x", src, nil, 10, 5); err == nil {
		t.Fatalf("NewLibrary with nil metric: expected error")
	}
	if _, err := NewLibrary("x", src, metric.ExactMetric{}, -1, 0); err == nil {
		t.Fatalf("NewLibrary with negative total: expected error")
	}
	if _, err := NewLibrary("x", src, metric.ExactMetric{}, 10, 11); err == nil {
		t.Fatalf("NewLibrary with perf > total: expected error")
	}
}

func TestLibrary_Identity(t *testing.T) {
	lib := newTestLibrary(t, 10, 4)

	if got := lib.Name(); got != "testlib" {
		t.Fatalf("Name: got %q want %q", got, "testlib")
	}
	if got := lib.TotalSampleCount(); got != 10 {
		t.Fatalf("TotalSampleCount: got %d want %d", got, 10)
	}
	if got := lib.PerformanceSampleCount(); got != 4 {
		t.Fatalf("PerformanceSampleCount: got %d want %d", got, 4)
	}
}

func TestLoadSamplesToRam(t *testing.T) {
	lib := newTestLibrary(t, 10, 4)
	ctx := context.Background()

	if err := lib.LoadSamplesToRam(ctx, nil); err != nil {
		t.Fatalf("LoadSamplesToRam empty set: %v", err)
	}

	indices := []int{0, 3, 7}
	if err := lib.LoadSamplesToRam(ctx, indices); err != nil {
		t.Fatalf("LoadSamplesToRam: %v", err)
	}
	for _, idx := range indices {
		if !lib.IsResident(idx) {
			t.Fatalf("index %d not resident after load", idx)
		}
	}
	if got := lib.ResidentCount(); got != 3 {
		t.Fatalf("ResidentCount: got %d want %d", got, 3)
	}

	data, err := lib.Sample(3)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got := string(data); got != "input-3" {
		t.Fatalf("Sample payload: got %q want %q", got, "input-3")
	}
}

func TestLoadSamplesToRam_ProtocolViolations(t *testing.T) {
	lib := newTestLibrary(t, 10, 4)
	ctx := context.Background()

	if err := lib.LoadSamplesToRam(ctx, []int{1}); err != nil {
		t.Fatalf("LoadSamplesToRam: %v", err)
	}

	err := lib.LoadSamplesToRam(ctx, []int{1})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("double load: got %v want ErrProtocolViolation", err)
	}

	err = lib.LoadSamplesToRam(ctx, []int{10})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("out-of-range load: got %v want ErrProtocolViolation", err)
	}

	err = lib.LoadSamplesToRam(ctx, []int{2, 3, 4, 5})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("load beyond performance sample count: got %v want ErrProtocolViolation", err)
	}
}

func TestLoadSamplesToRam_BackingReadFailure(t *testing.T) {
	src := newTestSource(4)
	src.readErr = errors.New("disk gone")

	lib, err := NewLibrary("x", src, metric.ExactMetric{}, 4, 4)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}

	if err := lib.LoadSamplesToRam(context.Background(), []int{0, 1}); err == nil {
		t.Fatalf("LoadSamplesToRam with failing source: expected error")
	}
	if lib.ResidentCount() != 0 {
		t.Fatalf("ResidentCount after failed load: got %d want 0", lib.ResidentCount())
	}
}

func TestUnloadSamplesFromRam(t *testing.T) {
	lib := newTestLibrary(t, 10, 4)
	ctx := context.Background()

	if err := lib.LoadSamplesToRam(ctx, []int{0, 1, 2}); err != nil {
		t.Fatalf("LoadSamplesToRam: %v", err)
	}
	if err := lib.UnloadSamplesFromRam([]int{0, 2}); err != nil {
		t.Fatalf("UnloadSamplesFromRam: %v", err)
	}

	if lib.IsResident(0) || lib.IsResident(2) {
		t.Fatalf("unloaded indices still resident")
	}
	if !lib.IsResident(1) {
		t.Fatalf("index 1 should remain resident")
	}

	if _, err := lib.Sample(0); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("Sample after unload: got %v want ErrProtocolViolation", err)
	}

	err := lib.UnloadSamplesFromRam([]int{0})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("double unload: got %v want ErrProtocolViolation", err)
	}

	if err := lib.UnloadSamplesFromRam(nil); err != nil {
		t.Fatalf("UnloadSamplesFromRam empty set: %v", err)
	}
}

func TestUnloadSamplesFromRam_AllOrNothing(t *testing.T) {
	lib := newTestLibrary(t, 10, 4)
	ctx := context.Background()

	if err := lib.LoadSamplesToRam(ctx, []int{0, 1}); err != nil {
		t.Fatalf("LoadSamplesToRam: %v", err)
	}

	// A mixed request with a non-resident index fails without removing
	// the resident ones.
	err := lib.UnloadSamplesFromRam([]int{0, 5})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("mixed unload: got %v want ErrProtocolViolation", err)
	}
	if !lib.IsResident(0) || !lib.IsResident(1) {
		t.Fatalf("mixed unload removed resident indices")
	}
}

func TestUpdateAccuracyMetric_NoSession(t *testing.T) {
	lib := newTestLibrary(t, 10, 4)

	err := lib.UpdateAccuracyMetric(0, []byte("label-0"))
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("update without reset: got %v want ErrProtocolViolation", err)
	}
}

func TestUpdateAccuracyMetric_OutOfRange(t *testing.T) {
	lib := newTestLibrary(t, 10, 4)
	lib.ResetAccuracyMetric()

	err := lib.UpdateAccuracyMetric(10, []byte("x"))
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("out-of-range update: got %v want ErrProtocolViolation", err)
	}
	err = lib.UpdateAccuracyMetric(-1, []byte("x"))
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("negative-index update: got %v want ErrProtocolViolation", err)
	}
}

func TestAccuracySession(t *testing.T) {
	lib := newTestLibrary(t, 4, 4)
	lib.ResetAccuracyMetric()

	if got := lib.GetAccuracyMetric(); got != 0 {
		t.Fatalf("empty session metric: got %v want %v", got, 0.0)
	}

	if err := lib.UpdateAccuracyMetric(0, []byte("label-0")); err != nil {
		t.Fatalf("UpdateAccuracyMetric: %v", err)
	}
	if err := lib.UpdateAccuracyMetric(1, []byte("wrong")); err != nil {
		t.Fatalf("UpdateAccuracyMetric: %v", err)
	}

	got := lib.GetAccuracyMetric()
	if got != 0.5 {
		t.Fatalf("metric after 1/2 correct: got %v want %v", got, 0.5)
	}
	if again := lib.GetAccuracyMetric(); again != got {
		t.Fatalf("GetAccuracyMetric not idempotent: got %v then %v", got, again)
	}

	// Value persists across the session boundary until the next reset.
	if v := lib.GetAccuracyMetric(); v != 0.5 {
		t.Fatalf("metric before reset: got %v want %v", v, 0.5)
	}
	lib.ResetAccuracyMetric()
	if v := lib.GetAccuracyMetric(); v != 0 {
		t.Fatalf("metric after reset: got %v want empty value 0", v)
	}
}

func TestAccuracyOrderIndependence(t *testing.T) {
	responses := map[int][]byte{
		1: []byte("label-1"),
		3: []byte("nope"),
		7: []byte("label-7"),
	}
	perms := [][]int{
		{1, 3, 7},
		{1, 7, 3},
		{3, 1, 7},
		{3, 7, 1},
		{7, 1, 3},
		{7, 3, 1},
	}

	var want float64
	for i, perm := range perms {
		lib := newTestLibrary(t, 10, 10)
		lib.ResetAccuracyMetric()
		for _, idx := range perm {
			if err := lib.UpdateAccuracyMetric(idx, responses[idx]); err != nil {
				t.Fatalf("UpdateAccuracyMetric(%d): %v", idx, err)
			}
		}
		got := lib.GetAccuracyMetric()
		if i == 0 {
			want = got
			continue
		}
		if got != want {
			t.Fatalf("permutation %v: got %v want %v", perm, got, want)
		}
	}
}

func TestConcurrentUpdates(t *testing.T) {
	const total = 200
	lib := newTestLibrary(t, total, total)
	lib.ResetAccuracyMetric()

	var wg sync.WaitGroup
	errs := make(chan error, total)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			resp := []byte(fmt.Sprintf("label-%d", idx))
			if idx%4 == 0 {
				resp = []byte("wrong")
			}
			errs <- lib.UpdateAccuracyMetric(idx, resp)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent UpdateAccuracyMetric: %v", err)
		}
	}

	// 50 of 200 responses are wrong.
	if got := lib.GetAccuracyMetric(); got != 0.75 {
		t.Fatalf("metric after concurrent updates: got %v want %v", got, 0.75)
	}
}

func TestHumanReadableAccuracyMetric(t *testing.T) {
	lib := newTestLibrary(t, 4, 4)

	s1 := lib.HumanReadableAccuracyMetric(0.76234)
	s2 := lib.HumanReadableAccuracyMetric(0.76234)
	if s1 != s2 {
		t.Fatalf("formatting not pure: %q vs %q", s1, s2)
	}
	if !strings.Contains(s1, "76.234") || !strings.Contains(s1, "%") {
		t.Fatalf("formatted metric: got %q", s1)
	}

	if got := lib.HumanReadableAccuracyMetric(math.NaN()); got != "accuracy n/a" {
		t.Fatalf("NaN format: got %q want %q", got, "accuracy n/a")
	}
	if got := lib.HumanReadableAccuracyMetric(math.Inf(1)); got != "accuracy n/a" {
		t.Fatalf("Inf format: got %q want %q", got, "accuracy n/a")
	}
}

func TestFullAccuracyCycle(t *testing.T) {
	const (
		total = 1000
		perf  = 100
	)
	lib := newTestLibrary(t, total, perf)
	ctx := context.Background()

	indices := make([]int, 0, perf)
	for i := 0; i < perf; i++ {
		indices = append(indices, i)
	}
	if err := lib.LoadSamplesToRam(ctx, indices); err != nil {
		t.Fatalf("LoadSamplesToRam: %v", err)
	}

	lib.ResetAccuracyMetric()
	for _, idx := range indices {
		resp := []byte(fmt.Sprintf("label-%d", idx))
		if idx >= 80 {
			resp = []byte("incorrect")
		}
		if err := lib.UpdateAccuracyMetric(idx, resp); err != nil {
			t.Fatalf("UpdateAccuracyMetric(%d): %v", idx, err)
		}
	}

	if got := lib.GetAccuracyMetric(); got != 0.80 {
		t.Fatalf("accuracy: got %v want %v", got, 0.80)
	}
	display := lib.HumanReadableAccuracyMetric(0.80)
	if !strings.Contains(display, "80") || !strings.Contains(display, "%") {
		t.Fatalf("display: got %q", display)
	}

	if err := lib.UnloadSamplesFromRam(indices); err != nil {
		t.Fatalf("UnloadSamplesFromRam: %v", err)
	}
	if got := lib.ResidentCount(); got != 0 {
		t.Fatalf("ResidentCount after unload: got %d want 0", got)
	}

	lib.ResetAccuracyMetric()
	if got := lib.GetAccuracyMetric(); got != 0 {
		t.Fatalf("metric after reset: got %v want empty value 0", got)
	}
}
