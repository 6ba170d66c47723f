package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// mockAnalyzer implements Analyzer
type mockAnalyzer struct {
	failOn string
	delay  func(task model.FileTask) time.Duration
	calls  int32
}

func (m *mockAnalyzer) AnalyzeFile(ctx context.Context, task model.FileTask) (*model.FileOutcome, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.delay != nil {
		time.Sleep(m.delay(task))
	}
	if task.Path == m.failOn {
		return nil, errors.New("analyze error")
	}
	return &model.FileOutcome{
		Records: []model.CalibrationRecord{{File: task.Path, Isotope: task.Isotope.Label}},
	}, nil
}

func tasks(paths ...string) []model.FileTask {
	out := make([]model.FileTask, len(paths))
	for i, p := range paths {
		out[i] = model.FileTask{Path: p, Isotope: model.Isotope{Label: "Cs"}}
	}
	return out
}

func TestBatchProcessor_ProcessFiles_Ordered(t *testing.T) {
	// later tasks finish first
	analyzer := &mockAnalyzer{delay: func(task model.FileTask) time.Duration {
		switch task.Path {
		case "a.Spe":
			return 30 * time.Millisecond
		case "b.Spe":
			return 15 * time.Millisecond
		}
		return 0
	}}
	processor := NewBatchProcessor(analyzer, 3)

	results := processor.ProcessFiles(context.Background(), tasks("a.Spe", "b.Spe", "c.Spe"))

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"a.Spe", "b.Spe", "c.Spe"} {
		if results[i].Task.Path != want {
			t.Errorf("result %d: expected %s, got %s", i, want, results[i].Task.Path)
		}
		if results[i].Error != nil {
			t.Errorf("unexpected error for %s: %v", want, results[i].Error)
		}
		if results[i].Outcome == nil || len(results[i].Outcome.Records) != 1 {
			t.Errorf("expected one record for %s", want)
		}
	}
}

func TestBatchProcessor_ProcessFiles_ManyTasks(t *testing.T) {
	analyzer := &mockAnalyzer{}
	processor := NewBatchProcessor(analyzer, 2)

	var paths []string
	for i := 0; i < 100; i++ {
		paths = append(paths, "f.Spe")
	}

	var seen int32
	processor.OnResult(func(*FitResult) { atomic.AddInt32(&seen, 1) })
	results := processor.ProcessFiles(context.Background(), tasks(paths...))

	if len(results) != 100 {
		t.Fatalf("expected 100 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d carries index %d", i, r.Index)
		}
	}
	if atomic.LoadInt32(&analyzer.calls) != 100 {
		t.Errorf("expected 100 analyzer calls, got %d", analyzer.calls)
	}
	if atomic.LoadInt32(&seen) != 100 {
		t.Errorf("expected 100 callbacks, got %d", seen)
	}
}

func TestBatchProcessor_ProcessFiles_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockAnalyzer{failOn: "bad.Spe"}, 2)

	results := processor.ProcessFiles(context.Background(), tasks("good.Spe", "bad.Spe"))

	if results[0].Error != nil {
		t.Errorf("unexpected error for good.Spe: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error for bad.Spe")
	}
	if results[1].Outcome != nil {
		t.Error("expected nil outcome on error")
	}
}

func TestBatchProcessor_ProcessFiles_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockAnalyzer{}, 2)

	results := processor.ProcessFiles(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFiles_Cancelled(t *testing.T) {
	analyzer := &mockAnalyzer{}
	processor := NewBatchProcessor(analyzer, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessFiles(ctx, tasks("a.Spe", "b.Spe", "c.Spe"))
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if !errors.Is(r.Error, context.Canceled) {
			t.Errorf("result %d: expected context.Canceled, got %v", i, r.Error)
		}
	}
}

func TestFitResult_GetError(t *testing.T) {
	r1 := &FitResult{Task: model.FileTask{Path: "a.Spe"}}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("fit failed")
	r2 := &FitResult{Task: model.FileTask{Path: "a.Spe"}, Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}
