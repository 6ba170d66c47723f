package worker

import (
	"context"
	"time"

	"github.com/Bruce-A-R/High-Energy-Detector-Lab/internal/model"
)

// Analyzer fits every line of one classified spectrum file
type Analyzer interface {
	AnalyzeFile(ctx context.Context, task model.FileTask) (*model.FileOutcome, error)
}

// FitJob represents the fits for one spectrum file
type FitJob struct {
	Index    int
	Task     model.FileTask
	Analyzer Analyzer
}

// Execute executes the fit job
func (j *FitJob) Execute(ctx context.Context) Result {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return &FitResult{Index: j.Index, Task: j.Task, Error: err}
	}

	outcome, err := j.Analyzer.AnalyzeFile(ctx, j.Task)
	return &FitResult{
		Index:    j.Index,
		Task:     j.Task,
		Outcome:  outcome,
		Error:    err,
		Duration: time.Since(start),
	}
}

// FitResult represents the result of a fit job. Error is set when the file
// itself could not be processed; per-line fit failures live in Outcome.
type FitResult struct {
	Index    int
	Task     model.FileTask
	Outcome  *model.FileOutcome
	Error    error
	Duration time.Duration
}

// GetError returns the error from the fit result
func (r *FitResult) GetError() error {
	return r.Error
}

// BatchProcessor fits multiple files concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
	onResult    func(*FitResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// OnResult registers a callback invoked, from the collecting goroutine, as
// each file finishes
func (b *BatchProcessor) OnResult(fn func(*FitResult)) *BatchProcessor {
	b.onResult = fn
	return b
}

// ProcessFiles runs the analyzer over every task and returns the results in
// task order, regardless of completion order. Tasks never started because
// ctx was cancelled carry ctx's error.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, tasks []model.FileTask) []*FitResult {
	if len(tasks) == 0 {
		return []*FitResult{}
	}

	pool := NewPoolContext(ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, task := range tasks {
			job := &FitJob{
				Index:    i,
				Task:     task,
				Analyzer: b.analyzer,
			}
			if !pool.Submit(job) {
				return
			}
		}
	}()

	ordered := make([]*FitResult, len(tasks))
	for result := range pool.Results() {
		fr := result.(*FitResult)
		ordered[fr.Index] = fr
		if b.onResult != nil {
			b.onResult(fr)
		}
	}

	for i, fr := range ordered {
		if fr == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			ordered[i] = &FitResult{Index: i, Task: tasks[i], Error: err}
		}
	}
	return ordered
}
