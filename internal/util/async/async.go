package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Result is the outcome of a single task.
type Result struct {
	Name string
	Err  error
}

// Run executes tasks concurrently, at most limit at a time (limit <= 0 means
// unbounded), and returns one result per task in the order the tasks were given.
// Tasks that have not started when ctx is cancelled report ctx.Err().
func Run(ctx context.Context, tasks []Task, limit int) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, task := range tasks {
		results[i].Name = task.Name

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].Err = task.Func(ctx)
		}()
	}

	wg.Wait()
	return results
}

// RunParallel executes tasks concurrently and returns all failures joined
// into one error, each prefixed with its task name.
func RunParallel(ctx context.Context, tasks []Task, limit int) error {
	var errs []error
	for _, res := range Run(ctx, tasks, limit) {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	return errors.Join(errs...)
}
