package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/rss-digest/app/feed"
)

var _ RunnerInterface = (*Runner)(nil)

type Runner struct {
	fetcher     *feed.Fetcher
	filterer    *feed.Filterer
	workerCount int
}

func NewRunner(fetcher *feed.Fetcher, filterer *feed.Filterer, workerCount int) *Runner {
	if workerCount < 1 {
		workerCount = 1
	}

	return &Runner{
		fetcher:     fetcher,
		filterer:    filterer,
		workerCount: workerCount,
	}
}

type slotTask struct {
	slot int
	task TaskInterface
}

// Run processes every source once and merges the results. Rejected
// descriptors are reported first, then sources in registry order; each task
// owns one result slot so completion order has no effect on the corpus.
func (r *Runner) Run(ctx context.Context, sources []feed.Source, rejected []*feed.ConfigurationError) *feed.Corpus {
	runID := uuid.NewString()
	runAt := time.Now().UTC()
	normalizer := feed.NewNormalizer(runAt)

	slog.Info("Run started", "run_id", runID, "sources", len(sources), "rejected", len(rejected), "workers", r.workerCount)

	results := make([]feed.Result, len(rejected)+len(sources))
	for i, configErr := range rejected {
		results[i] = feed.Failed(configErr.Label(), configErr)
	}

	offset := len(rejected)
	taskQueue := make(chan slotTask, len(sources))
	for i, src := range sources {
		taskQueue <- slotTask{
			slot: offset + i,
			task: NewFetchSourceTask(src, r.fetcher, r.filterer, normalizer),
		}
	}
	close(taskQueue)

	var wg sync.WaitGroup
	for i := 0; i < min(r.workerCount, len(sources)); i++ {
		wg.Add(1)
		go r.worker(ctx, &wg, i, taskQueue, results)
	}
	wg.Wait()

	corpus := feed.NewCorpus(runID, runAt, results)

	slog.Info("Run completed",
		"run_id", runID,
		"duration", time.Since(runAt),
		"sources", len(sources),
		"posts", len(corpus.Posts),
		"errors", len(corpus.Errors))

	return corpus
}

func (r *Runner) worker(ctx context.Context, wg *sync.WaitGroup, id int, taskQueue <-chan slotTask, results []feed.Result) {
	defer wg.Done()

	for item := range taskQueue {
		results[item.slot] = r.executeTask(ctx, id, item.task)
	}
}

func (r *Runner) executeTask(ctx context.Context, workerID int, task TaskInterface) feed.Result {
	task.Start()
	slog.Debug("Worker picked task", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "source", task.GetSourceName())
	return task.Execute(ctx)
}
