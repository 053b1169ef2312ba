package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/rss-digest/app/feed"
)

type FetchSourceTask struct {
	Task
	Source     feed.Source
	fetcher    *feed.Fetcher
	filterer   *feed.Filterer
	normalizer *feed.Normalizer
}

func NewFetchSourceTask(source feed.Source, fetcher *feed.Fetcher, filterer *feed.Filterer, normalizer *feed.Normalizer) *FetchSourceTask {
	return &FetchSourceTask{
		Task:       NewTask(TaskTypeFetchSource, source.Name),
		Source:     source,
		fetcher:    fetcher,
		filterer:   filterer,
		normalizer: normalizer,
	}
}

// Execute fetches, filters and normalizes one source. It never panics or
// returns an error of its own: a failure becomes a failed Result.
func (t *FetchSourceTask) Execute(ctx context.Context) feed.Result {
	_, entries, err := t.fetcher.Run(ctx, t.Source)
	if err != nil {
		slog.Warn("Task failed",
			"type", string(t.Type),
			"source", t.SourceName,
			"duration", t.GetDuration(),
			"kind", feed.SourceError{Source: t.SourceName, Err: err}.Kind(),
			"error", err)
		return feed.Failed(t.SourceName, err)
	}

	kept := t.filterer.Run(entries, t.Source.Filters)
	posts, dropped := t.normalizer.Batch(kept, t.Source)

	for _, dropErr := range dropped {
		slog.Debug("Entry dropped", "source", t.SourceName, "error", dropErr)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"total", len(entries),
		"filtered", len(entries)-len(kept),
		"dropped", len(dropped),
		"posts", len(posts))

	return feed.Succeeded(t.SourceName, posts, dropped)
}
