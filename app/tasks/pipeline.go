package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/rss-digest/app/feed"
)

// Pipeline runs the whole ingest: reload the registry, fetch every source,
// merge, publish. It keeps the last corpus for readers such as the API.
type Pipeline struct {
	registry  *feed.RegistryCache
	runner    RunnerInterface
	publisher PublisherInterface

	runMu  sync.Mutex
	mu     sync.RWMutex
	latest *feed.Corpus
}

func NewPipeline(registry *feed.RegistryCache, runner RunnerInterface, publisher PublisherInterface) *Pipeline {
	return &Pipeline{
		registry:  registry,
		runner:    runner,
		publisher: publisher,
	}
}

// Refresh performs one run. Only one run is in flight at a time. An empty
// registry is not an error: it yields an empty corpus. If ctx is cancelled
// before the run finishes, nothing is published and Latest is unchanged.
func (p *Pipeline) Refresh(ctx context.Context) (*feed.Corpus, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	var corpus *feed.Corpus

	err := p.registry.Run()
	switch {
	case errors.Is(err, feed.ErrEmptyRegistry):
		slog.Info("Source registry is empty, nothing to fetch")
		corpus = feed.NewCorpus(uuid.NewString(), time.Now().UTC(), nil)
	case err != nil:
		return nil, fmt.Errorf("failed to load source registry: %w", err)
	default:
		corpus = p.runner.Run(ctx, p.registry.GetSources(), p.registry.GetRejected())
	}

	// A cancelled run has partial results; keep the previous site and corpus.
	if err := ctx.Err(); err != nil {
		slog.Warn("Run cancelled, not publishing", "run_id", corpus.RunID, "error", err)
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	if p.publisher != nil {
		if err := p.publisher.Run(corpus); err != nil {
			return corpus, fmt.Errorf("failed to publish corpus: %w", err)
		}
	}

	p.mu.Lock()
	p.latest = corpus
	p.mu.Unlock()

	return corpus, nil
}

// Latest returns the corpus of the last successful run, or nil before the
// first one.
func (p *Pipeline) Latest() *feed.Corpus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}
