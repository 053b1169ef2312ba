package tasks

import (
	"context"

	"github.com/lysyi3m/rss-digest/app/feed"
)

// RunnerInterface turns a list of sources into a merged corpus.
type RunnerInterface interface {
	Run(ctx context.Context, sources []feed.Source, rejected []*feed.ConfigurationError) *feed.Corpus
}

// PublisherInterface is the sink that receives each finished corpus.
type PublisherInterface interface {
	Run(corpus *feed.Corpus) error
}
