package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/publish"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

type PipelineInterface interface {
	Latest() *feed.Corpus
	Refresh(ctx context.Context) (*feed.Corpus, error)
}

var _ PipelineInterface = (*tasks.Pipeline)(nil)

type GeneratorInterface interface {
	Run(channel publish.Channel, posts []feed.Post) (string, error)
}

var _ GeneratorInterface = (*publish.Generator)(nil)

type Handler struct {
	pipeline  PipelineInterface
	registry  *feed.RegistryCache
	generator GeneratorInterface
	baseURL   string
	postLimit int
}

type categoryResponse struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
	Posts int    `json:"posts"`
}

type errorResponse struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

type runResponse struct {
	RunID  string    `json:"run_id"`
	RunAt  time.Time `json:"run_at"`
	Posts  int       `json:"posts"`
	Errors int       `json:"errors"`
}

func newRunResponse(corpus *feed.Corpus) runResponse {
	return runResponse{
		RunID:  corpus.RunID,
		RunAt:  corpus.RunAt,
		Posts:  len(corpus.Posts),
		Errors: len(corpus.Errors),
	}
}
