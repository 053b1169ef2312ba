package feed

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

// Aggregate merges per-source results into one sequence ordered by Published,
// newest first. The sort is stable over the concatenation of successful
// results, so posts with equal timestamps keep their discovery order. Failed
// sources and dropped entries are reported in result order.
func Aggregate(results []Result) ([]Post, []SourceError) {
	total := 0
	for _, r := range results {
		if r.OK() {
			total += len(r.Posts)
		}
	}

	merged := make([]Post, 0, total)
	var errs []SourceError

	for _, r := range results {
		if !r.OK() {
			errs = append(errs, SourceError{Source: r.Source, Err: r.Err})
			continue
		}
		merged = append(merged, r.Posts...)
		for _, err := range r.Dropped {
			errs = append(errs, SourceError{Source: r.Source, Err: err})
		}
	}

	slices.SortStableFunc(merged, func(a, b Post) int {
		return b.Published.Compare(a.Published)
	})

	return merged, errs
}

// Corpus is the output of one pipeline run.
type Corpus struct {
	RunID  string
	RunAt  time.Time
	Posts  []Post
	Errors []SourceError
}

func NewCorpus(runID string, runAt time.Time, results []Result) *Corpus {
	posts, errs := Aggregate(results)
	return &Corpus{
		RunID:  runID,
		RunAt:  runAt,
		Posts:  posts,
		Errors: errs,
	}
}

// Latest returns up to n of the most recent posts; n <= 0 returns all.
func (c *Corpus) Latest(n int) []Post {
	if n <= 0 || n >= len(c.Posts) {
		return c.Posts
	}
	return c.Posts[:n]
}

// Category filters the merged sequence down to one category, keeping order.
func (c *Corpus) Category(name string) []Post {
	return lo.Filter(c.Posts, func(p Post, _ int) bool {
		return p.Category == name
	})
}

// Categories lists the distinct categories in first-seen order.
func (c *Corpus) Categories() []string {
	return lo.Uniq(lo.Map(c.Posts, func(p Post, _ int) string {
		return p.Category
	}))
}

// Sources lists the distinct sources that contributed posts.
func (c *Corpus) Sources() []string {
	return lo.Uniq(lo.Map(c.Posts, func(p Post, _ int) string {
		return p.Source
	}))
}

// Empty reports a run that produced nothing to publish.
func (c *Corpus) Empty() bool {
	return len(c.Posts) == 0
}
