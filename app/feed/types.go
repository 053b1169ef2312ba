package feed

import (
	"time"
)

// Registry types

type Registry struct {
	Title       string                   `yaml:"title"`
	Description string                   `yaml:"description"`
	Sources     []Source                 `yaml:"rss_feeds"`
	Categories  map[string]CategoryLabel `yaml:"categories"`
}

type Source struct {
	Name     string         `yaml:"name"`
	URL      string         `yaml:"url"`
	Category string         `yaml:"category"`
	Timeout  int            `yaml:"timeout"`   // seconds
	MaxItems int            `yaml:"max_items"` // 0 keeps every entry
	Filters  []SourceFilter `yaml:"filters"`
}

type SourceFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

type CategoryLabel struct {
	Title string `yaml:"title"`
	Icon  string `yaml:"icon"`
}

// GetTimeout returns the fetch timeout as time.Duration
func (s Source) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}

// Feed processing types

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

// Entry is an item as exposed by a feed, before normalization.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	Summary     string
	Content     string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
	Authors     []string // "email (name)" or "name"
	Categories  []string
}

// Post is the canonical record for one published item. Posts are values and
// are never modified after the Normalizer builds them.
type Post struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published"`
	Source    string    `json:"source"`
	Category  string    `json:"category"`
	Slug      string    `json:"slug"`
}

// Result is the outcome of processing one source: either its posts (with any
// entries dropped during normalization) or the error that failed the source.
type Result struct {
	Source  string
	Posts   []Post
	Dropped []error
	Err     error
}

func Succeeded(source string, posts []Post, dropped []error) Result {
	return Result{Source: source, Posts: posts, Dropped: dropped}
}

func Failed(source string, err error) Result {
	return Result{Source: source, Err: err}
}

func (r Result) OK() bool {
	return r.Err == nil
}
