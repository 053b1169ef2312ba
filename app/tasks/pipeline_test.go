package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lysyi3m/rss-digest/app/feed"
)

type recordingPublisher struct {
	corpora []*feed.Corpus
	err     error
}

func (p *recordingPublisher) Run(corpus *feed.Corpus) error {
	p.corpora = append(p.corpora, corpus)
	return p.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipelineRefresh(t *testing.T) {
	dir := t.TempDir()
	feedPath := writeFile(t, dir, "local.xml", rssFeed(
		rssItem("Local story", "https://example.com/local", "Wed, 03 Jan 2024 00:00:00 GMT"),
	))
	registryPath := writeFile(t, dir, "_config.yml", `title: "Test"
rss_feeds:
  - name: "Local"
    url: "file://`+feedPath+`"
    category: "tech"
  - name: ""
    url: "https://example.com/feed.xml"
    category: "tech"
`)

	publisher := &recordingPublisher{}
	pipeline := NewPipeline(feed.NewRegistryCache(registryPath, 30), newTestRunner(2), publisher)

	if pipeline.Latest() != nil {
		t.Error("Expected no corpus before the first run")
	}

	corpus, err := pipeline.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(corpus.Posts) != 1 || corpus.Posts[0].Title != "Local story" {
		t.Errorf("Unexpected posts: %v", postTitles(corpus.Posts))
	}
	if len(corpus.Errors) != 1 || corpus.Errors[0].Source != "#1" {
		t.Errorf("Expected the unnamed descriptor to be reported, got %v", corpus.Errors)
	}
	if len(publisher.corpora) != 1 || publisher.corpora[0] != corpus {
		t.Error("Expected the corpus to be handed to the publisher")
	}
	if pipeline.Latest() != corpus {
		t.Error("Expected Latest to return the new corpus")
	}
}

func TestPipelineRefreshEmptyRegistry(t *testing.T) {
	registryPath := writeFile(t, t.TempDir(), "_config.yml", "title: \"Empty\"\nrss_feeds: []\n")

	publisher := &recordingPublisher{}
	pipeline := NewPipeline(feed.NewRegistryCache(registryPath, 30), newTestRunner(2), publisher)

	corpus, err := pipeline.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Expected empty registry not to be an error, got: %v", err)
	}
	if !corpus.Empty() || len(corpus.Errors) != 0 {
		t.Errorf("Expected empty corpus and error list, got %d posts, %d errors", len(corpus.Posts), len(corpus.Errors))
	}
	if len(publisher.corpora) != 1 {
		t.Error("Expected the empty corpus to be published")
	}
}

func TestPipelineRefreshMissingRegistry(t *testing.T) {
	pipeline := NewPipeline(feed.NewRegistryCache(filepath.Join(t.TempDir(), "missing.yml"), 30), newTestRunner(1), nil)

	if _, err := pipeline.Refresh(context.Background()); err == nil {
		t.Error("Expected an error for a missing registry file")
	}
	if pipeline.Latest() != nil {
		t.Error("Expected no corpus after a failed run")
	}
}

func TestPipelineRefreshPublishError(t *testing.T) {
	registryPath := writeFile(t, t.TempDir(), "_config.yml", "rss_feeds: []\n")
	publishErr := errors.New("disk full")

	pipeline := NewPipeline(feed.NewRegistryCache(registryPath, 30), newTestRunner(1), &recordingPublisher{err: publishErr})

	corpus, err := pipeline.Refresh(context.Background())
	if !errors.Is(err, publishErr) {
		t.Errorf("Expected publish error, got: %v", err)
	}
	if corpus == nil {
		t.Error("Expected the corpus to be returned alongside the publish error")
	}
	if pipeline.Latest() != nil {
		t.Error("Expected Latest to keep the previous corpus after a publish failure")
	}
}

func TestPipelineRefreshCancelledKeepsPreviousCorpus(t *testing.T) {
	server := feedServer(t, 0, rssFeed(
		rssItem("Remote story", "https://example.com/remote", "Wed, 03 Jan 2024 00:00:00 GMT"),
	))
	registryPath := writeFile(t, t.TempDir(), "_config.yml", `rss_feeds:
  - name: "Remote"
    url: "`+server.URL+`"
    category: "tech"
`)

	publisher := &recordingPublisher{}
	pipeline := NewPipeline(feed.NewRegistryCache(registryPath, 30), newTestRunner(1), publisher)

	good, err := pipeline.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	corpus, err := pipeline.Refresh(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
	if corpus != nil {
		t.Error("Expected no corpus from a cancelled run")
	}
	if len(publisher.corpora) != 1 {
		t.Errorf("Expected only the first run to be published, got %d publishes", len(publisher.corpora))
	}
	if pipeline.Latest() != good {
		t.Error("Expected Latest to keep the corpus of the last completed run")
	}
}
