package publish

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysyi3m/rss-digest/app/feed"
	"gopkg.in/yaml.v3"
)

const (
	postsDir   = "_posts"
	feedFile   = "feed.xml"
	dateLayout = "2006-01-02"
)

type postFrontMatter struct {
	Layout     string `yaml:"layout"`
	Title      string `yaml:"title"`
	Date       string `yaml:"date"`
	Categories string `yaml:"categories"`
	Source     string `yaml:"source"`
	Link       string `yaml:"link"`
}

type pageFrontMatter struct {
	Layout string `yaml:"layout"`
	Title  string `yaml:"title"`
}

// Jekyll writes a corpus out as a Jekyll site: one markdown file per recent
// post, a home page, one page per category and the merged feed.xml.
type Jekyll struct {
	outputDir  string
	registry   *feed.RegistryCache
	generator  *Generator
	baseURL    string
	postLimit  int
	indexLimit int
}

func NewJekyll(outputDir string, registry *feed.RegistryCache, generator *Generator, baseURL string, postLimit, indexLimit int) *Jekyll {
	return &Jekyll{
		outputDir:  outputDir,
		registry:   registry,
		generator:  generator,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		postLimit:  postLimit,
		indexLimit: indexLimit,
	}
}

// Run publishes the corpus. It does not modify the corpus.
func (j *Jekyll) Run(corpus *feed.Corpus) error {
	start := time.Now()

	if err := os.MkdirAll(filepath.Join(j.outputDir, postsDir), 0755); err != nil {
		return fmt.Errorf("failed to create posts directory: %w", err)
	}

	posts := corpus.Latest(j.postLimit)
	for i, post := range posts {
		if err := j.writePost(post, i); err != nil {
			return err
		}
	}

	categories := corpus.Categories()
	dirs := CategoryDirs(categories)

	if err := j.writeIndex(corpus, dirs); err != nil {
		return err
	}

	for _, category := range categories {
		dir, ok := dirs[category]
		if !ok {
			slog.Warn("Skipping category page, name has no usable characters", "category", category)
			continue
		}
		if err := j.writeCategory(category, dir, corpus.Category(category)); err != nil {
			return err
		}
	}

	if err := j.writeFeed(corpus); err != nil {
		return err
	}

	slog.Info("Site published",
		"dir", j.outputDir,
		"posts", len(posts),
		"categories", len(categories),
		"duration", time.Since(start))

	return nil
}

// PostFilename is the Jekyll file name for the i-th post of a run.
func PostFilename(post feed.Post, i int) string {
	return fmt.Sprintf("%s-%s-%d.md", post.Published.In(time.Local).Format(dateLayout), post.Slug, i)
}

// CategoryDirs assigns each category the directory holding its index page.
// Categories whose slugs collide get a numeric suffix in order of appearance;
// categories that slug to nothing get no directory.
func CategoryDirs(categories []string) map[string]string {
	dirs := make(map[string]string, len(categories))
	taken := make(map[string]bool, len(categories))

	for _, category := range categories {
		base := feed.Slug(category)
		if _, ok := dirs[category]; ok || base == "" {
			continue
		}

		dir := base
		for n := 2; taken[dir]; n++ {
			dir = fmt.Sprintf("%s-%d", base, n)
		}
		taken[dir] = true
		dirs[category] = dir
	}

	return dirs
}

func (j *Jekyll) writePost(post feed.Post, i int) error {
	published := post.Published.In(time.Local)

	var body bytes.Buffer
	fmt.Fprintf(&body, "# %s\n\n", post.Title)
	fmt.Fprintf(&body, "**Source**: %s  \n", post.Source)
	fmt.Fprintf(&body, "**Published**: %s  \n", published.Format("2006-01-02 15:04"))
	fmt.Fprintf(&body, "**Original link**: [%s](%s)\n\n", post.Link, post.Link)
	if post.Summary != "" {
		fmt.Fprintf(&body, "## Summary\n\n%s\n\n", post.Summary)
	}
	fmt.Fprintf(&body, "---\n\n[Read original](%s) | [Back to home](/)\n", post.Link)

	matter := postFrontMatter{
		Layout:     "post",
		Title:      post.Title,
		Date:       published.Format("2006-01-02 15:04:05 -0700"),
		Categories: post.Category,
		Source:     post.Source,
		Link:       post.Link,
	}

	path := filepath.Join(j.outputDir, postsDir, PostFilename(post, i))
	return writePage(path, matter, body.Bytes())
}

func (j *Jekyll) writeIndex(corpus *feed.Corpus, dirs map[string]string) error {
	registry := j.registry.GetRegistry()
	title := j.siteTitle(registry)

	var body bytes.Buffer
	fmt.Fprintf(&body, "# %s\n\n", title)
	if registry.Description != "" {
		fmt.Fprintf(&body, "%s\n\n", registry.Description)
	}
	fmt.Fprintf(&body, "- Total posts: %d\n", len(corpus.Posts))
	fmt.Fprintf(&body, "- Sources: %d\n", len(corpus.Sources()))
	fmt.Fprintf(&body, "- Last updated: %s\n\n", corpus.RunAt.In(time.Local).Format("2006-01-02 15:04"))

	body.WriteString("## Latest posts\n\n")
	latest := corpus.Latest(j.indexLimit)
	if len(latest) == 0 {
		body.WriteString("No posts yet.\n\n")
	}
	for _, post := range latest {
		writeListItem(&body, post)
	}

	body.WriteString("## Categories\n\n")
	for _, category := range corpus.Categories() {
		label := labelText(j.registry.GetCategoryLabel(category))
		count := len(corpus.Category(category))
		if dir, ok := dirs[category]; ok {
			fmt.Fprintf(&body, "- [%s](/%s/) (%d)\n", label, dir, count)
		} else {
			fmt.Fprintf(&body, "- %s (%d)\n", label, count)
		}
	}

	return writePage(filepath.Join(j.outputDir, "index.md"), pageFrontMatter{Layout: "default", Title: title}, body.Bytes())
}

func (j *Jekyll) writeCategory(category, dir string, posts []feed.Post) error {
	if err := os.MkdirAll(filepath.Join(j.outputDir, dir), 0755); err != nil {
		return fmt.Errorf("failed to create category directory %s: %w", dir, err)
	}

	title := labelText(j.registry.GetCategoryLabel(category))

	var body bytes.Buffer
	fmt.Fprintf(&body, "# %s\n\n", title)
	fmt.Fprintf(&body, "%d posts\n\n", len(posts))
	for _, post := range posts {
		writeListItem(&body, post)
	}

	return writePage(filepath.Join(j.outputDir, dir, "index.md"), pageFrontMatter{Layout: "default", Title: title}, body.Bytes())
}

func (j *Jekyll) writeFeed(corpus *feed.Corpus) error {
	registry := j.registry.GetRegistry()

	channel := Channel{
		Title:       j.siteTitle(registry),
		Description: registry.Description,
		BuiltAt:     corpus.RunAt,
	}
	if j.baseURL != "" {
		channel.Link = j.baseURL + "/"
		channel.SelfLink = j.baseURL + "/" + feedFile
	}

	rss, err := j.generator.Run(channel, corpus.Latest(j.postLimit))
	if err != nil {
		return fmt.Errorf("failed to generate feed: %w", err)
	}

	if err := os.WriteFile(filepath.Join(j.outputDir, feedFile), []byte(rss), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", feedFile, err)
	}
	return nil
}

func (j *Jekyll) siteTitle(registry feed.Registry) string {
	if registry.Title != "" {
		return registry.Title
	}
	return "RSS Digest"
}

func writeListItem(buf *bytes.Buffer, post feed.Post) {
	fmt.Fprintf(buf, "- %s [%s] **[%s](%s)**\n",
		post.Published.In(time.Local).Format(dateLayout), post.Source, post.Title, post.Link)
	if excerpt := Excerpt(post.Summary, excerptWidth); excerpt != "" {
		fmt.Fprintf(buf, "  %s\n", excerpt)
	}
	buf.WriteString("\n")
}

func labelText(label feed.CategoryLabel) string {
	if label.Icon == "" {
		return label.Title
	}
	return label.Icon + " " + label.Title
}

func writePage(path string, matter any, body []byte) error {
	header, err := yaml.Marshal(matter)
	if err != nil {
		return fmt.Errorf("failed to encode front matter for %s: %w", path, err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	buf.Write(body)

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
