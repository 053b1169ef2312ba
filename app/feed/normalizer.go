package feed

import (
	"cmp"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 50

var (
	nonWordPattern    = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}-]`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Normalizer maps raw entries to Posts. It does no I/O; the run time used for
// entries without a publish timestamp is fixed at construction.
type Normalizer struct {
	runTime time.Time
}

func NewNormalizer(runTime time.Time) *Normalizer {
	return &Normalizer{runTime: runTime.UTC()}
}

// Run builds the Post for one entry of src. Entries without a title or an
// absolute link fail with a *NormalizationError.
func (n *Normalizer) Run(entry Entry, src Source) (Post, error) {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return Post{}, &NormalizationError{Source: src.Name, Field: "title", Entry: cmp.Or(entry.GUID, entry.Link)}
	}

	if !isAbsoluteURL(entry.Link) {
		return Post{}, &NormalizationError{Source: src.Name, Field: "link", Entry: title}
	}

	published := n.runTime
	if entry.PublishedAt != nil && !entry.PublishedAt.IsZero() {
		published = entry.PublishedAt.UTC()
	}

	return Post{
		Title:     title,
		Link:      entry.Link,
		Summary:   entry.Summary,
		Published: published,
		Source:    src.Name,
		Category:  src.Category,
		Slug:      Slug(title),
	}, nil
}

// Batch normalizes entries in order, collecting the dropped ones.
func (n *Normalizer) Batch(entries []Entry, src Source) ([]Post, []error) {
	posts := make([]Post, 0, len(entries))
	var dropped []error

	for _, entry := range entries {
		post, err := n.Run(entry, src)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		posts = append(posts, post)
	}

	return posts, dropped
}

// Slug derives a URL and filesystem safe identifier from a title: characters
// other than letters, digits, underscores, whitespace and hyphens are removed,
// whitespace runs become a single hyphen, and the result is cut to 50 runes.
func Slug(title string) string {
	s := norm.NFC.String(title)
	s = nonWordPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = whitespacePattern.ReplaceAllString(s, "-")

	if runes := []rune(s); len(runes) > maxSlugLength {
		s = string(runes[:maxSlugLength])
	}

	return s
}

func isAbsoluteURL(link string) bool {
	u, err := url.Parse(link)
	return err == nil && u.IsAbs() && u.Host != ""
}
