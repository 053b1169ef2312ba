package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	gofeedParser := gofeed.NewParser()
	gofeedParser.AtomTranslator = &atomTranslator{}

	return &Parser{
		gofeedParser: gofeedParser,
	}
}

// atomTranslator only takes an entry's publish date from <published>. The
// default translator substitutes <updated> when it is missing.
type atomTranslator struct {
	gofeed.DefaultAtomTranslator
}

func (t *atomTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	parsed, err := t.DefaultAtomTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}

	atomFeed, ok := feed.(*atom.Feed)
	if !ok || len(atomFeed.Entries) != len(parsed.Items) {
		return parsed, nil
	}

	for i, entry := range atomFeed.Entries {
		if entry == nil || parsed.Items[i] == nil {
			continue
		}
		if entry.PublishedParsed == nil {
			parsed.Items[i].Published = ""
			parsed.Items[i].PublishedParsed = nil
		}
	}

	return parsed, nil
}

// Run parses RSS, Atom or JSON feed data. Entries keep the order in which the
// feed lists them.
func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.toEntry(item))
	}

	return metadata, entries, nil
}

func (p *Parser) toEntry(item *gofeed.Item) Entry {
	entry := Entry{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       item.Title,
		Link:        strings.TrimSpace(item.Link),
		Summary:     item.Description,
		Content:     item.Content,
		PublishedAt: item.PublishedParsed,
		UpdatedAt:   item.UpdatedParsed,
		Authors:     p.extractAuthors(item),
	}

	if item.Categories != nil {
		entry.Categories = item.Categories
	}

	return entry
}

func (p *Parser) extractAuthors(item *gofeed.Item) []string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				if authorStr := p.formatAuthor(author.Name, author.Email); authorStr != "" {
					authors = append(authors, authorStr)
				}
			}
		}
	} else if item.Author != nil {
		if authorStr := p.formatAuthor(item.Author.Name, item.Author.Email); authorStr != "" {
			authors = append(authors, authorStr)
		}
	}

	return authors
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
