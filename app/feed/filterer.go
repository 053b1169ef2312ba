package feed

import (
	"strings"
)

var filterFields = map[string]bool{
	"title":      true,
	"summary":    true,
	"link":       true,
	"authors":    true,
	"categories": true,
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run keeps the entries that pass every filter. Without filters the input is
// returned as is.
func (f *Filterer) Run(entries []Entry, filters []SourceFilter) []Entry {
	if len(filters) == 0 {
		return entries
	}

	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !f.isFiltered(entry, filters) {
			kept = append(kept, entry)
		}
	}

	return kept
}

func (f *Filterer) isFiltered(entry Entry, filters []SourceFilter) bool {
	for _, filter := range filters {
		value := f.getFieldValue(entry, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true
			}
		}
	}

	return false
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(entry Entry, field string) string {
	switch field {
	case "title":
		return entry.Title
	case "summary":
		return entry.Summary
	case "authors":
		return strings.Join(entry.Authors, " ")
	case "link":
		return entry.Link
	case "categories":
		return strings.Join(entry.Categories, " ")
	default:
		return ""
	}
}
