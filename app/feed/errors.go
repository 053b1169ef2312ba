package feed

import (
	"errors"
	"fmt"
)

var ErrEmptyRegistry = errors.New("source registry is empty")

type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindNetwork    ErrorKind = "network"
	KindHTTPStatus ErrorKind = "http_status"
	KindParse      ErrorKind = "parse"
	KindConfig     ErrorKind = "config"
)

// FetchError reports a failure scoped to a single source.
type FetchError struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a FetchError caused by a timeout.
func IsTimeout(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Kind == KindTimeout
}

// NormalizationError reports a raw entry that could not become a Post.
// The entry is dropped; the rest of its source is unaffected.
type NormalizationError struct {
	Source string
	Field  string
	Entry  string // GUID or link, whichever identifies the entry
}

func (e *NormalizationError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("normalize %s: entry missing %s", e.Source, e.Field)
	}
	return fmt.Sprintf("normalize %s: entry %q missing %s", e.Source, e.Entry, e.Field)
}

// ConfigurationError reports a registry descriptor that was skipped.
type ConfigurationError struct {
	Index  int
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("source %s: %s", e.Label(), e.Reason)
}

// Label names the descriptor in reports, falling back to its position.
func (e *ConfigurationError) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("#%d", e.Index)
}

// SourceError is one line of a run's error report.
type SourceError struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (e SourceError) Error() string {
	return e.Err.Error()
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// Kind classifies the reported error for display.
func (e SourceError) Kind() string {
	var fetchErr *FetchError
	var normErr *NormalizationError
	var configErr *ConfigurationError

	switch {
	case errors.As(e.Err, &fetchErr):
		return string(fetchErr.Kind)
	case errors.As(e.Err, &normErr):
		return "normalization"
	case errors.As(e.Err, &configErr):
		return string(KindConfig)
	default:
		return "unknown"
	}
}
