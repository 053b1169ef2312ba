package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// RegistryCache holds the most recently loaded source registry. Sources that
// fail validation are kept aside as configuration errors rather than failing
// the whole load.
type RegistryCache struct {
	path           string
	defaultTimeout int
	registry       *Registry
	rejected       []*ConfigurationError
	mu             sync.RWMutex
}

func NewRegistryCache(path string, defaultTimeout int) *RegistryCache {
	return &RegistryCache{
		path:           path,
		defaultTimeout: defaultTimeout,
		registry:       &Registry{},
	}
}

// Run (re)loads the registry file. A registry without any source descriptors
// is stored and reported as ErrEmptyRegistry.
func (rc *RegistryCache) Run() error {
	registry, err := rc.parseRegistry()
	if err != nil {
		return err
	}

	declared := len(registry.Sources)
	valid, rejected := rc.validateSources(registry.Sources)
	registry.Sources = valid

	rc.mu.Lock()
	rc.registry = registry
	rc.rejected = rejected
	rc.mu.Unlock()

	for _, configErr := range rejected {
		slog.Warn("Source descriptor skipped", "source", configErr.Label(), "reason", configErr.Reason)
	}

	if declared == 0 {
		return ErrEmptyRegistry
	}

	slog.Debug("Registry loaded", "path", rc.path, "sources", len(valid), "rejected", len(rejected))
	return nil
}

func (rc *RegistryCache) GetRegistry() Registry {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return *rc.registry
}

func (rc *RegistryCache) GetSources() []Source {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	sourcesCopy := make([]Source, len(rc.registry.Sources))
	copy(sourcesCopy, rc.registry.Sources)
	return sourcesCopy
}

func (rc *RegistryCache) GetRejected() []*ConfigurationError {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	rejectedCopy := make([]*ConfigurationError, len(rc.rejected))
	copy(rejectedCopy, rc.rejected)
	return rejectedCopy
}

func (rc *RegistryCache) GetSourceCount() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.registry.Sources)
}

// GetCategoryLabel returns the configured label for a category, defaulting
// the title to the category tag itself.
func (rc *RegistryCache) GetCategoryLabel(category string) CategoryLabel {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	label := rc.registry.Categories[category]
	if label.Title == "" {
		label.Title = category
	}
	return label
}

func (rc *RegistryCache) parseRegistry() (*Registry, error) {
	data, err := os.ReadFile(rc.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range registry.Sources {
		if registry.Sources[i].Timeout == 0 {
			registry.Sources[i].Timeout = rc.defaultTimeout
		}
	}

	return &registry, nil
}

func (rc *RegistryCache) validateSources(sources []Source) ([]Source, []*ConfigurationError) {
	valid := make([]Source, 0, len(sources))
	var rejected []*ConfigurationError
	seen := make(map[string]bool, len(sources))

	for i, src := range sources {
		if reason := rc.validateSource(src); reason != "" {
			rejected = append(rejected, &ConfigurationError{Index: i, Name: src.Name, Reason: reason})
			continue
		}
		if seen[src.Name] {
			rejected = append(rejected, &ConfigurationError{Index: i, Name: src.Name, Reason: "duplicate source name"})
			continue
		}
		seen[src.Name] = true
		valid = append(valid, src)
	}

	return valid, rejected
}

func (rc *RegistryCache) validateSource(src Source) string {
	if src.Name == "" {
		return "source name is required"
	}
	if src.URL == "" {
		return "source URL is required"
	}
	if src.Category == "" {
		return "source category is required"
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return fmt.Sprintf("invalid source URL: %v", err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return "source URL has no host"
		}
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return fmt.Sprintf("source file URL must be absolute, got host %q", u.Host)
		}
		if u.Path == "" {
			return "source file URL has no path"
		}
	default:
		return fmt.Sprintf("unsupported URL scheme %q", u.Scheme)
	}

	if src.Timeout < 0 {
		return "timeout must be non-negative"
	}
	if src.MaxItems < 0 {
		return "max items must be non-negative"
	}

	for i, filter := range src.Filters {
		if !filterFields[filter.Field] {
			return fmt.Sprintf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Sprintf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return ""
}
