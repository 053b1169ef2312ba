package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
)

const maxFeedSize = 16 << 20

type Fetcher struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
}

func NewFetcher(httpClient *http.Client, parser *Parser, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
	}
}

// Run retrieves and parses one source in a single attempt. Any failure is
// returned as a *FetchError so callers can carry on with other sources.
func (f *Fetcher) Run(ctx context.Context, src Source) (*Metadata, []Entry, error) {
	data, err := f.fetchFeed(ctx, src)
	if err != nil {
		return nil, nil, err
	}

	metadata, entries, err := f.parser.Run(data)
	if err != nil {
		return nil, nil, &FetchError{Source: src.Name, Kind: KindParse, Err: err}
	}

	if src.MaxItems > 0 && len(entries) > src.MaxItems {
		entries = entries[:src.MaxItems]
	}

	resolveLinks(entries, metadata.Link, src.URL)

	return metadata, entries, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, src Source) ([]byte, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, &FetchError{Source: src.Name, Kind: KindConfig, Err: err}
	}

	if u.Scheme == "file" {
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, &FetchError{Source: src.Name, Kind: KindNetwork, Err: fmt.Errorf("failed to read file: %w", err)}
		}
		return data, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, src.GetTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, &FetchError{Source: src.Name, Kind: KindConfig, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Source: src.Name, Kind: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: src.Name, Kind: KindHTTPStatus, Err: fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, &FetchError{Source: src.Name, Kind: classifyTransportError(err), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return data, nil
}

func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindNetwork
}

// resolveLinks makes relative entry links absolute against the feed's own
// link, or the source URL when the feed does not declare a usable one.
func resolveLinks(entries []Entry, feedLink, sourceURL string) {
	base, err := url.Parse(feedLink)
	if err != nil || !base.IsAbs() {
		base, err = url.Parse(sourceURL)
		if err != nil {
			return
		}
	}

	for i := range entries {
		if entries[i].Link == "" {
			continue
		}
		ref, err := url.Parse(entries[i].Link)
		if err != nil || ref.IsAbs() {
			continue
		}
		entries[i].Link = base.ResolveReference(ref).String()
	}
}
