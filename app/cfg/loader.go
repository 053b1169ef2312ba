package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Pipeline configuration
	SourcesFile string `long:"sources" env:"SOURCES_FILE" default:"./_config.yml" description:"YAML file with the site metadata and rss_feeds registry"`
	OutputDir   string `long:"output-dir" env:"OUTPUT_DIR" default:"." description:"Directory the Jekyll site is written to"`
	WorkerCount int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of sources fetched concurrently"`
	Timeout     int    `long:"timeout" env:"FETCH_TIMEOUT" default:"30" description:"Default per-source fetch timeout in seconds"`
	PostLimit   int    `long:"post-limit" env:"POST_LIMIT" default:"20" description:"Number of most recent posts written to _posts and feed.xml"`
	IndexLimit  int    `long:"index-limit" env:"INDEX_LIMIT" default:"10" description:"Number of posts listed on the home page"`

	// Preview server configuration
	Serve        bool   `long:"serve" env:"SERVE" description:"Keep running and serve the latest corpus over HTTP"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL of the published site (e.g., https://news.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the refresh endpoint (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Digest/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for published dates (e.g., UTC, Asia/Shanghai)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return parse(nil)
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", raw.WorkerCount)
	}
	if raw.Timeout < 1 {
		return nil, fmt.Errorf("timeout must be at least 1 second, got %d", raw.Timeout)
	}

	cfg := &Cfg{
		SourcesFile:  raw.SourcesFile,
		OutputDir:    raw.OutputDir,
		WorkerCount:  raw.WorkerCount,
		Timeout:      raw.Timeout,
		PostLimit:    raw.PostLimit,
		IndexLimit:   raw.IndexLimit,
		Serve:        raw.Serve,
		Port:         raw.Port,
		BaseUrl:      raw.BaseUrl,
		APIAccessKey: raw.APIAccessKey,
		UserAgent:    raw.UserAgent,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
