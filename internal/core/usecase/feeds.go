package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/bd-pipeline/internal/core/ports"
)

// ConfiguredFeedCatalog reads active feed rows and falls back to a fixed list
// when the table is unreadable or holds no active feeds.
type ConfiguredFeedCatalog struct {
	sources  ports.SourceConfigRepository
	fallback []string
}

func NewConfiguredFeedCatalog(sources ports.SourceConfigRepository, fallback []string) *ConfiguredFeedCatalog {
	return &ConfiguredFeedCatalog{
		sources:  sources,
		fallback: append([]string(nil), fallback...),
	}
}

func (c *ConfiguredFeedCatalog) FeedURLs(ctx context.Context) []string {
	if c.sources == nil {
		return c.fallbackURLs()
	}

	urls, err := c.sources.ListActiveFeedURLs(ctx)
	if err != nil {
		slog.Warn("feed_catalog_read_failed", "error", err, "fallback_count", len(c.fallback))
		return c.fallbackURLs()
	}
	if len(urls) == 0 {
		slog.Info("feed_catalog_empty", "fallback_count", len(c.fallback))
		return c.fallbackURLs()
	}
	return urls
}

func (c *ConfiguredFeedCatalog) fallbackURLs() []string {
	return append([]string(nil), c.fallback...)
}
