package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/core/ports"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/sources/markup"
)

const (
	adapterName  = "RSS Feeds"
	maxBodyRunes = 5000
	maxFeedBytes = 10 << 20
)

type Options struct {
	HTTPTimeout time.Duration
	MaxEntries  int
	UserAgent   string
}

// Adapter polls syndication feeds resolved from a FeedCatalog on every pass.
type Adapter struct {
	catalog    ports.FeedCatalog
	httpClient *http.Client
	maxEntries int
	userAgent  string
}

func New(catalog ports.FeedCatalog, opts Options) *Adapter {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 50
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = "bd-pipeline/1.0"
	}
	return &Adapter{
		catalog:    catalog,
		httpClient: &http.Client{Timeout: timeout},
		maxEntries: maxEntries,
		userAgent:  userAgent,
	}
}

func (a *Adapter) Name() string                  { return adapterName }
func (a *Adapter) SourceType() domain.SourceType { return domain.SourceRSSRFP }

func (a *Adapter) Scrape(ctx context.Context) ([]domain.RawLead, error) {
	urls := a.catalog.FeedURLs(ctx)
	leads := make([]domain.RawLead, 0, len(urls)*a.maxEntries)
	failed := 0

	for _, feedURL := range urls {
		if err := ctx.Err(); err != nil {
			return leads, fmt.Errorf("feed scrape interrupted: %w", err)
		}

		items, err := a.scrapeFeed(ctx, feedURL)
		if err != nil {
			failed++
			slog.Warn("feed_fetch_failed", "feed_url", feedURL, "error", err)
			continue
		}
		slog.Info("feed_scraped", "feed_url", feedURL, "items", len(items))
		leads = append(leads, items...)
	}

	if len(urls) > 0 && failed == len(urls) {
		return leads, fmt.Errorf("%d of %d feeds failed: %w", failed, len(urls), domain.ErrAllSourcesFailed)
	}
	return leads, nil
}

// scrapeFeed returns an error only for transport failures. A payload that
// does not parse as a feed yields zero items.
func (a *Adapter) scrapeFeed(ctx context.Context, feedURL string) ([]domain.RawLead, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			return nil, fmt.Errorf("feed status: %s", resp.Status)
		}
		return nil, fmt.Errorf("feed status: %s: %s", resp.Status, msg)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		slog.Warn("feed_parse_failed", "feed_url", feedURL, "error", err)
		return nil, nil
	}
	if len(feed.Items) == 0 {
		slog.Info("feed_empty", "feed_url", feedURL)
		return nil, nil
	}

	sourceName := ClassifySource(feedURL)
	sourceType := classifyType(feedURL)

	items := feed.Items
	if len(items) > a.maxEntries {
		items = items[:a.maxEntries]
	}
	out := make([]domain.RawLead, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, toRawLead(item, feedURL, sourceName, sourceType))
	}
	return out, nil
}

func toRawLead(item *gofeed.Item, feedURL, sourceName string, sourceType domain.SourceType) domain.RawLead {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "Untitled"
	}
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = feedURL
	}

	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}
	body = markup.Truncate(markup.Text(body), maxBodyRunes)

	categories := item.Categories
	if categories == nil {
		categories = []string{}
	}

	return domain.RawLead{
		Title:       title,
		RawText:     body,
		SourceURL:   link,
		SourceType:  sourceType,
		SourceName:  sourceName,
		OrgName:     ExtractOrgName(title),
		PublishedAt: publishedAt(item),
		Extra: map[string]any{
			"feed_url":   feedURL,
			"categories": categories,
		},
	}
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		return &t
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if t, ok := parseDate(raw); ok {
			return &t
		}
	}
	return nil
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
