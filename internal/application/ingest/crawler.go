package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sommekat/sommelier/internal/ports/outbound"
)

const (
	websiteHeader    = "Restaurant website content:\n\n"
	sectionSeparator = "\n\n---\n\n"
)

// Crawler follows menu links from a restaurant homepage, two levels deep.
type Crawler struct {
	fetcher  outbound.PageFetcher
	limits   Limits
	observer outbound.PipelineObserver
	logger   *zap.Logger
}

// CrawlResult is the combined website text and the subpages that were fetched.
type CrawlResult struct {
	Text   string
	Level1 []string
	Level2 []string
}

// NewCrawler creates a crawler. A nil observer discards measurements.
func NewCrawler(fetcher outbound.PageFetcher, limits Limits, observer outbound.PipelineObserver, logger *zap.Logger) *Crawler {
	if observer == nil {
		observer = outbound.NopObserver{}
	}
	return &Crawler{
		fetcher:  fetcher,
		limits:   limits.withDefaults(),
		observer: observer,
		logger:   logger.Named("crawler"),
	}
}

// Crawl discovers menu subpages of an already fetched homepage. Level-1
// links are fetched concurrently, then level-2 links found on them. At most
// MaxLevel1 level-1 pages and MaxSubpages pages in total are fetched.
// Failed subpages are skipped; only cancellation of ctx aborts the crawl.
func (c *Crawler) Crawl(ctx context.Context, home *url.URL, homepage Page) (*CrawlResult, error) {
	ctx, span := tracer.Start(ctx, "ingest.Crawl", trace.WithAttributes(attribute.String("url", home.String())))
	defer span.End()

	seen := map[string]bool{home.String(): true}

	level1 := menuLinks(homepage.Links, home, home, seen, c.limits.MaxLevel1)
	pages1, err := c.fetchAll(ctx, level1)
	if err != nil {
		return nil, err
	}

	var level2 []string
	for i, p := range pages1 {
		if p == nil {
			continue
		}
		pageURL, err := url.Parse(level1[i])
		if err != nil {
			continue
		}
		level2 = append(level2, menuLinks(p.Links, pageURL, home, seen, c.limits.MaxLevel1)...)
	}
	budget := c.limits.MaxSubpages - len(level1)
	if budget < 0 {
		budget = 0
	}
	if len(level2) > budget {
		level2 = level2[:budget]
	}

	pages2, err := c.fetchAll(ctx, level2)
	if err != nil {
		return nil, err
	}

	sections := []string{fmt.Sprintf("Homepage (%s):\n%s", home, homepage.Text)}
	included := 0
	add := func(links []string, pages []*Page) {
		for i, p := range pages {
			if p == nil || utf8.RuneCountInString(p.Text) <= c.limits.MinSubpageChars {
				continue
			}
			sections = append(sections, fmt.Sprintf("Menu page (%s):\n%s", links[i], p.Text))
			included++
		}
	}
	add(level1, pages1)
	add(level2, pages2)

	combined := truncateRunes(strings.Join(sections, sectionSeparator), c.limits.MenuTextLimit)

	span.SetAttributes(
		attribute.Int("crawl.level1", len(level1)),
		attribute.Int("crawl.level2", len(level2)),
		attribute.Int("crawl.included", included),
	)
	c.observer.CrawlCompleted(len(level1), len(level2), included)
	c.logger.Info("Crawled restaurant website",
		zap.String("url", home.String()),
		zap.Int("level1", len(level1)),
		zap.Int("level2", len(level2)),
		zap.Int("included", included),
		zap.Int("chars", utf8.RuneCountInString(combined)),
	)

	return &CrawlResult{
		Text:   websiteHeader + combined,
		Level1: level1,
		Level2: level2,
	}, nil
}

// fetchAll fetches pages concurrently, keeping input order. Entries are nil
// for pages that failed or were not HTML.
func (c *Crawler) fetchAll(ctx context.Context, links []string) ([]*Page, error) {
	pages := make([]*Page, len(links))
	if len(links) == 0 {
		return pages, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, link := range links {
		i, link := i, link
		g.Go(func() error {
			page, err := c.fetchPage(gctx, link)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Debug("Skipping subpage", zap.String("url", link), zap.Error(err))
				return nil
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *Crawler) fetchPage(ctx context.Context, link string) (*Page, error) {
	fetched, err := c.fetcher.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	if !isHTML(fetched.ContentType) {
		return nil, fmt.Errorf("not html: %q", fetched.ContentType)
	}
	page := ParseHTML(fetched.Body)
	return &page, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
