// Package ingest converts uploaded files and remote pages into content parts
// for a completion request.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sommekat/sommelier/internal/domain/pairing"
	"github.com/sommekat/sommelier/internal/ports/outbound"
	apperrors "github.com/sommekat/sommelier/pkg/errors"
)

var tracer = otel.Tracer("github.com/sommekat/sommelier/internal/application/ingest")

// Role says what a source contains, which decides framing and crawling.
type Role string

const (
	RoleFood   Role = "food"
	RoleWine   Role = "wine"
	RoleRecipe Role = "recipe"
)

var roleNouns = map[Role]string{
	RoleFood:   "food menu",
	RoleWine:   "wine menu",
	RoleRecipe: "recipe",
}

const wineMenuIntro = "The following is the restaurant's wine menu:"

// Normalizer turns a Source into ordered content parts.
type Normalizer struct {
	fetcher outbound.PageFetcher
	crawler *Crawler
	limits  Limits
	logger  *zap.Logger
}

// NewNormalizer creates a normalizer backed by fetcher.
func NewNormalizer(fetcher outbound.PageFetcher, limits Limits, observer outbound.PipelineObserver, logger *zap.Logger) *Normalizer {
	limits = limits.withDefaults()
	return &Normalizer{
		fetcher: fetcher,
		crawler: NewCrawler(fetcher, limits, observer, logger),
		limits:  limits,
		logger:  logger.Named("normalizer"),
	}
}

// Normalize converts src into content parts. Files keep their bytes as
// uploaded. URLs are fetched: PDFs and images become a single part, HTML
// becomes text (crawled for menus, single page for recipes).
func (n *Normalizer) Normalize(ctx context.Context, src pairing.Source, role Role) ([]pairing.ContentPart, error) {
	ctx, span := tracer.Start(ctx, "ingest.Normalize", trace.WithAttributes(
		attribute.String("source.role", string(role)),
		attribute.Bool("source.url", src.IsURL()),
		attribute.Int("source.files", len(src.Files)),
	))
	defer span.End()

	switch {
	case src.IsZero():
		return nil, apperrors.NewInputError(pairing.ErrNoSource.Error())
	case src.IsURL():
		part, err := n.fromURL(ctx, src.URL, role)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if role == RoleWine {
			return []pairing.ContentPart{pairing.TextPart(wineMenuIntro), part}, nil
		}
		return []pairing.ContentPart{part}, nil
	default:
		parts, err := n.fromFiles(src.Files)
		if err != nil {
			return nil, err
		}
		return frameFiles(parts, role), nil
	}
}

// frameFiles prepends an introduction so the model reads several uploads as
// one document.
func frameFiles(parts []pairing.ContentPart, role Role) []pairing.ContentPart {
	var intro string
	switch {
	case len(parts) > 1:
		intro = fmt.Sprintf("The %s is provided across %d pages/images:", roleNouns[role], len(parts))
	case role == RoleWine:
		intro = wineMenuIntro
	default:
		return parts
	}
	return append([]pairing.ContentPart{pairing.TextPart(intro)}, parts...)
}

// fromFiles converts files concurrently, preserving order.
func (n *Normalizer) fromFiles(files []pairing.File) ([]pairing.ContentPart, error) {
	parts := make([]pairing.ContentPart, len(files))

	var g errgroup.Group
	g.SetLimit(n.limits.MaxFileConverter)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			part, err := filePart(f)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func filePart(f pairing.File) (pairing.ContentPart, error) {
	kind, ok := f.Kind()
	if !ok {
		return pairing.ContentPart{}, apperrors.NewInputError(
			fmt.Sprintf("%s: %s (%s)", pairing.ErrUnsupportedFileType, f.Name, f.MimeType))
	}
	if kind == pairing.ContentDocument {
		return pairing.DocumentPart(f.Data), nil
	}
	return pairing.ImagePart(pairing.NormalizeMime(f.MimeType), f.Data), nil
}

func (n *Normalizer) fromURL(ctx context.Context, raw string, role Role) (pairing.ContentPart, error) {
	if err := pairing.ValidateURL(raw); err != nil {
		return pairing.ContentPart{}, apperrors.NewInputError(err.Error())
	}

	fetched, err := n.fetcher.Fetch(ctx, raw)
	if err != nil {
		return pairing.ContentPart{}, err
	}

	contentType := pairing.NormalizeMime(fetched.ContentType)
	if contentType == "" {
		contentType = pairing.NormalizeMime(http.DetectContentType(fetched.Body))
	}

	n.logger.Debug("Fetched source",
		zap.String("url", raw),
		zap.String("role", string(role)),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(fetched.Body)),
	)

	switch {
	case contentType == pairing.MimePDF:
		return pairing.DocumentPart(fetched.Body), nil
	case strings.HasPrefix(contentType, "image/"):
		file := pairing.File{Name: raw, MimeType: contentType, Data: fetched.Body}
		if _, ok := file.Kind(); !ok {
			return pairing.ContentPart{}, apperrors.NewUnsupportedContentTypeError(raw, contentType)
		}
		return pairing.ImagePart(contentType, fetched.Body), nil
	case isHTML(contentType):
		return n.fromHTML(ctx, raw, fetched, role)
	default:
		return pairing.ContentPart{}, apperrors.NewUnsupportedContentTypeError(raw, contentType)
	}
}

func (n *Normalizer) fromHTML(ctx context.Context, raw string, fetched *outbound.FetchedPage, role Role) (pairing.ContentPart, error) {
	page := ParseHTML(fetched.Body)

	if role == RoleRecipe {
		text := truncateRunes(page.Text, n.limits.RecipeTextLimit)
		if utf8.RuneCountInString(text) < n.limits.RecipeMinChars {
			return pairing.ContentPart{}, apperrors.NewEmptyExtractionError(raw)
		}
		return pairing.TextPart(fmt.Sprintf("Recipe page (%s):\n%s", raw, text)), nil
	}

	home, err := url.Parse(raw)
	if fetched.URL != "" {
		home, err = url.Parse(fetched.URL)
	}
	if err != nil {
		return pairing.ContentPart{}, apperrors.NewInputError(err.Error())
	}

	result, err := n.crawler.Crawl(ctx, home, page)
	if err != nil {
		return pairing.ContentPart{}, err
	}
	return pairing.TextPart(result.Text), nil
}

func isHTML(contentType string) bool {
	contentType = pairing.NormalizeMime(contentType)
	return contentType == "text/html" || contentType == "application/xhtml+xml"
}
