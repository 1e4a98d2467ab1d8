package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sommekat/sommelier/internal/domain/pairing"
	"github.com/sommekat/sommelier/internal/ports/outbound"
	apperrors "github.com/sommekat/sommelier/pkg/errors"
)

const home = "https://example-bistro.com"

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]*outbound.FetchedPage
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]*outbound.FetchedPage)}
}

func (f *fakeFetcher) html(u, body string) {
	f.pages[u] = &outbound.FetchedPage{URL: u, StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, u string) (*outbound.FetchedPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, u)
	page, ok := f.pages[u]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewFetchFailedError(u, 404, nil)
	}
	return page, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingObserver struct {
	outbound.NopObserver
	level1, level2, included int
}

func (o *recordingObserver) CrawlCompleted(level1, level2, included int) {
	o.level1, o.level2, o.included = level1, level2, included
}

func newNormalizer(t *testing.T, f outbound.PageFetcher, limits Limits) *Normalizer {
	return NewNormalizer(f, limits, nil, zaptest.NewLogger(t))
}

func longText(label string) string {
	return strings.Repeat(label+" with seasonal vegetables and a rich jus. ", 5)
}

func TestParseHTML(t *testing.T) {
	body := `<html><head><title>Bistro</title><style>.a{color:red}</style></head>
<body>
<header><h1>Welcome banner</h1></header>
<nav><a href="/menu">Our Menu</a> | <a href="mailto:hi@bistro.test">Email</a></nav>
<script>var dishes = "not text";</script>
<p>Grilled&nbsp;Salmon &amp; Chips&#39;   <b>£18</b></p>
<ul><li>Tarte&#8201;Tatin</li></ul>
<footer>© 2024 <a href="/contact">Contact</a></footer>
</body></html>`

	page := ParseHTML([]byte(body))

	assert.Equal(t, "Bistro Grilled Salmon & Chips' £18 Tarte Tatin", page.Text)
	assert.Equal(t, []Link{
		{Href: "/menu", Text: "Our Menu"},
		{Href: "mailto:hi@bistro.test", Text: "Email"},
		{Href: "/contact", Text: "Contact"},
	}, page.Links)
}

func TestMenuLinks(t *testing.T) {
	homeURL, _ := url.Parse(home + "/")
	links := []Link{
		{Href: "/menu"},
		{Href: "/menu#mains"},
		{Href: "#menu"},
		{Href: "mailto:menu@example-bistro.com"},
		{Href: "tel:+441234"},
		{Href: "/img/menu.jpg"},
		{Href: "/css/menus.css?v=2"},
		{Href: "https://other.test/menu"},
		{Href: "/"},
		{Href: "/about"},
		{Href: "/p/123", Text: "Lunch"},
		{Href: "dinner.html"},
		{Href: "/MENU/drinks"},
	}

	got := menuLinks(links, homeURL, homeURL, map[string]bool{}, 8)

	assert.Equal(t, []string{
		home + "/menu",
		home + "/p/123",
		home + "/dinner.html",
		home + "/MENU/drinks",
	}, got)
}

func TestMenuLinks_RespectsLimitAndSeen(t *testing.T) {
	homeURL, _ := url.Parse(home)
	var links []Link
	for i := 0; i < 20; i++ {
		links = append(links, Link{Href: fmt.Sprintf("/menu-%d", i)})
	}
	seen := map[string]bool{home + "/menu-0": true}

	got := menuLinks(links, homeURL, homeURL, seen, 3)

	assert.Equal(t, []string{home + "/menu-1", home + "/menu-2", home + "/menu-3"}, got)
	assert.True(t, seen[home+"/menu-3"])
}

func TestNormalize_CrawlBound(t *testing.T) {
	f := newFakeFetcher()

	var homepage strings.Builder
	homepage.WriteString("<html><body><h1>Example Bistro</h1>")
	for i := 1; i <= 50; i++ {
		sub := fmt.Sprintf("%s/menu-%d", home, i)
		fmt.Fprintf(&homepage, `<a href="/menu-%d">Menu %d</a>`, i, i)

		var subpage strings.Builder
		fmt.Fprintf(&subpage, "<html><body><p>%s</p>", longText(fmt.Sprintf("Dish %d", i)))
		for j := 1; j <= 20; j++ {
			fmt.Fprintf(&subpage, `<a href="/menu-%d/dinner-%d">Dinner</a>`, i, j)
			f.html(fmt.Sprintf("%s/menu-%d/dinner-%d", home, i, j), "<p>"+longText("Level two")+"</p>")
		}
		f.html(sub, subpage.String())
	}
	homepage.WriteString("</body></html>")
	f.html(home, homepage.String())

	observer := &recordingObserver{}
	n := NewNormalizer(f, DefaultLimits(), observer, zaptest.NewLogger(t))

	parts, err := n.Normalize(context.Background(), pairing.URLSource(home), RoleFood)
	require.NoError(t, err)
	require.Len(t, parts, 1)

	level1, level2 := 0, 0
	for _, c := range f.calls[1:] {
		if strings.Contains(c, "/dinner-") {
			level2++
		} else {
			level1++
		}
	}
	assert.Equal(t, home, f.calls[0])
	assert.LessOrEqual(t, level1, 8)
	assert.LessOrEqual(t, level1+level2, 10)
	assert.Equal(t, 8, level1)
	assert.Equal(t, 2, level2)
	assert.Equal(t, 8, observer.level1)
	assert.Equal(t, 2, observer.level2)
	assert.Equal(t, 10, observer.included)
}

func TestNormalize_MenuWebsiteText(t *testing.T) {
	f := newFakeFetcher()
	f.html(home, `<html><body><p>Grilled Salmon — $28</p><a href="/menu">Menu</a><a href="/about">About</a></body></html>`)
	f.html(home+"/menu", `<html><body><p>`+longText("Grilled Salmon, served with lemon butter — $28")+`</p></body></html>`)

	parts, err := newNormalizer(t, f, DefaultLimits()).Normalize(context.Background(), pairing.URLSource(home), RoleFood)

	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, pairing.ContentText, parts[0].Kind)

	text := parts[0].Text
	assert.True(t, strings.HasPrefix(text, "Restaurant website content:\n\nHomepage (https://example-bistro.com):\nGrilled Salmon — $28 Menu About"))
	assert.Contains(t, text, "\n\n---\n\nMenu page (https://example-bistro.com/menu):\nGrilled Salmon, served with lemon butter")
	assert.Equal(t, []string{home, home + "/menu"}, f.calls)
}

func TestNormalize_ShortAndFailedSubpagesAreLeftOut(t *testing.T) {
	f := newFakeFetcher()
	f.html(home, `<a href="/menu">Menu</a><a href="/lunch">Lunch</a><a href="/dinner">Dinner</a>`)
	f.html(home+"/menu", `<p>Coming soon</p>`)
	f.pages[home+"/lunch"] = &outbound.FetchedPage{URL: home + "/lunch", ContentType: "application/pdf", Body: []byte("%PDF")}

	parts, err := newNormalizer(t, f, DefaultLimits()).Normalize(context.Background(), pairing.URLSource(home), RoleFood)

	require.NoError(t, err)
	assert.NotContains(t, parts[0].Text, "Menu page")
	assert.Equal(t, 4, f.callCount())
}

func TestNormalize_MenuTextLimit(t *testing.T) {
	f := newFakeFetcher()
	f.html(home, "<p>"+strings.Repeat("é", 500)+"</p>")

	parts, err := newNormalizer(t, f, Limits{MenuTextLimit: 100}).Normalize(context.Background(), pairing.URLSource(home), RoleFood)

	require.NoError(t, err)
	body := strings.TrimPrefix(parts[0].Text, websiteHeader)
	assert.Equal(t, 100, len([]rune(body)))
}

func TestNormalize_URLContentTypes(t *testing.T) {
	pdf := []byte("%PDF-1.7 fake menu")
	png := []byte("\x89PNG\r\n\x1a\nfake")

	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantKind    pairing.ContentKind
		wantMime    string
		wantCode    apperrors.ErrorCode
	}{
		{"pdf", "application/pdf", pdf, pairing.ContentDocument, pairing.MimePDF, ""},
		{"png", "image/png", png, pairing.ContentImage, "image/png", ""},
		{"sniffed pdf", "", pdf, pairing.ContentDocument, pairing.MimePDF, ""},
		{"svg", "image/svg+xml", []byte("<svg/>"), "", "", apperrors.CodeUnsupportedContentType},
		{"json", "application/json", []byte("{}"), "", "", apperrors.CodeUnsupportedContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			f.pages[home+"/file"] = &outbound.FetchedPage{URL: home + "/file", StatusCode: 200, ContentType: tt.contentType, Body: tt.body}

			parts, err := newNormalizer(t, f, DefaultLimits()).Normalize(context.Background(), pairing.URLSource(home+"/file"), RoleFood)

			if tt.wantCode != "" {
				assert.True(t, apperrors.Is(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Len(t, parts, 1)
			assert.Equal(t, tt.wantKind, parts[0].Kind)
			assert.Equal(t, tt.wantMime, parts[0].MimeType)
			assert.Equal(t, tt.body, parts[0].Data)
		})
	}
}

func TestNormalize_FetchFailurePropagates(t *testing.T) {
	f := newFakeFetcher()

	_, err := newNormalizer(t, f, DefaultLimits()).Normalize(context.Background(), pairing.URLSource(home+"/gone"), RoleFood)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeFetchFailed))
}

func TestNormalize_RejectsBadSchemeWithoutFetching(t *testing.T) {
	f := newFakeFetcher()

	_, err := newNormalizer(t, f, DefaultLimits()).Normalize(context.Background(), pairing.URLSource("file:///etc/passwd"), RoleFood)

	assert.True(t, apperrors.Is(err, apperrors.CodeInputError))
	assert.Zero(t, f.callCount())
}

func TestNormalize_Recipe(t *testing.T) {
	t.Run("single page, no crawl", func(t *testing.T) {
		f := newFakeFetcher()
		f.html(home+"/recipe", `<h1>Coq au Vin</h1><p>`+longText("Brown the chicken")+`</p><a href="/menu">Menu</a>`)

		parts, err := newNormalizer(t, f, DefaultLimits()).Normalize(context.Background(), pairing.URLSource(home+"/recipe"), RoleRecipe)

		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.True(t, strings.HasPrefix(parts[0].Text, "Recipe page (https://example-bistro.com/recipe):\nCoq au Vin Brown the chicken"))
		assert.Equal(t, 1, f.callCount())
	})

	t.Run("truncated", func(t *testing.T) {
		f := newFakeFetcher()
		f.html(home+"/recipe", "<p>"+strings.Repeat("a", 30000)+"</p>")

		parts, err := newNormalizer(t, f, DefaultLimits()).Normalize(context.Background(), pairing.URLSource(home+"/recipe"), RoleRecipe)

		require.NoError(t, err)
		assert.Equal(t, 25000, strings.Count(parts[0].Text, "a")-strings.Count("Recipe page (https://example-bistro.com/recipe):\n", "a"))
	})

	t.Run("empty extraction", func(t *testing.T) {
		f := newFakeFetcher()
		f.html(home+"/recipe", `<script>render()</script><p>Loading…</p>`)

		_, err := newNormalizer(t, f, DefaultLimits()).Normalize(context.Background(), pairing.URLSource(home+"/recipe"), RoleRecipe)

		assert.True(t, apperrors.Is(err, apperrors.CodeEmptyExtraction))
	})
}

func TestNormalize_Files(t *testing.T) {
	page1 := pairing.File{Name: "p1.jpg", MimeType: "image/jpeg", Data: []byte{0xff, 0xd8, 1}}
	page2 := pairing.File{Name: "p2.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}
	n := newNormalizer(t, newFakeFetcher(), DefaultLimits())

	t.Run("multi-page food menu", func(t *testing.T) {
		parts, err := n.Normalize(context.Background(), pairing.FileSource(page1, page2), RoleFood)

		require.NoError(t, err)
		require.Len(t, parts, 3)
		assert.Equal(t, "The food menu is provided across 2 pages/images:", parts[0].Text)
		assert.Equal(t, pairing.ImagePart("image/jpeg", page1.Data), parts[1])
		assert.Equal(t, pairing.DocumentPart(page2.Data), parts[2])
	})

	t.Run("single food page has no intro", func(t *testing.T) {
		parts, err := n.Normalize(context.Background(), pairing.FileSource(page2), RoleFood)

		require.NoError(t, err)
		assert.Equal(t, []pairing.ContentPart{pairing.DocumentPart(page2.Data)}, parts)
	})

	t.Run("single wine page", func(t *testing.T) {
		parts, err := n.Normalize(context.Background(), pairing.FileSource(page1), RoleWine)

		require.NoError(t, err)
		require.Len(t, parts, 2)
		assert.Equal(t, wineMenuIntro, parts[0].Text)
	})

	t.Run("multi-page wine list", func(t *testing.T) {
		parts, err := n.Normalize(context.Background(), pairing.FileSource(page1, page1, page2), RoleWine)

		require.NoError(t, err)
		assert.Equal(t, "The wine menu is provided across 3 pages/images:", parts[0].Text)
	})

	t.Run("idempotent", func(t *testing.T) {
		first, err := n.Normalize(context.Background(), pairing.FileSource(page1, page2), RoleFood)
		require.NoError(t, err)
		second, err := n.Normalize(context.Background(), pairing.FileSource(page1, page2), RoleFood)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, page2.Data, second[2].Data)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := n.Normalize(context.Background(), pairing.FileSource(pairing.File{Name: "m.txt", MimeType: "text/plain", Data: []byte("x")}), RoleFood)

		assert.True(t, apperrors.Is(err, apperrors.CodeInputError))
	})

	t.Run("no source", func(t *testing.T) {
		_, err := n.Normalize(context.Background(), pairing.Source{}, RoleFood)

		assert.True(t, apperrors.Is(err, apperrors.CodeInputError))
	})
}

func TestNormalize_CancelledCrawl(t *testing.T) {
	f := newFakeFetcher()
	f.html(home, `<a href="/menu">Menu</a>`)
	f.html(home+"/menu", "<p>"+longText("Dish")+"</p>")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newNormalizer(t, f, DefaultLimits()).Normalize(ctx, pairing.URLSource(home), RoleFood)

	assert.ErrorIs(t, err, context.Canceled)
}
