package ingest

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	menuKeywords   = regexp.MustCompile(`(?i)\b(menu|menus|food|dining|eat|carte|dishes|lunch|dinner|breakfast|brunch|supper|snacks|small.plates|tasting|set.menu|prix.fixe|all.day|evening|afternoon|sunday|starters|mains|desserts|a-la-carte)\b`)
	assetExtension = regexp.MustCompile(`(?i)\.(css|js|png|jpg|jpeg|gif|svg|ico|woff2?|ttf|mp4|webp|pdf)(\?.*)?$`)
)

// menuLinks returns up to limit same-host links from a page whose href or
// anchor text looks menu related, in document order. Links are resolved
// against pageURL and compared with home, whose own path is never returned.
// Links already in seen are skipped; returned links are added to it.
func menuLinks(links []Link, pageURL, home *url.URL, seen map[string]bool, limit int) []string {
	var out []string
	for _, l := range links {
		if len(out) >= limit {
			break
		}
		href := l.Href
		if href == "" || strings.HasPrefix(href, "#") || hasScheme(href, "mailto:") ||
			hasScheme(href, "tel:") || hasScheme(href, "javascript:") || assetExtension.MatchString(href) {
			continue
		}
		if !menuKeywords.MatchString(href) && !menuKeywords.MatchString(l.Text) {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		target := pageURL.ResolveReference(ref)
		target.Fragment = ""
		if target.Scheme != "http" && target.Scheme != "https" {
			continue
		}
		if !strings.EqualFold(target.Hostname(), home.Hostname()) || samePath(target, home) {
			continue
		}

		key := target.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

func hasScheme(href, scheme string) bool {
	return len(href) >= len(scheme) && strings.EqualFold(href[:len(scheme)], scheme)
}

func samePath(a, b *url.URL) bool {
	return strings.TrimSuffix(a.Path, "/") == strings.TrimSuffix(b.Path, "/") && a.RawQuery == b.RawQuery
}
