package ingest

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skippedElements hold boilerplate rather than menu or recipe content.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Noscript: true,
	atom.Template: true,
}

var whitespace = regexp.MustCompile(`[\s\p{Zs}]+`)

// Link is an anchor found in a page.
type Link struct {
	Href string
	Text string
}

// Page is the extracted view of an HTML document.
type Page struct {
	Text  string
	Links []Link
}

// ParseHTML extracts visible text and anchors in one pass. Text inside
// skipped elements is dropped, but their links are kept since site
// navigation is where menu links usually live. Entities are decoded and
// whitespace is collapsed.
func ParseHTML(body []byte) Page {
	z := html.NewTokenizer(bytes.NewReader(body))

	var (
		text     strings.Builder
		links    []Link
		skip     int
		anchor   *Link
		linkText strings.Builder
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			if anchor != nil {
				anchor.Text = collapse(linkText.String())
				links = append(links, *anchor)
			}
			return Page{Text: collapse(text.String()), Links: links}

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.A {
				if href, ok := attr(tok, "href"); ok {
					if anchor != nil {
						anchor.Text = collapse(linkText.String())
						links = append(links, *anchor)
					}
					anchor = &Link{Href: strings.TrimSpace(href)}
					linkText.Reset()
				}
			}
			if skippedElements[tok.DataAtom] && tok.Type == html.StartTagToken {
				skip++
			}
			if tok.DataAtom == atom.Br || tok.DataAtom == atom.P || tok.DataAtom == atom.Li {
				text.WriteByte(' ')
			}

		case html.EndTagToken:
			tok := z.Token()
			if skippedElements[tok.DataAtom] && skip > 0 {
				skip--
			}
			if tok.DataAtom == atom.A && anchor != nil {
				anchor.Text = collapse(linkText.String())
				links = append(links, *anchor)
				anchor = nil
			}
			text.WriteByte(' ')

		case html.TextToken:
			data := string(z.Text())
			if anchor != nil {
				linkText.WriteString(data)
				linkText.WriteByte(' ')
			}
			if skip == 0 {
				text.WriteString(data)
				text.WriteByte(' ')
			}
		}
	}
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
