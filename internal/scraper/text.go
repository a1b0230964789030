package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	htmlTagPattern    = regexp.MustCompile(`(?i)<\s*(html|body|div|p|span|head|script|section|br|a|h[1-6]|ul|li|meta|title)[\s>/]`)
)

// nonContentSelectors are dropped before body text is collected.
const nonContentSelectors = "script, style, noscript, svg, iframe, template"

// LooksLikeHTML reports whether raw appears to be captured markup rather than
// plain text.
func LooksLikeHTML(raw string) bool {
	return htmlTagPattern.MatchString(raw)
}

// ExtractText turns captured website content into plain text for scoring.
// Markup is parsed with goquery and non-content elements are removed; plain
// text only has its whitespace collapsed.
func ExtractText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if !LooksLikeHTML(raw) {
		return collapseWhitespace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseWhitespace(raw)
	}
	var parts []string
	doc.Find("head title").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	doc.Find(`meta[name="description"], meta[property="og:description"]`).Each(func(i int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
			parts = append(parts, strings.TrimSpace(content))
		}
	})

	doc.Find(nonContentSelectors).Remove()
	body := doc.Find("body")
	body.Find("p, li, h1, h2, h3, h4, h5, h6, td, br, div").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	if text := strings.TrimSpace(body.Text()); text != "" {
		parts = append(parts, text)
	}
	return collapseWhitespace(strings.Join(parts, " "))
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
