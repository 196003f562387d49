// Metadata extraction: derives the front-matter record from the
// readability heuristic's guesses, document meta tags, and computed
// defaults, in that fixed priority.
package main

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	readability "codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// maxTags caps the front-matter tag list.
const maxTags = 10

// wordsPerMinute is the reading-speed assumption behind readingTime.
const wordsPerMinute = 200

// articleMetadata is the front-matter record for one converted document.
type articleMetadata struct {
	Title       string   `yaml:"title"`
	URL         string   `yaml:"url,omitempty"`
	Domain      string   `yaml:"domain,omitempty"`
	Source      string   `yaml:"source,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Author      string   `yaml:"author,omitempty"`
	Published   string   `yaml:"published,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	WordCount   int      `yaml:"word_count"`
	ReadingTime int      `yaml:"reading_time"`
}

// titleSplitRe splits "Article - Site Name" style titles on dash/pipe
// separators.
var titleSplitRe = regexp.MustCompile(`\s*[-|\x{2013}\x{2014}]\s+`)

// cleanTitle removes common site name suffixes from a document title.
func cleanTitle(title string) string {
	parts := titleSplitRe.Split(title, -1)
	return strings.TrimSpace(parts[0])
}

// firstNonEmpty returns the first candidate that is non-blank after
// trimming.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if v := strings.TrimSpace(c); v != "" {
			return v
		}
	}
	return ""
}

// metaContent returns the content of the first matching meta tag, trying
// the given names in order against both property and name attributes.
func metaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)
		if v := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", "")); v != "" {
			return v
		}
	}
	return ""
}

// extractMetadata builds the front-matter record. Per field, the
// readability guess wins, then the fixed meta-tag list, then a computed
// default.
func extractMetadata(doc *goquery.Document, pageURL *url.URL, article readability.Article) articleMetadata {
	meta := articleMetadata{}

	if pageURL != nil {
		meta.URL = pageURL.String()
		meta.Domain = pageURL.Hostname()
	}

	meta.Title = firstNonEmpty(
		article.Title,
		metaContent(doc, "og:title", "twitter:title"),
		cleanTitle(doc.Find("title").First().Text()),
	)
	if meta.Title == "" {
		meta.Title = "Untitled"
	}

	meta.Author = firstNonEmpty(
		article.Byline,
		metaContent(doc, "author", "article:author"),
	)
	meta.Description = firstNonEmpty(
		article.Excerpt,
		metaContent(doc, "og:description", "description", "twitter:description"),
	)
	meta.Source = firstNonEmpty(
		article.SiteName,
		metaContent(doc, "og:site_name"),
		meta.Domain,
	)

	if article.PublishedTime != nil {
		meta.Published = article.PublishedTime.Format("2006-01-02")
	} else if raw := metaContent(doc, "article:published_time", "date"); raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			meta.Published = t.Format("2006-01-02")
		}
	}

	meta.Tags = extractTags(doc)

	meta.WordCount = len(strings.Fields(article.TextContent))
	if meta.WordCount == 0 {
		meta.WordCount = len(strings.Fields(doc.Find("body").Text()))
	}
	if meta.WordCount > 0 {
		meta.ReadingTime = (meta.WordCount + wordsPerMinute - 1) / wordsPerMinute
	}

	return meta
}

// extractTags unions the comma-split keywords meta tag, article:tag meta
// elements, and visible tag links, deduplicated in encounter order and
// capped at maxTags.
func extractTags(doc *goquery.Document) []string {
	var tags []string
	seen := map[string]bool{}
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			return
		}
		seen[key] = true
		tags = append(tags, tag)
	}

	for _, kw := range strings.Split(metaContent(doc, "keywords"), ",") {
		add(kw)
	}
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("content", ""))
	})
	doc.Find(`a[rel~="tag"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.Text())
	})

	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}
