// Content extraction: isolates the main article subtree via readability,
// falling back to the full document body when the heuristic fails or
// over-strips. Failure here is always recovered; it is never surfaced.
package main

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	readability "codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

var (
	lazySrcRe    = regexp.MustCompile(`(<img\b[^>]*?)\bdata-src=`)
	lazySrcsetRe = regexp.MustCompile(`(<img\b[^>]*?)\bdata-srcset=`)
	lazyImgRe    = regexp.MustCompile(`<img\b[^>]*\bdata-src\s*=[^>]*>`)
	// Matches src="data:image/svg+xml;base64,..." placeholders within an img tag.
	svgSrcAttrRe = regexp.MustCompile(`\bsrc\s*=\s*"data:image/svg\+xml;base64,[^"]*"`)
)

// promoteLazySrc rewrites lazy-loading image attributes (data-src,
// data-srcset) to their eager forms before parsing. SVG pixel
// placeholders that would shadow the promoted src are removed first.
func promoteLazySrc(htmlBytes []byte) []byte {
	htmlBytes = lazyImgRe.ReplaceAllFunc(htmlBytes, func(match []byte) []byte {
		return svgSrcAttrRe.ReplaceAll(match, nil)
	})
	htmlBytes = lazySrcRe.ReplaceAll(htmlBytes, []byte("${1}src="))
	htmlBytes = lazySrcsetRe.ReplaceAll(htmlBytes, []byte("${1}srcset="))
	return htmlBytes
}

// extractContent runs the readability heuristic on the document and
// returns the candidate content HTML plus the heuristic's own metadata
// guesses. When readability throws or comes back empty, the full document
// body is used instead. The returned error is non-nil only when the
// document itself cannot be parsed.
func extractContent(htmlBytes []byte, pageURL *url.URL) (string, readability.Article, error) {
	article, err := readability.FromReader(bytes.NewReader(htmlBytes), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		return article.Content, article, nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("readability extraction failed, falling back to document body")
	} else {
		log.Warn().Msg("readability extracted no content, falling back to document body")
	}

	doc, perr := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if perr != nil {
		return "", article, fmt.Errorf("parsing document: %w", perr)
	}
	body, berr := doc.Find("body").Html()
	if berr != nil {
		return "", article, fmt.Errorf("serializing document body: %w", berr)
	}
	return body, article, nil
}
