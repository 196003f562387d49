// Code-block canonicalization: language detection, code text recovery,
// and fence computation for Markdown output.
package main

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// codeBlockKind records how a code block entered the pipeline.
type codeBlockKind int

const (
	codeInline codeBlockKind = iota
	codeFenced
	codeRecoveredDiagram
)

// codeBlock describes one canonicalized code block. Code text is always
// newline-normalized with non-breaking spaces replaced and trailing blank
// lines stripped.
type codeBlock struct {
	language string
	code     string
	kind     codeBlockKind
}

// codeLanguageAttrs are attributes carrying an explicit language name.
var codeLanguageAttrs = []string{"data-language", "data-lang"}

// languageHint inspects a single element for a language name: an explicit
// data attribute first, then language-* and lang-* class tokens.
func languageHint(n *html.Node) string {
	if n == nil {
		return ""
	}
	for _, key := range codeLanguageAttrs {
		if v := strings.TrimSpace(nodeAttr(n, key)); v != "" {
			return v
		}
	}
	for _, t := range strings.Fields(nodeAttr(n, "class")) {
		if lang, ok := strings.CutPrefix(t, "language-"); ok && lang != "" {
			return lang
		}
	}
	for _, t := range strings.Fields(nodeAttr(n, "class")) {
		if lang, ok := strings.CutPrefix(t, "lang-"); ok && lang != "" {
			return lang
		}
	}
	return ""
}

// detectCodeLanguage resolves the language of a code element, falling back
// to the enclosing block when the code element itself carries no hint.
func detectCodeLanguage(code, enclosing *html.Node) string {
	if lang := languageHint(code); lang != "" {
		return lang
	}
	return languageHint(enclosing)
}

// chooseCodeText extracts code text from a container, preferring
// structure-aware line breaks over the flat text content when the flat
// text has no line breaks but the markup implies them. This recovers
// listings from highlighters that wrap each line in its own element.
func chooseCodeText(n *html.Node) string {
	flat := nodeText(n)
	if strings.Contains(flat, "\n") {
		return flat
	}
	if structured := structuredText(n); strings.Contains(structured, "\n") {
		return structured
	}
	return flat
}

// normalizeCodeText canonicalizes code text: CRLF/CR to LF, non-breaking
// spaces to ordinary spaces, trailing blank lines stripped. Applying it
// twice yields the same bytes.
func normalizeCodeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimRight(s, " \t\n")
}

// longestBacktickRun returns the length of the longest run of consecutive
// backticks in s.
func longestBacktickRun(s string) int {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

// codeFence returns a fence long enough that no backtick run inside the
// code can close it early: max(3, longest run + 1).
func codeFence(code string) string {
	n := longestBacktickRun(code) + 1
	if n < 3 {
		n = 3
	}
	return strings.Repeat("`", n)
}

// canonicalizeCodeBlocks rewrites every block-code container in the
// document to hold exactly one code element with resolved language and
// canonical text, and records each block in the conversion registry.
func (c *conversion) canonicalizeCodeBlocks(doc *goquery.Document) {
	doc.Find("pre").Each(func(_ int, s *goquery.Selection) {
		pre := s.Nodes[0]

		target := firstElement(pre, "code")
		if target == nil {
			target = pre
		}
		lang := detectCodeLanguage(target, pre)
		code := normalizeCodeText(chooseCodeText(target))

		for pre.FirstChild != nil {
			pre.RemoveChild(pre.FirstChild)
		}
		codeEl := newElement("code", atom.Code)
		if lang != "" {
			codeEl.Attr = append(codeEl.Attr, html.Attribute{Key: "class", Val: "language-" + lang})
		}
		codeEl.AppendChild(newText(code))
		pre.AppendChild(codeEl)

		kind := codeFenced
		if nodeAttr(pre, "data-synthesized") != "" {
			kind = codeRecoveredDiagram
		}
		c.codeBlocks = append(c.codeBlocks, codeBlock{language: lang, code: code, kind: kind})
	})
	if len(c.codeBlocks) > 0 {
		log.Debug().Int("blocks", len(c.codeBlocks)).Msg("canonicalized code blocks")
	}
}
