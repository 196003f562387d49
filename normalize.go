// HTML normalization: rewrites the extracted content subtree so that code
// blocks and diagrams survive Markdown conversion losslessly.
package main

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// conversion holds the working state of one document conversion. All of it
// is scoped to a single run and discarded afterwards; nothing is shared
// between invocations.
type conversion struct {
	rawHTML string   // raw, unparsed page source (for escaped-fence scanning)
	baseURL *url.URL // page URL, used to resolve relative links

	codeBlocks   []codeBlock  // registry of canonicalized code blocks
	rawDiagrams  []rawDiagram // candidates recovered from the raw source
	rawScanned   bool
	recoveredCnt int
}

// normalizeHTML rewrites the content HTML in three passes: extraction-loss
// guard, diagram recovery, and code-block canonicalization. It operates on
// a freshly parsed clone; the inputs are never mutated.
func (c *conversion) normalizeHTML(contentHTML string, original *goquery.Document) string {
	if original != nil && c.diagramsLost(contentHTML, original) {
		if body, err := original.Find("body").Html(); err == nil && strings.TrimSpace(body) != "" {
			log.Warn().Msg("extraction dropped diagram markup, reverting to full body")
			contentHTML = body
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contentHTML))
	if err != nil {
		log.Warn().Err(err).Msg("content HTML did not parse, skipping normalization")
		return contentHTML
	}

	c.recoverDiagrams(doc)
	c.canonicalizeCodeBlocks(doc)

	body, err := doc.Find("body").Html()
	if err != nil {
		return contentHTML
	}
	return body
}

// diagramsLost reports whether the original document contains a recognized
// diagram graphic that the extracted content HTML lost entirely: neither
// diagram markup nor the diagram-id token survives. Accepting extra page
// noise beats silently losing diagrams.
func (c *conversion) diagramsLost(contentHTML string, original *goquery.Document) bool {
	found := false
	original.Find("svg").Each(func(_ int, s *goquery.Selection) {
		if isDiagramGraphic(s.Nodes[0]) {
			found = true
		}
	})
	if !found {
		return false
	}
	lower := strings.ToLower(contentHTML)
	return !strings.Contains(lower, "<svg") && !strings.Contains(lower, "mermaid")
}

// --- node helpers, shared across normalization and rendering ---

// eachElement calls fn for every element node in the subtree, depth-first.
// fn must not detach the node it receives.
func eachElement(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		eachElement(child, fn)
	}
}

// nodeText concatenates all text nodes in the subtree, preserving their
// original whitespace.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// structuredText is like nodeText but inserts line breaks where the
// rendered layout would have them: at <br> and at the boundaries of
// block-level children. Syntax highlighters and virtualized code viewers
// often put each line in its own element with no text newlines at all.
func structuredText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type != html.ElementNode {
			return
		}
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
		block := isLineBlock(n.Data)
		if block && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return b.String()
}

// isLineBlock returns true for elements that imply a line break in
// rendered code listings.
func isLineBlock(tag string) bool {
	switch tag {
	case "div", "p", "li", "tr", "section":
		return true
	}
	return false
}

// collapseSpace trims the string and folds internal whitespace runs
// (including newlines) into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// nodeAttr returns the value of the named attribute, or "".
func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasClassToken reports whether the node's class attribute contains the
// given token.
func hasClassToken(n *html.Node, token string) bool {
	for _, t := range strings.Fields(nodeAttr(n, "class")) {
		if t == token {
			return true
		}
	}
	return false
}

// firstElement returns the first element with the given tag in the
// subtree (excluding n itself), or nil.
func firstElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := firstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// containsNode reports whether needle is n or a descendant of n.
func containsNode(n, needle *html.Node) bool {
	if needle == nil {
		return false
	}
	if n == needle {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsNode(c, needle) {
			return true
		}
	}
	return false
}

// replaceNode substitutes newNode for old in the tree. No-op when old has
// no parent.
func replaceNode(old, newNode *html.Node) {
	if old.Parent == nil {
		return
	}
	old.Parent.InsertBefore(newNode, old)
	old.Parent.RemoveChild(old)
}

// detachNode removes n from its parent.
func detachNode(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// newElement builds an element node with the given attributes.
func newElement(tag string, a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: a, Attr: attrs}
}

// newText builds a text node.
func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
