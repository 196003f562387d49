// Diagram recovery: finds the text source behind rendered diagram
// graphics (mermaid SVGs) so they survive conversion as fenced blocks.
// A recognized graphic is never dropped silently — it becomes a recovered
// code block, an embedded image, or an explicit placeholder.
package main

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/vincent-petithory/dataurl"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// diagramKind is the coarse diagram subtype inferred from class or
// accessibility-role tokens, used to pair graphics with raw candidates.
type diagramKind int

const (
	diagramUnknown diagramKind = iota
	diagramState
	diagramSequence
	diagramFlow
)

// rawDiagram is a diagram source recovered from the raw page text.
type rawDiagram struct {
	source string
	kind   diagramKind
	used   bool
}

// diagramRoles are aria-roledescription tokens that mark a diagram SVG.
var diagramRoles = []string{
	"flowchart", "sequence", "state", "class", "er", "gantt", "pie", "journey", "graph",
}

// isDiagramGraphic reports whether the node is a rendered diagram graphic,
// identified by the id-prefix, class-token, and accessibility-role
// conventions of diagram tooling.
func isDiagramGraphic(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.Data != "svg" {
		return false
	}
	if strings.HasPrefix(nodeAttr(n, "id"), "mermaid") {
		return true
	}
	if hasClassToken(n, "mermaid") {
		return true
	}
	if role := strings.ToLower(nodeAttr(n, "aria-roledescription")); role != "" {
		for _, k := range diagramRoles {
			if strings.Contains(role, k) {
				return true
			}
		}
	}
	if p := n.Parent; p != nil && p.Type == html.ElementNode && hasClassToken(p, "mermaid") {
		return true
	}
	return false
}

// diagramKindOf infers the diagram subtype from the graphic's class, id,
// and accessibility-role tokens.
func diagramKindOf(n *html.Node) diagramKind {
	tokens := strings.ToLower(nodeAttr(n, "class") + " " + nodeAttr(n, "id") + " " +
		nodeAttr(n, "aria-roledescription"))
	switch {
	case strings.Contains(tokens, "state"):
		return diagramState
	case strings.Contains(tokens, "sequence"):
		return diagramSequence
	case strings.Contains(tokens, "flow"), strings.Contains(tokens, "graph"):
		return diagramFlow
	}
	return diagramUnknown
}

// kindOfSource classifies a diagram source by the leading keyword of its
// first non-blank line.
func kindOfSource(source string) diagramKind {
	for _, line := range strings.Split(source, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		head := strings.ToLower(fields[0])
		switch {
		case strings.HasPrefix(head, "statediagram"):
			return diagramState
		case strings.HasPrefix(head, "sequencediagram"):
			return diagramSequence
		case strings.HasPrefix(head, "flowchart"), head == "graph":
			return diagramFlow
		}
		return diagramUnknown
	}
	return diagramUnknown
}

// diagramSourceAttrs are data attributes known to carry diagram source.
var diagramSourceAttrs = []string{"data-mermaid", "data-diagram-source", "data-graph-definition"}

// diagramSourceFromAttrs looks for diagram source in known data
// attributes on the node or one of its element ancestors.
func diagramSourceFromAttrs(n *html.Node) (string, bool) {
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		for _, key := range diagramSourceAttrs {
			if v := strings.TrimSpace(nodeAttr(cur, key)); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// isDiagramSourceContainer reports whether the element is explicitly
// tagged as holding diagram source text. Containers this tool synthesized
// earlier are excluded so recovered output is never re-consumed.
func isDiagramSourceContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if nodeAttr(n, "data-synthesized") != "" {
		return false
	}
	if n.Data == "script" {
		t := nodeAttr(n, "type")
		return t == "text/x-mermaid" || t == "text/mermaid"
	}
	switch n.Data {
	case "pre", "div", "code", "textarea":
		return hasClassToken(n, "mermaid") || hasClassToken(n, "mermaid-source") ||
			hasClassToken(n, "language-mermaid")
	}
	return false
}

// diagramSourceFromNeighbors scans sibling and ancestor-sibling text
// containers for diagram source. Returns the source, the container it
// came from (so the caller can remove it), and whether anything was found.
func diagramSourceFromNeighbors(n *html.Node) (string, *html.Node, bool) {
	cur := n
	for depth := 0; depth < 4 && cur != nil && cur.Parent != nil; depth++ {
		for sib := cur.Parent.FirstChild; sib != nil; sib = sib.NextSibling {
			if sib == cur || !isDiagramSourceContainer(sib) {
				continue
			}
			if src := strings.TrimSpace(nodeText(sib)); src != "" {
				return src, sib, true
			}
		}
		cur = cur.Parent
		if cur.Type != html.ElementNode {
			break
		}
	}
	return "", nil, false
}

// rawFenceRe matches fenced mermaid blocks whose payload uses
// backslash-escaped newlines, as produced by server-embedded string
// literals in the raw page source.
var rawFenceRe = regexp.MustCompile("(?s)```mermaid\\\\n(.*?)```")

// scanRawDiagramSources scans the raw, unparsed HTML for escaped fenced
// diagram blocks and decodes their payloads. This is inherently
// best-effort: only the \n \r \t \" \\ \uXXXX escape set is decoded, and
// other escaping conventions fall through to the image fallback.
func scanRawDiagramSources(raw string) []rawDiagram {
	var out []rawDiagram
	for _, m := range rawFenceRe.FindAllStringSubmatch(raw, -1) {
		src := strings.TrimSpace(decodeEscapes(m[1]))
		if src == "" {
			continue
		}
		out = append(out, rawDiagram{source: src, kind: kindOfSource(src)})
	}
	return out
}

// decodeEscapes decodes backslash escape sequences (\n \r \t \" \\ and
// \uXXXX) in s, leaving unrecognized sequences untouched.
func decodeEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case '"':
			b.WriteByte('"')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		case 'u':
			if i+5 < len(s) {
				if v, err := strconv.ParseUint(s[i+2:i+6], 16, 32); err == nil {
					b.WriteRune(rune(v))
					i += 5
					continue
				}
			}
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// recoverDiagrams replaces every recognized diagram graphic in the
// document with recovered source, a self-contained image, or an explicit
// placeholder — never nothing.
func (c *conversion) recoverDiagrams(doc *goquery.Document) {
	var graphics []*html.Node
	doc.Find("svg").Each(func(_ int, s *goquery.Selection) {
		if isDiagramGraphic(s.Nodes[0]) {
			graphics = append(graphics, s.Nodes[0])
		}
	})

	var unresolved []*html.Node
	for _, g := range graphics {
		if src, ok := diagramSourceFromAttrs(g); ok {
			c.replaceWithRecovered(g, src)
			continue
		}
		if src, container, ok := diagramSourceFromNeighbors(g); ok {
			c.replaceWithRecovered(g, src)
			detachNode(container)
			continue
		}
		unresolved = append(unresolved, g)
	}

	if len(unresolved) > 0 {
		c.assignRawSources(unresolved)
	}

	// Standalone source containers that were never rendered (or whose
	// graphic was stripped by extraction) still carry usable source.
	doc.Find("div.mermaid, pre.mermaid").Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		if !isDiagramSourceContainer(n) {
			return
		}
		if src := strings.TrimSpace(nodeText(n)); src != "" {
			c.replaceWithRecovered(n, src)
		}
	})
}

// assignRawSources pairs still-unsourced graphics with candidates from
// the raw-HTML scan: by diagram subtype first, positionally after that.
// Graphics without a candidate degrade to an image, then a placeholder.
func (c *conversion) assignRawSources(graphics []*html.Node) {
	if !c.rawScanned {
		c.rawDiagrams = scanRawDiagramSources(c.rawHTML)
		c.rawScanned = true
	}

	takeMatching := func(kind diagramKind) *rawDiagram {
		if kind != diagramUnknown {
			for i := range c.rawDiagrams {
				if !c.rawDiagrams[i].used && c.rawDiagrams[i].kind == kind {
					c.rawDiagrams[i].used = true
					return &c.rawDiagrams[i]
				}
			}
		}
		return nil
	}
	takeAny := func() *rawDiagram {
		for i := range c.rawDiagrams {
			if !c.rawDiagrams[i].used {
				c.rawDiagrams[i].used = true
				return &c.rawDiagrams[i]
			}
		}
		return nil
	}

	for _, g := range graphics {
		cand := takeMatching(diagramKindOf(g))
		if cand == nil {
			cand = takeAny()
		}
		if cand != nil {
			c.replaceWithRecovered(g, cand.source)
			continue
		}
		if img := svgToImageNode(g); img != nil {
			log.Warn().Msg("diagram source not recovered, embedding rendered graphic")
			replaceNode(g, img)
			continue
		}
		log.Warn().Msg("diagram could not be recovered or embedded, leaving placeholder")
		replaceNode(g, diagramPlaceholderNode())
	}
}

// replaceWithRecovered swaps a graphic (or source container) for a
// synthesized block-code node tagged as diagram language. The
// data-synthesized marker keeps later passes from treating it as an
// original.
func (c *conversion) replaceWithRecovered(n *html.Node, source string) {
	pre := newElement("pre", atom.Pre, html.Attribute{Key: "data-synthesized", Val: "true"})
	code := newElement("code", atom.Code, html.Attribute{Key: "class", Val: "language-mermaid"})
	code.AppendChild(newText(normalizeCodeText(source)))
	pre.AppendChild(code)
	replaceNode(n, pre)
	c.recoveredCnt++
	log.Debug().Int("recovered", c.recoveredCnt).Msg("recovered diagram source")
}

// svgToImageNode serializes the graphic itself into a self-contained
// data-URI image, inserting the SVG namespace declaration when missing.
// Returns nil when serialization fails.
func svgToImageNode(n *html.Node) *html.Node {
	if nodeAttr(n, "xmlns") == "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "xmlns", Val: "http://www.w3.org/2000/svg"})
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return nil
	}
	uri := dataurl.New(buf.Bytes(), "image/svg+xml").String()
	return newElement("img", atom.Img,
		html.Attribute{Key: "src", Val: uri},
		html.Attribute{Key: "alt", Val: "Diagram"},
		html.Attribute{Key: "data-diagram", Val: "true"},
	)
}

// diagramPlaceholderNode is the last-resort substitute for a graphic that
// could neither be sourced nor serialized.
func diagramPlaceholderNode() *html.Node {
	p := newElement("p", atom.P)
	em := newElement("em", atom.Em)
	em.AppendChild(newText("Diagram could not be recovered."))
	p.AppendChild(em)
	return p
}
