// Markdown rule engine: an explicit ordered rule table registered on the
// html-to-markdown converter. Rules are evaluated first-match-wins per
// node; more specific rules are listed (and therefore prioritized) before
// general ones, all ahead of the standard commonmark handlers.
package main

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
)

// mdRule is one entry of the rule table: a name, the tags it matches, and
// a renderer. A renderer that returns RenderTryNext passes the node to
// the next rule in priority order. inline selects the inline registration
// slot; everything else registers as a block rule.
type mdRule struct {
	name   string
	tags   []string
	inline bool
	render converter.HandleRenderFunc
}

// ruleTable returns the rule list in evaluation order. Position in the
// slice is the rule's priority: reordering the slice reorders dispatch.
// The specific heading/link rules must stay ahead of the generic heading
// and link handlers so self-linking headings never degrade to a linked
// form, and the code rules ahead of any generic preformatted handler.
func (c *conversion) ruleTable() []mdRule {
	return []mdRule{
		{name: "block-code", tags: []string{"pre"}, render: renderBlockCode},
		{name: "diagram-graphic", tags: []string{"svg"}, render: renderDiagramFallback},
		{name: "heading-single-link", tags: headingTags, render: renderSelfLinkedHeading},
		{name: "link-wrapped-heading", tags: []string{"a"}, render: renderLinkWrappedHeading},
		{name: "heading-clean", tags: headingTags, render: renderCleanHeading},
		{name: "figure", tags: []string{"figure"}, render: renderFigure},
		{name: "inline-code", tags: []string{"code"}, inline: true, render: renderInlineCode},
		{name: "image", tags: []string{"img"}, inline: true, render: renderImage},
		{name: "noise", tags: []string{"script", "style", "noscript", "iframe", "nav", "footer"},
			render: renderNothing},
	}
}

var headingTags = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// convertToMarkdown runs the normalized HTML through the transducer.
// Conversion failure is fatal for the invocation: no partial output.
func (c *conversion) convertToMarkdown(normalized string) (string, error) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	// PriorityEarly (100) runs before the commonmark plugin
	// (PriorityStandard 500); spacing the rules out keeps their relative
	// order explicit.
	for i, rule := range c.ruleTable() {
		prio := converter.PriorityEarly + i
		typ := converter.TagTypeBlock
		if rule.inline {
			typ = converter.TagTypeInline
		}
		for _, tag := range rule.tags {
			conv.Register.RendererFor(tag, typ, rule.render, prio)
		}
	}

	var opts []converter.ConvertOptionFunc
	if c.baseURL != nil {
		opts = append(opts, converter.WithDomain(c.baseURL.String()))
	}
	md, err := conv.ConvertString(normalized, opts...)
	if err != nil {
		return "", fmt.Errorf("markdown conversion: %w", err)
	}
	return md, nil
}

// renderBlockCode emits a fenced code block. The fence is always longer
// than any backtick run inside the code, the language tag sits directly
// after the opening fence, and empty code emits nothing.
func renderBlockCode(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	target := firstElement(n, "code")
	if target == nil {
		target = n
	}
	code := normalizeCodeText(chooseCodeText(target))
	if strings.TrimSpace(code) == "" {
		return converter.RenderSuccess
	}
	fence := codeFence(code)
	w.WriteString(fence)
	w.WriteString(detectCodeLanguage(target, n))
	w.WriteString("\n")
	w.WriteString(code)
	w.WriteString("\n")
	w.WriteString(fence)
	return converter.RenderSuccess
}

// renderDiagramFallback handles diagram graphics the normalizer did not
// already convert: it emits a fenced diagram block with whatever source
// is still reachable, or an empty body. Non-diagram SVGs pass through.
func renderDiagramFallback(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	if !isDiagramGraphic(n) {
		return converter.RenderTryNext
	}
	source, _ := diagramSourceFromAttrs(n)
	source = normalizeCodeText(source)
	fence := codeFence(source)
	w.WriteString(fence)
	w.WriteString("mermaid\n")
	if strings.TrimSpace(source) != "" {
		w.WriteString(source)
		w.WriteString("\n")
	}
	w.WriteString(fence)
	return converter.RenderSuccess
}

// headingLevel maps h1..h6 to 1..6, 0 for anything else.
func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// writeCleanHeading emits '#'×level + space + trimmed plain text,
// discarding all inline markup.
func writeCleanHeading(w converter.Writer, level int, text string) converter.RenderStatus {
	text = collapseSpace(text)
	if text == "" {
		return converter.RenderSuccess
	}
	w.WriteString(strings.Repeat("#", level))
	w.WriteString(" ")
	w.WriteString(text)
	return converter.RenderSuccess
}

// renderSelfLinkedHeading matches a heading whose only non-blank child is
// a single link and emits the clean-heading form at the heading's own
// level, discarding the link.
func renderSelfLinkedHeading(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	var link *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "":
		case c.Type == html.ElementNode && c.Data == "a" && link == nil:
			link = c
		default:
			return converter.RenderTryNext
		}
	}
	if link == nil {
		return converter.RenderTryNext
	}
	return writeCleanHeading(w, headingLevel(n.Data), nodeText(n))
}

// renderLinkWrappedHeading matches a link containing a heading descendant
// (the inverse wrapping) and emits the clean-heading form at the
// descendant's level.
func renderLinkWrappedHeading(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	for _, tag := range headingTags {
		if h := firstElement(n, tag); h != nil {
			return writeCleanHeading(w, headingLevel(tag), nodeText(h))
		}
	}
	return converter.RenderTryNext
}

// renderCleanHeading emits any heading as plain text with no embedded
// markup.
func renderCleanHeading(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	return writeCleanHeading(w, headingLevel(n.Data), nodeText(n))
}

// renderFigure emits the image reference, then an italic caption, then
// any remaining converted child content, each on its own line.
func renderFigure(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	img := firstElement(n, "img")
	caption := firstElement(n, "figcaption")

	wrote := false
	if img != nil {
		if src := dom.GetAttributeOr(img, "src", ""); src != "" {
			alt := collapseSpace(dom.GetAttributeOr(img, "alt", ""))
			w.WriteString("![" + alt + "](" + src + ")")
			wrote = true
		}
	}
	if caption != nil {
		if text := collapseSpace(nodeText(caption)); text != "" {
			if wrote {
				w.WriteString("\n")
			}
			w.WriteString("*" + text + "*")
			wrote = true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c == caption || containsNode(c, img) {
			continue
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		if wrote {
			w.WriteString("\n")
		}
		ctx.RenderNodes(ctx, w, c)
		wrote = true
	}
	return converter.RenderSuccess
}

// renderInlineCode wraps a code element in backticks, escalating to
// double backticks when the text itself contains one. Code inside a
// block-code container belongs to the block-code rule.
func renderInlineCode(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	if n.Parent != nil && n.Parent.Type == html.ElementNode && n.Parent.Data == "pre" {
		return converter.RenderTryNext
	}
	text := strings.ReplaceAll(nodeText(n), " ", " ")
	text = collapseSpace(text)
	if text == "" {
		return converter.RenderSuccess
	}
	delim := "`"
	if strings.Contains(text, "`") {
		delim = "``"
		if strings.HasPrefix(text, "`") || strings.HasSuffix(text, "`") {
			text = " " + text + " "
		}
	}
	w.WriteString(delim + text + delim)
	return converter.RenderSuccess
}

// renderImage keeps synthesized diagram images intact and reduces any
// other data-URI image to an alt-text placeholder; regular URLs fall
// through to the commonmark handler.
func renderImage(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	src := dom.GetAttributeOr(n, "src", "")
	if !strings.HasPrefix(src, "data:") {
		return converter.RenderTryNext
	}
	alt := strings.TrimSpace(dom.GetAttributeOr(n, "alt", ""))
	if dom.GetAttributeOr(n, "data-diagram", "") != "" {
		w.WriteString("![" + alt + "](" + src + ")")
		return converter.RenderSuccess
	}
	if alt != "" {
		w.WriteString("[Image: " + alt + "]")
	}
	return converter.RenderSuccess
}

// renderNothing elides noise subtrees entirely.
func renderNothing(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	return converter.RenderSuccess
}
