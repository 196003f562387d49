// Markdown post-processing: pure whitespace normalization of the
// converted text.
package main

import (
	"regexp"
	"strings"
)

var (
	trailingSpaceRe = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRe      = regexp.MustCompile(`\n{4,}`)
)

// tidyMarkdown strips trailing horizontal whitespace per line, collapses
// runs of four or more newlines to exactly two, and trims the whole
// string.
func tidyMarkdown(md string) string {
	md = trailingSpaceRe.ReplaceAllString(md, "")
	md = blankRunRe.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}
