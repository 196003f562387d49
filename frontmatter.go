// Front-matter rendering and output filename derivation.
package main

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// renderDocument prepends a YAML front-matter header to the Markdown
// body.
func renderDocument(meta articleMetadata, markdown string) (string, error) {
	header, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("rendering front-matter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(markdown)
	b.WriteString("\n")
	return b.String(), nil
}

// maxFilenameLen bounds derived filenames well under common filesystem
// limits, leaving room for the extension.
const maxFilenameLen = 120

// sanitizeFilename derives a safe .md filename from a document title:
// filesystem-hostile characters become hyphens, whitespace collapses,
// and the result is length-capped.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), r < 0x20:
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	name := collapseSpace(b.String())
	name = strings.Trim(name, ". ")
	if len(name) > maxFilenameLen {
		name = strings.TrimSpace(name[:maxFilenameLen])
	}
	if name == "" {
		name = "untitled"
	}
	return name + ".md"
}
