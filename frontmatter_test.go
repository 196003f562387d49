package main

import (
	"strings"
	"testing"
)

func TestRenderDocument(t *testing.T) {
	meta := articleMetadata{
		Title:       "A Post",
		URL:         "https://example.com/a",
		Domain:      "example.com",
		Source:      "Example Blog",
		Author:      "J. Writer",
		Tags:        []string{"go", "testing"},
		WordCount:   400,
		ReadingTime: 2,
	}
	doc, err := renderDocument(meta, "# A Post\n\nBody.")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(doc, "---\n") {
		t.Errorf("missing opening fence: %q", doc)
	}
	head, _, found := strings.Cut(strings.TrimPrefix(doc, "---\n"), "---\n")
	if !found {
		t.Fatalf("missing closing fence: %q", doc)
	}
	for _, want := range []string{"title: A Post", "author: J. Writer", "word_count: 400", "reading_time: 2", "- go"} {
		if !strings.Contains(head, want) {
			t.Errorf("front-matter missing %q:\n%s", want, head)
		}
	}
	if !strings.HasSuffix(doc, "Body.\n") {
		t.Errorf("markdown body not appended: %q", doc)
	}
}

func TestRenderDocument_OmitsEmptyFields(t *testing.T) {
	doc, err := renderDocument(articleMetadata{Title: "T"}, "body")
	if err != nil {
		t.Fatal(err)
	}
	for _, absent := range []string{"author:", "published:", "tags:", "description:"} {
		if strings.Contains(doc, absent) {
			t.Errorf("empty field %q should be omitted:\n%s", absent, doc)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "A Post", "A Post.md"},
		{"slashes", "a/b\\c", "a-b-c.md"},
		{"reserved chars", `q: "why?" <x>|*`, "q- -why-- -x---.md"},
		{"whitespace collapsed", "  a   b  ", "a b.md"},
		{"empty", "", "untitled.md"},
		{"dots trimmed", "ends with dot.", "ends with dot.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.title); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_LengthCapped(t *testing.T) {
	got := sanitizeFilename(strings.Repeat("x", 500))
	if len(got) > maxFilenameLen+len(".md") {
		t.Errorf("filename too long: %d chars", len(got))
	}
}
