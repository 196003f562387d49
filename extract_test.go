package main

import (
	"strings"
	"testing"
)

func TestExtractContent_Article(t *testing.T) {
	html := `<html><head><title>Test Article</title></head><body>
		<nav><a href="/">Home</a><a href="/about">About</a></nav>
		<article>
			<h1>Test Article</h1>
			<p>This is a test article with enough content to be considered the main article.
			It needs to be reasonably long so that readability considers it significant content.
			Here is another paragraph to add more text. And another sentence for good measure.
			The readability algorithm needs substantial text to work properly.</p>
			<p>Second paragraph with more content. This helps readability determine that this
			is indeed the main article content of the page. More text here for thoroughness.
			And even more text to ensure this passes the readability threshold easily.</p>
		</article>
		<footer>Copyright 2024</footer>
	</body></html>`

	content, article, err := extractContent([]byte(html), mustURL(t, "https://example.com/article"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content, "test article with enough content") {
		t.Error("expected article content in output")
	}
	if article.Title != "Test Article" {
		t.Errorf("title = %q, want %q", article.Title, "Test Article")
	}
}

func TestExtractContent_FallsBackToBody(t *testing.T) {
	// Too little content for the readability heuristic; the body clone
	// must still come through.
	html := `<html><body><p>tiny</p></body></html>`
	content, _, err := extractContent([]byte(html), mustURL(t, "https://example.com/x"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content, "tiny") {
		t.Errorf("fallback lost body content: %q", content)
	}
}

func TestPromoteLazySrc(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"data-src promoted",
			`<img data-src="https://example.com/real.jpg">`,
			`src="https://example.com/real.jpg"`,
		},
		{
			"data-srcset promoted",
			`<img data-srcset="a.jpg 1x, b.jpg 2x">`,
			`srcset="a.jpg 1x, b.jpg 2x"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(promoteLazySrc([]byte(tt.in)))
			if !strings.Contains(got, tt.want) {
				t.Errorf("got %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestPromoteLazySrc_RemovesPlaceholder(t *testing.T) {
	in := `<img src="data:image/svg+xml;base64,PHN2Zz4=" data-src="https://example.com/real.jpg">`
	got := string(promoteLazySrc([]byte(in)))
	if strings.Contains(got, "data:image/svg+xml") {
		t.Errorf("placeholder src survived: %q", got)
	}
	if !strings.Contains(got, `src="https://example.com/real.jpg"`) {
		t.Errorf("real src not promoted: %q", got)
	}
}
