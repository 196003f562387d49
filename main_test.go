package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempHTML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadInput_File(t *testing.T) {
	path := writeTempHTML(t, "<html><body><p>file content</p></body></html>")

	data, pageURL, err := loadInput(cliConfig{arg: path})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "file content") {
		t.Errorf("file not read: %q", data)
	}
	if pageURL != nil {
		t.Errorf("pageURL = %v, want nil without -url", pageURL)
	}
}

func TestLoadInput_FileWithSourceURL(t *testing.T) {
	path := writeTempHTML(t, "<html><body></body></html>")

	_, pageURL, err := loadInput(cliConfig{arg: path, sourceURL: "https://example.com/orig"})
	if err != nil {
		t.Fatal(err)
	}
	if pageURL == nil || pageURL.Host != "example.com" {
		t.Errorf("pageURL = %v, want example.com", pageURL)
	}
}

func TestLoadInput_InvalidSourceURL(t *testing.T) {
	_, _, err := loadInput(cliConfig{arg: "-", sourceURL: "://bad"})
	if err == nil {
		t.Fatal("expected error for invalid -url")
	}
}

func TestRun_SavesToDirectory(t *testing.T) {
	page := `<html><head><title>Saved: As/File</title></head>` +
		`<body><p>Enough body text to convert into a small document.</p></body></html>`
	path := writeTempHTML(t, page)
	outDir := t.TempDir()

	err := run(cliConfig{arg: path, output: outDir})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d output files, want 1", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasSuffix(name, ".md") || strings.ContainsAny(name, `/\:`) {
		t.Errorf("unsafe output filename %q", name)
	}

	saved, err := os.ReadFile(filepath.Join(outDir, name))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(saved), "---\n") {
		t.Errorf("saved document missing front-matter:\n%.120s", saved)
	}
}

func TestRun_TitleOverride(t *testing.T) {
	path := writeTempHTML(t, `<html><head><title>Original</title></head><body><p>Body text here.</p></body></html>`)
	out := filepath.Join(t.TempDir(), "out.md")

	if err := run(cliConfig{arg: path, output: out, titleOverride: "Chosen Title"}); err != nil {
		t.Fatal(err)
	}
	saved, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(saved), "title: Chosen Title") {
		t.Errorf("override not applied:\n%.200s", saved)
	}
}
