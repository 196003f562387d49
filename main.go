// clipdown: fetch a web page and save it as clean Markdown with YAML
// front-matter. Code blocks, diagrams, and headings survive conversion;
// diagram graphics are recovered back to their text source where
// possible.
//
//	clipdown [options] <URL|file|->
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// processDocument runs the full conversion pipeline on one document:
// extraction, normalization, Markdown conversion, post-processing, and
// metadata extraction. Conversion failure aborts with no partial output;
// everything else degrades in place.
func processDocument(htmlBytes []byte, pageURL *url.URL) (string, articleMetadata, error) {
	htmlBytes = promoteLazySrc(htmlBytes)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return "", articleMetadata{}, fmt.Errorf("parsing document: %w", err)
	}

	content, article, err := extractContent(htmlBytes, pageURL)
	if err != nil {
		return "", articleMetadata{}, err
	}

	conv := &conversion{rawHTML: string(htmlBytes), baseURL: pageURL}
	normalized := conv.normalizeHTML(content, doc)

	markdown, err := conv.convertToMarkdown(normalized)
	if err != nil {
		return "", articleMetadata{}, err
	}
	markdown = tidyMarkdown(markdown)

	meta := extractMetadata(doc, pageURL, article)
	log.Debug().Str("title", meta.Title).Int("words", meta.WordCount).Msg("converted")

	return markdown, meta, nil
}

// cliConfig holds parsed command-line options.
type cliConfig struct {
	output        string
	titleOverride string
	sourceURL     string
	timeout       time.Duration
	userAgent     string
	arg           string
}

// loadInput obtains the document bytes and page URL for the single
// argument: "-" reads stdin, an existing file is read directly, anything
// else is fetched.
func loadInput(cfg cliConfig) ([]byte, *url.URL, error) {
	var pageURL *url.URL
	if cfg.sourceURL != "" {
		u, err := url.Parse(cfg.sourceURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid -url %q: %w", cfg.sourceURL, err)
		}
		pageURL = u
	}

	if cfg.arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, pageURL, nil
	}

	if info, err := os.Stat(cfg.arg); err == nil && !info.IsDir() {
		data, err := os.ReadFile(cfg.arg)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", cfg.arg, err)
		}
		return data, pageURL, nil
	}

	data, fetched, err := fetchHTML(cfg.arg, cfg.timeout, cfg.userAgent)
	if err != nil {
		return nil, nil, err
	}
	if pageURL == nil {
		pageURL = fetched
	}
	return data, pageURL, nil
}

// run executes the main application logic.
func run(cfg cliConfig) error {
	htmlBytes, pageURL, err := loadInput(cfg)
	if err != nil {
		return err
	}

	markdown, meta, err := processDocument(htmlBytes, pageURL)
	if err != nil {
		return err
	}
	if cfg.titleOverride != "" {
		meta.Title = cfg.titleOverride
	}

	document, err := renderDocument(meta, markdown)
	if err != nil {
		return err
	}

	if cfg.output == "" {
		_, err := os.Stdout.WriteString(document)
		return err
	}

	outPath := cfg.output
	if info, err := os.Stat(outPath); err == nil && info.IsDir() {
		outPath = filepath.Join(outPath, sanitizeFilename(meta.Title))
	}
	if err := os.WriteFile(outPath, []byte(document), 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	log.Info().Str("path", outPath).Msg("saved")
	return nil
}

func main() {
	output := flag.String("o", "", "Output file or directory (default: stdout)")
	titleOverride := flag.String("title", "", "Override document title")
	sourceURL := flag.String("url", "", "Source URL for file/stdin input (used for link resolution and metadata)")
	timeout := flag.Duration("timeout", 30*time.Second, "HTTP fetch timeout")
	userAgent := flag.String("user-agent", defaultUA, "HTTP User-Agent header")
	maxSize := flag.Int64("max-response-size", maxResponseBytes, "Max HTTP response size in bytes (0 = unlimited)")
	verbose := flag.Bool("v", false, "Verbose (debug) logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: clipdown [options] <URL|file|->\n\n")
		fmt.Fprintf(os.Stderr, "Convert a web page to Markdown with YAML front-matter.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	maxResponseBytes = *maxSize

	cfg := cliConfig{
		output:        *output,
		titleOverride: *titleOverride,
		sourceURL:     *sourceURL,
		timeout:       *timeout,
		userAgent:     *userAgent,
		arg:           flag.Arg(0),
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("conversion failed")
		os.Exit(1)
	}
}
