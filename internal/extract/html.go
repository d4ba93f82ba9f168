package extract

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/contenttype"
)

// noiseSelectors are removed from the document before the content
// container is chosen. They contribute no meaningful reading content.
var noiseSelectors = []string{
	"script", "style", "noscript",
	"nav", "footer", "header", "aside",
	"iframe", "svg", "canvas",
	"form", "button", "input", "select", "textarea",
	".sidebar", ".menu", ".navigation", ".ads", ".advertisement",
	".cookie-banner", ".consent-banner",
}

// HTML extracts readable blocks from HTML pages. The content container is
// chosen in priority order <main>, <article>, <body>; the fragment is
// converted to markdown and split into one block per paragraph, with
// fenced code and standalone images mapped to their own block types.
type HTML struct {
	sanitizer *bluemonday.Policy
}

// NewHTML creates the standard HTML extractor.
func NewHTML() *HTML {
	return &HTML{sanitizer: bluemonday.UGCPolicy()}
}

func (h *HTML) Name() string { return "html" }

func (h *HTML) CanHandle(_ string, info contenttype.Info) bool {
	return info.MIME == "text/html" || info.MIME == "application/xhtml+xml"
}

func (h *HTML) Extract(_ context.Context, raw []byte, rawURL string, opts Options) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	meta := metadataFromDocument(doc, rawURL)

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	var container *goquery.Selection
	for _, tag := range []string{"main", "article", "body"} {
		if sel := doc.Find(tag); sel.Length() > 0 {
			container = sel.First()
			break
		}
	}
	if container == nil {
		container = doc.Selection
	}

	fragment, err := goquery.OuterHtml(container)
	if err != nil {
		return Result{}, fmt.Errorf("serialize content: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return Result{}, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)

	blocks := blocksFromMarkdown(markdown, opts)

	return Result{
		Success:   true,
		Blocks:    blocks,
		Metadata:  meta,
		Text:      markdown,
		HTML:      h.sanitizer.Sanitize(fragment),
		Domain:    DomainOf(rawURL),
		WordCount: countWords(markdown),
		Category:  categoryOf(meta),
	}, nil
}

var imageOnlyLine = regexp.MustCompile(`^!\[([^\]]*)\]\(([^)\s]+)[^)]*\)$`)

// blocksFromMarkdown splits markdown into ordered blocks: fenced code
// runs become code blocks, standalone image lines become image blocks,
// everything else becomes one text block per paragraph.
func blocksFromMarkdown(markdown string, opts Options) []content.Block {
	blocks := make([]content.Block, 0, 8)
	add := func(b content.Block) bool {
		if opts.MaxBlocks > 0 && len(blocks) >= opts.MaxBlocks {
			return false
		}
		blocks = append(blocks, b)
		return true
	}

	for _, chunk := range splitChunks(markdown) {
		trimmed := strings.TrimSpace(chunk)
		if trimmed == "" {
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "```"):
			code, lang := stripFence(trimmed)
			if code == "" {
				continue
			}
			if !add(content.NewBlock(content.BlockCode, map[string]any{"code": code, "language": lang}, opts.FetchedAt)) {
				return blocks
			}
		case imageOnlyLine.MatchString(trimmed):
			m := imageOnlyLine.FindStringSubmatch(trimmed)
			if !add(content.NewBlock(content.BlockImage, map[string]any{"url": m[2], "alt": m[1]}, opts.FetchedAt)) {
				return blocks
			}
		default:
			if !add(content.NewBlock(content.BlockText, map[string]any{"text": trimmed}, opts.FetchedAt)) {
				return blocks
			}
		}
	}
	return blocks
}

// splitChunks splits on blank lines, but keeps fenced code runs together
// even when they contain blank lines themselves.
func splitChunks(markdown string) []string {
	lines := strings.Split(markdown, "\n")
	chunks := make([]string, 0, 16)
	var cur []string
	inFence := false
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if !inFence {
				flush()
				inFence = true
				cur = append(cur, line)
				continue
			}
			cur = append(cur, line)
			inFence = false
			flush()
			continue
		}
		if inFence {
			cur = append(cur, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return chunks
}

func stripFence(chunk string) (code, lang string) {
	lines := strings.Split(chunk, "\n")
	if len(lines) == 0 {
		return "", ""
	}
	lang = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[0]), "```"))
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), lang
}

func categoryOf(meta content.Metadata) string {
	if len(meta.Tags) > 0 {
		return meta.Tags[0]
	}
	return "general"
}
