package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/contenttype"
)

// JSON renders a JSON payload as a single pretty-printed code block.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) CanHandle(_ string, info contenttype.Info) bool {
	return info.MIME == "application/json"
}

func (JSON) Extract(_ context.Context, raw []byte, rawURL string, opts Options) (Result, error) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, bytes.TrimSpace(raw), "", "  "); err != nil {
		return Result{}, fmt.Errorf("indent json: %w", err)
	}
	text := pretty.String()
	block := content.NewBlock(content.BlockCode, map[string]any{
		"code":     text,
		"language": "json",
	}, opts.FetchedAt)
	return Result{
		Success:   true,
		Blocks:    []content.Block{block},
		Metadata:  content.Metadata{Title: titleFromURL(rawURL)},
		Text:      text,
		Domain:    DomainOf(rawURL),
		WordCount: 0,
		Category:  "data",
	}, nil
}

// Text splits plain text into one block per non-blank paragraph.
type Text struct{}

func (Text) Name() string { return "text" }

func (Text) CanHandle(_ string, info contenttype.Info) bool {
	return info.Text
}

func (Text) Extract(_ context.Context, raw []byte, rawURL string, opts Options) (Result, error) {
	text := strings.TrimSpace(strings.ReplaceAll(string(raw), "\r\n", "\n"))
	blocks := make([]content.Block, 0, 8)
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if opts.MaxBlocks > 0 && len(blocks) >= opts.MaxBlocks {
			break
		}
		blocks = append(blocks, content.NewBlock(content.BlockText, map[string]any{"text": para}, opts.FetchedAt))
	}
	return Result{
		Success:   true,
		Blocks:    blocks,
		Metadata:  content.Metadata{Title: titleFromURL(rawURL)},
		Text:      text,
		Domain:    DomainOf(rawURL),
		WordCount: countWords(text),
		Category:  "general",
	}, nil
}

// Fallback always matches. Binary payloads yield a block-less but
// successful result so downstream bookkeeping stays uniform.
type Fallback struct{}

func (Fallback) Name() string { return "fallback" }

func (Fallback) CanHandle(string, contenttype.Info) bool { return true }

func (Fallback) Extract(ctx context.Context, raw []byte, rawURL string, opts Options) (Result, error) {
	if len(raw) > 0 && looksTextual(raw) {
		return Text{}.Extract(ctx, raw, rawURL, opts)
	}
	return Result{
		Success:   true,
		Blocks:    []content.Block{},
		Metadata:  content.Metadata{Title: titleFromURL(rawURL)},
		Domain:    DomainOf(rawURL),
		WordCount: 0,
		Category:  "general",
	}, nil
}

func looksTextual(raw []byte) bool {
	info := contenttype.FromBuffer(raw)
	return info.Text
}

func titleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	base := path.Base(u.Path)
	if base == "" || base == "/" || base == "." {
		return u.Hostname()
	}
	return base
}
