package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/contenttype"
)

func TestJSONExtract(t *testing.T) {
	t.Parallel()
	res, err := JSON{}.Extract(context.Background(), []byte(`{"a":1,"b":[2,3]}`),
		"https://api.example.com/data.json", Options{FetchedAt: time.Now()})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(res.Blocks))
	}
	b := res.Blocks[0]
	if b.Type != content.BlockCode {
		t.Errorf("block type = %q, want code", b.Type)
	}
	if got := b.Content["language"]; got != "json" {
		t.Errorf("language = %q", got)
	}
	code, _ := b.Content["code"].(string)
	if !strings.Contains(code, "\n") {
		t.Errorf("expected indented JSON, got %q", code)
	}
	if res.Category != "data" {
		t.Errorf("category = %q, want data", res.Category)
	}
	if res.Metadata.Title != "data.json" {
		t.Errorf("title = %q, want file name", res.Metadata.Title)
	}
}

func TestJSONExtract_Malformed(t *testing.T) {
	t.Parallel()
	_, err := JSON{}.Extract(context.Background(), []byte(`{not json`),
		"https://example.com/x", Options{})
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestTextExtract_Paragraphs(t *testing.T) {
	t.Parallel()
	raw := "First paragraph.\r\n\r\nSecond paragraph.\n\n\n\nThird."
	res, err := Text{}.Extract(context.Background(), []byte(raw),
		"https://example.com/notes.txt", Options{FetchedAt: time.Now()})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(res.Blocks))
	}
	if got := res.Blocks[1].Content["text"]; got != "Second paragraph." {
		t.Errorf("second block = %q", got)
	}
	if res.WordCount != 5 {
		t.Errorf("word count = %d, want 5", res.WordCount)
	}
}

func TestFallback_BinaryPayload(t *testing.T) {
	t.Parallel()
	raw := []byte{0x00, 0x01, 0x02, 0xFF, 0x00, 0x00, 0x00, 0x00}
	res, err := Fallback{}.Extract(context.Background(), raw, "https://example.com/blob", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Success {
		t.Error("binary fallback should still succeed")
	}
	if len(res.Blocks) != 0 {
		t.Errorf("expected no blocks for binary payload, got %d", len(res.Blocks))
	}
}

func TestFallback_TextualPayload(t *testing.T) {
	t.Parallel()
	res, err := Fallback{}.Extract(context.Background(), []byte("just some words"),
		"https://example.com/readme", Options{FetchedAt: time.Now()})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Blocks) != 1 {
		t.Fatalf("expected 1 text block, got %d", len(res.Blocks))
	}
}

type failingExtractor struct{}

func (failingExtractor) Name() string                          { return "failing" }
func (failingExtractor) CanHandle(string, contenttype.Info) bool { return true }
func (failingExtractor) Extract(context.Context, []byte, string, Options) (Result, error) {
	return Result{}, errors.New("boom")
}

func TestRegistry_AbsorbsExtractorErrors(t *testing.T) {
	t.Parallel()
	r := &Registry{fallback: &Fallback{}}
	r.Register(failingExtractor{})

	res := r.Extract(context.Background(), []byte("x"), "https://example.com/page",
		contenttype.Info{MIME: "text/html"}, Options{})
	if res.Success {
		t.Error("expected degraded result")
	}
	if res.Blocks == nil || len(res.Blocks) != 0 {
		t.Errorf("degraded result should carry empty block list, got %v", res.Blocks)
	}
	if res.Domain != "example.com" {
		t.Errorf("domain = %q", res.Domain)
	}
	if res.Category != "general" {
		t.Errorf("category = %q", res.Category)
	}
	if res.Error == "" {
		t.Error("expected error string")
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	tests := []struct {
		name string
		info contenttype.Info
		want string
	}{
		{"html", contenttype.Info{MIME: "text/html"}, "html"},
		{"json", contenttype.Info{MIME: "application/json"}, "json"},
		{"plain", contenttype.Info{MIME: "text/plain", Text: true}, "text"},
		{"binary", contenttype.Info{MIME: "application/pdf"}, "fallback"},
	}
	for _, tt := range tests {
		if got := r.Find("https://example.com", tt.info).Name(); got != tt.want {
			t.Errorf("%s: dispatched to %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDomainOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"https://Example.COM/path", "example.com"},
		{"https://sub.example.com:8080/x", "sub.example.com"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := DomainOf(tt.in); got != tt.want {
			t.Errorf("DomainOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
