package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/goharvest/internal/content"
)

// metadataFromDocument gathers document metadata from OpenGraph tags,
// standard meta tags, and JSON-LD payloads, with sensible fallbacks.
func metadataFromDocument(doc *goquery.Document, rawURL string) content.Metadata {
	meta := content.Metadata{}

	meta.Title = firstNonEmpty(
		metaAttr(doc, "meta[property='og:title']"),
		strings.TrimSpace(doc.Find("title").First().Text()),
		strings.TrimSpace(doc.Find("h1").First().Text()),
	)
	meta.Description = firstNonEmpty(
		metaAttr(doc, "meta[property='og:description']"),
		metaAttr(doc, "meta[name='description']"),
	)
	meta.Author = firstNonEmpty(
		metaAttr(doc, "meta[name='author']"),
		metaAttr(doc, "meta[property='article:author']"),
	)
	meta.SiteName = metaAttr(doc, "meta[property='og:site_name']")
	meta.Image = metaAttr(doc, "meta[property='og:image']")

	if canonical, ok := doc.Find("link[rel='canonical']").Attr("href"); ok {
		meta.Canonical = strings.TrimSpace(canonical)
	}
	if meta.Canonical == "" {
		meta.Canonical = rawURL
	}

	if lang, ok := doc.Find("html").Attr("lang"); ok {
		meta.Language = strings.TrimSpace(lang)
	}

	if published := parseMetaTime(metaAttr(doc, "meta[property='article:published_time']")); published != nil {
		meta.Published = published
	}
	if modified := parseMetaTime(metaAttr(doc, "meta[property='article:modified_time']")); modified != nil {
		meta.Modified = modified
	}

	if keywords := metaAttr(doc, "meta[name='keywords']"); keywords != "" {
		for _, kw := range strings.Split(keywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				meta.Tags = append(meta.Tags, kw)
			}
		}
	}
	if ogType := metaAttr(doc, "meta[property='og:type']"); ogType != "" {
		meta.Tags = append(meta.Tags, ogType)
	}

	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		payload := strings.TrimSpace(s.Text())
		if json.Valid([]byte(payload)) {
			meta.StructuredData = append(meta.StructuredData, json.RawMessage(payload))
		}
	})

	return meta
}

func metaAttr(doc *goquery.Document, selector string) string {
	val, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(val)
}

func parseMetaTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, val); err == nil {
			return &t
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
