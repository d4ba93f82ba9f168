// Package contenttype classifies payloads into media type descriptors
// using, in priority order: declared Content-Type headers, byte signature
// sniffing, and a text-vs-binary heuristic over the first kilobyte.
package contenttype

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// Info is an immutable media type descriptor. The boolean facets describe
// the broad family the type belongs to; a type may set several.
type Info struct {
	MIME      string `json:"mime"`
	Extension string `json:"extension"`
	Binary    bool   `json:"binary"`
	Text      bool   `json:"text"`
	Archive   bool   `json:"archive"`
	Document  bool   `json:"document"`
	Image     bool   `json:"image"`
	Audio     bool   `json:"audio"`
	Video     bool   `json:"video"`
	Font      bool   `json:"font"`
}

// known maps canonical media types to their descriptors. Lookups from
// headers and path extensions resolve through this table.
var known = map[string]Info{
	"text/html":          {MIME: "text/html", Extension: "html", Text: true, Document: true},
	"text/plain":         {MIME: "text/plain", Extension: "txt", Text: true},
	"text/markdown":      {MIME: "text/markdown", Extension: "md", Text: true, Document: true},
	"text/css":           {MIME: "text/css", Extension: "css", Text: true},
	"text/csv":           {MIME: "text/csv", Extension: "csv", Text: true},
	"application/json":   {MIME: "application/json", Extension: "json", Text: true},
	"application/xml":    {MIME: "application/xml", Extension: "xml", Text: true},
	"text/xml":           {MIME: "text/xml", Extension: "xml", Text: true},
	"application/xhtml+xml": {MIME: "application/xhtml+xml", Extension: "xhtml", Text: true, Document: true},
	"application/javascript": {MIME: "application/javascript", Extension: "js", Text: true},

	"application/pdf": {MIME: "application/pdf", Extension: "pdf", Binary: true, Document: true},
	"application/zip": {MIME: "application/zip", Extension: "zip", Binary: true, Archive: true},
	"application/gzip": {MIME: "application/gzip", Extension: "gz", Binary: true, Archive: true},
	"application/vnd.rar": {MIME: "application/vnd.rar", Extension: "rar", Binary: true, Archive: true},
	"application/x-7z-compressed": {MIME: "application/x-7z-compressed", Extension: "7z", Binary: true, Archive: true},
	"application/x-ole-storage": {MIME: "application/x-ole-storage", Extension: "doc", Binary: true, Document: true},
	"application/msword": {MIME: "application/msword", Extension: "doc", Binary: true, Document: true},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {
		MIME: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Extension: "docx", Binary: true, Archive: true, Document: true},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {
		MIME: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Extension: "xlsx", Binary: true, Archive: true, Document: true},

	"image/jpeg": {MIME: "image/jpeg", Extension: "jpg", Binary: true, Image: true},
	"image/png":  {MIME: "image/png", Extension: "png", Binary: true, Image: true},
	"image/gif":  {MIME: "image/gif", Extension: "gif", Binary: true, Image: true},
	"image/webp": {MIME: "image/webp", Extension: "webp", Binary: true, Image: true},
	"image/svg+xml": {MIME: "image/svg+xml", Extension: "svg", Text: true, Image: true},

	"audio/mpeg": {MIME: "audio/mpeg", Extension: "mp3", Binary: true, Audio: true},
	"audio/wav":  {MIME: "audio/wav", Extension: "wav", Binary: true, Audio: true},
	"video/mp4":  {MIME: "video/mp4", Extension: "mp4", Binary: true, Video: true},
	"video/webm": {MIME: "video/webm", Extension: "webm", Binary: true, Video: true},

	"font/ttf":   {MIME: "font/ttf", Extension: "ttf", Binary: true, Font: true},
	"font/otf":   {MIME: "font/otf", Extension: "otf", Binary: true, Font: true},
	"font/woff":  {MIME: "font/woff", Extension: "woff", Binary: true, Font: true},
	"font/woff2": {MIME: "font/woff2", Extension: "woff2", Binary: true, Font: true},

	"application/x-executable": {MIME: "application/x-executable", Extension: "bin", Binary: true},
	"application/vnd.microsoft.portable-executable": {
		MIME: "application/vnd.microsoft.portable-executable", Extension: "exe", Binary: true},
	"application/java-vm": {MIME: "application/java-vm", Extension: "class", Binary: true},

	"application/octet-stream": {MIME: "application/octet-stream", Extension: "bin", Binary: true},
}

// extToMIME maps path extensions back to canonical media types.
var extToMIME = map[string]string{
	"html": "text/html", "htm": "text/html", "xhtml": "application/xhtml+xml",
	"txt": "text/plain", "text": "text/plain", "md": "text/markdown",
	"markdown": "text/markdown", "css": "text/css", "csv": "text/csv",
	"json": "application/json", "xml": "application/xml", "js": "application/javascript",
	"pdf": "application/pdf", "zip": "application/zip", "gz": "application/gzip",
	"rar": "application/vnd.rar", "7z": "application/x-7z-compressed",
	"doc": "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"jpg": "image/jpeg", "jpeg": "image/jpeg", "png": "image/png", "gif": "image/gif",
	"webp": "image/webp", "svg": "image/svg+xml",
	"mp3": "audio/mpeg", "wav": "audio/wav", "mp4": "video/mp4", "webm": "video/webm",
	"ttf": "font/ttf", "otf": "font/otf", "woff": "font/woff", "woff2": "font/woff2",
	"exe": "application/vnd.microsoft.portable-executable", "class": "application/java-vm",
}

// Binary is the generic fallback descriptor.
func Binary() Info { return known["application/octet-stream"] }

// Lookup resolves a canonical media type string. The second return is
// false when the type is not in the known table.
func Lookup(mediaType string) (Info, bool) {
	info, ok := known[strings.ToLower(strings.TrimSpace(mediaType))]
	return info, ok
}

// FromDeclared classifies by a declared Content-Type header value.
// Parameters such as charset are stripped first. Unknown but well-formed
// declarations synthesize a descriptor from the type prefix instead of
// failing.
func FromDeclared(contentType string) (Info, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		// Fall back to a manual parameter strip for sloppy headers.
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	if mediaType == "" {
		return Info{}, false
	}
	if info, ok := Lookup(mediaType); ok {
		return info, true
	}
	return synthesize(mediaType), true
}

// synthesize builds a descriptor for a declared but unrecognized media
// type, inferring facets from the type prefix and the extension from the
// subtype.
func synthesize(mediaType string) Info {
	info := Info{MIME: mediaType, Extension: extensionFromSubtype(mediaType)}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		info.Text = true
	case strings.HasPrefix(mediaType, "image/"):
		info.Binary, info.Image = true, true
	case strings.HasPrefix(mediaType, "audio/"):
		info.Binary, info.Audio = true, true
	case strings.HasPrefix(mediaType, "video/"):
		info.Binary, info.Video = true, true
	case strings.HasPrefix(mediaType, "font/"):
		info.Binary, info.Font = true, true
	default:
		info.Binary = true
	}
	return info
}

func extensionFromSubtype(mediaType string) string {
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || subtype == "" {
		return "bin"
	}
	// "svg+xml" -> "svg", "x-7z-compressed" -> "7z-compressed"
	subtype, _, _ = strings.Cut(subtype, "+")
	subtype = strings.TrimPrefix(subtype, "x-")
	subtype = strings.TrimPrefix(subtype, "vnd.")
	if subtype == "" {
		return "bin"
	}
	return subtype
}

// FromPath classifies by path or URL extension alone.
func FromPath(p string) (Info, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	// Drop query strings that survived the caller's parsing.
	ext, _, _ = strings.Cut(ext, "?")
	mediaType, ok := extToMIME[ext]
	if !ok {
		return Info{}, false
	}
	info, _ := Lookup(mediaType)
	return info, true
}

// FromResponse classifies an HTTP response. A recognized Content-Type
// header is authoritative; otherwise the body is sniffed.
func FromResponse(header http.Header, body []byte) Info {
	if ct := header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil {
			if info, ok := Lookup(mediaType); ok {
				return info
			}
		}
		// Unknown declared type: prefer sniffing, but keep the declared
		// descriptor when the buffer is inconclusive.
		if info, ok := sniff(body); ok {
			return info
		}
		if info, ok := FromDeclared(ct); ok {
			return info
		}
	}
	return FromBuffer(body)
}

// FromBuffer classifies a raw byte buffer by signature, then text
// heuristics, then the generic binary fallback.
func FromBuffer(body []byte) Info {
	if info, ok := sniff(body); ok {
		return info
	}
	return Binary()
}
