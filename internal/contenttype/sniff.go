package contenttype

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// signature is one magic-number table entry. A nil mask means an exact
// match; otherwise only bits set in the mask are compared, so 0x00 mask
// bytes act as wildcards.
type signature struct {
	offset  int
	pattern []byte
	mask    []byte
	mime    string
}

// signatures are checked in order; the first structural match wins.
// Longer and more specific patterns come before shorter prefixes (PE's
// two-byte "MZ" is last among binaries for that reason).
var signatures = []signature{
	{0, []byte("%PDF-"), nil, "application/pdf"},
	{0, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, nil, "image/png"},
	{0, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, nil, "application/x-ole-storage"},
	{0, []byte("7z\xBC\xAF\x27\x1C"), nil, "application/x-7z-compressed"},
	{0, []byte("Rar!\x1A\x07"), nil, "application/vnd.rar"},
	{0, []byte("RIFF\x00\x00\x00\x00WEBP"), []byte("\xFF\xFF\xFF\xFF\x00\x00\x00\x00\xFF\xFF\xFF\xFF"), "image/webp"},
	{0, []byte("RIFF\x00\x00\x00\x00WAVE"), []byte("\xFF\xFF\xFF\xFF\x00\x00\x00\x00\xFF\xFF\xFF\xFF"), "audio/wav"},
	{4, []byte("ftyp"), nil, "video/mp4"},
	{0, []byte{0x1A, 0x45, 0xDF, 0xA3}, nil, "video/webm"},
	{0, []byte("ID3"), nil, "audio/mpeg"},
	{0, []byte{0xFF, 0xFB}, nil, "audio/mpeg"},
	{0, []byte{0xFF, 0xF3}, nil, "audio/mpeg"},
	{0, []byte("PK\x03\x04"), nil, "application/zip"},
	{0, []byte{0x1F, 0x8B}, nil, "application/gzip"},
	{0, []byte("GIF87a"), nil, "image/gif"},
	{0, []byte("GIF89a"), nil, "image/gif"},
	{0, []byte{0xFF, 0xD8, 0xFF}, nil, "image/jpeg"},
	{0, []byte("wOF2"), nil, "font/woff2"},
	{0, []byte("wOFF"), nil, "font/woff"},
	{0, []byte("OTTO"), nil, "font/otf"},
	{0, []byte{0x00, 0x01, 0x00, 0x00}, nil, "font/ttf"},
	{0, []byte{0x7F, 'E', 'L', 'F'}, nil, "application/x-executable"},
	{0, []byte{0xCA, 0xFE, 0xBA, 0xBE}, nil, "application/java-vm"},
	{0, []byte("MZ"), nil, "application/vnd.microsoft.portable-executable"},
}

// utf BOM markers; a BOM proves text, after which the sample is
// sub-classified like any other text buffer.
var boms = [][]byte{
	{0xEF, 0xBB, 0xBF},
	{0xFF, 0xFE},
	{0xFE, 0xFF},
}

const sniffSampleSize = 1024

// sniff runs signature matching and text heuristics. The second return is
// false when nothing conclusive was found.
func sniff(body []byte) (Info, bool) {
	if len(body) == 0 {
		return Info{}, false
	}
	for _, sig := range signatures {
		if matchAt(body, sig) {
			info, _ := Lookup(sig.mime)
			return info, true
		}
	}
	for _, bom := range boms {
		if bytes.HasPrefix(body, bom) {
			return classifyText(bytes.TrimPrefix(body, bom)), true
		}
	}
	if info, ok := classifyMaybeText(body); ok {
		return info, true
	}
	return Info{}, false
}

func matchAt(body []byte, sig signature) bool {
	end := sig.offset + len(sig.pattern)
	if len(body) < end {
		return false
	}
	window := body[sig.offset:end]
	if sig.mask == nil {
		return bytes.Equal(window, sig.pattern)
	}
	for i := range sig.pattern {
		if window[i]&sig.mask[i] != sig.pattern[i]&sig.mask[i] {
			return false
		}
	}
	return true
}

// classifyMaybeText samples up to 1 KB and decides text-vs-binary: the
// sample must decode as UTF-8 at its rune boundaries and carry fewer than
// 5% NUL bytes.
func classifyMaybeText(body []byte) (Info, bool) {
	sample := body
	if len(sample) > sniffSampleSize {
		sample = sample[:sniffSampleSize]
		// Avoid cutting a rune in half at the sample boundary.
		for len(sample) > 0 && !utf8.Valid(sample) {
			sample = sample[:len(sample)-1]
			if len(sample) < sniffSampleSize-utf8.UTFMax {
				break
			}
		}
	}
	if !utf8.Valid(sample) {
		return Info{}, false
	}
	if nulDensity(sample) >= 0.05 {
		return Info{}, false
	}
	return classifyText(body), true
}

func nulDensity(sample []byte) float64 {
	if len(sample) == 0 {
		return 0
	}
	return float64(bytes.Count(sample, []byte{0})) / float64(len(sample))
}

// classifyText sub-classifies a text buffer as HTML, JSON, or plain text.
func classifyText(body []byte) Info {
	trimmed := bytes.TrimSpace(body)
	if looksLikeHTML(trimmed) {
		info, _ := Lookup("text/html")
		return info
	}
	if looksLikeJSON(trimmed) {
		info, _ := Lookup("application/json")
		return info
	}
	info, _ := Lookup("text/plain")
	return info
}

func looksLikeHTML(trimmed []byte) bool {
	lower := strings.ToLower(string(trimmed[:min(len(trimmed), sniffSampleSize)]))
	for _, marker := range []string{"<!doctype html", "<html", "<head", "<body", "<div", "<p>", "<title"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func looksLikeJSON(trimmed []byte) bool {
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	return json.Valid(trimmed)
}
