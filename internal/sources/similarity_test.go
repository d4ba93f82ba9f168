package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperifyio/goharvest/internal/content"
)

func src(id, url, title, hash string) content.Source {
	return content.Source{
		ID:       id,
		URL:      url,
		Domain:   DomainOf(url),
		Title:    title,
		Metadata: content.SourceMetadata{ContentHash: hash},
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	t.Parallel()
	w := DefaultWeights()
	a := src("a", "https://a.com/x", "Intro to Go", "h1")
	b := src("b", "https://b.com/y", "Intro to Go generics", "h2")

	sa, _ := w.Similarity(a, b)
	sb, _ := w.Similarity(b, a)
	assert.Equal(t, sa, sb, "similarity must be symmetric")
}

func TestSimilarity_IdenticalURLAtLeastThreshold(t *testing.T) {
	t.Parallel()
	w := DefaultWeights()
	// No titles, no hashes: raw signals sum below the threshold, but the
	// identical canonical URL forces a duplicate verdict.
	a := src("a", "https://a.com/x", "", "")
	b := src("b", "https://a.com/x?utm_source=tw", "", "")

	score, reason := w.Similarity(a, b)
	assert.GreaterOrEqual(t, score, w.Threshold)
	assert.Equal(t, "Identical URL", reason)
}

func TestSimilarity_TitleSignals(t *testing.T) {
	t.Parallel()
	w := DefaultWeights()

	exact, _ := w.Similarity(
		src("a", "https://a.com/1", "Go Patterns", ""),
		src("b", "https://b.com/2", "go patterns", ""))
	assert.InDelta(t, w.TitleExact, exact, 1e-9, "case-insensitive exact title match")

	substr, _ := w.Similarity(
		src("a", "https://a.com/1", "Go Patterns", ""),
		src("b", "https://b.com/2", "Go Patterns and Practices", ""))
	assert.InDelta(t, w.TitleSubstring, substr, 1e-9)
}

func TestSimilarity_SameDomainIdenticalContent(t *testing.T) {
	t.Parallel()
	w := DefaultWeights()
	a := src("a", "https://a.com/one", "", "samehash")
	b := src("b", "https://a.com/two", "", "samehash")

	score, reason := w.Similarity(a, b)
	assert.InDelta(t, w.Domain+w.ContentHash, score, 1e-9)
	assert.Equal(t, "Same domain with identical content", reason)
}

func TestSimilarity_CappedAtOne(t *testing.T) {
	t.Parallel()
	w := DefaultWeights()
	a := src("a", "https://a.com/x", "Same Title", "h")
	b := src("b", "https://a.com/x", "Same Title", "h")
	score, _ := w.Similarity(a, b)
	assert.LessOrEqual(t, score, 1.0)
}

func TestDetectDuplicates_Groups(t *testing.T) {
	t.Parallel()
	w := DefaultWeights()
	list := []content.Source{
		src("s1", "https://a.com/x", "Post", "h1"),
		src("s2", "https://a.com/x?utm_source=tw", "Post", "h1"),
		src("s3", "https://other.com/unrelated", "Different Thing", "h9"),
	}
	groups := detectDuplicates(list, w)
	if assert.Len(t, groups, 1) {
		assert.ElementsMatch(t, []string{"s1", "s2"}, groups[0].SourceIDs)
		assert.GreaterOrEqual(t, groups[0].Score, w.Threshold)
		assert.NotEmpty(t, groups[0].Suggestion)
	}
}

func TestDetectDuplicates_TransitiveChain(t *testing.T) {
	t.Parallel()
	// s1~s2 share a hash and domain, s2~s3 share a hash and domain, so all
	// three collapse into one group even though s1 and s3 differ more.
	w := SimilarityWeights{URL: 0.5, Domain: 0.4, ContentHash: 0.4, Threshold: 0.8}
	list := []content.Source{
		src("s1", "https://a.com/1", "", "h"),
		src("s2", "https://a.com/2", "", "h"),
		src("s3", "https://a.com/3", "", "h"),
	}
	groups := detectDuplicates(list, w)
	if assert.Len(t, groups, 1) {
		assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, groups[0].SourceIDs)
	}
}

func TestDetectDuplicates_NoFalsePositives(t *testing.T) {
	t.Parallel()
	list := []content.Source{
		src("s1", "https://a.com/x", "First", "h1"),
		src("s2", "https://b.com/y", "Second", "h2"),
	}
	assert.Empty(t, detectDuplicates(list, DefaultWeights()))
}
