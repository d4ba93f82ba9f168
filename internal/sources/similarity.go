package sources

import (
	"sort"
	"strings"

	"github.com/hyperifyio/goharvest/internal/content"
)

// SimilarityWeights holds the signal weights used by duplicate detection.
// The defaults are conventional starting points, not derived constants;
// override them through Config when a corpus needs different tuning.
type SimilarityWeights struct {
	URL            float64
	TitleExact     float64
	TitleSubstring float64
	Domain         float64
	ContentHash    float64
	Threshold      float64
}

// DefaultWeights returns the standard weight set.
func DefaultWeights() SimilarityWeights {
	return SimilarityWeights{
		URL:            0.5,
		TitleExact:     0.3,
		TitleSubstring: 0.15,
		Domain:         0.2,
		ContentHash:    0.2,
		Threshold:      0.8,
	}
}

// Similarity scores how likely two sources describe the same origin.
// The computation is symmetric: Similarity(a, b) == Similarity(b, a).
// Identical canonical URLs always score at least the duplicate threshold.
func (w SimilarityWeights) Similarity(a, b content.Source) (float64, string) {
	score := 0.0
	reason := ""

	sameURL := CanonicalURL(a.URL) == CanonicalURL(b.URL)
	if sameURL {
		score += w.URL
		reason = "Identical URL"
	}

	titleA := strings.ToLower(strings.TrimSpace(a.Title))
	titleB := strings.ToLower(strings.TrimSpace(b.Title))
	switch {
	case titleA != "" && titleA == titleB:
		score += w.TitleExact
	case titleA != "" && titleB != "" &&
		(strings.Contains(titleA, titleB) || strings.Contains(titleB, titleA)):
		score += w.TitleSubstring
	}

	sameDomain := a.Domain != "" && a.Domain == b.Domain
	if sameDomain {
		score += w.Domain
	}

	sameHash := a.Metadata.ContentHash != "" && a.Metadata.ContentHash == b.Metadata.ContentHash
	if sameHash {
		score += w.ContentHash
	}

	if score > 1.0 {
		score = 1.0
	}
	if sameURL && score < w.Threshold {
		score = w.Threshold
	}

	if reason == "" {
		switch {
		case sameHash && sameDomain:
			reason = "Same domain with identical content"
		case sameHash:
			reason = "Identical content hash"
		case sameDomain:
			reason = "Same domain with similar content"
		default:
			reason = "Similar title"
		}
	}
	return score, reason
}

// detectDuplicates computes pairwise similarity over the given sources and
// groups pairs at or above the threshold. Each unordered pair is scored
// once; groups are merged transitively so a chain of duplicates surfaces
// as one group.
func detectDuplicates(list []content.Source, w SimilarityWeights) []content.DuplicateGroup {
	parent := make(map[string]string, len(list))
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(x, y string) {
		parent[find(x)] = find(y)
	}
	for _, s := range list {
		parent[s.ID] = s.ID
	}

	type pairInfo struct {
		score  float64
		reason string
	}
	best := make(map[string]pairInfo)

	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			score, reason := w.Similarity(list[i], list[j])
			if score < w.Threshold {
				continue
			}
			union(list[i].ID, list[j].ID)
			root := find(list[i].ID)
			if cur, ok := best[root]; !ok || score > cur.score {
				best[root] = pairInfo{score: score, reason: reason}
			}
		}
	}

	members := make(map[string][]string)
	for _, s := range list {
		root := find(s.ID)
		members[root] = append(members[root], s.ID)
	}

	groups := make([]content.DuplicateGroup, 0)
	for root, ids := range members {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		info := best[root]
		// Roots can move during union; pick the recorded score for any
		// member that carried one.
		if info.score == 0 {
			for _, id := range ids {
				if cur, ok := best[id]; ok && cur.score > info.score {
					info = cur
				}
			}
		}
		groups = append(groups, content.DuplicateGroup{
			SourceIDs:  ids,
			Score:      info.score,
			Reason:     info.reason,
			Suggestion: "Merge these sources and keep the earliest import",
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Score > groups[j].Score })
	return groups
}
