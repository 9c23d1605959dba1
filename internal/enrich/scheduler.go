package enrich

import "github.com/glueous/reader/internal/document"

// Tier is the priority class of a scheduled page.
type Tier int

const (
	// TierVisible pages are currently rendered.
	TierVisible Tier = 1
	// TierSelectable pages are reachable by scrolling but not rendered.
	TierSelectable Tier = 2
)

// Candidate is a page chosen by the scheduler with its tier.
type Candidate struct {
	Key  document.PageKey
	Tier Tier
}

// StateLookup reports the processing state of a page.
type StateLookup func(document.PageKey) PageState

// NextBatch returns the pages that need enrichment, highest priority first:
// unscanned visible pages in the order given, then unscanned selectable pages
// not already listed, in the order given. Each page appears at most once.
func NextBatch(visible, selectable []document.PageKey, lookup StateLookup) []document.PageKey {
	plan := Plan(visible, selectable, lookup)
	keys := make([]document.PageKey, len(plan))
	for i, c := range plan {
		keys[i] = c.Key
	}
	return keys
}

// Plan is NextBatch with the tier of each page attached.
func Plan(visible, selectable []document.PageKey, lookup StateLookup) []Candidate {
	seen := make(map[document.PageKey]struct{}, len(visible)+len(selectable))
	var out []Candidate

	add := func(keys []document.PageKey, tier Tier) {
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if lookup(k) != StateUnscanned {
				continue
			}
			out = append(out, Candidate{Key: k, Tier: tier})
		}
	}
	add(visible, TierVisible)
	add(selectable, TierSelectable)
	return out
}
