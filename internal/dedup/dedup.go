// Package dedup implements near-duplicate detection against recent history
// using fuzzy string matching.
package dedup

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// cheapCutoff is the character-ratio score below which a candidate is not
// worth the token-sort comparison. Candidates under the cutoff never
// contribute to the best match.
const cheapCutoff = 50

// Result is the outcome of one duplicate scan.
type Result struct {
	// Duplicate is true when some candidate reached the threshold.
	Duplicate bool
	// Score is the similarity of the best candidate considered (0-100).
	// It may be non-zero even when Duplicate is false.
	Score int
	// Match is the text of the best candidate considered.
	Match string
}

// Deduplicator scores new texts against a pool of recent ones.
type Deduplicator struct {
	threshold int
}

// New creates a Deduplicator. threshold is the similarity score (0-100)
// at or above which two texts count as duplicates.
func New(threshold int) *Deduplicator {
	return &Deduplicator{threshold: threshold}
}

// Check scans recent texts, most-recent-first, for a near-duplicate of text.
//
// Each candidate goes through a cheap character-level ratio first; only
// candidates scoring at least 50 there get the token-order-insensitive
// comparison. The scan stops at the first candidate whose token-sort score
// reaches the threshold, so ties are resolved by scan order.
func (d *Deduplicator) Check(text string, recent []string) Result {
	if text == "" || len(recent) == 0 {
		return Result{}
	}

	best := Result{}
	for _, candidate := range recent {
		if candidate == "" {
			continue
		}

		if fuzzy.Ratio(text, candidate) < cheapCutoff {
			continue
		}

		score := fuzzy.TokenSortRatio(text, candidate)
		if score > best.Score {
			best.Score = score
			best.Match = candidate
		}

		if best.Score >= d.threshold {
			best.Duplicate = true
			return best
		}
	}
	return best
}
