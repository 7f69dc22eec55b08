// Package diff turns a freshly scraped comment sequence plus the stored
// sequence for the same item into the suffix of genuinely new comments.
//
// Diffing is count-based positional truncation, not content matching: if the
// fresh sequence is longer than the stored one, exactly the trailing entries
// beyond the stored length are new. Edits or deletions that do not grow the
// count are invisible. This keeps the snapshot format compatible with
// databases produced by earlier versions, which store no content hashes.
package diff

import (
	"sort"

	"github.com/geckyzz/nyaa-comments/internal/comment"
)

// Result is the outcome of one diff: the sequence to store (full
// replacement) and the comments not previously recorded.
type Result struct {
	// Updated is the fresh sequence, timestamp-sorted with positions
	// reassigned. It always replaces the stored sequence wholesale.
	Updated []comment.Comment
	// New holds the comments beyond the previously stored count, in
	// timestamp order. Empty when the count did not grow.
	New []comment.Comment
}

// Compute diffs a fresh scrape against the stored sequence.
//
// The scraped input is stable-sorted by timestamp (site order breaks ties)
// and positions are recomputed from scratch over the whole sequence, so
// site-side renumbering never corrupts stored positions. A shrink reports
// nothing new but still replaces the stored sequence with the shorter one.
func Compute(scraped, stored []comment.Comment) Result {
	updated := make([]comment.Comment, len(scraped))
	copy(updated, scraped)
	sort.SliceStable(updated, func(i, j int) bool {
		return updated[i].Timestamp < updated[j].Timestamp
	})
	for i := range updated {
		updated[i].Pos = i + 1
	}

	res := Result{Updated: updated}
	if len(updated) > len(stored) {
		res.New = updated[len(stored):]
	}
	return res
}
