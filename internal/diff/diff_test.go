package diff

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geckyzz/nyaa-comments/internal/comment"
)

func mkComment(id int, ts int64, msg string) comment.Comment {
	return comment.Comment{
		ID:        id,
		Timestamp: ts,
		User:      comment.User{Username: "user"},
		Message:   msg,
	}
}

func TestComputeFirstSight(t *testing.T) {
	c1 := mkComment(1, 100, "first")

	res := Compute([]comment.Comment{c1}, nil)

	require.Len(t, res.Updated, 1)
	require.Equal(t, 1, res.Updated[0].Pos)
	// First sight still reports the full sequence as new; dump-mode
	// suppression is the caller's decision.
	require.Len(t, res.New, 1)
}

func TestComputeGrowthReportsSuffix(t *testing.T) {
	c1 := mkComment(1, 100, "one")
	c2 := mkComment(2, 200, "two")
	c3 := mkComment(3, 300, "three")

	stored := Compute([]comment.Comment{c1}, nil).Updated
	res := Compute([]comment.Comment{c1, c2, c3}, stored)

	require.Len(t, res.New, 2)
	require.Equal(t, 2, res.New[0].ID)
	require.Equal(t, 3, res.New[1].ID)
	require.Equal(t, 2, res.New[0].Pos)
	require.Equal(t, 3, res.New[1].Pos)
	require.Len(t, res.Updated, 3)
}

func TestComputeSortsByTimestampBeforeDiffing(t *testing.T) {
	// Scraped arrives in site order, not time order.
	c3 := mkComment(3, 300, "newest")
	c1 := mkComment(1, 100, "oldest")
	c2 := mkComment(2, 200, "middle")

	res := Compute([]comment.Comment{c3, c1, c2}, nil)

	require.Equal(t, []int{1, 2, 3}, []int{res.Updated[0].ID, res.Updated[1].ID, res.Updated[2].ID})
	for i, c := range res.Updated {
		require.Equal(t, i+1, c.Pos)
	}
}

func TestComputeStableTieBreakKeepsSiteOrder(t *testing.T) {
	a := mkComment(10, 100, "a")
	b := mkComment(11, 100, "b")

	res := Compute([]comment.Comment{a, b}, nil)

	require.Equal(t, 10, res.Updated[0].ID)
	require.Equal(t, 11, res.Updated[1].ID)
}

func TestComputeShrinkReplacesWithoutNew(t *testing.T) {
	c1 := mkComment(1, 100, "one")
	c2 := mkComment(2, 200, "two")

	stored := Compute([]comment.Comment{c1, c2}, nil).Updated
	res := Compute([]comment.Comment{c1}, stored)

	require.Empty(t, res.New)
	require.Len(t, res.Updated, 1)
	require.Equal(t, 1, res.Updated[0].Pos)
}

func TestComputeEqualLengthReportsNothing(t *testing.T) {
	c1 := mkComment(1, 100, "one")
	edited := mkComment(1, 100, "one, edited upstream")

	stored := Compute([]comment.Comment{c1}, nil).Updated
	res := Compute([]comment.Comment{edited}, stored)

	// Count-based diffing: a content edit with no count growth is invisible.
	require.Empty(t, res.New)
	require.Equal(t, "one, edited upstream", res.Updated[0].Message)
}

func TestComputeIdempotent(t *testing.T) {
	c1 := mkComment(1, 100, "one")
	c2 := mkComment(2, 200, "two")

	first := Compute([]comment.Comment{c1, c2}, nil)
	second := Compute([]comment.Comment{c1, c2}, first.Updated)

	require.Empty(t, second.New)
	require.Equal(t, first.Updated, second.Updated)
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	scraped := []comment.Comment{mkComment(2, 200, "b"), mkComment(1, 100, "a")}

	_ = Compute(scraped, nil)

	require.Equal(t, 2, scraped[0].ID, "input slice must keep site order")
	require.Zero(t, scraped[0].Pos)
}
