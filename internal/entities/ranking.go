package entities

import (
	"cmp"
	"fmt"
	"slices"
)

// RankedID is an attribute id with its current rank
type RankedID struct {
	ID   int64
	Rank int
}

// RankChange is a rank reassignment produced by Renumber
type RankChange struct {
	ID   int64
	From int
	To   int
}

// Renumber computes the changes that turn ranks into a dense 1..N sequence.
// Attributes are ordered by (rank, id), so unranked attributes (rank 0) come
// first in id order and ranked ones keep their relative order.
// Only attributes whose rank actually changes are returned, in that order.
func Renumber(ranks []RankedID) []RankChange {
	ordered := slices.Clone(ranks)
	slices.SortFunc(ordered, func(a, b RankedID) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	var changes []RankChange
	for i, r := range ordered {
		if r.Rank != i+1 {
			changes = append(changes, RankChange{ID: r.ID, From: r.Rank, To: i + 1})
		}
	}
	return changes
}

// ValidateOrder checks an explicit ordering: ids must be positive and unique
func ValidateOrder(ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("%w: attribute id must be positive, got %d", ErrInvalidArgument, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: attribute %d listed twice", ErrInvalidArgument, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
