package domain

import "sort"

// RankScores orders entries by points descending, earlier submissions first on
// ties, and returns at most n of them. The input is not modified.
func RankScores(entries []ScoreEntry, n int) []ScoreEntry {
	ranked := make([]ScoreEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		if !ranked[i].SubmittedAt.Equal(ranked[j].SubmittedAt) {
			return ranked[i].SubmittedAt.Before(ranked[j].SubmittedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})

	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
