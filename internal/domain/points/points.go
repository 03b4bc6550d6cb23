// Package points holds the Irish Points table: the fixed conversion
// from a placement rank within one judge's card to a points value.
package points

// MaxRankedPlace is the deepest placement that still earns points.
const MaxRankedPlace = 50

// table maps rank r to points via table[r-1]. Ranks 1..4 carry the
// championship premium, 5..12 taper, 13..50 descend by one to 1.
var table = [MaxRankedPlace]float64{
	100, 75, 65, 60, 56, 53, 50, 47, 45, 43, // 1..10
	41, 39, 38, 37, 36, 35, 34, 33, 32, 31, // 11..20
	30, 29, 28, 27, 26, 25, 24, 23, 22, 21, // 21..30
	20, 19, 18, 17, 16, 15, 14, 13, 12, 11, // 31..40
	10, 9, 8, 7, 6, 5, 4, 3, 2, 1, // 41..50
}

// ForRank returns the points awarded for holding rank within a single
// judge's card. Ranks outside 1..50 earn zero; there is no error path.
func ForRank(rank int) float64 {
	if rank < 1 || rank > MaxRankedPlace {
		return 0
	}
	return table[rank-1]
}

// Sum returns the total points the table awards across ranks 1..n.
// Tie splitting redistributes but never creates or destroys points, so
// any judge card of n competitors awards exactly Sum(n) in total.
func Sum(n int) float64 {
	var total float64
	for r := 1; r <= n; r++ {
		total += ForRank(r)
	}
	return total
}
