// Package util provides shared helper utilities.
package util

import "math/rand"

// RandomCombination returns k distinct values drawn uniformly from
// [0, n), per Jon Bentley's floating selection (CACM September 1987).
// The result is not sorted.
func RandomCombination(k, n int, r *rand.Rand) []int {
	if k <= 0 || n <= 0 || k > n {
		panic("util: invalid combination size")
	}

	if k == n {
		// a full selection is every value; return them in order
		v := make([]int, n)
		for i := range v {
			v[i] = i
		}
		return v
	}

	v := make([]int, 0, k)
	seen := make(map[int]struct{}, k)
	for j := n - k; j < n; j++ {
		x := r.Intn(j + 1)
		if _, dup := seen[x]; dup {
			x = j
		}
		v = append(v, x)
		seen[x] = struct{}{}
	}
	return v
}
