package suggest

// Fuzzy matching runs only when prefix matching left too few candidates.
// Preferences, in order: exact match > prefix match > smaller edit distance.
// Short inputs are never corrected and by default only tokens sharing the first
// letter are considered.

// fuzzyBudget is the edit distance allowed for a query token of n runes.
// Shorter tokens get less room so "ab" does not match half the corpus.
func fuzzyBudget(n, maxDistance, minQueryLen int) int {
	if n < minQueryLen || maxDistance <= 0 {
		return 0
	}
	return min((n-1)/2, maxDistance)
}

// editDistance is the Levenshtein distance between q and t, or between q and the
// closest prefix of t when prefix is set. Results above limit are reported as limit+1.
func editDistance(q, t []rune, limit int, prefix bool) int {
	m := len(q)
	if prefix && len(t) > m+limit {
		// longer prefixes of t are at least limit+1 away
		t = t[:m+limit]
	}
	n := len(t)
	if !prefix && abs(m-n) > limit {
		return limit + 1
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= n; j++ {
			cost := 1
			if q[i-1] == t[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, curr = curr, prev
	}

	best := prev[n]
	if prefix {
		for j := 0; j <= n; j++ {
			if prev[j] < best {
				best = prev[j]
			}
		}
	}
	if best > limit {
		return limit + 1
	}
	return best
}

// levenshteinDistance is the unbounded edit distance.
func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	return editDistance(ra, rb, max(len(ra), len(rb)), false)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
