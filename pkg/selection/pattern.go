// Copyright 2025 The utzip authors.
//
// Glob-style pattern matching over archive-relative names, per
// spec.md §4.6: "`*` matches any run of characters (including path
// separators unless `no-wildcards-boundary` is set), `?` matches one
// character, `[set]` optional."

package selection

// MatchPattern reports whether name matches pattern. When boundary is
// true (the `no-wildcards-boundary` option is set), '*' stops at a '/'
// instead of crossing it -- spec.md §9's Open Question keeps this
// rule scoped to patterns that actually contain a wildcard, which
// matchGlob's structure does naturally: a pattern with no '*' or '?'
// just falls through to a literal compare regardless of boundary.
func MatchPattern(pattern, name string, boundary bool) bool {
	return matchGlob(pattern, name, boundary)
}

// matchGlob is a classic greedy wildcard matcher extended with a
// bracket-set token, backtracking to the last '*' on mismatch.
func matchGlob(pattern, name string, boundary bool) bool {
	var pIdx, nIdx int
	starIdx, matchIdx := -1, -1

	for nIdx < len(name) {
		if pIdx < len(pattern) {
			switch pattern[pIdx] {
			case '*':
				starIdx = pIdx
				matchIdx = nIdx
				pIdx++
				continue
			case '?':
				if !boundary || name[nIdx] != '/' {
					pIdx++
					nIdx++
					continue
				}
			case '[':
				if end, ok := findSetEnd(pattern, pIdx); ok {
					if matchSet(pattern[pIdx:end+1], name[nIdx]) {
						pIdx = end + 1
						nIdx++
						continue
					}
				} else if pattern[pIdx] == name[nIdx] {
					pIdx++
					nIdx++
					continue
				}
			default:
				if pattern[pIdx] == name[nIdx] {
					pIdx++
					nIdx++
					continue
				}
			}
		}
		// Mismatch: backtrack to the most recent '*', if any.
		if starIdx >= 0 && !(boundary && name[matchIdx] == '/') {
			pIdx = starIdx + 1
			matchIdx++
			nIdx = matchIdx
			continue
		}
		return false
	}

	for pIdx < len(pattern) && pattern[pIdx] == '*' {
		pIdx++
	}
	return pIdx == len(pattern)
}

// findSetEnd locates the ']' closing a '[' opened at pattern[start],
// accounting for a leading '!' or ']' that is itself a set member.
func findSetEnd(pattern string, start int) (int, bool) {
	i := start + 1
	if i < len(pattern) && (pattern[i] == '!' || pattern[i] == '^') {
		i++
	}
	if i < len(pattern) && pattern[i] == ']' {
		i++
	}
	for i < len(pattern) {
		if pattern[i] == ']' {
			return i, true
		}
		i++
	}
	return 0, false
}

// matchSet reports whether c matches the bracket expression set
// (including the closing ']').
func matchSet(set string, c byte) bool {
	body := set[1 : len(set)-1]
	negate := false
	if len(body) > 0 && (body[0] == '!' || body[0] == '^') {
		negate = true
		body = body[1:]
	}
	matched := false
	for i := 0; i < len(body); i++ {
		if i+2 < len(body) && body[i+1] == '-' {
			if body[i] <= c && c <= body[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if body[i] == c {
			matched = true
		}
	}
	return matched != negate
}

// MatchAny reports whether name matches any of patterns; an empty
// patterns list matches nothing.
func MatchAny(patterns []string, name string, boundary bool) bool {
	for _, p := range patterns {
		if MatchPattern(p, name, boundary) {
			return true
		}
	}
	return false
}

// Included applies spec.md §4.6's include/exclude rule: "Include list
// (if non-empty) selects; exclude list removes."
func Included(include, exclude []string, name string, boundary bool) bool {
	if len(include) > 0 && !MatchAny(include, name, boundary) {
		return false
	}
	if MatchAny(exclude, name, boundary) {
		return false
	}
	return true
}
