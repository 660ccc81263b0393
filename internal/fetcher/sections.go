package fetcher

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SectionCount is the number of rounds of a double round-robin for teamCount teams.
func SectionCount(teamCount int) int {
	if teamCount%2 == 0 {
		return (teamCount - 1) * 2
	}
	return teamCount * 2
}

// SectionRange returns 1..SectionCount(teamCount).
func SectionRange(teamCount int) []int {
	n := SectionCount(teamCount)
	if n < 1 {
		return []int{}
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// ParseSections parses an operator section list such as "1-3,5,7-10" into a
// sorted, de-duplicated slice.
func ParseSections(list string) ([]int, error) {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi := part, part
		if i := strings.Index(part, "-"); i >= 0 {
			lo, hi = strings.TrimSpace(part[:i]), strings.TrimSpace(part[i+1:])
		}
		from, err := strconv.Atoi(lo)
		if err != nil || from < 1 {
			return nil, fmt.Errorf("invalid section %q", part)
		}
		to, err := strconv.Atoi(hi)
		if err != nil || to < from {
			return nil, fmt.Errorf("invalid section range %q", part)
		}
		for s := from; s <= to; s++ {
			seen[s] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no sections in %q", list)
	}

	out := make([]int, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Ints(out)
	return out, nil
}
