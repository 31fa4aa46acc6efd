package playlist

import (
	"sort"
	"strings"
)

// matchTerm is one substring rule in a priority tier. A group claimed
// by a term is never reconsidered by later terms or tiers.
type matchTerm struct {
	substr  string
	exclude []string
}

// priorityTiers drives group ordering: regional groups first, then the
// major sports broadcasters, in fixed precedence. The bare "ir" term
// excludes country names that merely contain it.
var priorityTiers = [][]matchTerm{
	{
		{substr: "iran"},
		{substr: "persian"},
		{substr: "ir", exclude: []string{"iraq", "ireland"}},
	},
	{
		{substr: "bein"},
		{substr: "sport"},
		{substr: "spor"},
		{substr: "canal+"},
		{substr: "dazn"},
		{substr: "paramount"},
	},
}

// OrderGroups returns a permutation of groups: tier matches in term
// order, then everything else alphabetically. Matching is
// case-insensitive substring containment, but the returned names keep
// their original casing. The input is copied and sorted first, so the
// result is identical for any permutation of the same set.
func OrderGroups(groups []string) []string {
	working := make([]string, len(groups))
	copy(working, groups)
	sort.Slice(working, func(i, j int) bool {
		li, lj := strings.ToLower(working[i]), strings.ToLower(working[j])
		if li != lj {
			return li < lj
		}
		return working[i] < working[j]
	})

	ordered := make([]string, 0, len(working))
	claimed := make(map[string]bool, len(working))
	for _, tier := range priorityTiers {
		for _, term := range tier {
			for _, g := range working {
				if claimed[g] {
					continue
				}
				lower := strings.ToLower(g)
				if !strings.Contains(lower, term.substr) {
					continue
				}
				if containsAny(lower, term.exclude) {
					continue
				}
				claimed[g] = true
				ordered = append(ordered, g)
			}
		}
	}
	for _, g := range working {
		if !claimed[g] {
			ordered = append(ordered, g)
		}
	}
	return ordered
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
