package multiplex

import (
	"sort"
)

// Rank returns the distinct values in values ordered by how
// often they occur, most frequent first. Values that occur
// equally often keep the order in which they were first seen.
func Rank(values [][]byte) [][]byte {
	type tally struct {
		value []byte
		count int
	}

	tallies := []*tally{}
	seen := map[string]*tally{}

	for _, value := range values {
		t, ok := seen[string(value)]

		if !ok {
			t = &tally{value: value}
			seen[string(value)] = t
			tallies = append(tallies, t)
		}

		t.count++
	}

	sort.SliceStable(tallies, func(i, j int) bool {
		return tallies[i].count > tallies[j].count
	})

	ranked := make([][]byte, len(tallies))

	for i, t := range tallies {
		ranked[i] = t.value
	}

	return ranked
}
