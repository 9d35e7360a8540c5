// Package routing provides routing functions. A routing
// function decides which backing stores receive a copy of
// a value.
package routing

import (
	"regexp"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Router maps a value to the labels of the stores that
// should hold a copy of it. Routers must be pure: the
// same value always produces the same labels. A router
// should return at least one label.
type Router func(value []byte) []string

// All routes every value to every store
func All(labels ...string) Router {
	return func(value []byte) []string {
		return append([]string(nil), labels...)
	}
}

// Hash routes each value to replicas stores chosen by
// rendezvous hashing: every label is scored with
// xxhash(label, value) and the highest scores win.
// Adding or removing a label only moves the values whose
// top scores involved that label.
func Hash(labels []string, replicas int) Router {
	labels = append([]string(nil), labels...)

	if replicas > len(labels) {
		replicas = len(labels)
	}

	return func(value []byte) []string {
		type scored struct {
			label string
			score uint64
		}

		scores := make([]scored, len(labels))

		for i, label := range labels {
			digest := xxhash.New()
			digest.WriteString(label)
			digest.Write([]byte{0})
			digest.Write(value)
			scores[i] = scored{label: label, score: digest.Sum64()}
		}

		sort.SliceStable(scores, func(i, j int) bool {
			if scores[i].score == scores[j].score {
				return scores[i].label < scores[j].label
			}

			return scores[i].score > scores[j].score
		})

		result := make([]string, replicas)

		for i := range result {
			result[i] = scores[i].label
		}

		return result
	}
}

// Rule routes values matching Match to Stores
type Rule struct {
	Match  *regexp.Regexp
	Stores []string
}

// Rules routes a value to the stores of every rule that
// matches it, in rule order and without duplicates. Values
// that match no rule go to the fallback stores.
func Rules(rules []Rule, fallback ...string) Router {
	rules = append([]Rule(nil), rules...)
	fallback = append([]string(nil), fallback...)

	return func(value []byte) []string {
		result := []string{}
		seen := map[string]bool{}

		for _, rule := range rules {
			if !rule.Match.Match(value) {
				continue
			}

			for _, label := range rule.Stores {
				if !seen[label] {
					seen[label] = true
					result = append(result, label)
				}
			}
		}

		if len(result) == 0 {
			return append(result, fallback...)
		}

		return result
	}
}
