package fusion

import "fmt"

// FuseWeighted combines the given ranked lists by raw score instead of
// rank. Each list's scores are independently min-max normalized into
// [0, 1], multiplied by that list's weight, and summed per ID.
//
// Weights must be non-negative; missing weights default to 1.0 and extra
// weights are rejected. A list whose scores are all equal contributes a
// constant 1.0 for every item in it, which treats a flat list as uniformly
// relevant and avoids dividing by zero. Negative raw scores need no special
// casing: min-max shifts them into range with everything else.
//
// Output guarantees match Fuse: one entry per distinct ID, ordered by
// aggregate score descending with ties broken by ID ascending.
func FuseWeighted(lists [][]Result, weights []float64) ([]Fused, error) {
	if len(lists) == 0 {
		return nil, fmt.Errorf("%w: no input lists", ErrInvalidInput)
	}
	if len(weights) > len(lists) {
		return nil, fmt.Errorf("%w: %d weights for %d lists", ErrInvalidInput, len(weights), len(lists))
	}
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: weight %d is negative (%g)", ErrInvalidInput, i, w)
		}
	}

	scores := make(map[string]float64)
	payloads := make(map[string]Result)

	for listIdx, list := range lists {
		if len(list) == 0 {
			continue
		}

		weight := 1.0
		if listIdx < len(weights) {
			weight = weights[listIdx]
		}

		min, max := list[0].Score, list[0].Score
		for _, r := range list[1:] {
			if r.Score < min {
				min = r.Score
			}
			if r.Score > max {
				max = r.Score
			}
		}

		for _, r := range list {
			norm := 1.0
			if max > min {
				norm = (r.Score - min) / (max - min)
			}
			scores[r.ID] += weight * norm

			if _, seen := payloads[r.ID]; !seen {
				payloads[r.ID] = r
			}
		}
	}

	return assemble(scores, payloads), nil
}
