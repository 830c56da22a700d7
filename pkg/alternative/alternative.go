// Package alternative implements the admissibility checks for the
// via-node alternative-path algorithm: given a candidate node settled by
// both the forward and backward search of a primary shortest-path query,
// decide whether routing through it produces an acceptable second route.
package alternative

// LengthFactor bounds how much longer an alternative may be than the
// primary route's upper bound before it is rejected outright.
const LengthFactor = 1.25

// SharingFactor bounds how much of an alternative may overlap with the
// primary route before it stops being a useful alternative.
const SharingFactor = 0.8

// Candidate is a via-node considered for the alternative route, with its
// exact forward/backward search keys from the primary query's heaps.
type Candidate struct {
	Node           uint32
	ForwardWeight  uint32 // fwd.key(v): distance from source to v
	BackwardWeight uint32 // rev.key(v): distance from v to target
}

// Admissible is a candidate that survived the approximate pre-filter,
// carrying its total length and shared weight with the primary route.
type Admissible struct {
	Node    uint32
	Length  uint32
	Sharing uint32
}

// PreFilter applies the length, sharing, and stretch bounds from the
// approximate admissibility check. sharedWeight reports, for a given
// candidate node, the edge weight the via-node path through it shares with
// the primary route (computed by the caller via partial path unpacking).
func PreFilter(candidates []Candidate, upperBound uint32, sharedWeight func(node uint32) uint32) []Admissible {
	lengthBound := scale(upperBound, LengthFactor)

	var out []Admissible
	for _, c := range candidates {
		length := c.ForwardWeight + c.BackwardWeight
		if length >= lengthBound {
			continue
		}

		sharing := sharedWeight(c.Node)
		if float64(sharing) > SharingFactor*float64(upperBound) {
			continue
		}

		if length-sharing >= scale(upperBound-sharing, LengthFactor) {
			continue
		}

		out = append(out, Admissible{Node: c.Node, Length: length, Sharing: sharing})
	}
	return out
}

// Best ranks admissible candidates by 2*length + sharing (OSRM's tie-break
// that favors shorter, less-overlapping alternatives) and returns the
// winner.
func Best(candidates []Admissible) (Admissible, bool) {
	if len(candidates) == 0 {
		return Admissible{}, false
	}
	best := candidates[0]
	bestScore := 2*uint64(best.Length) + uint64(best.Sharing)
	for _, c := range candidates[1:] {
		score := 2*uint64(c.Length) + uint64(c.Sharing)
		if score < bestScore {
			best, bestScore = c, score
		}
	}
	return best, true
}

func scale(v uint32, factor float64) uint32 {
	return uint32(float64(v) * factor)
}
