package routing

import "github.com/chrouter/chrouter/pkg/alternative"

// findAlternative looks for an admissible second route through a via-node
// touched (with a finite distance) by both the forward and backward search
// of the primary query,
// per the approximate pre-filter followed by exact ranking.
//
// Sharing is computed exactly (via full path unpacking and edge-set
// intersection) rather than by the approximate partial-unpack OSRM uses for
// its pre-filter; this repo folds the approximate and exact sharing passes
// into one, which is strictly more precise at the cost of unpacking more
// candidates than the two-phase version would.
func (e *Engine) findAlternative(qs *QueryState, meetNode uint32, mu uint32, primaryEdges []PathEdge) *RouteResult {
	primarySet := edgeSet(primaryEdges)

	var candidates []alternative.Candidate
	for _, v := range qs.Touched {
		if v == meetNode {
			continue
		}
		if qs.DistFwd[v] == noMaxDist || qs.DistBwd[v] == noMaxDist {
			continue
		}
		candidates = append(candidates, alternative.Candidate{
			Node:           v,
			ForwardWeight:  qs.DistFwd[v],
			BackwardWeight: qs.DistBwd[v],
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	// viaPathCache avoids re-unpacking the same via-node twice across the
	// pre-filter's sharedWeight callback and the final winner selection.
	viaPathCache := make(map[uint32][]PathEdge, len(candidates))
	pathFor := func(v uint32) []PathEdge {
		if p, ok := viaPathCache[v]; ok {
			return p
		}
		overlay := e.reconstructOverlayPath(v, qs.PredFwd, qs.PredBwd)
		p := unpackOverlayPath(e.chg, overlay)
		viaPathCache[v] = p
		return p
	}

	admissible := alternative.PreFilter(candidates, mu, func(v uint32) uint32 {
		return sharedWeight(primarySet, pathFor(v))
	})
	if len(admissible) == 0 {
		return nil
	}

	winner, ok := alternative.Best(admissible)
	if !ok {
		return nil
	}

	altEdges := pathFor(winner.Node)
	if len(altEdges) == 0 {
		return nil
	}

	segments := e.buildSegments(altEdges)
	var totalDist, totalDuration float64
	for _, pe := range altEdges {
		totalDist += float64(pe.Weight)
		totalDuration += float64(pe.Duration) / 10.0
	}

	return &RouteResult{
		TotalDistanceMeters:  totalDist / 1000.0,
		TotalDurationSeconds: totalDuration,
		Segments:             segments,
	}
}

// noMaxDist mirrors math.MaxUint32, duplicated here to avoid importing math
// solely for one comparison constant.
const noMaxDist = 1<<32 - 1

type edgeKey struct{ from, to uint32 }

func edgeSet(edges []PathEdge) map[edgeKey]uint32 {
	m := make(map[edgeKey]uint32, len(edges))
	for _, e := range edges {
		m[edgeKey{e.From, e.To}] = e.Weight
	}
	return m
}

// sharedWeight sums the weight of edges that appear in both the primary
// path's edge set and the candidate path.
func sharedWeight(primary map[edgeKey]uint32, candidate []PathEdge) uint32 {
	var sum uint32
	for _, e := range candidate {
		if w, ok := primary[edgeKey{e.From, e.To}]; ok {
			sum += w
		}
	}
	return sum
}
