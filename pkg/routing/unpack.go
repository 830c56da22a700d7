package routing

import "github.com/chrouter/chrouter/pkg/graph"

const maxUnpackDepth = 100

// PathEdge is a single original (unshortcut) directed edge in a resolved
// route, carrying the data needed downstream by the description pipeline.
type PathEdge struct {
	From, To   uint32
	Weight     uint32 // distance in millimeters
	Duration   uint32 // deciseconds
	NameID     uint32
	Roundabout bool
}

// unpackOverlayPath turns a sequence of CH overlay node ids (as produced by
// reconstructOverlayPath) into the full sequence of original-graph edges,
// recursively expanding every shortcut hop. Uses an explicit stack rather
// than recursion — shortcut chains in a large country-scale graph can be
// hundreds of levels deep.
func unpackOverlayPath(chg *graph.CHGraph, overlayNodes []uint32) []PathEdge {
	var result []PathEdge
	for i := 0; i+1 < len(overlayNodes); i++ {
		a, b := overlayNodes[i], overlayNodes[i+1]

		// Forward-upward edge a->b (rank[a] < rank[b]).
		if e := findEdge(chg.FwdFirstOut, chg.FwdHead, a, b); e != noNode {
			unpackForwardEdge(chg, e, &result)
			continue
		}

		// Otherwise the hop must be a backward-upward edge, stored in the
		// backward graph as b->a (see buildOverlay in pkg/ch).
		if e := findEdge(chg.BwdFirstOut, chg.BwdHead, b, a); e != noNode {
			unpackBackwardEdge(chg, e, &result)
			continue
		}
	}
	return result
}

type unpackStackItem struct {
	edgeIdx uint32
	depth   int
}

// unpackForwardEdge iteratively unpacks a forward-graph edge into original edges.
func unpackForwardEdge(chg *graph.CHGraph, edgeIdx uint32, result *[]PathEdge) {
	stack := []unpackStackItem{{edgeIdx, 0}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.depth > maxUnpackDepth {
			continue // safety bound
		}

		middle := chg.FwdMiddle[item.edgeIdx]
		from := findCSRSource(chg.FwdFirstOut, item.edgeIdx)
		head := chg.FwdHead[item.edgeIdx]

		if middle < 0 {
			*result = append(*result, PathEdge{
				From:       from,
				To:         head,
				Weight:     chg.FwdWeight[item.edgeIdx],
				Duration:   chg.FwdDuration[item.edgeIdx],
				NameID:     chg.FwdNameID[item.edgeIdx],
				Roundabout: chg.FwdRoundabout[item.edgeIdx],
			})
			continue
		}

		// Shortcut from->head via mid: unpack from->mid, then mid->head.
		mid := uint32(middle)
		fromMidEdge := findEdge(chg.FwdFirstOut, chg.FwdHead, from, mid)
		midHeadEdge := findEdge(chg.FwdFirstOut, chg.FwdHead, mid, head)

		if fromMidEdge != noNode && midHeadEdge != noNode {
			// Push in reverse order so from->mid is processed first.
			stack = append(stack, unpackStackItem{midHeadEdge, item.depth + 1})
			stack = append(stack, unpackStackItem{fromMidEdge, item.depth + 1})
		}
	}
}

// unpackBackwardEdge iteratively unpacks a backward-graph edge.
// A backward edge stored as u->v represents the original-direction edge
// v->u (see buildOverlay in pkg/ch), so emitted PathEdges are reversed
// relative to the CSR source/target.
func unpackBackwardEdge(chg *graph.CHGraph, edgeIdx uint32, result *[]PathEdge) {
	stack := []unpackStackItem{{edgeIdx, 0}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.depth > maxUnpackDepth {
			continue
		}

		middle := chg.BwdMiddle[item.edgeIdx]
		from := findCSRSource(chg.BwdFirstOut, item.edgeIdx) // u
		head := chg.BwdHead[item.edgeIdx]                    // v

		if middle < 0 {
			*result = append(*result, PathEdge{
				From:       head, // actual direction v->u
				To:         from,
				Weight:     chg.BwdWeight[item.edgeIdx],
				Duration:   chg.BwdDuration[item.edgeIdx],
				NameID:     chg.BwdNameID[item.edgeIdx],
				Roundabout: chg.BwdRoundabout[item.edgeIdx],
			})
			continue
		}

		// The shortcut represents head->mid->from in the original graph.
		mid := uint32(middle)
		headMidEdge := findEdge(chg.BwdFirstOut, chg.BwdHead, mid, head)
		midFromEdge := findEdge(chg.BwdFirstOut, chg.BwdHead, from, mid)

		if headMidEdge != noNode && midFromEdge != noNode {
			stack = append(stack, unpackStackItem{midFromEdge, item.depth + 1})
			stack = append(stack, unpackStackItem{headMidEdge, item.depth + 1})
		}
	}
}

// findEdge finds an edge from source to target in a CSR graph.
func findEdge(firstOut, head []uint32, source, target uint32) uint32 {
	start := firstOut[source]
	end := firstOut[source+1]
	for e := start; e < end; e++ {
		if head[e] == target {
			return e
		}
	}
	return noNode
}

// findCSRSource finds the source node for an edge index in a CSR graph.
func findCSRSource(firstOut []uint32, edgeIdx uint32) uint32 {
	n := uint32(len(firstOut) - 1)
	lo, hi := uint32(0), n
	for lo < hi {
		mid := (lo + hi) / 2
		if firstOut[mid+1] <= edgeIdx {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
