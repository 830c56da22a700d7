package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/chrouter/chrouter/pkg/coord"
	"github.com/chrouter/chrouter/pkg/description"
	"github.com/chrouter/chrouter/pkg/facade"
	"github.com/chrouter/chrouter/pkg/geo"
	"github.com/chrouter/chrouter/pkg/graph"
	"github.com/chrouter/chrouter/pkg/phantom"
)

// DefaultOverviewZoom is the simplification zoom level used for the route's
// encoded overview polyline unless overridden. A mid zoom balances geometry
// fidelity against payload size for typical web-map display.
const DefaultOverviewZoom = 15

// ErrNoRoute is returned when no route exists between the two points.
var ErrNoRoute = errors.New("no route found")

// ErrPointTooFar is returned when the query point is too far from any road.
var ErrPointTooFar = phantom.ErrPointTooFar

// ErrTooFewWaypoints is returned when a route is requested for fewer than
// two coordinates.
var ErrTooFewWaypoints = errors.New("at least two waypoints are required")

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// Segment represents one named-road leg of the route result: a maximal run
// of consecutive edges sharing a street name (or all unnamed), annotated
// with the instruction for entering it.
type Segment struct {
	Name            string
	NameID          uint32
	Instruction     string
	Roundabout      bool
	RoundaboutExit  int // exit ordinal just left, >0 only on the segment immediately after a roundabout run
	DistanceMeters  float64
	DurationSeconds float64
	Geometry        []LatLng
}

// RouteResult is the output of a route query.
type RouteResult struct {
	TotalDistanceMeters  float64
	TotalDurationSeconds float64
	Segments             []Segment
	RouteName1           string       // primary street name for the route, e.g. for a summary like "Orchard Road"
	RouteName2           string       // secondary street name, e.g. for "Orchard Road and Scotts Road"
	OverviewPolyline     string       // Google-encoded, zoom-simplified overview geometry
	SketchPolyline       string       // Google-encoded, schematized display geometry (empty unless sketch mode is enabled)
	Alternative          *RouteResult // admissible second route, if one was found
	HintChecksum         uint32       // facade fingerprint the Hints were encoded against
	Hints                []phantom.Hint
}

// Router is the interface for route queries.
type Router interface {
	// Route computes the shortest path through an ordered sequence of at
	// least two waypoints. For k waypoints the search is applied to each
	// consecutive pair (leg), and the resulting packed paths are
	// concatenated left to right.
	Route(ctx context.Context, waypoints []LatLng) (*RouteResult, error)
}

// HintedRouter is implemented by routers that can accept a previously
// issued resolver hint per waypoint to skip re-snapping, and that expose
// the checksum those hints must be encoded against.
type HintedRouter interface {
	Router
	RouteWithHints(ctx context.Context, waypoints []LatLng, hints []phantom.Hint) (*RouteResult, error)
	Checksum() uint32
}

// Engine implements Router using a CH graph.
type Engine struct {
	chg       *graph.CHGraph
	origGraph *graph.Graph // for geometry and phantom-node resolution
	resolver  *phantom.Resolver
	qsPool    sync.Pool

	overviewZoom        int
	alternativesEnabled bool

	sketchEnabled     bool
	sketchGranularity int
	sketchMinSegment  float64 // degrees
}

// NewEngine creates a routing engine from a CH graph and the original graph.
func NewEngine(chg *graph.CHGraph, origGraph *graph.Graph) *Engine {
	e := &Engine{
		chg:                 chg,
		origGraph:           origGraph,
		resolver:            phantom.NewResolver(facade.New(origGraph)),
		overviewZoom:        DefaultOverviewZoom,
		alternativesEnabled: true,
	}
	e.qsPool.New = func() any {
		return NewQueryState(chg.NumNodes)
	}
	return e
}

// SetOverviewZoom changes the Douglas-Peucker zoom level used to simplify
// the overview polyline for subsequent queries.
func (e *Engine) SetOverviewZoom(zoom int) {
	e.overviewZoom = zoom
}

// SetAlternativeRoutes enables or disables the via-node alternative-path
// search for subsequent queries.
func (e *Engine) SetAlternativeRoutes(enabled bool) {
	e.alternativesEnabled = enabled
}

// SetSketchMode enables the optional schematized "sketch" overview geometry
// (spec.md's alternative-route schematization pass), snapping bearings to
// one of granularity evenly-spaced grid angles and folding segments shorter
// than minSegmentMeters into their neighbor. Passing granularity <= 0
// disables sketch mode.
func (e *Engine) SetSketchMode(granularity int, minSegmentMeters float64) {
	e.sketchEnabled = granularity > 0
	e.sketchGranularity = granularity
	e.sketchMinSegment = minSegmentMeters / metersPerDegreeApprox
}

// metersPerDegreeApprox converts a meter threshold into an approximate
// degrees-of-latitude threshold for the sketch pass's minimum segment
// length, which operates directly on lat/lng deltas.
const metersPerDegreeApprox = 111_320.0

// Checksum returns the fingerprint of the preprocessing data this engine's
// resolver was built over; hints must carry this value to be honored.
func (e *Engine) Checksum() uint32 {
	return e.resolver.Checksum()
}

// Route computes the shortest path through an ordered sequence of
// waypoints, with no resolver hints.
func (e *Engine) Route(ctx context.Context, waypoints []LatLng) (*RouteResult, error) {
	return e.route(ctx, waypoints, nil)
}

// RouteWithHints behaves like Route but additionally accepts a parallel
// slice of previously issued hints (one per waypoint; the zero value means
// "no hint for this waypoint"), trying each before falling back to a fresh
// R-tree resolve.
func (e *Engine) RouteWithHints(ctx context.Context, waypoints []LatLng, hints []phantom.Hint) (*RouteResult, error) {
	return e.route(ctx, waypoints, hints)
}

// route resolves every waypoint, then applies the bidirectional CH search
// to each consecutive pair (leg), concatenating the overlay-node paths left
// to right per leg (spec's multi-leg composition), with the query heaps
// cleared and reused between legs rather than reallocated.
func (e *Engine) route(ctx context.Context, waypoints []LatLng, hints []phantom.Hint) (*RouteResult, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	// Step 1: Resolve every waypoint to a phantom node, preferring a valid
	// hint over a fresh R-tree lookup.
	snaps := make([]phantom.PhantomNode, len(waypoints))
	outHints := make([]phantom.Hint, len(waypoints))
	checksum := e.resolver.Checksum()
	for i, wp := range waypoints {
		var hint phantom.Hint
		if i < len(hints) {
			hint = hints[i]
		}
		snap, used, err := e.resolver.ResolveWithHint(wp.Lat, wp.Lng, hint)
		if err != nil {
			return nil, err
		}
		snaps[i] = snap
		if used {
			outHints[i] = hint
		} else {
			outHints[i] = phantom.EncodeHint(snap, checksum)
		}
	}

	qs := e.qsPool.Get().(*QueryState)
	defer func() {
		qs.Reset()
		e.qsPool.Put(qs)
	}()

	// Step 2: Run one bidirectional CH search per leg, concatenating the
	// overlay node paths. A leg's reconstructed path starts and ends on the
	// same node ids used to seed it, so when leg i's last node matches leg
	// i+1's first node (the shared via waypoint), the duplicate is dropped.
	var overlayNodes []uint32
	var totalMillimeters uint64

	var lastLegMu uint32
	var lastLegMeet uint32
	var lastLegQS *QueryState // only valid when there is exactly one leg

	for leg := 0; leg+1 < len(snaps); leg++ {
		qs.Reset()
		seedForward(qs, e.origGraph, snaps[leg])
		seedBackward(qs, e.origGraph, snaps[leg+1])

		mu, meetNode := e.runCHDijkstra(ctx, qs)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if meetNode == noNode || mu == math.MaxUint32 {
			return nil, ErrNoRoute
		}
		totalMillimeters += uint64(mu)
		lastLegMu, lastLegMeet, lastLegQS = mu, meetNode, qs

		legNodes := e.reconstructOverlayPath(meetNode, qs.PredFwd, qs.PredBwd)
		if len(overlayNodes) > 0 && len(legNodes) > 0 && overlayNodes[len(overlayNodes)-1] == legNodes[0] {
			legNodes = legNodes[1:]
		}
		overlayNodes = append(overlayNodes, legNodes...)
	}

	// Step 3: Unpack shortcuts into the original edge sequence.
	pathEdges := unpackOverlayPath(e.chg, overlayNodes)
	if len(pathEdges) == 0 {
		return nil, ErrNoRoute
	}

	// Step 4: Group edges into named segments and synthesize instructions.
	segments := e.buildSegments(pathEdges)

	var totalDuration float64
	for _, pe := range pathEdges {
		totalDuration += float64(pe.Duration) / 10.0
	}

	mySegs := namedSegmentsFor(segments)
	polyline := description.EncodePolyline(description.Simplify(fixedPointsFor(segments), e.overviewZoom))

	// The via-node alternative search reuses the bidirectional search space
	// of a single leg (spec.md §4.4); it is only meaningful for a two-point
	// route, so k-waypoint requests never carry an alternative.
	var alt *RouteResult
	var altSegs []description.NamedSegment
	if e.alternativesEnabled && len(snaps) == 2 {
		alt = e.findAlternative(lastLegQS, lastLegMeet, lastLegMu, pathEdges)
		if alt != nil {
			altSegs = namedSegmentsFor(alt.Segments)
			alt.OverviewPolyline = description.EncodePolyline(description.Simplify(fixedPointsFor(alt.Segments), e.overviewZoom))
			if e.sketchEnabled {
				alt.SketchPolyline = e.sketchPolyline(alt.Segments)
			}
		}
	}

	routeNames := description.ExtractRouteNames(mySegs, altSegs)
	if alt != nil {
		altNames := description.ExtractRouteNames(altSegs, mySegs)
		alt.RouteName1, alt.RouteName2 = altNames.Name1, altNames.Name2
	}

	result := &RouteResult{
		TotalDistanceMeters:  float64(totalMillimeters) / 1000.0,
		TotalDurationSeconds: totalDuration,
		Segments:             segments,
		RouteName1:           routeNames.Name1,
		RouteName2:           routeNames.Name2,
		OverviewPolyline:     polyline,
		Alternative:          alt,
		HintChecksum:         checksum,
		Hints:                outHints,
	}
	if e.sketchEnabled {
		result.SketchPolyline = e.sketchPolyline(segments)
	}
	return result, nil
}

// sketchPolyline runs the schematization pass over a route's geometry and
// re-encodes it as a polyline, for display alongside (not instead of) the
// true overview geometry.
func (e *Engine) sketchPolyline(segments []Segment) string {
	var sketchPts []description.SketchPoint
	for _, s := range segments {
		for _, ll := range s.Geometry {
			sketchPts = append(sketchPts, description.SketchPoint{Lat: ll.Lat, Lng: ll.Lng})
		}
	}
	schematized := description.Schematize(sketchPts, e.sketchGranularity, e.sketchMinSegment)
	fixed := make([]coord.FixedPoint, len(schematized))
	for i, p := range schematized {
		fixed[i] = coord.FromFloat(p.Lat, p.Lng)
	}
	return description.EncodePolyline(fixed)
}

// namedSegmentsFor adapts Segments into description.NamedSegment for route
// name extraction.
func namedSegmentsFor(segments []Segment) []description.NamedSegment {
	out := make([]description.NamedSegment, len(segments))
	for i, s := range segments {
		out[i] = description.NamedSegment{
			NameID:   s.NameID,
			Name:     s.Name,
			Position: i,
			Length:   s.DistanceMeters,
		}
	}
	return out
}

// fixedPointsFor flattens every segment's geometry into a single fixed-point
// sequence for overview simplification and polyline encoding.
func fixedPointsFor(segments []Segment) []coord.FixedPoint {
	var out []coord.FixedPoint
	for _, s := range segments {
		for _, ll := range s.Geometry {
			out = append(out, coord.FromFloat(ll.Lat, ll.Lng))
		}
	}
	return out
}

// buildSegments groups a resolved edge path into maximal runs sharing a
// street name, each annotated with the geometry for that run and the
// instruction for turning onto it from the previous segment.
func (e *Engine) buildSegments(pathEdges []PathEdge) []Segment {
	names := e.chg.Names

	var segments []Segment
	var curNodes []uint32
	var curDistMM, curDurDs uint32
	var curNameID uint32
	var curRoundaboutRun int
	var curRoundaboutExit int // exit ordinal attached to this segment, if it's the one right after a roundabout run

	// roundaboutEdgeCount tracks exits passed across a roundabout run,
	// independent of segment boundaries: a roundabout can span several
	// named segments (each arm may carry its own street name), and the
	// ordinal is only resolved once the path actually leaves the circle.
	var roundaboutEdgeCount int

	flush := func() {
		if len(curNodes) < 2 {
			return
		}
		segments = append(segments, Segment{
			Name:            names.Name(curNameID),
			NameID:          curNameID,
			Roundabout:      curRoundaboutRun == len(curNodes)-1,
			RoundaboutExit:  curRoundaboutExit,
			DistanceMeters:  float64(curDistMM) / 1000.0,
			DurationSeconds: float64(curDurDs) / 10.0,
			Geometry:        e.buildGeometry(curNodes),
		})
	}

	for i, pe := range pathEdges {
		newSegment := i == 0 || pe.NameID != curNameID
		if newSegment {
			flush()
			curNodes = curNodes[:0]
			curDistMM, curDurDs = 0, 0
			curNameID = pe.NameID
			curRoundaboutRun = 0
			curRoundaboutExit = 0
			if !pe.Roundabout && roundaboutEdgeCount > 0 {
				curRoundaboutExit = roundaboutEdgeCount
				roundaboutEdgeCount = 0
			}
		}
		if len(curNodes) == 0 {
			curNodes = append(curNodes, pe.From)
		}
		curNodes = append(curNodes, pe.To)
		curDistMM += pe.Weight
		curDurDs += pe.Duration
		if pe.Roundabout {
			curRoundaboutRun++
			roundaboutEdgeCount++
		}
	}
	flush()

	e.annotateInstructions(segments)
	return segments
}

// annotateInstructions fills in the turn instruction for every segment after
// the first, derived from the bearing change between the incoming and
// outgoing segment's first geometry step.
func (e *Engine) annotateInstructions(segments []Segment) {
	if len(segments) == 0 {
		return
	}
	segments[0].Instruction = "Head " + geo.CompassDirection(segmentBearing(segments[0]))

	for i := 1; i < len(segments); i++ {
		if segments[i].RoundaboutExit > 0 {
			segments[i].Instruction = fmt.Sprintf("enter-roundabout-%d", segments[i].RoundaboutExit)
			continue
		}
		if segments[i].Roundabout {
			segments[i].Instruction = "Enter the roundabout"
			continue
		}
		prevBearing := segmentBearing(segments[i-1])
		nextBearing := segmentBearing(segments[i])
		segments[i].Instruction = turnInstruction(prevBearing, nextBearing)
	}
}

// segmentBearing returns the initial bearing of a segment's geometry.
func segmentBearing(s Segment) float64 {
	if len(s.Geometry) < 2 {
		return 0
	}
	a, b := s.Geometry[0], s.Geometry[1]
	return geo.Bearing(a.Lat, a.Lng, b.Lat, b.Lng)
}

// turnInstruction classifies a bearing change into an OSRM-style turn
// phrase. Buckets mirror the classic TurnInstructions categories, adapted
// to work from bearings rather than a precomputed turn angle.
func turnInstruction(prevBearing, nextBearing float64) string {
	delta := math.Mod(nextBearing-prevBearing+540, 360) - 180 // in [-180, 180)

	switch {
	case delta > -10 && delta < 10:
		return "Continue straight"
	case delta >= 10 && delta < 45:
		return "Turn slightly right"
	case delta >= 45 && delta < 135:
		return "Turn right"
	case delta >= 135:
		return "Turn sharply right"
	case delta <= -10 && delta > -45:
		return "Turn slightly left"
	case delta <= -45 && delta > -135:
		return "Turn left"
	default:
		return "Turn sharply left"
	}
}

// reconstructOverlayPath builds the full overlay node path from
// source seed → meetNode → target seed.
func (e *Engine) reconstructOverlayPath(meetNode uint32, predFwd, predBwd []uint32) []uint32 {
	// Forward path: meetNode ← ... ← source seed (trace backwards, then reverse).
	fwdPath := make([]uint32, 0, 16)
	node := meetNode
	for {
		fwdPath = append(fwdPath, node)
		pred := predFwd[node]
		if pred == noNode {
			break
		}
		node = pred
	}
	// Reverse to get source → meetNode.
	for i, j := 0, len(fwdPath)-1; i < j; i, j = i+1, j-1 {
		fwdPath[i], fwdPath[j] = fwdPath[j], fwdPath[i]
	}

	// Backward path: meetNode → ... → target seed.
	// predBwd[v] = u means original direction v → u (toward target).
	node = meetNode
	for {
		pred := predBwd[node]
		if pred == noNode {
			break
		}
		fwdPath = append(fwdPath, pred)
		node = pred
	}

	return fwdPath
}

// buildGeometry converts a sequence of original graph node IDs into lat/lng
// coordinates, including intermediate shape points from edge geometry.
func (e *Engine) buildGeometry(nodes []uint32) []LatLng {
	if len(nodes) == 0 {
		return nil
	}

	g := e.origGraph
	// Estimate ~2 geometry points per node (node + avg shape points).
	geom := make([]LatLng, 0, len(nodes)*2)

	// Add first node.
	geom = append(geom, LatLng{Lat: g.NodeLat[nodes[0]], Lng: g.NodeLon[nodes[0]]})

	for i := 0; i < len(nodes)-1; i++ {
		u := nodes[i]
		v := nodes[i+1]

		// Look up edge u→v in original graph for intermediate shape points.
		if g.GeoFirstOut != nil {
			edgeIdx := findEdge(g.FirstOut, g.Head, u, v)
			if edgeIdx != noNode && edgeIdx < uint32(len(g.GeoFirstOut)-1) {
				geoStart := g.GeoFirstOut[edgeIdx]
				geoEnd := g.GeoFirstOut[edgeIdx+1]
				for k := geoStart; k < geoEnd; k++ {
					geom = append(geom, LatLng{
						Lat: g.GeoShapeLat[k],
						Lng: g.GeoShapeLon[k],
					})
				}
			}
		}

		// Add target node coordinates.
		geom = append(geom, LatLng{Lat: g.NodeLat[v], Lng: g.NodeLon[v]})
	}

	return geom
}

// seedForward seeds the forward PQ with the start snap point's reachable nodes.
func seedForward(qs *QueryState, g *graph.Graph, snap phantom.PhantomNode) {
	u := snap.NodeU
	v := snap.NodeV
	weight := g.Weight[snap.EdgeIdx]

	// Distance from snap point to v (forward along edge u→v).
	dv := uint32(math.Round(float64(weight) * (1 - snap.Ratio)))
	if dv < math.MaxUint32 {
		qs.touchFwd(v, dv)
		qs.FwdPQ.Push(v, dv)
	}

	// Distance from snap point to u (backward along edge u→v).
	du := uint32(math.Round(float64(weight) * snap.Ratio))
	if du < math.MaxUint32 {
		qs.touchFwd(u, du)
		qs.FwdPQ.Push(u, du)
	}
}

// seedBackward seeds the backward PQ with the end snap point's reachable nodes.
func seedBackward(qs *QueryState, g *graph.Graph, snap phantom.PhantomNode) {
	u := snap.NodeU
	v := snap.NodeV
	weight := g.Weight[snap.EdgeIdx]

	// Distance from u to snap point (forward direction).
	du := uint32(math.Round(float64(weight) * snap.Ratio))
	if du < math.MaxUint32 {
		qs.touchBwd(u, du)
		qs.BwdPQ.Push(u, du)
	}

	// Distance from v to snap point (backward direction).
	dv := uint32(math.Round(float64(weight) * (1 - snap.Ratio)))
	if dv < math.MaxUint32 {
		qs.touchBwd(v, dv)
		qs.BwdPQ.Push(v, dv)
	}
}

// runCHDijkstra runs bidirectional CH Dijkstra with predecessor tracking.
func (e *Engine) runCHDijkstra(ctx context.Context, qs *QueryState) (uint32, uint32) {
	mu := uint32(math.MaxUint32)
	meetNode := uint32(noNode)

	iterations := uint32(0)

	for {
		// PeekDist returns MaxUint32 for empty PQ, so this also handles
		// the empty-queue case without separate Len() checks.
		fwdMin := qs.FwdPQ.PeekDist()
		bwdMin := qs.BwdPQ.PeekDist()
		if fwdMin >= mu && bwdMin >= mu {
			break
		}

		// Check context cancellation periodically (bitmask avoids modulo).
		iterations++
		if iterations&255 == 0 {
			if ctx.Err() != nil {
				return mu, meetNode
			}
		}

		// Forward step.
		if fwdMin < mu {
			item := qs.FwdPQ.Pop()
			u := item.Node
			d := item.Dist

			if d <= qs.DistFwd[u] {
				// Check meet condition.
				if qs.DistBwd[u] < math.MaxUint32 {
					candidate := d + qs.DistBwd[u]
					if candidate < mu {
						mu = candidate
						meetNode = u
					}
				}

				// Stall-on-demand: if a higher-ranked neighbor already
				// reaches u more cheaply than this pop, u's upward edges
				// can't contribute to a shortest path and relaxing them is
				// wasted work.
				if !e.stallForward(qs, u, d) {
					// Relax forward upward edges.
					fStart := e.chg.FwdFirstOut[u]
					fEnd := e.chg.FwdFirstOut[u+1]
					for ei := fStart; ei < fEnd; ei++ {
						v := e.chg.FwdHead[ei]
						newDist := d + e.chg.FwdWeight[ei]
						if newDist < qs.DistFwd[v] {
							qs.touchFwd(v, newDist)
							qs.FwdPQ.Push(v, newDist)
							qs.PredFwd[v] = u
						}
					}
				}
			}
		}

		// Re-check backward min against (potentially updated) mu.
		if qs.BwdPQ.PeekDist() < mu {
			item := qs.BwdPQ.Pop()
			u := item.Node
			d := item.Dist

			if d <= qs.DistBwd[u] {
				// Check meet condition.
				if qs.DistFwd[u] < math.MaxUint32 {
					candidate := qs.DistFwd[u] + d
					if candidate < mu {
						mu = candidate
						meetNode = u
					}
				}

				// Stall-on-demand, mirrored for the backward search.
				if !e.stallBackward(qs, u, d) {
					// Relax backward upward edges.
					bStart := e.chg.BwdFirstOut[u]
					bEnd := e.chg.BwdFirstOut[u+1]
					for ei := bStart; ei < bEnd; ei++ {
						v := e.chg.BwdHead[ei]
						newDist := d + e.chg.BwdWeight[ei]
						if newDist < qs.DistBwd[v] {
							qs.touchBwd(v, newDist)
							qs.BwdPQ.Push(v, newDist)
							qs.PredBwd[v] = u
						}
					}
				}
			}
		}
	}

	return mu, meetNode
}

// stallForward reports whether settling u at tentative forward distance d
// can be skipped: if a higher-ranked neighbor w already reaches u via a
// downward edge more cheaply than d, any path continuing up from u this
// pop cannot be part of the shortest path. Downward edges into u are
// stored as Bwd entries whose head is the original edge's other endpoint.
func (e *Engine) stallForward(qs *QueryState, u, d uint32) bool {
	bStart := e.chg.BwdFirstOut[u]
	bEnd := e.chg.BwdFirstOut[u+1]
	for ei := bStart; ei < bEnd; ei++ {
		w := e.chg.BwdHead[ei]
		if qs.DistFwd[w] == math.MaxUint32 {
			continue
		}
		if qs.DistFwd[w]+e.chg.BwdWeight[ei] < d {
			return true
		}
	}
	return false
}

// stallBackward mirrors stallForward for the backward search, using Fwd
// entries as the backward search's downward edges.
func (e *Engine) stallBackward(qs *QueryState, u, d uint32) bool {
	fStart := e.chg.FwdFirstOut[u]
	fEnd := e.chg.FwdFirstOut[u+1]
	for ei := fStart; ei < fEnd; ei++ {
		w := e.chg.FwdHead[ei]
		if qs.DistBwd[w] == math.MaxUint32 {
			continue
		}
		if qs.DistBwd[w]+e.chg.FwdWeight[ei] < d {
			return true
		}
	}
	return false
}
