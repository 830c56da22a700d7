package routing

import (
	"testing"

	"github.com/chrouter/chrouter/pkg/description"
	"github.com/chrouter/chrouter/pkg/graph"
)

// newTestEngineForSegments builds an Engine with just enough graph state
// for buildSegments/annotateInstructions: a name table and flat node
// coordinates, no CH overlay or spatial index.
func newTestEngineForSegments(t *testing.T, numNodes uint32, names []string) *Engine {
	t.Helper()
	interner := graph.NewNameInterner()
	ids := make([]uint32, len(names))
	for i, n := range names {
		ids[i] = interner.Intern(n)
	}

	lat := make([]float64, numNodes)
	lon := make([]float64, numNodes)
	for i := range lat {
		lat[i] = 1.300 + float64(i)*0.001
		lon[i] = 103.800 + float64(i)*0.001
	}

	e := &Engine{
		chg:       &graph.CHGraph{Names: interner.Build()},
		origGraph: &graph.Graph{NumNodes: numNodes, NodeLat: lat, NodeLon: lon},
	}
	_ = ids
	return e
}

func TestBuildSegmentsRoundaboutExitOrdinal(t *testing.T) {
	// 4-exit roundabout entered at exit-0, left at exit-3: lead-in edge,
	// three consecutive roundabout edges (passing three exits), then the
	// edge that actually leaves the circle.
	e := newTestEngineForSegments(t, 6, []string{"Lead Road", "", "Exit Street"})

	pathEdges := []PathEdge{
		{From: 0, To: 1, Weight: 100, Duration: 10, NameID: 1},
		{From: 1, To: 2, Weight: 50, Duration: 5, NameID: 2, Roundabout: true},
		{From: 2, To: 3, Weight: 50, Duration: 5, NameID: 2, Roundabout: true},
		{From: 3, To: 4, Weight: 50, Duration: 5, NameID: 2, Roundabout: true},
		{From: 4, To: 5, Weight: 100, Duration: 10, NameID: 3},
	}

	segments := e.buildSegments(pathEdges)
	if len(segments) != 3 {
		t.Fatalf("len(segments) = %d, want 3", len(segments))
	}
	if !segments[1].Roundabout {
		t.Error("segments[1].Roundabout = false, want true")
	}
	if segments[2].RoundaboutExit != 3 {
		t.Errorf("segments[2].RoundaboutExit = %d, want 3", segments[2].RoundaboutExit)
	}
	if segments[2].Instruction != "enter-roundabout-3" {
		t.Errorf("segments[2].Instruction = %q, want enter-roundabout-3", segments[2].Instruction)
	}
}

func TestBuildSegmentsNonRoundaboutHasNoExitOrdinal(t *testing.T) {
	e := newTestEngineForSegments(t, 3, []string{"Orchard Road", "Scotts Road"})

	pathEdges := []PathEdge{
		{From: 0, To: 1, Weight: 100, Duration: 10, NameID: 1},
		{From: 1, To: 2, Weight: 100, Duration: 10, NameID: 2},
	}

	segments := e.buildSegments(pathEdges)
	if len(segments) != 2 {
		t.Fatalf("len(segments) = %d, want 2", len(segments))
	}
	if segments[1].RoundaboutExit != 0 {
		t.Errorf("segments[1].RoundaboutExit = %d, want 0", segments[1].RoundaboutExit)
	}
	if segments[1].Instruction == "" {
		t.Error("expected a turn instruction for the second segment")
	}
}

func TestNamedSegmentsForPropagatesNameID(t *testing.T) {
	segments := []Segment{
		{Name: "Orchard Road", NameID: 7, DistanceMeters: 100},
	}
	out := namedSegmentsFor(segments)
	if len(out) != 1 || out[0].NameID != 7 {
		t.Errorf("namedSegmentsFor = %+v, want NameID 7", out)
	}
}

func TestRouteNamesCrossReferenceOtherRoute(t *testing.T) {
	shortest := []description.NamedSegment{
		{NameID: 1, Name: "Orchard Road", Position: 0, Length: 500},
		{NameID: 2, Name: "Scotts Road", Position: 1, Length: 1500},
	}
	alt := []description.NamedSegment{
		{NameID: 2, Name: "Scotts Road", Position: 0, Length: 300},
		{NameID: 3, Name: "Grange Road", Position: 1, Length: 1200},
	}

	shortestNames := description.ExtractRouteNames(shortest, alt)
	if shortestNames.Name1 != "Orchard Road" {
		t.Errorf("shortest Name1 = %q, want Orchard Road", shortestNames.Name1)
	}

	// Grange Road is alt's longest segment, so it is alt's primary name;
	// Scotts Road, the only other candidate, is excluded from
	// consideration as alt's secondary name because it also appears on the
	// shortest route (shared in both, so it can't distinguish them).
	altNames := description.ExtractRouteNames(alt, shortest)
	if altNames.Name1 != "Grange Road" {
		t.Errorf("alt Name1 = %q, want Grange Road", altNames.Name1)
	}
	if altNames.Name2 != "" {
		t.Errorf("alt Name2 = %q, want empty (Scotts Road shared with shortest)", altNames.Name2)
	}
}
