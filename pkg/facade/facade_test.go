package facade_test

import (
	"testing"

	"github.com/paulmach/osm"

	"github.com/chrouter/chrouter/pkg/facade"
	"github.com/chrouter/chrouter/pkg/graph"
	osmparser "github.com/chrouter/chrouter/pkg/osm"
)

func buildTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, Weight: 100},
			{FromNodeID: 20, ToNodeID: 10, Weight: 100},
			{FromNodeID: 20, ToNodeID: 30, Weight: 200},
			{FromNodeID: 30, ToNodeID: 20, Weight: 200},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.300, 20: 1.300, 30: 1.300},
		NodeLon: map[osm.NodeID]float64{10: 103.800, 20: 103.801, 30: 103.802},
	}
	return graph.Build(result)
}

func TestEdgesNearFindsCandidates(t *testing.T) {
	g := buildTestGraph(t)
	f := facade.New(g)

	candidates := f.EdgesNear(1.300, 103.8005, 0.05)
	if len(candidates) == 0 {
		t.Fatal("expected at least one candidate edge near the indexed graph")
	}
}

func TestEdgesNearFarPointReturnsEmptyWithinRadius(t *testing.T) {
	g := buildTestGraph(t)
	f := facade.New(g)

	// Far from any indexed edge, radius capped small enough to never expand
	// into the data.
	candidates := f.EdgesNear(50.0, 50.0, 0.01)
	if len(candidates) != 0 {
		t.Errorf("expected no candidates far from indexed data, got %d", len(candidates))
	}
}
