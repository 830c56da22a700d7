// Package facade provides the spatial data-access layer that sits between
// the routing engine and the raw CSR graph: a bounding-box index over every
// directed edge, used to answer "what roads are near this point" queries
// without scanning the whole graph.
package facade

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/tidwall/rtree"

	"github.com/chrouter/chrouter/pkg/geo"
	"github.com/chrouter/chrouter/pkg/graph"
)

// initialRadiusDeg is the starting half-width, in degrees, of the expanding
// box search. ~0.002° is roughly 220m at the equator.
const initialRadiusDeg = 0.002

// DataFacade indexes a graph's edges by bounding box for nearest-edge
// lookups, backed by an in-memory R-tree.
type DataFacade struct {
	g        *graph.Graph
	index    rtree.RTreeG[uint32]
	checksum uint32
}

// New builds a DataFacade over g, inserting every directed edge's bounding
// box into the R-tree keyed by its CSR edge index.
func New(g *graph.Graph) *DataFacade {
	f := &DataFacade{g: g, checksum: fingerprint(g)}
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			bound := geo.EdgeBound(g.NodeLat[u], g.NodeLon[u], g.NodeLat[v], g.NodeLon[v])
			f.index.Insert(
				[2]float64{bound.Min[0], bound.Min[1]},
				[2]float64{bound.Max[0], bound.Max[1]},
				e,
			)
		}
	}
	return f
}

// Graph returns the underlying CSR graph.
func (f *DataFacade) Graph() *graph.Graph {
	return f.g
}

// Checksum returns a fingerprint of the preprocessing artefact set backing
// this facade. A resolver hint is only honored when it was encoded against
// a matching checksum; otherwise it is silently discarded and the
// coordinate is re-snapped.
func (f *DataFacade) Checksum() uint32 {
	return f.checksum
}

// fingerprint derives a stable CRC32 fingerprint from a graph's node and
// edge counts, cheap enough to compute once at facade construction without
// walking every edge.
func fingerprint(g *graph.Graph) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], g.NumNodes)
	binary.LittleEndian.PutUint32(buf[4:8], g.NumEdges)
	return crc32.ChecksumIEEE(buf[:])
}

// EdgesNear returns CSR edge indices whose bounding box intersects an
// expanding square centred on (lat, lng), doubling the search radius until
// at least one candidate is found or maxRadiusDeg is exceeded.
func (f *DataFacade) EdgesNear(lat, lng, maxRadiusDeg float64) []uint32 {
	var out []uint32
	for radius := initialRadiusDeg; radius <= maxRadiusDeg; radius *= 2 {
		out = out[:0]
		f.index.Search(
			[2]float64{lng - radius, lat - radius},
			[2]float64{lng + radius, lat + radius},
			func(min, max [2]float64, data uint32) bool {
				out = append(out, data)
				return true
			},
		)
		if len(out) > 0 {
			return out
		}
	}
	return out
}
