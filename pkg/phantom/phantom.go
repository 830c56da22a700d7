// Package phantom resolves free-form query coordinates onto the road
// network: the "phantom node" problem of pinning a point that almost never
// lies exactly on a graph node to the nearest edge, expressed as a virtual
// node at a ratio along that edge.
package phantom

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"

	"github.com/chrouter/chrouter/pkg/facade"
	"github.com/chrouter/chrouter/pkg/geo"
)

// maxSnapDistMeters bounds how far a query point may be from the nearest
// road before resolution fails outright.
const maxSnapDistMeters = 500.0

// maxSearchRadiusDeg bounds the facade's expanding box search; ~0.05° is
// roughly 5.5km at the equator, comfortably wider than maxSnapDistMeters.
const maxSearchRadiusDeg = 0.05

// ErrPointTooFar is returned when the query point is too far from any road.
var ErrPointTooFar = errors.New("point too far from road")

// PhantomNode is a query coordinate resolved onto an edge of the road
// network, expressed as an interpolation ratio between the edge's two
// endpoints.
type PhantomNode struct {
	EdgeIdx uint32  // CSR index into the original edge arrays
	NodeU   uint32  // source node of the edge
	NodeV   uint32  // target node of the edge
	Ratio   float64 // 0.0 = at NodeU, 1.0 = at NodeV
	Dist    float64 // distance in meters from the query point to the phantom
}

// Resolver maps lat/lng coordinates to PhantomNodes using a DataFacade's
// spatial index.
type Resolver struct {
	facade *facade.DataFacade
}

// NewResolver builds a Resolver over the given facade.
func NewResolver(f *facade.DataFacade) *Resolver {
	return &Resolver{facade: f}
}

// Resolve finds the nearest road edge to (lat, lng) and returns the
// corresponding PhantomNode.
func (r *Resolver) Resolve(lat, lng float64) (PhantomNode, error) {
	g := r.facade.Graph()
	candidates := r.facade.EdgesNear(lat, lng, maxSearchRadiusDeg)

	bestDist := math.Inf(1)
	var best PhantomNode
	found := false

	for _, e := range candidates {
		u := findSource(g.FirstOut, e)
		v := g.Head[e]

		dist, ratio := geo.PointToSegmentDist(
			lat, lng,
			g.NodeLat[u], g.NodeLon[u],
			g.NodeLat[v], g.NodeLon[v],
		)

		if dist < bestDist {
			bestDist = dist
			found = true
			best = PhantomNode{
				EdgeIdx: e,
				NodeU:   u,
				NodeV:   v,
				Ratio:   ratio,
				Dist:    dist,
			}
		}
	}

	if !found || bestDist > maxSnapDistMeters {
		return PhantomNode{}, ErrPointTooFar
	}

	return best, nil
}

// Checksum returns the backing facade's fingerprint, the value a hint must
// carry to be honored by ResolveWithHint.
func (r *Resolver) Checksum() uint32 {
	return r.facade.Checksum()
}

// ResolveWithHint resolves a coordinate using a caller-supplied hint when
// possible, falling back to the R-tree lookup otherwise. Per the hint
// contract, a hint is only decoded and trusted when it parses and its
// embedded checksum equals the facade's; any other outcome (malformed hint,
// checksum mismatch, stale node id) is treated as a cache miss rather than
// an error, and the coordinate is silently re-snapped instead. The second
// return value reports whether the hint was actually used, for callers that
// want to log or meter the hint hit rate.
func (r *Resolver) ResolveWithHint(lat, lng float64, hint Hint) (PhantomNode, bool, error) {
	if hint != "" {
		if p, checksum, err := DecodeHint(hint); err == nil && checksum == r.Checksum() {
			if p.NodeU < r.facade.Graph().NumNodes && p.NodeV < r.facade.Graph().NumNodes {
				return p, true, nil
			}
		}
	}
	p, err := r.Resolve(lat, lng)
	return p, false, err
}

// findSource binary-searches a CSR firstOut array for the source node of
// edge index e.
func findSource(firstOut []uint32, e uint32) uint32 {
	n := uint32(len(firstOut) - 1)
	lo, hi := uint32(0), n
	for lo < hi {
		mid := (lo + hi) / 2
		if firstOut[mid+1] <= e {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Hint is a compact, opaque encoding of a PhantomNode that clients can
// round-trip in subsequent requests to skip re-resolution, analogous to
// OSRM's base64 location hints.
type Hint string

// hintSize is the encoded byte length of a PhantomNode plus its trailing
// u32 checksum, before base64 encoding.
const hintSize = 24

// EncodeHint packs a PhantomNode and the facade checksum it was resolved
// against into a base64 hint string. The checksum lets a future request
// detect whether the hint still applies to the currently loaded data.
func EncodeHint(p PhantomNode, checksum uint32) Hint {
	buf := make([]byte, hintSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.EdgeIdx)
	binary.LittleEndian.PutUint32(buf[4:8], p.NodeU)
	binary.LittleEndian.PutUint32(buf[8:12], p.NodeV)
	binary.LittleEndian.PutUint64(buf[12:20], math.Float64bits(p.Ratio))
	binary.LittleEndian.PutUint32(buf[20:24], checksum)
	return Hint(base64.URLEncoding.EncodeToString(buf))
}

// DecodeHint unpacks a Hint previously produced by EncodeHint, returning the
// PhantomNode and the checksum it was encoded with. It does not itself
// compare the checksum against a facade or verify the node id is still in
// range; callers needing the full accept/reject contract should use
// Resolver.ResolveWithHint instead.
func DecodeHint(h Hint) (PhantomNode, uint32, error) {
	buf, err := base64.URLEncoding.DecodeString(string(h))
	if err != nil || len(buf) != hintSize {
		return PhantomNode{}, 0, errors.New("malformed hint")
	}
	p := PhantomNode{
		EdgeIdx: binary.LittleEndian.Uint32(buf[0:4]),
		NodeU:   binary.LittleEndian.Uint32(buf[4:8]),
		NodeV:   binary.LittleEndian.Uint32(buf[8:12]),
		Ratio:   math.Float64frombits(binary.LittleEndian.Uint64(buf[12:20])),
	}
	checksum := binary.LittleEndian.Uint32(buf[20:24])
	return p, checksum, nil
}
