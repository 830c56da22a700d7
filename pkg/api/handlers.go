package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"

	"github.com/chrouter/chrouter/pkg/phantom"
	"github.com/chrouter/chrouter/pkg/routing"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router routing.Router
	stats  StatsResponse
}

// NewHandlers creates handlers with the given router.
func NewHandlers(router routing.Router, stats StatsResponse) *Handlers {
	return &Handlers{
		router: router,
		stats:  stats,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	// Enforce Content-Type.
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	// Parse request.
	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	waypoints := req.Waypoints
	if len(waypoints) == 0 {
		waypoints = []LatLngJSON{req.Start, req.End}
	}
	if len(waypoints) < 2 {
		writeError(w, http.StatusBadRequest, "invalid_request", "waypoints")
		return
	}

	legWaypoints := make([]routing.LatLng, len(waypoints))
	for i, wp := range waypoints {
		if err := validateCoord(wp); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_coordinates", fmt.Sprintf("waypoints[%d]", i))
			return
		}
		legWaypoints[i] = routing.LatLng{Lat: wp.Lat, Lng: wp.Lng}
	}

	// Route. When the router also accepts hints (routing.HintedRouter) and
	// the caller supplied any, pass them through; the router itself only
	// honors a hint whose embedded checksum matches its own, silently
	// re-snapping the rest (req.CheckSum is an optional early signal for
	// callers, not something the server needs to check itself).
	var result *routing.RouteResult
	var err error
	if hinted, ok := h.router.(routing.HintedRouter); ok && len(req.Hints) > 0 {
		hints := make([]phantom.Hint, len(req.Hints))
		for i, hintStr := range req.Hints {
			hints[i] = phantom.Hint(hintStr)
		}
		result, err = hinted.RouteWithHints(r.Context(), legWaypoints, hints)
	} else {
		result, err = h.router.Route(r.Context(), legWaypoints)
	}
	if err != nil {
		if errors.Is(err, routing.ErrTooFewWaypoints) {
			writeError(w, http.StatusBadRequest, "invalid_request", "waypoints")
			return
		}
		if errors.Is(err, routing.ErrPointTooFar) {
			writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "")
			return
		}
		if errors.Is(err, routing.ErrNoRoute) {
			writeError(w, http.StatusNotFound, "no_route_found", "")
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(buildRouteResponse(result))
}

// buildRouteResponse converts a routing.RouteResult into its JSON wire
// shape, including a nested alternative if one was found.
func buildRouteResponse(result *routing.RouteResult) RouteResponse {
	resp := RouteResponse{
		TotalDistanceMeters:  result.TotalDistanceMeters,
		TotalDurationSeconds: result.TotalDurationSeconds,
		RouteName:            routeNameSummary(result.RouteName1, result.RouteName2),
		OverviewPolyline:     result.OverviewPolyline,
		SketchPolyline:       result.SketchPolyline,
	}
	for _, seg := range result.Segments {
		geom := make([]LatLngJSON, len(seg.Geometry))
		for i, ll := range seg.Geometry {
			geom[i] = LatLngJSON{Lat: ll.Lat, Lng: ll.Lng}
		}
		resp.Segments = append(resp.Segments, SegmentJSON{
			Name:            seg.Name,
			Instruction:     seg.Instruction,
			Roundabout:      seg.Roundabout,
			DistanceMeters:  seg.DistanceMeters,
			DurationSeconds: seg.DurationSeconds,
			Geometry:        geom,
		})
	}
	if result.Alternative != nil {
		altResp := buildRouteResponse(result.Alternative)
		resp.Alternative = &altResp
	}
	if len(result.Hints) > 0 {
		locations := make([]string, len(result.Hints))
		for i, h := range result.Hints {
			locations[i] = string(h)
		}
		resp.HintData = &HintDataJSON{Checksum: result.HintChecksum, Locations: locations}
	}
	return resp
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats)
}

// routeNameSummary combines up to two route names into a human-readable
// summary, e.g. "Orchard Road and Scotts Road".
func routeNameSummary(name1, name2 string) string {
	switch {
	case name1 == "" && name2 == "":
		return ""
	case name2 == "" || name1 == name2:
		return name1
	default:
		return name1 + " and " + name2
	}
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
