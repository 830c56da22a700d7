package api

// RouteRequest is the JSON body for POST /api/v1/route. Waypoints holds an
// ordered list of at least two coordinates; Start/End remain as a
// convenience alias for the common two-point case and are only consulted
// when Waypoints is empty.
type RouteRequest struct {
	Start     LatLngJSON   `json:"start,omitempty"`
	End       LatLngJSON   `json:"end,omitempty"`
	Waypoints []LatLngJSON `json:"waypoints,omitempty"`

	// Hints are previously issued per-waypoint resolver hints (base64, see
	// pkg/phantom.Hint), tried before falling back to a fresh R-tree snap.
	// CheckSum is the facade fingerprint the client believes the hints were
	// encoded against; a hint is only honored when it still matches the
	// server's current data.
	Hints    []string `json:"hints,omitempty"`
	CheckSum uint32   `json:"check_sum,omitempty"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteResponse is the JSON response for a successful route query.
type RouteResponse struct {
	TotalDistanceMeters  float64        `json:"total_distance_meters"`
	TotalDurationSeconds float64        `json:"total_duration_seconds"`
	RouteName            string         `json:"route_name,omitempty"`
	OverviewPolyline     string         `json:"overview_polyline,omitempty"`
	SketchPolyline       string         `json:"sketch_polyline,omitempty"`
	Segments             []SegmentJSON  `json:"segments"`
	Alternative          *RouteResponse `json:"alternative,omitempty"`
	HintData             *HintDataJSON  `json:"hint_data,omitempty"`
}

// HintDataJSON carries the resolver hints a client can echo back on a
// subsequent request to skip re-snapping, along with the checksum they were
// encoded against.
type HintDataJSON struct {
	Checksum  uint32   `json:"checksum"`
	Locations []string `json:"locations"`
}

// SegmentJSON represents a named road leg in the response.
type SegmentJSON struct {
	Name            string       `json:"name"`
	Instruction     string       `json:"instruction"`
	Roundabout      bool         `json:"roundabout,omitempty"`
	DistanceMeters  float64      `json:"distance_meters"`
	DurationSeconds float64      `json:"duration_seconds"`
	Geometry        []LatLngJSON `json:"geometry"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error          string  `json:"error"`
	Field          string  `json:"field,omitempty"`
	DistanceMeters float64 `json:"distance_meters,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes    uint32 `json:"num_nodes"`
	NumFwdEdges int    `json:"num_fwd_edges"`
	NumBwdEdges int    `json:"num_bwd_edges"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
