package description

import "sort"

// NamedSegment is the minimal view of a route segment ExtractRouteNames
// needs: its street name, its position in the segment sequence, and its
// length, used to pick the most representative name(s) for the whole route.
type NamedSegment struct {
	NameID   uint32
	Name     string
	Position int
	Length   float64
}

// RouteNames holds up to two representative street names for a route,
// ordered by their position along the path (not by length).
type RouteNames struct {
	Name1 string
	Name2 string
}

// ExtractRouteNames picks the longest-distance named segment on mine as the
// primary name. The secondary name is the longest remaining segment whose
// name id does not also appear anywhere in other's segments (the
// set-difference of mine against other) and that differs from the primary
// name, so the pair distinguishes this route from the other one (shortest
// vs. alternative). Both names are ordered by where they occur along mine's
// path, not by length.
func ExtractRouteNames(mine, other []NamedSegment) RouteNames {
	if len(mine) == 0 {
		return RouteNames{}
	}

	byLength := make([]NamedSegment, len(mine))
	copy(byLength, mine)
	sort.Slice(byLength, func(i, j int) bool { return byLength[i].Length > byLength[j].Length })

	otherNameIDs := make(map[uint32]bool, len(other))
	for _, s := range other {
		otherNameIDs[s.NameID] = true
	}

	first := byLength[0]
	var second NamedSegment
	for _, s := range byLength[1:] {
		if s.Name == first.Name || otherNameIDs[s.NameID] {
			continue
		}
		second = s
		break
	}

	if second.Length > 0 && first.Position > second.Position {
		first, second = second, first
	}

	return RouteNames{Name1: first.Name, Name2: second.Name}
}
