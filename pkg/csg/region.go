package csg

// outTriangle is one triangle of an operand's output soup before
// classification. Cut triangles come from a re-triangulated source
// triangle; the rest are copied through.
type outTriangle struct {
	v   [3]int
	src int
	cut bool
}

// buildRegions groups triangles into maximal sets connected through shared
// edges, never crossing a prohibited edge. Regions are seeded in triangle
// order and grown breadth-first, so the result is reproducible.
func buildRegions(tris []outTriangle, prohibited map[edgeKey]bool) [][]int {
	byEdge := make(map[edgeKey][]int)
	for i, t := range tris {
		for j := 0; j < 3; j++ {
			k := makeEdgeKey(t.v[j], t.v[(j+1)%3])
			if prohibited[k] {
				continue
			}
			byEdge[k] = append(byEdge[k], i)
		}
	}

	assigned := make([]bool, len(tris))
	var regions [][]int
	for seed := range tris {
		if assigned[seed] {
			continue
		}
		assigned[seed] = true
		region := []int{seed}
		for frontier := 0; frontier < len(region); frontier++ {
			t := tris[region[frontier]]
			for j := 0; j < 3; j++ {
				for _, n := range byEdge[makeEdgeKey(t.v[j], t.v[(j+1)%3])] {
					if !assigned[n] {
						assigned[n] = true
						region = append(region, n)
					}
				}
			}
		}
		regions = append(regions, region)
	}
	return regions
}
