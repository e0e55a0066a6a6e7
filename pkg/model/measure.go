package model

// SignedVolume returns the volume enclosed by the model, positive for
// outward-wound closed surfaces. Open surfaces give an origin-dependent value.
func (m *Model) SignedVolume() float64 {
	var v float64
	for t := range m.Triangles {
		c := m.Corners(t)
		v += c[0].Dot(c[1].Cross(c[2]))
	}
	return v / 6
}

// SurfaceArea returns the total face area.
func (m *Model) SurfaceArea() float64 {
	var a float64
	for t := range m.Triangles {
		a += m.FaceNormal(t).Length()
	}
	return a / 2
}
