package config

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func v(x, y, z float64) v3.Vec { return v3.Vec{X: x, Y: y, Z: z} }

func shift(x, y, z float64) sdf.M44 { return sdf.Translate3d(v(x, y, z)) }
