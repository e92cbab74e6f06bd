package raster

// Affine maps pixel (col, row) to CRS coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity is the transform of a non-georeferenced raster.
var Identity = Affine{A: 1, E: 1}

// Apply returns the CRS coordinates of pixel position (col, row).
func (a Affine) Apply(col, row float64) [2]float64 {
	return [2]float64{
		a.A*col + a.B*row + a.C,
		a.D*col + a.E*row + a.F,
	}
}

// Coefficients returns the full 3x3 matrix in row-major order, the
// representation used by the STAC projection extension.
func (a Affine) Coefficients() []float64 {
	return []float64{a.A, a.B, a.C, a.D, a.E, a.F, 0, 0, 1}
}
