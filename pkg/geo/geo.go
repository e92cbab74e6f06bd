// Package geo converts raster footprints to WGS84 longitude/latitude for
// the item geometry and describes the source CRS as WKT2 and PROJJSON.
// Coordinate operations are done with github.com/wroge/wgs84; CRSs missing
// from the registry fail with ErrUnsupportedCRS.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrUnsupportedCRS is returned for CRSs that cannot be converted to WGS84.
var ErrUnsupportedCRS = errors.New("geo: unsupported CRS")

// DefaultDensify is the number of points sampled along each footprint edge.
const DefaultDensify = 21

// Transformer converts a coordinate in a source CRS to WGS84 lon/lat
// degrees.
type Transformer func(x, y float64) (lon, lat float64)

// NewTransformer returns the conversion to WGS84 lon/lat of the CRS with the
// given EPSG code.
func NewTransformer(epsg int) (Transformer, error) {
	crs, err := Lookup(epsg)
	if err != nil {
		return nil, err
	}
	return crs.Transformer(), nil
}

// Footprint converts bounds (left, bottom, right, top) in the CRS with the
// given EPSG code to a lon/lat polygon. Edges of projected bounds are
// densified with n points each before conversion so curved edges are
// followed. An EPSG code of 0 means the CRS is unknown; the bounds are then
// used unchanged when they fit in lon/lat range.
func Footprint(bounds [4]float64, epsg, n int) (orb.Polygon, orb.Bound, error) {
	native := orb.Bound{
		Min: orb.Point{bounds[0], bounds[1]},
		Max: orb.Point{bounds[2], bounds[3]},
	}

	if epsg == 0 {
		if !inLonLatRange(native) {
			return nil, orb.Bound{}, fmt.Errorf("%w: bounds %v are not lon/lat and the CRS is unknown", ErrUnsupportedCRS, bounds)
		}
		return BoundsPolygon(native), native, nil
	}

	crs, err := Lookup(epsg)
	if err != nil {
		return nil, orb.Bound{}, err
	}
	if crs.sharesWGS84Frame() {
		return BoundsPolygon(native), native, nil
	}

	toWGS84 := crs.Transformer()
	ring := densify(native, n)
	for i, p := range ring {
		lon, lat := toWGS84(p[0], p[1])
		ring[i] = orb.Point{lon, lat}
	}

	bound := ring.Bound()
	return BoundsPolygon(bound), bound, nil
}

// BoundsPolygon returns the closed counter-clockwise ring of a bound.
func BoundsPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}}
}

// densify samples n points per edge of b, walking counter-clockwise.
func densify(b orb.Bound, n int) orb.Ring {
	if n < 2 {
		n = 2
	}
	corners := []orb.Point{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
	}
	ring := make(orb.Ring, 0, 4*(n-1)+1)
	for i, from := range corners {
		to := corners[(i+1)%len(corners)]
		for k := 0; k < n-1; k++ {
			f := float64(k) / float64(n-1)
			ring = append(ring, orb.Point{
				from[0] + f*(to[0]-from[0]),
				from[1] + f*(to[1]-from[1]),
			})
		}
	}
	return append(ring, ring[0])
}

func inLonLatRange(b orb.Bound) bool {
	return b.Min[0] >= -180 && b.Max[0] <= 180 && b.Min[1] >= -90 && b.Max[1] <= 90
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func radians(deg float64) float64 { return deg * math.Pi / 180 }
