package raster

import "strings"

// GeoKey ids.
const (
	keyModelType      = 1024
	keyRasterType     = 1025
	keyGeographicType = 2048
	keyGeodeticDatum  = 2050
	keyProjectedType  = 3072
)

const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2
	rasterPixelIsPoint  = 2
	userDefined         = 32767
	datumWGS84          = 6326
	epsgWGS84           = 4326
)

type geoKey struct {
	short   int
	doubles []float64
	ascii   string
}

type geoKeys map[int]geoKey

// parseGeoKeys reads the GeoKeyDirectory, resolving values stored in the
// GeoDoubleParams and GeoAsciiParams tags.
func parseGeoKeys(t ifd) geoKeys {
	dir := t.ints(tagGeoKeyDirectory)
	if len(dir) < 4 {
		return nil
	}
	doubles := t.floats(tagGeoDoubleParams)
	ascii, _ := t.str(tagGeoASCIIParams)

	keys := make(geoKeys, dir[3])
	for i := 0; i < dir[3]; i++ {
		base := 4 + 4*i
		if base+3 >= len(dir) {
			break
		}
		id, loc, count, val := dir[base], dir[base+1], dir[base+2], dir[base+3]
		switch loc {
		case 0:
			keys[id] = geoKey{short: val}
		case tagGeoDoubleParams:
			if val+count <= len(doubles) {
				keys[id] = geoKey{doubles: doubles[val : val+count]}
			}
		case tagGeoASCIIParams:
			if val+count <= len(ascii) {
				keys[id] = geoKey{ascii: strings.TrimRight(ascii[val:val+count], "|\x00")}
			}
		}
	}
	return keys
}

func (k geoKeys) int(id int) int {
	return k[id].short
}

// epsg returns the EPSG code of the CRS described by the keys, or 0 for
// user-defined or missing definitions.
func (k geoKeys) epsg() int {
	if len(k) == 0 {
		return 0
	}
	if code := k.int(keyProjectedType); code > 0 && code < userDefined {
		return code
	}
	model := k.int(keyModelType)
	if model == modelTypeProjected {
		return 0
	}
	if code := k.int(keyGeographicType); code > 0 && code < userDefined {
		return code
	}
	if model == modelTypeGeographic && k.int(keyGeodeticDatum) == datumWGS84 {
		return epsgWGS84
	}
	return 0
}
