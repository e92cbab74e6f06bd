package geo

import (
	"fmt"
	"math"

	"github.com/wroge/wgs84"
)

// geodetic is the geographic CRS a projected CRS is based on, together with
// the datum used to reach WGS 84.
type geodetic struct {
	code      int
	name      string
	datum     string
	ellipsoid string
	base      wgs84.Datum
}

var grs80 = wgs84.Datum{Spheroid: wgs84.GRS80{}}

var (
	wgs84Geodetic  = geodetic{4326, "WGS 84", "World Geodetic System 1984", "WGS 84", wgs84.WGS84()}
	etrs89Geodetic = geodetic{4258, "ETRS89", "European Terrestrial Reference System 1989", "GRS 1980", wgs84.ETRS89()}
	nad83Geodetic  = geodetic{4269, "NAD83", "North American Datum 1983", "GRS 1980", wgs84.NAD83()}
	rgf93Geodetic  = geodetic{4171, "RGF93 v1", "Reseau Geodesique Francais 1993 v1", "GRS 1980", wgs84.RGF93()}
	osgb36Geodetic = geodetic{4277, "OSGB36", "Ordnance Survey of Great Britain 1936", "Airy 1830", wgs84.OSGB36()}
	mgiGeodetic    = geodetic{4312, "MGI", "Militar-Geographische Institut", "Bessel 1841", wgs84.MGI()}
	dhdnGeodetic   = geodetic{4314, "DHDN", "Deutsches Hauptdreiecksnetz", "Bessel 1841", wgs84.DHDN2001()}
	gda94Geodetic  = geodetic{4283, "GDA94", "Geocentric Datum of Australia 1994", "GRS 1980", grs80}
	nzgdGeodetic   = geodetic{4167, "NZGD2000", "New Zealand Geodetic Datum 2000", "GRS 1980", grs80}
	sirgasGeodetic = geodetic{4674, "SIRGAS 2000", "Sistema de Referencia Geocentrico para las AmericaS 2000", "GRS 1980", grs80}
	csrsGeodetic   = geodetic{4617, "NAD83(CSRS)", "NAD83 Canadian Spatial Reference System", "GRS 1980", grs80}
)

type unit int

const (
	unitDegree unit = iota
	unitMetre
	unitScale
)

type parameter struct {
	name string
	code int
	unit unit
}

var (
	latNatural    = parameter{"Latitude of natural origin", 8801, unitDegree}
	lonNatural    = parameter{"Longitude of natural origin", 8802, unitDegree}
	scaleNatural  = parameter{"Scale factor at natural origin", 8805, unitScale}
	falseEasting  = parameter{"False easting", 8806, unitMetre}
	falseNorthing = parameter{"False northing", 8807, unitMetre}
	latFalse      = parameter{"Latitude of false origin", 8821, unitDegree}
	lonFalse      = parameter{"Longitude of false origin", 8822, unitDegree}
	lat1st        = parameter{"Latitude of 1st standard parallel", 8823, unitDegree}
	lat2nd        = parameter{"Latitude of 2nd standard parallel", 8824, unitDegree}
	eastingFalse  = parameter{"Easting at false origin", 8826, unitMetre}
	northingFalse = parameter{"Northing at false origin", 8827, unitMetre}
)

type method struct {
	name   string
	code   int
	params []parameter
}

var (
	methodTransverseMercator = method{"Transverse Mercator", 9807,
		[]parameter{latNatural, lonNatural, scaleNatural, falseEasting, falseNorthing}}
	methodLambertConic = method{"Lambert Conic Conformal (2SP)", 9802,
		[]parameter{latFalse, lonFalse, lat1st, lat2nd, eastingFalse, northingFalse}}
	methodAlbers = method{"Albers Equal Area", 9822,
		[]parameter{latFalse, lonFalse, lat1st, lat2nd, eastingFalse, northingFalse}}
	methodLambertAzimuthal = method{"Lambert Azimuthal Equal Area", 9820,
		[]parameter{latNatural, lonNatural, falseEasting, falseNorthing}}
	methodPseudoMercator = method{"Popular Visualisation Pseudo Mercator", 1024,
		[]parameter{latNatural, lonNatural, falseEasting, falseNorthing}}
	methodMercator = method{"Mercator (variant A)", 9804,
		[]parameter{latNatural, lonNatural, scaleNatural, falseEasting, falseNorthing}}
)

// conversion is a map projection with its parameter values, ordered as the
// parameters of its method.
type conversion struct {
	name   string
	method method
	values []float64
}

type definition struct {
	name       string
	geodetic   geodetic
	conversion *conversion
	crs        wgs84.CoordinateReferenceSystem
}

func geographicDef(g geodetic) definition {
	return definition{name: g.name, geodetic: g, crs: g.base.LonLat()}
}

func transverseMercatorDef(name string, g geodetic, conv string, lon0, lat0, k, fe, fn float64) definition {
	return definition{
		name:       name,
		geodetic:   g,
		conversion: &conversion{conv, methodTransverseMercator, []float64{lat0, lon0, k, fe, fn}},
		crs:        g.base.TransverseMercator(lon0, lat0, k, fe, fn),
	}
}

func lambertConicDef(name string, g geodetic, conv string, lon0, lat0, lat1, lat2, fe, fn float64) definition {
	return definition{
		name:       name,
		geodetic:   g,
		conversion: &conversion{conv, methodLambertConic, []float64{lat0, lon0, lat1, lat2, fe, fn}},
		crs:        g.base.LambertConformalConic2SP(lon0, lat0, lat1, lat2, fe, fn),
	}
}

func albersDef(name string, g geodetic, conv string, lon0, lat0, lat1, lat2, fe, fn float64) definition {
	return definition{
		name:       name,
		geodetic:   g,
		conversion: &conversion{conv, methodAlbers, []float64{lat0, lon0, lat1, lat2, fe, fn}},
		crs:        g.base.AlbersEqualAreaConic(lon0, lat0, lat1, lat2, fe, fn),
	}
}

func lambertAzimuthalDef(name string, g geodetic, conv string, lon0, lat0, fe, fn float64) definition {
	return definition{
		name:       name,
		geodetic:   g,
		conversion: &conversion{conv, methodLambertAzimuthal, []float64{lat0, lon0, fe, fn}},
		crs:        g.base.LambertAzimuthalEqualArea(lon0, lat0, fe, fn),
	}
}

const oneThird = 1.0 / 3

var definitions = buildDefinitions()

// aliases are non-EPSG or deprecated codes for a registered CRS.
var aliases = map[int]int{
	900913: 3857,
	102100: 3857,
	102113: 3857,
}

func buildDefinitions() map[int]definition {
	defs := map[int]definition{
		3857: {
			name:       "WGS 84 / Pseudo-Mercator",
			geodetic:   wgs84Geodetic,
			conversion: &conversion{"Popular Visualisation Pseudo-Mercator", methodPseudoMercator, []float64{0, 0, 0, 0}},
			crs:        wgs84.WebMercator(),
		},
		3395: {
			name:       "WGS 84 / World Mercator",
			geodetic:   wgs84Geodetic,
			conversion: &conversion{"World Mercator", methodMercator, []float64{0, 0, 1, 0, 0}},
			crs:        wgs84.ProjectedReferenceSystem{Datum: wgs84.WGS84(), Projection: worldMercator{}},
		},

		2154:  lambertConicDef("RGF93 v1 / Lambert-93", rgf93Geodetic, "Lambert-93", 3, 46.5, 49, 44, 700000, 6600000),
		3034:  lambertConicDef("ETRS89-extended / LCC Europe", etrs89Geodetic, "Europe Conformal 2001", 10, 52, 35, 65, 4000000, 2800000),
		3035:  lambertAzimuthalDef("ETRS89-extended / LAEA Europe", etrs89Geodetic, "Europe Equal Area 2001", 10, 52, 4321000, 3210000),
		3416:  lambertConicDef("ETRS89 / Austria Lambert", etrs89Geodetic, "Austria Lambert", 13+oneThird, 47.5, 49, 46, 400000, 400000),
		31287: lambertConicDef("MGI / Austria Lambert", mgiGeodetic, "Austria Lambert", 13+oneThird, 47.5, 49, 46, 400000, 400000),
		27700: transverseMercatorDef("OSGB36 / British National Grid", osgb36Geodetic, "British National Grid", -2, 49, 0.9996012717, 400000, -100000),
		3577:  albersDef("GDA94 / Australian Albers", gda94Geodetic, "Australian Albers", 132, 0, -18, -36, 0, 0),
		5070:  albersDef("NAD83 / Conus Albers", nad83Geodetic, "Conus Albers", -96, 23, 29.5, 45.5, 0, 0),
		2193:  transverseMercatorDef("NZGD2000 / New Zealand Transverse Mercator 2000", nzgdGeodetic, "New Zealand Transverse Mercator 2000", 173, 0, 0.9996, 1600000, 10000000),
	}

	for _, g := range []geodetic{
		wgs84Geodetic, etrs89Geodetic, nad83Geodetic, rgf93Geodetic, osgb36Geodetic, mgiGeodetic,
		dhdnGeodetic, gda94Geodetic, nzgdGeodetic, sirgasGeodetic, csrsGeodetic,
	} {
		defs[g.code] = geographicDef(g)
	}

	for zone := 1; zone <= 60; zone++ {
		lon0 := float64(zone*6 - 183)
		defs[32600+zone] = transverseMercatorDef(fmt.Sprintf("WGS 84 / UTM zone %dN", zone), wgs84Geodetic,
			fmt.Sprintf("UTM zone %dN", zone), lon0, 0, 0.9996, 500000, 0)
		defs[32700+zone] = transverseMercatorDef(fmt.Sprintf("WGS 84 / UTM zone %dS", zone), wgs84Geodetic,
			fmt.Sprintf("UTM zone %dS", zone), lon0, 0, 0.9996, 500000, 10000000)
	}
	for zone := 28; zone <= 38; zone++ {
		defs[25800+zone] = transverseMercatorDef(fmt.Sprintf("ETRS89 / UTM zone %dN", zone), etrs89Geodetic,
			fmt.Sprintf("UTM zone %dN", zone), float64(zone*6-183), 0, 0.9996, 500000, 0)
	}
	for zone := 1; zone <= 23; zone++ {
		defs[26900+zone] = transverseMercatorDef(fmt.Sprintf("NAD83 / UTM zone %dN", zone), nad83Geodetic,
			fmt.Sprintf("UTM zone %dN", zone), float64(zone*6-183), 0, 0.9996, 500000, 0)
	}

	for i, lon0 := range []float64{10 + oneThird, 13 + oneThird, 16 + oneThird} {
		meridian := 28 + 3*i
		defs[31284+i] = transverseMercatorDef(fmt.Sprintf("MGI / Austria M%d", meridian), mgiGeodetic,
			fmt.Sprintf("Austria M%d", meridian), lon0, 0, 1, float64(150000+300000*i), 0)
		defs[31257+i] = transverseMercatorDef(fmt.Sprintf("MGI / Austria GK M%d", meridian), mgiGeodetic,
			fmt.Sprintf("Austria Gauss-Kruger M%d", meridian), lon0, 0, 1, float64(150000+300000*i), -5000000)
	}
	for zone := 2; zone <= 5; zone++ {
		defs[31464+zone] = transverseMercatorDef(fmt.Sprintf("DHDN / 3-degree Gauss-Kruger zone %d", zone), dhdnGeodetic,
			fmt.Sprintf("3-degree Gauss-Kruger zone %d", zone), float64(zone*3), 0, 1, float64(zone*1000000+500000), 0)
	}
	for lat := 42; lat <= 50; lat++ {
		lat0 := float64(lat)
		defs[3900+lat] = lambertConicDef(fmt.Sprintf("RGF93 v1 / CC%d", lat), rgf93Geodetic,
			fmt.Sprintf("Lambert Conic Conformal CC%d", lat), 3, lat0, lat0-0.75, lat0+0.75, 1700000, 2200000+(lat0-43)*1000000)
	}

	return defs
}

// CRS is a coordinate reference system identified by its EPSG code.
type CRS struct {
	code int
	def  definition
}

// Lookup returns the CRS registered under an EPSG code, or ErrUnsupportedCRS.
func Lookup(epsg int) (*CRS, error) {
	code := epsg
	if alias, ok := aliases[epsg]; ok {
		code = alias
	}
	def, ok := definitions[code]
	if !ok {
		return nil, fmt.Errorf("%w: EPSG:%d", ErrUnsupportedCRS, epsg)
	}
	return &CRS{code: code, def: def}, nil
}

// EPSG returns the canonical code of the CRS; aliases resolve to the code
// they stand for.
func (c *CRS) EPSG() int { return c.code }

// Name returns the EPSG name of the CRS.
func (c *CRS) Name() string { return c.def.name }

// Geographic reports whether coordinates are longitude/latitude degrees.
func (c *CRS) Geographic() bool { return c.def.conversion == nil }

// sharesWGS84Frame reports whether lon/lat in this CRS can be used as WGS 84
// lon/lat without a datum shift.
func (c *CRS) sharesWGS84Frame() bool {
	return c.Geographic() && c.def.geodetic.base.Transformation == nil
}

// Transformer returns the conversion from this CRS to WGS 84 lon/lat.
func (c *CRS) Transformer() Transformer {
	if c.sharesWGS84Frame() {
		return func(x, y float64) (float64, float64) { return x, y }
	}
	toWGS84 := wgs84.From(c.def.crs)
	return func(x, y float64) (float64, float64) {
		lon, lat, _ := toWGS84(x, y, 0)
		return lon, lat
	}
}

// worldMercator is the ellipsoidal Mercator projection of EPSG:3395.
type worldMercator struct{}

func eccentricity(s wgs84.Spheroid) float64 {
	f := 1 / s.Fi()
	return math.Sqrt(f * (2 - f))
}

func (worldMercator) ToLonLat(east, north float64, s wgs84.Spheroid) (lon, lat float64) {
	e := eccentricity(s)
	t := math.Exp(-north / s.A())
	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		es := e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), e/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}
	return degrees(east / s.A()), degrees(phi)
}

func (worldMercator) FromLonLat(lon, lat float64, s wgs84.Spheroid) (east, north float64) {
	e := eccentricity(s)
	phi := radians(lat)
	es := e * math.Sin(phi)
	east = s.A() * radians(lon)
	north = s.A() * math.Log(math.Tan(math.Pi/4+phi/2)*math.Pow((1-es)/(1+es), e/2))
	return east, north
}
