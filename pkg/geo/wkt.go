package geo

import (
	"strconv"
	"strings"
)

const degreeRadians = "0.0174532925199433"

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (u unit) wkt() string {
	switch u {
	case unitDegree:
		return `ANGLEUNIT["degree",` + degreeRadians + `]`
	case unitScale:
		return `SCALEUNIT["unity",1]`
	default:
		return `LENGTHUNIT["metre",1]`
	}
}

func (u unit) projjson() string {
	switch u {
	case unitDegree:
		return "degree"
	case unitScale:
		return "unity"
	default:
		return "metre"
	}
}

func wktID(code int) string {
	return `ID["EPSG",` + strconv.Itoa(code) + `]`
}

func (g geodetic) wktDatum(b *strings.Builder) {
	b.WriteString(`DATUM["` + g.datum + `",ELLIPSOID["` + g.ellipsoid + `",`)
	b.WriteString(formatNumber(g.base.A()) + "," + formatNumber(g.base.Fi()))
	b.WriteString(`,LENGTHUNIT["metre",1]]],PRIMEM["Greenwich",0,` + unitDegree.wkt() + `]`)
}

// WKT2 renders the CRS as OGC WKT2 (ISO 19162:2019).
func (c *CRS) WKT2() string {
	var b strings.Builder
	g := c.def.geodetic

	if c.Geographic() {
		b.WriteString(`GEOGCRS["` + c.def.name + `",`)
		g.wktDatum(&b)
		b.WriteString(`,CS[ellipsoidal,2],`)
		b.WriteString(`AXIS["geodetic latitude (Lat)",north,ORDER[1],` + unitDegree.wkt() + `],`)
		b.WriteString(`AXIS["geodetic longitude (Lon)",east,ORDER[2],` + unitDegree.wkt() + `],`)
		b.WriteString(wktID(c.code) + `]`)
		return b.String()
	}

	conv := c.def.conversion
	b.WriteString(`PROJCRS["` + c.def.name + `",BASEGEOGCRS["` + g.name + `",`)
	g.wktDatum(&b)
	b.WriteString(`,` + wktID(g.code) + `],`)
	b.WriteString(`CONVERSION["` + conv.name + `",METHOD["` + conv.method.name + `",` + wktID(conv.method.code) + `]`)
	for i, p := range conv.method.params {
		b.WriteString(`,PARAMETER["` + p.name + `",` + formatNumber(conv.values[i]) + `,` + p.unit.wkt() + `,` + wktID(p.code) + `]`)
	}
	b.WriteString(`],CS[Cartesian,2],`)
	b.WriteString(`AXIS["(E)",east,ORDER[1],LENGTHUNIT["metre",1]],`)
	b.WriteString(`AXIS["(N)",north,ORDER[2],LENGTHUNIT["metre",1]],`)
	b.WriteString(wktID(c.code) + `]`)
	return b.String()
}

// ProjJSON is the PROJJSON encoding of a CRS.
type ProjJSON struct {
	Schema           string                `json:"$schema,omitempty"`
	Type             string                `json:"type"`
	Name             string                `json:"name"`
	BaseCRS          *ProjJSON             `json:"base_crs,omitempty"`
	Datum            *projJSONDatum        `json:"datum,omitempty"`
	Conversion       *projJSONConversion   `json:"conversion,omitempty"`
	CoordinateSystem *projJSONCoordinateCS `json:"coordinate_system,omitempty"`
	ID               *projJSONID           `json:"id,omitempty"`
}

type projJSONID struct {
	Authority string `json:"authority"`
	Code      int    `json:"code"`
}

type projJSONDatum struct {
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Ellipsoid projJSONEllipsoid `json:"ellipsoid"`
}

type projJSONEllipsoid struct {
	Name              string  `json:"name"`
	SemiMajorAxis     float64 `json:"semi_major_axis"`
	InverseFlattening float64 `json:"inverse_flattening"`
}

type projJSONConversion struct {
	Name       string              `json:"name"`
	Method     projJSONMethod      `json:"method"`
	Parameters []projJSONParameter `json:"parameters"`
}

type projJSONMethod struct {
	Name string     `json:"name"`
	ID   projJSONID `json:"id"`
}

type projJSONParameter struct {
	Name  string     `json:"name"`
	Value float64    `json:"value"`
	Unit  string     `json:"unit"`
	ID    projJSONID `json:"id"`
}

type projJSONCoordinateCS struct {
	Subtype string         `json:"subtype"`
	Axis    []projJSONAxis `json:"axis"`
}

type projJSONAxis struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Direction    string `json:"direction"`
	Unit         string `json:"unit"`
}

const projJSONSchema = "https://proj.org/schemas/v0.7/projjson.schema.json"

func epsgID(code int) *projJSONID {
	return &projJSONID{Authority: "EPSG", Code: code}
}

func (g geodetic) projjson() *ProjJSON {
	return &ProjJSON{
		Type: "GeographicCRS",
		Name: g.name,
		Datum: &projJSONDatum{
			Type: "GeodeticReferenceFrame",
			Name: g.datum,
			Ellipsoid: projJSONEllipsoid{
				Name:              g.ellipsoid,
				SemiMajorAxis:     g.base.A(),
				InverseFlattening: g.base.Fi(),
			},
		},
		CoordinateSystem: &projJSONCoordinateCS{
			Subtype: "ellipsoidal",
			Axis: []projJSONAxis{
				{Name: "Geodetic latitude", Abbreviation: "Lat", Direction: "north", Unit: "degree"},
				{Name: "Geodetic longitude", Abbreviation: "Lon", Direction: "east", Unit: "degree"},
			},
		},
		ID: epsgID(g.code),
	}
}

// PROJJSON returns the CRS as a PROJJSON document.
func (c *CRS) PROJJSON() *ProjJSON {
	if c.Geographic() {
		doc := c.def.geodetic.projjson()
		doc.Schema = projJSONSchema
		doc.Name = c.def.name
		doc.ID = epsgID(c.code)
		return doc
	}

	conv := c.def.conversion
	params := make([]projJSONParameter, len(conv.method.params))
	for i, p := range conv.method.params {
		params[i] = projJSONParameter{
			Name:  p.name,
			Value: conv.values[i],
			Unit:  p.unit.projjson(),
			ID:    *epsgID(p.code),
		}
	}

	return &ProjJSON{
		Schema:  projJSONSchema,
		Type:    "ProjectedCRS",
		Name:    c.def.name,
		BaseCRS: c.def.geodetic.projjson(),
		Conversion: &projJSONConversion{
			Name:       conv.name,
			Method:     projJSONMethod{Name: conv.method.name, ID: *epsgID(conv.method.code)},
			Parameters: params,
		},
		CoordinateSystem: &projJSONCoordinateCS{
			Subtype: "Cartesian",
			Axis: []projJSONAxis{
				{Name: "Easting", Abbreviation: "E", Direction: "east", Unit: "metre"},
				{Name: "Northing", Abbreviation: "N", Direction: "north", Unit: "metre"},
			},
		},
		ID: epsgID(c.code),
	}
}
