package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	crs, err := Lookup(32633)
	require.NoError(t, err)
	assert.Equal(t, 32633, crs.EPSG())
	assert.Equal(t, "WGS 84 / UTM zone 33N", crs.Name())
	assert.False(t, crs.Geographic())

	crs, err = Lookup(900913)
	require.NoError(t, err)
	assert.Equal(t, 3857, crs.EPSG())

	crs, err = Lookup(4326)
	require.NoError(t, err)
	assert.True(t, crs.Geographic())

	_, err = Lookup(3031)
	require.ErrorIs(t, err, ErrUnsupportedCRS)
}

func TestWKT2Projected(t *testing.T) {
	crs, err := Lookup(32633)
	require.NoError(t, err)

	want := `PROJCRS["WGS 84 / UTM zone 33N",` +
		`BASEGEOGCRS["WGS 84",DATUM["World Geodetic System 1984",ELLIPSOID["WGS 84",6378137,298.257223563,LENGTHUNIT["metre",1]]],` +
		`PRIMEM["Greenwich",0,ANGLEUNIT["degree",0.0174532925199433]],ID["EPSG",4326]],` +
		`CONVERSION["UTM zone 33N",METHOD["Transverse Mercator",ID["EPSG",9807]],` +
		`PARAMETER["Latitude of natural origin",0,ANGLEUNIT["degree",0.0174532925199433],ID["EPSG",8801]],` +
		`PARAMETER["Longitude of natural origin",15,ANGLEUNIT["degree",0.0174532925199433],ID["EPSG",8802]],` +
		`PARAMETER["Scale factor at natural origin",0.9996,SCALEUNIT["unity",1],ID["EPSG",8805]],` +
		`PARAMETER["False easting",500000,LENGTHUNIT["metre",1],ID["EPSG",8806]],` +
		`PARAMETER["False northing",0,LENGTHUNIT["metre",1],ID["EPSG",8807]]],` +
		`CS[Cartesian,2],AXIS["(E)",east,ORDER[1],LENGTHUNIT["metre",1]],AXIS["(N)",north,ORDER[2],LENGTHUNIT["metre",1]],` +
		`ID["EPSG",32633]]`
	assert.Equal(t, want, crs.WKT2())
}

func TestWKT2Lambert93(t *testing.T) {
	crs, err := Lookup(2154)
	require.NoError(t, err)

	wkt := crs.WKT2()
	assert.Contains(t, wkt, `PROJCRS["RGF93 v1 / Lambert-93",BASEGEOGCRS["RGF93 v1"`)
	assert.Contains(t, wkt, `ELLIPSOID["GRS 1980",6378137,298.257222101`)
	assert.Contains(t, wkt, `METHOD["Lambert Conic Conformal (2SP)",ID["EPSG",9802]]`)
	assert.Contains(t, wkt, `PARAMETER["Latitude of false origin",46.5,`)
	assert.Contains(t, wkt, `PARAMETER["Northing at false origin",6600000,`)
	assert.Contains(t, wkt, `ID["EPSG",4171]],`)
}

func TestWKT2Geographic(t *testing.T) {
	crs, err := Lookup(4326)
	require.NoError(t, err)

	want := `GEOGCRS["WGS 84",DATUM["World Geodetic System 1984",ELLIPSOID["WGS 84",6378137,298.257223563,LENGTHUNIT["metre",1]]],` +
		`PRIMEM["Greenwich",0,ANGLEUNIT["degree",0.0174532925199433]],CS[ellipsoidal,2],` +
		`AXIS["geodetic latitude (Lat)",north,ORDER[1],ANGLEUNIT["degree",0.0174532925199433]],` +
		`AXIS["geodetic longitude (Lon)",east,ORDER[2],ANGLEUNIT["degree",0.0174532925199433]],` +
		`ID["EPSG",4326]]`
	assert.Equal(t, want, crs.WKT2())
}

func TestPROJJSON(t *testing.T) {
	crs, err := Lookup(3035)
	require.NoError(t, err)

	data, err := json.Marshal(crs.PROJJSON())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, projJSONSchema, doc["$schema"])
	assert.Equal(t, "ProjectedCRS", doc["type"])
	assert.Equal(t, "ETRS89-extended / LAEA Europe", doc["name"])
	assert.Equal(t, map[string]any{"authority": "EPSG", "code": float64(3035)}, doc["id"])

	base := doc["base_crs"].(map[string]any)
	assert.Equal(t, "GeographicCRS", base["type"])
	assert.Nil(t, base["$schema"])
	datum := base["datum"].(map[string]any)
	assert.Equal(t, "European Terrestrial Reference System 1989", datum["name"])

	conv := doc["conversion"].(map[string]any)
	method := conv["method"].(map[string]any)
	assert.Equal(t, "Lambert Azimuthal Equal Area", method["name"])
	params := conv["parameters"].([]any)
	require.Len(t, params, 4)
	assert.Equal(t, 52.0, params[0].(map[string]any)["value"])
	assert.Equal(t, "degree", params[0].(map[string]any)["unit"])
	assert.Equal(t, 3210000.0, params[3].(map[string]any)["value"])
	assert.Equal(t, "metre", params[3].(map[string]any)["unit"])

	cs := doc["coordinate_system"].(map[string]any)
	assert.Equal(t, "Cartesian", cs["subtype"])
}

func TestPROJJSONGeographic(t *testing.T) {
	crs, err := Lookup(4269)
	require.NoError(t, err)

	doc := crs.PROJJSON()
	assert.Equal(t, "GeographicCRS", doc.Type)
	assert.Equal(t, "NAD83", doc.Name)
	assert.Nil(t, doc.BaseCRS)
	assert.Nil(t, doc.Conversion)
	require.NotNil(t, doc.Datum)
	assert.Equal(t, 298.257222101, doc.Datum.Ellipsoid.InverseFlattening)
	assert.Equal(t, 4269, doc.ID.Code)
}
