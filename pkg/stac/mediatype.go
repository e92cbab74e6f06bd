package stac

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MediaType is an IANA media type used for STAC asset and link "type" fields.
type MediaType string

const (
	MediaTypeCOG        MediaType = "image/tiff; application=geotiff; profile=cloud-optimized"
	MediaTypeGeoJSON    MediaType = "application/geo+json"
	MediaTypeGeoPackage MediaType = "application/geopackage+sqlite3"
	MediaTypeGeoTIFF    MediaType = "image/tiff; application=geotiff"
	MediaTypeHDF        MediaType = "application/x-hdf"
	MediaTypeHDF5       MediaType = "application/x-hdf5"
	MediaTypeHTML       MediaType = "text/html"
	MediaTypeJPEG       MediaType = "image/jpeg"
	MediaTypeJPEG2000   MediaType = "image/jp2"
	MediaTypeJSON       MediaType = "application/json"
	MediaTypePNG        MediaType = "image/png"
	MediaTypeText       MediaType = "text/plain"
	MediaTypeTIFF       MediaType = "image/tiff"
	MediaTypeKEA        MediaType = "application/x-kea"
	MediaTypeXML        MediaType = "application/xml"
	MediaTypePDF        MediaType = "application/pdf"
	MediaTypeZarr       MediaType = "application/vnd+zarr"
	MediaTypeNetCDF     MediaType = "application/netcdf"
	MediaTypeFlatGeobuf MediaType = "application/vnd.flatgeobuf"
	MediaTypeParquet    MediaType = "application/vnd.apache.parquet"
)

// MediaTypeAuto asks item construction to detect the media type from the dataset.
const MediaTypeAuto = "auto"

// ErrInvalidMediaType is returned for names outside the MediaType enumeration.
var ErrInvalidMediaType = errors.New("stac: invalid media type")

var mediaTypesByName = map[string]MediaType{
	"COG":        MediaTypeCOG,
	"GEOJSON":    MediaTypeGeoJSON,
	"GEOPACKAGE": MediaTypeGeoPackage,
	"GEOTIFF":    MediaTypeGeoTIFF,
	"HDF":        MediaTypeHDF,
	"HDF5":       MediaTypeHDF5,
	"HTML":       MediaTypeHTML,
	"JPEG":       MediaTypeJPEG,
	"JPEG2000":   MediaTypeJPEG2000,
	"JSON":       MediaTypeJSON,
	"PNG":        MediaTypePNG,
	"TEXT":       MediaTypeText,
	"TIFF":       MediaTypeTIFF,
	"KEA":        MediaTypeKEA,
	"XML":        MediaTypeXML,
	"PDF":        MediaTypePDF,
	"ZARR":       MediaTypeZarr,
	"NETCDF":     MediaTypeNetCDF,
	"FLATGEOBUF": MediaTypeFlatGeobuf,
	"PARQUET":    MediaTypeParquet,
}

// MediaTypeNames returns the enumeration member names in sorted order.
func MediaTypeNames() []string {
	names := make([]string, 0, len(mediaTypesByName))
	for name := range mediaTypesByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseMediaType resolves an enumeration member name (e.g. "COG") to its media type.
// Names are matched exactly.
func ParseMediaType(name string) (MediaType, error) {
	if mt, ok := mediaTypesByName[name]; ok {
		return mt, nil
	}
	return "", fmt.Errorf("%w %q (choose from %s)", ErrInvalidMediaType, name, strings.Join(MediaTypeNames(), ", "))
}
