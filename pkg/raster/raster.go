// Package raster reads the metadata of GeoTIFF datasets needed to describe
// them as STAC Items: size, data type, georeferencing, per-band attributes
// and pixel statistics.
package raster

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrUnsupportedFormat is returned for data that is not a TIFF file.
	ErrUnsupportedFormat = errors.New("raster: unsupported format")
	// ErrNoImage is returned when a TIFF holds no full-resolution image.
	ErrNoImage = errors.New("raster: no image in file")
	// ErrStatisticsUnavailable is returned when pixel statistics can be
	// neither computed nor read from the file metadata.
	ErrStatisticsUnavailable = errors.New("raster: statistics unavailable")
)

// DataType names a pixel sample type using rasterio's spelling.
type DataType string

const (
	Uint8      DataType = "uint8"
	Int8       DataType = "int8"
	Uint16     DataType = "uint16"
	Int16      DataType = "int16"
	Uint32     DataType = "uint32"
	Int32      DataType = "int32"
	Uint64     DataType = "uint64"
	Int64      DataType = "int64"
	Float16    DataType = "float16"
	Float32    DataType = "float32"
	Float64    DataType = "float64"
	CInt16     DataType = "cint16"
	CInt32     DataType = "cint32"
	Complex64  DataType = "complex64"
	Complex128 DataType = "complex128"
)

// ColorInterp is the color interpretation of a band.
type ColorInterp string

const (
	Undefined ColorInterp = "undefined"
	Gray      ColorInterp = "gray"
	Palette   ColorInterp = "palette"
	Red       ColorInterp = "red"
	Green     ColorInterp = "green"
	Blue      ColorInterp = "blue"
	Alpha     ColorInterp = "alpha"
)

// Band holds per-band attributes. Index is 1-based.
type Band struct {
	Index       int
	Description string
	ColorInterp ColorInterp
	Scale       float64
	Offset      float64
	Unit        string

	// Statistics recorded in the file by GDAL, if any.
	Statistics *Statistics
}

// Size is the pixel size of an overview level.
type Size struct {
	Width, Height int
}

// Dataset is the decoded description of one raster file.
type Dataset struct {
	Driver    string
	Width     int
	Height    int
	Bands     []Band
	DataType  DataType
	Transform Affine
	// Georeferenced is false when the file has no geotransform; Transform is
	// then the identity.
	Georeferenced bool
	// EPSG is the EPSG code of the CRS, or 0 when unknown.
	EPSG int
	// AreaOrPoint is "Area" or "Point".
	AreaOrPoint string
	NoData      *float64

	Compression int
	Photometric int
	Planar      int
	Tiled       bool
	BlockWidth  int
	BlockHeight int
	Overviews   []Size

	// Tags holds default-domain metadata, including TIFFTAG_* values.
	Tags map[string]string
	// Imagery holds the IMAGERY metadata domain (e.g. CLOUDCOVER).
	Imagery map[string]string

	bitsPerSample int
	sampleFormat  int
	ghostHeader   bool
	data          []byte
	order         binary.ByteOrder
	// levels holds the full resolution image first, then its overviews.
	levels []level
}

// Count returns the number of bands.
func (d *Dataset) Count() int {
	return len(d.Bands)
}

// Bounds returns left, bottom, right and top in dataset CRS units.
func (d *Dataset) Bounds() [4]float64 {
	corners := [][2]float64{
		d.Transform.Apply(0, 0),
		d.Transform.Apply(float64(d.Width), 0),
		d.Transform.Apply(0, float64(d.Height)),
		d.Transform.Apply(float64(d.Width), float64(d.Height)),
	}
	b := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, c := range corners {
		b[0] = math.Min(b[0], c[0])
		b[1] = math.Min(b[1], c[1])
		b[2] = math.Max(b[2], c[0])
		b[3] = math.Max(b[3], c[1])
	}
	return b
}

// IsCOG reports whether the file follows the Cloud Optimized GeoTIFF layout:
// tiled, and either carrying GDAL's COG ghost header, internal overviews, or
// fitting in a single tile.
func (d *Dataset) IsCOG() bool {
	if !d.Tiled {
		return false
	}
	if d.ghostHeader || len(d.Overviews) > 0 {
		return true
	}
	return d.Width <= d.BlockWidth && d.Height <= d.BlockHeight
}
