package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/tiff"
)

const (
	tagNewSubfileType      = 254
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagDocumentName        = 269
	tagImageDescription    = 270
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfig        = 284
	tagSoftware            = 305
	tagDateTime            = 306
	tagArtist              = 315
	tagHostComputer        = 316
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagExtraSamples        = 338
	tagSampleFormat        = 339
	tagCopyright           = 33432
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoASCIIParams      = 34737
	tagGDALMetadata        = 42112
	tagGDALNoData          = 42113
)

const (
	subfileReducedImage = 1
	subfileMask         = 4
)

// TIFF ASCII tags exposed as TIFFTAG_* metadata, as GDAL does.
var textTags = map[uint16]string{
	tagDocumentName:     "TIFFTAG_DOCUMENTNAME",
	tagImageDescription: "TIFFTAG_IMAGEDESCRIPTION",
	tagSoftware:         "TIFFTAG_SOFTWARE",
	tagDateTime:         "TIFFTAG_DATETIME",
	tagArtist:           "TIFFTAG_ARTIST",
	tagHostComputer:     "TIFFTAG_HOSTCOMPUTER",
	tagCopyright:        "TIFFTAG_COPYRIGHT",
}

// ghostHeader is the start of the metadata block GDAL writes right after the
// TIFF header of Cloud Optimized GeoTIFFs.
var ghostHeader = []byte("GDAL_STRUCTURAL_METADATA_SIZE=")

// Decode reads the dataset description from the bytes of a TIFF file. The
// slice is retained for BandStatistics and must not be modified afterwards.
func Decode(data []byte) (*Dataset, error) {
	if err := checkHeader(data); err != nil {
		return nil, err
	}

	tf, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("raster: decode tiff: %w", err)
	}

	var (
		main      ifd
		overviews []Size
		levels    []level
	)
	for _, dir := range tf.Dirs {
		t := newIFD(dir)
		subfile := t.int(tagNewSubfileType, 0)
		switch {
		case subfile&subfileMask != 0:
			continue
		case main == nil && subfile&subfileReducedImage == 0:
			main = t
			levels = append(levels, newLevel(t))
		case main != nil && subfile&subfileReducedImage != 0:
			lv := newLevel(t)
			overviews = append(overviews, Size{Width: lv.width, Height: lv.height})
			levels = append(levels, lv)
		}
	}
	if main == nil {
		return nil, ErrNoImage
	}

	ds := &Dataset{
		Driver:      "GTiff",
		Width:       main.int(tagImageWidth, 0),
		Height:      main.int(tagImageLength, 0),
		Compression: main.int(tagCompression, 1),
		Photometric: main.int(tagPhotometric, 1),
		Planar:      main.int(tagPlanarConfig, 1),
		Overviews:   overviews,
		Tags:        map[string]string{},
		Imagery:     map[string]string{},
		ghostHeader: bytes.HasPrefix(data[8:], ghostHeader),
		data:        data,
		levels:      levels,
	}
	if data[0] == 'M' {
		ds.order = binary.BigEndian
	} else {
		ds.order = binary.LittleEndian
	}
	if ds.Width <= 0 || ds.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid image size %dx%d", ErrNoImage, ds.Width, ds.Height)
	}

	if tw := main.int(tagTileWidth, 0); tw > 0 {
		ds.Tiled = true
		ds.BlockWidth = tw
		ds.BlockHeight = main.int(tagTileLength, tw)
	} else {
		ds.BlockWidth = ds.Width
		ds.BlockHeight = main.int(tagRowsPerStrip, ds.Height)
	}

	ds.bitsPerSample = main.int(tagBitsPerSample, 1)
	ds.sampleFormat = main.int(tagSampleFormat, 1)
	ds.DataType, err = dataType(ds.bitsPerSample, ds.sampleFormat)
	if err != nil {
		return nil, err
	}

	count := main.int(tagSamplesPerPixel, 1)
	interps := colorInterps(ds.Photometric, count, main.ints(tagExtraSamples))
	ds.Bands = make([]Band, count)
	for i := range ds.Bands {
		ds.Bands[i] = Band{Index: i + 1, ColorInterp: interps[i], Scale: 1}
	}

	keys := parseGeoKeys(main)
	ds.EPSG = keys.epsg()
	ds.AreaOrPoint = "Area"
	if keys.int(keyRasterType) == rasterPixelIsPoint {
		ds.AreaOrPoint = "Point"
	}
	ds.Transform, ds.Georeferenced = geoTransform(main, ds.AreaOrPoint == "Point")
	ds.Tags["AREA_OR_POINT"] = ds.AreaOrPoint

	for id, name := range textTags {
		if v, ok := main.str(id); ok && v != "" {
			ds.Tags[name] = v
		}
	}

	if v, ok := main.str(tagGDALNoData); ok {
		nodata, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("raster: invalid GDAL_NODATA %q: %w", v, err)
		}
		ds.NoData = &nodata
	}

	if v, ok := main.str(tagGDALMetadata); ok && v != "" {
		md, err := parseGDALMetadata(v)
		if err != nil {
			return nil, err
		}
		md.apply(ds)
	}

	return ds, nil
}

func checkHeader(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: file too short", ErrUnsupportedFormat)
	}
	switch {
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return nil
	case bytes.HasPrefix(data, []byte("II+\x00")), bytes.HasPrefix(data, []byte("MM\x00+")):
		return fmt.Errorf("%w: BigTIFF", ErrUnsupportedFormat)
	default:
		return fmt.Errorf("%w: not a TIFF file", ErrUnsupportedFormat)
	}
}

func dataType(bits, format int) (DataType, error) {
	switch format {
	case 1:
		switch bits {
		case 1, 2, 4, 8:
			return Uint8, nil
		case 16:
			return Uint16, nil
		case 32:
			return Uint32, nil
		case 64:
			return Uint64, nil
		}
	case 2:
		switch bits {
		case 8:
			return Int8, nil
		case 16:
			return Int16, nil
		case 32:
			return Int32, nil
		case 64:
			return Int64, nil
		}
	case 3:
		switch bits {
		case 16:
			return Float16, nil
		case 32:
			return Float32, nil
		case 64:
			return Float64, nil
		}
	case 5:
		switch bits {
		case 32:
			return CInt16, nil
		case 64:
			return CInt32, nil
		}
	case 6:
		switch bits {
		case 64:
			return Complex64, nil
		case 128:
			return Complex128, nil
		}
	}
	return "", fmt.Errorf("%w: %d-bit samples with sample format %d", ErrUnsupportedFormat, bits, format)
}

func colorInterps(photometric, count int, extra []int) []ColorInterp {
	out := make([]ColorInterp, count)
	for i := range out {
		out[i] = Undefined
	}
	if count == 0 {
		return out
	}

	switch photometric {
	case 0, 1:
		out[0] = Gray
	case 2, 6:
		if count >= 3 {
			out[0], out[1], out[2] = Red, Green, Blue
		}
	case 3:
		out[0] = Palette
	}

	// Extra samples are the trailing bands; 1 and 2 are (un)associated alpha.
	first := count - len(extra)
	for i, v := range extra {
		if idx := first + i; idx >= 0 && (v == 1 || v == 2) {
			out[idx] = Alpha
		}
	}
	return out
}

func geoTransform(t ifd, pixelIsPoint bool) (Affine, bool) {
	var a Affine
	if m := t.floats(tagModelTransformation); len(m) >= 16 {
		a = Affine{A: m[0], B: m[1], C: m[3], D: m[4], E: m[5], F: m[7]}
	} else {
		tie := t.floats(tagModelTiepoint)
		scale := t.floats(tagModelPixelScale)
		if len(tie) < 6 || len(scale) < 2 {
			return Identity, false
		}
		a = Affine{
			A: scale[0],
			C: tie[3] - tie[0]*scale[0],
			E: -scale[1],
			F: tie[4] + tie[1]*scale[1],
		}
	}
	if pixelIsPoint {
		// Tie points reference pixel centres; move the origin to the corner.
		a.C -= 0.5*a.A + 0.5*a.B
		a.F -= 0.5*a.D + 0.5*a.E
	}
	return a, true
}

// ifd indexes the tags of one image file directory by id.
type ifd map[uint16]*tiff.Tag

func newIFD(dir *tiff.Dir) ifd {
	t := make(ifd, len(dir.Tags))
	for _, tag := range dir.Tags {
		t[tag.Id] = tag
	}
	return t
}

func (t ifd) int(id uint16, def int) int {
	tag, ok := t[id]
	if !ok || tag.Count == 0 {
		return def
	}
	v, err := tag.Int(0)
	if err != nil {
		return def
	}
	return v
}

func (t ifd) ints(id uint16) []int {
	tag, ok := t[id]
	if !ok {
		return nil
	}
	out := make([]int, 0, tag.Count)
	for i := 0; i < int(tag.Count); i++ {
		v, err := tag.Int(i)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

func (t ifd) floats(id uint16) []float64 {
	tag, ok := t[id]
	if !ok {
		return nil
	}
	out := make([]float64, 0, tag.Count)
	for i := 0; i < int(tag.Count); i++ {
		var (
			v   float64
			err error
		)
		switch tag.Format() {
		case tiff.FloatVal:
			v, err = tag.Float(i)
		case tiff.IntVal:
			var n int64
			n, err = tag.Int64(i)
			v = float64(n)
		default:
			return nil
		}
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

func (t ifd) str(id uint16) (string, bool) {
	tag, ok := t[id]
	if !ok {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	return s, true
}
