// Package testsupport builds small GeoTIFF files for tests.
package testsupport

import (
	"bytes"
	"compress/lzw"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// TIFF and GeoTIFF tag ids written by the builder.
const (
	tagNewSubfileType   = 254
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagPlanarConfig     = 284
	tagDateTime         = 306
	tagPredictor        = 317
	tagTileWidth        = 322
	tagTileLength       = 323
	tagTileOffsets      = 324
	tagTileByteCounts   = 325
	tagExtraSamples     = 338
	tagSampleFormat     = 339
	tagModelPixelScale  = 33550
	tagModelTiepoint    = 33922
	tagGeoKeyDirectory  = 34735
	tagGDALMetadata     = 42112
	tagGDALNoData       = 42113
	typeASCII           = 2
	typeShort           = 3
	typeLong            = 4
	typeDouble          = 12
	geoKeyModelType     = 1024
	geoKeyRasterType    = 1025
	geoKeyGeographic    = 2048
	geoKeyProjected     = 3072
	modelTypeProjected  = 1
	modelTypeGeographic = 2
)

// Compression schemes the builder can write. Any other value is written as
// a tag over uncompressed data.
const (
	CompressionLZW      = 5
	CompressionDeflate  = 8
	CompressionPackBits = 32773
)

// GeoTIFF describes one image, optionally with a reduced-resolution overview.
type GeoTIFF struct {
	Width, Height int
	Bands         int // default 1
	BitsPerSample int // default 8
	SampleFormat  int // default 1 (unsigned)
	Photometric   int // default 1 for one band, 2 (RGB) otherwise
	ExtraSamples  []uint16

	// Pixels holds band-interleaved little-endian samples, row by row.
	// Nil means all zero.
	Pixels []byte

	// Georeferencing; omitted when PixelSize is zero.
	Origin       [2]float64
	PixelSize    [2]float64
	EPSG         int
	Geographic   bool
	PixelIsPoint bool

	NoData       string
	DateTime     string
	GDALMetadata string

	// Compression defaults to 1 (none). LZW blocks must stay under 250
	// bytes: compress/lzw widens its codes one code later than TIFF does.
	Compression int
	// Predictor is 2 (horizontal differencing) or 3 (floating point).
	Predictor int
	// Planar 2 stores each band in its own blocks.
	Planar int
	// RowsPerStrip defaults to the image height.
	RowsPerStrip int

	// Tiled writes tiles instead of strips. TileSize defaults to one tile
	// covering the whole image.
	Tiled    bool
	TileSize int

	// Overview appends a reduced-resolution IFD of half the size holding
	// OverviewPixels (all zero when nil).
	Overview       bool
	OverviewPixels []byte
}

// Gray8 returns single-band 8-bit pixels computed by fn.
func Gray8(width, height int, fn func(x, y int) uint8) []byte {
	out := make([]byte, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out = append(out, fn(x, y))
		}
	}
	return out
}

// Gray16 returns single-band 16-bit little-endian pixels computed by fn.
func Gray16(width, height int, fn func(x, y int) uint16) []byte {
	out := make([]byte, 0, 2*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out = binary.LittleEndian.AppendUint16(out, fn(x, y))
		}
	}
	return out
}

// RGB8 returns three-band interleaved 8-bit pixels computed by fn.
func RGB8(width, height int, fn func(x, y int) (r, g, b uint8)) []byte {
	out := make([]byte, 0, 3*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := fn(x, y)
			out = append(out, r, g, b)
		}
	}
	return out
}

// Samples returns band-interleaved little-endian pixels; fn gives the value
// of band b at (x, y).
func Samples[T uint8 | int8 | uint16 | int16 | uint32 | int32 | float32 | float64](width, height, bands int, fn func(x, y, b int) T) []byte {
	var out []byte
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for b := 0; b < bands; b++ {
				out, _ = binary.Append(out, binary.LittleEndian, fn(x, y, b))
			}
		}
	}
	return out
}

// Encode serializes the image as a little-endian classic TIFF.
func (g GeoTIFF) Encode() []byte {
	g.defaults()

	images := []GeoTIFF{g}
	if g.Overview {
		ov := g
		ov.Width = max(1, g.Width/2)
		ov.Height = max(1, g.Height/2)
		ov.Pixels = g.OverviewPixels
		images = append(images, ov)
	}

	buf := []byte{'I', 'I', 42, 0, 0, 0, 0, 0}
	nextPtr := 4
	for i, img := range images {
		var offsets, counts []uint32
		for _, block := range img.blocks() {
			offsets = append(offsets, uint32(len(buf)))
			counts = append(counts, uint32(len(block)))
			buf = append(buf, block...)
			if len(buf)%2 == 1 {
				buf = append(buf, 0)
			}
		}

		ifdOffset := len(buf)
		binary.LittleEndian.PutUint32(buf[nextPtr:], uint32(ifdOffset))

		var next int
		buf, next = appendIFD(buf, img.entries(i > 0, offsets, counts))
		nextPtr = next
	}
	return buf
}

// Write encodes the image into dir/name and returns the path.
func (g GeoTIFF) Write(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, g.Encode(), 0o644); err != nil {
		t.Fatalf("write geotiff: %v", err)
	}
	return path
}

func (g *GeoTIFF) defaults() {
	if g.Bands == 0 {
		g.Bands = 1
	}
	if g.BitsPerSample == 0 {
		g.BitsPerSample = 8
	}
	if g.SampleFormat == 0 {
		g.SampleFormat = 1
	}
	if g.Photometric == 0 {
		if g.Bands >= 3 {
			g.Photometric = 2
		} else {
			g.Photometric = 1
		}
	}
	if g.Compression == 0 {
		g.Compression = 1
	}
	if g.Predictor == 0 {
		g.Predictor = 1
	}
	if g.Planar == 0 {
		g.Planar = 1
	}
	if g.Tiled && g.TileSize == 0 {
		g.TileSize = 16 * int(math.Ceil(float64(max(g.Width, g.Height))/16))
	}
}

func (g GeoTIFF) sampleBytes() int {
	return g.BitsPerSample / 8
}

// blockSize returns the pixel size of one strip or tile.
func (g GeoTIFF) blockSize() (int, int) {
	if g.Tiled {
		return g.TileSize, g.TileSize
	}
	if g.RowsPerStrip > 0 {
		return g.Width, min(g.RowsPerStrip, g.Height)
	}
	return g.Width, g.Height
}

// blocks returns the encoded strips or tiles in file order: row by row,
// then plane by plane when bands are stored separately.
func (g GeoTIFF) blocks() [][]byte {
	size := g.sampleBytes()
	pixels := g.Pixels
	if pixels == nil {
		pixels = make([]byte, g.Width*g.Height*g.Bands*size)
	}

	planes, spp := 1, g.Bands
	if g.Planar == 2 {
		planes, spp = g.Bands, 1
	}
	bw, bh := g.blockSize()
	across := (g.Width + bw - 1) / bw
	down := (g.Height + bh - 1) / bh

	var out [][]byte
	for plane := 0; plane < planes; plane++ {
		for by := 0; by < down; by++ {
			for bx := 0; bx < across; bx++ {
				rows := bh
				if !g.Tiled {
					rows = min(bh, g.Height-by*bh)
				}
				var raw []byte
				for y := 0; y < rows; y++ {
					row := make([]byte, bw*spp*size)
					for x := 0; x < bw; x++ {
						gx, gy := bx*bw+x, by*bh+y
						if gx >= g.Width || gy >= g.Height {
							continue
						}
						for s := 0; s < spp; s++ {
							src := ((gy*g.Width+gx)*g.Bands + plane + s) * size
							copy(row[(x*spp+s)*size:], pixels[src:src+size])
						}
					}
					raw = append(raw, g.predict(row, spp)...)
				}
				out = append(out, g.compress(raw))
			}
		}
	}
	return out
}

// predict applies the predictor to one row of little-endian samples.
func (g GeoTIFF) predict(row []byte, spp int) []byte {
	size := g.sampleBytes()
	switch g.Predictor {
	case 2:
		mask := uint64(math.MaxUint64)
		if g.BitsPerSample < 64 {
			mask = 1<<g.BitsPerSample - 1
		}
		n := len(row) / size
		vals := make([]uint64, n)
		for k := range vals {
			vals[k] = readLE(row[k*size : (k+1)*size])
		}
		out := make([]byte, len(row))
		for k := range vals {
			v := vals[k]
			if k >= spp {
				v = (v - vals[k-spp]) & mask
			}
			writeLE(out[k*size:(k+1)*size], v)
		}
		return out
	case 3:
		// Split big-endian sample bytes into planes, then difference.
		n := len(row) / size
		out := make([]byte, len(row))
		for k := 0; k < n; k++ {
			for b := 0; b < size; b++ {
				out[b*n+k] = row[k*size+size-1-b]
			}
		}
		for i := len(out) - 1; i >= spp; i-- {
			out[i] -= out[i-spp]
		}
		return out
	}
	return row
}

func readLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func writeLE(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
}

func (g GeoTIFF) compress(raw []byte) []byte {
	var buf bytes.Buffer
	switch g.Compression {
	case CompressionLZW:
		if len(raw) > 250 {
			panic(fmt.Sprintf("testsupport: %d-byte LZW block is too long", len(raw)))
		}
		w := lzw.NewWriter(&buf, lzw.MSB, 8)
		_, _ = w.Write(raw)
		_ = w.Close()
	case CompressionDeflate:
		w := zlib.NewWriter(&buf)
		_, _ = w.Write(raw)
		_ = w.Close()
	case CompressionPackBits:
		return packBits(raw)
	default:
		return raw
	}
	return buf.Bytes()
}

// packBits encodes runs of three or more equal bytes as repeats and
// everything else as literals.
func packBits(src []byte) []byte {
	var out []byte
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < 128 && src[i+run] == src[i] {
			run++
		}
		if run >= 3 {
			out = append(out, byte(int8(1-run)), src[i])
			i += run
			continue
		}
		j := i
		for j < len(src) && j-i < 128 {
			if j+2 < len(src) && src[j] == src[j+1] && src[j] == src[j+2] {
				break
			}
			j++
		}
		out = append(out, byte(j-i-1))
		out = append(out, src[i:j]...)
		i = j
	}
	return out
}

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shorts(tag uint16, vals ...uint16) entry {
	var data []byte
	for _, v := range vals {
		data = binary.LittleEndian.AppendUint16(data, v)
	}
	return entry{tag: tag, typ: typeShort, count: uint32(len(vals)), data: data}
}

func longs(tag uint16, vals ...uint32) entry {
	var data []byte
	for _, v := range vals {
		data = binary.LittleEndian.AppendUint32(data, v)
	}
	return entry{tag: tag, typ: typeLong, count: uint32(len(vals)), data: data}
}

func doubles(tag uint16, vals ...float64) entry {
	var data []byte
	for _, v := range vals {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
	}
	return entry{tag: tag, typ: typeDouble, count: uint32(len(vals)), data: data}
}

func ascii(tag uint16, s string) entry {
	data := append([]byte(s), 0)
	return entry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data}
}

func (g GeoTIFF) entries(overview bool, offsets, counts []uint32) []entry {
	bits := make([]uint16, g.Bands)
	formats := make([]uint16, g.Bands)
	for i := range bits {
		bits[i] = uint16(g.BitsPerSample)
		formats[i] = uint16(g.SampleFormat)
	}

	es := []entry{
		longs(tagImageWidth, uint32(g.Width)),
		longs(tagImageLength, uint32(g.Height)),
		shorts(tagBitsPerSample, bits...),
		shorts(tagCompression, uint16(g.Compression)),
		shorts(tagPhotometric, uint16(g.Photometric)),
		shorts(tagSamplesPerPixel, uint16(g.Bands)),
		shorts(tagPlanarConfig, uint16(g.Planar)),
		shorts(tagSampleFormat, formats...),
	}
	if g.Predictor != 1 {
		es = append(es, shorts(tagPredictor, uint16(g.Predictor)))
	}
	if overview {
		es = append(es, longs(tagNewSubfileType, 1))
	}
	bw, bh := g.blockSize()
	if g.Tiled {
		es = append(es,
			shorts(tagTileWidth, uint16(bw)),
			shorts(tagTileLength, uint16(bh)),
			longs(tagTileOffsets, offsets...),
			longs(tagTileByteCounts, counts...),
		)
	} else {
		es = append(es,
			longs(tagStripOffsets, offsets...),
			longs(tagRowsPerStrip, uint32(bh)),
			longs(tagStripByteCounts, counts...),
		)
	}
	if len(g.ExtraSamples) > 0 {
		es = append(es, shorts(tagExtraSamples, g.ExtraSamples...))
	}
	if overview {
		return es
	}

	if g.DateTime != "" {
		es = append(es, ascii(tagDateTime, g.DateTime))
	}
	if g.PixelSize != [2]float64{} {
		es = append(es,
			doubles(tagModelPixelScale, g.PixelSize[0], g.PixelSize[1], 0),
			doubles(tagModelTiepoint, 0, 0, 0, g.Origin[0], g.Origin[1], 0),
			g.geoKeys(),
		)
	}
	if g.GDALMetadata != "" {
		es = append(es, ascii(tagGDALMetadata, g.GDALMetadata))
	}
	if g.NoData != "" {
		es = append(es, ascii(tagGDALNoData, g.NoData))
	}
	return es
}

func (g GeoTIFF) geoKeys() entry {
	rasterType := uint16(1)
	if g.PixelIsPoint {
		rasterType = 2
	}
	keys := [][4]uint16{{geoKeyRasterType, 0, 1, rasterType}}
	if g.Geographic {
		keys = append(keys, [4]uint16{geoKeyModelType, 0, 1, modelTypeGeographic})
		if g.EPSG != 0 {
			keys = append(keys, [4]uint16{geoKeyGeographic, 0, 1, uint16(g.EPSG)})
		}
	} else {
		keys = append(keys, [4]uint16{geoKeyModelType, 0, 1, modelTypeProjected})
		if g.EPSG != 0 {
			keys = append(keys, [4]uint16{geoKeyProjected, 0, 1, uint16(g.EPSG)})
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i][0] < keys[j][0] })

	vals := []uint16{1, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		vals = append(vals, k[:]...)
	}
	return shorts(tagGeoKeyDirectory, vals...)
}

// appendIFD writes an IFD at the end of buf followed by its out-of-line
// values. It returns the new buffer and the position of the next-IFD pointer.
func appendIFD(buf []byte, entries []entry) ([]byte, int) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	start := len(buf)
	extra := start + 2 + 12*len(entries) + 4

	var overflow []byte
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(entries)))
	for _, e := range entries {
		buf = binary.LittleEndian.AppendUint16(buf, e.tag)
		buf = binary.LittleEndian.AppendUint16(buf, e.typ)
		buf = binary.LittleEndian.AppendUint32(buf, e.count)
		if len(e.data) <= 4 {
			val := make([]byte, 4)
			copy(val, e.data)
			buf = append(buf, val...)
			continue
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(extra+len(overflow)))
		overflow = append(overflow, e.data...)
		if len(overflow)%2 == 1 {
			overflow = append(overflow, 0)
		}
	}
	nextPtr := len(buf)
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	return append(buf, overflow...), nextPtr
}
