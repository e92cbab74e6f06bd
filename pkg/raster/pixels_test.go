package raster

import (
	"bytes"
	"encoding/binary"
	"image"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xtiff "golang.org/x/image/tiff"

	"github.com/robert-malhotra/go-rio-stac/internal/testsupport"
)

func TestBandStatisticsFloat32NaNNoData(t *testing.T) {
	nan := float32(math.NaN())
	g := testsupport.GeoTIFF{
		Width:         4,
		Height:        4,
		BitsPerSample: 32,
		SampleFormat:  3,
		NoData:        "nan",
		Pixels: testsupport.Samples(4, 4, 1, func(x, y, _ int) float32 {
			if (x == 0 && y == 0) || (x == 3 && y == 3) {
				return nan
			}
			return float32(y*4 + x)
		}),
	}

	stats, err := decode(t, g).BandStatistics(1024, 10)
	require.NoError(t, err)
	s := stats[0].Statistics
	assert.Equal(t, 1.0, s.Minimum)
	assert.Equal(t, 14.0, s.Maximum)
	assert.Equal(t, 7.5, s.Mean)
	assert.Equal(t, 87.5, s.ValidPercent)
}

func TestBandStatisticsUint16FourBands(t *testing.T) {
	g := testsupport.GeoTIFF{
		Width:         8,
		Height:        8,
		Bands:         4,
		BitsPerSample: 16,
		ExtraSamples:  []uint16{2},
		Compression:   testsupport.CompressionLZW,
		Predictor:     2,
		RowsPerStrip:  1,
		Pixels: testsupport.Samples(8, 8, 4, func(x, y, b int) uint16 {
			if b == 3 {
				return uint16(65535 - 1000*(x+8*y))
			}
			return uint16(1000*(b+1) + x + 8*y)
		}),
	}
	ds := decode(t, g)
	assert.Equal(t, Uint16, ds.DataType)
	assert.Equal(t, Alpha, ds.Bands[3].ColorInterp)

	stats, err := ds.BandStatistics(1024, 10)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	for b := 0; b < 3; b++ {
		s := stats[b].Statistics
		assert.Equal(t, float64(1000*(b+1)), s.Minimum, "band %d", b+1)
		assert.Equal(t, float64(1000*(b+1)+63), s.Maximum, "band %d", b+1)
		assert.Equal(t, float64(1000*(b+1))+31.5, s.Mean, "band %d", b+1)
	}
	assert.Equal(t, 2535.0, stats[3].Statistics.Minimum)
	assert.Equal(t, 65535.0, stats[3].Statistics.Maximum)
	assert.Equal(t, 34035.0, stats[3].Statistics.Mean)
}

func TestBandStatisticsInt16(t *testing.T) {
	g := testsupport.GeoTIFF{
		Width:         6,
		Height:        5,
		BitsPerSample: 16,
		SampleFormat:  2,
		Compression:   testsupport.CompressionDeflate,
		NoData:        "-32768",
		Pixels: testsupport.Samples(6, 5, 1, func(x, y, _ int) int16 {
			if x == 5 && y == 4 {
				return math.MinInt16
			}
			return int16((x-3)*100 + y)
		}),
	}

	stats, err := decode(t, g).BandStatistics(1024, 10)
	require.NoError(t, err)
	s := stats[0].Statistics
	assert.Equal(t, -300.0, s.Minimum)
	assert.Equal(t, 203.0, s.Maximum)
	assert.InDelta(t, (-1440.0-204.0)/29.0, s.Mean, 1e-9)
	assert.InDelta(t, 29.0/30.0*100, s.ValidPercent, 1e-9)
}

func TestBandStatisticsTwoBandGrayPlanar(t *testing.T) {
	g := testsupport.GeoTIFF{
		Width:       5,
		Height:      3,
		Bands:       2,
		Planar:      2,
		Compression: testsupport.CompressionPackBits,
		Pixels: testsupport.Samples(5, 3, 2, func(x, _, b int) uint8 {
			if b == 1 {
				return 200
			}
			return uint8(x)
		}),
	}
	ds := decode(t, g)
	assert.Equal(t, 2, ds.Planar)

	stats, err := ds.BandStatistics(1024, 10)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, Statistics{Minimum: 0, Maximum: 4, Mean: 2, StdDev: math.Sqrt2, ValidPercent: 100}, stats[0].Statistics)
	assert.Equal(t, Statistics{Minimum: 200, Maximum: 200, Mean: 200, ValidPercent: 100}, stats[1].Statistics)
}

func TestBandStatisticsFloatPredictor(t *testing.T) {
	cases := []struct {
		name   string
		bits   int
		pixels []byte
	}{
		{"float32", 32, testsupport.Samples(5, 4, 1, func(x, y, _ int) float32 {
			return float32(x)*0.5 - float32(y)*1.25
		})},
		{"float64", 64, testsupport.Samples(5, 4, 1, func(x, y, _ int) float64 {
			return float64(x)*0.5 - float64(y)*1.25
		})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := testsupport.GeoTIFF{
				Width:         5,
				Height:        4,
				BitsPerSample: tc.bits,
				SampleFormat:  3,
				Compression:   testsupport.CompressionDeflate,
				Predictor:     3,
				RowsPerStrip:  3,
				Pixels:        tc.pixels,
			}

			stats, err := decode(t, g).BandStatistics(1024, 10)
			require.NoError(t, err)
			s := stats[0].Statistics
			assert.Equal(t, -3.75, s.Minimum)
			assert.Equal(t, 2.0, s.Maximum)
			assert.InDelta(t, -0.875, s.Mean, 1e-12)
		})
	}
}

func TestBandStatisticsLayouts(t *testing.T) {
	base := testsupport.GeoTIFF{
		Width:         40,
		Height:        24,
		Bands:         2,
		BitsPerSample: 16,
		Pixels: testsupport.Samples(40, 24, 2, func(x, y, b int) uint16 {
			return uint16(x*y + 500*b)
		}),
	}
	want, err := decode(t, base).BandStatistics(0, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, want[0].Statistics.Minimum)
	assert.Equal(t, 897.0, want[0].Statistics.Maximum)
	assert.Equal(t, 500.0, want[1].Statistics.Minimum)

	layouts := map[string]func(g *testsupport.GeoTIFF){
		"strips packbits": func(g *testsupport.GeoTIFF) {
			g.RowsPerStrip = 5
			g.Compression = testsupport.CompressionPackBits
		},
		"strips lzw": func(g *testsupport.GeoTIFF) {
			g.RowsPerStrip = 1
			g.Compression = testsupport.CompressionLZW
			g.Predictor = 2
		},
		"tiles deflate": func(g *testsupport.GeoTIFF) {
			g.Tiled = true
			g.TileSize = 16
			g.Compression = testsupport.CompressionDeflate
		},
		"planar tiles": func(g *testsupport.GeoTIFF) {
			g.Tiled = true
			g.TileSize = 16
			g.Planar = 2
			g.Compression = testsupport.CompressionDeflate
			g.Predictor = 2
		},
	}
	for name, apply := range layouts {
		t.Run(name, func(t *testing.T) {
			g := base
			apply(&g)
			got, err := decode(t, g).BandStatistics(0, 10)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestBandStatisticsUsesOverview(t *testing.T) {
	g := testsupport.GeoTIFF{
		Width:          64,
		Height:         64,
		Pixels:         bytes.Repeat([]byte{1}, 64*64),
		Tiled:          true,
		TileSize:       16,
		Compression:    testsupport.CompressionDeflate,
		Overview:       true,
		OverviewPixels: bytes.Repeat([]byte{200}, 32*32),
	}
	ds := decode(t, g)

	for maxSize, want := range map[int]float64{0: 1, 16: 200, 32: 200, 33: 1, 64: 1, 1024: 1} {
		stats, err := ds.BandStatistics(maxSize, 10)
		require.NoError(t, err)
		assert.Equal(t, want, stats[0].Statistics.Mean, "max size %d", maxSize)
	}
}

func TestBandStatisticsMatchesXImageEncoder(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 10, 7))
	var want []float64
	for y := 0; y < 7; y++ {
		for x := 0; x < 10; x++ {
			v := uint16(x*x*300 + y*7)
			binary.BigEndian.PutUint16(img.Pix[img.PixOffset(x, y):], v)
			want = append(want, float64(v))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, xtiff.Encode(&buf, img, &xtiff.Options{Compression: xtiff.Deflate}))
	ds, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, Uint16, ds.DataType)

	stats, err := ds.BandStatistics(0, 10)
	require.NoError(t, err)
	assert.Equal(t, summarize(want, len(want), 10), stats[0])
}

func TestBandStatisticsUndecodableCompression(t *testing.T) {
	g := testsupport.GeoTIFF{Width: 2, Height: 2, Compression: 7}

	_, err := decode(t, g).BandStatistics(1024, 10)
	require.ErrorIs(t, err, ErrStatisticsUnavailable)
	assert.Contains(t, err.Error(), "compression 7")
}

func TestDecodeRowSubByteSamples(t *testing.T) {
	out := make([]uint64, 4)
	(&Dataset{bitsPerSample: 4}).decodeRow(predictorNone, []byte{0x12, 0x3f}, out, 1)
	assert.Equal(t, []uint64{1, 2, 3, 15}, out)

	out = make([]uint64, 10)
	(&Dataset{bitsPerSample: 1}).decodeRow(predictorNone, []byte{0xa5, 0x80}, out, 1)
	assert.Equal(t, []uint64{1, 0, 1, 0, 0, 1, 0, 1, 1, 0}, out)
}

func TestDecodeRowBigEndian(t *testing.T) {
	out := make([]uint64, 2)
	ds := &Dataset{bitsPerSample: 16, order: binary.BigEndian}
	ds.decodeRow(predictorHorizontal, []byte{0x01, 0x00, 0xff, 0xff}, out, 1)
	assert.Equal(t, []uint64{256, 255}, out)
}

func TestPackBitsReader(t *testing.T) {
	packed := []byte{0xfe, 0xaa, 0x02, 0x80, 0x00, 0x2a, 0xfd, 0xaa, 0x03, 0x80, 0x00, 0x2a, 0x22, 0xf7, 0xaa}
	want := []byte{
		0xaa, 0xaa, 0xaa, 0x80, 0x00, 0x2a, 0xaa, 0xaa, 0xaa, 0xaa, 0x80, 0x00, 0x2a, 0x22,
		0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa,
	}

	got, err := io.ReadAll(&packBitsReader{src: bytes.NewReader(packed)})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = io.ReadAll(&packBitsReader{src: bytes.NewReader([]byte{0x02, 0x80})})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestHalfToFloat(t *testing.T) {
	assert.Equal(t, 1.0, halfToFloat(0x3c00))
	assert.Equal(t, -2.0, halfToFloat(0xc000))
	assert.Equal(t, 65504.0, halfToFloat(0x7bff))
	assert.Equal(t, math.Ldexp(1, -24), halfToFloat(0x0001))
	assert.True(t, math.IsInf(halfToFloat(0x7c00), 1))
	assert.True(t, math.IsNaN(halfToFloat(0x7e00)))
}
