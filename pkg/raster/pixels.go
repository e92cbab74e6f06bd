package raster

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"math"

	"golang.org/x/image/tiff/lzw"
)

const (
	compressionNone     = 1
	compressionLZW      = 5
	compressionDeflate  = 8
	compressionPackBits = 32773
	compressionDeflate2 = 32946

	predictorNone       = 1
	predictorHorizontal = 2
	predictorFloat      = 3
)

// level is the pixel layout of one image: the full resolution image or one
// of its overviews.
type level struct {
	width, height  int
	tiled          bool
	blockW, blockH int
	offsets        []int
	byteCounts     []int
	compression    int
	predictor      int
	planar         int
}

func newLevel(t ifd) level {
	lv := level{
		width:       t.int(tagImageWidth, 0),
		height:      t.int(tagImageLength, 0),
		compression: t.int(tagCompression, compressionNone),
		predictor:   t.int(tagPredictor, predictorNone),
		planar:      t.int(tagPlanarConfig, 1),
	}
	if tw := t.int(tagTileWidth, 0); tw > 0 {
		lv.tiled = true
		lv.blockW = tw
		lv.blockH = t.int(tagTileLength, tw)
		lv.offsets = t.ints(tagTileOffsets)
		lv.byteCounts = t.ints(tagTileByteCounts)
	} else {
		lv.blockW = lv.width
		lv.blockH = min(t.int(tagRowsPerStrip, lv.height), lv.height)
		lv.offsets = t.ints(tagStripOffsets)
		lv.byteCounts = t.ints(tagStripByteCounts)
	}
	return lv
}

func (lv level) grid() (across, down int) {
	if lv.blockW <= 0 || lv.blockH <= 0 {
		return 0, 0
	}
	return (lv.width + lv.blockW - 1) / lv.blockW, (lv.height + lv.blockH - 1) / lv.blockH
}

// levelFor picks the smallest image whose longer side still reaches maxSize,
// so that sampling never reads coarser pixels than requested.
func (d *Dataset) levelFor(maxSize int) level {
	best := d.levels[0]
	if maxSize <= 0 {
		return best
	}
	for _, lv := range d.levels[1:] {
		if max(lv.width, lv.height) >= maxSize && lv.width*lv.height < best.width*best.height {
			best = lv
		}
	}
	return best
}

// sampleValue converts the raw bits of one sample to a number.
func (d *Dataset) sampleValue() (func(raw uint64) float64, error) {
	bits := d.bitsPerSample
	switch d.sampleFormat {
	case 1:
		if bits == 1 || bits == 2 || bits == 4 || bits == 8 || bits == 16 || bits == 32 || bits == 64 {
			return func(raw uint64) float64 { return float64(raw) }, nil
		}
	case 2:
		if bits == 8 || bits == 16 || bits == 32 || bits == 64 {
			shift := 64 - bits
			return func(raw uint64) float64 { return float64(int64(raw<<shift) >> shift) }, nil
		}
	case 3:
		switch bits {
		case 16:
			return func(raw uint64) float64 { return halfToFloat(uint16(raw)) }, nil
		case 32:
			return func(raw uint64) float64 { return float64(math.Float32frombits(uint32(raw))) }, nil
		case 64:
			return math.Float64frombits, nil
		}
	}
	return nil, fmt.Errorf("%s samples are not decodable", d.DataType)
}

// samplePixels calls fn for every pixel of lv on a stepX by stepY grid, with
// the values of all bands at that pixel.
func (d *Dataset) samplePixels(lv level, stepX, stepY int, fn func(values []float64)) error {
	value, err := d.sampleValue()
	if err != nil {
		return err
	}
	switch lv.predictor {
	case predictorNone:
	case predictorHorizontal:
		if d.bitsPerSample < 8 {
			return fmt.Errorf("predictor with %d-bit samples is not decodable", d.bitsPerSample)
		}
	case predictorFloat:
		if d.sampleFormat != 3 {
			return fmt.Errorf("floating point predictor with %s samples", d.DataType)
		}
	default:
		return fmt.Errorf("predictor %d is not decodable", lv.predictor)
	}

	bands := len(d.Bands)
	planes, spp := 1, bands
	if lv.planar == 2 {
		planes, spp = bands, 1
	}
	across, down := lv.grid()
	if len(lv.offsets) < across*down*planes || len(lv.byteCounts) < len(lv.offsets) {
		return fmt.Errorf("%d blocks listed for a %dx%d grid of %d planes", len(lv.offsets), across, down, planes)
	}

	// Sampled pixels are gathered per block so that each block is decoded once.
	cols := (lv.width + stepX - 1) / stepX
	rows := (lv.height + stepY - 1) / stepY
	pixels := make([]float64, cols*rows*bands)

	rowBytes := (lv.blockW*spp*d.bitsPerSample + 7) / 8
	raw := make([]uint64, lv.blockW*spp)
	for plane := 0; plane < planes; plane++ {
		for by := 0; by < down; by++ {
			for bx := 0; bx < across; bx++ {
				idx := plane*across*down + by*across + bx
				blockRows := lv.blockH
				if !lv.tiled {
					blockRows = min(lv.blockH, lv.height-by*lv.blockH)
				}
				block, err := d.readBlock(lv, idx, rowBytes*blockRows)
				if err != nil {
					return fmt.Errorf("block %d: %w", idx, err)
				}

				x0, y0 := bx*lv.blockW, by*lv.blockH
				for y := 0; y < blockRows; y++ {
					gy := y0 + y
					if gy >= lv.height || gy%stepY != 0 {
						continue
					}
					row := block[y*rowBytes : (y+1)*rowBytes]
					d.decodeRow(lv.predictor, row, raw, spp)
					for x := 0; x < lv.blockW; x++ {
						gx := x0 + x
						if gx >= lv.width || gx%stepX != 0 {
							continue
						}
						base := ((gy/stepY)*cols + gx/stepX) * bands
						for s := 0; s < spp; s++ {
							pixels[base+plane+s] = value(raw[x*spp+s])
						}
					}
				}
			}
		}
	}

	for i := 0; i < len(pixels); i += bands {
		fn(pixels[i : i+bands])
	}
	return nil
}

// readBlock returns the decompressed bytes of block idx, at least size long.
func (d *Dataset) readBlock(lv level, idx, size int) ([]byte, error) {
	off, n := lv.offsets[idx], lv.byteCounts[idx]
	if off < 0 || n < 0 || off+n > len(d.data) {
		return nil, fmt.Errorf("data at %d+%d is outside the file", off, n)
	}
	src := bytes.NewReader(d.data[off : off+n])

	var r io.Reader
	switch lv.compression {
	case compressionNone:
		r = src
	case compressionLZW:
		lr := lzw.NewReader(src, lzw.MSB, 8)
		defer lr.Close()
		r = lr
	case compressionDeflate, compressionDeflate2:
		zr, err := zlib.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case compressionPackBits:
		r = &packBitsReader{src: src}
	default:
		return nil, fmt.Errorf("compression %d is not decodable", lv.compression)
	}

	var buf bytes.Buffer
	buf.Grow(size)
	// Limiting the read tolerates streams that end without an end code.
	if _, err := buf.ReadFrom(io.LimitReader(r, int64(size))); err != nil {
		return nil, err
	}
	if buf.Len() < size {
		return nil, fmt.Errorf("%d of %d bytes decoded", buf.Len(), size)
	}
	return buf.Bytes(), nil
}

// decodeRow unpacks the raw samples of one block row into out, undoing the
// predictor. row is modified.
func (d *Dataset) decodeRow(predictor int, row []byte, out []uint64, spp int) {
	bits := d.bitsPerSample
	if predictor == predictorFloat {
		// Bytes were split into planes, most significant first, then
		// differenced across the row.
		for i := spp; i < len(row); i++ {
			row[i] += row[i-spp]
		}
		size := bits / 8
		n := len(out)
		for k := range out {
			var v uint64
			for b := 0; b < size; b++ {
				v = v<<8 | uint64(row[b*n+k])
			}
			out[k] = v
		}
		return
	}

	for k := range out {
		switch bits {
		case 8:
			out[k] = uint64(row[k])
		case 16:
			out[k] = uint64(d.order.Uint16(row[2*k:]))
		case 32:
			out[k] = uint64(d.order.Uint32(row[4*k:]))
		case 64:
			out[k] = d.order.Uint64(row[8*k:])
		default:
			pos := k * bits
			shift := 8 - bits - pos%8
			out[k] = uint64(row[pos/8]>>shift) & (1<<bits - 1)
		}
	}

	if predictor == predictorHorizontal {
		mask := uint64(math.MaxUint64)
		if bits < 64 {
			mask = 1<<bits - 1
		}
		for k := spp; k < len(out); k++ {
			out[k] = (out[k] + out[k-spp]) & mask
		}
	}
}

// packBitsReader decodes the PackBits run-length scheme (TIFF 6.0 section 9).
type packBitsReader struct {
	src     io.ByteReader
	pending []byte
	buf     [128]byte
}

func (p *packBitsReader) Read(b []byte) (int, error) {
	for len(p.pending) == 0 {
		header, err := p.src.ReadByte()
		if err != nil {
			return 0, err
		}
		code := int(int8(header))
		switch {
		case code >= 0:
			for i := 0; i <= code; i++ {
				if p.buf[i], err = p.src.ReadByte(); err != nil {
					return 0, io.ErrUnexpectedEOF
				}
			}
			p.pending = p.buf[:code+1]
		case code == -128:
		default:
			v, err := p.src.ReadByte()
			if err != nil {
				return 0, io.ErrUnexpectedEOF
			}
			for i := 0; i < 1-code; i++ {
				p.buf[i] = v
			}
			p.pending = p.buf[:1-code]
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// halfToFloat converts an IEEE 754 half precision value.
func halfToFloat(h uint16) float64 {
	sign := 1.0
	if h&0x8000 != 0 {
		sign = -1
	}
	exp := int(h>>10) & 0x1f
	frac := float64(h & 0x3ff)
	switch exp {
	case 0:
		return sign * math.Ldexp(frac, -24)
	case 0x1f:
		if frac != 0 {
			return math.NaN()
		}
		return math.Inf(int(sign))
	}
	return sign * math.Ldexp(1+frac/1024, exp-15)
}
