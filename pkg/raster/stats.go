package raster

import (
	"fmt"
	"math"
)

// Statistics summarizes the valid pixels of one band.
type Statistics struct {
	Minimum      float64
	Maximum      float64
	Mean         float64
	StdDev       float64
	ValidPercent float64
}

// Histogram counts valid pixels in equal-width buckets between Min and Max.
// Count is the number of bucket edges.
type Histogram struct {
	Count   int
	Min     float64
	Max     float64
	Buckets []int
}

// BandStats holds the statistics of one band. Histogram is nil when the
// statistics were read from file metadata instead of computed.
type BandStats struct {
	Statistics Statistics
	Histogram  *Histogram
}

// BandStatistics returns statistics for every band. Pixels are read from the
// smallest overview whose longer side still reaches maxSize, then sampled
// with a stride that keeps each axis at or below maxSize (no limit when
// maxSize <= 0); nodata and NaN pixels are excluded. When the pixels cannot
// be decoded, statistics recorded by GDAL in the file are returned instead.
func (d *Dataset) BandStatistics(maxSize, bins int) ([]BandStats, error) {
	if bins <= 0 {
		bins = 10
	}

	out, decodeErr := d.computeStatistics(maxSize, bins)
	if decodeErr == nil {
		return out, nil
	}

	out = make([]BandStats, len(d.Bands))
	for i, band := range d.Bands {
		if band.Statistics == nil {
			return nil, fmt.Errorf("%w: %v", ErrStatisticsUnavailable, decodeErr)
		}
		out[i] = BandStats{Statistics: *band.Statistics}
	}
	return out, nil
}

func (d *Dataset) computeStatistics(maxSize, bins int) ([]BandStats, error) {
	lv := d.levelFor(maxSize)
	stepX, stepY := 1, 1
	if maxSize > 0 {
		stepX = int(math.Ceil(float64(lv.width) / float64(maxSize)))
		stepY = int(math.Ceil(float64(lv.height) / float64(maxSize)))
	}
	stepX, stepY = max(stepX, 1), max(stepY, 1)

	values := make([][]float64, len(d.Bands))
	var total int
	err := d.samplePixels(lv, stepX, stepY, func(pixel []float64) {
		total++
		for b, v := range pixel {
			if !d.masked(v) {
				values[b] = append(values[b], v)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	out := make([]BandStats, len(d.Bands))
	for b := range d.Bands {
		out[b] = summarize(values[b], total, bins)
	}
	return out, nil
}

func (d *Dataset) masked(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	if d.NoData == nil {
		return false
	}
	if math.IsNaN(*d.NoData) {
		return false
	}
	return v == *d.NoData
}

func summarize(values []float64, total, bins int) BandStats {
	if len(values) == 0 || total == 0 {
		return BandStats{}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}

	return BandStats{
		Statistics: Statistics{
			Minimum:      lo,
			Maximum:      hi,
			Mean:         mean,
			StdDev:       math.Sqrt(sq / float64(len(values))),
			ValidPercent: float64(len(values)) / float64(total) * 100,
		},
		Histogram: histogram(values, lo, hi, bins),
	}
}

// histogram mirrors numpy.histogram: the last bucket includes its upper
// edge, and a zero-width range is widened by 0.5 on each side.
func histogram(values []float64, lo, hi float64, bins int) *Histogram {
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	buckets := make([]int, bins)
	width := hi - lo
	for _, v := range values {
		idx := int((v - lo) / width * float64(bins))
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx]++
	}
	return &Histogram{Count: bins + 1, Min: lo, Max: hi, Buckets: buckets}
}
