package riostac

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/robert-malhotra/go-rio-stac/pkg/geo"
	"github.com/robert-malhotra/go-rio-stac/pkg/raster"
)

// projection returns the proj:* fields of a dataset, in its native CRS.
func projection(ds *raster.Dataset) map[string]any {
	b := ds.Bounds()
	bound := orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}

	var epsg any
	if ds.EPSG != 0 {
		epsg = ds.EPSG
	}
	fields := map[string]any{
		"proj:epsg":      epsg,
		"proj:geometry":  geojson.NewGeometry(geo.BoundsPolygon(bound)),
		"proj:bbox":      []float64{b[0], b[1], b[2], b[3]},
		"proj:shape":     []int{ds.Height, ds.Width},
		"proj:transform": ds.Transform.Coefficients(),
	}
	if crs, err := geo.Lookup(ds.EPSG); err == nil {
		fields["proj:wkt2"] = crs.WKT2()
		fields["proj:projjson"] = crs.PROJJSON()
	}
	return fields
}

// rasterBands returns the raster:bands entries of a dataset.
func rasterBands(ds *raster.Dataset, opts Options) []map[string]any {
	stats, err := ds.BandStatistics(opts.RasterMaxSize, opts.HistogramBins)
	switch {
	case errors.Is(err, raster.ErrStatisticsUnavailable):
		opts.Logger.Debug("band statistics unavailable", "error", err)
	case err != nil:
		opts.Logger.Warn("could not compute band statistics", "error", err)
	}

	out := make([]map[string]any, len(ds.Bands))
	for i, band := range ds.Bands {
		entry := map[string]any{
			"data_type": string(ds.DataType),
			"scale":     band.Scale,
			"offset":    band.Offset,
			"sampling":  strings.ToLower(ds.AreaOrPoint),
		}
		if ds.NoData != nil {
			entry["nodata"] = nodataValue(*ds.NoData)
		}
		if band.Unit != "" {
			entry["unit"] = band.Unit
		}
		if i < len(stats) {
			entry["statistics"] = statisticsValue(stats[i].Statistics)
			if h := stats[i].Histogram; h != nil {
				entry["histogram"] = map[string]any{
					"count":   h.Count,
					"min":     h.Min,
					"max":     h.Max,
					"buckets": h.Buckets,
				}
			}
		}
		out[i] = entry
	}
	return out
}

// statisticsValue omits everything but valid_percent when no pixel was valid.
func statisticsValue(s raster.Statistics) map[string]any {
	if s.ValidPercent == 0 {
		return map[string]any{"valid_percent": 0.0}
	}
	return map[string]any{
		"minimum":       s.Minimum,
		"maximum":       s.Maximum,
		"mean":          s.Mean,
		"stddev":        s.StdDev,
		"valid_percent": s.ValidPercent,
	}
}

// nodataValue spells non-finite values as strings, since JSON has no NaN.
func nodataValue(v float64) any {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return v
	}
}

var commonNames = map[raster.ColorInterp]bool{
	raster.Red:   true,
	raster.Green: true,
	raster.Blue:  true,
}

// eoBands returns the eo:bands entries of a dataset.
func eoBands(ds *raster.Dataset) []map[string]any {
	out := make([]map[string]any, len(ds.Bands))
	for i, band := range ds.Bands {
		desc := band.Description
		if desc == "" {
			desc = string(band.ColorInterp)
		}
		entry := map[string]any{
			"name":        "b" + strconv.Itoa(band.Index),
			"description": desc,
		}
		if commonNames[band.ColorInterp] {
			entry["common_name"] = string(band.ColorInterp)
		}
		out[i] = entry
	}
	return out
}

// cloudCover reads the IMAGERY CLOUDCOVER tag.
func cloudCover(ds *raster.Dataset) (float64, bool) {
	v, ok := ds.Imagery["CLOUDCOVER"]
	if !ok {
		return 0, false
	}
	cc, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return cc, true
}
