// Package riostac builds a STAC Item describing one or more raster files.
package riostac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/robert-malhotra/go-rio-stac/pkg/client"
	"github.com/robert-malhotra/go-rio-stac/pkg/geo"
	"github.com/robert-malhotra/go-rio-stac/pkg/raster"
	"github.com/robert-malhotra/go-rio-stac/pkg/stac"
)

var (
	// ErrNoInputs is returned when CreateItem is called without inputs.
	ErrNoInputs = errors.New("riostac: no input")
	// ErrTooManyAssetNames is returned when more asset names than inputs are given.
	ErrTooManyAssetNames = errors.New("riostac: more asset names than inputs")
	// ErrTooManyAssetHrefs is returned when more asset hrefs than inputs are given.
	ErrTooManyAssetHrefs = errors.New("riostac: more asset hrefs than inputs")
)

// Layout of the TIFFTAG_DATETIME tag.
const tiffDatetimeLayout = "2006:01:02 15:04:05"

type source struct {
	input string
	ds    *raster.Dataset
}

// progressLogger reports reads at debug level each time another quarter of
// the input arrives, or every 16 MiB when the size is unknown.
func progressLogger(logger *slog.Logger) client.ProgressFunc {
	var logged int64
	return func(read, total int64) {
		if read == 0 {
			logged = 0
			return
		}
		var step int64
		if total > 0 {
			step = read * 4 / total
		} else {
			step = read / (16 << 20)
		}
		if step > logged {
			logged = step
			logger.Debug("reading input", "bytes", read, "total", total)
		}
	}
}

// CreateItem reads every input and describes them as one Item, each input
// becoming an asset.
func CreateItem(ctx context.Context, inputs []string, opts Options) (*stac.Item, error) {
	opts = opts.withDefaults()
	switch {
	case len(inputs) == 0:
		return nil, ErrNoInputs
	case len(opts.AssetNames) > len(inputs):
		return nil, fmt.Errorf("%w: %d names for %d inputs", ErrTooManyAssetNames, len(opts.AssetNames), len(inputs))
	case len(opts.AssetHrefs) > len(inputs):
		return nil, fmt.Errorf("%w: %d hrefs for %d inputs", ErrTooManyAssetHrefs, len(opts.AssetHrefs), len(inputs))
	}

	clientOpts, err := opts.Env.ClientOptions(opts.Logger)
	if err != nil {
		return nil, err
	}
	clientOpts = append(clientOpts,
		client.WithLogger(client.SlogLogger(opts.Logger)),
		client.WithProgress(progressLogger(opts.Logger)))
	fetcher, err := client.New(append(clientOpts, opts.ClientOptions...)...)
	if err != nil {
		return nil, err
	}

	sources := make([]source, len(inputs))
	for i, input := range inputs {
		data, err := fetcher.Fetch(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("riostac: %s: %w", input, err)
		}
		ds, err := raster.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("riostac: %s: %w", input, err)
		}
		opts.Logger.Debug("decoded dataset", "input", input,
			"width", ds.Width, "height", ds.Height, "bands", ds.Count(), "epsg", ds.EPSG)
		sources[i] = source{input: input, ds: ds}
	}

	id := opts.ID
	if id == "" {
		id = baseName(inputs[0])
	}
	item := stac.NewItem(id)
	for _, ext := range opts.Extensions {
		item.AddExtension(ext)
	}

	var bound orb.Bound
	for i, src := range sources {
		_, b, err := geo.Footprint(src.ds.Bounds(), src.ds.EPSG, geo.DefaultDensify)
		if err != nil {
			return nil, fmt.Errorf("riostac: %s: %w", src.input, err)
		}
		if i == 0 {
			bound = b
		} else {
			bound = bound.Union(b)
		}
	}
	item.Geometry = geojson.NewGeometry(geo.BoundsPolygon(bound))
	item.Bbox = []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}

	names := assetNames(inputs, opts.AssetNames)
	for i, src := range sources {
		asset := buildAsset(src, i, opts)
		if opts.WithProj && len(sources) > 1 {
			for k, v := range projection(src.ds) {
				asset.Set(k, v)
			}
		}
		item.Assets[names[i]] = asset
	}

	first := sources[0].ds
	if opts.WithProj {
		if len(sources) == 1 {
			for k, v := range projection(first) {
				item.Properties[k] = v
			}
		}
		item.AddExtension(stac.ProjectionExtension)
	}
	if opts.WithRaster {
		item.AddExtension(stac.RasterExtension)
	}
	if opts.WithEO {
		if cc, ok := cloudCover(first); ok {
			item.Properties["eo:cloud_cover"] = cc
		}
		item.AddExtension(stac.EOExtension)
	}

	for k, v := range opts.Properties {
		item.Properties[k] = v
	}
	item.SetDatetime(itemDatetime(first, opts))

	if opts.Collection != "" {
		item.Collection = opts.Collection
	}
	if opts.CollectionURL != "" {
		item.AddLink(stac.NewCollectionLink(opts.CollectionURL))
	}
	return item, nil
}

func buildAsset(src source, i int, opts Options) *stac.Asset {
	asset := &stac.Asset{Href: src.input}
	if i < len(opts.AssetHrefs) && opts.AssetHrefs[i] != "" {
		asset.Href = opts.AssetHrefs[i]
	}

	switch opts.AssetMediaType {
	case "":
	case stac.MediaTypeAuto:
		asset.Type = string(detectMediaType(src.ds))
	default:
		asset.Type = opts.AssetMediaType
	}

	if opts.WithRaster {
		asset.Set("raster:bands", rasterBands(src.ds, opts))
	}
	if opts.WithEO {
		asset.Set("eo:bands", eoBands(src.ds))
	}
	return asset
}

// itemDatetime returns nil when the item is described by a range.
func itemDatetime(ds *raster.Dataset, opts Options) *time.Time {
	if opts.Datetime != nil {
		t := opts.Datetime.UTC()
		return &t
	}
	_, hasStart := opts.Properties["start_datetime"]
	_, hasEnd := opts.Properties["end_datetime"]
	if hasStart && hasEnd {
		return nil
	}
	if v, ok := ds.Tags["TIFFTAG_DATETIME"]; ok {
		t, err := time.ParseInLocation(tiffDatetimeLayout, strings.TrimSpace(v), time.UTC)
		if err == nil {
			return &t
		}
		opts.Logger.Debug("ignoring unparsable TIFFTAG_DATETIME", "value", v, "error", err)
	}
	t := opts.Now().UTC()
	return &t
}

func detectMediaType(ds *raster.Dataset) stac.MediaType {
	switch {
	case ds.Driver != "GTiff":
		return ""
	case !ds.Georeferenced:
		return stac.MediaTypeTIFF
	case ds.IsCOG():
		return stac.MediaTypeCOG
	default:
		return stac.MediaTypeGeoTIFF
	}
}

// assetNames resolves one unique name per input.
func assetNames(inputs, given []string) []string {
	names := make([]string, len(inputs))
	seen := map[string]bool{}
	for i, input := range inputs {
		name := ""
		switch {
		case i < len(given) && given[i] != "":
			name = given[i]
		case i == 0:
			name = "asset"
		default:
			base := baseName(input)
			name = strings.TrimSuffix(base, path.Ext(base))
		}
		if seen[name] {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// baseName returns the last path element of a local path or URL.
func baseName(input string) string {
	if u, err := url.Parse(input); err == nil && len(u.Scheme) > 1 {
		return path.Base(u.Path)
	}
	return filepath.Base(input)
}
