package riostac

import (
	"log/slog"
	"time"

	"github.com/robert-malhotra/go-rio-stac/pkg/client"
)

// Defaults for Options fields left at their zero value.
const (
	DefaultRasterMaxSize = 1024
	DefaultHistogramBins = 10
)

// Options controls item construction. The With* toggles are honored as
// given; callers wanting the command-line defaults set them to true.
type Options struct {
	// Datetime is the item instant. Nil selects start/end properties, the
	// file's TIFFTAG_DATETIME or the current time, in that order.
	Datetime *time.Time
	// Extensions are schema URIs listed before the ones added for enabled
	// metadata blocks. Empty strings are dropped.
	Extensions    []string
	Collection    string
	CollectionURL string
	Properties    map[string]any
	ID            string

	AssetNames []string
	AssetHrefs []string
	// AssetMediaType is a media type, MediaTypeAuto to detect it, or empty
	// to leave the asset type unset.
	AssetMediaType string

	WithProj   bool
	WithRaster bool
	WithEO     bool

	// RasterMaxSize bounds each axis of the pixel grid sampled for
	// statistics.
	RasterMaxSize int
	HistogramBins int

	Env           Env
	ClientOptions []client.Option
	Logger        *slog.Logger
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RasterMaxSize <= 0 {
		o.RasterMaxSize = DefaultRasterMaxSize
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = DefaultHistogramBins
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
