package stac

// Schema URIs of the extensions written by item construction.
const (
	ProjectionExtension = "https://stac-extensions.github.io/projection/v1.1.0/schema.json"
	RasterExtension     = "https://stac-extensions.github.io/raster/v1.1.0/schema.json"
	EOExtension         = "https://stac-extensions.github.io/eo/v1.1.0/schema.json"
)
