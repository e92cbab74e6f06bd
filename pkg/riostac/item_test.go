package riostac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-rio-stac/internal/testsupport"
	"github.com/robert-malhotra/go-rio-stac/pkg/client"
	"github.com/robert-malhotra/go-rio-stac/pkg/geo"
	"github.com/robert-malhotra/go-rio-stac/pkg/stac"
)

const customExtension = "https://example.com/custom/v1.0.0/schema.json"

var fixedNow = time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

func utmFixture() testsupport.GeoTIFF {
	return testsupport.GeoTIFF{
		Width:     4,
		Height:    4,
		Pixels:    testsupport.Gray8(4, 4, func(x, y int) uint8 { return uint8(y*4 + x) }),
		Origin:    [2]float64{500000, 100},
		PixelSize: [2]float64{10, 10},
		EPSG:      32633,
		NoData:    "0",
		DateTime:  "2021:05:04 03:02:01",
		GDALMetadata: `<GDALMetadata>
  <Item name="CLOUDCOVER" domain="IMAGERY">12</Item>
  <Item name="DESCRIPTION" sample="0" role="description">elevation</Item>
  <Item name="UNITTYPE" sample="0" role="unittype">m</Item>
</GDALMetadata>`,
	}
}

func rgbFixture() testsupport.GeoTIFF {
	return testsupport.GeoTIFF{
		Width:      2,
		Height:     2,
		Bands:      3,
		Pixels:     testsupport.RGB8(2, 2, func(x, y int) (uint8, uint8, uint8) { return 1, 2, 3 }),
		Origin:     [2]float64{10, 50},
		PixelSize:  [2]float64{0.5, 0.5},
		EPSG:       4326,
		Geographic: true,
	}
}

func allOn() Options {
	return Options{
		WithProj:   true,
		WithRaster: true,
		WithEO:     true,
		Now:        func() time.Time { return fixedNow },
	}
}

// toJSON round-trips v through encoding/json so assertions see the emitted shape.
func toJSON(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestCreateItemSingleInput(t *testing.T) {
	input := utmFixture().Write(t, t.TempDir(), "utm.tif")

	opts := allOn()
	opts.Extensions = []string{customExtension, ""}
	opts.AssetNames = []string{"data"}
	opts.AssetMediaType = stac.MediaTypeAuto
	opts.Collection = "demo"
	opts.CollectionURL = "https://example.com/collections/demo"
	opts.Properties = map[string]any{"platform": "sat-1"}

	item, err := CreateItem(context.Background(), []string{input}, opts)
	require.NoError(t, err)

	assert.Equal(t, "utm.tif", item.Id)
	assert.Equal(t, "demo", item.Collection)
	assert.Equal(t, []string{
		customExtension,
		stac.ProjectionExtension,
		stac.RasterExtension,
		stac.EOExtension,
	}, item.Extensions)
	require.Len(t, item.Links, 1)
	assert.Equal(t, "collection", item.Links[0].Rel)
	assert.Equal(t, "application/json", item.Links[0].Type)

	props := item.Properties
	assert.Equal(t, "2021-05-04T03:02:01Z", props["datetime"])
	assert.Equal(t, "sat-1", props["platform"])
	assert.Equal(t, 12.0, props["eo:cloud_cover"])
	assert.Equal(t, 32633, props["proj:epsg"])
	assert.Equal(t, []int{4, 4}, props["proj:shape"])
	assert.Equal(t, []float64{500000, 60, 500040, 100}, props["proj:bbox"])
	assert.Equal(t, []float64{10, 0, 500000, 0, -10, 100, 0, 0, 1}, props["proj:transform"])
	assert.Contains(t, props["proj:wkt2"], `ID["EPSG",32633]]`)
	require.IsType(t, &geo.ProjJSON{}, props["proj:projjson"])
	assert.Equal(t, "WGS 84 / UTM zone 33N", props["proj:projjson"].(*geo.ProjJSON).Name)

	require.Len(t, item.Bbox, 4)
	assert.InDelta(t, 15, item.Bbox[0], 1e-9)
	assert.Greater(t, item.Bbox[2], item.Bbox[0])
	geometry := toJSON(t, item.Geometry)
	assert.Equal(t, "Polygon", geometry["type"])

	require.Contains(t, item.Assets, "data")
	asset := toJSON(t, item.Assets["data"])
	assert.Equal(t, input, asset["href"])
	assert.Equal(t, string(stac.MediaTypeGeoTIFF), asset["type"])

	bands := asset["raster:bands"].([]any)
	require.Len(t, bands, 1)
	band := bands[0].(map[string]any)
	assert.Equal(t, "uint8", band["data_type"])
	assert.Equal(t, "area", band["sampling"])
	assert.Equal(t, 0.0, band["nodata"])
	assert.Equal(t, "m", band["unit"])
	assert.Equal(t, 1.0, band["scale"])
	stats := band["statistics"].(map[string]any)
	assert.Equal(t, 93.75, stats["valid_percent"])
	assert.Equal(t, 8.0, stats["mean"])
	histogram := band["histogram"].(map[string]any)
	assert.Equal(t, 11.0, histogram["count"])

	eo := asset["eo:bands"].([]any)
	require.Len(t, eo, 1)
	assert.Equal(t, map[string]any{"name": "b1", "description": "elevation"}, eo[0])
}

func TestCreateItemDatetime(t *testing.T) {
	dir := t.TempDir()
	tagged := utmFixture().Write(t, dir, "tagged.tif")
	untagged := rgbFixture().Write(t, dir, "untagged.tif")

	t.Run("explicit instant wins", func(t *testing.T) {
		opts := allOn()
		when := time.Date(2020, 1, 1, 12, 0, 0, 0, time.FixedZone("", 3600))
		opts.Datetime = &when
		item, err := CreateItem(context.Background(), []string{tagged}, opts)
		require.NoError(t, err)
		assert.Equal(t, "2020-01-01T11:00:00Z", item.Properties["datetime"])
	})

	t.Run("range gives null datetime", func(t *testing.T) {
		opts := allOn()
		opts.Properties = map[string]any{
			"start_datetime": "2020-01-01T00:00:00Z",
			"end_datetime":   "2020-01-02T00:00:00Z",
		}
		item, err := CreateItem(context.Background(), []string{tagged}, opts)
		require.NoError(t, err)
		assert.Contains(t, item.Properties, "datetime")
		assert.Nil(t, item.Properties["datetime"])
		assert.Equal(t, "2020-01-01T00:00:00Z", item.Properties["start_datetime"])
	})

	t.Run("falls back to now", func(t *testing.T) {
		item, err := CreateItem(context.Background(), []string{untagged}, allOn())
		require.NoError(t, err)
		assert.Equal(t, "2024-02-03T04:05:06Z", item.Properties["datetime"])
	})
}

func TestCreateItemMultipleInputs(t *testing.T) {
	dir := t.TempDir()
	first := rgbFixture().Write(t, dir, "first.tif")
	second := rgbFixture()
	second.Origin = [2]float64{11, 52}
	secondPath := second.Write(t, dir, "second.tif")
	third := rgbFixture().Write(t, dir, "first-copy.tif")

	opts := allOn()
	opts.AssetHrefs = []string{"https://example.com/first.tif"}
	item, err := CreateItem(context.Background(), []string{first, secondPath, third}, opts)
	require.NoError(t, err)

	assert.Equal(t, "first.tif", item.Id)
	assert.ElementsMatch(t, []string{"asset", "second", "first-copy"}, keys(item.Assets))
	assert.Equal(t, "https://example.com/first.tif", item.Assets["asset"].Href)
	assert.Equal(t, secondPath, item.Assets["second"].Href)

	assert.NotContains(t, item.Properties, "proj:epsg")
	assert.Equal(t, 4326, item.Assets["second"].AdditionalFields["proj:epsg"])
	assert.Equal(t, []float64{10, 49, 12, 52}, item.Bbox)

	eo := toJSON(t, item.Assets["asset"])["eo:bands"].([]any)
	require.Len(t, eo, 3)
	assert.Equal(t, map[string]any{"name": "b1", "description": "red", "common_name": "red"}, eo[0])
}

func TestCreateItemWithoutExtensions(t *testing.T) {
	input := utmFixture().Write(t, t.TempDir(), "utm.tif")

	item, err := CreateItem(context.Background(), []string{input}, Options{Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)

	assert.Empty(t, item.Extensions)
	assert.NotContains(t, item.Properties, "proj:epsg")
	assert.NotContains(t, item.Properties, "eo:cloud_cover")
	assert.Empty(t, item.Assets["asset"].AdditionalFields)
	assert.Empty(t, item.Assets["asset"].Type)
}

func TestCreateItemAssetNames(t *testing.T) {
	assert.Equal(t, []string{"asset", "b", "b_2"}, assetNames(
		[]string{"/x/a.tif", "/x/b.tif", "/y/b.tif"}, nil))
	assert.Equal(t, []string{"img", "img_1"}, assetNames(
		[]string{"a.tif", "img.tif"}, []string{"img"}))
	assert.Equal(t, "scene.tif", baseName("https://example.com/data/scene.tif?sig=abc"))
	assert.Equal(t, "key.tif", baseName("s3://bucket/prefix/key.tif"))
}

func TestCreateItemValidation(t *testing.T) {
	ctx := context.Background()

	_, err := CreateItem(ctx, nil, allOn())
	require.ErrorIs(t, err, ErrNoInputs)

	opts := allOn()
	opts.AssetNames = []string{"a", "b"}
	_, err = CreateItem(ctx, []string{"one.tif"}, opts)
	require.ErrorIs(t, err, ErrTooManyAssetNames)

	opts = allOn()
	opts.AssetHrefs = []string{"a", "b"}
	_, err = CreateItem(ctx, []string{"one.tif"}, opts)
	require.ErrorIs(t, err, ErrTooManyAssetHrefs)
}

func TestCreateItemLogsProgress(t *testing.T) {
	fixture := utmFixture()
	input := fixture.Write(t, t.TempDir(), "utm.tif")

	var logs bytes.Buffer
	opts := allOn()
	opts.Logger = slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := CreateItem(context.Background(), []string{input}, opts)
	require.NoError(t, err)

	// the fixture arrives in a single read
	size := len(fixture.Encode())
	assert.Equal(t, 1, strings.Count(logs.String(), `"msg":"reading input"`))
	assert.Contains(t, logs.String(), fmt.Sprintf(`"bytes":%d,"total":%d`, size, size))
}

func TestProgressLoggerUnknownSize(t *testing.T) {
	var logs bytes.Buffer
	progress := progressLogger(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	progress(0, -1)
	progress(1<<20, -1)
	progress(16<<20, -1)
	progress(20<<20, -1)
	progress(32<<20, -1)
	assert.Equal(t, 2, strings.Count(logs.String(), "reading input"))

	// a new input starts over
	progress(0, 10)
	progress(10, 10)
	assert.Equal(t, 3, strings.Count(logs.String(), "reading input"))
}

func TestCreateItemErrors(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.tif")
	_, err := CreateItem(context.Background(), []string{missing}, allOn())
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)

	polar := utmFixture()
	polar.EPSG = 3031
	input := polar.Write(t, dir, "polar.tif")
	_, err = CreateItem(context.Background(), []string{input}, allOn())
	require.ErrorIs(t, err, geo.ErrUnsupportedCRS)
}

func TestCreateItemLambert93(t *testing.T) {
	lambert := utmFixture()
	lambert.EPSG = 2154
	lambert.Origin = [2]float64{650000, 6862000}
	input := lambert.Write(t, t.TempDir(), "lambert.tif")

	item, err := CreateItem(context.Background(), []string{input}, allOn())
	require.NoError(t, err)

	require.Len(t, item.Bbox, 4)
	assert.InDelta(t, 2.35, item.Bbox[0], 0.1)
	assert.InDelta(t, 48.85, item.Bbox[1], 0.1)

	props := toJSON(t, item)["properties"].(map[string]any)
	assert.Equal(t, 2154.0, props["proj:epsg"])
	assert.Contains(t, props["proj:wkt2"], `PROJCRS["RGF93 v1 / Lambert-93"`)
	projjson := props["proj:projjson"].(map[string]any)
	assert.Equal(t, "ProjectedCRS", projjson["type"])
	assert.Equal(t, map[string]any{"authority": "EPSG", "code": 2154.0}, projjson["id"])
}

func TestCreateItemOverHTTP(t *testing.T) {
	data := utmFixture().Encode()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" || r.Header.Get("X-Team") != "geo" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	opts := allOn()
	opts.Env = NewEnv(map[string]string{
		"GDAL_HTTP_BEARER":  "secret",
		"GDAL_HTTP_HEADERS": "X-Team: geo",
	})
	item, err := CreateItem(context.Background(), []string{srv.URL + "/scenes/utm.tif"}, opts)
	require.NoError(t, err)
	assert.Equal(t, "utm.tif", item.Id)
	assert.Equal(t, srv.URL+"/scenes/utm.tif", item.Assets["asset"].Href)

	opts.Env = NewEnv(nil)
	_, err = CreateItem(context.Background(), []string{srv.URL + "/scenes/utm.tif"}, opts)
	var fetchErr *client.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusUnauthorized, fetchErr.Status)
}

type fakeS3 struct {
	data map[string][]byte
}

func (f fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body := f.data[*in.Bucket+"/"+*in.Key]
	size := int64(len(body))
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body)), ContentLength: &size}, nil
}

func TestCreateItemFromS3(t *testing.T) {
	opts := allOn()
	opts.ClientOptions = []client.Option{client.WithS3Client(fakeS3{data: map[string][]byte{
		"bucket/scenes/rgb.tif": rgbFixture().Encode(),
	}})}

	item, err := CreateItem(context.Background(), []string{"s3://bucket/scenes/rgb.tif"}, opts)
	require.NoError(t, err)
	assert.Equal(t, "rgb.tif", item.Id)
	assert.Equal(t, []float64{10, 49, 11, 50}, item.Bbox)
	assert.Equal(t, 4326, item.Properties["proj:epsg"])
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
