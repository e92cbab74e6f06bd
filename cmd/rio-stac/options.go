package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-rio-stac/pkg/riostac"
	"github.com/robert-malhotra/go-rio-stac/pkg/stac"
)

var errKeyValue = errors.New("invalid syntax for KEY=VAL arg")

// optionsFromCommand validates the flags and converts them to item options.
func optionsFromCommand(cmd *cli.Command) (riostac.Options, error) {
	props, err := loadPropertiesFile(cmd.String(propertiesFileFlag.Name))
	if err != nil {
		return riostac.Options{}, err
	}
	pairs, err := parseKeyValues(cmd.StringSlice(propertyFlag.Name))
	if err != nil {
		return riostac.Options{}, err
	}
	for k, v := range pairs {
		props[k] = v
	}

	config, err := parseKeyValues(cmd.StringSlice(configFlag.Name))
	if err != nil {
		return riostac.Options{}, err
	}

	datetime, err := parseDatetimeFlag(cmd.String(datetimeFlag.Name), props)
	if err != nil {
		return riostac.Options{}, err
	}

	mediaType, err := parseMediaType(cmd.String(assetMediaTypeFlag.Name))
	if err != nil {
		return riostac.Options{}, err
	}

	return riostac.Options{
		Datetime:       datetime,
		Extensions:     nonEmpty(cmd.StringSlice(extensionFlag.Name)),
		Collection:     cmd.String(collectionFlag.Name),
		CollectionURL:  cmd.String(collectionURLFlag.Name),
		Properties:     props,
		ID:             cmd.String(idFlag.Name),
		AssetNames:     splitList(cmd.String(assetNamesFlag.Name)),
		AssetHrefs:     splitList(cmd.String(assetHrefsFlag.Name)),
		AssetMediaType: mediaType,
		WithProj:       toggle(cmd, "proj"),
		WithRaster:     toggle(cmd, "raster"),
		WithEO:         toggle(cmd, "eo"),
		RasterMaxSize:  int(cmd.Int(rasterMaxSizeFlag.Name)),
		HistogramBins:  int(cmd.Int(histogramBinsFlag.Name)),
		Env:            riostac.NewEnv(config),
	}, nil
}

func checkAssetLists(inputs []string, opts riostac.Options) error {
	switch {
	case len(inputs) == 0:
		return riostac.ErrNoInputs
	case len(opts.AssetNames) > len(inputs):
		return fmt.Errorf("%w: %d names for %d inputs", riostac.ErrTooManyAssetNames, len(opts.AssetNames), len(inputs))
	case len(opts.AssetHrefs) > len(inputs):
		return fmt.Errorf("%w: %d hrefs for %d inputs", riostac.ErrTooManyAssetHrefs, len(opts.AssetHrefs), len(inputs))
	}
	return nil
}

// parseKeyValues splits each NAME=VALUE pair on its first "=".
func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %s", errKeyValue, pair)
		}
		out[k] = v
	}
	return out, nil
}

// parseDatetimeFlag returns the item instant. A START/END range is stored in
// props as start_datetime and end_datetime instead, and no instant is
// returned.
func parseDatetimeFlag(value string, props map[string]any) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	if strings.Contains(value, "/") {
		parts := strings.Split(value, "/")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %q is not a START/END range", stac.ErrInvalidDatetime, value)
		}
		start, err := stac.ParseDatetime(parts[0])
		if err != nil {
			return nil, err
		}
		end, err := stac.ParseDatetime(parts[1])
		if err != nil {
			return nil, err
		}
		props["start_datetime"] = stac.FormatDatetime(start)
		props["end_datetime"] = stac.FormatDatetime(end)
		return nil, nil
	}

	t, err := stac.ParseDatetime(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseMediaType maps a MediaType name to its value; "auto" and "" pass
// through.
func parseMediaType(name string) (string, error) {
	if name == "" || name == stac.MediaTypeAuto {
		return name, nil
	}
	mt, err := stac.ParseMediaType(name)
	if err != nil {
		return "", err
	}
	return string(mt), nil
}

// loadPropertiesFile reads a YAML (or JSON) mapping. An empty path gives an
// empty map.
func loadPropertiesFile(path string) (map[string]any, error) {
	props := map[string]any{}
	if path == "" {
		return props, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read properties file: %w", err)
	}
	if err := yaml.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("parse properties file %s: %w", path, err)
	}
	if props == nil {
		props = map[string]any{}
	}
	return props, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
