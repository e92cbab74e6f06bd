// Command rio-stac creates a STAC Item describing raster datasets.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-rio-stac/pkg/stac"
)

var (
	datetimeFlag = &cli.StringFlag{
		Name:    "datetime",
		Aliases: []string{"d"},
		Usage:   "date and time of the assets, in UTC (e.g. 2020-01-01, 2020-01-01T01:01:01), or START/END",
	}
	extensionFlag = &cli.StringSliceFlag{
		Name:    "extension",
		Aliases: []string{"e"},
		Usage:   "STAC extension URL the item implements",
	}
	collectionFlag = &cli.StringFlag{
		Name:    "collection",
		Aliases: []string{"c"},
		Usage:   "ID of the collection the item belongs to",
	}
	collectionURLFlag = &cli.StringFlag{
		Name:  "collection-url",
		Usage: "link to the STAC collection",
	}
	propertyFlag = &cli.StringSliceFlag{
		Name:    "property",
		Aliases: []string{"p"},
		Usage:   "additional property to add, as `NAME=VALUE`",
	}
	propertiesFileFlag = &cli.StringFlag{
		Name:  "properties-file",
		Usage: "YAML or JSON mapping of properties, applied before --property",
	}
	idFlag = &cli.StringFlag{
		Name:  "id",
		Usage: "item id (default: file name of the first input)",
	}
	assetNamesFlag = &cli.StringFlag{
		Name:    "asset-names",
		Aliases: []string{"n"},
		Usage:   "comma separated asset names, in input order",
		Value:   "asset",
	}
	assetHrefsFlag = &cli.StringFlag{
		Name:  "asset-hrefs",
		Usage: "comma separated asset hrefs overriding the input paths, in input order",
	}
	assetMediaTypeFlag = &cli.StringFlag{
		Name:  "asset-mediatype",
		Usage: "asset media type, one of " + strings.Join(stac.MediaTypeNames(), ", ") + " or " + stac.MediaTypeAuto,
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output file name (default: standard output)",
		Sources: cli.EnvVars("RIO_STAC_OUTPUT"),
	}
	configFlag = &cli.StringSliceFlag{
		Name:  "config",
		Usage: "GDAL configuration option, as `NAME=VALUE`",
	}
	rasterMaxSizeFlag = &cli.IntFlag{
		Name:  "raster-max-size",
		Usage: "largest pixel grid axis sampled for band statistics",
		Value: 1024,
	}
	histogramBinsFlag = &cli.IntFlag{
		Name:  "histogram-bins",
		Usage: "number of histogram buckets per band",
		Value: 10,
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "log debug messages to standard error",
		Sources: cli.EnvVars("RIO_STAC_VERBOSE"),
	}
	timeoutFlag = &cli.DurationFlag{
		Name:    "timeout",
		Usage:   "timeout of each remote request (e.g. 30s, 1m)",
		Sources: cli.EnvVars("RIO_STAC_TIMEOUT"),
	}
)

// toggles are the --with-X/--without-X pairs, keyed by X.
var toggles = []string{"proj", "raster", "eo"}

var toggleUsage = map[string]string{
	"proj":   "the projection extension and properties",
	"raster": "the raster extension and band properties",
	"eo":     "the eo extension and band properties",
}

func toggleFlags() []cli.Flag {
	var flags []cli.Flag
	for _, name := range toggles {
		flags = append(flags,
			&cli.BoolFlag{Name: "with-" + name, Usage: "add " + toggleUsage[name], Value: true},
			&cli.BoolFlag{Name: "without-" + name, Usage: "do not add " + toggleUsage[name]},
		)
	}
	return flags
}

// toggle resolves a --with-X/--without-X pair; --without-X wins.
func toggle(cmd *cli.Command, name string) bool {
	return cmd.Bool("with-"+name) && !cmd.Bool("without-"+name)
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	flags := []cli.Flag{
		datetimeFlag, extensionFlag, collectionFlag, collectionURLFlag,
		propertyFlag, propertiesFileFlag, idFlag,
		assetNamesFlag, assetHrefsFlag, assetMediaTypeFlag,
	}
	flags = append(flags, toggleFlags()...)
	flags = append(flags,
		outputFlag, configFlag,
		rasterMaxSizeFlag, histogramBinsFlag, verboseFlag, timeoutFlag,
	)

	return &cli.Command{
		Name:      "rio-stac",
		Usage:     "Create a STAC Item for raster datasets",
		ArgsUsage: "INPUT...",
		Flags:     flags,
		Action:    stacAction,
		Writer:    stdout,
		ErrWriter: stderr,
		// -p and --config values may contain commas.
		DisableSliceFlagSeparator: true,
	}
}

func main() {
	if err := newCommand(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
