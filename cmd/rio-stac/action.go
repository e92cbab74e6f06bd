package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-rio-stac/pkg/client"
	"github.com/robert-malhotra/go-rio-stac/pkg/riostac"
)

func stacAction(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.Root().ErrWriter, cmd.Bool(verboseFlag.Name))

	inputs := cmd.Args().Slice()
	opts, err := optionsFromCommand(cmd)
	if err != nil {
		return err
	}
	if err := checkAssetLists(inputs, opts); err != nil {
		return err
	}

	opts.Logger = logger
	if timeout := cmd.Duration(timeoutFlag.Name); timeout > 0 {
		opts.ClientOptions = append(opts.ClientOptions, client.WithTimeout(timeout))
	}

	logger.Debug("creating item", "inputs", inputs)
	item, err := riostac.CreateItem(ctx, inputs, opts)
	if err != nil {
		return err
	}
	return writeItem(item, cmd.String(outputFlag.Name), cmd.Root().Writer)
}
