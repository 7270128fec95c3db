package main

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

var storeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "backend",
		Usage: "external index backend (sqlite or hashfile); inferred from the store when empty",
	},
	&cli.StringFlag{
		Name:  "codec",
		Usage: "value codec (cbor or json); read from the store when empty",
	},
	&cli.BoolFlag{
		Name:  "verbose",
		Usage: "log shard and index activity",
	},
	&cli.BoolFlag{
		Name:  "metrics",
		Usage: "print store metrics when the command finishes",
	},
}

func main() {
	app := &cli.Command{
		Name:  "njkv",
		Usage: "inspect and edit njkv stores",
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "print store metadata and shard files",
				ArgsUsage: "store_path",
				Action:    inspectStore,
				Flags:     storeFlags,
			},
			{
				Name:      "get",
				Usage:     "print the value of a key",
				ArgsUsage: "store_path key",
				Action:    getValue,
				Flags:     storeFlags,
			},
			{
				Name:      "put",
				Usage:     "set the value of a key and save the store",
				ArgsUsage: "store_path key value",
				Action:    putValue,
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "create",
						Usage: "create the store if it does not exist",
					},
					&cli.UintFlag{
						Name:        "shard-size",
						DefaultText: "1GiB",
						Usage:       "shard rotation threshold in bytes, for new stores",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "parse value as a JSON document rather than a string",
					},
				}, storeFlags...),
			},
			{
				Name:      "keys",
				Usage:     "list the keys of a dense store in insertion order",
				ArgsUsage: "store_path",
				Action:    listKeys,
				Flags:     storeFlags,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
