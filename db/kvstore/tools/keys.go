package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

func listKeys(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("usage: keys store_path")
	}

	store, err := openStore(cmd, cmd.Args().First())
	if err != nil {
		return err
	}
	defer closeStore(cmd, store)

	keys, err := store.Keys()
	if err != nil {
		return err
	}
	for key := range keys {
		fmt.Println(key)
	}
	return nil
}
