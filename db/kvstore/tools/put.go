package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/navijation/njkv/db/kvstore"
	"github.com/navijation/njkv/util"
	"github.com/urfave/cli/v3"
)

func putValue(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 3 {
		return errors.New("usage: put store_path key value")
	}
	path, key, text := cmd.Args().Get(0), cmd.Args().Get(1), cmd.Args().Get(2)

	var value any = text
	if cmd.Bool("json") {
		if err := json.Unmarshal([]byte(text), &value); err != nil {
			return fmt.Errorf("failed to parse value: %w", err)
		}
	}

	args, err := openArgs(cmd, path)
	if err != nil {
		return err
	}
	exists, err := util.FileExists(filepath.Join(path, kvstore.ParamsFileName))
	if err != nil {
		return err
	}
	if !exists {
		if !cmd.Bool("create") {
			return fmt.Errorf("no store at %q: %w", path, os.ErrNotExist)
		}
		args.Create = true
		if shardSize := cmd.Uint("shard-size"); shardSize != 0 {
			args.ShardSize = util.Some(shardSize)
		}
	}

	store, err := kvstore.Open[string, any](args)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer closeStore(cmd, store)

	if err := store.Set(key, value); err != nil {
		return err
	}
	return store.Save()
}
