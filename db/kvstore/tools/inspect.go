package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/navijation/njkv/storage/shard"
	"github.com/urfave/cli/v3"
)

func inspectStore(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("usage: inspect store_path")
	}
	path := cmd.Args().First()

	store, err := openStore(cmd, path)
	if err != nil {
		return err
	}
	defer closeStore(cmd, store)

	state := store.Shards()
	fmt.Printf(
		"Store\n"+
			"  ID: %s\n"+
			"  Variant: %s\n"+
			"  Codec: %s\n",
		store.ID().String(),
		store.Variant(),
		store.Codec().Name(),
	)
	if backend := store.Backend(); backend != "" {
		fmt.Printf("  Backend: %s\n", backend)
	}
	if records, err := store.Len(); err == nil {
		fmt.Printf("  Keys: %d\n", records)
	}

	fmt.Printf(
		"\nShards\n"+
			"  Shard Size: %s\n"+
			"  Write Shard: %d (%s written)\n",
		humanize.IBytes(state.ShardSize),
		state.ShardForWrite,
		humanize.IBytes(state.WrittenInCurrentShard),
	)

	files, err := shard.Discover(path)
	if err != nil {
		return fmt.Errorf("failed to list shards: %w", err)
	}

	var total uint64
	for _, file := range files {
		total += file.Size
		fmt.Printf("  - #%d %s: %s\n", file.ID, file.Name, humanize.IBytes(file.Size))
	}
	fmt.Printf("  Total: %s in %d files\n", humanize.IBytes(total), len(files))

	for id := range state.FileIndex {
		if !slices.ContainsFunc(files, func(file shard.File) bool { return file.ID == id }) {
			fmt.Printf("  ! shard %d is indexed but missing\n", id)
		}
	}
	return nil
}
