package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

func getValue(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("usage: get store_path key")
	}
	path, key := cmd.Args().Get(0), cmd.Args().Get(1)

	store, err := openStore(cmd, path)
	if err != nil {
		return err
	}
	defer closeStore(cmd, store)

	value, err := store.Get(key)
	if err != nil {
		return err
	}

	if text, ok := value.(string); ok {
		fmt.Println(text)
		return nil
	}
	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		// CBOR decodes nested maps as map[any]any, which JSON cannot represent
		fmt.Printf("%#v\n", value)
		return nil
	}
	fmt.Println(string(content))
	return nil
}
