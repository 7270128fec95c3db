package main

import (
	"fmt"

	"github.com/navijation/njkv/codec"
	"github.com/navijation/njkv/db/kvstore"
	"github.com/navijation/njkv/metrics"
	"github.com/navijation/njkv/storage/recordindex"
	"github.com/navijation/njkv/util"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// openArgs builds store options from the shared flags.
func openArgs(cmd *cli.Command, path string) (kvstore.OpenArgs, error) {
	if cmd.Bool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
	if cmd.Bool("metrics") {
		if err := metrics.Register(registry); err != nil {
			return kvstore.OpenArgs{}, err
		}
	}

	args := kvstore.OpenArgs{Path: path}
	if name := cmd.String("backend"); name != "" {
		kind, err := recordindex.ParseBackendKind(name)
		if err != nil {
			return args, err
		}
		args.Backend = util.Some(kind)
	}
	if name := cmd.String("codec"); name != "" {
		valueCodec, err := codec.ByName(name)
		if err != nil {
			return args, err
		}
		args.Codec = valueCodec
	}
	return args, nil
}

func openStore(cmd *cli.Command, path string) (*kvstore.Store[string, any], error) {
	args, err := openArgs(cmd, path)
	if err != nil {
		return nil, err
	}
	store, err := kvstore.Open[string, any](args)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	return store, nil
}

var registry = prometheus.NewRegistry()

func closeStore(cmd *cli.Command, store *kvstore.Store[string, any]) {
	if err := store.Close(); err != nil {
		log.WithFields(log.Fields{"path": store.Path()}).WithError(err).Error("failed to close store")
	}
	if cmd.Bool("metrics") {
		printMetrics()
	}
}

// printMetrics prints every nonzero counter in the registry.
func printMetrics() {
	families, err := registry.Gather()
	if err != nil {
		log.WithError(err).Error("failed to gather metrics")
		return
	}

	fmt.Printf("\nMetrics\n")
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value := metric.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			labels := ""
			for _, pair := range metric.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", pair.GetName(), pair.GetValue())
			}
			fmt.Printf("  %s%s: %g\n", family.GetName(), labels, value)
		}
	}
}
