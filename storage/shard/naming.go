package shard

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const fileNamePrefix = "store_shard_"

// FileName returns the deterministic file name of shard |id|.
func FileName(id uint64) string {
	return fmt.Sprintf("%s%04d", fileNamePrefix, id)
}

func parseFileName(baseName string) (id uint64, ok bool) {
	withoutPrefix, ok := strings.CutPrefix(baseName, fileNamePrefix)
	if !ok || withoutPrefix == "" {
		return 0, false
	}

	number, err := strconv.ParseUint(withoutPrefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return number, true
}

// File describes a shard file found on disk.
type File struct {
	ID   uint64
	Name string
	Size uint64
}

// Discover lists shard files found directly under |path|, ordered by shard id. Files and
// directories which are not shards are skipped, except that unexpected directories are
// logged.
func Discover(path string) (out []File, _ error) {
	directoryEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	for _, dirent := range directoryEntries {
		baseName := dirent.Name()
		switch {
		case dirent.IsDir():
			log.WithFields(log.Fields{"dir": path, "name": baseName}).
				Warn("unexpected directory in store")

		case strings.HasPrefix(baseName, fileNamePrefix):
			id, ok := parseFileName(baseName)
			if !ok {
				log.WithFields(log.Fields{"dir": path, "name": baseName}).
					Warn("unexpected shard file name")
				continue
			}
			info, err := dirent.Info()
			if err != nil {
				return nil, err
			}
			out = append(out, File{
				ID:   id,
				Name: filepath.Join(path, baseName),
				Size: uint64(info.Size()),
			})
		}
	}

	slices.SortFunc(out, func(a, b File) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}
