package util

import (
	"errors"
	"os"
)

func FileExists(path string) (exists bool, _ error) {
	if info, err := os.Stat(path); err == nil {
		return !info.IsDir(), nil
	} else if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else {
		return false, err
	}
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
