//go:build !unix

package filestore

import (
	"errors"
	"os"
)

var errReadOnly = errors.New("read-only")

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// checkWritable only inspects the owner write bit; Windows has no access(2).
func checkWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0200 == 0 {
		return errReadOnly
	}
	return nil
}
