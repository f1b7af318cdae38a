package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// moveFile renames src to dst, falling back to copy and remove when the two
// paths are on different devices. dst must not exist.
func moveFile(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination %s already exists", dst)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		// Source stays authoritative.
		_ = os.Remove(dst)
		return fmt.Errorf("remove %s after copy: %w", src, err)
	}
	return nil
}

// copyFile copies the regular file src to a new file dst with src's
// permission bits, syncing dst before returning. A partial dst is removed.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, filepath.Base(dst), err)
	}
	if err = out.Sync(); err != nil {
		return err
	}
	return out.Close()
}

// checkRegular returns nil if path is an existing regular file.
func checkRegular(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}

// checkSource verifies the Add preconditions on path, in order. A symlink
// is not a regular file: renaming it would place the link, not its target.
func checkSource(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return &FileAccessError{Path: path, Check: CheckExists, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &FileAccessError{Path: path, Check: CheckRegular}
	}
	if err := checkReadable(path); err != nil {
		return &FileAccessError{Path: path, Check: CheckReadable, Err: err}
	}
	if err := checkWritable(path); err != nil {
		return &FileAccessError{Path: path, Check: CheckWritable, Err: err}
	}
	return nil
}
