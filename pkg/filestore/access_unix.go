//go:build unix

package filestore

import "golang.org/x/sys/unix"

// checkReadable asks the kernel whether the real user may read path.
func checkReadable(path string) error {
	return unix.Access(path, unix.R_OK)
}

// checkWritable asks the kernel whether the real user may write path.
func checkWritable(path string) error {
	return unix.Access(path, unix.W_OK)
}
