package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DailyAllocator maps a base directory to its date partition for today.
type DailyAllocator struct {
	// Now supplies the current time. Nil means time.Now.
	Now func() time.Time
}

// Dir returns base/YYYY/M/D for the allocator's current date (month and day
// without zero padding), creating the tree if it does not exist.
//
// Calling Dir twice on the same day returns the same path; the second call
// only stats the directory.
//
// Returns:
//   - string: Absolute or base-relative daily directory
//   - error: ErrStoreIO if the directory cannot be created or is not writable
func (a DailyAllocator) Dir(base string) (string, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	t := now()

	dir := filepath.Join(base,
		strconv.Itoa(t.Year()),
		strconv.Itoa(int(t.Month())),
		strconv.Itoa(t.Day()))

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("%w: %s is not a directory", ErrStoreIO, dir)
	case err == nil:
		// already allocated today
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("%w: create %s: %w", ErrStoreIO, dir, err)
		}
	default:
		return "", fmt.Errorf("%w: stat %s: %w", ErrStoreIO, dir, err)
	}

	if err := checkWritable(dir); err != nil {
		return "", fmt.Errorf("%w: %s is not writable: %w", ErrStoreIO, dir, err)
	}
	return dir, nil
}
