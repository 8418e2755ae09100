package file

import (
	"os"
	"path/filepath"
)

// DirStats walks dir and returns the number of regular files under it
// together with their total size in bytes. A missing directory counts
// as empty rather than an error.
func DirStats(dir string) (int, int64, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, 0, nil
	}

	var (
		files int
		bytes int64
	)

	err := filepath.Walk(dir, func(path string, info os.FileInfo,
		err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			files++
			bytes += info.Size()
		}
		return nil
	})

	return files, bytes, err
}
