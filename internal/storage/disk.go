package storage

import "os"

// DatabaseSizeBytes returns the on-disk size of the SQLite database at path,
// including its WAL and shared-memory sidecar files. Missing files contribute 0.
func DatabaseSizeBytes(path string) int64 {
	var total int64
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			total += info.Size()
		}
	}
	return total
}
