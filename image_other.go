//go:build !unix

package archfs

import "os"

// mapPartition falls back to reading the whole file into a heap buffer on
// non-unix hosts, where golang.org/x/sys/unix's mmap wrappers don't apply.
// The returned slice is still a stable, caller-owned []byte, so the rest of
// the package is none the wiser.
func mapPartition(label string) (data []byte, unmap func() error, err error) {
	data, err = os.ReadFile(label)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
