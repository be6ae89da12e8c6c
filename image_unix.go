//go:build unix

package archfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapPartition maps the named host file read-only via mmap(2), giving Bind
// a real []byte view onto the image with no intermediate copy. On an
// embedded target, this is the one seam a platform port would replace with
// its own flash-partition lookup; everything above this function only ever
// sees a []byte.
func mapPartition(label string) (data []byte, unmap func() error, err error) {
	f, err := os.Open(label)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := fi.Size()
	if size == 0 {
		return nil, nil, xerrorsErrorf("mapPartition %q: empty partition", label)
	}

	data, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
