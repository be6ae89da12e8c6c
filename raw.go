package archfs

import "io"

// rawDriver serves a file entry's stored bytes unchanged, with full random
// access. It is selected when an entry has no compression, or when FlagRaw
// forces raw reads over a compressed entry's stored payload.
type rawDriver struct {
	data []byte
	pos  int64
}

func newRawDriver(data []byte) *rawDriver {
	return &rawDriver{data: data}
}

func (r *rawDriver) Read(p []byte) (int, error) {
	if r.pos >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *rawDriver) Seek(off int64, whence Whence) (int64, error) {
	var target int64
	switch whence {
	case SeekSet:
		target = off
	case SeekCur:
		target = r.pos + off
	case SeekEnd:
		target = int64(len(r.data)) + off
	default:
		return 0, xerrorsErrorf("raw seek: %w", ErrUnsupported)
	}
	if target < 0 {
		target = 0
	}
	if target > int64(len(r.data)) {
		target = int64(len(r.data))
	}
	r.pos = target
	return r.pos, nil
}

func (r *rawDriver) Tell() int64 { return r.pos }

func (r *rawDriver) Close() error { return nil }
