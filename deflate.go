package archfs

import (
	"bytes"
	"compress/flate"
	"io"
	"log"
)

// deflateDriver streams a DEFLATE-compressed payload as a logical
// decompressed byte stream. compress/flate's reader is forward-only, so a
// backward seek restarts decompression from the start of the compressed
// bytes and re-consumes up to the target position; compressed input is
// never copied, only re-read from the image.
type deflateDriver struct {
	compressed []byte
	realSz     int64

	zr  io.ReadCloser
	pos int64
}

func newDeflateDriver(compressed []byte, realSz uint32) (*deflateDriver, error) {
	d := &deflateDriver{compressed: compressed, realSz: int64(realSz)}
	d.restart()
	return d, nil
}

func (d *deflateDriver) restart() {
	if d.zr != nil {
		d.zr.Close()
	}
	d.zr = flate.NewReader(bytes.NewReader(d.compressed))
	d.pos = 0
}

func (d *deflateDriver) Read(p []byte) (int, error) {
	if d.pos >= d.realSz {
		return 0, io.EOF
	}
	if max := d.realSz - d.pos; int64(len(p)) > max {
		p = p[:max]
	}
	n, err := d.zr.Read(p)
	d.pos += int64(n)
	switch {
	case err == nil:
		return n, nil
	case err == io.EOF:
		if d.pos < d.realSz {
			log.Printf("archfs: deflate stream ended after %d of %d logical bytes", d.pos, d.realSz)
		}
		return n, io.EOF
	default:
		return n, xerrorsErrorf("deflate read: %w: %v", ErrCorruptStream, err)
	}
}

func (d *deflateDriver) Seek(off int64, whence Whence) (int64, error) {
	var target int64
	switch whence {
	case SeekSet:
		target = off
	case SeekCur:
		target = d.pos + off
	case SeekEnd:
		target = d.realSz + off
	default:
		return 0, xerrorsErrorf("deflate seek: %w", ErrUnsupported)
	}
	if target < 0 {
		target = 0
	}
	if target > d.realSz {
		target = d.realSz
	}

	if target < d.pos {
		d.restart()
	}
	if n, err := io.CopyN(io.Discard, d.zr, target-d.pos); err != nil && err != io.EOF {
		return 0, xerrorsErrorf("deflate seek: %w: %v", ErrCorruptStream, err)
	} else {
		d.pos += n
	}
	return d.pos, nil
}

func (d *deflateDriver) Tell() int64 { return d.pos }

func (d *deflateDriver) Close() error {
	if d.zr != nil {
		return d.zr.Close()
	}
	return nil
}
