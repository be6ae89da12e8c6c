package archfs

import "io"

// OpenFlags controls how Open interprets a file entry's payload.
type OpenFlags uint8

const (
	// FlagRaw bypasses decompression even for a compressed entry, making
	// Read surface the stored bytes unchanged.
	FlagRaw OpenFlags = 1 << iota
)

// Whence mirrors io.Seeker's whence constants for driver Seek calls, kept
// as its own type since a driver's "position" is a logical decoded offset,
// not necessarily a position in the underlying image bytes.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// driver is the capability set a compression algorithm implements to serve
// reads over one file entry's payload. Any method besides Read may be
// unimplemented by returning ErrUnsupported; no driver in this package
// takes that shortcut, but the interface is shaped to allow it.
type driver interface {
	io.Reader
	Seek(off int64, whence Whence) (int64, error)
	Tell() int64
	Close() error
}
