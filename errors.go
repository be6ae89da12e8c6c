package archfs

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Sentinel errors for the kinds named in the format's error taxonomy.
// Callers match with errors.Is; Bind, Open, and the drivers wrap these with
// call-site context via xerrors.Errorf's %w verb.
var (
	ErrConfigMissing          = xerrors.New("archfs: neither base address nor partition label supplied")
	ErrBindFailed             = xerrors.New("archfs: binding partition failed")
	ErrBadMagic               = xerrors.New("archfs: bad magic")
	ErrVersionMismatch        = xerrors.New("archfs: version mismatch")
	ErrNotAFile               = xerrors.New("archfs: not a file")
	ErrNotADirectory          = xerrors.New("archfs: not a directory")
	ErrUnsupportedCompression = xerrors.New("archfs: unsupported compression")
	ErrDriverOpenFailed       = xerrors.New("archfs: driver open failed")
	ErrCorruptStream          = xerrors.New("archfs: corrupt stream")
	ErrUnsupported            = xerrors.New("archfs: driver does not support this operation")
)

// NotFoundError is returned by Resolve when no entry matches the queried
// path. It is a soft result, not a bind-time failure: callers that only
// care about the kind can still use errors.Is(err, archfs.ErrNotFound).
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("archfs: %q not found", e.Path)
}

// ErrNotFound is the sentinel NotFoundError wraps, for errors.Is matching
// without a type assertion.
var ErrNotFound = xerrors.New("archfs: not found")

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// xerrorsErrorf prefixes format with the package name and wraps args the
// same way xerrors.Errorf does, keeping call sites free of repeating
// "archfs: ".
func xerrorsErrorf(format string, args ...interface{}) error {
	return xerrors.Errorf("archfs: "+format, args...)
}
