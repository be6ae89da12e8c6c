package archfs

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// ErrEndOfDirectory is returned by DirIterator.Read once every child has
// been visited.
var ErrEndOfDirectory = xerrors.New("archfs: end of directory")

// DirIterator walks the children of one directory entry in stored order
// (the packer's canonical order). It owns only a cursor index and is not
// safe for concurrent use without external locking.
type DirIterator struct {
	img *Image
	dir dirRecord
	idx uint32
}

// OpenDir opens an iterator over e's children, or over the root's children
// if e is nil. It fails with ErrNotADirectory if e names a file.
func (img *Image) OpenDir(e *Entry) (*DirIterator, error) {
	target := img.root
	if e != nil {
		target = *e
	}
	h, err := img.readCommon(target)
	if err != nil {
		return nil, err
	}
	if h.Type != EntryTypeDirectory {
		return nil, xerrorsErrorf("open_dir: %w", ErrNotADirectory)
	}
	rec, err := img.decodeDir(target)
	if err != nil {
		return nil, err
	}
	return &DirIterator{img: img, dir: rec}, nil
}

// Read returns the child at the current cursor position and advances it.
// Once the cursor reaches the child count it returns ErrEndOfDirectory on
// every subsequent call until Rewind or Seek.
func (d *DirIterator) Read() (Entry, error) {
	if d.idx >= d.dir.childCount {
		return 0, ErrEndOfDirectory
	}
	off := d.dir.childrenOff + d.idx*4
	child := Entry(binary.LittleEndian.Uint32(d.img.data[off : off+4]))
	d.idx++
	return child, nil
}

// Rewind resets the cursor to the first child.
func (d *DirIterator) Rewind() { d.idx = 0 }

// Seek rewinds then advances the cursor to position n, clamped to the
// child count.
func (d *DirIterator) Seek(n uint32) {
	if n > d.dir.childCount {
		n = d.dir.childCount
	}
	d.idx = n
}

// Tell returns the current cursor position.
func (d *DirIterator) Tell() uint16 { return uint16(d.idx) }

// Close releases the iterator. It tolerates a nil receiver as a no-op, the
// same way (*os.File).Close does, matching the format contract's
// requirement that close_dir accept a null handle.
func (d *DirIterator) Close() error {
	return nil
}
