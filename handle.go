package archfs

// File is a handle bound to one file entry and one decompression driver.
// It is exclusively owned by whatever opened it; sharing a handle across
// goroutines requires external synchronization, since the driver mutates
// its own decode state on every Read/Seek/Tell.
type File struct {
	img   *Image
	entry Entry
	data  []byte // the entry's stored (possibly compressed) payload
	drv   driver
}

// Open binds entry to a driver selected by its stored compression and
// flags, and returns a handle ready for Read/Seek/Tell. It rejects a
// directory entry with ErrNotAFile.
func (img *Image) Open(e Entry, flags OpenFlags) (*File, error) {
	h, err := img.readCommon(e)
	if err != nil {
		return nil, err
	}
	if h.Type != EntryTypeFile {
		return nil, xerrorsErrorf("open: %w", ErrNotAFile)
	}
	rec, err := img.decodeFile(e)
	if err != nil {
		return nil, err
	}
	if uint64(rec.dataOffs)+uint64(rec.dataSz) > uint64(len(img.data)) {
		return nil, xerrorsErrorf("open: payload [%d,%d) exceeds image: %w", rec.dataOffs, uint64(rec.dataOffs)+uint64(rec.dataSz), ErrDriverOpenFailed)
	}
	payload := img.data[rec.dataOffs : rec.dataOffs+rec.dataSz]

	f := &File{img: img, entry: e, data: payload}
	raw := flags&FlagRaw != 0

	switch {
	case h.Compression == CompressionNone || raw:
		f.drv = newRawDriver(payload)
	case h.Compression == CompressionDeflate:
		d, err := newDeflateDriver(payload, rec.realSz)
		if err != nil {
			return nil, xerrorsErrorf("open: %w: %v", ErrDriverOpenFailed, err)
		}
		f.drv = d
	case h.Compression == CompressionHeatshrink:
		d, err := newHeatshrinkDriver(payload, rec.realSz, rec.opt0, rec.opt1)
		if err != nil {
			return nil, xerrorsErrorf("open: %w: %v", ErrDriverOpenFailed, err)
		}
		f.drv = d
	default:
		return nil, xerrorsErrorf("open: compression tag %d: %w", h.Compression, ErrUnsupportedCompression)
	}
	return f, nil
}

// Read pulls the next decoded bytes into p, routing to the selected
// driver. Reading past the logical end of the stream returns (0, io.EOF),
// not a failure.
func (f *File) Read(p []byte) (int, error) { return f.drv.Read(p) }

// Seek repositions the logical read cursor. A backward seek on a
// compression driver restarts decoding from the start of the compressed
// bytes; a seek past the logical size clamps to it.
func (f *File) Seek(off int64, whence Whence) (int64, error) { return f.drv.Seek(off, whence) }

// Tell returns the current logical read position.
func (f *File) Tell() int64 { return f.drv.Tell() }

// Access exposes the entry's raw, possibly compressed, stored bytes. The
// returned slice aliases the bound image and is valid for the image's
// lifetime, not just the handle's.
func (f *File) Access() []byte { return f.data }

// Close releases the handle's driver state. It tolerates a nil receiver as
// a no-op.
func (f *File) Close() error {
	if f == nil || f.drv == nil {
		return nil
	}
	return f.drv.Close()
}

// StatRecord reports an entry's type, compression, and sizes.
type StatRecord struct {
	Type           EntryType
	Compression    Compression
	LogicalSize    uint32
	CompressedSize uint32
}

// Stat reports e's type and sizes. For a directory both sizes are zero;
// for an uncompressed file both equal the stored size; for a compressed
// file LogicalSize is the decompressed size and CompressedSize is the
// stored size.
func (img *Image) Stat(e Entry) (StatRecord, error) {
	h, err := img.readCommon(e)
	if err != nil {
		return StatRecord{}, err
	}
	if h.Type == EntryTypeDirectory {
		return StatRecord{Type: EntryTypeDirectory}, nil
	}
	rec, err := img.decodeFile(e)
	if err != nil {
		return StatRecord{}, err
	}
	st := StatRecord{Type: EntryTypeFile, Compression: h.Compression, CompressedSize: rec.dataSz}
	if h.Compression == CompressionNone {
		st.LogicalSize = rec.dataSz
	} else {
		st.LogicalSize = rec.realSz
	}
	return st, nil
}
