package archfs

import "encoding/binary"

// Config selects the source of an image's bytes for Bind. Exactly one of
// BaseAddress or PartitionLabel should be set; BaseAddress takes
// precedence if both are.
type Config struct {
	// BaseAddress is an already-mapped slice of image bytes: a host-side
	// []byte, or a slice aliasing a flash partition an embedded target has
	// already mapped into its address space.
	BaseAddress []byte

	// PartitionLabel names a platform-defined region Bind should map
	// read-only itself. On a host build this is a path to the image file.
	// Ignored when BaseAddress is set.
	PartitionLabel string
}

// Image is a bound archive ready for lookups. It is immutable once bound
// and safe for any number of concurrent readers; see File and DirIterator
// for the handle and iterator ownership rules.
type Image struct {
	data       []byte
	numEntries uint32
	length     uint32
	hashTable  uint32
	root       Entry

	unmap func() error // nil if Bind did not own the mapping
}

// Bind validates an image's header and derives the pointers (hash table,
// root directory) every other operation needs. It performs the hard
// checks named by the format contract, in order: magic, major version,
// that binary_length fits inside the mapped bytes, then that num_entries
// fits inside binary_length.
func Bind(cfg Config) (*Image, error) {
	data := cfg.BaseAddress
	var unmap func() error
	if data == nil {
		if cfg.PartitionLabel == "" {
			return nil, xerrorsErrorf("bind: %w", ErrConfigMissing)
		}
		mapped, release, err := mapPartition(cfg.PartitionLabel)
		if err != nil {
			return nil, xerrorsErrorf("bind: mapping partition %q: %w: %v", cfg.PartitionLabel, ErrBindFailed, err)
		}
		data, unmap = mapped, release
	}

	img, err := bindBytes(data)
	if err != nil {
		if unmap != nil {
			unmap()
		}
		return nil, err
	}
	img.unmap = unmap
	return img, nil
}

func bindBytes(data []byte) (*Image, error) {
	if len(data) < headerSize {
		return nil, xerrorsErrorf("bind: image of %d bytes shorter than header: %w", len(data), ErrBadMagic)
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != formatMagic {
		return nil, xerrorsErrorf("bind: magic %#x, want %#x: %w", got, formatMagic, ErrBadMagic)
	}
	major := data[4]
	if major != VersionMajor {
		return nil, xerrorsErrorf("bind: image major %d, library major %d: %w", major, VersionMajor, ErrVersionMismatch)
	}
	numEntries := binary.LittleEndian.Uint32(data[8:12])
	length := binary.LittleEndian.Uint32(data[12:16])
	if uint64(length) > uint64(len(data)) {
		return nil, xerrorsErrorf("bind: binary_length %d exceeds mapped image of %d bytes: %w", length, len(data), ErrBindFailed)
	}

	hashTable := uint32(headerSize)
	hashBytes := uint64(numEntries) * hashEntrySize
	rootOff := uint64(hashTable) + hashBytes
	if rootOff > uint64(length) {
		return nil, xerrorsErrorf("bind: num_entries %d overruns binary_length %d: %w", numEntries, length, ErrBindFailed)
	}

	return &Image{
		data:       data,
		numEntries: numEntries,
		length:     length,
		hashTable:  hashTable,
		root:       Entry(rootOff),
	}, nil
}

// Root returns the entry for the image's root directory.
func (img *Image) Root() Entry { return img.root }

// Release unmaps the image's backing memory if Bind mapped it itself; it is
// a no-op for an image bound from a caller-supplied BaseAddress. Release
// never fails in the sense the format contract describes: any unmap error
// is swallowed, since there is no meaningful recovery for the caller to
// perform.
func (img *Image) Release() error {
	if img.unmap == nil {
		return nil
	}
	unmap := img.unmap
	img.unmap = nil
	unmap()
	return nil
}
