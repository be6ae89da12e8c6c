// Package archfs reads a read-only, content-addressed archive image: a
// single contiguous binary blob produced offline by a packer and consumed
// in place, either memory-mapped from a host file or supplied directly as a
// byte slice from wherever an embedded target maps its flash.
package archfs

import "encoding/binary"

// formatMagic identifies a bound image. Read as the first four bytes of the
// header in little-endian order, it spells "ROFS".
const formatMagic uint32 = 0x53464f52

const (
	// VersionMajor is the on-disk major format version this library binds.
	// Bind rejects any image whose major version differs.
	VersionMajor uint8 = 1
	// VersionMinor is the on-disk minor format version this package was
	// written against. Bind does not enforce it.
	VersionMinor uint8 = 0
)

// headerSize is the fixed byte length of the image header. The named
// fields (magic, versions, reserved, num_entries, binary_length) sum to 16
// bytes; the remaining 8 bytes are packer-reserved padding so the hash
// index always begins at offset 24.
const headerSize = 24

const (
	hashEntrySize   = 8 // hash:u32 + offs:u32
	entryCommonSize = 8 // type:u8 + compression:u8 + seg_sz:u16 + parent:u32
)

// MaxPathLength bounds the length of a reconstructed path; FullPath
// truncates longer results to it. The number of parent-pointer hops a walk
// follows is bounded separately, by the image's entry count.
const MaxPathLength = 4096

// EntryType distinguishes a directory entry from a file entry.
type EntryType uint8

const (
	EntryTypeDirectory EntryType = 0
	EntryTypeFile      EntryType = 1
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeDirectory:
		return "directory"
	case EntryTypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// Compression identifies the algorithm a file entry's payload is stored
// under. It is meaningful only for file entries.
type Compression uint8

const (
	CompressionNone       Compression = 0
	CompressionDeflate    Compression = 1
	CompressionHeatshrink Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionDeflate:
		return "deflate"
	case CompressionHeatshrink:
		return "heatshrink"
	default:
		return "unknown"
	}
}

// Entry is a reference to a record inside a bound Image: its byte offset
// from the start of the image. Entries are only meaningful against the
// Image that produced them and do not outlive it.
type Entry uint32

// commonHeader is the type/compression/seg_sz/parent prefix shared by every
// entry record.
type commonHeader struct {
	Type        EntryType
	Compression Compression
	SegSz       uint16
	Parent      uint32
}

func (img *Image) readCommon(e Entry) (commonHeader, error) {
	off := uint32(e)
	if uint64(off)+entryCommonSize > uint64(len(img.data)) {
		return commonHeader{}, xerrorsErrorf("read entry at %#x: out of bounds", off)
	}
	b := img.data[off : off+entryCommonSize]
	return commonHeader{
		Type:        EntryType(b[0]),
		Compression: Compression(b[1]),
		SegSz:       binary.LittleEndian.Uint16(b[2:4]),
		Parent:      binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

// IsDir reports whether e refers to a directory entry. It returns false for
// an out-of-range entry rather than propagating an error, matching is_dir's
// boolean-accessor contract.
func (img *Image) IsDir(e Entry) bool {
	h, err := img.readCommon(e)
	return err == nil && h.Type == EntryTypeDirectory
}

// IsFile reports whether e refers to a file entry.
func (img *Image) IsFile(e Entry) bool {
	h, err := img.readCommon(e)
	return err == nil && h.Type == EntryTypeFile
}

// IsCompressed reports whether e is a file entry stored under a
// compression algorithm other than none.
func (img *Image) IsCompressed(e Entry) bool {
	h, err := img.readCommon(e)
	return err == nil && h.Type == EntryTypeFile && h.Compression != CompressionNone
}

// dirRecord is the decoded view of a directory entry record.
type dirRecord struct {
	common      commonHeader
	childCount  uint32
	childrenOff uint32
	nameOff     uint32
}

func (img *Image) decodeDir(e Entry) (dirRecord, error) {
	h, err := img.readCommon(e)
	if err != nil {
		return dirRecord{}, err
	}
	if h.Type != EntryTypeDirectory {
		return dirRecord{}, xerrorsErrorf("entry at %#x is not a directory", uint32(e))
	}
	off := uint32(e) + entryCommonSize
	if uint64(off)+4 > uint64(len(img.data)) {
		return dirRecord{}, xerrorsErrorf("directory at %#x: truncated child_count", uint32(e))
	}
	childCount := binary.LittleEndian.Uint32(img.data[off : off+4])
	childrenOff := off + 4
	nameOff64 := uint64(childrenOff) + uint64(childCount)*4
	if nameOff64 > uint64(len(img.data)) {
		return dirRecord{}, xerrorsErrorf("directory at %#x: truncated children array", uint32(e))
	}
	return dirRecord{common: h, childCount: childCount, childrenOff: childrenOff, nameOff: uint32(nameOff64)}, nil
}

// fileRecord is the decoded view of a file entry record. realSz and the
// algorithm options are populated only when common.Compression != None.
type fileRecord struct {
	common   commonHeader
	dataSz   uint32
	dataOffs uint32
	realSz   uint32
	opt0     byte
	opt1     byte
	nameOff  uint32
}

func (img *Image) decodeFile(e Entry) (fileRecord, error) {
	h, err := img.readCommon(e)
	if err != nil {
		return fileRecord{}, err
	}
	if h.Type != EntryTypeFile {
		return fileRecord{}, xerrorsErrorf("entry at %#x is not a file", uint32(e))
	}
	off := uint32(e) + entryCommonSize
	if uint64(off)+8 > uint64(len(img.data)) {
		return fileRecord{}, xerrorsErrorf("file at %#x: truncated", uint32(e))
	}
	rec := fileRecord{
		common:   h,
		dataSz:   binary.LittleEndian.Uint32(img.data[off : off+4]),
		dataOffs: binary.LittleEndian.Uint32(img.data[off+4 : off+8]),
	}
	cursor := off + 8
	if h.Compression != CompressionNone {
		if uint64(cursor)+8 > uint64(len(img.data)) {
			return fileRecord{}, xerrorsErrorf("file at %#x: truncated compression header", uint32(e))
		}
		rec.realSz = binary.LittleEndian.Uint32(img.data[cursor : cursor+4])
		rec.opt0 = img.data[cursor+4]
		rec.opt1 = img.data[cursor+5]
		cursor += 8
	}
	rec.nameOff = cursor
	return rec, nil
}

// name decodes the segSz bytes of UTF-8 path segment starting at off,
// ignoring the NUL terminator and any alignment padding after it.
func (img *Image) name(off uint32, segSz uint16) (string, error) {
	end := uint64(off) + uint64(segSz)
	if end > uint64(len(img.data)) {
		return "", xerrorsErrorf("name at %#x: truncated", off)
	}
	return string(img.data[off : off+uint32(segSz)]), nil
}

// entryName returns e's own path segment (not its full path), dispatching
// on record type to find where the name field starts.
func (img *Image) entryName(e Entry, h commonHeader) (string, error) {
	if h.Type == EntryTypeDirectory {
		rec, err := img.decodeDir(e)
		if err != nil {
			return "", err
		}
		return img.name(rec.nameOff, h.SegSz)
	}
	rec, err := img.decodeFile(e)
	if err != nil {
		return "", err
	}
	return img.name(rec.nameOff, h.SegSz)
}

// Name returns e's own path segment, excluding its ancestors. Use FullPath
// for the path relative to the root.
func (img *Image) Name(e Entry) (string, error) {
	h, err := img.readCommon(e)
	if err != nil {
		return "", err
	}
	return img.entryName(e, h)
}
