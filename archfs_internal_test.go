package archfs

import "encoding/binary"

// This file builds valid images by hand for white-box tests, since the
// offline packer that would normally produce them is out of scope for this
// library (spec.md §1). It also provides a from-scratch Heatshrink encoder,
// for the same reason: nothing upstream of this package produces Heatshrink
// bitstreams either.

func align4(n int) int { return (n + 3) &^ 3 }

// forceHashCollision rewrites the hash table record for the entry named b
// (a top-level child of the root, found by its real hash) to carry a's
// hash instead, then re-sorts the table so the sortedness invariant still
// holds. This manufactures a tie group deterministically instead of
// searching for two names that happen to collide under djb2-XOR.
func forceHashCollision(data []byte, a, b string) {
	numEntries := binary.LittleEndian.Uint32(data[8:12])
	ha, hb := djb2XOR(a), djb2XOR(b)

	type rec struct{ hash, offs uint32 }
	recs := make([]rec, numEntries)
	for i := range recs {
		off := headerSize + i*hashEntrySize
		recs[i] = rec{
			hash: binary.LittleEndian.Uint32(data[off : off+4]),
			offs: binary.LittleEndian.Uint32(data[off+4 : off+8]),
		}
	}
	for i := range recs {
		if recs[i].hash == hb {
			recs[i].hash = ha
		}
	}
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j-1].hash > recs[j].hash; j-- {
			recs[j-1], recs[j] = recs[j], recs[j-1]
		}
	}
	for i, r := range recs {
		off := headerSize + i*hashEntrySize
		binary.LittleEndian.PutUint32(data[off:off+4], r.hash)
		binary.LittleEndian.PutUint32(data[off+4:off+8], r.offs)
	}
}

// testEntry describes one node of a tree to be packed into an image by
// buildImage. Exactly one of children (for a directory) or fileData/
// compressed (for a file) should be set.
type testEntry struct {
	name     string
	children []*testEntry

	// file-only
	fileData    []byte // logical, decompressed content
	compression Compression
	compressed  []byte // stored bytes when compression != CompressionNone
	windowSz2   uint8
	lookaheadSz2 uint8

	// assigned during build
	offset   uint32
	size     uint32
	parent   uint32
	path     string
	dataOffs uint32
}

func (e *testEntry) isDir() bool { return e.children != nil || (e.fileData == nil && e.compressed == nil) }

// buildImage packs root (and everything beneath it) into a complete image
// and returns its bytes, ready for bindBytes/Bind.
func buildImage(root *testEntry) []byte {
	var all []*testEntry
	var walk func(e *testEntry, path string)
	walk = func(e *testEntry, path string) {
		e.path = path
		all = append(all, e)
		if e.isDir() {
			for _, c := range e.children {
				childPath := c.name
				if path != "" {
					childPath = path + "/" + c.name
				}
				walk(c, childPath)
			}
		}
	}
	walk(root, "")

	numEntries := uint32(len(all))
	entriesStart := uint32(headerSize) + numEntries*hashEntrySize

	// Pass 1: compute each entry's record size.
	sizes := make([]uint32, len(all))
	for i, e := range all {
		nameBytes := uint32(align4(len(e.name) + 1))
		if e.isDir() {
			sizes[i] = entryCommonSize + 4 + 4*uint32(len(e.children)) + nameBytes
		} else {
			sz := uint32(entryCommonSize + 8)
			if e.compression != CompressionNone {
				sz += 8
			}
			sizes[i] = sz + nameBytes
		}
	}

	// Pass 2: assign offsets sequentially, root first.
	offsets := make([]uint32, len(all))
	cur := entriesStart
	for i, e := range all {
		offsets[i] = cur
		e.offset = cur
		cur += sizes[i]
	}

	// Fix up parent offsets now that every entry has an assigned offset.
	byPtr := map[*testEntry]uint32{}
	for i, e := range all {
		byPtr[e] = offsets[i]
	}
	var fixParents func(e *testEntry, parentOff uint32)
	fixParents = func(e *testEntry, parentOff uint32) {
		e.parent = parentOff
		if e.isDir() {
			for _, c := range e.children {
				fixParents(c, byPtr[e])
			}
		}
	}
	fixParents(root, 0)

	// Pass 3: lay out payloads after the entry records, 4-byte aligned.
	payloadStart := align4(int(cur))
	cur = uint32(payloadStart)
	for _, e := range all {
		if e.isDir() {
			continue
		}
		payload := e.fileData
		if e.compression != CompressionNone {
			payload = e.compressed
		}
		e.dataOffs = cur
		cur += uint32(align4(len(payload)))
	}
	total := cur

	img := make([]byte, total)
	binary.LittleEndian.PutUint32(img[0:4], formatMagic)
	img[4] = VersionMajor
	img[5] = VersionMinor
	binary.LittleEndian.PutUint32(img[8:12], numEntries)
	binary.LittleEndian.PutUint32(img[12:16], total)

	// Hash table: one record per entry, including the root, sorted by hash.
	type hashRec struct {
		hash uint32
		offs uint32
	}
	recs := make([]hashRec, len(all))
	for i, e := range all {
		recs[i] = hashRec{hash: djb2XOR(e.path), offs: e.offset}
	}
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j-1].hash > recs[j].hash; j-- {
			recs[j-1], recs[j] = recs[j], recs[j-1]
		}
	}
	for i, r := range recs {
		off := headerSize + i*hashEntrySize
		binary.LittleEndian.PutUint32(img[off:off+4], r.hash)
		binary.LittleEndian.PutUint32(img[off+4:off+8], r.offs)
	}

	// Entry records.
	for i, e := range all {
		off := offsets[i]
		typ := EntryTypeFile
		if e.isDir() {
			typ = EntryTypeDirectory
		}
		img[off] = byte(typ)
		img[off+1] = byte(e.compression)
		binary.LittleEndian.PutUint16(img[off+2:off+4], uint16(len(e.name)))
		binary.LittleEndian.PutUint32(img[off+4:off+8], e.parent)

		cursor := off + entryCommonSize
		if e.isDir() {
			binary.LittleEndian.PutUint32(img[cursor:cursor+4], uint32(len(e.children)))
			cursor += 4
			for _, c := range e.children {
				binary.LittleEndian.PutUint32(img[cursor:cursor+4], c.offset)
				cursor += 4
			}
		} else {
			payload := e.fileData
			if e.compression != CompressionNone {
				payload = e.compressed
			}
			binary.LittleEndian.PutUint32(img[cursor:cursor+4], uint32(len(payload)))
			binary.LittleEndian.PutUint32(img[cursor+4:cursor+8], e.dataOffs)
			cursor += 8
			if e.compression != CompressionNone {
				binary.LittleEndian.PutUint32(img[cursor:cursor+4], uint32(len(e.fileData)))
				img[cursor+4] = e.windowSz2
				img[cursor+5] = e.lookaheadSz2
				cursor += 8
			}
			copy(img[e.dataOffs:e.dataOffs+uint32(len(payload))], payload)
		}
		copy(img[cursor:], e.name)
	}

	return img
}

// heatshrinkEncode is a small greedy LZ77-style encoder producing a
// bitstream heatshrinkDriver can decode, used only to build round-trip
// test fixtures.
func heatshrinkEncode(data []byte, windowSz2, lookaheadSz2 uint8) []byte {
	w := &bitWriter{}
	maxDist := 1 << windowSz2
	maxLen := 1 << lookaheadSz2
	i := 0
	for i < len(data) {
		bestLen, bestDist := 0, 0
		start := i - maxDist
		if start < 0 {
			start = 0
		}
		for j := start; j < i; j++ {
			l := 0
			for l < maxLen && i+l < len(data) && data[j+l] == data[i+l] {
				l++
			}
			if l > bestLen {
				bestLen, bestDist = l, i-j
			}
		}
		if bestLen >= 2 {
			w.writeBits(0, 1)
			w.writeBits(uint32(bestDist-1), int(windowSz2))
			w.writeBits(uint32(bestLen-1), int(lookaheadSz2))
			i += bestLen
		} else {
			w.writeBits(1, 1)
			w.writeBits(uint32(data[i]), 8)
			i++
		}
	}
	return w.finish()
}

type bitWriter struct {
	buf   []byte
	cur   byte
	nbits uint8
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		bit := byte((v >> uint(i)) & 1)
		w.cur = (w.cur << 1) | bit
		w.nbits++
		if w.nbits == 8 {
			w.buf = append(w.buf, w.cur)
			w.cur, w.nbits = 0, 0
		}
	}
}

func (w *bitWriter) finish() []byte {
	if w.nbits > 0 {
		w.cur <<= 8 - w.nbits
		w.buf = append(w.buf, w.cur)
		w.cur, w.nbits = 0, 0
	}
	return w.buf
}
