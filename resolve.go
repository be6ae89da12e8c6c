package archfs

import (
	"encoding/binary"
	"log"
	"sort"
	"strings"
)

// djb2XOR is the hash the packer uses to key the index. It is part of the
// format contract and must be reproduced bit-for-bit: h starts at 5381 and
// each byte is folded in as h = ((h<<5)+h) XOR b, with 32-bit wraparound.
func djb2XOR(path string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(path); i++ {
		h = ((h << 5) + h) ^ uint32(path[i])
	}
	return h
}

// normalizePath strips every leading slash, the only normalization the
// format contract requires.
func normalizePath(path string) string {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	return path[i:]
}

func (img *Image) hashAt(i int) uint32 {
	off := img.hashTable + uint32(i)*hashEntrySize
	return binary.LittleEndian.Uint32(img.data[off : off+4])
}

func (img *Image) entryAt(i int) Entry {
	off := img.hashTable + uint32(i)*hashEntrySize
	return Entry(binary.LittleEndian.Uint32(img.data[off+4 : off+8]))
}

// Resolve maps a path to the entry it names. The empty path (after
// stripping leading slashes) resolves to the root. A path with no matching
// entry returns a *NotFoundError, a soft result rather than a bind-style
// failure.
func (img *Image) Resolve(path string) (Entry, error) {
	norm := normalizePath(path)
	if norm == "" {
		return img.root, nil
	}
	h := djb2XOR(norm)

	n := int(img.numEntries)
	// sort.Search lands on the first index whose hash is >= h; since the
	// table is sorted ascending, that is also the first of any tied group
	// whose hash equals h, so every hash-equal candidate gets examined
	// without a separate rewind step.
	start := sort.Search(n, func(i int) bool { return img.hashAt(i) >= h })

	for i := start; i < n; i++ {
		if img.hashAt(i) != h {
			break
		}
		candidate := img.entryAt(i)
		full, err := img.FullPath(candidate)
		if err == nil && full == norm {
			return candidate, nil
		}
	}
	return 0, &NotFoundError{Path: path}
}

// FullPath reconstructs e's path relative to the root by walking parent
// links upward and joining segments with "/". The root contributes no
// segment and has no leading slash. The walk is bounded by the image's
// entry count to guard against a malformed parent-pointer cycle, and the
// result is truncated to MaxPathLength if it would otherwise exceed it —
// truncation is not an error here; it only ever causes a legitimate
// candidate to fail Resolve's string comparison.
func (img *Image) FullPath(e Entry) (string, error) {
	var segs []string
	cur := e
	for i := uint32(0); i <= img.numEntries; i++ {
		h, err := img.readCommon(cur)
		if err != nil {
			return "", err
		}
		if h.Parent == 0 {
			break
		}
		name, err := img.entryName(cur, h)
		if err != nil {
			return "", err
		}
		segs = append(segs, name)
		cur = Entry(h.Parent)
	}
	for l, r := 0, len(segs)-1; l < r; l, r = l+1, r-1 {
		segs[l], segs[r] = segs[r], segs[l]
	}
	full := strings.Join(segs, "/")
	if len(full) > MaxPathLength {
		log.Printf("archfs: path reconstruction for entry at %#x truncated to %d bytes", uint32(e), MaxPathLength)
		full = full[:MaxPathLength]
	}
	return full, nil
}
