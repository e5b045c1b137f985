package raw

import "encoding/binary"

// padLen returns the number of zero bytes needed to round n up to the
// next multiple of 8.
func padLen(n int) int {
	return (8 - (n & 0x7)) & 0x7
}

// PadName NUL-terminates name and right-pads the result with zero bytes
// to a multiple of 8, per the name-payload padding rule: the name
// payload in the device-readable half of a request must be 8-byte
// aligned in length, and each name within it ends with a single NUL.
// It is a convenience wrapper for the single-name case: PadName(n) ==
// PadNames(n).
func PadName(name string) []byte {
	return PadNames(name)
}

// PadNames NUL-terminates each name, concatenates them in order, and
// right-pads the whole concatenation once with zero bytes to a multiple
// of 8 — the layout RENAME/RENAME2/SYMLINK use for their two name
// components. Padding each name individually before concatenating
// would misalign this region against the wire format, since only the
// final byte of the whole payload is guaranteed to land on an 8-byte
// boundary.
func PadNames(names ...string) []byte {
	total := 0
	for _, n := range names {
		total += len(n) + 1
	}
	b := make([]byte, 0, total+padLen(total))
	for _, n := range names {
		b = append(b, n...)
		b = append(b, 0)
	}
	b = append(b, make([]byte, padLen(total))...)
	return b
}

// TrimToSingleNUL normalizes a run of trailing NUL bytes down to exactly
// one. Some device implementations reject a name with more than one
// trailing NUL during their C-string conversion. Request encoding does
// not call it: names go out 8-byte padded and the far end is relied on
// to strip the padding. It is applied to bytes read back from a reply
// (CString, Device.Readlink).
func TrimToSingleNUL(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	if end == len(b) {
		return b
	}
	return b[:end+1]
}

// CString interprets b as a single NUL-terminated (and possibly
// zero-padded) name and returns it without the terminator or padding.
func CString(b []byte) string {
	trimmed := TrimToSingleNUL(b)
	if n := len(trimmed); n > 0 && trimmed[n-1] == 0 {
		trimmed = trimmed[:n-1]
	}
	return string(trimmed)
}

// DecodeDirent reads a single Dirent header from the front of b. The
// caller is responsible for bounds-checking; it exists so Dirents (in
// types.go) and any direct caller share one decode path.
func DecodeDirent(b []byte) Dirent {
	return Dirent{
		Ino:     binary.LittleEndian.Uint64(b[0:8]),
		Off:     binary.LittleEndian.Uint64(b[8:16]),
		NameLen: binary.LittleEndian.Uint32(b[16:20]),
		Typ:     binary.LittleEndian.Uint32(b[20:24]),
	}
}
