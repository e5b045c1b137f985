package raw

import "unsafe"

// Bytes views a fixed-layout struct's memory directly as its wire-format
// bytes. This package's structs are field-ordered to match their C
// counterparts with no implicit padding, so this is safe and avoids a
// field-by-field serializer for every opcode.
func Bytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// Cast views a byte slice as a fixed-layout struct without copying. It
// panics if len(b) < sizeof(T).
func Cast[T any](b []byte) *T {
	var zero T
	if len(b) < int(unsafe.Sizeof(zero)) {
		panic("raw.Cast: buffer shorter than struct")
	}
	return (*T)(unsafe.Pointer(&b[0]))
}
