package virtiofs

import (
	"fmt"
	"unsafe"

	"github.com/virtiofs/go-virtiofs/raw"
)

// InHeaderFields is the caller-supplied subset of raw.InHeader: the
// fields every operation surface method knows about (credential and
// target inode), as opposed to Length/Opcode/Unique, which the codec
// fills in itself.
type InHeaderFields struct {
	NodeID uint64
	UID    uint32
	GID    uint32
	PID    uint32
}

// EncodedRequest is the device-readable half of a wire message, plus
// the metadata the dispatcher needs to size the device-writable half.
type EncodedRequest struct {
	Bytes  []byte // InHeader || OpInput || NamePayload
	InLen  int    // == len(Bytes)
	Opcode raw.Opcode
	Unique uint64
}

// Encode builds the device-readable segment of a request: InHeader
// followed by the opcode's fixed input struct (already marshaled by
// the caller via raw.Bytes, or nil for opcodes with no input) followed
// by zero or more 8-byte-padded, NUL-terminated name payloads.
//
// The padding rule: each name is NUL-terminated, the names are
// concatenated in order, and the whole name region is right-padded
// with zero bytes to a multiple of 8. Every opcode's fixed input size
// is itself a multiple of 8 and InHeader is 40 bytes, so the resulting
// InLen is always a multiple of 8 whenever names are present.
func Encode(op raw.Opcode, unique uint64, hdr InHeaderFields, opIn []byte, names []string) (EncodedRequest, error) {
	desc, ok := raw.Describe(op)
	if !ok {
		return EncodedRequest{}, newErr(ClassProtocol, op.String(), ErrUnknownOpcode)
	}
	if len(opIn) != int(desc.InSize) {
		return EncodedRequest{}, newErr(ClassProtocol, op.String(),
			fmt.Errorf("input struct is %d bytes, opcode declares %d", len(opIn), desc.InSize))
	}
	if len(names) != desc.Names {
		return EncodedRequest{}, newErr(ClassProtocol, op.String(),
			fmt.Errorf("got %d name(s), opcode declares %d", len(names), desc.Names))
	}

	namePayload := raw.PadNames(names...)
	total := int(raw.SizeofInHeader) + len(opIn) + len(namePayload)

	h := raw.InHeader{
		Length: uint32(total),
		Opcode: int32(op),
		Unique: unique,
		NodeId: hdr.NodeID,
		Context: raw.Context{
			Owner: raw.Owner{Uid: hdr.UID, Gid: hdr.GID},
			Pid:   hdr.PID,
		},
	}

	buf := make([]byte, total)
	off := copy(buf, raw.Bytes(&h))
	off += copy(buf[off:], opIn)
	copy(buf[off:], namePayload)

	if len(names) > 0 && total%8 != 0 {
		// Cannot happen given the opcode table's invariants, but the
		// dispatcher relies on this and a silent violation would be
		// far harder to debug than a panic here.
		panic(fmt.Sprintf("virtiofs: encoded %s length %d is not 8-byte aligned", op, total))
	}

	return EncodedRequest{Bytes: buf, InLen: total, Opcode: op, Unique: unique}, nil
}

// DecodedReply is the result of splitting a device-writable buffer back
// into its structured parts.
type DecodedReply struct {
	Header  raw.OutHeader
	Payload []byte // OpOutput || tail, sized by Header.Length - sizeof(OutHeader)
}

// Decode reads the 16-byte out header at atOffset within buffer,
// validates that the header's claimed length fits within the buffer,
// and returns the header plus the remaining opcode-specific bytes. It
// does not know how to split Payload into OpOutput and tail — the
// operation surface method does that, since only it knows the fixed
// output size for its opcode.
func Decode(buffer []byte, atOffset int) (DecodedReply, error) {
	if atOffset < 0 || atOffset+int(raw.SizeofOutHeader) > len(buffer) {
		return DecodedReply{}, newErr(ClassProtocol, "decode", ErrShortReply)
	}
	oh := *raw.Cast[raw.OutHeader](buffer[atOffset:])

	if int(oh.Length) < int(raw.SizeofOutHeader) {
		return DecodedReply{}, newErr(ClassProtocol, "decode", ErrShortReply)
	}
	if atOffset+int(oh.Length) > len(buffer) {
		return DecodedReply{}, newErr(ClassProtocol, "decode",
			fmt.Errorf("%w: header claims %d bytes at offset %d, buffer holds %d", ErrShortReply, oh.Length, atOffset, len(buffer)))
	}

	payload := buffer[atOffset+int(raw.SizeofOutHeader) : atOffset+int(oh.Length)]
	return DecodedReply{Header: oh, Payload: payload}, nil
}

// DecodeFixed decodes a reply whose payload is a single fixed-size
// struct T with no trailing bytes, returning a copy so callers don't
// hold a reference into the DMA buffer past Sync's invalidation.
func DecodeFixed[T any](buffer []byte, atOffset int) (raw.OutHeader, T, error) {
	var out T
	reply, err := Decode(buffer, atOffset)
	if err != nil {
		return raw.OutHeader{}, out, err
	}
	if reply.Header.Status != 0 {
		return reply.Header, out, nil
	}
	var zero T
	need := int(unsafe.Sizeof(zero))
	if len(reply.Payload) < need {
		return raw.OutHeader{}, out, newErr(ClassProtocol, "decode_fixed", ErrShortReply)
	}
	out = *raw.Cast[T](reply.Payload)
	return reply.Header, out, nil
}
