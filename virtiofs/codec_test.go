package virtiofs

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/require"

	"github.com/virtiofs/go-virtiofs/raw"
)

func TestEncodeLookupAlignedName(t *testing.T) {
	// "testf01" is 7 bytes; with its NUL terminator that's already 8
	// bytes, so no padding bytes are appended.
	req, err := Encode(raw.FUSE_LOOKUP, 42, InHeaderFields{NodeID: 1}, nil, []string{"testf01"})
	require.NoError(t, err)

	wantNamePayload := []byte("testf01\x00")
	gotNamePayload := req.Bytes[raw.SizeofInHeader:]
	if diff := pretty.Compare(gotNamePayload, wantNamePayload); diff != "" {
		t.Errorf("name payload mismatch (-got +want):\n%s", diff)
	}
	require.Equal(t, int(raw.SizeofInHeader)+8, req.InLen)
}

func TestEncodeLookupPaddedName(t *testing.T) {
	// "test" is 4 bytes; with NUL that's 5, padded to 8.
	req, err := Encode(raw.FUSE_LOOKUP, 43, InHeaderFields{NodeID: 1}, nil, []string{"test"})
	require.NoError(t, err)

	wantNamePayload := []byte{'t', 'e', 's', 't', 0, 0, 0, 0}
	gotNamePayload := req.Bytes[raw.SizeofInHeader:]
	if diff := pretty.Compare(gotNamePayload, wantNamePayload); diff != "" {
		t.Errorf("name payload mismatch (-got +want):\n%s", diff)
	}
	require.Equal(t, int(raw.SizeofInHeader)+8, req.InLen)
}

func TestEncodeMultiNamePadsConcatenationOnce(t *testing.T) {
	// oldName="a" newName="bb": "a\0bb\0" is 5 bytes, padded once to 8.
	// Padding each name individually first ("a\0" -> 8, "bb\0" -> 8)
	// would produce a 16-byte region instead.
	req, err := Encode(raw.FUSE_RENAME, 44, InHeaderFields{NodeID: 1}, raw.Bytes(&raw.RenameIn{Newdir: 2}), []string{"a", "bb"})
	require.NoError(t, err)

	wantNamePayload := []byte{'a', 0, 'b', 'b', 0, 0, 0, 0}
	gotNamePayload := req.Bytes[int(raw.SizeofInHeader)+int(sizeofT[raw.RenameIn]()):]
	if diff := pretty.Compare(gotNamePayload, wantNamePayload); diff != "" {
		t.Errorf("name payload mismatch (-got +want):\n%s", diff)
	}
	require.Equal(t, int(raw.SizeofInHeader)+int(sizeofT[raw.RenameIn]())+8, req.InLen)
}

func TestEncodeRejectsWrongNameCount(t *testing.T) {
	_, err := Encode(raw.FUSE_LOOKUP, 1, InHeaderFields{}, nil, nil)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ClassProtocol, verr.Class)
}

func TestEncodeRejectsUnknownOpcode(t *testing.T) {
	_, err := Encode(raw.Opcode(99999), 1, InHeaderFields{}, nil, nil)
	require.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestEncodeHeaderFields(t *testing.T) {
	req, err := Encode(raw.FUSE_GETATTR, 7, InHeaderFields{NodeID: 5, UID: 100, GID: 200, PID: 300}, raw.Bytes(&raw.GetAttrIn{}), nil)
	require.NoError(t, err)

	h := raw.Cast[raw.InHeader](req.Bytes)
	require.Equal(t, uint64(7), h.Unique)
	require.Equal(t, uint64(5), h.NodeId)
	require.Equal(t, uint32(100), h.Context.Owner.Uid)
	require.Equal(t, uint32(200), h.Context.Owner.Gid)
	require.Equal(t, uint32(300), h.Context.Pid)
	require.Equal(t, int32(raw.FUSE_GETATTR), h.Opcode)
	require.Equal(t, uint32(req.InLen), h.Length)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode(make([]byte, 4), 0)
	require.ErrorIs(t, err, ErrShortReply)
}

func TestDecodeSplitsHeaderAndPayload(t *testing.T) {
	out := raw.AttrOut{AttrValid: 1}
	body := raw.Bytes(&out)
	total := int(raw.SizeofOutHeader) + len(body)
	oh := raw.OutHeader{Length: uint32(total), Unique: 99}

	buf := append(append([]byte{}, raw.Bytes(&oh)...), body...)
	reply, err := Decode(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(99), reply.Header.Unique)
	require.Len(t, reply.Payload, len(body))

	_, got, err := DecodeFixed[raw.AttrOut](buf, 0)
	require.NoError(t, err)
	require.Equal(t, out.AttrValid, got.AttrValid)
}

func TestDecodeFixedSurfacesDeviceStatus(t *testing.T) {
	oh := raw.OutHeader{Length: uint32(raw.SizeofOutHeader), Unique: 1, Status: -2}
	buf := raw.Bytes(&oh)
	hdr, _, err := DecodeFixed[raw.AttrOut](buf, 0)
	require.NoError(t, err)
	require.Equal(t, int32(-2), hdr.Status)
}
