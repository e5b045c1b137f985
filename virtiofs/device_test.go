package virtiofs

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/virtiofs/go-virtiofs/raw"
	"github.com/virtiofs/go-virtiofs/virtqueue"
)

// fakeFS is a minimal in-memory single-file device handler good enough
// to drive AnyFuseDevice through the write-then-read scenario: it
// understands INIT, LOOKUP, GETATTR, WRITE, READ, SETXATTR and
// BATCH_FORGET against one fixed inode and rejects everything else with
// ENOSYS.
type fakeFS struct {
	data []byte

	lastXAttrName  string
	lastXAttrValue []byte

	lastForgets []raw.ForgetOne
	forgotten   chan struct{}
}

func (fs *fakeFS) handle(readable, writable []byte) int {
	in := raw.Cast[raw.InHeader](readable)
	op := raw.Opcode(in.Opcode)
	body := readable[raw.SizeofInHeader:]

	reply := func(status int32, out []byte) int {
		oh := raw.OutHeader{Unique: in.Unique, Status: status, Length: uint32(int(raw.SizeofOutHeader) + len(out))}
		n := copy(writable, raw.Bytes(&oh))
		n += copy(writable[n:], out)
		return n
	}

	switch op {
	case raw.FUSE_INIT:
		out := raw.InitOut{Major: 7, Minor: 31, MaxWrite: 1 << 16}
		return reply(0, raw.Bytes(&out))
	case raw.FUSE_LOOKUP:
		out := raw.EntryOut{NodeId: 2, EntryValid: 1, AttrValid: 1}
		return reply(0, raw.Bytes(&out))
	case raw.FUSE_GETATTR:
		out := raw.AttrOut{AttrValid: 1}
		return reply(0, raw.Bytes(&out))
	case raw.FUSE_WRITE:
		wi := raw.Cast[raw.WriteIn](body)
		data := body[unsafeSizeofWriteIn():]
		if int(wi.Size) < len(data) {
			data = data[:wi.Size]
		}
		fs.data = append(fs.data[:0], data...)
		out := raw.WriteOut{Size: uint32(len(data))}
		return reply(0, raw.Bytes(&out))
	case raw.FUSE_READ:
		return reply(0, fs.data)
	case raw.FUSE_SETXATTR:
		si := raw.Cast[raw.SetXAttrIn](body)
		rest := body[sizeofT[raw.SetXAttrIn]():]
		valueLen := int(si.Size)
		nameRegion, value := rest[:len(rest)-valueLen], rest[len(rest)-valueLen:]
		nulAt := bytes.IndexByte(nameRegion, 0)
		fs.lastXAttrName = string(nameRegion[:nulAt])
		fs.lastXAttrValue = append([]byte(nil), value...)
		return reply(0, nil)
	case raw.FUSE_BATCH_FORGET:
		bfi := raw.Cast[raw.BatchForgetIn](body)
		tail := body[sizeofT[raw.BatchForgetIn]():]
		forgets := make([]raw.ForgetOne, bfi.Count)
		for i := range forgets {
			forgets[i] = *raw.Cast[raw.ForgetOne](tail[i*int(sizeofT[raw.ForgetOne]()):])
		}
		fs.lastForgets = forgets
		if fs.forgotten != nil {
			close(fs.forgotten)
		}
		return reply(0, nil)
	default:
		return reply(-38, nil) // -ENOSYS
	}
}

func unsafeSizeofWriteIn() int { return int(sizeofT[raw.WriteIn]()) }

func newTestDevice(t *testing.T, handler virtqueue.DeviceHandler) *Device {
	t.Helper()
	qs := newTestQueueSet(t, 2, handler)
	disp := NewDispatcher(qs, nil, nil)
	t.Cleanup(disp.Close)
	return NewDevice(qs, disp, nil)
}

func TestDeviceInitHandshake(t *testing.T) {
	fs := &fakeFS{}
	dev := newTestDevice(t, fs.handle)

	out, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
	require.NoError(t, err)
	require.Equal(t, uint32(7), out.Major)
	require.Equal(t, uint32(31), out.Minor)
}

func TestDeviceRejectsBeforeInit(t *testing.T) {
	fs := &fakeFS{}
	dev := newTestDevice(t, fs.handle)

	_, err := dev.Lookup(context.Background(), Credential{}, 1, "testf01")
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestDeviceLookupAlignedAndPaddedNames(t *testing.T) {
	fs := &fakeFS{}
	dev := newTestDevice(t, fs.handle)
	_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
	require.NoError(t, err)

	for _, name := range []string{"testf01", "test"} {
		out, err := dev.Lookup(context.Background(), Credential{}, 1, name)
		require.NoError(t, err, "name %q", name)
		require.Equal(t, uint64(2), out.NodeId)
	}
}

func TestDeviceWriteThenRead(t *testing.T) {
	fs := &fakeFS{}
	dev := newTestDevice(t, fs.handle)
	_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
	require.NoError(t, err)

	payload := []byte("hello virtiofs")
	wout, err := dev.Write(context.Background(), Credential{}, 2, raw.WriteIn{Size: uint32(len(payload))}, payload)
	require.NoError(t, err)
	require.Equal(t, uint32(len(payload)), wout.Size)

	got, err := dev.Read(context.Background(), Credential{}, 2, raw.ReadIn{Size: uint32(len(payload))})
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDeviceSurfacesDeviceErrno(t *testing.T) {
	fs := &fakeFS{}
	dev := newTestDevice(t, fs.handle)
	_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
	require.NoError(t, err)

	err = dev.Fsync(context.Background(), Credential{}, 2, raw.FsyncIn{})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ClassDevice, verr.Class)
}

func TestDeviceSetXAttrCarriesNameAndValue(t *testing.T) {
	fs := &fakeFS{}
	dev := newTestDevice(t, fs.handle)
	_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
	require.NoError(t, err)

	value := []byte("user.attribute-value")
	err = dev.SetXAttr(context.Background(), Credential{}, 2, raw.SetXAttrIn{Size: uint32(len(value))}, "user.attr", value)
	require.NoError(t, err)
	require.Equal(t, "user.attr", fs.lastXAttrName)
	require.Equal(t, value, fs.lastXAttrValue)
}

func TestDeviceBatchForgetCarriesAllEntries(t *testing.T) {
	fs := &fakeFS{forgotten: make(chan struct{})}
	dev := newTestDevice(t, fs.handle)
	_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
	require.NoError(t, err)

	forgets := []raw.ForgetOne{
		{NodeId: 2, Nlookup: 1},
		{NodeId: 3, Nlookup: 4},
		{NodeId: 4, Nlookup: 9},
	}
	dev.BatchForget(Credential{}, forgets)

	select {
	case <-fs.forgotten:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for BATCH_FORGET to reach the device")
	}
	require.Equal(t, forgets, fs.lastForgets)
}
