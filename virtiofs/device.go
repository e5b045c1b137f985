package virtiofs

import (
	"context"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/virtiofs/go-virtiofs/raw"
)

func sizeofT[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// Credential is the caller identity a VFS layer supplies for a request.
// UID/GID default to raw.FUSE_INVALID_UIDGID when the caller has no id
// mapped into the mount's namespace under FUSE_ALLOW_IDMAP.
type Credential struct {
	UID uint32
	GID uint32
	PID uint32
}

func (c Credential) fields(nodeID uint64) InHeaderFields {
	uid, gid := c.UID, c.GID
	if uid == 0 && gid == 0 && c.PID == 0 {
		uid, gid = raw.FUSE_INVALID_UIDGID, raw.FUSE_INVALID_UIDGID
	}
	return InHeaderFields{NodeID: nodeID, UID: uid, GID: gid, PID: c.PID}
}

// AnyFuseDevice is the operation surface a VFS layer drives: one method
// per FUSE opcode, each a thin composition of the codec and dispatcher.
// *Device is the only implementation; the interface exists so tests and
// higher layers can substitute a fake without touching queue plumbing.
type AnyFuseDevice interface {
	Init(ctx context.Context, cred Credential, in raw.InitIn) (raw.InitOut, error)
	Lookup(ctx context.Context, cred Credential, parent uint64, name string) (raw.EntryOut, error)
	Forget(cred Credential, nodeID uint64, nlookup uint64)
	BatchForget(cred Credential, forgets []raw.ForgetOne)
	GetAttr(ctx context.Context, cred Credential, in raw.GetAttrIn) (raw.AttrOut, error)
	SetAttr(ctx context.Context, cred Credential, in raw.SetAttrIn) (raw.AttrOut, error)
	Readlink(ctx context.Context, cred Credential, nodeID uint64) ([]byte, error)
	Symlink(ctx context.Context, cred Credential, parent uint64, name, target string) (raw.EntryOut, error)
	Mknod(ctx context.Context, cred Credential, parent uint64, name string, in raw.MknodIn) (raw.EntryOut, error)
	Mkdir(ctx context.Context, cred Credential, parent uint64, name string, in raw.MkdirIn) (raw.EntryOut, error)
	Create(ctx context.Context, cred Credential, parent uint64, name string, in raw.CreateIn) (raw.EntryOut, raw.OpenOut, error)
	Unlink(ctx context.Context, cred Credential, parent uint64, name string) error
	Rmdir(ctx context.Context, cred Credential, parent uint64, name string) error
	Rename(ctx context.Context, cred Credential, in raw.RenameIn, oldName, newName string) error
	Rename2(ctx context.Context, cred Credential, in raw.Rename2In, oldName, newName string) error
	Link(ctx context.Context, cred Credential, in raw.LinkIn, name string) (raw.EntryOut, error)
	Open(ctx context.Context, cred Credential, nodeID uint64, in raw.OpenIn) (raw.OpenOut, error)
	OpenDir(ctx context.Context, cred Credential, nodeID uint64, in raw.OpenIn) (raw.OpenOut, error)
	Read(ctx context.Context, cred Credential, nodeID uint64, in raw.ReadIn) ([]byte, error)
	ReadDir(ctx context.Context, cred Credential, nodeID uint64, in raw.ReadIn) ([]raw.DirEntry, error)
	ReadDirPlus(ctx context.Context, cred Credential, nodeID uint64, in raw.ReadIn) ([]raw.DirEntry, error)
	Write(ctx context.Context, cred Credential, nodeID uint64, in raw.WriteIn, data []byte) (raw.WriteOut, error)
	Release(cred Credential, nodeID uint64, in raw.ReleaseIn)
	ReleaseDir(cred Credential, nodeID uint64, in raw.ReleaseIn)
	Flush(ctx context.Context, cred Credential, nodeID uint64, in raw.FlushIn) error
	Fsync(ctx context.Context, cred Credential, nodeID uint64, in raw.FsyncIn) error
	FsyncDir(ctx context.Context, cred Credential, nodeID uint64, in raw.FsyncIn) error
	Statfs(ctx context.Context, cred Credential, nodeID uint64) (raw.StatfsOut, error)
	SetXAttr(ctx context.Context, cred Credential, nodeID uint64, in raw.SetXAttrIn, name string, value []byte) error
	GetXAttr(ctx context.Context, cred Credential, nodeID uint64, in raw.GetXAttrIn, name string) (raw.GetXAttrOut, []byte, error)
	ListXAttr(ctx context.Context, cred Credential, nodeID uint64, in raw.GetXAttrIn) (raw.GetXAttrOut, []byte, error)
	RemoveXAttr(ctx context.Context, cred Credential, nodeID uint64, name string) error
	Access(ctx context.Context, cred Credential, nodeID uint64, in raw.AccessIn) error
	GetLk(ctx context.Context, cred Credential, nodeID uint64, in raw.LkIn) (raw.LkOut, error)
	SetLk(ctx context.Context, cred Credential, nodeID uint64, in raw.LkIn) error
	SetLkw(ctx context.Context, cred Credential, nodeID uint64, in raw.LkIn) error
	Bmap(ctx context.Context, cred Credential, nodeID uint64, in raw.BmapIn) (raw.BmapOut, error)
	Ioctl(ctx context.Context, cred Credential, nodeID uint64, in raw.IoctlIn, data []byte) (raw.IoctlOut, []byte, error)
	Poll(ctx context.Context, cred Credential, nodeID uint64, in raw.PollIn) (raw.PollOut, error)
	Fallocate(ctx context.Context, cred Credential, nodeID uint64, in raw.FallocateIn) error
	Lseek(ctx context.Context, cred Credential, nodeID uint64, in raw.LseekIn) (raw.LseekOut, error)
	Destroy(ctx context.Context, cred Credential) error
	Interrupt(unique uint64)
}

// Device is the concrete AnyFuseDevice, constructed once per mounted
// tag. Method bodies share one shape: encode via the codec, submit via
// the dispatcher (forgets and interrupts on the high-priority queue,
// INIT on request queue 0, everything else round-robined across
// request queues), decode the reply.
type Device struct {
	qs   *QueueSet
	disp *Dispatcher
	log  *logrus.Entry
}

// NewDevice binds an operation surface to an already-negotiated queue
// set and its dispatcher.
func NewDevice(qs *QueueSet, disp *Dispatcher, log *logrus.Entry) *Device {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Device{qs: qs, disp: disp, log: log.WithField("component", "device")}
}

func (d *Device) submitRequest(ctx context.Context, op raw.Opcode, hdr InHeaderFields, opIn []byte, names []string, outCap int) (DecodedReply, error) {
	req, err := Encode(op, d.disp.nextUnique(), hdr, opIn, names)
	if err != nil {
		return DecodedReply{}, err
	}
	h := d.qs.NextRequestQueue()
	return d.disp.Submit(ctx, h, req, outCap)
}

func (d *Device) submitHiPrio(op raw.Opcode, hdr InHeaderFields, opIn []byte, names []string) {
	req, err := Encode(op, d.disp.nextUnique(), hdr, opIn, names)
	if err != nil {
		d.log.WithError(err).WithField("opcode", op).Error("failed to encode high-priority message")
		return
	}
	h := d.qs.HiPrio()
	// Forgets carry no reply; fire-and-forget via a background context
	// with no deadline. Submit still parks a goroutine's worth of state
	// until the device's completion arrives.
	go func() {
		_, err := d.disp.Submit(context.Background(), h, req, 0)
		if err != nil {
			d.log.WithError(err).WithField("opcode", op).Debug("high-priority message completed with error")
		}
	}()
}

func fixedOut[T any](reply DecodedReply) (T, error) {
	var out T
	if reply.Header.Status != 0 {
		return out, newErr(ClassDevice, "reply", DeviceErrno(reply.Header.Status))
	}
	need := int(sizeofT[T]())
	if len(reply.Payload) < need {
		return out, newErr(ClassProtocol, "reply", ErrShortReply)
	}
	out = *raw.Cast[T](reply.Payload)
	return out, nil
}

func (d *Device) Init(ctx context.Context, cred Credential, in raw.InitIn) (raw.InitOut, error) {
	req, err := Encode(raw.FUSE_INIT, d.disp.nextUnique(), cred.fields(0), raw.Bytes(&in), nil)
	if err != nil {
		return raw.InitOut{}, err
	}
	h, err := d.qs.Request(0)
	if err != nil {
		return raw.InitOut{}, err
	}
	reply, err := d.disp.Submit(ctx, h, req, int(sizeofT[raw.InitOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.InitOut{}, err
	}
	out, err := fixedOut[raw.InitOut](reply)
	if err == nil {
		d.disp.MarkInitDone()
	}
	return out, err
}

func (d *Device) Lookup(ctx context.Context, cred Credential, parent uint64, name string) (raw.EntryOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_LOOKUP, cred.fields(parent), nil, []string{name}, int(sizeofT[raw.EntryOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.EntryOut{}, err
	}
	return fixedOut[raw.EntryOut](reply)
}

func (d *Device) Forget(cred Credential, nodeID uint64, nlookup uint64) {
	in := raw.ForgetIn{Nlookup: nlookup}
	d.submitHiPrio(raw.FUSE_FORGET, cred.fields(nodeID), raw.Bytes(&in), nil)
}

func (d *Device) BatchForget(cred Credential, forgets []raw.ForgetOne) {
	in := raw.BatchForgetIn{Count: uint32(len(forgets)), Dummy: 0}
	// BatchForgetIn's declared InSize in the opcode table covers only the
	// fixed header; Encode is given just that so its length check passes,
	// and the variable ForgetOne tail is appended afterward the same way
	// SetXAttr appends its raw value blob after encoding the fixed part.
	req, err := Encode(raw.FUSE_BATCH_FORGET, d.disp.nextUnique(), cred.fields(0), raw.Bytes(&in), nil)
	if err != nil {
		d.log.WithError(err).Error("failed to encode BATCH_FORGET")
		return
	}
	for i := range forgets {
		req.Bytes = append(req.Bytes, raw.Bytes(&forgets[i])...)
	}
	req.InLen = len(req.Bytes)
	h := d.qs.HiPrio()
	go func() {
		_, _ = d.disp.Submit(context.Background(), h, req, 0)
	}()
}

func (d *Device) GetAttr(ctx context.Context, cred Credential, in raw.GetAttrIn) (raw.AttrOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_GETATTR, cred.fields(0), raw.Bytes(&in), nil, int(sizeofT[raw.AttrOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.AttrOut{}, err
	}
	return fixedOut[raw.AttrOut](reply)
}

func (d *Device) SetAttr(ctx context.Context, cred Credential, in raw.SetAttrIn) (raw.AttrOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_SETATTR, cred.fields(0), raw.Bytes(&in), nil, int(sizeofT[raw.AttrOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.AttrOut{}, err
	}
	return fixedOut[raw.AttrOut](reply)
}

func (d *Device) Readlink(ctx context.Context, cred Credential, nodeID uint64) ([]byte, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_READLINK, cred.fields(nodeID), nil, nil, 4096)
	if err != nil {
		return nil, err
	}
	if reply.Header.Status != 0 {
		return nil, newErr(ClassDevice, "readlink", DeviceErrno(reply.Header.Status))
	}
	return raw.TrimToSingleNUL(reply.Payload), nil
}

func (d *Device) Symlink(ctx context.Context, cred Credential, parent uint64, name, target string) (raw.EntryOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_SYMLINK, cred.fields(parent), nil, []string{name, target}, int(sizeofT[raw.EntryOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.EntryOut{}, err
	}
	return fixedOut[raw.EntryOut](reply)
}

func (d *Device) Mknod(ctx context.Context, cred Credential, parent uint64, name string, in raw.MknodIn) (raw.EntryOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_MKNOD, cred.fields(parent), raw.Bytes(&in), []string{name}, int(sizeofT[raw.EntryOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.EntryOut{}, err
	}
	return fixedOut[raw.EntryOut](reply)
}

func (d *Device) Mkdir(ctx context.Context, cred Credential, parent uint64, name string, in raw.MkdirIn) (raw.EntryOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_MKDIR, cred.fields(parent), raw.Bytes(&in), []string{name}, int(sizeofT[raw.EntryOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.EntryOut{}, err
	}
	return fixedOut[raw.EntryOut](reply)
}

func (d *Device) Create(ctx context.Context, cred Credential, parent uint64, name string, in raw.CreateIn) (raw.EntryOut, raw.OpenOut, error) {
	outCap := int(sizeofT[raw.EntryOut]()) + int(sizeofT[raw.OpenOut]()) + int(raw.SizeofOutHeader)
	reply, err := d.submitRequest(ctx, raw.FUSE_CREATE, cred.fields(parent), raw.Bytes(&in), []string{name}, outCap)
	if err != nil {
		return raw.EntryOut{}, raw.OpenOut{}, err
	}
	if reply.Header.Status != 0 {
		return raw.EntryOut{}, raw.OpenOut{}, newErr(ClassDevice, "create", DeviceErrno(reply.Header.Status))
	}
	entrySize := int(sizeofT[raw.EntryOut]())
	if len(reply.Payload) < entrySize+int(sizeofT[raw.OpenOut]()) {
		return raw.EntryOut{}, raw.OpenOut{}, newErr(ClassProtocol, "create", ErrShortReply)
	}
	entry := *raw.Cast[raw.EntryOut](reply.Payload[:entrySize])
	open := *raw.Cast[raw.OpenOut](reply.Payload[entrySize:])
	return entry, open, nil
}

func (d *Device) Unlink(ctx context.Context, cred Credential, parent uint64, name string) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_UNLINK, cred.fields(parent), nil, []string{name}, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "unlink")
}

func (d *Device) Rmdir(ctx context.Context, cred Credential, parent uint64, name string) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_RMDIR, cred.fields(parent), nil, []string{name}, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "rmdir")
}

func (d *Device) Rename(ctx context.Context, cred Credential, in raw.RenameIn, oldName, newName string) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_RENAME, cred.fields(0), raw.Bytes(&in), []string{oldName, newName}, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "rename")
}

func (d *Device) Rename2(ctx context.Context, cred Credential, in raw.Rename2In, oldName, newName string) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_RENAME2, cred.fields(0), raw.Bytes(&in), []string{oldName, newName}, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "rename2")
}

func (d *Device) Link(ctx context.Context, cred Credential, in raw.LinkIn, name string) (raw.EntryOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_LINK, cred.fields(0), raw.Bytes(&in), []string{name}, int(sizeofT[raw.EntryOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.EntryOut{}, err
	}
	return fixedOut[raw.EntryOut](reply)
}

func (d *Device) Open(ctx context.Context, cred Credential, nodeID uint64, in raw.OpenIn) (raw.OpenOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_OPEN, cred.fields(nodeID), raw.Bytes(&in), nil, int(sizeofT[raw.OpenOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.OpenOut{}, err
	}
	return fixedOut[raw.OpenOut](reply)
}

func (d *Device) OpenDir(ctx context.Context, cred Credential, nodeID uint64, in raw.OpenIn) (raw.OpenOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_OPENDIR, cred.fields(nodeID), raw.Bytes(&in), nil, int(sizeofT[raw.OpenOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.OpenOut{}, err
	}
	return fixedOut[raw.OpenOut](reply)
}

func (d *Device) Read(ctx context.Context, cred Credential, nodeID uint64, in raw.ReadIn) ([]byte, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_READ, cred.fields(nodeID), raw.Bytes(&in), nil, int(in.Size)+int(raw.SizeofOutHeader))
	if err != nil {
		return nil, err
	}
	if reply.Header.Status != 0 {
		return nil, newErr(ClassDevice, "read", DeviceErrno(reply.Header.Status))
	}
	return append([]byte(nil), reply.Payload...), nil
}

func (d *Device) ReadDir(ctx context.Context, cred Credential, nodeID uint64, in raw.ReadIn) ([]raw.DirEntry, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_READDIR, cred.fields(nodeID), raw.Bytes(&in), nil, int(in.Size)+int(raw.SizeofOutHeader))
	if err != nil {
		return nil, err
	}
	if reply.Header.Status != 0 {
		return nil, newErr(ClassDevice, "readdir", DeviceErrno(reply.Header.Status))
	}
	return raw.Dirents(reply.Payload), nil
}

func (d *Device) ReadDirPlus(ctx context.Context, cred Credential, nodeID uint64, in raw.ReadIn) ([]raw.DirEntry, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_READDIRPLUS, cred.fields(nodeID), raw.Bytes(&in), nil, int(in.Size)+int(raw.SizeofOutHeader))
	if err != nil {
		return nil, err
	}
	if reply.Header.Status != 0 {
		return nil, newErr(ClassDevice, "readdirplus", DeviceErrno(reply.Header.Status))
	}
	return raw.Dirents(reply.Payload), nil
}

func (d *Device) Write(ctx context.Context, cred Credential, nodeID uint64, in raw.WriteIn, data []byte) (raw.WriteOut, error) {
	req, err := Encode(raw.FUSE_WRITE, d.disp.nextUnique(), cred.fields(nodeID), raw.Bytes(&in), nil)
	if err != nil {
		return raw.WriteOut{}, err
	}
	req.Bytes = append(req.Bytes, data...)
	req.InLen = len(req.Bytes)
	h := d.qs.NextRequestQueue()
	reply, err := d.disp.Submit(ctx, h, req, int(sizeofT[raw.WriteOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.WriteOut{}, err
	}
	return fixedOut[raw.WriteOut](reply)
}

func (d *Device) Release(cred Credential, nodeID uint64, in raw.ReleaseIn) {
	d.submitHiPrioViaRequest(raw.FUSE_RELEASE, cred.fields(nodeID), raw.Bytes(&in))
}

func (d *Device) ReleaseDir(cred Credential, nodeID uint64, in raw.ReleaseIn) {
	d.submitHiPrioViaRequest(raw.FUSE_RELEASEDIR, cred.fields(nodeID), raw.Bytes(&in))
}

// submitHiPrioViaRequest fires RELEASE/RELEASEDIR on a request queue
// (unlike FORGET/INTERRUPT, these route like any other opcode) without
// blocking the caller on the reply.
func (d *Device) submitHiPrioViaRequest(op raw.Opcode, hdr InHeaderFields, opIn []byte) {
	req, err := Encode(op, d.disp.nextUnique(), hdr, opIn, nil)
	if err != nil {
		d.log.WithError(err).WithField("opcode", op).Error("failed to encode release")
		return
	}
	h := d.qs.NextRequestQueue()
	go func() {
		_, _ = d.disp.Submit(context.Background(), h, req, 0)
	}()
}

func (d *Device) Flush(ctx context.Context, cred Credential, nodeID uint64, in raw.FlushIn) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_FLUSH, cred.fields(nodeID), raw.Bytes(&in), nil, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "flush")
}

func (d *Device) Fsync(ctx context.Context, cred Credential, nodeID uint64, in raw.FsyncIn) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_FSYNC, cred.fields(nodeID), raw.Bytes(&in), nil, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "fsync")
}

func (d *Device) FsyncDir(ctx context.Context, cred Credential, nodeID uint64, in raw.FsyncIn) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_FSYNCDIR, cred.fields(nodeID), raw.Bytes(&in), nil, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "fsyncdir")
}

func (d *Device) Statfs(ctx context.Context, cred Credential, nodeID uint64) (raw.StatfsOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_STATFS, cred.fields(nodeID), nil, nil, int(sizeofT[raw.StatfsOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.StatfsOut{}, err
	}
	return fixedOut[raw.StatfsOut](reply)
}

func (d *Device) SetXAttr(ctx context.Context, cred Credential, nodeID uint64, in raw.SetXAttrIn, name string, value []byte) error {
	req, err := Encode(raw.FUSE_SETXATTR, d.disp.nextUnique(), cred.fields(nodeID), raw.Bytes(&in), []string{name})
	if err != nil {
		return err
	}
	req.Bytes = append(req.Bytes, value...)
	req.InLen = len(req.Bytes)
	h := d.qs.NextRequestQueue()
	reply, err := d.disp.Submit(ctx, h, req, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "setxattr")
}

func (d *Device) GetXAttr(ctx context.Context, cred Credential, nodeID uint64, in raw.GetXAttrIn, name string) (raw.GetXAttrOut, []byte, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_GETXATTR, cred.fields(nodeID), raw.Bytes(&in), []string{name}, int(in.Size)+int(raw.SizeofOutHeader))
	return splitXAttrReply(reply, err, "getxattr")
}

func (d *Device) ListXAttr(ctx context.Context, cred Credential, nodeID uint64, in raw.GetXAttrIn) (raw.GetXAttrOut, []byte, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_LISTXATTR, cred.fields(nodeID), raw.Bytes(&in), nil, int(in.Size)+int(raw.SizeofOutHeader))
	return splitXAttrReply(reply, err, "listxattr")
}

func splitXAttrReply(reply DecodedReply, err error, op string) (raw.GetXAttrOut, []byte, error) {
	if err != nil {
		return raw.GetXAttrOut{}, nil, err
	}
	if reply.Header.Status != 0 {
		return raw.GetXAttrOut{}, nil, newErr(ClassDevice, op, DeviceErrno(reply.Header.Status))
	}
	headSize := int(sizeofT[raw.GetXAttrOut]())
	if len(reply.Payload) < headSize {
		return raw.GetXAttrOut{}, nil, newErr(ClassProtocol, op, ErrShortReply)
	}
	head := *raw.Cast[raw.GetXAttrOut](reply.Payload[:headSize])
	return head, append([]byte(nil), reply.Payload[headSize:]...), nil
}

func (d *Device) RemoveXAttr(ctx context.Context, cred Credential, nodeID uint64, name string) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_REMOVEXATTR, cred.fields(nodeID), nil, []string{name}, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "removexattr")
}

func (d *Device) Access(ctx context.Context, cred Credential, nodeID uint64, in raw.AccessIn) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_ACCESS, cred.fields(nodeID), raw.Bytes(&in), nil, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "access")
}

func (d *Device) GetLk(ctx context.Context, cred Credential, nodeID uint64, in raw.LkIn) (raw.LkOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_GETLK, cred.fields(nodeID), raw.Bytes(&in), nil, int(sizeofT[raw.LkOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.LkOut{}, err
	}
	return fixedOut[raw.LkOut](reply)
}

func (d *Device) SetLk(ctx context.Context, cred Credential, nodeID uint64, in raw.LkIn) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_SETLK, cred.fields(nodeID), raw.Bytes(&in), nil, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "setlk")
}

func (d *Device) SetLkw(ctx context.Context, cred Credential, nodeID uint64, in raw.LkIn) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_SETLKW, cred.fields(nodeID), raw.Bytes(&in), nil, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "setlkw")
}

func (d *Device) Bmap(ctx context.Context, cred Credential, nodeID uint64, in raw.BmapIn) (raw.BmapOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_BMAP, cred.fields(nodeID), raw.Bytes(&in), nil, int(sizeofT[raw.BmapOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.BmapOut{}, err
	}
	return fixedOut[raw.BmapOut](reply)
}

func (d *Device) Ioctl(ctx context.Context, cred Credential, nodeID uint64, in raw.IoctlIn, data []byte) (raw.IoctlOut, []byte, error) {
	req, err := Encode(raw.FUSE_IOCTL, d.disp.nextUnique(), cred.fields(nodeID), raw.Bytes(&in), nil)
	if err != nil {
		return raw.IoctlOut{}, nil, err
	}
	req.Bytes = append(req.Bytes, data...)
	req.InLen = len(req.Bytes)
	h := d.qs.NextRequestQueue()
	outCap := int(sizeofT[raw.IoctlOut]()) + int(in.OutSize) + int(raw.SizeofOutHeader)
	reply, err := d.disp.Submit(ctx, h, req, outCap)
	if err != nil {
		return raw.IoctlOut{}, nil, err
	}
	if reply.Header.Status != 0 {
		return raw.IoctlOut{}, nil, newErr(ClassDevice, "ioctl", DeviceErrno(reply.Header.Status))
	}
	headSize := int(sizeofT[raw.IoctlOut]())
	if len(reply.Payload) < headSize {
		return raw.IoctlOut{}, nil, newErr(ClassProtocol, "ioctl", ErrShortReply)
	}
	head := *raw.Cast[raw.IoctlOut](reply.Payload[:headSize])
	return head, append([]byte(nil), reply.Payload[headSize:]...), nil
}

func (d *Device) Poll(ctx context.Context, cred Credential, nodeID uint64, in raw.PollIn) (raw.PollOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_POLL, cred.fields(nodeID), raw.Bytes(&in), nil, int(sizeofT[raw.PollOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.PollOut{}, err
	}
	return fixedOut[raw.PollOut](reply)
}

func (d *Device) Fallocate(ctx context.Context, cred Credential, nodeID uint64, in raw.FallocateIn) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_FALLOCATE, cred.fields(nodeID), raw.Bytes(&in), nil, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "fallocate")
}

func (d *Device) Lseek(ctx context.Context, cred Credential, nodeID uint64, in raw.LseekIn) (raw.LseekOut, error) {
	reply, err := d.submitRequest(ctx, raw.FUSE_LSEEK, cred.fields(nodeID), raw.Bytes(&in), nil, int(sizeofT[raw.LseekOut]())+int(raw.SizeofOutHeader))
	if err != nil {
		return raw.LseekOut{}, err
	}
	return fixedOut[raw.LseekOut](reply)
}

func (d *Device) Destroy(ctx context.Context, cred Credential) error {
	reply, err := d.submitRequest(ctx, raw.FUSE_DESTROY, cred.fields(0), nil, nil, int(raw.SizeofOutHeader))
	return statusOnly(reply, err, "destroy")
}

// Interrupt asks the dispatcher to send a best-effort FUSE_INTERRUPT
// for an in-flight request. It never blocks and never itself waits for
// a reply — the original waiter's own call site owns that.
func (d *Device) Interrupt(unique uint64) {
	d.disp.interrupt(unique)
}

func statusOnly(reply DecodedReply, err error, op string) error {
	if err != nil {
		return err
	}
	if reply.Header.Status != 0 {
		return newErr(ClassDevice, op, DeviceErrno(reply.Header.Status))
	}
	return nil
}
