package raw

import "fmt"

// Opcode identifies the operation carried by a FUSE request. Values match
// Linux's uapi/linux/fuse.h.
type Opcode uint32

const (
	FUSE_LOOKUP       = Opcode(1)
	FUSE_FORGET       = Opcode(2)
	FUSE_GETATTR      = Opcode(3)
	FUSE_SETATTR      = Opcode(4)
	FUSE_READLINK     = Opcode(5)
	FUSE_SYMLINK      = Opcode(6)
	FUSE_MKNOD        = Opcode(8)
	FUSE_MKDIR        = Opcode(9)
	FUSE_UNLINK       = Opcode(10)
	FUSE_RMDIR        = Opcode(11)
	FUSE_RENAME       = Opcode(12)
	FUSE_LINK         = Opcode(13)
	FUSE_OPEN         = Opcode(14)
	FUSE_READ         = Opcode(15)
	FUSE_WRITE        = Opcode(16)
	FUSE_STATFS       = Opcode(17)
	FUSE_RELEASE      = Opcode(18)
	FUSE_FSYNC        = Opcode(20)
	FUSE_SETXATTR     = Opcode(21)
	FUSE_GETXATTR     = Opcode(22)
	FUSE_LISTXATTR    = Opcode(23)
	FUSE_REMOVEXATTR  = Opcode(24)
	FUSE_FLUSH        = Opcode(25)
	FUSE_INIT         = Opcode(26)
	FUSE_OPENDIR      = Opcode(27)
	FUSE_READDIR      = Opcode(28)
	FUSE_RELEASEDIR   = Opcode(29)
	FUSE_FSYNCDIR     = Opcode(30)
	FUSE_GETLK        = Opcode(31)
	FUSE_SETLK        = Opcode(32)
	FUSE_SETLKW       = Opcode(33)
	FUSE_ACCESS       = Opcode(34)
	FUSE_CREATE       = Opcode(35)
	FUSE_INTERRUPT    = Opcode(36)
	FUSE_BMAP         = Opcode(37)
	FUSE_DESTROY      = Opcode(38)
	FUSE_IOCTL        = Opcode(39)
	FUSE_POLL         = Opcode(40)
	FUSE_NOTIFY_REPLY = Opcode(41)
	FUSE_BATCH_FORGET = Opcode(42)
	FUSE_FALLOCATE    = Opcode(43)
	FUSE_READDIRPLUS  = Opcode(44)
	FUSE_RENAME2      = Opcode(45)
	FUSE_LSEEK        = Opcode(46)
)

var opcodeNames = map[Opcode]string{
	FUSE_LOOKUP:       "LOOKUP",
	FUSE_FORGET:       "FORGET",
	FUSE_GETATTR:      "GETATTR",
	FUSE_SETATTR:      "SETATTR",
	FUSE_READLINK:     "READLINK",
	FUSE_SYMLINK:      "SYMLINK",
	FUSE_MKNOD:        "MKNOD",
	FUSE_MKDIR:        "MKDIR",
	FUSE_UNLINK:       "UNLINK",
	FUSE_RMDIR:        "RMDIR",
	FUSE_RENAME:       "RENAME",
	FUSE_LINK:         "LINK",
	FUSE_OPEN:         "OPEN",
	FUSE_READ:         "READ",
	FUSE_WRITE:        "WRITE",
	FUSE_STATFS:       "STATFS",
	FUSE_RELEASE:      "RELEASE",
	FUSE_FSYNC:        "FSYNC",
	FUSE_SETXATTR:     "SETXATTR",
	FUSE_GETXATTR:     "GETXATTR",
	FUSE_LISTXATTR:    "LISTXATTR",
	FUSE_REMOVEXATTR:  "REMOVEXATTR",
	FUSE_FLUSH:        "FLUSH",
	FUSE_INIT:         "INIT",
	FUSE_OPENDIR:      "OPENDIR",
	FUSE_READDIR:      "READDIR",
	FUSE_RELEASEDIR:   "RELEASEDIR",
	FUSE_FSYNCDIR:     "FSYNCDIR",
	FUSE_GETLK:        "GETLK",
	FUSE_SETLK:        "SETLK",
	FUSE_SETLKW:       "SETLKW",
	FUSE_ACCESS:       "ACCESS",
	FUSE_CREATE:       "CREATE",
	FUSE_INTERRUPT:    "INTERRUPT",
	FUSE_BMAP:         "BMAP",
	FUSE_DESTROY:      "DESTROY",
	FUSE_IOCTL:        "IOCTL",
	FUSE_POLL:         "POLL",
	FUSE_NOTIFY_REPLY: "NOTIFY_REPLY",
	FUSE_BATCH_FORGET: "BATCH_FORGET",
	FUSE_FALLOCATE:    "FALLOCATE",
	FUSE_READDIRPLUS:  "READDIRPLUS",
	FUSE_RENAME2:      "RENAME2",
	FUSE_LSEEK:        "LSEEK",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("OPCODE(%d)", uint32(o))
}

// Queue identifies which virtqueue class an opcode is submitted on.
type Queue int

const (
	QueueRequest Queue = iota
	QueueHiPrio
)

// OpDescriptor describes the fixed shape of one opcode's request: the
// size of its input struct (0 if it carries none), whether it carries
// name payload(s), and which queue class it belongs to. It is the single
// source of truth the codec consults; the opcode catalogue in the driver
// design doc is a human-readable rendering of this table.
type OpDescriptor struct {
	Opcode   Opcode
	InSize   uintptr
	Names    int // number of NUL-terminated name components in the payload
	Queue    Queue
}

var opTable = map[Opcode]OpDescriptor{
	FUSE_INIT:         {FUSE_INIT, sizeofInitIn, 0, QueueRequest},
	FUSE_LOOKUP:       {FUSE_LOOKUP, 0, 1, QueueRequest},
	FUSE_FORGET:       {FUSE_FORGET, sizeofForgetIn, 0, QueueHiPrio},
	FUSE_BATCH_FORGET: {FUSE_BATCH_FORGET, sizeofBatchForgetIn, 0, QueueHiPrio},
	FUSE_GETATTR:      {FUSE_GETATTR, sizeofGetAttrIn, 0, QueueRequest},
	FUSE_SETATTR:      {FUSE_SETATTR, sizeofSetAttrIn, 0, QueueRequest},
	FUSE_READLINK:     {FUSE_READLINK, 0, 0, QueueRequest},
	FUSE_SYMLINK:      {FUSE_SYMLINK, 0, 2, QueueRequest},
	FUSE_MKNOD:        {FUSE_MKNOD, sizeofMknodIn, 1, QueueRequest},
	FUSE_MKDIR:        {FUSE_MKDIR, sizeofMkdirIn, 1, QueueRequest},
	FUSE_CREATE:       {FUSE_CREATE, sizeofCreateIn, 1, QueueRequest},
	FUSE_UNLINK:       {FUSE_UNLINK, 0, 1, QueueRequest},
	FUSE_RMDIR:        {FUSE_RMDIR, 0, 1, QueueRequest},
	FUSE_RENAME:       {FUSE_RENAME, sizeofRenameIn, 2, QueueRequest},
	FUSE_RENAME2:      {FUSE_RENAME2, sizeofRename2In, 2, QueueRequest},
	FUSE_LINK:         {FUSE_LINK, sizeofLinkIn, 1, QueueRequest},
	FUSE_OPEN:         {FUSE_OPEN, sizeofOpenIn, 0, QueueRequest},
	FUSE_OPENDIR:      {FUSE_OPENDIR, sizeofOpenIn, 0, QueueRequest},
	FUSE_READ:         {FUSE_READ, sizeofReadIn, 0, QueueRequest},
	FUSE_READDIR:      {FUSE_READDIR, sizeofReadIn, 0, QueueRequest},
	FUSE_READDIRPLUS:  {FUSE_READDIRPLUS, sizeofReadIn, 0, QueueRequest},
	FUSE_WRITE:        {FUSE_WRITE, sizeofWriteIn, 0, QueueRequest},
	FUSE_RELEASE:      {FUSE_RELEASE, sizeofReleaseIn, 0, QueueRequest},
	FUSE_RELEASEDIR:   {FUSE_RELEASEDIR, sizeofReleaseIn, 0, QueueRequest},
	FUSE_FLUSH:        {FUSE_FLUSH, sizeofFlushIn, 0, QueueRequest},
	FUSE_FSYNC:        {FUSE_FSYNC, sizeofFsyncIn, 0, QueueRequest},
	FUSE_FSYNCDIR:     {FUSE_FSYNCDIR, sizeofFsyncIn, 0, QueueRequest},
	FUSE_STATFS:       {FUSE_STATFS, 0, 0, QueueRequest},
	FUSE_SETXATTR:     {FUSE_SETXATTR, sizeofSetXAttrIn, 1, QueueRequest},
	FUSE_GETXATTR:     {FUSE_GETXATTR, sizeofGetXAttrIn, 1, QueueRequest},
	FUSE_LISTXATTR:    {FUSE_LISTXATTR, sizeofGetXAttrIn, 0, QueueRequest},
	FUSE_REMOVEXATTR:  {FUSE_REMOVEXATTR, 0, 1, QueueRequest},
	FUSE_ACCESS:       {FUSE_ACCESS, sizeofAccessIn, 0, QueueRequest},
	FUSE_GETLK:        {FUSE_GETLK, sizeofLkIn, 0, QueueRequest},
	FUSE_SETLK:        {FUSE_SETLK, sizeofLkIn, 0, QueueRequest},
	FUSE_SETLKW:       {FUSE_SETLKW, sizeofLkIn, 0, QueueRequest},
	FUSE_BMAP:         {FUSE_BMAP, sizeofBmapIn, 0, QueueRequest},
	FUSE_IOCTL:        {FUSE_IOCTL, sizeofIoctlIn, 0, QueueRequest},
	FUSE_POLL:         {FUSE_POLL, sizeofPollIn, 0, QueueRequest},
	FUSE_FALLOCATE:    {FUSE_FALLOCATE, sizeofFallocateIn, 0, QueueRequest},
	FUSE_LSEEK:        {FUSE_LSEEK, sizeofLseekIn, 0, QueueRequest},
	FUSE_DESTROY:      {FUSE_DESTROY, 0, 0, QueueRequest},
	FUSE_INTERRUPT:    {FUSE_INTERRUPT, sizeofInterruptIn, 0, QueueHiPrio},
}

// Describe looks up the fixed shape of an opcode. ok is false for an
// opcode the driver does not know, which the codec surfaces as a
// protocol error rather than a panic.
func Describe(op Opcode) (OpDescriptor, bool) {
	d, ok := opTable[op]
	return d, ok
}
