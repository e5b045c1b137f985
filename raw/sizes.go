package raw

import "unsafe"

// Struct sizes used by the opcode table. unsafe.Sizeof requires a typed
// expression, so these are package vars rather than untyped consts; they
// never change at runtime.
var (
	sizeofInitIn         = unsafe.Sizeof(InitIn{})
	sizeofForgetIn       = unsafe.Sizeof(ForgetIn{})
	sizeofBatchForgetIn  = unsafe.Sizeof(BatchForgetIn{})
	sizeofGetAttrIn      = unsafe.Sizeof(GetAttrIn{})
	sizeofSetAttrIn      = unsafe.Sizeof(SetAttrIn{})
	sizeofMknodIn        = unsafe.Sizeof(MknodIn{})
	sizeofMkdirIn        = unsafe.Sizeof(MkdirIn{})
	sizeofCreateIn       = unsafe.Sizeof(CreateIn{})
	sizeofRenameIn       = unsafe.Sizeof(RenameIn{})
	sizeofRename2In      = unsafe.Sizeof(Rename2In{})
	sizeofLinkIn         = unsafe.Sizeof(LinkIn{})
	sizeofOpenIn         = unsafe.Sizeof(OpenIn{})
	sizeofReadIn         = unsafe.Sizeof(ReadIn{})
	sizeofWriteIn        = unsafe.Sizeof(WriteIn{})
	sizeofReleaseIn      = unsafe.Sizeof(ReleaseIn{})
	sizeofFlushIn        = unsafe.Sizeof(FlushIn{})
	sizeofFsyncIn        = unsafe.Sizeof(FsyncIn{})
	sizeofSetXAttrIn     = unsafe.Sizeof(SetXAttrIn{})
	sizeofGetXAttrIn     = unsafe.Sizeof(GetXAttrIn{})
	sizeofAccessIn       = unsafe.Sizeof(AccessIn{})
	sizeofLkIn           = unsafe.Sizeof(LkIn{})
	sizeofBmapIn         = unsafe.Sizeof(BmapIn{})
	sizeofIoctlIn        = unsafe.Sizeof(IoctlIn{})
	sizeofPollIn         = unsafe.Sizeof(PollIn{})
	sizeofFallocateIn    = unsafe.Sizeof(FallocateIn{})
	sizeofLseekIn        = unsafe.Sizeof(LseekIn{})
	sizeofInterruptIn    = unsafe.Sizeof(InterruptIn{})

	SizeofInHeader  = unsafe.Sizeof(InHeader{})
	SizeofOutHeader = unsafe.Sizeof(OutHeader{})
)
