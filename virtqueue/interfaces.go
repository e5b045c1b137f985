// Package virtqueue names the upstream collaborators a FUSE-over-virtio
// transport driver consumes but does not implement: the kernel-wide
// virtqueue abstraction used to push descriptor chains, the DMA
// allocator that yields physically contiguous stream buffers, and a
// width-correct view of the device's config memory. A real driver gets
// these from the platform's virtio/PCI/MMIO stack; this package only
// states the interfaces, plus (in fake.go) a software loopback used by
// the test suite.
package virtqueue

import "sync"

// Queue is the driver-side handle onto one virtqueue. Descriptor chains
// are always a device-readable prefix followed by a device-writable
// suffix, matching the wire layout in raw's InHeader/OutHeader split.
type Queue interface {
	// AddDMABuf enqueues one descriptor chain: readable bytes the device
	// will consume, followed by writable bytes the device will fill in.
	// The returned token identifies the chain for PopUsed.
	AddDMABuf(readable, writable []byte) (token uint16, err error)

	// ShouldNotify reports whether the device's event-index suppression
	// window requires an explicit kick after this submission.
	ShouldNotify() bool

	// Notify kicks the device (an MMIO/eventfd write in a real
	// transport).
	Notify()

	// PopUsed drains one completed chain, if any are available. written
	// is the number of bytes the device actually wrote into the
	// writable suffix.
	PopUsed() (token uint16, written uint32, ok bool)

	// DisableIRQ returns a lock that, once held, guarantees this
	// queue's interrupt handler cannot run concurrently with the
	// caller on the local CPU. Submissions and PopUsed calls must both
	// be made while holding it.
	DisableIRQ() sync.Locker

	// Readable stands in for this queue's interrupt registration: it
	// fires at least once after PopUsed has something new to drain. A
	// real transport backs this with the platform's per-queue
	// interrupt handler; it must never block or allocate on the
	// interrupt path itself.
	Readable() <-chan struct{}
}

// DMABuffer is a DMA-coherent stream buffer shared between the driver
// and the device. Bytes() gives CPU-side access; Sync must be called
// before handing a range to the device and again after reclaiming it,
// to flush or invalidate caches at the ownership boundary.
type DMABuffer interface {
	Bytes() []byte
	Len() int
	Sync(offset, length int) error
}

// ConfigRegion is a read-only, width-correct view of a device's config
// space. Implementations must reject reads that are not aligned to the
// requested width, since the memory window behind a real device
// enforces access-width constraints.
type ConfigRegion interface {
	ReadU8(offset int) (uint8, error)
	ReadU32(offset int) (uint32, error)
}
