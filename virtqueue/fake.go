package virtqueue

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// FakeDMABuffer is a software loopback DMA stream buffer backed by an
// anonymous mmap region, so Sync can call a real msync(2) the way a
// cache-coherent DMA buffer's Sync would on real hardware, even though
// nothing downstream of this process actually shares the mapping.
type FakeDMABuffer struct {
	mem []byte
}

// NewFakeDMABuffer allocates a zeroed buffer of the given size.
func NewFakeDMABuffer(size int) (*FakeDMABuffer, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("virtqueue: mmap DMA buffer: %w", err)
	}
	return &FakeDMABuffer{mem: mem}, nil
}

func (b *FakeDMABuffer) Bytes() []byte { return b.mem }
func (b *FakeDMABuffer) Len() int      { return len(b.mem) }

func (b *FakeDMABuffer) Sync(offset, length int) error {
	if offset < 0 || length < 0 || offset+length > len(b.mem) {
		return fmt.Errorf("virtqueue: sync range [%d,%d) out of bounds for %d-byte buffer", offset, offset+length, len(b.mem))
	}
	if length == 0 {
		return nil
	}
	// msync(2) requires the address it is given to be page-aligned;
	// round the requested range out to page boundaries so callers can
	// sync arbitrary byte ranges within the buffer.
	pageSize := os.Getpagesize()
	alignedStart := (offset / pageSize) * pageSize
	alignedEnd := offset + length
	if rem := alignedEnd % pageSize; rem != 0 {
		alignedEnd += pageSize - rem
	}
	if alignedEnd > len(b.mem) {
		alignedEnd = len(b.mem)
	}
	return unix.Msync(b.mem[alignedStart:alignedEnd], unix.MS_SYNC)
}

// Close releases the backing mapping.
func (b *FakeDMABuffer) Close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	return err
}

// DeviceHandler plays the role of the device on the far end of a fake
// queue: given the device-readable prefix of a submitted chain, it
// fills in (a prefix of) the device-writable suffix and returns how
// many bytes it wrote. It runs in its own goroutine per Notify batch,
// so it may block to simulate a slow or interrupted device.
type DeviceHandler func(readable, writable []byte) (written int)

type pendingChain struct {
	token    uint16
	readable []byte
	writable []byte
}

type usedEntry struct {
	token   uint16
	written uint32
}

// FakeQueue is an in-process virtqueue. Submissions queue up; Notify
// processes everything queued so far in a background goroutine, the
// way a real device would process the ring independently of the
// driver thread that kicked it. PopUsed drains completed chains;
// Readable() signals when new completions land, standing in for an
// interrupt.
type FakeQueue struct {
	mu sync.Mutex

	handler DeviceHandler

	nextToken uint16
	pending   []pendingChain
	used      []usedEntry

	readable chan struct{}

	// Closed reports that the queue is no longer usable (simulating a
	// class-4 transport error escalation).
	Closed bool
}

// NewFakeQueue creates a queue whose device side is played by handler.
// A nil handler makes the queue accept submissions but never complete
// them, useful for testing interrupt/cancellation paths; swap one in
// later with SetHandler or complete chains directly with InjectReply.
func NewFakeQueue(handler DeviceHandler) *FakeQueue {
	return &FakeQueue{handler: handler, readable: make(chan struct{}, 1)}
}

// AddDMABuf and PopUsed do not take q.mu themselves: DisableIRQ returns
// q.mu, and the driver-side contract (mirrored from a real virtqueue)
// requires both to be called with that lock already held. Notify and
// the other methods below run without the caller holding it, so they
// lock explicitly.
func (q *FakeQueue) AddDMABuf(readable, writable []byte) (uint16, error) {
	if q.Closed {
		return 0, fmt.Errorf("virtqueue: queue closed")
	}

	token := q.nextToken
	q.nextToken++
	q.pending = append(q.pending, pendingChain{token: token, readable: readable, writable: writable})
	return token, nil
}

func (q *FakeQueue) ShouldNotify() bool { return true }

// Notify hands every chain submitted since the last Notify to the
// device handler, in a background goroutine, and signals Readable()
// as each of them completes.
func (q *FakeQueue) Notify() {
	q.mu.Lock()
	if q.handler == nil || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	go func() {
		for _, p := range batch {
			written := q.handler(p.readable, p.writable)
			q.mu.Lock()
			q.used = append(q.used, usedEntry{token: p.token, written: uint32(written)})
			q.mu.Unlock()
			select {
			case q.readable <- struct{}{}:
			default:
			}
		}
	}()
}

func (q *FakeQueue) PopUsed() (uint16, uint32, bool) {
	if len(q.used) == 0 {
		return 0, 0, false
	}
	e := q.used[0]
	q.used = q.used[1:]
	return e.token, e.written, true
}

// Readable fires at least once after new completions are appended.
func (q *FakeQueue) Readable() <-chan struct{} { return q.readable }

func (q *FakeQueue) DisableIRQ() sync.Locker { return &q.mu }

// SetHandler swaps the device-side handler.
func (q *FakeQueue) SetHandler(h DeviceHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
}

// InjectReply completes a previously submitted chain out of band,
// letting tests model a device that replies asynchronously, e.g. a
// device that answers FUSE_INTERRUPT before the request it targets.
func (q *FakeQueue) InjectReply(token uint16, written uint32) {
	q.mu.Lock()
	q.used = append(q.used, usedEntry{token: token, written: written})
	q.mu.Unlock()
	select {
	case q.readable <- struct{}{}:
	default:
	}
}

// Close marks the queue unusable: every later AddDMABuf fails, which
// simulates a transport failure.
func (q *FakeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Closed = true
}

// FakeConfigRegion is a width-correct, in-memory ConfigRegion backing a
// VirtioFilesystemConfig for tests.
type FakeConfigRegion struct {
	mem []byte
}

func NewFakeConfigRegion(mem []byte) *FakeConfigRegion {
	return &FakeConfigRegion{mem: mem}
}

func (c *FakeConfigRegion) ReadU8(offset int) (uint8, error) {
	if offset < 0 || offset >= len(c.mem) {
		return 0, fmt.Errorf("virtqueue: config read u8 out of range at %d", offset)
	}
	return c.mem[offset], nil
}

func (c *FakeConfigRegion) ReadU32(offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(c.mem) {
		return 0, fmt.Errorf("virtqueue: config read u32 out of range at %d", offset)
	}
	if offset%4 != 0 {
		return 0, fmt.Errorf("virtqueue: config read u32 at unaligned offset %d", offset)
	}
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(c.mem[offset+i]) << (8 * i)
	}
	return v, nil
}
