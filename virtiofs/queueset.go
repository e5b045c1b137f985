package virtiofs

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/virtiofs/go-virtiofs/virtqueue"
)

// QueueHandle bundles one virtqueue with its DMA stream buffer and the
// interrupt-disable lock submissions and completions must be made
// under. inflight bounds the number of outstanding chains to the
// buffer's capacity divided by the minimum request size, so a caller
// fails fast with ErrQueueFull (see TryAcquire) rather than overrunning
// the buffer.
type QueueHandle struct {
	Queue virtqueue.Queue
	Buf   virtqueue.DMABuffer

	inflight *semaphore.Weighted
}

func newQueueHandle(q virtqueue.Queue, buf virtqueue.DMABuffer, maxInflight int64) *QueueHandle {
	return &QueueHandle{Queue: q, Buf: buf, inflight: semaphore.NewWeighted(maxInflight)}
}

// TryAcquire reserves one in-flight slot without blocking, returning
// ErrQueueFull if the queue is already at capacity — the ClassResource
// path of the Fresh→Encoded transition.
func (h *QueueHandle) TryAcquire() error {
	if !h.inflight.TryAcquire(1) {
		return ErrQueueFull
	}
	return nil
}

func (h *QueueHandle) release() { h.inflight.Release(1) }

// QueueFactory constructs the Nth virtqueue-plus-buffer pair. It is the
// seam onto the transport this driver treats as an external
// collaborator: a real implementation asks the platform's
// virtio/PCI/MMIO stack for queue index i; tests pass a factory that
// hands back virtqueue.FakeQueue/FakeDMABuffer pairs.
type QueueFactory func(index int, bufSize int) (virtqueue.Queue, virtqueue.DMABuffer, error)

// QueueSet owns the high-priority queue, the optional notification
// queue, and the N request queues, constructed exactly once during
// init in a fixed order: high-priority, notification (if enabled),
// then request queues.
type QueueSet struct {
	hiprio  *QueueHandle
	notify  *QueueHandle
	request []*QueueHandle

	rrCounter atomic.Uint64
}

// QueueSetConfig sizes the buffers QueueSet allocates.
type QueueSetConfig struct {
	Features         FeatureSet
	NumRequestQueues int
	NotifyBufSize    uint32

	// HiPrioBufSize sizes the high-priority queue's buffer; forget and
	// interrupt messages are small and fixed-size, so this rarely
	// needs to be large.
	HiPrioBufSize int

	// RequestBufSize sizes each request queue's buffer. Must be at
	// least 4 KiB.
	RequestBufSize int

	// MaxInflightPerQueue bounds outstanding requests per queue.
	MaxInflightPerQueue int64
}

const minRequestBufSize = 4096

// NewQueueSet builds the queue set. Request queues are constructed
// concurrently via an errgroup, since each is an independent call into
// the transport with no ordering dependency between them; construction
// still completes (or fails) as one atomic step; a partially
// constructed set is never returned.
func NewQueueSet(ctx context.Context, cfg QueueSetConfig, factory QueueFactory) (*QueueSet, error) {
	if cfg.RequestBufSize < minRequestBufSize {
		return nil, newErr(ClassResource, "queueset.new",
			fmt.Errorf("request buffer size %d below minimum %d", cfg.RequestBufSize, minRequestBufSize))
	}
	if cfg.MaxInflightPerQueue <= 0 {
		cfg.MaxInflightPerQueue = 1
	}

	hiprioQ, hiprioBuf, err := factory(-1, cfg.HiPrioBufSize)
	if err != nil {
		return nil, newErr(ClassTransport, "queueset.new_hiprio", err)
	}
	qs := &QueueSet{hiprio: newQueueHandle(hiprioQ, hiprioBuf, cfg.MaxInflightPerQueue)}

	if cfg.Features.Has(F_NOTIFICATION) {
		bufSize := int(cfg.NotifyBufSize)
		if bufSize <= 0 {
			bufSize = minRequestBufSize
		}
		nq, nbuf, err := factory(-2, bufSize)
		if err != nil {
			return nil, newErr(ClassTransport, "queueset.new_notify", err)
		}
		qs.notify = newQueueHandle(nq, nbuf, cfg.MaxInflightPerQueue)
	}

	request := make([]*QueueHandle, cfg.NumRequestQueues)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.NumRequestQueues; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			q, buf, err := factory(i, cfg.RequestBufSize)
			if err != nil {
				return newErr(ClassTransport, fmt.Sprintf("queueset.new_request[%d]", i), err)
			}
			request[i] = newQueueHandle(q, buf, cfg.MaxInflightPerQueue)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	qs.request = request
	return qs, nil
}

// HiPrio returns the queue reserved for FORGET, BATCH_FORGET and
// INTERRUPT messages.
func (qs *QueueSet) HiPrio() *QueueHandle { return qs.hiprio }

// Notify returns the notification queue, or nil if F_NOTIFICATION was
// not negotiated.
func (qs *QueueSet) Notify() *QueueHandle { return qs.notify }

// NumRequestQueues returns the number of request queues in the set.
func (qs *QueueSet) NumRequestQueues() int { return len(qs.request) }

// Request returns the ith request queue.
func (qs *QueueSet) Request(i int) (*QueueHandle, error) {
	if i < 0 || i >= len(qs.request) {
		return nil, fmt.Errorf("virtiofs: request queue index %d out of range [0,%d)", i, len(qs.request))
	}
	return qs.request[i], nil
}

// NextRequestQueue picks the next request queue by simple round-robin.
// Every opcode other than INIT (always request queue 0), FORGET,
// BATCH_FORGET, and INTERRUPT is routed to whichever request queue this
// returns.
func (qs *QueueSet) NextRequestQueue() *QueueHandle {
	n := uint64(len(qs.request))
	i := qs.rrCounter.Add(1) - 1
	return qs.request[i%n]
}
