package virtiofs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/virtiofs/go-virtiofs/raw"
)

// requestState is the Fresh→Encoded→Submitted→WaitingReply→Completed
// state machine, with the Interrupted branch folded into WaitingReply
// (interrupting a request does not change what the dispatcher is
// waiting for, only that it has also nudged the device).
type requestState int32

const (
	stateFresh requestState = iota
	stateEncoded
	stateSubmitted
	stateWaitingReply
	stateCompleted
)

type inflight struct {
	unique uint64
	opcode raw.Opcode
	queue  *QueueHandle
	outOff int
	start  time.Time

	reply chan replyOutcome

	state atomic.Int32
}

type replyOutcome struct {
	buf []byte // queue buffer, valid only until the next Sync of this range
	off int    // offset of OutHeader within buf
	err error
}

type tokenKey struct {
	queue *QueueHandle
	token uint16
}

// Dispatcher owns request/reply correlation across a QueueSet: it
// chooses a queue, submits a descriptor chain, kicks the device if
// needed, and resumes whichever caller is parked waiting for that
// chain's reply. One Dispatcher serves one mounted tag.
type Dispatcher struct {
	qs      *QueueSet
	log     *logrus.Entry
	metrics *Metrics

	uniqueCounter atomic.Uint64

	mu       sync.Mutex
	byToken  map[tokenKey]*inflight
	byUnique map[uint64]*inflight

	initDone atomic.Bool

	resetMu  sync.Mutex
	resetErr error

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewDispatcher wires a Dispatcher to an already-constructed QueueSet
// and starts one completion-draining goroutine per queue (the
// interrupt handler's Go-side counterpart).
func NewDispatcher(qs *QueueSet, log *logrus.Entry, metrics *Metrics) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &Dispatcher{
		qs:       qs,
		log:      log.WithField("component", "dispatcher"),
		metrics:  metrics,
		byToken:  make(map[tokenKey]*inflight),
		byUnique: make(map[uint64]*inflight),
		stop:     make(chan struct{}),
	}

	d.watch(qs.HiPrio())
	if n := qs.Notify(); n != nil {
		d.watch(n)
	}
	for i := 0; i < qs.NumRequestQueues(); i++ {
		h, _ := qs.Request(i)
		d.watch(h)
	}
	return d
}

// watch starts the goroutine that drains one queue's used ring whenever
// its Readable channel fires, and hands each completion to the waiter
// it belongs to. Multiple replies surfacing on one wakeup are all
// drained before the goroutine blocks again, so no older request
// starves behind a newer one.
func (d *Dispatcher) watch(h *QueueHandle) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.stop:
				return
			case <-h.Queue.Readable():
			}
			d.drain(h)
		}
	}()
}

func (d *Dispatcher) drain(h *QueueHandle) {
	lock := h.Queue.DisableIRQ()
	for {
		lock.Lock()
		token, written, ok := h.Queue.PopUsed()
		lock.Unlock()
		if !ok {
			return
		}
		d.complete(h, token, written)
	}
}

func (d *Dispatcher) complete(h *QueueHandle, token uint16, written uint32) {
	d.mu.Lock()
	key := tokenKey{queue: h, token: token}
	req, ok := d.byToken[key]
	if ok {
		delete(d.byToken, key)
		delete(d.byUnique, req.unique)
	}
	d.mu.Unlock()

	if !ok {
		// No slot to release: chains that were never registered (such as
		// a best-effort FUSE_INTERRUPT) already gave theirs back.
		if d.metrics != nil {
			d.metrics.Dropped.WithLabelValues("unknown").Inc()
		}
		d.log.WithField("token", token).Warn("reply matched no in-flight request; dropped")
		return
	}

	h.release()
	if d.metrics != nil {
		d.metrics.InFlight.Dec()
	}

	if err := h.Buf.Sync(req.outOff, int(written)); err != nil {
		req.reply <- replyOutcome{err: newErr(ClassTransport, req.opcode.String(), err)}
		return
	}

	buf := h.Buf.Bytes()
	if int(written) < int(raw.SizeofOutHeader) {
		req.reply <- replyOutcome{err: newErr(ClassProtocol, req.opcode.String(), ErrShortReply)}
		return
	}
	outHdr := raw.Cast[raw.OutHeader](buf[req.outOff:])
	if outHdr.Unique != req.unique {
		if d.metrics != nil {
			d.metrics.Dropped.WithLabelValues(req.opcode.String()).Inc()
			d.metrics.Completed.WithLabelValues(req.opcode.String(), "dropped").Inc()
		}
		d.log.WithFields(logrus.Fields{
			"expected_unique": req.unique,
			"got_unique":      outHdr.Unique,
			"opcode":          req.opcode,
		}).Warn("reply unique mismatch; dropped")
		req.reply <- replyOutcome{err: newErr(ClassProtocol, req.opcode.String(), ErrUniqueMismatch)}
		return
	}

	if d.metrics != nil {
		outcome := "ok"
		if outHdr.Status != 0 {
			outcome = "device_error"
		}
		d.metrics.Completed.WithLabelValues(req.opcode.String(), outcome).Inc()
		d.metrics.Latency.WithLabelValues(req.opcode.String()).Observe(time.Since(req.start).Seconds())
	}
	req.reply <- replyOutcome{buf: buf, off: req.outOff}
}

// nextUnique allocates a fresh correlation id. Bit 63 is reserved for
// FUSE_UNIQUE_RESEND and is never set by fresh allocation.
func (d *Dispatcher) nextUnique() uint64 {
	return d.uniqueCounter.Add(1) &^ raw.FUSE_UNIQUE_RESEND
}

// Submit runs a request through Fresh→Encoded→Submitted→WaitingReply
// and blocks until Completed, an interrupt-driven reply, or ctx's
// deadline. On deadline expiry it issues FUSE_INTERRUPT and continues
// waiting rather than abandoning the slot: the DMA buffer stays claimed
// until the device finally answers, to avoid a use-after-free on the
// shared buffer.
func (d *Dispatcher) Submit(ctx context.Context, h *QueueHandle, req EncodedRequest, outCap int) (DecodedReply, error) {
	if req.Opcode != raw.FUSE_INIT && !d.initDone.Load() {
		return DecodedReply{}, newErr(ClassResource, req.Opcode.String(), ErrNotInitialized)
	}
	if err := d.checkReset(); err != nil {
		return DecodedReply{}, err
	}

	if err := h.TryAcquire(); err != nil {
		return DecodedReply{}, newErr(ClassResource, req.Opcode.String(), err)
	}

	total := req.InLen + outCap
	if total > h.Buf.Len() {
		h.release()
		return DecodedReply{}, newErr(ClassResource, req.Opcode.String(), ErrShortBuffer)
	}

	buf := h.Buf.Bytes()
	copy(buf, req.Bytes)
	if err := h.Buf.Sync(0, req.InLen); err != nil {
		h.release()
		return DecodedReply{}, newErr(ClassTransport, req.Opcode.String(), err)
	}

	ifl := &inflight{
		unique: req.Unique,
		opcode: req.Opcode,
		queue:  h,
		outOff: req.InLen,
		start:  time.Now(),
		reply:  make(chan replyOutcome, 1),
	}
	ifl.state.Store(int32(stateEncoded))

	lock := h.Queue.DisableIRQ()
	lock.Lock()
	token, err := h.Queue.AddDMABuf(buf[:req.InLen], buf[req.InLen:req.InLen+outCap])
	if err != nil {
		lock.Unlock()
		h.release()
		return DecodedReply{}, newErr(ClassTransport, req.Opcode.String(), err)
	}
	ifl.state.Store(int32(stateSubmitted))

	d.mu.Lock()
	d.byToken[tokenKey{queue: h, token: token}] = ifl
	d.byUnique[req.Unique] = ifl
	d.mu.Unlock()

	shouldNotify := h.Queue.ShouldNotify()
	lock.Unlock()

	if shouldNotify {
		h.Queue.Notify()
	}
	if d.metrics != nil {
		d.metrics.Submitted.WithLabelValues(req.Opcode.String()).Inc()
		d.metrics.InFlight.Inc()
	}
	ifl.state.Store(int32(stateWaitingReply))

	for {
		select {
		case out := <-ifl.reply:
			ifl.state.Store(int32(stateCompleted))
			if out.err != nil {
				return DecodedReply{}, out.err
			}
			return Decode(out.buf, out.off)
		case <-ctx.Done():
			d.interrupt(req.Unique)
			// The slot is not abandoned: keep waiting for the device's
			// eventual answer (original result or EINTR) rather than
			// returning early and freeing a buffer range the device
			// may still write into.
			select {
			case out := <-ifl.reply:
				ifl.state.Store(int32(stateCompleted))
				if out.err != nil {
					return DecodedReply{}, out.err
				}
				return Decode(out.buf, out.off)
			case <-d.stop:
				return DecodedReply{}, newErr(ClassTransport, req.Opcode.String(), ErrDeviceReset)
			}
		case <-d.stop:
			return DecodedReply{}, newErr(ClassTransport, req.Opcode.String(), ErrDeviceReset)
		}
	}
}

// interrupt enqueues a best-effort FUSE_INTERRUPT for unique on the
// high-priority queue. It never blocks on a reply: the original
// waiter's own Submit call owns that.
func (d *Dispatcher) interrupt(unique uint64) {
	h := d.qs.HiPrio()
	in := raw.InterruptIn{Unique: unique}
	req, err := Encode(raw.FUSE_INTERRUPT, d.nextUnique(), InHeaderFields{}, raw.Bytes(&in), nil)
	if err != nil {
		d.log.WithError(err).Error("failed to encode FUSE_INTERRUPT")
		return
	}
	if err := h.TryAcquire(); err != nil {
		d.log.WithError(err).Warn("hiprio queue full, dropping best-effort interrupt")
		return
	}
	defer h.release()

	buf := h.Buf.Bytes()
	if req.InLen > len(buf) {
		d.log.Error("hiprio buffer too small for FUSE_INTERRUPT")
		return
	}
	copy(buf, req.Bytes)
	if err := h.Buf.Sync(0, req.InLen); err != nil {
		d.log.WithError(err).Error("sync failed submitting FUSE_INTERRUPT")
		return
	}
	lock := h.Queue.DisableIRQ()
	lock.Lock()
	_, err = h.Queue.AddDMABuf(buf[:req.InLen], nil)
	notify := h.Queue.ShouldNotify()
	lock.Unlock()
	if err != nil {
		d.log.WithError(err).Error("failed to submit FUSE_INTERRUPT")
		return
	}
	if notify {
		h.Queue.Notify()
	}
}

// MarkInitDone records that the INIT handshake on request queue 0 has
// completed; every other opcode, on any queue, is rejected until this is
// called.
func (d *Dispatcher) MarkInitDone() { d.initDone.Store(true) }

func (d *Dispatcher) checkReset() error {
	d.resetMu.Lock()
	defer d.resetMu.Unlock()
	if d.resetErr != nil {
		return d.resetErr
	}
	return nil
}

// Reset fails every in-flight waiter with ErrDeviceReset and marks the
// dispatcher permanently unusable. This is the fail-fast response to a
// DEVICE_NEEDS_RESET indication; once reset, the dispatcher is never
// resurrected. The dispatcher does not call Reset itself: a class-4
// transport error fails only the request that hit it, and the queue
// stays in use until the owner calls Reset.
func (d *Dispatcher) Reset(cause error) {
	d.resetMu.Lock()
	if d.resetErr != nil {
		d.resetMu.Unlock()
		return
	}
	d.resetErr = newErr(ClassTransport, "reset", cause)
	d.resetMu.Unlock()

	d.log.WithError(cause).Error("device reset: failing all in-flight requests")

	d.mu.Lock()
	waiters := make([]*inflight, 0, len(d.byUnique))
	for _, r := range d.byUnique {
		waiters = append(waiters, r)
	}
	d.byToken = make(map[tokenKey]*inflight)
	d.byUnique = make(map[uint64]*inflight)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.InFlight.Sub(float64(len(waiters)))
	}
	for _, r := range waiters {
		select {
		case r.reply <- replyOutcome{err: newErr(ClassTransport, r.opcode.String(), ErrDeviceReset)}:
		default:
		}
	}
	close(d.stop)
}

// Close stops the completion-draining goroutines. It does not reset
// the device; call Reset first if in-flight waiters need to be failed.
func (d *Dispatcher) Close() {
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	d.wg.Wait()
}
