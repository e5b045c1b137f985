// Package virtiofs implements the guest side of a FUSE-over-virtio
// transport: config and feature negotiation, a queue set spanning a
// high-priority queue, an optional notification queue and N request
// queues, a wire codec for the FUSE protocol, and a dispatcher that
// correlates submitted requests with device replies by unique id.
// AnyFuseDevice composes these into one method per FUSE opcode.
//
// The package never talks to a real virtqueue or DMA allocator
// directly; those are named as interfaces in the virtqueue package and
// supplied by whatever transport constructs a Device.
package virtiofs
