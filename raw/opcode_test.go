package raw

import "testing"

func TestDescribeKnownOpcode(t *testing.T) {
	d, ok := Describe(FUSE_LOOKUP)
	if !ok {
		t.Fatal("Describe(FUSE_LOOKUP): ok = false")
	}
	if d.Names != 1 {
		t.Errorf("FUSE_LOOKUP: Names = %d, want 1", d.Names)
	}
	if d.Queue != QueueRequest {
		t.Errorf("FUSE_LOOKUP: Queue = %v, want QueueRequest", d.Queue)
	}
}

func TestDescribeUnknownOpcode(t *testing.T) {
	if _, ok := Describe(Opcode(9999)); ok {
		t.Fatal("Describe(9999): ok = true, want false")
	}
}

func TestForgetAndInterruptRouteToHiPrio(t *testing.T) {
	for _, op := range []Opcode{FUSE_FORGET, FUSE_BATCH_FORGET, FUSE_INTERRUPT} {
		d, ok := Describe(op)
		if !ok {
			t.Fatalf("Describe(%v): ok = false", op)
		}
		if d.Queue != QueueHiPrio {
			t.Errorf("%v: Queue = %v, want QueueHiPrio", op, d.Queue)
		}
	}
}

func TestOpcodeStringUnknown(t *testing.T) {
	s := Opcode(12345).String()
	if s != "OPCODE(12345)" {
		t.Errorf("Opcode(12345).String() = %q, want %q", s, "OPCODE(12345)")
	}
}
