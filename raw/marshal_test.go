package raw

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestBytesCastRoundTrip(t *testing.T) {
	in := InitIn{Major: 7, Minor: 31, MaxReadAhead: 1 << 20, Flags: 0x3}
	b := Bytes(&in)
	if len(b) != int(sizeofInitIn) {
		t.Fatalf("Bytes(InitIn): got %d bytes, want %d", len(b), sizeofInitIn)
	}

	out := *Cast[InitIn](b)
	if diff := pretty.Compare(in, out); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCastPanicsOnShortBuffer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Cast: expected panic on short buffer, got none")
		}
	}()
	_ = Cast[InitIn](make([]byte, 1))
}

func TestBytesReflectsMutation(t *testing.T) {
	var h InHeader
	b := Bytes(&h)
	h.Unique = 0xdeadbeef
	got := Cast[InHeader](b)
	if got.Unique != 0xdeadbeef {
		t.Errorf("Bytes: view did not reflect mutation, got Unique=%#x", got.Unique)
	}
}
