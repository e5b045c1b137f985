package raw

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestPadNameAlignment(t *testing.T) {
	cases := []string{"", "a", "testf01", "test", "exactly8"}
	for _, name := range cases {
		got := PadName(name)
		if len(got)%8 != 0 {
			t.Errorf("PadName(%q): length %d is not 8-byte aligned", name, len(got))
		}
		if got[len(name)] != 0 {
			t.Errorf("PadName(%q): byte after name is %d, want NUL terminator", name, got[len(name)])
		}
	}
}

func TestPadNameSevenByteName(t *testing.T) {
	// "testf01" is 7 bytes; +1 NUL = 8, already aligned, no padding added.
	got := PadName("testf01")
	if diff := pretty.Compare(got, []byte("testf01\x00")); diff != "" {
		t.Errorf("PadName(\"testf01\") mismatch (-got +want):\n%s", diff)
	}
}

func TestPadNameFourByteName(t *testing.T) {
	// "test" is 4 bytes; +1 NUL = 5, padded to 8 with 3 zero bytes.
	got := PadName("test")
	want := []byte{'t', 'e', 's', 't', 0, 0, 0, 0}
	if diff := pretty.Compare(got, want); diff != "" {
		t.Errorf("PadName(\"test\") mismatch (-got +want):\n%s", diff)
	}
}

func TestPadNamesConcatenatesThenPadsOnce(t *testing.T) {
	// "a\0bb\0" is 5 bytes, padded once to 8 — not PadName("a") (8
	// bytes) followed by PadName("bb") (8 bytes), which would be 16.
	got := PadNames("a", "bb")
	want := []byte{'a', 0, 'b', 'b', 0, 0, 0, 0}
	if diff := pretty.Compare(got, want); diff != "" {
		t.Errorf("PadNames mismatch (-got +want):\n%s", diff)
	}
	if concatenated := append(append([]byte{}, PadName("a")...), PadName("bb")...); string(got) == string(concatenated) {
		t.Errorf("PadNames(\"a\", \"bb\") must not equal PadName(\"a\")+PadName(\"bb\")")
	}
}

func TestPadNamesSingleNameMatchesPadName(t *testing.T) {
	for _, name := range []string{"", "a", "testf01", "exactly8"} {
		if diff := pretty.Compare(PadNames(name), PadName(name)); diff != "" {
			t.Errorf("PadNames(%q) mismatch vs PadName(%q) (-got +want):\n%s", name, name, diff)
		}
	}
}

func TestTrimToSingleNUL(t *testing.T) {
	cases := []struct {
		in   []byte
		want []byte
	}{
		{[]byte("test\x00\x00\x00\x00"), []byte("test\x00")},
		{[]byte("test\x00"), []byte("test\x00")},
		{[]byte("test"), []byte("test")},
		{[]byte{}, []byte{}},
	}
	for _, c := range cases {
		got := TrimToSingleNUL(c.in)
		if diff := pretty.Compare(got, c.want); diff != "" {
			t.Errorf("TrimToSingleNUL(%q) mismatch (-got +want):\n%s", c.in, diff)
		}
	}
}

func TestCStringRoundTrip(t *testing.T) {
	for _, name := range []string{"testf01", "test", "", "a-longer-name-here"} {
		padded := PadName(name)
		if got := CString(padded); got != name {
			t.Errorf("CString(PadName(%q)) = %q, want %q", name, got, name)
		}
	}
}

func TestDirentsSplitsTrailingEntries(t *testing.T) {
	var tail []byte
	for i, name := range []string{"a", "bb", "ccc"} {
		var d Dirent
		d.Ino = uint64(i + 1)
		d.Off = uint64(i + 1)
		d.NameLen = uint32(len(name))
		d.Typ = 1
		tail = append(tail, Bytes(&d)...)
		tail = append(tail, name...)
		tail = append(tail, make([]byte, padLen(len(name)))...)
	}

	entries := Dirents(tail)
	if len(entries) != 3 {
		t.Fatalf("Dirents: got %d entries, want 3", len(entries))
	}
	wantNames := []string{"a", "bb", "ccc"}
	for i, e := range entries {
		if e.Name != wantNames[i] {
			t.Errorf("entry %d: name = %q, want %q", i, e.Name, wantNames[i])
		}
		if e.Ino != uint64(i+1) {
			t.Errorf("entry %d: ino = %d, want %d", i, e.Ino, i+1)
		}
	}
}
