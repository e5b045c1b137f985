package virtiofs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/virtiofs/go-virtiofs/raw"
)

// TestIntegrationSixScenarios drives AnyFuseDevice end to end: the INIT
// handshake, LOOKUP with an already-aligned name, LOOKUP with a name
// that needs padding, a WRITE followed by a READ of the same bytes, 16
// concurrent GETATTRs spread across queues, and an INTERRUPT racing a
// blocking READ.
func TestIntegrationSixScenarios(t *testing.T) {
	t.Run("init handshake", func(t *testing.T) {
		fs := &fakeFS{}
		dev := newTestDevice(t, fs.handle)
		out, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
		require.NoError(t, err)
		require.Equal(t, uint32(7), out.Major)
	})

	t.Run("lookup aligned name", func(t *testing.T) {
		fs := &fakeFS{}
		dev := newTestDevice(t, fs.handle)
		_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
		require.NoError(t, err)
		out, err := dev.Lookup(context.Background(), Credential{}, 1, "testf01")
		require.NoError(t, err)
		require.Equal(t, uint64(2), out.NodeId)
	})

	t.Run("lookup padded name", func(t *testing.T) {
		fs := &fakeFS{}
		dev := newTestDevice(t, fs.handle)
		_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
		require.NoError(t, err)
		out, err := dev.Lookup(context.Background(), Credential{}, 1, "test")
		require.NoError(t, err)
		require.Equal(t, uint64(2), out.NodeId)
	})

	t.Run("write then read", func(t *testing.T) {
		fs := &fakeFS{}
		dev := newTestDevice(t, fs.handle)
		_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
		require.NoError(t, err)

		payload := []byte("round trip through the fake device")
		_, err = dev.Write(context.Background(), Credential{}, 2, raw.WriteIn{Size: uint32(len(payload))}, payload)
		require.NoError(t, err)
		got, err := dev.Read(context.Background(), Credential{}, 2, raw.ReadIn{Size: uint32(len(payload))})
		require.NoError(t, err)
		require.Equal(t, payload, got)
	})

	t.Run("16-way concurrent getattr", func(t *testing.T) {
		fs := &fakeFS{}
		dev := newTestDevice(t, fs.handle)
		_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := dev.GetAttr(context.Background(), Credential{}, raw.GetAttrIn{})
				errs[i] = err
			}(i)
		}
		wg.Wait()
		for i, err := range errs {
			require.NoError(t, err, "caller %d", i)
		}
	})

	t.Run("interrupt races blocking read", func(t *testing.T) {
		release := make(chan struct{})
		interrupted := make(chan struct{}, 1)
		handler := func(readable, writable []byte) int {
			in := raw.Cast[raw.InHeader](readable)
			if raw.Opcode(in.Opcode) == raw.FUSE_INTERRUPT {
				select {
				case interrupted <- struct{}{}:
				default:
				}
				oh := raw.OutHeader{Unique: in.Unique, Length: uint32(raw.SizeofOutHeader)}
				return copy(writable, raw.Bytes(&oh))
			}
			if raw.Opcode(in.Opcode) == raw.FUSE_INIT {
				out := raw.InitOut{Major: 7, Minor: 31}
				oh := raw.OutHeader{Unique: in.Unique, Length: uint32(int(raw.SizeofOutHeader) + int(sizeofT[raw.InitOut]()))}
				n := copy(writable, raw.Bytes(&oh))
				n += copy(writable[n:], raw.Bytes(&out))
				return n
			}
			<-release
			oh := raw.OutHeader{Unique: in.Unique, Status: -4, Length: uint32(raw.SizeofOutHeader)}
			return copy(writable, raw.Bytes(&oh))
		}

		dev := newTestDevice(t, handler)
		_, err := dev.Init(context.Background(), Credential{}, raw.InitIn{Major: 7, Minor: 31})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			_, err := dev.Read(ctx, Credential{}, 2, raw.ReadIn{Size: 16})
			done <- err
		}()

		select {
		case <-interrupted:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for the deadline to trigger FUSE_INTERRUPT")
		}
		close(release)

		select {
		case err := <-done:
			require.Error(t, err)
		case <-time.After(time.Second):
			t.Fatal("Read did not return after the device finally replied")
		}
	})
}
