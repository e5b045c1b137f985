package virtiofs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virtiofs/go-virtiofs/virtqueue"
)

func TestConfigManagerReadConfig(t *testing.T) {
	mem := make([]byte, 44)
	copy(mem, "myfs")
	mem[36], mem[37], mem[38], mem[39] = 4, 0, 0, 0    // num_request_queues = 4
	mem[40], mem[41], mem[42], mem[43] = 0, 16, 0, 0 // notify_buf_size = 4096

	region := virtqueue.NewFakeConfigRegion(mem)
	mgr := NewConfigManager(region, nil)

	cfg, err := mgr.ReadConfig()
	require.NoError(t, err)
	require.Equal(t, "myfs", cfg.TagString())
	require.Equal(t, uint32(4), cfg.NumRequestQueues)
	require.Equal(t, uint32(4096), cfg.NotifyBufSize)
}

func TestConfigManagerNegotiateIsSubsetAndIdempotent(t *testing.T) {
	region := virtqueue.NewFakeConfigRegion(make([]byte, 44))
	mgr := NewConfigManager(region, nil)

	full := uint64(0xffffffffffffffff)
	got := mgr.Negotiate(full)
	require.Equal(t, SupportedFeatures, got)
	require.True(t, got.Has(F_NOTIFICATION))

	// Idempotent: negotiating the already-negotiated set again gives the
	// same result.
	again := mgr.Negotiate(uint64(got))
	require.Equal(t, got, again)
}

func TestConfigManagerNegotiateNoOverlap(t *testing.T) {
	region := virtqueue.NewFakeConfigRegion(make([]byte, 44))
	mgr := NewConfigManager(region, nil)

	got := mgr.Negotiate(uint64(0x8000000000000000))
	require.Equal(t, FeatureSet(0), got)
	require.False(t, got.Has(F_NOTIFICATION))
}

func TestConfigManagerReadConfigOutOfRangeRegion(t *testing.T) {
	region := virtqueue.NewFakeConfigRegion(make([]byte, 4))
	mgr := NewConfigManager(region, nil)

	_, err := mgr.ReadConfig()
	require.Error(t, err)
}
