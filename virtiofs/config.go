package virtiofs

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/virtiofs/go-virtiofs/virtqueue"
)

// Config-space byte offsets of VirtioFilesystemConfig's fields, matching
// the virtio-fs device config layout: tag[36], num_request_queues u32,
// notify_buf_size u32.
const (
	configOffsetTag              = 0
	configOffsetTagLen           = 36
	configOffsetNumRequestQueues = 36
	configOffsetNotifyBufSize    = 40
)

// FeatureBit is a single negotiable virtio-fs feature.
type FeatureBit uint64

// F_NOTIFICATION is the only currently defined virtio-fs feature bit:
// the device supports asynchronous FUSE notify messages on a dedicated
// notification queue.
const F_NOTIFICATION FeatureBit = 1 << 0

// FeatureSet is the result of negotiation: always a subset of both the
// device-advertised bits and SupportedFeatures.
type FeatureSet uint64

// SupportedFeatures are the feature bits this driver knows how to use.
const SupportedFeatures = FeatureSet(F_NOTIFICATION)

func (f FeatureSet) Has(bit FeatureBit) bool { return uint64(f)&uint64(bit) != 0 }

func (f FeatureSet) String() string {
	if f.Has(F_NOTIFICATION) {
		return "NOTIFICATION"
	}
	return "(none)"
}

// DeviceConfig is a read-only mirror of the device's config memory. Tag
// is UTF-8 and zero-padded; it is not necessarily NUL-terminated when
// the name fills all 36 bytes, so it is never treated as a C string.
type DeviceConfig struct {
	Tag              [36]byte
	NumRequestQueues uint32
	NotifyBufSize    uint32
}

// TagString returns Tag with any trailing zero padding stripped. It is
// UTF-8 but may be truncated mid-rune if the device filled all 36 bytes
// with a longer name than that allows; callers that need the exact byte
// form should read Tag directly.
func (c DeviceConfig) TagString() string {
	end := len(c.Tag)
	for end > 0 && c.Tag[end-1] == 0 {
		end--
	}
	return string(c.Tag[:end])
}

// ConfigManager performs field-wise reads of a device's config region.
// It never does a bulk memcpy: the memory window behind a real device
// enforces access-width constraints, so every field is read with the
// width the field's type requires.
type ConfigManager struct {
	region virtqueue.ConfigRegion
	log    *logrus.Entry
}

func NewConfigManager(region virtqueue.ConfigRegion, log *logrus.Entry) *ConfigManager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ConfigManager{region: region, log: log.WithField("component", "config")}
}

// ReadConfig performs the field-wise read described above. It neither
// interprets Tag as a Rust/Go string nor assumes it is NUL-terminated.
func (m *ConfigManager) ReadConfig() (DeviceConfig, error) {
	var cfg DeviceConfig
	for i := 0; i < configOffsetTagLen; i++ {
		b, err := m.region.ReadU8(configOffsetTag + i)
		if err != nil {
			return DeviceConfig{}, newErr(ClassTransport, "config.read_tag", err)
		}
		cfg.Tag[i] = b
	}

	nrq, err := m.region.ReadU32(configOffsetNumRequestQueues)
	if err != nil {
		return DeviceConfig{}, newErr(ClassTransport, "config.read_num_request_queues", err)
	}
	cfg.NumRequestQueues = nrq

	nbs, err := m.region.ReadU32(configOffsetNotifyBufSize)
	if err != nil {
		return DeviceConfig{}, newErr(ClassTransport, "config.read_notify_buf_size", err)
	}
	cfg.NotifyBufSize = nbs

	m.log.WithFields(logrus.Fields{
		"tag":                cfg.TagString(),
		"num_request_queues": cfg.NumRequestQueues,
		"notify_buf_size":    cfg.NotifyBufSize,
	}).Debug("read device config")

	return cfg, nil
}

// Negotiate intersects the device-advertised feature bits with the
// bits this driver supports and returns the result. Negotiation is
// idempotent: negotiating an already-negotiated set returns the same
// set, and the result is always a subset of both inputs.
func (m *ConfigManager) Negotiate(deviceBits uint64) FeatureSet {
	negotiated := FeatureSet(deviceBits) & SupportedFeatures
	m.log.WithFields(logrus.Fields{
		"device_bits":     fmt.Sprintf("0x%x", deviceBits),
		"negotiated_bits": fmt.Sprintf("0x%x", uint64(negotiated)),
	}).Info("negotiated virtio-fs features")
	return negotiated
}

// OnConfigChange re-reads the config region in response to a
// config-change interrupt. needsReset mirrors the device's
// DEVICE_NEEDS_RESET indication, surfaced out-of-band by the transport;
// when set, the caller (the dispatcher's owner) is expected to call
// Dispatcher.Reset rather than keep using the queue set.
func (m *ConfigManager) OnConfigChange(needsReset bool) (DeviceConfig, error) {
	cfg, err := m.ReadConfig()
	if err != nil {
		return DeviceConfig{}, err
	}
	if needsReset {
		m.log.Warn("device signaled DEVICE_NEEDS_RESET on config change")
	}
	return cfg, nil
}
