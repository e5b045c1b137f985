package virtiofs

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Options are the operational tunables a deployment sets once at mount
// time: queue geometry and buffer sizing beyond what the device's own
// config region dictates, plus a soft request deadline. DefaultTimeout
// is loaded and carried here only: the operation surface does not apply
// it, so a request waits for as long as its caller's context allows.
type Options struct {
	NumRequestQueues    int           `yaml:"num_request_queues"`
	RequestBufSize      int           `yaml:"request_buf_size"`
	HiPrioBufSize       int           `yaml:"hiprio_buf_size"`
	MaxInflightPerQueue int64         `yaml:"max_inflight_per_queue"`
	DefaultTimeout      time.Duration `yaml:"default_timeout"`
}

// DefaultOptions are conservative values suitable for a single-tag
// mount with modest concurrency.
func DefaultOptions() Options {
	return Options{
		NumRequestQueues:    4,
		RequestBufSize:      1 << 16,
		HiPrioBufSize:       4096,
		MaxInflightPerQueue: 64,
		DefaultTimeout:      30 * time.Second,
	}
}

// LoadOptions reads a YAML tuning profile from path and applies it on
// top of DefaultOptions, so a profile only needs to name the fields it
// overrides.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("virtiofs: reading options file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("virtiofs: parsing options file %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate rejects an Options value that would violate one of the
// queue set's invariants before it ever reaches NewQueueSet.
func (o Options) Validate() error {
	if o.NumRequestQueues < 1 {
		return fmt.Errorf("virtiofs: num_request_queues must be >= 1, got %d", o.NumRequestQueues)
	}
	if o.RequestBufSize < minRequestBufSize {
		return fmt.Errorf("virtiofs: request_buf_size must be >= %d, got %d", minRequestBufSize, o.RequestBufSize)
	}
	if o.MaxInflightPerQueue < 1 {
		return fmt.Errorf("virtiofs: max_inflight_per_queue must be >= 1, got %d", o.MaxInflightPerQueue)
	}
	return nil
}

// QueueSetConfig renders these options into the config NewQueueSet
// expects, once feature negotiation has produced a FeatureSet and (if
// F_NOTIFICATION was negotiated) the device has advertised a
// notification buffer size.
func (o Options) QueueSetConfig(features FeatureSet, notifyBufSize uint32) QueueSetConfig {
	return QueueSetConfig{
		Features:            features,
		NumRequestQueues:    o.NumRequestQueues,
		NotifyBufSize:       notifyBufSize,
		HiPrioBufSize:       o.HiPrioBufSize,
		RequestBufSize:      o.RequestBufSize,
		MaxInflightPerQueue: o.MaxInflightPerQueue,
	}
}
