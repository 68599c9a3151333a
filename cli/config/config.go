package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/snapfeed/policy"
)

// Config represents a snapfeed.yaml configuration file.
// All values are optional and act as defaults for snapfeed run flags.
// CLI flags always override config values.
type Config struct {
	Mode        string        `yaml:"mode" json:"mode,omitempty"`
	DeviceID    string        `yaml:"device_id" json:"device_id,omitempty"`
	Interval    Duration      `yaml:"interval" json:"interval"`
	MemoryLimit int64         `yaml:"memory_limit" json:"memory_limit,omitempty"`
	Account     AccountConfig `yaml:"account" json:"account"`
	Sizing      SizingConfig  `yaml:"sizing" json:"sizing"`
	Camera      CameraConfig  `yaml:"camera" json:"camera"`
	HTTP        HTTPConfig    `yaml:"http" json:"http"`
	Publish     PublishConfig `yaml:"publish" json:"publish"`
	Archive     ArchiveConfig `yaml:"archive" json:"archive"`
	Status      StatusConfig  `yaml:"status" json:"status"`
}

// AccountConfig holds the telemetry service credentials.
// Key should be supplied through ${VAR} expansion, not written to disk.
type AccountConfig struct {
	Username string `yaml:"username" json:"username,omitempty"`
	Key      string `yaml:"key" json:"key,omitempty"`
}

// SizingConfig holds the capture buffer policy as written in the file.
// Fields are pointers so an explicit zero (e.g. near_full_margin: 0, grow
// only on a completely full buffer) is kept instead of replaced by the
// default.
type SizingConfig struct {
	MinSize        *int `yaml:"min_size,omitempty" json:"min_size,omitempty"`
	MaxSize        *int `yaml:"max_size,omitempty" json:"max_size,omitempty"`
	InitialSize    *int `yaml:"initial_size,omitempty" json:"initial_size,omitempty"`
	GrowStep       *int `yaml:"grow_step,omitempty" json:"grow_step,omitempty"`
	ShrinkStep     *int `yaml:"shrink_step,omitempty" json:"shrink_step,omitempty"`
	NearFullMargin *int `yaml:"near_full_margin,omitempty" json:"near_full_margin,omitempty"`
}

// Policy returns the sizing policy, taking unset fields from
// policy.DefaultConfig.
func (s SizingConfig) Policy() policy.Config {
	cfg := policy.DefaultConfig()
	for _, f := range []struct {
		src *int
		dst *int
	}{
		{s.MinSize, &cfg.MinSize},
		{s.MaxSize, &cfg.MaxSize},
		{s.InitialSize, &cfg.InitialSize},
		{s.GrowStep, &cfg.GrowStep},
		{s.ShrinkStep, &cfg.ShrinkStep},
		{s.NearFullMargin, &cfg.NearFullMargin},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return cfg
}

// sizingFrom returns a SizingConfig with every field set from cfg.
func sizingFrom(cfg policy.Config) SizingConfig {
	return SizingConfig{
		MinSize:        &cfg.MinSize,
		MaxSize:        &cfg.MaxSize,
		InitialSize:    &cfg.InitialSize,
		GrowStep:       &cfg.GrowStep,
		ShrinkStep:     &cfg.ShrinkStep,
		NearFullMargin: &cfg.NearFullMargin,
	}
}

// CameraConfig selects and configures the frame source.
type CameraConfig struct {
	// Driver is "command" (default) or "dir".
	Driver  string   `yaml:"driver" json:"driver,omitempty"`
	Command []string `yaml:"command,omitempty" json:"command,omitempty"`
	Dir     string   `yaml:"dir,omitempty" json:"dir,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout"`
}

// HTTPConfig configures the request/upload transport.
type HTTPConfig struct {
	BaseURL string   `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Feed    string   `yaml:"feed,omitempty" json:"feed,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout"`
	Retries *int     `yaml:"retries,omitempty" json:"retries,omitempty"`
}

// PublishConfig configures the publish/message transport.
type PublishConfig struct {
	// Broker is "mqtt" (default) or "redis".
	Broker   string   `yaml:"broker,omitempty" json:"broker,omitempty"`
	URL      string   `yaml:"url,omitempty" json:"url,omitempty"`
	Topic    string   `yaml:"topic,omitempty" json:"topic,omitempty"`
	QoS      int      `yaml:"qos,omitempty" json:"qos,omitempty"`
	ClientID string   `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty" json:"timeout"`
	Retries  *int     `yaml:"retries,omitempty" json:"retries,omitempty"`
}

// ArchiveConfig configures the optional frame archive.
type ArchiveConfig struct {
	// Backend is "" (disabled), "fs" or "s3".
	Backend     string `yaml:"backend,omitempty" json:"backend,omitempty"`
	Path        string `yaml:"path,omitempty" json:"path,omitempty"`
	Region      string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	S3PathStyle bool   `yaml:"s3_path_style,omitempty" json:"s3_path_style,omitempty"`
}

// StatusConfig configures the optional status endpoint.
type StatusConfig struct {
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

// Broker names.
const (
	BrokerMQTT  = "mqtt"
	BrokerRedis = "redis"
)

// Archive backends.
const (
	ArchiveFS = "fs"
	ArchiveS3 = "s3"
)

// Validate checks values that can be judged without the CLI flags.
// Mode is resolved and validated by the run command.
func (c *Config) Validate() error {
	var problems []string

	if c.Interval.Duration < 0 {
		problems = append(problems, "interval must not be negative")
	}
	if c.MemoryLimit < 0 {
		problems = append(problems, "memory_limit must not be negative")
	}
	switch c.Camera.Driver {
	case "", "command", "dir":
	default:
		problems = append(problems, fmt.Sprintf("camera.driver %q must be command or dir", c.Camera.Driver))
	}
	switch c.Publish.Broker {
	case "", BrokerMQTT, BrokerRedis:
	default:
		problems = append(problems, fmt.Sprintf("publish.broker %q must be mqtt or redis", c.Publish.Broker))
	}
	if c.Publish.QoS < 0 || c.Publish.QoS > 2 {
		problems = append(problems, fmt.Sprintf("publish.qos %d must be 0, 1 or 2", c.Publish.QoS))
	}
	switch c.Archive.Backend {
	case "", ArchiveFS, ArchiveS3:
	default:
		problems = append(problems, fmt.Sprintf("archive.backend %q must be fs or s3", c.Archive.Backend))
	}
	if c.Archive.Backend != "" && c.Archive.Path == "" {
		problems = append(problems, "archive.path is required when archive.backend is set")
	}
	if err := c.Sizing.Policy().Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	if c.Account.Key != "" {
		c.Account.Key = "********"
	}
	return c
}

// Duration wraps time.Duration for YAML string parsing (e.g. "3s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "3s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string, or nothing when unset.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	if d.Duration == 0 {
		return json.Marshal("")
	}
	return json.Marshal(d.String())
}
