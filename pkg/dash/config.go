package dash

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the board profile file: per-board options that do not
// belong on the command line.
type Profile struct {
	// FastAddrs are tried before any name resolution, in order.
	FastAddrs []string `yaml:"fast_addrs"`
	// PoolName is resolved when the fast addresses are exhausted.
	PoolName string `yaml:"pool_name"`
	// DNSServer answers the pool lookup, "host:port".
	DNSServer string `yaml:"dns_server"`
	// DateHosts are the text-fallback hosts, in order.
	DateHosts []string `yaml:"date_hosts"`
	// TZOffsetMinutes shifts the displayed clock from UTC.
	TZOffsetMinutes int `yaml:"tz_offset_minutes"`
	// BacklightTimeoutSec dims the panel after inactivity.
	BacklightTimeoutSec int `yaml:"backlight_timeout_sec"`
}

// TZOffset returns the display offset as a duration.
func (p *Profile) TZOffset() time.Duration {
	return time.Duration(p.TZOffsetMinutes) * time.Minute
}

// BacklightTimeout returns the dim timeout, 0 for the default.
func (p *Profile) BacklightTimeout() time.Duration {
	return time.Duration(p.BacklightTimeoutSec) * time.Second
}

// LoadProfile reads a YAML board profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := DefaultProfile()
	if err = yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// DefaultProfile returns the built-in profile.
func DefaultProfile() *Profile {
	return &Profile{
		FastAddrs: []string{"162.159.200.1:123", "162.159.200.123:123"},
		PoolName:  "pool.ntp.org",
		DNSServer: "1.1.1.1:53",
		DateHosts: []string{"google.com", "cloudflare.com", "example.com"},
	}
}

// Config defines the configurations for the dashboard controller.
type Config struct {
	ProfilePath string
	Console     bool
}

var defaultConfig = Config{
	Console: true,
}

func init() {
	if val := os.Getenv("DASH_PROFILE"); val != "" {
		defaultConfig.ProfilePath = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ProfilePath, "profile", defaultConfig.ProfilePath, "Board profile YAML file.")
	flag.BoolVar(&defaultConfig.Console, "console", defaultConfig.Console, "Render the dashboard to stdout.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Profile loads the configured profile, or the built-in one when no
// path is set.
func (c *Config) Profile() (*Profile, error) {
	if c.ProfilePath == "" {
		return DefaultProfile(), nil
	}
	return LoadProfile(c.ProfilePath)
}
