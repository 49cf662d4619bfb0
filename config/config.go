// Package config loads dapictl settings from a TOML file and DAPI_* environment variables.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds the complete dapictl configuration
type Config struct {
	Client   ClientConfig   `toml:"client"`
	Registry RegistryConfig `toml:"registry"`
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
}

// ClientConfig holds Platform client settings
type ClientConfig struct {
	Address    string            `toml:"address"`
	TLS        bool              `toml:"tls"`
	ServerName string            `toml:"server_name"`
	CAFile     string            `toml:"ca_file"`
	Timeout    Duration          `toml:"timeout"`
	RateLimit  float64           `toml:"rate_limit"` // calls per second, 0 disables
	RateBurst  int               `toml:"rate_burst"`
	Metadata   map[string]string `toml:"metadata"`
}

// RegistryConfig selects how nodes are discovered when no address is given.
// Endpoints point at etcd; Nodes is a static seed list used without etcd.
type RegistryConfig struct {
	Endpoints []string `toml:"endpoints"`
	Nodes     []string `toml:"nodes"`
	Service   string   `toml:"service"`
	Balancer  string   `toml:"balancer"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds settings of the fixture server
type ServerConfig struct {
	Listen      string `toml:"listen"`
	Advertise   string `toml:"advertise"`
	Fixtures    string `toml:"fixtures"`
	Version     string `toml:"version"`
	MetricsAddr string `toml:"metrics_addr"` // Prometheus /metrics listener, empty disables
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the TOML file at path. An empty path yields the defaults.
// DAPI_* environment variables override both.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		path = os.ExpandEnv(path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config keys: %v", undecoded)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.expandEnvVars()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Client.Timeout.Duration == 0 {
		c.Client.Timeout.Duration = 10 * time.Second
	}
	if c.Client.RateLimit > 0 && c.Client.RateBurst == 0 {
		c.Client.RateBurst = 1
	}

	if c.Registry.Service == "" {
		c.Registry.Service = "platform"
	}
	if c.Registry.Balancer == "" {
		c.Registry.Balancer = "round_robin"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	if c.Server.Listen == "" {
		c.Server.Listen = ":3010"
	}
}

// applyEnv overrides file values with DAPI_ADDRESS, DAPI_TLS, DAPI_LOG_LEVEL and
// DAPI_ETCD_ENDPOINTS (comma separated).
func (c *Config) applyEnv() error {
	if v := os.Getenv("DAPI_ADDRESS"); v != "" {
		c.Client.Address = v
	}
	if v := os.Getenv("DAPI_TLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DAPI_TLS: %w", err)
		}
		c.Client.TLS = b
	}
	if v := os.Getenv("DAPI_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DAPI_ETCD_ENDPOINTS"); v != "" {
		c.Registry.Endpoints = strings.Split(v, ",")
	}
	return nil
}

// expandEnvVars expands ${VAR} in values that commonly hold secrets or paths
func (c *Config) expandEnvVars() {
	for k, v := range c.Client.Metadata {
		c.Client.Metadata[k] = os.ExpandEnv(v)
	}
	c.Client.CAFile = os.ExpandEnv(c.Client.CAFile)
	c.Server.Fixtures = os.ExpandEnv(c.Server.Fixtures)
}

// TransportCredentials returns plaintext credentials unless TLS is enabled.
func (c ClientConfig) TransportCredentials() (credentials.TransportCredentials, error) {
	if !c.TLS {
		return insecure.NewCredentials(), nil
	}
	if c.CAFile != "" {
		creds, err := credentials.NewClientTLSFromFile(c.CAFile, c.ServerName)
		if err != nil {
			return nil, fmt.Errorf("failed to load CA file: %w", err)
		}
		return creds, nil
	}
	return credentials.NewTLS(&tls.Config{ServerName: c.ServerName, MinVersion: tls.VersionTLS12}), nil
}
