package cli

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/semforge/semforge/internal/shape"
	"github.com/semforge/semforge/internal/store"
)

// DefaultConfigPath is the config file looked up when --config is not
// given.
const DefaultConfigPath = "semforge.yaml"

// Config is the YAML configuration shared by all commands.
type Config struct {
	// Namespace is the base IRI for generated shapes and instances.
	Namespace string `yaml:"namespace,omitempty"`

	// Closed makes generated shapes reject undeclared record fields.
	Closed bool `yaml:"closed,omitempty"`

	// Strict escalates unsupported-constraint diagnostics to
	// registration failure.
	Strict bool `yaml:"strict,omitempty"`

	Store StoreConfig `yaml:"store,omitempty"`
}

// StoreConfig selects and configures the graph store backend. When
// QueryEndpoint is set the SPARQL client is used; otherwise the embedded
// store opens Path.
type StoreConfig struct {
	// QueryEndpoint receives SPARQL queries (SELECT/ASK).
	QueryEndpoint string `yaml:"query_endpoint,omitempty"`

	// UpdateEndpoint receives SPARQL updates. Defaults to QueryEndpoint.
	UpdateEndpoint string `yaml:"update_endpoint,omitempty"`

	// Timeout applies per network call.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Retry bounds read retries. Zero values take defaults.
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	BaseDelay   time.Duration `yaml:"base_delay,omitempty"`
	MaxDelay    time.Duration `yaml:"max_delay,omitempty"`

	// Path is the embedded store's database file.
	Path string `yaml:"path,omitempty"`
}

// LoadConfig reads a YAML config file. A missing file at the default
// path is not an error: every setting has a workable default.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && path == DefaultConfigPath {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "semforge.db"
	}
	if c.Store.UpdateEndpoint == "" {
		c.Store.UpdateEndpoint = c.Store.QueryEndpoint
	}
}

// NamespaceIRI returns the configured namespace.
func (c *Config) NamespaceIRI() shape.Namespace {
	return shape.NewNamespace(c.Namespace)
}

// OpenStore opens the configured backend. The returned closer releases
// the store's resources.
func (c *Config) OpenStore() (store.GraphStore, func() error, error) {
	if c.Store.QueryEndpoint != "" {
		client, err := store.NewClient(store.ClientConfig{
			QueryEndpoint:  c.Store.QueryEndpoint,
			UpdateEndpoint: c.Store.UpdateEndpoint,
			Timeout:        c.Store.Timeout,
			Retry: store.RetryConfig{
				MaxAttempts: c.Store.MaxAttempts,
				BaseDelay:   c.Store.BaseDelay,
				MaxDelay:    c.Store.MaxDelay,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}

	embedded, err := store.Open(c.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	return embedded, embedded.Close, nil
}
