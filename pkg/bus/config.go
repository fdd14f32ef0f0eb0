// Package bus holds the runtime configuration shared by clients and servers
// and opens the configured transport.
//
// A single Config produces both rpc.ClientConfig and rpc.ServerConfig, so the
// subject prefix and codec of the two sides cannot drift apart.
package bus

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kbirk/protonats/pkg/rpc"
)

type Transport string

const (
	TransportNATS      Transport = "nats"
	TransportRabbitMQ  Transport = "rabbitmq"
	TransportWebsocket Transport = "websocket"
	TransportMemory    Transport = "memory"
)

// EnvPrefix is prepended to the environment variables read by ApplyEnv.
const EnvPrefix = "PROTONATS_"

type Config struct {
	Transport      Transport     `yaml:"transport"`
	URL            string        `yaml:"url"`
	Prefix         string        `yaml:"prefix"`
	Codec          string        `yaml:"codec"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	FailFast       bool          `yaml:"fail_fast"`
	// Name identifies the connection to the broker where supported.
	Name string `yaml:"name"`
	// Exchange is the AMQP exchange used by the rabbitmq transport.
	Exchange string `yaml:"exchange"`
}

func DefaultConfig() Config {
	return Config{
		Transport:      TransportNATS,
		URL:            "nats://localhost:4222",
		Prefix:         rpc.DefaultPrefix,
		Codec:          rpc.ProtoCodec{}.Name(),
		RequestTimeout: rpc.DefaultRequestTimeout,
	}
}

// LoadFile reads a YAML file over the defaults.
func LoadFile(path string) (Config, error) {
	conf := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("%s: %w", path, err)
	}
	return conf, nil
}

// Load reads path when it is not empty, applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	conf := DefaultConfig()
	if path != "" {
		var err error
		conf, err = LoadFile(path)
		if err != nil {
			return conf, err
		}
	}
	if err := conf.ApplyEnv(os.LookupEnv); err != nil {
		return conf, err
	}
	return conf, conf.Validate()
}

// ApplyEnv overrides fields from PROTONATS_* variables resolved by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	var transport string
	str("TRANSPORT", &transport)
	if transport != "" {
		c.Transport = Transport(strings.ToLower(transport))
	}
	str("URL", &c.URL)
	str("PREFIX", &c.Prefix)
	str("CODEC", &c.Codec)
	str("NAME", &c.Name)
	str("EXCHANGE", &c.Exchange)

	if v, ok := lookup(EnvPrefix + "REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", EnvPrefix, err)
		}
		c.RequestTimeout = d
	}
	if v, ok := lookup(EnvPrefix + "FAIL_FAST"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sFAIL_FAST: %w", EnvPrefix, err)
		}
		c.FailFast = b
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportNATS, TransportRabbitMQ, TransportWebsocket:
		if c.URL == "" {
			errs = append(errs, fmt.Errorf("url is required for transport %s", c.Transport))
		}
	case TransportMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	if _, ok := rpc.CodecByName(c.Codec); !ok {
		errs = append(errs, fmt.Errorf("unknown codec %q", c.Codec))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) codec() rpc.Codec {
	codec, ok := rpc.CodecByName(c.Codec)
	if !ok {
		return rpc.ProtoCodec{}
	}
	return codec
}

// ClientConfig returns the client side of the configuration.
func (c Config) ClientConfig(b rpc.Bus, logger *slog.Logger) rpc.ClientConfig {
	return rpc.ClientConfig{
		Bus:     b,
		Prefix:  c.Prefix,
		Codec:   c.codec(),
		Logger:  logger,
		Timeout: c.RequestTimeout,
	}
}

// ServerConfig returns the server side of the configuration.
func (c Config) ServerConfig(b rpc.Bus, logger *slog.Logger) rpc.ServerConfig {
	return rpc.ServerConfig{
		Bus:      b,
		Prefix:   c.Prefix,
		Codec:    c.codec(),
		Logger:   logger,
		FailFast: c.FailFast,
	}
}
