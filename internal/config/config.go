package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Environment variables recognized by the client.
const (
	EnvToken         = "ESUB_TOKEN"
	EnvProtocol      = "ESUB_PROTOCOL"
	EnvWSProtocol    = "ESUB_WEBSOCKET_PROTOCOL"
	EnvServiceHost   = "ESUB_SERVICE_HOST"
	EnvServicePort   = "ESUB_SERVICE_PORT"
	EnvRetries       = "ESUB_REQUEST_RETRIES"
	EnvConfirm       = "ESUB_CONFIRM_RECEIPT"
	EnvPingFrequency = "ESUB_PING_FREQUENCY"
	EnvConfigFile    = "ESUB_CONFIG_FILE"
)

const (
	DefaultHost          = "localhost"
	DefaultPort          = 8090
	DefaultProtocol      = "http"
	DefaultWSProtocol    = "ws"
	DefaultPingFrequency = 60 * time.Second
	DefaultNodeCacheTTL  = 10 * time.Second
)

// Options holds process configuration for the esub client. It is resolved
// once and passed down explicitly; nothing in this package mutates global
// state.
type Options struct {
	Host       string
	Port       int
	Protocol   string
	WSProtocol string

	// Token is the default auth token attached to requests when the caller
	// supplies none. Never interpreted client-side.
	Token string

	// Retries is the attempt count for one-shot request failures.
	Retries int

	// Confirm enables per-message receipt confirmation on persistent
	// sessions. When set, the keepalive prober is not used.
	Confirm bool

	// PingFrequency is the idle-timeout hint for persistent connections.
	// Probes are sent at 90% of this interval.
	PingFrequency time.Duration

	// NodeCacheTTL bounds how long a resolved node IP is reused.
	NodeCacheTTL time.Duration
}

func Default() Options {
	return Options{
		Host:          DefaultHost,
		Port:          DefaultPort,
		Protocol:      DefaultProtocol,
		WSProtocol:    DefaultWSProtocol,
		PingFrequency: DefaultPingFrequency,
		NodeCacheTTL:  DefaultNodeCacheTTL,
	}
}

// FromEnv resolves Options from the process environment on top of defaults.
func FromEnv() Options {
	return overlayEnv(Default())
}

// Resolve layers defaults, then the TOML file named by ESUB_CONFIG_FILE (if
// any), then environment variables. Env vars win over the file.
func Resolve() (Options, error) {
	base := Default()
	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		var err error
		base, err = LoadFile(path, base)
		if err != nil {
			return Options{}, err
		}
	}
	return overlayEnv(base), nil
}

func overlayEnv(opts Options) Options {
	if v := strings.TrimSpace(os.Getenv(EnvServiceHost)); v != "" {
		opts.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServicePort)); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			opts.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvProtocol)); v != "" {
		opts.Protocol = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWSProtocol)); v != "" {
		opts.WSProtocol = v
	}
	if v, ok := os.LookupEnv(EnvToken); ok {
		opts.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRetries)); v != "" {
		if retries, err := strconv.Atoi(v); err == nil && retries >= 0 {
			opts.Retries = retries
		}
	}
	if v, ok := os.LookupEnv(EnvConfirm); ok {
		opts.Confirm = Truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPingFrequency)); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			opts.PingFrequency = time.Duration(secs) * time.Second
		}
	}
	return opts
}

// Truthy reports whether an env toggle is set. Unset, empty, and "0" are
// false; anything else is true.
func Truthy(raw string) bool {
	v := strings.TrimSpace(raw)
	return v != "" && v != "0"
}

// Addr returns the one-shot base address, e.g. "http://localhost:8090".
func (o Options) Addr() string {
	return fmt.Sprintf("%s://%s:%d", o.Protocol, o.Host, o.Port)
}

// WSAddr returns the duplex base address, e.g. "ws://localhost:8090".
func (o Options) WSAddr() string {
	return fmt.Sprintf("%s://%s:%d", o.WSProtocol, o.Host, o.Port)
}

// ProbeInterval derives the keepalive probe period from the ping hint.
func (o Options) ProbeInterval() time.Duration {
	hint := o.PingFrequency
	if hint <= 0 {
		hint = DefaultPingFrequency
	}
	return hint * 9 / 10
}

func (o Options) Validate() error {
	if strings.TrimSpace(o.Host) == "" {
		return fmt.Errorf("config missing host")
	}
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("config invalid port: %d", o.Port)
	}
	if strings.TrimSpace(o.Protocol) == "" {
		return fmt.Errorf("config missing protocol")
	}
	if strings.TrimSpace(o.WSProtocol) == "" {
		return fmt.Errorf("config missing websocket protocol")
	}
	return nil
}

type fileOptions struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Protocol      string `toml:"protocol"`
	WSProtocol    string `toml:"ws_protocol"`
	Token         string `toml:"token"`
	Retries       int    `toml:"retries"`
	Confirm       bool   `toml:"confirm"`
	PingFrequency string `toml:"ping_frequency"`
}

// LoadFile layers a TOML options file over base. Zero-value fields in the
// file leave base untouched.
func LoadFile(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var raw fileOptions
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Options{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	opts := base
	if strings.TrimSpace(raw.Host) != "" {
		opts.Host = strings.TrimSpace(raw.Host)
	}
	if raw.Port > 0 {
		opts.Port = raw.Port
	}
	if strings.TrimSpace(raw.Protocol) != "" {
		opts.Protocol = strings.TrimSpace(raw.Protocol)
	}
	if strings.TrimSpace(raw.WSProtocol) != "" {
		opts.WSProtocol = strings.TrimSpace(raw.WSProtocol)
	}
	if raw.Token != "" {
		opts.Token = raw.Token
	}
	if raw.Retries > 0 {
		opts.Retries = raw.Retries
	}
	if raw.Confirm {
		opts.Confirm = true
	}
	if strings.TrimSpace(raw.PingFrequency) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PingFrequency))
		if err != nil {
			return Options{}, fmt.Errorf("config parse ping_frequency: %w", err)
		}
		opts.PingFrequency = d
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
