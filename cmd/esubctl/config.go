package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/esub/esub-go/internal/config"
)

type fileConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Protocol      string `toml:"protocol"`
	WSProtocol    string `toml:"ws_protocol"`
	Token         string `toml:"token"`
	Retries       int    `toml:"retries"`
	Confirm       bool   `toml:"confirm"`
	PingFrequency string `toml:"ping_frequency"`
}

// loadFileConfig layers a TOML file over base. Only keys present in the
// file override; absent keys keep the environment-resolved values.
func loadFileConfig(path string, base config.Options) (config.Options, error) {
	opts := base

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.Options{}, fmt.Errorf("load esubctl config: %w", err)
	}

	if meta.IsDefined("host") {
		if v := strings.TrimSpace(raw.Host); v != "" {
			opts.Host = v
		}
	}

	if meta.IsDefined("port") {
		opts.Port = raw.Port
	}

	if meta.IsDefined("protocol") {
		opts.Protocol = strings.TrimSpace(raw.Protocol)
	}

	if meta.IsDefined("ws_protocol") {
		opts.WSProtocol = strings.TrimSpace(raw.WSProtocol)
	}

	if meta.IsDefined("token") {
		opts.Token = raw.Token
	}

	if meta.IsDefined("retries") {
		opts.Retries = raw.Retries
	}

	if meta.IsDefined("confirm") {
		opts.Confirm = raw.Confirm
	}

	if meta.IsDefined("ping_frequency") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PingFrequency))
		if err != nil {
			return config.Options{}, fmt.Errorf("parse ping_frequency: %w", err)
		}
		opts.PingFrequency = d
	}

	if err := opts.Validate(); err != nil {
		return config.Options{}, err
	}
	return opts, nil
}
