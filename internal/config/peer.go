package config

import (
	"fmt"
	"time"

	"github.com/dkeye/Duet/internal/negotiation"
)

var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

type Negotiation struct {
	// Timeout bounds the time from call start to Connected. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`
}

type PeerConfig struct {
	ServerURL   string      `mapstructure:"server_url"`
	ICEServers  []string    `mapstructure:"ice_servers"`
	LogLevel    string      `mapstructure:"log_level"`
	Negotiation Negotiation `mapstructure:"negotiation"`
}

func LoadPeer() (*PeerConfig, error) {
	v, fileName := newViper("peer")

	v.SetDefault("server_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("ice_servers", DefaultICEServers)
	v.SetDefault("log_level", "info")
	v.SetDefault("negotiation.timeout", negotiation.DefaultTimeout)

	read(v, fileName)

	var cfg PeerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse peer config: %w", err)
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url is required")
	}
	if cfg.Negotiation.Timeout < 0 {
		return nil, fmt.Errorf("negotiation.timeout must not be negative")
	}
	return &cfg, nil
}
