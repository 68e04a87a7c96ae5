// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all the configuration settings for the server.
type Config struct {
	// HTTP listener
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port string `env:"PORT" envDefault:"9002"`

	// Matchmaking and session timing
	QueueTimeout  time.Duration `env:"QUEUE_TIMEOUT"  envDefault:"60s"`
	ForfeitGrace  time.Duration `env:"FORFEIT_GRACE"  envDefault:"60s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1s"`

	// Per-turn move limit; zero disables the turn clock.
	MoveTimeLimit time.Duration `env:"MOVE_TIME_LIMIT" envDefault:"0"`

	// Redis persistence; empty keeps games in memory only.
	RedisAddr string `env:"REDIS_ADDR" envDefault:""`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// Load returns the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Addr is the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
