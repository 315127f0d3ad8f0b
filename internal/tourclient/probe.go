package tourclient

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/resilience"
)

// ProbeConfig holds configuration for the reachability probe.
type ProbeConfig struct {
	Client   *Client
	Registry *resilience.Registry

	// Timeout bounds the health ping. Default: 2s
	Timeout time.Duration

	// Offline forces the probe to report unreachable.
	Offline bool

	Logger zerolog.Logger
}

// Probe answers whether the catalog can be used right now. An open circuit
// breaker counts as unreachable without a network round trip.
type Probe struct {
	client   *Client
	registry *resilience.Registry
	timeout  time.Duration
	offline  bool
	logger   zerolog.Logger
}

// NewProbe creates a reachability probe.
func NewProbe(cfg ProbeConfig) *Probe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Probe{
		client:   cfg.Client,
		registry: cfg.Registry,
		timeout:  timeout,
		offline:  cfg.Offline,
		logger:   cfg.Logger,
	}
}

// Reachable pings the catalog health endpoint.
func (p *Probe) Reachable(ctx context.Context) bool {
	if p.offline {
		return false
	}

	if p.registry != nil {
		if h := p.registry.Health(UpstreamName); h != nil && h.Down() {
			p.logger.Debug().Msg("catalog circuit open, treating as offline")
			return false
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.Ping(ctx); err != nil {
		p.logger.Debug().Err(err).Msg("catalog unreachable")
		return false
	}
	return true
}
