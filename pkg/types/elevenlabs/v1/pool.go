package v1

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"xispeech.dev/pkg/elevenlabs"
	"xispeech.dev/pkg/loadbalance"
)

const DefaultUpstreamName = "default"

// Upstream is one ElevenLabs account the gateway may send requests to.
type Upstream struct {
	Name   string
	Weight int32
	Client *elevenlabs.Client
}

// ClientPool spreads requests over several upstream accounts.
type ClientPool struct {
	upstreams map[string]Upstream
	primary   Upstream
	lb        loadbalance.LoadBalancer
}

func NewClientPool(policy string, upstreams ...Upstream) (*ClientPool, error) {
	if len(upstreams) == 0 {
		return nil, errors.New("at least one upstream is required")
	}

	byName := make(map[string]Upstream, len(upstreams))

	for _, u := range upstreams {
		if u.Client == nil {
			return nil, fmt.Errorf("upstream %q has no client", u.Name)
		}

		if _, exists := byName[u.Name]; exists {
			return nil, fmt.Errorf("duplicate upstream %q", u.Name)
		}

		byName[u.Name] = u
	}

	lb, err := loadbalance.New(policy, lo.Map(upstreams, func(u Upstream, _ int) loadbalance.Destination {
		return loadbalance.Destination{Name: u.Name, Weight: u.Weight}
	}))
	if err != nil {
		return nil, err
	}

	return &ClientPool{
		upstreams: byName,
		primary:   upstreams[0],
		lb:        lb,
	}, nil
}

// NewSingleClientPool wraps one client.
func NewSingleClientPool(client *elevenlabs.Client) *ClientPool {
	return lo.Must(NewClientPool(loadbalance.PolicyWeightedRoundRobin, Upstream{Name: DefaultUpstreamName, Weight: 1, Client: client}))
}

// Pick returns the upstream for the next request; the caller must Release it.
func (p *ClientPool) Pick(ctx context.Context) Upstream {
	u, ok := p.upstreams[p.lb.Next(ctx)]
	if !ok {
		return p.primary
	}

	return u
}

func (p *ClientPool) Release(ctx context.Context, u Upstream) {
	p.lb.Done(ctx, u.Name)
}

// Primary is the first configured upstream, used for non-synthesis calls.
func (p *ClientPool) Primary() *elevenlabs.Client {
	return p.primary.Client
}

func (p *ClientPool) Len() int {
	return len(p.upstreams)
}
