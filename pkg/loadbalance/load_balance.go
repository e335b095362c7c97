package loadbalance

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

const (
	PolicyWeightedRoundRobin   = "weighted_round_robin"
	PolicyWeightedLeastRequest = "weighted_least_request"
)

// Destination is one named target. A non-positive weight counts as 1.
type Destination struct {
	Name   string
	Weight int32
}

type LoadBalancer interface {
	// Next returns the next destination to send the request to.
	Next(ctx context.Context) string
	// Done reports that a request sent to name has finished.
	Done(ctx context.Context, name string)
}

type server struct {
	name           string
	weight         int32
	requestCounter requestCounter
}

type requestCounter interface {
	Current() int
	Inc()
	Desc()
	Less(o requestCounter) bool
}

func newServers(destinations []Destination) []*server {
	servers := make([]*server, 0, len(destinations))
	for _, d := range destinations {
		servers = append(servers, &server{
			name:   d.Name,
			weight: max(d.Weight, 1),
			// TODO: a distributed request counter is needed once the gateway runs as multiple replicas.
			requestCounter: newRequestCounter(),
		})
	}

	return servers
}

func newRequestCounter() requestCounter {
	return &memoryRequestCounter{}
}

var _ LoadBalancer = (*WeightedRoundRobin)(nil)

type WeightedRoundRobin struct {
	servers     []*server
	current     atomic.Int32
	totalWeight int64
}

func NewWeightedRoundRobin(destinations []Destination) *WeightedRoundRobin {
	servers := newServers(destinations)

	return &WeightedRoundRobin{
		servers: servers,
		totalWeight: lo.SumBy(servers, func(item *server) int64 {
			return int64(item.weight)
		}),
	}
}

func (w *WeightedRoundRobin) Done(context.Context, string) {}

func (w *WeightedRoundRobin) Next(_ context.Context) string {
	if len(w.servers) == 0 {
		return ""
	}

	if len(w.servers) == 1 {
		return w.servers[0].name
	}

	randomWeight, err := rand.Int(rand.Reader, big.NewInt(w.totalWeight))
	if err != nil {
		return ""
	}

	currentIndex := w.current.Load()

	var total int64

	foundIdx := -1

	for i := range w.servers {
		idx := (int(currentIndex) + i) % len(w.servers)
		total += int64(w.servers[idx].weight)

		if total > randomWeight.Int64() {
			foundIdx = idx
			break
		}
	}

	if foundIdx == -1 {
		foundIdx = int(currentIndex)
	}

	w.current.Store(int32((foundIdx + 1) % len(w.servers))) //nolint:gosec

	return w.servers[foundIdx].name
}

var _ LoadBalancer = (*WeightedLeastRequest)(nil)

// WeightedLeastRequest picks the destination with the lowest in-flight to
// weight ratio, breaking ties by the lower in-flight count.
type WeightedLeastRequest struct {
	mutex   sync.Mutex
	servers []*server
}

func NewWeightedLeastRequest(destinations []Destination) *WeightedLeastRequest {
	return &WeightedLeastRequest{
		servers: newServers(destinations),
	}
}

type memoryRequestCounter struct {
	count atomic.Int32
}

func (m *memoryRequestCounter) Less(o requestCounter) bool {
	return m.Current() < o.Current()
}

func (m *memoryRequestCounter) Current() int {
	return int(m.count.Load())
}

func (m *memoryRequestCounter) Inc() {
	m.count.Add(1)
}

func (m *memoryRequestCounter) Desc() {
	for {
		current := m.count.Load()
		if current <= 0 || m.count.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func (w *WeightedLeastRequest) Next(_ context.Context) string {
	if len(w.servers) == 0 {
		return ""
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	var selected *server

	leastLoadRatio := float64(-1)

	for _, s := range w.servers {
		loadRatio := float64(s.requestCounter.Current()) / float64(s.weight)
		requestLess := selected != nil && loadRatio == leastLoadRatio && s.requestCounter.Less(selected.requestCounter)

		if selected == nil || loadRatio < leastLoadRatio || requestLess {
			selected = s
			leastLoadRatio = loadRatio
		}
	}

	selected.requestCounter.Inc()

	return selected.name
}

func (w *WeightedLeastRequest) Done(_ context.Context, name string) {
	s, ok := lo.Find(w.servers, func(s *server) bool { return s.name == name })
	if ok {
		s.requestCounter.Desc()
	}
}

func New(policy string, destinations []Destination) (LoadBalancer, error) {
	switch policy {
	case "", PolicyWeightedRoundRobin:
		return NewWeightedRoundRobin(destinations), nil
	case PolicyWeightedLeastRequest:
		return NewWeightedLeastRequest(destinations), nil
	default:
		return nil, fmt.Errorf("unsupported load balance policy %q", policy)
	}
}
