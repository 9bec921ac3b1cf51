// Package realtime implements the in-process pub/sub hub that relays chat
// events to connected WebSocket clients.
//
// A Hub holds one Subscription per connected socket. Publish hands an
// Envelope to the subscribers selected by the hub's FanoutPolicy:
//
//   - FanoutBroadcast: every subscriber receives every envelope.
//   - FanoutDirect:    only subscriptions owned by the named participants
//     (typically sender and recipient) receive it.
//
// Each subscription has a bounded buffer. Publish never blocks; a
// subscriber whose buffer is full is dropped and its channel closed, so a
// stalled client cannot hold back everyone else.
package realtime

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Event names carried in envelopes.
const (
	EventChatMessage = "chat:message"
	EventError       = "error"
)

// Envelope is the unit of delivery, serialized as {"event":..,"data":..}.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ErrorEnvelope builds an error frame.
func ErrorEnvelope(msg string) Envelope {
	return Envelope{Event: EventError, Data: map[string]string{"message": msg}}
}

// FanoutPolicy selects the recipients of a published envelope.
type FanoutPolicy int

const (
	FanoutBroadcast FanoutPolicy = iota
	FanoutDirect
)

// String implements fmt.Stringer.
func (p FanoutPolicy) String() string {
	if p == FanoutDirect {
		return "direct"
	}
	return "broadcast"
}

// ParseFanout maps a config value to a policy. Unknown values broadcast.
func ParseFanout(s string) FanoutPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "direct") {
		return FanoutDirect
	}
	return FanoutBroadcast
}

// Metrics groups the hub's Prometheus collectors.
type Metrics struct {
	Subscribers prometheus.Gauge
	Dropped     prometheus.Counter
	Delivered   *prometheus.CounterVec
}

// NewMetrics creates the hub collectors and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Current number of hub subscribers.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_dropped_subscribers_total",
			Help: "Subscribers dropped because their buffer was full.",
		}),
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_delivered_total",
			Help: "Envelopes delivered to subscribers by event.",
		}, []string{"event"}),
	}
	if reg != nil {
		reg.MustRegister(m.Subscribers, m.Dropped, m.Delivered)
	}
	return m
}

// Subscription is a single subscriber's view of the hub.
type Subscription struct {
	ID     string
	UserID string

	ch   chan Envelope
	hub  *Hub
	once sync.Once
}

// C returns the delivery channel. It is closed when the subscription ends,
// either through Close or because the hub dropped it.
func (s *Subscription) C() <-chan Envelope { return s.ch }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.remove(s, false)
}

// Hub is a concurrency-safe pub/sub registry.
type Hub struct {
	policy  FanoutPolicy
	buffer  int
	metrics *Metrics

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// NewHub returns a hub. buffer < 1 is raised to 1; metrics may be nil.
func NewHub(policy FanoutPolicy, buffer int, metrics *Metrics) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		policy:  policy,
		buffer:  buffer,
		metrics: metrics,
		subs:    make(map[string]*Subscription),
	}
}

// Policy returns the configured fan-out policy.
func (h *Hub) Policy() FanoutPolicy { return h.policy }

// Subscribe registers a subscriber for userID. After Close the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		ch:     make(chan Envelope, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.subs[sub.ID] = sub
	if h.metrics != nil {
		h.metrics.Subscribers.Inc()
	}
	return sub
}

// Len reports the current number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers env according to the fan-out policy and returns the
// number of subscribers that received it. participants names the users a
// direct envelope is addressed to; broadcast ignores it.
func (h *Hub) Publish(env Envelope, participants ...string) int {
	var targets map[string]struct{}
	if h.policy == FanoutDirect {
		targets = make(map[string]struct{}, len(participants))
		for _, p := range participants {
			if p != "" {
				targets[p] = struct{}{}
			}
		}
		if len(targets) == 0 {
			return 0
		}
	}

	delivered := 0
	var full []*Subscription

	h.mu.RLock()
	for _, sub := range h.subs {
		if targets != nil {
			if _, ok := targets[sub.UserID]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- env:
			delivered++
		default:
			full = append(full, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range full {
		h.remove(sub, true)
	}
	if h.metrics != nil && delivered > 0 {
		h.metrics.Delivered.WithLabelValues(env.Event).Add(float64(delivered))
	}
	return delivered
}

// Close drops every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		h.remove(s, false)
	}
}

func (h *Hub) remove(sub *Subscription, dropped bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	sub.once.Do(func() { close(sub.ch) })
	if h.metrics != nil {
		h.metrics.Subscribers.Dec()
		if dropped {
			h.metrics.Dropped.Inc()
		}
	}
}
