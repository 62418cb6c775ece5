// Package opcua implements the HIL bridge: one client session per unique
// endpoint URL, a subscription-driven latest-value cache fed by
// github.com/gopcua/opcua's monitor package, and batched concurrent writes.
// A Bridge is owned exclusively by one simulation — spec.md explicitly
// rejects the teacher-language's single global communication service, since
// two concurrent HIL simulations would otherwise collide on it.
package opcua

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/monitor"
	"github.com/gopcua/opcua/ua"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

// defaultTimeout bounds every individual client operation, per spec.md §5.
const defaultTimeout = 10 * time.Second

// publishInterval is the subscription's publishing interval for Read
// bindings.
const publishInterval = 500 * time.Millisecond

type endpointSession struct {
	url     string
	client  *opcua.Client
	monitor *monitor.NodeMonitor
	sub     *monitor.Subscription
}

// Bridge maintains the per-endpoint client sessions and the latest-value
// cache for one simulation's HIL bindings.
type Bridge struct {
	mu       sync.RWMutex
	sessions map[string]*endpointSession

	valuesMu     sync.RWMutex
	latestValues map[uint64]model.Value // binding id -> latest value

	nodeToBinding map[string]uint64 // node id string -> binding id
	bindingByID   map[uint64]model.CommunicationBinding
}

// NewBridge creates an empty, unconnected bridge.
func NewBridge() *Bridge {
	return &Bridge{
		sessions:      make(map[string]*endpointSession),
		latestValues:  make(map[uint64]model.Value),
		nodeToBinding: make(map[string]uint64),
		bindingByID:   make(map[uint64]model.CommunicationBinding),
	}
}

// Initialize opens one client session per unique endpoint URL among
// bindings, subscribes every Read binding's address on that endpoint, and
// rolls back any endpoint that fails partway through so the other
// endpoints can still proceed. Per spec.md §7, a subscribe failure never
// aborts Initialize; only a connect failure that leaves no endpoint usable
// does.
func (b *Bridge) Initialize(ctx context.Context, bindings []model.CommunicationBinding) error {
	byEndpoint := make(map[string][]model.CommunicationBinding)
	for _, binding := range bindings {
		byEndpoint[binding.EndpointURL] = append(byEndpoint[binding.EndpointURL], binding)
		b.bindingByID[binding.ID] = binding
	}

	var lastErr error
	connected := 0
	for url, endpointBindings := range byEndpoint {
		if err := b.initializeEndpoint(ctx, url, endpointBindings); err != nil {
			log.Printf("[opcua] endpoint %s failed to initialize: %v", url, err)
			lastErr = err
			continue
		}
		connected++
	}

	if connected == 0 && len(byEndpoint) > 0 {
		return fmt.Errorf("no OPC UA endpoint could be initialized: %w", lastErr)
	}
	return nil
}

func (b *Bridge) initializeEndpoint(ctx context.Context, url string, bindings []model.CommunicationBinding) error {
	client, err := b.connect(ctx, url)
	if err != nil {
		return err
	}

	reads := make([]model.CommunicationBinding, 0, len(bindings))
	for _, binding := range bindings {
		if binding.Direction == model.DirectionRead {
			reads = append(reads, binding)
		}
	}
	if len(reads) == 0 {
		b.registerSession(url, &endpointSession{url: url, client: client})
		return nil
	}

	nm, err := monitor.NewNodeMonitor(client)
	if err != nil {
		b.rollback(url, client, nil, nil)
		return fmt.Errorf("create node monitor: %w", err)
	}

	nodeIDs := make([]string, 0, len(reads))
	pendingReverse := make(map[string]uint64, len(reads))
	for _, binding := range reads {
		nodeIDs = append(nodeIDs, binding.Address)
		pendingReverse[binding.Address] = binding.ID
	}

	subCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	sub, err := nm.Subscribe(subCtx, &opcua.SubscriptionParameters{Interval: publishInterval}, b.onDataChange, nodeIDs...)
	if err != nil {
		b.rollback(url, client, nm, nil)
		return fmt.Errorf("subscribe: %w", err)
	}

	// Resolve node id string -> binding id for the callback's O(1) lookup.
	b.mu.Lock()
	for addr, bindingID := range pendingReverse {
		b.nodeToBinding[addr] = bindingID
	}
	b.mu.Unlock()

	b.registerSession(url, &endpointSession{url: url, client: client, monitor: nm, sub: sub})
	return nil
}

func (b *Bridge) registerSession(url string, session *endpointSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[url] = session
}

func (b *Bridge) rollback(url string, client *opcua.Client, nm *monitor.NodeMonitor, sub *monitor.Subscription) {
	if sub != nil {
		_ = sub.Unsubscribe(context.Background())
	}
	if client != nil {
		_ = client.Close(context.Background())
	}
	b.mu.Lock()
	delete(b.sessions, url)
	for addr, id := range b.nodeToBinding {
		if binding, ok := b.bindingByID[id]; ok && binding.EndpointURL == url {
			delete(b.nodeToBinding, addr)
		}
	}
	b.mu.Unlock()
}

// connect opens (or reuses) a session for url. If a session already exists
// it is probed with GetEndpoints; a live session is reused, a dead one is
// disconnected and replaced.
func (b *Bridge) connect(ctx context.Context, url string) (*opcua.Client, error) {
	b.mu.RLock()
	existing := b.sessions[url]
	b.mu.RUnlock()

	if existing != nil && existing.client != nil {
		probeCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		_, err := opcua.GetEndpoints(probeCtx, url)
		cancel()
		if err == nil {
			return existing.client, nil
		}
		log.Printf("[opcua] stale session for %s, reconnecting: %v", url, err)
		_ = existing.client.Close(context.Background())
		b.mu.Lock()
		delete(b.sessions, url)
		b.mu.Unlock()
	}

	connectCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	client, err := opcua.NewClient(url, opcua.SecurityMode(ua.MessageSecurityModeNone))
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", url, err)
	}
	if err := client.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	return client, nil
}

// onDataChange is invoked by the OPC UA transport off the step-loop
// goroutine. It indexes latest_values by binding id in O(1) via the
// reverse map; unmapped nodes are logged and dropped.
func (b *Bridge) onDataChange(sub *monitor.Subscription, msg *monitor.DataChangeMessage) {
	if msg.Error != nil {
		log.Printf("[opcua] data change error: %v", msg.Error)
		return
	}

	nodeKey := msg.NodeID.String()
	b.mu.RLock()
	bindingID, ok := b.nodeToBinding[nodeKey]
	b.mu.RUnlock()
	if !ok {
		log.Printf("[opcua] data change for unmapped node %s dropped", nodeKey)
		return
	}

	b.valuesMu.Lock()
	b.latestValues[bindingID] = msg.Value.Value()
	b.valuesMu.Unlock()
}

// Read returns a point-in-time snapshot of the latest-value cache, keyed by
// binding id.
func (b *Bridge) Read() map[uint64]model.Value {
	b.valuesMu.RLock()
	defer b.valuesMu.RUnlock()
	out := make(map[uint64]model.Value, len(b.latestValues))
	for k, v := range b.latestValues {
		out[k] = v
	}
	return out
}

// Write issues one OPC UA write per binding in valuesByBindingID,
// concurrently, returning only once every write has completed. Individual
// failures are logged, never returned: per spec.md §4.5 the call as a whole
// always "returns after all complete".
func (b *Bridge) Write(ctx context.Context, valuesByBindingID map[uint64]model.Value) {
	var wg sync.WaitGroup
	for bindingID, value := range valuesByBindingID {
		binding, ok := b.bindingByID[bindingID]
		if !ok {
			continue
		}
		b.mu.RLock()
		session := b.sessions[binding.EndpointURL]
		b.mu.RUnlock()
		if session == nil {
			log.Printf("[opcua] write to binding %d: no session for endpoint %s", bindingID, binding.EndpointURL)
			continue
		}

		wg.Add(1)
		go func(session *endpointSession, binding model.CommunicationBinding, value model.Value) {
			defer wg.Done()
			if err := writeOne(ctx, session.client, binding.Address, value); err != nil {
				log.Printf("[opcua] write to %s (binding %d) failed: %v", binding.Address, binding.ID, err)
			}
		}(session, binding, value)
	}
	wg.Wait()
}

func writeOne(ctx context.Context, client *opcua.Client, address string, value model.Value) error {
	writeCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	nodeID, err := ua.ParseNodeID(address)
	if err != nil {
		return fmt.Errorf("parse node id %s: %w", address, err)
	}

	variant, err := ua.NewVariant(toVariantValue(value))
	if err != nil {
		return fmt.Errorf("encode variant: %w", err)
	}

	req := &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{
			{
				NodeID:      nodeID,
				AttributeID: ua.AttributeIDValue,
				Value: &ua.DataValue{
					EncodingMask: ua.DataValueValue,
					Value:        variant,
				},
			},
		},
	}
	_, err = client.Write(writeCtx, req)
	return err
}

// toVariantValue infers the OPC UA variant type from the value's Go type:
// bool -> Boolean, integer -> Int64, float -> Double, string -> String.
func toVariantValue(value model.Value) any {
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float32:
		return float64(v)
	case float64:
		return v
	case string:
		return v
	default:
		return v
	}
}

// DisconnectAll schedules disconnects for every session concurrently,
// drains them, and clears the sessions, the node-to-binding map and the
// latest-value cache. Errors are logged only.
func (b *Bridge) DisconnectAll() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[string]*endpointSession)
	b.nodeToBinding = make(map[string]uint64)
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(session *endpointSession) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()
			if session.sub != nil {
				if err := session.sub.Unsubscribe(ctx); err != nil {
					log.Printf("[opcua] unsubscribe %s: %v", session.url, err)
				}
			}
			if err := session.client.Close(ctx); err != nil {
				log.Printf("[opcua] disconnect %s: %v", session.url, err)
			}
		}(session)
	}
	wg.Wait()

	b.valuesMu.Lock()
	b.latestValues = make(map[uint64]model.Value)
	b.valuesMu.Unlock()
}
