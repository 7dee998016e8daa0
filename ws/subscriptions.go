package ws

import (
	"context"
	"encoding/json"
	"fmt"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Subscribe opens an eth_subscribe stream and routes every notification
// result to callback. It returns the subscription id. Callbacks run on their
// own goroutine.
func (m *Manager) Subscribe(
	ctx context.Context,
	callback func(json.RawMessage),
	params ...any,
) (string, error) {
	var id string
	if err := m.Call(ctx, &id, "eth_subscribe", params...); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.subscriptions[id] = callback
	m.mu.Unlock()

	return id, nil
}

// SubscribeNewHeads subscribes to new chain heads
func (m *Manager) SubscribeNewHeads(
	ctx context.Context,
	callback func(*ethtypes.Header),
) (string, error) {
	return m.Subscribe(ctx, func(raw json.RawMessage) {
		var head ethtypes.Header
		if err := json.Unmarshal(raw, &head); err != nil {
			m.logger.Warn("failed to unmarshal newHeads message", zap.Error(err))
			return
		}
		callback(&head)
	}, "newHeads")
}

// Unsubscribe removes a subscription and tells the node to stop sending it
func (m *Manager) Unsubscribe(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	_, ok := m.subscriptions[id]
	delete(m.subscriptions, id)
	m.mu.Unlock()

	if !ok {
		return false, nil
	}

	var removed bool
	if err := m.Call(ctx, &removed, "eth_unsubscribe", id); err != nil {
		return false, fmt.Errorf("failed to unsubscribe %s: %w", id, err)
	}

	return removed, nil
}

// routeNotification hands a notification to its subscription callback
func (m *Manager) routeNotification(n notification) {
	m.mu.RLock()
	callback, ok := m.subscriptions[n.Subscription]
	m.mu.RUnlock()

	if !ok {
		m.logger.Debug(
			"websocket message from unexpected subscription",
			zap.String("subscription", n.Subscription),
		)
		return
	}

	go callback(n.Result)
}
