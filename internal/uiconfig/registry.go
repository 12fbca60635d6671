// Package uiconfig keeps the latest configuration payloads published for
// terminal UIs and fans them out to connected WebSocket clients.
package uiconfig

import (
	"sync"

	"github.com/yegors/whse-session/internal/websocket"
	"github.com/yegors/whse-session/pkg/logger"
)

// Broadcaster pushes a payload to live subscribers
type Broadcaster interface {
	PublishUIConfig(key string, payload map[string]any)
}

// Registry stores the most recent payload per key
type Registry struct {
	mu          sync.RWMutex
	payloads    map[string]map[string]any
	broadcaster Broadcaster
	logger      *logger.Logger
}

// NewRegistry creates a registry. broadcaster may be nil.
func NewRegistry(broadcaster Broadcaster, log *logger.Logger) *Registry {
	return &Registry{
		payloads:    make(map[string]map[string]any),
		broadcaster: broadcaster,
		logger:      log.Named("ui-config"),
	}
}

// Publish replaces the payload stored under key and broadcasts it
func (r *Registry) Publish(key string, payload map[string]any) {
	r.mu.Lock()
	r.payloads[key] = payload
	r.mu.Unlock()

	r.logger.Debug("Published UI config", logger.String("key", key))

	if r.broadcaster != nil {
		r.broadcaster.PublishUIConfig(key, payload)
	}
}

// Get returns the payload stored under key
func (r *Registry) Get(key string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	payload, ok := r.payloads[key]
	return payload, ok
}

// Keys returns every published key
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.payloads))
	for k := range r.payloads {
		keys = append(keys, k)
	}
	return keys
}

// HandleMessage answers ui_config_request messages with the stored payloads
func (r *Registry) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	if messageType != websocket.MessageTypeUIConfigRequest {
		r.logger.Debug("Ignoring WebSocket message", logger.String("type", messageType))
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if key, ok := data["key"].(string); ok && key != "" {
		if payload, found := r.payloads[key]; found {
			client.SendMessage(websocket.UIConfigMessage(key, payload))
		}
		return nil
	}

	for key, payload := range r.payloads {
		client.SendMessage(websocket.UIConfigMessage(key, payload))
	}
	return nil
}
