package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox/payloads"
)

// ErrNoDecoder is returned when no decoder matches an event type and envelope version.
var ErrNoDecoder = errors.New("decoder not registered")

// DecodeFunc turns the envelope data of one event version into its payload type.
type DecodeFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, envelope version) to a payload decoder for consumers.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]DecodeFunc
}

// NewDecoderRegistry builds an empty decoder registry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]DecodeFunc)}
}

// OrderDecoders returns a registry with the v1 order event decoders.
func OrderDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderCreated, 1, JSONDecoder(func(p *payloads.OrderCreatedEvent) error {
		return requireOrderID(p.OrderID)
	}))
	reg.Register(enums.EventOrderItemStatusChanged, 1, JSONDecoder(func(p *payloads.OrderItemStatusChangedEvent) error {
		if err := requireOrderID(p.OrderID); err != nil {
			return err
		}
		if !p.Status.IsValid() {
			return fmt.Errorf("invalid item status %q", p.Status)
		}
		return nil
	}))
	return reg
}

// JSONDecoder unmarshals into T and applies validate when it is not nil.
// The decoded value is returned as *T.
func JSONDecoder[T any](validate func(*T) error) DecodeFunc {
	return func(payload json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, err
		}
		if validate != nil {
			if err := validate(&out); err != nil {
				return nil, err
			}
		}
		return &out, nil
	}
}

// Register stores a decoder for the given event type and version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[decoderKey{eventType: eventType, version: version}] = decoder
}

// Handles reports whether any version of eventType has a decoder.
func (r *DecoderRegistry) Handles(eventType enums.OutboxEventType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key := range r.decoders {
		if key.eventType == eventType {
			return true
		}
	}
	return false
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, version)
	}
	return decoder(payload)
}

func requireOrderID(orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return errors.New("order id missing")
	}
	return nil
}
