// Package gateway defines the boundary between the controller and the
// home-automation platform: connection lifecycle, entity state reads,
// state-change subscription, and service calls.
package gateway

import (
	"context"

	"github.com/thatsimonsguy/hvac-controller/internal/herrors"
)

// StateChangedEvent is delivered to subscribers on every entity state
// change the gateway observes.
type StateChangedEvent struct {
	EntityID string
	NewState string
	OldState string
}

// EntityState is the result of a one-shot state read.
type EntityState struct {
	State      string
	Attributes map[string]any
}

// Handler receives state-change events. Subscriptions must redeliver
// on reconnect so a handler never silently stops seeing updates.
type Handler func(StateChangedEvent)

// PlatformGateway is the interface the controller consumes; see
// herrors for the error taxonomy its methods return.
type PlatformGateway interface {
	Connect(ctx context.Context) error
	Disconnect() error
	GetState(ctx context.Context, entityID string) (EntityState, error)
	SubscribeStateChanged(handler Handler) (unsubscribe func(), err error)
	CallService(ctx context.Context, domain, service string, data map[string]any) error
	ControlEntity(ctx context.Context, entityID, domain, service, valueKey string, value any) error
	Connected() bool
}

// entityNotFound is a small helper so both implementations raise the
// same error shape.
func entityNotFound(entityID string) error {
	return &herrors.EntityNotFoundError{EntityID: entityID}
}
