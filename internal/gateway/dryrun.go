package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// DryRun is a no-op PlatformGateway for `run --dry-run` and for tests:
// it logs every service call it would have made instead of performing
// network I/O.
type DryRun struct {
	mu     sync.Mutex
	states map[string]EntityState
}

// NewDryRun builds a DryRun gateway, optionally seeded with canned
// entity states for tests.
func NewDryRun(seed map[string]EntityState) *DryRun {
	if seed == nil {
		seed = map[string]EntityState{}
	}
	return &DryRun{states: seed}
}

func (d *DryRun) Connect(ctx context.Context) error {
	log.Info().Msg("dry-run gateway: connect (no-op)")
	return nil
}

func (d *DryRun) Disconnect() error {
	log.Info().Msg("dry-run gateway: disconnect (no-op)")
	return nil
}

func (d *DryRun) Connected() bool { return true }

func (d *DryRun) GetState(ctx context.Context, entityID string) (EntityState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.states[entityID]
	if !ok {
		return EntityState{}, entityNotFound(entityID)
	}
	return s, nil
}

// SetState lets tests seed or update a canned entity reading.
func (d *DryRun) SetState(entityID string, s EntityState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[entityID] = s
}

func (d *DryRun) SubscribeStateChanged(handler Handler) (func(), error) {
	return func() {}, nil
}

func (d *DryRun) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	log.Info().Str("domain", domain).Str("service", service).Interface("data", data).Msg("dry-run gateway: service call suppressed")
	return nil
}

func (d *DryRun) ControlEntity(ctx context.Context, entityID, domain, service, valueKey string, value any) error {
	return d.CallService(ctx, domain, service, map[string]any{"entity_id": entityID, valueKey: value})
}
