package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hvac-controller/internal/herrors"
)

func TestDryRun_GetState_NotFound(t *testing.T) {
	g := NewDryRun(nil)
	_, err := g.GetState(context.Background(), "climate.living_room")
	require.Error(t, err)
	var notFound *herrors.EntityNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDryRun_GetState_Seeded(t *testing.T) {
	g := NewDryRun(map[string]EntityState{
		"sensor.living_room_temperature": {State: "21.5"},
	})
	s, err := g.GetState(context.Background(), "sensor.living_room_temperature")
	require.NoError(t, err)
	assert.Equal(t, "21.5", s.State)
}

func TestDryRun_ControlEntity_NeverErrors(t *testing.T) {
	g := NewDryRun(nil)
	err := g.ControlEntity(context.Background(), "climate.living_room", "climate", "set_temperature", "temperature", 21.0)
	assert.NoError(t, err)
}

func TestDryRun_ConnectDisconnect(t *testing.T) {
	g := NewDryRun(nil)
	assert.NoError(t, g.Connect(context.Background()))
	assert.True(t, g.Connected())
	assert.NoError(t, g.Disconnect())
}
