package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil historical sync returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingHistoricalSync)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(newPorts(&mockHistorical{}, nil))
		require.NoError(t, err)
		assert.NotNil(t, server)
	})

	t.Run("with record lookups", func(t *testing.T) {
		server, err := NewServer(newPorts(&mockHistorical{}, &mockCache{}))
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingHistoricalSync)

	ports := newPorts(&mockHistorical{}, nil)
	assert.NoError(t, ports.Validate())
	assert.False(t, ports.recordsEnabled())

	ports = newPorts(&mockHistorical{}, &mockCache{})
	assert.True(t, ports.recordsEnabled())
}
