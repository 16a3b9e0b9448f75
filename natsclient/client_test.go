package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semcommunity/errors"
)

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestNewClient_Options(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithTimeout(2*time.Second),
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithName("semcommunity-test"),
		WithToken("secret"),
	)
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, 2*time.Second, c.timeout)
	assert.Equal(t, 3, c.maxReconnects)
	assert.Len(t, c.connectionOptions(), 10)
}

func TestNewClient_InvalidOptions(t *testing.T) {
	_, err := NewClient("")
	assert.True(t, errors.IsInvalid(err))

	_, err = NewClient("nats://localhost:4222", WithTimeout(0))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewClient("nats://localhost:4222", WithReconnectWait(-time.Second))
	assert.Error(t, err)
}

func TestClient_NotConnected(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = c.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.GetKeyValueBucket(context.Background(), "COMMUNITY_INDEX")
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.NoError(t, c.Close(context.Background()))
	assert.NoError(t, c.Close(context.Background()), "second close is a no-op")
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
}

func TestClient_ConnectCancelled(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:1", WithTimeout(50*time.Millisecond), WithMaxReconnects(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = c.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestIsKVNotFoundError(t *testing.T) {
	assert.False(t, IsKVNotFoundError(nil))
	assert.True(t, IsKVNotFoundError(ErrKVKeyNotFound))
	assert.False(t, IsKVNotFoundError(assert.AnError))
}
