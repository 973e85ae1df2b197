package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresConfigAndHandler(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	_, err = New(&Config{Address: ":0"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler cannot be nil")
}

func TestDefaultConfig(t *testing.T) {
	handler := http.NewServeMux()
	cfg := DefaultConfig(":8080", handler)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)

	srv, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", srv.Addr())
}

func TestShutdownBeforeServe(t *testing.T) {
	srv, err := New(DefaultConfig(":0", http.NewServeMux()), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
