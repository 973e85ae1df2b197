package engine

import (
	"database/sql"
	"fmt"
	"sync"

	// Database drivers registered for named connections.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/schemakit/schemakit/internal/config"
)

// Connections manages the named database handles declared in configuration.
// Handles open lazily and are shared for the life of the process.
type Connections struct {
	cfg *config.Config

	mu    sync.Mutex
	conns map[string]*sql.DB
}

// NewConnections creates a connection manager.
func NewConnections(cfg *config.Config) *Connections {
	return &Connections{
		cfg:   cfg,
		conns: make(map[string]*sql.DB),
	}
}

// Register installs an already-open handle under a name. Tests and embedders
// use this instead of configuration-driven opening.
func (c *Connections) Register(name string, db *sql.DB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[name] = db
}

// Get returns the handle for a named connection, opening it on first use.
// An empty name resolves to the configured default connection.
func (c *Connections) Get(name string) (*sql.DB, error) {
	if name == "" {
		name = c.cfg.DefaultConnection
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if db, ok := c.conns[name]; ok {
		return db, nil
	}

	connCfg, ok := c.cfg.Connections[name]
	if !ok {
		return nil, fmt.Errorf("unknown connection: %s", name)
	}

	db, err := sql.Open(connCfg.Driver, connCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection %s: %w", name, err)
	}

	c.conns[name] = db
	return db, nil
}

// Close closes every open handle.
func (c *Connections) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for name, db := range c.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection %s: %w", name, err)
		}
		delete(c.conns, name)
	}
	return firstErr
}
