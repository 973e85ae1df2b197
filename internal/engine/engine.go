// Package engine is the facade of schemakit: it wires the schema loader,
// validator, normalizer, two-tier cache, entity configurator, and query
// builder behind the calls a host application consumes.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schemakit/schemakit/internal/cache"
	"github.com/schemakit/schemakit/internal/config"
	"github.com/schemakit/schemakit/internal/entity"
	"github.com/schemakit/schemakit/internal/query"
	"github.com/schemakit/schemakit/internal/schema"
)

// Engine owns the canonical schema cache and hands out filtered views and
// bound entities. All configuration is explicit: two engines in one process
// are fully independent.
type Engine struct {
	cfg        *config.Config
	log        *zap.Logger
	loader     *schema.Loader
	validator  *schema.Validator
	normalizer *schema.Normalizer
	conns      *Connections

	// Process-local tier. A given (model, connection) is loaded, validated,
	// and normalized at most once per process; repeated lookups return the
	// identical object.
	mu    sync.RWMutex
	local map[string]*schema.Schema

	// Optional shared tier. Failures here are best-effort: the local tier
	// and the loader are unaffected.
	shared    cache.Cache
	sharedTTL time.Duration
}

// Option customizes engine construction.
type Option func(*Engine)

// WithSharedCache installs a shared cache tier. Overrides the configured
// redis tier; tests pass a memory cache here.
func WithSharedCache(c cache.Cache) Option {
	return func(e *Engine) {
		e.shared = c
	}
}

// New creates an engine from explicit configuration. When cfg.Cache.Enabled
// is set the redis shared tier is connected; a redis that is down is a
// construction error rather than a silent downgrade.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		cfg:        cfg,
		log:        log,
		loader:     schema.NewLoader(cfg.SchemaRoot, log),
		validator:  schema.NewValidator(),
		normalizer: schema.NewNormalizer(),
		conns:      NewConnections(cfg),
		local:      make(map[string]*schema.Schema),
		sharedTTL:  time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.shared == nil && cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Config: cache.Config{
				DefaultTTL: e.sharedTTL,
				Prefix:     cfg.Cache.Prefix,
			},
		})
		if err != nil {
			return nil, err
		}
		e.shared = redisCache
	}

	return e, nil
}

// Connections returns the engine's connection manager.
func (e *Engine) Connections() *Connections {
	return e.conns
}

// GetSchema resolves the canonical document for a model reference, loading,
// validating, and normalizing on first use and caching thereafter. The
// returned object is shared: callers must not mutate it.
func (e *Engine) GetSchema(ctx context.Context, ref string) (*schema.Schema, error) {
	parsed, err := schema.ParseReference(ref)
	if err != nil {
		return nil, err
	}
	return e.getSchema(ctx, parsed)
}

func (e *Engine) getSchema(ctx context.Context, ref schema.Reference) (*schema.Schema, error) {
	key := ref.Key()

	e.mu.RLock()
	doc, ok := e.local[key]
	e.mu.RUnlock()
	if ok {
		return doc, nil
	}

	if doc := e.sharedGet(ctx, key); doc != nil {
		e.mu.Lock()
		// Another request may have stored a document while we were reading
		// the shared tier; keep the first one so identity stays stable.
		if existing, ok := e.local[key]; ok {
			doc = existing
		} else {
			e.local[key] = doc
		}
		e.mu.Unlock()
		return doc, nil
	}

	doc, err := e.loader.Load(ref.Model, ref.Connection)
	if err != nil {
		return nil, err
	}
	if err := e.validator.Validate(doc, ref.Model); err != nil {
		return nil, err
	}
	if err := e.normalizer.Normalize(doc); err != nil {
		return nil, err
	}

	e.sharedSet(ctx, key, doc)

	e.mu.Lock()
	if existing, ok := e.local[key]; ok {
		doc = existing
	} else {
		e.local[key] = doc
	}
	e.mu.Unlock()

	return doc, nil
}

// sharedGet reads the shared tier. Any failure is a miss: a broken shared
// cache never breaks a request the loader can serve.
func (e *Engine) sharedGet(ctx context.Context, key string) *schema.Schema {
	if e.shared == nil {
		return nil
	}

	data, err := e.shared.Get(ctx, key)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			e.log.Debug("shared cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}

	var doc schema.Schema
	if err := json.Unmarshal(data, &doc); err != nil {
		e.log.Debug("shared cache entry was not parseable", zap.String("key", key), zap.Error(err))
		return nil
	}

	// Stored entries are canonical JSON; re-normalizing restores the
	// resolved enums the wire form does not carry.
	if err := e.validator.Validate(&doc, doc.Model); err != nil {
		return nil
	}
	if err := e.normalizer.Normalize(&doc); err != nil {
		return nil
	}

	return &doc
}

// sharedSet writes the shared tier, best-effort. Concurrent first-loads may
// race; the canonical form is deterministic so last write equals first.
func (e *Engine) sharedSet(ctx context.Context, key string, doc *schema.Schema) {
	if e.shared == nil {
		return
	}

	data, err := json.Marshal(doc)
	if err != nil {
		e.log.Debug("failed to serialize schema for shared cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := e.shared.Set(ctx, key, data, e.sharedTTL); err != nil {
		e.log.Debug("shared cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// ClearCache invalidates the cached document for one (model, connection).
func (e *Engine) ClearCache(ctx context.Context, model, connection string) {
	key := schema.Reference{Model: model, Connection: connection}.Key()

	e.mu.Lock()
	delete(e.local, key)
	e.mu.Unlock()

	if e.shared != nil {
		if err := e.shared.Delete(ctx, key); err != nil {
			e.log.Debug("shared cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// ClearAllCache invalidates every cached document.
func (e *Engine) ClearAllCache(ctx context.Context) {
	e.mu.Lock()
	e.local = make(map[string]*schema.Schema)
	e.mu.Unlock()

	if e.shared != nil {
		if err := e.shared.Clear(ctx); err != nil {
			e.log.Debug("shared cache clear failed", zap.Error(err))
		}
	}
}

// FilterSchemaForContext reduces a canonical document to the view for one
// context name or comma-joined set.
func (e *Engine) FilterSchemaForContext(doc *schema.Schema, context string) *schema.View {
	return schema.FilterForContext(doc, context)
}

// FilterSchemaWithRelated filters the base document and additionally loads
// and filters every related schema referenced by its details and
// relationships. Related documents that fail to load are skipped and logged:
// a missing related table never prevents rendering the base one.
func (e *Engine) FilterSchemaWithRelated(
	ctx context.Context,
	doc *schema.Schema,
	context string,
	includeRelated bool,
	relatedContext string,
	connection string,
) *schema.View {
	view := schema.FilterForContext(doc, context)
	if !includeRelated {
		return view
	}
	if relatedContext == "" {
		relatedContext = context
	}

	view.Related = make(map[string]*schema.View)
	for _, name := range relatedModelNames(doc) {
		related, err := e.getSchema(ctx, schema.Reference{Model: name, Connection: connection})
		if err != nil {
			e.log.Warn("skipping related schema",
				zap.String("base", doc.Model),
				zap.String("related", name),
				zap.Error(err))
			continue
		}
		view.Related[name] = schema.FilterForContext(related, relatedContext)
	}

	return view
}

// relatedModelNames collects the distinct table names a document references
// through details and relationships, in declaration order.
func relatedModelNames(doc *schema.Schema) []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range doc.Details {
		if d.Model != "" && !seen[d.Model] {
			seen[d.Model] = true
			names = append(names, d.Model)
		}
	}
	for _, rel := range doc.Relationships {
		if rel.Name != "" && !seen[rel.Name] {
			seen[rel.Name] = true
			names = append(names, rel.Name)
		}
	}
	return names
}

// GetModelInstance returns a bound entity for a model reference, ready for
// create/read/update/delete.
func (e *Engine) GetModelInstance(ctx context.Context, ref string) (*entity.Entity, error) {
	parsed, err := schema.ParseReference(ref)
	if err != nil {
		return nil, err
	}

	doc, err := e.getSchema(ctx, parsed)
	if err != nil {
		return nil, err
	}

	opts := entity.ConfigureOptions{
		Connection:        parsed.Connection,
		DefaultConnection: e.cfg.DefaultConnection,
	}
	db, err := e.conns.Get(entity.ResolveConnection(doc, opts))
	if err != nil {
		return nil, err
	}

	return entity.Configure(doc, db, opts, e.log), nil
}

// List executes a listing query against a model's table.
func (e *Engine) List(ctx context.Context, ref string, req query.ListRequest) (*query.ListResult, error) {
	parsed, err := schema.ParseReference(ref)
	if err != nil {
		return nil, err
	}

	doc, err := e.getSchema(ctx, parsed)
	if err != nil {
		return nil, err
	}

	db, err := e.connectionFor(doc, parsed.Connection)
	if err != nil {
		return nil, err
	}

	return query.NewBuilder(doc, db, e.log).List(ctx, req)
}

// ListRelated executes a nested relationship listing: the rows of the
// related table reachable from one parent row, using whatever join strategy
// the base document declares for the relation.
func (e *Engine) ListRelated(
	ctx context.Context,
	ref string,
	parentID interface{},
	relation string,
	req query.ListRequest,
) (*query.RelatedResult, error) {
	parsed, err := schema.ParseReference(ref)
	if err != nil {
		return nil, err
	}

	doc, err := e.getSchema(ctx, parsed)
	if err != nil {
		return nil, err
	}

	relatedDoc, err := e.getSchema(ctx, schema.Reference{Model: relation, Connection: parsed.Connection})
	if err != nil {
		return nil, err
	}

	db, err := e.connectionFor(doc, parsed.Connection)
	if err != nil {
		return nil, err
	}

	return query.NewBuilder(doc, db, e.log).ListRelated(ctx, relatedDoc, parentID, relation, req)
}

func (e *Engine) connectionFor(doc *schema.Schema, requestConn string) (*sql.DB, error) {
	opts := entity.ConfigureOptions{
		Connection:        requestConn,
		DefaultConnection: e.cfg.DefaultConnection,
	}
	return e.conns.Get(entity.ResolveConnection(doc, opts))
}
