// Package engine wires the storage, schema, execution, and caching layers
// into the single entry point a caller (the CLI, embedders, tests) drives a
// gravix keyspace through: open a directory, apply schema, run queries.
package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"gravix/internal/config"
	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
	"gravix/internal/parser"
	"gravix/internal/querycache"
	"gravix/internal/schemastore"
	"gravix/internal/storage"
	"gravix/internal/storage/recovery"
	"gravix/internal/thing"
)

// instanceCounter bridges core.Manager's InstanceCounter dependency to a
// thing.Manager that cannot exist until the core.Manager it counts against
// already does. It starts out answering zero for every type (matching a
// freshly opened, instance-free keyspace) and is pointed at the real
// manager once both are constructed.
type instanceCounter struct {
	things *thing.Manager
}

func (p *instanceCounter) InstanceCount(id core.TypeID) uint64 {
	if p.things == nil {
		return 0
	}
	return p.things.InstanceCount(id)
}

// Engine is a single opened gravix keyspace: durable storage, the live
// schema and instance managers, and the query cache sitting in front of
// inference, planning, and compilation.
type Engine struct {
	baseDir string
	store   *storage.Store
	schema  *core.Manager
	things  *thing.Manager
	epoch   *core.Epoch
	infer   *inference.Engine
	cache   *querycache.Cache[*compiledQuery]
	log     *zap.Logger

	// schemaMu serializes schema transactions; the store's OpenSchema is
	// exclusive by contract but does not queue callers itself.
	schemaMu sync.Mutex

	checkpointStop chan struct{}
	checkpointDone sync.WaitGroup
}

const defaultCacheSize = 256

// Open recovers baseDir's durability log into a fresh keyspace and returns
// an Engine ready to accept schema and query statements. cfg's cache and
// checkpoint settings govern the opened Engine; cfg.Keyspace.DataDir is
// ignored in favor of baseDir.
func Open(baseDir string, cfg config.Config) (*Engine, error) {
	store, err := storage.Open(baseDir)
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeKeyspaceIO, "open keyspace", err)
	}
	if _, err := store.Recover(); err != nil {
		_ = store.Close()
		return nil, gravixerr.Wrap(gravixerr.CodeRecovery, "recover keyspace", err)
	}

	counter := &instanceCounter{}
	schema, found, err := schemastore.Load(store.OpenRead(), counter)
	if err != nil {
		_ = store.Close()
		return nil, gravixerr.Wrap(gravixerr.CodeRecovery, "restore schema", err)
	}
	if !found {
		schema = core.NewManager(counter)
	}
	things := thing.NewManager(schema)
	counter.things = things
	if err := things.Bootstrap(store.OpenRead()); err != nil {
		_ = store.Close()
		return nil, gravixerr.Wrap(gravixerr.CodeRecovery, "rebuild statistics", err)
	}

	size := cfg.Cache.Size
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := querycache.New[*compiledQuery](size)
	if err != nil {
		_ = store.Close()
		return nil, gravixerr.Wrap(gravixerr.CodeKeyspaceIO, "build query cache", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		_ = store.Close()
		return nil, gravixerr.Wrap(gravixerr.CodeKeyspaceIO, "build logger", err)
	}

	e := &Engine{
		baseDir: baseDir,
		store:   store,
		schema:  schema,
		things:  things,
		epoch:   &core.Epoch{},
		infer:   inference.NewEngine(schema),
		cache:   cache,
		log:     logger,
	}
	e.startCheckpointing(cfg.Checkpoint.Interval())
	return e, nil
}

// startCheckpointing launches a background goroutine folding the store's
// watermark into checkpoints/checkpoint.json every interval, so recovery
// after a restart can skip replaying the whole durability log. A
// non-positive interval disables the goroutine entirely.
func (e *Engine) startCheckpointing(interval time.Duration) {
	if interval <= 0 {
		return
	}
	e.checkpointStop = make(chan struct{})
	e.checkpointDone.Add(1)
	go func() {
		defer e.checkpointDone.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				seq := e.store.Watermark()
				if err := recovery.WriteCheckpoint(e.baseDir, seq); err != nil {
					e.log.Warn("checkpoint write failed", zap.Error(err), zap.Uint64("seq", seq))
					continue
				}
				e.log.Debug("checkpoint written", zap.Uint64("seq", seq))
			case <-e.checkpointStop:
				return
			}
		}
	}()
}

// Close stops background checkpointing, flushes logs, and releases the
// underlying storage handle.
func (e *Engine) Close() error {
	if e.checkpointStop != nil {
		close(e.checkpointStop)
		e.checkpointDone.Wait()
	}
	_ = e.log.Sync()
	return e.store.Close()
}

// Schema returns the live schema manager, for callers that need read access
// to types outside of a query (e.g. a CLI `describe` command).
func (e *Engine) Schema() *core.Manager { return e.schema }

// ExecuteSchema parses and applies a define/undefine/redefine statement
// block, persists the resulting type graph through an exclusive schema
// snapshot, then advances the schema epoch and discards every cached query
// plan since a schema mutation can change inference, planning, or
// compilation outcomes for any previously compiled pipeline.
func (e *Engine) ExecuteSchema(src string) error {
	e.schemaMu.Lock()
	defer e.schemaMu.Unlock()

	sq, err := parser.ParseSchema(src)
	if err != nil {
		return gravixerr.Wrap(gravixerr.CodeParse, "parse schema", err)
	}
	if err := parser.ApplySchema(e.schema, sq); err != nil {
		return err
	}

	snap := e.store.OpenSchema()
	if err := schemastore.Save(&snap.WriteSnapshot, e.schema); err != nil {
		return err
	}
	if err := snap.Commit(); err != nil {
		return err
	}

	newEpoch := e.epoch.Advance()
	e.cache.Purge()
	e.log.Info("schema applied",
		zap.String("kind", sq.Kind),
		zap.Int("statements", len(sq.Stmts)),
		zap.Uint64("epoch", newEpoch),
	)
	return nil
}

func (e *Engine) translate(src string) (*parser.Pipeline, error) {
	q, err := parser.ParsePipeline(src)
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeParse, "parse query", err)
	}
	idx := ir.NewFunctionIndex()
	pipeline, err := parser.NewTranslator(idx).TranslateQuery(q)
	if err != nil {
		return nil, err
	}
	for _, stage := range pipeline.Stages {
		if stage.Block == nil {
			continue
		}
		if err := ir.DetectCycle(stage.Block); err != nil {
			return nil, gravixerr.Wrap(gravixerr.CodeCircularExpression, "check expression bindings", err)
		}
	}
	for _, name := range idx.Names() {
		def, ok := idx.Get(name)
		if !ok {
			continue
		}
		for _, block := range def.Pipeline {
			if err := ir.DetectCycle(block); err != nil {
				return nil, gravixerr.Wrap(gravixerr.CodeCircularExpression, "check function expression bindings", err)
			}
		}
	}
	return pipeline, nil
}
