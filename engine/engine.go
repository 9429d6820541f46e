package engine

import (
	"fmt"
	"time"

	"github.com/my-db-dev/RapidDB/buffer"
	"github.com/my-db-dev/RapidDB/divide"
	"github.com/my-db-dev/RapidDB/pageio"
	"github.com/my-db-dev/RapidDB/storagepool"
	"github.com/my-db-dev/RapidDB/timerthread"
	"github.com/my-db-dev/RapidDB/wire"
)

// Engine owns every subsystem an IndexTree needs: the page-aligned slab,
// the bounded file-handle pool, the page buffer pool, the async divide
// pool, the storage I/O pool and the timer thread. One Engine may back
// several open IndexTree values (one per index file).
type Engine struct {
	Config Config

	Slab    *pageio.Slab
	Handles *pageio.HandlePool
	Buffer  *buffer.Pool
	Storage *storagepool.Pool
	Divide  *divide.Pool
	Timer   *timerthread.Timer
}

// Open opens an on-disk index file at path and wires every subsystem
// together. divider performs the actual leaf split/serialize work
// (normally a *core.Tree); it is supplied by the caller because
// only the tree knows how to allocate page ids and update the parent.
func Open(path string, cfg Config, divider divide.Divider) (*Engine, error) {
	handles, err := pageio.NewHandlePool(path, cfg.PageSize, cfg.MaxPageFileHandles)
	if err != nil {
		return nil, err
	}
	return build(cfg, handles, divider), nil
}

// OpenInMemory builds an Engine backed entirely by memory, for tests and
// ephemeral indexes.
func OpenInMemory(cfg Config, divider divide.Divider) *Engine {
	pf := pageio.OpenMemory(cfg.PageSize)
	handles := pageio.NewInMemoryHandlePool(pf)
	return build(cfg, handles, divider)
}

func build(cfg Config, handles *pageio.HandlePool, divider divide.Divider) *Engine {
	bufPool := buffer.NewPool()
	h := handles.ApplyFile()
	backend := &storagepool.FileBackend{File: h.File()}
	storePool := storagepool.NewPool(backend, cfg.StorageReadWorkers, cfg.StorageWriteWorkers)
	handles.Release(h)

	dividePool := divide.NewPool(divider, lookupFromBuffer(bufPool), time.Duration(cfg.DivideMinAgeMillis)*time.Millisecond)
	dividePool.Start()

	tm := timerthread.NewTimer(cfg.TimerLongTaskWorkers)
	// buffer.Pool.sweep otherwise only runs reactively from Insert when a
	// shard is already over quota; registering it here gives it the
	// periodic ~5s cadence spec §4.10 also calls for.
	_ = tm.SchedulePeriodic(timerthread.Job{Name: "buffer-sweep", Run: bufPool.Sweep}, fmt.Sprintf("@every %dms", cfg.BufferSweepIntervalMillis))
	tm.Start()

	return &Engine{
		Config:  cfg,
		Slab:    pageio.NewSlab(cfg.SlabCeilingBytes),
		Handles: handles,
		Buffer:  bufPool,
		Storage: storePool,
		Divide:  dividePool,
		Timer:   tm,
	}
}

// Close stops the divide pool (draining its queue, which may still submit
// page writes) and the timer, then drains pending writes and closes every
// file handle.
func (e *Engine) Close() error {
	e.Divide.Close()
	e.Timer.Stop()
	e.Storage.Close()
	return e.Handles.Close()
}

// lookupFromBuffer adapts buffer.Pool.Find to the narrower divide.Page
// view the divide pool needs. The concrete page types (cache.Leaf etc.)
// satisfy both interfaces through their embedded cache.Base, so the type
// assertion always succeeds for any page this engine ever inserts.
func lookupFromBuffer(pool *buffer.Pool) func(wire.FileID, wire.PageID) divide.Page {
	return func(fileID wire.FileID, pageID wire.PageID) divide.Page {
		pg, ok := pool.Find(fileID, pageID)
		if !ok {
			return nil
		}
		dp, ok := pg.(divide.Page)
		if !ok {
			return nil
		}
		return dp
	}
}
