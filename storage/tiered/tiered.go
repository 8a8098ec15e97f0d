// Package tiered provides a Hot/Cold tiered document store that combines a
// fast cache (Hot) with a durable store (Cold). Cold is the source of truth;
// Hot failures never fail a write that reached Cold. A Hot copy that could
// not be updated is evicted so reads fall through to Cold.
package tiered

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// Config configures the tiered storage behavior
type Config struct {
	// Hot is the L1 cache storage (e.g., Redis, Memory).
	// It must implement document.Deleter.
	Hot document.Store

	// Cold is the L2 persistence storage (e.g., Postgres, Mongo, Firestore) as the source of truth
	Cold document.Store

	// AsyncHotSync moves Hot writes to a background worker. Until the
	// worker catches up, reads may return the previous Hot copy.
	AsyncHotSync bool

	// SyncBufferSize is the size of the buffered channel for async operations.
	// Default: 1000
	SyncBufferSize int

	// ErrorHandler is called when a Hot operation fails.
	// Essential for monitoring cache drift.
	ErrorHandler func(error)
}

type hotStore interface {
	document.Store
	document.Deleter
}

// Storage implements document.Store with a Hot/Cold strategy:
// - Write-Through: Insert, Replace (Cold, then Hot)
// - Read-Through: Get (Hot, then Cold, then populate Hot)
// - Fan-Out: EnsureUniqueIndex (both tiers concurrently)
type Storage struct {
	hot  hotStore
	cold document.Store
	conf Config

	// Channel for async synchronization
	syncQueue chan func() error
	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a new tiered storage adapter.
func New(config Config) (*Storage, error) {
	if config.Hot == nil || config.Cold == nil {
		return nil, errors.New("tiered storage: both hot and cold storage are required")
	}
	hot, ok := config.Hot.(hotStore)
	if !ok {
		return nil, fmt.Errorf("tiered storage: hot storage %T must implement document.Deleter", config.Hot)
	}

	if config.SyncBufferSize <= 0 {
		config.SyncBufferSize = 1000
	}

	s := &Storage{
		hot:       hot,
		cold:      config.Cold,
		conf:      config,
		syncQueue: make(chan func() error, config.SyncBufferSize),
		shutdown:  make(chan struct{}),
	}

	if config.AsyncHotSync {
		s.startWorker()
	}

	return s, nil
}

// Close drains pending Hot writes and stops the async worker (if enabled).
func (s *Storage) Close() error {
	if s.conf.AsyncHotSync {
		s.closeOnce.Do(func() {
			close(s.shutdown)
			s.wg.Wait()
		})
	}
	return nil
}

// startWorker runs the background synchronization loop.
// Jobs run sequentially so writes to one document keep their order.
func (s *Storage) startWorker() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case job := <-s.syncQueue:
				s.report(job())
			case <-s.shutdown:
				// Drain queue on shutdown
				for {
					select {
					case job := <-s.syncQueue:
						s.report(job())
					default:
						return
					}
				}
			}
		}
	}()
}

// --- Strategy: Write-Through (Cold → Hot) ---

// Insert implements document.Store
func (s *Storage) Insert(ctx context.Context, collection, id string, data map[string]any) error {
	if err := s.cold.Insert(ctx, collection, id, data); err != nil {
		return err
	}
	s.syncHot(ctx, collection, id, data)
	return nil
}

// Replace implements document.Store
func (s *Storage) Replace(ctx context.Context, collection, id string, data map[string]any) error {
	if err := s.cold.Replace(ctx, collection, id, data); err != nil {
		return err
	}
	s.syncHot(ctx, collection, id, data)
	return nil
}

// --- Strategy: Read-Through (Hot → Cold → Populate Hot) ---

// Get implements document.Store
func (s *Storage) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	// 1. Try Hot
	data, err := s.hot.Get(ctx, collection, id)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, document.ErrNotFound) {
		s.report(fmt.Errorf("tiered storage: hot read failed: %w", err))
	}

	// 2. Try Cold (Source of Truth)
	data, err = s.cold.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	// 3. Populate Hot (Read-Repair)
	s.syncHot(ctx, collection, id, data)
	return data, nil
}

// --- Strategy: Fan-Out ---

// EnsureUniqueIndex implements document.Indexer on both tiers concurrently.
// Cold errors are returned; Hot errors are reported to ErrorHandler.
// Tiers that cannot index are skipped.
func (s *Storage) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	g, gctx := errgroup.WithContext(ctx)

	if idx, ok := s.cold.(document.Indexer); ok {
		g.Go(func() error {
			return idx.EnsureUniqueIndex(gctx, collection, field)
		})
	}
	if idx, ok := s.hot.(document.Indexer); ok {
		g.Go(func() error {
			if err := idx.EnsureUniqueIndex(gctx, collection, field); err != nil {
				s.report(fmt.Errorf("tiered storage: hot index failed: %w", err))
			}
			return nil
		})
	}

	return g.Wait()
}

// syncHot writes data to Hot, inserting or replacing as needed
func (s *Storage) syncHot(ctx context.Context, collection, id string, data map[string]any) {
	if !s.conf.AsyncHotSync {
		s.report(s.writeHot(ctx, collection, id, data))
		return
	}

	// Clone data to avoid races if the caller modifies it
	snapshot := document.Clone(data)

	// Attempt to enqueue non-blocking
	select {
	case s.syncQueue <- func() error {
		// Context background ensures completion even if request cancels
		return s.writeHot(context.Background(), collection, id, snapshot)
	}:
	default:
		err := errors.New("tiered storage: sync queue full, dropping hot write")
		s.report(errors.Join(err, s.evictHot(ctx, collection, id)))
	}
}

// writeHot upserts data into Hot. On failure the Hot copy is evicted.
func (s *Storage) writeHot(ctx context.Context, collection, id string, data map[string]any) error {
	err := s.hot.Replace(ctx, collection, id, data)
	if errors.Is(err, document.ErrNotFound) {
		err = s.hot.Insert(ctx, collection, id, data)
	}
	if err != nil {
		err = fmt.Errorf("tiered storage: hot write %s/%s failed: %w", collection, id, err)
		return errors.Join(err, s.evictHot(ctx, collection, id))
	}
	return nil
}

func (s *Storage) evictHot(ctx context.Context, collection, id string) error {
	if err := s.hot.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("tiered storage: hot evict %s/%s failed: %w", collection, id, err)
	}
	return nil
}

func (s *Storage) report(err error) {
	if err != nil && s.conf.ErrorHandler != nil {
		s.conf.ErrorHandler(err)
	}
}
