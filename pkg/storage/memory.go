package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in a map. It is safe for concurrent use.
//
// With a TTL, expired snapshots are invisible to Get immediately and are
// removed by a background goroutine that must be stopped with Stop.
type MemoryStore struct {
	mu            sync.RWMutex
	snapshots     map[string]Snapshot
	ttl           time.Duration
	now           func() time.Time
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryStore creates a store without expiry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]Snapshot),
		now:       time.Now,
	}
}

// NewMemoryStoreWithTTL creates a store whose entries expire ttl after
// FetchedAt. cleanupInterval defaults to one minute.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		snapshots:     make(map[string]Snapshot),
		ttl:           ttl,
		now:           time.Now,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}
	go store.runCleanup()
	return store
}

// Stop shuts down the cleanup goroutine. Safe to call more than once.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}

	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.stopped {
		return
	}
	close(s.stopCleanup)
	<-s.cleanupDone
	s.cleanupTicker.Stop()
	s.stopped = true
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, snap := range s.snapshots {
		if s.expired(snap, now) {
			delete(s.snapshots, key)
		}
	}
}

func (s *MemoryStore) expired(snap Snapshot, now time.Time) bool {
	return s.ttl > 0 && now.Sub(snap.FetchedAt) > s.ttl
}

// Put stores snapshot under its Key, replacing any previous entry.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	if !ValidKey(snapshot.Key) {
		return fmt.Errorf("invalid snapshot key %q", snapshot.Key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Key] = snapshot
	return nil
}

// Get returns the snapshot for key if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, key string) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, found := s.snapshots[key]
	if !found || s.expired(snap, s.now()) {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Len returns the number of stored entries, expired ones included until
// the next cleanup.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Delete removes key and reports whether it existed.
func (s *MemoryStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.snapshots[key]
	delete(s.snapshots, key)
	return existed
}
