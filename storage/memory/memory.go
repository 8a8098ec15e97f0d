// Package memory provides an in-memory implementation of document.Store.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// Storage implements document.Store, document.Indexer and document.Deleter
// using in-memory maps
type Storage struct {
	mu   sync.RWMutex
	docs map[string]map[string]map[string]any // collection -> id -> data

	// collection -> field -> indexed value -> id
	unique map[string]map[string]map[string]string
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		docs:   make(map[string]map[string]map[string]any),
		unique: make(map[string]map[string]map[string]string),
	}
}

// Insert implements document.Store
func (s *Storage) Insert(_ context.Context, collection, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(collection)
	if _, ok := coll[id]; ok {
		return fmt.Errorf("%w: %s/%s", document.ErrDuplicateKey, collection, id)
	}
	if err := s.checkUnique(collection, id, data); err != nil {
		return err
	}

	// Store a copy to prevent external mutations
	coll[id] = document.Clone(data)
	s.index(collection, id, data)
	return nil
}

// Replace implements document.Store
func (s *Storage) Replace(_ context.Context, collection, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(collection)
	old, ok := coll[id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	}
	if err := s.checkUnique(collection, id, data); err != nil {
		return err
	}

	s.unindex(collection, old)
	coll[id] = document.Clone(data)
	s.index(collection, id, data)
	return nil
}

// Get implements document.Store
func (s *Storage) Get(_ context.Context, collection, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	}
	return document.Clone(data), nil
}

// Delete implements document.Deleter
func (s *Storage) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.docs[collection][id]
	if !ok {
		return nil
	}
	s.unindex(collection, data)
	delete(s.docs[collection], id)
	return nil
}

// EnsureUniqueIndex implements document.Indexer.
// Building the index fails with ErrDuplicateKey when stored documents already collide.
func (s *Storage) EnsureUniqueIndex(_ context.Context, collection, field string) error {
	if err := document.ValidatePath(field); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields := s.unique[collection]
	if fields == nil {
		fields = make(map[string]map[string]string)
		s.unique[collection] = fields
	}
	if _, ok := fields[field]; ok {
		return nil
	}

	idx := make(map[string]string)
	for id, data := range s.docs[collection] {
		key, ok := indexKey(data, field)
		if !ok {
			continue
		}
		if owner, taken := idx[key]; taken {
			return fmt.Errorf("%w: %s.%s shared by %s and %s", document.ErrDuplicateKey, collection, field, owner, id)
		}
		idx[key] = id
	}
	fields[field] = idx
	return nil
}

// Len returns the number of documents in collection
func (s *Storage) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

func (s *Storage) collection(name string) map[string]map[string]any {
	coll, ok := s.docs[name]
	if !ok {
		coll = make(map[string]map[string]any)
		s.docs[name] = coll
	}
	return coll
}

func (s *Storage) checkUnique(collection, id string, data map[string]any) error {
	for field, idx := range s.unique[collection] {
		key, ok := indexKey(data, field)
		if !ok {
			continue
		}
		if owner, taken := idx[key]; taken && owner != id {
			return fmt.Errorf("%w: %s.%s", document.ErrDuplicateKey, collection, field)
		}
	}
	return nil
}

func (s *Storage) index(collection, id string, data map[string]any) {
	for field, idx := range s.unique[collection] {
		if key, ok := indexKey(data, field); ok {
			idx[key] = id
		}
	}
}

func (s *Storage) unindex(collection string, data map[string]any) {
	for field, idx := range s.unique[collection] {
		if key, ok := indexKey(data, field); ok {
			delete(idx, key)
		}
	}
}

func indexKey(data map[string]any, field string) (string, bool) {
	return document.IndexValue(data, field)
}
