package storage

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// InmemBackendType keeps records in memory.
	InmemBackendType = "inmem"
	// BadgerBackendType keeps records in a badger database.
	BadgerBackendType = "badger"
	// BoltBackendType keeps records in a bbolt file.
	BoltBackendType = "bolt"
)

// ErrKeyNotFound is returned by Backend.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// Backend is an ordered key-value store.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error

	// Iterate calls fn for each key starting with prefix, in key order.
	Iterate(prefix []byte, fn func(key, value []byte) error) error

	Close() error
}

// NewBackend opens a backend of the given type. path is ignored for inmem.
func NewBackend(backendType string, path string, logger *logrus.Entry) (Backend, error) {
	switch backendType {
	case InmemBackendType, "":
		return NewInmemBackend(), nil
	case BadgerBackendType:
		return NewBadgerBackend(path, logger)
	case BoltBackendType:
		return NewBoltBackend(path)
	default:
		return nil, fmt.Errorf("unknown store type %q", backendType)
	}
}

// InmemBackend is a Backend on a map.
type InmemBackend struct {
	lock sync.RWMutex
	data map[string][]byte
}

// NewInmemBackend ...
func NewInmemBackend() *InmemBackend {
	return &InmemBackend{data: make(map[string][]byte)}
}

// Get implements Backend.
func (b *InmemBackend) Get(key []byte) ([]byte, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	v, ok := b.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements Backend.
func (b *InmemBackend) Set(key, value []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.data[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete implements Backend.
func (b *InmemBackend) Delete(key []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.data, string(key))
	return nil
}

// Iterate implements Backend.
func (b *InmemBackend) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	b.lock.RLock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = b.data[k]
	}
	b.lock.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Backend.
func (b *InmemBackend) Close() error {
	return nil
}
