// Package settings provides the persistent key-value store that camera
// records and the selected-camera setting live in. Values are kept as JSON
// blobs so every backend returns the same Go types (string, float64, bool,
// []any, map[string]any).
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Backend kinds accepted by Open.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindSQLite = "sqlite"
)

var (
	// ErrTypeMismatch is returned when a key holds a value of another type
	// than the one requested.
	ErrTypeMismatch = errors.New("settings value has unexpected type")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("settings store is closed")
)

// Store is a synchronous key-value settings store in the manner of a
// platform preferences database.
type Store interface {
	// Array returns the array of dictionaries under key, or nil when the key is absent.
	Array(ctx context.Context, key string) ([]map[string]any, error)
	// SetArray replaces the whole array under key.
	SetArray(ctx context.Context, key string, value []map[string]any) error
	// Int returns the integer under key; ok is false when the key is absent.
	Int(ctx context.Context, key string) (value int, ok bool, err error)
	// SetInt stores an integer under key.
	SetInt(ctx context.Context, key string, value int) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Synchronize commits pending writes to durable storage.
	Synchronize(ctx context.Context) error
	// Close releases the backend. Pending writes are synchronized first.
	Close() error
}

// backend is the raw blob layer each storage implementation provides.
type backend interface {
	load(ctx context.Context, key string) ([]byte, bool, error)
	store(ctx context.Context, key string, value []byte) error
	remove(ctx context.Context, key string) error
	flush(ctx context.Context) error
	close() error
}

// KV implements Store on top of a backend. All calls are serialized.
type KV struct {
	mu     sync.Mutex
	kind   string
	b      backend
	closed bool
}

var _ Store = (*KV)(nil)

func newKV(kind string, b backend) *KV {
	return &KV{kind: kind, b: b}
}

// Open selects a backend by kind. path is ignored for the memory backend.
func Open(kind, path string) (*KV, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindMemory, "":
		return NewMemory(), nil
	case KindFile:
		return OpenFile(path)
	case KindSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported settings store kind: %s", kind)
	}
}

// Kind returns the backend kind (memory, file or sqlite).
func (s *KV) Kind() string {
	return s.kind
}

// Array implements Store.
func (s *KV) Array(ctx context.Context, key string) ([]map[string]any, error) {
	raw, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	// Numbers stay json.Number so integers above 2^53 survive the round trip.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out []map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: key %q is not an array of dictionaries", ErrTypeMismatch, key)
	}
	return out, nil
}

// SetArray implements Store.
func (s *KV) SetArray(ctx context.Context, key string, value []map[string]any) error {
	if value == nil {
		value = []map[string]any{}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.put(ctx, key, raw)
}

// Int implements Store.
func (s *KV) Int(ctx context.Context, key string) (int, bool, error) {
	raw, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, false, fmt.Errorf("%w: key %q is not a number", ErrTypeMismatch, key)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false, fmt.Errorf("%w: key %q is not an integer", ErrTypeMismatch, key)
	}
	return int(v), true, nil
}

// SetInt implements Store.
func (s *KV) SetInt(ctx context.Context, key string, value int) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.put(ctx, key, raw)
}

// Remove implements Store.
func (s *KV) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, key); err != nil {
		return err
	}
	if err := s.b.remove(ctx, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Synchronize implements Store.
func (s *KV) Synchronize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.b.flush(ctx); err != nil {
		return fmt.Errorf("synchronize %s settings: %w", s.kind, err)
	}
	return nil
}

// Close implements Store. Closing twice is a no-op.
func (s *KV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	flushErr := s.b.flush(context.Background())
	closeErr := s.b.close()
	return errors.Join(flushErr, closeErr)
}

func (s *KV) get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, key); err != nil {
		return nil, false, err
	}
	raw, ok, err := s.b.load(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load %q: %w", key, err)
	}
	return raw, ok, nil
}

func (s *KV) put(ctx context.Context, key string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, key); err != nil {
		return err
	}
	if err := s.b.store(ctx, key, raw); err != nil {
		return fmt.Errorf("store %q: %w", key, err)
	}
	return nil
}

func (s *KV) check(ctx context.Context, key string) error {
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("settings key is required")
	}
	return nil
}
