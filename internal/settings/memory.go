package settings

import "context"

// memoryBackend keeps blobs in a map. Blobs are copied in and out so
// callers never alias stored data.
type memoryBackend struct {
	values map[string][]byte
}

// NewMemory returns a Store that lives only as long as the process.
func NewMemory() *KV {
	return newKV(KindMemory, &memoryBackend{values: make(map[string][]byte)})
}

func (m *memoryBackend) load(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *memoryBackend) store(_ context.Context, key string, value []byte) error {
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryBackend) remove(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memoryBackend) flush(context.Context) error { return nil }

func (m *memoryBackend) close() error { return nil }
