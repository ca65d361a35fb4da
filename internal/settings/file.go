package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxFileBytes bounds the size of a settings file read by OpenFile.
const MaxFileBytes = 4 << 20

// fileBackend keeps the whole document in memory and rewrites the YAML file
// on flush when something changed.
type fileBackend struct {
	path   string
	values map[string][]byte
	dirty  bool
}

// OpenFile opens (or prepares to create) a YAML settings document at path.
func OpenFile(path string) (*KV, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	b := &fileBackend{path: filepath.Clean(path), values: make(map[string][]byte)}
	if err := b.read(); err != nil {
		return nil, err
	}
	return newKV(KindFile, b), nil
}

func (f *fileBackend) read() error {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat settings file: %w", err)
	}
	if info.Size() > MaxFileBytes {
		return fmt.Errorf("settings file too large: %d bytes (max %d)", info.Size(), MaxFileBytes)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal yaml: %w", err)
	}
	for k, v := range doc {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("settings key %q: %w", k, err)
		}
		f.values[k] = raw
	}
	return nil
}

func (f *fileBackend) load(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (f *fileBackend) store(_ context.Context, key string, value []byte) error {
	f.values[key] = append([]byte(nil), value...)
	f.dirty = true
	return nil
}

func (f *fileBackend) remove(_ context.Context, key string) error {
	if _, ok := f.values[key]; ok {
		delete(f.values, key)
		f.dirty = true
	}
	return nil
}

// flush writes to a temporary file in the same directory and renames it
// over the document so readers never see a partial write.
func (f *fileBackend) flush(context.Context) error {
	if !f.dirty {
		return nil
	}
	doc := make(map[string]any, len(f.values))
	for k, raw := range f.values {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("settings key %q: %w", k, err)
		}
		doc[k] = yamlNumbers(v)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	f.dirty = false
	return nil
}

func (f *fileBackend) close() error { return nil }

// yamlNumbers replaces json.Number with int64 or float64 so the YAML encoder
// writes plain numbers instead of quoted strings.
func yamlNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = yamlNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = yamlNumbers(e)
		}
		return t
	default:
		return v
	}
}
