package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends opens one store of each kind, closed at test cleanup.
func backends(t *testing.T) map[string]*KV {
	t.Helper()
	dir := t.TempDir()

	file, err := OpenFile(filepath.Join(dir, "settings.yaml"))
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(dir, "settings.sqlite"))
	require.NoError(t, err)

	stores := map[string]*KV{
		KindMemory: NewMemory(),
		KindFile:   file,
		KindSQLite: db,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

// ---------- Store contract ----------

func TestStore_AbsentKeys(t *testing.T) {
	ctx := context.Background()
	for kind, s := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			arr, err := s.Array(ctx, "cameras")
			require.NoError(t, err)
			assert.Nil(t, arr)

			_, ok, err := s.Int(ctx, "selected")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, s.Remove(ctx, "nothing-here"))
		})
	}
}

func TestStore_ArrayRoundTrip(t *testing.T) {
	ctx := context.Background()
	in := []map[string]any{
		{"identifier": 1, "description": "50mm", "coc": map[string]any{"description": "35mm", "value": 0.03}},
		{"identifier": 2, "description": "85mm"},
	}
	for kind, s := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			require.NoError(t, s.SetArray(ctx, "cameras", in))
			require.NoError(t, s.Synchronize(ctx))

			got, err := s.Array(ctx, "cameras")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, 1.0, got[0]["identifier"])
			assert.Equal(t, "50mm", got[0]["description"])
			assert.Equal(t, map[string]any{"description": "35mm", "value": 0.03}, got[0]["coc"])
			assert.Equal(t, "85mm", got[1]["description"])
		})
	}
}

func TestStore_ArrayIsNotAliased(t *testing.T) {
	ctx := context.Background()
	for kind, s := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			in := []map[string]any{{"description": "a"}}
			require.NoError(t, s.SetArray(ctx, "k", in))
			in[0]["description"] = "mutated"

			got, err := s.Array(ctx, "k")
			require.NoError(t, err)
			got[0]["description"] = "mutated again"

			again, err := s.Array(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "a", again[0]["description"])
		})
	}
}

func TestStore_SetArrayNilStoresEmpty(t *testing.T) {
	ctx := context.Background()
	for kind, s := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			require.NoError(t, s.SetArray(ctx, "k", nil))
			got, err := s.Array(ctx, "k")
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestStore_IntRoundTripAndRemove(t *testing.T) {
	ctx := context.Background()
	for kind, s := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			require.NoError(t, s.SetInt(ctx, "selected", 42))
			v, ok, err := s.Int(ctx, "selected")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 42, v)

			require.NoError(t, s.Remove(ctx, "selected"))
			_, ok, err = s.Int(ctx, "selected")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_TypeMismatch(t *testing.T) {
	ctx := context.Background()
	for kind, s := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			require.NoError(t, s.SetInt(ctx, "n", 7))
			_, err := s.Array(ctx, "n")
			assert.ErrorIs(t, err, ErrTypeMismatch)

			require.NoError(t, s.SetArray(ctx, "a", []map[string]any{{"x": 1}}))
			_, _, err = s.Int(ctx, "a")
			assert.ErrorIs(t, err, ErrTypeMismatch)
		})
	}
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	ctx := context.Background()
	for kind, s := range backends(t) {
		t.Run(kind, func(t *testing.T) {
			assert.Error(t, s.SetInt(ctx, " ", 1))
		})
	}
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemory()
	assert.ErrorIs(t, s.SetInt(ctx, "k", 1), context.Canceled)
}

func TestStore_ClosedRejectsCalls(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.SetInt(ctx, "k", 1), ErrClosed)
	_, err := s.Array(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Synchronize(ctx), ErrClosed)
}

// ---------- Persistence across reopen ----------

func TestFile_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.SetArray(ctx, "cameras", []map[string]any{{"identifier": 3, "description": "Nikon D90"}}))
	require.NoError(t, s.SetInt(ctx, "selectedCameraIdentifier", 3))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Nikon D90")

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	defer reopened.Close()
	arr, err := reopened.Array(ctx, "cameras")
	require.NoError(t, err)
	require.Len(t, arr, 1)
	assert.Equal(t, "Nikon D90", arr[0]["description"])
	sel, ok, err := reopened.Int(ctx, "selectedCameraIdentifier")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, sel)
}

func TestFile_NotWrittenUntilSynchronize(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.SetInt(ctx, "k", 1))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Synchronize(ctx))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{{invalid yaml!!!!"), 0o644))
	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestFile_EmptyPath(t *testing.T) {
	_, err := OpenFile("")
	assert.Error(t, err)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.sqlite")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.SetInt(ctx, "selectedCameraIdentifier", 9))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err := reopened.Int(ctx, "selectedCameraIdentifier")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 9, v)
}

func TestSQLite_PathWithURIDelimiters(t *testing.T) {
	ctx := context.Background()
	cases := []string{"what?", "take#2", "100%", "a b"}
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), name)
			path := filepath.Join(dir, "settings.sqlite")

			s, err := OpenSQLite(path)
			require.NoError(t, err)
			require.NoError(t, s.SetInt(ctx, "selectedCameraIdentifier", 4))
			require.NoError(t, s.Close())

			_, err = os.Stat(path)
			require.NoError(t, err, "database lands at the literal path")

			reopened, err := OpenSQLite(path)
			require.NoError(t, err)
			defer reopened.Close()
			v, ok, err := reopened.Int(ctx, "selectedCameraIdentifier")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 4, v)
		})
	}
}

func TestSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}

// ---------- Open ----------

func TestOpen_Kinds(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		kind string
		path string
		want string
	}{
		{"", "", KindMemory},
		{"memory", "", KindMemory},
		{"FILE", filepath.Join(dir, "a.yaml"), KindFile},
		{"sqlite", filepath.Join(dir, "a.sqlite"), KindSQLite},
	}
	for _, tc := range cases {
		t.Run(tc.want+"_"+tc.kind, func(t *testing.T) {
			s, err := Open(tc.kind, tc.path)
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, tc.want, s.Kind())
		})
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open("plist", "x")
	assert.Error(t, err)
}

// ---------- Migrations ----------

func TestExtractUp(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (x INT);\n", extractUp(content))
	assert.Equal(t, "SELECT 1;", extractUp("SELECT 1;"))
}
