package camera

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cjeanneret/fieldtools/internal/coc"
	"github.com/cjeanneret/fieldtools/internal/settings"
)

// Settings keys holding the persisted collection and the selection.
const (
	CamerasKey  = "cameras"
	SelectedKey = "selectedCameraIdentifier"
)

// Store manages the ordered collection of cameras kept in a settings store.
// Read-modify-write sequences are serialized by the Store; other writers of
// the same settings keys must go through it as well.
type Store struct {
	mu       sync.Mutex
	settings settings.Store
	log      zerolog.Logger
}

// NewStore returns a camera store backed by s.
func NewStore(s settings.Store, log zerolog.Logger) *Store {
	return &Store{
		settings: s,
		log:      log.With().Str("component", "camera_store").Logger(),
	}
}

// Count returns the number of persisted entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entries(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// FindAll returns every persisted camera in order. Malformed entries are
// logged and skipped.
func (s *Store) FindAll(ctx context.Context) ([]Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findAll(ctx)
}

func (s *Store) findAll(ctx context.Context) ([]Camera, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	cameras := make([]Camera, 0, len(entries))
	for i, d := range entries {
		c, err := FromDictionary(d)
		if err != nil {
			s.log.Warn().Err(err).Int("index", i).Msg("skipping malformed camera entry")
			continue
		}
		cameras = append(cameras, c)
	}
	return cameras, nil
}

// FindAtIndex returns the camera at position index. ok is false when index
// is outside [0, Count) or the entry there is malformed.
func (s *Store) FindAtIndex(ctx context.Context, index int) (Camera, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entries(ctx)
	if err != nil {
		return Camera{}, false, err
	}
	if index < 0 || index >= len(entries) {
		return Camera{}, false, nil
	}
	c, err := FromDictionary(entries[index])
	if err != nil {
		s.log.Warn().Err(err).Int("index", index).Msg("malformed camera entry")
		return Camera{}, false, nil
	}
	return c, true, nil
}

// Find returns the camera with the given identifier.
func (s *Store) Find(ctx context.Context, identifier int) (Camera, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(ctx, identifier)
}

func (s *Store) find(ctx context.Context, identifier int) (Camera, bool, error) {
	cameras, err := s.findAll(ctx)
	if err != nil {
		return Camera{}, false, err
	}
	for _, c := range cameras {
		if c.Identifier == identifier {
			return c, true, nil
		}
	}
	return Camera{}, false, nil
}

// FindSelected returns the camera whose identifier is stored as the
// selection. ok is false when nothing is selected or the selected
// identifier no longer matches a camera.
func (s *Store) FindSelected(ctx context.Context) (Camera, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok, err := s.settings.Int(ctx, SelectedKey)
	if err != nil {
		return Camera{}, false, fmt.Errorf("read selected camera: %w", err)
	}
	if !ok {
		return Camera{}, false, nil
	}
	return s.find(ctx, id)
}

// Select marks the camera with identifier as the selected one.
func (s *Store) Select(ctx context.Context, identifier int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok, err := s.find(ctx, identifier)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("select camera %d: %w", identifier, ErrNotFound)
	}
	if err := s.settings.SetInt(ctx, SelectedKey, identifier); err != nil {
		return fmt.Errorf("select camera %d: %w", identifier, err)
	}
	s.log.Debug().Int("identifier", identifier).Msg("camera selected")
	return s.commit(ctx)
}

// Move relocates the entry at position from to position to, shifting the
// entries in between by one. Both positions must lie in [0, Count).
func (s *Store) Move(ctx context.Context, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entries(ctx)
	if err != nil {
		return err
	}
	n := len(entries)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d with %d cameras: %w", from, to, n, ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}
	moved := entries[from]
	entries = append(entries[:from], entries[from+1:]...)
	entries = append(entries[:to], append([]map[string]any{moved}, entries[to:]...)...)

	if err := s.settings.SetArray(ctx, CamerasKey, entries); err != nil {
		return fmt.Errorf("move camera: %w", err)
	}
	s.log.Debug().Int("from", from).Int("to", to).Msg("camera moved")
	return s.commit(ctx)
}

// Delete removes the persisted entry with c's identifier. When the deleted
// camera was selected, the selection is cleared.
func (s *Store) Delete(ctx context.Context, c Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entries(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(entries, c.Identifier)
	if idx < 0 {
		return fmt.Errorf("delete camera %d: %w", c.Identifier, ErrNotFound)
	}
	// The selection goes first so a failed write never leaves it pointing
	// at a removed camera.
	sel, ok, err := s.settings.Int(ctx, SelectedKey)
	if err != nil {
		return fmt.Errorf("read selected camera: %w", err)
	}
	if ok && sel == c.Identifier {
		if err := s.settings.Remove(ctx, SelectedKey); err != nil {
			return fmt.Errorf("clear selected camera: %w", err)
		}
	}

	entries = append(entries[:idx], entries[idx+1:]...)
	if err := s.settings.SetArray(ctx, CamerasKey, entries); err != nil {
		return fmt.Errorf("delete camera %d: %w", c.Identifier, err)
	}
	s.log.Debug().Int("identifier", c.Identifier).Msg("camera deleted")
	return s.commit(ctx)
}

// Save writes c into the collection: the entry with the same identifier is
// replaced in place, otherwise c is appended.
func (s *Store) Save(ctx context.Context, c Camera) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entries(ctx)
	if err != nil {
		return err
	}
	d := c.AsDictionary()
	if idx := indexOf(entries, c.Identifier); idx >= 0 {
		entries[idx] = d
	} else {
		entries = append(entries, d)
	}
	if err := s.settings.SetArray(ctx, CamerasKey, entries); err != nil {
		return fmt.Errorf("save camera %d: %w", c.Identifier, err)
	}
	s.log.Debug().Int("identifier", c.Identifier).Str("description", c.Description).Msg("camera saved")
	return s.commit(ctx)
}

// Add allocates the next free identifier, appends a new camera with it and
// returns the saved camera.
func (s *Store) Add(ctx context.Context, description string, c coc.CoC) (Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.nextIdentifier(ctx)
	if err != nil {
		return Camera{}, err
	}
	cam, err := New(description, c, id)
	if err != nil {
		return Camera{}, err
	}
	entries, err := s.entries(ctx)
	if err != nil {
		return Camera{}, err
	}
	entries = append(entries, cam.AsDictionary())
	if err := s.settings.SetArray(ctx, CamerasKey, entries); err != nil {
		return Camera{}, fmt.Errorf("add camera %d: %w", id, err)
	}
	s.log.Debug().Int("identifier", id).Str("description", description).Msg("camera added")
	return cam, s.commit(ctx)
}

// NextIdentifier returns one more than the largest identifier in use, or 0
// when the collection is empty.
func (s *Store) NextIdentifier(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextIdentifier(ctx)
}

func (s *Store) nextIdentifier(ctx context.Context) (int, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, d := range entries {
		id, ok := toInt(d[KeyIdentifier])
		if !ok || id < next {
			continue
		}
		if id == math.MaxInt {
			return 0, ErrIdentifiersExhausted
		}
		next = id + 1
	}
	return next, nil
}

// SeedDefaults fills an empty collection with one camera per CoC and
// selects the first. It returns the number of cameras added, which is 0
// when the collection already holds entries.
func (s *Store) SeedDefaults(ctx context.Context, presets []coc.CoC) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entries(ctx)
	if err != nil {
		return 0, err
	}
	if len(entries) > 0 || len(presets) == 0 {
		return 0, nil
	}
	for i, p := range presets {
		c := Camera{Identifier: i, Description: p.Description, CoC: p}
		if err := c.Validate(); err != nil {
			return 0, fmt.Errorf("seed cameras: %w", err)
		}
		entries = append(entries, c.AsDictionary())
	}
	if err := s.settings.SetArray(ctx, CamerasKey, entries); err != nil {
		return 0, fmt.Errorf("seed cameras: %w", err)
	}
	if err := s.settings.SetInt(ctx, SelectedKey, 0); err != nil {
		return 0, fmt.Errorf("seed cameras: %w", err)
	}
	s.log.Info().Int("count", len(presets)).Msg("seeded default cameras")
	return len(presets), s.commit(ctx)
}

func (s *Store) entries(ctx context.Context) ([]map[string]any, error) {
	entries, err := s.settings.Array(ctx, CamerasKey)
	if err != nil {
		return nil, fmt.Errorf("read cameras: %w", err)
	}
	s.log.Trace().Int("entries", len(entries)).Msg("cameras read")
	return entries, nil
}

func (s *Store) commit(ctx context.Context) error {
	if err := s.settings.Synchronize(ctx); err != nil {
		return fmt.Errorf("commit cameras: %w", err)
	}
	s.log.Trace().Msg("cameras committed")
	return nil
}

// indexOf finds the entry with identifier, ignoring entries whose
// identifier cannot be read.
func indexOf(entries []map[string]any, identifier int) int {
	for i, d := range entries {
		if id, ok := toInt(d[KeyIdentifier]); ok && id == identifier {
			return i
		}
	}
	return -1
}
