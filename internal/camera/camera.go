package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/cjeanneret/fieldtools/internal/coc"
)

// Dictionary keys of a persisted camera entry.
const (
	KeyIdentifier  = "identifier"
	KeyDescription = "description"
	KeyCoC         = "coc"
)

var (
	// ErrNotFound is returned when no persisted camera matches a lookup.
	ErrNotFound = errors.New("camera not found")
	// ErrMalformedRecord is returned when a persisted dictionary lacks a required field.
	ErrMalformedRecord = errors.New("malformed camera record")
	// ErrIndexOutOfRange is returned by Move for a position outside the collection.
	ErrIndexOutOfRange = errors.New("camera index out of range")
	// ErrIdentifiersExhausted is returned when the largest identifier in use is math.MaxInt.
	ErrIdentifiersExhausted = errors.New("no camera identifier left")
)

// Camera is a named camera body and the circle of confusion used for its
// depth of field calculations.
type Camera struct {
	Identifier  int     `json:"identifier"`
	Description string  `json:"description"`
	CoC         coc.CoC `json:"coc"`
}

// New is the designated constructor. identifier must be unique among
// persisted cameras; Store.NextIdentifier returns a free one.
func New(description string, c coc.CoC, identifier int) (Camera, error) {
	cam := Camera{Identifier: identifier, Description: description, CoC: c}
	if err := cam.Validate(); err != nil {
		return Camera{}, err
	}
	return cam, nil
}

// Validate checks the fields a camera needs before it can be saved.
func (c Camera) Validate() error {
	if c.Identifier < 0 {
		return fmt.Errorf("camera identifier must be >= 0, got %d", c.Identifier)
	}
	if err := c.CoC.Validate(); err != nil {
		return fmt.Errorf("camera %d: %w", c.Identifier, err)
	}
	return nil
}

// Copy returns an independent camera with the same field values. CoC is a
// value type, so the copy shares nothing with the receiver.
func (c Camera) Copy() Camera {
	return c
}

// AsDictionary returns the key-value form written into the settings store.
func (c Camera) AsDictionary() map[string]any {
	return map[string]any{
		KeyIdentifier:  c.Identifier,
		KeyDescription: c.Description,
		KeyCoC:         c.CoC.AsDictionary(),
	}
}

// FromDictionary rebuilds a camera from a persisted dictionary.
func FromDictionary(d map[string]any) (Camera, error) {
	if d == nil {
		return Camera{}, fmt.Errorf("%w: nil dictionary", ErrMalformedRecord)
	}
	id, ok := toInt(d[KeyIdentifier])
	if !ok {
		return Camera{}, fmt.Errorf("%w: %q missing or not an integer", ErrMalformedRecord, KeyIdentifier)
	}
	desc, ok := d[KeyDescription].(string)
	if !ok {
		return Camera{}, fmt.Errorf("%w: camera %d: %q missing or not a string", ErrMalformedRecord, id, KeyDescription)
	}
	rawCoC, ok := d[KeyCoC].(map[string]any)
	if !ok {
		return Camera{}, fmt.Errorf("%w: camera %d: %q missing or not a dictionary", ErrMalformedRecord, id, KeyCoC)
	}
	c, err := coc.FromDictionary(rawCoC)
	if err != nil {
		return Camera{}, fmt.Errorf("%w: camera %d: %v", ErrMalformedRecord, id, err)
	}
	return Camera{Identifier: id, Description: desc, CoC: c}, nil
}

// String formats the camera for listings.
func (c Camera) String() string {
	return fmt.Sprintf("#%d %s [%s]", c.Identifier, c.Description, c.CoC)
}

// toInt accepts integral numbers as decoded by JSON (json.Number or float64)
// or YAML (int). Values that do not fit an int exactly are rejected.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
