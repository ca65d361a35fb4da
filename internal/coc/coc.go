package coc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Dictionary keys used by AsDictionary and FromDictionary.
const (
	KeyDescription = "description"
	KeyValue       = "value"
)

// ErrMalformed is returned when a dictionary does not describe a valid CoC.
var ErrMalformed = errors.New("malformed coc")

// CoC is a circle of confusion: the largest blur spot (in mm on the sensor)
// still perceived as a point. It is a plain value; copying a CoC copies it.
type CoC struct {
	Description string  `json:"description" yaml:"description"` // e.g., "35mm (full frame)"
	Value       float64 `json:"value" yaml:"value"`             // diameter in mm, e.g., 0.030
}

// New returns a CoC after checking that value is a positive, finite number.
func New(description string, value float64) (CoC, error) {
	c := CoC{Description: description, Value: value}
	if err := c.Validate(); err != nil {
		return CoC{}, err
	}
	return c, nil
}

// Validate reports whether the CoC can be used in depth of field calculations.
func (c CoC) Validate() error {
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) || c.Value <= 0 {
		return fmt.Errorf("coc value must be > 0, got %g", c.Value)
	}
	return nil
}

// AsDictionary returns the serializable key-value form of the CoC.
func (c CoC) AsDictionary() map[string]any {
	return map[string]any{
		KeyDescription: c.Description,
		KeyValue:       c.Value,
	}
}

// FromDictionary rebuilds a CoC from the output of AsDictionary, after it has
// been through a JSON or YAML round trip.
func FromDictionary(d map[string]any) (CoC, error) {
	if d == nil {
		return CoC{}, fmt.Errorf("%w: nil dictionary", ErrMalformed)
	}
	desc, ok := d[KeyDescription].(string)
	if !ok {
		return CoC{}, fmt.Errorf("%w: %q missing or not a string", ErrMalformed, KeyDescription)
	}
	raw, present := d[KeyValue]
	if !present {
		return CoC{}, fmt.Errorf("%w: %q missing", ErrMalformed, KeyValue)
	}
	value, ok := toFloat(raw)
	if !ok {
		return CoC{}, fmt.Errorf("%w: %q is %T, want number", ErrMalformed, KeyValue, raw)
	}
	c := CoC{Description: desc, Value: value}
	if err := c.Validate(); err != nil {
		return CoC{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, nil
}

// String formats the CoC for listings.
func (c CoC) String() string {
	return fmt.Sprintf("%s (%.3f mm)", c.Description, c.Value)
}

// toFloat accepts every numeric type the JSON and YAML decoders produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
