package optics

import (
	"fmt"
	"math"
)

// MmPerMetre converts subject distances given in metres to the mm used here.
const MmPerMetre = 1000.0

// ZeissDivisor is the sensor diagonal / CoC ratio of the Zeiss formula.
const ZeissDivisor = 1500.0

// Params are the inputs of a depth of field calculation. Lengths are in mm.
type Params struct {
	FocalLengthMm float64 // e.g., 50
	Aperture      float64 // f-number, e.g., 8 for f/8
	CoCMm         float64 // circle of confusion of the selected camera
	DistanceMm    float64 // subject (focus) distance measured from the lens
}

// Result holds the computed limits. Far is +Inf when the focus distance is
// at or beyond the hyperfocal distance.
type Result struct {
	HyperfocalMm float64 `json:"hyperfocal_mm"`
	NearMm       float64 `json:"near_mm"`
	FarMm        float64 `json:"far_mm"`
	TotalMm      float64 `json:"total_mm"`
}

// Validate checks that every parameter is a positive, finite number.
func (p Params) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"focal_length_mm", p.FocalLengthMm},
		{"aperture", p.Aperture},
		{"coc_mm", p.CoCMm},
		{"distance_mm", p.DistanceMm},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %g", c.name, c.value)
		}
	}
	return nil
}

// CoCFromSensor derives a circle of confusion from the sensor size.
// Formula: CoC = sqrt(width² + height²) / 1500
func CoCFromSensor(widthMm, heightMm float64) (float64, error) {
	if widthMm <= 0 || heightMm <= 0 || math.IsNaN(widthMm) || math.IsNaN(heightMm) ||
		math.IsInf(widthMm, 0) || math.IsInf(heightMm, 0) {
		return 0, fmt.Errorf("sensor dimensions must be > 0, got %gx%g", widthMm, heightMm)
	}
	return math.Hypot(widthMm, heightMm) / ZeissDivisor, nil
}

// Hyperfocal returns the hyperfocal distance in mm.
// Formula: H = f² / (N × c) + f
func Hyperfocal(focalMm, aperture, cocMm float64) float64 {
	return focalMm*focalMm/(aperture*cocMm) + focalMm
}

// DepthOfField computes the near and far limits of acceptable sharpness.
// Near = s(H − f) / (H + s − 2f), Far = s(H − f) / (H − s)
func DepthOfField(p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if p.DistanceMm <= p.FocalLengthMm {
		return Result{}, fmt.Errorf("distance %.0f mm must exceed focal length %.0f mm", p.DistanceMm, p.FocalLengthMm)
	}
	f, s := p.FocalLengthMm, p.DistanceMm
	h := Hyperfocal(f, p.Aperture, p.CoCMm)

	res := Result{HyperfocalMm: h}
	res.NearMm = s * (h - f) / (h + s - 2*f)
	if s >= h {
		res.FarMm = math.Inf(1)
		res.TotalMm = math.Inf(1)
		return res, nil
	}
	res.FarMm = s * (h - f) / (h - s)
	res.TotalMm = res.FarMm - res.NearMm
	return res, nil
}
