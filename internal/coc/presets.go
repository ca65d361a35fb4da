package coc

import "strings"

// presets lists common film and sensor formats with the conventional CoC
// for an 8x10 print viewed at 25 cm.
var presets = []CoC{
	{Description: "35mm (full frame)", Value: 0.030},
	{Description: "APS-H (Canon)", Value: 0.023},
	{Description: "APS-C (Nikon, Pentax, Sony)", Value: 0.020},
	{Description: "APS-C (Canon)", Value: 0.019},
	{Description: "Four Thirds", Value: 0.015},
	{Description: "1\" sensor", Value: 0.011},
	{Description: "2/3\" sensor", Value: 0.008},
	{Description: "6x4.5", Value: 0.047},
	{Description: "6x6", Value: 0.053},
	{Description: "6x7", Value: 0.059},
	{Description: "6x9", Value: 0.067},
	{Description: "4x5", Value: 0.100},
	{Description: "8x10", Value: 0.200},
}

// Presets returns a copy of the built-in CoC list, in display order.
func Presets() []CoC {
	out := make([]CoC, len(presets))
	copy(out, presets)
	return out
}

// FindPreset looks up a preset by description, ignoring case.
func FindPreset(description string) (CoC, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Description, strings.TrimSpace(description)) {
			return p, true
		}
	}
	return CoC{}, false
}
