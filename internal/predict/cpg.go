// Package predict implements the deterministic CpG-density placeholder model.
//
// The model counts "CG" dinucleotides: a point readout yields one smoothed
// density per sequence, a track readout yields a per-base sliding-window
// density. It stands in for a real inference backend and exists so the
// request/response contract can be exercised end to end.
package predict

import (
	"math"
	"strings"
)

// Supported readout granularities.
const (
	ReadoutPoint = "point"
	ReadoutTrack = "track"
)

// Prediction scales.
const (
	ScaleLinear = "linear"
	ScaleLog    = "log"
)

const (
	// epsilon smooths zero counts so a log scale never sees log2(0).
	epsilon = 1e-9

	// trackWindowSize is the sliding-window width for track readouts.
	trackWindowSize = 50

	// TrackBinSize is the per-position resolution reported for track readouts.
	TrackBinSize = 1
)

// Predict computes the CpG predictions for every sequence. scaleRequested may
// be empty when the task did not ask for a scale; the scale actually applied
// is returned alongside the predictions.
//
// Sequences are assumed preprocessed: non-empty and drawn from the model
// alphabet. Point readouts produce a single-element slice per sequence, track
// readouts one value per base position.
func Predict(sequences map[string]string, readout, scaleRequested string) (map[string][]float64, string) {
	scale := scaleRequested
	if scale == "" {
		scale = ScaleLinear
	}

	predictions := make(map[string][]float64, len(sequences))
	switch readout {
	case ReadoutPoint:
		for id, s := range sequences {
			predictions[id] = []float64{pointDensity(s, scale)}
		}
	case ReadoutTrack:
		for id, s := range sequences {
			predictions[id] = trackDensity(s, scale)
		}
	}
	return predictions, scale
}

// pointDensity returns the smoothed mean CpG density of a sequence: the number
// of positions starting a "CG" pair, smoothed by epsilon, divided by length.
func pointDensity(seq, scale string) float64 {
	s := strings.ToUpper(seq)

	count := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == 'C' && s[i+1] == 'G' {
			count++
		}
	}

	mean := (float64(count) + epsilon) / float64(len(s))
	if scale == ScaleLog {
		return math.Log2(mean)
	}
	return mean
}

// trackDensity returns the per-base CpG density: for each position a symmetric
// window clipped to the sequence bounds, the "CG" count within the clipped
// window divided by the clipped length, scaled to CpGs per 100 bp.
//
// The count is taken on the clipped substring directly, so occurrences near
// window edges contribute to every window that contains them. That boundary
// behavior is part of the contract and must not be "fixed" into a rolling
// deduplicated count.
func trackDensity(seq, scale string) []float64 {
	s := strings.ToUpper(seq)
	n := len(s)
	half := trackWindowSize / 2

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half
		if end > n {
			end = n
		}

		count := strings.Count(s[start:end], "CG")
		density := float64(count) / float64(end-start) * 100

		if scale == ScaleLog {
			density = math.Log2(density + epsilon)
		}
		out[i] = density
	}
	return out
}
