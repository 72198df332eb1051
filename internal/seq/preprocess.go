// Package seq implements sequence preprocessing for the predictor.
//
// Preprocessing runs after payload validation and before the model: flanking
// context is concatenated onto every sequence, inclusive prediction ranges
// trim the flanked sequences, and the results are re-validated against the
// model alphabet. The transform is pure: it builds a fresh sequence map and
// never mutates the decoded request, so concurrent requests cannot observe
// each other's preprocessing.
package seq

import (
	"sort"
	"strings"

	"github.com/cpg-predict/cpgd/internal/apierr"
	"github.com/cpg-predict/cpgd/internal/payload"
)

// Model alphabet. Case-insensitive; N is allowed as an unknown base.
var validBases = map[rune]bool{
	'A': true,
	'C': true,
	'G': true,
	'T': true,
	'N': true,
}

// Preprocess applies flanking and prediction ranges to a validated payload and
// returns the transformed sequence map.
//
// Flanking precedes trimming: prediction ranges index into post-flank
// coordinates. A readout outside the supported {point, track} subset fails
// with a 400; sequences violating the model alphabet accumulate per id and
// fail together with a 422.
func Preprocess(p map[string]interface{}) (map[string]string, error) {
	sequences := payload.Sequences(p)

	upstream, downstream := payload.FlankSequences(p)
	if upstream != "" || downstream != "" {
		for id, s := range sequences {
			sequences[id] = upstream + s + downstream
		}
	}

	if rv, ok := p["prediction_ranges"]; ok {
		ranges, _ := payload.Map(rv)
		for id, v := range ranges {
			bounds, _ := payload.List(v)
			// Empty ranges leave the sequence untrimmed.
			if len(bounds) != 2 {
				continue
			}
			start, _ := payload.Int(bounds[0])
			end, _ := payload.Int(bounds[1])
			// Inclusive [start, end] on the already-flanked sequence.
			sequences[id] = sequences[id][start : end+1]
		}
	}

	readout, _ := payload.String(p["readout"])
	if readout != "point" && readout != "track" {
		return nil, apierr.BadRequestf("this predictor cannot process '%s' readout type", readout)
	}

	acc := apierr.NewAccumulator(apierr.KeyPredictionFailed)
	for _, id := range sortedIDs(sequences) {
		checkSequence(id, sequences[id], acc)
	}
	if err := acc.Err(); err != nil {
		return nil, err
	}
	return sequences, nil
}

// checkSequence verifies one sequence against the model's input contract:
// non-empty and drawn from the {A, C, G, T, N} alphabet.
func checkSequence(id, s string, acc *apierr.Accumulator) {
	if s == "" {
		acc.Addf("sequence '%s' is empty", id)
		return
	}

	var invalid []string
	seen := map[rune]bool{}
	for _, r := range strings.ToUpper(s) {
		if !validBases[r] && !seen[r] {
			seen[r] = true
			invalid = append(invalid, string(r))
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		acc.Addf("sequence '%s' has invalid character(s): %s", id, strings.Join(invalid, ", "))
	}
}

func sortedIDs(sequences map[string]string) []string {
	ids := make([]string, 0, len(sequences))
	for id := range sequences {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
