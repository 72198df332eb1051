package payload

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cpg-predict/cpgd/internal/apierr"
)

// Validate runs the staged validation state machine over a decoded request.
//
// Stages are gated: a stage that finds violations raises before later stages
// dereference the keys it was guarding. Within a stage every check runs and
// accumulates, so the caller always receives the full union of violations of
// the stage that failed.
func Validate(p map[string]interface{}) error {
	acc := apierr.NewAccumulator(apierr.KeyBadRequest)

	// Stage 1: top-level mandatory keys.
	checkMandatoryKeys(p, acc)
	if err := acc.Err(); err != nil {
		return err
	}

	// Stage 2: container shape. Later checks index into prediction_tasks and
	// sequences unconditionally, so a payload with the right keys but the
	// wrong container types has to stop here.
	tasks := checkShape(p, acc)
	if err := acc.Err(); err != nil {
		return err
	}

	// Stage 3: per-task mandatory keys.
	checkTaskMandatoryKeys(tasks, acc)
	if err := acc.Err(); err != nil {
		return err
	}

	// Stage 4: all remaining checks accumulate without early exit.
	checkReadout(p["readout"], acc)
	checkTaskScalarField(tasks, "name", acc)
	checkTaskType(tasks, acc)
	checkTaskScalarField(tasks, "cell_type", acc)
	checkTaskScalarField(tasks, "species", acc)
	checkTaskScale(tasks, acc)

	if rv, ok := p["prediction_ranges"]; ok {
		if ranges, isMap := Map(rv); isMap {
			sequences, _ := Map(p["sequences"])
			checkSequenceIDs(ranges, sequences, acc)
			checkRanges(ranges, sequences, acc)
		} else {
			acc.Add("'prediction_ranges' should be an object of sequence id to range")
		}
	}
	if v, ok := p["upstream_seq"]; ok {
		checkScalarString("upstream_seq", v, acc)
	}
	if v, ok := p["downstream_seq"]; ok {
		checkScalarString("downstream_seq", v, acc)
	}

	return acc.Err()
}

// checkMandatoryKeys reports the full sorted set of missing top-level keys.
func checkMandatoryKeys(p map[string]interface{}, acc *apierr.Accumulator) {
	var missing []string
	for _, key := range mandatoryKeys {
		if _, ok := p[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		acc.Addf("The following mandatory top-level keys are missing from the request: %s",
			strings.Join(missing, ", "))
	}
}

// checkShape verifies the container types the later stages dereference:
// prediction_tasks must be a list of objects and sequences an object of
// strings. Returns the task objects for the following stages.
func checkShape(p map[string]interface{}, acc *apierr.Accumulator) []map[string]interface{} {
	var tasks []map[string]interface{}

	rawTasks, ok := List(p["prediction_tasks"])
	if !ok {
		acc.Add("'prediction_tasks' should be a list of task objects")
	} else {
		for index, v := range rawTasks {
			task, isMap := Map(v)
			if !isMap {
				acc.Addf("prediction_task at index %d is not an object", index)
				continue
			}
			tasks = append(tasks, task)
		}
	}

	sequences, ok := Map(p["sequences"])
	if !ok {
		acc.Add("'sequences' should be an object of sequence id to sequence")
		return tasks
	}
	for _, id := range sortedKeys(sequences) {
		if _, isStr := String(sequences[id]); !isStr {
			acc.Addf("sequence '%s' value should be a string", id)
		}
	}
	return tasks
}

// checkTaskMandatoryKeys reports missing task keys per task, identified by the
// task name when it has one, by position otherwise.
func checkTaskMandatoryKeys(tasks []map[string]interface{}, acc *apierr.Accumulator) {
	for index, task := range tasks {
		var missing []string
		for _, key := range mandatoryTaskKeys {
			if _, ok := task[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) == 0 {
			continue
		}
		sort.Strings(missing)

		identifier := fmt.Sprintf("at index %d", index)
		if name, ok := String(task["name"]); ok {
			identifier = name
		}
		acc.Addf("Mandatory keys missing from prediction_task '%s': %s",
			identifier, strings.Join(missing, ", "))
	}
}

func checkReadout(v interface{}, acc *apierr.Accumulator) {
	s, isStr := String(v)
	if !isStr || !contains(readoutOptions, s) {
		acc.Add("readout requested is not recognized. Please choose from ['point', 'track', 'interaction_matrix']")
	}
	if !isStr {
		acc.Add("'readout' value should be a string")
	}
	if IsList(v) {
		acc.Add("'readout' should only have 1 value")
	}
}

// checkTaskScalarField verifies a mandatory task field is a scalar string.
func checkTaskScalarField(tasks []map[string]interface{}, field string, acc *apierr.Accumulator) {
	for _, task := range tasks {
		v := task[field]
		if IsList(v) {
			acc.Addf("'%s' should only have 1 value", field)
		} else if _, ok := String(v); !ok {
			acc.Addf("'%s' value should be a string", field)
		}
	}
}

// checkTaskType verifies the task type is a scalar string from the closed set
// or carries one of the recognized prefixes.
func checkTaskType(tasks []map[string]interface{}, acc *apierr.Accumulator) {
	for _, task := range tasks {
		v := task["type"]
		if IsList(v) {
			acc.Add("'type' should only have 1 value")
			continue
		}
		s, ok := String(v)
		if !ok {
			acc.Add("'type' value should be a string")
			continue
		}
		if !contains(taskTypeOptions, s) && !hasAnyPrefix(s, taskTypePrefixes) {
			acc.Addf("prediction type %s is not recognized", s)
		}
	}
}

// checkTaskScale verifies the optional scale field.
func checkTaskScale(tasks []map[string]interface{}, acc *apierr.Accumulator) {
	for _, task := range tasks {
		v, present := task["scale"]
		if !present {
			continue
		}
		if IsList(v) {
			acc.Add("'scale' should only have 1 value")
			continue
		}
		s, ok := String(v)
		if !ok || !contains(scaleOptions, s) {
			acc.Add("scale requested is not recognized. Please choose from ['log', 'linear']")
		}
		if !ok {
			acc.Add("'scale' value should be a string")
		}
	}
}

// checkSequenceIDs verifies prediction_ranges names exactly the sequence ids.
func checkSequenceIDs(ranges, sequences map[string]interface{}, acc *apierr.Accumulator) {
	same := len(ranges) == len(sequences)
	if same {
		for id := range ranges {
			if _, ok := sequences[id]; !ok {
				same = false
				break
			}
		}
	}
	if !same {
		acc.Add("sequence ids in prediction_ranges do not match those in sequences")
	}
}

// checkRanges verifies every range value. All violations of a single range
// value past the structural ones accumulate independently; bounds are checked
// against the pre-trim sequence length.
func checkRanges(ranges, sequences map[string]interface{}, acc *apierr.Accumulator) {
	for _, key := range sortedKeys(ranges) {
		bounds, ok := List(ranges[key])
		if !ok {
			acc.Addf("Values for '%s' in 'prediction_ranges' must be in a list", key)
			continue
		}
		// An empty range means "leave this sequence untrimmed".
		if len(bounds) == 0 {
			continue
		}
		if len(bounds) != 2 {
			acc.Addf("Range array for '%s' in 'prediction_ranges' must have 2 elements", key)
			continue
		}

		start, okStart := Int(bounds[0])
		end, okEnd := Int(bounds[1])
		if !okStart || !okEnd {
			acc.Addf("Values in '%s' in 'prediction_ranges' must be integers", key)
			continue
		}

		if start < 0 || end < 0 {
			acc.Addf("Invalid range for '%s' in 'prediction_ranges': indices must be positive. Received [%d, %d]",
				key, start, end)
		}
		if start > end {
			acc.Addf("Invalid range for '%s' in 'prediction_ranges': start index (%d) cannot be greater than end index (%d). Received [%d, %d]",
				key, start, end, start, end)
		}

		seq, _ := String(sequences[key])
		seqLen := len(seq)
		if start >= seqLen || end >= seqLen {
			if seqLen == 0 {
				acc.Addf("Invalid range for '%s': cannot specify a range for a non-existent or empty sequence.", key)
			} else {
				acc.Addf("Invalid range for '%s': index is out of bounds. The maximum valid index for a sequence of length %d is %d.",
					key, seqLen, seqLen-1)
			}
		}
	}
}

// checkScalarString verifies an optional top-level field is a scalar string.
func checkScalarString(field string, v interface{}, acc *apierr.Accumulator) {
	if IsList(v) {
		acc.Addf("'%s' should only have 1 value", field)
	} else if _, ok := String(v); !ok {
		acc.Addf("'%s' value should be a string", field)
	}
}

func contains(options []string, s string) bool {
	for _, option := range options {
		if option == s {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
