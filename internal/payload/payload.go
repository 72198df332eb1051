// Package payload models the prediction request as it arrives off the wire
// and implements the staged, accumulating validator over it.
//
// Both wire formats decode into untyped interface values (objects become
// map[string]interface{}, arrays []interface{}), so the validator classifies
// values explicitly instead of trusting a struct shape: a field that must be a
// scalar string may legally arrive as a list or a number and has to be
// reported, not rejected by the decoder.
package payload

// Mandatory keys and closed value sets of the request contract.
var (
	mandatoryKeys     = []string{"readout", "prediction_tasks", "sequences"}
	mandatoryTaskKeys = []string{"name", "type", "cell_type", "species"}

	readoutOptions   = []string{"point", "track", "interaction_matrix"}
	scaleOptions     = []string{"linear", "log"}
	taskTypeOptions  = []string{"accessibility", "expression"}
	taskTypePrefixes = []string{"binding_", "expression_", "conformation_"}
)

// IsList reports whether a wire value decoded as a list.
func IsList(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

// String returns a wire value as a scalar string.
func String(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Map returns a wire value as an object.
func Map(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// List returns a wire value as a list.
func List(v interface{}) ([]interface{}, bool) {
	l, ok := v.([]interface{})
	return l, ok
}

// Int returns a wire value as an integer. JSON decodes every number as
// float64, MessagePack uses the narrowest integer width that fits, so all of
// those spellings are accepted; a float is an integer only when integral.
func Int(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > uint64(int(^uint(0)>>1)) {
			return 0, false
		}
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	case float32:
		if float64(n) == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// FlankSequences returns the optional upstream/downstream flank strings of a
// validated payload, empty when absent.
func FlankSequences(p map[string]interface{}) (upstream, downstream string) {
	if v, ok := p["upstream_seq"]; ok {
		upstream, _ = String(v)
	}
	if v, ok := p["downstream_seq"]; ok {
		downstream, _ = String(v)
	}
	return upstream, downstream
}

// Sequences returns the sequence map of a validated payload as a fresh owned
// map, never aliasing the decoded request.
func Sequences(p map[string]interface{}) map[string]string {
	raw, _ := Map(p["sequences"])
	sequences := make(map[string]string, len(raw))
	for id, v := range raw {
		s, _ := String(v)
		sequences[id] = s
	}
	return sequences
}

// Tasks returns the prediction task objects of a validated payload.
func Tasks(p map[string]interface{}) []map[string]interface{} {
	raw, _ := List(p["prediction_tasks"])
	tasks := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		task, _ := Map(v)
		tasks = append(tasks, task)
	}
	return tasks
}
