package api

// TaskResult is the per-task block of a prediction response. The *_actual
// fields report what the model really used; this predictor never remaps task
// attributes, so they stay "NA" except for the resolved scale.
type TaskResult struct {
	Name              string               `json:"name" msgpack:"name"`
	TypeRequested     string               `json:"type_requested" msgpack:"type_requested"`
	TypeActual        []string             `json:"type_actual" msgpack:"type_actual"`
	CellTypeRequested string               `json:"cell_type_requested" msgpack:"cell_type_requested"`
	CellTypeActual    string               `json:"cell_type_actual" msgpack:"cell_type_actual"`
	SpeciesRequested  string               `json:"species_requested" msgpack:"species_requested"`
	SpeciesActual     string               `json:"species_actual" msgpack:"species_actual"`
	ScaleRequested    *string              `json:"scale_prediction_requested" msgpack:"scale_prediction_requested"`
	ScaleActual       string               `json:"scale_prediction_actual" msgpack:"scale_prediction_actual"`
	Predictions       map[string][]float64 `json:"predictions" msgpack:"predictions"`
}

// PredictResponse is the success envelope of the prediction endpoint. BinSize
// is present only for track readouts.
type PredictResponse struct {
	PredictorName   string       `json:"predictor_name" msgpack:"predictor_name"`
	BinSize         *int         `json:"bin_size,omitempty" msgpack:"bin_size,omitempty"`
	PredictionTasks []TaskResult `json:"prediction_tasks" msgpack:"prediction_tasks"`
}
